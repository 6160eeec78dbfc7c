package ldpc

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
)

// TableEntry is one record of the connection-table stream. Offset indexes a
// bit position within the codeword's parity span; InfoLength is the length of
// the frame's systematic part; Last marks the final entry of a frame. One
// entry accompanies exactly one accepted data bit.
type TableEntry struct {
	Offset     uint32
	InfoLength uint32
	Last       bool
}

func (e TableEntry) wordAddr() int {
	return int(e.Offset >> addrShift)
}

func (e TableEntry) bitOffset() uint {
	return uint(e.Offset) & (WordWidth - 1)
}

// BuildEntries pairs a precomputed offset sequence with a frame's info length
// and marks the final record. The offsets are consumed as-is; this package
// never derives them.
func BuildEntries(offsets []uint32, infoLength int) []TableEntry {
	entries := make([]TableEntry, len(offsets))
	for i, off := range offsets {
		entries[i] = TableEntry{Offset: off, InfoLength: uint32(infoLength)}
	}
	if len(entries) > 0 {
		entries[len(entries)-1].Last = true
	}
	return entries
}

// LoadOffsets reads a binary file of little-endian int64 accumulator offsets.
func LoadOffsets(path string) ([]uint32, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(b)%8 != 0 {
		return nil, errors.New("offset file size is not a multiple of int64 size")
	}
	cnt := len(b) / 8
	vals64 := make([]int64, cnt)
	if err := binary.Read(bytes.NewReader(b), binary.LittleEndian, &vals64); err != nil {
		return nil, err
	}
	out := make([]uint32, cnt)
	for i, v := range vals64 {
		out[i] = uint32(v)
	}
	return out, nil
}

// SaveOffsets writes accumulator offsets as little-endian int64 values, the
// inverse of LoadOffsets.
func SaveOffsets(path string, offsets []uint32) error {
	vals64 := make([]int64, len(offsets))
	for i, v := range offsets {
		vals64[i] = int64(v)
	}
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, vals64); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}
