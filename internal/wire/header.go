package wire

import (
	"encoding/binary"
)

// CaptureVersion is the current parity capture file format version.
const CaptureVersion uint8 = 1

// CaptureHeader prefixes a parity capture file produced by the eval tool.
// The parity payload follows as LSB-first packed bits.
type CaptureHeader struct {
	Version    uint8
	FrameType  uint8 // 0=normal, 1=short
	CodeRate   uint8
	Modulation uint8
	InfoLength uint32 // systematic bits in the captured frame
	ParityBits uint32 // payload length in bits
}

const HeaderLen = 1 + 1 + 1 + 1 + 4 + 4

func (h *CaptureHeader) MarshalBinary(b []byte) []byte {
	if len(b) < HeaderLen {
		b = make([]byte, HeaderLen)
	}
	b[0] = h.Version
	b[1] = h.FrameType
	b[2] = h.CodeRate
	b[3] = h.Modulation
	binary.LittleEndian.PutUint32(b[4:8], h.InfoLength)
	binary.LittleEndian.PutUint32(b[8:12], h.ParityBits)
	return b[:HeaderLen]
}

func (h *CaptureHeader) UnmarshalBinary(b []byte) bool {
	if len(b) < HeaderLen {
		return false
	}
	h.Version = b[0]
	h.FrameType = b[1]
	h.CodeRate = b[2]
	h.Modulation = b[3]
	h.InfoLength = binary.LittleEndian.Uint32(b[4:8])
	h.ParityBits = binary.LittleEndian.Uint32(b[8:12])
	return true
}
