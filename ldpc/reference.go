package ldpc

// ReferenceParity computes the parity stream a frame should produce, using a
// plain software model: accumulate every (entry, bit) pair into a word array,
// then prefix-XOR the drained span in address order. It shares no state or
// machinery with the cycle model and exists to pin its behavior in tests and
// evaluation runs.
func ReferenceParity(cfg Config, entries []TableEntry, bits []bool) []bool {
	words := make([]uint16, StoreWords)
	infoLength := 0
	for i, e := range entries {
		if bits[i] {
			words[e.wordAddr()] ^= 1 << e.bitOffset()
		}
		infoLength = int(e.InfoLength)
	}
	n := DrainWords(cfg.FrameType, infoLength)
	out := make([]bool, 0, n*WordWidth)
	carry := false
	for w := 0; w < n; w++ {
		word := words[w]
		for b := 0; b < WordWidth; b++ {
			carry = carry != (word&(1<<uint(b)) != 0)
			out = append(out, carry)
		}
	}
	return out
}
