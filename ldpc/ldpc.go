// Package ldpc implements the accumulation stage of a DVB-S2 LDPC encoder.
//
// Systematic data bits arrive paired with connection-table entries; each pair
// XORs one bit into an addressable context store. When a frame's table and
// data streams both terminate, the store is drained in address order and
// serialized into parity bits by a running prefix XOR. The cycle-accurate
// model lives in Encoder (one Step per discrete time unit); Runner maps its
// ready/valid handshakes onto channels for stream-style use.
package ldpc

// WordWidth is the context store word width in bits.
const WordWidth = 16

// addrShift derives a word address from a table offset (log2 of WordWidth).
const addrShift = 4

// StoreWords is the context store depth, sized for the largest frame's
// parity span.
const StoreWords = frameNormalBits / WordWidth

const (
	frameNormalBits = 64800
	frameShortBits  = 16200
)

// FrameType selects the DVB-S2 FECFRAME size class.
type FrameType uint8

const (
	FrameNormal FrameType = iota
	FrameShort
)

// Bits returns the full codeword length for the frame size class.
func (f FrameType) Bits() int {
	if f == FrameShort {
		return frameShortBits
	}
	return frameNormalBits
}

func (f FrameType) String() string {
	if f == FrameShort {
		return "short"
	}
	return "normal"
}

// CodeRate identifies one of the DVB-S2 LDPC code rates. The accumulation
// core carries it opaquely; only FrameType and the table's info length feed
// the drain arithmetic.
type CodeRate uint8

const (
	Rate1_4 CodeRate = iota
	Rate1_3
	Rate2_5
	Rate1_2
	Rate3_5
	Rate2_3
	Rate3_4
	Rate4_5
	Rate5_6
	Rate8_9
	Rate9_10
)

var rateNames = [...]string{"1/4", "1/3", "2/5", "1/2", "3/5", "2/3", "3/4", "4/5", "5/6", "8/9", "9/10"}

func (r CodeRate) String() string {
	if int(r) < len(rateNames) {
		return rateNames[r]
	}
	return "unknown"
}

// Constellation identifies the downstream modulation format. Latched per
// frame together with the code rate, never interpreted here.
type Constellation uint8

const (
	ModQPSK Constellation = iota
	Mod8PSK
	Mod16APSK
	Mod32APSK
)

var modNames = [...]string{"QPSK", "8PSK", "16APSK", "32APSK"}

func (m Constellation) String() string {
	if int(m) < len(modNames) {
		return modNames[m]
	}
	return "unknown"
}

// Config carries the frame-level configuration inputs. They are sampled, not
// streamed: the encoder latches them at the first data bit of each frame and
// ignores changes until that frame completes.
type Config struct {
	FrameType     FrameType
	CodeRate      CodeRate
	Constellation Constellation
}

// DrainWords returns how many context words must be read out to complete a
// frame: the parity span (frame length minus the systematic part) rounded up
// to whole words. Never zero, so a frame with a full-length systematic part
// still drains one word.
func DrainWords(f FrameType, infoLength int) int {
	required := f.Bits() - infoLength
	n := (required + WordWidth - 1) / WordWidth
	if n < 1 {
		n = 1
	}
	return n
}

// DataBit is one element of the systematic input stream.
type DataBit struct {
	Bit  bool
	Last bool
}

// ParityBit is one element of the serialized parity output stream.
type ParityBit struct {
	Bit  bool
	Last bool
}

// PackBits packs a bit slice into bytes, LSB-first within each byte.
func PackBits(bits []bool) []byte {
	out := make([]byte, (len(bits)+7)/8)
	for i, b := range bits {
		if b {
			out[i>>3] |= 1 << uint(i&7)
		}
	}
	return out
}

// UnpackBits expands n LSB-first bits from b.
func UnpackBits(b []byte, n int) []bool {
	out := make([]bool, n)
	for i := 0; i < n && i>>3 < len(b); i++ {
		out[i] = (b[i>>3]>>uint(i&7))&1 == 1
	}
	return out
}
