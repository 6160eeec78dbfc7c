package ldpc

type phase uint8

const (
	phaseAccumulate phase = iota
	phaseDrain
)

// StepIn is the per-step stimulus. Valid flags follow ready/valid handshake
// semantics: an input is consumed only on a step where its valid and the
// matching ready from StepOut hold together. Config carries the externally
// sampled configuration inputs; OutReady is the downstream ready for the
// parity stream.
type StepIn struct {
	Table      TableEntry
	TableValid bool

	Bit      bool
	BitLast  bool
	BitValid bool

	Config   Config
	OutReady bool
}

// StepOut reports the handshake results of one step and at most one parity
// bit. FrameStart is raised on the step a new frame's first (entry, bit) pair
// is accepted, which is also when Config was latched.
type StepOut struct {
	TableReady bool
	BitReady   bool

	ParityValid bool
	ParityBit   bool
	ParityLast  bool

	FrameStart bool
}

// Encoder is the cycle-accurate accumulation core. All state advances through
// Step, one discrete time unit at a time; next-state values are evaluated
// from current state before being committed, mirroring simultaneous-update
// semantics.
//
// The zero value is not usable; construct with NewEncoder.
type Encoder struct {
	store *contextStore
	delay *addrDelay

	phase phase

	// config latch
	cfg      Config
	firstBit bool

	// frame completion tracking
	dataDone   bool
	tableDone  bool
	infoLength int

	// drain state
	wordAddr int // next address to read during drain
	maxAddr  int
	carry    bool // running parity carried across word boundaries

	// output serializer register
	outBuf   uint16
	outCount int
	outLast  bool

	cycles uint64
	frames uint64
}

// NewEncoder returns an encoder with the default context store latency and a
// store sized for the largest frame.
func NewEncoder() *Encoder {
	return newEncoder(StoreWords, defaultStoreLatency)
}

func newEncoder(words, latency int) *Encoder {
	return &Encoder{
		store:    newContextStore(words, latency),
		delay:    newAddrDelay(latency),
		firstBit: true,
	}
}

// LatchedConfig returns the configuration latched for the frame currently in
// flight (or the most recently completed one).
func (e *Encoder) LatchedConfig() Config { return e.cfg }

// Draining reports whether the encoder is in the drain phase.
func (e *Encoder) Draining() bool { return e.phase == phaseDrain }

// Idle reports whether no frame is in flight: accumulate phase, no store
// access outstanding and no parity bits pending.
func (e *Encoder) Idle() bool {
	return e.phase == phaseAccumulate && e.store.idle() && e.outCount == 0 &&
		!e.tableDone && !e.dataDone
}

// Cycles returns the number of steps taken since construction.
func (e *Encoder) Cycles() uint64 { return e.cycles }

// Frames returns the number of frames fully drained since construction.
func (e *Encoder) Frames() uint64 { return e.frames }

// Step advances the encoder by one discrete time unit.
func (e *Encoder) Step(in StepIn) StepOut {
	e.cycles++
	var out StepOut

	// Deliver phase: the delay line and the store advance together, so a
	// slot loaded when a read was issued emerges with that read's data.
	slot := e.delay.shift()
	addr, word, delivered := e.store.tick()
	if delivered {
		switch e.phase {
		case phaseAccumulate:
			// Read-modify-write: flip the addressed bit by the delayed
			// data bit, pass every other bit through unchanged.
			if slot.valid && slot.dataBit {
				word ^= 1 << slot.bitOffset
			}
			e.store.write(addr, word)
		case phaseDrain:
			// The word is consumed by the serializer and cleared for the
			// next frame.
			e.store.write(addr, 0)
			e.outBuf = word
			e.outCount = WordWidth
			e.outLast = addr == e.maxAddr
		}
	}

	// Output serializer: one bit per step, prefix XOR over the drained bit
	// sequence. The carry starts at zero each frame, so the first output
	// bit equals bit 0 of word 0 and each later word is seeded by the
	// previous word's final output bit.
	if e.outCount > 0 && in.OutReady {
		bit := e.outBuf&1 != 0
		e.outBuf >>= 1
		e.outCount--
		e.carry = e.carry != bit
		out.ParityValid = true
		out.ParityBit = e.carry
		out.ParityLast = e.outLast && e.outCount == 0
		if out.ParityLast {
			e.outLast = false
			e.frames++
		}
	}

	// Frame completion controller: leave accumulate once the table stream's
	// last entry has met the data stream's terminal marker and the final
	// read-modify-write has committed.
	if e.phase == phaseAccumulate && e.tableDone && e.dataDone && e.store.idle() {
		e.phase = phaseDrain
		e.maxAddr = DrainWords(e.cfg.FrameType, e.infoLength) - 1
		e.wordAddr = 0
		e.carry = false
		e.tableDone = false
		e.dataDone = false
	}

	switch e.phase {
	case phaseDrain:
		// Sequential read-back. The next word is fetched once the current
		// one has fully serialized; returning to accumulate waits for the
		// final bit to be consumed downstream.
		if e.store.idle() && e.outCount == 0 {
			if e.wordAddr <= e.maxAddr {
				e.store.read(e.wordAddr)
				e.wordAddr++
			} else if !e.outLast {
				e.phase = phaseAccumulate
				e.wordAddr = 0
			}
		}

	case phaseAccumulate:
		// Joint acceptance of one (entry, bit) pair. Inputs are refused
		// while an access is outstanding and, through the phase check
		// above, for the whole drain.
		accepting := e.store.idle() && !e.tableDone && e.outCount == 0
		out.TableReady = accepting
		out.BitReady = accepting
		if accepting && in.TableValid && in.BitValid {
			if e.firstBit {
				e.cfg = in.Config
				out.FrameStart = true
			}
			e.firstBit = in.BitLast
			if in.BitLast {
				e.dataDone = true
			}
			e.infoLength = int(in.Table.InfoLength)
			if in.Table.Last {
				e.tableDone = true
			}
			e.store.read(in.Table.wordAddr())
			e.delay.load(delaySlot{valid: true, bitOffset: in.Table.bitOffset(), dataBit: in.Bit})
		}
	}

	return out
}
