package ldpc

// defaultStoreLatency is the read latency of the context store in steps.
const defaultStoreLatency = 2

// contextStore models a single-ported memory with a fixed read latency.
// Exactly one access may be in flight at a time; the value delivered latency
// steps after read reflects every write committed before delivery, so writes
// are visible to subsequent reads in issue order.
type contextStore struct {
	words   []uint16
	latency int

	busy      bool
	addr      int
	remaining int
}

func newContextStore(words, latency int) *contextStore {
	if latency < 1 {
		latency = 1
	}
	return &contextStore{words: make([]uint16, words), latency: latency}
}

func (s *contextStore) idle() bool { return !s.busy }

// read issues an access. Callers must hold off until the store is idle; the
// accumulate and drain phases never share it.
func (s *contextStore) read(addr int) {
	if s.busy {
		panic("ldpc: context store access issued while one is in flight")
	}
	s.busy = true
	s.addr = addr
	s.remaining = s.latency
}

// tick advances the store by one step. On the delivery step it returns the
// issued address, the word value and true; otherwise ok is false.
func (s *contextStore) tick() (addr int, word uint16, ok bool) {
	if !s.busy {
		return 0, 0, false
	}
	s.remaining--
	if s.remaining > 0 {
		return 0, 0, false
	}
	s.busy = false
	return s.addr, s.words[s.addr], true
}

// write commits a word. Commit happens on the caller's current step, ahead of
// any later read's value capture.
func (s *contextStore) write(addr int, v uint16) {
	s.words[addr] = v
}

// delaySlot is the address-derived payload that must re-align with the read
// data emerging from the context store.
type delaySlot struct {
	valid     bool
	bitOffset uint
	dataBit   bool
}

// addrDelay is a fixed-length shift register matching the store latency. A
// slot loaded on the same step a read is issued emerges on the read's
// delivery step.
type addrDelay struct {
	slots []delaySlot
}

func newAddrDelay(depth int) *addrDelay {
	if depth < 1 {
		depth = 1
	}
	return &addrDelay{slots: make([]delaySlot, depth)}
}

// shift advances the line by one step and returns the slot leaving it.
func (d *addrDelay) shift() delaySlot {
	n := len(d.slots)
	out := d.slots[n-1]
	copy(d.slots[1:], d.slots[:n-1])
	d.slots[0] = delaySlot{}
	return out
}

// load fills the entry slot for the current step, after shift has run.
func (d *addrDelay) load(s delaySlot) {
	d.slots[0] = s
}
