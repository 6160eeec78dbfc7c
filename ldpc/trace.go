package ldpc

import (
	"io"
	"sync"

	"github.com/francoispqt/gojay"
)

// Tracer writes frame-level encoder events as line-delimited JSON.
type Tracer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewTracer returns a Tracer writing to w.
func NewTracer(w io.Writer) *Tracer {
	return &Tracer{w: w}
}

type traceEvent struct {
	name       string
	frame      uint64
	cycle      uint64
	frameType  string
	codeRate   string
	drainWords int
	infoLength int
}

func (e *traceEvent) MarshalJSONObject(enc *gojay.Encoder) {
	enc.StringKey("event", e.name)
	enc.Uint64Key("frame", e.frame)
	enc.Uint64Key("cycle", e.cycle)
	enc.StringKeyOmitEmpty("frame_type", e.frameType)
	enc.StringKeyOmitEmpty("code_rate", e.codeRate)
	enc.IntKeyOmitEmpty("drain_words", e.drainWords)
	enc.IntKeyOmitEmpty("info_length", e.infoLength)
}

func (e *traceEvent) IsNil() bool { return e == nil }

func (t *Tracer) emit(e *traceEvent) {
	b, err := gojay.MarshalJSONObject(e)
	if err != nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.w.Write(b)
	t.w.Write([]byte{'\n'})
}

// FrameStart records the acceptance of a frame's first data bit and the
// configuration latched with it.
func (t *Tracer) FrameStart(frame, cycle uint64, cfg Config) {
	t.emit(&traceEvent{
		name:      "frame_start",
		frame:     frame,
		cycle:     cycle,
		frameType: cfg.FrameType.String(),
		codeRate:  cfg.CodeRate.String(),
	})
}

// DrainStart records the accumulate-to-drain transition and the computed
// drain length.
func (t *Tracer) DrainStart(frame, cycle uint64, drainWords, infoLength int) {
	t.emit(&traceEvent{
		name:       "drain_start",
		frame:      frame,
		cycle:      cycle,
		drainWords: drainWords,
		infoLength: infoLength,
	})
}

// FrameDone records the consumption of a frame's final parity bit.
func (t *Tracer) FrameDone(frame, cycle uint64) {
	t.emit(&traceEvent{name: "frame_done", frame: frame, cycle: cycle})
}
