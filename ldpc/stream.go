package ldpc

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
)

// RunnerOptions configures a Runner. Config supplies the sampled
// configuration inputs; if SampleConfig is set it is consulted every step
// instead, modeling configuration inputs that may change mid-stream (the
// encoder still latches once per frame).
type RunnerOptions struct {
	Config       Config
	SampleConfig func() Config
	Logger       *zerolog.Logger
	Metrics      *Metrics
	Tracer       *Tracer
}

// Runner drives the cycle model from channels. Ready/valid back-pressure maps
// onto channel operations: an input the encoder is not ready for stays
// buffered, and a parity bit the consumer has not taken holds the drain.
type Runner struct {
	enc  *Encoder
	opts RunnerOptions
	log  zerolog.Logger
}

// NewRunner returns a Runner around a fresh Encoder.
func NewRunner(opts RunnerOptions) *Runner {
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}
	return &Runner{enc: NewEncoder(), opts: opts, log: log}
}

// Encoder exposes the underlying cycle model, mainly for inspection in tests
// and tooling.
func (r *Runner) Encoder() *Encoder { return r.enc }

// ErrTruncatedInput is returned when both input channels close while a frame
// is still in flight: one stream's terminal marker never met the other's.
var ErrTruncatedInput = errors.New("ldpc: input streams closed mid-frame")

// Run steps the encoder until both input channels are closed and drained and
// the final frame has completed, sending parity bits to out. The caller owns
// out and closes it after Run returns. Run does not spin: when the pipeline
// is fully stalled it blocks until an input arrives, the consumer takes a
// bit, or ctx is canceled.
func (r *Runner) Run(ctx context.Context, tables <-chan TableEntry, data <-chan DataBit, out chan<- ParityBit) error {
	var (
		entry        TableEntry
		haveEntry    bool
		tablesClosed bool

		bit        DataBit
		haveBit    bool
		dataClosed bool

		held      ParityBit
		heldValid bool

		wasDraining bool
	)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if heldValid {
			select {
			case out <- held:
				heldValid = false
			default:
			}
		}
		if !haveEntry && !tablesClosed {
			select {
			case e, ok := <-tables:
				if ok {
					entry, haveEntry = e, true
				} else {
					tablesClosed = true
				}
			default:
			}
		}
		if !haveBit && !dataClosed {
			select {
			case d, ok := <-data:
				if ok {
					bit, haveBit = d, true
				} else {
					dataClosed = true
				}
			default:
			}
		}

		cfg := r.opts.Config
		if r.opts.SampleConfig != nil {
			cfg = r.opts.SampleConfig()
		}
		in := StepIn{
			Config:   cfg,
			OutReady: !heldValid,
		}
		if haveEntry && haveBit {
			in.Table = entry
			in.TableValid = true
			in.Bit = bit.Bit
			in.BitLast = bit.Last
			in.BitValid = true
		}

		busyBefore := !r.enc.store.idle()
		res := r.enc.Step(in)

		// A busy store means time is advancing toward a delivery; a store
		// that became busy means a read was just issued.
		progress := busyBefore || !r.enc.store.idle()
		if res.TableReady && in.TableValid && res.BitReady && in.BitValid {
			haveEntry, haveBit = false, false
			progress = true
			if r.opts.Metrics != nil {
				r.opts.Metrics.BitsAccepted.Inc()
			}
		}
		if res.FrameStart {
			r.log.Debug().
				Stringer("frame_type", r.enc.LatchedConfig().FrameType).
				Stringer("code_rate", r.enc.LatchedConfig().CodeRate).
				Msg("frame start")
			if r.opts.Tracer != nil {
				r.opts.Tracer.FrameStart(r.enc.Frames(), r.enc.Cycles(), r.enc.LatchedConfig())
			}
		}
		if !wasDraining && r.enc.Draining() {
			if r.opts.Tracer != nil {
				r.opts.Tracer.DrainStart(r.enc.Frames(), r.enc.Cycles(), r.enc.maxAddr+1, r.enc.infoLength)
			}
			if r.opts.Metrics != nil {
				r.opts.Metrics.DrainedWords.Add(float64(r.enc.maxAddr + 1))
			}
		}
		wasDraining = r.enc.Draining()
		if res.ParityValid {
			held = ParityBit{Bit: res.ParityBit, Last: res.ParityLast}
			heldValid = true
			progress = true
			if r.opts.Metrics != nil {
				r.opts.Metrics.ParityBits.Inc()
			}
			if res.ParityLast {
				r.log.Debug().Uint64("frames", r.enc.Frames()).Msg("frame complete")
				if r.opts.Metrics != nil {
					r.opts.Metrics.FramesTotal.Inc()
				}
				if r.opts.Tracer != nil {
					r.opts.Tracer.FrameDone(r.enc.Frames()-1, r.enc.Cycles())
				}
			}
			// Flush eagerly so a ready consumer never costs an extra step.
			select {
			case out <- held:
				heldValid = false
			default:
			}
		}

		if progress {
			continue
		}

		// Nothing moved this step: either the stream is finished or the
		// pipeline is stalled on an external party.
		if tablesClosed && dataClosed && !haveEntry && !haveBit && !heldValid && r.enc.Idle() {
			return nil
		}
		if r.opts.Metrics != nil {
			r.opts.Metrics.Stalls.Inc()
		}

		var (
			sendCh  chan<- ParityBit
			tableCh <-chan TableEntry
			dataCh  <-chan DataBit
		)
		if heldValid {
			sendCh = out
		}
		if !tablesClosed && !haveEntry {
			tableCh = tables
		}
		if !dataClosed && !haveBit {
			dataCh = data
		}
		if sendCh == nil && tableCh == nil && dataCh == nil {
			// Inputs are gone but the encoder still waits on a terminal
			// marker that will never come.
			return ErrTruncatedInput
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sendCh <- held:
			heldValid = false
		case e, ok := <-tableCh:
			if ok {
				entry, haveEntry = e, true
			} else {
				tablesClosed = true
			}
		case d, ok := <-dataCh:
			if ok {
				bit, haveBit = d, true
			} else {
				dataClosed = true
			}
		}
	}
}

// EncodeFrame pushes one frame through a fresh cycle model and returns its
// serialized parity bits. entries and bits must be the same length, with the
// final entry carrying the table stream's Last marker; the data stream's
// terminal marker is applied to the final bit.
func EncodeFrame(cfg Config, entries []TableEntry, bits []bool) ([]bool, error) {
	if len(entries) != len(bits) {
		return nil, errors.New("ldpc: one table entry per data bit required")
	}
	if len(entries) == 0 {
		return nil, errors.New("ldpc: empty frame")
	}
	if !entries[len(entries)-1].Last {
		return nil, errors.New("ldpc: final table entry must carry the last marker")
	}
	enc := NewEncoder()
	return encodeFrameOn(enc, cfg, entries, bits)
}

func encodeFrameOn(enc *Encoder, cfg Config, entries []TableEntry, bits []bool) ([]bool, error) {
	parity := make([]bool, 0, DrainWords(cfg.FrameType, int(entries[len(entries)-1].InfoLength))*WordWidth)
	next := 0
	// Generous bound: one pair per latency window plus the full drain.
	limit := (len(entries) + StoreWords*WordWidth + 64) * (defaultStoreLatency + 2)
	for steps := 0; ; steps++ {
		if steps > limit {
			return nil, errors.New("ldpc: encoder stalled")
		}
		in := StepIn{Config: cfg, OutReady: true}
		if next < len(entries) {
			in.Table = entries[next]
			in.TableValid = true
			in.Bit = bits[next]
			in.BitLast = next == len(bits)-1
			in.BitValid = true
		}
		res := enc.Step(in)
		if res.TableReady && in.TableValid {
			next++
		}
		if res.ParityValid {
			parity = append(parity, res.ParityBit)
			if res.ParityLast {
				return parity, nil
			}
		}
	}
}
