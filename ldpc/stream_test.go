package ldpc

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

// feedFrame pushes one frame's entries and bits into the channels and closes
// them.
func feedFrame(t *testing.T, entries []TableEntry, bits []bool, tables chan<- TableEntry, data chan<- DataBit) {
	t.Helper()
	go func() {
		defer close(tables)
		for _, e := range entries {
			tables <- e
		}
	}()
	go func() {
		defer close(data)
		for i, b := range bits {
			data <- DataBit{Bit: b, Last: i == len(bits)-1}
		}
	}()
}

func collect(out <-chan ParityBit) ([]bool, int) {
	var bits []bool
	lasts := 0
	for p := range out {
		bits = append(bits, p.Bit)
		if p.Last {
			lasts++
		}
	}
	return bits, lasts
}

func TestRunnerEncodesFrame(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	entries, bits := randomFrame(r, FrameShort, 15000, 250)
	cfg := Config{FrameType: FrameShort, CodeRate: Rate3_4}

	tables := make(chan TableEntry, 16)
	data := make(chan DataBit, 16)
	out := make(chan ParityBit, 16)
	feedFrame(t, entries, bits, tables, data)

	runner := NewRunner(RunnerOptions{Config: cfg})
	done := make(chan error, 1)
	go func() {
		done <- runner.Run(context.Background(), tables, data, out)
		close(out)
	}()

	parity, lasts := collect(out)
	require.NoError(t, <-done)
	require.Equal(t, ReferenceParity(cfg, entries, bits), parity)
	require.Equal(t, 1, lasts)
	require.Equal(t, cfg, runner.Encoder().LatchedConfig())
}

func TestRunnerBackpressure(t *testing.T) {
	r := rand.New(rand.NewSource(5))
	entries, bits := randomFrame(r, FrameShort, 16000, 60)
	cfg := Config{FrameType: FrameShort}

	// Unbuffered channels and a consumer that drips: every handshake goes
	// through a genuine stall.
	tables := make(chan TableEntry)
	data := make(chan DataBit)
	out := make(chan ParityBit)
	feedFrame(t, entries, bits, tables, data)

	runner := NewRunner(RunnerOptions{Config: cfg})
	done := make(chan error, 1)
	go func() {
		done <- runner.Run(context.Background(), tables, data, out)
		close(out)
	}()

	var parity []bool
	for p := range out {
		parity = append(parity, p.Bit)
		if len(parity)%8 == 0 {
			time.Sleep(time.Millisecond)
		}
	}
	require.NoError(t, <-done)
	require.Equal(t, ReferenceParity(cfg, entries, bits), parity)
}

func TestRunnerMultipleFrames(t *testing.T) {
	r := rand.New(rand.NewSource(9))
	cfg := Config{FrameType: FrameShort}
	entriesA, bitsA := randomFrame(r, FrameShort, 15500, 120)
	entriesB, bitsB := randomFrame(r, FrameShort, 16100, 80)

	tables := make(chan TableEntry, 8)
	data := make(chan DataBit, 8)
	out := make(chan ParityBit, 8)
	go func() {
		defer close(tables)
		for _, e := range entriesA {
			tables <- e
		}
		for _, e := range entriesB {
			tables <- e
		}
	}()
	go func() {
		defer close(data)
		for i, b := range bitsA {
			data <- DataBit{Bit: b, Last: i == len(bitsA)-1}
		}
		for i, b := range bitsB {
			data <- DataBit{Bit: b, Last: i == len(bitsB)-1}
		}
	}()

	runner := NewRunner(RunnerOptions{Config: cfg})
	done := make(chan error, 1)
	go func() {
		done <- runner.Run(context.Background(), tables, data, out)
		close(out)
	}()

	var frames [][]bool
	var cur []bool
	for p := range out {
		cur = append(cur, p.Bit)
		if p.Last {
			frames = append(frames, cur)
			cur = nil
		}
	}
	require.NoError(t, <-done)
	require.Len(t, frames, 2)
	require.Equal(t, ReferenceParity(cfg, entriesA, bitsA), frames[0])
	require.Equal(t, ReferenceParity(cfg, entriesB, bitsB), frames[1])
	require.Equal(t, uint64(2), runner.Encoder().Frames())
}

func TestRunnerTruncatedInput(t *testing.T) {
	// The table stream terminates but the data stream never does: the frame
	// can never complete once both channels close.
	entries := BuildEntries([]uint32{0, 1}, 16200-16)
	tables := make(chan TableEntry, 2)
	data := make(chan DataBit, 2)
	out := make(chan ParityBit, 64)
	tables <- entries[0]
	tables <- entries[1]
	close(tables)
	data <- DataBit{Bit: true}
	data <- DataBit{Bit: true} // no terminal marker
	close(data)

	runner := NewRunner(RunnerOptions{Config: Config{FrameType: FrameShort}})
	err := runner.Run(context.Background(), tables, data, out)
	require.ErrorIs(t, err, ErrTruncatedInput)
}

func TestRunnerContextCancel(t *testing.T) {
	tables := make(chan TableEntry)
	data := make(chan DataBit)
	out := make(chan ParityBit)
	ctx, cancel := context.WithCancel(context.Background())

	runner := NewRunner(RunnerOptions{Config: Config{FrameType: FrameShort}})
	done := make(chan error, 1)
	go func() { done <- runner.Run(ctx, tables, data, out) }()
	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestRunnerSampledConfigLatchedPerFrame(t *testing.T) {
	cfgs := []Config{
		{FrameType: FrameShort, CodeRate: Rate1_2},
		{FrameType: FrameShort, CodeRate: Rate3_4},
	}
	entries := BuildEntries([]uint32{0, 1}, 16200-16)
	bits := []bool{true, false}

	// The sampled configuration flips constantly; only the value present at
	// each frame's first bit may stick.
	flip := 0
	sample := func() Config {
		flip++
		return cfgs[flip%2]
	}
	runner := NewRunner(RunnerOptions{SampleConfig: sample})

	tables := make(chan TableEntry, 2)
	data := make(chan DataBit, 2)
	out := make(chan ParityBit, 64)
	feedFrame(t, entries, bits, tables, data)

	done := make(chan error, 1)
	go func() {
		done <- runner.Run(context.Background(), tables, data, out)
		close(out)
	}()
	parity, _ := collect(out)
	require.NoError(t, <-done)
	require.Len(t, parity, WordWidth)
	require.Contains(t, cfgs, runner.Encoder().LatchedConfig())
}

func TestRunnerMetrics(t *testing.T) {
	r := rand.New(rand.NewSource(13))
	entries, bits := randomFrame(r, FrameShort, 16000, 40)
	cfg := Config{FrameType: FrameShort}
	m := NewMetrics(prometheus.NewRegistry())

	tables := make(chan TableEntry, 8)
	data := make(chan DataBit, 8)
	out := make(chan ParityBit, 8)
	feedFrame(t, entries, bits, tables, data)

	runner := NewRunner(RunnerOptions{Config: cfg, Metrics: m})
	done := make(chan error, 1)
	go func() {
		done <- runner.Run(context.Background(), tables, data, out)
		close(out)
	}()
	parity, _ := collect(out)
	require.NoError(t, <-done)

	drainWords := DrainWords(cfg.FrameType, 16000)
	require.Equal(t, float64(1), testutil.ToFloat64(m.FramesTotal))
	require.Equal(t, float64(len(entries)), testutil.ToFloat64(m.BitsAccepted))
	require.Equal(t, float64(len(parity)), testutil.ToFloat64(m.ParityBits))
	require.Equal(t, float64(drainWords), testutil.ToFloat64(m.DrainedWords))
}
