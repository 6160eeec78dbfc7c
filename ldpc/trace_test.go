package ldpc

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTracerEmitsFrameEvents(t *testing.T) {
	infoLength := 16200 - 64
	entries := BuildEntries([]uint32{0, 17, 33}, infoLength)
	bits := []bool{true, false, true}
	cfg := Config{FrameType: FrameShort, CodeRate: Rate2_3}

	var buf bytes.Buffer
	runner := NewRunner(RunnerOptions{Config: cfg, Tracer: NewTracer(&buf)})

	tables := make(chan TableEntry, 4)
	data := make(chan DataBit, 4)
	out := make(chan ParityBit, 256)
	feedFrame(t, entries, bits, tables, data)

	done := make(chan error, 1)
	go func() {
		done <- runner.Run(context.Background(), tables, data, out)
		close(out)
	}()
	collect(out)
	require.NoError(t, <-done)

	type event struct {
		Event      string `json:"event"`
		Frame      uint64 `json:"frame"`
		Cycle      uint64 `json:"cycle"`
		FrameType  string `json:"frame_type"`
		CodeRate   string `json:"code_rate"`
		DrainWords int    `json:"drain_words"`
		InfoLength int    `json:"info_length"`
	}
	var events []event
	dec := json.NewDecoder(&buf)
	for dec.More() {
		var e event
		require.NoError(t, dec.Decode(&e))
		events = append(events, e)
	}
	require.Len(t, events, 3)

	require.Equal(t, "frame_start", events[0].Event)
	require.Equal(t, "short", events[0].FrameType)
	require.Equal(t, "2/3", events[0].CodeRate)

	require.Equal(t, "drain_start", events[1].Event)
	require.Equal(t, DrainWords(FrameShort, infoLength), events[1].DrainWords)
	require.Equal(t, infoLength, events[1].InfoLength)

	require.Equal(t, "frame_done", events[2].Event)
	require.Equal(t, uint64(0), events[2].Frame)
	require.Greater(t, events[2].Cycle, events[1].Cycle)
}
