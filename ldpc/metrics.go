package ldpc

import "github.com/prometheus/client_golang/prometheus"

// Metrics aggregates Runner counters for prometheus scraping.
type Metrics struct {
	FramesTotal  prometheus.Counter
	BitsAccepted prometheus.Counter
	ParityBits   prometheus.Counter
	DrainedWords prometheus.Counter
	Stalls       prometheus.Counter
}

// NewMetrics builds the counter set and registers it on reg when non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		FramesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ldpc", Name: "frames_total",
			Help: "Frames fully accumulated and drained.",
		}),
		BitsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ldpc", Name: "bits_accepted_total",
			Help: "Jointly accepted (table entry, data bit) pairs.",
		}),
		ParityBits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ldpc", Name: "parity_bits_total",
			Help: "Parity bits produced by the output serializer.",
		}),
		DrainedWords: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ldpc", Name: "drained_words_total",
			Help: "Context store words read out during drain phases.",
		}),
		Stalls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ldpc", Name: "stalls_total",
			Help: "Steps where the pipeline blocked on an external party.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.FramesTotal, m.BitsAccepted, m.ParityBits, m.DrainedWords, m.Stalls)
	}
	return m
}
