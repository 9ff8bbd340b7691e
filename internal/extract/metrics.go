package extract

import "time"

// Metrics accounts for the model calls of one pipeline run. It is append-only
// while the run is in flight and never mutated after it is returned; runs do
// not share metrics.
type Metrics struct {
	Label            string        `json:"label"`
	ModelInvocations int           `json:"model_invocations"`
	ElapsedTime      time.Duration `json:"elapsed_time"`
	Submetrics       []*Metrics    `json:"submetrics,omitempty"`
}

func NewMetrics(label string) *Metrics {
	return &Metrics{Label: label}
}

// RecordCall accounts for one model invocation and its latency.
func (m *Metrics) RecordCall(elapsed time.Duration) {
	m.ModelInvocations++
	m.ElapsedTime += elapsed
}

// Attach nests the metrics of an inner pipeline and rolls its totals up.
func (m *Metrics) Attach(sub *Metrics) {
	if sub == nil {
		return
	}
	m.Submetrics = append(m.Submetrics, sub)
	m.ModelInvocations += sub.ModelInvocations
	m.ElapsedTime += sub.ElapsedTime
}
