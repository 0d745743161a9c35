// Package telemetry reports learning-subsystem observability events.
// Sinks are write-only: nothing in the learning logic reads telemetry
// back to make decisions.
package telemetry

type Sink interface {
	TrackEvent(name string, props map[string]interface{})
	TrackException(err error, props map[string]interface{})
	TrackMetric(name string, value float64, props map[string]interface{})
}

// Nop discards everything. Used when no event backend is configured.
type Nop struct{}

func (Nop) TrackEvent(string, map[string]interface{})           {}
func (Nop) TrackException(error, map[string]interface{})        {}
func (Nop) TrackMetric(string, float64, map[string]interface{}) {}
