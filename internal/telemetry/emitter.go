package telemetry

import (
	"log/slog"
	"time"
)

// Emitter fans telemetry out to prometheus and, when a publisher is
// configured, to NATS. Publish failures are logged and dropped;
// telemetry must never become a failure mode of the caller.
type Emitter struct {
	publisher Publisher
	logger    *slog.Logger
}

func NewEmitter(publisher Publisher, logger *slog.Logger) *Emitter {
	return &Emitter{publisher: publisher, logger: logger}
}

func (e *Emitter) TrackEvent(name string, props map[string]interface{}) {
	eventsTotal.WithLabelValues(name).Inc()

	if e.publisher != nil {
		evt := Event{Name: name, Properties: props, Timestamp: time.Now().UTC()}
		if err := e.publisher.Publish(subjectFor(name, props), evt); err != nil {
			e.logger.Warn("telemetry publish failed", "event", name, "error", err)
		}
	}
	e.logger.Debug("telemetry event", "event", name)
}

func (e *Emitter) TrackException(err error, props map[string]interface{}) {
	op := "unknown"
	if v, ok := props["operation"].(string); ok && v != "" {
		op = v
	}
	exceptionsTotal.WithLabelValues(op).Inc()

	if e.publisher != nil {
		evt := ExceptionEvent{Error: err.Error(), Properties: props, Timestamp: time.Now().UTC()}
		if pubErr := e.publisher.Publish(SubjectException(), evt); pubErr != nil {
			e.logger.Warn("telemetry publish failed", "operation", op, "error", pubErr)
		}
	}
	e.logger.Warn("tracked exception", "operation", op, "error", err)
}

func (e *Emitter) TrackMetric(name string, value float64, props map[string]interface{}) {
	trackedMetrics.WithLabelValues(name).Set(value)

	if e.publisher != nil {
		evt := MetricEvent{Name: name, Value: value, Properties: props, Timestamp: time.Now().UTC()}
		if err := e.publisher.Publish(SubjectEvent(name), evt); err != nil {
			e.logger.Warn("telemetry publish failed", "metric", name, "error", err)
		}
	}
}

// subjectFor routes well-known events onto their lifecycle subjects so
// stream consumers can filter by tenant; everything else lands on the
// generic event subject.
func subjectFor(name string, props map[string]interface{}) string {
	tenant, _ := props["tenant_id"].(string)
	if tenant == "" {
		return SubjectEvent(name)
	}
	switch name {
	case "weights_served":
		return SubjectWeightsServed(tenant)
	case "weights_learned":
		return SubjectWeightsLearned(tenant)
	case "weights_rolled_back":
		return SubjectWeightsRolledBack(tenant)
	case "outcome_recorded":
		return SubjectOutcomeRecorded(tenant)
	case "outcome_orphaned":
		return SubjectOutcomeOrphaned(tenant)
	case "validation_result":
		return SubjectValidationResult(tenant)
	default:
		return SubjectEvent(name)
	}
}
