package telemetry

const (
	StreamName   = "CALIPER_EVENTS"
	StreamMaxAge = "720h" // 30 days
)

func SubjectWeightsServed(tenantID string) string { return "caliper.weights." + tenantID + ".served" }
func SubjectWeightsLearned(tenantID string) string {
	return "caliper.weights." + tenantID + ".learned"
}
func SubjectWeightsRolledBack(tenantID string) string {
	return "caliper.weights." + tenantID + ".rolled_back"
}

func SubjectOutcomeRecorded(tenantID string) string { return "caliper.outcome." + tenantID + ".recorded" }
func SubjectOutcomeOrphaned(tenantID string) string { return "caliper.outcome." + tenantID + ".orphaned" }

func SubjectValidationResult(tenantID string) string {
	return "caliper.validation." + tenantID + ".result"
}

// SubjectEvent is the generic fallback for events that do not carry a
// tenant, e.g. compaction sweeps.
func SubjectEvent(name string) string { return "caliper.event." + name }

func SubjectException() string { return "caliper.exception" }
