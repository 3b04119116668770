// Package eventlog collects the immutable state-transition history of a
// simulation run and streams it to disk.
package eventlog

// Activity labels the transition a record describes.
type Activity string

const (
	// ActivityCreated marks entity creation (products at sources).
	ActivityCreated Activity = "created state"
	// ActivityStart marks a state machine entering its state.
	ActivityStart Activity = "start state"
	// ActivityStartInterrupt marks an activity paused by a breakdown.
	ActivityStartInterrupt Activity = "start interrupt"
	// ActivityEndInterrupt marks a paused activity resuming.
	ActivityEndInterrupt Activity = "end interrupt"
	// ActivityEnd marks a state machine leaving its state.
	ActivityEnd Activity = "end state"
	// ActivityTruncated marks work still in flight when the horizon cut
	// the run.
	ActivityTruncated Activity = "truncated"
)

// StateType classifies the state a record belongs to.
type StateType string

const (
	StateTypeProduction       StateType = "Production"
	StateTypeTransport        StateType = "Transport"
	StateTypeSetup            StateType = "Setup"
	StateTypeBreakdown        StateType = "Breakdown"
	StateTypeProcessBreakdown StateType = "ProcessBreakdown"
	StateTypeSource           StateType = "Source"
	StateTypeSink             StateType = "Sink"
)

// Record is one immutable event-log row. Records are never mutated after
// insertion.
type Record struct {
	Time           float64
	Resource       string
	State          string
	StateType      StateType
	Activity       Activity
	Product        string
	ExpectedEnd    float64
	TargetLocation string
}

// Header returns the column names of the tabular export.
func Header() []string {
	return []string{
		"Time", "Resource", "State", "State Type", "Activity",
		"Product", "Expected End Time", "Target Location",
	}
}
