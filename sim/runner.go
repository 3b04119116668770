package sim

import (
	"github.com/google/uuid"

	"github.com/sdm4fzi/prodsys/sim/eventlog"
	"github.com/sdm4fzi/prodsys/sim/kpi"
)

// Runner is the external driving interface around one simulation: build
// from a configuration, run to a horizon, read the event log and the KPIs.
type Runner struct {
	// RunID identifies the run's artifacts (event log, KPI export). It is
	// not part of the deterministic engine state.
	RunID string

	Config    *Config
	Simulator *Simulator

	horizon float64
}

// Initialize validates and builds a runner from a configuration.
// seed, when non-nil, overrides the configuration seed.
func Initialize(c *Config, seed *int64) (*Runner, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	s, err := Build(c, seed)
	if err != nil {
		return nil, err
	}
	return &Runner{
		RunID:     uuid.NewString(),
		Config:    c,
		Simulator: s,
	}, nil
}

// Run executes the simulation up to the horizon and returns the event log.
func (r *Runner) Run(horizon float64) []eventlog.Record {
	r.horizon = horizon
	r.Simulator.Run(horizon)
	return r.Simulator.Recorder.Records()
}

// EventLog returns the accumulated event-log rows.
func (r *Runner) EventLog() []eventlog.Record {
	return r.Simulator.Recorder.Records()
}

// Results derives the KPIs from the event log.
func (r *Runner) Results() *kpi.Results {
	return kpi.Compute(r.Simulator.Recorder.Records(), r.horizon)
}
