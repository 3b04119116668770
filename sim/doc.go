// Package sim implements a single-threaded, cooperative discrete-event
// simulation engine for production systems modeled under the
// Product-Process-Resource paradigm.
//
// A declarative configuration (see Config) describes arrival sources,
// transformation processes, processing and transport resources, routing and
// sequencing policies, stores, and stochastic breakdown and setup behavior.
// The engine advances a logical clock over a priority queue of wakeups,
// interleaves resource activities, routes products through their required
// process sequences, and emits a complete event log from which throughput,
// work-in-process, throughput time, and per-resource time-in-state KPIs are
// derived (see the kpi subpackage).
//
// Determinism: for a given seed and configuration a run is bit-identical
// across executions. Events at equal simulated time resume in insertion
// order, every time model draws from its own RNG stream derived from the
// run seed, and the engine is strictly single-threaded.
package sim
