package sim

import "fmt"

// Product is a work item traveling through its required processes.
// A product is created by a source, routed step by step through resources,
// and destroyed when it reaches a matching sink.
type Product struct {
	ID   string
	Type string
	Plan *Plan

	// TransportProcess is the product's required transport capability,
	// used to move it between stores.
	TransportProcess *Process

	// Routing is the heuristic of the source that created the product; it
	// governs every routing decision for this product.
	Routing RoutingPolicy

	// Location is the store the product physically sits in, nil while it
	// is being carried by a transport resource.
	Location *Store

	CreatedAt  float64
	FinishedAt float64

	// step counts completed processes. Monotone by construction: only
	// CompleteStep changes it, always by one.
	step int
}

// Step returns the number of completed plan processes.
func (p *Product) Step() int { return p.step }

// CompleteStep marks the given plan process finished and advances the step
// index.
func (p *Product) CompleteStep(proc *Process) {
	p.Plan.Complete(proc)
	p.step++
}

// Plan is a product's required process sequence: either a linear list or a
// precedence DAG. A DAG node is ready when all its predecessors have ended.
type Plan struct {
	linear []*Process // non-nil for list plans

	// DAG representation. order is the fixed node order given at
	// construction; ready-set iteration follows it, so it is deterministic.
	order      []*Process
	successors map[*Process][]*Process
	pending    map[*Process]int // remaining predecessor count

	done      map[*Process]bool
	requested map[*Process]bool

	// Linear plan cursor. Tracking by index, not by process, keeps plans
	// with a repeated process id correct.
	nextIdx       int
	nextRequested bool
}

// NewLinearPlan builds an ordered-list plan.
func NewLinearPlan(procs []*Process) *Plan {
	return &Plan{linear: procs}
}

// NewDAGPlan builds a precedence-graph plan from an adjacency map.
// order fixes iteration order; adjacency maps each node to its successors.
// Cycle freedom is checked at configuration validation.
func NewDAGPlan(order []*Process, adjacency map[*Process][]*Process) *Plan {
	pending := make(map[*Process]int, len(order))
	for _, p := range order {
		pending[p] = 0
	}
	for _, succs := range adjacency {
		for _, s := range succs {
			pending[s]++
		}
	}
	return &Plan{
		order:      order,
		successors: adjacency,
		pending:    pending,
		done:       make(map[*Process]bool),
		requested:  make(map[*Process]bool),
	}
}

// Ready returns the processes that may be requested now, in deterministic
// plan order, excluding ones already requested or done.
func (pl *Plan) Ready() []*Process {
	if pl.linear != nil {
		if pl.nextIdx >= len(pl.linear) || pl.nextRequested {
			return nil
		}
		return []*Process{pl.linear[pl.nextIdx]}
	}
	var ready []*Process
	for _, p := range pl.order {
		if pl.done[p] || pl.requested[p] || pl.pending[p] > 0 {
			continue
		}
		ready = append(ready, p)
	}
	return ready
}

// MarkRequested records that a request for the process is in flight.
func (pl *Plan) MarkRequested(p *Process) {
	if pl.linear != nil {
		pl.nextRequested = true
		return
	}
	pl.requested[p] = true
}

// Complete marks the process done and unlocks its successors.
func (pl *Plan) Complete(p *Process) {
	if pl.linear != nil {
		pl.nextIdx++
		pl.nextRequested = false
		return
	}
	if pl.done[p] {
		panic(fmt.Sprintf("plan: process %s completed twice", p.ID))
	}
	pl.done[p] = true
	for _, s := range pl.successors[p] {
		pl.pending[s]--
		if pl.pending[s] < 0 {
			panic(fmt.Sprintf("plan: predecessor count of %s went negative", s.ID))
		}
	}
}

// Finished reports whether every plan process has ended.
func (pl *Plan) Finished() bool {
	if pl.linear != nil {
		return pl.nextIdx >= len(pl.linear)
	}
	for _, p := range pl.order {
		if !pl.done[p] {
			return false
		}
	}
	return true
}
