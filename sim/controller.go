package sim

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Control policy names accepted in configurations.
const (
	PolicyFIFO         = "FIFO"
	PolicyLIFO         = "LIFO"
	PolicySPT          = "SPT"
	PolicySPTTransport = "SPT_transport"
)

// Controller kind names accepted in configurations.
const (
	ControllerPipeline  = "PipelineController"
	ControllerTransport = "TransportController"
)

// ControlPolicy picks the next request from the currently executable ones.
// Implementations never preempt in-flight work; they only order the pending
// list. Ties are broken by submission order (request seq).
type ControlPolicy interface {
	Name() string
	Select(res *Resource, executable []*Request) *Request
}

// fifoPolicy dispatches the oldest submission first.
type fifoPolicy struct{}

func (fifoPolicy) Name() string { return PolicyFIFO }
func (fifoPolicy) Select(_ *Resource, execs []*Request) *Request {
	best := execs[0]
	for _, rq := range execs[1:] {
		if rq.seq < best.seq {
			best = rq
		}
	}
	return best
}

// lifoPolicy dispatches the newest submission first.
type lifoPolicy struct{}

func (lifoPolicy) Name() string { return PolicyLIFO }
func (lifoPolicy) Select(_ *Resource, execs []*Request) *Request {
	best := execs[0]
	for _, rq := range execs[1:] {
		if rq.seq > best.seq {
			best = rq
		}
	}
	return best
}

// sptPolicy dispatches the request with the smallest expected process
// duration, FIFO on ties.
type sptPolicy struct{}

func (sptPolicy) Name() string { return PolicySPT }
func (sptPolicy) Select(_ *Resource, execs []*Request) *Request {
	best := execs[0]
	bestT := best.Provided.TimeModel.Expected(TimeContext{})
	for _, rq := range execs[1:] {
		t := rq.Provided.TimeModel.Expected(TimeContext{})
		if t < bestT || (t == bestT && rq.seq < best.seq) {
			best = rq
			bestT = t
		}
	}
	return best
}

// sptTransportPolicy dispatches the move with the smallest total travel:
// resource to product origin plus origin to target.
type sptTransportPolicy struct{}

func (sptTransportPolicy) Name() string { return PolicySPTTransport }
func (sptTransportPolicy) Select(res *Resource, execs []*Request) *Request {
	cost := func(rq *Request) float64 {
		tm := rq.Provided.TimeModel
		approach := tm.Expected(TimeContext{Origin: res.Location, Target: rq.From.Location})
		haul := tm.Expected(TimeContext{Origin: rq.From.Location, Target: rq.Target.Location})
		return approach + haul
	}
	best := execs[0]
	bestC := cost(best)
	for _, rq := range execs[1:] {
		c := cost(rq)
		if c < bestC || (c == bestC && rq.seq < best.seq) {
			best = rq
			bestC = c
		}
	}
	return best
}

// NewControlPolicy resolves a policy by its configuration name.
func NewControlPolicy(name string) (ControlPolicy, error) {
	switch name {
	case PolicyFIFO:
		return fifoPolicy{}, nil
	case PolicyLIFO:
		return lifoPolicy{}, nil
	case PolicySPT:
		return sptPolicy{}, nil
	case PolicySPTTransport:
		return sptTransportPolicy{}, nil
	}
	return nil, fmt.Errorf("unknown control policy %q", name)
}

// Controller owns the pipeline of requests pending at one resource and
// dispatches them under its policy whenever an opportunity arises: a slot
// frees, a request arrives, a setup or repair completes.
type Controller struct {
	res    *Resource
	policy ControlPolicy

	pending []*Request

	// setupActive is the process id a running changeover is configuring
	// for; empty when no setup is in flight.
	setupActive string

	poking bool
}

// NewController builds a controller for the resource.
func NewController(res *Resource, policy ControlPolicy) *Controller {
	c := &Controller{res: res, policy: policy}
	res.Controller = c
	return c
}

// Policy returns the controller's sequencing policy.
func (c *Controller) Policy() ControlPolicy { return c.policy }

// PendingLen returns the number of requests awaiting dispatch.
func (c *Controller) PendingLen() int { return len(c.pending) }

// Enqueue submits a request and immediately looks for dispatch work.
func (c *Controller) Enqueue(sim *Simulator, rq *Request) {
	c.pending = append(c.pending, rq)
	c.Poke(sim)
}

// remove drops the request from the pending list.
func (c *Controller) remove(rq *Request) {
	for i, p := range c.pending {
		if p == rq {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			return
		}
	}
}

// Poke dispatches executable requests until capacity or work runs out.
// Reentrant pokes (a dispatch consequence re-poking this controller) fold
// into the outer loop.
func (c *Controller) Poke(sim *Simulator) {
	if c.poking {
		return
	}
	c.poking = true
	defer func() { c.poking = false }()

	for {
		c.rerouteInvalid(sim)
		execs := c.executables(sim)
		if len(execs) == 0 {
			return
		}
		rq := c.policy.Select(c.res, execs)
		c.dispatch(sim, rq)
	}
}

// rerouteInvalid returns transport requests whose target reservation has
// been withdrawn to the router before any of them can be started.
func (c *Controller) rerouteInvalid(sim *Simulator) {
	var stale []*Request
	for _, rq := range c.pending {
		if rq.Transport && !rq.Target.HasReservation(rq.Slot) {
			stale = append(stale, rq)
		}
	}
	for _, rq := range stale {
		c.remove(rq)
		logrus.Debugf("[t=%.3f] %s: reservation for %s withdrawn, re-routing", sim.Sched.Now(), c.res.ID, rq.Product.ID)
		sim.Router.Reroute(sim, rq)
	}
}

// executables filters pending requests down to those that could start now,
// preserving submission order.
func (c *Controller) executables(sim *Simulator) []*Request {
	var out []*Request
	for _, rq := range c.pending {
		if c.executable(sim, rq) {
			out = append(out, rq)
		}
	}
	return out
}

func (c *Controller) executable(sim *Simulator, rq *Request) bool {
	res := c.res
	if !res.available(rq.Provided) {
		return false
	}
	if !res.hasFreeCapacity(rq.Provided) {
		return false
	}
	if rq.Provided.ToolDependency != "" && !sim.Aux.Available(rq.Provided.ToolDependency) {
		return false
	}
	if rq.Transport {
		// The product must still sit at its origin and the destination
		// reservation must hold.
		return rq.From.Contains(rq.Product) && rq.Target.HasReservation(rq.Slot)
	}
	// Production: the product must have physically arrived, no changeover
	// may be in flight, and a result slot must be available.
	if res.inputStoreWith(rq.Product) == nil {
		return false
	}
	if c.setupActive != "" {
		return false
	}
	if res.reservableOutput() == nil {
		return false
	}
	return true
}

// dispatch starts the chosen request: a changeover first when the current
// configuration does not match, otherwise the activity itself.
func (c *Controller) dispatch(sim *Simulator, rq *Request) {
	res := c.res

	if !rq.Transport {
		if tm, stateID := res.setupFor(rq.Provided); tm != nil {
			c.startSetup(sim, rq, tm, stateID)
			return
		}
	}

	c.remove(rq)
	if rq.Transport {
		c.startTransport(sim, rq)
		return
	}
	c.startProduction(sim, rq)
}

func (c *Controller) startSetup(sim *Simulator, rq *Request, tm TimeModel, stateID string) {
	res := c.res
	c.setupActive = rq.Provided.ID
	res.active++
	d := tm.Sample(TimeContext{})
	a := &Activity{
		kind:    ActSetup,
		res:     res,
		stateID: stateID,
		phases:  []float64{d},
	}
	a.start(sim)
}

// finishSetup is called by the setup activity on completion.
func (c *Controller) finishSetup() {
	c.res.currentConfig = c.setupActive
	c.setupActive = ""
}

func (c *Controller) startProduction(sim *Simulator, rq *Request) {
	res := c.res
	members := []*Request{rq}

	// Lot formation: group executable requests sharing process, setup
	// configuration, and target queue into one batched activity.
	if rq.Provided.LotDependency && rq.Provided.MaxLotSize > 1 {
		for _, other := range c.executables(sim) {
			if len(members) >= rq.Provided.MaxLotSize {
				break
			}
			if other == rq || other.Provided != rq.Provided {
				continue
			}
			members = append(members, other)
		}
	}

	outStore := res.reservableOutput()
	kept := members[:0]
	for _, m := range members {
		if !outStore.CanAccept() {
			// The lot is split where the shared target queue runs out.
			break
		}
		m.OutStore = outStore
		m.OutSlot = sim.NewSlot()
		if !outStore.Reserve(m.OutSlot) {
			break
		}
		kept = append(kept, m)
	}
	members = kept

	for _, m := range members {
		c.remove(m)
		in := res.inputStoreWith(m.Product)
		in.Remove(m.Product)
		m.Product.Location = nil
	}

	res.currentConfig = rq.Provided.ID
	res.active++
	res.procActive[rq.Provided]++

	a := &Activity{
		kind:    ActProduction,
		res:     res,
		proc:    rq.Provided,
		reqs:    members,
		stateID: rq.Provided.ID,
		phases:  []float64{rq.Provided.TimeModel.Sample(TimeContext{})},
	}
	if rq.Provided.ToolDependency != "" {
		a.tool = sim.Aux.Acquire(rq.Provided.ToolDependency, res.Location)
	}
	a.start(sim)
}

func (c *Controller) startTransport(sim *Simulator, rq *Request) {
	res := c.res
	tm := rq.Provided.TimeModel
	approach := tm.Sample(TimeContext{Origin: res.Location, Target: rq.From.Location})
	haul := tm.Sample(TimeContext{Origin: rq.From.Location, Target: rq.Target.Location})

	res.active++
	res.procActive[rq.Provided]++

	a := &Activity{
		kind:    ActTransport,
		res:     res,
		proc:    rq.Provided,
		reqs:    []*Request{rq},
		stateID: rq.Provided.ID,
		phases:  []float64{approach, haul},
	}
	if rq.Provided.ToolDependency != "" {
		a.tool = sim.Aux.Acquire(rq.Provided.ToolDependency, res.Location)
	}
	a.start(sim)
}
