package sim

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/exp/rand"
)

// Routing heuristic names accepted in configurations.
const (
	RouteRandom        = "random"
	RouteShortestQueue = "shortest_queue"
	RouteFIFO          = "FIFO"
)

// routeCandidate is one feasible (resource, matched process, input store)
// triple for an order. Sink candidates carry only the store.
type routeCandidate struct {
	res   *Resource
	proc  *Process
	store *Store
}

// id is the tie-break key of a candidate.
func (c routeCandidate) id() string {
	if c.res != nil {
		return c.res.ID
	}
	return c.store.ID
}

// RoutingPolicy orders feasible candidates and picks one.
type RoutingPolicy interface {
	Name() string
	Choose(cands []routeCandidate, rng *rand.Rand) routeCandidate
}

// randomRouting picks uniformly over feasible candidates.
type randomRouting struct{}

func (randomRouting) Name() string { return RouteRandom }
func (randomRouting) Choose(cands []routeCandidate, rng *rand.Rand) routeCandidate {
	return cands[rng.Intn(len(cands))]
}

// shortestQueueRouting picks the candidate with the fewest
// occupancy + reserved slots in its input store, ties by resource id.
type shortestQueueRouting struct{}

func (shortestQueueRouting) Name() string { return RouteShortestQueue }
func (shortestQueueRouting) Choose(cands []routeCandidate, _ *rand.Rand) routeCandidate {
	best := cands[0]
	for _, c := range cands[1:] {
		if c.store.Load() < best.store.Load() ||
			(c.store.Load() == best.store.Load() && c.id() < best.id()) {
			best = c
		}
	}
	return best
}

// fifoRouting picks the first feasible candidate in system registration
// order.
type fifoRouting struct{}

func (fifoRouting) Name() string { return RouteFIFO }
func (fifoRouting) Choose(cands []routeCandidate, _ *rand.Rand) routeCandidate {
	return cands[0]
}

// NewRoutingPolicy resolves a routing heuristic by its configuration name.
func NewRoutingPolicy(name string) (RoutingPolicy, error) {
	switch name {
	case RouteRandom:
		return randomRouting{}, nil
	case RouteShortestQueue:
		return shortestQueueRouting{}, nil
	case RouteFIFO:
		return fifoRouting{}, nil
	}
	return nil, fmt.Errorf("unknown routing heuristic %q", name)
}

// routeOrder asks for the product's next required process to be placed.
// required is nil for the final move into a sink.
type routeOrder struct {
	product  *Product
	required *Process
	policy   RoutingPolicy
	created  float64
}

// Router places each product's next required process on a resource,
// reserving the target input slot before any controller sees the request.
// Products with no feasible target park on a waitlist and are re-offered
// whenever any store frees capacity.
//
// Deadlock avoidance contract: the router never chooses a full target;
// controllers re-route transport whose reservation was withdrawn; lot
// members share one target queue; reservation ids are checked on every use.
type Router struct {
	resources []*Resource
	sinks     []*Sink
	rng       *rand.Rand

	waiting []*routeOrder

	retryScheduled bool
}

// NewRouter builds the system router over the registered resources and
// sinks. Resource order fixes FIFO candidate order.
func NewRouter(resources []*Resource, sinks []*Sink, rng *rand.Rand) *Router {
	return &Router{resources: resources, sinks: sinks, rng: rng}
}

// Submit routes the product's next required process, or parks the order
// when no candidate is feasible.
func (r *Router) Submit(sim *Simulator, ord *routeOrder) {
	if !r.tryRoute(sim, ord) {
		r.waiting = append(r.waiting, ord)
	}
}

// Reroute returns a transport request whose target reservation was
// withdrawn to routing. The stale production request at the old target is
// canceled first.
func (r *Router) Reroute(sim *Simulator, rq *Request) {
	if !rq.SinkMove {
		rq.Resource.Controller.removeForProduct(rq.Product, rq.Required)
	}
	r.Submit(sim, &routeOrder{
		product:  rq.Product,
		required: rq.Required,
		policy:   sim.policyFor(rq.Product),
		created:  sim.Sched.Now(),
	})
}

// NotifyFree is wired to every store's free-capacity signal. Parked orders
// are re-offered once per scheduler step, not once per freed slot.
func (r *Router) NotifyFree(sim *Simulator) {
	if len(r.waiting) == 0 || r.retryScheduled {
		return
	}
	r.retryScheduled = true
	sim.Sched.After(0, &routerRetry{r})
}

type routerRetry struct{ r *Router }

func (e *routerRetry) Execute(sim *Simulator) {
	r := e.r
	r.retryScheduled = false
	parked := r.waiting
	r.waiting = nil
	for _, ord := range parked {
		r.Submit(sim, ord)
	}
}

// tryRoute performs one routing attempt: enumerate, filter, choose,
// reserve, submit.
func (r *Router) tryRoute(sim *Simulator, ord *routeOrder) bool {
	if ord.required == nil {
		return r.routeToSink(sim, ord)
	}

	from := ""
	if ord.product.Location != nil {
		from = ord.product.Location.Owner
	}

	var cands []routeCandidate
	for _, res := range r.resources {
		proc := res.ProcFor(ord.required, from, "")
		if proc == nil {
			continue
		}
		for _, st := range res.Input {
			if st.CanAccept() {
				cands = append(cands, routeCandidate{res: res, proc: proc, store: st})
				break
			}
		}
	}
	if len(cands) == 0 {
		logrus.Debugf("[t=%.3f] no feasible target for %s process %s, parking", sim.Sched.Now(), ord.product.ID, ord.required.ID)
		return false
	}

	chosen := ord.policy.Choose(cands, r.rng)
	slot := sim.NewSlot()
	if !chosen.store.Reserve(slot) {
		panic(fmt.Sprintf("router: reservation on %s failed after feasibility check", chosen.store.ID))
	}

	prodReq := &Request{
		Product:  ord.product,
		Required: ord.required,
		Provided: chosen.proc,
		Resource: chosen.res,
		Target:   chosen.store,
		Slot:     slot,
		Arrival:  sim.Sched.Now(),
		seq:      sim.nextRequestSeq(),
	}

	if !r.dispatchTransport(sim, ord, chosen.store, slot, false, nil) {
		chosen.store.Release(slot)
		return false
	}
	chosen.res.Controller.Enqueue(sim, prodReq)
	return true
}

// routeToSink moves a finished product into a matching sink's input store.
func (r *Router) routeToSink(sim *Simulator, ord *routeOrder) bool {
	var cands []routeCandidate
	for _, sk := range r.sinks {
		if sk.ProductType != ord.product.Type {
			continue
		}
		if sk.Input.CanAccept() {
			cands = append(cands, routeCandidate{store: sk.Input})
		}
	}
	if len(cands) == 0 {
		return false
	}
	chosen := ord.policy.Choose(cands, r.rng)
	slot := sim.NewSlot()
	if !chosen.store.Reserve(slot) {
		panic(fmt.Sprintf("router: reservation on %s failed after feasibility check", chosen.store.ID))
	}
	sink := sim.sinkByStore(chosen.store)
	if !r.dispatchTransport(sim, ord, chosen.store, slot, true, sink) {
		chosen.store.Release(slot)
		return false
	}
	return true
}

// dispatchTransport routes the product's transport process to a transport
// resource carrying it from its current store to target.
func (r *Router) dispatchTransport(sim *Simulator, ord *routeOrder, target *Store, slot SlotID, sinkMove bool, sink *Sink) bool {
	tp := ord.product.TransportProcess
	from := ord.product.Location
	if from == nil {
		panic(fmt.Sprintf("router: product %s has no physical location to transport from", ord.product.ID))
	}

	var cands []routeCandidate
	for _, res := range r.resources {
		proc := res.ProcFor(tp, from.Owner, target.Owner)
		if proc == nil || !proc.IsTransport() {
			continue
		}
		cands = append(cands, routeCandidate{res: res, proc: proc, store: target})
	}
	if len(cands) == 0 {
		logrus.Debugf("[t=%.3f] no transporter for %s, parking", sim.Sched.Now(), ord.product.ID)
		return false
	}

	chosen := ord.policy.Choose(cands, r.rng)
	transReq := &Request{
		Product:   ord.product,
		Required:  ord.required,
		Provided:  chosen.proc,
		Resource:  resourceForProduction(sim, ord, target),
		Target:    target,
		Slot:      slot,
		Transport: true,
		From:      from,
		SinkMove:  sinkMove,
		Sink:      sink,
		Arrival:   sim.Sched.Now(),
		seq:       sim.nextRequestSeq(),
	}
	chosen.res.Controller.Enqueue(sim, transReq)
	return true
}

// resourceForProduction resolves the production resource that owns the
// target store, for re-route bookkeeping. Sink moves have none.
func resourceForProduction(sim *Simulator, ord *routeOrder, target *Store) *Resource {
	if ord.required == nil {
		return nil
	}
	return sim.resourceByStore(target)
}

// removeForProduct drops the pending production request for the given
// product and required process, if present.
func (c *Controller) removeForProduct(p *Product, required *Process) {
	for i, rq := range c.pending {
		if rq.Product == p && rq.Required == required && !rq.Transport {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			return
		}
	}
}
