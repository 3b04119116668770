// sim/simulator.go
package sim

import (
	"github.com/sirupsen/logrus"

	"github.com/sdm4fzi/prodsys/sim/eventlog"
)

// Simulator is the core object that holds simulation time, the production
// system state, and the event loop. It owns every component for the run's
// duration. Single-threaded and cooperative: only the currently resumed
// continuation executes, so no locks exist anywhere in the engine.
type Simulator struct {
	Sched    *Scheduler
	Streams  *StreamSet
	Recorder *eventlog.Recorder
	Horizon  float64

	Resources []*Resource
	Sources   []*Source
	Sinks     []*Sink
	Stores    []*Store
	Router    *Router
	Aux       *AuxPool

	resourceByStoreID map[string]*Resource
	sinkByStoreID     map[string]*Sink

	alive         map[string]*Product
	finished      int
	productCounts map[string]int

	nextSlot SlotID
	nextSeq  uint64
}

// NewSimulator wires an empty simulator around a seed. Components are
// attached by the config builder before Run.
func NewSimulator(seed int64) *Simulator {
	return &Simulator{
		Sched:             NewScheduler(),
		Streams:           NewStreamSet(NewSimulationKey(seed)),
		Recorder:          eventlog.NewRecorder(),
		Aux:               NewAuxPool(),
		resourceByStoreID: make(map[string]*Resource),
		sinkByStoreID:     make(map[string]*Sink),
		alive:             make(map[string]*Product),
		productCounts:     make(map[string]int),
	}
}

// NewSlot issues the next reservation id. Slot ids are monotone across the
// whole run so a mismatch is always detectable.
func (sim *Simulator) NewSlot() SlotID {
	sim.nextSlot++
	return sim.nextSlot
}

func (sim *Simulator) nextRequestSeq() uint64 {
	sim.nextSeq++
	return sim.nextSeq
}

func (sim *Simulator) nextProductIndex(productType string) int {
	sim.productCounts[productType]++
	return sim.productCounts[productType]
}

// WIP returns the number of products currently inside the system.
func (sim *Simulator) WIP() int { return len(sim.alive) }

// FinishedCount returns the number of products that reached a sink.
func (sim *Simulator) FinishedCount() int { return sim.finished }

func (sim *Simulator) registerProduct(p *Product) {
	sim.alive[p.ID] = p
}

func (sim *Simulator) resourceByStore(st *Store) *Resource {
	return sim.resourceByStoreID[st.ID]
}

func (sim *Simulator) sinkByStore(st *Store) *Sink {
	return sim.sinkByStoreID[st.ID]
}

func (sim *Simulator) policyFor(p *Product) RoutingPolicy {
	return p.Routing
}

// Wire finalizes cross-component plumbing after the builder attached all
// components: store ownership indexes, free-capacity fan-out, and breakdown
// machines. Must be called exactly once before Run.
func (sim *Simulator) Wire() {
	for _, res := range sim.Resources {
		for _, st := range res.Input {
			sim.resourceByStoreID[st.ID] = res
		}
		for _, st := range res.Output {
			sim.resourceByStoreID[st.ID] = res
		}
	}
	for _, sk := range sim.Sinks {
		sim.sinkByStoreID[sk.Input.ID] = sk
	}
	for _, st := range sim.Stores {
		st.SubscribeFree(sim.onStoreFree)
	}
	sim.Aux.SubscribeRelease(sim.onAuxRelease)
}

// onStoreFree fans freed capacity out to the router's waitlist and to
// paused source arrival loops.
func (sim *Simulator) onStoreFree() {
	sim.Router.NotifyFree(sim)
	for _, s := range sim.Sources {
		s.onOutputFree(sim)
	}
}

// onAuxRelease re-pokes every controller; tool-blocked requests may have
// become executable. Resource registration order keeps this deterministic.
func (sim *Simulator) onAuxRelease() {
	for _, res := range sim.Resources {
		res.Controller.Poke(sim)
	}
}

// advanceProduct submits requests for every plan process that became ready,
// or routes the product to its sink when the plan is complete.
func (sim *Simulator) advanceProduct(p *Product) {
	if p.Plan.Finished() {
		sim.Router.Submit(sim, &routeOrder{
			product: p,
			policy:  p.Routing,
			created: sim.Sched.Now(),
		})
		return
	}
	// A product is physical: even when a DAG plan has several ready
	// processes, only the first (in deterministic plan order) is requested;
	// the rest follow as completions re-enter here.
	ready := p.Plan.Ready()
	if len(ready) == 0 {
		return
	}
	proc := ready[0]
	p.Plan.MarkRequested(proc)
	sim.Router.Submit(sim, &routeOrder{
		product:  p,
		required: proc,
		policy:   p.Routing,
		created:  sim.Sched.Now(),
	})
}

// finishProduct destroys a product that arrived at its sink.
func (sim *Simulator) finishProduct(p *Product, sk *Sink) {
	now := sim.Sched.Now()
	p.FinishedAt = now
	sk.Input.Remove(p)
	p.Location = nil
	delete(sim.alive, p.ID)
	sim.finished++
	sim.Recorder.Append(eventlog.Record{
		Time:      now,
		Resource:  sk.ID,
		State:     sk.ID,
		StateType: eventlog.StateTypeSink,
		Activity:  eventlog.ActivityEnd,
		Product:   p.ID,
	})
	logrus.Debugf("[t=%.3f] %s consumed %s", now, sk.ID, p.ID)
}

// Run executes the event loop up to the horizon. Events scheduled at
// t >= horizon are not popped; in-flight activities are logged as
// truncated. For a given seed and configuration the resulting event log is
// bit-identical across executions.
func (sim *Simulator) Run(horizon float64) {
	defer func() {
		if r := recover(); r != nil {
			// Engine invariant violations carry enough context to
			// reproduce: seed, current time, last event index.
			logrus.Errorf("engine invariant violated at t=%.3f (seed %d, %d events logged): %v",
				sim.Sched.Now(), int64(sim.Streams.Key()), sim.Recorder.Len(), r)
			panic(r)
		}
	}()
	sim.Horizon = horizon
	for _, s := range sim.Sources {
		s.Start(sim)
	}
	for _, res := range sim.Resources {
		for _, m := range res.Machines {
			m.Arm(sim)
		}
	}

	for {
		w := sim.Sched.Next()
		if w == nil {
			break
		}
		if w.Time() >= horizon {
			w.Cancel()
			break
		}
		logrus.Debugf("[t=%.3f] executing %T", w.Time(), w.event)
		w.event.Execute(sim)
	}
	sim.Sched.clock = horizon

	for _, res := range sim.Resources {
		for _, a := range res.orderedActivities() {
			a.truncate(sim, horizon)
		}
	}
	logrus.Infof("[t=%.3f] simulation ended: %d finished, %d in progress", horizon, sim.finished, len(sim.alive))
}
