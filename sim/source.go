package sim

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/sdm4fzi/prodsys/sim/eventlog"
)

// Source generates products: it repeatedly samples its inter-arrival time
// model, creates a product of its declared type, places it in its output
// store, and immediately initiates routing for the product's first process.
// A full (bounded) output store pauses the arrival loop until a slot frees.
type Source struct {
	ID          string
	Location    [2]float64
	ProductType string
	Arrival     TimeModel
	Output      *Store
	Routing     RoutingPolicy

	// plan template resolved from the product type's configuration.
	planProcs        []*Process
	planAdjacency    map[string][]string
	transportProcess *Process

	created int
	blocked *Product
}

// NewSource builds a source shell; the plan template is attached by the
// config builder.
func NewSource(id string, location [2]float64, productType string, arrival TimeModel, output *Store, routing RoutingPolicy) *Source {
	return &Source{
		ID:          id,
		Location:    location,
		ProductType: productType,
		Arrival:     arrival,
		Output:      output,
		Routing:     routing,
	}
}

// SetPlanTemplate fixes the process plan every product of this source gets.
// adjacency is nil for linear plans.
func (s *Source) SetPlanTemplate(procs []*Process, adjacency map[string][]string, transport *Process) {
	s.planProcs = procs
	s.planAdjacency = adjacency
	s.transportProcess = transport
}

// Start schedules the first arrival.
func (s *Source) Start(sim *Simulator) {
	d := s.Arrival.Sample(TimeContext{})
	if math.IsInf(d, 1) {
		return
	}
	sim.Sched.After(d, &sourceArrival{s})
}

type sourceArrival struct{ s *Source }

func (e *sourceArrival) Execute(sim *Simulator) {
	s := e.s
	now := sim.Sched.Now()

	p := s.newProduct(sim)
	sim.Recorder.Append(eventlog.Record{
		Time:           now,
		Resource:       s.ID,
		State:          s.ID,
		StateType:      eventlog.StateTypeSource,
		Activity:       eventlog.ActivityCreated,
		Product:        p.ID,
		TargetLocation: s.Output.ID,
	})
	logrus.Debugf("[t=%.3f] %s created %s", now, s.ID, p.ID)

	if s.Output.Put(p) {
		sim.registerProduct(p)
		sim.advanceProduct(p)
		s.Start(sim)
		return
	}
	// Bounded output store is full: the arrival loop pauses until the
	// store signals free capacity.
	s.blocked = p
	logrus.Debugf("[t=%.3f] %s output full, arrival loop paused", now, s.ID)
}

// onOutputFree resumes a paused arrival loop.
func (s *Source) onOutputFree(sim *Simulator) {
	if s.blocked == nil {
		return
	}
	if !s.Output.Put(s.blocked) {
		return
	}
	p := s.blocked
	s.blocked = nil
	sim.registerProduct(p)
	sim.advanceProduct(p)
	s.Start(sim)
}

// newProduct instantiates the next product with a fresh deterministic id
// and a private copy of the plan template.
func (s *Source) newProduct(sim *Simulator) *Product {
	s.created++
	id := fmt.Sprintf("%s_%d", s.ProductType, sim.nextProductIndex(s.ProductType))

	var plan *Plan
	if s.planAdjacency == nil {
		plan = NewLinearPlan(s.planProcs)
	} else {
		byID := make(map[string]*Process, len(s.planProcs))
		for _, p := range s.planProcs {
			byID[p.ID] = p
		}
		adj := make(map[*Process][]*Process, len(s.planAdjacency))
		for from, tos := range s.planAdjacency {
			for _, to := range tos {
				adj[byID[from]] = append(adj[byID[from]], byID[to])
			}
		}
		plan = NewDAGPlan(s.planProcs, adj)
	}

	return &Product{
		ID:               id,
		Type:             s.ProductType,
		Plan:             plan,
		TransportProcess: s.transportProcess,
		Routing:          s.Routing,
		CreatedAt:        sim.Sched.Now(),
	}
}
