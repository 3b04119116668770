package sim

import (
	"fmt"
	"sort"
)

// Build resolves a validated configuration into a runnable Simulator.
// Every cross-reference is resolved to an object handle here, once; the
// event loop never looks anything up by string.
//
// seedOverride, when non-nil, replaces the configuration seed.
func Build(c *Config, seedOverride *int64) (*Simulator, error) {
	seed := c.Seed
	if seedOverride != nil {
		seed = *seedOverride
	}
	sim := NewSimulator(seed)

	timeModels := make(map[string]TimeModel, len(c.TimeModels))
	for _, td := range c.TimeModels {
		tm, err := buildTimeModel(td, sim.Streams)
		if err != nil {
			return nil, err
		}
		timeModels[td.ID] = tm
	}

	processes := make(map[string]*Process, len(c.Processes))
	for _, pd := range c.Processes {
		p := &Process{
			ID:             pd.ID,
			TimeModel:      timeModels[pd.TimeModelID],
			Capability:     pd.Capability,
			LinkFrom:       pd.FromResource,
			LinkTo:         pd.ToResource,
			LotDependency:  pd.LotDependency,
			MaxLotSize:     pd.MaxLotSize,
			ToolDependency: pd.ToolDependency,
		}
		switch pd.Type {
		case "ProductionProcesses":
			p.Kind = ProductionProcess
		case "TransportProcesses":
			p.Kind = TransportProcess
		case "CapabilityProcess":
			p.Kind = CapabilityProcess
		case "RequiredCapabilityProcess":
			p.Kind = RequiredCapabilityProcess
		case "LinkTransportProcess":
			p.Kind = LinkTransportProcess
		}
		processes[pd.ID] = p
	}

	stores := make(map[string]*Store, len(c.Queues))
	for _, qd := range c.Queues {
		stores[qd.ID] = NewStore(qd.ID, qd.Capacity, qd.Location)
		sim.Stores = append(sim.Stores, stores[qd.ID])
	}

	stateByID := make(map[string]StateData, len(c.States))
	for _, sd := range c.States {
		stateByID[sd.ID] = sd
	}

	for _, rd := range c.Resources {
		res := NewResource(rd.ID, rd.Location, rd.Capacity)
		for _, pid := range rd.ProcessIDs {
			res.Processes = append(res.Processes, processes[pid])
		}
		res.ProcessCaps = append([]int{}, rd.ProcessCapacities...)

		for _, qid := range rd.InputQueues {
			st := stores[qid]
			st.Owner = rd.ID
			if st.Location == ([2]float64{}) {
				st.Location = locationOr(rd.InputLocation, rd.Location)
			}
			res.Input = append(res.Input, st)
		}
		for _, qid := range rd.OutputQueues {
			st := stores[qid]
			st.Owner = rd.ID
			if st.Location == ([2]float64{}) {
				st.Location = locationOr(rd.OutputLocation, rd.Location)
			}
			res.Output = append(res.Output, st)
		}

		policy, err := NewControlPolicy(rd.ControlPolicy)
		if err != nil {
			return nil, configErr("resource", rd.ID, "%v", err)
		}
		NewController(res, policy)

		for _, sid := range rd.StateIDs {
			sd := stateByID[sid]
			switch sd.Type {
			case StateBreakDown:
				NewBreakdownMachine(sid, res, nil, timeModels[sd.TimeModelID], timeModels[sd.RepairTimeModelID])
			case StateProcessBreakDown:
				proc := processes[sd.ProcessID]
				NewBreakdownMachine(sid, res, proc, timeModels[sd.TimeModelID], timeModels[sd.RepairTimeModelID])
			case StateSetup:
				res.AddSetup(sd.OriginSetup, sd.TargetSetup, sid, timeModels[sd.TimeModelID])
			}
		}

		sim.Resources = append(sim.Resources, res)
	}

	productByType := make(map[string]ProductData, len(c.Products))
	for _, pd := range c.Products {
		productByType[pd.ID] = pd
	}

	for _, sd := range c.Sinks {
		st := stores[sd.InputQueues[0]]
		st.Owner = sd.ID
		if st.Location == ([2]float64{}) {
			st.Location = sd.Location
		}
		sim.Sinks = append(sim.Sinks, NewSink(sd.ID, sd.Location, sd.ProductType, st))
	}

	for _, sd := range c.Sources {
		st := stores[sd.OutputQueues[0]]
		st.Owner = sd.ID
		if st.Location == ([2]float64{}) {
			st.Location = sd.Location
		}
		policy, err := NewRoutingPolicy(sd.RoutingHeuristic)
		if err != nil {
			return nil, configErr("source", sd.ID, "%v", err)
		}
		src := NewSource(sd.ID, sd.Location, sd.ProductType, timeModels[sd.TimeModelID], st, policy)

		pd, ok := productByType[sd.ProductType]
		if !ok {
			return nil, configErr("source", sd.ID, "unknown product type %q", sd.ProductType)
		}
		procs, adjacency := planTemplate(pd, processes)
		src.SetPlanTemplate(procs, adjacency, processes[pd.TransportProcess])

		sim.Sources = append(sim.Sources, src)
	}

	for _, ad := range c.Auxiliaries {
		for i, qid := range ad.Storages {
			st := stores[qid]
			sim.Aux.AddStorage(fmt.Sprintf("%s@%s", ad.ID, qid), st.Location, ad.ID, ad.QuantityInStorages[i])
		}
	}

	sim.Router = NewRouter(sim.Resources, sim.Sinks, sim.Streams.For(StreamRouter))
	sim.Wire()
	return sim, nil
}

func buildTimeModel(td TimeModelData, streams *StreamSet) (TimeModel, error) {
	switch {
	case td.DistributionFunction != "":
		return NewFunctionTimeModel(td.ID, td.DistributionFunction, td.Location, td.Scale, td.BatchSize, streams.For(td.ID))
	case td.Samples != nil:
		return NewSampleTimeModel(td.ID, td.Samples, td.Randomized, streams.For(td.ID))
	case td.Schedule != nil:
		return NewScheduleTimeModel(td.ID, td.Schedule, td.Cyclic, td.Absolute)
	case td.Speed != 0:
		return NewDistanceTimeModel(td.ID, td.Speed, td.ReactionTime, td.Metric)
	}
	return nil, configErr("time model", td.ID, "no variant fields populated")
}

// planTemplate resolves a product's plan data to process handles.
func planTemplate(pd ProductData, processes map[string]*Process) ([]*Process, map[string][]string) {
	if pd.Processes.List != nil {
		procs := make([]*Process, len(pd.Processes.List))
		for i, pid := range pd.Processes.List {
			procs[i] = processes[pid]
		}
		return procs, nil
	}
	seen := make(map[string]bool)
	var procs []*Process
	add := func(pid string) {
		if !seen[pid] {
			seen[pid] = true
			procs = append(procs, processes[pid])
		}
	}
	// Deterministic node order: sources first in sorted key order is not
	// needed; adjacency iteration must be stable, so collect keys sorted.
	for _, pid := range sortedKeys(pd.Processes.Adjacency) {
		add(pid)
		for _, to := range pd.Processes.Adjacency[pid] {
			add(to)
		}
	}
	return procs, pd.Processes.Adjacency
}

func locationOr(override *[2]float64, fallback [2]float64) [2]float64 {
	if override != nil {
		return *override
	}
	return fallback
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
