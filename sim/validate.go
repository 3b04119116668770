package sim

import "fmt"

// ConfigError names the offending record of an invalid configuration.
type ConfigError struct {
	Kind   string
	ID     string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Kind, e.ID, e.Reason)
}

func configErr(kind, id, format string, args ...any) *ConfigError {
	return &ConfigError{Kind: kind, ID: id, Reason: fmt.Sprintf(format, args...)}
}

// Validate checks the configuration before any component is built: unique
// ids, resolvable references, known enum values, non-negative capacities,
// acyclic precedence plans, and reachable processes. The first violation is
// returned.
func (c *Config) Validate() error {
	timeModels, err := uniqueIDs("time model", len(c.TimeModels), func(i int) string { return c.TimeModels[i].ID })
	if err != nil {
		return err
	}
	states, err := uniqueIDs("state", len(c.States), func(i int) string { return c.States[i].ID })
	if err != nil {
		return err
	}
	processes, err := uniqueIDs("process", len(c.Processes), func(i int) string { return c.Processes[i].ID })
	if err != nil {
		return err
	}
	queues, err := uniqueIDs("queue", len(c.Queues), func(i int) string { return c.Queues[i].ID })
	if err != nil {
		return err
	}
	if _, err := uniqueIDs("node", len(c.Nodes), func(i int) string { return c.Nodes[i].ID }); err != nil {
		return err
	}
	if _, err := uniqueIDs("resource", len(c.Resources), func(i int) string { return c.Resources[i].ID }); err != nil {
		return err
	}
	products, err := uniqueIDs("product", len(c.Products), func(i int) string { return c.Products[i].ID })
	if err != nil {
		return err
	}
	if _, err := uniqueIDs("sink", len(c.Sinks), func(i int) string { return c.Sinks[i].ID }); err != nil {
		return err
	}
	if _, err := uniqueIDs("source", len(c.Sources), func(i int) string { return c.Sources[i].ID }); err != nil {
		return err
	}
	if _, err := uniqueIDs("auxiliary", len(c.Auxiliaries), func(i int) string { return c.Auxiliaries[i].ID }); err != nil {
		return err
	}

	for _, tm := range c.TimeModels {
		if err := validateTimeModel(tm); err != nil {
			return err
		}
	}

	for _, sd := range c.States {
		switch sd.Type {
		case StateBreakDown:
			if sd.RepairTimeModelID == "" {
				return configErr("state", sd.ID, "breakdown state requires repair_time_model_id")
			}
			if !timeModels[sd.RepairTimeModelID] {
				return configErr("state", sd.ID, "unknown repair time model %q", sd.RepairTimeModelID)
			}
		case StateProcessBreakDown:
			if sd.RepairTimeModelID == "" {
				return configErr("state", sd.ID, "breakdown state requires repair_time_model_id")
			}
			if !timeModels[sd.RepairTimeModelID] {
				return configErr("state", sd.ID, "unknown repair time model %q", sd.RepairTimeModelID)
			}
			if !processes[sd.ProcessID] {
				return configErr("state", sd.ID, "unknown process %q", sd.ProcessID)
			}
		case StateSetup:
			if sd.OriginSetup == "" || sd.TargetSetup == "" {
				return configErr("state", sd.ID, "setup state requires origin_setup and target_setup")
			}
		default:
			return configErr("state", sd.ID, "unknown state type %q", sd.Type)
		}
		if !timeModels[sd.TimeModelID] {
			return configErr("state", sd.ID, "unknown time model %q", sd.TimeModelID)
		}
	}

	for _, pd := range c.Processes {
		switch pd.Type {
		case "ProductionProcesses", "TransportProcesses", "CapabilityProcess", "RequiredCapabilityProcess", "LinkTransportProcess":
		default:
			return configErr("process", pd.ID, "unknown process type %q", pd.Type)
		}
		if pd.Type != "RequiredCapabilityProcess" && !timeModels[pd.TimeModelID] {
			return configErr("process", pd.ID, "unknown time model %q", pd.TimeModelID)
		}
		if pd.Type == "LinkTransportProcess" {
			if pd.FromResource == "" || pd.ToResource == "" {
				return configErr("process", pd.ID, "link transport requires from_resource and to_resource")
			}
		}
		if pd.LotDependency && pd.MaxLotSize < 0 {
			return configErr("process", pd.ID, "negative max_lot_size %d", pd.MaxLotSize)
		}
	}

	for _, qd := range c.Queues {
		if qd.Capacity < 0 {
			return configErr("queue", qd.ID, "negative capacity %d", qd.Capacity)
		}
	}

	for _, rd := range c.Resources {
		if rd.Capacity < 0 {
			return configErr("resource", rd.ID, "negative capacity %d", rd.Capacity)
		}
		switch rd.Controller {
		case ControllerPipeline, ControllerTransport:
		default:
			return configErr("resource", rd.ID, "unknown controller %q", rd.Controller)
		}
		switch rd.ControlPolicy {
		case PolicyFIFO, PolicyLIFO, PolicySPT:
		case PolicySPTTransport:
			if rd.Controller != ControllerTransport {
				return configErr("resource", rd.ID, "control policy SPT_transport requires TransportController")
			}
		default:
			return configErr("resource", rd.ID, "unknown control policy %q", rd.ControlPolicy)
		}
		if len(rd.ProcessIDs) == 0 {
			return configErr("resource", rd.ID, "no processes")
		}
		for _, pid := range rd.ProcessIDs {
			if !processes[pid] {
				return configErr("resource", rd.ID, "unknown process %q", pid)
			}
		}
		if len(rd.ProcessCapacities) != 0 && len(rd.ProcessCapacities) != len(rd.ProcessIDs) {
			return configErr("resource", rd.ID, "process_capacities length %d does not match process_ids length %d",
				len(rd.ProcessCapacities), len(rd.ProcessIDs))
		}
		for _, pc := range rd.ProcessCapacities {
			if pc < 0 {
				return configErr("resource", rd.ID, "negative process capacity %d", pc)
			}
		}
		for _, sid := range rd.StateIDs {
			if !states[sid] {
				return configErr("resource", rd.ID, "unknown state %q", sid)
			}
		}
		for _, qid := range append(append([]string{}, rd.InputQueues...), rd.OutputQueues...) {
			if !queues[qid] {
				return configErr("resource", rd.ID, "unknown queue %q", qid)
			}
		}
		if rd.Controller == ControllerPipeline {
			if len(rd.InputQueues) == 0 || len(rd.OutputQueues) == 0 {
				return configErr("resource", rd.ID, "pipeline resource requires input and output queues")
			}
		}
	}

	for _, pd := range c.Products {
		if err := validatePlan(pd, processes); err != nil {
			return err
		}
		if pd.TransportProcess == "" || !processes[pd.TransportProcess] {
			return configErr("product", pd.ID, "unknown transport process %q", pd.TransportProcess)
		}
		if err := c.checkReachability(pd); err != nil {
			return err
		}
	}

	for _, sd := range c.Sinks {
		if !products[sd.ProductType] {
			return configErr("sink", sd.ID, "unknown product type %q", sd.ProductType)
		}
		if len(sd.InputQueues) == 0 {
			return configErr("sink", sd.ID, "no input queues")
		}
		for _, qid := range sd.InputQueues {
			if !queues[qid] {
				return configErr("sink", sd.ID, "unknown queue %q", qid)
			}
		}
	}

	for _, sd := range c.Sources {
		if !products[sd.ProductType] {
			return configErr("source", sd.ID, "unknown product type %q", sd.ProductType)
		}
		if !timeModels[sd.TimeModelID] {
			return configErr("source", sd.ID, "unknown time model %q", sd.TimeModelID)
		}
		switch sd.RoutingHeuristic {
		case RouteRandom, RouteShortestQueue, RouteFIFO:
		default:
			return configErr("source", sd.ID, "unknown routing heuristic %q", sd.RoutingHeuristic)
		}
		if len(sd.OutputQueues) == 0 {
			return configErr("source", sd.ID, "no output queues")
		}
		for _, qid := range sd.OutputQueues {
			if !queues[qid] {
				return configErr("source", sd.ID, "unknown queue %q", qid)
			}
		}
	}

	for _, ad := range c.Auxiliaries {
		if len(ad.QuantityInStorages) != len(ad.Storages) {
			return configErr("auxiliary", ad.ID, "quantity_in_storages length %d does not match storages length %d",
				len(ad.QuantityInStorages), len(ad.Storages))
		}
		for _, q := range ad.QuantityInStorages {
			if q < 0 {
				return configErr("auxiliary", ad.ID, "negative quantity %d", q)
			}
		}
		for _, qid := range ad.Storages {
			if !queues[qid] {
				return configErr("auxiliary", ad.ID, "unknown storage queue %q", qid)
			}
		}
	}

	return nil
}

func uniqueIDs(kind string, n int, id func(int) string) (map[string]bool, error) {
	set := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		v := id(i)
		if v == "" {
			return nil, configErr(kind, v, "missing ID")
		}
		if set[v] {
			return nil, configErr(kind, v, "duplicate ID")
		}
		set[v] = true
	}
	return set, nil
}

func validateTimeModel(tm TimeModelData) error {
	populated := 0
	if tm.DistributionFunction != "" {
		populated++
		switch tm.DistributionFunction {
		case DistConstant, DistNormal, DistLognormal, DistExponential:
		default:
			return configErr("time model", tm.ID, "unknown distribution function %q", tm.DistributionFunction)
		}
		if tm.BatchSize < 0 {
			return configErr("time model", tm.ID, "negative batch size %d", tm.BatchSize)
		}
	}
	if tm.Samples != nil {
		populated++
		if len(tm.Samples) == 0 {
			return configErr("time model", tm.ID, "empty sample list")
		}
	}
	if tm.Schedule != nil {
		populated++
		if len(tm.Schedule) == 0 {
			return configErr("time model", tm.ID, "empty schedule")
		}
	}
	if tm.Speed != 0 {
		populated++
		if tm.Speed < 0 {
			return configErr("time model", tm.ID, "negative speed %v", tm.Speed)
		}
		switch tm.Metric {
		case MetricManhattan, MetricEuclidean:
		default:
			return configErr("time model", tm.ID, "unknown metric %q", tm.Metric)
		}
	}
	if populated != 1 {
		return configErr("time model", tm.ID, "exactly one of distribution_function, samples, schedule, speed must be set")
	}
	return nil
}

func validatePlan(pd ProductData, processes map[string]bool) error {
	if pd.Processes.List != nil {
		for _, pid := range pd.Processes.List {
			if !processes[pid] {
				return configErr("product", pd.ID, "unknown process %q", pid)
			}
		}
		return nil
	}
	if pd.Processes.Adjacency == nil {
		return configErr("product", pd.ID, "empty process plan")
	}
	nodes := make(map[string]bool)
	for from, tos := range pd.Processes.Adjacency {
		nodes[from] = true
		for _, to := range tos {
			nodes[to] = true
		}
	}
	for pid := range nodes {
		if !processes[pid] {
			return configErr("product", pd.ID, "unknown process %q", pid)
		}
	}
	// Cycle check by iterative removal of zero-predecessor nodes.
	pending := make(map[string]int, len(nodes))
	for n := range nodes {
		pending[n] = 0
	}
	for _, tos := range pd.Processes.Adjacency {
		for _, to := range tos {
			pending[to]++
		}
	}
	removed := 0
	for changed := true; changed; {
		changed = false
		for n, p := range pending {
			if p == 0 {
				delete(pending, n)
				removed++
				changed = true
				for _, to := range pd.Processes.Adjacency[n] {
					if _, ok := pending[to]; ok {
						pending[to]--
					}
				}
			}
		}
	}
	if removed != len(nodes) {
		return configErr("product", pd.ID, "cycle in process precedence")
	}
	return nil
}

// checkReachability verifies some resource provides each plan process.
func (c *Config) checkReachability(pd ProductData) error {
	provided := make(map[string]bool)
	capabilities := make(map[string]bool)
	procByID := make(map[string]ProcessData, len(c.Processes))
	for _, p := range c.Processes {
		procByID[p.ID] = p
	}
	for _, rd := range c.Resources {
		for _, pid := range rd.ProcessIDs {
			provided[pid] = true
			if cap := procByID[pid].Capability; cap != "" {
				capabilities[cap] = true
			}
		}
	}
	reachable := func(pid string) bool {
		p := procByID[pid]
		if p.Type == "RequiredCapabilityProcess" {
			return capabilities[p.Capability]
		}
		return provided[pid]
	}
	var plan []string
	if pd.Processes.List != nil {
		plan = pd.Processes.List
	} else {
		seen := make(map[string]bool)
		for from, tos := range pd.Processes.Adjacency {
			if !seen[from] {
				seen[from] = true
				plan = append(plan, from)
			}
			for _, to := range tos {
				if !seen[to] {
					seen[to] = true
					plan = append(plan, to)
				}
			}
		}
	}
	for _, pid := range plan {
		if !reachable(pid) {
			return configErr("product", pd.ID, "process %q is not provided by any resource", pid)
		}
	}
	if !reachable(pd.TransportProcess) {
		return configErr("product", pd.ID, "transport process %q is not provided by any resource", pd.TransportProcess)
	}
	return nil
}
