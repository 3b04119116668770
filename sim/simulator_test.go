package sim

import (
	"reflect"
	"testing"

	"github.com/sdm4fzi/prodsys/sim/eventlog"
	"github.com/sdm4fzi/prodsys/sim/kpi"
)

// lineConfig is a single-machine line: source -> transport -> machine ->
// transport -> sink. The smallest complete system the engine runs.
func lineConfig(seed int64) *Config {
	return &Config{
		ID:   "line",
		Seed: seed,
		TimeModels: []TimeModelData{
			{ID: "tm_arrival", DistributionFunction: DistExponential, Location: 1.5, BatchSize: 100},
			{ID: "tm_mill", DistributionFunction: DistNormal, Location: 1.0, Scale: 0.1, BatchSize: 100},
			{ID: "tm_move", DistributionFunction: DistNormal, Location: 0.3, Scale: 0.2, BatchSize: 100},
		},
		Processes: []ProcessData{
			{ID: "P1", Type: "ProductionProcesses", TimeModelID: "tm_mill"},
			{ID: "TP", Type: "TransportProcesses", TimeModelID: "tm_move"},
		},
		Queues: []QueueData{
			{ID: "q_src_out"},
			{ID: "q_m1_in"},
			{ID: "q_m1_out"},
			{ID: "q_sink_in"},
		},
		Resources: []ResourceData{
			{
				ID: "M1", Capacity: 1, Location: [2]float64{5, 0},
				Controller: ControllerPipeline, ControlPolicy: PolicyFIFO,
				ProcessIDs:  []string{"P1"},
				InputQueues: []string{"q_m1_in"}, OutputQueues: []string{"q_m1_out"},
			},
			{
				ID: "TR1", Capacity: 1, Location: [2]float64{0, 0},
				Controller: ControllerTransport, ControlPolicy: PolicyFIFO,
				ProcessIDs: []string{"TP"},
			},
		},
		Products: []ProductData{
			{ID: "prod_a", Processes: PlanSpec{List: []string{"P1"}}, TransportProcess: "TP"},
		},
		Sinks: []SinkData{
			{ID: "K1", ProductType: "prod_a", Location: [2]float64{10, 0}, InputQueues: []string{"q_sink_in"}},
		},
		Sources: []SourceData{
			{ID: "S1", ProductType: "prod_a", Location: [2]float64{0, 0}, TimeModelID: "tm_arrival",
				RoutingHeuristic: RouteShortestQueue, OutputQueues: []string{"q_src_out"}},
		},
	}
}

func runConfig(t *testing.T, c *Config, horizon float64) (*Simulator, []eventlog.Record) {
	t.Helper()
	s, err := Build(c, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	s.Run(horizon)
	return s, s.Recorder.Records()
}

func TestSimulator_LineProducesAndTerminates(t *testing.T) {
	s, records := runConfig(t, lineConfig(0), 60)

	if s.FinishedCount() == 0 {
		t.Fatal("no products reached the sink")
	}
	if len(records) == 0 {
		t.Fatal("empty event log")
	}

	// Log times never decrease.
	for i := 1; i < len(records); i++ {
		if records[i].Time < records[i-1].Time {
			t.Fatalf("log time regressed at row %d: %v after %v", i, records[i].Time, records[i-1].Time)
		}
	}

	// Queue invariant holds at the end of the run.
	for _, st := range s.Stores {
		if st.Capacity != 0 && st.Occupancy()+st.Reserved() > st.Capacity {
			t.Errorf("store %s over capacity: %d+%d > %d", st.ID, st.Occupancy(), st.Reserved(), st.Capacity)
		}
	}
}

func TestSimulator_DeterministicRuns(t *testing.T) {
	// GIVEN two runs with identical config and seed
	_, a := runConfig(t, lineConfig(24), 120)
	_, b := runConfig(t, lineConfig(24), 120)

	// THEN the event logs are identical
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("event logs differ: %d vs %d rows", len(a), len(b))
	}

	// AND the derived KPIs are identical
	ka := kpi.Compute(a, 120)
	kb := kpi.Compute(b, 120)
	if !reflect.DeepEqual(ka, kb) {
		t.Error("KPIs differ between identical runs")
	}
}

func TestSimulator_SeedsDiverge(t *testing.T) {
	_, a := runConfig(t, lineConfig(0), 60)
	_, b := runConfig(t, lineConfig(1), 60)
	if reflect.DeepEqual(a, b) {
		t.Error("different seeds produced identical event logs")
	}
}

func TestSimulator_ZeroDurationProcessesTerminate(t *testing.T) {
	// GIVEN all processing and transport at constant 0 and arrivals at 1
	c := lineConfig(3)
	c.TimeModels = []TimeModelData{
		{ID: "tm_arrival", DistributionFunction: DistConstant, Location: 1},
		{ID: "tm_mill", DistributionFunction: DistConstant, Location: 0},
		{ID: "tm_move", DistributionFunction: DistConstant, Location: 0},
	}

	// WHEN run to a horizon
	s, _ := runConfig(t, c, 50)

	// THEN the run advances purely via inter-arrival times and every
	// arrived product is finished instantly
	if s.FinishedCount() < 48 {
		t.Errorf("finished %d products, want ~49", s.FinishedCount())
	}
	if s.WIP() > 1 {
		t.Errorf("WIP with zero processing times: got %d", s.WIP())
	}
}

func TestSimulator_TruncationLogsInFlightWork(t *testing.T) {
	// GIVEN a process far longer than the horizon
	c := lineConfig(0)
	c.TimeModels[0] = TimeModelData{ID: "tm_arrival", DistributionFunction: DistConstant, Location: 1}
	c.TimeModels[1] = TimeModelData{ID: "tm_mill", DistributionFunction: DistConstant, Location: 1000}

	_, records := runConfig(t, c, 20)

	found := false
	for _, r := range records {
		if r.Activity == eventlog.ActivityTruncated {
			found = true
			if r.Time != 20 {
				t.Errorf("truncation row at %v, want horizon 20", r.Time)
			}
		}
	}
	if !found {
		t.Error("no truncated rows for in-flight work at the horizon")
	}
}

// overflowConfig has two machines providing the same process with bounded
// input queues and arrivals faster than combined service.
func overflowConfig(seed int64) *Config {
	c := lineConfig(seed)
	c.ID = "overflow"
	c.TimeModels[0] = TimeModelData{ID: "tm_arrival", DistributionFunction: DistConstant, Location: 0.2}
	c.Queues = []QueueData{
		{ID: "q_src_out"},
		{ID: "q_m1_in", Capacity: 2},
		{ID: "q_m1_out"},
		{ID: "q_m2_in", Capacity: 2},
		{ID: "q_m2_out"},
		{ID: "q_sink_in"},
	}
	c.Resources = []ResourceData{
		{
			ID: "M1", Capacity: 1, Location: [2]float64{5, 0},
			Controller: ControllerPipeline, ControlPolicy: PolicyFIFO,
			ProcessIDs:  []string{"P1"},
			InputQueues: []string{"q_m1_in"}, OutputQueues: []string{"q_m1_out"},
		},
		{
			ID: "M2", Capacity: 1, Location: [2]float64{5, 5},
			Controller: ControllerPipeline, ControlPolicy: PolicyFIFO,
			ProcessIDs:  []string{"P1"},
			InputQueues: []string{"q_m2_in"}, OutputQueues: []string{"q_m2_out"},
		},
		{
			ID: "TR1", Capacity: 1, Location: [2]float64{0, 0},
			Controller: ControllerTransport, ControlPolicy: PolicyFIFO,
			ProcessIDs: []string{"TP"},
		},
	}
	return c
}

func TestSimulator_OverflowReRoutesWithoutDeadlock(t *testing.T) {
	s, _ := runConfig(t, overflowConfig(5), 120)

	// Both machines receive work under shortest_queue and nothing jams.
	if s.FinishedCount() == 0 {
		t.Fatal("overloaded system finished nothing: deadlock")
	}
	for _, st := range s.Stores {
		if st.Capacity != 0 && st.Occupancy()+st.Reserved() > st.Capacity {
			t.Errorf("store %s over capacity", st.ID)
		}
	}
	results := kpi.Compute(s.Recorder.Records(), 120)
	if results.PartsMade["M1"] == 0 || results.PartsMade["M2"] == 0 {
		t.Errorf("shortest_queue left a machine idle: M1=%d M2=%d",
			results.PartsMade["M1"], results.PartsMade["M2"])
	}
}

// breakdownConfig adds a breakdown/repair machine with fixed sample-sequence
// times to the line.
func breakdownConfig(seed int64) *Config {
	c := lineConfig(seed)
	c.ID = "breakdown"
	// Sample-sequence failure times keep the downtime share deterministic.
	c.TimeModels = append(c.TimeModels,
		TimeModelData{ID: "tm_ttf", Samples: []float64{150, 200, 180}},
		TimeModelData{ID: "tm_repair", Samples: []float64{10}},
	)
	c.States = []StateData{
		{ID: "BS1", Type: StateBreakDown, TimeModelID: "tm_ttf", RepairTimeModelID: "tm_repair"},
	}
	c.Resources[0].StateIDs = []string{"BS1"}
	return c
}

func TestSimulator_BreakdownProducesDowntime(t *testing.T) {
	s, records := runConfig(t, breakdownConfig(2), 1000)

	results := kpi.Compute(records, 1000)
	shares := results.ResourceStates["M1"]

	// Failures follow 150, 200, 180 (cycled) up-times with repairs of 10:
	// five breakdowns fall inside the horizon, so UD is 50/1000 = 5%.
	if shares.UD <= 0 {
		t.Error("no downtime recorded despite breakdown state")
	}
	if shares.UD > 30 {
		t.Errorf("implausible downtime share %.2f%%", shares.UD)
	}
	if s.FinishedCount() == 0 {
		t.Error("breakdowns stalled the line completely")
	}

	sum := shares.PR + shares.SB + shares.ST + shares.UD
	if sum < 99.9 || sum > 100.1 {
		t.Errorf("M1 state shares sum to %.3f%%, want 100%%", sum)
	}
}

// setupConfig is a work center running two processes with directed
// changeovers, fed by two alternating product types.
func setupConfig(seed int64, policy string) *Config {
	return &Config{
		ID:   "setup",
		Seed: seed,
		TimeModels: []TimeModelData{
			{ID: "tm_arrival", DistributionFunction: DistConstant, Location: 2},
			{ID: "tm_p1", DistributionFunction: DistConstant, Location: 0.8},
			{ID: "tm_p2", DistributionFunction: DistConstant, Location: 1.0},
			{ID: "tm_setup12", DistributionFunction: DistConstant, Location: 0.2},
			{ID: "tm_setup21", DistributionFunction: DistConstant, Location: 0.3},
			{ID: "tm_move", DistributionFunction: DistConstant, Location: 0.1},
		},
		Processes: []ProcessData{
			{ID: "P1", Type: "ProductionProcesses", TimeModelID: "tm_p1"},
			{ID: "P2", Type: "ProductionProcesses", TimeModelID: "tm_p2"},
			{ID: "TP", Type: "TransportProcesses", TimeModelID: "tm_move"},
		},
		States: []StateData{
			{ID: "SU12", Type: StateSetup, TimeModelID: "tm_setup12", OriginSetup: "P1", TargetSetup: "P2"},
			{ID: "SU21", Type: StateSetup, TimeModelID: "tm_setup21", OriginSetup: "P2", TargetSetup: "P1"},
		},
		Queues: []QueueData{
			{ID: "q_s1_out"}, {ID: "q_s2_out"},
			{ID: "q_wc_in"}, {ID: "q_wc_out"},
			{ID: "q_k1_in"}, {ID: "q_k2_in"},
		},
		Resources: []ResourceData{
			{
				ID: "WC", Capacity: 1, Location: [2]float64{5, 0},
				Controller: ControllerPipeline, ControlPolicy: policy,
				ProcessIDs: []string{"P1", "P2"},
				StateIDs:   []string{"SU12", "SU21"},
				InputQueues: []string{"q_wc_in"}, OutputQueues: []string{"q_wc_out"},
			},
			{
				ID: "TR1", Capacity: 2, Location: [2]float64{0, 0},
				Controller: ControllerTransport, ControlPolicy: PolicyFIFO,
				ProcessIDs: []string{"TP"},
			},
		},
		Products: []ProductData{
			{ID: "housing_1", Processes: PlanSpec{List: []string{"P1", "P2"}}, TransportProcess: "TP"},
			{ID: "housing_2", Processes: PlanSpec{List: []string{"P2", "P1"}}, TransportProcess: "TP"},
		},
		Sinks: []SinkData{
			{ID: "K1", ProductType: "housing_1", Location: [2]float64{10, 0}, InputQueues: []string{"q_k1_in"}},
			{ID: "K2", ProductType: "housing_2", Location: [2]float64{10, 5}, InputQueues: []string{"q_k2_in"}},
		},
		Sources: []SourceData{
			{ID: "S1", ProductType: "housing_1", Location: [2]float64{0, 0}, TimeModelID: "tm_arrival",
				RoutingHeuristic: RouteFIFO, OutputQueues: []string{"q_s1_out"}},
			{ID: "S2", ProductType: "housing_2", Location: [2]float64{0, 5}, TimeModelID: "tm_arrival",
				RoutingHeuristic: RouteFIFO, OutputQueues: []string{"q_s2_out"}},
		},
	}
}

func TestSimulator_SetupsConsumeTime(t *testing.T) {
	_, records := runConfig(t, setupConfig(9, PolicyFIFO), 200)

	results := kpi.Compute(records, 200)
	shares := results.ResourceStates["WC"]
	if shares.ST <= 0 {
		t.Fatal("alternating process mix produced no setup time")
	}
	sum := shares.PR + shares.SB + shares.ST + shares.UD
	if sum < 99.9 || sum > 100.1 {
		t.Errorf("WC state shares sum to %.3f%%, want 100%%", sum)
	}

	setupStarts := 0
	for _, r := range records {
		if r.StateType == eventlog.StateTypeSetup && r.Activity == eventlog.ActivityStart {
			setupStarts++
		}
	}
	if setupStarts == 0 {
		t.Error("no setup state transitions logged")
	}
}

func TestSimulator_MultiCapacitySetupSharesSumToHorizon(t *testing.T) {
	// GIVEN the setup work center with two slots, so a changeover can run
	// while the other slot is still producing
	c := setupConfig(13, PolicyFIFO)
	c.Resources[0].Capacity = 2

	_, records := runConfig(t, c, 200)

	results := kpi.Compute(records, 200)
	for res, shares := range results.ResourceStates {
		sum := shares.PR + shares.SB + shares.ST + shares.UD
		if sum < 99.9 || sum > 100.1 {
			t.Errorf("%s state shares sum to %.3f%%, want 100%%", res, sum)
		}
	}
	if results.ResourceStates["WC"].ST <= 0 {
		t.Error("two-slot work center produced no setup time")
	}
}

func TestSimulator_SPTReducesSetupShare(t *testing.T) {
	_, fifoRecords := runConfig(t, setupConfig(9, PolicyFIFO), 200)
	_, sptRecords := runConfig(t, setupConfig(9, PolicySPT), 200)

	fifoST := kpi.Compute(fifoRecords, 200).ResourceStates["WC"].ST
	sptST := kpi.Compute(sptRecords, 200).ResourceStates["WC"].ST

	// SPT groups same-configuration work (shorter process first on ties),
	// cutting changeovers relative to strict arrival order.
	if sptST > fifoST {
		t.Errorf("ST share: SPT %.2f%% > FIFO %.2f%%", sptST, fifoST)
	}
}

func TestSimulator_DAGPlanRespectsPrecedence(t *testing.T) {
	c := lineConfig(1)
	c.ID = "dag"
	c.TimeModels = append(c.TimeModels, TimeModelData{ID: "tm_fast", DistributionFunction: DistConstant, Location: 0.5})
	c.Processes = []ProcessData{
		{ID: "P1", Type: "ProductionProcesses", TimeModelID: "tm_mill"},
		{ID: "P2", Type: "ProductionProcesses", TimeModelID: "tm_fast"},
		{ID: "P3", Type: "ProductionProcesses", TimeModelID: "tm_fast"},
		{ID: "TP", Type: "TransportProcesses", TimeModelID: "tm_move"},
	}
	c.Resources[0].ProcessIDs = []string{"P1", "P2", "P3"}
	c.Products = []ProductData{
		{
			ID:               "prod_a",
			Processes:        PlanSpec{Adjacency: map[string][]string{"P1": {"P3"}, "P2": {"P3"}}},
			TransportProcess: "TP",
		},
	}

	s, records := runConfig(t, c, 60)
	if s.FinishedCount() == 0 {
		t.Fatal("DAG plan never completed")
	}

	// P3 must never end before both P1 and P2 ended, per product.
	ends := make(map[string]map[string]float64)
	for _, r := range records {
		if r.StateType == eventlog.StateTypeProduction && r.Activity == eventlog.ActivityEnd {
			if ends[r.Product] == nil {
				ends[r.Product] = make(map[string]float64)
			}
			ends[r.Product][r.State] = r.Time
		}
	}
	for product, m := range ends {
		t3, ok := m["P3"]
		if !ok {
			continue
		}
		if t3 < m["P1"] || t3 < m["P2"] {
			t.Errorf("product %s: P3 ended at %v before predecessors (P1=%v P2=%v)", product, t3, m["P1"], m["P2"])
		}
	}
}

func TestSimulator_AuxiliaryToolGatesWork(t *testing.T) {
	c := lineConfig(4)
	c.ID = "aux"
	// Constant times so the line is provably drained at the horizon and
	// the tool copy must be back in storage.
	c.TimeModels = []TimeModelData{
		{ID: "tm_arrival", DistributionFunction: DistConstant, Location: 5},
		{ID: "tm_mill", DistributionFunction: DistConstant, Location: 1},
		{ID: "tm_move", DistributionFunction: DistConstant, Location: 0.3},
	}
	c.Processes[0].ToolDependency = "fixture"
	c.Queues = append(c.Queues, QueueData{ID: "q_tools", Location: [2]float64{5, 1}})
	c.Auxiliaries = []AuxiliaryData{
		{ID: "fixture", QuantityInStorages: []int{1}, Storages: []string{"q_tools"}},
	}

	s, _ := runConfig(t, c, 58)
	if s.FinishedCount() == 0 {
		t.Fatal("tool-gated line finished nothing")
	}
	// The single copy must be back in a storage once the line drains.
	if !s.Aux.Available("fixture") {
		t.Error("tool copy not released after activities completed")
	}
}

func TestSimulator_LotFormationBatches(t *testing.T) {
	c := lineConfig(6)
	c.ID = "lots"
	c.TimeModels[0] = TimeModelData{ID: "tm_arrival", DistributionFunction: DistConstant, Location: 0.1}
	c.TimeModels[1] = TimeModelData{ID: "tm_mill", DistributionFunction: DistConstant, Location: 2}
	// Fast transport so the input queue builds pressure during each batch.
	c.TimeModels[2] = TimeModelData{ID: "tm_move", DistributionFunction: DistConstant, Location: 0.05}
	c.Processes[0].LotDependency = true
	c.Processes[0].MaxLotSize = 3

	s, records := runConfig(t, c, 80)
	if s.FinishedCount() == 0 {
		t.Fatal("lot-forming line finished nothing")
	}

	// At least one dispatch must batch several products: multiple start
	// rows for the production state at the same instant.
	startsAt := make(map[float64]int)
	for _, r := range records {
		if r.Resource == "M1" && r.StateType == eventlog.StateTypeProduction && r.Activity == eventlog.ActivityStart {
			startsAt[r.Time]++
		}
	}
	batched := false
	for _, n := range startsAt {
		if n > 1 {
			batched = true
			break
		}
	}
	if !batched {
		t.Error("no lot was ever formed despite queue pressure")
	}
}
