package sim

import (
	"encoding/json"
	"fmt"
)

// Config is the stable wire format: a declarative description of a
// production system. All cross-references are by ID; resolution to object
// handles happens once at build time.
type Config struct {
	ID   string `json:"ID"`
	Seed int64  `json:"seed"`

	TimeModels  []TimeModelData `json:"time_model_data"`
	States      []StateData     `json:"state_data"`
	Processes   []ProcessData   `json:"process_data"`
	Queues      []QueueData     `json:"queue_data"`
	Nodes       []NodeData      `json:"node_data"`
	Resources   []ResourceData  `json:"resource_data"`
	Products    []ProductData   `json:"product_data"`
	Sinks       []SinkData      `json:"sink_data"`
	Sources     []SourceData    `json:"source_data"`
	Auxiliaries []AuxiliaryData `json:"auxiliary_data"`

	Scenario            json.RawMessage `json:"scenario_data"`
	ValidConfiguration  bool            `json:"valid_configuration"`
	ReconfigurationCost float64         `json:"reconfiguration_cost"`
}

// TimeModelData describes one time model. The variant is discriminated by
// which field group is populated: distribution_function (function model),
// samples (sample model), schedule (schedule model), or speed (distance
// model).
type TimeModelData struct {
	ID          string `json:"ID"`
	Description string `json:"description"`

	// Function model.
	DistributionFunction string  `json:"distribution_function,omitempty"`
	Location             float64 `json:"location,omitempty"`
	Scale                float64 `json:"scale,omitempty"`
	BatchSize            int     `json:"batch_size,omitempty"`

	// Sample model.
	Samples    []float64 `json:"samples,omitempty"`
	Randomized bool      `json:"randomized,omitempty"`

	// Schedule model.
	Schedule []float64 `json:"schedule,omitempty"`
	Cyclic   bool      `json:"cyclic,omitempty"`
	Absolute bool      `json:"absolute,omitempty"`

	// Distance model.
	Speed        float64 `json:"speed,omitempty"`
	ReactionTime float64 `json:"reaction_time,omitempty"`
	Metric       string  `json:"metric,omitempty"`
}

// State type names accepted in configurations.
const (
	StateBreakDown        = "BreakDownState"
	StateProcessBreakDown = "ProcessBreakDownState"
	StateSetup            = "SetupState"
)

// StateData describes one resource state machine.
type StateData struct {
	ID          string `json:"ID"`
	Description string `json:"description"`
	Type        string `json:"type"`
	TimeModelID string `json:"time_model_id"`

	// Breakdown variants.
	RepairTimeModelID string `json:"repair_time_model_id,omitempty"`

	// Process breakdown.
	ProcessID string `json:"process_id,omitempty"`

	// Setup.
	OriginSetup string `json:"origin_setup,omitempty"`
	TargetSetup string `json:"target_setup,omitempty"`
}

// ProcessData describes one process.
type ProcessData struct {
	ID          string `json:"ID"`
	Description string `json:"description"`
	Type        string `json:"type"`
	TimeModelID string `json:"time_model_id"`

	Capability string `json:"capability,omitempty"`

	// Link transport endpoints.
	FromResource string `json:"from_resource,omitempty"`
	ToResource   string `json:"to_resource,omitempty"`

	// Lot formation.
	LotDependency bool `json:"lot_dependency,omitempty"`
	MaxLotSize    int  `json:"max_lot_size,omitempty"`

	// Auxiliary requirement.
	ToolDependency string `json:"tool_dependency,omitempty"`
}

// QueueData describes one store. Capacity 0 means unbounded.
type QueueData struct {
	ID          string     `json:"ID"`
	Description string     `json:"description"`
	Capacity    int        `json:"capacity"`
	Location    [2]float64 `json:"location,omitempty"`
}

// NodeData is a named position used by link transport pathing.
type NodeData struct {
	ID          string     `json:"ID"`
	Description string     `json:"description"`
	Location    [2]float64 `json:"location"`
}

// ResourceData describes one resource.
type ResourceData struct {
	ID          string     `json:"ID"`
	Description string     `json:"description"`
	Capacity    int        `json:"capacity"`
	Location    [2]float64 `json:"location"`

	InputLocation  *[2]float64 `json:"input_location,omitempty"`
	OutputLocation *[2]float64 `json:"output_location,omitempty"`

	Controller    string `json:"controller"`
	ControlPolicy string `json:"control_policy"`

	ProcessIDs        []string `json:"process_ids"`
	ProcessCapacities []int    `json:"process_capacities,omitempty"`
	StateIDs          []string `json:"state_ids,omitempty"`

	InputQueues  []string `json:"input_queues,omitempty"`
	OutputQueues []string `json:"output_queues,omitempty"`
}

// PlanSpec is a product's required process structure: either an ordered
// list of process ids or a precedence adjacency map.
type PlanSpec struct {
	List      []string
	Adjacency map[string][]string
}

// UnmarshalJSON accepts both wire shapes of the processes field.
func (ps *PlanSpec) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		ps.List = list
		ps.Adjacency = nil
		return nil
	}
	var adj map[string][]string
	if err := json.Unmarshal(data, &adj); err == nil {
		ps.List = nil
		ps.Adjacency = adj
		return nil
	}
	return fmt.Errorf("processes must be a list of ids or an adjacency map")
}

// MarshalJSON writes the list form when present, the adjacency otherwise.
func (ps PlanSpec) MarshalJSON() ([]byte, error) {
	if ps.Adjacency != nil {
		return json.Marshal(ps.Adjacency)
	}
	return json.Marshal(ps.List)
}

// ProductData describes one product type. The ID doubles as the product
// type name.
type ProductData struct {
	ID               string   `json:"ID"`
	Description      string   `json:"description"`
	Processes        PlanSpec `json:"processes"`
	TransportProcess string   `json:"transport_process"`
}

// SinkData describes one sink.
type SinkData struct {
	ID          string     `json:"ID"`
	Description string     `json:"description"`
	ProductType string     `json:"product_type"`
	Location    [2]float64 `json:"location"`
	InputQueues []string   `json:"input_queues"`
}

// SourceData describes one source.
type SourceData struct {
	ID               string     `json:"ID"`
	Description      string     `json:"description"`
	ProductType      string     `json:"product_type"`
	Location         [2]float64 `json:"location"`
	TimeModelID      string     `json:"time_model_id"`
	RoutingHeuristic string     `json:"routing_heuristic"`
	OutputQueues     []string   `json:"output_queues"`
}

// AuxiliaryData describes one auxiliary primitive type: how many copies
// sit in which storage queues. The ID doubles as the auxiliary type name
// referenced by tool dependencies.
type AuxiliaryData struct {
	ID                 string   `json:"ID"`
	Description        string   `json:"description"`
	QuantityInStorages []int    `json:"quantity_in_storages"`
	Storages           []string `json:"storages"`
}
