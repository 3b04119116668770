package sim

// Resource is an actor that executes processes. It owns its controller, its
// breakdown machines, and its in-flight activities. Stationary resources
// produce; transport resources move products between stores.
type Resource struct {
	ID       string
	Location [2]float64

	// Capacity bounds concurrent activities (0 = unbounded).
	Capacity  int
	Processes []*Process
	// ProcessCaps is parallel to Processes; 0 means bounded only by the
	// resource capacity.
	ProcessCaps []int

	Input  []*Store
	Output []*Store

	Controller *Controller
	Machines   []*BreakdownMachine

	// setups[origin][target] is the changeover time model between process
	// configurations. A missing direction means no setup is needed.
	setups        map[string]map[string]TimeModel
	setupStateIDs map[string]map[string]string
	currentConfig string

	active     int
	procActive map[*Process]int
	down       bool
	procDown   map[*Process]bool

	activities map[*Activity]bool
}

// NewResource builds a resource shell; processes, stores, controller, and
// machines are attached by the config builder.
func NewResource(id string, location [2]float64, capacity int) *Resource {
	return &Resource{
		ID:            id,
		Location:      location,
		Capacity:      capacity,
		setups:        make(map[string]map[string]TimeModel),
		setupStateIDs: make(map[string]map[string]string),
		procActive:    make(map[*Process]int),
		procDown:      make(map[*Process]bool),
		activities:    make(map[*Activity]bool),
	}
}

// AddSetup registers a directed changeover between two process
// configurations, logged under the given state id.
func (r *Resource) AddSetup(origin, target, stateID string, tm TimeModel) {
	if r.setups[origin] == nil {
		r.setups[origin] = make(map[string]TimeModel)
		r.setupStateIDs[origin] = make(map[string]string)
	}
	r.setups[origin][target] = tm
	r.setupStateIDs[origin][target] = stateID
}

// setupFor returns the changeover time model and state id required before
// executing proc, or nil when the current configuration is compatible.
func (r *Resource) setupFor(proc *Process) (TimeModel, string) {
	if r.currentConfig == "" || r.currentConfig == proc.ID {
		return nil, ""
	}
	tm := r.setups[r.currentConfig][proc.ID]
	if tm == nil {
		return nil, ""
	}
	return tm, r.setupStateIDs[r.currentConfig][proc.ID]
}

// ProcFor returns the resource-side process satisfying the required process
// for a move between the named owners, or nil. Owners matter only for link
// transport matching.
func (r *Resource) ProcFor(required *Process, from, to string) *Process {
	for _, p := range r.Processes {
		if p.Provides(required, from, to) {
			return p
		}
	}
	return nil
}

// capFor returns the concurrency bound of the given process (0 = bounded
// only by resource capacity).
func (r *Resource) capFor(proc *Process) int {
	for i, p := range r.Processes {
		if p == proc {
			if i < len(r.ProcessCaps) {
				return r.ProcessCaps[i]
			}
			return 0
		}
	}
	return 0
}

// hasFreeCapacity reports whether one more activity of proc may start.
func (r *Resource) hasFreeCapacity(proc *Process) bool {
	if r.Capacity > 0 && r.active >= r.Capacity {
		return false
	}
	if c := r.capFor(proc); c > 0 && r.procActive[proc] >= c {
		return false
	}
	return true
}

// available reports whether proc may start with respect to breakdowns.
// A whole-resource breakdown blocks everything; a process breakdown blocks
// only the matching process.
func (r *Resource) available(proc *Process) bool {
	return !r.down && !r.procDown[proc]
}

// inputStoreWith returns the input store currently holding the product.
func (r *Resource) inputStoreWith(p *Product) *Store {
	for _, st := range r.Input {
		if p.Location == st {
			return st
		}
	}
	return nil
}

// reservableOutput returns the first output store that can accept one more
// product, or nil. A resource without output stores always gets nil, so its
// production requests never become executable.
func (r *Resource) reservableOutput() *Store {
	for _, st := range r.Output {
		if st.CanAccept() {
			return st
		}
	}
	return nil
}
