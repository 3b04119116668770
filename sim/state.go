package sim

import (
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/sdm4fzi/prodsys/sim/eventlog"
)

// BreakdownMachine is the concurrent failure state machine of one resource:
// it loops sample(ttf) -> down for sample(repair) -> up. A whole-resource
// machine preempts every running activity; a process-scoped machine pauses
// only activities of its process and leaves the rest of the resource
// accepting work.
type BreakdownMachine struct {
	StateID string
	res     *Resource
	proc    *Process // nil = whole resource
	ttf     TimeModel
	repair  TimeModel

	down       bool
	repairEnds float64
}

// NewBreakdownMachine attaches a breakdown machine to a resource. proc is
// nil for whole-resource breakdowns.
func NewBreakdownMachine(stateID string, res *Resource, proc *Process, ttf, repair TimeModel) *BreakdownMachine {
	m := &BreakdownMachine{StateID: stateID, res: res, proc: proc, ttf: ttf, repair: repair}
	res.Machines = append(res.Machines, m)
	return m
}

func (m *BreakdownMachine) stateType() eventlog.StateType {
	if m.proc != nil {
		return eventlog.StateTypeProcessBreakdown
	}
	return eventlog.StateTypeBreakdown
}

// Arm schedules the first failure.
func (m *BreakdownMachine) Arm(sim *Simulator) {
	sim.Sched.After(m.ttf.Sample(TimeContext{}), &breakdownFire{m})
}

// covers reports whether this machine preempts the given activity.
// Setups are tied to the whole resource, so a process-scoped machine lets
// them run.
func (m *BreakdownMachine) covers(a *Activity) bool {
	if m.proc == nil {
		return true
	}
	return a.proc == m.proc
}

type breakdownFire struct{ m *BreakdownMachine }

func (e *breakdownFire) Execute(sim *Simulator) {
	m := e.m
	now := sim.Sched.Now()
	repairTime := m.repair.Sample(TimeContext{})
	m.down = true
	m.repairEnds = now + repairTime
	if m.proc == nil {
		m.res.down = true
	} else {
		m.res.procDown[m.proc] = true
	}
	logrus.Debugf("[t=%.3f] %s breakdown %s for %.3f", now, m.res.ID, m.StateID, repairTime)

	sim.Recorder.Append(eventlog.Record{
		Time:        now,
		Resource:    m.res.ID,
		State:       m.StateID,
		StateType:   m.stateType(),
		Activity:    eventlog.ActivityStart,
		ExpectedEnd: m.repairEnds,
	})
	// Deterministic pause order: iterate in-flight activities in request
	// submission order rather than map order.
	for _, a := range m.res.orderedActivities() {
		if m.covers(a) {
			a.pause(sim)
		}
	}
	sim.Sched.After(repairTime, &repairDone{m})
}

type repairDone struct{ m *BreakdownMachine }

func (e *repairDone) Execute(sim *Simulator) {
	m := e.m
	now := sim.Sched.Now()
	m.down = false
	if m.proc == nil {
		m.res.down = false
	} else {
		m.res.procDown[m.proc] = false
	}
	sim.Recorder.Append(eventlog.Record{
		Time:      now,
		Resource:  m.res.ID,
		State:     m.StateID,
		StateType: m.stateType(),
		Activity:  eventlog.ActivityEnd,
	})
	for _, a := range m.res.orderedActivities() {
		if m.covers(a) {
			a.resume(sim)
		}
	}
	m.res.Controller.Poke(sim)
	sim.Sched.After(m.ttf.Sample(TimeContext{}), &breakdownFire{m})
}

// orderedActivities returns in-flight activities in deterministic order
// (by the seq of their first request; setups carry no request and sort
// first).
func (r *Resource) orderedActivities() []*Activity {
	out := make([]*Activity, 0, len(r.activities))
	for a := range r.activities {
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return activitySeq(out[i]) < activitySeq(out[j])
	})
	return out
}

func activitySeq(a *Activity) uint64 {
	if len(a.reqs) == 0 {
		return 0
	}
	return a.reqs[0].seq
}
