package sim

import (
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/sdm4fzi/prodsys/sim/eventlog"
)

// ActivityKind enumerates the closed set of activity variants a resource
// can run.
type ActivityKind int

const (
	ActProduction ActivityKind = iota
	ActTransport
	ActSetup
)

// Activity is one in-flight occupation of a resource: a production step, a
// transport move, or a setup changeover. An activity is a small state
// machine advanced by scheduler wakeups; it suspends only while waiting for
// a duration and can be paused by breakdown machines, resuming with its
// remaining duration intact.
type Activity struct {
	kind ActivityKind
	res  *Resource
	proc *Process

	// reqs holds the dispatched request, or all members of a lot.
	reqs []*Request

	// stateID is the state name this activity logs under: the process id
	// for production/transport, the setup state id for setups.
	stateID string

	// phases are the remaining suspension durations. Production and setup
	// have one phase; transport has two (empty travel, loaded travel).
	phases []float64
	phase  int

	wake     *Wakeup
	phaseEnd float64

	// pausedBy counts breakdown machines currently holding this activity.
	pausedBy  int
	remaining float64

	tool *AuxCopy

	expectedEnd float64
}

func (a *Activity) productIDs() []string {
	ids := make([]string, len(a.reqs))
	for i, rq := range a.reqs {
		ids[i] = rq.Product.ID
	}
	return ids
}

func (a *Activity) stateType() eventlog.StateType {
	switch a.kind {
	case ActTransport:
		return eventlog.StateTypeTransport
	case ActSetup:
		return eventlog.StateTypeSetup
	}
	return eventlog.StateTypeProduction
}

// start begins the first phase and emits the start records, one per lot
// member so the log pairs start/end rows by (resource, state, product).
func (a *Activity) start(sim *Simulator) {
	now := sim.Sched.Now()
	var total float64
	for _, d := range a.phases {
		total += d
	}
	a.expectedEnd = now + total

	target := ""
	if len(a.reqs) > 0 && a.reqs[0].Target != nil {
		target = a.reqs[0].Target.ID
	}
	for _, id := range a.productIDs() {
		sim.Recorder.Append(eventlog.Record{
			Time:           now,
			Resource:       a.res.ID,
			State:          a.stateID,
			StateType:      a.stateType(),
			Activity:       eventlog.ActivityStart,
			Product:        id,
			ExpectedEnd:    a.expectedEnd,
			TargetLocation: target,
		})
	}
	if len(a.reqs) == 0 { // setup
		sim.Recorder.Append(eventlog.Record{
			Time:        now,
			Resource:    a.res.ID,
			State:       a.stateID,
			StateType:   a.stateType(),
			Activity:    eventlog.ActivityStart,
			ExpectedEnd: a.expectedEnd,
		})
	}
	a.res.activities[a] = true
	a.scheduleNextPhase(sim)
}

func (a *Activity) scheduleNextPhase(sim *Simulator) {
	d := a.phases[a.phase]
	a.phaseEnd = sim.Sched.Now() + d
	a.wake = sim.Sched.After(d, a)
}

// pause cancels the pending wakeup, remembering the remaining phase time.
// Nested pauses (resource plus process breakdown) stack.
func (a *Activity) pause(sim *Simulator) {
	a.pausedBy++
	if a.pausedBy > 1 {
		return
	}
	a.remaining = a.phaseEnd - sim.Sched.Now()
	if a.remaining < 0 {
		a.remaining = 0
	}
	a.wake.Cancel()
	a.wake = nil
	now := sim.Sched.Now()
	for _, id := range a.productIDs() {
		sim.Recorder.Append(eventlog.Record{
			Time:      now,
			Resource:  a.res.ID,
			State:     a.stateID,
			StateType: a.stateType(),
			Activity:  eventlog.ActivityStartInterrupt,
			Product:   id,
		})
	}
}

// resume reschedules the interrupted phase with its remaining duration.
func (a *Activity) resume(sim *Simulator) {
	a.pausedBy--
	if a.pausedBy > 0 {
		return
	}
	now := sim.Sched.Now()
	a.phaseEnd = now + a.remaining
	a.wake = sim.Sched.After(a.remaining, a)
	var rest float64
	for i := a.phase + 1; i < len(a.phases); i++ {
		rest += a.phases[i]
	}
	a.expectedEnd = a.phaseEnd + rest
	for _, id := range a.productIDs() {
		sim.Recorder.Append(eventlog.Record{
			Time:        now,
			Resource:    a.res.ID,
			State:       a.stateID,
			StateType:   a.stateType(),
			Activity:    eventlog.ActivityEndInterrupt,
			Product:     id,
			ExpectedEnd: a.expectedEnd,
		})
	}
}

// Execute advances the activity past its current phase.
func (a *Activity) Execute(sim *Simulator) {
	switch a.kind {
	case ActTransport:
		a.executeTransportPhase(sim)
	default:
		a.finish(sim)
	}
}

func (a *Activity) executeTransportPhase(sim *Simulator) {
	rq := a.reqs[0]
	if a.phase == 0 {
		// Arrived at the origin store: pick the product up.
		rq.From.Remove(rq.Product)
		rq.Product.Location = nil
		a.res.Location = rq.From.Location
		a.phase = 1
		a.scheduleNextPhase(sim)
		return
	}
	a.finish(sim)
}

// finish emits end records, releases resources, and hands results onward.
func (a *Activity) finish(sim *Simulator) {
	now := sim.Sched.Now()
	delete(a.res.activities, a)
	a.res.active--
	if a.proc != nil {
		a.res.procActive[a.proc]--
	}
	if a.tool != nil {
		sim.Aux.Release(a.tool, a.res.Location)
		a.tool = nil
	}

	switch a.kind {
	case ActSetup:
		sim.Recorder.Append(eventlog.Record{
			Time:      now,
			Resource:  a.res.ID,
			State:     a.stateID,
			StateType: eventlog.StateTypeSetup,
			Activity:  eventlog.ActivityEnd,
		})
		// The controller re-evaluates with the new configuration.
		a.res.Controller.finishSetup()
		a.res.Controller.Poke(sim)

	case ActProduction:
		for _, rq := range a.reqs {
			sim.Recorder.Append(eventlog.Record{
				Time:           now,
				Resource:       a.res.ID,
				State:          a.stateID,
				StateType:      eventlog.StateTypeProduction,
				Activity:       eventlog.ActivityEnd,
				Product:        rq.Product.ID,
				TargetLocation: rq.OutStore.ID,
			})
			rq.OutStore.Commit(rq.OutSlot, rq.Product)
			rq.Product.CompleteStep(rq.Required)
		}
		logrus.Debugf("[t=%.3f] %s finished %s for %s", now, a.res.ID, a.stateID, strings.Join(a.productIDs(), ","))
		for _, rq := range a.reqs {
			sim.advanceProduct(rq.Product)
		}
		a.res.Controller.Poke(sim)

	case ActTransport:
		rq := a.reqs[0]
		a.res.Location = rq.Target.Location
		rq.Target.Commit(rq.Slot, rq.Product)
		sim.Recorder.Append(eventlog.Record{
			Time:           now,
			Resource:       a.res.ID,
			State:          a.stateID,
			StateType:      eventlog.StateTypeTransport,
			Activity:       eventlog.ActivityEnd,
			Product:        rq.Product.ID,
			TargetLocation: rq.Target.ID,
		})
		if rq.SinkMove {
			sim.finishProduct(rq.Product, rq.Sink)
		} else {
			// The product is now physically at its production resource;
			// its waiting request may have become executable.
			rq.Resource.Controller.Poke(sim)
		}
		a.res.Controller.Poke(sim)
	}
}

// truncate logs in-flight work cut off by the horizon.
func (a *Activity) truncate(sim *Simulator, horizon float64) {
	ids := a.productIDs()
	if len(ids) == 0 {
		ids = []string{""}
	}
	for _, id := range ids {
		sim.Recorder.Append(eventlog.Record{
			Time:        horizon,
			Resource:    a.res.ID,
			State:       a.stateID,
			StateType:   a.stateType(),
			Activity:    eventlog.ActivityTruncated,
			Product:     id,
			ExpectedEnd: a.expectedEnd,
		})
	}
}
