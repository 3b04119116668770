package sim

import "container/heap"

// Event is a continuation resumed by the scheduler at its wakeup time.
// Each event advances simulation state when invoked.
type Event interface {
	Execute(sim *Simulator)
}

// Wakeup is a scheduled resumption of an Event at a point in simulated time.
// seq is a monotone insertion counter breaking ties deterministically:
// events at equal time resume in the order they were scheduled.
// A canceled wakeup stays in the heap and is discarded on pop.
type Wakeup struct {
	time     float64
	seq      uint64
	event    Event
	canceled bool
	index    int
}

// Time returns the simulated time this wakeup fires at.
func (w *Wakeup) Time() float64 { return w.time }

// Cancel marks the wakeup stale. The scheduler drops it on pop.
func (w *Wakeup) Cancel() { w.canceled = true }

// eventQueue implements heap.Interface ordered by (time, seq).
// See canonical Golang example here: https://pkg.go.dev/container/heap#example-package-IntHeap
type eventQueue []*Wakeup

func (eq eventQueue) Len() int { return len(eq) }

func (eq eventQueue) Less(i, j int) bool {
	if eq[i].time != eq[j].time {
		return eq[i].time < eq[j].time
	}
	return eq[i].seq < eq[j].seq
}

func (eq eventQueue) Swap(i, j int) {
	eq[i], eq[j] = eq[j], eq[i]
	eq[i].index = i
	eq[j].index = j
}

func (eq *eventQueue) Push(x any) {
	w := x.(*Wakeup)
	w.index = len(*eq)
	*eq = append(*eq, w)
}

func (eq *eventQueue) Pop() any {
	old := *eq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*eq = old[0 : n-1]
	return item
}

// Scheduler holds the logical clock and the pending wakeups.
type Scheduler struct {
	clock float64
	queue eventQueue
	seq   uint64
}

// NewScheduler creates an empty scheduler at clock 0.
func NewScheduler() *Scheduler {
	return &Scheduler{queue: make(eventQueue, 0)}
}

// Now returns the current simulated time.
func (s *Scheduler) Now() float64 { return s.clock }

// Pending returns the number of wakeups in the heap, including canceled ones.
func (s *Scheduler) Pending() int { return len(s.queue) }

// At schedules ev to fire at absolute time t. t must not precede the clock.
func (s *Scheduler) At(t float64, ev Event) *Wakeup {
	if t < s.clock {
		panic("scheduler: wakeup scheduled in the past")
	}
	w := &Wakeup{time: t, seq: s.seq, event: ev}
	s.seq++
	heap.Push(&s.queue, w)
	return w
}

// After schedules ev to fire d time units from now.
func (s *Scheduler) After(d float64, ev Event) *Wakeup {
	return s.At(s.clock+d, ev)
}

// Next pops the earliest live wakeup, advances the clock to its time, and
// returns it. Returns nil when the heap is drained.
func (s *Scheduler) Next() *Wakeup {
	for len(s.queue) > 0 {
		w := heap.Pop(&s.queue).(*Wakeup)
		if w.canceled {
			continue
		}
		s.clock = w.time
		return w
	}
	return nil
}
