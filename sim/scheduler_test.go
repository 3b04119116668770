package sim

import "testing"

type probeEvent struct {
	hits *[]string
	name string
}

func (e *probeEvent) Execute(_ *Simulator) {
	*e.hits = append(*e.hits, e.name)
}

func TestScheduler_PopsInTimeOrder(t *testing.T) {
	// GIVEN wakeups scheduled out of order
	s := NewScheduler()
	var hits []string
	s.At(3.0, &probeEvent{&hits, "c"})
	s.At(1.0, &probeEvent{&hits, "a"})
	s.At(2.0, &probeEvent{&hits, "b"})

	// WHEN all wakeups are drained
	for w := s.Next(); w != nil; w = s.Next() {
		w.event.Execute(nil)
	}

	// THEN they fire in time order and the clock ends at the last time
	want := []string{"a", "b", "c"}
	for i, name := range want {
		if hits[i] != name {
			t.Errorf("pop order[%d]: got %s, want %s", i, hits[i], name)
		}
	}
	if s.Now() != 3.0 {
		t.Errorf("clock: got %v, want 3.0", s.Now())
	}
}

func TestScheduler_EqualTimesFIFO(t *testing.T) {
	// GIVEN several wakeups at the same time
	s := NewScheduler()
	var hits []string
	s.At(5.0, &probeEvent{&hits, "first"})
	s.At(5.0, &probeEvent{&hits, "second"})
	s.At(5.0, &probeEvent{&hits, "third"})

	// WHEN drained
	for w := s.Next(); w != nil; w = s.Next() {
		w.event.Execute(nil)
	}

	// THEN ties break by insertion order
	want := []string{"first", "second", "third"}
	for i, name := range want {
		if hits[i] != name {
			t.Errorf("tie-break order[%d]: got %s, want %s", i, hits[i], name)
		}
	}
}

func TestScheduler_CanceledWakeupIsDiscarded(t *testing.T) {
	// GIVEN a canceled wakeup between two live ones
	s := NewScheduler()
	var hits []string
	s.At(1.0, &probeEvent{&hits, "a"})
	w := s.At(2.0, &probeEvent{&hits, "stale"})
	s.At(3.0, &probeEvent{&hits, "b"})
	w.Cancel()

	// WHEN drained
	for w := s.Next(); w != nil; w = s.Next() {
		w.event.Execute(nil)
	}

	// THEN the canceled wakeup never fires
	if len(hits) != 2 || hits[0] != "a" || hits[1] != "b" {
		t.Errorf("got %v, want [a b]", hits)
	}
}

func TestScheduler_PastSchedulingPanics(t *testing.T) {
	s := NewScheduler()
	s.At(10.0, &probeEvent{nil, "x"})
	if s.Next() == nil {
		t.Fatal("expected a wakeup")
	}
	defer func() {
		if recover() == nil {
			t.Error("scheduling before the clock should panic")
		}
	}()
	s.At(5.0, &probeEvent{nil, "late"})
}
