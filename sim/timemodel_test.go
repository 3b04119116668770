package sim

import (
	"math"
	"testing"
)

func testStreams(seed int64) *StreamSet {
	return NewStreamSet(NewSimulationKey(seed))
}

func TestFunctionTimeModel_Constant(t *testing.T) {
	m, err := NewFunctionTimeModel("tm", DistConstant, 2.5, 0, 10, testStreams(0).For("tm"))
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 25; i++ {
		if got := m.Sample(TimeContext{}); got != 2.5 {
			t.Fatalf("sample %d: got %v, want 2.5", i, got)
		}
	}
	if m.Expected(TimeContext{}) != 2.5 {
		t.Errorf("expected: got %v, want 2.5", m.Expected(TimeContext{}))
	}
}

func TestFunctionTimeModel_SamplesNonNegative(t *testing.T) {
	// GIVEN a normal model whose sigma makes negative raw draws common
	m, err := NewFunctionTimeModel("tm", DistNormal, 0.1, 5.0, 32, testStreams(1).For("tm"))
	if err != nil {
		t.Fatal(err)
	}
	// THEN every sample is clamped at 0
	for i := 0; i < 500; i++ {
		if got := m.Sample(TimeContext{}); got < 0 {
			t.Fatalf("sample %d: negative duration %v", i, got)
		}
	}
}

func TestFunctionTimeModel_UnknownDistributionFails(t *testing.T) {
	if _, err := NewFunctionTimeModel("tm", "weibull", 1, 1, 1, testStreams(0).For("tm")); err == nil {
		t.Error("unsupported distribution must fail at setup")
	}
}

func TestFunctionTimeModel_DeterministicPerStream(t *testing.T) {
	// GIVEN two models on streams derived from the same seed and id
	a, _ := NewFunctionTimeModel("tm", DistExponential, 1.5, 0, 8, testStreams(42).For("tm"))
	b, _ := NewFunctionTimeModel("tm", DistExponential, 1.5, 0, 8, testStreams(42).For("tm"))

	// THEN their draw sequences are identical
	for i := 0; i < 100; i++ {
		va, vb := a.Sample(TimeContext{}), b.Sample(TimeContext{})
		if va != vb {
			t.Fatalf("draw %d diverged: %v vs %v", i, va, vb)
		}
	}
}

func TestStreamSet_IndependentStreams(t *testing.T) {
	ss := testStreams(7)
	if ss.For("a") == ss.For("b") {
		t.Error("distinct names must give distinct streams")
	}
	if ss.For("a") != ss.For("a") {
		t.Error("same name must give the cached stream")
	}
}

func TestSampleTimeModel_Cycles(t *testing.T) {
	m, err := NewSampleTimeModel("tm", []float64{1, 2, 3}, false, testStreams(0).For("tm"))
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{1, 2, 3, 1, 2}
	for i, w := range want {
		if got := m.Sample(TimeContext{}); got != w {
			t.Errorf("sample %d: got %v, want %v", i, got, w)
		}
	}
	if got := m.Expected(TimeContext{}); got != 2 {
		t.Errorf("expected: got %v, want 2", got)
	}
}

func TestScheduleTimeModel_OneShotExhausts(t *testing.T) {
	m, err := NewScheduleTimeModel("tm", []float64{5, 10}, false, false)
	if err != nil {
		t.Fatal(err)
	}
	if got := m.Sample(TimeContext{}); got != 5 {
		t.Errorf("first delta: got %v, want 5", got)
	}
	if got := m.Sample(TimeContext{}); got != 10 {
		t.Errorf("second delta: got %v, want 10", got)
	}
	if got := m.Sample(TimeContext{}); !math.IsInf(got, 1) {
		t.Errorf("exhausted one-shot schedule: got %v, want +Inf", got)
	}
}

func TestScheduleTimeModel_AbsoluteTimestamps(t *testing.T) {
	// GIVEN absolute timestamps 3, 7, 12
	m, err := NewScheduleTimeModel("tm", []float64{3, 7, 12}, false, true)
	if err != nil {
		t.Fatal(err)
	}
	// THEN samples are the deltas between them
	want := []float64{3, 4, 5}
	for i, w := range want {
		if got := m.Sample(TimeContext{}); got != w {
			t.Errorf("delta %d: got %v, want %v", i, got, w)
		}
	}
}

func TestDistanceTimeModel_Metrics(t *testing.T) {
	ctx := TimeContext{Origin: [2]float64{0, 0}, Target: [2]float64{3, 4}}

	manhattan, err := NewDistanceTimeModel("tm", 1, 0.5, MetricManhattan)
	if err != nil {
		t.Fatal(err)
	}
	if got := manhattan.Sample(ctx); got != 7.5 {
		t.Errorf("manhattan: got %v, want 7.5", got)
	}

	euclidean, err := NewDistanceTimeModel("tm", 2, 0, MetricEuclidean)
	if err != nil {
		t.Fatal(err)
	}
	if got := euclidean.Sample(ctx); got != 2.5 {
		t.Errorf("euclidean: got %v, want 2.5", got)
	}
}

func TestDistanceTimeModel_BadParamsFail(t *testing.T) {
	if _, err := NewDistanceTimeModel("tm", 0, 0, MetricManhattan); err == nil {
		t.Error("zero speed must fail")
	}
	if _, err := NewDistanceTimeModel("tm", 1, 0, "chebyshev"); err == nil {
		t.Error("unknown metric must fail")
	}
}
