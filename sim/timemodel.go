package sim

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// TimeContext carries the per-call inputs a time model may need.
// Distance models require Origin and Target; all other models ignore them.
type TimeContext struct {
	Origin [2]float64
	Target [2]float64
}

// TimeModel samples non-negative durations. Implementations are closed over
// their own RNG stream so that reseeding one model never shifts another.
type TimeModel interface {
	// ID returns the configuration ID of this model.
	ID() string
	// Sample draws the next duration. Always >= 0.
	Sample(ctx TimeContext) float64
	// Expected returns the mean duration without consuming the stream.
	// Used by SPT sequencing.
	Expected(ctx TimeContext) float64
}

// Distribution function names accepted by FunctionTimeModel.
const (
	DistConstant    = "constant"
	DistNormal      = "normal"
	DistLognormal   = "lognormal"
	DistExponential = "exponential"
)

// Distance metrics accepted by DistanceTimeModel.
const (
	MetricManhattan = "manhattan"
	MetricEuclidean = "euclidean"
)

// FunctionTimeModel draws durations from a parameterized distribution.
// Draws are buffered in batches of batchSize to amortize sampler setup,
// matching the buffered draw behavior of the statistics backends it models.
type FunctionTimeModel struct {
	id           string
	distribution string
	location     float64 // mean; for lognormal the mean of log(X)
	scale        float64 // stddev for normal/lognormal; unused otherwise
	batchSize    int
	sampler      func() float64
	buffer       []float64
	warnedNeg    bool
}

// NewFunctionTimeModel builds a distribution-backed time model on the given
// stream. An unsupported distribution name is a setup-time error.
func NewFunctionTimeModel(id, distribution string, location, scale float64, batchSize int, src *rand.Rand) (*FunctionTimeModel, error) {
	if batchSize < 1 {
		batchSize = 1
	}
	m := &FunctionTimeModel{
		id:           id,
		distribution: distribution,
		location:     location,
		scale:        scale,
		batchSize:    batchSize,
	}
	switch distribution {
	case DistConstant:
		m.sampler = func() float64 { return location }
	case DistNormal:
		d := distuv.Normal{Mu: location, Sigma: scale, Src: src}
		m.sampler = d.Rand
	case DistLognormal:
		// location/scale parameterize the underlying normal, as in the
		// wire format: Mu and Sigma of log(X).
		d := distuv.LogNormal{Mu: location, Sigma: scale, Src: src}
		m.sampler = d.Rand
	case DistExponential:
		// Wire format carries the mean; distuv wants the rate.
		if location <= 0 {
			return nil, fmt.Errorf("exponential time model %q: mean must be > 0, got %v", id, location)
		}
		d := distuv.Exponential{Rate: 1 / location, Src: src}
		m.sampler = d.Rand
	default:
		return nil, fmt.Errorf("time model %q: unsupported distribution %q", id, distribution)
	}
	return m, nil
}

func (m *FunctionTimeModel) ID() string { return m.id }

func (m *FunctionTimeModel) Sample(_ TimeContext) float64 {
	if len(m.buffer) == 0 {
		m.fillBuffer()
	}
	v := m.buffer[len(m.buffer)-1]
	m.buffer = m.buffer[:len(m.buffer)-1]
	if v < 0 {
		if !m.warnedNeg {
			logrus.Warnf("time model %s: negative sample %v clamped to 0", m.id, v)
			m.warnedNeg = true
		}
		return 0
	}
	return v
}

func (m *FunctionTimeModel) fillBuffer() {
	m.buffer = make([]float64, m.batchSize)
	for i := range m.buffer {
		m.buffer[i] = m.sampler()
	}
}

func (m *FunctionTimeModel) Expected(_ TimeContext) float64 {
	if m.distribution == DistLognormal {
		return math.Exp(m.location + m.scale*m.scale/2)
	}
	return m.location
}

// SampleTimeModel cycles through a fixed list of observed durations, or
// draws from it uniformly at random when randomized is set.
type SampleTimeModel struct {
	id         string
	samples    []float64
	randomized bool
	src        *rand.Rand
	next       int
	warnedNeg  bool
}

// NewSampleTimeModel builds a sample-sequence time model. The sample list
// must be non-empty.
func NewSampleTimeModel(id string, samples []float64, randomized bool, src *rand.Rand) (*SampleTimeModel, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("time model %q: empty sample list", id)
	}
	return &SampleTimeModel{id: id, samples: samples, randomized: randomized, src: src}, nil
}

func (m *SampleTimeModel) ID() string { return m.id }

func (m *SampleTimeModel) Sample(_ TimeContext) float64 {
	var v float64
	if m.randomized {
		v = m.samples[m.src.Intn(len(m.samples))]
	} else {
		v = m.samples[m.next]
		m.next = (m.next + 1) % len(m.samples)
	}
	if v < 0 {
		if !m.warnedNeg {
			logrus.Warnf("time model %s: negative sample %v clamped to 0", m.id, v)
			m.warnedNeg = true
		}
		return 0
	}
	return v
}

func (m *SampleTimeModel) Expected(_ TimeContext) float64 {
	var sum float64
	for _, v := range m.samples {
		sum += v
	}
	return sum / float64(len(m.samples))
}

// ScheduleTimeModel yields durations from a schedule: either relative
// deltas (cyclic or one-shot) or absolute timestamps converted to deltas.
// Once a one-shot schedule is exhausted it reports +Inf, which parks the
// consumer past any horizon.
type ScheduleTimeModel struct {
	id       string
	deltas   []float64
	cyclic   bool
	absolute bool
	next     int
	lastAbs  float64
}

// NewScheduleTimeModel builds a schedule-backed time model.
func NewScheduleTimeModel(id string, entries []float64, cyclic, absolute bool) (*ScheduleTimeModel, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("time model %q: empty schedule", id)
	}
	return &ScheduleTimeModel{id: id, deltas: entries, cyclic: cyclic, absolute: absolute}, nil
}

func (m *ScheduleTimeModel) ID() string { return m.id }

func (m *ScheduleTimeModel) Sample(_ TimeContext) float64 {
	if m.next >= len(m.deltas) {
		if !m.cyclic {
			return math.Inf(1)
		}
		m.next = 0
		if m.absolute {
			// A cyclic absolute schedule restarts its epoch.
			m.lastAbs = 0
		}
	}
	v := m.deltas[m.next]
	m.next++
	if m.absolute {
		d := v - m.lastAbs
		m.lastAbs = v
		if d < 0 {
			return 0
		}
		return d
	}
	if v < 0 {
		return 0
	}
	return v
}

func (m *ScheduleTimeModel) Expected(_ TimeContext) float64 {
	var sum, prev float64
	for _, v := range m.deltas {
		d := v
		if m.absolute {
			d = v - prev
			prev = v
		}
		if d < 0 {
			d = 0
		}
		sum += d
	}
	return sum / float64(len(m.deltas))
}

// DistanceTimeModel derives a travel duration from the distance between the
// context's origin and target: reaction + distance/speed.
type DistanceTimeModel struct {
	id       string
	speed    float64
	reaction float64
	metric   string
}

// NewDistanceTimeModel builds a distance-based time model. Speed must be
// positive; the metric must be manhattan or euclidean.
func NewDistanceTimeModel(id string, speed, reaction float64, metric string) (*DistanceTimeModel, error) {
	if speed <= 0 {
		return nil, fmt.Errorf("time model %q: speed must be > 0, got %v", id, speed)
	}
	switch metric {
	case MetricManhattan, MetricEuclidean:
	default:
		return nil, fmt.Errorf("time model %q: unsupported metric %q", id, metric)
	}
	return &DistanceTimeModel{id: id, speed: speed, reaction: reaction, metric: metric}, nil
}

func (m *DistanceTimeModel) ID() string { return m.id }

func (m *DistanceTimeModel) Sample(ctx TimeContext) float64 {
	return m.reaction + m.distance(ctx)/m.speed
}

func (m *DistanceTimeModel) Expected(ctx TimeContext) float64 {
	return m.Sample(ctx)
}

func (m *DistanceTimeModel) distance(ctx TimeContext) float64 {
	dx := ctx.Origin[0] - ctx.Target[0]
	dy := ctx.Origin[1] - ctx.Target[1]
	if m.metric == MetricManhattan {
		return math.Abs(dx) + math.Abs(dy)
	}
	return math.Hypot(dx, dy)
}
