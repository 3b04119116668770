// Package kpi derives performance indicators from a simulation event log:
// throughput, work-in-process, throughput time, and per-resource
// time-in-state shares.
package kpi

import (
	"sort"
	"strings"

	"github.com/sdm4fzi/prodsys/sim/eventlog"
)

// State codes reported per resource. The four shares of a resource cover
// the whole run horizon: as percentages they sum to 100.
const (
	StateProductive = "PR" // executing at least one process
	StateStandby    = "SB" // idle
	StateSetup      = "ST" // changing configuration
	StateDown       = "UD" // unscheduled down (breakdown)
)

// StateShares holds per-resource time-in-state percentages of the horizon.
type StateShares struct {
	PR float64
	SB float64
	ST float64
	UD float64
}

// WIPPoint is one step of the work-in-process curve.
type WIPPoint struct {
	Time float64
	WIP  int
}

// Results aggregates all KPIs of one run.
type Results struct {
	Horizon float64

	// Throughput counts finished products per product type.
	Throughput map[string]int
	// ThroughputRate is finished products per time unit per type.
	ThroughputRate map[string]float64

	// AvgWIP is the time-weighted average work-in-process per type;
	// AvgWIPTotal across all types.
	AvgWIP      map[string]float64
	AvgWIPTotal float64
	// WIPCurve is the system-wide WIP over time.
	WIPCurve []WIPPoint

	// AvgThroughputTime is the mean creation-to-finish span per type,
	// over finished products only.
	AvgThroughputTime map[string]float64

	// ResourceStates maps resource id to its PR/SB/ST/UD percentages.
	ResourceStates map[string]StateShares

	// PartsMade counts products finished by production activities per
	// resource; every member of a lot counts once.
	PartsMade map[string]int
}

// interval is a half-open [start, end) span of simulated time.
type interval struct{ start, end float64 }

// Compute derives all KPIs from the event log of a run with the given
// horizon. Records must be in insertion (time) order, as produced by the
// engine.
func Compute(records []eventlog.Record, horizon float64) *Results {
	r := &Results{
		Horizon:           horizon,
		Throughput:        make(map[string]int),
		ThroughputRate:    make(map[string]float64),
		AvgWIP:            make(map[string]float64),
		AvgThroughputTime: make(map[string]float64),
		ResourceStates:    make(map[string]StateShares),
		PartsMade:         make(map[string]int),
	}
	r.computeFlow(records, horizon)
	r.computeResourceStates(records, horizon)
	return r
}

// productType recovers the product type from a product id of the form
// <type>_<n>.
func productType(productID string) string {
	if i := strings.LastIndex(productID, "_"); i > 0 {
		return productID[:i]
	}
	return productID
}

func (r *Results) computeFlow(records []eventlog.Record, horizon float64) {
	created := make(map[string]float64)
	perTypeWIP := make(map[string]float64)   // integral of WIP over time
	perTypeCount := make(map[string]int)     // current WIP per type
	perTypeLast := make(map[string]float64)  // last change time per type
	sumSpan := make(map[string]float64)      // sum of throughput times
	totalWIP, lastTotal, wipIntegral := 0, 0.0, 0.0

	bump := func(typ string, now float64, delta int) {
		perTypeWIP[typ] += float64(perTypeCount[typ]) * (now - perTypeLast[typ])
		perTypeCount[typ] += delta
		perTypeLast[typ] = now
		wipIntegral += float64(totalWIP) * (now - lastTotal)
		totalWIP += delta
		lastTotal = now
		r.WIPCurve = append(r.WIPCurve, WIPPoint{Time: now, WIP: totalWIP})
	}

	for _, rec := range records {
		switch {
		case rec.StateType == eventlog.StateTypeSource && rec.Activity == eventlog.ActivityCreated:
			created[rec.Product] = rec.Time
			bump(productType(rec.Product), rec.Time, +1)
		case rec.StateType == eventlog.StateTypeSink && rec.Activity == eventlog.ActivityEnd:
			typ := productType(rec.Product)
			r.Throughput[typ]++
			if t0, ok := created[rec.Product]; ok {
				sumSpan[typ] += rec.Time - t0
			}
			bump(typ, rec.Time, -1)
		case rec.StateType == eventlog.StateTypeProduction && rec.Activity == eventlog.ActivityEnd:
			r.PartsMade[rec.Resource]++
		}
	}

	// Close the integrals at the horizon.
	for typ := range perTypeCount {
		perTypeWIP[typ] += float64(perTypeCount[typ]) * (horizon - perTypeLast[typ])
	}
	wipIntegral += float64(totalWIP) * (horizon - lastTotal)

	if horizon > 0 {
		for typ, integral := range perTypeWIP {
			r.AvgWIP[typ] = integral / horizon
		}
		r.AvgWIPTotal = wipIntegral / horizon
		for typ, n := range r.Throughput {
			r.ThroughputRate[typ] = float64(n) / horizon
		}
	}
	for typ, n := range r.Throughput {
		if n > 0 {
			r.AvgThroughputTime[typ] = sumSpan[typ] / float64(n)
		}
	}
}

func (r *Results) computeResourceStates(records []eventlog.Record, horizon float64) {
	type key struct{ resource, state, product string }
	type openState struct {
		start  float64
		bucket *map[string][]interval
	}
	open := make(map[key]openState)
	productive := make(map[string][]interval)
	setup := make(map[string][]interval)
	down := make(map[string][]interval)
	resources := make(map[string]bool)

	addInterval := func(m map[string][]interval, res string, start, end float64) {
		if end > start {
			m[res] = append(m[res], interval{start, end})
		}
	}

	for _, rec := range records {
		var bucket map[string][]interval
		switch rec.StateType {
		case eventlog.StateTypeProduction, eventlog.StateTypeTransport:
			bucket = productive
		case eventlog.StateTypeSetup:
			bucket = setup
		case eventlog.StateTypeBreakdown, eventlog.StateTypeProcessBreakdown:
			bucket = down
		default:
			continue
		}
		resources[rec.Resource] = true
		k := key{rec.Resource, rec.State, rec.Product}
		switch rec.Activity {
		case eventlog.ActivityStart:
			open[k] = openState{start: rec.Time, bucket: &bucket}
		case eventlog.ActivityEnd, eventlog.ActivityTruncated:
			if o, ok := open[k]; ok {
				end := rec.Time
				if rec.Activity == eventlog.ActivityTruncated {
					end = horizon
				}
				addInterval(bucket, rec.Resource, o.start, end)
				delete(open, k)
			}
		}
	}
	// States still open at the horizon close there: a breakdown whose
	// repair outlived the run, or an activity without a truncation row.
	for k, o := range open {
		addInterval(*o.bucket, k.resource, o.start, horizon)
	}

	for res := range resources {
		// The composite state is single-valued: UD wins over everything,
		// ST over PR. A multi-capacity resource can legally run a
		// changeover while another slot is still producing; the overlap
		// must not be counted twice.
		ud := merge(down[res])
		st := subtract(merge(setup[res]), ud)
		pr := subtract(subtract(merge(productive[res]), ud), st)
		prLen, stLen, udLen := length(pr), length(st), length(ud)
		sb := horizon - prLen - stLen - udLen
		if sb < 0 {
			sb = 0
		}
		if horizon > 0 {
			r.ResourceStates[res] = StateShares{
				PR: 100 * prLen / horizon,
				SB: 100 * sb / horizon,
				ST: 100 * stLen / horizon,
				UD: 100 * udLen / horizon,
			}
		}
	}
}

// merge unions overlapping intervals.
func merge(in []interval) []interval {
	if len(in) == 0 {
		return nil
	}
	sorted := append([]interval{}, in...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].start < sorted[j].start })
	out := []interval{sorted[0]}
	for _, iv := range sorted[1:] {
		last := &out[len(out)-1]
		if iv.start <= last.end {
			if iv.end > last.end {
				last.end = iv.end
			}
			continue
		}
		out = append(out, iv)
	}
	return out
}

// subtract removes the union b from the union a. Both must be merged.
func subtract(a, b []interval) []interval {
	var out []interval
	for _, iv := range a {
		cur := iv
		for _, cut := range b {
			if cut.end <= cur.start || cut.start >= cur.end {
				continue
			}
			if cut.start > cur.start {
				out = append(out, interval{cur.start, cut.start})
			}
			if cut.end < cur.end {
				cur = interval{cut.end, cur.end}
			} else {
				cur = interval{cur.end, cur.end}
				break
			}
		}
		if cur.end > cur.start {
			out = append(out, cur)
		}
	}
	return out
}

func length(in []interval) float64 {
	var sum float64
	for _, iv := range in {
		sum += iv.end - iv.start
	}
	return sum
}
