// Package resolver implements the pure schedule-resolution function: given
// a schedule.Model, the current time, and the local environment, it
// decides which layouts and overlays are currently eligible to play.
// Resolve has no side effects and performs no I/O; every external input
// (the clock, geolocation, display properties, play counters) is passed
// in explicitly so the algorithm is trivially testable.
package resolver

import (
	"math"
	"sort"
	"time"

	"playercore/internal/schedule"
)

// Location is a latitude/longitude pair.
type Location struct {
	Latitude  float64
	Longitude float64
}

// Env is the environment Resolve evaluates criteria and geofences
// against.
type Env struct {
	Location          *Location
	DisplayProperties map[string]string
	Measurements      map[string]float64
}

// PlayCounter reports how many times a scheduled item has already played
// within the current hour bucket, for max-plays-per-hour throttling.
// Implementations own the bucket-reset-on-hour-boundary behaviour.
type PlayCounter interface {
	CountInCurrentHour(scheduleID string, now time.Time) int
}

// noopCounter treats every schedule as unthrottled.
type noopCounter struct{}

func (noopCounter) CountInCurrentHour(string, time.Time) int { return 0 }

// Output is the result of Resolve.
type Output struct {
	MainLayouts []schedule.ScheduledLayout
	Overlays    []schedule.OverlayLayout
}

// candidate pairs a flattened layout with the bookkeeping Resolve needs
// to reproduce document order and campaign grouping after filtering.
type candidate struct {
	layout    schedule.ScheduledLayout
	groupKey  string
	origIndex int
}

// Resolve computes main layouts and overlays active at now, given model
// and env. counter may be nil, in which case no item is throttled by
// max-plays-per-hour.
func Resolve(model *schedule.Model, now time.Time, env Env, counter PlayCounter) Output {
	if counter == nil {
		counter = noopCounter{}
	}

	main := resolveMain(model, now, env, counter)
	overlays := resolveOverlays(model, now, env, counter)
	return Output{MainLayouts: main, Overlays: overlays}
}

func flattenLayouts(model *schedule.Model) []candidate {
	var out []candidate
	idx := 0
	for _, l := range model.Layouts {
		out = append(out, candidate{layout: l, groupKey: l.ScheduleID, origIndex: idx})
		idx++
	}
	for _, c := range model.Campaigns {
		for _, l := range c.Layouts {
			out = append(out, candidate{layout: inheritFromCampaign(c, l), groupKey: c.ScheduleID, origIndex: idx})
			idx++
		}
	}
	return out
}

func inheritFromCampaign(c schedule.Campaign, l schedule.ScheduledLayout) schedule.ScheduledLayout {
	out := l
	if out.From.IsZero() {
		out.From = c.From
	}
	if out.To.IsZero() {
		out.To = c.To
	}
	if out.Priority == 0 {
		out.Priority = c.Priority
	}
	if len(out.Criteria) == 0 {
		out.Criteria = c.Criteria
	}
	if !out.Geo.IsGeoAware && c.Geo.IsGeoAware {
		out.Geo = c.Geo
	}
	out.CampaignID = c.ID
	return out
}

func resolveMain(model *schedule.Model, now time.Time, env Env, counter PlayCounter) []schedule.ScheduledLayout {
	candidates := flattenLayouts(model)

	survivors := make([]candidate, 0, len(candidates))
	for _, c := range candidates {
		l := c.layout
		if !withinTimeWindow(l.From, l.To, now) {
			continue
		}
		if !withinRecurrence(l.Recurrence, now) {
			continue
		}
		if !withinGeo(l.Geo, env.Location) {
			continue
		}
		if !matchesCriteria(l.Criteria, env) {
			continue
		}
		if l.MaxPlaysPerHour > 0 && counter.CountInCurrentHour(l.ScheduleID, now) >= l.MaxPlaysPerHour {
			continue
		}
		survivors = append(survivors, c)
	}

	survivors = keepMaxPriority(survivors)
	ordered := orderCandidates(survivors)

	sequence := interleaveShareOfVoice(ordered)

	if len(sequence) == 0 {
		return []schedule.ScheduledLayout{{FileID: model.DefaultLayoutFile}}
	}
	return sequence
}

func resolveOverlays(model *schedule.Model, now time.Time, env Env, counter PlayCounter) []schedule.OverlayLayout {
	type ocand struct {
		layout    schedule.OverlayLayout
		origIndex int
	}
	var candidates []ocand
	for i, o := range model.Overlays {
		candidates = append(candidates, ocand{layout: o, origIndex: i})
	}

	survivors := candidates[:0:0]
	for _, c := range candidates {
		o := c.layout
		if !withinTimeWindow(o.From, o.To, now) {
			continue
		}
		if !withinRecurrence(o.Recurrence, now) {
			continue
		}
		if !withinGeo(o.Geo, env.Location) {
			continue
		}
		if !matchesCriteria(o.Criteria, env) {
			continue
		}
		survivors = append(survivors, c)
	}

	if len(survivors) == 0 {
		return nil
	}
	maxPriority := survivors[0].layout.Priority
	for _, c := range survivors {
		if c.layout.Priority > maxPriority {
			maxPriority = c.layout.Priority
		}
	}
	var kept []ocand
	for _, c := range survivors {
		if c.layout.Priority == maxPriority {
			kept = append(kept, c)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].layout.Priority > kept[j].layout.Priority
	})

	out := make([]schedule.OverlayLayout, len(kept))
	for i, c := range kept {
		out[i] = c.layout
	}
	return out
}

func withinTimeWindow(from, to, now time.Time) bool {
	if !from.IsZero() && now.Before(from) {
		return false
	}
	if !to.IsZero() && now.After(to) {
		return false
	}
	return true
}

func keepMaxPriority(cands []candidate) []candidate {
	if len(cands) == 0 {
		return cands
	}
	maxPriority := cands[0].layout.Priority
	for _, c := range cands {
		if c.layout.Priority > maxPriority {
			maxPriority = c.layout.Priority
		}
	}
	kept := make([]candidate, 0, len(cands))
	for _, c := range cands {
		if c.layout.Priority == maxPriority {
			kept = append(kept, c)
		}
	}
	return kept
}

// orderCandidates stable-sorts by (-priority, groupKey); within equal
// keys (same campaign, same priority) the stable sort preserves the
// flatten-time document order.
func orderCandidates(cands []candidate) []schedule.ScheduledLayout {
	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.layout.Priority != b.layout.Priority {
			return a.layout.Priority > b.layout.Priority
		}
		return a.groupKey < b.groupKey
	})
	out := make([]schedule.ScheduledLayout, len(cands))
	for i, c := range cands {
		out[i] = c.layout
	}
	return out
}

const earthRadiusKM = 6371.0

func withinGeo(g schedule.Geo, loc *Location) bool {
	if !g.IsGeoAware {
		return true
	}
	if loc == nil {
		return false
	}
	return haversineKM(g.Latitude, g.Longitude, loc.Latitude, loc.Longitude) <= g.RadiusKM
}

func haversineKM(lat1, lon1, lat2, lon2 float64) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKM * c
}
