// Package ranking turns enriched venues into graded, ordered
// RankingCandidate rows (spec §4.G step 11): compute each candidate's
// value-per-minute, assign its A/B/C/D grade, sort by the fixed ordering
// rule, and assign dense 1..N ranks.
package ranking

import (
	"sort"

	"github.com/google/uuid"

	"github.com/vecto-pilot/pilot-core/internal/config"
	"github.com/vecto-pilot/pilot-core/pkg/enrichment"
	"github.com/vecto-pilot/pilot-core/pkg/model"
)

// Grade thresholds are fixed by spec §4.G step 11, not configurable.
const (
	gradeAThreshold = 1.0
	gradeBThreshold = 0.75
	gradeCThreshold = 0.5
)

// Grade maps a value-per-minute figure to its letter grade.
func Grade(valuePerMin float64) model.ValueGrade {
	switch {
	case valuePerMin >= gradeAThreshold:
		return model.GradeA
	case valuePerMin >= gradeBThreshold:
		return model.GradeB
	case valuePerMin >= gradeCThreshold:
		return model.GradeC
	default:
		return model.GradeD
	}
}

// BuildCandidates converts enriched venues into unranked RankingCandidate
// rows carrying their computed grade, then sorts and assigns dense ranks.
// surge is a multiplier the caller derives from the snapshot's day_part/
// holiday context (spec leaves "surge" undefined beyond the formula
// itself; see DESIGN.md for how this implementation derives it).
func BuildCandidates(snapshotID string, enriched []enrichment.EnrichedVenue, grading config.ValueGrading, surge float64) []model.RankingCandidate {
	out := make([]model.RankingCandidate, 0, len(enriched))
	for _, ev := range enriched {
		out = append(out, buildOne(snapshotID, ev, grading, surge))
	}
	Sort(out)
	AssignRanks(out)
	return out
}

func buildOne(snapshotID string, ev enrichment.EnrichedVenue, grading config.ValueGrading, surge float64) model.RankingCandidate {
	tripMinutes := grading.DefaultTripMinutes
	waitMinutes := grading.DefaultWaitMinutes

	driveMinutes := tripMinutes // conservative default when routing never resolved
	if ev.DriveMinutes != nil {
		driveMinutes = *ev.DriveMinutes
	}

	totalTime := driveMinutes + tripMinutes + waitMinutes
	valuePerMin := 0.0
	if totalTime > 0 {
		valuePerMin = grading.BaseRatePerMin * surge * tripMinutes / totalTime
	}

	c := model.RankingCandidate{
		ID:              uuid.NewString(),
		SnapshotID:      snapshotID,
		Name:            ev.Name,
		Lat:             ev.ResolvedLat,
		Lng:             ev.ResolvedLng,
		PlaceID:         ev.PlaceID,
		DistanceMiles:   ev.DistanceMiles,
		DriveMinutes:    ev.DriveMinutes,
		ValuePerMin:     floatPtr(valuePerMin),
		ValueGrade:      Grade(valuePerMin),
		NotWorth:        valuePerMin < grading.MinAcceptablePerMin,
		ProTips:         ev.ProTips,
		StagingName:     ev.StagingName,
		StagingTips:     ev.StrategicTiming,
		BusinessHours:   ev.BusinessHours,
		ClosedReasoning: ev.ClosedReasoning,
		DistanceSource:  ev.DistanceSource,
		Features: map[string]interface{}{
			"category":        ev.Category,
			"is_open_now":     ev.IsOpenNow,
			"name_similarity": ev.NameSimilarity,
			"business_status": ev.BusinessStatus,
		},
	}
	if ev.StagingLat != nil && ev.StagingLng != nil {
		c.StagingLat = ev.StagingLat
		c.StagingLng = ev.StagingLng
	}
	return c
}

// Sort orders candidates (not_worth ascending, value_per_min descending,
// distance_miles ascending), per spec §4.G step 11.
func Sort(candidates []model.RankingCandidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.NotWorth != b.NotWorth {
			return !a.NotWorth && b.NotWorth
		}
		av, bv := valueOrZero(a.ValuePerMin), valueOrZero(b.ValuePerMin)
		if av != bv {
			return av > bv
		}
		ad, bd := distanceOrMax(a.DistanceMiles), distanceOrMax(b.DistanceMiles)
		return ad < bd
	})
}

// AssignRanks sets dense 1..N ranks in the candidates' current order
// (spec invariant 1).
func AssignRanks(candidates []model.RankingCandidate) {
	for i := range candidates {
		candidates[i].Rank = i + 1
	}
}

// surgeByDayPart is a fixed day-part multiplier table used to derive the
// formula's "surge" term from the snapshot context (spec leaves the term
// itself undefined — see DESIGN.md Open Question decision).
var surgeByDayPart = map[model.DayPart]float64{
	model.DayPartOvernight:    1.35,
	model.DayPartEarlyMorning: 1.1,
	model.DayPartMorning:      1.0,
	model.DayPartMidday:       0.9,
	model.DayPartAfternoon:    1.0,
	model.DayPartEvening:      1.25,
	model.DayPartLateNight:    1.4,
}

// SurgeMultiplier derives the value-per-minute formula's surge term from
// the snapshot's day_part and holiday flag.
func SurgeMultiplier(dayPart model.DayPart, isHoliday bool) float64 {
	surge, ok := surgeByDayPart[dayPart]
	if !ok {
		surge = 1.0
	}
	if isHoliday {
		surge *= 1.15
	}
	return surge
}

func floatPtr(v float64) *float64 { return &v }

func valueOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func distanceOrMax(v *float64) float64 {
	if v == nil {
		return 1e9
	}
	return *v
}
