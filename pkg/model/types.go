// Package model defines the entities the pipeline reads and writes (spec
// §3). These are plain data carriers; behavior lives in the packages that
// operate on them (pkg/pipeline, pkg/store, pkg/ranking).
package model

import "time"

// DayPart buckets a Snapshot's created_at into the pipeline's coarse
// time-of-day vocabulary.
type DayPart string

const (
	DayPartOvernight    DayPart = "overnight"
	DayPartEarlyMorning DayPart = "early_morning"
	DayPartMorning      DayPart = "morning"
	DayPartMidday       DayPart = "midday"
	DayPartAfternoon    DayPart = "afternoon"
	DayPartEvening      DayPart = "evening"
	DayPartLateNight    DayPart = "late_night"
)

// AirportContext describes proximity to an airport when the snapshot was
// taken near one; nil when not applicable.
type AirportContext struct {
	Code          string
	Name          string
	DistanceMiles float64
	DelayMinutes  int
}

// Snapshot is an immutable observation of a driver's situation. Created
// externally; the pipeline never mutates it.
type Snapshot struct {
	SnapshotID       string
	Lat              float64
	Lng              float64
	FormattedAddress string
	City             string
	State            string
	Timezone         string // IANA zone, e.g. "America/Chicago"
	CreatedAt        time.Time
	DayPart          DayPart
	DOW              int // 0-6
	Weather          string
	AirQuality       string
	AirportContext   *AirportContext
	IsHoliday        bool
	HolidayName      string
}

// HasCoreFields reports whether the snapshot has a non-zero coordinate. It
// does not check Timezone; the pipeline's step-2 check (spec §4.G) uses
// IsComplete, which requires both coordinates and a timezone.
func (s Snapshot) HasCoreFields() bool {
	return s.Lat != 0 || s.Lng != 0
}

func (s Snapshot) IsComplete() bool {
	return s.Timezone != "" && !(s.Lat == 0 && s.Lng == 0)
}

// StrategyStatus is the monotonic status of a Strategy row.
type StrategyStatus string

const (
	StrategyPending StrategyStatus = "pending"
	StrategyOK      StrategyStatus = "ok"
	StrategyFailed  StrategyStatus = "failed"
)

// Strategy is the per-snapshot row the pipeline mutates as it progresses.
type Strategy struct {
	SnapshotID           string
	Status               StrategyStatus
	MinStrategy          string
	ConsolidatedStrategy string
	ErrorCode            string
	ErrorMessage         string
	Attempt              int
	LatencyMS            int64
	Tokens               int
	Warnings             []string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Briefing is the per-snapshot events/news/traffic digest the briefer stage
// produces.
type Briefing struct {
	SnapshotID      string
	Events          []string
	News            []string
	Traffic         []string
	SchoolClosures  []string
	WeatherSummary  string
	Status          string
	CreatedAt       time.Time
}

// ValueGrade is the A/B/C/D letter grade assigned to a candidate.
type ValueGrade string

const (
	GradeA ValueGrade = "A"
	GradeB ValueGrade = "B"
	GradeC ValueGrade = "C"
	GradeD ValueGrade = "D"
)

// DistanceSource records where a candidate's distance/coordinate data came
// from (spec invariant 4).
type DistanceSource string

const (
	DistanceGoogleRoutes    DistanceSource = "google_routes_api"
	DistanceEnrichmentFailed DistanceSource = "enrichment_failed"
	DistancePredictive      DistanceSource = "predictive"
	DistanceUnknown         DistanceSource = "unknown"
)

// Ranking is one successful pipeline run's output header.
type Ranking struct {
	RankingID     string
	SnapshotID    string
	UserID        string
	City          string
	ModelName     string
	CorrelationID string
	ScoringMS     int64
	PlannerMS     int64
	TotalMS       int64
	TimedOut      bool
	PathTaken     string
	Extras        map[string]interface{}
	CreatedAt     time.Time
}

// RankingCandidate is one ranked venue within a Ranking.
type RankingCandidate struct {
	ID              string
	RankingID       string
	SnapshotID      string
	Rank            int
	Name            string
	Lat             float64
	Lng             float64
	PlaceID         string
	DistanceMiles   *float64
	DriveMinutes    *float64
	ValuePerMin     *float64
	ValueGrade      ValueGrade
	NotWorth        bool
	ProTips         []string
	StagingTips     string
	StagingName     string
	StagingLat      *float64
	StagingLng      *float64
	BusinessHours   []string
	ClosedReasoning string
	DistanceSource  DistanceSource
	Features        map[string]interface{}
}

// IdempotencyRecord caches a terminal HTTP outcome for replay within the
// idempotency window (spec invariant 5).
type IdempotencyRecord struct {
	Key       string
	Status    int
	Body      []byte
	CreatedAt time.Time
}

// TriadJobStatus is the lifecycle of the unique-per-snapshot work record
// that anchors initiation dedup (spec §4.J).
type TriadJobStatus string

const (
	TriadQueued  TriadJobStatus = "queued"
	TriadRunning TriadJobStatus = "running"
	TriadDone    TriadJobStatus = "done"
	TriadFailed  TriadJobStatus = "failed"
)

type TriadJob struct {
	SnapshotID string
	Status     TriadJobStatus
	Kind       string
	CreatedAt  time.Time
}

// PlaceCacheEntry is the idempotently-upserted place/hours cache row (spec
// §4.H.5).
type PlaceCacheEntry struct {
	PlaceID          string
	Name             string
	FormattedAddress string
	Lat              float64
	Lng              float64
	BusinessStatus   string
	OpeningHours     []string
	UpdatedAt        time.Time
}
