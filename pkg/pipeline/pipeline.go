// Package pipeline implements the orchestrator (spec §4.G): the ordered
// composition of dedup, snapshot load, the four LLM stages, venue
// enrichment, ranking, and persistence that turns one snapshot_id into one
// committed Ranking.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	apperrors "github.com/vecto-pilot/pilot-core/internal/errors"
	"github.com/vecto-pilot/pilot-core/internal/config"
	"github.com/vecto-pilot/pilot-core/pkg/enrichment"
	"github.com/vecto-pilot/pilot-core/pkg/geo"
	"github.com/vecto-pilot/pilot-core/pkg/idempotency"
	"github.com/vecto-pilot/pilot-core/pkg/metrics"
	"github.com/vecto-pilot/pilot-core/pkg/model"
	"github.com/vecto-pilot/pilot-core/pkg/provider"
	"github.com/vecto-pilot/pilot-core/pkg/ranking"
	"github.com/vecto-pilot/pilot-core/pkg/router"
	"github.com/vecto-pilot/pilot-core/pkg/shared/logging"
	"github.com/vecto-pilot/pilot-core/pkg/stage"
	"github.com/vecto-pilot/pilot-core/pkg/store"
)

// Result is what a pipeline run returns to its caller (the ingress HTTP
// layer in cmd/pilot-api, or a test).
type Result struct {
	Status     string // "ok" | "pending"
	Ranking    model.Ranking
	Candidates []model.RankingCandidate
	Strategy   model.Strategy
}

// WeatherFetcher and ListFetcher are the shapes the briefing pre-warm
// sub-fetches implement; each is an external collaborator out of this
// core's scope (spec §1), invoked only through these narrow function types.
type WeatherFetcher func(ctx context.Context) (string, error)
type ListFetcher func(ctx context.Context) ([]string, error)

// BriefingSources are the optional pre-warm sub-fetches step 4 fires. Any
// field left nil is simply skipped.
type BriefingSources struct {
	Weather        WeatherFetcher
	Traffic        ListFetcher
	News           ListFetcher
	Events         ListFetcher
	SchoolClosures ListFetcher
}

// HolidayChecker is the optional, soft-failing holiday-check collaborator
// (spec §4.G step 5).
type HolidayChecker interface {
	Check(ctx context.Context, snap model.Snapshot) (isHoliday bool, name string, err error)
}

// subFetchDeadline bounds each individual briefing pre-warm fetch; the
// briefer stage itself is never blocked on these beyond its own deadline
// (spec §4.G step 4).
const subFetchDeadline = 5 * time.Second

// Orchestrator owns every collaborator the pipeline composes. All fields
// besides Store, StageRunner, Router and Config are optional; a nil
// collaborator degrades its step to a soft failure rather than panicking.
type Orchestrator struct {
	Store       store.Store
	StageRunner *stage.Runner
	Router      *router.Router
	Idempotency *idempotency.Service
	Enricher    *enrichment.Enricher
	Briefing    BriefingSources
	Holiday     HolidayChecker
	Config      *config.Config
	Policies    map[provider.Role]router.RolePolicy
	Log         *logrus.Logger
	Metrics     metrics.Recorder
}

func New(cfg *config.Config, st store.Store, sr *stage.Runner, rt *router.Router, idem *idempotency.Service, enr *enrichment.Enricher, log *logrus.Logger) *Orchestrator {
	if log == nil {
		log = logrus.New()
	}
	policies := router.DefaultPolicies()
	policies[provider.RoleBriefer] = router.RolePolicy{Mode: policies[provider.RoleBriefer].Mode, Timeout: cfg.BriefingTimeout}
	policies[provider.RoleConsolidator] = router.RolePolicy{Mode: policies[provider.RoleConsolidator].Mode, Timeout: cfg.TriadTimeout}
	policies[provider.RolePlanner] = router.RolePolicy{Mode: policies[provider.RolePlanner].Mode, Timeout: cfg.PlannerDeadline}

	return &Orchestrator{
		Store:       st,
		StageRunner: sr,
		Router:      rt,
		Idempotency: idem,
		Enricher:    enr,
		Config:      cfg,
		Policies:    policies,
		Log:         log,
		Metrics:     metrics.NoopRecorder{},
	}
}

// WithMetrics swaps in a non-noop Recorder; returns the Orchestrator for
// chaining at construction time.
func (o *Orchestrator) WithMetrics(m metrics.Recorder) *Orchestrator {
	if m != nil {
		o.Metrics = m
	}
	return o
}

// Run executes the full pipeline for snapshotID, deduplicating against any
// in-flight or already-queued run for the same snapshot (spec §4.G step 1).
func (o *Orchestrator) Run(ctx context.Context, snapshotID string) (Result, error) {
	budget := o.Config.TotalBudget
	if budget <= 0 {
		budget = 180 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	start := time.Now()
	build := func(ctx context.Context) (interface{}, error) {
		return o.execute(ctx, snapshotID)
	}

	var (
		v   interface{}
		err error
	)
	if o.Idempotency != nil {
		v, err, _ = o.Idempotency.AttachOrRun(ctx, snapshotID, build)
	} else {
		v, err = build(ctx)
	}

	elapsed := time.Since(start).Seconds()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			o.Metrics.PipelineRun("budget_exceeded", elapsed)
			return Result{}, apperrors.Wrap(err, apperrors.ErrorTypeTimeout, "pipeline budget exceeded").WithCode("budget_exceeded")
		}
		o.Metrics.PipelineRun("failed", elapsed)
		return Result{}, err
	}
	result := v.(Result)
	o.Metrics.PipelineRun(result.Status, elapsed)
	if result.Status == "ok" {
		byGrade := map[string]int{}
		for _, c := range result.Candidates {
			byGrade[string(c.ValueGrade)]++
		}
		for grade, count := range byGrade {
			o.Metrics.RankingCandidates(grade, count)
		}
	}
	return result, nil
}

// execute runs the non-deduplicated body of one pipeline attempt (spec §4.G
// steps 2-13).
func (o *Orchestrator) execute(ctx context.Context, snapshotID string) (result Result, err error) {
	created, jobErr := o.Store.UpsertTriadJob(ctx, snapshotID, "venue_ranking")
	if jobErr != nil {
		return Result{}, apperrors.Wrap(jobErr, apperrors.ErrorTypeDatabase, "triad job insert failed")
	}
	if !created {
		job, loadErr := o.Store.LoadTriadJob(ctx, snapshotID)
		if loadErr == nil && (job.Status == model.TriadQueued || job.Status == model.TriadRunning) {
			return Result{Status: "pending"}, nil
		}
		// A prior attempt reached a terminal state (done/failed); this
		// request supersedes it (spec scenario 5: retry after job cleared).
	}
	_ = o.Store.UpdateTriadJobStatus(ctx, snapshotID, model.TriadRunning)

	defer func() {
		status := model.TriadDone
		if err != nil {
			status = model.TriadFailed
		}
		_ = o.Store.UpdateTriadJobStatus(ctx, snapshotID, status)
	}()

	snapshot, loadErr := o.Store.LoadSnapshot(ctx, snapshotID)
	if loadErr == store.ErrNotFound {
		return Result{}, apperrors.New(apperrors.ErrorTypeNotFound, "snapshot not found").WithCode("snapshot_not_found")
	}
	if loadErr != nil {
		return Result{}, apperrors.Wrap(loadErr, apperrors.ErrorTypeDatabase, "snapshot load failed")
	}
	if !snapshot.IsComplete() {
		return Result{}, apperrors.New(apperrors.ErrorTypeValidation, "snapshot missing lat/lng/timezone").WithCode("incomplete_snapshot")
	}

	if ensureErr := o.Store.EnsureStrategy(ctx, snapshotID); ensureErr != nil {
		return Result{}, apperrors.Wrap(ensureErr, apperrors.ErrorTypeDatabase, "strategy row insert failed")
	}

	briefingScratch := o.prewarmBriefing(ctx)

	o.runHolidayCheck(ctx, snapshot)

	minStrategy, strategistErr := o.runStrategist(ctx, snapshotID, snapshot)
	if strategistErr != nil {
		o.failStrategy(ctx, snapshotID, "strategist_failed", strategistErr)
		return Result{}, apperrors.Wrap(strategistErr, apperrors.ErrorTypeInternal, "strategist stage failed").WithCode("strategist_failed")
	}

	briefing := o.runBriefer(ctx, snapshotID, snapshot, briefingScratch)

	consolidated, consolidateErr := o.runConsolidator(ctx, snapshotID, snapshot, minStrategy, briefing)
	if consolidateErr != nil {
		o.failStrategy(ctx, snapshotID, "consolidation_failed", consolidateErr)
		return Result{}, apperrors.Wrap(consolidateErr, apperrors.ErrorTypeInternal, "consolidator stage failed").WithCode("consolidation_failed")
	}

	proposals, plannerErr := o.runPlanner(ctx, snapshotID, snapshot, consolidated)
	if plannerErr != nil {
		o.failStrategy(ctx, snapshotID, "planner_failed", plannerErr)
		return Result{}, apperrors.Wrap(plannerErr, apperrors.ErrorTypeValidation, "planner stage failed").WithCode("planner_failed")
	}

	enriched := o.enrichVenues(ctx, snapshot, proposals)
	if allEnrichmentFailed(enriched) {
		o.failStrategy(ctx, snapshotID, "enrichment_failed", fmt.Errorf("every venue failed enrichment"))
		return Result{}, apperrors.New(apperrors.ErrorTypeUnavailable, "every venue failed enrichment").WithCode("enrichment_failed")
	}

	surge := ranking.SurgeMultiplier(snapshot.DayPart, snapshot.IsHoliday)
	candidates := ranking.BuildCandidates(snapshotID, enriched, o.Config.Value, surge)

	r := model.Ranking{
		RankingID:  newID(),
		SnapshotID: snapshotID,
		City:       snapshot.City,
		ModelName:  o.Config.RoleModels.VenuePlanner,
		PathTaken:  "strategist->briefer->consolidator->planner->enrichment",
		CreatedAt:  time.Now(),
	}
	for i := range candidates {
		candidates[i].RankingID = r.RankingID
	}

	if persistErr := o.Store.InsertRanking(ctx, r, candidates); persistErr != nil {
		o.failStrategy(ctx, snapshotID, "persist_failed", persistErr)
		return Result{}, apperrors.Wrap(persistErr, apperrors.ErrorTypeDatabase, "ranking persist failed").WithCode("persist_failed")
	}

	finalStrategy, _ := o.finalizeStrategy(ctx, snapshotID)

	return Result{Status: "ok", Ranking: r, Candidates: candidates, Strategy: finalStrategy}, nil
}

// failStrategy records a hard stage failure on the Strategy row. The CAS
// predicate only requires the row not already be in a terminal state, so a
// retried attempt's failure can't clobber an earlier success (status is
// monotonic: pending -> ok|failed).
func (o *Orchestrator) failStrategy(ctx context.Context, snapshotID, code string, cause error) {
	_, _ = o.Store.UpdateStrategyCAS(ctx, snapshotID, func(s model.Strategy) bool {
		return s.Status == model.StrategyPending
	}, func(s *model.Strategy) {
		s.Status = model.StrategyFailed
		s.ErrorCode = code
		s.ErrorMessage = cause.Error()
		s.Attempt++
	})
}

func (o *Orchestrator) finalizeStrategy(ctx context.Context, snapshotID string) (model.Strategy, error) {
	_, _ = o.Store.UpdateStrategyCAS(ctx, snapshotID, func(s model.Strategy) bool {
		return s.Status == model.StrategyPending
	}, func(s *model.Strategy) {
		s.Status = model.StrategyOK
	})
	return o.Store.LoadStrategy(ctx, snapshotID)
}

// --- briefing pre-warm (spec §4.G step 4) ---

type briefingScratch struct {
	mu             sync.Mutex
	weatherSummary string
	traffic        []string
	news           []string
	events         []string
	schoolClosures []string
}

func (b *briefingScratch) snapshot() model.Briefing {
	b.mu.Lock()
	defer b.mu.Unlock()
	return model.Briefing{
		Events:         append([]string(nil), b.events...),
		News:           append([]string(nil), b.news...),
		Traffic:        append([]string(nil), b.traffic...),
		SchoolClosures: append([]string(nil), b.schoolClosures...),
		WeatherSummary: b.weatherSummary,
	}
}

// prewarmBriefing fires every configured sub-fetch as a detached goroutine
// scoped to ctx; when ctx is canceled (pipeline deadline or outer
// cancellation) every still-running sub-fetch is canceled with it, so
// nothing outlives the orchestrator's own scope. The orchestrator never
// waits on these goroutines: the briefer stage reads whatever has landed
// by the time it runs.
func (o *Orchestrator) prewarmBriefing(ctx context.Context) *briefingScratch {
	scratch := &briefingScratch{}
	src := o.Briefing

	if src.Weather != nil {
		go func() {
			fctx, cancel := context.WithTimeout(ctx, subFetchDeadline)
			defer cancel()
			if v, err := src.Weather(fctx); err == nil {
				scratch.mu.Lock()
				scratch.weatherSummary = v
				scratch.mu.Unlock()
			}
		}()
	}
	fetchInto := func(fetch ListFetcher, dst *[]string) {
		if fetch == nil {
			return
		}
		go func() {
			fctx, cancel := context.WithTimeout(ctx, subFetchDeadline)
			defer cancel()
			if v, err := fetch(fctx); err == nil {
				scratch.mu.Lock()
				*dst = v
				scratch.mu.Unlock()
			}
		}()
	}
	fetchInto(src.Traffic, &scratch.traffic)
	fetchInto(src.News, &scratch.news)
	fetchInto(src.Events, &scratch.events)
	fetchInto(src.SchoolClosures, &scratch.schoolClosures)

	return scratch
}

// --- holiday check (spec §4.G step 5) ---

func (o *Orchestrator) runHolidayCheck(ctx context.Context, snap model.Snapshot) {
	if o.Holiday == nil {
		return
	}
	_, _, err := o.Holiday.Check(ctx, snap)
	if err != nil {
		fields := logging.PipelineFields("holiday_check", snap.SnapshotID).Error(err).ToLogrus()
		o.Log.WithFields(fields).Warn("holiday check failed, proceeding without it")
	}
	// Snapshot is immutable (spec §3), so the result is not written back.
	// It is not used later in the run either: the strategist prompt has no
	// holiday field, and the surge multiplier reads snapshot.IsHoliday as
	// loaded from the store.
}

// --- strategist stage (spec §4.G step 6) ---

type strategistOutput struct {
	Strategy string `json:"strategy"`
}

func (o *Orchestrator) runStrategist(ctx context.Context, snapshotID string, snap model.Snapshot) (string, error) {
	var parsed strategistOutput
	d := stage.Descriptor{
		Role: provider.RoleStrategist,
		BuildRequest: func() provider.Request {
			return provider.Request{
				Model:        o.Config.RoleModels.Strategist,
				MaxTokens:    1024,
				SystemPrompt: "You are a rideshare driving strategist. Produce a short, concrete narrative telling the driver where to focus given their current location and context.",
				UserPrompt:   strategistPrompt(snap),
			}
		},
		ParseOutput: func(payload []byte) error { return json.Unmarshal(payload, &parsed) },
		Predicate:   func(s model.Strategy) bool { return s.Status == model.StrategyPending },
		Mutate: func(s *model.Strategy) {
			s.MinStrategy = parsed.Strategy
			s.Attempt++
		},
	}
	policy, ok := o.Policies[provider.RoleStrategist]
	if !ok {
		policy = router.RolePolicy{Mode: router.ModeSingle, Timeout: 30 * time.Second}
	}
	outcome, err := o.timedStage(string(provider.RoleStrategist), func() (stage.Outcome, error) {
		return o.StageRunner.Run(ctx, snapshotID, d, policy, o.Config.RoleModels.StrategistProvider)
	})
	if err != nil {
		return "", err
	}
	if outcome.ParseErr != nil {
		return "", outcome.ParseErr
	}
	return parsed.Strategy, nil
}

// timedStage records StageOutcome for one stage.Runner.Run call without
// every stage function repeating the timing/classification boilerplate.
func (o *Orchestrator) timedStage(role string, run func() (stage.Outcome, error)) (stage.Outcome, error) {
	start := time.Now()
	outcome, err := run()
	status := "ok"
	if err != nil {
		status = "failed"
	} else if outcome.ParseErr != nil {
		status = "parse_failed"
	}
	o.Metrics.StageOutcome(role, status, time.Since(start).Seconds())
	return outcome, err
}

func strategistPrompt(snap model.Snapshot) string {
	return fmt.Sprintf(
		"Location: %s (%s, %s). Day part: %s. Weather: %s. Respond with JSON {\"strategy\": string}.",
		snap.FormattedAddress, snap.City, snap.State, snap.DayPart, snap.Weather,
	)
}

// --- briefer stage (spec §4.G step 7, soft-required) ---

type brieferOutput struct {
	Events         []string `json:"events"`
	News           []string `json:"news"`
	Traffic        []string `json:"traffic"`
	SchoolClosures []string `json:"school_closures"`
	WeatherSummary string   `json:"weather_summary"`
}

func (o *Orchestrator) runBriefer(ctx context.Context, snapshotID string, snap model.Snapshot, scratch *briefingScratch) model.Briefing {
	prewarmed := scratch.snapshot()

	var parsed brieferOutput
	d := stage.Descriptor{
		Role: provider.RoleBriefer,
		BuildRequest: func() provider.Request {
			return provider.Request{
				Model:        o.Config.RoleModels.Briefer,
				MaxTokens:    768,
				SystemPrompt: "Summarize local events, news, traffic, and school closures relevant to a rideshare driver right now.",
				UserPrompt:   briefingPrompt(snap, prewarmed),
			}
		},
		ParseOutput: func(payload []byte) error { return json.Unmarshal(payload, &parsed) },
		Predicate:   func(s model.Strategy) bool { return true },
		Mutate: func(s *model.Strategy) {
			s.Warnings = append(s.Warnings, "briefing_ok")
		},
	}
	policy, ok := o.Policies[provider.RoleBriefer]
	if !ok {
		policy = router.RolePolicy{Mode: router.ModeHedged, Timeout: 8 * time.Second}
	}

	outcome, err := o.timedStage(string(provider.RoleBriefer), func() (stage.Outcome, error) {
		return o.StageRunner.Run(ctx, snapshotID, d, policy, "")
	})
	if err != nil || outcome.ParseErr != nil {
		fields := logging.PipelineFields("briefer_stage", snapshotID).Error(err).ToLogrus()
		o.Log.WithFields(fields).Warn("briefer stage failed, proceeding with prewarmed/empty briefing")
		_, _ = o.Store.UpdateStrategyCAS(ctx, snapshotID, func(s model.Strategy) bool { return true }, func(s *model.Strategy) {
			s.Warnings = append(s.Warnings, "briefing_failed")
		})
		empty := prewarmed
		empty.SnapshotID = snapshotID
		empty.Status = "empty"
		_ = o.Store.UpsertBriefing(ctx, empty)
		return empty
	}

	b := model.Briefing{
		SnapshotID:     snapshotID,
		Events:         mergeLists(parsed.Events, prewarmed.Events),
		News:           mergeLists(parsed.News, prewarmed.News),
		Traffic:        mergeLists(parsed.Traffic, prewarmed.Traffic),
		SchoolClosures: mergeLists(parsed.SchoolClosures, prewarmed.SchoolClosures),
		WeatherSummary: firstNonEmpty(parsed.WeatherSummary, prewarmed.WeatherSummary),
		Status:         "ok",
	}
	_ = o.Store.UpsertBriefing(ctx, b)
	return b
}

func briefingPrompt(snap model.Snapshot, prewarmed model.Briefing) string {
	return fmt.Sprintf(
		"Location: %s. Known traffic so far: %v. Respond with JSON {\"events\":[],\"news\":[],\"traffic\":[],\"school_closures\":[],\"weather_summary\":string}.",
		snap.FormattedAddress, prewarmed.Traffic,
	)
}

func mergeLists(primary, fallback []string) []string {
	if len(primary) > 0 {
		return primary
	}
	return fallback
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// --- consolidator stage (spec §4.G step 8) ---

type consolidatorOutput struct {
	ConsolidatedStrategy string `json:"consolidated_strategy"`
}

func (o *Orchestrator) runConsolidator(ctx context.Context, snapshotID string, snap model.Snapshot, minStrategy string, briefing model.Briefing) (string, error) {
	var parsed consolidatorOutput
	d := stage.Descriptor{
		Role: provider.RoleConsolidator,
		BuildRequest: func() provider.Request {
			return provider.Request{
				Model:        o.Config.RoleModels.Consolidator,
				MaxTokens:    1024,
				SystemPrompt: "Combine the driving strategy with the local briefing into one consolidated, actionable strategy.",
				UserPrompt:   consolidatorPrompt(minStrategy, briefing),
			}
		},
		ParseOutput: func(payload []byte) error { return json.Unmarshal(payload, &parsed) },
		Predicate:   func(s model.Strategy) bool { return s.Status == model.StrategyPending },
		Mutate: func(s *model.Strategy) {
			s.ConsolidatedStrategy = parsed.ConsolidatedStrategy
		},
	}
	policy, ok := o.Policies[provider.RoleConsolidator]
	if !ok {
		policy = router.RolePolicy{Mode: router.ModeHedged, Timeout: 8 * time.Second}
	}
	outcome, err := o.timedStage(string(provider.RoleConsolidator), func() (stage.Outcome, error) {
		return o.StageRunner.Run(ctx, snapshotID, d, policy, "")
	})
	if err != nil {
		return "", err
	}
	if outcome.ParseErr != nil {
		return "", outcome.ParseErr
	}
	return parsed.ConsolidatedStrategy, nil
}

func consolidatorPrompt(minStrategy string, briefing model.Briefing) string {
	return fmt.Sprintf(
		"Strategy: %s\nEvents: %v\nTraffic: %v\nRespond with JSON {\"consolidated_strategy\": string}.",
		minStrategy, briefing.Events, briefing.Traffic,
	)
}

// --- tactical planner stage (spec §4.G step 9) ---

const (
	plannerMaxVenues  = 8
	plannerMaxProTips = 3
)

type plannerVenue struct {
	Name            string   `json:"name"`
	Lat             float64  `json:"lat"`
	Lng             float64  `json:"lng"`
	Category        string   `json:"category"`
	ProTips         []string `json:"pro_tips"`
	StagingName     string   `json:"staging_name"`
	StagingLat      *float64 `json:"staging_lat"`
	StagingLng      *float64 `json:"staging_lng"`
	StrategicTiming string   `json:"strategic_timing"`
}

type plannerOutput struct {
	Venues []plannerVenue `json:"venues"`
}

func (o *Orchestrator) runPlanner(ctx context.Context, snapshotID string, snap model.Snapshot, consolidated string) ([]enrichment.VenueProposal, error) {
	var parsed plannerOutput
	d := stage.Descriptor{
		Role: provider.RolePlanner,
		BuildRequest: func() provider.Request {
			return provider.Request{
				Model:        o.Config.RoleModels.VenuePlanner,
				MaxTokens:    2048,
				SystemPrompt: "Propose up to 8 tactical venues for a rideshare driver, each with 1-3 short pro tips.",
				UserPrompt:   plannerPrompt(snap, consolidated),
			}
		},
		ParseOutput: func(payload []byte) error { return json.Unmarshal(payload, &parsed) },
		Predicate:   func(s model.Strategy) bool { return s.Status == model.StrategyPending },
		Mutate:      func(s *model.Strategy) {},
	}
	policy, ok := o.Policies[provider.RolePlanner]
	if !ok {
		policy = router.RolePolicy{Mode: router.ModeSingle, Timeout: 120 * time.Second}
	}
	outcome, err := o.timedStage(string(provider.RolePlanner), func() (stage.Outcome, error) {
		return o.StageRunner.Run(ctx, snapshotID, d, policy, o.Config.RoleModels.VenuePlannerProvider)
	})
	if err != nil {
		return nil, err
	}
	if outcome.ParseErr != nil {
		return nil, outcome.ParseErr
	}
	return validatePlannerOutput(parsed)
}

func plannerPrompt(snap model.Snapshot, consolidated string) string {
	return fmt.Sprintf(
		"Driver at (%f, %f) in %s. Strategy: %s\nRespond with JSON {\"venues\": [{\"name\":string,\"lat\":number,\"lng\":number,\"category\":string,\"pro_tips\":[string]}]}.",
		snap.Lat, snap.Lng, snap.Timezone, consolidated,
	)
}

// validatePlannerOutput enforces the planner's output schema (spec §4.G
// step 9): 1-8 venues, at least one pro tip each, coordinates within valid
// bounds. Any violation is a CLIENT-classified validation failure. A venue
// with more than 3 pro tips is not rejected; its list is cut to the first 3.
func validatePlannerOutput(out plannerOutput) ([]enrichment.VenueProposal, error) {
	if len(out.Venues) == 0 || len(out.Venues) > plannerMaxVenues {
		return nil, apperrors.New(apperrors.ErrorTypeValidation, fmt.Sprintf("planner returned %d venues, want 1-%d", len(out.Venues), plannerMaxVenues))
	}
	proposals := make([]enrichment.VenueProposal, 0, len(out.Venues))
	for _, v := range out.Venues {
		if v.Lat < -90 || v.Lat > 90 || v.Lng < -180 || v.Lng > 180 {
			return nil, apperrors.New(apperrors.ErrorTypeValidation, fmt.Sprintf("venue %q has out-of-bounds coordinates", v.Name))
		}
		if len(v.ProTips) == 0 {
			return nil, apperrors.New(apperrors.ErrorTypeValidation, fmt.Sprintf("venue %q has no pro tips", v.Name))
		}
		tips := v.ProTips
		if len(tips) > plannerMaxProTips {
			tips = tips[:plannerMaxProTips]
		}
		proposals = append(proposals, enrichment.VenueProposal{
			Name:            v.Name,
			Lat:             v.Lat,
			Lng:             v.Lng,
			Category:        v.Category,
			ProTips:         tips,
			StagingName:     v.StagingName,
			StagingLat:      v.StagingLat,
			StagingLng:      v.StagingLng,
			StrategicTiming: v.StrategicTiming,
		})
	}
	return proposals, nil
}

// --- venue enrichment (spec §4.G step 10) ---

func (o *Orchestrator) enrichVenues(ctx context.Context, snap model.Snapshot, proposals []enrichment.VenueProposal) []enrichment.EnrichedVenue {
	enr := o.Enricher
	if enr == nil {
		// No geo adapters wired: an adapter-less Enricher gives every venue
		// the haversine predictive estimate from its proposed coordinates.
		enr = &enrichment.Enricher{}
	}
	origin := geo.LatLng{Lat: snap.Lat, Lng: snap.Lng}
	return enr.EnrichAll(ctx, origin, snap.Timezone, proposals)
}

func allEnrichmentFailed(enriched []enrichment.EnrichedVenue) bool {
	for _, e := range enriched {
		if e.PlaceID != "" || e.DistanceSource != model.DistanceEnrichmentFailed {
			return false
		}
	}
	return len(enriched) > 0
}

func newID() string {
	return fmt.Sprintf("rk_%d", time.Now().UnixNano())
}
