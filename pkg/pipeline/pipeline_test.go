package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/vecto-pilot/pilot-core/internal/config"
	"github.com/vecto-pilot/pilot-core/pkg/breaker"
	"github.com/vecto-pilot/pilot-core/pkg/gate"
	"github.com/vecto-pilot/pilot-core/pkg/model"
	"github.com/vecto-pilot/pilot-core/pkg/provider"
	"github.com/vecto-pilot/pilot-core/pkg/router"
	"github.com/vecto-pilot/pilot-core/pkg/stage"
	"github.com/vecto-pilot/pilot-core/pkg/store"
)

// fakeProvider answers every role with the canned JSON for that role,
// mirroring the fakeStrategistProvider convention in pkg/stage's tests.
type fakeProvider struct {
	name      string
	responses map[provider.Role]string
}

func (f *fakeProvider) Name() string    { return f.name }
func (f *fakeProvider) IsHealthy() bool { return true }
func (f *fakeProvider) Call(ctx context.Context, req provider.Request) (provider.Response, error) {
	text, ok := f.responses[req.Role]
	if !ok {
		text = "{}"
	}
	return provider.Response{Text: text, Model: req.Model, Provider: f.name}, nil
}

// fakeStore implements store.Store entirely in memory, following the same
// pattern as pkg/stage's fakeStore but carrying enough state (snapshot,
// triad job, ranking) to exercise a full pipeline run.
type fakeStore struct {
	snapshot   model.Snapshot
	strategy   model.Strategy
	briefing   model.Briefing
	job        model.TriadJob
	jobCreated bool
	ranking    model.Ranking
	candidates []model.RankingCandidate
	places     []model.PlaceCacheEntry
}

func (f *fakeStore) LoadSnapshot(ctx context.Context, id string) (model.Snapshot, error) {
	if f.snapshot.SnapshotID == "" {
		return model.Snapshot{}, store.ErrNotFound
	}
	return f.snapshot, nil
}

func (f *fakeStore) EnsureStrategy(ctx context.Context, id string) error {
	if f.strategy.SnapshotID == "" {
		f.strategy = model.Strategy{SnapshotID: id, Status: model.StrategyPending}
	}
	return nil
}

func (f *fakeStore) UpdateStrategyCAS(ctx context.Context, id string, predicate func(model.Strategy) bool, mutate func(*model.Strategy)) (bool, error) {
	if !predicate(f.strategy) {
		return false, nil
	}
	mutate(&f.strategy)
	return true, nil
}

func (f *fakeStore) LoadStrategy(ctx context.Context, id string) (model.Strategy, error) {
	return f.strategy, nil
}

func (f *fakeStore) UpsertBriefing(ctx context.Context, b model.Briefing) error {
	f.briefing = b
	return nil
}

func (f *fakeStore) InsertRanking(ctx context.Context, r model.Ranking, c []model.RankingCandidate) error {
	f.ranking = r
	f.candidates = c
	return nil
}

func (f *fakeStore) UpsertTriadJob(ctx context.Context, id, kind string) (bool, error) {
	if f.jobCreated {
		return false, nil
	}
	f.jobCreated = true
	f.job = model.TriadJob{SnapshotID: id, Kind: kind, Status: model.TriadQueued}
	return true, nil
}

func (f *fakeStore) UpdateTriadJobStatus(ctx context.Context, id string, status model.TriadJobStatus) error {
	f.job.Status = status
	return nil
}

func (f *fakeStore) LoadTriadJob(ctx context.Context, id string) (model.TriadJob, error) {
	return f.job, nil
}

func (f *fakeStore) UpsertPlaceCache(ctx context.Context, p model.PlaceCacheEntry) error {
	f.places = append(f.places, p)
	return nil
}

func (f *fakeStore) GetIdempotencyRecord(ctx context.Context, key string) (model.IdempotencyRecord, bool, error) {
	return model.IdempotencyRecord{}, false, nil
}

func (f *fakeStore) PutIdempotencyRecord(ctx context.Context, rec model.IdempotencyRecord, ttl time.Duration) error {
	return nil
}

func testSnapshot() model.Snapshot {
	return model.Snapshot{
		SnapshotID:       "snap-1",
		Lat:              41.8781,
		Lng:              -87.6298,
		FormattedAddress: "Chicago, IL",
		City:             "Chicago",
		State:             "IL",
		Timezone:         "America/Chicago",
		DayPart:          model.DayPartEvening,
	}
}

func newTestOrchestrator(t *testing.T, fs *fakeStore) *Orchestrator {
	t.Helper()

	fp := &fakeProvider{
		name: "fake",
		responses: map[provider.Role]string{
			provider.RoleStrategist: `{"strategy":"work the loop until 7pm"}`,
			provider.RoleBriefer:    `{"events":["street fest downtown"],"news":[],"traffic":["I-90 backed up"],"school_closures":[],"weather_summary":"clear"}`,
			provider.RoleConsolidator: `{"consolidated_strategy":"avoid I-90, hit the street fest crowd"}`,
			provider.RolePlanner: `{"venues":[
				{"name":"Union Station","lat":41.8789,"lng":-87.6359,"category":"transit","pro_tips":["queue at the east doors"]},
				{"name":"United Center","lat":41.8807,"lng":-87.6742,"category":"venue","pro_tips":["game night surge", "use Wood St exit"]}
			]}`,
		},
	}

	g := gate.New(gate.DefaultConfig())
	b := breaker.NewManager(breaker.DefaultConfig(), nil)
	rt := router.New([]provider.Provider{fp}, g, b)
	sr := stage.NewRunner(rt, fs)

	cfg := config.Default()
	cfg.RoleModels.StrategistProvider = "fake"
	cfg.RoleModels.VenuePlannerProvider = "fake"
	cfg.TotalBudget = 5 * time.Second

	o := New(cfg, fs, sr, rt, nil, nil, nil)
	for role, p := range o.Policies {
		p.Timeout = time.Second
		o.Policies[role] = p
	}
	return o
}

func TestOrchestrator_Run_Success(t *testing.T) {
	fs := &fakeStore{snapshot: testSnapshot()}
	o := newTestOrchestrator(t, fs)

	result, err := o.Run(context.Background(), "snap-1")
	if err != nil {
		t.Fatalf("Run() err = %v", err)
	}
	if result.Status != "ok" {
		t.Fatalf("Status = %q, want ok", result.Status)
	}
	if len(result.Candidates) != 2 {
		t.Fatalf("got %d candidates, want 2", len(result.Candidates))
	}
	for i, c := range result.Candidates {
		if c.Rank != i+1 {
			t.Fatalf("candidate %d has rank %d, want dense rank %d", i, c.Rank, i+1)
		}
		if c.DistanceSource != model.DistancePredictive {
			t.Fatalf("candidate %q DistanceSource = %q, want predictive fallback (no geo adapters wired)", c.Name, c.DistanceSource)
		}
	}
	if fs.strategy.Status != model.StrategyOK {
		t.Fatalf("strategy.Status = %q, want ok", fs.strategy.Status)
	}
	if fs.job.Status != model.TriadDone {
		t.Fatalf("job.Status = %q, want done", fs.job.Status)
	}
}

func TestOrchestrator_Run_DedupReturnsPending(t *testing.T) {
	fs := &fakeStore{
		snapshot:   testSnapshot(),
		jobCreated: true,
		job:        model.TriadJob{SnapshotID: "snap-1", Kind: "venue_ranking", Status: model.TriadRunning},
	}
	o := newTestOrchestrator(t, fs)

	result, err := o.Run(context.Background(), "snap-1")
	if err != nil {
		t.Fatalf("Run() err = %v", err)
	}
	if result.Status != "pending" {
		t.Fatalf("Status = %q, want pending", result.Status)
	}
}

func TestOrchestrator_Run_SnapshotNotFound(t *testing.T) {
	fs := &fakeStore{}
	o := newTestOrchestrator(t, fs)

	_, err := o.Run(context.Background(), "missing-snap")
	if err == nil {
		t.Fatal("expected error for missing snapshot")
	}
}

func TestOrchestrator_Run_PlannerValidationFailure(t *testing.T) {
	fs := &fakeStore{snapshot: testSnapshot()}
	o := newTestOrchestrator(t, fs)

	badProvider := &fakeProvider{
		name: "fake",
		responses: map[provider.Role]string{
			provider.RoleStrategist:   `{"strategy":"ok"}`,
			provider.RoleBriefer:      `{"events":[]}`,
			provider.RoleConsolidator: `{"consolidated_strategy":"ok"}`,
			provider.RolePlanner:      `{"venues":[]}`,
		},
	}
	g := gate.New(gate.DefaultConfig())
	b := breaker.NewManager(breaker.DefaultConfig(), nil)
	rt := router.New([]provider.Provider{badProvider}, g, b)
	o.Router = rt
	o.StageRunner = stage.NewRunner(rt, fs)

	_, err := o.Run(context.Background(), "snap-1")
	if err == nil {
		t.Fatal("expected planner validation error for zero venues")
	}
	if fs.strategy.Status != model.StrategyFailed {
		t.Fatalf("strategy.Status = %q, want failed", fs.strategy.Status)
	}
}
