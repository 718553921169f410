package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// newTestRecorder builds a PrometheusRecorder registered against a private
// registry so tests never collide with each other or the process-wide
// default registerer.
func newTestRecorder(t *testing.T) (*PrometheusRecorder, *prometheus.Registry) {
	t.Helper()
	r := &PrometheusRecorder{
		stageOutcome: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "test_stage_duration_seconds",
		}, []string{"role", "status"}),
		providerCall: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "test_provider_call_duration_seconds",
		}, []string{"provider", "role", "classification"}),
		hedgeRaceWins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "test_hedge_race_wins_total",
		}, []string{"role", "winner"}),
		hedgeRaceLosers: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "test_hedge_race_losers",
		}, []string{"role"}),
		breakerTransition: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "test_breaker_transitions_total",
		}, []string{"provider", "from", "to"}),
		gateWait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "test_gate_wait_seconds",
		}, []string{"provider"}),
		pipelineRun: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "test_pipeline_run_duration_seconds",
		}, []string{"status"}),
		rankingCandidates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "test_ranking_candidates_total",
		}, []string{"grade"}),
	}
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		r.stageOutcome, r.providerCall, r.hedgeRaceWins, r.hedgeRaceLosers,
		r.breakerTransition, r.gateWait, r.pipelineRun, r.rankingCandidates,
	)
	return r, registry
}

func TestPrometheusRecorder_BreakerStateChange(t *testing.T) {
	r, _ := newTestRecorder(t)
	r.BreakerStateChange("anthropic", "closed", "open")

	count := testutil.ToFloat64(r.breakerTransition.WithLabelValues("anthropic", "closed", "open"))
	if count != 1 {
		t.Fatalf("transition count = %v, want 1", count)
	}
}

func TestPrometheusRecorder_HedgeRace(t *testing.T) {
	r, _ := newTestRecorder(t)
	r.HedgeRace("briefer", "openai", 2)

	count := testutil.ToFloat64(r.hedgeRaceWins.WithLabelValues("briefer", "openai"))
	if count != 1 {
		t.Fatalf("hedge win count = %v, want 1", count)
	}
}

func TestPrometheusRecorder_RankingCandidates(t *testing.T) {
	r, _ := newTestRecorder(t)
	r.RankingCandidates("A", 3)
	r.RankingCandidates("A", 2)

	count := testutil.ToFloat64(r.rankingCandidates.WithLabelValues("A"))
	if count != 5 {
		t.Fatalf("ranking candidate count = %v, want 5", count)
	}
}

func TestNoopRecorder_NeverPanics(t *testing.T) {
	var n NoopRecorder
	n.StageOutcome("strategist", "ok", 1.2)
	n.ProviderCall("anthropic", "strategist", "ok", 0.5)
	n.HedgeRace("briefer", "openai", 1)
	n.BreakerStateChange("anthropic", "closed", "open")
	n.GateWait("anthropic", 0.01)
	n.PipelineRun("ok", 10)
	n.RankingCandidates("B", 4)
}
