// Package metrics records the pipeline's Prometheus metrics (spec §4.L).
// Every collaborator that wants to emit metrics takes a Recorder rather
// than reaching for package-level globals, so tests can inject a recorder
// bound to a private registry instead of the default one.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Recorder is the interface every pipeline stage, the hedged router, the
// gate, and the circuit breakers record through.
type Recorder interface {
	// StageOutcome records one stage's terminal status and latency.
	StageOutcome(role, status string, seconds float64)
	// ProviderCall records one provider call's outcome inside a stage,
	// independent of whether it was the hedge winner.
	ProviderCall(provider, role, classification string, seconds float64)
	// HedgeRace records how a hedged stage resolved: which provider won,
	// and how many competitors it beat.
	HedgeRace(role, winner string, losers int)
	// BreakerStateChange records a circuit breaker transition.
	BreakerStateChange(provider, from, to string)
	// GateWait records how long a call waited for a concurrency permit.
	GateWait(provider string, seconds float64)
	// PipelineRun records one full pipeline attempt's outcome and latency.
	PipelineRun(status string, seconds float64)
	// RankingCandidates records how many candidates a successful ranking
	// produced, broken down by grade.
	RankingCandidates(grade string, count int)
}

// PrometheusRecorder is the production Recorder, backed by
// client_golang metrics registered against prometheus.DefaultRegisterer.
type PrometheusRecorder struct {
	stageOutcome      *prometheus.HistogramVec
	providerCall      *prometheus.HistogramVec
	hedgeRaceWins     *prometheus.CounterVec
	hedgeRaceLosers   *prometheus.HistogramVec
	breakerTransition *prometheus.CounterVec
	gateWait          *prometheus.HistogramVec
	pipelineRun       *prometheus.HistogramVec
	rankingCandidates *prometheus.CounterVec
}

// NewPrometheusRecorder builds and registers every metric the pipeline
// emits. Called once at process startup (cmd/pilot-api).
func NewPrometheusRecorder() *PrometheusRecorder {
	r := &PrometheusRecorder{
		stageOutcome: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pilot_stage_duration_seconds",
			Help:    "Duration of one pipeline stage run, by role and terminal status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"role", "status"}),
		providerCall: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pilot_provider_call_duration_seconds",
			Help:    "Duration of one provider call, by provider, role, and error classification.",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider", "role", "classification"}),
		hedgeRaceWins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pilot_hedge_race_wins_total",
			Help: "Total hedged stage races won, by winning provider and role.",
		}, []string{"role", "winner"}),
		hedgeRaceLosers: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pilot_hedge_race_losers",
			Help:    "Number of competing providers a hedge race winner beat.",
			Buckets: []float64{0, 1, 2, 3, 4, 5},
		}, []string{"role"}),
		breakerTransition: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pilot_breaker_transitions_total",
			Help: "Total circuit breaker state transitions, by provider and from/to state.",
		}, []string{"provider", "from", "to"}),
		gateWait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pilot_gate_wait_seconds",
			Help:    "Time a call waited to acquire a per-provider concurrency permit.",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider"}),
		pipelineRun: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pilot_pipeline_run_duration_seconds",
			Help:    "Duration of one full pipeline run, by terminal status.",
			Buckets: []float64{1, 2.5, 5, 10, 20, 30, 60, 120, 180, 300},
		}, []string{"status"}),
		rankingCandidates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pilot_ranking_candidates_total",
			Help: "Total ranking candidates produced, by value grade.",
		}, []string{"grade"}),
	}

	prometheus.MustRegister(
		r.stageOutcome,
		r.providerCall,
		r.hedgeRaceWins,
		r.hedgeRaceLosers,
		r.breakerTransition,
		r.gateWait,
		r.pipelineRun,
		r.rankingCandidates,
	)

	return r
}

func (r *PrometheusRecorder) StageOutcome(role, status string, seconds float64) {
	r.stageOutcome.WithLabelValues(role, status).Observe(seconds)
}

func (r *PrometheusRecorder) ProviderCall(provider, role, classification string, seconds float64) {
	r.providerCall.WithLabelValues(provider, role, classification).Observe(seconds)
}

func (r *PrometheusRecorder) HedgeRace(role, winner string, losers int) {
	r.hedgeRaceWins.WithLabelValues(role, winner).Inc()
	r.hedgeRaceLosers.WithLabelValues(role).Observe(float64(losers))
}

func (r *PrometheusRecorder) BreakerStateChange(provider, from, to string) {
	r.breakerTransition.WithLabelValues(provider, from, to).Inc()
}

func (r *PrometheusRecorder) GateWait(provider string, seconds float64) {
	r.gateWait.WithLabelValues(provider).Observe(seconds)
}

func (r *PrometheusRecorder) PipelineRun(status string, seconds float64) {
	r.pipelineRun.WithLabelValues(status).Observe(seconds)
}

func (r *PrometheusRecorder) RankingCandidates(grade string, count int) {
	r.rankingCandidates.WithLabelValues(grade).Add(float64(count))
}

// NoopRecorder discards every observation; used by tests and by any
// collaborator built without a Recorder wired in.
type NoopRecorder struct{}

func (NoopRecorder) StageOutcome(string, string, float64)          {}
func (NoopRecorder) ProviderCall(string, string, string, float64)  {}
func (NoopRecorder) HedgeRace(string, string, int)                 {}
func (NoopRecorder) BreakerStateChange(string, string, string)     {}
func (NoopRecorder) GateWait(string, float64)                      {}
func (NoopRecorder) PipelineRun(string, float64)                   {}
func (NoopRecorder) RankingCandidates(string, int)                 {}
