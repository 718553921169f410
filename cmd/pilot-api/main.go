// Command pilot-api is the thin HTTP ingress wiring the core pipeline to
// the outside world (spec §6): it owns nothing about the orchestration
// itself, only the process lifecycle, collaborator construction, and the
// request/response mapping in handlers.go.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/vecto-pilot/pilot-core/internal/config"
	"github.com/vecto-pilot/pilot-core/pkg/breaker"
	"github.com/vecto-pilot/pilot-core/pkg/enrichment"
	"github.com/vecto-pilot/pilot-core/pkg/gate"
	"github.com/vecto-pilot/pilot-core/pkg/geo"
	"github.com/vecto-pilot/pilot-core/pkg/holiday"
	"github.com/vecto-pilot/pilot-core/pkg/idempotency"
	"github.com/vecto-pilot/pilot-core/pkg/metrics"
	"github.com/vecto-pilot/pilot-core/pkg/pipeline"
	"github.com/vecto-pilot/pilot-core/pkg/provider"
	"github.com/vecto-pilot/pilot-core/pkg/router"
	"github.com/vecto-pilot/pilot-core/pkg/stage"
	"github.com/vecto-pilot/pilot-core/pkg/store"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	if lvl, err := logrus.ParseLevel(envOrDefault("LOG_LEVEL", "info")); err == nil {
		log.SetLevel(lvl)
	}

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}

	db, err := connectWithRetry(context.Background(), cfg.Database.ConnectionString(), log)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to postgres")
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.Database.ConnMaxIdleTime)
	defer db.Close()

	st := store.NewPostgresStore(db, log)

	rec := metrics.NewPrometheusRecorder()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.WithError(err).Fatal("invalid REDIS_URL")
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()
	idem := idempotency.New(redisClient, cfg.IdempotencyTTL)

	providers := buildProviders(context.Background(), cfg, log)
	if len(providers) == 0 {
		log.Warn("no LLM providers configured; every stage call will fail with NO_PROVIDERS_AVAILABLE")
	}

	g := gate.New(gate.Config{MaxConcurrent: cfg.MaxConcurrentPerProvider, QueueTimeout: cfg.GateQueueTimeout})

	onBreakerChange := func(key string, from, to breaker.State) {
		rec.BreakerStateChange(key, string(from), string(to))
		log.WithFields(logrus.Fields{"provider": key, "from": from, "to": to}).Warn("circuit breaker state change")
	}
	b := breaker.NewManager(breaker.Config{
		FailureThreshold: uint32(cfg.BreakerFailureThreshold),
		ResetTimeout:      cfg.BreakerResetTimeout,
		HalfOpenMaxCalls:  1,
	}, onBreakerChange)

	rt := router.New(providers, g, b).WithMetrics(rec)
	sr := stage.NewRunner(rt, st)

	enr := buildEnricher(cfg, st, log)

	orch := pipeline.New(cfg, st, sr, rt, idem, enr, log).WithMetrics(rec)
	orch.Holiday = holiday.New()

	srv := newServer(orch, st, idem, log)

	httpSrv := &http.Server{
		Addr:              ":" + envOrDefault("PORT", "8080"),
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("addr", httpSrv.Addr).Info("pilot-api listening")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
}

// connectWithRetry opens the Postgres pool with a bounded exponential
// backoff: the database is a co-deployed dependency that may still be
// starting up when this process does (e.g. a container orchestrator
// bringing both up together), so a handful of retries avoids a crash-loop
// on ordering alone, without masking a genuinely bad connection string.
func connectWithRetry(ctx context.Context, dsn string, log *logrus.Logger) (*sqlx.DB, error) {
	b := backoff.NewExponentialBackOff()
	b.MaxInterval = 5 * time.Second
	return backoff.Retry(ctx, func() (*sqlx.DB, error) {
		db, err := sqlx.Connect("pgx", dsn)
		if err != nil {
			log.WithError(err).Warn("postgres connection attempt failed, retrying")
			return nil, err
		}
		return db, nil
	}, backoff.WithBackOff(b), backoff.WithMaxTries(5))
}

// buildProviders constructs only the adapters whose credentials are
// present (spec §4.E); an operator running with a partial key set still
// gets a working, degraded router rather than a construction-time failure.
func buildProviders(ctx context.Context, cfg *config.Config, log *logrus.Logger) []provider.Provider {
	var providers []provider.Provider

	if cfg.Providers.AnthropicAPIKey != "" {
		providers = append(providers, provider.NewAnthropicClient(cfg.Providers.AnthropicAPIKey))
	}
	if cfg.Providers.OpenAIAPIKey != "" {
		providers = append(providers, provider.NewOpenAIClient(cfg.Providers.OpenAIAPIKey))
	}
	if cfg.Providers.PerplexityAPIKey != "" {
		providers = append(providers, provider.NewPerplexityClient(cfg.Providers.PerplexityAPIKey))
	}
	if cfg.Providers.GoogleAPIKey != "" {
		gem, err := provider.NewGeminiClient(ctx, cfg.Providers.GoogleAPIKey)
		if err != nil {
			log.WithError(err).Warn("gemini client construction failed, skipping provider")
		} else {
			providers = append(providers, gem)
		}
	}
	if cfg.Providers.VertexProjectID != "" {
		vx, err := provider.NewVertexClient(ctx, cfg.Providers.VertexProjectID, cfg.Providers.VertexLocation)
		if err != nil {
			log.WithError(err).Warn("vertex client construction failed, skipping provider")
		} else {
			providers = append(providers, vx)
		}
	}
	if envOrDefault("BEDROCK_ENABLED", "") != "" {
		bd, err := provider.NewBedrockClient(ctx, cfg.Providers.BedrockRegion)
		if err != nil {
			log.WithError(err).Warn("bedrock client construction failed, skipping provider")
		} else {
			providers = append(providers, bd)
		}
	}
	return providers
}

// buildEnricher wires the geospatial adapters venue enrichment depends on
// (spec §4.H); with no Google Maps key configured, nil is returned and the
// orchestrator falls back to its haversine-only predictive path.
func buildEnricher(cfg *config.Config, st store.Store, log *logrus.Logger) *enrichment.Enricher {
	if cfg.Providers.GoogleMapsAPIKey == "" {
		log.Warn("no GOOGLE_MAPS_API_KEY configured; venue enrichment will use predictive distance only")
		return nil
	}
	geocoder := geo.NewGoogleGeocodingClient(cfg.Providers.GoogleMapsAPIKey)
	places := geo.NewGooglePlacesClient(cfg.Providers.GoogleMapsAPIKey)
	routes := geo.NewGoogleRoutesClient(cfg.Providers.GoogleMapsAPIKey)
	return enrichment.NewEnricher(geocoder, places, routes, st)
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoiOrDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

// corsOptions builds go-chi/cors options from the environment, mirroring
// the teacher's CORS_ALLOWED_ORIGINS/CORS_ALLOW_CREDENTIALS env surface.
func corsOptions() cors.Options {
	return cors.Options{
		AllowedOrigins:   splitCSV(envOrDefault("CORS_ALLOWED_ORIGINS", "*")),
		AllowedMethods:   splitCSV(envOrDefault("CORS_ALLOWED_METHODS", "GET,POST,OPTIONS")),
		AllowedHeaders:   splitCSV(envOrDefault("CORS_ALLOWED_HEADERS", "Content-Type,X-Idempotency-Key,If-None-Match")),
		AllowCredentials: envOrDefault("CORS_ALLOW_CREDENTIALS", "false") == "true",
		MaxAge:           atoiOrDefault(envOrDefault("CORS_MAX_AGE", "300"), 300),
	}
}

func splitCSV(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}

// routes assembles the chi router with the middleware stack the teacher
// uses at its HTTP boundary: request ID, recover-from-panic, and CORS.
func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(corsOptions()))

	r.Get("/healthz", s.handleHealthz)
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/blocks", s.handleCreateBlocks)
	r.Get("/blocks", s.handleGetBlocks)
	r.Get("/blocks/strategy/{snapshot_id}", s.handleGetStrategy)

	return r
}
