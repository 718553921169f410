// Package config holds the core's own recognized environment variables
// (spec §6 "Configuration surface"). Loading a config file, flags, and
// everything else an operator-facing config layer does is out of scope for
// this module; Load only resolves the keys the pipeline itself consumes.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	sharederrors "github.com/vecto-pilot/pilot-core/pkg/shared/errors"
)

// RouterMode selects whether a role races providers or calls exactly one.
type RouterMode string

const (
	RouterModeHedged RouterMode = "hedged"
	RouterModeSingle RouterMode = "single"
)

// DatabaseConfig configures the Postgres connection pool backing the state
// store (pkg/store).
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

func DefaultDatabaseConfig() *DatabaseConfig {
	return &DatabaseConfig{
		Host:            "localhost",
		Port:            5432,
		User:            "pilot_user",
		Database:        "pilot_core",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 5 * time.Minute,
	}
}

func (c *DatabaseConfig) LoadFromEnv() {
	if v := os.Getenv("DB_HOST"); v != "" {
		c.Host = v
	}
	if v := os.Getenv("DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Port = port
		}
	}
	if v := os.Getenv("DB_USER"); v != "" {
		c.User = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		c.Password = v
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		c.Database = v
	}
	if v := os.Getenv("DB_SSL_MODE"); v != "" {
		c.SSLMode = v
	}
}

func (c *DatabaseConfig) Validate() error {
	if c.Host == "" {
		return sharederrors.ValidationError("host", "database host is required")
	}
	if c.Port < 1 || c.Port > 65535 {
		return sharederrors.ValidationError("port", "database port must be between 1 and 65535")
	}
	if c.User == "" {
		return sharederrors.ValidationError("user", "database user is required")
	}
	if c.Database == "" {
		return sharederrors.ValidationError("database", "database name is required")
	}
	if c.MaxOpenConns <= 0 {
		return sharederrors.ValidationError("max_open_conns", "max open connections must be greater than 0")
	}
	if c.MaxIdleConns < 0 {
		return sharederrors.ValidationError("max_idle_conns", "max idle connections must be non-negative")
	}
	return nil
}

func (c *DatabaseConfig) ConnectionString() string {
	dsn := fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Database, c.SSLMode)
	if c.Password != "" {
		dsn += fmt.Sprintf(" password=%s", c.Password)
	}
	return dsn
}

// ProviderKeys holds the API credentials for each external AI vendor.
type ProviderKeys struct {
	AnthropicAPIKey  string
	OpenAIAPIKey     string
	GoogleAPIKey     string
	PerplexityAPIKey string
	TomTomAPIKey     string
	GoogleMapsAPIKey string

	// VertexProjectID/VertexLocation and BedrockRegion are only consulted
	// when their respective provider is enabled (spec §4.E); Vertex and
	// Bedrock authenticate via ambient GCP/AWS credentials, not an API key.
	VertexProjectID string
	VertexLocation  string
	BedrockRegion   string
}

// RoleModels carries the role-to-model mapping from spec §6.
type RoleModels struct {
	Strategist     string
	Briefer        string
	Consolidator   string
	VenuePlanner   string

	// StrategistProvider/VenuePlannerProvider name the single provider
	// ExecuteSingle targets for the two accuracy-critical, non-hedged
	// roles (spec §4.D role policy table).
	StrategistProvider   string
	VenuePlannerProvider string
}

// ValueGrading holds the constants used to compute value_per_min and the
// A/B/C/D grade thresholds (spec §4.G step 11).
type ValueGrading struct {
	BaseRatePerMin      float64
	DefaultTripMinutes  float64
	DefaultWaitMinutes  float64
	MinAcceptablePerMin float64
}

// Config is the root configuration the pipeline orchestrator is built from.
type Config struct {
	RouterMode               RouterMode
	HedgedTimeout             time.Duration
	MaxConcurrentPerProvider  int
	TotalBudget               time.Duration
	PlannerDeadline           time.Duration
	BriefingTimeout           time.Duration
	TriadTimeout              time.Duration
	GateQueueTimeout          time.Duration
	BreakerFailureThreshold   int
	BreakerResetTimeout       time.Duration
	IdempotencyTTL            time.Duration
	TriadCacheTTL             time.Duration

	Database DatabaseConfig
	RedisURL string

	Providers  ProviderKeys
	RoleModels RoleModels
	Value      ValueGrading
}

// Default returns the configuration the pipeline uses when no environment
// variable overrides a given key.
func Default() *Config {
	cfg := &Config{
		RouterMode:               RouterModeHedged,
		HedgedTimeout:            8 * time.Second,
		MaxConcurrentPerProvider: 10,
		TotalBudget:              180 * time.Second,
		PlannerDeadline:          120 * time.Second,
		BriefingTimeout:          8 * time.Second,
		TriadTimeout:             20 * time.Second,
		GateQueueTimeout:         30 * time.Second,
		BreakerFailureThreshold:  5,
		BreakerResetTimeout:      60 * time.Second,
		IdempotencyTTL:           60 * time.Second,
		TriadCacheTTL:            2 * time.Minute,
		Database:                 *DefaultDatabaseConfig(),
		Value: ValueGrading{
			BaseRatePerMin:      0.45,
			DefaultTripMinutes:  12,
			DefaultWaitMinutes:  5,
			MinAcceptablePerMin: 0.35,
		},
	}
	return cfg
}

// Load builds a Config from Default() overridden by recognized environment
// variables (spec §6). It never reads a config file.
func Load() (*Config, error) {
	cfg := Default()

	if v := os.Getenv("LLM_ROUTER_MODE"); v != "" {
		cfg.RouterMode = RouterMode(v)
	}
	if v := durationFromMS("LLM_HEDGED_TIMEOUT_MS"); v > 0 {
		cfg.HedgedTimeout = v
	}
	if v := intFromEnv("LLM_MAX_CONCURRENT_PER_PROVIDER"); v > 0 {
		cfg.MaxConcurrentPerProvider = v
	}
	if v := durationFromMS("LLM_TOTAL_BUDGET_MS"); v > 0 {
		cfg.TotalBudget = v
	}
	if v := durationFromMS("PLANNER_DEADLINE_MS"); v > 0 {
		cfg.PlannerDeadline = v
	}
	if v := durationFromMS("BRIEFING_TIMEOUT_MS"); v > 0 {
		cfg.BriefingTimeout = v
	}
	if v := durationFromMS("TRIAD_TIMEOUT_MS"); v > 0 {
		cfg.TriadTimeout = v
	}
	if v := intFromEnv("LLM_BREAKER_FAILURE_THRESHOLD"); v > 0 {
		cfg.BreakerFailureThreshold = v
	}
	if v := durationFromMS("LLM_BREAKER_RESET_MS"); v > 0 {
		cfg.BreakerResetTimeout = v
	}
	if v := floatFromEnv("VALUE_BASE_RATE_PER_MIN"); v > 0 {
		cfg.Value.BaseRatePerMin = v
	}
	if v := floatFromEnv("VALUE_DEFAULT_TRIP_MIN"); v > 0 {
		cfg.Value.DefaultTripMinutes = v
	}
	if v := floatFromEnv("VALUE_DEFAULT_WAIT_MIN"); v > 0 {
		cfg.Value.DefaultWaitMinutes = v
	}
	if v := floatFromEnv("VALUE_MIN_ACCEPTABLE_PER_MIN"); v > 0 {
		cfg.Value.MinAcceptablePerMin = v
	}

	cfg.Providers = ProviderKeys{
		AnthropicAPIKey:  os.Getenv("ANTHROPIC_API_KEY"),
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		GoogleAPIKey:     os.Getenv("GOOGLE_API_KEY"),
		PerplexityAPIKey: os.Getenv("PERPLEXITY_API_KEY"),
		TomTomAPIKey:     os.Getenv("TOMTOM_API_KEY"),
		GoogleMapsAPIKey: os.Getenv("GOOGLE_MAPS_API_KEY"),
		VertexProjectID:  os.Getenv("VERTEX_PROJECT_ID"),
		VertexLocation:   envOrDefault("VERTEX_LOCATION", "us-central1"),
		BedrockRegion:    envOrDefault("BEDROCK_REGION", "us-east-1"),
	}

	cfg.RoleModels = RoleModels{
		Strategist:           envOrDefault("STRATEGY_STRATEGIST", "claude-opus-4"),
		Briefer:              envOrDefault("STRATEGY_BRIEFER", "claude-haiku-4"),
		Consolidator:         envOrDefault("STRATEGY_CONSOLIDATOR", "claude-sonnet-4"),
		VenuePlanner:         envOrDefault("STRATEGY_VENUE_PLANNER", "claude-opus-4"),
		StrategistProvider:   envOrDefault("STRATEGY_STRATEGIST_PROVIDER", "anthropic"),
		VenuePlannerProvider: envOrDefault("STRATEGY_VENUE_PLANNER_PROVIDER", "anthropic"),
	}

	cfg.Database.LoadFromEnv()
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.RedisURL = v
	} else {
		cfg.RedisURL = "redis://localhost:6379/0"
	}

	if err := cfg.Database.Validate(); err != nil {
		return nil, sharederrors.Wrapf(err, "invalid database configuration")
	}

	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func intFromEnv(key string) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return 0
	}
	return v
}

func floatFromEnv(key string) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return 0
	}
	return v
}

func durationFromMS(key string) time.Duration {
	ms := intFromEnv(key)
	if ms <= 0 {
		return 0
	}
	return time.Duration(ms) * time.Millisecond
}
