package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"mediaforge/internal/domain"
)

// PollPolicy bounds how a single job kind is polled: the wait between polls,
// the number of pending polls tolerated before the job times out, and a
// separate ceiling for transient provider errors.
type PollPolicy struct {
	Interval     time.Duration
	MaxAttempts  int
	MaxTransient int
}

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string
	JWTSecret   string

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int

	// Orchestrator knobs.
	MaxInFlight   int64
	ClaimInterval time.Duration
	ClaimBatch    int
	JobLease      time.Duration
	PollPolicies  map[domain.JobKind]PollPolicy

	// Token cost reserved per job kind.
	KindCosts map[domain.JobKind]int64

	// Starting balance granted when an account row is first created.
	StartingBalance int64

	// Provider endpoints; empty base URL leaves the kind unserved.
	Providers map[domain.JobKind]ProviderConfig
}

// ProviderConfig locates one upstream generation provider.
type ProviderConfig struct {
	Name    string
	BaseURL string
	APIKey  string
}

// Per-kind polling defaults. Provider latency profiles differ by media kind:
// image edits settle in seconds, video and 3D generation can run minutes.
var defaultPolicies = map[domain.JobKind]PollPolicy{
	domain.JobKindImage:            {Interval: time.Second, MaxAttempts: 30, MaxTransient: 5},
	domain.JobKindTextTransform:    {Interval: time.Second, MaxAttempts: 20, MaxTransient: 5},
	domain.JobKindAudio:            {Interval: 2 * time.Second, MaxAttempts: 60, MaxTransient: 5},
	domain.JobKindVideo:            {Interval: 5 * time.Second, MaxAttempts: 120, MaxTransient: 8},
	domain.JobKindThreeD:           {Interval: 5 * time.Second, MaxAttempts: 180, MaxTransient: 8},
	domain.JobKindCompositeSegment: {Interval: 5 * time.Second, MaxAttempts: 120, MaxTransient: 8},
}

var defaultCosts = map[domain.JobKind]int64{
	domain.JobKindImage:            5,
	domain.JobKindTextTransform:    1,
	domain.JobKindAudio:            10,
	domain.JobKindVideo:            50,
	domain.JobKindThreeD:           40,
	domain.JobKindCompositeSegment: 50,
}

var defaultProviders = map[domain.JobKind]ProviderConfig{
	domain.JobKindImage:            {Name: "flux"},
	domain.JobKindVideo:            {Name: "veo"},
	domain.JobKindAudio:            {Name: "aria"},
	domain.JobKindThreeD:           {Name: "meshy"},
	domain.JobKindTextTransform:    {Name: "gemini"},
	domain.JobKindCompositeSegment: {Name: "veo"},
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		JWTSecret:   os.Getenv("JWT_SECRET"),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 60),

		MaxInFlight:   int64(getEnvInt("ORCH_MAX_IN_FLIGHT", 32)),
		ClaimInterval: time.Second * time.Duration(getEnvInt("ORCH_CLAIM_INTERVAL_SECONDS", 2)),
		ClaimBatch:    getEnvInt("ORCH_CLAIM_BATCH", 8),
		JobLease:      time.Second * time.Duration(getEnvInt("ORCH_JOB_LEASE_SECONDS", 60)),

		StartingBalance: int64(getEnvInt("ACCOUNT_STARTING_BALANCE", 200)),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	cfg.PollPolicies = loadPollPolicies()
	cfg.KindCosts = loadKindCosts()
	cfg.Providers = loadProviders()

	return cfg, nil
}

func loadPollPolicies() map[domain.JobKind]PollPolicy {
	policies := make(map[domain.JobKind]PollPolicy, len(defaultPolicies))
	for kind, def := range defaultPolicies {
		key := envKeyForKind(kind)
		policies[kind] = PollPolicy{
			Interval:     time.Second * time.Duration(getEnvInt("POLL_INTERVAL_"+key+"_SECONDS", int(def.Interval/time.Second))),
			MaxAttempts:  getEnvInt("POLL_MAX_ATTEMPTS_"+key, def.MaxAttempts),
			MaxTransient: getEnvInt("POLL_MAX_TRANSIENT_"+key, def.MaxTransient),
		}
	}
	return policies
}

func loadKindCosts() map[domain.JobKind]int64 {
	costs := make(map[domain.JobKind]int64, len(defaultCosts))
	for kind, def := range defaultCosts {
		costs[kind] = int64(getEnvInt("COST_"+envKeyForKind(kind), int(def)))
	}
	return costs
}

func loadProviders() map[domain.JobKind]ProviderConfig {
	providers := make(map[domain.JobKind]ProviderConfig, len(defaultProviders))
	for kind, def := range defaultProviders {
		key := envKeyForKind(kind)
		providers[kind] = ProviderConfig{
			Name:    getEnv("PROVIDER_"+key+"_NAME", def.Name),
			BaseURL: os.Getenv("PROVIDER_" + key + "_BASE_URL"),
			APIKey:  os.Getenv("PROVIDER_" + key + "_API_KEY"),
		}
	}
	return providers
}

func envKeyForKind(kind domain.JobKind) string {
	return strings.ToUpper(string(kind))
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
