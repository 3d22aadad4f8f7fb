package infra

import (
	"testing"
	"time"

	"mediaforge/internal/domain"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/mediaforge_test")
	t.Setenv("JWT_SECRET", "test-secret")
}

func TestLoadConfigDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8080" || cfg.AppEnv != "development" {
		t.Fatalf("server defaults: port=%s env=%s", cfg.Port, cfg.AppEnv)
	}

	video := cfg.PollPolicies[domain.JobKindVideo]
	if video.Interval != 5*time.Second || video.MaxAttempts != 120 {
		t.Fatalf("video policy = %+v", video)
	}
	image := cfg.PollPolicies[domain.JobKindImage]
	if image.Interval != time.Second || image.MaxAttempts != 30 {
		t.Fatalf("image policy = %+v", image)
	}
	if cfg.PollPolicies[domain.JobKindCompositeSegment] != cfg.PollPolicies[domain.JobKindVideo] {
		t.Fatal("composite segments should poll like video")
	}

	if cfg.KindCosts[domain.JobKindImage] != 5 || cfg.KindCosts[domain.JobKindVideo] != 50 {
		t.Fatalf("costs = %v", cfg.KindCosts)
	}
	if cfg.Providers[domain.JobKindThreeD].Name != "meshy" {
		t.Fatalf("providers = %v", cfg.Providers)
	}
	if cfg.StartingBalance != 200 {
		t.Fatalf("starting balance = %d", cfg.StartingBalance)
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("POLL_INTERVAL_VIDEO_SECONDS", "10")
	t.Setenv("POLL_MAX_ATTEMPTS_VIDEO", "240")
	t.Setenv("POLL_MAX_TRANSIENT_VIDEO", "3")
	t.Setenv("COST_IMAGE", "7")
	t.Setenv("PROVIDER_IMAGE_BASE_URL", "https://flux.example.com")
	t.Setenv("PROVIDER_IMAGE_API_KEY", "k-123")
	t.Setenv("ORCH_MAX_IN_FLIGHT", "4")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	video := cfg.PollPolicies[domain.JobKindVideo]
	if video.Interval != 10*time.Second || video.MaxAttempts != 240 || video.MaxTransient != 3 {
		t.Fatalf("video policy = %+v", video)
	}
	if cfg.KindCosts[domain.JobKindImage] != 7 {
		t.Fatalf("image cost = %d", cfg.KindCosts[domain.JobKindImage])
	}
	image := cfg.Providers[domain.JobKindImage]
	if image.BaseURL != "https://flux.example.com" || image.APIKey != "k-123" {
		t.Fatalf("image provider = %+v", image)
	}
	if cfg.MaxInFlight != 4 {
		t.Fatalf("max in flight = %d", cfg.MaxInFlight)
	}
}

func TestLoadConfigRequiresDatabaseAndSecret(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "s")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("missing DATABASE_URL accepted")
	}

	t.Setenv("DATABASE_URL", "postgres://localhost/db")
	t.Setenv("JWT_SECRET", "")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("missing JWT_SECRET accepted")
	}
}

func TestGetEnvIntIgnoresGarbage(t *testing.T) {
	t.Setenv("SOME_INT", "not-a-number")
	if got := getEnvInt("SOME_INT", 42); got != 42 {
		t.Fatalf("got %d, want fallback 42", got)
	}
}
