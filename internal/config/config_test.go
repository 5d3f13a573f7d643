package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.HTTPAddr != ":8080" || cfg.GRPCAddr != ":50051" {
		t.Fatalf("addrs = %q, %q", cfg.HTTPAddr, cfg.GRPCAddr)
	}
	if cfg.ShutdownTimeout != 10*time.Second || cfg.DBConnMaxLifetime != 30*time.Minute {
		t.Fatalf("durations = %v, %v", cfg.ShutdownTimeout, cfg.DBConnMaxLifetime)
	}
	if cfg.BlockPolicy != "reject_bookings" || !cfg.EnforceWorkingHours || cfg.DefaultDuration != 30 {
		t.Fatalf("scheduling = %q %v %d", cfg.BlockPolicy, cfg.EnforceWorkingHours, cfg.DefaultDuration)
	}
	if cfg.KafkaTopic != "agenda.bookings" {
		t.Fatalf("topic = %q", cfg.KafkaTopic)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("AGENDA_HTTP_ADDR", "127.0.0.1:9000")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/agenda")
	t.Setenv("AGENDA_SCHEDULING_BLOCK_POLICY", "blocks_only")
	t.Setenv("AGENDA_SCHEDULING_ENFORCE_WORKING_HOURS", "false")
	t.Setenv("AGENDA_SCHEDULING_DEFAULT_DURATION", "15")
	t.Setenv("AGENDA_RATELIMIT_RPS", "2.5")
	t.Setenv("AGENDA_SHUTDOWN_TIMEOUT", "3s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.HTTPAddr != "127.0.0.1:9000" {
		t.Fatalf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.DatabaseURL != "postgres://u:p@db:5432/agenda" {
		t.Fatalf("DatabaseURL = %q", cfg.DatabaseURL)
	}
	if cfg.BlockPolicy != "blocks_only" || cfg.EnforceWorkingHours || cfg.DefaultDuration != 15 {
		t.Fatalf("scheduling = %q %v %d", cfg.BlockPolicy, cfg.EnforceWorkingHours, cfg.DefaultDuration)
	}
	if cfg.RateLimitRPS != 2.5 || cfg.ShutdownTimeout != 3*time.Second {
		t.Fatalf("rps=%v shutdown=%v", cfg.RateLimitRPS, cfg.ShutdownTimeout)
	}
}

func TestLoad_RejectsBadValues(t *testing.T) {
	t.Setenv("AGENDA_GRPC_REQUEST_TIMEOUT", "soon")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for unparsable duration")
	}
}

func TestLoad_RejectsDefaultDurationOutOfRange(t *testing.T) {
	t.Setenv("AGENDA_SCHEDULING_DEFAULT_DURATION", "0")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for zero default duration")
	}
}
