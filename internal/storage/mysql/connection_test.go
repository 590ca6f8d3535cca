package mysql

import (
	"context"
	"testing"
	"time"
)

func TestDriverConfigPinsOptions(t *testing.T) {
	t.Parallel()

	cfg, err := driverConfig("user:pass@tcp(db:3306)/openmcp?multiStatements=true")
	if err != nil {
		t.Fatalf("driverConfig: %v", err)
	}
	if cfg.Addr != "db:3306" || cfg.DBName != "openmcp" || cfg.User != "user" {
		t.Fatalf("unexpected parse %+v", cfg)
	}
	if cfg.MultiStatements {
		t.Fatal("multi statements must be disabled")
	}
	if cfg.Loc != time.UTC || cfg.Timeout != defaultDialTimeout || cfg.Collation != "utf8mb4_unicode_ci" {
		t.Fatalf("options not pinned: loc=%v timeout=%v collation=%q", cfg.Loc, cfg.Timeout, cfg.Collation)
	}

	cfg, err = driverConfig("user@tcp(db)/openmcp?timeout=2s&collation=utf8mb4_bin")
	if err != nil {
		t.Fatalf("driverConfig: %v", err)
	}
	if cfg.Timeout != 2*time.Second || cfg.Collation != "utf8mb4_bin" {
		t.Fatalf("explicit options overridden: %v %q", cfg.Timeout, cfg.Collation)
	}
}

func TestDriverConfigRejectsBadDSN(t *testing.T) {
	t.Parallel()

	for _, dsn := range []string{"", "   ", "user@tcp(db/openmcp"} {
		if _, err := driverConfig(dsn); err == nil {
			t.Fatalf("expected %q to be rejected", dsn)
		}
	}
	if _, err := NewWalletStore(context.Background(), Config{}); err == nil {
		t.Fatal("expected empty DSN to fail")
	}
}

func TestPoolDefaults(t *testing.T) {
	t.Parallel()

	got := Config{}.withDefaults()
	if got.MaxOpenConns != defaultMaxOpenConns || got.MaxIdleConns != defaultMaxIdleConns || got.ConnMaxLifetime != defaultConnMaxLifetime {
		t.Fatalf("unexpected defaults %+v", got)
	}
	got = Config{MaxOpenConns: 2, MaxIdleConns: 8}.withDefaults()
	if got.MaxIdleConns != 2 {
		t.Fatalf("idle conns must not exceed open conns, got %d", got.MaxIdleConns)
	}
}
