package infra

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"token_scanner/internal/domain"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	path := writeConfig(t, "app:\n  name: scanner\nscanner:\n  seed: 42\n")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Scanner.Seed != 42 {
		t.Errorf("Expected seed 42, got %d", cfg.Scanner.Seed)
	}
	if cfg.Scanner.PageSize != 50 {
		t.Errorf("Expected page size 50, got %d", cfg.Scanner.PageSize)
	}
	if cfg.Scanner.Interval != time.Second {
		t.Errorf("Expected 1s interval, got %v", cfg.Scanner.Interval)
	}
	if cfg.Scanner.LiquidityDrift != 0.10 {
		t.Errorf("Expected drift 0.10, got %v", cfg.Scanner.LiquidityDrift)
	}
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	path := writeConfig(t, "scanner:\n  seed: 1\n")
	t.Setenv("SCANNER_SEED", "7")
	t.Setenv("SCANNER_FAST_TIMING", "true")
	t.Setenv("SCANNER_LISTEN_ADDR", ":9999")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Scanner.Seed != 7 {
		t.Errorf("Expected seed 7 from env, got %d", cfg.Scanner.Seed)
	}
	if !cfg.Scanner.FastTiming {
		t.Error("Expected fast timing from env")
	}
	if cfg.Server.ListenAddr != ":9999" {
		t.Errorf("Expected :9999, got %s", cfg.Server.ListenAddr)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
		if !errors.Is(err, domain.ErrConfigNotFound) {
			t.Errorf("Expected ErrConfigNotFound, got %v", err)
		}
	})

	t.Run("bad seed", func(t *testing.T) {
		t.Setenv("SCANNER_SEED", "not-a-number")
		_, err := LoadConfig(writeConfig(t, "app:\n  name: x\n"))
		var ce *domain.ConfigError
		if !errors.As(err, &ce) || ce.Field != "SCANNER_SEED" {
			t.Errorf("Expected ConfigError for SCANNER_SEED, got %v", err)
		}
	})

	t.Run("bad client url", func(t *testing.T) {
		_, err := LoadConfig(writeConfig(t, "client:\n  enabled: true\n  ws_url: http://x\n"))
		var ce *domain.ConfigError
		if !errors.As(err, &ce) || ce.Field != "client.ws_url" {
			t.Errorf("Expected ConfigError for client.ws_url, got %v", err)
		}
	})
}

func TestCalculateBackoff(t *testing.T) {
	tests := []struct {
		retry int
		want  time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{5, 32 * time.Second},
		{6, 60 * time.Second},
		{100, 60 * time.Second},
	}
	for _, tt := range tests {
		if got := CalculateBackoff(tt.retry); got != tt.want {
			t.Errorf("CalculateBackoff(%d) = %v, want %v", tt.retry, got, tt.want)
		}
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("DEBUG") != slog.LevelDebug {
		t.Error("Expected debug level")
	}
	if ParseLevel("bogus") != slog.LevelInfo {
		t.Error("Unknown level should default to info")
	}
}
