package infra

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"token_scanner/internal/domain"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is where the service looks for its configuration.
const DefaultConfigPath = "configs/config.yaml"

// Config holds every setting of the scanner.
// After LoadConfig reads the file, environment variables override it.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Scanner struct {
		// Seed is optional; 0 means resolve from env, storage or first run.
		Seed           uint32        `yaml:"seed"`
		PageSize       int           `yaml:"page_size"`
		CacheTTL       time.Duration `yaml:"cache_ttl"`
		FastTiming     bool          `yaml:"fast_timing"`
		Interval       time.Duration `yaml:"interval"`
		MaxStagger     time.Duration `yaml:"max_stagger"`
		StatsEvery     int           `yaml:"stats_every"`
		FastFactor     int           `yaml:"fast_factor"`
		LiquidityDrift float64       `yaml:"liquidity_drift"`
		HistoryWindow  time.Duration `yaml:"history_window"`
	} `yaml:"scanner"`

	Server struct {
		ListenAddr string  `yaml:"listen_addr"`
		RateLimit  float64 `yaml:"rate_limit"` // inbound messages per second per session
		RateBurst  int     `yaml:"rate_burst"`
		SendQueue  int     `yaml:"send_queue"`
	} `yaml:"server"`

	Client struct {
		Enabled     bool   `yaml:"enabled"`
		WSURL       string `yaml:"ws_url"`
		Pages       []int  `yaml:"pages"`
		Chain       string `yaml:"chain"`
		RefreshSpec string `yaml:"refresh_spec"` // cron spec of the snapshot refresh
		InboxSize   int    `yaml:"inbox_size"`
	} `yaml:"client"`

	Storage struct {
		Path string `yaml:"path"`
	} `yaml:"storage"`

	Icons struct {
		Dir     string `yaml:"dir"`
		Workers int    `yaml:"workers"`
	} `yaml:"icons"`

	Logging struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"logging"`
}

// LoadConfig reads and parses the configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, &domain.ConfigError{Field: "path", Err: fmt.Errorf("%w: %s", domain.ErrConfigNotFound, path)}
	}
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// A missing .env file is fine.
	_ = godotenv.Load()
	if err := overrideWithEnv(&cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Scanner.PageSize <= 0 {
		c.Scanner.PageSize = 50
	}
	if c.Scanner.Interval <= 0 {
		c.Scanner.Interval = time.Second
	}
	if c.Scanner.MaxStagger <= 0 {
		c.Scanner.MaxStagger = 1500 * time.Millisecond
	}
	if c.Scanner.StatsEvery <= 0 {
		c.Scanner.StatsEvery = 2
	}
	if c.Scanner.FastFactor <= 0 {
		c.Scanner.FastFactor = 20
	}
	if c.Scanner.LiquidityDrift == 0 {
		c.Scanner.LiquidityDrift = 0.10
	}
	if c.Scanner.HistoryWindow <= 0 {
		c.Scanner.HistoryWindow = time.Hour
	}
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = ":8080"
	}
	if c.Server.RateLimit <= 0 {
		c.Server.RateLimit = 20
	}
	if c.Server.RateBurst <= 0 {
		c.Server.RateBurst = 40
	}
	if c.Server.SendQueue <= 0 {
		c.Server.SendQueue = 256
	}
	if len(c.Client.Pages) == 0 {
		c.Client.Pages = []int{1}
	}
	if c.Client.InboxSize <= 0 {
		c.Client.InboxSize = 1024
	}
	if c.Icons.Workers <= 0 {
		c.Icons.Workers = 4
	}
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	if c.Scanner.PageSize > 500 {
		return &domain.ConfigError{Field: "scanner.page_size", Err: fmt.Errorf("must be at most 500, got %d", c.Scanner.PageSize)}
	}
	if c.Scanner.LiquidityDrift < 0 || c.Scanner.LiquidityDrift > 1 {
		return &domain.ConfigError{Field: "scanner.liquidity_drift", Err: fmt.Errorf("must be within [0, 1], got %g", c.Scanner.LiquidityDrift)}
	}

	if c.Client.Enabled {
		if !strings.HasPrefix(c.Client.WSURL, "ws://") && !strings.HasPrefix(c.Client.WSURL, "wss://") {
			return &domain.ConfigError{Field: "client.ws_url", Err: fmt.Errorf("invalid websocket URL: %q", c.Client.WSURL)}
		}
		for _, p := range c.Client.Pages {
			if p < 1 {
				return &domain.ConfigError{Field: "client.pages", Err: fmt.Errorf("page must be positive, got %d", p)}
			}
		}
		if c.Client.Chain != "" && !domain.IsKnownChain(c.Client.Chain) {
			return &domain.ConfigError{Field: "client.chain", Err: fmt.Errorf("unknown chain %q", c.Client.Chain)}
		}
	}

	return nil
}

// overrideWithEnv overrides settings with environment variables when set.
func overrideWithEnv(cfg *Config) error {
	if v := os.Getenv("SCANNER_SEED"); v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return &domain.ConfigError{Field: "SCANNER_SEED", Err: err}
		}
		cfg.Scanner.Seed = uint32(n)
	}
	if v := os.Getenv("SCANNER_FAST_TIMING"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return &domain.ConfigError{Field: "SCANNER_FAST_TIMING", Err: err}
		}
		cfg.Scanner.FastTiming = b
	}
	if v := os.Getenv("SCANNER_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SCANNER_LISTEN_ADDR"); v != "" {
		cfg.Server.ListenAddr = v
	}
	return nil
}
