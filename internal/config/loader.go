package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/gridstat/gridstat/internal/domain/model"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if GRIDSTAT_CONFIG is set
//  3. env (prefix GRIDSTAT_)
func Load(ctx context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv("GRIDSTAT_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
		}
	}

	// Environment variables: GRIDSTAT_DATA_DIR, GRIDSTAT_CACHE_CAPACITY, ...
	// Single underscores stay literal to match the koanf tags on the
	// struct; a double underscore descends into map-valued options, e.g.
	// GRIDSTAT_TTL_HOURS__PLAYER_STATS overrides ttl_hours.player_stats.
	envProvider := env.Provider("GRIDSTAT_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "gridstat_")
		return strings.ReplaceAll(s, "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks structural constraints and the seed-default coverage
// the fallback resolver depends on. A field that could reach tier 4
// with no configured constant is a configuration error and must fail
// here, at startup, not at resolve time.
func (c *Config) Validate() error {
	switch {
	case c.DataDir == "":
		return fmt.Errorf("%w: data_dir must not be empty", ErrInvalidConfig)
	case c.CommitTimeoutMS <= 0:
		return fmt.Errorf("%w: commit_timeout_ms must be positive", ErrInvalidConfig)
	case c.RetentionVersions < 1:
		return fmt.Errorf("%w: retention_versions must be at least 1", ErrInvalidConfig)
	case c.CacheCapacity <= 0:
		return fmt.Errorf("%w: cache_capacity must be positive", ErrInvalidConfig)
	case c.RecencyWindow < 0:
		return fmt.Errorf("%w: recency_window must not be negative", ErrInvalidConfig)
	case c.DecayFactor <= 0 || c.DecayFactor > 1:
		return fmt.Errorf("%w: decay_factor must be in (0,1]", ErrInvalidConfig)
	case c.RecencyPenalty <= 0 || c.RecencyPenalty > 1:
		return fmt.Errorf("%w: recency_penalty must be in (0,1]", ErrInvalidConfig)
	case c.AnomalySigma <= 0:
		return fmt.Errorf("%w: anomaly_sigma must be positive", ErrInvalidConfig)
	}

	if c.ActiveSeasonStartMonth < 1 || c.ActiveSeasonStartMonth > 12 ||
		c.ActiveSeasonEndMonth < 1 || c.ActiveSeasonEndMonth > 12 {
		return fmt.Errorf("%w: active season months must be in 1..12", ErrInvalidConfig)
	}

	for _, cat := range model.Categories() {
		for _, field := range model.RequiredNumericFields(cat) {
			if _, ok := c.SeedDefaults[field]; !ok {
				return fmt.Errorf("%w: no seed default for required field %q (%s)",
					ErrInvalidConfig, field, cat)
			}
		}
	}
	return nil
}
