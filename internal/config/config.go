// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load(ctx) layers file and environment overrides on top.
// - External errors must be wrapped via this package's error helpers.
package config

import (
	"runtime"
)

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// DataDir is the root directory for versioned stat objects.
	DataDir string `koanf:"data_dir"`

	// CommitTimeoutMS bounds how long a commit waits on the per-key
	// lock before failing with ErrTimeout.
	CommitTimeoutMS int `koanf:"commit_timeout_ms"`

	// RetentionVersions is how many superseded versions to keep per
	// (weekKey, category) for rollback and audit.
	RetentionVersions int `koanf:"retention_versions"`

	// CacheCapacity bounds the total cached record count across all
	// (weekKey, category) entries.
	CacheCapacity int `koanf:"cache_capacity"`

	// TTLHours maps category -> cache TTL during the active season.
	// A zero TTL means the category is never served from cache.
	TTLHours map[string]int `koanf:"ttl_hours"`

	// OffseasonTTLHours overrides TTLHours outside the active season.
	OffseasonTTLHours map[string]int `koanf:"offseason_ttl_hours"`

	// ActiveSeasonStartMonth and ActiveSeasonEndMonth (inclusive,
	// wrapping over the new year) define when the in-season TTLs apply.
	ActiveSeasonStartMonth int `koanf:"active_season_start_month"`
	ActiveSeasonEndMonth   int `koanf:"active_season_end_month"`

	// MinSample maps category -> minimum sample size for a stored
	// record to satisfy exact (tier-1) resolution.
	MinSample map[string]int `koanf:"min_sample"`

	// FullSampleTarget maps category -> sample size at which a
	// measured record reaches confidence 1.0.
	FullSampleTarget map[string]int `koanf:"full_sample_target"`

	// RecencyWindow is how many prior weeks tier-2 resolution inspects.
	RecencyWindow int `koanf:"recency_window"`

	// DecayFactor is the per-week weight decay inside the recency window.
	DecayFactor float64 `koanf:"decay_factor"`

	// RecencyPenalty scales tier-2 confidence for being non-current.
	RecencyPenalty float64 `koanf:"recency_penalty"`

	// SeedDefaults maps field name -> tier-4 fallback constant.
	SeedDefaults map[string]float64 `koanf:"seed_defaults"`

	// AnomalySigma is the z-score threshold for anomaly warnings.
	AnomalySigma float64 `koanf:"anomaly_sigma"`

	// IngestQueueSize bounds the async ingest queue.
	IngestQueueSize int `koanf:"ingest_queue_size"`

	// IngestWorkerCount sets the number of async ingest workers.
	IngestWorkerCount int `koanf:"ingest_worker_count"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:          "info",
		DataDir:           "data",
		CommitTimeoutMS:   30_000,
		RetentionVersions: 3,
		CacheCapacity:     50_000,
		TTLHours: map[string]int{
			"player_stats":    24,
			"defensive_stats": 24,
			"team_stats":      7 * 24,
			"rolling_stats":   24,
			"predictions":     0,
			"odds":            6,
			"lineups":         12,
			"injuries":        12,
		},
		OffseasonTTLHours: map[string]int{
			"player_stats":    7 * 24,
			"defensive_stats": 7 * 24,
		},
		ActiveSeasonStartMonth: 8, // August
		ActiveSeasonEndMonth:   2, // February
		MinSample: map[string]int{
			"player_stats":    1,
			"defensive_stats": 1,
			"team_stats":      1,
			"rolling_stats":   1,
			"predictions":     0,
			"odds":            0,
			"lineups":         0,
			"injuries":        0,
		},
		// One measured game is a full sample: weekly stats resolve at
		// confidence 1.0 as soon as they are recorded. Raise per
		// category to discount small samples.
		FullSampleTarget: map[string]int{
			"player_stats":    1,
			"defensive_stats": 1,
			"team_stats":      1,
			"rolling_stats":   1,
			"predictions":     1,
			"odds":            1,
			"lineups":         1,
			"injuries":        1,
		},
		RecencyWindow:  3,
		DecayFactor:    0.7,
		RecencyPenalty: 0.85,
		SeedDefaults: map[string]float64{
			"games_played":     0,
			"wins":             0,
			"losses":           0,
			"window_games":     1,
			"projected_points": 0,
			"spread":           0,
			"depth_chart_rank": 32,
			"games_missed":     0,
		},
		AnomalySigma:      3,
		IngestQueueSize:   10_000,
		IngestWorkerCount: runtime.NumCPU() * 2,
	}
}
