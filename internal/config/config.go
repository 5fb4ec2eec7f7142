// Package config loads the single immutable configuration struct every
// component is wired from at startup. No tunable is read from Go source
// — everything here is a field with a yaml tag and a default applied
// only when the field is the zero value.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration loaded once at process start and passed
// explicitly to every component constructor. It replaces any notion of a
// global mutable configuration dict.
type Config struct {
	Discovery    DiscoveryConfig    `yaml:"discovery"`
	Catalog      CatalogConfig      `yaml:"catalog"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	Decision     DecisionConfig     `yaml:"decision"`
	Backtest     BacktestConfig     `yaml:"backtest"`
	Storage      StorageConfig      `yaml:"storage"`
}

// DiscoveryConfig governs the Edge Discoverer (C2).
type DiscoveryConfig struct {
	StartSeasonsBack int           `yaml:"start_seasons_back"` // default 8
	MinSample        int           `yaml:"min_sample"`         // default 100
	PValueThreshold  float64       `yaml:"p_value_threshold"`  // default 0.01
	Cadence          string        `yaml:"cadence"`            // cron expression, default weekly
	HoldoutSeasons   int           `yaml:"holdout_seasons"`    // default 2, most recent N seasons
	InteractionMinSupport int      `yaml:"interaction_min_support"` // default 100
	SimilarityDuplicateThreshold float64 `yaml:"similarity_duplicate_threshold"` // default 0.85
	VersionBumpMinDeltaPP        float64 `yaml:"version_bump_min_delta_pp"`      // default 0.05
	VersionBumpMinSampleRatio    float64 `yaml:"version_bump_min_sample_ratio"`  // default 1.5
}

// CatalogConfig governs the Edge Catalog (C1).
type CatalogConfig struct {
	MonitoringWindowGames int `yaml:"monitoring_window_games"` // trailing window for recent_stats / decay
}

// OrchestratorConfig governs C3. Per-collector overrides live
// in Collectors; unknown collectors fall back to Default.
type OrchestratorConfig struct {
	Default   CollectorPolicy            `yaml:"default"`
	Collectors map[string]CollectorPolicy `yaml:"collectors"`
	PriorityWait PriorityWaitConfig       `yaml:"priority_wait"`
	Retry        RetryConfig              `yaml:"retry"`
	Cache        CacheConfig              `yaml:"cache"`
	MaxParallelPerSource int              `yaml:"max_parallel_per_source"` // default 4
}

// CollectorPolicy bundles the rate-limit and circuit-breaker tunables for
// one collector key.
type CollectorPolicy struct {
	BucketCapacity     float64       `yaml:"bucket_capacity"`     // default 100/day equivalent
	RefillPerSecond    float64       `yaml:"refill_per_second"`
	RequestTimeout     time.Duration `yaml:"request_timeout"`     // default 10s
	CircuitFailThresh  int           `yaml:"circuit_fail_threshold"` // default 5
	CircuitCooldown    time.Duration `yaml:"circuit_cooldown"`    // default 60s
	CircuitHalfOpenMax int           `yaml:"circuit_half_open_successes"` // default 2
}

// PriorityWaitConfig is the per-level escalation thresholds.
type PriorityWaitConfig struct {
	LowSeconds    int `yaml:"low_seconds"`    // default 120
	NormalSeconds int `yaml:"normal_seconds"` // default 60
	HighSeconds   int `yaml:"high_seconds"`   // default 30
}

// RetryConfig is the backoff policy.
type RetryConfig struct {
	MaxRetries int           `yaml:"max_retries"` // default 3
	BaseDelay  time.Duration `yaml:"base_delay"`  // default 1s, doubling
}

// CacheConfig governs TTLs for the three-tier cache.
type CacheConfig struct {
	HotCapacity      int                    `yaml:"hot_capacity"` // bounded LRU entry count
	FileDir          string                 `yaml:"file_dir"`     // restart-surviving snapshot tier; empty disables it
	TTLByRequestType map[string]TTLSchedule `yaml:"ttl_by_request_type"`
}

// TTLSchedule varies TTL as kickoff approaches; Default applies outside all
// configured windows.
type TTLSchedule struct {
	Default time.Duration `yaml:"default"`
	Windows []TTLWindow   `yaml:"windows"`
}

// TTLWindow sets a TTL when time-to-kickoff is <= Within.
type TTLWindow struct {
	Within time.Duration `yaml:"within"`
	TTL    time.Duration `yaml:"ttl"`
}

// TTLFor returns the TTL that applies at the given time-to-kickoff.
func (s TTLSchedule) TTLFor(toKickoff time.Duration) time.Duration {
	best := s.Default
	bestWithin := time.Duration(1<<63 - 1)
	for _, w := range s.Windows {
		if toKickoff <= w.Within && w.Within < bestWithin {
			best = w.TTL
			bestWithin = w.Within
		}
	}
	return best
}

// DecisionConfig governs the Decision Engine (C4).
type DecisionConfig struct {
	MinEdgeNoMatch      float64       `yaml:"min_edge_no_match"`      // default 0.03
	MinEdgeWithMatch     float64       `yaml:"min_edge_with_match"`    // default 0.02
	MinConfidence        float64       `yaml:"min_confidence"`         // default 0.55
	KellyFractionBase    float64       `yaml:"kelly_fraction_base"`    // default 0.25 (quarter Kelly)
	StakeCapFraction     float64       `yaml:"stake_cap_fraction"`     // default 0.10
	StakeFloorFraction   float64       `yaml:"stake_floor_fraction"`   // default 0.001
	LeadTimeBeforeKickoff time.Duration `yaml:"lead_time_before_kickoff"` // default 10m
}

// BacktestConfig governs C5.
type BacktestConfig struct {
	TrainYears     int     `yaml:"train_years"`
	ValidateYears  int     `yaml:"validate_years"`
	FeatureCutoff  time.Duration `yaml:"feature_cutoff"` // as_of = kickoff - cutoff
	PatternMinSample int   `yaml:"pattern_min_sample"` // default 20
	PatternMinLiftPP float64 `yaml:"pattern_min_lift_pp"` // default 0.03
	PatternPValue    float64 `yaml:"pattern_p_value"` // default 0.01
}

// StorageConfig points at the catalog/history/bankroll backing stores.
type StorageConfig struct {
	PostgresDSN string `yaml:"postgres_dsn"`
	RedisAddr   string `yaml:"redis_addr"` // optional, empty disables redis hot tier
}

// Load reads and validates configuration from a YAML file, applying defaults
// for zero-valued tunables.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.Discovery.StartSeasonsBack == 0 {
		c.Discovery.StartSeasonsBack = 8
	}
	if c.Discovery.MinSample == 0 {
		c.Discovery.MinSample = 100
	}
	if c.Discovery.PValueThreshold == 0 {
		c.Discovery.PValueThreshold = 0.01
	}
	if c.Discovery.Cadence == "" {
		c.Discovery.Cadence = "0 6 * * 1"
	}
	if c.Discovery.HoldoutSeasons == 0 {
		c.Discovery.HoldoutSeasons = 2
	}
	if c.Discovery.InteractionMinSupport == 0 {
		c.Discovery.InteractionMinSupport = 100
	}
	if c.Discovery.SimilarityDuplicateThreshold == 0 {
		c.Discovery.SimilarityDuplicateThreshold = 0.85
	}
	if c.Discovery.VersionBumpMinDeltaPP == 0 {
		c.Discovery.VersionBumpMinDeltaPP = 0.05
	}
	if c.Discovery.VersionBumpMinSampleRatio == 0 {
		c.Discovery.VersionBumpMinSampleRatio = 1.5
	}

	if c.Orchestrator.Default.BucketCapacity == 0 {
		c.Orchestrator.Default.BucketCapacity = 100
	}
	if c.Orchestrator.Default.RefillPerSecond == 0 {
		c.Orchestrator.Default.RefillPerSecond = 100.0 / 86400.0 // 100/day
	}
	if c.Orchestrator.Default.RequestTimeout == 0 {
		c.Orchestrator.Default.RequestTimeout = 10 * time.Second
	}
	if c.Orchestrator.Default.CircuitFailThresh == 0 {
		c.Orchestrator.Default.CircuitFailThresh = 5
	}
	if c.Orchestrator.Default.CircuitCooldown == 0 {
		c.Orchestrator.Default.CircuitCooldown = 60 * time.Second
	}
	if c.Orchestrator.Default.CircuitHalfOpenMax == 0 {
		c.Orchestrator.Default.CircuitHalfOpenMax = 2
	}
	if c.Orchestrator.MaxParallelPerSource == 0 {
		c.Orchestrator.MaxParallelPerSource = 4
	}
	if c.Orchestrator.PriorityWait.LowSeconds == 0 {
		c.Orchestrator.PriorityWait.LowSeconds = 120
	}
	if c.Orchestrator.PriorityWait.NormalSeconds == 0 {
		c.Orchestrator.PriorityWait.NormalSeconds = 60
	}
	if c.Orchestrator.PriorityWait.HighSeconds == 0 {
		c.Orchestrator.PriorityWait.HighSeconds = 30
	}
	if c.Orchestrator.Retry.MaxRetries == 0 {
		c.Orchestrator.Retry.MaxRetries = 3
	}
	if c.Orchestrator.Retry.BaseDelay == 0 {
		c.Orchestrator.Retry.BaseDelay = time.Second
	}
	if c.Orchestrator.Cache.HotCapacity == 0 {
		c.Orchestrator.Cache.HotCapacity = 2048
	}

	if c.Decision.MinEdgeNoMatch == 0 {
		c.Decision.MinEdgeNoMatch = 0.03
	}
	if c.Decision.MinEdgeWithMatch == 0 {
		c.Decision.MinEdgeWithMatch = 0.02
	}
	if c.Decision.MinConfidence == 0 {
		c.Decision.MinConfidence = 0.55
	}
	if c.Decision.KellyFractionBase == 0 {
		c.Decision.KellyFractionBase = 0.25
	}
	if c.Decision.StakeCapFraction == 0 {
		c.Decision.StakeCapFraction = 0.10
	}
	if c.Decision.StakeFloorFraction == 0 {
		c.Decision.StakeFloorFraction = 0.001
	}
	if c.Decision.LeadTimeBeforeKickoff == 0 {
		c.Decision.LeadTimeBeforeKickoff = 10 * time.Minute
	}

	if c.Backtest.TrainYears == 0 {
		c.Backtest.TrainYears = 8
	}
	if c.Backtest.ValidateYears == 0 {
		c.Backtest.ValidateYears = 1
	}
	if c.Backtest.PatternMinSample == 0 {
		c.Backtest.PatternMinSample = 20
	}
	if c.Backtest.PatternMinLiftPP == 0 {
		c.Backtest.PatternMinLiftPP = 0.03
	}
	if c.Backtest.PatternPValue == 0 {
		c.Backtest.PatternPValue = 0.01
	}
}

// Validate rejects configurations that would violate documented invariants.
func (c *Config) Validate() error {
	if c.Decision.StakeCapFraction > 0.10 {
		return fmt.Errorf("decision.stake_cap_fraction %.4f exceeds the 10%% absolute cap", c.Decision.StakeCapFraction)
	}
	if c.Discovery.MinSample < 100 {
		return fmt.Errorf("discovery.min_sample %d below the required floor of 100", c.Discovery.MinSample)
	}
	if c.Discovery.PValueThreshold > 0.01 {
		return fmt.Errorf("discovery.p_value_threshold %.4f looser than the spec's p < 0.01 boundary", c.Discovery.PValueThreshold)
	}
	return nil
}

// PolicyFor returns the per-collector policy, falling back to the
// conservative default for unregistered collector keys.
func (c *OrchestratorConfig) PolicyFor(collectorKey string) CollectorPolicy {
	if p, ok := c.Collectors[collectorKey]; ok {
		return p
	}
	return c.Default
}
