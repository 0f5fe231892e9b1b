package config

import "strings"

// Config is the main configuration carrier.
type Config struct {
	App        AppConfig        `toml:"app"`
	Pricing    PricingConfig    `toml:"pricing"`
	Signals    SignalsConfig    `toml:"signals"`
	Reflection ReflectionConfig `toml:"reflection"`
	Ledger     LedgerConfig     `toml:"ledger"`
	Narrator   NarratorConfig   `toml:"narrator"`
	Catalog    CatalogConfig    `toml:"catalog"`
}

type AppConfig struct {
	Env             string `toml:"env"`
	LogLevel        string `toml:"log_level"`
	HTTPAddr        string `toml:"http_addr"`
	LogPath         string `toml:"log_path"`
	NarratorLogPath string `toml:"narrator_log_path"`
	NarratorDump    bool   `toml:"narrator_dump_payload"`
}

// PricingConfig controls the repricing cycles and the policy engine.
type PricingConfig struct {
	CycleInterval        string  `toml:"cycle_interval"`         // "15m", "1h", "1d"
	CycleOffsetSeconds   int     `toml:"cycle_offset_seconds"`   // delay after the interval boundary
	RunImmediately       bool    `toml:"run_immediately"`        // sweep once at startup
	CycleDeadlineSeconds int     `toml:"cycle_deadline_seconds"` // whole-cycle budget
	Workers              int     `toml:"workers"`                // concurrent product cycles
	ProfilesPath         string  `toml:"profiles_path"`          // per-category policy profiles
	DemandAlpha          float64 `toml:"demand_alpha"`
	DemandBeta           float64 `toml:"demand_beta"`
	DefaultElasticity    float64 `toml:"default_elasticity"`
	SalesWindowDays      int     `toml:"sales_window_days"`
	VelocitySmoothing    int     `toml:"velocity_smoothing_days"`
	StatsRefreshInterval string  `toml:"stats_refresh_interval"`
}

type SignalsConfig struct {
	SourceTimeoutSeconds int `toml:"source_timeout_seconds"`
	StaleAfterHours      int `toml:"stale_after_hours"`
}

type ReflectionConfig struct {
	Interval         string  `toml:"interval"`
	HorizonDays      int     `toml:"horizon_days"`
	Gain             float64 `toml:"gain"`
	MaxAdjustmentPct float64 `toml:"max_adjustment_pct"`
}

type LedgerConfig struct {
	Path           string `toml:"path"`
	TracePath      string `toml:"trace_path"`
	RetryAttempts  int    `toml:"retry_attempts"`
	RetryBackoffMS int    `toml:"retry_backoff_ms"`
}

// NarratorConfig describes the optional reasoning collaborator.
type NarratorConfig struct {
	Enabled        bool `toml:"enabled"`
	TimeoutSeconds int  `toml:"timeout_seconds"`
}

type CatalogConfig struct {
	Path string `toml:"path"` // product seed catalog, applied on empty ledger
}

// keySet tracks config field paths explicitly set in the file.
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

// fieldDefault describes one field's default application rule.
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
