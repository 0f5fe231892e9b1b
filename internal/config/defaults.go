package config

import "strings"

const (
	defaultAppEnv              = "dev"
	defaultAppLogLevel         = "info"
	defaultAppHTTPAddr         = ":9980"
	defaultAppLogPath          = "/data/logs/reprice.log"
	defaultNarratorLogPath     = "/data/logs/reprice-narrator.log"
	defaultCycleInterval       = "1h"
	defaultCycleDeadline       = 30
	defaultWorkers             = 4
	defaultProfilesPath        = "configs/profiles.yaml"
	defaultDemandAlpha         = 0.6
	defaultDemandBeta          = 0.4
	defaultElasticity          = -1.0
	defaultSalesWindowDays     = 30
	defaultVelocitySmoothing   = 7
	defaultStatsRefresh        = "1h"
	defaultSourceTimeout       = 5
	defaultStaleAfterHours     = 24
	defaultReflectionInterval  = "1d"
	defaultReflectionHorizon   = 7
	defaultReflectionGain      = 0.1
	defaultReflectionMaxAdjust = 0.05
	defaultLedgerPath          = "/data/db/reprice.db"
	defaultTracePath           = "/data/db/cycle_traces.db"
	defaultRetryAttempts       = 3
	defaultRetryBackoffMS      = 200
	defaultNarratorTimeout     = 10
	defaultCatalogPath         = "configs/catalog.yaml"
)

func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Pricing.applyDefaults(keys)
	c.Signals.applyDefaults(keys)
	c.Reflection.applyDefaults(keys)
	c.Ledger.applyDefaults(keys)
	c.Narrator.applyDefaults(keys)
	c.Catalog.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
		stringFieldDefault("app.log_path", &a.LogPath, defaultAppLogPath),
		stringFieldDefault("app.narrator_log_path", &a.NarratorLogPath, defaultNarratorLogPath),
	)
}

func (p *PricingConfig) applyDefaults(keys keySet) {
	if p == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("pricing.cycle_interval", &p.CycleInterval, defaultCycleInterval),
		stringFieldDefault("pricing.profiles_path", &p.ProfilesPath, defaultProfilesPath),
		stringFieldDefault("pricing.stats_refresh_interval", &p.StatsRefreshInterval, defaultStatsRefresh),
		fieldDefault{
			key:   "pricing.cycle_deadline_seconds",
			need:  func() bool { return p.CycleDeadlineSeconds <= 0 },
			apply: func() { p.CycleDeadlineSeconds = defaultCycleDeadline },
		},
		fieldDefault{
			key:   "pricing.workers",
			need:  func() bool { return p.Workers <= 0 },
			apply: func() { p.Workers = defaultWorkers },
		},
		fieldDefault{
			key:   "pricing.demand_alpha",
			need:  func() bool { return p.DemandAlpha <= 0 },
			apply: func() { p.DemandAlpha = defaultDemandAlpha },
		},
		fieldDefault{
			key:   "pricing.demand_beta",
			need:  func() bool { return p.DemandBeta <= 0 },
			apply: func() { p.DemandBeta = defaultDemandBeta },
		},
		fieldDefault{
			key:   "pricing.default_elasticity",
			need:  func() bool { return p.DefaultElasticity == 0 },
			apply: func() { p.DefaultElasticity = defaultElasticity },
		},
		fieldDefault{
			key:   "pricing.sales_window_days",
			need:  func() bool { return p.SalesWindowDays <= 0 },
			apply: func() { p.SalesWindowDays = defaultSalesWindowDays },
		},
		fieldDefault{
			key:   "pricing.velocity_smoothing_days",
			need:  func() bool { return p.VelocitySmoothing <= 0 },
			apply: func() { p.VelocitySmoothing = defaultVelocitySmoothing },
		},
	)
}

func (s *SignalsConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "signals.source_timeout_seconds",
			need:  func() bool { return s.SourceTimeoutSeconds <= 0 },
			apply: func() { s.SourceTimeoutSeconds = defaultSourceTimeout },
		},
		fieldDefault{
			key:   "signals.stale_after_hours",
			need:  func() bool { return s.StaleAfterHours <= 0 },
			apply: func() { s.StaleAfterHours = defaultStaleAfterHours },
		},
	)
}

func (r *ReflectionConfig) applyDefaults(keys keySet) {
	if r == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("reflection.interval", &r.Interval, defaultReflectionInterval),
		fieldDefault{
			key:   "reflection.horizon_days",
			need:  func() bool { return r.HorizonDays <= 0 },
			apply: func() { r.HorizonDays = defaultReflectionHorizon },
		},
		fieldDefault{
			key:   "reflection.gain",
			need:  func() bool { return r.Gain <= 0 },
			apply: func() { r.Gain = defaultReflectionGain },
		},
		fieldDefault{
			key:   "reflection.max_adjustment_pct",
			need:  func() bool { return r.MaxAdjustmentPct <= 0 },
			apply: func() { r.MaxAdjustmentPct = defaultReflectionMaxAdjust },
		},
	)
}

func (l *LedgerConfig) applyDefaults(keys keySet) {
	if l == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("ledger.path", &l.Path, defaultLedgerPath),
		stringFieldDefault("ledger.trace_path", &l.TracePath, defaultTracePath),
		fieldDefault{
			key:   "ledger.retry_attempts",
			need:  func() bool { return l.RetryAttempts <= 0 },
			apply: func() { l.RetryAttempts = defaultRetryAttempts },
		},
		fieldDefault{
			key:   "ledger.retry_backoff_ms",
			need:  func() bool { return l.RetryBackoffMS <= 0 },
			apply: func() { l.RetryBackoffMS = defaultRetryBackoffMS },
		},
	)
}

func (n *NarratorConfig) applyDefaults(keys keySet) {
	if n == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "narrator.timeout_seconds",
			need:  func() bool { return n.TimeoutSeconds <= 0 },
			apply: func() { n.TimeoutSeconds = defaultNarratorTimeout },
		},
	)
}

func (c *CatalogConfig) applyDefaults(keys keySet) {
	if c == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("catalog.path", &c.Path, defaultCatalogPath),
	)
}

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}
