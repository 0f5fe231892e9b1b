package config

import "fmt"

func validate(c *Config) error {
	if err := c.Pricing.validate(); err != nil {
		return err
	}
	if err := c.Signals.validate(); err != nil {
		return err
	}
	if err := c.Reflection.validate(); err != nil {
		return err
	}
	if err := c.Ledger.validate(); err != nil {
		return err
	}
	return nil
}

func (p *PricingConfig) validate() error {
	if !IsValidInterval(p.CycleInterval) {
		return fmt.Errorf("pricing.cycle_interval invalid: %s", p.CycleInterval)
	}
	if !IsValidInterval(p.StatsRefreshInterval) {
		return fmt.Errorf("pricing.stats_refresh_interval invalid: %s", p.StatsRefreshInterval)
	}
	if p.CycleOffsetSeconds < 0 {
		return fmt.Errorf("pricing.cycle_offset_seconds must be >= 0")
	}
	if p.DemandAlpha < 0 || p.DemandBeta < 0 {
		return fmt.Errorf("pricing demand weights must be >= 0")
	}
	if sum := p.DemandAlpha + p.DemandBeta; sum <= 0 {
		return fmt.Errorf("pricing.demand_alpha + pricing.demand_beta must be > 0")
	}
	if p.DefaultElasticity >= 0 {
		return fmt.Errorf("pricing.default_elasticity must be < 0")
	}
	return nil
}

func (s *SignalsConfig) validate() error {
	if s.SourceTimeoutSeconds <= 0 {
		return fmt.Errorf("signals.source_timeout_seconds must be > 0")
	}
	if s.StaleAfterHours <= 0 {
		return fmt.Errorf("signals.stale_after_hours must be > 0")
	}
	return nil
}

func (r *ReflectionConfig) validate() error {
	if !IsValidInterval(r.Interval) {
		return fmt.Errorf("reflection.interval invalid: %s", r.Interval)
	}
	if r.MaxAdjustmentPct <= 0 || r.MaxAdjustmentPct > 0.5 {
		return fmt.Errorf("reflection.max_adjustment_pct must be in (0, 0.5]")
	}
	return nil
}

func (l *LedgerConfig) validate() error {
	if l.Path == "" {
		return fmt.Errorf("ledger.path cannot be empty")
	}
	if l.TracePath == "" {
		return fmt.Errorf("ledger.trace_path cannot be empty")
	}
	return nil
}

// IsValidInterval accepts digits followed by one of m/h/d/w.
func IsValidInterval(s string) bool {
	if len(s) < 2 {
		return false
	}
	suf := s[len(s)-1]
	if suf != 'm' && suf != 'h' && suf != 'd' && suf != 'w' {
		return false
	}
	for i := 0; i < len(s)-1; i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
