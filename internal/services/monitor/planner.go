package monitor

import "time"

type PlannerConfig struct {
	Backoff1 time.Duration // default: 5 seconds
	Backoff2 time.Duration // default: 15 seconds
	Backoff3 time.Duration // default: 30 seconds
	Backoff4 time.Duration // default: 60 seconds
}

func DefaultPlannerConfig() PlannerConfig {
	return PlannerConfig{
		Backoff1: 5 * time.Second,
		Backoff2: 15 * time.Second,
		Backoff3: 30 * time.Second,
		Backoff4: 60 * time.Second,
	}
}

type Planner struct {
	cfg PlannerConfig
}

func NewPlanner(cfg PlannerConfig) *Planner {
	def := DefaultPlannerConfig()
	if cfg.Backoff1 <= 0 {
		cfg.Backoff1 = def.Backoff1
	}
	if cfg.Backoff2 <= 0 {
		cfg.Backoff2 = def.Backoff2
	}
	if cfg.Backoff3 <= 0 {
		cfg.Backoff3 = def.Backoff3
	}
	if cfg.Backoff4 <= 0 {
		cfg.Backoff4 = def.Backoff4
	}
	return &Planner{cfg: cfg}
}

func (p *Planner) Config() PlannerConfig {
	return p.cfg
}

// BackoffDelay returns the wait before the next refresh after nextFailCount
// consecutive failures.
func (p *Planner) BackoffDelay(nextFailCount int32) time.Duration {
	switch {
	case nextFailCount <= 1:
		return p.cfg.Backoff1
	case nextFailCount == 2:
		return p.cfg.Backoff2
	case nextFailCount == 3:
		return p.cfg.Backoff3
	default:
		return p.cfg.Backoff4
	}
}
