// Package monitor periodically pulls packages from the source, runs delay
// detection and progress computation, and publishes the resulting snapshot.
package monitor

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/BearBump/DelayWatch/internal/broker/messages"
	"github.com/BearBump/DelayWatch/internal/cache"
	"github.com/BearBump/DelayWatch/internal/cache/rediscache"
	"github.com/BearBump/DelayWatch/internal/integrations/packagesource"
	"github.com/BearBump/DelayWatch/internal/logger"
	"github.com/BearBump/DelayWatch/internal/metrics"
	"github.com/BearBump/DelayWatch/internal/models"
	"github.com/BearBump/DelayWatch/internal/progress"
	"github.com/BearBump/DelayWatch/internal/services/alerts"
)

var (
	ErrSuperseded  = errors.New("refresh superseded by a newer one")
	ErrRateLimited = errors.New("source rate limit exceeded")
)

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

type RateLimiter = cache.Limiter

type Metrics interface {
	ObserveScan(result string, d time.Duration)
	SetSnapshot(st models.AlertStatistics, packages, warnings int)
}

type Monitor struct {
	source   packagesource.Source
	detector *alerts.Detector
	progress *progress.Calculator
	producer Producer
	rl       RateLimiter
	metrics  Metrics

	topic string

	planner *Planner

	interval           time.Duration
	rateLimitPerMinute int64
	publishAttempts    int
	publishBackoff     time.Duration
	now                func() time.Time

	mu       sync.Mutex
	gen      uint64
	cancelFn context.CancelFunc
	latest   *messages.AlertsScanned

	triggerCh chan struct{}

	startedAtUnixNano   int64
	lastRefreshUnixNano atomic.Int64
	lastSuccessUnixNano atomic.Int64
	lastTriggerUnixNano atomic.Int64
	totalRefreshes      atomic.Int64
	totalErrors         atomic.Int64
	totalSuperseded     atomic.Int64
	totalRateLimited    atomic.Int64
	consecutiveFails    atomic.Int32
	inFlight            atomic.Int64
	lastErrorMu         sync.Mutex
	lastError           string
}

// New builds a monitor. producer, rl may be nil.
func New(source packagesource.Source, detector *alerts.Detector, calc *progress.Calculator, producer Producer, rl RateLimiter, topic string) *Monitor {
	if detector == nil {
		detector = alerts.NewDetector(alerts.DefaultPolicy())
	}
	if calc == nil {
		calc = progress.New(nil)
	}
	return &Monitor{
		source: source, detector: detector, progress: calc, producer: producer, rl: rl, topic: topic,
		planner:           NewPlanner(DefaultPlannerConfig()),
		interval:          60 * time.Second,
		publishAttempts:   10,
		publishBackoff:    150 * time.Millisecond,
		now:               time.Now,
		triggerCh:         make(chan struct{}, 1),
		startedAtUnixNano: time.Now().UTC().UnixNano(),
	}
}

func (m *Monitor) WithSettings(interval time.Duration, rlPerMin int64) *Monitor {
	if interval > 0 {
		m.interval = interval
	}
	if rlPerMin > 0 {
		m.rateLimitPerMinute = rlPerMin
	}
	return m
}

func (m *Monitor) WithPlanner(cfg PlannerConfig) *Monitor {
	m.planner = NewPlanner(cfg)
	return m
}

func (m *Monitor) WithMetrics(mt Metrics) *Monitor {
	m.metrics = mt
	return m
}

func (m *Monitor) WithClock(now func() time.Time) *Monitor {
	if now != nil {
		m.now = now
	}
	return m
}

func (m *Monitor) Interval() time.Duration { return m.interval }

func (m *Monitor) Planner() *Planner { return m.planner }

// Trigger forces an immediate refresh (best-effort, non-blocking).
func (m *Monitor) Trigger() {
	m.lastTriggerUnixNano.Store(time.Now().UTC().UnixNano())
	select {
	case m.triggerCh <- struct{}{}:
	default:
	}
}

// Latest returns the most recent successful snapshot or nil.
func (m *Monitor) Latest() *messages.AlertsScanned {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.latest
}

type Stats struct {
	StartedAt           time.Time  `json:"startedAt"`
	LastRefreshAt       *time.Time `json:"lastRefreshAt,omitempty"`
	LastSuccessAt       *time.Time `json:"lastSuccessAt,omitempty"`
	LastTriggerAt       *time.Time `json:"lastTriggerAt,omitempty"`
	TotalRefreshes      int64      `json:"totalRefreshes"`
	TotalErrors         int64      `json:"totalErrors"`
	TotalSuperseded     int64      `json:"totalSuperseded"`
	TotalRateLimited    int64      `json:"totalRateLimited"`
	ConsecutiveFailures int32      `json:"consecutiveFailures"`
	InFlight            int64      `json:"inFlight"`
	LastError           string     `json:"lastError,omitempty"`
	LastScanID          string     `json:"lastScanId,omitempty"`
}

func (m *Monitor) Stats() Stats {
	st := Stats{
		StartedAt:           time.Unix(0, m.startedAtUnixNano).UTC(),
		TotalRefreshes:      m.totalRefreshes.Load(),
		TotalErrors:         m.totalErrors.Load(),
		TotalSuperseded:     m.totalSuperseded.Load(),
		TotalRateLimited:    m.totalRateLimited.Load(),
		ConsecutiveFailures: m.consecutiveFails.Load(),
		InFlight:            m.inFlight.Load(),
	}
	st.LastRefreshAt = unixPtr(m.lastRefreshUnixNano.Load())
	st.LastSuccessAt = unixPtr(m.lastSuccessUnixNano.Load())
	st.LastTriggerAt = unixPtr(m.lastTriggerUnixNano.Load())
	m.lastErrorMu.Lock()
	st.LastError = m.lastError
	m.lastErrorMu.Unlock()
	if l := m.Latest(); l != nil {
		st.LastScanID = l.ID
	}
	return st
}

func unixPtr(n int64) *time.Time {
	if n <= 0 {
		return nil
	}
	t := time.Unix(0, n).UTC()
	return &t
}

// Run refreshes immediately, then every interval. After a failure the next
// refresh is planned with backoff. A trigger starts a refresh right away and
// supersedes whatever is in flight.
func (m *Monitor) Run(ctx context.Context) error {
	timer := time.NewTimer(0)
	defer timer.Stop()

	results := make(chan error, 1)
	var wg sync.WaitGroup
	defer wg.Wait()

	start := func() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Refresh(ctx)
			select {
			case results <- err:
			case <-ctx.Done():
			}
		}()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			start()
		case <-m.triggerCh:
			start()
		case err := <-results:
			switch {
			case err == nil:
				timer.Reset(m.interval)
			case errors.Is(err, ErrSuperseded):
				// результат отброшен, расписание ведёт более новый refresh
			default:
				timer.Reset(m.planner.BackoffDelay(m.consecutiveFails.Load()))
			}
		}
	}
}

// Refresh runs one scan. Starting a refresh cancels the in-flight one; if a
// newer refresh started while this one was running, its result is discarded
// and ErrSuperseded is returned.
func (m *Monitor) Refresh(ctx context.Context) (*messages.AlertsScanned, error) {
	started := time.Now()
	m.lastRefreshUnixNano.Store(started.UTC().UnixNano())
	m.totalRefreshes.Add(1)
	m.inFlight.Add(1)
	defer m.inFlight.Add(-1)

	rctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m.mu.Lock()
	if m.cancelFn != nil {
		m.cancelFn()
	}
	m.gen++
	gen := m.gen
	m.cancelFn = cancel
	m.mu.Unlock()

	snap, err := m.scan(rctx)

	m.mu.Lock()
	superseded := gen != m.gen
	if !superseded {
		m.cancelFn = nil
		if err == nil {
			m.latest = snap
		}
	}
	m.mu.Unlock()

	switch {
	case superseded:
		m.totalSuperseded.Add(1)
		m.observe(metrics.ResultSuperseded, started)
		logger.Get().Debug("refresh superseded", zap.Uint64("generation", gen))
		return nil, ErrSuperseded
	case errors.Is(err, ErrRateLimited):
		m.totalRateLimited.Add(1)
		m.fail(err)
		m.observe(metrics.ResultLimited, started)
		return nil, err
	case err != nil:
		m.totalErrors.Add(1)
		m.fail(err)
		m.observe(metrics.ResultError, started)
		logger.Get().Error("refresh failed", zap.Error(err), zap.Int32("fail_count", m.consecutiveFails.Load()))
		return nil, err
	}

	m.consecutiveFails.Store(0)
	m.lastSuccessUnixNano.Store(time.Now().UTC().UnixNano())
	m.observe(metrics.ResultOK, started)
	if m.metrics != nil {
		m.metrics.SetSnapshot(snap.Stats, len(snap.Packages), len(snap.Warnings))
	}
	logger.Get().Info("refresh done",
		zap.String("scan_id", snap.ID),
		zap.Int("packages", len(snap.Packages)),
		zap.Int("alerts", snap.Stats.Total),
		zap.Int("critical", snap.Stats.Critical),
		zap.Int("warnings", len(snap.Warnings)),
	)

	if err := m.publish(ctx, snap); err != nil {
		m.totalErrors.Add(1)
		m.fail(err)
		logger.Get().Error("publish snapshot", zap.String("scan_id", snap.ID), zap.Error(err))
		return snap, err
	}
	return snap, nil
}

func (m *Monitor) scan(ctx context.Context) (*messages.AlertsScanned, error) {
	if m.rl != nil && m.rateLimitPerMinute > 0 {
		key := rediscache.MinuteKey("source", m.now())
		allowed, n, err := m.rl.Allow(ctx, key, m.rateLimitPerMinute, time.Minute)
		if err != nil {
			return nil, err
		}
		if !allowed {
			logger.Get().Warn("rate limit exceeded", zap.String("key", key), zap.Int64("count", n))
			return nil, errors.Wrapf(ErrRateLimited, "count=%d limit=%d", n, m.rateLimitPerMinute)
		}
	}

	pkgs, err := m.source.ListPackages(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list packages")
	}

	now := m.now().UTC()
	res := m.detector.Detect(pkgs, now)
	for _, w := range res.Warnings {
		logger.Get().Warn("package skipped",
			zap.String("tracking_number", w.TrackingNumber),
			zap.String("event_id", w.EventID),
			zap.String("reason", w.Reason),
		)
	}

	summaries := make([]models.PackageSummary, 0, len(pkgs))
	for _, p := range pkgs {
		summaries = append(summaries, m.progress.Summarize(p))
	}

	return &messages.AlertsScanned{
		ID:        uuid.NewString(),
		ScannedAt: now,
		Alerts:    res.Alerts,
		Stats:     alerts.Statistics(res.Alerts),
		Packages:  summaries,
		Warnings:  res.Warnings,
	}, nil
}

func (m *Monitor) publish(ctx context.Context, snap *messages.AlertsScanned) error {
	if m.producer == nil {
		return nil
	}
	b, err := json.Marshal(snap)
	if err != nil {
		return errors.Wrap(err, "marshal kafka msg")
	}

	// Kafka может быть не готова сразу после старта docker compose.
	var pubErr error
	for i := 0; i < m.publishAttempts; i++ {
		if pubErr = m.producer.Publish(ctx, m.topic, []byte(messages.AlertsScannedKey), b); pubErr == nil {
			return nil
		}
		if i == m.publishAttempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.publishBackoff * time.Duration(i+1)):
		}
	}
	return pubErr
}

func (m *Monitor) fail(err error) {
	m.consecutiveFails.Add(1)
	m.lastErrorMu.Lock()
	m.lastError = err.Error()
	m.lastErrorMu.Unlock()
}

func (m *Monitor) observe(result string, started time.Time) {
	if m.metrics != nil {
		m.metrics.ObserveScan(result, time.Since(started))
	}
}
