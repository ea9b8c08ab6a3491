package main

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/BearBump/DelayWatch/config"
	"github.com/BearBump/DelayWatch/internal/broker/kafka"
	"github.com/BearBump/DelayWatch/internal/cache/rediscache"
	"github.com/BearBump/DelayWatch/internal/integrations/packagesource"
	"github.com/BearBump/DelayWatch/internal/integrations/packagesource/fake"
	"github.com/BearBump/DelayWatch/internal/integrations/packagesource/restapi"
	"github.com/BearBump/DelayWatch/internal/logger"
	"github.com/BearBump/DelayWatch/internal/metrics"
	"github.com/BearBump/DelayWatch/internal/progress"
	"github.com/BearBump/DelayWatch/internal/services/alerts"
	"github.com/BearBump/DelayWatch/internal/services/monitor"
)

type workerFactories struct {
	newProducer    func(cfg *config.Config) (p monitor.Producer, closeFn func(), err error)
	newRateLimiter func(cfg *config.Config) monitor.RateLimiter
	newSource      func(cfg *config.Config) (packagesource.Source, error)
}

func defaultWorkerFactories() workerFactories {
	return workerFactories{
		newProducer: func(cfg *config.Config) (monitor.Producer, func(), error) {
			p := kafka.NewProducer(cfg.Kafka.Brokers())
			return p, func() { _ = p.Close() }, nil
		},
		newRateLimiter: func(cfg *config.Config) monitor.RateLimiter {
			if cfg.DelayWatch.WorkerRateLimitPerMinute <= 0 {
				return nil
			}
			return rediscache.NewRateLimiter(cfg.Redis.Addr())
		},
		newSource: newPackageSource,
	}
}

const (
	sourceModeREST = "rest"
	sourceModeFake = "fake"
)

// newPackageSource выбирает источник по source.mode. Пустой или неизвестный
// mode считаем ошибкой конфига, а не поводом включить fake.
func newPackageSource(cfg *config.Config) (packagesource.Source, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Source.Mode)) {
	case sourceModeFake:
		return fake.New(cfg.Source.FakePackages, nil), nil
	case sourceModeREST:
	case "":
		return nil, errors.New(`source.mode is required ("rest" or "fake")`)
	default:
		return nil, errors.Errorf(`unknown source.mode %q, want "rest" or "fake"`, cfg.Source.Mode)
	}

	if cfg.Source.BaseURL == "" {
		return nil, errors.New("source.base_url is required in rest mode")
	}
	loc := time.UTC
	if name := cfg.Source.TimestampLocation; name != "" {
		l, err := time.LoadLocation(name)
		if err != nil {
			return nil, errors.Wrapf(err, "source.timestamp_location %q", name)
		}
		loc = l
	}
	return restapi.New(cfg.Source.BaseURL, cfg.Source.PackagesPath,
		restapi.WithToken(cfg.Source.APIToken),
		restapi.WithLocation(loc),
		restapi.WithTimeout(time.Duration(cfg.Source.TimeoutSeconds)*time.Second),
	), nil
}

func plannerConfig(cfg *config.Config) monitor.PlannerConfig {
	dw := cfg.DelayWatch
	return monitor.PlannerConfig{
		Backoff1: time.Duration(dw.WorkerBackoff1Seconds) * time.Second,
		Backoff2: time.Duration(dw.WorkerBackoff2Seconds) * time.Second,
		Backoff3: time.Duration(dw.WorkerBackoff3Seconds) * time.Second,
		Backoff4: time.Duration(dw.WorkerBackoff4Seconds) * time.Second,
	}
}

func policyFromConfig(cfg *config.Config) (alerts.Policy, error) {
	p := alerts.Policy{
		ThresholdHours: cfg.Alerts.ThresholdHours,
		MediumHours:    cfg.Alerts.MediumHours,
		HighHours:      cfg.Alerts.HighHours,
		CriticalHours:  cfg.Alerts.CriticalHours,
	}.WithDefaults()
	if err := p.Validate(); err != nil {
		return alerts.Policy{}, errors.Wrap(err, "alerts config")
	}
	return p, nil
}

type workerOpts struct {
	swaggerPath string
	onListen    func(httpAddr string)
}

func RunWatchWorker(ctx context.Context, cfg *config.Config, f workerFactories, opts workerOpts) error {
	policy, err := policyFromConfig(cfg)
	if err != nil {
		return err
	}
	src, err := f.newSource(cfg)
	if err != nil {
		return err
	}
	producer, closeFn, err := f.newProducer(cfg)
	if err != nil {
		return err
	}
	if closeFn != nil {
		defer closeFn()
	}
	rl := f.newRateLimiter(cfg)

	mm := metrics.NewManager()
	m := monitor.New(src, alerts.NewDetector(policy), progress.New(cfg.Alerts.ProgressOverrides), producer, rl, cfg.Kafka.Topic()).
		WithSettings(cfg.DelayWatch.RefreshInterval(), int64(cfg.DelayWatch.WorkerRateLimitPerMinute)).
		WithPlanner(plannerConfig(cfg)).
		WithMetrics(mm)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	httpErr := make(chan error, 1)
	go func() {
		httpErr <- runWorkerHTTPServer(ctx, workerHTTPOpts{
			httpAddr:    cfg.DelayWatch.WorkerHTTPAddr,
			swaggerPath: opts.swaggerPath,
			onListen:    opts.onListen,
			monitor:     m,
			metrics:     mm,
			cfg:         cfg,
			policy:      policy,
		})
	}()

	logger.Get().Info("watch worker started",
		zap.String("topic", cfg.Kafka.Topic()),
		zap.Duration("interval", m.Interval()),
		zap.String("source_mode", cfg.Source.Mode),
	)

	runErr := make(chan error, 1)
	go func() { runErr <- m.Run(ctx) }()

	select {
	case err := <-runErr:
		return err
	case err := <-httpErr:
		if err != nil && ctx.Err() == nil {
			cancel()
			<-runErr
			return errors.Wrap(err, "worker http")
		}
		return <-runErr
	}
}
