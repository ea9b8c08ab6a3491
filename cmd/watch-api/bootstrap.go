package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/BearBump/DelayWatch/config"
	"github.com/BearBump/DelayWatch/internal/broker/kafka"
	"github.com/BearBump/DelayWatch/internal/cache/rediscache"
	"github.com/BearBump/DelayWatch/internal/logger"
	"github.com/BearBump/DelayWatch/internal/services/board"
	"github.com/BearBump/DelayWatch/internal/storage/pgalerts"
)

type watchAPIApp struct {
	ctx      context.Context
	cancel   context.CancelFunc
	opts     watchAPIOpts
	svc      *board.Service
	consumer *kafka.Consumer
	cache    *rediscache.RedisCache
	closeDB  func()
}

func mustBootstrapWatchAPI() *watchAPIApp {
	cfgPath := os.Getenv("configPath")
	if cfgPath == "" {
		panic("configPath env var is required")
	}
	// swagger необязателен: без него /docs просто не поднимается
	swaggerPath := os.Getenv("swaggerPath")

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		panic(fmt.Sprintf("ошибка парсинга конфига, %v", err))
	}
	if err := logger.Init(cfg.Log.Environment, cfg.Log.Level); err != nil {
		panic(fmt.Sprintf("ошибка инициализации логгера, %v", err))
	}

	httpAddr := cfg.DelayWatch.HTTPAddr
	if httpAddr == "" {
		httpAddr = ":8080"
	}
	consumerGroup := cfg.DelayWatch.KafkaConsumerGroup
	if consumerGroup == "" {
		consumerGroup = "watch-api"
	}
	topic := cfg.Kafka.Topic()

	st := mustOpenPostgresWithRetry(cfg.Database.ConnString(), 60*time.Second)
	rc := rediscache.New(cfg.Redis.Addr())

	svc := board.New(st, rc, cfg.DelayWatch.SnapshotTTL()).
		WithAdmins(cfg.DelayWatch.Admins)

	consumer := kafka.NewConsumer(cfg.Kafka.Brokers(), topic, consumerGroup)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	return &watchAPIApp{
		ctx:    ctx,
		cancel: cancel,
		opts: watchAPIOpts{
			httpAddr:      httpAddr,
			swaggerPath:   swaggerPath,
			apiKeys:       cfg.DelayWatch.APIKeys,
			topic:         topic,
			consumerGroup: consumerGroup,
		},
		svc:      svc,
		consumer: consumer,
		cache:    rc,
		closeDB:  st.Close,
	}
}

func mustOpenPostgresWithRetry(connString string, wait time.Duration) *pgalerts.Storage {
	deadline := time.Now().Add(wait)
	var lastErr error
	for time.Now().Before(deadline) {
		st, err := pgalerts.New(connString)
		if err == nil {
			return st
		}
		lastErr = err
		logger.Get().Warn("postgres is not ready, retrying", zap.Error(err))
		time.Sleep(1 * time.Second)
	}
	panic(fmt.Sprintf("postgres is not ready after %s: %v", wait, lastErr))
}

func (a *watchAPIApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.consumer != nil {
		_ = a.consumer.Close()
	}
	if a.cache != nil {
		_ = a.cache.Close()
	}
	if a.closeDB != nil {
		a.closeDB()
	}
	_ = logger.Get().Sync()
}

func (a *watchAPIApp) Run() error {
	return runWatchAPI(a.ctx, a.opts, a.svc, a.consumer)
}
