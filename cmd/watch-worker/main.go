package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/BearBump/DelayWatch/config"
	"github.com/BearBump/DelayWatch/internal/logger"
)

func main() {
	cfg, err := config.LoadConfig(os.Getenv("configPath"))
	if err != nil {
		panic(fmt.Sprintf("ошибка парсинга конфига, %v", err))
	}
	if err := logger.Init(cfg.Log.Environment, cfg.Log.Level); err != nil {
		panic(fmt.Sprintf("ошибка инициализации логгера, %v", err))
	}
	defer func() { _ = logger.Get().Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err = RunWatchWorker(ctx, cfg, defaultWorkerFactories(), workerOpts{
		swaggerPath: os.Getenv("workerSwaggerPath"),
	})
	if err != nil && err != context.Canceled {
		panic(err)
	}
}
