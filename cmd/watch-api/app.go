package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/BearBump/DelayWatch/internal/api/alertsapi"
	"github.com/BearBump/DelayWatch/internal/broker/kafka"
	"github.com/BearBump/DelayWatch/internal/broker/messages"
	"github.com/BearBump/DelayWatch/internal/logger"
	"github.com/BearBump/DelayWatch/internal/services/board"
)

type watchAPIOpts struct {
	httpAddr    string
	swaggerPath string
	apiKeys     []string

	topic         string
	consumerGroup string

	onListen func(httpAddr string)
}

type kafkaConsumer interface {
	Consume(ctx context.Context, handler func(key, value []byte) error) error
}

type snapshotApplier interface {
	ApplySnapshot(ctx context.Context, snap *messages.AlertsScanned) (bool, error)
}

type boardService interface {
	alertsapi.Service
	snapshotApplier
}

func runWatchAPI(ctx context.Context, opts watchAPIOpts, svc boardService, consumer kafkaConsumer) error {
	if opts.swaggerPath != "" {
		if _, err := os.Stat(opts.swaggerPath); os.IsNotExist(err) {
			return fmt.Errorf("swagger file not found: %s", opts.swaggerPath)
		}
	}

	api := alertsapi.New(svc, opts.apiKeys, opts.swaggerPath)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return err
	}
	if opts.onListen != nil {
		opts.onListen(lis.Addr().String())
	}

	httpErr := make(chan error, 1)
	go func() {
		httpErr <- runHTTPServer(ctx, lis, api.Handler())
	}()

	consumerErr := make(chan error, 1)
	go func() {
		logger.Get().Info("kafka consumer started",
			zap.String("topic", opts.topic),
			zap.String("group", opts.consumerGroup),
		)
		consumerErr <- consumer.Consume(ctx, snapshotHandler(ctx, svc))
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-httpErr:
		return err
	case err := <-consumerErr:
		if err == nil || errors.Is(err, context.Canceled) {
			<-ctx.Done()
			return ctx.Err()
		}
		return errors.Wrap(err, "kafka consumer")
	}
}

// snapshotHandler применяет снапшоты из топика. Битые сообщения пропускаем,
// иначе консьюмер застрянет на одном оффсете.
func snapshotHandler(ctx context.Context, svc snapshotApplier) func(key, value []byte) error {
	return func(_ []byte, value []byte) error {
		var m messages.AlertsScanned
		if err := json.Unmarshal(value, &m); err != nil {
			return errors.Wrapf(kafka.ErrSkipMessage, "decode snapshot: %v", err)
		}
		applied, err := svc.ApplySnapshot(ctx, &m)
		if errors.Is(err, board.ErrInvalidArgument) {
			return errors.Wrapf(kafka.ErrSkipMessage, "snapshot %q: %v", m.ID, err)
		}
		if err != nil {
			return err
		}
		logger.Get().Debug("snapshot consumed",
			zap.String("scan_id", m.ID),
			zap.Bool("applied", applied),
			zap.Int("alerts", len(m.Alerts)),
		)
		return nil
	}
}

func runHTTPServer(ctx context.Context, lis net.Listener, h http.Handler) error {
	srv := &http.Server{Handler: h, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Get().Info("HTTP server listening", zap.String("addr", lis.Addr().String()))
	err := srv.Serve(lis)
	if errors.Is(err, http.ErrServerClosed) {
		return ctx.Err()
	}
	return err
}
