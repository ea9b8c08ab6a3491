package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"

	"github.com/BearBump/DelayWatch/config"
	"github.com/BearBump/DelayWatch/internal/logger"
	"github.com/BearBump/DelayWatch/internal/metrics"
	"github.com/BearBump/DelayWatch/internal/services/alerts"
	"github.com/BearBump/DelayWatch/internal/services/monitor"
)

type workerHTTPOpts struct {
	httpAddr    string
	swaggerPath string
	onListen    func(httpAddr string)

	monitor *monitor.Monitor
	metrics *metrics.Manager
	cfg     *config.Config
	policy  alerts.Policy
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func workerRouter(opts workerHTTPOpts) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	// ready после первого успешного скана
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if opts.monitor == nil || opts.monitor.Latest() == nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "warming up"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})

	r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
		if opts.monitor == nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "monitor not wired"})
			return
		}
		writeJSON(w, http.StatusOK, opts.monitor.Stats())
	})

	r.Get("/config", func(w http.ResponseWriter, r *http.Request) {
		if opts.cfg == nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "config not wired"})
			return
		}
		// без секретов: токен источника и ключи не отдаём
		out := map[string]any{
			"refreshIntervalSeconds": opts.cfg.DelayWatch.RefreshInterval().Seconds(),
			"rateLimitPerMinute":     opts.cfg.DelayWatch.WorkerRateLimitPerMinute,
			"sourceMode":             opts.cfg.Source.Mode,
			"sourceBaseUrl":          opts.cfg.Source.BaseURL,
			"topic":                  opts.cfg.Kafka.Topic(),
			"policy":                 opts.policy,
			"progressOverrides":      opts.cfg.Alerts.ProgressOverrides,
		}
		if opts.monitor != nil {
			pc := opts.monitor.Planner().Config()
			out["backoffSeconds"] = []float64{
				pc.Backoff1.Seconds(), pc.Backoff2.Seconds(), pc.Backoff3.Seconds(), pc.Backoff4.Seconds(),
			}
		}
		writeJSON(w, http.StatusOK, out)
	})

	r.Post("/trigger", func(w http.ResponseWriter, r *http.Request) {
		if opts.monitor == nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "monitor not wired"})
			return
		}
		opts.monitor.Trigger()
		writeJSON(w, http.StatusAccepted, map[string]bool{"triggered": true})
	})

	r.Get("/snapshot", func(w http.ResponseWriter, r *http.Request) {
		if opts.monitor == nil || opts.monitor.Latest() == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no snapshot yet"})
			return
		}
		writeJSON(w, http.StatusOK, opts.monitor.Latest())
	})

	if opts.metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.metrics.Handler())
	}

	if opts.swaggerPath != "" {
		r.Get("/swagger.json", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "no-store")
			http.ServeFile(w, r, opts.swaggerPath)
		})
		swaggerURL := "/swagger.json"
		if fi, err := os.Stat(opts.swaggerPath); err == nil {
			swaggerURL = fmt.Sprintf("/swagger.json?v=%d", fi.ModTime().Unix())
		}
		r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL(swaggerURL)))
	}
	return r
}

func runWorkerHTTPServer(ctx context.Context, opts workerHTTPOpts) error {
	if opts.httpAddr == "" {
		opts.httpAddr = ":8082"
	}
	if opts.swaggerPath != "" {
		if _, err := os.Stat(opts.swaggerPath); os.IsNotExist(err) {
			return fmt.Errorf("worker swagger file not found: %s", opts.swaggerPath)
		}
	}

	lis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return err
	}
	if opts.onListen != nil {
		opts.onListen(lis.Addr().String())
	}

	srv := &http.Server{Handler: workerRouter(opts), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		_ = lis.Close()
	}()

	logger.Get().Info("worker HTTP listening", zap.String("addr", lis.Addr().String()))
	err = srv.Serve(lis)
	if errors.Is(err, http.ErrServerClosed) {
		return ctx.Err()
	}
	return err
}
