// Package alertsapi serves the alert board over HTTP (chi).
package alertsapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/BearBump/DelayWatch/internal/models"
	"github.com/BearBump/DelayWatch/internal/services/board"
)

const maxBodyBytes = 64 << 10

type Service interface {
	ListAlerts(ctx context.Context, f board.AlertFilter) ([]models.InternalAlert, error)
	AlertStatistics(ctx context.Context) (models.AlertStatistics, error)
	ResolveAlert(ctx context.Context, alertID, resolvedBy string) (models.InternalAlert, error)
	ListPackages(ctx context.Context) ([]models.PackageSummary, error)
	GetPackage(ctx context.Context, trackingNumber string) (models.PackageSummary, error)
}

type AlertsAPI struct {
	svc         Service
	apiKeys     map[string]struct{}
	swaggerPath string
}

func New(svc Service, apiKeys []string, swaggerPath string) *AlertsAPI {
	keys := make(map[string]struct{}, len(apiKeys))
	for _, k := range apiKeys {
		if k = strings.TrimSpace(k); k != "" {
			keys[k] = struct{}{}
		}
	}
	return &AlertsAPI{svc: svc, apiKeys: keys, swaggerPath: swaggerPath}
}

func (a *AlertsAPI) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Get("/alerts", a.listAlerts)
		r.Get("/alerts/stats", a.alertStats)
		r.With(BodyLimit(maxBodyBytes), APIKeyAuth(a.apiKeys)).
			Post("/alerts/{alertID}/resolve", a.resolveAlert)
		r.Get("/packages", a.listPackages)
		r.Get("/packages/{trackingNumber}", a.getPackage)
	})

	if a.swaggerPath != "" {
		r.Get("/swagger.json", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "no-store")
			http.ServeFile(w, r, a.swaggerPath)
		})
		swaggerURL := "/swagger.json"
		if fi, err := os.Stat(a.swaggerPath); err == nil {
			swaggerURL = fmt.Sprintf("/swagger.json?v=%d", fi.ModTime().Unix())
		}
		r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL(swaggerURL)))
	}
	return r
}

type alertsResponse struct {
	Alerts []models.InternalAlert `json:"alerts"`
	Total  int                    `json:"total"`
}

func (a *AlertsAPI) listAlerts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := board.AlertFilter{
		Severity: models.Severity(strings.ToLower(q.Get("severity"))),
		Status:   strings.ToLower(q.Get("status")),
	}
	out, err := a.svc.ListAlerts(r.Context(), f)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, alertsResponse{Alerts: out, Total: len(out)})
}

func (a *AlertsAPI) alertStats(w http.ResponseWriter, r *http.Request) {
	st, err := a.svc.AlertStatistics(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

type resolveRequest struct {
	ResolvedBy string `json:"resolvedBy"`
}

func (a *AlertsAPI) resolveAlert(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, errors.Wrap(board.ErrInvalidArgument, "invalid json: "+err.Error()))
		return
	}
	alert, err := a.svc.ResolveAlert(r.Context(), chi.URLParam(r, "alertID"), strings.TrimSpace(req.ResolvedBy))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, alert)
}

type packagesResponse struct {
	Packages []models.PackageSummary `json:"packages"`
	Total    int                     `json:"total"`
}

func (a *AlertsAPI) listPackages(w http.ResponseWriter, r *http.Request) {
	out, err := a.svc.ListPackages(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, packagesResponse{Packages: out, Total: len(out)})
}

func (a *AlertsAPI) getPackage(w http.ResponseWriter, r *http.Request) {
	p, err := a.svc.GetPackage(r.Context(), chi.URLParam(r, "trackingNumber"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
