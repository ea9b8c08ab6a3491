package alertsapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/BearBump/DelayWatch/internal/models"
	"github.com/BearBump/DelayWatch/internal/services/board"
)

type serviceMock struct {
	mock.Mock
}

func (m *serviceMock) ListAlerts(ctx context.Context, f board.AlertFilter) ([]models.InternalAlert, error) {
	args := m.Called(ctx, f)
	return args.Get(0).([]models.InternalAlert), args.Error(1)
}

func (m *serviceMock) AlertStatistics(ctx context.Context) (models.AlertStatistics, error) {
	args := m.Called(ctx)
	return args.Get(0).(models.AlertStatistics), args.Error(1)
}

func (m *serviceMock) ResolveAlert(ctx context.Context, alertID, resolvedBy string) (models.InternalAlert, error) {
	args := m.Called(ctx, alertID, resolvedBy)
	return args.Get(0).(models.InternalAlert), args.Error(1)
}

func (m *serviceMock) ListPackages(ctx context.Context) ([]models.PackageSummary, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.PackageSummary), args.Error(1)
}

func (m *serviceMock) GetPackage(ctx context.Context, trackingNumber string) (models.PackageSummary, error) {
	args := m.Called(ctx, trackingNumber)
	return args.Get(0).(models.PackageSummary), args.Error(1)
}

func do(t *testing.T, h http.Handler, method, path, body string, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var e errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
	return e.Error
}

func TestHealthz(t *testing.T) {
	h := New(&serviceMock{}, nil, "").Handler()
	rec := do(t, h, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestListAlerts_PassesFilter(t *testing.T) {
	svc := &serviceMock{}
	svc.On("ListAlerts", mock.Anything, board.AlertFilter{Severity: models.SeverityHigh, Status: board.StatusPending}).
		Return([]models.InternalAlert{{ID: "A-1", Severity: models.SeverityHigh}}, nil).
		Once()

	rec := do(t, New(svc, nil, "").Handler(), http.MethodGet, "/v1/alerts?severity=HIGH&status=pending", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var out alertsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Equal(t, 1, out.Total)
	require.Equal(t, "A-1", out.Alerts[0].ID)
	svc.AssertExpectations(t)
}

func TestListAlerts_InvalidFilter400(t *testing.T) {
	svc := &serviceMock{}
	svc.On("ListAlerts", mock.Anything, mock.Anything).
		Return([]models.InternalAlert(nil), pkgerrors.Wrap(board.ErrInvalidArgument, `unknown severity "urgent"`)).
		Once()

	rec := do(t, New(svc, nil, "").Handler(), http.MethodGet, "/v1/alerts?severity=urgent", "", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, decodeError(t, rec), "urgent")
}

func TestAlertStats(t *testing.T) {
	svc := &serviceMock{}
	svc.On("AlertStatistics", mock.Anything).
		Return(models.AlertStatistics{Total: 2, Critical: 1, Low: 1, Pending: 2}, nil).
		Once()

	rec := do(t, New(svc, nil, "").Handler(), http.MethodGet, "/v1/alerts/stats", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"total":2,"critical":1,"high":0,"medium":0,"low":1,"resolved":0,"pending":2}`, rec.Body.String())
}

func TestAlertStats_InternalErrorHidden(t *testing.T) {
	svc := &serviceMock{}
	svc.On("AlertStatistics", mock.Anything).
		Return(models.AlertStatistics{}, errors.New("pg: password authentication failed")).
		Once()

	rec := do(t, New(svc, nil, "").Handler(), http.MethodGet, "/v1/alerts/stats", "", nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, "internal error", decodeError(t, rec))
}

func TestResolveAlert(t *testing.T) {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := &serviceMock{}
	svc.On("ResolveAlert", mock.Anything, "BOA-1-1740830400000", "admin").
		Return(models.InternalAlert{ID: "BOA-1-1740830400000", IsResolved: true, ResolvedBy: "admin", ResolvedAt: &at}, nil).
		Once()
	h := New(svc, []string{"k1", " "}, "").Handler()

	rec := do(t, h, http.MethodPost, "/v1/alerts/BOA-1-1740830400000/resolve", `{"resolvedBy":"admin"}`, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, http.MethodPost, "/v1/alerts/BOA-1-1740830400000/resolve", `{"resolvedBy":"admin"}`,
		map[string]string{"X-API-Key": "wrong"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, http.MethodPost, "/v1/alerts/BOA-1-1740830400000/resolve", `{"resolvedBy":" admin "}`,
		map[string]string{"X-API-Key": "k1"})
	require.Equal(t, http.StatusOK, rec.Code)

	var got models.InternalAlert
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.True(t, got.IsResolved)
	require.Equal(t, "admin", got.ResolvedBy)
	svc.AssertExpectations(t)
}

func TestResolveAlert_ErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{pkgerrors.Wrap(board.ErrNotAllowed, "nope"), http.StatusForbidden},
		{pkgerrors.Wrap(board.ErrNotFound, "alert X"), http.StatusNotFound},
		{pkgerrors.Wrap(board.ErrInvalidArgument, "resolvedBy is required"), http.StatusBadRequest},
	}
	for _, tc := range cases {
		svc := &serviceMock{}
		svc.On("ResolveAlert", mock.Anything, "X-1", "ops").Return(models.InternalAlert{}, tc.err).Once()
		rec := do(t, New(svc, nil, "").Handler(), http.MethodPost, "/v1/alerts/X-1/resolve", `{"resolvedBy":"ops"}`, nil)
		require.Equal(t, tc.want, rec.Code, tc.err.Error())
	}
}

func TestResolveAlert_BadBody(t *testing.T) {
	svc := &serviceMock{}
	h := New(svc, nil, "").Handler()

	rec := do(t, h, http.MethodPost, "/v1/alerts/X-1/resolve", `{"resolvedBy":`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/v1/alerts/X-1/resolve", `{"who":"ops"}`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	big := `{"resolvedBy":"` + strings.Repeat("a", maxBodyBytes) + `"}`
	rec = do(t, h, http.MethodPost, "/v1/alerts/X-1/resolve", big, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	svc.AssertNotCalled(t, "ResolveAlert", mock.Anything, mock.Anything, mock.Anything)
}

func TestPackages(t *testing.T) {
	svc := &serviceMock{}
	svc.On("ListPackages", mock.Anything).
		Return([]models.PackageSummary{{TrackingNumber: "BOA-1", Progress: 60}}, nil).
		Once()
	svc.On("GetPackage", mock.Anything, "BOA-1").
		Return(models.PackageSummary{TrackingNumber: "BOA-1", Progress: 60}, nil).
		Once()
	svc.On("GetPackage", mock.Anything, "NOPE").
		Return(models.PackageSummary{}, pkgerrors.Wrap(board.ErrNotFound, "package NOPE")).
		Once()
	h := New(svc, nil, "").Handler()

	rec := do(t, h, http.MethodGet, "/v1/packages", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list packagesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Equal(t, 1, list.Total)

	rec = do(t, h, http.MethodGet, "/v1/packages/BOA-1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"progress":60`)

	rec = do(t, h, http.MethodGet, "/v1/packages/NOPE", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	svc.AssertExpectations(t)
}

func TestSwaggerServed(t *testing.T) {
	sw := filepath.Join(t.TempDir(), "swagger.json")
	require.NoError(t, os.WriteFile(sw, []byte(`{"swagger":"2.0"}`), 0o600))
	h := New(&serviceMock{}, nil, sw).Handler()

	rec := do(t, h, http.MethodGet, "/swagger.json", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"swagger"`)
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	rec = do(t, h, http.MethodGet, "/docs/index.html", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestSwaggerDisabledWithoutPath(t *testing.T) {
	rec := do(t, New(&serviceMock{}, nil, "").Handler(), http.MethodGet, "/swagger.json", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}
