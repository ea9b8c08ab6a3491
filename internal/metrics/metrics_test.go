package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/BearBump/DelayWatch/internal/models"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestManager_ObserveScan(t *testing.T) {
	m := NewManager()
	m.ObserveScan(ResultOK, 120*time.Millisecond)
	m.ObserveScan(ResultOK, 80*time.Millisecond)
	m.ObserveScan(ResultError, 0)

	require.Equal(t, 2.0, testutil.ToFloat64(m.scansTotal.WithLabelValues(ResultOK)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.scansTotal.WithLabelValues(ResultError)))
}

func TestManager_SetSnapshot(t *testing.T) {
	m := NewManager(WithNamespace("test"))
	m.SetSnapshot(models.AlertStatistics{Total: 4, Critical: 1, High: 2, Low: 1}, 10, 3)

	require.Equal(t, 1.0, testutil.ToFloat64(m.alerts.WithLabelValues("critical")))
	require.Equal(t, 2.0, testutil.ToFloat64(m.alerts.WithLabelValues("high")))
	require.Equal(t, 0.0, testutil.ToFloat64(m.alerts.WithLabelValues("medium")))
	require.Equal(t, 10.0, testutil.ToFloat64(m.packages))
	require.Equal(t, 3.0, testutil.ToFloat64(m.dataWarnings))
}

func TestManager_Handler(t *testing.T) {
	m := NewManager()
	m.ObserveScan(ResultOK, time.Second)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	require.True(t, strings.Contains(string(body), "delaywatch_scanner_scans_total"))
}
