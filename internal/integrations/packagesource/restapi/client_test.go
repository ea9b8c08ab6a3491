package restapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/BearBump/DelayWatch/internal/models"
)

const packagesJSON = `[
  {
    "tracking_number": "BOA-1",
    "description": "Laptop",
    "priority": "high",
    "origin_city": "La Paz",
    "destination_city": "Santa Cruz",
    "recipient_name": "Ana",
    "events": [
      {"id": 1, "event_type": "received", "location": "La Paz", "timestamp": "2025-03-01 08:00:00"},
      {"id": "2", "event_type": "dispatched", "timestamp": "2025-03-01T10:00:00Z", "latitude": -16.5, "longitude": -68.15},
      {"id": 3, "event_type": "classified", "timestamp": "not a date"}
    ]
  },
  {"tracking_number": "BOA-2", "events": null}
]`

func TestClient_ListPackages_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/packages", r.URL.Path)
		require.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(packagesJSON))
	}))
	defer srv.Close()

	c := New(srv.URL+"/", "", WithToken("secret"), WithLocation(time.FixedZone("BOT", -4*3600)))
	pkgs, err := c.ListPackages(context.Background())
	require.NoError(t, err)
	require.Len(t, pkgs, 2)

	p := pkgs[0]
	require.Equal(t, "BOA-1", p.TrackingNumber)
	require.Equal(t, "Ana", p.RecipientName)
	require.Len(t, p.Events, 3)

	// 08:00 BOT == 12:00 UTC, поэтому он новее dispatched в 10:00Z
	require.Equal(t, "1", p.Events[0].ID)
	require.Equal(t, models.EventReceived, p.Events[0].EventType)
	require.True(t, p.Events[0].Timestamp.Equal(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)))
	require.Equal(t, "2", p.Events[1].ID)
	require.NotNil(t, p.Events[1].Coordinates)
	require.Equal(t, -16.5, p.Events[1].Coordinates.Latitude)
	require.Equal(t, "3", p.Events[2].ID)
	require.False(t, p.Events[2].HasTimestamp())

	require.NotNil(t, pkgs[1].Events)
	require.Empty(t, pkgs[1].Events)
}

func TestClient_ListPackages_WrappedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v2/packages", r.URL.Path)
		require.Empty(t, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"packages":[{"tracking_number":"X","events":[]}]}`))
	}))
	defer srv.Close()

	pkgs, err := New(srv.URL, "/v2/packages").ListPackages(context.Background())
	require.NoError(t, err)
	require.Len(t, pkgs, 1)
	require.Equal(t, "X", pkgs[0].TrackingNumber)
}

func TestClient_ListPackages_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "db down", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := New(srv.URL, "").ListPackages(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "http 502")
	require.Contains(t, err.Error(), "db down")
}

func TestClient_ListPackages_BadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"tracking_number": 5}]`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, "").ListPackages(context.Background())
	require.ErrorContains(t, err, "decode")
}

func TestClient_ListPackages_ContextCanceled(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := New(srv.URL, "", WithTimeout(5*time.Second)).ListPackages(ctx)
	require.Error(t, err)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

type countingTransport struct {
	calls int
	next  http.RoundTripper
}

func (t *countingTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	t.calls++
	return t.next.RoundTrip(r)
}

func TestClient_WithHTTPClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	tr := &countingTransport{next: srv.Client().Transport}
	c := New(srv.URL, "", WithHTTPClient(&http.Client{Transport: tr}), WithHTTPClient(nil))

	pkgs, err := c.ListPackages(context.Background())
	require.NoError(t, err)
	require.Empty(t, pkgs)
	require.Equal(t, 1, tr.calls)
}
