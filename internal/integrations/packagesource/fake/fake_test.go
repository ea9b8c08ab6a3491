package fake

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var fixedNow = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }

func TestClient_ListPackages_Deterministic(t *testing.T) {
	c := New(30, fixedNow)
	a, err := c.ListPackages(context.Background())
	require.NoError(t, err)
	b, err := c.ListPackages(context.Background())
	require.NoError(t, err)

	require.Len(t, a, 30)
	require.Equal(t, a, b)
	require.Equal(t, "DW-0001", a[0].TrackingNumber)
}

func TestClient_ListPackages_EventsNewestFirstAndNotFuture(t *testing.T) {
	pkgs, err := New(50, fixedNow).ListPackages(context.Background())
	require.NoError(t, err)

	for _, p := range pkgs {
		require.NotNil(t, p.Events)
		for i, e := range p.Events {
			require.True(t, e.HasTimestamp())
			require.False(t, e.Timestamp.After(fixedNow()), p.TrackingNumber)
			if i > 0 {
				require.False(t, e.Timestamp.After(p.Events[i-1].Timestamp), p.TrackingNumber)
			}
		}
	}
}

func TestClient_ListPackages_DefaultsAndCancel(t *testing.T) {
	c := New(0, nil)
	pkgs, err := c.ListPackages(context.Background())
	require.NoError(t, err)
	require.Len(t, pkgs, 20)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.ListPackages(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
