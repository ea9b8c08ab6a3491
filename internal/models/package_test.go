package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLatestEvent_ByTimestampNotPosition(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	events := []TrackingEvent{
		{ID: "old", Timestamp: now.Add(-48 * time.Hour)},
		{ID: "new", Timestamp: now.Add(-30 * time.Minute)},
		{ID: "mid", Timestamp: now.Add(-5 * time.Hour)},
	}

	e, ok := LatestEvent(events)
	require.True(t, ok)
	require.Equal(t, "new", e.ID)
}

func TestLatestEvent_EmptyAndUnknown(t *testing.T) {
	_, ok := LatestEvent(nil)
	require.False(t, ok)

	// ни у одного события нет времени -> берём первый элемент
	e, ok := LatestEvent([]TrackingEvent{{ID: "a"}, {ID: "b"}})
	require.True(t, ok)
	require.Equal(t, "a", e.ID)

	// событие без времени не может "перебить" событие с временем
	now := time.Now().UTC()
	e, ok = LatestEvent([]TrackingEvent{{ID: "x"}, {ID: "y", Timestamp: now}})
	require.True(t, ok)
	require.Equal(t, "y", e.ID)
}

func TestSortEventsDesc(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	events := []TrackingEvent{
		{ID: "unknown"},
		{ID: "t-2", Timestamp: now.Add(-2 * time.Hour)},
		{ID: "t-0", Timestamp: now},
		{ID: "t-1", Timestamp: now.Add(-1 * time.Hour)},
	}

	SortEventsDesc(events)

	ids := make([]string, 0, len(events))
	for _, e := range events {
		ids = append(ids, e.ID)
	}
	require.Equal(t, []string{"t-0", "t-1", "t-2", "unknown"}, ids)
}

func TestSeverity_Rank(t *testing.T) {
	require.Greater(t, SeverityCritical.Rank(), SeverityHigh.Rank())
	require.Greater(t, SeverityHigh.Rank(), SeverityMedium.Rank())
	require.Greater(t, SeverityMedium.Rank(), SeverityLow.Rank())
	require.False(t, Severity("urgent").Valid())
	require.True(t, SeverityLow.Valid())
}

func TestInternalAlert_Resolve(t *testing.T) {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.FixedZone("X", 3600))
	a := InternalAlert{ID: "BOA-1-1"}
	a.Resolve("admin", at)

	require.True(t, a.IsResolved)
	require.Equal(t, "admin", a.ResolvedBy)
	require.NotNil(t, a.ResolvedAt)
	require.True(t, a.ResolvedAt.Equal(at))
	require.Equal(t, time.UTC, a.ResolvedAt.Location())
}
