// Package progress maps a package's event history to a delivery completion percentage.
package progress

import "github.com/BearBump/DelayWatch/internal/models"

// DefaultPercent is returned for pending/processing/arrived/departure and for any
// event type the table does not know.
const DefaultPercent = 10

// Table maps the latest event type to a percentage.
type Table map[models.EventType]int

// DefaultTable returns the percentages shown in the app today. Changing them
// changes what users see on the progress bar.
func DefaultTable() Table {
	return Table{
		models.EventDelivered:        100,
		models.EventOutForDelivery:   90,
		models.EventCustomsClearance: 85,
		models.EventInFlight:         75,
		models.EventDispatched:       60,
		models.EventClassified:       40,
		models.EventReceived:         20,
	}
}

type Calculator struct {
	table Table
}

// New builds a Calculator from the default table with overrides applied on top.
// Values are clamped to 0..100.
func New(overrides map[string]int) *Calculator {
	t := DefaultTable()
	for k, v := range overrides {
		if v < 0 {
			v = 0
		}
		if v > 100 {
			v = 100
		}
		t[models.EventType(k)] = v
	}
	return &Calculator{table: t}
}

// Calculate returns 0 for an empty history, otherwise the table value for the most
// recent event (by timestamp).
func (c *Calculator) Calculate(events []models.TrackingEvent) int {
	latest, ok := models.LatestEvent(events)
	if !ok {
		return 0
	}
	if p, ok := c.table[latest.EventType]; ok {
		return p
	}
	return DefaultPercent
}

// Summarize builds the display summary for a package.
func (c *Calculator) Summarize(p models.Package) models.PackageSummary {
	s := models.PackageSummary{
		TrackingNumber:  p.TrackingNumber,
		Description:     p.Description,
		Priority:        p.Priority,
		OriginCity:      p.OriginCity,
		DestinationCity: p.DestinationCity,
		RecipientName:   p.RecipientName,
		Progress:        c.Calculate(p.Events),
		EventCount:      len(p.Events),
	}
	if latest, ok := models.LatestEvent(p.Events); ok {
		s.LastEventType = latest.EventType
		s.LastLocation = latest.Location
		if s.LastLocation == "" {
			s.LastLocation = latest.PointName
		}
		if latest.HasTimestamp() {
			ts := latest.Timestamp
			s.LastEventAt = &ts
		}
	}
	return s
}

var defaultCalculator = New(nil)

// Calculate uses the default table.
func Calculate(events []models.TrackingEvent) int {
	return defaultCalculator.Calculate(events)
}
