package models

import (
	"sort"
	"time"
)

// EventType: стадия жизненного цикла посылки.
type EventType string

const (
	EventReceived         EventType = "received"
	EventClassified       EventType = "classified"
	EventDispatched       EventType = "dispatched"
	EventInFlight         EventType = "in_flight"
	EventCustomsClearance EventType = "customs_clearance"
	EventOutForDelivery   EventType = "out_for_delivery"
	EventDelivered        EventType = "delivered"

	// Вспомогательные значения, используются только как fallback/default.
	EventPending    EventType = "pending"
	EventProcessing EventType = "processing"
	EventArrived    EventType = "arrived"
	EventDeparture  EventType = "departure"
)

const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// TrackingEvent is a single state transition recorded for a package.
// A zero Timestamp means the source time was missing or could not be parsed.
type TrackingEvent struct {
	ID              string       `json:"id"`
	EventType       EventType    `json:"eventType"`
	Location        string       `json:"location,omitempty"`
	PointName       string       `json:"pointName,omitempty"`
	Timestamp       time.Time    `json:"timestamp"`
	Operator        string       `json:"operator,omitempty"`
	Notes           string       `json:"notes,omitempty"`
	FlightNumber    string       `json:"flightNumber,omitempty"`
	Airline         string       `json:"airline,omitempty"`
	NextDestination string       `json:"nextDestination,omitempty"`
	Coordinates     *Coordinates `json:"coordinates,omitempty"`
}

// HasTimestamp reports whether the event time is known.
func (e TrackingEvent) HasTimestamp() bool {
	return !e.Timestamp.IsZero()
}

type Package struct {
	TrackingNumber  string          `json:"trackingNumber"`
	Description     string          `json:"description,omitempty"`
	Priority        string          `json:"priority,omitempty"`
	OriginCity      string          `json:"originCity,omitempty"`
	DestinationCity string          `json:"destinationCity,omitempty"`
	RecipientName   string          `json:"recipientName,omitempty"`
	SenderName      string          `json:"senderName,omitempty"`
	Events          []TrackingEvent `json:"events"`
}

// PackageSummary: то, что отдаём наружу для прогресс-бара.
type PackageSummary struct {
	TrackingNumber  string     `json:"trackingNumber"`
	Description     string     `json:"description,omitempty"`
	Priority        string     `json:"priority,omitempty"`
	OriginCity      string     `json:"originCity,omitempty"`
	DestinationCity string     `json:"destinationCity,omitempty"`
	RecipientName   string     `json:"recipientName,omitempty"`
	LastEventType   EventType  `json:"lastEventType,omitempty"`
	LastEventAt     *time.Time `json:"lastEventAt,omitempty"`
	LastLocation    string     `json:"lastLocation,omitempty"`
	Progress        int        `json:"progress"`
	EventCount      int        `json:"eventCount"`
}

// SortEventsDesc orders events newest first. Events with an unknown timestamp go
// last; the sort is stable so equal timestamps keep their source order.
func SortEventsDesc(events []TrackingEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if !a.HasTimestamp() || !b.HasTimestamp() {
			return a.HasTimestamp() && !b.HasTimestamp()
		}
		return a.Timestamp.After(b.Timestamp)
	})
}

// LatestEvent returns the event with the greatest known timestamp regardless of
// slice order. If no event has a known timestamp the first element is returned.
func LatestEvent(events []TrackingEvent) (TrackingEvent, bool) {
	if len(events) == 0 {
		return TrackingEvent{}, false
	}
	latest := -1
	for i, e := range events {
		if !e.HasTimestamp() {
			continue
		}
		if latest < 0 || e.Timestamp.After(events[latest].Timestamp) {
			latest = i
		}
	}
	if latest < 0 {
		return events[0], true
	}
	return events[latest], true
}
