package models

import "time"

type AlertType string

const (
	AlertTypeDelay AlertType = "delay"
	// Пока детектор их не выдаёт, но UI уже умеет рисовать.
	AlertTypeCustomsHold AlertType = "customs_hold"
	AlertTypeMissing     AlertType = "missing"
	AlertTypeDamaged     AlertType = "damaged"
)

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Rank orders severities by urgency: critical 3 > high 2 > medium 1 > low 0.
// Unknown values rank below low.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityHigh:
		return 2
	case SeverityMedium:
		return 1
	case SeverityLow:
		return 0
	default:
		return -1
	}
}

func (s Severity) Valid() bool {
	return s.Rank() >= 0
}

// InternalAlert is derived on every scan and never stored as a row of its own.
type InternalAlert struct {
	ID                  string    `json:"id"`
	TrackingNumber      string    `json:"trackingNumber"`
	Type                AlertType `json:"type"`
	Severity            Severity  `json:"severity"`
	Title               string    `json:"title"`
	Description         string    `json:"description"`
	TimeSinceLastUpdate float64   `json:"timeSinceLastUpdate"`

	PackageDescription string `json:"packageDescription"`
	RecipientName      string `json:"recipientName"`
	OriginCity         string `json:"originCity"`
	DestinationCity    string `json:"destinationCity"`

	LastEventType EventType `json:"lastEventType"`
	LastEventAt   time.Time `json:"lastEventAt"`
	CreatedAt     time.Time `json:"createdAt"`

	IsResolved bool       `json:"isResolved"`
	ResolvedAt *time.Time `json:"resolvedAt,omitempty"`
	ResolvedBy string     `json:"resolvedBy,omitempty"`
}

func (a *InternalAlert) Resolve(by string, at time.Time) {
	at = at.UTC()
	a.IsResolved = true
	a.ResolvedBy = by
	a.ResolvedAt = &at
}

type AlertStatistics struct {
	Total    int `json:"total"`
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
	Resolved int `json:"resolved"`
	Pending  int `json:"pending"`
}

// AlertResolution: решение администратора по конкретному эпизоду задержки
// (посылка + время последнего события на момент решения).
type AlertResolution struct {
	TrackingNumber string    `json:"trackingNumber"`
	LastEventAt    time.Time `json:"lastEventAt"`
	ResolvedBy     string    `json:"resolvedBy"`
	ResolvedAt     time.Time `json:"resolvedAt"`
}
