// Package alerts derives internal delay alerts from package event timelines.
//
// Everything here is a pure function of its inputs: the caller passes the package
// snapshot and the reference time, nothing reads the wall clock or keeps state.
package alerts

import (
	"fmt"
	"sort"
	"time"

	"github.com/BearBump/DelayWatch/internal/models"
	"github.com/pkg/errors"
)

const notAvailable = "N/A"

// Policy holds the delay thresholds in hours. A package alerts when elapsed hours
// exceed ThresholdHours; severity bounds are exclusive lower bounds.
type Policy struct {
	ThresholdHours float64 `json:"thresholdHours"`
	MediumHours    float64 `json:"mediumHours"`
	HighHours      float64 `json:"highHours"`
	CriticalHours  float64 `json:"criticalHours"`
}

func DefaultPolicy() Policy {
	return Policy{
		ThresholdHours: 1.5,
		MediumHours:    2.5,
		HighHours:      4.0,
		CriticalHours:  6.0,
	}
}

// WithDefaults fills zero or negative bounds from DefaultPolicy.
func (p Policy) WithDefaults() Policy {
	def := DefaultPolicy()
	if p.ThresholdHours <= 0 {
		p.ThresholdHours = def.ThresholdHours
	}
	if p.MediumHours <= 0 {
		p.MediumHours = def.MediumHours
	}
	if p.HighHours <= 0 {
		p.HighHours = def.HighHours
	}
	if p.CriticalHours <= 0 {
		p.CriticalHours = def.CriticalHours
	}
	return p
}

// Validate checks threshold <= medium < high < critical.
func (p Policy) Validate() error {
	if p.ThresholdHours > p.MediumHours {
		return errors.Errorf("threshold %.2fh is above medium bound %.2fh", p.ThresholdHours, p.MediumHours)
	}
	if p.MediumHours >= p.HighHours {
		return errors.Errorf("medium bound %.2fh must be below high bound %.2fh", p.MediumHours, p.HighHours)
	}
	if p.HighHours >= p.CriticalHours {
		return errors.Errorf("high bound %.2fh must be below critical bound %.2fh", p.HighHours, p.CriticalHours)
	}
	return nil
}

const (
	WarningUnknownTimestamp = "unknown_timestamp"
)

// DataWarning reports a package that was left out of the scan because its data
// could not be trusted.
type DataWarning struct {
	TrackingNumber string `json:"trackingNumber"`
	EventID        string `json:"eventId,omitempty"`
	Reason         string `json:"reason"`
	Message        string `json:"message"`
}

type Result struct {
	Alerts   []models.InternalAlert `json:"alerts"`
	Warnings []DataWarning          `json:"warnings,omitempty"`
}

type Detector struct {
	policy Policy
}

func NewDetector(p Policy) *Detector {
	return &Detector{policy: p.WithDefaults()}
}

func (d *Detector) Policy() Policy {
	return d.policy
}

// Classify maps elapsed hours to a severity. ok is false when hours do not exceed
// the alert threshold (or are not a number).
func (d *Detector) Classify(hours float64) (models.Severity, bool) {
	// NaN сравнивается как false со всем подряд, отсекаем явно.
	if hours != hours || hours <= d.policy.ThresholdHours {
		return "", false
	}
	switch {
	case hours > d.policy.CriticalHours:
		return models.SeverityCritical, true
	case hours > d.policy.HighHours:
		return models.SeverityHigh, true
	case hours > d.policy.MediumHours:
		return models.SeverityMedium, true
	default:
		return models.SeverityLow, true
	}
}

// Detect scans the snapshot and returns delay alerts ordered critical → low.
// Packages without events are skipped. Packages with an event whose time is unknown
// are excluded and reported as warnings, the rest of the scan continues.
func (d *Detector) Detect(packages []models.Package, now time.Time) Result {
	res := Result{Alerts: []models.InternalAlert{}}

	for _, p := range packages {
		if len(p.Events) == 0 {
			continue
		}
		if w, bad := checkTimestamps(p); bad {
			res.Warnings = append(res.Warnings, w)
			continue
		}

		last, _ := models.LatestEvent(p.Events)
		hours := now.Sub(last.Timestamp).Hours()
		sev, ok := d.Classify(hours)
		if !ok {
			continue
		}
		res.Alerts = append(res.Alerts, newDelayAlert(p, last, sev, hours, now))
	}

	SortBySeverity(res.Alerts)
	return res
}

func checkTimestamps(p models.Package) (DataWarning, bool) {
	for _, e := range p.Events {
		if e.HasTimestamp() {
			continue
		}
		return DataWarning{
			TrackingNumber: p.TrackingNumber,
			EventID:        e.ID,
			Reason:         WarningUnknownTimestamp,
			Message:        fmt.Sprintf("package %s has an event without a valid timestamp, skipped", p.TrackingNumber),
		}, true
	}
	return DataWarning{}, false
}

func newDelayAlert(p models.Package, last models.TrackingEvent, sev models.Severity, hours float64, now time.Time) models.InternalAlert {
	return models.InternalAlert{
		ID:                  fmt.Sprintf("%s-%d", p.TrackingNumber, now.UnixMilli()),
		TrackingNumber:      p.TrackingNumber,
		Type:                models.AlertTypeDelay,
		Severity:            sev,
		Title:               fmt.Sprintf("Package %s delayed", p.TrackingNumber),
		Description:         fmt.Sprintf("Package %s has had no updates for %.1f hours", p.TrackingNumber, hours),
		TimeSinceLastUpdate: hours,
		PackageDescription:  orNA(p.Description),
		RecipientName:       orNA(p.RecipientName),
		OriginCity:          orNA(p.OriginCity),
		DestinationCity:     orNA(p.DestinationCity),
		LastEventType:       last.EventType,
		LastEventAt:         last.Timestamp.UTC(),
		CreatedAt:           now.UTC(),
		IsResolved:          false,
	}
}

// SortBySeverity orders alerts by severity rank, then by elapsed hours (older first),
// then by tracking number.
func SortBySeverity(alerts []models.InternalAlert) {
	sort.SliceStable(alerts, func(i, j int) bool {
		a, b := alerts[i], alerts[j]
		if a.Severity.Rank() != b.Severity.Rank() {
			return a.Severity.Rank() > b.Severity.Rank()
		}
		if a.TimeSinceLastUpdate != b.TimeSinceLastUpdate {
			return a.TimeSinceLastUpdate > b.TimeSinceLastUpdate
		}
		return a.TrackingNumber < b.TrackingNumber
	})
}

func orNA(s string) string {
	if s == "" {
		return notAvailable
	}
	return s
}

var defaultDetector = NewDetector(DefaultPolicy())

// CheckInternalAlerts runs the default policy and returns only the alerts.
func CheckInternalAlerts(packages []models.Package, now time.Time) []models.InternalAlert {
	return defaultDetector.Detect(packages, now).Alerts
}
