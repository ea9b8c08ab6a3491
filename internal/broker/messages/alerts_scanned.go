package messages

import (
	"time"

	"github.com/BearBump/DelayWatch/internal/models"
	"github.com/BearBump/DelayWatch/internal/services/alerts"
)

const AlertsScannedKey = "snapshot"

// AlertsScanned is the result of one monitor refresh. It is the unit
// published to kafka, cached in redis and stored in postgres.
type AlertsScanned struct {
	ID        string    `json:"id"`
	ScannedAt time.Time `json:"scannedAt"`

	Alerts   []models.InternalAlert  `json:"alerts"`
	Stats    models.AlertStatistics  `json:"stats"`
	Packages []models.PackageSummary `json:"packages"`

	Warnings []alerts.DataWarning `json:"warnings,omitempty"`
}

// Newer reports whether s should replace cur.
func (s *AlertsScanned) Newer(cur *AlertsScanned) bool {
	if cur == nil {
		return true
	}
	return s.ScannedAt.After(cur.ScannedAt)
}
