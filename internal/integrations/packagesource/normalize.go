package packagesource

import (
	"strings"
	"time"

	"github.com/BearBump/DelayWatch/internal/models"
)

const sqlTimestampLayout = "2006-01-02T15:04:05"

// ParseTimestamp understands the backend format "YYYY-MM-DD HH:MM:SS" (read in
// loc) and RFC3339. Anything else gives the zero time, i.e. "unknown".
func ParseTimestamp(raw string, loc *time.Location) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	if loc == nil {
		loc = time.UTC
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t.UTC()
	}
	// "2025-03-01 09:00:00" -> "2025-03-01T09:00:00"
	iso := strings.Replace(raw, " ", "T", 1)
	if t, err := time.ParseInLocation(sqlTimestampLayout, iso, loc); err == nil {
		return t.UTC()
	}
	return time.Time{}
}

// Normalize sorts every package's events newest first in place.
func Normalize(pkgs []models.Package) []models.Package {
	for i := range pkgs {
		if pkgs[i].Events == nil {
			pkgs[i].Events = []models.TrackingEvent{}
		}
		models.SortEventsDesc(pkgs[i].Events)
	}
	return pkgs
}
