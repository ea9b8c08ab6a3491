package alerts

import "github.com/BearBump/DelayWatch/internal/models"

// Statistics counts alerts by severity and resolution state.
func Statistics(alerts []models.InternalAlert) models.AlertStatistics {
	var st models.AlertStatistics
	for _, a := range alerts {
		st.Total++
		switch a.Severity {
		case models.SeverityCritical:
			st.Critical++
		case models.SeverityHigh:
			st.High++
		case models.SeverityMedium:
			st.Medium++
		case models.SeverityLow:
			st.Low++
		}
		if a.IsResolved {
			st.Resolved++
		}
	}
	st.Pending = st.Total - st.Resolved
	return st
}
