package pgalerts

import (
	"context"

	"github.com/pkg/errors"

	"github.com/BearBump/DelayWatch/internal/models"
)

// SaveResolution upserts the resolution of one delay episode.
func (s *Storage) SaveResolution(ctx context.Context, r models.AlertResolution) error {
	_, err := s.db.Exec(ctx, `
INSERT INTO alert_resolutions (tracking_number, last_event_at, resolved_by, resolved_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (tracking_number, last_event_at)
DO UPDATE SET resolved_by = EXCLUDED.resolved_by, resolved_at = EXCLUDED.resolved_at
`, r.TrackingNumber, r.LastEventAt.UTC(), r.ResolvedBy, r.ResolvedAt.UTC())
	if err != nil {
		return errors.Wrap(err, "upsert resolution")
	}
	return nil
}

// ListResolutions returns resolutions for the given tracking numbers.
func (s *Storage) ListResolutions(ctx context.Context, trackingNumbers []string) ([]models.AlertResolution, error) {
	if len(trackingNumbers) == 0 {
		return []models.AlertResolution{}, nil
	}

	rows, err := s.db.Query(ctx, `
SELECT tracking_number, last_event_at, resolved_by, resolved_at
FROM alert_resolutions
WHERE tracking_number = ANY($1)
ORDER BY tracking_number, last_event_at
`, trackingNumbers)
	if err != nil {
		return nil, errors.Wrap(err, "select resolutions")
	}
	defer rows.Close()

	out := make([]models.AlertResolution, 0, len(trackingNumbers))
	for rows.Next() {
		var r models.AlertResolution
		if err := rows.Scan(&r.TrackingNumber, &r.LastEventAt, &r.ResolvedBy, &r.ResolvedAt); err != nil {
			return nil, errors.Wrap(err, "scan resolution")
		}
		r.LastEventAt = r.LastEventAt.UTC()
		r.ResolvedAt = r.ResolvedAt.UTC()
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "rows")
	}
	return out, nil
}
