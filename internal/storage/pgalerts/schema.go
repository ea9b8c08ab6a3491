package pgalerts

import (
	"context"

	"github.com/pkg/errors"
)

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS alert_snapshots (
  id TEXT PRIMARY KEY,
  scanned_at TIMESTAMPTZ NOT NULL,
  payload JSONB NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
		`CREATE INDEX IF NOT EXISTS idx_alert_snapshots_scanned_at ON alert_snapshots(scanned_at DESC)`,
		// Резолюция привязана к эпизоду задержки: (трек, время последнего события).
		`
CREATE TABLE IF NOT EXISTS alert_resolutions (
  tracking_number TEXT NOT NULL,
  last_event_at TIMESTAMPTZ NOT NULL,
  resolved_by TEXT NOT NULL,
  resolved_at TIMESTAMPTZ NOT NULL,
  PRIMARY KEY (tracking_number, last_event_at)
)`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}
