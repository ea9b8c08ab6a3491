package pgalerts

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/BearBump/DelayWatch/internal/broker/messages"
)

// SaveSnapshot stores the snapshot; saving the same scan id twice is a no-op.
func (s *Storage) SaveSnapshot(ctx context.Context, snap *messages.AlertsScanned) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return errors.Wrap(err, "marshal snapshot")
	}
	_, err = s.db.Exec(ctx, `
INSERT INTO alert_snapshots (id, scanned_at, payload)
VALUES ($1, $2, $3)
ON CONFLICT (id) DO NOTHING
`, snap.ID, snap.ScannedAt.UTC(), payload)
	if err != nil {
		return errors.Wrap(err, "insert snapshot")
	}
	return nil
}

// LatestSnapshot returns the snapshot with the greatest scanned_at.
func (s *Storage) LatestSnapshot(ctx context.Context) (*messages.AlertsScanned, bool, error) {
	var payload []byte
	err := s.db.QueryRow(ctx, `
SELECT payload
FROM alert_snapshots
ORDER BY scanned_at DESC, created_at DESC
LIMIT 1
`).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "select latest snapshot")
	}

	var snap messages.AlertsScanned
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, false, errors.Wrap(err, "unmarshal snapshot")
	}
	return &snap, true, nil
}

// PruneSnapshots keeps the newest keep snapshots and deletes the rest.
func (s *Storage) PruneSnapshots(ctx context.Context, keep int) (int64, error) {
	if keep <= 0 {
		return 0, nil
	}
	tag, err := s.db.Exec(ctx, `
DELETE FROM alert_snapshots
WHERE id IN (
  SELECT id FROM alert_snapshots
  ORDER BY scanned_at DESC, created_at DESC
  OFFSET $1
)
`, keep)
	if err != nil {
		return 0, errors.Wrap(err, "prune snapshots")
	}
	return tag.RowsAffected(), nil
}
