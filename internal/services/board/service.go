package board

import (
	"context"
	"encoding/json"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/BearBump/DelayWatch/internal/broker/messages"
	"github.com/BearBump/DelayWatch/internal/cache"
	"github.com/BearBump/DelayWatch/internal/logger"
	"github.com/BearBump/DelayWatch/internal/models"
	"github.com/BearBump/DelayWatch/internal/services/alerts"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrNotAllowed      = errors.New("not allowed")
	ErrInvalidArgument = errors.New("invalid argument")
)

const (
	StatusAll      = "all"
	StatusPending  = "pending"
	StatusResolved = "resolved"
)

type Repository interface {
	SaveSnapshot(ctx context.Context, snap *messages.AlertsScanned) error
	LatestSnapshot(ctx context.Context) (*messages.AlertsScanned, bool, error)
	PruneSnapshots(ctx context.Context, keep int) (int64, error)
	SaveResolution(ctx context.Context, r models.AlertResolution) error
	ListResolutions(ctx context.Context, trackingNumbers []string) ([]models.AlertResolution, error)
}

type AlertFilter struct {
	Severity models.Severity
	Status   string
}

func (f AlertFilter) validate() error {
	if f.Severity != "" && !f.Severity.Valid() {
		return errors.Wrapf(ErrInvalidArgument, "unknown severity %q", f.Severity)
	}
	switch f.Status {
	case "", StatusAll, StatusPending, StatusResolved:
		return nil
	default:
		return errors.Wrapf(ErrInvalidArgument, "unknown status %q", f.Status)
	}
}

func (f AlertFilter) match(a models.InternalAlert) bool {
	if f.Severity != "" && a.Severity != f.Severity {
		return false
	}
	switch f.Status {
	case StatusPending:
		return !a.IsResolved
	case StatusResolved:
		return a.IsResolved
	}
	return true
}

type Service struct {
	repo        Repository
	cache       cache.BytesCache
	snapshotTTL time.Duration

	keepSnapshots int
	admins        map[string]struct{}
	now           func() time.Time

	applyMu sync.Mutex
}

func New(repo Repository, c cache.BytesCache, snapshotTTL time.Duration) *Service {
	return &Service{
		repo:          repo,
		cache:         c,
		snapshotTTL:   snapshotTTL,
		keepSnapshots: 100,
		admins:        map[string]struct{}{},
		now:           time.Now,
	}
}

// WithAdmins restricts ResolveAlert to the given operators. An empty list
// allows anyone.
func (s *Service) WithAdmins(admins []string) *Service {
	s.admins = make(map[string]struct{}, len(admins))
	for _, a := range admins {
		if a != "" {
			s.admins[a] = struct{}{}
		}
	}
	return s
}

func (s *Service) WithKeepSnapshots(n int) *Service {
	s.keepSnapshots = n
	return s
}

func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

func (s *Service) cacheEnabled() bool {
	return s.cache != nil && s.snapshotTTL > 0
}

// ApplySnapshot stores a scan result. Snapshots not newer than the current
// one are ignored and reported as applied=false.
func (s *Service) ApplySnapshot(ctx context.Context, snap *messages.AlertsScanned) (bool, error) {
	if snap == nil || snap.ID == "" {
		return false, errors.Wrap(ErrInvalidArgument, "snapshot id is required")
	}
	if snap.ScannedAt.IsZero() {
		return false, errors.Wrap(ErrInvalidArgument, "scannedAt is required")
	}

	s.applyMu.Lock()
	defer s.applyMu.Unlock()

	cur, err := s.CurrentSnapshot(ctx)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return false, err
	}
	if !snap.Newer(cur) {
		logger.Get().Debug("stale snapshot ignored",
			zap.String("scan_id", snap.ID),
			zap.Time("scanned_at", snap.ScannedAt),
			zap.Time("current_scanned_at", cur.ScannedAt),
		)
		return false, nil
	}

	if err := s.repo.SaveSnapshot(ctx, snap); err != nil {
		return false, err
	}
	s.cacheSnapshot(ctx, snap)

	if n, err := s.repo.PruneSnapshots(ctx, s.keepSnapshots); err != nil {
		logger.Get().Warn("prune snapshots", zap.Error(err))
	} else if n > 0 {
		logger.Get().Debug("snapshots pruned", zap.Int64("deleted", n))
	}
	return true, nil
}

// CurrentSnapshot returns the newest snapshot: redis first, postgres as
// fallback. ErrNotFound until the first scan arrives.
func (s *Service) CurrentSnapshot(ctx context.Context) (*messages.AlertsScanned, error) {
	// кэш best effort, ошибки и битый JSON считаем промахом
	if s.cacheEnabled() {
		b, ok, err := s.cache.Get(ctx, cache.KeyLatestSnapshot)
		if err == nil && ok {
			var snap messages.AlertsScanned
			if json.Unmarshal(b, &snap) == nil {
				return &snap, nil
			}
		}
	}

	snap, ok, err := s.repo.LatestSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	s.cacheSnapshot(ctx, snap)
	return snap, nil
}

func (s *Service) cacheSnapshot(ctx context.Context, snap *messages.AlertsScanned) {
	if !s.cacheEnabled() {
		return
	}
	b, err := json.Marshal(snap)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, cache.KeyLatestSnapshot, b, s.snapshotTTL); err != nil {
		logger.Get().Warn("cache snapshot", zap.Error(err))
	}
}

// ListAlerts returns current alerts (severity order) with stored resolutions
// applied.
func (s *Service) ListAlerts(ctx context.Context, f AlertFilter) ([]models.InternalAlert, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}
	all, err := s.currentAlerts(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.InternalAlert, 0, len(all))
	for _, a := range all {
		if f.match(a) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *Service) AlertStatistics(ctx context.Context) (models.AlertStatistics, error) {
	all, err := s.currentAlerts(ctx)
	if err != nil {
		return models.AlertStatistics{}, err
	}
	return alerts.Statistics(all), nil
}

// ResolveAlert marks the alert's delay episode as resolved. The resolution
// stays attached to (tracking number, last event time), so later scans of the
// same stale package keep it resolved until a new event arrives.
func (s *Service) ResolveAlert(ctx context.Context, alertID, resolvedBy string) (models.InternalAlert, error) {
	if alertID == "" {
		return models.InternalAlert{}, errors.Wrap(ErrInvalidArgument, "alertId is required")
	}
	if resolvedBy == "" {
		return models.InternalAlert{}, errors.Wrap(ErrInvalidArgument, "resolvedBy is required")
	}
	if len(s.admins) > 0 {
		if _, ok := s.admins[resolvedBy]; !ok {
			return models.InternalAlert{}, errors.Wrapf(ErrNotAllowed, "%q may not resolve alerts", resolvedBy)
		}
	}

	all, err := s.currentAlerts(ctx)
	if err != nil {
		return models.InternalAlert{}, err
	}
	a, ok := findAlert(all, alertID)
	if !ok {
		return models.InternalAlert{}, errors.Wrapf(ErrNotFound, "alert %s", alertID)
	}
	if a.IsResolved {
		return a, nil
	}

	now := s.now().UTC()
	err = s.repo.SaveResolution(ctx, models.AlertResolution{
		TrackingNumber: a.TrackingNumber,
		LastEventAt:    a.LastEventAt,
		ResolvedBy:     resolvedBy,
		ResolvedAt:     now,
	})
	if err != nil {
		return models.InternalAlert{}, err
	}
	a.Resolve(resolvedBy, now)
	logger.Get().Info("alert resolved",
		zap.String("alert_id", a.ID),
		zap.String("tracking_number", a.TrackingNumber),
		zap.String("resolved_by", resolvedBy),
	)
	return a, nil
}

func (s *Service) ListPackages(ctx context.Context) ([]models.PackageSummary, error) {
	snap, err := s.CurrentSnapshot(ctx)
	if errors.Is(err, ErrNotFound) {
		return []models.PackageSummary{}, nil
	}
	if err != nil {
		return nil, err
	}
	if snap.Packages == nil {
		return []models.PackageSummary{}, nil
	}
	return snap.Packages, nil
}

func (s *Service) GetPackage(ctx context.Context, trackingNumber string) (models.PackageSummary, error) {
	if trackingNumber == "" {
		return models.PackageSummary{}, errors.Wrap(ErrInvalidArgument, "trackingNumber is required")
	}
	pkgs, err := s.ListPackages(ctx)
	if err != nil {
		return models.PackageSummary{}, err
	}
	for _, p := range pkgs {
		if p.TrackingNumber == trackingNumber {
			return p, nil
		}
	}
	return models.PackageSummary{}, errors.Wrapf(ErrNotFound, "package %s", trackingNumber)
}

// currentAlerts copies the snapshot alerts and overlays resolutions.
func (s *Service) currentAlerts(ctx context.Context) ([]models.InternalAlert, error) {
	snap, err := s.CurrentSnapshot(ctx)
	if errors.Is(err, ErrNotFound) {
		return []models.InternalAlert{}, nil
	}
	if err != nil {
		return nil, err
	}

	out := make([]models.InternalAlert, len(snap.Alerts))
	copy(out, snap.Alerts)
	if len(out) == 0 {
		return out, nil
	}

	tns := make([]string, 0, len(out))
	for _, a := range out {
		tns = append(tns, a.TrackingNumber)
	}
	res, err := s.repo.ListResolutions(ctx, tns)
	if err != nil {
		return nil, err
	}
	idx := make(map[string]models.AlertResolution, len(res))
	for _, r := range res {
		idx[episodeKey(r.TrackingNumber, r.LastEventAt)] = r
	}
	for i := range out {
		if r, ok := idx[episodeKey(out[i].TrackingNumber, out[i].LastEventAt)]; ok {
			out[i].Resolve(r.ResolvedBy, r.ResolvedAt)
		}
	}
	return out, nil
}

// Postgres хранит timestamptz с точностью до микросекунд.
func episodeKey(trackingNumber string, lastEventAt time.Time) string {
	return trackingNumber + "|" + strconv.FormatInt(lastEventAt.Truncate(time.Microsecond).UnixMicro(), 10)
}

// Alert ids are "<trackingNumber>-<scan unix ms>".
var alertIDPattern = regexp.MustCompile(`^(.+)-(\d{13})$`)

// findAlert matches by id. Ids are re-minted on every scan, so an id from an
// older scan still matches when its tracking number is the same and it was
// minted after the package's latest event, i.e. within the same delay episode.
func findAlert(all []models.InternalAlert, alertID string) (models.InternalAlert, bool) {
	for _, a := range all {
		if a.ID == alertID {
			return a, true
		}
	}
	m := alertIDPattern.FindStringSubmatch(alertID)
	if m == nil {
		return models.InternalAlert{}, false
	}
	ms, err := strconv.ParseInt(m[2], 10, 64)
	if err != nil {
		return models.InternalAlert{}, false
	}
	minted := time.UnixMilli(ms)
	for _, a := range all {
		if a.TrackingNumber != m[1] {
			continue
		}
		// id выдан до последнего события: это был прошлый эпизод
		if minted.Before(a.LastEventAt.Truncate(time.Millisecond)) {
			return models.InternalAlert{}, false
		}
		return a, true
	}
	return models.InternalAlert{}, false
}
