// Package packagesource fetches packages with their tracking history from the
// upstream backend and normalizes them for the alert detector.
package packagesource

import (
	"context"

	"github.com/BearBump/DelayWatch/internal/models"
)

// Source returns the full current package list. Events of every package are
// sorted newest first and carry parsed timestamps (zero when unknown).
type Source interface {
	ListPackages(ctx context.Context) ([]models.Package, error)
}
