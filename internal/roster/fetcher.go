package roster

import (
	"context"

	"github.com/meracare/frontdesk/internal/queue"
	"github.com/meracare/frontdesk/internal/store"
)

// Source provides the doctor roster.
type Source interface {
	FetchRoster(ctx context.Context) ([]queue.DoctorRosterEntry, error)
}

// Fetcher wraps a snapshot fetcher and redirects roster fetches to an
// alternate source. Every other domain passes through untouched.
type Fetcher struct {
	store.Fetcher
	roster Source
}

// WithSource overrides the roster source of base.
func WithSource(base store.Fetcher, source Source) *Fetcher {
	return &Fetcher{Fetcher: base, roster: source}
}

// FetchRoster reads from the alternate source.
func (f *Fetcher) FetchRoster(ctx context.Context) ([]queue.DoctorRosterEntry, error) {
	return f.roster.FetchRoster(ctx)
}
