package store

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/meracare/frontdesk/internal/queue"
	"github.com/meracare/frontdesk/internal/shared/metrics"
)

// Domain identifies one independently refreshed snapshot.
type Domain string

const (
	DomainWaitingQueue   Domain = "waitingQueue"
	DomainDashboardStats Domain = "dashboardStats"
	DomainDoctorRoster   Domain = "doctorRoster"
	DomainImagingQueue   Domain = "imagingQueue"
	DomainAppRequests    Domain = "appSyncRequests"
)

// AllDomains lists every snapshot domain the store holds.
var AllDomains = []Domain{
	DomainWaitingQueue,
	DomainDashboardStats,
	DomainDoctorRoster,
	DomainImagingQueue,
	DomainAppRequests,
}

// Fetcher pulls current snapshots from the HIS. Implementations must be
// idempotent and safe for concurrent calls.
type Fetcher interface {
	FetchWaitingQueue(ctx context.Context) (queue.Snapshot, error)
	FetchImagingQueue(ctx context.Context) (queue.Snapshot, error)
	FetchStats(ctx context.Context) (queue.DashboardStats, error)
	FetchRoster(ctx context.Context) ([]queue.DoctorRosterEntry, error)
	FetchAppRequests(ctx context.Context) ([]queue.AppSyncRequest, error)
}

// DomainStatus describes the refresh state of one domain.
type DomainStatus struct {
	Loading     bool      `json:"loading"`
	LastError   string    `json:"last_error,omitempty"`
	RefreshedAt time.Time `json:"refreshed_at"`
}

type domainState struct {
	applied     uint64
	inFlight    int
	lastErr     error
	refreshedAt time.Time
}

// Store holds the last-known snapshot per domain. A refresh wholly replaces
// the prior snapshot; there are no partial merges. Concurrent refreshes of
// the same domain are resolved by sequence stamping: every Refresh call
// takes a stamp at issue time and a completed fetch is applied only if its
// stamp is newer than the last one applied, so the store never regresses to
// an older view of a domain it has already exposed a newer view of.
type Store struct {
	fetcher Fetcher
	log     zerolog.Logger
	seq     atomic.Uint64

	mu          sync.RWMutex
	waiting     queue.Snapshot
	imaging     queue.Snapshot
	stats       queue.DashboardStats
	roster      []queue.DoctorRosterEntry
	appRequests []queue.AppSyncRequest
	domains     map[Domain]*domainState
}

// New creates an empty store backed by the given fetcher.
func New(fetcher Fetcher, log zerolog.Logger) *Store {
	domains := make(map[Domain]*domainState, len(AllDomains))
	for _, d := range AllDomains {
		domains[d] = &domainState{}
	}
	return &Store{fetcher: fetcher, log: log, domains: domains}
}

// Refresh fetches the domain's snapshot and applies it, unless a
// later-issued refresh already applied. Safe to call concurrently. A failed
// fetch leaves the current snapshot untouched and records the error, unless
// a later-issued refresh already applied a fresh snapshot.
func (s *Store) Refresh(ctx context.Context, domain Domain) error {
	state := s.domainState(domain)
	if state == nil {
		return nil
	}

	stamp := s.seq.Add(1)

	s.mu.Lock()
	state.inFlight++
	s.mu.Unlock()

	start := time.Now()
	value, err := s.fetch(ctx, domain)
	elapsed := time.Since(start)

	s.mu.Lock()
	defer s.mu.Unlock()
	state.inFlight--

	if err != nil {
		// The component that issued the refresh may already be gone;
		// a cancelled context must not overwrite the recorded error
		// picture or reach the log at error level.
		if ctx.Err() != nil {
			metrics.ObserveRefresh(string(domain), "cancelled", elapsed)
			return ctx.Err()
		}
		if stamp <= state.applied {
			// A later-issued refresh already applied, so this failure is
			// as stale as a stale success and must not surface in status.
			metrics.StaleDiscarded(string(domain))
			metrics.ObserveRefresh(string(domain), "stale", elapsed)
			s.log.Debug().Str("domain", string(domain)).Msg("discarded stale refresh failure")
			return nil
		}
		state.lastErr = err
		metrics.ObserveRefresh(string(domain), "error", elapsed)
		s.log.Error().Err(err).Str("domain", string(domain)).Msg("snapshot refresh failed")
		return err
	}

	if stamp <= state.applied {
		metrics.StaleDiscarded(string(domain))
		metrics.ObserveRefresh(string(domain), "stale", elapsed)
		s.log.Debug().Str("domain", string(domain)).Msg("discarded stale snapshot")
		return nil
	}

	s.apply(domain, value)
	state.applied = stamp
	state.lastErr = nil
	state.refreshedAt = time.Now()
	metrics.ObserveRefresh(string(domain), "ok", elapsed)
	return nil
}

func (s *Store) fetch(ctx context.Context, domain Domain) (any, error) {
	switch domain {
	case DomainWaitingQueue:
		return s.fetcher.FetchWaitingQueue(ctx)
	case DomainImagingQueue:
		return s.fetcher.FetchImagingQueue(ctx)
	case DomainDashboardStats:
		return s.fetcher.FetchStats(ctx)
	case DomainDoctorRoster:
		return s.fetcher.FetchRoster(ctx)
	case DomainAppRequests:
		return s.fetcher.FetchAppRequests(ctx)
	}
	return nil, nil
}

// apply replaces the domain snapshot. Caller holds the write lock.
func (s *Store) apply(domain Domain, value any) {
	switch domain {
	case DomainWaitingQueue:
		s.waiting = value.(queue.Snapshot)
		metrics.SetQueueDepth("waiting", len(s.waiting.Items))
	case DomainImagingQueue:
		s.imaging = value.(queue.Snapshot)
		metrics.SetQueueDepth("imaging", len(s.imaging.Items))
	case DomainDashboardStats:
		s.stats = value.(queue.DashboardStats)
	case DomainDoctorRoster:
		s.roster = value.([]queue.DoctorRosterEntry)
	case DomainAppRequests:
		s.appRequests = value.([]queue.AppSyncRequest)
	}
}

func (s *Store) domainState(domain Domain) *domainState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.domains[domain]
}

// WaitingQueue returns the last-known clinic queue snapshot. The returned
// slice is shared; callers treat it as read-only.
func (s *Store) WaitingQueue() queue.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.waiting
}

// ImagingQueue returns the last-known imaging queue snapshot.
func (s *Store) ImagingQueue() queue.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.imaging
}

// Stats returns the last-known dashboard counters.
func (s *Store) Stats() queue.DashboardStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

// Roster returns the last-known doctor roster.
func (s *Store) Roster() []queue.DoctorRosterEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.roster
}

// AppRequests returns the last-known app-originated request list.
func (s *Store) AppRequests() []queue.AppSyncRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.appRequests
}

// Status reports the refresh state of one domain.
func (s *Store) Status(domain Domain) DomainStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.domains[domain]
	if !ok {
		return DomainStatus{}
	}
	status := DomainStatus{
		Loading:     state.inFlight > 0,
		RefreshedAt: state.refreshedAt,
	}
	if state.lastErr != nil {
		status.LastError = state.lastErr.Error()
	}
	return status
}

// Statuses reports the refresh state of every domain.
func (s *Store) Statuses() map[Domain]DomainStatus {
	out := make(map[Domain]DomainStatus, len(AllDomains))
	for _, d := range AllDomains {
		out[d] = s.Status(d)
	}
	return out
}
