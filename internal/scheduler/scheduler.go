package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/meracare/frontdesk/internal/events"
	"github.com/meracare/frontdesk/internal/shared/config"
	"github.com/meracare/frontdesk/internal/store"
)

// Refresher is the store-facing side of the scheduler.
type Refresher interface {
	Refresh(ctx context.Context, domain store.Domain) error
}

// Scheduler turns notifications into refresh tasks. Each domain has one
// worker draining a capacity-one trigger channel, so a burst of duplicate
// notifications collapses into a single refresh; a rate limiter caps how
// often a domain can refresh even under distinct notifications. While the
// event channel is degraded the workers fall back to a faster poll cycle,
// so the console keeps moving without push.
type Scheduler struct {
	refresher Refresher
	source    events.Source // nil when the channel never came up
	cfg       config.SyncConfig
	log       zerolog.Logger

	triggers map[store.Domain]chan struct{}
	limiters map[store.Domain]*rate.Limiter
}

// New creates a scheduler over the given refresher and notification source.
// source may be nil; the scheduler then runs on polling alone.
func New(refresher Refresher, source events.Source, cfg config.SyncConfig, log zerolog.Logger) *Scheduler {
	s := &Scheduler{
		refresher: refresher,
		source:    source,
		cfg:       cfg,
		log:       log,
		triggers:  make(map[store.Domain]chan struct{}, len(store.AllDomains)),
		limiters:  make(map[store.Domain]*rate.Limiter, len(store.AllDomains)),
	}
	for _, d := range store.AllDomains {
		s.triggers[d] = make(chan struct{}, 1)
		s.limiters[d] = rate.NewLimiter(rate.Limit(cfg.RefreshRate), cfg.RefreshBurst)
	}
	return s
}

// DomainsFor maps a notification to the snapshot domains it invalidates.
func DomainsFor(n events.Notification) []store.Domain {
	switch n.Type {
	case events.TypePatientUpdate:
		return []store.Domain{store.DomainWaitingQueue}
	case events.TypeQueueUpdate:
		if n.QueueType() == "imaging" {
			return []store.Domain{store.DomainImagingQueue, store.DomainDashboardStats}
		}
		return []store.Domain{store.DomainWaitingQueue, store.DomainDashboardStats}
	case events.TypeStatsUpdate:
		return []store.Domain{store.DomainDashboardStats}
	case events.TypeQuestionnaireUpdate:
		return []store.Domain{store.DomainWaitingQueue}
	case events.TypeNewOrder:
		return []store.Domain{store.DomainWaitingQueue, store.DomainDashboardStats}
	}
	return nil
}

// Trigger requests a refresh of one domain. Non-blocking: if a trigger is
// already pending the request is absorbed by it.
func (s *Scheduler) Trigger(domain store.Domain) {
	ch, ok := s.triggers[domain]
	if !ok {
		return
	}
	select {
	case ch <- struct{}{}:
	default:
	}
}

// TriggerAll requests a refresh of every domain.
func (s *Scheduler) TriggerAll() {
	for _, d := range store.AllDomains {
		s.Trigger(d)
	}
}

// Run wires the notification subscriptions and starts the domain workers.
// It returns when ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	if s.source != nil {
		for _, t := range events.KnownTypes {
			s.source.Subscribe(t, s.handle)
		}
		s.source.OnStateChange(func(state events.State) {
			s.log.Info().Stringer("state", state).Msg("event channel state changed")
			if state == events.StateConnected {
				// Notifications may have been missed while down
				s.TriggerAll()
			}
		})
	}

	// Prime every domain on startup
	s.TriggerAll()

	for _, d := range store.AllDomains {
		go s.worker(ctx, d)
	}

	<-ctx.Done()
}

func (s *Scheduler) handle(ctx context.Context, n events.Notification) {
	for _, d := range DomainsFor(n) {
		s.Trigger(d)
	}
}

func (s *Scheduler) worker(ctx context.Context, domain store.Domain) {
	for {
		timer := time.NewTimer(s.pollInterval())
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-s.triggers[domain]:
			timer.Stop()
		case <-timer.C:
		}

		if err := s.limiters[domain].Wait(ctx); err != nil {
			return
		}
		// Errors are recorded on the domain status and logged by the
		// store; the worker keeps going either way.
		_ = s.refresher.Refresh(ctx, domain)
	}
}

func (s *Scheduler) pollInterval() time.Duration {
	if s.source == nil || s.source.State() == events.StateDegraded {
		return s.cfg.DegradedPollInterval
	}
	return s.cfg.PollInterval
}
