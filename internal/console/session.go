// Package console coordinates the live view of one environment: it routes
// gateway events into the service registry and the provisioning tracker,
// keeps a merged project list current, and degrades to polling when the
// event stream is down. The stream is advisory throughout; anything missed
// while disconnected is recovered by the resync that runs on reconnect.
package console

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/hardimpactdev/orbit-console/internal/domain"
	"github.com/hardimpactdev/orbit-console/internal/provision"
	"github.com/hardimpactdev/orbit-console/internal/realtime"
	"github.com/hardimpactdev/orbit-console/internal/registry"
)

// Gateway is the slice of the backend client the session depends on.
type Gateway interface {
	registry.Gateway
	Projects(ctx context.Context) (domain.ProjectList, error)
}

// Stream delivers gateway events and connection-state changes. Both channels
// close when the stream shuts down.
type Stream interface {
	Events() <-chan domain.Envelope
	States() <-chan string
}

// Session consumes one event stream and keeps registry and tracker current.
type Session struct {
	gateway  Gateway
	registry *registry.Registry
	tracker  *provision.Tracker
	stream   Stream
	logger   *slog.Logger

	// debounce delays project refreshes after lifecycle completions so a
	// burst of events causes one listing fetch, not one per event.
	debounce time.Duration
	// pollEvery paces service fetches while the stream is down.
	pollEvery time.Duration

	mu           sync.Mutex
	projects     []provision.ProjectView
	tld          string
	defaultPHP   string
	streamState  string
	lastReady    int
	lastDeleted  int
	refreshArmed bool

	changed chan struct{}
}

// Option customizes a session.
type Option func(*Session)

// WithPollInterval sets how often services are fetched while the stream is
// down.
func WithPollInterval(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.pollEvery = d
		}
	}
}

// WithRefreshDebounce sets the delay between a lifecycle completion and the
// project listing fetch it triggers.
func WithRefreshDebounce(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.debounce = d
		}
	}
}

// NewSession wires a session. Run starts it.
func NewSession(gw Gateway, reg *registry.Registry, tracker *provision.Tracker, stream Stream, logger *slog.Logger, opts ...Option) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{
		gateway:     gw,
		registry:    reg,
		tracker:     tracker,
		stream:      stream,
		logger:      logger.With("component", "console"),
		debounce:    750 * time.Millisecond,
		pollEvery:   10 * time.Second,
		streamState: realtime.StateDisconnected,
		changed:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Changed signals that registry, tracker, or project state moved. Signals
// coalesce; consumers re-read everything on each receive.
func (s *Session) Changed() <-chan struct{} {
	return s.changed
}

// RealtimeState reports the stream connection state last observed.
func (s *Session) RealtimeState() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamState
}

// Projects returns the last merged project listing.
func (s *Session) Projects() []provision.ProjectView {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]provision.ProjectView, len(s.projects))
	copy(out, s.projects)
	return out
}

// TLD returns the environment's top-level domain from the last listing.
func (s *Session) TLD() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tld
}

// DefaultPHPVersion returns the environment default from the last listing.
func (s *Session) DefaultPHPVersion() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.defaultPHP
}

// Run processes the stream until ctx is cancelled or the stream closes. It
// reconciles and fetches an initial snapshot first so consumers have data
// even if the stream never comes up.
func (s *Session) Run(ctx context.Context) error {
	s.resync(ctx)

	events := s.stream.Events()
	states := s.stream.States()
	poll := time.NewTicker(s.pollEvery)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case env, ok := <-events:
			if !ok {
				events = nil
				if states == nil {
					return nil
				}
				continue
			}
			s.handleEvent(ctx, env)
		case state, ok := <-states:
			if !ok {
				states = nil
				if events == nil {
					return nil
				}
				continue
			}
			s.handleState(ctx, state)
		case <-poll.C:
			// Polling substitutes for the stream while it is down; while
			// connected only a stale cache warrants a fetch.
			if s.RealtimeState() != realtime.StateConnected || s.registry.IsStale() {
				s.refresh(ctx)
			}
		}
	}
}

func (s *Session) handleEvent(ctx context.Context, env domain.Envelope) {
	switch env.Event {
	case domain.EventServiceStatusChanged:
		var evt domain.ServiceStatusEvent
		if err := json.Unmarshal(env.Data, &evt); err != nil {
			s.logger.Debug("undecodable service event skipped", "error", err)
			return
		}
		s.registry.ApplyServiceEvent(evt)
		s.notify()
	case domain.EventProjectStatusChanged:
		var evt domain.ProjectLifecycleEvent
		if err := json.Unmarshal(env.Data, &evt); err != nil {
			s.logger.Debug("undecodable project event skipped", "error", err)
			return
		}
		if s.tracker.ApplyProjectEvent(evt) {
			s.maybeScheduleRefresh(ctx)
			s.notify()
		}
	case domain.EventProjectDeletionChanged:
		var evt domain.ProjectLifecycleEvent
		if err := json.Unmarshal(env.Data, &evt); err != nil {
			s.logger.Debug("undecodable deletion event skipped", "error", err)
			return
		}
		if s.tracker.ApplyDeletionEvent(evt) {
			s.maybeScheduleRefresh(ctx)
			s.notify()
		}
	default:
		s.logger.Debug("unhandled event", "event", env.Event)
	}
}

func (s *Session) handleState(ctx context.Context, state string) {
	s.mu.Lock()
	previous := s.streamState
	s.streamState = state
	s.mu.Unlock()

	if state == realtime.StateConnected && previous != realtime.StateConnected {
		// Events may have been missed while disconnected; reconcile jobs
		// first so sticky failures surface before the fresh snapshot lands.
		s.resync(ctx)
	}
	s.notify()
}

// resync reconciles after a connectivity gap: pending jobs first, then the
// service snapshot and project listing.
func (s *Session) resync(ctx context.Context) {
	if err := s.registry.RecoverPendingJobs(ctx, s.gateway); err != nil {
		s.logger.Warn("job recovery aborted", "error", err)
	}
	s.refresh(ctx)
}

// refresh fetches the service snapshot and the project listing. Failures are
// logged and leave the previous state serving reads.
func (s *Session) refresh(ctx context.Context) {
	if err := s.registry.FetchServices(ctx, s.gateway); err != nil {
		s.logger.Warn("service fetch failed", "error", err)
	}
	if err := s.RefreshProjects(ctx); err != nil {
		s.logger.Warn("project refresh failed", "error", err)
	}
	s.notify()
}

// RefreshProjects fetches the listing, retires tracked lifecycles the
// listing has caught up with, and rebuilds the merged view.
func (s *Session) RefreshProjects(ctx context.Context) error {
	list, err := s.gateway.Projects(ctx)
	if err != nil {
		return err
	}

	listed := make(map[string]bool, len(list.Projects))
	for _, p := range list.Projects {
		listed[p.Slug] = true
	}
	for _, entry := range s.tracker.Creating() {
		if entry.Status == domain.ProvisionStatusReady && listed[entry.Slug] {
			s.tracker.ClearProject(entry.Slug)
		}
	}
	for _, entry := range s.tracker.Deleting() {
		if entry.Status == domain.DeletionStatusDeleted && !listed[entry.Slug] {
			s.tracker.ClearDeletion(entry.Slug)
		}
	}

	views := s.tracker.MergeProjects(list)
	s.mu.Lock()
	s.projects = views
	s.tld = list.TLD
	s.defaultPHP = list.DefaultPHPVersion
	s.mu.Unlock()
	s.notify()
	return nil
}

// maybeScheduleRefresh arms one delayed project refresh when a lifecycle
// reached a terminal state since the last check. The listing only gains or
// loses rows on completions, so intermediate stage events never fetch.
func (s *Session) maybeScheduleRefresh(ctx context.Context) {
	ready, deleted := s.tracker.ReadyCount(), s.tracker.DeletedCount()

	s.mu.Lock()
	if ready == s.lastReady && deleted == s.lastDeleted {
		s.mu.Unlock()
		return
	}
	s.lastReady, s.lastDeleted = ready, deleted
	if s.refreshArmed {
		s.mu.Unlock()
		return
	}
	s.refreshArmed = true
	s.mu.Unlock()

	time.AfterFunc(s.debounce, func() {
		s.mu.Lock()
		s.refreshArmed = false
		s.mu.Unlock()
		if ctx.Err() != nil {
			return
		}
		if err := s.RefreshProjects(ctx); err != nil {
			s.logger.Warn("project refresh failed", "error", err)
		}
	})
}

func (s *Session) notify() {
	select {
	case s.changed <- struct{}{}:
	default:
	}
}
