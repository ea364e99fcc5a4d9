package console

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/hardimpactdev/orbit-console/internal/domain"
	"github.com/hardimpactdev/orbit-console/internal/gateway"
	"github.com/hardimpactdev/orbit-console/internal/provision"
	"github.com/hardimpactdev/orbit-console/internal/realtime"
	"github.com/hardimpactdev/orbit-console/internal/registry"
)

type fakeStream struct {
	events chan domain.Envelope
	states chan string
}

func newFakeStream() *fakeStream {
	return &fakeStream{
		events: make(chan domain.Envelope, 16),
		states: make(chan string, 4),
	}
}

func (f *fakeStream) Events() <-chan domain.Envelope { return f.events }
func (f *fakeStream) States() <-chan string          { return f.states }

// fakeGateway is shared between the session goroutine, debounce timers, and
// the test, so every access locks.
type fakeGateway struct {
	mu sync.Mutex

	services   []domain.Service
	fetchCalls int

	projects      domain.ProjectList
	projectsCalls int

	dispatchResults []gateway.DispatchResult
	dispatchCalls   int

	jobStatuses map[string]gateway.JobStatus
	jobCalls    []string
}

func (f *fakeGateway) Services(context.Context) ([]domain.Service, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchCalls++
	out := make([]domain.Service, len(f.services))
	copy(out, f.services)
	return out, nil
}

func (f *fakeGateway) ServiceAction(context.Context, string, string, string) (gateway.DispatchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := gateway.DispatchResult{Success: true}
	if f.dispatchCalls < len(f.dispatchResults) {
		result = f.dispatchResults[f.dispatchCalls]
	}
	f.dispatchCalls++
	return result, nil
}

func (f *fakeGateway) GlobalAction(context.Context, string) (gateway.DispatchResult, error) {
	return gateway.DispatchResult{Success: true}, nil
}

func (f *fakeGateway) Job(_ context.Context, jobID string) (gateway.JobStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobCalls = append(f.jobCalls, jobID)
	if status, ok := f.jobStatuses[jobID]; ok {
		return status, nil
	}
	return gateway.JobStatus{Status: "running"}, nil
}

func (f *fakeGateway) Projects(context.Context) (domain.ProjectList, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.projectsCalls++
	return f.projects, nil
}

func (f *fakeGateway) projectsCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.projectsCalls
}

func (f *fakeGateway) fetchCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetchCalls
}

func newTestSession(t *testing.T, gw *fakeGateway) (*Session, *fakeStream, *registry.Registry, *provision.Tracker) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
	reg := registry.New(logger)
	reg.SetActiveEnvironment("env-1")
	tracker := provision.New(logger)
	stream := newFakeStream()

	s := NewSession(gw, reg, tracker, stream, logger,
		WithRefreshDebounce(50*time.Millisecond),
		WithPollInterval(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go s.Run(ctx)
	return s, stream, reg, tracker
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func envelope(t *testing.T, event string, data any) domain.Envelope {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal event data: %v", err)
	}
	return domain.Envelope{Event: event, Data: raw, Timestamp: domain.EventTime{Time: time.Now()}}
}

func TestSessionRoutesServiceEvents(t *testing.T) {
	gw := &fakeGateway{services: []domain.Service{{Name: "redis", Status: domain.ServiceStatusStopped, Type: domain.ServiceTypeDocker}}}
	_, stream, reg, _ := newTestSession(t, gw)

	waitFor(t, "initial snapshot", func() bool { return reg.ServicesTotal() == 1 })

	stream.events <- envelope(t, domain.EventServiceStatusChanged, domain.ServiceStatusEvent{
		Service: "redis",
		Status:  domain.ServiceStatusRunning,
		Action:  domain.ActionStart,
	})
	waitFor(t, "status update", func() bool {
		svc, ok := reg.Service("redis")
		return ok && svc.Status == domain.ServiceStatusRunning
	})
}

func TestSessionAppliesGatewayWireFrames(t *testing.T) {
	gw := &fakeGateway{services: []domain.Service{{Name: "redis", Status: domain.ServiceStatusStopped, Type: domain.ServiceTypeDocker}}}
	_, stream, reg, _ := newTestSession(t, gw)
	waitFor(t, "initial snapshot", func() bool { return reg.ServicesTotal() == 1 })

	// The frame exactly as the gateway emits it: epoch-millisecond
	// timestamps and a null job_id on unsolicited updates.
	raw := `{"event":"service.status.changed","data":{"job_id":null,"service":"redis","status":"running","action":"start","timestamp":1712345678123},"timestamp":1712345678123}`
	var env domain.Envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		t.Fatalf("unmarshal frame: %v", err)
	}
	stream.events <- env
	waitFor(t, "wire frame applied", func() bool {
		svc, ok := reg.Service("redis")
		return ok && svc.Status == domain.ServiceStatusRunning
	})
}

func TestSessionSkipsUndecodableEventData(t *testing.T) {
	gw := &fakeGateway{services: []domain.Service{{Name: "redis", Status: domain.ServiceStatusStopped}}}
	_, stream, reg, _ := newTestSession(t, gw)
	waitFor(t, "initial snapshot", func() bool { return reg.ServicesTotal() == 1 })

	stream.events <- domain.Envelope{Event: domain.EventServiceStatusChanged, Data: json.RawMessage(`"oops"`)}
	stream.events <- envelope(t, domain.EventServiceStatusChanged, domain.ServiceStatusEvent{
		Service: "redis",
		Status:  domain.ServiceStatusRunning,
	})
	waitFor(t, "later event applied", func() bool {
		svc, _ := reg.Service("redis")
		return svc.Status == domain.ServiceStatusRunning
	})
}

func TestSessionRoutesLifecycleEvents(t *testing.T) {
	gw := &fakeGateway{}
	_, stream, _, tracker := newTestSession(t, gw)

	stream.events <- envelope(t, domain.EventProjectStatusChanged, domain.ProjectLifecycleEvent{
		Slug:   "shop",
		Status: domain.ProvisionStatusBuilding,
	})
	waitFor(t, "creation tracked", func() bool {
		entry, ok := tracker.Project("shop")
		return ok && entry.Status == domain.ProvisionStatusBuilding
	})

	tracker.TrackDeletion("attic")
	stream.events <- envelope(t, domain.EventProjectDeletionChanged, domain.ProjectLifecycleEvent{
		Slug:   "attic",
		Status: domain.DeletionStatusRemovingFiles,
	})
	waitFor(t, "deletion advanced", func() bool {
		entry, _ := tracker.Deletion("attic")
		return entry.Status == domain.DeletionStatusRemovingFiles
	})
}

func TestSessionDebouncesProjectRefresh(t *testing.T) {
	gw := &fakeGateway{}
	_, stream, _, _ := newTestSession(t, gw)
	waitFor(t, "startup refresh", func() bool { return gw.projectsCallCount() == 1 })

	// Two completions in one burst must cause one extra listing fetch.
	stream.events <- envelope(t, domain.EventProjectStatusChanged, domain.ProjectLifecycleEvent{Slug: "shop", Status: domain.ProvisionStatusReady})
	stream.events <- envelope(t, domain.EventProjectStatusChanged, domain.ProjectLifecycleEvent{Slug: "blog", Status: domain.ProvisionStatusReady})

	waitFor(t, "debounced refresh", func() bool { return gw.projectsCallCount() == 2 })
	time.Sleep(200 * time.Millisecond)
	if got := gw.projectsCallCount(); got != 2 {
		t.Fatalf("expected one coalesced refresh, got %d fetches", got)
	}
}

func TestSessionIntermediateStagesDoNotRefresh(t *testing.T) {
	gw := &fakeGateway{}
	_, stream, _, tracker := newTestSession(t, gw)
	waitFor(t, "startup refresh", func() bool { return gw.projectsCallCount() == 1 })

	stream.events <- envelope(t, domain.EventProjectStatusChanged, domain.ProjectLifecycleEvent{Slug: "shop", Status: domain.ProvisionStatusCloning})
	waitFor(t, "stage tracked", func() bool {
		entry, _ := tracker.Project("shop")
		return entry.Status == domain.ProvisionStatusCloning
	})
	time.Sleep(200 * time.Millisecond)
	if got := gw.projectsCallCount(); got != 1 {
		t.Fatalf("stage events must not fetch the listing, got %d fetches", got)
	}
}

func TestSessionResyncsOnReconnect(t *testing.T) {
	gw := &fakeGateway{
		dispatchResults: []gateway.DispatchResult{{Success: true, JobID: "j1"}},
		jobStatuses:     map[string]gateway.JobStatus{"j1": {Status: gateway.JobCompleted}},
	}
	_, stream, reg, _ := newTestSession(t, gw)
	waitFor(t, "startup reconcile", func() bool { return gw.fetchCallCount() >= 1 })

	reg.Dispatch(context.Background(), gw, "redis", domain.ActionStart, domain.ServiceTypeDocker)
	if len(reg.PendingJobs()) != 1 {
		t.Fatal("expected one pending job before reconnect")
	}

	stream.states <- realtime.StateConnected
	waitFor(t, "job reconciled", func() bool { return len(reg.PendingJobs()) == 0 })
}

func TestSessionReportsStreamState(t *testing.T) {
	gw := &fakeGateway{}
	s, stream, _, _ := newTestSession(t, gw)

	if s.RealtimeState() != realtime.StateDisconnected {
		t.Fatalf("expected disconnected before any state, got %q", s.RealtimeState())
	}
	stream.states <- realtime.StateConnecting
	waitFor(t, "connecting state", func() bool { return s.RealtimeState() == realtime.StateConnecting })
	stream.states <- realtime.StateConnected
	waitFor(t, "connected state", func() bool { return s.RealtimeState() == realtime.StateConnected })
}

func TestSessionPollsWhileDisconnected(t *testing.T) {
	gw := &fakeGateway{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := registry.New(logger)
	reg.SetActiveEnvironment("env-1")
	s := NewSession(gw, reg, provision.New(logger), newFakeStream(), logger,
		WithPollInterval(20*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go s.Run(ctx)

	waitFor(t, "polling fetches", func() bool { return gw.fetchCallCount() >= 3 })
}

func TestSessionRetiresCaughtUpLifecycles(t *testing.T) {
	gw := &fakeGateway{projects: domain.ProjectList{
		TLD:      "test",
		Projects: []domain.Project{{ID: "p1", Name: "Shop", Slug: "shop", Status: "ready"}},
	}}
	s, _, _, tracker := newTestSession(t, gw)

	tracker.TrackProject("shop")
	tracker.ApplyProjectEvent(domain.ProjectLifecycleEvent{Slug: "shop", Status: domain.ProvisionStatusReady})
	tracker.TrackDeletion("attic")
	tracker.MarkDeletionComplete("attic")

	if err := s.RefreshProjects(context.Background()); err != nil {
		t.Fatalf("RefreshProjects returned error: %v", err)
	}
	if _, ok := tracker.Project("shop"); ok {
		t.Fatal("ready project present in the listing must be retired")
	}
	if _, ok := tracker.Deletion("attic"); ok {
		t.Fatal("completed deletion absent from the listing must be retired")
	}

	views := s.Projects()
	if len(views) != 1 || views[0].Slug != "shop" || views[0].Status != "" {
		t.Fatalf("unexpected merged view %+v", views)
	}
	if s.TLD() != "test" {
		t.Fatalf("expected tld carried over, got %q", s.TLD())
	}
}
