package registry

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/hardimpactdev/orbit-console/internal/domain"
	"github.com/hardimpactdev/orbit-console/internal/gateway"
)

func dispatchAt(t *testing.T, r *Registry, gw *fakeGateway, service string, at time.Time) {
	t.Helper()
	r.now = func() time.Time { return at }
	result := r.Dispatch(context.Background(), gw, service, domain.ActionStart, domain.ServiceTypeDocker)
	if result.JobID == "" {
		t.Fatalf("dispatch for %s registered no job: %+v", service, result)
	}
}

func TestRecoverDropsStaleJobsWithoutLookup(t *testing.T) {
	start := time.Date(2025, time.June, 10, 9, 0, 0, 0, time.UTC)
	r := newTestRegistry(start)
	gw := &fakeGateway{dispatchResults: []gateway.DispatchResult{{Success: true, JobID: "old"}}}
	dispatchAt(t, r, gw, "redis", start)

	r.now = func() time.Time { return start.Add(5*time.Minute + time.Second) }
	if err := r.RecoverPendingJobs(context.Background(), gw); err != nil {
		t.Fatalf("RecoverPendingJobs returned error: %v", err)
	}

	if len(r.PendingJobs()) != 0 {
		t.Fatal("job older than the TTL must be dropped")
	}
	if len(gw.jobCalls) != 0 {
		t.Fatalf("stale jobs must not be looked up, got calls %v", gw.jobCalls)
	}
}

func TestRecoverResolvesJobsByStatus(t *testing.T) {
	start := time.Date(2025, time.June, 10, 9, 0, 0, 0, time.UTC)
	r := newTestRegistry(start)
	gw := &fakeGateway{
		dispatchResults: []gateway.DispatchResult{
			{Success: true, JobID: "done"},
			{Success: true, JobID: "broken"},
			{Success: true, JobID: "slow"},
		},
		jobStatuses: map[string]gateway.JobStatus{
			"done":   {Status: gateway.JobCompleted},
			"broken": {Status: gateway.JobFailed, Error: "disk full"},
			"slow":   {Status: "running"},
		},
	}
	dispatchAt(t, r, gw, "redis", start)
	dispatchAt(t, r, gw, "mysql", start.Add(time.Second))
	dispatchAt(t, r, gw, "caddy", start.Add(2*time.Second))

	r.now = func() time.Time { return start.Add(time.Minute) }
	if err := r.RecoverPendingJobs(context.Background(), gw); err != nil {
		t.Fatalf("RecoverPendingJobs returned error: %v", err)
	}

	jobs := r.PendingJobs()
	if len(jobs) != 2 {
		t.Fatalf("expected broken and slow to remain, got %d jobs", len(jobs))
	}
	if got := r.ServiceError("mysql"); got != "disk full" {
		t.Fatalf("failed job must turn sticky, got %q", got)
	}
	if !r.IsServicePending("caddy") {
		t.Fatal("in-flight job must stay pending")
	}
	if r.IsServicePending("redis") {
		t.Fatal("completed job must be gone")
	}
}

func TestRecoverDropsOrphanedJobs(t *testing.T) {
	start := time.Date(2025, time.June, 10, 9, 0, 0, 0, time.UTC)
	r := newTestRegistry(start)
	gw := &fakeGateway{
		dispatchResults: []gateway.DispatchResult{{Success: true, JobID: "ghost"}},
		jobErrs:         map[string]error{"ghost": fmt.Errorf("%w: ghost", gateway.ErrJobNotFound)},
	}
	dispatchAt(t, r, gw, "redis", start)

	r.now = func() time.Time { return start.Add(time.Minute) }
	if err := r.RecoverPendingJobs(context.Background(), gw); err != nil {
		t.Fatalf("RecoverPendingJobs returned error: %v", err)
	}
	if len(r.PendingJobs()) != 0 {
		t.Fatal("job unknown to the gateway must be dropped")
	}
}

func TestRecoverSkipsResolvedJobs(t *testing.T) {
	start := time.Date(2025, time.June, 10, 9, 0, 0, 0, time.UTC)
	r := newTestRegistry(start)
	gw := &fakeGateway{dispatchResults: []gateway.DispatchResult{{Success: true, JobID: "j1"}}}
	dispatchAt(t, r, gw, "caddy", start)
	r.ApplyServiceEvent(domain.ServiceStatusEvent{JobID: "j1", Service: "caddy", Status: domain.ServiceStatusError, Error: "timeout"})

	r.now = func() time.Time { return start.Add(time.Minute) }
	if err := r.RecoverPendingJobs(context.Background(), gw); err != nil {
		t.Fatalf("RecoverPendingJobs returned error: %v", err)
	}
	if len(gw.jobCalls) != 0 {
		t.Fatalf("sticky failures must not be re-queried, got %v", gw.jobCalls)
	}
	if got := r.ServiceError("caddy"); got != "timeout" {
		t.Fatalf("sticky error must survive the sweep, got %q", got)
	}
}

func TestRecoverAbortsOnCancelledContext(t *testing.T) {
	start := time.Date(2025, time.June, 10, 9, 0, 0, 0, time.UTC)
	r := newTestRegistry(start)
	gw := &fakeGateway{dispatchResults: []gateway.DispatchResult{{Success: true, JobID: "j1"}}}
	dispatchAt(t, r, gw, "redis", start)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r.now = func() time.Time { return start.Add(time.Minute) }
	if err := r.RecoverPendingJobs(ctx, gw); err == nil {
		t.Fatal("expected context error")
	}
	if len(r.PendingJobs()) != 1 {
		t.Fatal("aborted sweep must leave jobs untouched")
	}
}
