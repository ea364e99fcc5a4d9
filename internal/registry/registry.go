package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/hardimpactdev/orbit-console/internal/domain"
	"github.com/hardimpactdev/orbit-console/internal/gateway"
)

// Gateway is the slice of the backend client the registry depends on.
type Gateway interface {
	Services(ctx context.Context) ([]domain.Service, error)
	ServiceAction(ctx context.Context, service, action, serviceType string) (gateway.DispatchResult, error)
	GlobalAction(ctx context.Context, action string) (gateway.DispatchResult, error)
	Job(ctx context.Context, jobID string) (gateway.JobStatus, error)
}

// Registry caches service state per environment and tracks in-flight jobs.
// All reads are served from the cache of the active environment; switching
// environments never discards another environment's snapshot.
type Registry struct {
	mu     sync.RWMutex
	envs   map[string]*domain.EnvironmentCache
	active string

	logger *slog.Logger
	now    func() time.Time
}

// New constructs a registry.
func New(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "registry")
	return &Registry{
		envs:   make(map[string]*domain.EnvironmentCache),
		logger: logger,
		now:    time.Now,
	}
}

// SetActiveEnvironment selects the environment subsequent operations target,
// lazily creating an empty cache on first use.
func (r *Registry) SetActiveEnvironment(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = id
	if id != "" {
		r.ensureCacheLocked(id)
	}
}

// ActiveEnvironment returns the currently selected environment id.
func (r *Registry) ActiveEnvironment() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

func (r *Registry) ensureCacheLocked(id string) *domain.EnvironmentCache {
	cache, ok := r.envs[id]
	if !ok {
		cache = domain.NewEnvironmentCache()
		r.envs[id] = cache
	}
	return cache
}

// FetchServices replaces the active environment's service snapshot with a
// fresh fetch. On failure the cache keeps its last known good state.
func (r *Registry) FetchServices(ctx context.Context, gw Gateway) error {
	envID := r.ActiveEnvironment()
	if envID == "" {
		return fmt.Errorf("registry: no active environment")
	}
	services, err := gw.Services(ctx)
	if err != nil {
		r.logger.Warn("service fetch failed", "environment", envID, "error", err)
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	cache := r.ensureCacheLocked(envID)
	fresh := make(map[string]domain.Service, len(services))
	for _, svc := range services {
		fresh[svc.Name] = svc
	}
	cache.Services = fresh
	now := r.now().UTC()
	cache.LastUpdated = &now
	r.logger.Debug("service snapshot replaced", "environment", envID, "services", len(fresh))
	return nil
}

// Dispatch issues a single-service action and registers a pending job when
// the gateway acknowledges with a job id. Failures come back as values on the
// result, never as panics or lost state.
func (r *Registry) Dispatch(ctx context.Context, gw Gateway, service, action, serviceType string) gateway.DispatchResult {
	if !domain.ValidServiceAction(action) {
		return gateway.DispatchResult{Error: fmt.Sprintf("unknown service action %q", action)}
	}
	result, err := gw.ServiceAction(ctx, service, action, serviceType)
	if err != nil {
		r.logger.Warn("service action failed", "service", service, "action", action, "error", err)
		return gateway.DispatchResult{Error: err.Error()}
	}
	if result.JobID != "" {
		r.mu.Lock()
		if r.active != "" {
			cache := r.ensureCacheLocked(r.active)
			cache.PendingJobs[result.JobID] = domain.PendingJob{
				JobID:     result.JobID,
				Service:   service,
				Action:    action,
				StartedAt: r.now().UTC(),
			}
		}
		r.mu.Unlock()
		r.logger.Info("service action dispatched", "service", service, "action", action, "job_id", result.JobID)
	}
	return result
}

// DispatchGlobal issues a bulk action across all services. No job is
// registered; callers refresh the snapshot to observe the outcome.
func (r *Registry) DispatchGlobal(ctx context.Context, gw Gateway, action string) gateway.DispatchResult {
	if !domain.ValidGlobalAction(action) {
		return gateway.DispatchResult{Error: fmt.Sprintf("unknown global action %q", action)}
	}
	result, err := gw.GlobalAction(ctx, action)
	if err != nil {
		r.logger.Warn("global action failed", "action", action, "error", err)
		return gateway.DispatchResult{Error: err.Error()}
	}
	r.logger.Info("global action dispatched", "action", action)
	return result
}

// ApplyServiceEvent folds a realtime status event into the active cache. The
// handler is idempotent: replaying an event leaves the same observable state,
// and events for unknown jobs or services are tolerated.
func (r *Registry) ApplyServiceEvent(evt domain.ServiceStatusEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == "" {
		r.logger.Debug("service event before environment selection", "service", evt.Service)
		return
	}
	cache := r.ensureCacheLocked(r.active)

	if evt.JobID != "" {
		if job, ok := cache.PendingJobs[evt.JobID]; ok {
			if evt.Error != "" {
				job.Error = evt.Error
				cache.PendingJobs[evt.JobID] = job
			} else {
				delete(cache.PendingJobs, evt.JobID)
			}
		}
	}
	if evt.Service != "" && evt.Status != "" {
		if svc, ok := cache.Services[evt.Service]; ok {
			svc.Status = evt.Status
			cache.Services[evt.Service] = svc
		}
	}
	now := r.now().UTC()
	cache.LastUpdated = &now
}

// ClearServiceError dismisses resolved-failed jobs for the service.
func (r *Registry) ClearServiceError(service string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cache := r.envs[r.active]
	if cache == nil {
		return
	}
	for id, job := range cache.PendingJobs {
		if job.Service == service && job.Resolved() {
			delete(cache.PendingJobs, id)
		}
	}
}

// ClearJobError dismisses a single resolved-failed job.
func (r *Registry) ClearJobError(jobID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cache := r.envs[r.active]
	if cache == nil {
		return
	}
	if job, ok := cache.PendingJobs[jobID]; ok && job.Resolved() {
		delete(cache.PendingJobs, jobID)
	}
}

// ServicesRunning counts services currently in the running state.
func (r *Registry) ServicesRunning() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cache := r.envs[r.active]
	if cache == nil {
		return 0
	}
	count := 0
	for _, svc := range cache.Services {
		if svc.Running() {
			count++
		}
	}
	return count
}

// ServicesTotal counts known services in the active environment.
func (r *Registry) ServicesTotal() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cache := r.envs[r.active]
	if cache == nil {
		return 0
	}
	return len(cache.Services)
}

// IsServicePending reports whether the service has an unresolved job in
// flight. Resolved-failed jobs no longer count as pending.
func (r *Registry) IsServicePending(service string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cache := r.envs[r.active]
	if cache == nil {
		return false
	}
	for _, job := range cache.PendingJobs {
		if job.Service == service && !job.Resolved() {
			return true
		}
	}
	return false
}

// ServiceError returns the most recent sticky job failure for the service,
// or the empty string when none is recorded.
func (r *Registry) ServiceError(service string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cache := r.envs[r.active]
	if cache == nil {
		return ""
	}
	var latest time.Time
	msg := ""
	for _, job := range cache.PendingJobs {
		if job.Service != service || !job.Resolved() {
			continue
		}
		if msg == "" || job.StartedAt.After(latest) {
			latest = job.StartedAt
			msg = job.Error
		}
	}
	return msg
}

// IsStale reports whether the active snapshot is older than the cache TTL.
func (r *Registry) IsStale() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.envs[r.active].Stale(r.now())
}

// LastUpdated returns the active snapshot's fetch time, or nil before the
// first successful fetch.
func (r *Registry) LastUpdated() *time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cache := r.envs[r.active]
	if cache == nil || cache.LastUpdated == nil {
		return nil
	}
	t := *cache.LastUpdated
	return &t
}

// Services returns the active environment's services sorted by name.
func (r *Registry) Services() []domain.Service {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cache := r.envs[r.active]
	if cache == nil {
		return nil
	}
	services := make([]domain.Service, 0, len(cache.Services))
	for _, svc := range cache.Services {
		services = append(services, svc)
	}
	sort.Slice(services, func(i, j int) bool { return services[i].Name < services[j].Name })
	return services
}

// Service looks up a single service in the active snapshot.
func (r *Registry) Service(name string) (domain.Service, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cache := r.envs[r.active]
	if cache == nil {
		return domain.Service{}, false
	}
	svc, ok := cache.Services[name]
	return svc, ok
}

// PendingJobs returns the active environment's jobs ordered by start time.
func (r *Registry) PendingJobs() []domain.PendingJob {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cache := r.envs[r.active]
	if cache == nil {
		return nil
	}
	jobs := make([]domain.PendingJob, 0, len(cache.PendingJobs))
	for _, job := range cache.PendingJobs {
		jobs = append(jobs, job)
	}
	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].StartedAt.Equal(jobs[j].StartedAt) {
			return jobs[i].JobID < jobs[j].JobID
		}
		return jobs[i].StartedAt.Before(jobs[j].StartedAt)
	})
	return jobs
}

// ExportCaches deep-copies every environment cache for persistence. Pending
// jobs are session-scoped and excluded from the copies.
func (r *Registry) ExportCaches() map[string]*domain.EnvironmentCache {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]*domain.EnvironmentCache, len(r.envs))
	for id, cache := range r.envs {
		copied := domain.NewEnvironmentCache()
		for name, svc := range cache.Services {
			copied.Services[name] = svc
		}
		if cache.LastUpdated != nil {
			t := *cache.LastUpdated
			copied.LastUpdated = &t
		}
		out[id] = copied
	}
	return out
}

// RestoreCaches seeds environment caches from persisted state. Jobs always
// start empty; the recovery sweep and fresh dispatches rebuild them.
func (r *Registry) RestoreCaches(caches map[string]*domain.EnvironmentCache) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, cache := range caches {
		if cache == nil {
			continue
		}
		restored := domain.NewEnvironmentCache()
		for name, svc := range cache.Services {
			restored.Services[name] = svc
		}
		if cache.LastUpdated != nil {
			t := *cache.LastUpdated
			restored.LastUpdated = &t
		}
		r.envs[id] = restored
	}
}
