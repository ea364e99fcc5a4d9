package registry

import (
	"context"

	"github.com/hardimpactdev/orbit-console/internal/domain"
	"github.com/hardimpactdev/orbit-console/internal/gateway"
)

// RecoverPendingJobs reconciles in-flight jobs after a gap in event delivery,
// typically on startup or reconnect. Jobs past their TTL are dropped without
// consulting the gateway; the rest are resolved against the jobs endpoint.
// A job the gateway cannot answer for is treated as resolved-unknown and
// dropped rather than left pending forever.
func (r *Registry) RecoverPendingJobs(ctx context.Context, gw Gateway) error {
	envID, jobs := r.pendingSnapshot()
	if envID == "" || len(jobs) == 0 {
		return nil
	}
	now := r.now()
	for _, job := range jobs {
		if job.Stale(now) {
			r.dropJob(envID, job.JobID)
			r.logger.Info("stale job dropped", "job_id", job.JobID, "service", job.Service)
			continue
		}
		if job.Resolved() {
			// Sticky failures stay visible until dismissed.
			continue
		}
		status, err := gw.Job(ctx, job.JobID)
		if err != nil {
			if ctx.Err() != nil {
				// Sweep aborted; remaining jobs keep their state.
				return ctx.Err()
			}
			r.dropJob(envID, job.JobID)
			r.logger.Warn("job lookup failed, dropping", "job_id", job.JobID, "error", err)
			continue
		}
		switch status.Status {
		case gateway.JobCompleted:
			r.dropJob(envID, job.JobID)
			r.logger.Debug("job completed while disconnected", "job_id", job.JobID, "service", job.Service)
		case gateway.JobFailed:
			msg := status.Error
			if msg == "" {
				msg = "job failed"
			}
			r.failJob(envID, job.JobID, msg)
			r.logger.Info("job failed while disconnected", "job_id", job.JobID, "service", job.Service, "error", msg)
		default:
			// Still in flight; the next sweep or event resolves it.
		}
	}
	return nil
}

func (r *Registry) pendingSnapshot() (string, []domain.PendingJob) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.active == "" {
		return "", nil
	}
	cache := r.envs[r.active]
	if cache == nil {
		return r.active, nil
	}
	jobs := make([]domain.PendingJob, 0, len(cache.PendingJobs))
	for _, job := range cache.PendingJobs {
		jobs = append(jobs, job)
	}
	return r.active, jobs
}

func (r *Registry) dropJob(envID, jobID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cache := r.envs[envID]; cache != nil {
		delete(cache.PendingJobs, jobID)
	}
}

func (r *Registry) failJob(envID, jobID, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cache := r.envs[envID]
	if cache == nil {
		return
	}
	if job, ok := cache.PendingJobs[jobID]; ok {
		job.Error = msg
		cache.PendingJobs[jobID] = job
	}
}
