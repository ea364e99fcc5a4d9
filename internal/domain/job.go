package domain

import "time"

// PendingJobTTL bounds how long a dispatched job may stay unresolved before
// the recovery sweep discards it as orphaned.
const PendingJobTTL = 5 * time.Minute

// PendingJob tracks an in-flight service action acknowledged by the gateway.
// A job with a non-empty Error is resolved-failed and stays visible until
// dismissed.
type PendingJob struct {
	JobID     string    `json:"job_id"`
	Service   string    `json:"service"`
	Action    string    `json:"action"`
	StartedAt time.Time `json:"started_at"`
	Error     string    `json:"error,omitempty"`
}

// Stale reports whether the job exceeded its recovery TTL relative to now.
func (j PendingJob) Stale(now time.Time) bool {
	if j.StartedAt.IsZero() {
		return false
	}
	return now.UTC().Sub(j.StartedAt.UTC()) > PendingJobTTL
}

// Resolved reports whether the job already carries a terminal failure.
func (j PendingJob) Resolved() bool {
	return j.Error != ""
}
