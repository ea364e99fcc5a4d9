// Package provision tracks project creation and deletion lifecycles on the
// client side. The gateway is the source of truth for which projects exist;
// the tracker layers the in-flight state the listing cannot show yet, fed by
// realtime events and by direct acknowledgements from dispatched operations.
package provision

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/hardimpactdev/orbit-console/internal/domain"
)

// Tracker records projects mid-creation and mid-deletion. Lifecycle events
// arrive over a lossy channel and may be duplicated or delivered late, so
// every mutation goes through the transition guards in the domain package.
type Tracker struct {
	mu        sync.RWMutex
	projects  map[string]domain.ProvisioningProject
	deletions map[string]domain.DeletingProject

	readyCount   int
	deletedCount int

	logger *slog.Logger
}

// New returns an empty tracker.
func New(logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		projects:  make(map[string]domain.ProvisioningProject),
		deletions: make(map[string]domain.DeletingProject),
		logger:    logger.With("component", "provision"),
	}
}

// TrackProject registers a queued creation for slug. Calling it again while a
// lifecycle is already tracked is a no-op, so a retried submit cannot reset
// progress reported by events that arrived in between.
func (t *Tracker) TrackProject(slug string) {
	if slug == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.projects[slug]; ok {
		return
	}
	t.projects[slug] = domain.ProvisioningProject{
		Slug:   slug,
		Status: domain.ProvisionStatusQueued,
	}
	t.logger.Info("project creation tracked", "slug", slug)
}

// ApplyProjectEvent advances the creation lifecycle for the event's slug and
// reports whether any state changed. Unknown statuses and transitions that
// would move the project backwards are ignored. A known status for a slug the
// tracker has never seen starts a fresh entry, so progress survives missed
// earlier events.
func (t *Tracker) ApplyProjectEvent(evt domain.ProjectLifecycleEvent) bool {
	if evt.Slug == "" {
		return false
	}
	if !domain.KnownCreationStatus(evt.Status) {
		t.logger.Debug("unknown project status ignored", "slug", evt.Slug, "status", evt.Status)
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	entry := t.projects[evt.Slug]
	if !domain.CreationAdvances(entry.Status, evt.Status) {
		t.logger.Debug("late project event ignored", "slug", evt.Slug, "status", evt.Status, "current", entry.Status)
		return false
	}

	entry.Slug = evt.Slug
	entry.Status = evt.Status
	if evt.Status == domain.ProvisionStatusFailed {
		entry.Error = evt.Error
		if entry.Error == "" {
			entry.Error = "project creation failed"
		}
	}
	t.projects[evt.Slug] = entry

	switch evt.Status {
	case domain.ProvisionStatusReady:
		t.readyCount++
		t.logger.Info("project ready", "slug", evt.Slug)
	case domain.ProvisionStatusFailed:
		t.logger.Info("project creation failed", "slug", evt.Slug, "error", entry.Error)
	default:
		t.logger.Debug("project creation advanced", "slug", evt.Slug, "status", evt.Status)
	}
	return true
}

// TrackDeletion registers a deletion attempt for slug. An entry that already
// failed is reset for the retry; an in-flight or completed entry is left
// alone.
func (t *Tracker) TrackDeletion(slug string) {
	if slug == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if entry, ok := t.deletions[slug]; ok && entry.Status != domain.DeletionStatusFailed {
		return
	}
	t.deletions[slug] = domain.DeletingProject{
		Slug:   slug,
		Status: domain.DeletionStatusDeleting,
	}
	t.logger.Info("project deletion tracked", "slug", slug)
}

// ApplyDeletionEvent advances the deletion lifecycle for the event's slug and
// reports whether any state changed. An in-progress or failed status for an
// untracked slug starts an entry; a bare terminal "deleted" for a slug never
// seen deleting is dropped, since the next listing confirms absence anyway.
func (t *Tracker) ApplyDeletionEvent(evt domain.ProjectLifecycleEvent) bool {
	if evt.Slug == "" {
		return false
	}
	if !domain.KnownDeletionStatus(evt.Status) {
		t.logger.Debug("unknown deletion status ignored", "slug", evt.Slug, "status", evt.Status)
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.deletions[evt.Slug]
	if !ok {
		if evt.Status == domain.DeletionStatusDeleted {
			t.logger.Debug("deletion event for untracked project ignored", "slug", evt.Slug)
			return false
		}
		t.deletions[evt.Slug] = domain.DeletingProject{
			Slug:   evt.Slug,
			Status: evt.Status,
			Error:  deletionError(evt),
		}
		t.logger.Info("project deletion observed", "slug", evt.Slug, "status", evt.Status)
		return true
	}

	if !domain.DeletionAdvances(entry.Status, evt.Status) {
		t.logger.Debug("late deletion event ignored", "slug", evt.Slug, "status", evt.Status, "current", entry.Status)
		return false
	}
	entry.Status = evt.Status
	entry.Error = deletionError(evt)
	t.deletions[evt.Slug] = entry

	if evt.Status == domain.DeletionStatusDeleted {
		t.deletedCount++
		t.logger.Info("project deleted", "slug", evt.Slug)
	}
	return true
}

// MarkDeletionComplete records that the gateway finished a deletion
// synchronously. Missing entries are created so the completion still counts.
func (t *Tracker) MarkDeletionComplete(slug string) {
	if slug == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.deletions[slug]
	if !ok {
		entry = domain.DeletingProject{Slug: slug, Status: domain.DeletionStatusDeleting}
	}
	if !domain.DeletionAdvances(entry.Status, domain.DeletionStatusDeleted) {
		return
	}
	entry.Status = domain.DeletionStatusDeleted
	entry.Error = ""
	t.deletions[slug] = entry
	t.deletedCount++
	t.logger.Info("project deleted", "slug", slug)
}

// MarkDeletionFailed records a failed deletion attempt. A deletion already
// observed as completed stays completed.
func (t *Tracker) MarkDeletionFailed(slug, msg string) {
	if slug == "" {
		return
	}
	if msg == "" {
		msg = "project deletion failed"
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.deletions[slug]
	if !ok {
		entry = domain.DeletingProject{Slug: slug, Status: domain.DeletionStatusDeleting}
	}
	if entry.Status == domain.DeletionStatusDeleted {
		return
	}
	entry.Status = domain.DeletionStatusFailed
	entry.Error = msg
	t.deletions[slug] = entry
	t.logger.Info("project deletion failed", "slug", slug, "error", msg)
}

// ClearProject drops the creation entry for slug, dismissing a sticky failure
// or retiring a finished lifecycle once the listing shows the project.
func (t *Tracker) ClearProject(slug string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.projects, slug)
}

// ClearDeletion drops the deletion entry for slug.
func (t *Tracker) ClearDeletion(slug string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.deletions, slug)
}

// Project returns the tracked creation entry for slug.
func (t *Tracker) Project(slug string) (domain.ProvisioningProject, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	entry, ok := t.projects[slug]
	return entry, ok
}

// Deletion returns the tracked deletion entry for slug.
func (t *Tracker) Deletion(slug string) (domain.DeletingProject, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	entry, ok := t.deletions[slug]
	return entry, ok
}

// Creating returns all tracked creation entries sorted by slug.
func (t *Tracker) Creating() []domain.ProvisioningProject {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]domain.ProvisioningProject, 0, len(t.projects))
	for _, entry := range t.projects {
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out
}

// Deleting returns all tracked deletion entries sorted by slug.
func (t *Tracker) Deleting() []domain.DeletingProject {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]domain.DeletingProject, 0, len(t.deletions))
	for _, entry := range t.deletions {
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out
}

// ReadyCount returns how many tracked creations reached ready this session.
func (t *Tracker) ReadyCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.readyCount
}

// DeletedCount returns how many tracked deletions completed this session.
func (t *Tracker) DeletedCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.deletedCount
}

func deletionError(evt domain.ProjectLifecycleEvent) string {
	if evt.Status != domain.DeletionStatusFailed {
		return ""
	}
	if evt.Error != "" {
		return evt.Error
	}
	return "project deletion failed"
}
