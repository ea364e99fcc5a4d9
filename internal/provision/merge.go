package provision

import (
	"sort"

	"github.com/hardimpactdev/orbit-console/internal/domain"
)

// ProjectView is one row of the merged project list: the gateway's listing
// overlaid with locally tracked lifecycle state. Status and Error describe
// the in-flight lifecycle and are empty for a project at rest; Placeholder
// marks a project the tracker knows about but the listing does not show yet.
type ProjectView struct {
	domain.Project
	Status      string
	Error       string
	Placeholder bool
}

// Busy reports whether the row has a lifecycle underway.
func (v ProjectView) Busy() bool {
	return domain.InProgressCreationStatus(v.Status) ||
		v.Status == domain.DeletionStatusDeleting ||
		v.Status == domain.DeletionStatusRemovingFiles
}

// Failed reports whether the row carries a sticky lifecycle failure.
func (v ProjectView) Failed() bool {
	return v.Status == domain.ProvisionStatusFailed || v.Status == domain.DeletionStatusFailed
}

// MergeProjects combines the authoritative listing with tracked state. The
// tracker wins for any slug it holds, because its view moved forward on
// events the listing may predate. Listed rows keep the listing's order;
// tracked creations the listing does not mention yet are appended as
// placeholders sorted by slug. A completed deletion never produces a row.
func (t *Tracker) MergeProjects(list domain.ProjectList) []ProjectView {
	t.mu.RLock()
	defer t.mu.RUnlock()

	listed := make(map[string]bool, len(list.Projects))
	views := make([]ProjectView, 0, len(list.Projects))
	for _, row := range list.Projects {
		listed[row.Slug] = true
		view := ProjectView{Project: row}
		if entry, ok := t.projects[row.Slug]; ok {
			view.Status = entry.Status
			view.Error = entry.Error
		} else if entry, ok := t.deletions[row.Slug]; ok {
			view.Status = entry.Status
			view.Error = entry.Error
		} else if domain.InProgressCreationStatus(row.Status) {
			// The gateway listed it mid-provisioning before we saw any
			// events for it.
			view.Status = row.Status
		}
		views = append(views, view)
	}

	placeholders := make([]ProjectView, 0)
	for slug, entry := range t.projects {
		if listed[slug] {
			continue
		}
		placeholders = append(placeholders, ProjectView{
			Project:     domain.Project{Slug: slug},
			Status:      entry.Status,
			Error:       entry.Error,
			Placeholder: true,
		})
	}
	sort.Slice(placeholders, func(i, j int) bool { return placeholders[i].Slug < placeholders[j].Slug })
	return append(views, placeholders...)
}
