package domain

// Project creation statuses in lifecycle order. Forking and creating_repo are
// alternates for the same stage: one of them occurs depending on whether the
// project starts from a template fork or a fresh repository.
const (
	ProvisionStatusQueued             = "queued"
	ProvisionStatusProvisioning       = "provisioning"
	ProvisionStatusValidatingPackage  = "validating_package"
	ProvisionStatusCreatingProject    = "creating_project"
	ProvisionStatusForking            = "forking"
	ProvisionStatusCreatingRepo       = "creating_repo"
	ProvisionStatusCloning            = "cloning"
	ProvisionStatusSettingUp          = "setting_up"
	ProvisionStatusInstallingComposer = "installing_composer"
	ProvisionStatusInstallingNPM      = "installing_npm"
	ProvisionStatusBuilding           = "building"
	ProvisionStatusFinalizing         = "finalizing"
	ProvisionStatusReady              = "ready"
	ProvisionStatusFailed             = "failed"
)

// Deletion lifecycle statuses.
const (
	DeletionStatusDeleting      = "deleting"
	DeletionStatusRemovingFiles = "removing_files"
	DeletionStatusDeleted       = "deleted"
	DeletionStatusFailed        = "delete_failed"
)

// creationRank assigns each creation status its stage index. Events are
// delivered over a lossy channel, so a lower or equal rank means the event is
// late or duplicated and must not roll the project back.
var creationRank = map[string]int{
	ProvisionStatusQueued:             0,
	ProvisionStatusProvisioning:       1,
	ProvisionStatusValidatingPackage:  2,
	ProvisionStatusCreatingProject:    3,
	ProvisionStatusForking:            4,
	ProvisionStatusCreatingRepo:       4,
	ProvisionStatusCloning:            5,
	ProvisionStatusSettingUp:          6,
	ProvisionStatusInstallingComposer: 7,
	ProvisionStatusInstallingNPM:      8,
	ProvisionStatusBuilding:           9,
	ProvisionStatusFinalizing:         10,
	ProvisionStatusReady:              11,
}

// KnownCreationStatus reports whether status belongs to the creation
// lifecycle, including the absorbing failed state.
func KnownCreationStatus(status string) bool {
	if status == ProvisionStatusFailed {
		return true
	}
	_, ok := creationRank[status]
	return ok
}

// InProgressCreationStatus reports whether status is a creation stage that is
// still underway. Ready and failed are terminal and not in progress.
func InProgressCreationStatus(status string) bool {
	if status == ProvisionStatusReady || status == ProvisionStatusFailed {
		return false
	}
	_, ok := creationRank[status]
	return ok
}

// CreationAdvances reports whether moving from current to next is a legal
// forward transition. Failed is accepted from any state and absorbs; once
// failed, only an explicit clear resets the project.
func CreationAdvances(current, next string) bool {
	if current == ProvisionStatusFailed {
		return false
	}
	if next == ProvisionStatusFailed {
		return true
	}
	nextRank, ok := creationRank[next]
	if !ok {
		return false
	}
	currentRank, ok := creationRank[current]
	if !ok {
		return true
	}
	return nextRank > currentRank
}

// KnownDeletionStatus reports whether status belongs to the deletion
// lifecycle.
func KnownDeletionStatus(status string) bool {
	switch status {
	case DeletionStatusDeleting, DeletionStatusRemovingFiles, DeletionStatusDeleted, DeletionStatusFailed:
		return true
	}
	return false
}

// DeletionAdvances reports whether moving from current to next is a legal
// deletion transition. Deleted and delete_failed are reachable only from the
// two in-progress states, so a stray terminal event cannot resurrect or
// complete a deletion that never started.
func DeletionAdvances(current, next string) bool {
	switch next {
	case DeletionStatusRemovingFiles:
		return current == DeletionStatusDeleting
	case DeletionStatusDeleted, DeletionStatusFailed:
		return current == DeletionStatusDeleting || current == DeletionStatusRemovingFiles
	}
	return false
}

// ProvisioningProject is the locally tracked view of a project being created.
type ProvisioningProject struct {
	Slug      string `json:"slug"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	ProjectID string `json:"project_id,omitempty"`
}

// Terminal reports whether the creation lifecycle finished.
func (p ProvisioningProject) Terminal() bool {
	return p.Status == ProvisionStatusReady || p.Status == ProvisionStatusFailed
}

// DeletingProject is the locally tracked view of a project being removed.
type DeletingProject struct {
	Slug   string `json:"slug"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}
