package domain

import "testing"

func TestCreationAdvancesForward(t *testing.T) {
	steps := []string{
		ProvisionStatusQueued,
		ProvisionStatusProvisioning,
		ProvisionStatusValidatingPackage,
		ProvisionStatusCreatingProject,
		ProvisionStatusForking,
		ProvisionStatusCloning,
		ProvisionStatusSettingUp,
		ProvisionStatusInstallingComposer,
		ProvisionStatusInstallingNPM,
		ProvisionStatusBuilding,
		ProvisionStatusFinalizing,
		ProvisionStatusReady,
	}
	for i := 1; i < len(steps); i++ {
		if !CreationAdvances(steps[i-1], steps[i]) {
			t.Fatalf("expected %s -> %s to advance", steps[i-1], steps[i])
		}
		if CreationAdvances(steps[i], steps[i-1]) {
			t.Fatalf("did not expect %s -> %s to advance", steps[i], steps[i-1])
		}
	}
}

func TestCreationRejectsSameStage(t *testing.T) {
	if CreationAdvances(ProvisionStatusBuilding, ProvisionStatusBuilding) {
		t.Fatal("duplicate status must not advance")
	}
	if CreationAdvances(ProvisionStatusForking, ProvisionStatusCreatingRepo) {
		t.Fatal("forking and creating_repo share a stage and must not cross over")
	}
	if CreationAdvances(ProvisionStatusCreatingRepo, ProvisionStatusForking) {
		t.Fatal("creating_repo and forking share a stage and must not cross over")
	}
}

func TestCreationFailedAbsorbs(t *testing.T) {
	for _, current := range []string{
		ProvisionStatusQueued,
		ProvisionStatusCloning,
		ProvisionStatusBuilding,
		ProvisionStatusReady,
	} {
		if !CreationAdvances(current, ProvisionStatusFailed) {
			t.Fatalf("expected failed to be accepted from %s", current)
		}
	}
	if CreationAdvances(ProvisionStatusFailed, ProvisionStatusBuilding) {
		t.Fatal("failed must absorb later stage events")
	}
	if CreationAdvances(ProvisionStatusFailed, ProvisionStatusFailed) {
		t.Fatal("repeated failed must be a no-op")
	}
}

func TestCreationRejectsUnknownStatus(t *testing.T) {
	if CreationAdvances(ProvisionStatusCloning, "compiling") {
		t.Fatal("unknown status must not advance")
	}
	if KnownCreationStatus("compiling") {
		t.Fatal("compiling is not a known creation status")
	}
	if !KnownCreationStatus(ProvisionStatusFailed) {
		t.Fatal("failed belongs to the creation lifecycle")
	}
}

func TestInProgressCreationStatus(t *testing.T) {
	if !InProgressCreationStatus(ProvisionStatusCloning) {
		t.Fatal("cloning is in progress")
	}
	if InProgressCreationStatus(ProvisionStatusReady) {
		t.Fatal("ready is terminal")
	}
	if InProgressCreationStatus(ProvisionStatusFailed) {
		t.Fatal("failed is terminal")
	}
	if InProgressCreationStatus("archived") {
		t.Fatal("unknown statuses are not in progress")
	}
}

func TestDeletionAdvances(t *testing.T) {
	if !DeletionAdvances(DeletionStatusDeleting, DeletionStatusRemovingFiles) {
		t.Fatal("deleting -> removing_files must advance")
	}
	if !DeletionAdvances(DeletionStatusDeleting, DeletionStatusDeleted) {
		t.Fatal("deleting -> deleted must advance")
	}
	if !DeletionAdvances(DeletionStatusRemovingFiles, DeletionStatusDeleted) {
		t.Fatal("removing_files -> deleted must advance")
	}
	if !DeletionAdvances(DeletionStatusRemovingFiles, DeletionStatusFailed) {
		t.Fatal("removing_files -> delete_failed must advance")
	}
	if DeletionAdvances(DeletionStatusDeleted, DeletionStatusDeleting) {
		t.Fatal("deleted is terminal")
	}
	if DeletionAdvances(DeletionStatusFailed, DeletionStatusDeleted) {
		t.Fatal("delete_failed must not complete without a fresh deletion")
	}
	if DeletionAdvances("", DeletionStatusDeleted) {
		t.Fatal("deleted must not be reachable without an in-progress deletion")
	}
}
