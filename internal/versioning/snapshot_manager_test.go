package versioning

import (
	"context"
	"fmt"
	"reflect"
	"testing"

	"github.com/google/uuid"

	"github.com/reqtrace/reqtrace/internal/domain"
	"github.com/reqtrace/reqtrace/internal/repository"
)

func newSnapshotFixture() (*VersionSnapshotManager, *liveState, *manualScheduler, *fixedClock, repository.SnapshotRepository) {
	live := &liveState{}
	scheduler := &manualScheduler{}
	clock := newFixedClock(1000)
	repo := repository.NewMemorySnapshotRepository()
	manager := NewVersionSnapshotManager(uuid.New(), "Demo", repo, live,
		WithClock(clock), WithScheduler(scheduler))
	return manager, live, scheduler, clock, repo
}

func sampleCollections(marker string) domain.ArtifactCollections {
	return domain.ArtifactCollections{
		Requirements: []domain.Artifact{{ID: "REQ-001", Title: marker, Revision: "01"}},
		Links:        []domain.ArtifactLink{{SourceID: "REQ-001", TargetID: "TC-001", Type: "verifies"}},
	}
}

func TestRecordSnapshotDeepCopiesCollections(t *testing.T) {
	manager, _, _, _, _ := newSnapshotFixture()

	collections := sampleCollections("before")
	snapshot, err := manager.RecordSnapshot(context.Background(), domain.SnapshotKindAutoSave, "Auto-save", collections, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Mutating the source after recording must not leak into the snapshot.
	collections.Requirements[0].Title = "after"
	if snapshot.Data.Requirements[0].Title != "before" {
		t.Errorf("snapshot aliases live state: %q", snapshot.Data.Requirements[0].Title)
	}
}

func TestSnapshotListNeverExceedsCap(t *testing.T) {
	manager, _, _, clock, _ := newSnapshotFixture()
	ctx := context.Background()

	var firstID uuid.UUID
	for i := 0; i < domain.MaxVersionSnapshots+10; i++ {
		snapshot, err := manager.RecordSnapshot(ctx, domain.SnapshotKindAutoSave, fmt.Sprintf("save %d", i), sampleCollections(fmt.Sprintf("m%d", i)), nil)
		if err != nil {
			t.Fatalf("unexpected error at %d: %v", i, err)
		}
		if i == 0 {
			firstID = snapshot.ID
		}
		clock.advance(10)
	}

	snapshots, err := manager.ListSnapshots(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snapshots) != domain.MaxVersionSnapshots {
		t.Fatalf("expected exactly %d snapshots, got %d", domain.MaxVersionSnapshots, len(snapshots))
	}
	for _, snapshot := range snapshots {
		if snapshot.ID == firstID {
			t.Errorf("oldest-inserted snapshot must be evicted first")
		}
	}
	if snapshots[0].Message != fmt.Sprintf("save %d", domain.MaxVersionSnapshots+9) {
		t.Errorf("expected newest snapshot first, got %q", snapshots[0].Message)
	}
}

func TestDebounceCollapsesRapidMutations(t *testing.T) {
	manager, live, scheduler, _, _ := newSnapshotFixture()
	live.SetCollections(sampleCollections("live"))

	for i := 0; i < 5; i++ {
		manager.NotifyMutation()
	}
	if scheduler.scheduledCount() != 5 {
		t.Fatalf("each mutation must reschedule the slot, got %d schedules", scheduler.scheduledCount())
	}

	if fired := scheduler.firePending(); fired != 1 {
		t.Fatalf("only the last scheduled task may still be live, %d fired", fired)
	}

	snapshots, err := manager.ListSnapshots(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snapshots) != 1 {
		t.Fatalf("5 rapid mutations must collapse into 1 auto-save, got %d", len(snapshots))
	}
	if snapshots[0].Kind != domain.SnapshotKindAutoSave {
		t.Errorf("expected auto-save kind, got %s", snapshots[0].Kind)
	}
	if snapshots[0].Message != "Auto-save" {
		t.Errorf("expected Auto-save message, got %q", snapshots[0].Message)
	}
}

func TestDebounceSpacedMutationsEachProduceSnapshot(t *testing.T) {
	manager, live, scheduler, clock, _ := newSnapshotFixture()
	live.SetCollections(sampleCollections("live"))

	const n = 3
	for i := 0; i < n; i++ {
		manager.NotifyMutation()
		// Quiet period elapses before the next mutation arrives.
		if fired := scheduler.firePending(); fired != 1 {
			t.Fatalf("mutation %d: expected 1 firing, got %d", i, fired)
		}
		clock.advance(3000)
	}

	snapshots, err := manager.ListSnapshots(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snapshots) != n {
		t.Fatalf("%d spaced mutations must produce %d snapshots, got %d", n, n, len(snapshots))
	}
}

func TestLateTimerFiringNeitherSavesNorOrphansSlot(t *testing.T) {
	manager, live, scheduler, _, _ := newSnapshotFixture()
	live.SetCollections(sampleCollections("draft"))
	ctx := context.Background()

	manager.NotifyMutation() // slot 1
	manager.NotifyMutation() // cancels slot 1, schedules slot 2

	// Slot 1's timer had already popped when the cancel arrived: the late
	// firing must not record a snapshot and must not clear slot 2.
	scheduler.fireLate(0)

	snapshots, err := manager.ListSnapshots(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snapshots) != 0 {
		t.Fatalf("superseded firing recorded %d snapshots", len(snapshots))
	}

	// The next mutation must cancel slot 2: an orphaned slot would leave two
	// live timers for one burst.
	manager.NotifyMutation()
	if fired := scheduler.firePending(); fired != 1 {
		t.Fatalf("expected exactly 1 live timer slot, %d fired", fired)
	}

	snapshots, err = manager.ListSnapshots(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snapshots) != 1 {
		t.Fatalf("expected 1 auto-save for the burst, got %d", len(snapshots))
	}
	if snapshots[0].Kind != domain.SnapshotKindAutoSave {
		t.Errorf("expected auto-save snapshot, got %s", snapshots[0].Kind)
	}
}

func TestRestoreVersionOverwritesAndRecords(t *testing.T) {
	manager, live, _, clock, _ := newSnapshotFixture()
	ctx := context.Background()

	original := sampleCollections("original")
	live.SetCollections(original)
	saved, err := manager.RecordSnapshot(ctx, domain.SnapshotKindAutoSave, "Auto-save", live.Collections(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	clock.advance(5000)
	live.SetCollections(sampleCollections("diverged"))

	restored, err := manager.RestoreVersion(ctx, saved.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if restored.Kind != domain.SnapshotKindRestore {
		t.Errorf("expected restore kind, got %s", restored.Kind)
	}

	if !reflect.DeepEqual(live.Collections(), saved.Data) {
		t.Errorf("live collections must deep-equal the restored snapshot data")
	}

	snapshots, err := manager.ListSnapshots(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snapshots) != 2 {
		t.Fatalf("restore must append exactly one snapshot, got %d total", len(snapshots))
	}
	if snapshots[0].Kind != domain.SnapshotKindRestore {
		t.Errorf("newest snapshot must be the restore entry, got %s", snapshots[0].Kind)
	}
}

func TestRestoreVersionRejectsUnknownID(t *testing.T) {
	manager, _, _, _, _ := newSnapshotFixture()
	if _, err := manager.RestoreVersion(context.Background(), uuid.New()); err == nil {
		t.Fatalf("expected error for unknown version id")
	}
}

func TestCloseCancelsPendingAutoSave(t *testing.T) {
	manager, live, scheduler, _, _ := newSnapshotFixture()
	live.SetCollections(sampleCollections("live"))

	manager.NotifyMutation()
	manager.Close()

	if fired := scheduler.firePending(); fired != 0 {
		t.Fatalf("closed session must have no live timer, %d fired", fired)
	}

	snapshots, err := manager.ListSnapshots(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snapshots) != 0 {
		t.Fatalf("no snapshot may be written after close, got %d", len(snapshots))
	}
}

func TestNotifyMutationAfterCloseIsNoop(t *testing.T) {
	manager, _, scheduler, _, _ := newSnapshotFixture()
	manager.Close()
	manager.NotifyMutation()
	if scheduler.scheduledCount() != 0 {
		t.Fatalf("a closed manager must not schedule timers, got %d", scheduler.scheduledCount())
	}
}
