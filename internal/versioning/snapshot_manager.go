package versioning

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/reqtrace/reqtrace/internal/domain"
	"github.com/reqtrace/reqtrace/internal/repository"
)

// DebounceQuietPeriod is how long artifact mutations must settle before an
// auto-save snapshot is recorded.
const DebounceQuietPeriod = 2000 * time.Millisecond

// CollectionsAccessor exposes the live artifact collections of the open
// project. Restore overwrites them wholesale; auto-save reads them.
type CollectionsAccessor interface {
	Collections() domain.ArtifactCollections
	SetCollections(collections domain.ArtifactCollections)
}

// VersionSnapshotManager maintains the bounded, debounced undo log of
// whole-state snapshots, independent of the commit-backed file history.
type VersionSnapshotManager struct {
	projectID   uuid.UUID
	projectName string
	snapshots   repository.SnapshotRepository
	live        CollectionsAccessor
	clock       Clock
	scheduler   Scheduler
	quietPeriod time.Duration

	mu      sync.Mutex
	pending ScheduledTask
	// generation identifies the current timer slot. A timer that was already
	// firing when its Cancel raced a reschedule carries a stale generation
	// and must neither record a snapshot nor clear the slot it lost.
	generation uint64
	closed     bool
}

// SnapshotOption tweaks manager construction.
type SnapshotOption func(*VersionSnapshotManager)

// WithQuietPeriod overrides the debounce quiet period.
func WithQuietPeriod(d time.Duration) SnapshotOption {
	return func(m *VersionSnapshotManager) {
		if d > 0 {
			m.quietPeriod = d
		}
	}
}

// WithClock injects a deterministic clock.
func WithClock(clock Clock) SnapshotOption {
	return func(m *VersionSnapshotManager) {
		if clock != nil {
			m.clock = clock
		}
	}
}

// WithScheduler injects a deterministic scheduler.
func WithScheduler(scheduler Scheduler) SnapshotOption {
	return func(m *VersionSnapshotManager) {
		if scheduler != nil {
			m.scheduler = scheduler
		}
	}
}

// NewVersionSnapshotManager builds a manager for one open project session.
func NewVersionSnapshotManager(projectID uuid.UUID, projectName string, snapshots repository.SnapshotRepository, live CollectionsAccessor, opts ...SnapshotOption) *VersionSnapshotManager {
	m := &VersionSnapshotManager{
		projectID:   projectID,
		projectName: projectName,
		snapshots:   snapshots,
		live:        live,
		clock:       SystemClock{},
		scheduler:   TimerScheduler{},
		quietPeriod: DebounceQuietPeriod,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// RecordSnapshot deep-copies the collections into a new snapshot and
// persists it; the repository trims the list to the newest
// domain.MaxVersionSnapshots entries.
func (m *VersionSnapshotManager) RecordSnapshot(ctx context.Context, kind domain.SnapshotKind, message string, collections domain.ArtifactCollections, tag *string) (domain.VersionSnapshot, error) {
	snapshot := domain.VersionSnapshot{
		ID:          uuid.New(),
		ProjectID:   m.projectID,
		ProjectName: m.projectName,
		Message:     message,
		Kind:        kind,
		TimestampMs: m.clock.Now().UnixMilli(),
		Tag:         tag,
		Data:        collections.Clone(),
	}
	inserted, err := m.snapshots.Insert(ctx, snapshot)
	if err != nil {
		return domain.VersionSnapshot{}, fmt.Errorf("failed to persist %s snapshot: %w", kind, err)
	}
	return inserted, nil
}

// NotifyMutation (re)schedules the single auto-save timer slot. Each
// mutation inside the quiet period cancels and reschedules the same slot;
// the timer firing uninterrupted records exactly one auto-save snapshot.
func (m *VersionSnapshotManager) NotifyMutation() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	if m.pending != nil {
		m.pending.Cancel()
	}
	m.generation++
	gen := m.generation
	m.pending = m.scheduler.Schedule(m.quietPeriod, func() { m.autoSave(gen) })
}

func (m *VersionSnapshotManager) autoSave(gen uint64) {
	m.mu.Lock()
	if m.closed || gen != m.generation {
		// A reschedule superseded this firing; the new slot is not ours to
		// touch.
		m.mu.Unlock()
		return
	}
	m.pending = nil
	m.mu.Unlock()

	if _, err := m.RecordSnapshot(context.Background(), domain.SnapshotKindAutoSave, "Auto-save", m.live.Collections(), nil); err != nil {
		log.Printf("[SNAPSHOT] auto-save failed for project %s: %v", m.projectID, err)
	}
}

// RestoreVersion overwrites the live collections with the snapshot's deep
// copy, then records a restore-kind snapshot so the restore itself becomes a
// new, inspectable point in history.
func (m *VersionSnapshotManager) RestoreVersion(ctx context.Context, versionID uuid.UUID) (domain.VersionSnapshot, error) {
	snapshot, err := m.snapshots.GetByID(ctx, versionID)
	if err != nil {
		return domain.VersionSnapshot{}, fmt.Errorf("failed to load snapshot %s: %w", versionID, err)
	}
	if snapshot.ProjectID != m.projectID {
		return domain.VersionSnapshot{}, fmt.Errorf("snapshot %s belongs to another project", versionID)
	}

	m.live.SetCollections(snapshot.Data.Clone())
	restored, err := m.RecordSnapshot(ctx, domain.SnapshotKindRestore,
		fmt.Sprintf("Restored version from %s", snapshot.CreatedAt().Format(time.RFC3339)),
		m.live.Collections(), nil)
	if err != nil {
		return domain.VersionSnapshot{}, err
	}
	log.Printf("[SNAPSHOT] restored project %s to snapshot %s", m.projectID, versionID)
	return restored, nil
}

// ListSnapshots returns the undo log newest-first.
func (m *VersionSnapshotManager) ListSnapshots(ctx context.Context) ([]domain.VersionSnapshot, error) {
	return m.snapshots.List(ctx, m.projectID)
}

// Close cancels any pending auto-save timer. A project switch must close
// the old session's manager before opening the next, so a snapshot is never
// written into the wrong project's history.
func (m *VersionSnapshotManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending != nil {
		m.pending.Cancel()
		m.pending = nil
	}
	m.closed = true
}
