package repository

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/reqtrace/reqtrace/internal/domain"
)

// memoryBaselineRepository keeps baselines in process memory. It backs tests
// and database-less sessions with the same append-only contract as the
// Postgres implementation.
type memoryBaselineRepository struct {
	mu        sync.RWMutex
	baselines []domain.ProjectBaseline
}

// NewMemoryBaselineRepository creates an in-memory baseline repository.
func NewMemoryBaselineRepository() BaselineRepository {
	return &memoryBaselineRepository{}
}

func (r *memoryBaselineRepository) Append(_ context.Context, baseline domain.ProjectBaseline) (domain.ProjectBaseline, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.baselines = append(r.baselines, baseline)
	return baseline, nil
}

func (r *memoryBaselineRepository) GetByID(_ context.Context, id uuid.UUID) (domain.ProjectBaseline, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, baseline := range r.baselines {
		if baseline.ID == id {
			return baseline, nil
		}
	}
	return domain.ProjectBaseline{}, ErrNotFound
}

func (r *memoryBaselineRepository) List(_ context.Context, projectID uuid.UUID) ([]domain.ProjectBaseline, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.ProjectBaseline
	for _, baseline := range r.baselines {
		if baseline.ProjectID == projectID {
			out = append(out, baseline)
		}
	}
	return out, nil
}

func (r *memoryBaselineRepository) Count(_ context.Context, projectID uuid.UUID) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	count := 0
	for _, baseline := range r.baselines {
		if baseline.ProjectID == projectID {
			count++
		}
	}
	return count, nil
}

// memorySnapshotRepository keeps version snapshots in process memory with the
// same newest-first ordering and FIFO cap as the Postgres implementation.
type memorySnapshotRepository struct {
	mu        sync.RWMutex
	snapshots map[uuid.UUID][]domain.VersionSnapshot // newest-inserted first
}

// NewMemorySnapshotRepository creates an in-memory snapshot repository.
func NewMemorySnapshotRepository() SnapshotRepository {
	return &memorySnapshotRepository{snapshots: make(map[uuid.UUID][]domain.VersionSnapshot)}
}

func (r *memorySnapshotRepository) Insert(_ context.Context, snapshot domain.VersionSnapshot) (domain.VersionSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := append([]domain.VersionSnapshot{snapshot}, r.snapshots[snapshot.ProjectID]...)
	if len(list) > domain.MaxVersionSnapshots {
		list = list[:domain.MaxVersionSnapshots]
	}
	r.snapshots[snapshot.ProjectID] = list
	return snapshot, nil
}

func (r *memorySnapshotRepository) GetByID(_ context.Context, id uuid.UUID) (domain.VersionSnapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, list := range r.snapshots {
		for _, snapshot := range list {
			if snapshot.ID == id {
				return snapshot, nil
			}
		}
	}
	return domain.VersionSnapshot{}, ErrNotFound
}

func (r *memorySnapshotRepository) List(_ context.Context, projectID uuid.UUID) ([]domain.VersionSnapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := r.snapshots[projectID]
	out := make([]domain.VersionSnapshot, len(list))
	copy(out, list)
	return out, nil
}

func (r *memorySnapshotRepository) Count(_ context.Context, projectID uuid.UUID) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.snapshots[projectID]), nil
}
