package versioning

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/reqtrace/reqtrace/internal/domain"
	"github.com/reqtrace/reqtrace/internal/repository"
)

// BaselineManager creates immutable baselines pinning the latest known commit
// hash per tracked artifact, and resolves "previous baseline relative to X"
// for revision windowing.
type BaselineManager struct {
	projectID uuid.UUID
	store     ArtifactFileStore
	artifacts ArtifactLister
	baselines repository.BaselineRepository
	clock     Clock
}

// NewBaselineManager builds a manager for one open project.
func NewBaselineManager(projectID uuid.UUID, store ArtifactFileStore, artifacts ArtifactLister, baselines repository.BaselineRepository, clock Clock) *BaselineManager {
	if clock == nil {
		clock = SystemClock{}
	}
	return &BaselineManager{
		projectID: projectID,
		store:     store,
		artifacts: artifacts,
		baselines: baselines,
		clock:     clock,
	}
}

// CreateBaseline snapshots the head commit of every tracked artifact that has
// commit history. Artifacts with empty history are silently omitted; a
// per-artifact history failure is logged and skipped, so a baseline with
// partial coverage is still created.
func (m *BaselineManager) CreateBaseline(ctx context.Context, name, description string) (domain.ProjectBaseline, error) {
	tracked, err := m.artifacts.TrackedArtifacts(ctx)
	if err != nil {
		return domain.ProjectBaseline{}, fmt.Errorf("failed to enumerate tracked artifacts: %w", err)
	}

	commits := make(map[string]domain.ArtifactCommitRef)
	for _, artifact := range tracked {
		history, histErr := m.store.History(ctx, artifact.FilePath)
		if histErr != nil {
			log.Printf("[BASELINE] skipping %s (%s): %v", artifact.ID, artifact.Kind, histErr)
			continue
		}
		if len(history) == 0 {
			continue
		}
		// Store convention is newest-first; the head commit leads.
		commits[artifact.ID] = domain.ArtifactCommitRef{
			CommitHash: history[0].Hash,
			Kind:       artifact.Kind,
		}
	}

	count, err := m.baselines.Count(ctx, m.projectID)
	if err != nil {
		return domain.ProjectBaseline{}, fmt.Errorf("failed to count existing baselines: %w", err)
	}

	baseline := domain.ProjectBaseline{
		ID:              uuid.New(),
		ProjectID:       m.projectID,
		Version:         count + 1,
		Name:            name,
		Description:     description,
		TimestampMs:     m.clock.Now().UnixMilli(),
		ArtifactCommits: commits,
	}
	appended, err := m.baselines.Append(ctx, baseline)
	if err != nil {
		return domain.ProjectBaseline{}, fmt.Errorf("failed to persist baseline %q: %w", name, err)
	}
	log.Printf("[BASELINE] created %q (v%d) pinning %d artifacts", appended.Name, appended.Version, len(appended.ArtifactCommits))
	return appended, nil
}

// ListBaselines returns the project's baselines ordered oldest-first.
func (m *BaselineManager) ListBaselines(ctx context.Context) ([]domain.ProjectBaseline, error) {
	return m.baselines.List(ctx, m.projectID)
}

// GetBaseline returns one baseline by id.
func (m *BaselineManager) GetBaseline(ctx context.Context, id uuid.UUID) (domain.ProjectBaseline, error) {
	return m.baselines.GetByID(ctx, id)
}

// PreviousBaseline resolves the baseline that precedes the target. A nil
// target means "current state" and yields the most recent baseline, or nil
// when none exist. A non-nil target yields the nearest baseline with a
// strictly earlier timestamp; the target itself is never returned, even when
// several baselines share its timestamp.
func (m *BaselineManager) PreviousBaseline(ctx context.Context, target *uuid.UUID) (*domain.ProjectBaseline, error) {
	all, err := m.baselines.List(ctx, m.projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list baselines: %w", err)
	}
	sorted := domain.SortBaselinesDescending(all)

	if target == nil {
		if len(sorted) == 0 {
			return nil, nil
		}
		head := sorted[0]
		return &head, nil
	}

	var targetBaseline *domain.ProjectBaseline
	for i := range sorted {
		if sorted[i].ID == *target {
			targetBaseline = &sorted[i]
			break
		}
	}
	if targetBaseline == nil {
		return nil, fmt.Errorf("baseline %s: %w", *target, repository.ErrNotFound)
	}

	for i := range sorted {
		if sorted[i].ID == targetBaseline.ID {
			continue
		}
		if sorted[i].TimestampMs < targetBaseline.TimestampMs {
			prev := sorted[i]
			return &prev, nil
		}
	}
	return nil, nil
}
