package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/reqtrace/reqtrace/internal/domain"
)

// ErrNotFound is returned when a requested baseline or snapshot row does not
// exist.
var ErrNotFound = errors.New("record not found")

// BaselineRepository persists the append-only per-project baseline list.
// Rows are never updated or deleted; a baseline is immutable once appended.
type BaselineRepository interface {
	Append(ctx context.Context, baseline domain.ProjectBaseline) (domain.ProjectBaseline, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.ProjectBaseline, error)
	List(ctx context.Context, projectID uuid.UUID) ([]domain.ProjectBaseline, error)
	Count(ctx context.Context, projectID uuid.UUID) (int, error)
}

// SnapshotRepository persists the capped per-project version-snapshot list.
// Insert trims the list beyond the newest MaxVersionSnapshots entries in the
// same transaction, evicting oldest-inserted rows first.
type SnapshotRepository interface {
	Insert(ctx context.Context, snapshot domain.VersionSnapshot) (domain.VersionSnapshot, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.VersionSnapshot, error)
	List(ctx context.Context, projectID uuid.UUID) ([]domain.VersionSnapshot, error)
	Count(ctx context.Context, projectID uuid.UUID) (int, error)
}
