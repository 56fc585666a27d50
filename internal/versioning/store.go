package versioning

import (
	"context"

	"github.com/reqtrace/reqtrace/internal/domain"
)

// ArtifactFileStore is the commit-log-backed store the versioning engine
// reads from. History is newest-first by convention; ReadFileAtCommit
// returns nil for content missing from a commit's tree, not an error.
type ArtifactFileStore interface {
	History(ctx context.Context, filePath string) ([]domain.CommitInfo, error)
	ReadFileAtCommit(ctx context.Context, filePath, commitHash string) (*string, error)
}

// ArtifactLister enumerates the artifacts currently belonging to the open
// project. Baseline creation consults it so artifacts removed from the
// project are never pinned into a new baseline.
type ArtifactLister interface {
	TrackedArtifacts(ctx context.Context) ([]domain.TrackedArtifact, error)
}
