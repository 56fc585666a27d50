package versioning

import (
	"context"
	"fmt"
	"log"

	"github.com/reqtrace/reqtrace/internal/domain"
)

// RevisionWindowResolver computes the ordered set of commits that fall
// strictly after a timestamp boundary, for one artifact or a batch. It is
// shared by the revision-history display and the document exporters.
type RevisionWindowResolver struct {
	store ArtifactFileStore
}

// NewRevisionWindowResolver builds a resolver over the given store.
func NewRevisionWindowResolver(store ArtifactFileStore) *RevisionWindowResolver {
	return &RevisionWindowResolver{store: store}
}

// CommitsSince returns the artifact's commits with TimestampMs strictly
// greater than sinceMs, ascending by time. A nil boundary returns the full
// history. The boundary is captured at invocation, so the result is
// deterministic regardless of commits landing afterward.
func (r *RevisionWindowResolver) CommitsSince(ctx context.Context, kind domain.ArtifactKind, artifactID string, sinceMs *int64) ([]domain.CommitInfo, error) {
	history, err := r.store.History(ctx, kind.FilePath(artifactID))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch history for %s: %w", artifactID, err)
	}
	commits := domain.SortCommitsAscending(history)
	if sinceMs == nil {
		return commits, nil
	}
	boundary := *sinceMs
	filtered := make([]domain.CommitInfo, 0, len(commits))
	for _, commit := range commits {
		if commit.TimestampMs > boundary {
			filtered = append(filtered, commit)
		}
	}
	return filtered, nil
}

// SweepSince runs CommitsSince for every artifact in the list, sequentially
// to bound load on the store. A per-artifact failure is logged and
// contributes an empty list; the sweep always completes.
func (r *RevisionWindowResolver) SweepSince(ctx context.Context, artifacts []domain.TrackedArtifact, sinceMs *int64) map[string][]domain.CommitInfo {
	result := make(map[string][]domain.CommitInfo, len(artifacts))
	for _, artifact := range artifacts {
		commits, err := r.CommitsSince(ctx, artifact.Kind, artifact.ID, sinceMs)
		if err != nil {
			log.Printf("[REVISION] sweep failed for %s (%s): %v", artifact.ID, artifact.Kind, err)
			result[artifact.ID] = []domain.CommitInfo{}
			continue
		}
		result[artifact.ID] = commits
	}
	return result
}
