package domain

import (
	"encoding/json"
	"sort"

	"github.com/google/uuid"
)

// ArtifactCommitRef pins one artifact to the commit hash it had when a
// baseline was created.
type ArtifactCommitRef struct {
	CommitHash string       `json:"commitHash"`
	Kind       ArtifactKind `json:"kind"`
}

// ProjectBaseline is a named snapshot of the project's head commits. The
// ArtifactCommits map is frozen at creation time; artifacts with no commit
// history are omitted from it rather than recorded as empty.
type ProjectBaseline struct {
	ID              uuid.UUID                    `json:"id"`
	ProjectID       uuid.UUID                    `json:"projectId"`
	Version         int                          `json:"version"`
	Name            string                       `json:"name"`
	Description     string                       `json:"description"`
	TimestampMs     int64                        `json:"timestampMs"`
	ArtifactCommits map[string]ArtifactCommitRef `json:"artifactCommits"`
}

// ArtifactCommitsToJSON marshals the pinned commit map into the JSONB layout
// stored in Postgres.
func (b ProjectBaseline) ArtifactCommitsToJSON() (json.RawMessage, error) {
	commits := b.ArtifactCommits
	if commits == nil {
		commits = map[string]ArtifactCommitRef{}
	}
	return json.Marshal(commits)
}

// ArtifactCommitsFromJSON unmarshals a persisted commit map.
func ArtifactCommitsFromJSON(data []byte) (map[string]ArtifactCommitRef, error) {
	if len(data) == 0 {
		return map[string]ArtifactCommitRef{}, nil
	}
	var commits map[string]ArtifactCommitRef
	if err := json.Unmarshal(data, &commits); err != nil {
		return nil, err
	}
	if commits == nil {
		commits = map[string]ArtifactCommitRef{}
	}
	return commits, nil
}

// SortBaselinesDescending orders baselines newest-first by timestamp.
func SortBaselinesDescending(baselines []ProjectBaseline) []ProjectBaseline {
	out := make([]ProjectBaseline, len(baselines))
	copy(out, baselines)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TimestampMs > out[j].TimestampMs
	})
	return out
}
