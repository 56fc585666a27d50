package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/mohae/deepcopy"
)

// SnapshotKind tags how a version snapshot came to exist.
type SnapshotKind string

const (
	SnapshotKindAutoSave SnapshotKind = "auto-save"
	SnapshotKindBaseline SnapshotKind = "baseline"
	SnapshotKindRestore  SnapshotKind = "restore"
)

// MaxVersionSnapshots caps the per-project undo log; the oldest-inserted
// entry is evicted first.
const MaxVersionSnapshots = 50

// Artifact is the denormalized business record captured inside version
// snapshots. Business-field parsing lives with the consumers; this engine
// only carries the fields through.
type Artifact struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Status      string         `json:"status"`
	Revision    string         `json:"revision"`
	Fields      map[string]any `json:"fields,omitempty"`
}

// ArtifactLink is one traceability edge between two artifacts.
type ArtifactLink struct {
	SourceID string `json:"sourceId"`
	TargetID string `json:"targetId"`
	Type     string `json:"type"`
}

// ArtifactCollections is the full live state of an open project.
type ArtifactCollections struct {
	Requirements []Artifact     `json:"requirements"`
	UseCases     []Artifact     `json:"useCases"`
	TestCases    []Artifact     `json:"testCases"`
	Information  []Artifact     `json:"information"`
	Risks        []Artifact     `json:"risks"`
	Links        []ArtifactLink `json:"links"`
}

// Clone returns a deep copy so snapshots never alias live state.
func (c ArtifactCollections) Clone() ArtifactCollections {
	return deepcopy.Copy(c).(ArtifactCollections)
}

// TrackedArtifacts flattens the collections into the artifact list a baseline
// sweep iterates, in a stable kind-then-insertion order.
func (c ArtifactCollections) TrackedArtifacts() []TrackedArtifact {
	var tracked []TrackedArtifact
	appendKind := func(kind ArtifactKind, artifacts []Artifact) {
		for _, a := range artifacts {
			tracked = append(tracked, NewTrackedArtifact(kind, a.ID))
		}
	}
	appendKind(ArtifactKindRequirement, c.Requirements)
	appendKind(ArtifactKindUseCase, c.UseCases)
	appendKind(ArtifactKindTestCase, c.TestCases)
	appendKind(ArtifactKindInformation, c.Information)
	appendKind(ArtifactKindRisk, c.Risks)
	return tracked
}

// VersionSnapshot is one entry of the bounded undo log, independent of the
// commit-backed file history.
type VersionSnapshot struct {
	ID          uuid.UUID           `json:"id"`
	ProjectID   uuid.UUID           `json:"projectId"`
	ProjectName string              `json:"projectName"`
	Message     string              `json:"message"`
	Kind        SnapshotKind        `json:"kind"`
	TimestampMs int64               `json:"timestampMs"`
	Tag         *string             `json:"tag,omitempty"`
	Data        ArtifactCollections `json:"data"`
}

// CreatedAt converts the millisecond timestamp for display surfaces.
func (s VersionSnapshot) CreatedAt() time.Time {
	return time.UnixMilli(s.TimestampMs)
}

// DataToJSON marshals the captured collections for JSONB storage.
func (s VersionSnapshot) DataToJSON() (json.RawMessage, error) {
	return json.Marshal(s.Data)
}

// CollectionsFromJSON hydrates persisted snapshot data.
func CollectionsFromJSON(data []byte) (ArtifactCollections, error) {
	var collections ArtifactCollections
	if len(data) == 0 {
		return collections, nil
	}
	if err := json.Unmarshal(data, &collections); err != nil {
		return ArtifactCollections{}, err
	}
	return collections, nil
}
