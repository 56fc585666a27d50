package domain

import (
	"fmt"
	"path"
	"sort"
)

// ArtifactKind enumerates the five tracked artifact types.
type ArtifactKind string

const (
	ArtifactKindRequirement ArtifactKind = "requirement"
	ArtifactKindUseCase     ArtifactKind = "useCase"
	ArtifactKindTestCase    ArtifactKind = "testCase"
	ArtifactKindInformation ArtifactKind = "information"
	ArtifactKindRisk        ArtifactKind = "risk"
)

// ArtifactKinds lists every kind in a stable order.
var ArtifactKinds = []ArtifactKind{
	ArtifactKindRequirement,
	ArtifactKindUseCase,
	ArtifactKindTestCase,
	ArtifactKindInformation,
	ArtifactKindRisk,
}

// ParseArtifactKind validates an incoming kind string. Unknown kinds are
// rejected here so downstream dispatch can stay exhaustive.
func ParseArtifactKind(value string) (ArtifactKind, error) {
	switch ArtifactKind(value) {
	case ArtifactKindRequirement, ArtifactKindUseCase, ArtifactKindTestCase,
		ArtifactKindInformation, ArtifactKindRisk:
		return ArtifactKind(value), nil
	default:
		return "", fmt.Errorf("unknown artifact kind %q", value)
	}
}

// Folder returns the repository directory holding files of this kind.
func (k ArtifactKind) Folder() string {
	switch k {
	case ArtifactKindRequirement:
		return "requirements"
	case ArtifactKindUseCase:
		return "usecases"
	case ArtifactKindTestCase:
		return "testcases"
	case ArtifactKindInformation:
		return "information"
	case ArtifactKindRisk:
		return "risks"
	}
	return ""
}

// FilePath derives the repository-relative path for an artifact of this kind.
func (k ArtifactKind) FilePath(artifactID string) string {
	return path.Join(k.Folder(), artifactID+".md")
}

// TrackedArtifact identifies one artifact belonging to the open project.
type TrackedArtifact struct {
	ID       string       `json:"id"`
	Kind     ArtifactKind `json:"kind"`
	FilePath string       `json:"filePath"`
}

// NewTrackedArtifact builds a tracked artifact with its derived file path.
func NewTrackedArtifact(kind ArtifactKind, id string) TrackedArtifact {
	return TrackedArtifact{
		ID:       id,
		Kind:     kind,
		FilePath: kind.FilePath(id),
	}
}

// CommitInfo is one entry of a file's commit log. Immutable once returned by
// the store; the store reports newest-first, resolvers normalize ascending.
type CommitInfo struct {
	Hash        string `json:"hash"`
	Message     string `json:"message"`
	Author      string `json:"author"`
	TimestampMs int64  `json:"timestampMs"`
}

// SortCommitsAscending orders commits oldest-first by timestamp, preserving
// the store's relative order for equal timestamps.
func SortCommitsAscending(commits []CommitInfo) []CommitInfo {
	out := make([]CommitInfo, len(commits))
	copy(out, commits)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TimestampMs < out[j].TimestampMs
	})
	return out
}
