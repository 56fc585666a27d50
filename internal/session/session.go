package session

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/reqtrace/reqtrace/internal/domain"
	"github.com/reqtrace/reqtrace/internal/gitstore"
	"github.com/reqtrace/reqtrace/internal/repository"
	"github.com/reqtrace/reqtrace/internal/versioning"
)

// ProjectSession is the explicit per-project session object: it owns the
// artifact file store, the live collections, and the versioning managers.
// There are no ambient globals; opening a project constructs a session and
// switching projects closes it first.
type ProjectSession struct {
	ProjectID   uuid.UUID
	ProjectName string

	store     *gitstore.Store
	baselines *versioning.BaselineManager
	snapshots *versioning.VersionSnapshotManager
	window    *versioning.RevisionWindowResolver
	labels    *versioning.RevisionLabelResolver

	// writeMu serializes commits and baseline creation for the project; a
	// baseline captured mid-commit could pin a non-existent hash.
	writeMu sync.Mutex

	collectionsMu sync.RWMutex
	collections   domain.ArtifactCollections

	closeOnce sync.Once
}

// Config carries what a session needs beyond its repositories.
type Config struct {
	ProjectID   uuid.UUID
	ProjectName string
	ProjectDir  string
	Baselines   repository.BaselineRepository
	Snapshots   repository.SnapshotRepository
	// SnapshotOptions lets callers inject clocks and schedulers.
	SnapshotOptions []versioning.SnapshotOption
	Clock           versioning.Clock
}

// Open initializes the project's file store and wires the versioning
// managers around it.
func Open(ctx context.Context, cfg Config) (*ProjectSession, error) {
	if cfg.ProjectID == uuid.Nil {
		return nil, fmt.Errorf("project id is required")
	}
	store := gitstore.NewStore(cfg.ProjectDir)
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("failed to open project %s: %w", cfg.ProjectName, err)
	}

	s := &ProjectSession{
		ProjectID:   cfg.ProjectID,
		ProjectName: cfg.ProjectName,
		store:       store,
	}
	s.baselines = versioning.NewBaselineManager(cfg.ProjectID, store, s, cfg.Baselines, cfg.Clock)
	s.snapshots = versioning.NewVersionSnapshotManager(cfg.ProjectID, cfg.ProjectName, cfg.Snapshots, s, cfg.SnapshotOptions...)
	s.window = versioning.NewRevisionWindowResolver(store)
	s.labels = versioning.NewRevisionLabelResolver(store)

	if err := s.loadCollections(); err != nil {
		return nil, err
	}
	log.Printf("[SESSION] opened project %s (%s)", cfg.ProjectName, cfg.ProjectID)
	return s, nil
}

// loadCollections hydrates the live collections from the working tree.
func (s *ProjectSession) loadCollections() error {
	var collections domain.ArtifactCollections
	for _, kind := range domain.ArtifactKinds {
		files, err := s.store.ListArtifacts(kind)
		if err != nil {
			return fmt.Errorf("failed to list %s artifacts: %w", kind, err)
		}
		for _, file := range files {
			id := file[:len(file)-len(".md")]
			content, readErr := s.store.ReadArtifact(kind.FilePath(id))
			if readErr != nil {
				log.Printf("[SESSION] skipping unreadable artifact %s: %v", id, readErr)
				continue
			}
			artifact := ParseArtifact(id, content)
			appendArtifact(&collections, kind, artifact)
		}
	}
	s.collectionsMu.Lock()
	s.collections = collections
	s.collectionsMu.Unlock()
	return nil
}

// Collections returns a copy of the live artifact collections.
func (s *ProjectSession) Collections() domain.ArtifactCollections {
	s.collectionsMu.RLock()
	defer s.collectionsMu.RUnlock()
	return s.collections.Clone()
}

// SetCollections overwrites the live collections. Used by restore, which
// replaces rather than merges.
func (s *ProjectSession) SetCollections(collections domain.ArtifactCollections) {
	s.collectionsMu.Lock()
	s.collections = collections
	s.collectionsMu.Unlock()
}

// TrackedArtifacts flattens the live collections into the artifact list that
// baselines and sweeps iterate. Artifacts removed from the project are not
// in the collections, so they are never pinned into a new baseline.
func (s *ProjectSession) TrackedArtifacts(_ context.Context) ([]domain.TrackedArtifact, error) {
	s.collectionsMu.RLock()
	defer s.collectionsMu.RUnlock()
	return s.collections.TrackedArtifacts(), nil
}

// SaveArtifact writes the artifact file, commits it, updates the live
// collections, and pokes the auto-save debounce. Write and commit happen
// under the project write lock as one unit, so concurrent saves of the same
// artifact never commit each other's content.
func (s *ProjectSession) SaveArtifact(ctx context.Context, kind domain.ArtifactKind, artifact domain.Artifact, commitMessage string) error {
	content := RenderArtifact(artifact)

	s.writeMu.Lock()
	err := s.store.WriteArtifact(kind.FilePath(artifact.ID), content)
	if err == nil {
		err = s.store.CommitArtifact(ctx, kind, artifact.ID, commitMessage)
	}
	s.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to save artifact %s: %w", artifact.ID, err)
	}

	s.collectionsMu.Lock()
	upsertArtifact(&s.collections, kind, artifact)
	s.collectionsMu.Unlock()
	s.snapshots.NotifyMutation()
	return nil
}

// RemoveArtifact deletes the artifact file and drops it from the live
// collections. The file's commit history remains in the store.
func (s *ProjectSession) RemoveArtifact(ctx context.Context, kind domain.ArtifactKind, artifactID string) error {
	if err := s.store.DeleteArtifact(kind.FilePath(artifactID)); err != nil {
		return err
	}
	s.collectionsMu.Lock()
	removeArtifact(&s.collections, kind, artifactID)
	s.collectionsMu.Unlock()
	s.snapshots.NotifyMutation()
	return nil
}

// CreateBaseline serializes with in-flight commits, creates the baseline,
// and records a baseline-kind version snapshot alongside it.
func (s *ProjectSession) CreateBaseline(ctx context.Context, name, description string) (domain.ProjectBaseline, error) {
	s.writeMu.Lock()
	baseline, err := s.baselines.CreateBaseline(ctx, name, description)
	s.writeMu.Unlock()
	if err != nil {
		return domain.ProjectBaseline{}, err
	}

	tag := baseline.Name
	if _, snapErr := s.snapshots.RecordSnapshot(ctx, domain.SnapshotKindBaseline,
		fmt.Sprintf("Baseline: %s", baseline.Name), s.Collections(), &tag); snapErr != nil {
		log.Printf("[SESSION] baseline snapshot failed for %s: %v", baseline.Name, snapErr)
	}
	return baseline, nil
}

// Baselines exposes the baseline manager for read paths.
func (s *ProjectSession) Baselines() *versioning.BaselineManager { return s.baselines }

// Snapshots exposes the version-snapshot manager.
func (s *ProjectSession) Snapshots() *versioning.VersionSnapshotManager { return s.snapshots }

// Window exposes the revision-window resolver.
func (s *ProjectSession) Window() *versioning.RevisionWindowResolver { return s.window }

// Labels exposes the revision-label resolver.
func (s *ProjectSession) Labels() *versioning.RevisionLabelResolver { return s.labels }

// Store exposes the underlying file store.
func (s *ProjectSession) Store() *gitstore.Store { return s.store }

// Close cancels the pending auto-save timer and ends the session. It must
// run before another project is opened.
func (s *ProjectSession) Close() {
	s.closeOnce.Do(func() {
		s.snapshots.Close()
		log.Printf("[SESSION] closed project %s (%s)", s.ProjectName, s.ProjectID)
	})
}

func appendArtifact(c *domain.ArtifactCollections, kind domain.ArtifactKind, artifact domain.Artifact) {
	switch kind {
	case domain.ArtifactKindRequirement:
		c.Requirements = append(c.Requirements, artifact)
	case domain.ArtifactKindUseCase:
		c.UseCases = append(c.UseCases, artifact)
	case domain.ArtifactKindTestCase:
		c.TestCases = append(c.TestCases, artifact)
	case domain.ArtifactKindInformation:
		c.Information = append(c.Information, artifact)
	case domain.ArtifactKindRisk:
		c.Risks = append(c.Risks, artifact)
	}
}

func collectionFor(c *domain.ArtifactCollections, kind domain.ArtifactKind) *[]domain.Artifact {
	switch kind {
	case domain.ArtifactKindRequirement:
		return &c.Requirements
	case domain.ArtifactKindUseCase:
		return &c.UseCases
	case domain.ArtifactKindTestCase:
		return &c.TestCases
	case domain.ArtifactKindInformation:
		return &c.Information
	case domain.ArtifactKindRisk:
		return &c.Risks
	}
	return nil
}

func upsertArtifact(c *domain.ArtifactCollections, kind domain.ArtifactKind, artifact domain.Artifact) {
	list := collectionFor(c, kind)
	for i := range *list {
		if (*list)[i].ID == artifact.ID {
			(*list)[i] = artifact
			return
		}
	}
	*list = append(*list, artifact)
}

func removeArtifact(c *domain.ArtifactCollections, kind domain.ArtifactKind, artifactID string) {
	list := collectionFor(c, kind)
	for i := range *list {
		if (*list)[i].ID == artifactID {
			*list = append((*list)[:i], (*list)[i+1:]...)
			return
		}
	}
}
