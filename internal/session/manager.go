package session

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/reqtrace/reqtrace/internal/repository"
	"github.com/reqtrace/reqtrace/internal/versioning"
)

// Manager holds the single active project session. Opening a project closes
// the previous session first, which cancels its pending auto-save timer
// before any state of the next project is touched.
type Manager struct {
	dataDir   string
	baselines repository.BaselineRepository
	snapshots repository.SnapshotRepository

	mu     sync.Mutex
	active *ProjectSession
}

// NewManager builds a session manager rooted at dataDir; each project lives
// in its own subdirectory.
func NewManager(dataDir string, baselines repository.BaselineRepository, snapshots repository.SnapshotRepository) *Manager {
	return &Manager{
		dataDir:   dataDir,
		baselines: baselines,
		snapshots: snapshots,
	}
}

// OpenProject switches the active session to the given project.
func (m *Manager) OpenProject(ctx context.Context, projectID uuid.UUID, projectName string) (*ProjectSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil {
		if m.active.ProjectID == projectID {
			return m.active, nil
		}
		m.active.Close()
		m.active = nil
	}

	sess, err := Open(ctx, Config{
		ProjectID:   projectID,
		ProjectName: projectName,
		ProjectDir:  filepath.Join(m.dataDir, projectID.String()),
		Baselines:   m.baselines,
		Snapshots:   m.snapshots,
		Clock:       versioning.SystemClock{},
	})
	if err != nil {
		return nil, err
	}
	m.active = sess
	return sess, nil
}

// Active returns the current session, or an error when no project is open.
func (m *Manager) Active(projectID uuid.UUID) (*ProjectSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil || m.active.ProjectID != projectID {
		return nil, fmt.Errorf("project %s is not open", projectID)
	}
	return m.active, nil
}

// CloseActive tears down the current session, if any.
func (m *Manager) CloseActive() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active != nil {
		m.active.Close()
		m.active = nil
	}
}
