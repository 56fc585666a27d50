package versioning

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/reqtrace/reqtrace/internal/domain"
)

// fakeStore is an in-memory ArtifactFileStore. Histories are stored
// newest-first, matching the store convention.
type fakeStore struct {
	histories map[string][]domain.CommitInfo
	contents  map[string]string
	failures  map[string]error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		histories: make(map[string][]domain.CommitInfo),
		contents:  make(map[string]string),
		failures:  make(map[string]error),
	}
}

func (s *fakeStore) addCommit(filePath, hash, message string, timestampMs int64, content string) {
	commit := domain.CommitInfo{Hash: hash, Message: message, Author: "tester", TimestampMs: timestampMs}
	s.histories[filePath] = append([]domain.CommitInfo{commit}, s.histories[filePath]...)
	s.contents[filePath+"@"+hash] = content
}

func (s *fakeStore) History(_ context.Context, filePath string) ([]domain.CommitInfo, error) {
	if err := s.failures[filePath]; err != nil {
		return nil, err
	}
	history := make([]domain.CommitInfo, len(s.histories[filePath]))
	copy(history, s.histories[filePath])
	return history, nil
}

func (s *fakeStore) ReadFileAtCommit(_ context.Context, filePath, commitHash string) (*string, error) {
	if err := s.failures[filePath]; err != nil {
		return nil, err
	}
	content, ok := s.contents[filePath+"@"+commitHash]
	if !ok {
		return nil, nil
	}
	return &content, nil
}

// fakeLister serves a fixed tracked-artifact list.
type fakeLister struct {
	artifacts []domain.TrackedArtifact
	err       error
}

func (l *fakeLister) TrackedArtifacts(_ context.Context) ([]domain.TrackedArtifact, error) {
	return l.artifacts, l.err
}

// fixedClock always reports the same instant until advanced.
type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFixedClock(ms int64) *fixedClock {
	return &fixedClock{now: time.UnixMilli(ms)}
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// manualScheduler collects scheduled tasks; tests fire them explicitly.
type manualScheduler struct {
	mu    sync.Mutex
	tasks []*manualTask
}

type manualTask struct {
	fn        func()
	cancelled bool
	fired     bool
}

func (t *manualTask) Cancel() { t.cancelled = true }

func (s *manualScheduler) Schedule(_ time.Duration, fn func()) ScheduledTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	task := &manualTask{fn: fn}
	s.tasks = append(s.tasks, task)
	return task
}

// firePending runs every task that is still live, as if its quiet period
// elapsed. Returns how many fired.
func (s *manualScheduler) firePending() int {
	s.mu.Lock()
	pending := make([]*manualTask, 0, len(s.tasks))
	for _, task := range s.tasks {
		if !task.cancelled && !task.fired {
			task.fired = true
			pending = append(pending, task)
		}
	}
	s.mu.Unlock()
	for _, task := range pending {
		task.fn()
	}
	return len(pending)
}

// fireLate runs task i's callback even if it was cancelled, modeling a
// timer that had already popped when Cancel arrived.
func (s *manualScheduler) fireLate(i int) {
	s.mu.Lock()
	task := s.tasks[i]
	task.fired = true
	s.mu.Unlock()
	task.fn()
}

func (s *manualScheduler) scheduledCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// liveState is a minimal CollectionsAccessor.
type liveState struct {
	mu          sync.Mutex
	collections domain.ArtifactCollections
}

func (l *liveState) Collections() domain.ArtifactCollections {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.collections.Clone()
}

func (l *liveState) SetCollections(collections domain.ArtifactCollections) {
	l.mu.Lock()
	l.collections = collections
	l.mu.Unlock()
}

func requirementContent(id, revision string) string {
	return fmt.Sprintf("# %s: Example\n\n**Status:** approved\n**Revision:** %s\n\nBody text.\n", id, revision)
}
