package gitstore

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/reqtrace/reqtrace/internal/domain"
)

const (
	commitAuthorName  = "ReqTrace User"
	commitAuthorEmail = "user@reqtrace.local"

	// Field separator for parsed log output; unlikely to appear in commit
	// messages or author names.
	logFieldSep = "\x1f"
	logFormat   = "%H" + logFieldSep + "%s" + logFieldSep + "%an" + logFieldSep + "%ct"
)

// Store is a commit-log-backed artifact file store rooted at one project
// directory. All paths handed to it are repository-relative.
type Store struct {
	root string
}

// NewStore wraps an existing or to-be-initialized project directory.
func NewStore(root string) *Store {
	return &Store{root: filepath.Clean(root)}
}

// Root returns the project directory the store operates on.
func (s *Store) Root() string {
	return s.root
}

// Ready reports whether the project repository has been initialized. Read
// operations on an unready store return empty results rather than errors.
func (s *Store) Ready() bool {
	info, err := os.Stat(filepath.Join(s.root, ".git"))
	return err == nil && info.IsDir()
}

// Init creates the project directory layout and initializes the repository.
func (s *Store) Init(ctx context.Context) error {
	for _, kind := range domain.ArtifactKinds {
		dir := filepath.Join(s.root, kind.Folder())
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create artifact directory %s: %w", dir, err)
		}
	}
	if s.Ready() {
		return nil
	}
	if _, err := s.git(ctx, "init"); err != nil {
		return fmt.Errorf("failed to initialize repository: %w", err)
	}
	if _, err := s.git(ctx, "config", "user.name", commitAuthorName); err != nil {
		return fmt.Errorf("failed to configure author name: %w", err)
	}
	if _, err := s.git(ctx, "config", "user.email", commitAuthorEmail); err != nil {
		return fmt.Errorf("failed to configure author email: %w", err)
	}
	return nil
}

// WriteArtifact writes an artifact file to the working tree, creating parent
// directories as needed. It does not commit.
func (s *Store) WriteArtifact(filePath, content string) error {
	abs := filepath.Join(s.root, filepath.FromSlash(filePath))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

// ReadArtifact reads an artifact file from the working tree.
func (s *Store) ReadArtifact(filePath string) (string, error) {
	data, err := os.ReadFile(filepath.Join(s.root, filepath.FromSlash(filePath)))
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	return string(data), nil
}

// DeleteArtifact removes an artifact file from the working tree.
func (s *Store) DeleteArtifact(filePath string) error {
	if err := os.Remove(filepath.Join(s.root, filepath.FromSlash(filePath))); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// ListArtifacts returns the markdown file names present for one kind.
func (s *Store) ListArtifacts(kind domain.ArtifactKind) ([]string, error) {
	dir := filepath.Join(s.root, kind.Folder())
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".md") {
			files = append(files, entry.Name())
		}
	}
	return files, nil
}

// CommitArtifact stages one artifact file and commits it. Errors propagate to
// the caller; there is no automatic retry.
func (s *Store) CommitArtifact(ctx context.Context, kind domain.ArtifactKind, artifactID, message string) error {
	if !s.Ready() {
		return fmt.Errorf("project repository not initialized at %s", s.root)
	}
	filePath := kind.FilePath(artifactID)
	if _, err := s.git(ctx, "add", filePath); err != nil {
		return fmt.Errorf("failed to stage %s: %w", filePath, err)
	}
	out, err := s.git(ctx, "commit", "-m", message, "--", filePath)
	if err != nil {
		// Committing an unchanged file is not a failure of the store.
		if strings.Contains(out, "nothing to commit") || strings.Contains(out, "nothing added to commit") {
			return nil
		}
		return fmt.Errorf("failed to commit %s: %w", filePath, err)
	}
	return nil
}

// History returns the commit log for one file, newest-first. An unready store
// or a file with no commits yields an empty slice.
func (s *Store) History(ctx context.Context, filePath string) ([]domain.CommitInfo, error) {
	if !s.Ready() {
		return nil, nil
	}
	out, err := s.git(ctx, "log", "--follow", "--format="+logFormat, "--", filePath)
	if err != nil {
		// A repository with no commits yet has no HEAD to walk.
		if strings.Contains(out, "does not have any commits") {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read history for %s: %w", filePath, err)
	}
	return parseLog(out)
}

// ReadFileAtCommit returns the file content at a specific commit, or nil when
// the path does not exist in that commit's tree.
func (s *Store) ReadFileAtCommit(ctx context.Context, filePath, commitHash string) (*string, error) {
	if !s.Ready() {
		return nil, nil
	}
	cmd := exec.CommandContext(ctx, "git", "show", commitHash+":"+filePath)
	cmd.Dir = s.root
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := stderr.String()
		if strings.Contains(msg, "does not exist") || strings.Contains(msg, "exists on disk, but not in") {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s at %s: %w", filePath, commitHash, err)
	}
	content := stdout.String()
	return &content, nil
}

// StatusSummary lists uncommitted working-tree changes by class.
type StatusSummary struct {
	New      []string `json:"new"`
	Modified []string `json:"modified"`
	Deleted  []string `json:"deleted"`
}

// Clean reports whether the working tree has no uncommitted changes.
func (s StatusSummary) Clean() bool {
	return len(s.New) == 0 && len(s.Modified) == 0 && len(s.Deleted) == 0
}

// Status classifies uncommitted working-tree changes. An unready store is
// reported as clean.
func (s *Store) Status(ctx context.Context) (StatusSummary, error) {
	var summary StatusSummary
	if !s.Ready() {
		return summary, nil
	}
	// -uall lists untracked files individually instead of collapsing
	// untracked directories.
	out, err := s.git(ctx, "status", "--porcelain", "-uall")
	if err != nil {
		return StatusSummary{}, fmt.Errorf("failed to read status: %w", err)
	}
	for _, line := range strings.Split(out, "\n") {
		// Porcelain lines are "XY path"; X is the index state, Y the
		// working-tree state.
		if len(line) < 4 {
			continue
		}
		code := line[:2]
		path := strings.TrimSpace(line[3:])
		switch {
		case code == "??" || strings.Contains(code, "A"):
			summary.New = append(summary.New, path)
		case strings.Contains(code, "D"):
			summary.Deleted = append(summary.Deleted, path)
		default:
			summary.Modified = append(summary.Modified, path)
		}
	}
	return summary, nil
}

func parseLog(out string) ([]domain.CommitInfo, error) {
	var commits []domain.CommitInfo
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, logFieldSep, 4)
		if len(fields) != 4 {
			log.Printf("[GIT] skipping malformed log line: %q", line)
			continue
		}
		seconds, err := strconv.ParseInt(fields[3], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse commit timestamp %q: %w", fields[3], err)
		}
		commits = append(commits, domain.CommitInfo{
			Hash:        fields[0],
			Message:     fields[1],
			Author:      fields[2],
			TimestampMs: seconds * 1000,
		})
	}
	return commits, nil
}

// git runs one git command in the store's root and returns combined output,
// which callers inspect to classify expected conditions.
func (s *Store) git(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = s.root
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	err := cmd.Run()
	return buf.String(), err
}
