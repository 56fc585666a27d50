package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/reqtrace/reqtrace/internal/domain"
	"github.com/reqtrace/reqtrace/internal/versioning"
)

// Format selects the document writer.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

// RevisionRow is one line of the revision-history section.
type RevisionRow struct {
	ArtifactID  string              `json:"artifactId"`
	Kind        domain.ArtifactKind `json:"kind"`
	Revision    string              `json:"revision"`
	Message     string              `json:"message"`
	Author      string              `json:"author"`
	Hash        string              `json:"hash"`
	TimestampMs int64               `json:"timestampMs"`
}

// RevisionHistorySection is the assembled section for one export. A nil
// section means the window was empty and the section is omitted entirely.
type RevisionHistorySection struct {
	Scope        string        `json:"scope"`
	SinceMs      *int64        `json:"sinceMs,omitempty"`
	Rows         []RevisionRow `json:"rows"`
	GeneratedAt  time.Time     `json:"generatedAt"`
	ProjectName  string        `json:"projectName"`
	BaselineName string        `json:"baselineName,omitempty"`
}

// Service assembles revision-history sections and writes them out as Excel
// or CSV documents.
type Service struct {
	baselines *versioning.BaselineManager
	window    *versioning.RevisionWindowResolver
	labels    *versioning.RevisionLabelResolver
	artifacts versioning.ArtifactLister

	projectName string
	exportDir   string
	now         func() time.Time
}

// Option adjusts service construction.
type Option func(*Service)

// WithExportDirectory overrides where generated files land.
func WithExportDirectory(dir string) Option {
	return func(s *Service) {
		if strings.TrimSpace(dir) != "" {
			s.exportDir = filepath.Clean(dir)
		}
	}
}

// WithNow injects a deterministic clock for file naming and headers.
func WithNow(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService builds an export service over one project session's resolvers.
func NewService(
	projectName string,
	baselines *versioning.BaselineManager,
	window *versioning.RevisionWindowResolver,
	labels *versioning.RevisionLabelResolver,
	artifacts versioning.ArtifactLister,
	opts ...Option,
) *Service {
	service := &Service{
		baselines:   baselines,
		window:      window,
		labels:      labels,
		artifacts:   artifacts,
		projectName: projectName,
		exportDir:   filepath.Join(os.TempDir(), "reqtrace-exports"),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// BuildRevisionHistory assembles the section for either the current state
// (nil target) or a specific baseline. The window opens just after the most
// recently relevant earlier baseline; a baseline export is additionally
// bounded above by the baseline's own timestamp. Returns nil when the
// resulting commit set is empty: consumers omit the section entirely.
func (s *Service) BuildRevisionHistory(ctx context.Context, target *uuid.UUID) (*RevisionHistorySection, error) {
	previous, err := s.baselines.PreviousBaseline(ctx, target)
	if err != nil {
		return nil, err
	}

	var sinceMs *int64
	if previous != nil {
		ts := previous.TimestampMs
		sinceMs = &ts
	}

	section := &RevisionHistorySection{
		Scope:       "current",
		SinceMs:     sinceMs,
		GeneratedAt: s.now(),
		ProjectName: s.projectName,
	}

	var tracked []domain.TrackedArtifact
	var upperMs *int64
	if target == nil {
		tracked, err = s.artifacts.TrackedArtifacts(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to enumerate artifacts for export: %w", err)
		}
	} else {
		baseline, getErr := s.baselines.GetBaseline(ctx, *target)
		if getErr != nil {
			return nil, getErr
		}
		section.Scope = "baseline"
		section.BaselineName = baseline.Name
		upperMs = &baseline.TimestampMs
		for id, ref := range baseline.ArtifactCommits {
			tracked = append(tracked, domain.NewTrackedArtifact(ref.Kind, id))
		}
		// Map iteration order would shuffle rows between exports of the
		// same baseline.
		sortTracked(tracked)
	}

	swept := s.window.SweepSince(ctx, tracked, sinceMs)
	for _, artifact := range tracked {
		for _, commit := range swept[artifact.ID] {
			if upperMs != nil && commit.TimestampMs > *upperMs {
				continue
			}
			section.Rows = append(section.Rows, RevisionRow{
				ArtifactID:  artifact.ID,
				Kind:        artifact.Kind,
				Revision:    s.labels.LabelAtCommit(ctx, artifact.Kind, artifact.FilePath, commit.Hash),
				Message:     commit.Message,
				Author:      commit.Author,
				Hash:        commit.Hash,
				TimestampMs: commit.TimestampMs,
			})
		}
	}

	if len(section.Rows) == 0 {
		return nil, nil
	}
	return section, nil
}

// ExportRevisionHistory builds the section and writes it in the requested
// format. An empty window yields no file and an empty path.
func (s *Service) ExportRevisionHistory(ctx context.Context, target *uuid.UUID, format Format) (string, error) {
	section, err := s.BuildRevisionHistory(ctx, target)
	if err != nil {
		return "", err
	}
	if section == nil {
		log.Printf("[EXPORT] revision history empty for project %s, section omitted", s.projectName)
		return "", nil
	}

	if err := os.MkdirAll(s.exportDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}

	switch format {
	case FormatXLSX:
		return s.writeExcel(section)
	case FormatCSV:
		return s.writeCSV(section)
	default:
		return "", fmt.Errorf("unsupported export format %q", format)
	}
}

// sortTracked orders artifacts kind-first (in the canonical kind order),
// then by id, so repeated exports of one baseline produce identical rows.
func sortTracked(tracked []domain.TrackedArtifact) {
	rank := make(map[domain.ArtifactKind]int, len(domain.ArtifactKinds))
	for i, kind := range domain.ArtifactKinds {
		rank[kind] = i
	}
	sort.Slice(tracked, func(i, j int) bool {
		if tracked[i].Kind != tracked[j].Kind {
			return rank[tracked[i].Kind] < rank[tracked[j].Kind]
		}
		return tracked[i].ID < tracked[j].ID
	})
}

var sectionHeader = []string{"Artifact", "Kind", "Revision", "Date", "Author", "Message", "Commit"}

func (s *Service) writeExcel(section *RevisionHistorySection) (string, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Revision History"
	index, err := f.NewSheet(sheet)
	if err != nil {
		return "", fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return "", fmt.Errorf("failed to drop default sheet: %w", err)
	}

	for col, title := range sectionHeader {
		cell, cellErr := excelize.CoordinatesToCellName(col+1, 1)
		if cellErr != nil {
			return "", cellErr
		}
		if err := f.SetCellValue(sheet, cell, title); err != nil {
			return "", fmt.Errorf("failed to write header: %w", err)
		}
	}

	for i, row := range section.Rows {
		values := []any{
			row.ArtifactID,
			string(row.Kind),
			row.Revision,
			time.UnixMilli(row.TimestampMs).Format("2006-01-02 15:04"),
			row.Author,
			row.Message,
			shortHash(row.Hash),
		}
		for col, value := range values {
			cell, cellErr := excelize.CoordinatesToCellName(col+1, i+2)
			if cellErr != nil {
				return "", cellErr
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return "", fmt.Errorf("failed to write row %d: %w", i+1, err)
			}
		}
	}

	path := s.exportPath("xlsx")
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("failed to save excel export: %w", err)
	}
	log.Printf("[EXPORT] wrote %d revision rows to %s", len(section.Rows), path)
	return path, nil
}

func (s *Service) writeCSV(section *RevisionHistorySection) (string, error) {
	path := s.exportPath("csv")
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create csv export: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(sectionHeader); err != nil {
		return "", fmt.Errorf("failed to write header: %w", err)
	}
	for _, row := range section.Rows {
		record := []string{
			row.ArtifactID,
			string(row.Kind),
			row.Revision,
			strconv.FormatInt(row.TimestampMs, 10),
			row.Author,
			row.Message,
			row.Hash,
		}
		if err := writer.Write(record); err != nil {
			return "", fmt.Errorf("failed to write row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", fmt.Errorf("failed to flush csv export: %w", err)
	}
	log.Printf("[EXPORT] wrote %d revision rows to %s", len(section.Rows), path)
	return path, nil
}

func (s *Service) exportPath(ext string) string {
	name := fmt.Sprintf("%s-revision-history-%s.%s",
		sanitizeFileName(s.projectName), s.now().Format("20060102-150405"), ext)
	return filepath.Join(s.exportDir, name)
}

func sanitizeFileName(name string) string {
	name = strings.TrimSpace(strings.ToLower(name))
	if name == "" {
		return "project"
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	return strings.Trim(b.String(), "-")
}

func shortHash(hash string) string {
	if len(hash) > 8 {
		return hash[:8]
	}
	return hash
}
