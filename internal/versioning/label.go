package versioning

import (
	"bufio"
	"context"
	"strings"

	"github.com/reqtrace/reqtrace/internal/domain"
)

// RevisionLabelSentinel is returned when a revision label cannot be resolved
// for a commit: missing content, a corrupt file, or an absent field.
const RevisionLabelSentinel = "—"

// RevisionLabelResolver extracts the human-facing "revision" label out of
// artifact content retrieved at a specific commit. It never returns an
// error: each history row resolves independently, so one corrupt commit
// cannot blank an entire table.
type RevisionLabelResolver struct {
	store ArtifactFileStore
}

// NewRevisionLabelResolver builds a resolver over the given store.
func NewRevisionLabelResolver(store ArtifactFileStore) *RevisionLabelResolver {
	return &RevisionLabelResolver{store: store}
}

// LabelAtCommit reads the file content at commitHash and parses the revision
// field with the parser bound to the artifact kind.
func (r *RevisionLabelResolver) LabelAtCommit(ctx context.Context, kind domain.ArtifactKind, filePath, commitHash string) string {
	content, err := r.store.ReadFileAtCommit(ctx, filePath, commitHash)
	if err != nil || content == nil {
		return RevisionLabelSentinel
	}
	var label string
	var ok bool
	switch kind {
	case domain.ArtifactKindRequirement:
		label, ok = parseRequirementRevision(*content)
	case domain.ArtifactKindUseCase:
		label, ok = parseUseCaseRevision(*content)
	case domain.ArtifactKindTestCase:
		label, ok = parseTestCaseRevision(*content)
	case domain.ArtifactKindInformation:
		label, ok = parseInformationRevision(*content)
	case domain.ArtifactKindRisk:
		label, ok = parseRiskRevision(*content)
	}
	if !ok {
		return RevisionLabelSentinel
	}
	return label
}

func parseRequirementRevision(content string) (string, bool) {
	return parseBoldField(content, "Revision")
}

func parseUseCaseRevision(content string) (string, bool) {
	return parseBoldField(content, "Revision")
}

func parseTestCaseRevision(content string) (string, bool) {
	return parseBoldField(content, "Revision")
}

// Information notes predate the bold-field template and may still carry a
// frontmatter header, so both layouts are accepted.
func parseInformationRevision(content string) (string, bool) {
	if label, ok := parseBoldField(content, "Revision"); ok {
		return label, true
	}
	return parseFrontmatterField(content, "revision")
}

func parseRiskRevision(content string) (string, bool) {
	return parseBoldField(content, "Revision")
}

// parseBoldField scans for a "**Name:** value" line in the artifact body.
func parseBoldField(content, name string) (string, bool) {
	prefix := "**" + name + ":**"
	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, prefix) {
			continue
		}
		value := strings.TrimSpace(strings.TrimPrefix(line, prefix))
		if value == "" {
			return "", false
		}
		return value, true
	}
	return "", false
}

// parseFrontmatterField scans a leading "---" delimited header for a
// "name: value" entry.
func parseFrontmatterField(content, name string) (string, bool) {
	scanner := bufio.NewScanner(strings.NewReader(content))
	if !scanner.Scan() || strings.TrimSpace(scanner.Text()) != "---" {
		return "", false
	}
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "---" {
			break
		}
		key, value, found := strings.Cut(line, ":")
		if !found || strings.TrimSpace(key) != name {
			continue
		}
		value = strings.Trim(strings.TrimSpace(value), `"'`)
		if value == "" {
			return "", false
		}
		return value, true
	}
	return "", false
}
