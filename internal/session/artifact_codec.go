package session

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/reqtrace/reqtrace/internal/domain"
)

// RenderArtifact writes the markdown layout artifact files use on disk. The
// revision line is the field the history views parse back out.
func RenderArtifact(artifact domain.Artifact) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s: %s\n\n", artifact.ID, artifact.Title)
	fmt.Fprintf(&b, "**Status:** %s\n", artifact.Status)
	fmt.Fprintf(&b, "**Revision:** %s\n\n", artifact.Revision)
	if artifact.Description != "" {
		b.WriteString(artifact.Description)
		b.WriteString("\n")
	}
	return b.String()
}

// ParseArtifact reads the fields back out of an artifact file. Unparseable
// lines are skipped; the artifact id comes from the file name, not the
// content.
func ParseArtifact(id, content string) domain.Artifact {
	artifact := domain.Artifact{ID: id}
	var body []string
	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "# "):
			_, title, found := strings.Cut(strings.TrimPrefix(trimmed, "# "), ":")
			if found {
				artifact.Title = strings.TrimSpace(title)
			} else {
				artifact.Title = strings.TrimSpace(strings.TrimPrefix(trimmed, "# "))
			}
		case strings.HasPrefix(trimmed, "**Status:**"):
			artifact.Status = strings.TrimSpace(strings.TrimPrefix(trimmed, "**Status:**"))
		case strings.HasPrefix(trimmed, "**Revision:**"):
			artifact.Revision = strings.TrimSpace(strings.TrimPrefix(trimmed, "**Revision:**"))
		default:
			body = append(body, line)
		}
	}
	artifact.Description = strings.TrimSpace(strings.Join(body, "\n"))
	return artifact
}
