package labelloader

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/reqtrace/reqtrace/internal/domain"
)

// countingResolver answers instantly and counts how often it is asked.
type countingResolver struct {
	calls int64
}

func (r *countingResolver) LabelAtCommit(_ context.Context, _ domain.ArtifactKind, _ string, hash string) string {
	atomic.AddInt64(&r.calls, 1)
	return "rev-" + hash
}

func TestLabelsResolveInOneBatchWindow(t *testing.T) {
	resolver := &countingResolver{}
	loader := NewLabelLoader(resolver)

	keys := make([]Key, 20)
	for i := range keys {
		keys[i] = Key{
			Kind:     domain.ArtifactKindRequirement,
			FilePath: "requirements/REQ-001.md",
			Hash:     fmt.Sprintf("c%03d", i),
		}
	}

	start := time.Now()
	labels := loader.Labels(context.Background(), keys)
	elapsed := time.Since(start)

	if len(labels) != len(keys) {
		t.Fatalf("expected %d labels, got %d", len(keys), len(labels))
	}
	for i, label := range labels {
		if expected := "rev-" + keys[i].Hash; label != expected {
			t.Errorf("key %d: expected %q, got %q", i, expected, label)
		}
	}
	// All loads share one wait window. Resolving each key in its own
	// single-key batch would pay the window per key (at least 100ms for 20
	// keys at 5ms each).
	if elapsed > 60*time.Millisecond {
		t.Errorf("20 keys took %s; loads are not sharing a batch window", elapsed)
	}
}

func TestLabelsDeduplicateRepeatedKeys(t *testing.T) {
	resolver := &countingResolver{}
	loader := NewLabelLoader(resolver)

	key := Key{Kind: domain.ArtifactKindTestCase, FilePath: "testcases/TC-001.md", Hash: "abc123"}
	other := Key{Kind: domain.ArtifactKindTestCase, FilePath: "testcases/TC-001.md", Hash: "def456"}
	labels := loader.Labels(context.Background(), []Key{key, other, key, key})

	if labels[0] != "rev-abc123" || labels[2] != "rev-abc123" || labels[3] != "rev-abc123" {
		t.Errorf("repeated key resolved inconsistently: %v", labels)
	}
	if labels[1] != "rev-def456" {
		t.Errorf("expected rev-def456, got %q", labels[1])
	}
	if calls := atomic.LoadInt64(&resolver.calls); calls != 2 {
		t.Errorf("expected 2 resolver calls for 2 distinct keys, got %d", calls)
	}
}
