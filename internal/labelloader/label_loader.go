package labelloader

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/graph-gophers/dataloader"

	"github.com/reqtrace/reqtrace/internal/domain"
	"github.com/reqtrace/reqtrace/internal/versioning"
)

// LabelResolver resolves one revision label from file content at a commit.
type LabelResolver interface {
	LabelAtCommit(ctx context.Context, kind domain.ArtifactKind, filePath, commitHash string) string
}

// LabelLoader batches and caches revision-label reads while one history
// table renders: duplicate path@hash pairs resolve once per request.
type LabelLoader struct {
	Loader *dataloader.Loader
}

// Key encodes one label lookup.
type Key struct {
	Kind     domain.ArtifactKind
	FilePath string
	Hash     string
}

func (k Key) String() string {
	return fmt.Sprintf("%s|%s|%s", k.Kind, k.FilePath, k.Hash)
}

func (k Key) Raw() interface{} { return k }

func parseKey(raw string) (Key, error) {
	parts := strings.SplitN(raw, "|", 3)
	if len(parts) != 3 {
		return Key{}, fmt.Errorf("malformed label key %q", raw)
	}
	kind, err := domain.ParseArtifactKind(parts[0])
	if err != nil {
		return Key{}, err
	}
	return Key{Kind: kind, FilePath: parts[1], Hash: parts[2]}, nil
}

// NewLabelLoader builds a per-request loader over the label resolver. Label
// resolution never errors (unresolvable rows carry the sentinel), so every
// result is a plain string.
func NewLabelLoader(labels LabelResolver) *LabelLoader {
	batchFn := func(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
		results := make([]*dataloader.Result, len(keys))
		for i, k := range keys {
			key, err := parseKey(k.String())
			if err != nil {
				results[i] = &dataloader.Result{Error: err}
				continue
			}
			results[i] = &dataloader.Result{
				Data: labels.LabelAtCommit(ctx, key.Kind, key.FilePath, key.Hash),
			}
		}
		return results
	}

	loader := dataloader.NewBatchedLoader(batchFn, dataloader.WithWait(5*time.Millisecond))

	return &LabelLoader{Loader: loader}
}

// Labels resolves every key through one batch window: all loads are issued
// before the first thunk is awaited, so a whole history table shares a single
// wait period instead of paying it per row.
func (l *LabelLoader) Labels(ctx context.Context, keys []Key) []string {
	thunks := make([]dataloader.Thunk, len(keys))
	for i, key := range keys {
		thunks[i] = l.Loader.Load(ctx, key)
	}
	labels := make([]string, len(keys))
	for i, thunk := range thunks {
		value, err := thunk()
		if err != nil {
			labels[i] = versioning.RevisionLabelSentinel
			continue
		}
		label, ok := value.(string)
		if !ok {
			label = versioning.RevisionLabelSentinel
		}
		labels[i] = label
	}
	return labels
}
