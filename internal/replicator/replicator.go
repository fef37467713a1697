package replicator

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"textdedup/internal/domain"
)

// TreeReplicator writes kept documents under an output root at their
// input-relative paths.
type TreeReplicator struct {
	logger zerolog.Logger
}

func New(logger zerolog.Logger) *TreeReplicator {
	return &TreeReplicator{logger: logger.With().Str("component", "replicator").Logger()}
}

// Prepare creates the output root and removes every file under it that is
// not in keep, along with directories left empty. keep holds
// slash-separated paths relative to the root, so the tree holds only this
// run's output afterwards.
func (r *TreeReplicator) Prepare(outputRoot string, keep []string) error {
	if err := os.MkdirAll(outputRoot, 0o755); err != nil {
		return fmt.Errorf("create output %s: %w", outputRoot, err)
	}
	want := make(map[string]struct{}, len(keep))
	for _, k := range keep {
		want[filepath.FromSlash(k)] = struct{}{}
	}

	var dirs []string
	err := filepath.WalkDir(outputRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == outputRoot {
			return nil
		}
		if d.IsDir() {
			dirs = append(dirs, path)
			return nil
		}
		rel, err := filepath.Rel(outputRoot, path)
		if err != nil {
			return err
		}
		if _, ok := want[rel]; ok {
			return nil
		}
		r.logger.Info().Str("file", filepath.ToSlash(rel)).Msg("removed stale output")
		return os.Remove(path)
	})
	if err != nil {
		return fmt.Errorf("prune output %s: %w", outputRoot, err)
	}
	// Deepest first; non-empty directories stay.
	for i := len(dirs) - 1; i >= 0; i-- {
		_ = os.Remove(dirs[i])
	}
	return nil
}

// Copy writes every document and keeps going past individual failures,
// which are returned as ErrWriteFailure file errors. It stops early only
// when ctx is cancelled.
func (r *TreeReplicator) Copy(ctx context.Context, outputRoot string, docs []domain.Document) (int, []*domain.FileError) {
	copied := 0
	var failures []*domain.FileError
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			failures = append(failures, domain.NewFileError(doc.RelPath, domain.ErrWriteFailure, err))
			break
		}
		dst := filepath.Join(outputRoot, filepath.FromSlash(doc.RelPath))
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			r.logger.Error().Err(err).Str("file", doc.RelPath).Msg("create directory failed")
			failures = append(failures, domain.NewFileError(doc.RelPath, domain.ErrWriteFailure, err))
			continue
		}
		if err := os.WriteFile(dst, []byte(doc.Content), 0o644); err != nil {
			r.logger.Error().Err(err).Str("file", doc.RelPath).Msg("write failed")
			failures = append(failures, domain.NewFileError(doc.RelPath, domain.ErrWriteFailure, err))
			continue
		}
		r.logger.Info().Str("file", doc.RelPath).Str("dest", dst).Msg("copied")
		copied++
	}
	return copied, failures
}
