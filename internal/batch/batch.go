// Package batch runs the OCR pipeline over a directory of local scans.
package batch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/guard-registry/constants"
	"github.com/joseph-ayodele/guard-registry/internal/common"
	"github.com/joseph-ayodele/guard-registry/internal/identity"
	"github.com/joseph-ayodele/guard-registry/internal/pipeline"
)

type BytesProcessor interface {
	ProcessBytes(ctx context.Context, raw []byte) (pipeline.Result, error)
}

type FileResult struct {
	Path         string
	HashHex      string
	Record       identity.Record
	Deduplicated bool
	Err          string
}

type DirStats struct {
	Scanned      uint32
	Matched      uint32
	Succeeded    uint32
	Deduplicated uint32
	Failed       uint32
}

type Runner struct {
	processor   BytesProcessor
	concurrency int
	skipHidden  bool
	logger      *slog.Logger
}

func NewRunner(processor BytesProcessor, concurrency int, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if concurrency <= 0 {
		concurrency = 2
	}
	return &Runner{processor: processor, concurrency: concurrency, skipHidden: true, logger: logger}
}

// ProcessDirectory walks root, keeps files with an accepted extension and runs each
// distinct file (by content hash) through the pipeline. Results are sorted by path.
// Per-file failures are reported in the results; only a failed walk returns an error.
func (r *Runner) ProcessDirectory(ctx context.Context, root string) ([]FileResult, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, common.NewAppError(common.CodeInvalidInput, "directory is required", common.ErrInvalidInput)
	}

	var (
		stats DirStats
		paths []string
	)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if path != root && r.skipHidden && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		stats.Scanned++
		if !constants.IsAllowedExt(filepath.Ext(path)) {
			return nil
		}
		stats.Matched++
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, stats, common.WrapError(err, "walk directory")
	}

	// Hash serially in path order so the first copy of a duplicate always wins.
	sort.Strings(paths)
	results := make([]FileResult, len(paths))
	seen := map[string]string{}
	var todo []int
	for i, path := range paths {
		hashHex, err := hashFile(path)
		if err != nil {
			results[i] = FileResult{Path: path, Err: err.Error()}
			continue
		}
		if first, dup := seen[hashHex]; dup {
			r.logger.Debug("batch.file.duplicate", "path", path, "same_as", first)
			results[i] = FileResult{Path: path, HashHex: hashHex, Deduplicated: true}
			continue
		}
		seen[hashHex] = path
		results[i] = FileResult{Path: path, HashHex: hashHex}
		todo = append(todo, i)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for _, i := range todo {
		g.Go(func() error {
			results[i] = r.processFile(gctx, results[i])
			return nil
		})
	}
	_ = g.Wait()

	for _, res := range results {
		switch {
		case res.Err != "":
			stats.Failed++
		case res.Deduplicated:
			stats.Deduplicated++
		default:
			stats.Succeeded++
		}
	}

	r.logger.Info("batch.done",
		"root", root,
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"succeeded", stats.Succeeded,
		"deduplicated", stats.Deduplicated,
		"failed", stats.Failed,
	)
	return results, stats, nil
}

func (r *Runner) processFile(ctx context.Context, res FileResult) FileResult {
	if err := ctx.Err(); err != nil {
		res.Err = err.Error()
		return res
	}
	raw, err := os.ReadFile(res.Path)
	if err != nil {
		res.Err = err.Error()
		return res
	}
	out, err := r.processor.ProcessBytes(ctx, raw)
	if err != nil {
		r.logger.Warn("batch.file.failed", "path", res.Path, "code", common.CodeOf(err), "error", err)
		res.Err = err.Error()
		return res
	}
	res.Record = out.Record
	return res
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Errors collects per-file failures into one error, or nil.
func Errors(results []FileResult) error {
	var errs []error
	for _, r := range results {
		if r.Err != "" {
			errs = append(errs, errors.New(r.Path+": "+r.Err))
		}
	}
	return errors.Join(errs...)
}
