package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/joseph-ayodele/doc-intake/constants"
	"github.com/joseph-ayodele/doc-intake/internal/async"
	"github.com/joseph-ayodele/doc-intake/internal/common"
	"github.com/joseph-ayodele/doc-intake/internal/pipeline"
	"github.com/joseph-ayodele/doc-intake/internal/validate"
)

// FSIngestor reads from the local filesystem.
type FSIngestor struct {
	docs        Fingerprints
	queue       Enqueuer
	allowedExts map[string]struct{}
	force       bool
	logger      *slog.Logger
	now         func() time.Time

	// used when no Fingerprints store is configured
	mu   sync.Mutex
	seen map[string]struct{}
}

type FSOption func(*FSIngestor)

// WithAllowedExts restricts discovery to the given extensions.
func WithAllowedExts(exts []string) FSOption {
	return func(i *FSIngestor) { i.allowedExts = ExtSet(exts) }
}

// WithForce queues files even when their content was seen before.
func WithForce(force bool) FSOption {
	return func(i *FSIngestor) { i.force = force }
}

// NewFSIngestor builds an ingestor. docs may be nil, in which case dedup only spans this process.
func NewFSIngestor(docs Fingerprints, queue Enqueuer, logger *slog.Logger, opts ...FSOption) *FSIngestor {
	if logger == nil {
		logger = slog.Default()
	}
	i := &FSIngestor{
		docs:        docs,
		queue:       queue,
		allowedExts: ExtSet(nil),
		logger:      logger,
		now:         time.Now,
		seen:        map[string]struct{}{},
	}
	for _, o := range opts {
		o(i)
	}
	return i
}

func (i *FSIngestor) IngestPath(ctx context.Context, path string) (IngestionResult, error) {
	out := IngestionResult{SourcePath: path}

	abs, err := filepath.Abs(path)
	if err != nil {
		return out, fmt.Errorf("abs path: %w", err)
	}
	out.SourcePath = abs

	ext := constants.NormalizeExt(filepath.Ext(abs))
	if ext == "" || !allowed(abs, i.allowedExts) {
		i.logger.Debug("ingest.skipped", "path", abs, "extension", ext)
		return out, common.NewAppError("UNSUPPORTED_EXTENSION", fmt.Sprintf("unsupported or missing extension: %q", ext), common.ErrInvalidInput)
	}
	out.FileExt = ext

	data, err := os.ReadFile(abs)
	if err != nil {
		i.logger.Error("ingest.read_failed", "path", abs, "error", err)
		return out, fmt.Errorf("read: %w", err)
	}
	fp := validate.FingerprintOf(data, abs, "")
	now := i.now().UTC()
	out.SHA256 = fp.SHA256
	out.SeenAt = now

	fileID := validate.GenerateFileID(fp.SHA256, now)
	dedup := false
	if i.docs != nil {
		doc, existed, err := i.docs.UpsertFingerprint(ctx, fp, fileID, abs, now)
		if err != nil {
			return out, err
		}
		fileID, dedup, out.SeenAt = doc.FileID, existed, doc.FirstSeenAt
	} else {
		dedup = i.markSeen(fp.SHA256)
	}
	out.FileID = fileID.String()
	out.Deduplicated = dedup

	if dedup && !i.force {
		i.logger.Info("ingest.deduplicated", "path", abs, "sha256", fp.SHA256, "file_id", out.FileID)
		return out, nil
	}
	if i.queue != nil {
		job := async.Job{
			Input:       pipeline.Input{Path: abs},
			SubmittedAt: now,
			TraceID:     common.RequestIDFromContext(ctx),
		}
		if err := i.queue.Enqueue(ctx, job); err != nil {
			return out, fmt.Errorf("enqueue %s: %w", abs, err)
		}
		out.Queued = true
	}
	i.logger.Info("ingest.accepted", "path", abs, "sha256", fp.SHA256, "file_id", out.FileID, "queued", out.Queued)
	return out, nil
}

func (i *FSIngestor) markSeen(sha string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	if _, ok := i.seen[sha]; ok {
		return true
	}
	i.seen[sha] = struct{}{}
	return false
}

// IngestDirectory walks root, skips hidden entries if requested,
// and calls IngestPath for each matching file. Returns per-file results + aggregate stats.
func (i *FSIngestor) IngestDirectory(ctx context.Context, root string, skipHidden bool) ([]IngestionResult, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, common.NewAppError("INVALID_ROOT", "root path is required", common.ErrInvalidInput)
	}

	var results []IngestionResult
	var stats DirStats

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Scanned++
		if walkErr != nil {
			if path == root {
				return walkErr
			}
			results = append(results, IngestionResult{SourcePath: path, Err: walkErr.Error()})
			stats.Failed++
			return nil
		}
		if skipHidden && path != root && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !allowed(path, i.allowedExts) {
			return nil
		}
		stats.Matched++

		res, err := i.IngestPath(ctx, path)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			res.Err = err.Error()
			results = append(results, res)
			stats.Failed++
			return nil
		}
		results = append(results, res)
		stats.Succeeded++
		if res.Deduplicated {
			stats.Deduplicated++
		}
		if res.Queued {
			stats.Queued++
		}
		return nil
	})
	i.logger.Info("ingest.directory.done", "root", root, "scanned", stats.Scanned, "matched", stats.Matched,
		"succeeded", stats.Succeeded, "deduplicated", stats.Deduplicated, "failed", stats.Failed)
	if err != nil {
		return results, stats, fmt.Errorf("walk: %w", err)
	}
	return results, stats, nil
}
