package ingest

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/doc-intake/constants"
	"github.com/joseph-ayodele/doc-intake/internal/async"
	"github.com/joseph-ayodele/doc-intake/internal/repository"
	"github.com/joseph-ayodele/doc-intake/internal/validate"
)

// IngestionResult is the per-file ingest outcome.
type IngestionResult struct {
	SourcePath   string
	FileID       string
	SHA256       string
	Deduplicated bool
	Queued       bool
	FileExt      string
	SeenAt       time.Time
	Err          string
}

// DirStats summarizes a directory ingest.
type DirStats struct {
	Scanned      uint32
	Matched      uint32
	Succeeded    uint32
	Deduplicated uint32
	Queued       uint32
	Failed       uint32
}

// Ingestor is the behavior the daemon and batch tool depend on.
type Ingestor interface {
	// IngestPath fingerprints a single file and queues it unless it was seen before.
	IngestPath(ctx context.Context, path string) (IngestionResult, error)
	// IngestDirectory ingests all matching files under root.
	IngestDirectory(ctx context.Context, root string, skipHidden bool) ([]IngestionResult, DirStats, error)
}

// Fingerprints records content hashes; repository.DocumentRepository implements it.
type Fingerprints interface {
	UpsertFingerprint(ctx context.Context, fp validate.Fingerprint, fileID uuid.UUID, sourcePath string, seenAt time.Time) (*repository.Document, bool, error)
}

// Enqueuer accepts extraction jobs; *async.ProcessorQueue implements it.
type Enqueuer interface {
	Enqueue(ctx context.Context, job async.Job) error
}

// ExtSet builds a lookup of normalized extensions. Empty input yields the default intake set.
func ExtSet(exts []string) map[string]struct{} {
	if len(exts) == 0 {
		exts = constants.DefaultAllowedExtensions
	}
	set := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		if e = constants.NormalizeExt(e); e != "" {
			set[e] = struct{}{}
		}
	}
	return set
}

func allowed(path string, exts map[string]struct{}) bool {
	_, ok := exts[constants.NormalizeExt(filepath.Ext(path))]
	return ok
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") && base != "." && base != ".."
}
