package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/joseph-ayodele/doc-intake/internal/async"
	"github.com/joseph-ayodele/doc-intake/internal/common"
	"github.com/joseph-ayodele/doc-intake/internal/export"
	"github.com/joseph-ayodele/doc-intake/internal/ingest"
	"github.com/joseph-ayodele/doc-intake/internal/pipeline"
	repo "github.com/joseph-ayodele/doc-intake/internal/repository"
	"github.com/joseph-ayodele/doc-intake/internal/rules"
	svc "github.com/joseph-ayodele/doc-intake/internal/server"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

// collector gathers the jobs the directory walk would otherwise queue.
type collector struct {
	mu   sync.Mutex
	jobs []async.Job
}

func (c *collector) Enqueue(_ context.Context, job async.Job) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.jobs = append(c.jobs, job)
	return nil
}

func main() {
	var (
		dir        = flag.String("dir", "", "directory of documents to process (required)")
		out        = flag.String("out", "", "output XLSX file path (optional, defaults to parent directory)")
		provider   = flag.String("provider", "", "OCR engine for image documents (defaults to OCR_PRIMARY)")
		workers    = flag.Int("workers", 4, "documents processed concurrently")
		threshold  = flag.Float64("threshold", 0, "OCR confidence threshold override in [0,1]")
		persist    = flag.Bool("persist", false, "record outcomes in DB_URL")
		force      = flag.Bool("force", false, "re-run documents already recorded (with --persist)")
		skipHidden = flag.Bool("skip-hidden", true, "skip dot-files and dot-directories")
	)
	flag.Parse()

	if *dir == "" {
		printError("Error: --dir is required\n")
		os.Exit(1)
	}
	if *threshold < 0 || *threshold > 1 {
		printError("Error: --threshold must be within [0,1]\n")
		os.Exit(1)
	}
	if *out == "" {
		*out = filepath.Join(filepath.Dir(filepath.Clean(*dir)), "extractions.xlsx")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	var set *rules.Set
	if cfg.Pipeline.RulesFile != "" {
		var err error
		if set, err = rules.LoadFile(cfg.Pipeline.RulesFile); err != nil {
			logger.Error("failed to load rules", "path", cfg.Pipeline.RulesFile, "error", err)
			os.Exit(1)
		}
	}
	pipe, err := pipeline.NewFromConfig(cfg, set, logger)
	if err != nil {
		logger.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}

	var (
		docs    ingest.Fingerprints
		records repo.ExtractionRepository
	)
	if *persist {
		db, err := svc.ConnectDB(ctx, cfg.Database, logger)
		if err != nil {
			logger.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		docs = repo.NewDocumentRepository(db, logger)
		records = repo.NewExtractionRepository(db, logger)
	}

	queued := &collector{}
	ingestor := ingest.NewFSIngestor(docs, queued, logger,
		ingest.WithAllowedExts(cfg.Validation.AllowedExtensions),
		ingest.WithForce(*force),
	)
	_, stats, err := ingestor.IngestDirectory(ctx, *dir, *skipHidden)
	if err != nil {
		logger.Error("failed to scan directory", "dir", *dir, "error", err)
		os.Exit(1)
	}
	logger.Info("directory scanned",
		"dir", *dir,
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"deduplicated", stats.Deduplicated,
		"failed", stats.Failed,
	)

	inputs := make([]pipeline.Input, 0, len(queued.jobs))
	for _, job := range queued.jobs {
		in := job.Input
		in.Provider = *provider
		in.ConfidenceThreshold = *threshold
		inputs = append(inputs, in)
	}

	start := time.Now()
	items, err := async.RunBatch(ctx, pipe, inputs, *workers)
	if err != nil {
		logger.Error("batch interrupted", "error", err)
		os.Exit(1)
	}

	rows := make([]export.Row, 0, len(items))
	var failed int
	for _, item := range items {
		row := export.Row{SourcePath: item.Input.Path, Result: item.Result, Err: item.Err}
		if item.Result != nil {
			row.SHA256 = item.Result.Fingerprint.SHA256
		} else if fp, ok := pipeline.FingerprintOf(item.Err); ok {
			row.SHA256 = fp.SHA256
		}
		if item.Err != nil {
			failed++
			logger.Warn("document failed", "path", item.Input.Path, "error", item.Err)
		}
		if records != nil {
			if err := records.Record(ctx, item.Result, item.Err, time.Now().UTC()); err != nil {
				logger.Error("failed to record extraction", "path", item.Input.Path, "error", err)
			}
		}
		rows = append(rows, row)
	}

	b, err := export.WriteXLSX(rows, cfg.Pipeline.ReviewThreshold)
	if err != nil {
		logger.Error("failed to build workbook", "error", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*out, b, 0o644); err != nil {
		logger.Error("failed to write workbook", "path", *out, "error", err)
		os.Exit(1)
	}
	logger.Info("batch complete",
		"documents", len(items),
		"failed", failed,
		"out", *out,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
