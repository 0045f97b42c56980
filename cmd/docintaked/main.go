package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joseph-ayodele/doc-intake/internal/async"
	"github.com/joseph-ayodele/doc-intake/internal/common"
	"github.com/joseph-ayodele/doc-intake/internal/export"
	"github.com/joseph-ayodele/doc-intake/internal/ingest"
	"github.com/joseph-ayodele/doc-intake/internal/metrics"
	"github.com/joseph-ayodele/doc-intake/internal/pipeline"
	repo "github.com/joseph-ayodele/doc-intake/internal/repository"
	"github.com/joseph-ayodele/doc-intake/internal/rules"
	svc "github.com/joseph-ayodele/doc-intake/internal/server"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.Register()

	db, err := svc.ConnectDB(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := svc.PingDB(ctx, db, logger, 5*time.Second); err != nil {
		os.Exit(1)
	}

	var set *rules.Set
	if cfg.Pipeline.RulesFile != "" {
		set, err = rules.LoadFile(cfg.Pipeline.RulesFile)
		if err != nil {
			logger.Error("failed to load rules", "path", cfg.Pipeline.RulesFile, "error", err)
			os.Exit(1)
		}
		logger.Info("rules loaded", "path", cfg.Pipeline.RulesFile)
	}
	pipe, err := pipeline.NewFromConfig(cfg, set, logger)
	if err != nil {
		logger.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}
	logger.Info("pipeline ready", "providers", pipe.Providers(), "primary", cfg.OCR.Primary, "fallback", cfg.OCR.Fallback)

	docsRepo := repo.NewDocumentRepository(db, logger)
	extractionsRepo := repo.NewExtractionRepository(db, logger)

	queue := async.NewProcessorQueue(pipe, logger,
		async.WithWorkers(cfg.Pipeline.Workers),
		async.WithQueueSize(cfg.Pipeline.QueueSize),
		async.WithProcessTimeout(cfg.Pipeline.ProcessTimeout),
		async.WithResultHandler(func(ctx context.Context, job async.Job, res *pipeline.ExtractionResult, runErr error) {
			if err := extractionsRepo.Record(ctx, res, runErr, time.Now().UTC()); err != nil {
				logger.Error("failed to record extraction", "path", job.Input.Path, "error", err)
			}
		}),
	)

	ingestor := ingest.NewFSIngestor(docsRepo, queue, logger,
		ingest.WithAllowedExts(cfg.Validation.AllowedExtensions),
	)
	exporter := export.NewService(extractionsRepo, cfg.Pipeline.ReviewThreshold, logger)

	service := svc.NewExtractionService(svc.ServiceDeps{
		Pipeline: pipe,
		Store:    extractionsRepo,
		Ingestor: ingestor,
		Exporter: exporter,
		Logger:   logger,
	})
	grpcServer, healthServer := svc.NewGRPCServer(service, logger)

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		logger.Error("failed to listen on address", "addr", cfg.Server.GRPCAddr, "error", err)
		os.Exit(1)
	}
	logger.Info("doc-intake listening", "addr", cfg.Server.GRPCAddr)
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC serve error", "error", err)
			stop()
		}
	}()

	var httpServer *http.Server
	if cfg.Server.MetricsAddr != "" {
		httpServer = &http.Server{
			Addr:              cfg.Server.MetricsAddr,
			Handler:           svc.NewHTTPHandler(db, exporter, logger),
			ReadHeaderTimeout: 5 * time.Second,
		}
		logger.Info("http side-port listening", "addr", cfg.Server.MetricsAddr)
		go func() {
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http serve error", "error", err)
				stop()
			}
		}()
	}

	if len(cfg.Ingest.InboxDirs) > 0 {
		go func() {
			err := ingest.Watch(ctx, ingestor, ingest.WatchConfig{
				Roots:       cfg.Ingest.InboxDirs,
				AllowedExts: ingest.ExtSet(cfg.Validation.AllowedExtensions),
				InitialScan: true,
				Debounce:    cfg.Ingest.Debounce,
			}, logger)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("inbox watcher stopped", "error", err)
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down")
	healthServer.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Pipeline.ProcessTimeout+5*time.Second)
	defer cancel()
	if httpServer != nil {
		_ = httpServer.Shutdown(shutdownCtx)
	}
	grpcServer.GracefulStop()
	queue.Shutdown(shutdownCtx)
	logger.Info("stopped")
}
