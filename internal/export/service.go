package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/doc-intake/constants"
	"github.com/joseph-ayodele/doc-intake/internal/pipeline"
	"github.com/joseph-ayodele/doc-intake/internal/repository"
)

// Store is the slice of the extraction repository the export reads.
type Store interface {
	ListExtractions(ctx context.Context, f repository.ListFilter) ([]repository.ExtractionSummary, error)
	GetLatestExtraction(ctx context.Context, sha256 string) (*pipeline.ExtractionResult, error)
}

// Service produces review workbooks from stored extractions.
type Service struct {
	store     Store
	threshold float64
	logger    *slog.Logger
}

func NewService(store Store, threshold float64, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, threshold: threshold, logger: logger}
}

// ExportXLSX returns an XLSX workbook (as bytes) holding the newest run of each
// document matched by filter. Failed and rejected runs appear with their error.
func (s *Service) ExportXLSX(ctx context.Context, filter repository.ListFilter) ([]byte, error) {
	start := time.Now()

	summaries, err := s.store.ListExtractions(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("query extractions: %w", err)
	}

	seen := map[string]struct{}{}
	var rows []Row
	for _, sum := range summaries {
		if _, dup := seen[sum.SHA256]; dup {
			continue
		}
		seen[sum.SHA256] = struct{}{}

		if sum.Status != constants.ExtractionStatusExtracted {
			rows = append(rows, Row{SHA256: sum.SHA256, Err: errors.New(string(sum.Status) + ": " + sum.ErrorMessage)})
			continue
		}
		res, err := s.store.GetLatestExtraction(ctx, sum.SHA256)
		if err != nil {
			s.logger.Warn("export.load_failed", "sha256", sum.SHA256, "error", err)
			rows = append(rows, Row{SHA256: sum.SHA256, Err: err})
			continue
		}
		rows = append(rows, Row{SHA256: sum.SHA256, Result: res})
	}

	b, err := WriteXLSX(rows, s.threshold)
	if err != nil {
		return nil, err
	}
	s.logger.Info("export.xlsx.ok",
		"rows", len(rows),
		"document_type", string(filter.DocumentType),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return b, nil
}
