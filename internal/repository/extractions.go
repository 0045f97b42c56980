package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/doc-intake/constants"
	"github.com/joseph-ayodele/doc-intake/internal/common"
	"github.com/joseph-ayodele/doc-intake/internal/ocr"
	"github.com/joseph-ayodele/doc-intake/internal/pipeline"
	"github.com/joseph-ayodele/doc-intake/internal/validate"
)

// ExtractionSummary is one row of the extractions table without its payload.
type ExtractionSummary struct {
	ID           uuid.UUID
	SHA256       string
	FileID       string
	Status       constants.ExtractionStatus
	DocumentType constants.DocumentType
	Overall      float64
	NeedsReview  bool
	TextSource   constants.TextSource
	OcrProvider  string
	ErrorMessage string
	CreatedAt    time.Time
}

// ListFilter narrows ListExtractions. Zero values match everything.
type ListFilter struct {
	DocumentType    constants.DocumentType
	Status          constants.ExtractionStatus
	NeedsReviewOnly bool
	Limit           int
}

const defaultListLimit = 100

type ExtractionRepository interface {
	// SaveExtraction stores a result and its OCR attempt history in one transaction.
	SaveExtraction(ctx context.Context, res *pipeline.ExtractionResult) error
	// SaveFailure records a rejected or failed run against the content hash.
	SaveFailure(ctx context.Context, fp validate.Fingerprint, status constants.ExtractionStatus, cause error, at time.Time) (uuid.UUID, error)
	GetLatestExtraction(ctx context.Context, sha256 string) (*pipeline.ExtractionResult, error)
	ListExtractions(ctx context.Context, f ListFilter) ([]ExtractionSummary, error)
	ListAttempts(ctx context.Context, extractionID uuid.UUID) ([]ocr.Attempt, error)
	// Record stores the outcome of one pipeline run, whichever way it ended.
	Record(ctx context.Context, res *pipeline.ExtractionResult, runErr error, at time.Time) error
}

type extractionRepo struct {
	db  *DB
	log *slog.Logger
}

func NewExtractionRepository(db *DB, log *slog.Logger) ExtractionRepository {
	if log == nil {
		log = db.logger
	}
	return &extractionRepo{db: db, log: log}
}

func (r *extractionRepo) SaveExtraction(ctx context.Context, res *pipeline.ExtractionResult) (err error) {
	if res == nil || res.Fingerprint.SHA256 == "" {
		return common.NewAppError("INVALID_RESULT", "extraction result without fingerprint", common.ErrInvalidInput)
	}
	payload, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal extraction %s: %w", res.ID, err)
	}

	b := entsql.Dialect(r.db.dialect)
	query, args := b.Insert(tableExtractions).
		Columns("id", "sha256", "file_id", "status", "document_type", "overall", "needs_review",
			"text_source", "ocr_provider", "error_message", "payload", "created_at").
		Values(res.ID.String(), res.Fingerprint.SHA256, res.FileID.String(), string(constants.ExtractionStatusExtracted),
			string(res.DocumentType), res.Overall, boolInt(len(res.NeedsReview) > 0),
			string(res.TextSource), res.OcrProvider, "", string(payload), res.CreatedAt.UnixMilli()).
		Query()

	tx, err := r.db.drv.Tx(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", common.ErrDatabase, err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				r.log.Warn("rollback failed", "extraction_id", res.ID, "error", rbErr)
			}
		}
	}()

	if err = tx.Exec(ctx, query, args, nil); err != nil {
		r.log.Error("failed to save extraction", "extraction_id", res.ID, "sha256", res.Fingerprint.SHA256, "error", err)
		return fmt.Errorf("%w: insert extraction: %v", common.ErrDatabase, err)
	}
	if err = insertAttempts(ctx, tx, b, res.ID, res.OcrAttempts); err != nil {
		r.log.Error("failed to save ocr attempts", "extraction_id", res.ID, "error", err)
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", common.ErrDatabase, err)
	}
	r.log.Info("extraction saved", "extraction_id", res.ID, "sha256", res.Fingerprint.SHA256,
		"document_type", string(res.DocumentType), "attempts", len(res.OcrAttempts))
	return nil
}

func insertAttempts(ctx context.Context, tx dialect.Tx, b *entsql.DialectBuilder, extractionID uuid.UUID, attempts []ocr.Attempt) error {
	if len(attempts) == 0 {
		return nil
	}
	ins := b.Insert(tableOcrAttempts).
		Columns("extraction_id", "seq", "engine", "provider", "page", "confidence", "elapsed_ms", "failed", "error_message")
	for i, a := range attempts {
		ins.Values(extractionID.String(), i, string(a.Engine), a.Provider, a.Page, a.Confidence,
			int64(a.ElapsedMs), boolInt(a.Failed), a.ErrorMessage)
	}
	query, args := ins.Query()
	if err := tx.Exec(ctx, query, args, nil); err != nil {
		return fmt.Errorf("%w: insert attempts: %v", common.ErrDatabase, err)
	}
	return nil
}

func (r *extractionRepo) SaveFailure(ctx context.Context, fp validate.Fingerprint, status constants.ExtractionStatus, cause error, at time.Time) (uuid.UUID, error) {
	if fp.SHA256 == "" {
		return uuid.Nil, common.NewAppError("INVALID_FINGERPRINT", "sha256 is required", common.ErrInvalidInput)
	}
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	id := uuid.New()
	query, args := entsql.Dialect(r.db.dialect).Insert(tableExtractions).
		Columns("id", "sha256", "status", "error_message", "created_at").
		Values(id.String(), fp.SHA256, string(status), msg, at.UnixMilli()).
		Query()
	if err := r.db.drv.Exec(ctx, query, args, nil); err != nil {
		r.log.Error("failed to save extraction failure", "sha256", fp.SHA256, "status", string(status), "error", err)
		return uuid.Nil, fmt.Errorf("%w: %v", common.ErrDatabase, err)
	}
	r.log.Info("extraction failure recorded", "extraction_id", id, "sha256", fp.SHA256, "status", string(status))
	return id, nil
}

func (r *extractionRepo) GetLatestExtraction(ctx context.Context, sha256 string) (*pipeline.ExtractionResult, error) {
	b := entsql.Dialect(r.db.dialect)
	query, args := b.Select("payload").
		From(b.Table(tableExtractions)).
		Where(entsql.And(
			entsql.EQ("sha256", sha256),
			entsql.EQ("status", string(constants.ExtractionStatusExtracted)),
		)).
		OrderBy(entsql.Desc("created_at")).
		Limit(1).
		Query()

	rows := &entsql.Rows{}
	if err := r.db.drv.Query(ctx, query, args, rows); err != nil {
		r.log.Error("failed to get latest extraction", "sha256", sha256, "error", err)
		return nil, fmt.Errorf("%w: %v", common.ErrDatabase, err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrDatabase, err)
		}
		return nil, fmt.Errorf("extraction for %s: %w", sha256, common.ErrNotFound)
	}
	var payload string
	if err := rows.Scan(&payload); err != nil {
		return nil, fmt.Errorf("%w: scan extraction: %v", common.ErrDatabase, err)
	}
	var res pipeline.ExtractionResult
	if err := json.Unmarshal([]byte(payload), &res); err != nil {
		return nil, fmt.Errorf("decode extraction for %s: %w", sha256, err)
	}
	return &res, nil
}

func (r *extractionRepo) ListExtractions(ctx context.Context, f ListFilter) ([]ExtractionSummary, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	b := entsql.Dialect(r.db.dialect)
	sel := b.Select("id", "sha256", "file_id", "status", "document_type", "overall", "needs_review",
		"text_source", "ocr_provider", "error_message", "created_at").
		From(b.Table(tableExtractions))
	if f.DocumentType != "" {
		sel.Where(entsql.EQ("document_type", string(f.DocumentType)))
	}
	if f.Status != "" {
		sel.Where(entsql.EQ("status", string(f.Status)))
	}
	if f.NeedsReviewOnly {
		sel.Where(entsql.EQ("needs_review", 1))
	}
	query, args := sel.OrderBy(entsql.Desc("created_at")).Limit(limit).Query()

	rows := &entsql.Rows{}
	if err := r.db.drv.Query(ctx, query, args, rows); err != nil {
		r.log.Error("failed to list extractions", "error", err)
		return nil, fmt.Errorf("%w: %v", common.ErrDatabase, err)
	}
	defer rows.Close()

	var out []ExtractionSummary
	for rows.Next() {
		var (
			s                        ExtractionSummary
			id, status, docType, src string
			review                   int
			created                  int64
		)
		if err := rows.Scan(&id, &s.SHA256, &s.FileID, &status, &docType, &s.Overall, &review,
			&src, &s.OcrProvider, &s.ErrorMessage, &created); err != nil {
			return nil, fmt.Errorf("%w: scan extraction: %v", common.ErrDatabase, err)
		}
		parsed, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("%w: bad extraction id %q: %v", common.ErrDatabase, id, err)
		}
		s.ID = parsed
		s.Status = constants.ExtractionStatus(status)
		s.DocumentType = constants.ParseDocumentType(docType)
		s.TextSource = constants.TextSource(src)
		s.NeedsReview = review != 0
		s.CreatedAt = fromUnixMs(created)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDatabase, err)
	}
	return out, nil
}

func (r *extractionRepo) ListAttempts(ctx context.Context, extractionID uuid.UUID) ([]ocr.Attempt, error) {
	b := entsql.Dialect(r.db.dialect)
	query, args := b.Select("engine", "provider", "page", "confidence", "elapsed_ms", "failed", "error_message").
		From(b.Table(tableOcrAttempts)).
		Where(entsql.EQ("extraction_id", extractionID.String())).
		OrderBy("seq").
		Query()

	rows := &entsql.Rows{}
	if err := r.db.drv.Query(ctx, query, args, rows); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDatabase, err)
	}
	defer rows.Close()

	var out []ocr.Attempt
	for rows.Next() {
		var (
			a       ocr.Attempt
			engine  string
			elapsed int64
			failed  int
		)
		if err := rows.Scan(&engine, &a.Provider, &a.Page, &a.Confidence, &elapsed, &failed, &a.ErrorMessage); err != nil {
			return nil, fmt.Errorf("%w: scan attempt: %v", common.ErrDatabase, err)
		}
		a.Engine = ocr.Role(engine)
		a.ElapsedMs = uint64(max(elapsed, 0))
		a.Failed = failed != 0
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDatabase, err)
	}
	return out, nil
}

func (r *extractionRepo) Record(ctx context.Context, res *pipeline.ExtractionResult, runErr error, at time.Time) error {
	if runErr == nil {
		return r.SaveExtraction(ctx, res)
	}
	if errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded) {
		return nil
	}
	fp, ok := pipeline.FingerprintOf(runErr)
	if !ok {
		r.log.Debug("extraction outcome not recorded: no fingerprint", "error", runErr)
		return nil
	}
	status := constants.ExtractionStatusFailed
	var vErr *validate.Error
	if errors.As(runErr, &vErr) {
		status = constants.ExtractionStatusRejected
	}
	_, err := r.SaveFailure(ctx, fp, status, runErr, at)
	return err
}

// IsNotFound reports whether err means the row does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, common.ErrNotFound)
}
