package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/doc-intake/internal/common"
	"github.com/joseph-ayodele/doc-intake/internal/validate"
)

// Document is one distinct file content, keyed by its SHA-256.
type Document struct {
	SHA256       string
	FileID       uuid.UUID
	SourcePath   string
	DetectedMime string
	Extension    string
	SizeBytes    int64
	FirstSeenAt  time.Time
}

type DocumentRepository interface {
	GetBySHA256(ctx context.Context, sha256 string) (*Document, error)
	// UpsertFingerprint records a fingerprint; existed is true when the content was already known.
	UpsertFingerprint(ctx context.Context, fp validate.Fingerprint, fileID uuid.UUID, sourcePath string, seenAt time.Time) (doc *Document, existed bool, err error)
}

type documentRepo struct {
	db  *DB
	log *slog.Logger
}

func NewDocumentRepository(db *DB, log *slog.Logger) DocumentRepository {
	if log == nil {
		log = db.logger
	}
	return &documentRepo{db: db, log: log}
}

func (r *documentRepo) GetBySHA256(ctx context.Context, sha256 string) (*Document, error) {
	b := entsql.Dialect(r.db.dialect)
	query, args := b.Select("sha256", "file_id", "source_path", "detected_mime", "extension", "size_bytes", "first_seen_at").
		From(b.Table(tableDocuments)).
		Where(entsql.EQ("sha256", sha256)).
		Limit(1).
		Query()

	rows := &entsql.Rows{}
	if err := r.db.drv.Query(ctx, query, args, rows); err != nil {
		r.log.Error("failed to get document", "sha256", sha256, "error", err)
		return nil, fmt.Errorf("%w: %v", common.ErrDatabase, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrDatabase, err)
		}
		return nil, fmt.Errorf("document %s: %w", sha256, common.ErrNotFound)
	}
	var (
		doc    Document
		fileID string
		seenAt int64
	)
	if err := rows.Scan(&doc.SHA256, &fileID, &doc.SourcePath, &doc.DetectedMime, &doc.Extension, &doc.SizeBytes, &seenAt); err != nil {
		return nil, fmt.Errorf("%w: scan document: %v", common.ErrDatabase, err)
	}
	id, err := uuid.Parse(fileID)
	if err != nil {
		return nil, fmt.Errorf("%w: document %s has bad file_id: %v", common.ErrDatabase, sha256, err)
	}
	doc.FileID = id
	doc.FirstSeenAt = fromUnixMs(seenAt)
	return &doc, nil
}

func (r *documentRepo) UpsertFingerprint(ctx context.Context, fp validate.Fingerprint, fileID uuid.UUID, sourcePath string, seenAt time.Time) (*Document, bool, error) {
	if fp.SHA256 == "" {
		return nil, false, common.NewAppError("INVALID_FINGERPRINT", "sha256 is required", common.ErrInvalidInput)
	}
	query, args := entsql.Dialect(r.db.dialect).
		Insert(tableDocuments).
		Columns("sha256", "file_id", "source_path", "detected_mime", "extension", "size_bytes", "first_seen_at").
		Values(fp.SHA256, fileID.String(), sourcePath, fp.DetectedMimeType, fp.Extension, int64(fp.SizeBytes), seenAt.UnixMilli()).
		OnConflict(entsql.ConflictColumns("sha256"), entsql.DoNothing()).
		Query()

	var res sql.Result
	if err := r.db.drv.Exec(ctx, query, args, &res); err != nil {
		r.log.Error("failed to upsert document", "sha256", fp.SHA256, "error", err)
		return nil, false, fmt.Errorf("%w: %v", common.ErrDatabase, err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", common.ErrDatabase, err)
	}

	doc, err := r.GetBySHA256(ctx, fp.SHA256)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, false, fmt.Errorf("%w: document vanished after upsert", common.ErrDatabase)
		}
		return nil, false, err
	}
	existed := inserted == 0
	if existed {
		r.log.Debug("document already known", "sha256", fp.SHA256, "file_id", doc.FileID)
	} else {
		r.log.Info("document recorded", "sha256", fp.SHA256, "file_id", doc.FileID, "source_path", sourcePath)
	}
	return doc, existed, nil
}
