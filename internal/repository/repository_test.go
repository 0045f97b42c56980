package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/doc-intake/constants"
	"github.com/joseph-ayodele/doc-intake/internal/common"
	"github.com/joseph-ayodele/doc-intake/internal/fields"
	"github.com/joseph-ayodele/doc-intake/internal/ocr"
	"github.com/joseph-ayodele/doc-intake/internal/pipeline"
	"github.com/joseph-ayodele/doc-intake/internal/validate"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), Config{DSN: filepath.Join(t.TempDir(), "intake.db")}, nil)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, db.Migrate(context.Background()))
	return db
}

func fingerprint(sha string) validate.Fingerprint {
	return validate.Fingerprint{SHA256: sha, DetectedMimeType: constants.MimePDF, Extension: "pdf", SizeBytes: 2048}
}

func sampleResult(sha string, created time.Time) *pipeline.ExtractionResult {
	return &pipeline.ExtractionResult{
		ID:           uuid.New(),
		FileID:       validate.GenerateFileID(sha, created),
		Fingerprint:  fingerprint(sha),
		DocumentType: constants.DocumentTypeInvoice,
		Fields: fields.Fields{
			"amount":    fields.Int(110000),
			"issueDate": fields.Date(time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC)),
			"issuer":    fields.String("株式会社サンプル"),
			"reference": fields.String("2023-04-02"),
		},
		Confidence:  map[string]float64{"amount": 0.95, "issueDate": 0.85, "issuer": 0.85},
		Overall:     0.78,
		NeedsReview: []string{"issueDate"},
		RawText:     "請求書",
		PageCount:   1,
		TextSource:  constants.TextSourceOCR,
		Method:      "image+ocr",
		OcrProvider: "tesseract",
		OcrAttempts: []ocr.Attempt{
			{Engine: ocr.RolePrimary, Provider: "tesseract", Text: "請", Confidence: 0.6, ElapsedMs: 40},
			{Engine: ocr.RoleFallback, Provider: "openai", Text: "請求書", Confidence: 0.92, ElapsedMs: 900},
		},
		CreatedAt: created.UTC(),
	}
}

func TestOpenSelectsDialect(t *testing.T) {
	db := openTestDB(t)
	assert.Equal(t, "sqlite3", db.Dialect())
	assert.True(t, isPostgres("postgres://u:p@localhost/db"))
	assert.True(t, isPostgres("postgresql://localhost/db"))
	assert.False(t, isPostgres("file:intake.db"))
	require.NoError(t, db.HealthCheck(context.Background(), time.Second))
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.Migrate(context.Background()))
}

func TestUpsertFingerprintDedups(t *testing.T) {
	db := openTestDB(t)
	repo := NewDocumentRepository(db, nil)
	ctx := context.Background()
	first := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	fileID := uuid.New()

	doc, existed, err := repo.UpsertFingerprint(ctx, fingerprint("abc"), fileID, "/inbox/a.pdf", first)
	require.NoError(t, err)
	assert.False(t, existed)
	assert.Equal(t, fileID, doc.FileID)
	assert.Equal(t, "/inbox/a.pdf", doc.SourcePath)
	assert.Equal(t, int64(2048), doc.SizeBytes)
	assert.True(t, first.Equal(doc.FirstSeenAt))

	// same content under another name keeps the original row
	doc, existed, err = repo.UpsertFingerprint(ctx, fingerprint("abc"), uuid.New(), "/inbox/copy.pdf", first.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, existed)
	assert.Equal(t, fileID, doc.FileID)
	assert.Equal(t, "/inbox/a.pdf", doc.SourcePath)

	_, _, err = repo.UpsertFingerprint(ctx, validate.Fingerprint{}, uuid.New(), "", first)
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	_, err = repo.GetBySHA256(ctx, "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestSaveAndGetLatestExtraction(t *testing.T) {
	db := openTestDB(t)
	repo := NewExtractionRepository(db, nil)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	older := sampleResult("abc", base)
	newer := sampleResult("abc", base.Add(time.Minute))
	newer.Overall = 0.9
	require.NoError(t, repo.SaveExtraction(ctx, older))
	require.NoError(t, repo.SaveExtraction(ctx, newer))
	_, err := repo.SaveFailure(ctx, fingerprint("abc"), constants.ExtractionStatusFailed, common.ErrOcrUnavailable, base.Add(time.Hour))
	require.NoError(t, err)

	got, err := repo.GetLatestExtraction(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, newer.ID, got.ID)
	assert.Equal(t, 0.9, got.Overall)
	assert.Equal(t, constants.DocumentTypeInvoice, got.DocumentType)
	amount, ok := got.Fields["amount"].Int64()
	require.True(t, ok)
	assert.Equal(t, int64(110000), amount)
	assert.Equal(t, "2023-04-01", got.Fields["issueDate"].String())
	assert.Equal(t, fields.KindDate, got.Fields["issueDate"].Kind())
	assert.Equal(t, fields.String("2023-04-02"), got.Fields["reference"])
	assert.Equal(t, "株式会社サンプル", got.Fields["issuer"].String())
	assert.Len(t, got.OcrAttempts, 2)

	attempts, err := repo.ListAttempts(ctx, newer.ID)
	require.NoError(t, err)
	require.Len(t, attempts, 2)
	assert.Equal(t, ocr.RolePrimary, attempts[0].Engine)
	assert.Equal(t, "openai", attempts[1].Provider)
	assert.Equal(t, uint64(900), attempts[1].ElapsedMs)
	assert.False(t, attempts[1].Failed)

	_, err = repo.GetLatestExtraction(ctx, "nope")
	assert.True(t, IsNotFound(err))
}

func TestListExtractionsFilters(t *testing.T) {
	db := openTestDB(t)
	repo := NewExtractionRepository(db, nil)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	inv := sampleResult("inv", base)
	tax := sampleResult("tax", base.Add(time.Second))
	tax.DocumentType = constants.DocumentTypeTaxCertificate
	tax.NeedsReview = nil
	tax.OcrAttempts = nil
	require.NoError(t, repo.SaveExtraction(ctx, inv))
	require.NoError(t, repo.SaveExtraction(ctx, tax))
	rejectedID, err := repo.SaveFailure(ctx, fingerprint("bad"), constants.ExtractionStatusRejected, errors.New("mime not allowed"), base.Add(2*time.Second))
	require.NoError(t, err)

	tests := []struct {
		name   string
		filter ListFilter
		want   []string
	}{
		{name: "all newest first", filter: ListFilter{}, want: []string{"bad", "tax", "inv"}},
		{name: "by type", filter: ListFilter{DocumentType: constants.DocumentTypeTaxCertificate}, want: []string{"tax"}},
		{name: "needs review", filter: ListFilter{NeedsReviewOnly: true}, want: []string{"inv"}},
		{name: "rejected", filter: ListFilter{Status: constants.ExtractionStatusRejected}, want: []string{"bad"}},
		{name: "limit", filter: ListFilter{Limit: 1}, want: []string{"bad"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := repo.ListExtractions(ctx, tt.filter)
			require.NoError(t, err)
			var got []string
			for _, r := range rows {
				got = append(got, r.SHA256)
			}
			assert.Equal(t, tt.want, got)
		})
	}

	rows, err := repo.ListExtractions(ctx, ListFilter{Status: constants.ExtractionStatusRejected})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, rejectedID, rows[0].ID)
	assert.Equal(t, "mime not allowed", rows[0].ErrorMessage)
	assert.Equal(t, constants.DocumentTypeUnknown, rows[0].DocumentType)
}

func TestSaveExtractionRequiresFingerprint(t *testing.T) {
	repo := NewExtractionRepository(openTestDB(t), nil)
	err := repo.SaveExtraction(context.Background(), &pipeline.ExtractionResult{ID: uuid.New()})
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestRecordOutcome(t *testing.T) {
	repo := NewExtractionRepository(openTestDB(t), nil)
	ctx := context.Background()
	at := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	rejected := &validate.Error{Outcome: validate.Outcome{Fingerprint: fingerprint("rej")}}
	failed := &pipeline.FailedError{Fingerprint: fingerprint("bad"), Err: common.ErrOcrUnavailable}

	require.NoError(t, repo.Record(ctx, sampleResult("ok", at), nil, at))
	require.NoError(t, repo.Record(ctx, nil, rejected, at.Add(time.Second)))
	require.NoError(t, repo.Record(ctx, nil, failed, at.Add(2*time.Second)))
	require.NoError(t, repo.Record(ctx, nil, context.Canceled, at))
	require.NoError(t, repo.Record(ctx, nil, errors.New("no fingerprint"), at))

	rows, err := repo.ListExtractions(ctx, ListFilter{})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, constants.ExtractionStatusFailed, rows[0].Status)
	assert.Contains(t, rows[0].ErrorMessage, "ocr unavailable")
	assert.Equal(t, constants.ExtractionStatusRejected, rows[1].Status)
	assert.Equal(t, constants.ExtractionStatusExtracted, rows[2].Status)
}
