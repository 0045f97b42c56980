package export

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/doc-intake/constants"
	"github.com/joseph-ayodele/doc-intake/internal/common"
	"github.com/joseph-ayodele/doc-intake/internal/fields"
	"github.com/joseph-ayodele/doc-intake/internal/pipeline"
	"github.com/joseph-ayodele/doc-intake/internal/repository"
	"github.com/joseph-ayodele/doc-intake/internal/validate"
)

func invoice(sha string) *pipeline.ExtractionResult {
	return &pipeline.ExtractionResult{
		ID:           uuid.New(),
		Fingerprint:  validate.Fingerprint{SHA256: sha},
		DocumentType: constants.DocumentTypeInvoice,
		Fields: fields.Fields{
			"amount":    fields.Int(110000),
			"issueDate": fields.Date(time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC)),
		},
		Confidence:  map[string]float64{"amount": 0.95, "issueDate": 0.85, "issuer": 0},
		Overall:     0.6,
		NeedsReview: []string{"issuer"},
		TextSource:  constants.TextSourceNative,
	}
}

func openBook(t *testing.T, b []byte) *excelize.File {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(b))
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func cell(t *testing.T, f *excelize.File, sheet, ref string) string {
	t.Helper()
	v, err := f.GetCellValue(sheet, ref)
	require.NoError(t, err)
	return v
}

func TestWriteXLSX(t *testing.T) {
	rows := []Row{
		{SourcePath: "/inbox/inv.pdf", Result: invoice("aaa")},
		{SourcePath: "/inbox/bad.pdf", SHA256: "bbb", Err: common.ErrMalformedDocument},
	}
	b, err := WriteXLSX(rows, 0.8)
	require.NoError(t, err)
	f := openBook(t, b)

	assert.Equal(t, []string{SheetDocuments, SheetConfidence}, f.GetSheetList())

	// fields are sorted after the fixed columns: I=amount J=issueDate K=issuer
	assert.Equal(t, "Source", cell(t, f, SheetDocuments, "A1"))
	assert.Equal(t, "amount", cell(t, f, SheetDocuments, "I1"))
	assert.Equal(t, "issuer", cell(t, f, SheetDocuments, "K1"))

	assert.Equal(t, "/inbox/inv.pdf", cell(t, f, SheetDocuments, "A2"))
	assert.Equal(t, "aaa", cell(t, f, SheetDocuments, "B2"))
	assert.Equal(t, "INVOICE", cell(t, f, SheetDocuments, "C2"))
	assert.Equal(t, "110000", cell(t, f, SheetDocuments, "I2"))
	assert.Equal(t, "2023-04-01", cell(t, f, SheetDocuments, "J2"))
	assert.Equal(t, "", cell(t, f, SheetDocuments, "K2"))
	assert.Equal(t, "0.95", cell(t, f, SheetConfidence, "I2"))
	assert.Equal(t, "0", cell(t, f, SheetConfidence, "K2"))

	assert.Equal(t, "bbb", cell(t, f, SheetDocuments, "B3"))
	assert.Contains(t, cell(t, f, SheetDocuments, "H3"), "malformed document")

	confident, err := f.GetCellStyle(SheetConfidence, "I2")
	require.NoError(t, err)
	flagged, err := f.GetCellStyle(SheetConfidence, "K2")
	require.NoError(t, err)
	flaggedValue, err := f.GetCellStyle(SheetDocuments, "K2")
	require.NoError(t, err)
	assert.NotEqual(t, confident, flagged)
	assert.Equal(t, flagged, flaggedValue)
}

func TestWriteXLSXEmpty(t *testing.T) {
	b, err := WriteXLSX(nil, 0)
	require.NoError(t, err)
	f := openBook(t, b)
	assert.Equal(t, "Error", cell(t, f, SheetDocuments, "H1"))
	assert.Equal(t, "", cell(t, f, SheetDocuments, "I1"))
}

type fakeStore struct {
	summaries []repository.ExtractionSummary
	results   map[string]*pipeline.ExtractionResult
}

func (s *fakeStore) ListExtractions(context.Context, repository.ListFilter) ([]repository.ExtractionSummary, error) {
	return s.summaries, nil
}

func (s *fakeStore) GetLatestExtraction(_ context.Context, sha string) (*pipeline.ExtractionResult, error) {
	if r, ok := s.results[sha]; ok {
		return r, nil
	}
	return nil, common.ErrNotFound
}

func TestServiceExportXLSX(t *testing.T) {
	store := &fakeStore{
		summaries: []repository.ExtractionSummary{
			{SHA256: "aaa", Status: constants.ExtractionStatusExtracted},
			{SHA256: "aaa", Status: constants.ExtractionStatusExtracted},
			{SHA256: "ccc", Status: constants.ExtractionStatusRejected, ErrorMessage: "mime not allowed"},
			{SHA256: "ddd", Status: constants.ExtractionStatusExtracted},
		},
		results: map[string]*pipeline.ExtractionResult{"aaa": invoice("aaa")},
	}
	b, err := NewService(store, 0.8, nil).ExportXLSX(context.Background(), repository.ListFilter{})
	require.NoError(t, err)
	f := openBook(t, b)

	rows, err := f.GetRows(SheetDocuments)
	require.NoError(t, err)
	require.Len(t, rows, 4) // header + aaa + ccc + ddd
	assert.Equal(t, "aaa", rows[1][1])
	assert.Equal(t, "ccc", rows[2][1])
	assert.Equal(t, "REJECTED: mime not allowed", rows[2][7])
	assert.Contains(t, rows[3][7], "not found")
}
