package textextract

import (
	"archive/zip"
	"bytes"
	"compress/zlib"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/doc-intake/constants"
	"github.com/joseph-ayodele/doc-intake/internal/common"
)

// buildPDF writes a single-page PDF with a correct cross-reference table.
func buildPDF(content string) []byte {
	objs := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 4 0 R >> >> /Contents 5 0 R >>",
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
	}
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, o := range objs {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, o)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objs)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)
	return buf.Bytes()
}

func docx(t *testing.T, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` + body + `</w:body></w:document>`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestExtractStructuralPDF(t *testing.T) {
	line := "This invoice text is long enough to be trusted as a native text layer"
	content := fmt.Sprintf("BT /F1 12 Tf 72 712 Td (%s) Tj 0 -14 Td (%s) Tj ET", line, line)

	res, err := NewProvider(Config{}, nil).Extract(context.Background(), buildPDF(content), constants.MimePDF)
	require.NoError(t, err)

	assert.Equal(t, "pdf-text", res.Method)
	assert.True(t, res.IsNativeText)
	assert.Equal(t, uint32(1), res.PageCount)
	assert.Equal(t, line+"\n"+line, strings.TrimSpace(res.Text))
	assert.False(t, res.NeedsOCR)
}

func TestExtractShortPDFRoutesToOCR(t *testing.T) {
	res, err := NewProvider(Config{MinTextChars: 100}, nil).Extract(context.Background(), buildPDF("BT (Scan) Tj ET"), constants.MimePDF)
	require.NoError(t, err)
	assert.True(t, res.IsNativeText)
	assert.True(t, res.NeedsOCR)
}

func TestExtractByteScanFallback(t *testing.T) {
	broken := []byte("%PDF-1.4\n%broken file without objects\nBT /F1 12 Tf (Hello World) Tj ET\n")

	res, err := NewProvider(Config{}, nil).Extract(context.Background(), broken, constants.MimePDF)
	require.NoError(t, err)
	assert.Equal(t, "pdf-bytescan", res.Method)
	assert.False(t, res.IsNativeText)
	assert.Equal(t, "Hello World", res.Text)
	assert.True(t, res.NeedsOCR)
}

func TestByteScanInflatesStreams(t *testing.T) {
	var z bytes.Buffer
	zw := zlib.NewWriter(&z)
	_, _ = zw.Write([]byte("BT (Compressed text) Tj ET"))
	require.NoError(t, zw.Close())

	data := append([]byte("%PDF-1.5\n<< /Filter /FlateDecode >>\nstream\n"), z.Bytes()...)
	data = append(data, []byte("\nendstream\n/Type /Page\n")...)

	text, pages := pdfByteScan(data)
	assert.Equal(t, "Compressed text", text)
	assert.Equal(t, 1, pages)
}

func TestExtractMalformed(t *testing.T) {
	p := NewProvider(Config{}, nil)
	tests := []struct {
		name string
		data []byte
		mime string
	}{
		{"pdf without header", []byte("hello"), constants.MimePDF},
		{"legacy xls", []byte{0xD0, 0xCF, 0x11, 0xE0}, constants.MimeXLS},
		{"broken docx", []byte("PK\x03\x04garbage"), constants.MimeDOCX},
		{"unknown", []byte("x"), constants.MimeOctetStream},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Extract(context.Background(), tt.data, tt.mime)
			assert.ErrorIs(t, err, common.ErrMalformedDocument)
		})
	}
}

func TestExtractImageNeedsOCR(t *testing.T) {
	res, err := NewProvider(Config{}, nil).Extract(context.Background(), []byte{0x89, 'P', 'N', 'G'}, constants.MimePNG)
	require.NoError(t, err)
	assert.Equal(t, Result{PageCount: 1, Method: "image", NeedsOCR: true, Duration: res.Duration}, res)
}

func TestExtractDOCX(t *testing.T) {
	body := `<w:p><w:r><w:t>御見積書</w:t></w:r></w:p><w:p><w:r><w:t>見積金額</w:t></w:r><w:r><w:tab/><w:t>1,200円</w:t></w:r></w:p>`
	res, err := NewProvider(Config{MinTextChars: 5}, nil).Extract(context.Background(), docx(t, body), constants.MimeDOCX)
	require.NoError(t, err)
	assert.Equal(t, "御見積書\n見積金額\t1,200円", res.Text)
	assert.True(t, res.IsNativeText)
	assert.False(t, res.NeedsOCR)
}

func TestExtractXLSX(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "貸借対照表"))
	require.NoError(t, f.SetCellValue("Sheet1", "A2", "資産合計"))
	require.NoError(t, f.SetCellValue("Sheet1", "B2", 1500000))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	res, err := NewProvider(Config{}, nil).Extract(context.Background(), buf.Bytes(), constants.MimeXLSX)
	require.NoError(t, err)
	assert.Equal(t, "貸借対照表\n資産合計\t1500000", res.Text)
	assert.Equal(t, uint32(1), res.PageCount)
	assert.Equal(t, "xlsx", res.Method)
}

func TestExtractHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewProvider(Config{}, nil).Extract(ctx, buildPDF("BT (x) Tj ET"), constants.MimePDF)
	assert.ErrorIs(t, err, context.Canceled)
}
