// Package textextract pulls embedded text out of digitally authored documents and decides
// when a document has to go through OCR instead.
package textextract

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/joseph-ayodele/doc-intake/constants"
	"github.com/joseph-ayodele/doc-intake/internal/common"
)

const (
	DefaultMinTextChars = 100
	minPrintableRatio   = 0.85
)

// Result is the text layer of one document. NeedsOCR is set when the text is too short or
// too garbled to trust; the text is still returned so callers can fall back to it.
type Result struct {
	Text         string        `json:"text"`
	PageCount    uint32        `json:"pageCount"`
	IsNativeText bool          `json:"isNativeText"`
	Method       string        `json:"method"` // "pdf-text" | "pdf-bytescan" | "docx" | "xlsx" | "image"
	NeedsOCR     bool          `json:"needsOcr"`
	Duration     time.Duration `json:"-"`
}

type Config struct {
	// MinTextChars is the triage threshold: shorter text layers are routed to OCR.
	MinTextChars int
}

type Provider struct {
	cfg    Config
	logger *slog.Logger
}

func NewProvider(cfg Config, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MinTextChars <= 0 {
		cfg.MinTextChars = DefaultMinTextChars
	}
	return &Provider{cfg: cfg, logger: logger}
}

// Extract returns the text layer for data of the detected MIME type.
// It fails with common.ErrMalformedDocument when the container header is missing or the
// format has no text provider.
func (p *Provider) Extract(ctx context.Context, data []byte, mime string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	start := time.Now()
	var (
		res Result
		err error
	)
	switch mime {
	case constants.MimePDF:
		res, err = p.extractPDF(data)
	case constants.MimeJPEG, constants.MimePNG, constants.MimeTIFF:
		res = Result{PageCount: 1, Method: "image", NeedsOCR: true}
	case constants.MimeDOCX:
		var txt string
		if txt, err = docxText(data); err == nil {
			res = p.nativeResult(txt, 1, "docx")
		}
	case constants.MimeXLSX:
		var (
			txt    string
			sheets int
		)
		if txt, sheets, err = xlsxText(data); err == nil {
			res = p.nativeResult(txt, uint32(sheets), "xlsx")
		}
	default:
		err = fmt.Errorf("no text provider for %s", mime)
	}
	if err != nil {
		p.logger.Warn("textextract.malformed", "mime", mime, "error", err)
		return Result{}, fmt.Errorf("%w: %v", common.ErrMalformedDocument, err)
	}
	res.Duration = time.Since(start)
	p.logger.Debug("textextract.ok",
		"mime", mime,
		"method", res.Method,
		"pages", res.PageCount,
		"chars", utf8.RuneCountInString(res.Text),
		"needs_ocr", res.NeedsOCR,
		"elapsed_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

func (p *Provider) extractPDF(data []byte) (Result, error) {
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		return Result{}, fmt.Errorf("missing %%PDF header")
	}
	text, pages, opaque, err := pdfStructural(data)
	if err == nil {
		res := p.nativeResult(text, uint32(pages), "pdf-text")
		// CID-keyed fonts without a decodable string form leave most glyphs opaque
		if opaque > utf8.RuneCountInString(text)/10 {
			res.NeedsOCR = true
		}
		return res, nil
	}
	p.logger.Info("textextract.pdf.structural_failed", "error", err)

	text, pageGuess := pdfByteScan(data)
	return Result{
		Text:         text,
		PageCount:    uint32(pageGuess),
		IsNativeText: false,
		Method:       "pdf-bytescan",
		NeedsOCR:     p.tooThin(text),
	}, nil
}

func (p *Provider) nativeResult(text string, pages uint32, method string) Result {
	return Result{
		Text:         text,
		PageCount:    pages,
		IsNativeText: true,
		Method:       method,
		NeedsOCR:     p.tooThin(text),
	}
}

// tooThin is the OCR triage rule. A short but genuine digital document is routed to OCR too;
// that false positive is accepted.
func (p *Provider) tooThin(text string) bool {
	trimmed := strings.TrimSpace(text)
	if utf8.RuneCountInString(trimmed) < p.cfg.MinTextChars {
		return true
	}
	return printableRatio(trimmed) < minPrintableRatio
}
