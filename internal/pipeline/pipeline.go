// Package pipeline composes validation, text extraction, OCR, classification,
// field extraction and scoring into one extraction call per document.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os/exec"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/doc-intake/constants"
	"github.com/joseph-ayodele/doc-intake/internal/classify"
	"github.com/joseph-ayodele/doc-intake/internal/common"
	"github.com/joseph-ayodele/doc-intake/internal/fields"
	"github.com/joseph-ayodele/doc-intake/internal/metrics"
	"github.com/joseph-ayodele/doc-intake/internal/ocr"
	"github.com/joseph-ayodele/doc-intake/internal/rules"
	"github.com/joseph-ayodele/doc-intake/internal/score"
	"github.com/joseph-ayodele/doc-intake/internal/textextract"
	"github.com/joseph-ayodele/doc-intake/internal/textnorm"
	"github.com/joseph-ayodele/doc-intake/internal/validate"
)

// byteScanWeight is the provenance weight of text recovered by byte scanning.
const byteScanWeight = 0.5

const DefaultReviewThreshold = 0.8

// Recognizer is the OCR surface the pipeline needs; *ocr.Orchestrator implements it.
type Recognizer interface {
	Recognize(ctx context.Context, img ocr.Image, opts ocr.Options) (ocr.Outcome, error)
	RecognizePages(ctx context.Context, pages []ocr.Image, opts ocr.Options) (ocr.PagesOutcome, error)
}

// Rasterizer renders PDF pages for OCR; *ocr.Rasterizer implements it.
type Rasterizer interface {
	Rasterize(ctx context.Context, pdf []byte) ([]ocr.Image, error)
}

// Input is one document to extract. Either Path or Data must be set.
type Input struct {
	Path        string
	Data        []byte
	ClaimedMime string
	// Provider selects the primary OCR engine by name; empty uses the configured default.
	Provider string
	// Policy overrides the default validation policy when non-nil.
	Policy              *validate.Policy
	Language            string
	ConfidenceThreshold float64
}

// ExtractionResult is immutable once returned. Re-extraction produces a new result.
type ExtractionResult struct {
	ID           uuid.UUID              `json:"id"`
	FileID       uuid.UUID              `json:"fileId"`
	Fingerprint  validate.Fingerprint   `json:"fingerprint"`
	DocumentType constants.DocumentType `json:"documentType"`
	Fields       fields.Fields          `json:"fields"`
	Confidence   map[string]float64     `json:"confidence"`
	Overall      float64                `json:"overall"`
	NeedsReview  []string               `json:"needsReview,omitempty"`
	RawText      string                 `json:"rawText"`
	PageCount    uint32                 `json:"pageCount"`
	TextSource   constants.TextSource   `json:"textSource"`
	Method       string                 `json:"method"`
	OcrProvider  string                 `json:"ocrProvider,omitempty"`
	OcrAttempts  []ocr.Attempt          `json:"ocrAttempts,omitempty"`
	CreatedAt    time.Time              `json:"createdAt"`
	ElapsedMs    int64                  `json:"elapsedMs"`
}

// Deps are the collaborators of a Pipeline. Nil members get defaults where one exists.
type Deps struct {
	Validator   *validate.Validator
	Text        *textextract.Provider
	Classifier  *classify.Classifier
	Fields      *fields.Engine
	Recognizers map[string]Recognizer
	// DefaultProvider names the entry of Recognizers used when Input.Provider is empty.
	DefaultProvider string
	Rasterizer      Rasterizer
	Policy          validate.Policy
	ReviewThreshold float64
	Logger          *slog.Logger
	Now             func() time.Time
}

// Pipeline is safe for concurrent use. It keeps no per-document state.
type Pipeline struct {
	validator       *validate.Validator
	text            *textextract.Provider
	classifier      *classify.Classifier
	fields          *fields.Engine
	recognizers     map[string]Recognizer
	defaultProvider string
	raster          Rasterizer
	policy          validate.Policy
	reviewThreshold float64
	logger          *slog.Logger
	now             func() time.Time
}

func New(d Deps) *Pipeline {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Validator == nil {
		d.Validator = validate.New(d.Logger)
	}
	if d.Text == nil {
		d.Text = textextract.NewProvider(textextract.Config{}, d.Logger)
	}
	if d.Classifier == nil {
		d.Classifier = classify.New(rules.Default(), d.Logger)
	}
	if d.Fields == nil {
		d.Fields = fields.NewEngine(rules.Default(), d.Logger)
	}
	if d.Policy.MaxFileSize == 0 {
		d.Policy = validate.DefaultPolicy()
	}
	if d.ReviewThreshold <= 0 {
		d.ReviewThreshold = DefaultReviewThreshold
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Pipeline{
		validator:       d.Validator,
		text:            d.Text,
		classifier:      d.Classifier,
		fields:          d.Fields,
		recognizers:     d.Recognizers,
		defaultProvider: d.DefaultProvider,
		raster:          d.Rasterizer,
		policy:          d.Policy,
		reviewThreshold: d.ReviewThreshold,
		logger:          d.Logger,
		now:             d.Now,
	}
}

// Run extracts one document.
//
// Errors are limited to *validate.Error (rejected input), common.ErrMalformedDocument,
// common.ErrOcrUnavailable, invalid-input errors and context errors. Once validation
// passes, unrecognizable content yields an Unknown result, not an error.
func (p *Pipeline) Run(ctx context.Context, in Input) (*ExtractionResult, error) {
	start := p.now()
	res, err := p.run(ctx, in, start)
	outcome, docType := "extracted", string(constants.DocumentTypeUnknown)
	var vErr *validate.Error
	switch {
	case err == nil:
		docType = string(res.DocumentType)
	case errors.As(err, &vErr):
		outcome = "rejected"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		outcome = "canceled"
	default:
		outcome = "failed"
	}
	metrics.DocumentsTotal.WithLabelValues(outcome, docType).Inc()
	return res, err
}

func (p *Pipeline) run(ctx context.Context, in Input, start time.Time) (*ExtractionResult, error) {
	recognizer, providerName, err := p.recognizer(in.Provider)
	if err != nil {
		return nil, err
	}

	// validate
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	policy := p.policy
	if in.Policy != nil {
		policy = *in.Policy
	}
	stageStart := time.Now()
	outcome, data, err := p.validator.Validate(in.Path, in.Data, in.ClaimedMime, policy)
	observe("validate", stageStart)
	if err != nil {
		return nil, err
	}
	if !outcome.IsValid {
		return nil, &validate.Error{Outcome: outcome}
	}

	fp := outcome.Fingerprint
	res := &ExtractionResult{
		ID:          uuid.New(),
		FileID:      validate.GenerateFileID(fp.SHA256, start),
		Fingerprint: fp,
		CreatedAt:   start.UTC(),
	}
	ctx = common.WithFileID(ctx, res.FileID.String())
	logger := p.logger.With("file_id", res.FileID, "sha256", fp.SHA256, "mime", fp.DetectedMimeType)

	// text layer
	if err := ctx.Err(); err != nil {
		return nil, failed(fp, err)
	}
	stageStart = time.Now()
	raw, err := p.text.Extract(ctx, data, fp.DetectedMimeType)
	observe("text", stageStart)
	if err != nil {
		return nil, failed(fp, err)
	}
	text := raw.Text
	res.PageCount = raw.PageCount
	res.Method = raw.Method
	res.TextSource = constants.TextSourceNative
	provenance := 1.0
	if !raw.IsNativeText {
		res.TextSource = constants.TextSourceRecovery
		provenance = byteScanWeight
	}

	// ocr
	if raw.NeedsOCR {
		if err := ctx.Err(); err != nil {
			return nil, failed(fp, err)
		}
		stageStart = time.Now()
		rec, err := p.recognize(ctx, recognizer, data, fp.DetectedMimeType, in)
		observe("ocr", stageStart)
		res.OcrAttempts = rec.attempts
		switch {
		case err == nil:
			text = rec.text
			provenance = rec.confidence
			res.TextSource = constants.TextSourceOCR
			res.OcrProvider = providerName
			res.Method = raw.Method + "+ocr"
			if res.PageCount == 0 || rec.pages > int(res.PageCount) {
				res.PageCount = uint32(rec.pages)
			}
			logger.Info("pipeline.ocr.ok", "provider", providerName, "confidence", rec.confidence, "pages", rec.pages)
		case ctx.Err() != nil:
			return nil, failed(fp, ctx.Err())
		case strings.TrimSpace(raw.Text) != "":
			logger.Warn("pipeline.ocr.degraded", "error", err, "text_source", string(res.TextSource))
		case raw.Method == "pdf-bytescan":
			return nil, failed(fp, fmt.Errorf("%w: no recoverable text: %v", common.ErrMalformedDocument, err))
		case errors.Is(err, errNoOCRRoute):
			logger.Info("pipeline.ocr.skipped", "reason", err.Error())
		default:
			return nil, failed(fp, err)
		}
	}

	// classify + fields + score
	if err := ctx.Err(); err != nil {
		return nil, failed(fp, err)
	}
	stageStart = time.Now()
	text = textnorm.Normalize(text)
	res.RawText = text
	res.DocumentType = p.classifier.Classify(text)
	res.Fields = p.fields.ExtractFields(text, res.DocumentType)
	res.Confidence = score.Fields(res.Fields, p.fields.ExpectedFields(res.DocumentType))
	res.Overall = score.Overall(res.Confidence, provenance)
	res.NeedsReview = score.NeedsReview(res.Confidence, p.reviewThreshold)
	observe("fields", stageStart)

	res.ElapsedMs = p.now().Sub(start).Milliseconds()
	logger.Info("pipeline.extracted",
		"document_type", string(res.DocumentType),
		"fields", len(res.Fields),
		"overall", res.Overall,
		"text_source", string(res.TextSource),
		"elapsed_ms", res.ElapsedMs,
	)
	return res, nil
}

var errNoOCRRoute = errors.New("no OCR route for this format")

// FailedError is returned for a document that passed validation but could not be extracted.
type FailedError struct {
	Fingerprint validate.Fingerprint
	Err         error
}

func (e *FailedError) Error() string { return e.Err.Error() }

func (e *FailedError) Unwrap() error { return e.Err }

func failed(fp validate.Fingerprint, err error) error {
	return &FailedError{Fingerprint: fp, Err: err}
}

// FingerprintOf recovers the fingerprint carried by a Run error, if any.
func FingerprintOf(err error) (validate.Fingerprint, bool) {
	var vErr *validate.Error
	if errors.As(err, &vErr) {
		return vErr.Outcome.Fingerprint, vErr.Outcome.Fingerprint.SHA256 != ""
	}
	var fErr *FailedError
	if errors.As(err, &fErr) {
		return fErr.Fingerprint, true
	}
	return validate.Fingerprint{}, false
}

type recognition struct {
	text       string
	confidence float64
	pages      int
	attempts   []ocr.Attempt
}

func (p *Pipeline) recognize(ctx context.Context, r Recognizer, data []byte, mime string, in Input) (recognition, error) {
	opts := ocr.Options{Language: in.Language, ConfidenceThreshold: in.ConfidenceThreshold}
	switch {
	case r == nil:
		return recognition{}, fmt.Errorf("%w: no OCR engine configured", common.ErrOcrUnavailable)
	case constants.IsImageMime(mime):
		out, err := r.Recognize(ctx, ocr.Image{Data: data, MimeType: mime}, opts)
		if err != nil {
			return recognition{attempts: out.Attempts}, err
		}
		return recognition{text: out.Winner.Text, confidence: out.Winner.Confidence, pages: 1, attempts: out.Attempts}, nil
	case mime == constants.MimePDF:
		if p.raster == nil {
			return recognition{}, fmt.Errorf("%w: no rasterizer configured", common.ErrOcrUnavailable)
		}
		pages, err := p.raster.Rasterize(ctx, data)
		if err != nil {
			if errors.Is(err, exec.ErrNotFound) {
				return recognition{}, fmt.Errorf("%w: %v", common.ErrOcrUnavailable, err)
			}
			return recognition{}, fmt.Errorf("%w: rasterize: %v", common.ErrMalformedDocument, err)
		}
		out, err := r.RecognizePages(ctx, pages, opts)
		if err != nil {
			return recognition{attempts: out.Attempts}, err
		}
		return recognition{text: out.Text, confidence: out.Confidence, pages: out.Pages, attempts: out.Attempts}, nil
	default:
		return recognition{}, errNoOCRRoute
	}
}

func (p *Pipeline) recognizer(name string) (Recognizer, string, error) {
	if name == "" {
		name = p.defaultProvider
	}
	if name == "" {
		return nil, "", nil
	}
	r, ok := p.recognizers[name]
	if !ok {
		return nil, "", common.NewAppError("INVALID_PROVIDER", fmt.Sprintf("unknown OCR provider %q", name), common.ErrInvalidInput)
	}
	return r, name, nil
}

// Providers lists the OCR provider names accepted in Input.Provider.
func (p *Pipeline) Providers() []string {
	return slices.Sorted(maps.Keys(p.recognizers))
}

func observe(stage string, start time.Time) {
	metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}
