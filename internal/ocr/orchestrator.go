package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joseph-ayodele/doc-intake/internal/common"
	"github.com/joseph-ayodele/doc-intake/internal/metrics"
)

const (
	DefaultConfidenceThreshold = 0.88
	DefaultAttemptTimeout      = 30 * time.Second
	DefaultLanguage            = "jpn+eng"

	pageSeparator = "\n\f\n"
)

var errEmptyRecognition = errors.New("engine returned no text")

// Orchestrator runs the primary engine and, when it fails or is not confident
// enough, the fallback engine. Each attempt gets a fresh engine that is torn
// down before the attempt is reported.
type Orchestrator struct {
	primary   Provider
	fallback  Provider
	timeout   time.Duration
	threshold float64
	language  string
	logger    *slog.Logger
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithAttemptTimeout bounds each individual engine attempt.
func WithAttemptTimeout(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithConfidenceThreshold sets the default acceptance threshold.
func WithConfidenceThreshold(t float64) OrchestratorOption {
	return func(o *Orchestrator) {
		if t > 0 {
			o.threshold = t
		}
	}
}

// WithLanguage sets the default recognition language.
func WithLanguage(lang string) OrchestratorOption {
	return func(o *Orchestrator) {
		if lang != "" {
			o.language = lang
		}
	}
}

// NewOrchestrator wires a primary and fallback provider.
func NewOrchestrator(primary, fallback Provider, logger *slog.Logger, opts ...OrchestratorOption) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		primary:   primary,
		fallback:  fallback,
		timeout:   DefaultAttemptTimeout,
		threshold: DefaultConfidenceThreshold,
		language:  DefaultLanguage,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// RecognizeWithFallback returns the winning attempt for one image.
func (o *Orchestrator) RecognizeWithFallback(ctx context.Context, img Image, opts Options) (Attempt, error) {
	out, err := o.Recognize(ctx, img, opts)
	return out.Winner, err
}

// Recognize returns the winning attempt along with the full attempt history.
//
// The fallback result wins whenever it succeeds, even if its confidence is
// below the threshold. When the fallback fails after a usable but
// low-confidence primary, the primary result is kept.
func (o *Orchestrator) Recognize(ctx context.Context, img Image, opts Options) (Outcome, error) {
	lang := opts.Language
	if lang == "" {
		lang = o.language
	}
	threshold := opts.ConfidenceThreshold
	if threshold <= 0 {
		threshold = o.threshold
	}

	var out Outcome
	primary := o.attempt(ctx, RolePrimary, o.primary, img, lang)
	out.Attempts = append(out.Attempts, primary)
	if !primary.Failed && primary.Confidence >= threshold {
		out.Winner = primary
		return out, nil
	}
	if err := ctx.Err(); err != nil {
		return out, err
	}

	reason := "below_threshold"
	if primary.Failed {
		reason = "primary_failed"
	}
	metrics.OCRFallbacksTotal.WithLabelValues(reason).Inc()
	o.logger.Info("ocr.fallback",
		"file_id", common.FileIDFromContext(ctx),
		"reason", reason,
		"primary", primary.Provider,
		"primary_confidence", primary.Confidence,
		"threshold", threshold,
		"page", img.Page,
	)

	fallback := o.attempt(ctx, RoleFallback, o.fallback, img, lang)
	out.Attempts = append(out.Attempts, fallback)
	switch {
	case !fallback.Failed:
		out.Winner = fallback
		return out, nil
	case !primary.Failed:
		out.Winner = primary
		return out, nil
	}
	if err := ctx.Err(); err != nil {
		return out, err
	}
	return out, fmt.Errorf("%w: %s: %s; %s: %s", common.ErrOcrUnavailable,
		primary.Provider, primary.ErrorMessage, fallback.Provider, fallback.ErrorMessage)
}

// RecognizePages runs Recognize over every page and joins the winning text.
// Pages whose engines both fail are skipped; the call fails only when no page
// produced text.
func (o *Orchestrator) RecognizePages(ctx context.Context, pages []Image, opts Options) (PagesOutcome, error) {
	var (
		res   PagesOutcome
		parts []string
		errs  []error
	)
	res.Confidence = 1
	for _, page := range pages {
		out, err := o.Recognize(ctx, page, opts)
		res.Attempts = append(res.Attempts, out.Attempts...)
		if err != nil {
			if ctx.Err() != nil {
				return res, err
			}
			o.logger.Warn("ocr.page_failed", "file_id", common.FileIDFromContext(ctx), "page", page.Page, "error", err)
			errs = append(errs, err)
			continue
		}
		parts = append(parts, out.Winner.Text)
		res.Pages++
		if out.Winner.Confidence < res.Confidence {
			res.Confidence = out.Winner.Confidence
		}
	}
	if res.Pages == 0 {
		res.Confidence = 0
		if len(errs) == 0 {
			return res, fmt.Errorf("%w: no pages to recognize", common.ErrOcrUnavailable)
		}
		return res, errors.Join(errs...)
	}
	res.Text = strings.Join(parts, pageSeparator)
	return res, nil
}

func (o *Orchestrator) attempt(ctx context.Context, role Role, p Provider, img Image, lang string) Attempt {
	a := Attempt{Engine: role, Page: img.Page}
	if p == nil {
		a.Provider = "none"
		a.Failed = true
		a.ErrorMessage = "no engine configured"
		return a
	}
	a.Provider = p.Name()

	actx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	start := time.Now()
	rec, err := o.run(actx, p, img, lang)
	elapsed := time.Since(start)
	a.ElapsedMs = uint64(elapsed.Milliseconds())
	metrics.OCRAttemptDuration.WithLabelValues(a.Provider, string(role)).Observe(elapsed.Seconds())

	if err == nil && strings.TrimSpace(rec.Text) == "" {
		err = errEmptyRecognition
	}

	outcome := "success"
	switch {
	case err != nil && errors.Is(actx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		a.Failed = true
		a.ErrorMessage = "timeout"
		outcome = "timeout"
	case err != nil:
		a.Failed = true
		a.ErrorMessage = err.Error()
		outcome = "error"
	default:
		a.Text = rec.Text
		a.Confidence = clamp01(rec.Confidence)
	}
	metrics.OCRAttemptsTotal.WithLabelValues(a.Provider, string(role), outcome).Inc()

	o.logger.Debug("ocr.attempt",
		"provider", a.Provider,
		"role", string(role),
		"page", img.Page,
		"confidence", a.Confidence,
		"elapsed_ms", a.ElapsedMs,
		"failed", a.Failed,
		"error", a.ErrorMessage,
	)
	return a
}

// run acquires an engine, recognizes and releases it. It returns as soon as ctx
// is done; an engine still busy at that point is closed by its goroutine once
// Recognize returns, which ctx cancellation is expected to bring about.
func (o *Orchestrator) run(ctx context.Context, p Provider, img Image, lang string) (Recognition, error) {
	type result struct {
		rec Recognition
		err error
	}
	done := make(chan result, 1)
	go func() {
		if err := ctx.Err(); err != nil {
			done <- result{err: err}
			return
		}
		engine, err := p.NewEngine(ctx)
		if err != nil {
			done <- result{err: fmt.Errorf("start %s: %w", p.Name(), err)}
			return
		}
		defer func() {
			if cerr := engine.Close(); cerr != nil {
				o.logger.Warn("ocr.engine.close_failed", "provider", p.Name(), "error", cerr)
			}
		}()
		rec, err := engine.Recognize(ctx, img, lang)
		done <- result{rec: rec, err: err}
	}()

	select {
	case r := <-done:
		return r.rec, r.err
	case <-ctx.Done():
		select {
		case r := <-done:
			return r.rec, r.err
		default:
		}
		return Recognition{}, ctx.Err()
	}
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
