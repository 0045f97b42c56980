package ocr

import (
	"context"
)

// Role names the position an engine holds in the fallback chain.
type Role string

const (
	RolePrimary  Role = "Primary"
	RoleFallback Role = "Fallback"
)

// Image is a single rendered page handed to an engine.
type Image struct {
	Data     []byte
	MimeType string
	Page     int // 1-based, 0 when the source was a single image
}

// Recognition is what an engine reports for one image.
type Recognition struct {
	Text       string
	Confidence float64 // 0..1
}

// Engine recognizes text. An engine lives for exactly one attempt and must be
// closed by whoever created it.
type Engine interface {
	Recognize(ctx context.Context, img Image, language string) (Recognition, error)
	Close() error
}

// Provider hands out fresh engines. Nothing configured on one engine may leak into another.
type Provider interface {
	Name() string
	NewEngine(ctx context.Context) (Engine, error)
}

// Attempt records a single engine run, successful or not.
type Attempt struct {
	Engine       Role    `json:"engine"`
	Provider     string  `json:"provider"`
	Page         int     `json:"page,omitempty"`
	Text         string  `json:"text"`
	Confidence   float64 `json:"confidence"`
	ElapsedMs    uint64  `json:"elapsedMs"`
	Failed       bool    `json:"failed"`
	ErrorMessage string  `json:"errorMessage,omitempty"`
}

// Options tune a single recognition call.
type Options struct {
	Language string
	// ConfidenceThreshold at or above which the primary result is accepted.
	// Values <= 0 select the orchestrator default.
	ConfidenceThreshold float64
}

// Outcome is the winning attempt plus every attempt made to get there.
type Outcome struct {
	Winner   Attempt
	Attempts []Attempt
}

// PagesOutcome merges per-page outcomes of a rasterized document.
type PagesOutcome struct {
	Text       string
	Confidence float64 // lowest winning page confidence
	Pages      int     // pages that produced text
	Attempts   []Attempt
}
