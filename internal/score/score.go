// Package score assigns heuristic confidences to extracted fields.
// Each rule is simple enough for a reviewer to check by hand.
package score

import (
	"slices"
	"unicode"
	"unicode/utf8"

	"github.com/joseph-ayodele/doc-intake/internal/fields"
)

const (
	Missing  = 0.0
	Short    = 0.5
	Baseline = 0.85
	Numeric  = 0.95
)

// Value scores a single rendered field value.
func Value(s string) float64 {
	switch {
	case s == "":
		return Missing
	case utf8.RuneCountInString(s) < 2:
		return Short
	case isNumeric(s):
		return Numeric
	default:
		return Baseline
	}
}

// Fields scores every extracted field and every expected field that is missing (0).
func Fields(f fields.Fields, expected []string) map[string]float64 {
	out := make(map[string]float64, len(f)+len(expected))
	for _, name := range expected {
		out[name] = Missing
	}
	for name, v := range f {
		out[name] = Value(v.String())
	}
	return out
}

// Overall is the mean field confidence scaled by how trustworthy the text source was:
// 1 for native text, the winning OCR confidence otherwise.
func Overall(confidence map[string]float64, provenance float64) float64 {
	if len(confidence) == 0 {
		return 0
	}
	var sum float64
	for _, c := range confidence {
		sum += c
	}
	return sum / float64(len(confidence)) * clamp(provenance)
}

// NeedsReview lists the fields whose confidence falls below threshold.
func NeedsReview(confidence map[string]float64, threshold float64) []string {
	var out []string
	for name, c := range confidence {
		if c < threshold {
			out = append(out, name)
		}
	}
	slices.Sort(out)
	return out
}

func isNumeric(s string) bool {
	if s[0] == '-' {
		s = s[1:]
	}
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
