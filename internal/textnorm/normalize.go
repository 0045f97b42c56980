// Package textnorm applies the single width convention every downstream regex assumes.
package textnorm

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

var (
	reCRLF       = regexp.MustCompile(`\r\n?`)
	reTabs       = regexp.MustCompile(`\t+`)
	reMultiSpace = regexp.MustCompile(` {2,}`)
	reMultiBlank = regexp.MustCompile(`\n{3,}`)
	reBoxNoise   = regexp.MustCompile(`(?m)^\s*[_\-]{3,}\s*$`)
)

// Width folds full-width ASCII to half-width and half-width katakana to full-width.
// Voiced sound marks split off by folding are recomposed (ｶﾞ -> ガ).
func Width(s string) string {
	return norm.NFC.String(width.Fold.String(s))
}

// Normalize is the pipeline-wide text normalization: width folding, then whitespace cleanup.
// Line breaks are kept; runs of more than one blank line collapse to one.
func Normalize(s string) string {
	if s == "" {
		return s
	}
	s = strings.ReplaceAll(Width(s), "\u3000", " ")
	s = reCRLF.ReplaceAllString(s, "\n")
	s = reTabs.ReplaceAllString(s, " ")
	s = reMultiSpace.ReplaceAllString(s, " ")
	s = reBoxNoise.ReplaceAllString(s, "")
	s = reMultiBlank.ReplaceAllString(s, "\n\n")
	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = strings.TrimRight(lines[i], " ")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// StripSpaces removes every whitespace rune, including the ideographic space.
func StripSpaces(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r', '\u3000', '\u00a0':
			return -1
		}
		return r
	}, s)
}
