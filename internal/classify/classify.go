// Package classify assigns a document type from anchor pattern hits.
package classify

import (
	"log/slog"

	"github.com/joseph-ayodele/doc-intake/constants"
	"github.com/joseph-ayodele/doc-intake/internal/rules"
)

// Score is the anchor hit count for one document type.
type Score struct {
	DocumentType constants.DocumentType `json:"documentType"`
	Hits         int                    `json:"hits"`
	Matched      []string               `json:"matched,omitempty"` // pattern sources that hit
}

// Classifier is safe for concurrent use; it only reads the rule set.
type Classifier struct {
	rules  *rules.Set
	logger *slog.Logger
}

func New(set *rules.Set, logger *slog.Logger) *Classifier {
	if set == nil {
		set = rules.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{rules: set, logger: logger}
}

// Classify expects text already passed through textnorm.Normalize.
//
// Anchors are evaluated in configured order and the first type whose hit count
// reaches the quorum wins, even if a later type would score higher.
func (c *Classifier) Classify(text string) constants.DocumentType {
	quorum := c.rules.Quorum()
	for _, a := range c.rules.Anchors() {
		if hits(a, text) >= quorum {
			return a.DocumentType
		}
	}
	return constants.DocumentTypeUnknown
}

// Explain scores every anchor without short-circuiting. Used for logging and review.
func (c *Classifier) Explain(text string) []Score {
	anchors := c.rules.Anchors()
	out := make([]Score, 0, len(anchors))
	for _, a := range anchors {
		s := Score{DocumentType: a.DocumentType}
		for _, p := range a.Patterns {
			if p.MatchString(text) {
				s.Hits++
				s.Matched = append(s.Matched, p.String())
			}
		}
		out = append(out, s)
	}
	return out
}

// Ambiguous reports whether more than one type reached the quorum.
func (c *Classifier) Ambiguous(text string) bool {
	n := 0
	for _, s := range c.Explain(text) {
		if s.Hits >= c.rules.Quorum() {
			n++
		}
	}
	if n > 1 {
		c.logger.Debug("classify.ambiguous", "types_at_quorum", n)
	}
	return n > 1
}

func hits(a rules.Anchor, text string) int {
	n := 0
	for _, p := range a.Patterns {
		if p.MatchString(text) {
			n++
		}
	}
	return n
}
