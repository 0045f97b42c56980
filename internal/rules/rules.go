// Package rules holds the static anchor and field-rule configuration shared by every pipeline run.
// A Set is built once at startup and is read-only afterwards.
package rules

import (
	"fmt"
	"regexp"
	"slices"

	"github.com/joseph-ayodele/doc-intake/constants"
)

// PostProcess names the conversion applied to a captured field value.
type PostProcess string

const (
	PostNone             PostProcess = "none"
	PostTrim             PostProcess = "trim"
	PostParseInt         PostProcess = "parseInt"
	PostNormalizeAddress PostProcess = "normalizeAddress"
	PostConvertEra       PostProcess = "convertEra"
	PostParseDate        PostProcess = "parseDate"
)

// PostProcesses lists every accepted PostProcess value.
var PostProcesses = []PostProcess{PostNone, PostTrim, PostParseInt, PostNormalizeAddress, PostConvertEra, PostParseDate}

// DefaultQuorum is the minimum number of anchor hits needed to classify a document.
const DefaultQuorum = 2

// FieldRule extracts one field. The first capture group of Pattern is the raw value.
type FieldRule struct {
	FieldName   string
	Pattern     *regexp.Regexp
	PostProcess PostProcess
}

// Anchor is the ordered pattern list that votes for one document type.
type Anchor struct {
	DocumentType constants.DocumentType
	Patterns     []*regexp.Regexp
}

// Set is the immutable rule configuration.
type Set struct {
	quorum  int
	anchors []Anchor
	fields  map[constants.DocumentType][]FieldRule
}

// New validates and copies the supplied configuration into a Set.
// Field rules keyed by DocumentTypeUnknown form the generic rule list.
func New(quorum int, anchors []Anchor, fields map[constants.DocumentType][]FieldRule) (*Set, error) {
	if quorum < 1 {
		return nil, fmt.Errorf("quorum must be >= 1, got %d", quorum)
	}
	s := &Set{
		quorum: quorum,
		fields: make(map[constants.DocumentType][]FieldRule, len(fields)),
	}
	seen := map[constants.DocumentType]struct{}{}
	for _, a := range anchors {
		if a.DocumentType == constants.DocumentTypeUnknown {
			return nil, fmt.Errorf("anchor for %s is not allowed", a.DocumentType)
		}
		if _, dup := seen[a.DocumentType]; dup {
			return nil, fmt.Errorf("duplicate anchor for %s", a.DocumentType)
		}
		if len(a.Patterns) == 0 {
			return nil, fmt.Errorf("anchor %s has no patterns", a.DocumentType)
		}
		seen[a.DocumentType] = struct{}{}
		s.anchors = append(s.anchors, Anchor{DocumentType: a.DocumentType, Patterns: slices.Clone(a.Patterns)})
	}
	for dt, list := range fields {
		for _, r := range list {
			if err := checkRule(r); err != nil {
				return nil, fmt.Errorf("%s: %w", dt, err)
			}
		}
		s.fields[dt] = slices.Clone(list)
	}
	return s, nil
}

func checkRule(r FieldRule) error {
	if r.FieldName == "" {
		return fmt.Errorf("field rule without name")
	}
	if r.Pattern == nil {
		return fmt.Errorf("field %q has no pattern", r.FieldName)
	}
	if r.Pattern.NumSubexp() < 1 {
		return fmt.Errorf("field %q pattern has no capture group", r.FieldName)
	}
	if !slices.Contains(PostProcesses, r.PostProcess) {
		return fmt.Errorf("field %q has unknown postProcess %q", r.FieldName, r.PostProcess)
	}
	return nil
}

// Quorum returns the anchor hit count needed for a classification.
func (s *Set) Quorum() int { return s.quorum }

// Anchors returns the anchors in evaluation order.
func (s *Set) Anchors() []Anchor { return slices.Clone(s.anchors) }

// FieldRules returns the ordered rules for dt. Unknown yields the generic rules.
func (s *Set) FieldRules(dt constants.DocumentType) []FieldRule {
	return slices.Clone(s.fields[dt])
}

// ExpectedFields lists the distinct field names the rules for dt can produce, in rule order.
func (s *Set) ExpectedFields(dt constants.DocumentType) []string {
	var out []string
	for _, r := range s.fields[dt] {
		if !slices.Contains(out, r.FieldName) {
			out = append(out, r.FieldName)
		}
	}
	return out
}
