package rules

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/doc-intake/constants"
)

func TestDefault(t *testing.T) {
	s := Default()
	require.NotNil(t, s)
	assert.Same(t, s, Default())
	assert.Equal(t, DefaultQuorum, s.Quorum())

	anchors := s.Anchors()
	require.Len(t, anchors, len(constants.KnownDocumentTypes))
	for i, dt := range constants.KnownDocumentTypes {
		assert.Equal(t, dt, anchors[i].DocumentType)
		assert.GreaterOrEqual(t, len(anchors[i].Patterns), s.Quorum())
	}

	for _, dt := range append([]constants.DocumentType{constants.DocumentTypeUnknown}, constants.KnownDocumentTypes...) {
		assert.NotEmpty(t, s.FieldRules(dt), "rules for %s", dt)
	}
	assert.Equal(t,
		[]string{"corporateNumber", "companyName", "headOfficeAddress", "capital", "establishedDate", "representative"},
		s.ExpectedFields(constants.DocumentTypeCorporateRegistry))
}

func TestSetIsNotMutatedByCallers(t *testing.T) {
	s := Default()
	anchors := s.Anchors()
	anchors[0].DocumentType = constants.DocumentTypeInvoice
	rules := s.FieldRules(constants.DocumentTypeInvoice)
	rules[0].FieldName = "mutated"

	assert.Equal(t, constants.DocumentTypeCorporateRegistry, s.Anchors()[0].DocumentType)
	assert.Equal(t, "invoiceNumber", s.FieldRules(constants.DocumentTypeInvoice)[0].FieldName)
}

func TestNewRejectsBadConfig(t *testing.T) {
	re := regexp.MustCompile(`a`)
	tests := []struct {
		name    string
		quorum  int
		anchors []Anchor
		fields  map[constants.DocumentType][]FieldRule
	}{
		{name: "zero quorum", quorum: 0},
		{name: "unknown anchor", quorum: 2, anchors: []Anchor{{DocumentType: constants.DocumentTypeUnknown, Patterns: []*regexp.Regexp{re}}}},
		{name: "duplicate anchor", quorum: 2, anchors: []Anchor{
			{DocumentType: constants.DocumentTypeInvoice, Patterns: []*regexp.Regexp{re}},
			{DocumentType: constants.DocumentTypeInvoice, Patterns: []*regexp.Regexp{re}},
		}},
		{name: "empty anchor", quorum: 2, anchors: []Anchor{{DocumentType: constants.DocumentTypeInvoice}}},
		{name: "no capture group", quorum: 2, fields: map[constants.DocumentType][]FieldRule{
			constants.DocumentTypeInvoice: {{FieldName: "x", Pattern: re, PostProcess: PostTrim}},
		}},
		{name: "bad post process", quorum: 2, fields: map[constants.DocumentType][]FieldRule{
			constants.DocumentTypeInvoice: {{FieldName: "x", Pattern: regexp.MustCompile(`(a)`), PostProcess: "upper"}},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.quorum, tt.anchors, tt.fields)
			assert.Error(t, err)
		})
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	doc := `
quorum: 3
anchors:
  - documentType: INVOICE
    patterns: ["請求書", "請求金額", "振込先"]
fieldRules:
  INVOICE:
    - field: total
      pattern: "合計\\s*([0-9,]+)"
      postProcess: parseInt
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	s, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 3, s.Quorum())
	require.Len(t, s.Anchors(), 1)
	assert.Equal(t, constants.DocumentTypeInvoice, s.Anchors()[0].DocumentType)
	assert.Equal(t, []string{"total"}, s.ExpectedFields(constants.DocumentTypeInvoice))
	// untouched types keep the built-in rules
	assert.Equal(t, Default().ExpectedFields(constants.DocumentTypeQuotation), s.ExpectedFields(constants.DocumentTypeQuotation))
}

func TestParseRejectsInvalidFiles(t *testing.T) {
	tests := map[string]string{
		"unknown type":     "anchors:\n  - documentType: RECEIPT\n    patterns: [\"a\"]\n",
		"unknown key":      "colour: blue\n",
		"bad post process": "fieldRules:\n  INVOICE:\n    - field: x\n      pattern: \"(a)\"\n      postProcess: upper\n",
		"invalid regex":    "fieldRules:\n  INVOICE:\n    - field: x\n      pattern: \"(a\"\n",
		"missing capture":  "fieldRules:\n  INVOICE:\n    - field: x\n      pattern: \"a\"\n",
		"empty patterns":   "anchors:\n  - documentType: INVOICE\n    patterns: []\n",
		"not yaml mapping": "- a\n- b\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestParseEmptyFileUsesDefaults(t *testing.T) {
	s, err := Parse([]byte("\n"))
	require.NoError(t, err)
	assert.Same(t, Default(), s)
}
