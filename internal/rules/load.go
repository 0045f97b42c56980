package rules

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/joseph-ayodele/doc-intake/constants"
	"github.com/joseph-ayodele/doc-intake/internal/schema"
)

type fileDoc struct {
	Quorum     int                  `yaml:"quorum,omitempty" json:"quorum,omitempty"`
	Anchors    []anchorDoc          `yaml:"anchors,omitempty" json:"anchors,omitempty"`
	FieldRules map[string][]ruleDoc `yaml:"fieldRules,omitempty" json:"fieldRules,omitempty"`
}

type anchorDoc struct {
	DocumentType string   `yaml:"documentType" json:"documentType"`
	Patterns     []string `yaml:"patterns" json:"patterns"`
}

type ruleDoc struct {
	Field       string `yaml:"field" json:"field"`
	Pattern     string `yaml:"pattern" json:"pattern"`
	PostProcess string `yaml:"postProcess,omitempty" json:"postProcess,omitempty"`
}

// fileSchema constrains rule override files before any pattern is compiled.
func fileSchema() map[string]any {
	var types []any
	for _, dt := range constants.KnownDocumentTypes {
		types = append(types, string(dt))
	}
	var posts []any
	for _, p := range PostProcesses {
		posts = append(posts, string(p))
	}
	rule := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []any{"field", "pattern"},
		"properties": map[string]any{
			"field":       map[string]any{"type": "string", "minLength": 1},
			"pattern":     map[string]any{"type": "string", "minLength": 1},
			"postProcess": map[string]any{"type": "string", "enum": posts},
		},
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"quorum": map[string]any{"type": "integer", "minimum": 1},
			"anchors": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"required":             []any{"documentType", "patterns"},
					"properties": map[string]any{
						"documentType": map[string]any{"type": "string", "enum": types},
						"patterns": map[string]any{
							"type":     "array",
							"minItems": 1,
							"items":    map[string]any{"type": "string", "minLength": 1},
						},
					},
				},
			},
			"fieldRules": map[string]any{
				"type":          "object",
				"propertyNames": map[string]any{"enum": append(types, string(constants.DocumentTypeUnknown))},
				"additionalProperties": map[string]any{
					"type":  "array",
					"items": rule,
				},
			},
		},
	}
}

// LoadFile reads a YAML override file and layers it over the built-in rules.
// Anchors, when present, replace the whole anchor list (their order is the evaluation order).
// Field rules replace the built-in list for each document type they name.
func LoadFile(path string) (*Set, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	return Parse(raw)
}

// Parse is LoadFile over an in-memory document.
func Parse(raw []byte) (*Set, error) {
	var generic any
	if err := yaml.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("parse rules yaml: %w", err)
	}
	if generic == nil {
		return Default(), nil
	}
	compiled, err := schema.Compile("rules.json", fileSchema())
	if err != nil {
		return nil, err
	}
	if err := schema.ValidateValue(compiled, generic); err != nil {
		return nil, fmt.Errorf("rules file: %w", err)
	}

	var doc fileDoc
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode rules yaml: %w", err)
	}

	merged := fileDoc{
		Quorum:     defaultDoc.Quorum,
		Anchors:    defaultDoc.Anchors,
		FieldRules: make(map[string][]ruleDoc, len(defaultDoc.FieldRules)),
	}
	for k, v := range defaultDoc.FieldRules {
		merged.FieldRules[k] = v
	}
	if doc.Quorum > 0 {
		merged.Quorum = doc.Quorum
	}
	if len(doc.Anchors) > 0 {
		merged.Anchors = doc.Anchors
	}
	for k, v := range doc.FieldRules {
		merged.FieldRules[k] = v
	}
	return merged.compile()
}

func (d fileDoc) compile() (*Set, error) {
	anchors := make([]Anchor, 0, len(d.Anchors))
	for _, a := range d.Anchors {
		anchor := Anchor{DocumentType: constants.ParseDocumentType(a.DocumentType)}
		if anchor.DocumentType == constants.DocumentTypeUnknown {
			return nil, fmt.Errorf("anchor: unknown document type %q", a.DocumentType)
		}
		for _, p := range a.Patterns {
			re, err := regexp.Compile(p)
			if err != nil {
				return nil, fmt.Errorf("anchor %s: %w", a.DocumentType, err)
			}
			anchor.Patterns = append(anchor.Patterns, re)
		}
		anchors = append(anchors, anchor)
	}

	fields := make(map[constants.DocumentType][]FieldRule, len(d.FieldRules))
	for key, list := range d.FieldRules {
		dt := constants.ParseDocumentType(key)
		if dt == constants.DocumentTypeUnknown && key != string(constants.DocumentTypeUnknown) {
			return nil, fmt.Errorf("field rules: unknown document type %q", key)
		}
		for _, r := range list {
			re, err := regexp.Compile(r.Pattern)
			if err != nil {
				return nil, fmt.Errorf("field rules %s.%s: %w", key, r.Field, err)
			}
			pp := PostProcess(r.PostProcess)
			if pp == "" {
				pp = PostNone
			}
			fields[dt] = append(fields[dt], FieldRule{FieldName: r.Field, Pattern: re, PostProcess: pp})
		}
	}
	return New(d.Quorum, anchors, fields)
}
