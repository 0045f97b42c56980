package fields

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/joseph-ayodele/doc-intake/constants"
	"github.com/joseph-ayodele/doc-intake/internal/rules"
)

// Extractor pulls the fields of one document type out of normalized text.
type Extractor interface {
	ExtractFields(text string) Fields
}

// Engine selects the extractor for a classified document. It holds no mutable state.
type Engine struct {
	rules  *rules.Set
	logger *slog.Logger
}

func NewEngine(set *rules.Set, logger *slog.Logger) *Engine {
	if set == nil {
		set = rules.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{rules: set, logger: logger}
}

// ExtractFields never fails: rules that do not match, or whose value cannot be
// converted, leave their field out.
func (e *Engine) ExtractFields(text string, dt constants.DocumentType) Fields {
	return e.For(dt).ExtractFields(text)
}

// For returns the extractor for dt. Unrecognized values use the generic rules.
func (e *Engine) For(dt constants.DocumentType) Extractor {
	switch dt {
	case constants.DocumentTypeCorporateRegistry:
		return corporateRegistryExtractor{e.ruleList(dt)}
	case constants.DocumentTypeTaxCertificate:
		return taxCertificateExtractor{e.ruleList(dt)}
	case constants.DocumentTypeFinancialStatement:
		return financialStatementExtractor{e.ruleList(dt)}
	case constants.DocumentTypeQuotation:
		return quotationExtractor{e.ruleList(dt)}
	case constants.DocumentTypeInvoice:
		return invoiceExtractor{e.ruleList(dt)}
	case constants.DocumentTypeUnknown:
		return genericExtractor{e.ruleList(constants.DocumentTypeUnknown)}
	default:
		e.logger.Warn("fields.unknown_type", "document_type", string(dt))
		return genericExtractor{e.ruleList(constants.DocumentTypeUnknown)}
	}
}

// ExpectedFields lists the field names the rules for dt can produce.
func (e *Engine) ExpectedFields(dt constants.DocumentType) []string {
	return e.rules.ExpectedFields(dt)
}

func (e *Engine) ruleList(dt constants.DocumentType) ruleList {
	return ruleList{rules: e.rules.FieldRules(dt), logger: e.logger.With("document_type", string(dt))}
}

// ruleList applies field rules in order; the first successful rule per field wins.
type ruleList struct {
	rules  []rules.FieldRule
	logger *slog.Logger
}

func (l ruleList) apply(text string) Fields {
	out := Fields{}
	for _, r := range l.rules {
		if _, done := out[r.FieldName]; done {
			continue
		}
		m := r.Pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		v, err := apply(r.PostProcess, m[1])
		if err != nil {
			l.logger.Debug("fields.postprocess_failed",
				"field", r.FieldName,
				"post_process", string(r.PostProcess),
				"raw", m[1],
				"error", err,
			)
			continue
		}
		if v.IsEmpty() {
			continue
		}
		out[r.FieldName] = v
	}
	return out
}

type corporateRegistryExtractor struct{ ruleList }

func (x corporateRegistryExtractor) ExtractFields(text string) Fields {
	out := x.apply(text)
	officers := parseOfficers(text)
	if len(officers) == 0 {
		return out
	}
	names := make([]string, 0, len(officers))
	for _, o := range officers {
		names = append(names, o.role+" "+o.name)
		if o.role == roleRepresentative {
			if _, ok := out["representative"]; !ok {
				out["representative"] = String(o.name)
			}
			if _, ok := out["representativeAddress"]; !ok && o.address != "" {
				out["representativeAddress"] = String(o.address)
			}
			if _, ok := out["representativeAppointed"]; !ok && !o.appointed.IsZero() {
				out["representativeAppointed"] = Date(o.appointed)
			}
		}
	}
	out["officers"] = String(strings.Join(names, "、"))
	out["officerCount"] = Int(int64(len(officers)))
	return out
}

type taxCertificateExtractor struct{ ruleList }

func (x taxCertificateExtractor) ExtractFields(text string) Fields { return x.apply(text) }

var reUnit = regexp.MustCompile(`単位\s*[:]?\s*(百万円|千円|円)`)

// amountFields are the statement lines scaled by the declared unit.
var amountFields = []string{"netSales", "operatingIncome", "ordinaryIncome", "netIncome", "totalAssets", "netAssets"}

type financialStatementExtractor struct{ ruleList }

// ExtractFields reports amounts in yen, applying a "(単位:千円)" style unit declaration.
func (x financialStatementExtractor) ExtractFields(text string) Fields {
	out := x.apply(text)
	var mult int64 = 1
	if m := reUnit.FindStringSubmatch(text); m != nil {
		switch m[1] {
		case "千円":
			mult = 1_000
		case "百万円":
			mult = 1_000_000
		}
	}
	if mult == 1 {
		return out
	}
	for _, name := range amountFields {
		if i, ok := out[name].Int64(); ok {
			out[name] = Int(i * mult)
		}
	}
	return out
}

type quotationExtractor struct{ ruleList }

func (x quotationExtractor) ExtractFields(text string) Fields { return x.apply(text) }

type invoiceExtractor struct{ ruleList }

func (x invoiceExtractor) ExtractFields(text string) Fields { return x.apply(text) }

type genericExtractor struct{ ruleList }

func (x genericExtractor) ExtractFields(text string) Fields { return x.apply(text) }
