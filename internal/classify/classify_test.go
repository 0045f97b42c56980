package classify

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/doc-intake/constants"
	"github.com/joseph-ayodele/doc-intake/internal/rules"
	"github.com/joseph-ayodele/doc-intake/internal/textnorm"
)

func TestClassifyDefaults(t *testing.T) {
	c := New(nil, nil)
	tests := []struct {
		name string
		text string
		want constants.DocumentType
	}{
		{"corporate registry", "履歴事項全部証明書\n会社法人等番号 0104-01-123456\n商 号 株式会社サンプル", constants.DocumentTypeCorporateRegistry},
		{"tax certificate", "納税証明書(その1)\n税 目 法人税\n納付すべき税額 120,000円", constants.DocumentTypeTaxCertificate},
		{"financial statement", "第20期 決算報告書\n貸借対照表", constants.DocumentTypeFinancialStatement},
		{"quotation", "御見積書\n御見積金額 ¥1,200", constants.DocumentTypeQuotation},
		{"invoice", "請求書\nご請求金額 55,000円\nお支払期限 2024年5月31日", constants.DocumentTypeInvoice},
		{"single anchor hit is not enough", "この請求書はサンプルです", constants.DocumentTypeUnknown},
		{"unrelated text", "Hello world", constants.DocumentTypeUnknown},
		{"empty", "", constants.DocumentTypeUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.text))
		})
	}
}

func TestClassifyFullWidthInputAfterNormalize(t *testing.T) {
	raw := "ご請求金額　５５，０００円\r\n振込先　ﾐｽﾞﾎ銀行"
	assert.Equal(t, constants.DocumentTypeInvoice, New(nil, nil).Classify(textnorm.Normalize(raw)))
}

func testSet(t *testing.T, order ...constants.DocumentType) *rules.Set {
	t.Helper()
	patterns := map[constants.DocumentType][]*regexp.Regexp{
		constants.DocumentTypeQuotation: {regexp.MustCompile(`alpha`), regexp.MustCompile(`beta`), regexp.MustCompile(`gamma`)},
		constants.DocumentTypeInvoice:   {regexp.MustCompile(`delta`), regexp.MustCompile(`epsilon`), regexp.MustCompile(`zeta`)},
	}
	var anchors []rules.Anchor
	for _, dt := range order {
		anchors = append(anchors, rules.Anchor{DocumentType: dt, Patterns: patterns[dt]})
	}
	set, err := rules.New(rules.DefaultQuorum, anchors, nil)
	require.NoError(t, err)
	return set
}

func TestClassifyQuorum(t *testing.T) {
	c := New(testSet(t, constants.DocumentTypeQuotation, constants.DocumentTypeInvoice), nil)

	assert.Equal(t, constants.DocumentTypeUnknown, c.Classify("alpha"))
	assert.Equal(t, constants.DocumentTypeQuotation, c.Classify("alpha beta"))
	// one quotation hit does not block a later type at quorum
	assert.Equal(t, constants.DocumentTypeInvoice, c.Classify("alpha delta epsilon"))
}

func TestClassifyFirstAnchorAtQuorumWins(t *testing.T) {
	text := "alpha beta delta epsilon zeta"

	qFirst := New(testSet(t, constants.DocumentTypeQuotation, constants.DocumentTypeInvoice), nil)
	assert.Equal(t, constants.DocumentTypeQuotation, qFirst.Classify(text), "invoice scores higher but is listed later")
	assert.True(t, qFirst.Ambiguous(text))

	iFirst := New(testSet(t, constants.DocumentTypeInvoice, constants.DocumentTypeQuotation), nil)
	assert.Equal(t, constants.DocumentTypeInvoice, iFirst.Classify(text))
}

func TestExplain(t *testing.T) {
	c := New(testSet(t, constants.DocumentTypeQuotation, constants.DocumentTypeInvoice), nil)
	scores := c.Explain("alpha gamma zeta")
	require.Len(t, scores, 2)
	assert.Equal(t, Score{DocumentType: constants.DocumentTypeQuotation, Hits: 2, Matched: []string{"alpha", "gamma"}}, scores[0])
	assert.Equal(t, Score{DocumentType: constants.DocumentTypeInvoice, Hits: 1, Matched: []string{"zeta"}}, scores[1])
	assert.False(t, c.Ambiguous("alpha gamma zeta"))
}
