package rules

import (
	"sync"

	"github.com/joseph-ayodele/doc-intake/constants"
)

const (
	eraYear  = `(?:令和|平成|昭和|大正)\s*(?:元|[0-9]{1,2})\s*年`
	anyDate  = `(?:` + eraYear + `\s*[0-9]{1,2}\s*月\s*[0-9]{1,2}\s*日|[0-9]{4}\s*年\s*[0-9]{1,2}\s*月\s*[0-9]{1,2}\s*日|[0-9]{4}[/\-.][0-9]{1,2}[/\-.][0-9]{1,2})`
	sep      = `\s*[:]?\s*`
	yen      = `[¥￥]?\s*`
	amount   = `((?:[△▲-]\s*)?[0-9][0-9,]*)`
	restLine = `([^\n]+)`
)

// defaultDoc is the built-in rule configuration. Text is matched after width normalization,
// so ASCII is half-width and katakana full-width.
var defaultDoc = fileDoc{
	Quorum: DefaultQuorum,
	Anchors: []anchorDoc{
		{
			DocumentType: string(constants.DocumentTypeCorporateRegistry),
			Patterns: []string{
				`履歴事項全部証明書|現在事項全部証明書|登記簿謄本`,
				`会社法人等番号`,
				`商\s*号`,
				`本\s*店`,
				`資本金の額`,
				`役員に関する事項`,
			},
		},
		{
			DocumentType: string(constants.DocumentTypeTaxCertificate),
			Patterns: []string{
				`納税証明書`,
				`税\s*目`,
				`納付すべき(?:税)?額`,
				`未納(?:税)?額`,
				`税務署長`,
			},
		},
		{
			DocumentType: string(constants.DocumentTypeFinancialStatement),
			Patterns: []string{
				`決算報告書`,
				`貸借対照表`,
				`損益計算書`,
				`株主資本等変動計算書`,
				`売\s*上\s*高`,
			},
		},
		{
			DocumentType: string(constants.DocumentTypeQuotation),
			Patterns: []string{
				`御?見積書`,
				`御?見積金額`,
				`(?:見積)?有効期限`,
				`見積(?:番号|No)`,
				`納\s*期`,
			},
		},
		{
			DocumentType: string(constants.DocumentTypeInvoice),
			Patterns: []string{
				`御?請求書`,
				`ご?請求金額`,
				`お?支払期限`,
				`振込先`,
				`請求(?:書)?番号`,
				`登録番号\s*[:]?\s*T[0-9]{13}`,
			},
		},
	},
	FieldRules: map[string][]ruleDoc{
		string(constants.DocumentTypeCorporateRegistry): {
			{Field: "corporateNumber", Pattern: `会社法人等番号` + sep + `([0-9]{4}-[0-9]{2}-[0-9]{6})`, PostProcess: string(PostTrim)},
			{Field: "companyName", Pattern: `商\s*号` + sep + restLine, PostProcess: string(PostTrim)},
			{Field: "headOfficeAddress", Pattern: `本\s*店` + sep + restLine, PostProcess: string(PostNormalizeAddress)},
			{Field: "capital", Pattern: `資本金の額` + sep + `金?\s*((?:[0-9][0-9,]*\s*(?:億|万)?\s*)+)円`, PostProcess: string(PostParseInt)},
			{Field: "establishedDate", Pattern: `会社成立の年月日` + sep + `(` + anyDate + `)`, PostProcess: string(PostParseDate)},
			{Field: "representative", Pattern: `代表取締役` + sep + `([^\n0-9]+)`, PostProcess: string(PostTrim)},
		},
		string(constants.DocumentTypeTaxCertificate): {
			{Field: "taxpayerName", Pattern: `(?:氏名又は名称|氏\s*名|名\s*称)` + sep + restLine, PostProcess: string(PostTrim)},
			{Field: "address", Pattern: `(?:住\s*所|所在地)` + sep + restLine, PostProcess: string(PostNormalizeAddress)},
			{Field: "taxItem", Pattern: `税\s*目` + sep + restLine, PostProcess: string(PostTrim)},
			{Field: "fiscalYear", Pattern: `(?:事業|課税)?年度` + sep + `(` + eraYear + `)`, PostProcess: string(PostConvertEra)},
			{Field: "taxAmount", Pattern: `納付すべき(?:税)?額` + sep + yen + amount + `\s*円?`, PostProcess: string(PostParseInt)},
			{Field: "unpaidAmount", Pattern: `未納(?:税)?額` + sep + yen + amount + `\s*円?`, PostProcess: string(PostParseInt)},
		},
		string(constants.DocumentTypeFinancialStatement): {
			{Field: "fiscalPeriodEnd", Pattern: `(` + anyDate + `)\s*現在`, PostProcess: string(PostParseDate)},
			{Field: "netSales", Pattern: `売\s*上\s*高` + sep + amount, PostProcess: string(PostParseInt)},
			{Field: "operatingIncome", Pattern: `営業利益` + sep + amount, PostProcess: string(PostParseInt)},
			{Field: "ordinaryIncome", Pattern: `経常利益` + sep + amount, PostProcess: string(PostParseInt)},
			{Field: "netIncome", Pattern: `当期純利益` + sep + amount, PostProcess: string(PostParseInt)},
			{Field: "totalAssets", Pattern: `(?:資産の部合計|資産合計)` + sep + amount, PostProcess: string(PostParseInt)},
			{Field: "netAssets", Pattern: `純資産(?:の部)?合計` + sep + amount, PostProcess: string(PostParseInt)},
		},
		string(constants.DocumentTypeQuotation): {
			{Field: "quotationNumber", Pattern: `見積(?:番号|No\.?)` + sep + `([A-Za-z0-9\-]+)`, PostProcess: string(PostTrim)},
			{Field: "recipient", Pattern: `([^\n]+?)\s*(?:御中|様)`, PostProcess: string(PostTrim)},
			{Field: "issueDate", Pattern: `(?:見積日|発行日)` + sep + `(` + anyDate + `)`, PostProcess: string(PostParseDate)},
			{Field: "totalAmount", Pattern: `(?:御?見積金額|合計金額)` + sep + yen + amount, PostProcess: string(PostParseInt)},
			{Field: "validUntil", Pattern: `有効期限` + sep + `(` + anyDate + `)`, PostProcess: string(PostParseDate)},
		},
		string(constants.DocumentTypeInvoice): {
			{Field: "invoiceNumber", Pattern: `請求(?:書)?番号` + sep + `([A-Za-z0-9\-]+)`, PostProcess: string(PostTrim)},
			{Field: "registrationNumber", Pattern: `登録番号` + sep + `(T[0-9]{13})`, PostProcess: string(PostTrim)},
			{Field: "recipient", Pattern: `([^\n]+?)\s*(?:御中|様)`, PostProcess: string(PostTrim)},
			{Field: "issueDate", Pattern: `(?:請求日|発行日)` + sep + `(` + anyDate + `)`, PostProcess: string(PostParseDate)},
			{Field: "totalAmount", Pattern: `(?:ご?請求金額|合計金額)` + sep + yen + amount, PostProcess: string(PostParseInt)},
			{Field: "taxAmount", Pattern: `消費税(?:額)?(?:\s*\(?10%\)?)?` + sep + yen + amount, PostProcess: string(PostParseInt)},
			{Field: "dueDate", Pattern: `お?支払期限` + sep + `(` + anyDate + `)`, PostProcess: string(PostParseDate)},
		},
		string(constants.DocumentTypeUnknown): {
			{Field: "documentDate", Pattern: `(` + anyDate + `)`, PostProcess: string(PostParseDate)},
			{Field: "companyName", Pattern: `(株式会社[^\s(]+|[^\s(]+株式会社)`, PostProcess: string(PostTrim)},
			{Field: "postalCode", Pattern: `〒\s*([0-9]{3}-[0-9]{4})`, PostProcess: string(PostTrim)},
			{Field: "phone", Pattern: `(0[0-9]{1,4}-[0-9]{1,4}-[0-9]{3,4})`, PostProcess: string(PostTrim)},
			{Field: "amount", Pattern: `([0-9]{1,3}(?:,[0-9]{3})+|[0-9]{4,})\s*円`, PostProcess: string(PostParseInt)},
		},
	},
}

// Default returns the built-in rule Set. The same value is shared by every caller.
var Default = sync.OnceValue(func() *Set {
	s, err := defaultDoc.compile()
	if err != nil {
		panic("rules: built-in configuration is invalid: " + err.Error())
	}
	return s
})
