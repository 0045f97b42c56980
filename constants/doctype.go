package constants

// DocumentType is the classified kind of an intake document.
type DocumentType string

// Stable values (stored verbatim in the extractions table).
const (
	DocumentTypeUnknown            DocumentType = "UNKNOWN"
	DocumentTypeCorporateRegistry  DocumentType = "CORPORATE_REGISTRY"  // 履歴事項全部証明書
	DocumentTypeTaxCertificate     DocumentType = "TAX_CERTIFICATE"     // 納税証明書
	DocumentTypeFinancialStatement DocumentType = "FINANCIAL_STATEMENT" // 決算報告書
	DocumentTypeQuotation          DocumentType = "QUOTATION"           // 見積書
	DocumentTypeInvoice            DocumentType = "INVOICE"             // 請求書
)

// KnownDocumentTypes lists every classifiable type in default anchor order.
var KnownDocumentTypes = []DocumentType{
	DocumentTypeCorporateRegistry,
	DocumentTypeTaxCertificate,
	DocumentTypeFinancialStatement,
	DocumentTypeQuotation,
	DocumentTypeInvoice,
}

// ParseDocumentType maps a stored string back to a DocumentType; anything unrecognized is Unknown.
func ParseDocumentType(s string) DocumentType {
	for _, dt := range KnownDocumentTypes {
		if string(dt) == s {
			return dt
		}
	}
	return DocumentTypeUnknown
}
