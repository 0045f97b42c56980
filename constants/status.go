package constants

// ExtractionStatus is the canonical outcome stored for each extraction attempt.
type ExtractionStatus string

// Stable values (store these exact strings in DB).
const (
	ExtractionStatusQueued    ExtractionStatus = "QUEUED"
	ExtractionStatusExtracted ExtractionStatus = "EXTRACTED" // result produced, possibly Unknown/empty
	ExtractionStatusRejected  ExtractionStatus = "REJECTED"  // validation failed
	ExtractionStatusFailed    ExtractionStatus = "FAILED"    // malformed document or OCR unavailable
)

// TextSource records where the text behind a result came from.
type TextSource string

const (
	TextSourceNative   TextSource = "native"    // structural PDF / office text layer
	TextSourceRecovery TextSource = "byte-scan" // best-effort BT/ET recovery
	TextSourceOCR      TextSource = "ocr"
)
