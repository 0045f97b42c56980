package constants

import "strings"

// Detected MIME types. Only magic-byte sniffing produces these.
const (
	MimePDF         = "application/pdf"
	MimeJPEG        = "image/jpeg"
	MimePNG         = "image/png"
	MimeTIFF        = "image/tiff"
	MimeDOCX        = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MimeXLSX        = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	MimePPTX        = "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	MimeZIP         = "application/zip"
	MimeXLS         = "application/vnd.ms-excel"
	MimeOctetStream = "application/octet-stream"
)

// DefaultMaxFileSize is the intake size ceiling (20 MiB).
const DefaultMaxFileSize int64 = 20 << 20

// DefaultAllowedMimes holds the MIME types accepted for intake unless a policy overrides them.
var DefaultAllowedMimes = []string{MimePDF, MimeJPEG, MimePNG, MimeTIFF}

// DefaultAllowedExtensions holds the extensions accepted for intake unless a policy overrides them.
var DefaultAllowedExtensions = []string{"pdf", "jpg", "jpeg", "png", "tif", "tiff"}

// MimeExtensions is the explicit detected-MIME -> extension consistency table.
var MimeExtensions = map[string][]string{
	MimePDF:  {"pdf"},
	MimeJPEG: {"jpg", "jpeg"},
	MimePNG:  {"png"},
	MimeTIFF: {"tif", "tiff"},
	MimeDOCX: {"docx"},
	MimeXLSX: {"xlsx"},
	MimePPTX: {"pptx"},
	MimeZIP:  {"zip"},
	MimeXLS:  {"xls"},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

// IsImageMime reports whether the detected type is a raster image the OCR engines accept.
func IsImageMime(mime string) bool {
	switch mime {
	case MimeJPEG, MimePNG, MimeTIFF:
		return true
	}
	return false
}
