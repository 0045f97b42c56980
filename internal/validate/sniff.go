package validate

import (
	"archive/zip"
	"bytes"

	"github.com/joseph-ayodele/doc-intake/constants"
)

var (
	sigPDF    = []byte("%PDF")
	sigJPEG   = []byte{0xFF, 0xD8, 0xFF}
	sigPNG    = []byte{0x89, 0x50, 0x4E, 0x47}
	sigTIFFLE = []byte{0x49, 0x49, 0x2A, 0x00}
	sigTIFFBE = []byte{0x4D, 0x4D, 0x00, 0x2A}
	sigZIP    = []byte("PK\x03\x04")
	sigOLE    = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
	sigMZ     = []byte("MZ")
	sigELF    = []byte("\x7fELF")
)

// DetectMime sniffs the content type from leading magic bytes only.
// Client-supplied names and Content-Type values are never consulted.
func DetectMime(data []byte) string {
	switch {
	case bytes.HasPrefix(data, sigPDF):
		return constants.MimePDF
	case bytes.HasPrefix(data, sigJPEG):
		return constants.MimeJPEG
	case bytes.HasPrefix(data, sigPNG):
		return constants.MimePNG
	case bytes.HasPrefix(data, sigTIFFLE), bytes.HasPrefix(data, sigTIFFBE):
		return constants.MimeTIFF
	case bytes.HasPrefix(data, sigZIP):
		return detectZipContainer(data)
	case bytes.HasPrefix(data, sigOLE):
		return constants.MimeXLS
	}
	return constants.MimeOctetStream
}

// detectZipContainer tells Office Open XML packages apart by their part names.
// When the central directory is unreadable the local headers are scanned instead.
func detectZipContainer(data []byte) string {
	var names [][]byte
	if zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data))); err == nil {
		for _, f := range zr.File {
			names = append(names, []byte(f.Name))
		}
	} else {
		names = [][]byte{data}
	}
	for _, marker := range []struct {
		prefix []byte
		mime   string
	}{
		{[]byte("word/"), constants.MimeDOCX},
		{[]byte("xl/"), constants.MimeXLSX},
		{[]byte("ppt/"), constants.MimePPTX},
	} {
		for _, n := range names {
			if bytes.Contains(n, marker.prefix) {
				return marker.mime
			}
		}
	}
	return constants.MimeZIP
}
