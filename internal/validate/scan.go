package validate

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/joseph-ayodele/doc-intake/constants"
)

// scanHeaderSize bounds the polyglot and zip-bomb checks, which only look at the head.
const scanHeaderSize = 8 << 10

var (
	dosStub      = []byte("This program cannot be run in DOS mode")
	scriptTokens = [][]byte{[]byte("<script"), []byte("javascript:"), []byte("vbscript:")}
	pdfActions   = [][]byte{[]byte("/JavaScript"), []byte("/JS "), []byte("/JS("), []byte("/Launch"), []byte("/EmbeddedFile")}
)

// scanSuspicious is a cheap pre-filter for embedded executables and active content.
// It is not an antivirus scan; it returns one finding per heuristic that fired.
func scanSuspicious(data []byte, detected string) []string {
	var findings []string
	header := data[:min(scanHeaderSize, len(data))]

	if bytes.HasPrefix(data, sigMZ) {
		findings = append(findings, "executable_header: PE")
	} else if bytes.Contains(data, dosStub) {
		findings = append(findings, "embedded_executable: PE")
	}
	if bytes.HasPrefix(data, sigELF) {
		findings = append(findings, "executable_header: ELF")
	}

	lower := bytes.ToLower(data)
	for _, tok := range scriptTokens {
		if bytes.Contains(lower, tok) {
			findings = append(findings, fmt.Sprintf("script_marker: %s", tok))
		}
	}
	if detected == constants.MimePDF {
		for _, tok := range pdfActions {
			if bytes.Contains(data, tok) {
				findings = append(findings, fmt.Sprintf("pdf_action: %s", strings.TrimSpace(strings.TrimRight(string(tok), "("))))
			}
		}
	}
	if bytes.HasPrefix(data, sigOLE) && (bytes.Contains(data, []byte("_VBA_PROJECT")) || bytes.Contains(data, []byte("VBAProject"))) {
		findings = append(findings, "macro_detected: OLE2+VBA")
	}
	if bytes.HasPrefix(data, sigZIP) && bytes.Contains(data, []byte("vbaProject.bin")) {
		findings = append(findings, "macro_detected: OOXML+VBA")
	}
	if msg := checkPolyglot(header); msg != "" {
		findings = append(findings, msg)
	}
	if msg := checkZipBomb(header, len(data)); msg != "" {
		findings = append(findings, msg)
	}
	return findings
}

func checkPolyglot(header []byte) string {
	if len(header) < 16 {
		return ""
	}
	var detected []string
	if bytes.Contains(header[:min(1024, len(header))], sigPDF) {
		detected = append(detected, "PDF")
	}
	if bytes.HasPrefix(header, sigZIP) {
		detected = append(detected, "ZIP")
	}
	if bytes.HasPrefix(header, sigJPEG) {
		detected = append(detected, "JPEG")
	}
	if bytes.HasPrefix(header, sigPNG) {
		detected = append(detected, "PNG")
	}
	if len(detected) > 1 {
		return fmt.Sprintf("polyglot_suspect: %s", strings.Join(detected, "+"))
	}
	return ""
}

func checkZipBomb(header []byte, size int) string {
	count := bytes.Count(header, sigZIP)
	if count > 10 && size < 1<<20 {
		return fmt.Sprintf("zip_bomb_suspect: %d zip headers in first %d bytes", count, len(header))
	}
	return ""
}
