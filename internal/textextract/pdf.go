package textextract

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

var disableConfigDir sync.Once

// pdfStructural parses the PDF with pdfcpu and scans every page's content stream.
func pdfStructural(data []byte) (text string, pages int, opaque int, err error) {
	disableConfigDir.Do(api.DisableConfigDir)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdfcpu panic: %v", r)
		}
	}()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), conf)
	if err != nil {
		return "", 0, 0, fmt.Errorf("pdfcpu read: %w", err)
	}

	var sb strings.Builder
	for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
		r, err := pdfcpu.ExtractPageContent(ctx, pageNr)
		if err != nil || r == nil {
			continue
		}
		content, err := io.ReadAll(r)
		if err != nil || len(content) == 0 {
			continue
		}
		st := scanContentStream(content)
		opaque += st.opaque
		if st.text == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\f\n")
		}
		sb.WriteString(st.text)
	}
	return sb.String(), ctx.PageCount, opaque, nil
}

var (
	reStream  = regexp.MustCompile(`(?s)stream\r?\n(.*?)\r?\n?endstream`)
	reTextObj = regexp.MustCompile(`(?s)\bBT\b(.*?)\bET\b`)
	rePage    = regexp.MustCompile(`/Type\s*/Page\b`)
)

// pdfByteScan is the best-effort recovery path for PDFs pdfcpu cannot parse: it inflates any
// Flate streams it can and pulls text out of BT ... ET blocks.
func pdfByteScan(data []byte) (text string, pages int) {
	candidates := [][]byte{data}
	for _, m := range reStream.FindAllSubmatch(data, -1) {
		zr, err := zlib.NewReader(bytes.NewReader(m[1]))
		if err != nil {
			continue
		}
		inflated, err := io.ReadAll(io.LimitReader(zr, 32<<20))
		_ = zr.Close()
		if err != nil && len(inflated) == 0 {
			continue
		}
		candidates = append(candidates, inflated)
	}

	var sb strings.Builder
	for _, c := range candidates {
		for _, m := range reTextObj.FindAllSubmatch(c, -1) {
			st := scanContentStream(m[1])
			if strings.TrimSpace(st.text) == "" {
				continue
			}
			sb.WriteString(st.text)
			sb.WriteByte('\n')
		}
	}
	pages = len(rePage.FindAll(data, -1))
	if pages == 0 {
		pages = 1
	}
	return strings.TrimSpace(sb.String()), pages
}
