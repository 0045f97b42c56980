package export

import (
	"fmt"
	"maps"
	"slices"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/doc-intake/internal/pipeline"
)

const (
	SheetDocuments  = "Documents"
	SheetConfidence = "Confidence"
)

// Row is one document in the review workbook. Either Result or Err is set.
type Row struct {
	SourcePath string
	SHA256     string
	Result     *pipeline.ExtractionResult
	Err        error
}

// fixed leading columns of both sheets
var baseHeaders = []string{
	"Source",
	"SHA-256",
	"Document Type",
	"Overall",
	"Text Source",
	"OCR Provider",
	"Needs Review",
	"Error",
}

// BuildWorkbook lays out one row per document. Field values go to the Documents
// sheet and per-field confidences to the Confidence sheet; cells whose field scored
// below threshold are highlighted on both.
func BuildWorkbook(rows []Row, threshold float64) (*excelize.File, error) {
	if threshold <= 0 {
		threshold = pipeline.DefaultReviewThreshold
	}
	fieldNames := collectFieldNames(rows)
	headers := append(slices.Clone(baseHeaders), fieldNames...)

	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetDocuments); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(SheetConfidence); err != nil {
		return nil, fmt.Errorf("add sheet: %w", err)
	}
	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	reviewStyle, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#FFF2CC"}},
	})
	if err != nil {
		return nil, err
	}

	for _, sheet := range []string{SheetDocuments, SheetConfidence} {
		for i, h := range headers {
			cell, _ := excelize.CoordinatesToCellName(i+1, 1)
			if err := f.SetCellValue(sheet, cell, h); err != nil {
				return nil, err
			}
			if err := f.SetCellStyle(sheet, cell, cell, headerStyle); err != nil {
				return nil, err
			}
		}
	}

	for i, r := range rows {
		line := i + 2
		write := func(sheet string, col int, v any) error {
			cell, _ := excelize.CoordinatesToCellName(col, line)
			return f.SetCellValue(sheet, cell, v)
		}
		highlight := func(sheet string, col int) error {
			cell, _ := excelize.CoordinatesToCellName(col, line)
			return f.SetCellStyle(sheet, cell, cell, reviewStyle)
		}

		base := baseValues(r)
		for _, sheet := range []string{SheetDocuments, SheetConfidence} {
			for c, v := range base {
				if err := write(sheet, c+1, v); err != nil {
					return nil, err
				}
			}
		}
		if r.Result == nil {
			continue
		}
		for j, name := range fieldNames {
			col := len(baseHeaders) + j + 1
			conf, expected := r.Result.Confidence[name]
			if v, ok := r.Result.Fields[name]; ok {
				var cellValue any = v.String()
				if n, isInt := v.Int64(); isInt {
					cellValue = n
				}
				if err := write(SheetDocuments, col, cellValue); err != nil {
					return nil, err
				}
			}
			if !expected {
				continue
			}
			if err := write(SheetConfidence, col, conf); err != nil {
				return nil, err
			}
			if conf < threshold {
				if err := highlight(SheetDocuments, col); err != nil {
					return nil, err
				}
				if err := highlight(SheetConfidence, col); err != nil {
					return nil, err
				}
			}
		}
	}

	for _, sheet := range []string{SheetDocuments, SheetConfidence} {
		_ = f.SetColWidth(sheet, "A", "A", 48) // source
		_ = f.SetColWidth(sheet, "B", "B", 20) // sha
		_ = f.SetColWidth(sheet, "C", "C", 22) // type
		_ = f.SetColWidth(sheet, "H", "H", 40) // error
	}
	f.SetActiveSheet(0)
	return f, nil
}

func baseValues(r Row) []any {
	sha := r.SHA256
	errText := ""
	if r.Err != nil {
		errText = r.Err.Error()
	}
	if r.Result == nil {
		return []any{r.SourcePath, sha, "", "", "", "", "", errText}
	}
	res := r.Result
	if sha == "" {
		sha = res.Fingerprint.SHA256
	}
	review := ""
	if len(res.NeedsReview) > 0 {
		review = fmt.Sprint(res.NeedsReview)
	}
	return []any{r.SourcePath, sha, string(res.DocumentType), res.Overall, string(res.TextSource), res.OcrProvider, review, errText}
}

// collectFieldNames returns every field name seen across rows, sorted.
func collectFieldNames(rows []Row) []string {
	seen := map[string]struct{}{}
	for _, r := range rows {
		if r.Result == nil {
			continue
		}
		for name := range r.Result.Confidence {
			seen[name] = struct{}{}
		}
		for name := range r.Result.Fields {
			seen[name] = struct{}{}
		}
	}
	return slices.Sorted(maps.Keys(seen))
}

// WriteXLSX renders rows into XLSX bytes.
func WriteXLSX(rows []Row, threshold float64) ([]byte, error) {
	f, err := BuildWorkbook(rows, threshold)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}
