package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/doc-intake/constants"
)

// TesseractConfig configures the local tesseract binary.
type TesseractConfig struct {
	Binary      string // binary name or absolute path; if empty -> "tesseract"
	TessdataDir string
	PSM         int // e.g., 6 is good for uniform block of text
	OEM         int // 1 = LSTM; leave 0 to use default
}

// Tesseract provides engines backed by the tesseract CLI.
type Tesseract struct {
	cfg    TesseractConfig
	runner Runner
	logger *slog.Logger
}

func NewTesseract(cfg TesseractConfig, runner Runner, logger *slog.Logger) *Tesseract {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Binary == "" {
		cfg.Binary = "tesseract"
	}
	if runner == nil {
		runner = NewExecRunner(logger)
	}
	return &Tesseract{cfg: cfg, runner: runner, logger: logger}
}

func (t *Tesseract) Name() string { return "tesseract" }

// NewEngine creates a private scratch directory that lives as long as the engine.
func (t *Tesseract) NewEngine(_ context.Context) (Engine, error) {
	dir, err := os.MkdirTemp("", "docintake-tess-*")
	if err != nil {
		return nil, fmt.Errorf("tesseract workdir: %w", err)
	}
	return &tesseractEngine{Tesseract: t, dir: dir}, nil
}

type tesseractEngine struct {
	*Tesseract
	dir string
}

func (e *tesseractEngine) Recognize(ctx context.Context, img Image, language string) (Recognition, error) {
	if len(img.Data) == 0 {
		return Recognition{}, fmt.Errorf("tesseract: empty image")
	}
	ext := ".png"
	if exts := constants.MimeExtensions[img.MimeType]; len(exts) > 0 {
		ext = "." + exts[0]
	}
	in := filepath.Join(e.dir, "page"+ext)
	if err := os.WriteFile(in, img.Data, 0o600); err != nil {
		return Recognition{}, fmt.Errorf("tesseract: write input: %w", err)
	}

	args := []string{in, "stdout", "-l", language}
	if e.cfg.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(e.cfg.PSM))
	}
	if e.cfg.OEM > 0 {
		args = append(args, "--oem", strconv.Itoa(e.cfg.OEM))
	}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}
	// TSV output
	args = append(args, "tsv")

	out, errb, err := e.runner.Run(ctx, e.cfg.Binary, args...)
	if err != nil {
		if ctx.Err() != nil {
			return Recognition{}, ctx.Err()
		}
		return Recognition{}, fmt.Errorf("tesseract: %w: %s", err, truncate(strings.TrimSpace(string(errb)), 512))
	}
	return parseTSV(string(out)), nil
}

func (e *tesseractEngine) Close() error {
	return os.RemoveAll(e.dir)
}

// TSV column indexes.
const (
	tsvLevel = iota
	tsvPage
	tsvBlock
	tsvPar
	tsvLine
	tsvWord
	tsvLeft
	tsvTop
	tsvWidth
	tsvHeight
	tsvConf
	tsvText
	tsvColumns
)

const tsvWordLevel = "5"

// parseTSV rebuilds text from word rows and returns the mean word confidence in 0..1.
func parseTSV(tsv string) Recognition {
	var (
		b        strings.Builder
		lineKey  string
		blockKey string
		sum      float64
		n        int
	)
	for i, ln := range strings.Split(tsv, "\n") {
		if i == 0 || ln == "" {
			continue // header
		}
		cols := strings.Split(strings.TrimRight(ln, "\r"), "\t")
		if len(cols) < tsvColumns || cols[tsvLevel] != tsvWordLevel {
			continue
		}
		word := strings.TrimSpace(cols[tsvText])
		if word == "" {
			continue
		}
		block := cols[tsvPage] + "/" + cols[tsvBlock]
		line := block + "/" + cols[tsvPar] + "/" + cols[tsvLine]
		switch {
		case b.Len() == 0:
		case block != blockKey:
			b.WriteString("\n\n")
		case line != lineKey:
			b.WriteByte('\n')
		default:
			b.WriteByte(' ')
		}
		blockKey, lineKey = block, line
		b.WriteString(word)

		if conf, err := strconv.ParseFloat(cols[tsvConf], 64); err == nil && conf >= 0 {
			sum += conf
			n++
		}
	}
	rec := Recognition{Text: b.String()}
	if n > 0 {
		rec.Confidence = sum / float64(n) / 100
	}
	return rec
}
