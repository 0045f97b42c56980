package pipeline

import (
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/doc-intake/internal/classify"
	"github.com/joseph-ayodele/doc-intake/internal/common"
	"github.com/joseph-ayodele/doc-intake/internal/fields"
	"github.com/joseph-ayodele/doc-intake/internal/ocr"
	"github.com/joseph-ayodele/doc-intake/internal/rules"
	"github.com/joseph-ayodele/doc-intake/internal/textextract"
	"github.com/joseph-ayodele/doc-intake/internal/validate"
)

// NewFromConfig wires a Pipeline from application configuration.
//
// One orchestrator is built per usable engine so Input.Provider can pick the
// primary; each pairs the chosen engine with the configured fallback, or with
// the configured primary when the chosen engine is the fallback itself.
func NewFromConfig(cfg *common.Config, set *rules.Set, logger *slog.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if set == nil {
		set = rules.Default()
	}

	runner := ocr.NewExecRunner(logger)
	providers := map[string]ocr.Provider{}
	for _, name := range []string{"tesseract", "openai", "gemini"} {
		if !engineUsable(cfg, name) {
			continue
		}
		p, err := ocr.NewProvider(name, cfg, runner, logger)
		if err != nil {
			return nil, err
		}
		providers[name] = p
	}
	if _, ok := providers[cfg.OCR.Primary]; !ok {
		return nil, fmt.Errorf("primary OCR engine %q is not usable", cfg.OCR.Primary)
	}

	recognizers := make(map[string]Recognizer, len(providers))
	for name, primary := range providers {
		fallbackName := cfg.OCR.Fallback
		if fallbackName == name {
			fallbackName = cfg.OCR.Primary
		}
		var fallback ocr.Provider
		if fb, ok := providers[fallbackName]; ok {
			fallback = fb
		}
		recognizers[name] = ocr.NewOrchestrator(primary, fallback, logger,
			ocr.WithAttemptTimeout(cfg.OCR.AttemptTimeout),
			ocr.WithConfidenceThreshold(cfg.OCR.ConfidenceThreshold),
			ocr.WithLanguage(cfg.OCR.Language),
		)
	}

	return New(Deps{
		Validator:       validate.New(logger),
		Text:            textextract.NewProvider(textextract.Config{MinTextChars: cfg.Pipeline.MinTextChars}, logger),
		Classifier:      classify.New(set, logger),
		Fields:          fields.NewEngine(set, logger),
		Recognizers:     recognizers,
		DefaultProvider: cfg.OCR.Primary,
		Rasterizer: ocr.NewRasterizer(ocr.RasterConfig{
			Binary:   cfg.OCR.Pdftoppm,
			DPI:      cfg.OCR.DPI,
			MaxPages: cfg.OCR.MaxPages,
		}, runner, logger),
		Policy:          validate.PolicyFromConfig(cfg.Validation),
		ReviewThreshold: cfg.Pipeline.ReviewThreshold,
		Logger:          logger,
	}), nil
}

func engineUsable(cfg *common.Config, name string) bool {
	switch name {
	case "openai":
		return cfg.Remote.OpenAIAPIKey != ""
	case "gemini":
		return cfg.Remote.GeminiAPIKey != ""
	default:
		return true
	}
}
