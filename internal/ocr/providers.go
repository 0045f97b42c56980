package ocr

import (
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/doc-intake/internal/common"
)

// NewProvider builds the named engine provider from application configuration.
func NewProvider(name string, cfg *common.Config, runner Runner, logger *slog.Logger) (Provider, error) {
	switch name {
	case "tesseract":
		return NewTesseract(TesseractConfig{
			Binary:      cfg.OCR.Tesseract,
			TessdataDir: cfg.OCR.TessdataDir,
			PSM:         cfg.OCR.PSM,
		}, runner, logger), nil
	case "openai":
		return NewOpenAIVision(OpenAIConfig{
			APIKey:            cfg.Remote.OpenAIAPIKey,
			BaseURL:           cfg.Remote.OpenAIBaseURL,
			Model:             cfg.Remote.OpenAIModel,
			RequestsPerSecond: cfg.Remote.RequestsPerSecond,
		}, logger), nil
	case "gemini":
		return NewGeminiVision(GeminiConfig{
			APIKey:            cfg.Remote.GeminiAPIKey,
			Model:             cfg.Remote.GeminiModel,
			RequestsPerSecond: cfg.Remote.RequestsPerSecond,
		}, logger), nil
	default:
		return nil, fmt.Errorf("unknown ocr engine %q", name)
	}
}
