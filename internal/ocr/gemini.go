package ocr

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// GeminiConfig holds settings for the Gemini API.
type GeminiConfig struct {
	APIKey            string
	Model             string
	RequestsPerSecond float64
}

// GeminiVision transcribes page images with Gemini. Every engine opens its own client.
type GeminiVision struct {
	cfg     GeminiConfig
	limiter *rate.Limiter
	logger  *slog.Logger
}

func NewGeminiVision(cfg GeminiConfig, logger *slog.Logger) *GeminiVision {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	return &GeminiVision{cfg: cfg, limiter: newLimiter(cfg.RequestsPerSecond), logger: logger}
}

func (g *GeminiVision) Name() string { return "gemini" }

func (g *GeminiVision) NewEngine(ctx context.Context) (Engine, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  g.cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &remoteEngine{
		recognize: func(ctx context.Context, img Image, language string) (Recognition, error) {
			return g.recognize(ctx, client, img, language)
		},
	}, nil
}

func (g *GeminiVision) recognize(ctx context.Context, client *genai.Client, img Image, language string) (Recognition, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return Recognition{}, err
	}
	config := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(float32(0)),
		ResponseMIMEType: "application/json",
	}
	resp, err := client.Models.GenerateContent(ctx, g.cfg.Model, []*genai.Content{
		{
			Role: genai.RoleUser,
			Parts: []*genai.Part{
				genai.NewPartFromBytes(img.Data, img.MimeType),
				genai.NewPartFromText(visionPrompt(language)),
			},
		},
	}, config)
	if err != nil {
		if ctx.Err() != nil {
			return Recognition{}, ctx.Err()
		}
		return Recognition{}, fmt.Errorf("gemini generate (model: %s): %w", g.cfg.Model, err)
	}
	g.logger.Debug("ocr.gemini.ok", "model", g.cfg.Model, "page", img.Page)
	return parseVisionAnswer(resp.Text())
}
