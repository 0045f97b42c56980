package ocr

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

// OpenAIConfig holds settings for an OpenAI-compatible vision endpoint.
type OpenAIConfig struct {
	APIKey            string
	BaseURL           string
	Model             string
	RequestsPerSecond float64
}

// OpenAIVision transcribes page images with a multimodal chat model.
type OpenAIVision struct {
	client  *openai.Client
	model   string
	limiter *rate.Limiter
	logger  *slog.Logger
}

func NewOpenAIVision(cfg OpenAIConfig, logger *slog.Logger) *OpenAIVision {
	if logger == nil {
		logger = slog.Default()
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIVision{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   model,
		limiter: newLimiter(cfg.RequestsPerSecond),
		logger:  logger,
	}
}

func (v *OpenAIVision) Name() string { return "openai" }

func (v *OpenAIVision) NewEngine(_ context.Context) (Engine, error) {
	return &remoteEngine{recognize: v.recognize}, nil
}

func (v *OpenAIVision) recognize(ctx context.Context, img Image, language string) (Recognition, error) {
	if err := v.limiter.Wait(ctx); err != nil {
		return Recognition{}, err
	}
	dataURL := "data:" + img.MimeType + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
	req := openai.ChatCompletionRequest{
		Model:       v.model,
		Temperature: 0,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: visionPrompt(language)},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    dataURL,
							Detail: openai.ImageURLDetailHigh,
						},
					},
				},
			},
		},
	}

	resp, err := v.client.CreateChatCompletion(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return Recognition{}, ctx.Err()
		}
		return Recognition{}, parseAPIError(err)
	}
	if len(resp.Choices) == 0 {
		return Recognition{}, fmt.Errorf("openai: empty response")
	}
	v.logger.Debug("ocr.openai.ok",
		"model", v.model,
		"page", img.Page,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
	)
	return parseVisionAnswer(resp.Choices[0].Message.Content)
}

// parseAPIError extracts a human-readable error from the API response.
func parseAPIError(err error) error {
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if detail := extractDetail(reqErr.Body); detail != "" {
			return fmt.Errorf("openai API error %d: %s", reqErr.HTTPStatusCode, detail)
		}
		return fmt.Errorf("openai API error %d: %s", reqErr.HTTPStatusCode, truncate(string(reqErr.Body), 512))
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("openai API error %d: %s", apiErr.HTTPStatusCode, apiErr.Message)
	}
	return fmt.Errorf("openai request failed: %w", err)
}

func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
