package ocr

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"golang.org/x/time/rate"

	"github.com/joseph-ayodele/doc-intake/internal/schema"
)

// visionAnswer is the JSON object remote vision models are asked to return.
type visionAnswer struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

var visionSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	return schema.Compile("ocr-answer.json", map[string]any{
		"type":     "object",
		"required": []any{"text", "confidence"},
		"properties": map[string]any{
			"text":       map[string]any{"type": "string"},
			"confidence": map[string]any{"type": "number", "minimum": 0, "maximum": 1},
		},
	})
})

func visionPrompt(language string) string {
	return fmt.Sprintf(`Transcribe every piece of printed or handwritten text in the attached document image.
Expected languages (tesseract codes): %s.
Keep the reading order and line breaks. Do not translate, summarize or correct anything.
Respond with a JSON object only: {"text": "<transcription>", "confidence": <0..1 estimate of transcription accuracy>}.`, language)
}

// parseVisionAnswer validates a model reply and converts it into a Recognition.
func parseVisionAnswer(raw string) (Recognition, error) {
	raw = cleanMarkdownFences(raw)
	if raw == "" {
		return Recognition{}, fmt.Errorf("empty model response")
	}
	s, err := visionSchema()
	if err != nil {
		return Recognition{}, err
	}
	if err := schema.ValidateJSON(s, []byte(raw)); err != nil {
		return Recognition{}, fmt.Errorf("model response: %w", err)
	}
	var ans visionAnswer
	if err := json.Unmarshal([]byte(raw), &ans); err != nil {
		return Recognition{}, fmt.Errorf("model response: %w", err)
	}
	return Recognition{Text: ans.Text, Confidence: ans.Confidence}, nil
}

// cleanMarkdownFences removes ```json fences some models wrap around JSON.
func cleanMarkdownFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func newLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

// remoteEngine adapts a stateless request function to the Engine lifecycle.
type remoteEngine struct {
	recognize func(ctx context.Context, img Image, language string) (Recognition, error)
	release   func() error
}

func (e *remoteEngine) Recognize(ctx context.Context, img Image, language string) (Recognition, error) {
	return e.recognize(ctx, img, language)
}

func (e *remoteEngine) Close() error {
	if e.release == nil {
		return nil
	}
	return e.release()
}
