package ocr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVisionAnswer(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    Recognition
		wantErr bool
	}{
		{"plain", `{"text":"請求書","confidence":0.93}`, Recognition{Text: "請求書", Confidence: 0.93}, false},
		{"fenced", "```json\n{\"text\":\"見積書\",\"confidence\":1}\n```", Recognition{Text: "見積書", Confidence: 1}, false},
		{"missing confidence", `{"text":"x"}`, Recognition{}, true},
		{"confidence out of range", `{"text":"x","confidence":1.5}`, Recognition{}, true},
		{"text wrong type", `{"text":3,"confidence":0.5}`, Recognition{}, true},
		{"not json", "I cannot read this image", Recognition{}, true},
		{"empty", "  ", Recognition{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseVisionAnswer(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestVisionPromptNamesLanguage(t *testing.T) {
	assert.Contains(t, visionPrompt("jpn+eng"), "jpn+eng")
}

func TestNewLimiter(t *testing.T) {
	assert.Equal(t, 1, newLimiter(0.5).Burst())
	assert.Equal(t, 3, newLimiter(3).Burst())
	assert.True(t, newLimiter(0).Allow())
}
