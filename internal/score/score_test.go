package score

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/joseph-ayodele/doc-intake/internal/fields"
)

func TestValue(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"", 0},
		{"5", 0.5},
		{"社", 0.5},
		{"-", 0.5},
		{"12", 0.95},
		{"-5000", 0.95},
		{"1,200", 0.85},
		{"株式会社サンプル", 0.85},
		{"2024-04-01", 0.85},
		{"T1234567890123", 0.85},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Value(tt.in))
		})
	}
}

func TestFields(t *testing.T) {
	f := fields.Fields{
		"companyName": fields.String("株式会社サンプル"),
		"capital":     fields.Int(120_000_000),
		"issueDate":   fields.Date(time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)),
		"extra":       fields.String("x"),
	}
	got := Fields(f, []string{"companyName", "capital", "issueDate", "representative"})
	assert.Equal(t, map[string]float64{
		"companyName":    0.85,
		"capital":        0.95,
		"issueDate":      0.85,
		"representative": 0,
		"extra":          0.5,
	}, got)
}

func TestFieldsPartialMatchScoresMissingAsZero(t *testing.T) {
	got := Fields(fields.Fields{"totalAmount": fields.Int(55000)}, []string{"invoiceNumber", "totalAmount", "dueDate"})
	assert.Equal(t, map[string]float64{"invoiceNumber": 0, "totalAmount": 0.95, "dueDate": 0}, got)
}

func TestOverall(t *testing.T) {
	conf := map[string]float64{"a": 0.95, "b": 0.85, "c": 0}
	assert.InDelta(t, 0.6, Overall(conf, 1), 1e-9)
	assert.InDelta(t, 0.3, Overall(conf, 0.5), 1e-9)
	assert.InDelta(t, 0.6, Overall(conf, 7), 1e-9)
	assert.Zero(t, Overall(nil, 1))
}

func TestNeedsReview(t *testing.T) {
	conf := map[string]float64{"b": 0.5, "a": 0, "c": 0.95}
	assert.Equal(t, []string{"a", "b"}, NeedsReview(conf, 0.8))
	assert.Empty(t, NeedsReview(conf, 0))
}
