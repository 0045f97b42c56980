package textnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWidth(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"full-width ascii", "ＡＢＣ１２３", "ABC123"},
		{"full-width punctuation", "（株）", "(株)"},
		{"half-width katakana", "ｶﾌﾞｼｷｶﾞｲｼｬ", "カブシキガイシャ"},
		{"kanji untouched", "資本金", "資本金"},
		{"mixed", "資本金 １，０００万円", "資本金 1,000万円"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Width(tt.in))
		})
	}
}

func TestNormalize(t *testing.T) {
	in := "履歴事項全部証明書\r\n\r\n\r\n\r\n商号　　株式会社ＡＢＣ\t\n-----\n本店  東京都"
	got := Normalize(in)
	assert.Equal(t, "履歴事項全部証明書\n\n商号 株式会社ABC\n\n本店 東京都", got)
	assert.Equal(t, "", Normalize(""))
}

func TestStripSpaces(t *testing.T) {
	assert.Equal(t, "東京都千代田区丸の内1-1", StripSpaces("東京都 千代田区　丸の内 1-1\n"))
}
