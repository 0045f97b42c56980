package textextract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScanContentStream(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		want   string
		opaque int
	}{
		{"tj", "BT /F1 12 Tf (Hello) Tj ET", "Hello\n", 0},
		{"tj array", "BT [(Hel) -20 (lo) 5 ( World)] TJ ET", "Hello World\n", 0},
		{"quote operator starts new line", "BT (First) Tj (Second) ' ET", "First\nSecond\n", 0},
		{"td vertical move", "BT 72 700 Td (A) Tj 0 -14 Td (B) Tj ET", "A\nB\n", 0},
		{"td horizontal move", "BT (A) Tj 20 0 Td (B) Tj ET", "A B\n", 0},
		{"t star", "BT (A) Tj T* (B) Tj ET", "A\nB\n", 0},
		{"escapes", `BT (a\(b\)c \101\102) Tj ET`, "a(b)c AB\n", 0},
		{"nested parens", "BT (f(x)) Tj ET", "f(x)\n", 0},
		{"utf16 hex", "BT <FEFF8ACB6C4266F8> Tj ET", "請求書\n", 0},
		{"cid hex is opaque", "BT <0011002200330044> Tj ET", "", 1},
		{"comments skipped", "% (ignored) Tj\nBT (kept) Tj ET", "kept\n", 0},
		{"dictionaries skipped", "/P << /MCID 0 >> BDC BT (x) Tj ET EMC", "x\n", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := scanContentStream([]byte(tt.in))
			assert.Equal(t, tt.want, got.text)
			assert.Equal(t, tt.opaque, got.opaque)
		})
	}
}

func TestPrintableRatio(t *testing.T) {
	assert.Equal(t, 1.0, printableRatio(""))
	assert.Equal(t, 1.0, printableRatio("請求書 ABC\n"))
	assert.InDelta(t, 0.5, printableRatio("ab\x01�"), 1e-9)
}
