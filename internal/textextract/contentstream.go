package textextract

import (
	"bytes"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf16"
)

// streamText is what the operator scanner recovered from one content stream.
type streamText struct {
	text string
	// opaque counts hex strings that could not be mapped to Unicode without the font's
	// ToUnicode CMap (typical for CID-keyed CJK fonts).
	opaque int
}

// scanContentStream walks a decoded content stream and collects the operands of the
// text-showing operators Tj, TJ, ' and ". Positioning operators become spaces or newlines.
func scanContentStream(data []byte) streamText {
	var (
		sb       strings.Builder
		operands []string
		numbers  []float64
		opaque   int
		inArray  bool
		arrayBuf []string
	)
	flushLine := func() {
		if sb.Len() > 0 && !strings.HasSuffix(sb.String(), "\n") {
			sb.WriteByte('\n')
		}
	}

	for i := 0; i < len(data); {
		c := data[i]
		switch {
		case c == '%':
			for i < len(data) && data[i] != '\n' && data[i] != '\r' {
				i++
			}
		case c == '(':
			s, next := readLiteral(data, i)
			i = next
			if inArray {
				arrayBuf = append(arrayBuf, s)
			} else {
				operands = append(operands, s)
			}
		case c == '<' && i+1 < len(data) && data[i+1] == '<':
			i += 2
		case c == '>' && i+1 < len(data) && data[i+1] == '>':
			i += 2
		case c == '<':
			s, ok, next := readHex(data, i)
			i = next
			if !ok {
				opaque++
				continue
			}
			if inArray {
				arrayBuf = append(arrayBuf, s)
			} else {
				operands = append(operands, s)
			}
		case c == '[':
			inArray = true
			arrayBuf = arrayBuf[:0]
			i++
		case c == ']':
			inArray = false
			operands = append(operands, strings.Join(arrayBuf, ""))
			i++
		case isDelimOrSpace(c):
			i++
		default:
			start := i
			i++
			for i < len(data) && !isTokenEnd(data[i]) {
				i++
			}
			tok := string(data[start:i])
			if n, err := strconv.ParseFloat(tok, 64); err == nil {
				if !inArray {
					numbers = append(numbers, n)
				}
				continue
			}
			if tok[0] == '/' {
				continue
			}
			switch tok {
			case "Tj", "TJ":
				for _, s := range operands {
					sb.WriteString(s)
				}
			case "'", "\"":
				flushLine()
				for _, s := range operands {
					sb.WriteString(s)
				}
			case "T*", "ET":
				flushLine()
			case "Td", "TD":
				if len(numbers) >= 2 && numbers[len(numbers)-1] != 0 {
					flushLine()
				} else if sb.Len() > 0 {
					sb.WriteByte(' ')
				}
			}
			operands = operands[:0]
			numbers = numbers[:0]
		}
	}
	return streamText{text: sb.String(), opaque: opaque}
}

func isDelimOrSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\n', '\f', 0:
		return true
	}
	return false
}

func isTokenEnd(c byte) bool {
	switch c {
	case '(', '<', '[', ']', '/':
		return true
	}
	return isDelimOrSpace(c)
}

// readLiteral reads a balanced (...) string starting at data[i] == '('.
func readLiteral(data []byte, i int) (string, int) {
	var raw []byte
	depth := 0
	for i < len(data) {
		c := data[i]
		switch {
		case c == '\\' && i+1 < len(data):
			raw = append(raw, c, data[i+1])
			i += 2
			continue
		case c == '(':
			depth++
			if depth > 1 {
				raw = append(raw, c)
			}
		case c == ')':
			depth--
			if depth == 0 {
				return decodeText(decodePDFString(raw)), i + 1
			}
			raw = append(raw, c)
		default:
			raw = append(raw, c)
		}
		i++
	}
	return decodeText(decodePDFString(raw)), i
}

// readHex reads a <...> string. Only UTF-16BE strings with a byte order mark are
// decodable without font information; anything else is reported as opaque.
func readHex(data []byte, i int) (string, bool, int) {
	end := bytes.IndexByte(data[i:], '>')
	if end < 0 {
		return "", false, len(data)
	}
	body := data[i+1 : i+end]
	next := i + end + 1
	var digits []byte
	for _, c := range body {
		if !isDelimOrSpace(c) {
			digits = append(digits, c)
		}
	}
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	decoded := make([]byte, 0, len(digits)/2)
	for j := 0; j+1 < len(digits); j += 2 {
		v, err := strconv.ParseUint(string(digits[j:j+2]), 16, 8)
		if err != nil {
			return "", false, next
		}
		decoded = append(decoded, byte(v))
	}
	if !bytes.HasPrefix(decoded, []byte{0xFE, 0xFF}) {
		return "", false, next
	}
	return decodeText(decoded), true, next
}

// decodePDFString handles basic PDF escape sequences.
func decodePDFString(raw []byte) []byte {
	var out []byte
	for i := 0; i < len(raw); i++ {
		if raw[i] != '\\' || i+1 >= len(raw) {
			out = append(out, raw[i])
			continue
		}
		i++
		switch raw[i] {
		case 'n':
			out = append(out, '\n')
		case 'r':
			out = append(out, '\r')
		case 't':
			out = append(out, '\t')
		case 'b', 'f':
		case '\\', '(', ')':
			out = append(out, raw[i])
		case '\r', '\n':
			// line continuation
		default:
			if raw[i] >= '0' && raw[i] <= '7' {
				val := int(raw[i] - '0')
				for k := 0; k < 2 && i+1 < len(raw) && raw[i+1] >= '0' && raw[i+1] <= '7'; k++ {
					i++
					val = val*8 + int(raw[i]-'0')
				}
				out = append(out, byte(val))
			} else {
				out = append(out, raw[i])
			}
		}
	}
	return out
}

// decodeText maps PDF string bytes to Unicode: UTF-16BE when a BOM is present,
// otherwise byte-per-rune (PDFDocEncoding is a Latin-1 superset for printable text).
func decodeText(b []byte) string {
	if bytes.HasPrefix(b, []byte{0xFE, 0xFF}) {
		b = b[2:]
		u := make([]uint16, 0, len(b)/2)
		for j := 0; j+1 < len(b); j += 2 {
			u = append(u, uint16(b[j])<<8|uint16(b[j+1]))
		}
		return string(utf16.Decode(u))
	}
	rs := make([]rune, 0, len(b))
	for _, c := range b {
		rs = append(rs, rune(c))
	}
	return string(rs)
}

// printableRatio is the share of runes that are printable text.
// Private-use runes, U+FFFD and control characters other than whitespace count as garbage.
func printableRatio(text string) float64 {
	total, printable := 0, 0
	for _, r := range text {
		total++
		if (r >= 0xE000 && r <= 0xF8FF) || r == 0xFFFD {
			continue
		}
		if r < 0x20 && r != '\n' && r != '\r' && r != '\t' {
			continue
		}
		if unicode.IsPrint(r) || unicode.IsSpace(r) {
			printable++
		}
	}
	if total == 0 {
		return 1
	}
	return float64(printable) / float64(total)
}
