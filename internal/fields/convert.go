package fields

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/joseph-ayodele/doc-intake/internal/rules"
	"github.com/joseph-ayodele/doc-intake/internal/textnorm"
)

// ParseInt parses amounts such as "1,200", "１２，０００円", "1億2,000万" and "△5,000".
// Thousands separators (ASCII and full-width commas), currency marks and spaces are ignored.
func ParseInt(s string) (int64, error) {
	s = strings.Map(func(r rune) rune {
		switch r {
		case ',', '，', '円', '¥', '￥', ' ', '　':
			return -1
		}
		return r
	}, textnorm.Width(strings.TrimSpace(s)))

	neg := false
	for _, p := range []string{"-", "△", "▲"} {
		if strings.HasPrefix(s, p) {
			neg = true
			s = strings.TrimPrefix(s, p)
			break
		}
	}
	if s == "" {
		return 0, fmt.Errorf("no digits")
	}

	var total, cur int64
	digits := false
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			d := int64(r - '0')
			if cur > (math.MaxInt64-d)/10 {
				return 0, fmt.Errorf("amount %q out of range", s)
			}
			cur = cur*10 + d
			digits = true
		case r == '億' || r == '万':
			if !digits {
				return 0, fmt.Errorf("unit %q without digits in %q", r, s)
			}
			mult := int64(10_000)
			if r == '億' {
				mult = 100_000_000
			}
			if cur > math.MaxInt64/mult || total > math.MaxInt64-cur*mult {
				return 0, fmt.Errorf("amount %q out of range", s)
			}
			total += cur * mult
			cur, digits = 0, false
		default:
			return 0, fmt.Errorf("unexpected %q in amount", r)
		}
	}
	if total > math.MaxInt64-cur {
		return 0, fmt.Errorf("amount %q out of range", s)
	}
	total += cur
	if neg {
		total = -total
	}
	return total, nil
}

var (
	reDateYMD   = regexp.MustCompile(`([0-9]{4})\s*年\s*([0-9]{1,2})\s*月\s*([0-9]{1,2})\s*日`)
	reDateSlash = regexp.MustCompile(`([0-9]{4})[/\-.]([0-9]{1,2})[/\-.]([0-9]{1,2})`)
)

// ParseDate accepts era dates (令和5年4月1日), Gregorian 年月日 dates and slash/dash/dot dates.
func ParseDate(s string) (time.Time, error) {
	s = textnorm.Width(strings.TrimSpace(s))
	if conv, err := ConvertEra(s); err == nil {
		s = conv
	}
	m := reDateYMD.FindStringSubmatch(s)
	if m == nil {
		m = reDateSlash.FindStringSubmatch(s)
	}
	if m == nil {
		return time.Time{}, fmt.Errorf("no date in %q", s)
	}
	y, _ := strconv.Atoi(m[1])
	mo, _ := strconv.Atoi(m[2])
	d, _ := strconv.Atoi(m[3])
	t := time.Date(y, time.Month(mo), d, 0, 0, 0, 0, time.UTC)
	if t.Year() != y || int(t.Month()) != mo || t.Day() != d {
		return time.Time{}, fmt.Errorf("invalid date %04d-%02d-%02d", y, mo, d)
	}
	return t, nil
}

var rePostalPrefix = regexp.MustCompile(`^〒?\s*[0-9]{3}-?[0-9]{4}\s*`)

// NormalizeAddress expands an abbreviated prefecture, folds width and strips whitespace.
func NormalizeAddress(s string) string {
	s = textnorm.StripSpaces(textnorm.Width(s))
	s = rePostalPrefix.ReplaceAllString(s, "")
	return expandPrefecture(s)
}

// Trim removes surrounding whitespace and stray trailing punctuation.
func Trim(s string) string {
	return strings.TrimRightFunc(strings.TrimSpace(s), func(r rune) bool {
		return unicode.IsSpace(r) || r == '、' || r == '。' || r == ','
	})
}

// apply runs the rule's post-processing step over a captured value.
func apply(p rules.PostProcess, raw string) (Value, error) {
	switch p {
	case rules.PostNone:
		return String(raw), nil
	case rules.PostTrim:
		return String(Trim(raw)), nil
	case rules.PostParseInt:
		i, err := ParseInt(raw)
		if err != nil {
			return Value{}, err
		}
		return Int(i), nil
	case rules.PostNormalizeAddress:
		return String(NormalizeAddress(raw)), nil
	case rules.PostConvertEra:
		s, err := ConvertEra(raw)
		if err != nil {
			return Value{}, err
		}
		return String(s), nil
	case rules.PostParseDate:
		t, err := ParseDate(raw)
		if err != nil {
			return Value{}, err
		}
		return Date(t), nil
	default:
		return Value{}, fmt.Errorf("unknown postProcess %q", p)
	}
}
