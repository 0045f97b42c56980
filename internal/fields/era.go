package fields

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

type era struct {
	name  string
	start int
}

// eras maps Japanese era names to the Gregorian year of their first year.
var eras = []era{
	{"令和", 2019},
	{"平成", 1989},
	{"昭和", 1926},
	{"大正", 1912},
}

var (
	reEraYear       = regexp.MustCompile(`(令和|平成|昭和|大正)\s*(元|[0-9]{1,2})\s*年`)
	reGregorianYear = regexp.MustCompile(`[0-9]{4}\s*年`)
)

// EraToGregorian returns eraStart + eraYear - 1.
func EraToGregorian(name string, eraYear int) (int, error) {
	if eraYear < 1 {
		return 0, fmt.Errorf("era year must be >= 1, got %d", eraYear)
	}
	for _, e := range eras {
		if e.name == name {
			return e.start + eraYear - 1, nil
		}
	}
	return 0, fmt.Errorf("unknown era %q", name)
}

// ConvertEra rewrites every era-relative year in s to its Gregorian year:
// "令和5年" -> "2023年", "平成31年4月1日" -> "2019年4月1日". 元年 is year 1.
// Input that already carries a Gregorian year is returned trimmed.
func ConvertEra(s string) (string, error) {
	s = strings.TrimSpace(s)
	if !reEraYear.MatchString(s) {
		if reGregorianYear.MatchString(s) {
			return s, nil
		}
		return "", fmt.Errorf("no era year in %q", s)
	}
	var convErr error
	out := reEraYear.ReplaceAllStringFunc(s, func(m string) string {
		sub := reEraYear.FindStringSubmatch(m)
		n := 1
		if sub[2] != "元" {
			n, _ = strconv.Atoi(sub[2])
		}
		y, err := EraToGregorian(sub[1], n)
		if err != nil {
			convErr = err
			return m
		}
		return strconv.Itoa(y) + "年"
	})
	if convErr != nil {
		return "", convErr
	}
	return out, nil
}
