package fields

import (
	"regexp"
	"strings"
	"time"
)

const roleRepresentative = "代表取締役"

var (
	reOfficerSection = regexp.MustCompile(`^役員に関する事項`)
	reOtherSection   = regexp.MustCompile(`に関する事項$|^登記記録|^支\s*店`)
	reOfficerRole    = regexp.MustCompile(`^(代表取締役|代表執行役|取締役|執行役|監査役|会計参与|会計監査人|代表社員|業務執行社員)\s*(.*)$`)
	reOfficerDate    = regexp.MustCompile(`^((?:令和|平成|昭和|大正)\s*(?:元|[0-9]{1,2})\s*年\s*[0-9]{1,2}\s*月\s*[0-9]{1,2}\s*日|[0-9]{4}\s*年\s*[0-9]{1,2}\s*月\s*[0-9]{1,2}\s*日)\s*(就任|重任|選任)`)
	reOfficerLeft    = regexp.MustCompile(`(退任|辞任|死亡|解任)`)
)

type officer struct {
	role      string
	name      string
	address   string
	appointed time.Time
}

// officerBuilder accumulates the lines of one officer entry.
type officerBuilder struct {
	role      string
	name      string
	address   string
	appointed time.Time
	left      bool
}

func (b *officerBuilder) finalize() (officer, bool) {
	if b.role == "" || b.name == "" || b.left {
		return officer{}, false
	}
	return officer{role: b.role, name: b.name, address: b.address, appointed: b.appointed}, true
}

// parseOfficers reads the 役員に関する事項 section of a registry transcript.
// Officers recorded as having left are dropped.
func parseOfficers(text string) []officer {
	var (
		out       []officer
		cur       *officerBuilder
		inSection bool
	)
	flush := func() {
		if cur == nil {
			return
		}
		if o, ok := cur.finalize(); ok {
			out = append(out, o)
		}
		cur = nil
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "":
			continue
		case reOfficerSection.MatchString(line):
			inSection = true
			continue
		case !inSection:
			continue
		case reOtherSection.MatchString(line):
			flush()
			inSection = false
			continue
		}

		if m := reOfficerRole.FindStringSubmatch(line); m != nil {
			flush()
			cur = &officerBuilder{role: m[1], name: strings.ReplaceAll(m[2], " ", "")}
			continue
		}
		if cur == nil {
			continue
		}
		switch {
		case reOfficerLeft.MatchString(line):
			cur.left = true
		case reOfficerDate.MatchString(line):
			m := reOfficerDate.FindStringSubmatch(line)
			if t, err := ParseDate(m[1]); err == nil {
				cur.appointed = t
			}
		case cur.name == "":
			cur.name = strings.ReplaceAll(line, " ", "")
		case cur.address == "" && isPrefectureAddress(line):
			cur.address = NormalizeAddress(line)
		}
	}
	flush()
	return out
}

func isPrefectureAddress(line string) bool {
	for _, p := range prefectures {
		if strings.HasPrefix(line, p) {
			return true
		}
	}
	return false
}
