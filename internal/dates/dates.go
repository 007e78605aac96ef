// Package dates normalizes heterogeneous date tokens found in credit reports
// to ISO YYYY-MM-DD and provides the statutory date arithmetic built on them.
package dates

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ISOLayout is the canonical date layout.
const ISOLayout = "2006-01-02"

const monthAlt = `january|february|march|april|may|june|july|august|september|october|november|december|` +
	`jan|feb|mar|apr|jun|jul|aug|sept|sep|oct|nov|dec`

var monthNumbers = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March, "apr": time.April,
	"may": time.May, "jun": time.June, "jul": time.July, "aug": time.August,
	"sep": time.September, "oct": time.October, "nov": time.November, "dec": time.December,
}

// layout identifies which capture groups hold year, month and day.
type layout int

const (
	layoutYMD layout = iota
	layoutMDY
	layoutMDYY
	layoutMonthDY
	layoutDMonthY
	layoutMonthY
)

// datePattern is one recognized date shape. Patterns are listed in priority
// order; on ties the earlier pattern wins.
type datePattern struct {
	name     string
	layout   layout
	anchored *regexp.Regexp
	scan     *regexp.Regexp
}

func newPattern(name string, l layout, body string) datePattern {
	return datePattern{
		name:     name,
		layout:   l,
		anchored: regexp.MustCompile(`(?i)^` + body + `$`),
		scan:     regexp.MustCompile(`(?i)\b` + body + `\b`),
	}
}

var patterns = []datePattern{
	newPattern("iso", layoutYMD, `(\d{4})-(\d{1,2})-(\d{1,2})`),
	newPattern("mdy-slash", layoutMDY, `(\d{1,2})/(\d{1,2})/(\d{4})`),
	newPattern("mdy-dash", layoutMDY, `(\d{1,2})-(\d{1,2})-(\d{4})`),
	newPattern("mdyy", layoutMDYY, `(\d{1,2})/(\d{1,2})/(\d{2})`),
	newPattern("month-d-y", layoutMonthDY, `(`+monthAlt+`)\.?\s+(\d{1,2})(?:st|nd|rd|th)?,?\s+(\d{4})`),
	newPattern("d-month-y", layoutDMonthY, `(\d{1,2})(?:st|nd|rd|th)?\s+(`+monthAlt+`)\.?,?\s+(\d{4})`),
	newPattern("month-y", layoutMonthY, `(`+monthAlt+`)\.?,?\s+(\d{4})`),
}

// Normalize parses a single date token into YYYY-MM-DD. It reports false
// when the token matches no recognized shape or names an impossible date.
// Only "Month YYYY" supplies a default (day 01); nothing else is guessed.
func Normalize(token string) (string, bool) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	for _, p := range patterns {
		m := p.anchored.FindStringSubmatch(token)
		if m == nil {
			continue
		}
		if iso, ok := build(p.layout, m[1:]); ok {
			return iso, true
		}
		return "", false
	}
	return "", false
}

// Match is a date found inside free text.
type Match struct {
	ISO   string
	Text  string
	Start int
	End   int
	// Partial is set when the day was not written out ("Month YYYY").
	Partial bool
}

// Extract returns the first plausible date in text, scanning left to right.
func Extract(text string) (string, bool) {
	m, ok := Find(text)
	if !ok {
		return "", false
	}
	return m.ISO, true
}

// Find is Extract with position information.
func Find(text string) (Match, bool) {
	all := FindAll(text)
	if len(all) == 0 {
		return Match{}, false
	}
	return all[0], true
}

// FindAll returns every non-overlapping valid date in text, ordered by
// position. At equal positions the higher-priority pattern wins.
func FindAll(text string) []Match {
	type candidate struct {
		Match
		priority int
	}
	var cands []candidate
	for prio, p := range patterns {
		for _, loc := range p.scan.FindAllStringSubmatchIndex(text, -1) {
			groups := make([]string, 0, 3)
			for g := 1; g*2+1 < len(loc); g++ {
				groups = append(groups, text[loc[g*2]:loc[g*2+1]])
			}
			iso, ok := build(p.layout, groups)
			if !ok {
				continue
			}
			cands = append(cands, candidate{
				Match: Match{
					ISO:     iso,
					Text:    text[loc[0]:loc[1]],
					Start:   loc[0],
					End:     loc[1],
					Partial: p.layout == layoutMonthY,
				},
				priority: prio,
			})
		}
	}
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].Start != cands[j].Start {
			return cands[i].Start < cands[j].Start
		}
		return cands[i].priority < cands[j].priority
	})

	var out []Match
	end := -1
	for _, c := range cands {
		if c.Start < end {
			continue
		}
		out = append(out, c.Match)
		end = c.End
	}
	return out
}

func build(l layout, g []string) (string, bool) {
	var year, day int
	var month time.Month
	switch l {
	case layoutYMD:
		year, month, day = atoi(g[0]), time.Month(atoi(g[1])), atoi(g[2])
	case layoutMDY:
		month, day, year = time.Month(atoi(g[0])), atoi(g[1]), atoi(g[2])
	case layoutMDYY:
		month, day, year = time.Month(atoi(g[0])), atoi(g[1]), pivotYear(atoi(g[2]))
	case layoutMonthDY:
		month, day, year = monthFromName(g[0]), atoi(g[1]), atoi(g[2])
	case layoutDMonthY:
		day, month, year = atoi(g[0]), monthFromName(g[1]), atoi(g[2])
	case layoutMonthY:
		month, day, year = monthFromName(g[0]), 1, atoi(g[1])
	default:
		return "", false
	}
	t, ok := calendarDate(year, month, day)
	if !ok {
		return "", false
	}
	return t.Format(ISOLayout), true
}

// pivotYear maps a two-digit year: 00-50 to 20YY, 51-99 to 19YY.
func pivotYear(yy int) int {
	if yy <= 50 {
		return 2000 + yy
	}
	return 1900 + yy
}

func monthFromName(s string) time.Month {
	s = strings.ToLower(strings.TrimSuffix(s, "."))
	if len(s) < 3 {
		return 0
	}
	return monthNumbers[s[:3]]
}

func calendarDate(year int, month time.Month, day int) (time.Time, bool) {
	if year < 1000 || month < time.January || month > time.December || day < 1 || day > 31 {
		return time.Time{}, false
	}
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || t.Month() != month || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return -1
	}
	return n
}
