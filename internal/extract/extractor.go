// Package extract turns one account's report text into confidence-scored
// fields and checks the result for cross-field consistency.
package extract

import (
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/reage-cli/internal/dates"
	"github.com/sells-group/reage-cli/internal/model"
)

// hit is one candidate value found in the segment. start and end bound the
// text the value was read from, label included.
type hit struct {
	start, end int
	value      string
	// down lowers the matcher's confidence by this many levels.
	down int
	// capMedium prevents a High result (day-less or two-digit-year dates).
	capMedium bool
}

type matcher struct {
	field model.FieldName
	conf  model.Confidence
	find  func(text string) []hit
}

// Extractor applies an ordered matcher list to account text. It holds no
// mutable state and is safe for concurrent use.
type Extractor struct {
	matchers []matcher
}

// New returns an Extractor with the built-in matcher table.
func New() *Extractor {
	return &Extractor{matchers: defaultMatchers()}
}

var defaultExtractor = New()

// Extract runs the default extractor over segment.
func Extract(segment string) model.ExtractedFields {
	return defaultExtractor.Extract(segment)
}

// Extract returns the fields recognized in segment. Matchers run from
// highest to lowest confidence; the first accepted candidate for a field
// wins and later candidates, including repeats of the same label, are
// ignored. Text already claimed by an accepted field cannot feed another.
// Empty input yields an empty, non-nil map.
func (e *Extractor) Extract(segment string) model.ExtractedFields {
	out := model.ExtractedFields{}
	f := fold(segment)
	text := f.text
	if strings.TrimSpace(text) == "" {
		return out
	}

	var used []hit
	for _, m := range e.matchers {
		if _, done := out[m.field]; done {
			continue
		}
		for _, h := range m.find(text) {
			if overlaps(used, h) {
				continue
			}
			out[m.field] = model.ExtractedField{
				Value:      h.value,
				Confidence: adjust(m.conf, h),
				SourceText: strings.TrimSpace(f.original(h.start, h.end)),
			}
			used = append(used, h)
			break
		}
	}
	return out
}

// folded is NFKC-normalized text with CRLF collapsed to LF. spans map
// each normalization segment back to the input so matches can quote the
// report exactly as written.
type folded struct {
	text  string
	input string
	spans []foldSpan
}

type foldSpan struct {
	start, end int // in text
	inStart    int
	inEnd      int
}

// fold applies NFKC so full-width digits, non-breaking spaces and ligatures
// match the ASCII patterns.
func fold(s string) folded {
	var (
		b     strings.Builder
		spans []foldSpan
		it    norm.Iter
	)
	it.InitString(norm.NFKC, s)
	for !it.Done() {
		inStart := it.Pos()
		seg := it.Next()
		inEnd := it.Pos()
		start := b.Len()
		for j, c := range seg {
			if c == '\r' && nextIsLF(seg, j, s, inEnd) {
				continue
			}
			b.WriteByte(c)
		}
		if b.Len() == start {
			continue
		}
		spans = append(spans, foldSpan{start: start, end: b.Len(), inStart: inStart, inEnd: inEnd})
	}
	return folded{text: b.String(), input: s, spans: spans}
}

func nextIsLF(seg []byte, j int, input string, inEnd int) bool {
	if j+1 < len(seg) {
		return seg[j+1] == '\n'
	}
	return inEnd < len(input) && input[inEnd] == '\n'
}

// original returns the input text that folded to text[start:end], widened
// to whole normalization segments.
func (f folded) original(start, end int) string {
	if start >= end || len(f.spans) == 0 {
		return ""
	}
	first := sort.Search(len(f.spans), func(i int) bool { return f.spans[i].end > start })
	last := sort.Search(len(f.spans), func(i int) bool { return f.spans[i].end >= end })
	if first >= len(f.spans) {
		return ""
	}
	if last >= len(f.spans) {
		last = len(f.spans) - 1
	}
	return f.input[f.spans[first].inStart:f.spans[last].inEnd]
}

func overlaps(used []hit, h hit) bool {
	for _, u := range used {
		if h.start < u.end && u.start < h.end {
			return true
		}
	}
	return false
}

func lower(c model.Confidence) model.Confidence {
	switch c {
	case model.ConfidenceHigh:
		return model.ConfidenceMedium
	default:
		return model.ConfidenceLow
	}
}

func adjust(base model.Confidence, h hit) model.Confidence {
	c := base
	for i := 0; i < h.down; i++ {
		c = lower(c)
	}
	if h.capMedium && c == model.ConfidenceHigh {
		c = model.ConfidenceMedium
	}
	return c
}

// labelSet lists the labels that introduce a field. Labels are regexp
// fragments matched case-insensitively.
type labelSet struct {
	field  model.FieldName
	high   []string
	medium []string
	parse  func(region string, strict bool) (parsed, bool)
}

// parsed is a value read from the text after a label. end is relative to
// the start of that text.
type parsed struct {
	value     string
	end       int
	down      int
	capMedium bool
}

var labels = []labelSet{
	{
		field:  model.FieldOriginalCreditor,
		high:   []string{`original creditor(?: name)?`, `original lender`},
		medium: []string{`creditor`, `originally owed to`, `placed by`},
		parse:  textValue,
	},
	{
		field: model.FieldFurnisherOrCollector,
		high: []string{`furnisher(?: name)?`, `collector`, `collection (?:agency|company)`,
			`debt (?:collector|buyer)`, `reported by`, `current creditor`},
		medium: []string{`creditor name`, `company(?: name)?`, `subscriber(?: name)?`, `account name`},
		parse:  textValue,
	},
	{
		field:  model.FieldAccountNumber,
		high:   []string{`account (?:number|no\.?|#)`, `acct\.? ?(?:number|no\.?|#)`},
		medium: []string{`account`, `acct\.?`},
		parse:  accountNumberValue,
	},
	{
		field:  model.FieldCurrentBalance,
		high:   []string{`current balance`, `balance (?:owed|due)`, `amount owed`},
		medium: []string{`balance`, `amount due`, `owed`},
		parse:  moneyValue,
	},
	{
		field:  model.FieldOriginalAmount,
		high:   []string{`original (?:amount|balance|loan amount)`},
		medium: []string{`high balance`, `high credit`, `amount financed`},
		parse:  moneyValue,
	},
	{
		field:  model.FieldDateOpened,
		high:   []string{`date opened`, `opened date`, `open date`, `account opened`, `opened on`},
		medium: []string{`opened`},
		parse:  dateValue,
	},
	{
		field: model.FieldDOFD,
		high: []string{`date of (?:first|1st) delinquency`, `first delinquency(?: date)?`, `dofd`,
			`date of first delinquent`},
		medium: []string{`delinquency date`, `delinquent since`, `first reported delinquent`},
		parse:  dateValue,
	},
	{
		field: model.FieldChargeOffDate,
		high: []string{`charge[- ]?off date`, `charged[- ]off date`, `date of charge[- ]?off`,
			`date charged[- ]off`, `charged[- ]off on`},
		medium: []string{`charge[- ]?off`, `charged[- ]off`, `written off`},
		parse:  dateValue,
	},
	{
		field: model.FieldEstimatedRemoval,
		high: []string{`estimated (?:removal date|date of removal)`, `removal date`,
			`scheduled removal(?: date)?`, `expected removal(?: date)?`, `on record until`,
			`estimated month and year (?:that )?this item will be removed`},
		medium: []string{`removal`, `remove(?:d)? by`},
		parse:  dateValue,
	},
	{
		field: model.FieldDateLastPayment,
		high: []string{`date of last payment`, `last payment(?: date| made)?`, `date last paid`,
			`last paid`},
		medium: []string{`payment received`, `last activity`},
		parse:  dateValue,
	},
	{
		field: model.FieldDateReported,
		high: []string{`date (?:reported|updated)`, `last (?:reported|updated)`, `(?:reported|updated) on`,
			`report date`, `balance updated`},
		medium: []string{`reported`, `updated`, `as of`, `status updated`},
		parse:  dateValue,
	},
	{
		field:  model.FieldAccountStatus,
		high:   []string{`account status`, `status`, `payment status`, `current status`},
		medium: []string{`(?:account )?condition`, `pay status`},
		parse:  textValue,
	},
	{
		field:  model.FieldAccountType,
		high:   []string{`account type`, `type of account`, `loan type`, `type`},
		medium: []string{`classification`, `category`},
		parse:  textValue,
	},
	{
		field:  model.FieldBureau,
		high:   []string{`(?:credit )?bureau`, `reporting agency`, `source`},
		medium: []string{`cra`},
		parse:  bureauValue,
	},
	{
		field:  model.FieldStateCode,
		high:   []string{`state(?: of residence)?`},
		medium: []string{`address`, `location`},
		parse:  stateValue,
	},
}

const labelStart = `(?im)(?:^|[ \t]{2,}|\t|\|)[ \t]*(`

func labelRe(alts []string, colon bool) *regexp.Regexp {
	sep := `)[ \t]+([^\n]*)`
	if colon {
		sep = `)[ \t]*:[ \t]*([^\n]*)`
	}
	return regexp.MustCompile(labelStart + strings.Join(alts, "|") + sep)
}

// labeledFinder returns every candidate re finds whose value parses. In
// strict mode (labels without a colon) the value must begin immediately.
func labeledFinder(re *regexp.Regexp, parse func(string, bool) (parsed, bool), strict bool) func(string) []hit {
	return func(text string) []hit {
		var hits []hit
		for _, loc := range re.FindAllStringSubmatchIndex(text, -1) {
			regionStart := loc[4]
			p, ok := parse(text[regionStart:loc[5]], strict)
			if !ok {
				continue
			}
			hits = append(hits, hit{
				start:     loc[2],
				end:       regionStart + p.end,
				value:     p.value,
				down:      p.down,
				capMedium: p.capMedium,
			})
		}
		return hits
	}
}

func defaultMatchers() []matcher {
	var ms []matcher
	for _, ls := range labels {
		ms = append(ms,
			matcher{ls.field, model.ConfidenceHigh, labeledFinder(labelRe(ls.high, true), ls.parse, false)},
			matcher{ls.field, model.ConfidenceMedium, labeledFinder(labelRe(ls.medium, true), ls.parse, false)},
		)
		if kind := ls.field.Kind(); kind == model.KindDate || kind == model.KindMoney {
			ms = append(ms,
				matcher{ls.field, model.ConfidenceMedium, labeledFinder(labelRe(ls.high, false), ls.parse, true)},
				matcher{ls.field, model.ConfidenceLow, labeledFinder(labelRe(ls.medium, false), ls.parse, true)},
			)
		}
	}

	ms = append(ms,
		matcher{model.FieldEstimatedRemoval, model.ConfidenceMedium, proseRemoval},
		matcher{model.FieldFurnisherOrCollector, model.ConfidenceLow, nameHeader},
		matcher{model.FieldDOFD, model.ConfidenceLow, lineDate(delinquentRe)},
		matcher{model.FieldChargeOffDate, model.ConfidenceLow, lineDate(chargedOffRe)},
		matcher{model.FieldDateLastPayment, model.ConfidenceLow, lineDate(lastPaidRe)},
		matcher{model.FieldDateReported, model.ConfidenceLow, lineDate(reportedRe)},
		matcher{model.FieldAccountStatus, model.ConfidenceLow, keyword(statusKeywordRe)},
		matcher{model.FieldAccountType, model.ConfidenceLow, keyword(typeKeywordRe)},
		matcher{model.FieldBureau, model.ConfidenceLow, bureauMention},
	)

	sort.SliceStable(ms, func(i, j int) bool {
		return ms[i].conf.Rank() > ms[j].conf.Rank()
	})
	return ms
}

var (
	columnBreak  = regexp.MustCompile(`[ \t]{2,}|\t|\||;`)
	moneyStartRe = regexp.MustCompile(`^(?:USD[ \t]*)?-?[ \t]*\$?[ \t]*\d[\d,]*(?:\.\d+)?`)
	moneyAnyRe   = regexp.MustCompile(`\$[ \t]*\d[\d,]*(?:\.\d+)?`)
	twoDigitRe   = regexp.MustCompile(`^\d{1,2}/\d{1,2}/\d{2}$`)
	bureauRe     = regexp.MustCompile(`(?i)\b(experian|equifax|trans[ ]?union)\b`)
	zipStateRe   = regexp.MustCompile(`\b([A-Z]{2})[ \t]+\d{5}(?:-\d{4})?\b`)
	placeholders = map[string]bool{
		"n/a": true, "na": true, "none": true, "unknown": true, "-": true, "--": true,
		"not reported": true, "not available": true,
	}
)

// firstColumn trims leading blanks and cuts region at the first column
// break. lead is the number of bytes trimmed.
func firstColumn(region string) (col string, lead int) {
	trimmed := strings.TrimLeft(region, " \t")
	lead = len(region) - len(trimmed)
	if loc := columnBreak.FindStringIndex(trimmed); loc != nil {
		trimmed = trimmed[:loc[0]]
	}
	return trimmed, lead
}

func textValue(region string, _ bool) (parsed, bool) {
	col, lead := firstColumn(region)
	v := strings.TrimRight(col, " \t.,:")
	if v == "" || placeholders[strings.ToLower(v)] {
		return parsed{}, false
	}
	return parsed{value: v, end: lead + len(v)}, true
}

func accountNumberValue(region string, strict bool) (parsed, bool) {
	p, ok := textValue(region, strict)
	if !ok || !strings.ContainsAny(p.value, "0123456789Xx*") || len(p.value) > 30 {
		return parsed{}, false
	}
	return p, true
}

func dateValue(region string, strict bool) (parsed, bool) {
	col, lead := firstColumn(region)
	m, ok := dates.Find(col)
	if !ok {
		return parsed{}, false
	}
	p := parsed{value: m.ISO, end: lead + m.End}
	if m.Start > 0 {
		if strict {
			return parsed{}, false
		}
		p.down = 1
	}
	p.capMedium = m.Partial || twoDigitRe.MatchString(m.Text)
	return p, true
}

func moneyValue(region string, strict bool) (parsed, bool) {
	col, lead := firstColumn(region)
	down := 0
	loc := moneyStartRe.FindStringIndex(col)
	if loc == nil {
		if strict {
			return parsed{}, false
		}
		if loc = moneyAnyRe.FindStringIndex(col); loc == nil {
			return parsed{}, false
		}
		down = 1
	}
	v, ok := model.CleanAmount(col[loc[0]:loc[1]])
	if !ok {
		return parsed{}, false
	}
	return parsed{value: v, end: lead + loc[1], down: down}, true
}

func bureauValue(region string, _ bool) (parsed, bool) {
	col, lead := firstColumn(region)
	loc := bureauRe.FindStringIndex(col)
	if loc == nil {
		return parsed{}, false
	}
	p := parsed{value: canonicalBureau(col[loc[0]:loc[1]]), end: lead + loc[1]}
	if loc[0] > 0 {
		p.down = 1
	}
	return p, true
}

func canonicalBureau(s string) string {
	return strings.ReplaceAll(strings.ToLower(s), " ", "")
}

func stateValue(region string, _ bool) (parsed, bool) {
	col, lead := firstColumn(region)
	v := strings.TrimRight(col, " \t.,")
	if code, ok := stateCode(v); ok {
		return parsed{value: code, end: lead + len(v)}, true
	}
	if m := zipStateRe.FindStringSubmatchIndex(col); m != nil && IsStateCode(col[m[2]:m[3]]) {
		return parsed{value: col[m[2]:m[3]], end: lead + m[1], down: 1}, true
	}
	return parsed{}, false
}

var proseRemovalRe = regexp.MustCompile(`(?i)\b(?:on record until|remains? on (?:the |your )?(?:credit )?(?:report|file) until|(?:will|to) be removed (?:on|by|in))[ \t]*:?([^\n]*)`)

// proseRemoval finds removal dates written as sentences, e.g. "This item is
// scheduled to continue on record until Dec 2027".
func proseRemoval(text string) []hit {
	var hits []hit
	for _, loc := range proseRemovalRe.FindAllStringSubmatchIndex(text, -1) {
		p, ok := dateValue(text[loc[2]:loc[3]], false)
		if !ok {
			continue
		}
		hits = append(hits, hit{start: loc[0], end: loc[2] + p.end, value: p.value,
			down: p.down, capMedium: p.capMedium})
	}
	return hits
}

var headerStopWords = []string{"REPORT", "SUMMARY", "INFORMATION", "DETAILS", "HISTORY", "ADVERSE", "ACCOUNTS"}

// nameHeader treats an all-caps first line as the furnisher name.
func nameHeader(text string) []hit {
	start := len(text) - len(strings.TrimLeft(text, " \t\n"))
	line := text[start:]
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	name := strings.TrimSpace(line)
	if !isNameLine(name) {
		return nil
	}
	for _, w := range headerStopWords {
		if strings.Contains(name, w) {
			return nil
		}
	}
	return []hit{{start: start, end: start + len(strings.TrimRight(line, " \t")), value: name}}
}

func isNameLine(s string) bool {
	if s == "" || len(s) > 80 || strings.ContainsRune(s, ':') {
		return false
	}
	if _, ok := dates.Find(s); ok {
		return false
	}
	letters := 0
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
			return false
		case r >= 'A' && r <= 'Z':
			letters++
		case r >= '0' && r <= '9', r == ' ', strings.ContainsRune("&.,'/-()#", r):
		default:
			return false
		}
	}
	return letters >= 3
}

var (
	delinquentRe = regexp.MustCompile(`(?i)\bdelinquen`)
	chargedOffRe = regexp.MustCompile(`(?i)\bcharged?[- ]?off\b|\bwritten off\b`)
	lastPaidRe   = regexp.MustCompile(`(?i)\blast (?:paid|payment)\b`)
	reportedRe   = regexp.MustCompile(`(?i)\b(?:reported|updated)\b`)
)

// lineDate takes the first date that follows kw on the same line.
func lineDate(kw *regexp.Regexp) func(string) []hit {
	return func(text string) []hit {
		var hits []hit
		offset := 0
		for _, line := range strings.SplitAfter(text, "\n") {
			if loc := kw.FindStringIndex(line); loc != nil {
				if m, ok := dates.Find(line[loc[1]:]); ok {
					hits = append(hits, hit{
						start: offset + loc[0],
						end:   offset + loc[1] + m.End,
						value: m.ISO,
					})
				}
			}
			offset += len(line)
		}
		return hits
	}
}

var (
	statusKeywordRe = regexp.MustCompile(`(?i)\b(?:charged[- ]off|charge[- ]off|in collections?|collection account|` +
		`paid in full|settled(?: for less than (?:the )?full (?:balance|amount))?|` +
		`(?:included|discharged) in bankruptcy|repossession|foreclosure)\b`)
	typeKeywordRe = regexp.MustCompile(`(?i)\b(?:medical|credit card|auto loan|mortgage|student loan|installment|revolving)\b`)
)

// keyword turns a status or type phrase found anywhere into a title-cased
// value.
func keyword(re *regexp.Regexp) func(string) []hit {
	return func(text string) []hit {
		var hits []hit
		for _, loc := range re.FindAllStringIndex(text, -1) {
			phrase := strings.ReplaceAll(strings.ToLower(text[loc[0]:loc[1]]), "-", " ")
			hits = append(hits, hit{
				start: loc[0],
				end:   loc[1],
				value: cases.Title(language.AmericanEnglish).String(phrase),
			})
		}
		return hits
	}
}

func bureauMention(text string) []hit {
	var hits []hit
	for _, loc := range bureauRe.FindAllStringIndex(text, -1) {
		hits = append(hits, hit{start: loc[0], end: loc[1], value: canonicalBureau(text[loc[0]:loc[1]])})
	}
	return hits
}
