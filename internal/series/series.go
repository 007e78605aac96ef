// Package series compares successive analyses of the same account and
// reports drift that suggests re-aging or other reporting manipulation.
package series

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/reage-cli/internal/dates"
	"github.com/sells-group/reage-cli/internal/model"
)

// Insight types.
const (
	TypeReaging               = "reaging"
	TypeRemovalExtension      = "removal-extension"
	TypeDofdRemovalMismatch   = "dofd-removal-mismatch"
	TypeRemovalBeyondLimit    = "removal-beyond-limit"
	TypeDataCorruption        = "data-corruption"
	TypeBalanceGrowth         = "balance-growth"
	TypePaymentShift          = "payment-shift"
	TypePaymentAfterDofd      = "payment-after-dofd"
	TypeStatusFlipFlop        = "status-flipflop"
	TypeReportingBackdate     = "reporting-backdate"
	TypeReportingAfterRemoval = "reporting-after-removal"
	TypeRapidReporting        = "rapid-reporting"
)

// Thresholds, in days or dollars.
const (
	removalExtensionDays = 60
	removalGraceDays     = 30
	balanceGrowth        = 50.0
	paymentShiftDays     = 120
	paymentAfterDofdDays = 30
	reportAfterRemoval   = 30
	rapidReportingDays   = 45
)

var (
	paidClosedRe = regexp.MustCompile(`\b(?:paid|settled|closed)\b`)
	collectionRe = regexp.MustCompile(`collect|charge[- ]?off|charged[- ]off`)
)

// snapshot is one point of a series.
type snapshot struct {
	at      time.Time
	fields  model.CreditFields
	current bool
}

func (s snapshot) label() string {
	if s.current {
		return dates.Format(s.at) + " (current)"
	}
	return dates.Format(s.at)
}

func (s snapshot) date(f model.FieldName) (time.Time, bool) { return s.fields.Date(f) }

// NameKey folds a creditor or furnisher name for matching: case-folded,
// diacritics removed, and everything but letters and digits stripped.
func NameKey(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	plain, _, err := transform.String(t, name)
	if err != nil {
		plain = name
	}
	plain = cases.Fold().String(plain)
	var b strings.Builder
	for _, r := range plain {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// AccountKey returns the name key of the first non-empty of original
// creditor and furnisher.
func AccountKey(fields model.CreditFields) string {
	for _, f := range []model.FieldName{model.FieldOriginalCreditor, model.FieldFurnisherOrCollector} {
		if v, ok := fields.Get(f); ok {
			if k := NameKey(v); k != "" {
				return k
			}
		}
	}
	return ""
}

// Matches reports whether two name keys refer to the same account: either
// contains the other.
func Matches(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// Related returns the records of prior whose account key matches current,
// ordered by timestamp. prior is not modified.
func Related(prior []model.AnalysisRecord, current model.CreditFields) []model.AnalysisRecord {
	key := AccountKey(current)
	if key == "" {
		return nil
	}
	var out []model.AnalysisRecord
	for _, r := range prior {
		if Matches(key, AccountKey(r.Fields)) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

// Compare builds the series of prior analyses matching current, followed
// by current itself at now, and returns one insight per detected pattern.
// No key or no matching prior yields no insights.
func Compare(prior []model.AnalysisRecord, current model.CreditFields, now time.Time) []model.SeriesInsight {
	related := Related(prior, current)
	if len(related) == 0 {
		return []model.SeriesInsight{}
	}
	snaps := make([]snapshot, 0, len(related)+1)
	for _, r := range related {
		snaps = append(snaps, snapshot{at: r.Timestamp, fields: r.Fields})
	}
	snaps = append(snaps, snapshot{at: now, fields: current, current: true})

	d := detector{key: AccountKey(current), snaps: snaps, out: []model.SeriesInsight{}}
	d.reaging()
	d.removalExtension()
	d.dofdRemovalMismatch()
	d.removalBeyondLimit()
	d.dataCorruption()
	d.balanceGrowth()
	d.paymentShift()
	d.paymentAfterDofd()
	d.statusFlipFlop()
	d.reportingBackdate()
	d.reportingAfterRemoval()
	d.rapidReporting()
	return d.out
}

type detector struct {
	key   string
	snaps []snapshot
	out   []model.SeriesInsight
}

func (d *detector) emit(typ string, sev model.Severity, title, summary string, evidence []string) {
	d.out = append(d.out, model.SeriesInsight{
		ID:       d.key + ":" + typ,
		Type:     typ,
		Severity: sev,
		Title:    title,
		Summary:  summary,
		Evidence: evidence,
	})
}

// dated returns the snapshots carrying a valid date in f with that date.
func (d *detector) dated(f model.FieldName) ([]snapshot, []time.Time) {
	var ss []snapshot
	var ts []time.Time
	for _, s := range d.snaps {
		if t, ok := s.date(f); ok {
			ss = append(ss, s)
			ts = append(ts, t)
		}
	}
	return ss, ts
}

func (d *detector) distinctDates(f model.FieldName) []string {
	var out []string
	seen := map[string]bool{}
	_, ts := d.dated(f)
	for _, t := range ts {
		iso := dates.Format(t)
		if !seen[iso] {
			seen[iso] = true
			out = append(out, iso)
		}
	}
	return out
}

func trail(ss []snapshot, ts []time.Time, what string) []string {
	ev := make([]string, len(ss))
	for i := range ss {
		ev[i] = fmt.Sprintf("%s: %s %s", ss[i].label(), what, dates.Format(ts[i]))
	}
	return ev
}

func (d *detector) reaging() {
	distinct := d.distinctDates(model.FieldDOFD)
	if len(distinct) < 2 {
		return
	}
	ss, ts := d.dated(model.FieldDOFD)
	d.emit(TypeReaging, model.SeverityHigh, "DOFD changed between reports",
		fmt.Sprintf("The date of first delinquency moved from %s to %s across %d reports.",
			distinct[0], distinct[len(distinct)-1], len(ss)),
		trail(ss, ts, "DOFD"))
}

func (d *detector) removalExtension() {
	ss, ts := d.dated(model.FieldEstimatedRemoval)
	if len(ss) < 2 {
		return
	}
	shift := dates.DaysBetween(ts[0], ts[len(ts)-1])
	if shift <= removalExtensionDays {
		return
	}
	d.emit(TypeRemovalExtension, model.SeverityHigh, "Removal date pushed later",
		fmt.Sprintf("The estimated removal date moved %d days later, from %s to %s.",
			shift, dates.Format(ts[0]), dates.Format(ts[len(ts)-1])),
		trail(ss, ts, "removal"))
}

func (d *detector) dofdRemovalMismatch() {
	if len(d.distinctDates(model.FieldDOFD)) < 2 {
		return
	}
	ss, ts := d.dated(model.FieldEstimatedRemoval)
	if len(ss) < 2 || len(d.distinctDates(model.FieldEstimatedRemoval)) != 1 {
		return
	}
	dofdSS, dofdTS := d.dated(model.FieldDOFD)
	ev := append(trail(dofdSS, dofdTS, "DOFD"), trail(ss, ts, "removal")...)
	d.emit(TypeDofdRemovalMismatch, model.SeverityMedium, "DOFD changed but removal date did not",
		fmt.Sprintf("The DOFD changed while the removal date stayed at %s, so at least one report "+
			"carries a removal date that does not follow from its DOFD.", dates.Format(ts[0])),
		ev)
}

// latestWith returns the most recent snapshot carrying valid dates in both
// fields.
func (d *detector) latestWith(a, b model.FieldName) (snapshot, time.Time, time.Time, bool) {
	for i := len(d.snaps) - 1; i >= 0; i-- {
		s := d.snaps[i]
		ta, ok1 := s.date(a)
		tb, ok2 := s.date(b)
		if ok1 && ok2 {
			return s, ta, tb, true
		}
	}
	return snapshot{}, time.Time{}, time.Time{}, false
}

func (d *detector) removalBeyondLimit() {
	s, dofd, removal, ok := d.latestWith(model.FieldDOFD, model.FieldEstimatedRemoval)
	if !ok {
		return
	}
	expected := dates.ExpectedRemoval(dofd)
	over := dates.DaysBetween(expected, removal)
	if over <= removalGraceDays {
		return
	}
	d.emit(TypeRemovalBeyondLimit, model.SeverityHigh, "Removal date beyond the statutory limit",
		fmt.Sprintf("The latest removal date is %d days past DOFD + 7 years 180 days.", over),
		[]string{
			fmt.Sprintf("%s: DOFD %s", s.label(), dates.Format(dofd)),
			fmt.Sprintf("%s: removal %s", s.label(), dates.Format(removal)),
			fmt.Sprintf("statutory limit %s", dates.Format(expected)),
		})
}

func (d *detector) dataCorruption() {
	var ev []string
	for _, s := range d.snaps {
		dofd, ok1 := s.date(model.FieldDOFD)
		removal, ok2 := s.date(model.FieldEstimatedRemoval)
		if ok1 && ok2 && removal.Before(dofd) {
			ev = append(ev, fmt.Sprintf("%s: removal %s precedes DOFD %s", s.label(), dates.Format(removal), dates.Format(dofd)))
		}
	}
	if len(ev) == 0 {
		return
	}
	d.emit(TypeDataCorruption, model.SeverityHigh, "Removal date precedes DOFD",
		"At least one report lists a removal date earlier than the DOFD, which indicates corrupted data.", ev)
}

func (d *detector) amounts(f model.FieldName) ([]snapshot, []float64) {
	var ss []snapshot
	var vs []float64
	for _, s := range d.snaps {
		if v, ok := s.fields.Amount(f); ok {
			ss = append(ss, s)
			vs = append(vs, v)
		}
	}
	return ss, vs
}

func (d *detector) balanceDelta() (float64, []string, bool) {
	ss, vs := d.amounts(model.FieldCurrentBalance)
	if len(ss) < 2 {
		return 0, nil, false
	}
	ev := make([]string, len(ss))
	for i := range ss {
		ev[i] = fmt.Sprintf("%s: balance $%.2f", ss[i].label(), vs[i])
	}
	return vs[len(vs)-1] - vs[0], ev, true
}

func (d *detector) balanceGrowth() {
	delta, ev, ok := d.balanceDelta()
	if !ok || delta <= balanceGrowth {
		return
	}
	d.emit(TypeBalanceGrowth, model.SeverityMedium, "Balance grew between reports",
		fmt.Sprintf("The reported balance increased by $%.2f across the series.", delta), ev)
}

func (d *detector) paymentShift() {
	ss, ts := d.dated(model.FieldDateLastPayment)
	if len(ss) < 2 {
		return
	}
	shift := dates.DaysBetween(ts[0], ts[len(ts)-1])
	delta, balEv, ok := d.balanceDelta()
	if shift <= paymentShiftDays || !ok || delta <= balanceGrowth {
		return
	}
	d.emit(TypePaymentShift, model.SeverityMedium, "Last payment moved forward while balance grew",
		fmt.Sprintf("The last payment date moved %d days later and the balance grew by $%.2f; a payment "+
			"that raises the balance is inconsistent.", shift, delta),
		append(trail(ss, ts, "last payment"), balEv...))
}

func (d *detector) paymentAfterDofd() {
	s, dofd, lp, ok := d.latestWith(model.FieldDOFD, model.FieldDateLastPayment)
	if !ok {
		return
	}
	gap := dates.DaysBetween(dofd, lp)
	if gap <= paymentAfterDofdDays {
		return
	}
	d.emit(TypePaymentAfterDofd, model.SeverityMedium, "Payment recorded after DOFD",
		fmt.Sprintf("A payment %d days after the DOFD is reported. If it cured the delinquency the DOFD "+
			"should not predate it; if not, it must not reset the DOFD.", gap),
		[]string{
			fmt.Sprintf("%s: DOFD %s", s.label(), dates.Format(dofd)),
			fmt.Sprintf("%s: last payment %s", s.label(), dates.Format(lp)),
		})
}

func (d *detector) statusFlipFlop() {
	var ev []string
	paid, collection := false, false
	for _, s := range d.snaps {
		v, ok := s.fields.Get(model.FieldAccountStatus)
		if !ok {
			continue
		}
		low := strings.ToLower(v)
		paid = paid || paidClosedRe.MatchString(low)
		collection = collection || collectionRe.MatchString(low)
		ev = append(ev, fmt.Sprintf("%s: status %q", s.label(), v))
	}
	if !paid || !collection {
		return
	}
	d.emit(TypeStatusFlipFlop, model.SeverityHigh, "Status alternates between paid and collection",
		"The status trail shows both a paid or closed state and a collection state for the same account.", ev)
}

func (d *detector) lastTwo() (snapshot, snapshot, bool) {
	n := len(d.snaps)
	if n < 2 {
		return snapshot{}, snapshot{}, false
	}
	return d.snaps[n-2], d.snaps[n-1], true
}

func (d *detector) reportingBackdate() {
	prev, last, ok := d.lastTwo()
	if !ok {
		return
	}
	a, ok1 := prev.date(model.FieldDateReported)
	b, ok2 := last.date(model.FieldDateReported)
	if !ok1 || !ok2 || !b.Before(a) {
		return
	}
	d.emit(TypeReportingBackdate, model.SeverityLow, "Reported date moved backward",
		fmt.Sprintf("The latest report carries an older reported date (%s) than the previous one (%s).",
			dates.Format(b), dates.Format(a)),
		[]string{
			fmt.Sprintf("%s: reported %s", prev.label(), dates.Format(a)),
			fmt.Sprintf("%s: reported %s", last.label(), dates.Format(b)),
		})
}

func (d *detector) reportingAfterRemoval() {
	var ev []string
	for _, s := range d.snaps {
		reported, ok1 := s.date(model.FieldDateReported)
		removal, ok2 := s.date(model.FieldEstimatedRemoval)
		if ok1 && ok2 && dates.DaysBetween(removal, reported) > reportAfterRemoval {
			ev = append(ev, fmt.Sprintf("%s: reported %s after removal %s", s.label(), dates.Format(reported), dates.Format(removal)))
		}
	}
	if len(ev) == 0 {
		return
	}
	d.emit(TypeReportingAfterRemoval, model.SeverityHigh, "Reported after its removal date",
		"The account was reported or updated more than 30 days after its own removal date.", ev)
}

func (d *detector) rapidReporting() {
	prev, last, ok := d.lastTwo()
	if !ok {
		return
	}
	a, ok1 := prev.date(model.FieldDateReported)
	b, ok2 := last.date(model.FieldDateReported)
	s1, ok3 := prev.fields.Get(model.FieldAccountStatus)
	s2, ok4 := last.fields.Get(model.FieldAccountStatus)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return
	}
	gap := dates.DaysBetween(a, b)
	if gap < 0 {
		gap = -gap
	}
	if gap > rapidReportingDays || strings.EqualFold(strings.TrimSpace(s1), strings.TrimSpace(s2)) {
		return
	}
	d.emit(TypeRapidReporting, model.SeverityMedium, "Status changed in a rapid re-report",
		fmt.Sprintf("The status changed from %q to %q within %d days of reporting.", s1, s2, gap),
		[]string{
			fmt.Sprintf("%s: reported %s, status %q", prev.label(), dates.Format(a), s1),
			fmt.Sprintf("%s: reported %s, status %q", last.label(), dates.Format(b), s2),
		})
}
