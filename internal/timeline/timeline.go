// Package timeline orders an account's dated events, scores their
// integrity, finds violation clusters and measures the key intervals.
package timeline

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/sells-group/reage-cli/internal/dates"
	"github.com/sells-group/reage-cli/internal/model"
	"github.com/sells-group/reage-cli/internal/rules"
)

// Intervals holds the month counts between key events. Nil means one of
// the endpoints is missing.
type Intervals struct {
	OpenToDofd         *int `json:"openToDofd"`
	DofdToChargeoff    *int `json:"dofdToChargeoff"`
	ChargeoffToRemoval *int `json:"chargeoffToRemoval"`
	PaymentToRemoval   *int `json:"paymentToRemoval"`
}

// Timeline is the analyzed event sequence.
type Timeline struct {
	Events          []model.TimelineEvent `json:"events"`
	IntegrityScore  int                   `json:"integrityScore"`
	Clusters        []model.Cluster       `json:"clusters"`
	Intervals       Intervals             `json:"intervals"`
	ExpectedRemoval string                `json:"expectedRemoval,omitempty"`
	// RemovalDeltaDays is actual minus expected removal; positive means the
	// item is reported past the statutory limit.
	RemovalDeltaDays *int `json:"removalDeltaDays"`
	Insufficient     bool `json:"insufficient"`
}

// Integrity score bounds.
const (
	MinIntegrity     = 30
	integrityPenalty = 60
)

var fieldEvents = []struct {
	field model.FieldName
	typ   model.EventType
	label string
}{
	{model.FieldDateOpened, model.EventAccount, "Account opened"},
	{model.FieldDOFD, model.EventDelinquency, "First delinquency (DOFD)"},
	{model.FieldChargeOffDate, model.EventChargeOff, "Charged off"},
	{model.FieldDateLastPayment, model.EventPayment, "Last payment"},
	{model.FieldDateReported, model.EventReported, "Reported / updated"},
	{model.FieldEstimatedRemoval, model.EventRemoval, "Estimated removal"},
}

// BuildEvents maps the date fields of an analysis, its statutory limit and
// every flag with a dated anchor to events sorted by date. A date field
// event is flagged when a fired rule compared that field.
func BuildEvents(fields model.CreditFields, flags []model.RuleFlag) []model.TimelineEvent {
	implicated := make(map[model.FieldName][]string)
	for _, f := range flags {
		for _, field := range rules.DateFieldsFor(f.RuleID) {
			implicated[field] = append(implicated[field], f.RuleName)
		}
	}

	var events []model.TimelineEvent
	for _, fe := range fieldEvents {
		d, ok := fields.Date(fe.field)
		if !ok {
			continue
		}
		names := implicated[fe.field]
		events = append(events, model.TimelineEvent{
			Date:             dates.Format(d),
			Label:            fe.label,
			Type:             fe.typ,
			Flagged:          len(names) > 0,
			EvidenceSnippets: names,
		})
	}
	if dofd, ok := fields.Date(model.FieldDOFD); ok {
		events = append(events, model.TimelineEvent{
			Date:  dates.Format(dates.ExpectedRemoval(dofd)),
			Label: "Statutory reporting limit (DOFD + 7 years 180 days)",
			Type:  model.EventStatutory,
		})
	}
	for _, f := range flags {
		anchor, ok := rules.AnchorFor(f.RuleID)
		if !ok {
			continue
		}
		d, ok := fields.Date(anchor)
		if !ok {
			continue
		}
		ev := model.TimelineEvent{
			Date:    dates.Format(d),
			Label:   f.RuleName,
			Type:    model.EventViolation,
			Flagged: true,
		}
		if f.Explanation != "" {
			ev.EvidenceSnippets = []string{f.Explanation}
		}
		events = append(events, ev)
	}
	return sortEvents(events)
}

type datedEvent struct {
	model.TimelineEvent
	at time.Time
}

// sortEvents drops undated events and orders the rest by date. Events on
// the same day keep their input order.
func sortEvents(events []model.TimelineEvent) []model.TimelineEvent {
	return unwrap(sortDated(events))
}

func sortDated(events []model.TimelineEvent) []datedEvent {
	out := make([]datedEvent, 0, len(events))
	for _, ev := range events {
		if d, ok := dates.Parse(ev.Date); ok {
			ev.Date = dates.Format(d)
			out = append(out, datedEvent{TimelineEvent: ev, at: d})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].at.Before(out[j].at) })
	return out
}

func unwrap(ds []datedEvent) []model.TimelineEvent {
	out := make([]model.TimelineEvent, len(ds))
	for i, d := range ds {
		out[i] = d.TimelineEvent
	}
	return out
}

// Analyze sorts events and derives the integrity score, clusters,
// intervals and removal delta. Events without a recognizable date are
// dropped. Fewer than two dated events mark the timeline insufficient.
func Analyze(events []model.TimelineEvent) Timeline {
	sorted := sortDated(events)
	plain := unwrap(sorted)
	tl := Timeline{
		Events:         plain,
		IntegrityScore: IntegrityScore(plain),
		Clusters:       Clusters(plain),
		Insufficient:   len(sorted) < 2,
	}

	first := func(t model.EventType) (time.Time, bool) {
		for _, e := range sorted {
			if e.Type == t {
				return e.at, true
			}
		}
		return time.Time{}, false
	}
	interval := func(a, b model.EventType) *int {
		from, ok1 := first(a)
		to, ok2 := first(b)
		if !ok1 || !ok2 {
			return nil
		}
		m := dates.MonthsBetween(from, to)
		return &m
	}
	tl.Intervals = Intervals{
		OpenToDofd:         interval(model.EventAccount, model.EventDelinquency),
		DofdToChargeoff:    interval(model.EventDelinquency, model.EventChargeOff),
		ChargeoffToRemoval: interval(model.EventChargeOff, model.EventRemoval),
		PaymentToRemoval:   interval(model.EventPayment, model.EventRemoval),
	}

	if dofd, ok := first(model.EventDelinquency); ok {
		expected := dates.ExpectedRemoval(dofd)
		tl.ExpectedRemoval = dates.Format(expected)
		if actual, ok := first(model.EventRemoval); ok {
			delta := dates.DaysBetween(expected, actual)
			tl.RemovalDeltaDays = &delta
		}
	}
	return tl
}

// IntegrityScore is max(30, round(100 - v/max(n,1)*60)) where v counts
// events typed violation or flagged.
func IntegrityScore(events []model.TimelineEvent) int {
	v := 0
	for _, e := range events {
		if isViolation(e) {
			v++
		}
	}
	n := max(len(events), 1)
	score := int(math.Round(100 - float64(v)/float64(n)*integrityPenalty))
	return max(MinIntegrity, score)
}

func isViolation(e model.TimelineEvent) bool {
	return e.Type == model.EventViolation || e.Flagged
}

// Clusters finds maximal runs of at least two consecutive violation or
// flagged events in sorted and returns them by descending score. Equal
// scores keep chronological order.
func Clusters(sorted []model.TimelineEvent) []model.Cluster {
	clusters := []model.Cluster{}
	flush := func(start, end int) {
		size := end - start + 1
		if size < 2 {
			return
		}
		span := 0
		a, ok1 := dates.Parse(sorted[start].Date)
		b, ok2 := dates.Parse(sorted[end].Date)
		if ok1 && ok2 {
			span = dates.MonthsBetween(a, b)
		}
		clusters = append(clusters, model.Cluster{
			StartIndex: start,
			EndIndex:   end,
			Size:       size,
			SpanMonths: span,
			Score:      min(100, size*12+max(0, span)*2),
		})
	}

	start := -1
	for i, e := range sorted {
		switch {
		case isViolation(e) && start < 0:
			start = i
		case !isViolation(e) && start >= 0:
			flush(start, i-1)
			start = -1
		}
	}
	if start >= 0 {
		flush(start, len(sorted)-1)
	}

	sort.SliceStable(clusters, func(i, j int) bool { return clusters[i].Score > clusters[j].Score })
	return clusters
}

// FormatInterval renders a month count for display. A nil interval is an
// em dash, never zero.
func FormatInterval(months *int) string {
	if months == nil {
		return "—"
	}
	if *months == 1 {
		return "1 month"
	}
	return fmt.Sprintf("%d months", *months)
}
