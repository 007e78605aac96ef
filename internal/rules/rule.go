// Package rules evaluates credit fields against an ordered registry of
// re-aging and reporting-accuracy rules.
package rules

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/reage-cli/internal/dates"
	"github.com/sells-group/reage-cli/internal/model"
)

// Category groups rules by the kind of violation they detect.
type Category string

// Rule categories.
const (
	CategoryReaging    Category = "reaging"
	CategoryZombie     Category = "zombie"
	CategoryProcedural Category = "procedural"
	CategoryMedical    Category = "medical"
	CategoryBankruptcy Category = "bankruptcy"
)

// Rule is one predicate plus the metadata copied onto the flag it raises.
type Rule struct {
	ID       string
	Name     string
	Category Category
	Severity model.Severity
	// Requires lists fields that must be present; the rule abstains otherwise.
	Requires []model.FieldName
	// Anchor is the date field that places the violation on a timeline.
	// Empty means the violation is not dated.
	Anchor      model.FieldName
	Citations   []string
	Evidence    []string
	Questions   []string
	Probability int
	// Check returns the explanation and true when the rule fires.
	Check func(Facts) (string, bool)
}

// Facts is the read-only view a rule predicate evaluates.
type Facts struct {
	Fields model.CreditFields
	Now    time.Time
}

// Has reports whether f is present.
func (x Facts) Has(f model.FieldName) bool { return x.Fields.Has(f) }

// Date returns the parsed date in f.
func (x Facts) Date(f model.FieldName) (time.Time, bool) { return x.Fields.Date(f) }

// Amount returns the parsed amount in f.
func (x Facts) Amount(f model.FieldName) (float64, bool) { return x.Fields.Amount(f) }

// Text returns f lowercased, or "" when absent.
func (x Facts) Text(f model.FieldName) string {
	v, _ := x.Fields.Get(f)
	return strings.ToLower(v)
}

// ExpectedRemoval returns DOFD + 7 years + 180 days when DOFD parses.
func (x Facts) ExpectedRemoval() (time.Time, bool) {
	dofd, ok := x.Date(model.FieldDOFD)
	if !ok {
		return time.Time{}, false
	}
	return dates.ExpectedRemoval(dofd), true
}

// Option configures an Engine.
type Option func(*Engine) error

// WithNow sets the clock used for time-relative rules.
func WithNow(now func() time.Time) Option {
	return func(e *Engine) error {
		if now == nil {
			return eris.New("rules: nil clock")
		}
		e.now = now
		return nil
	}
}

// WithRegistry replaces the built-in registry. Intended for tests.
func WithRegistry(rs []Rule) Option {
	return func(e *Engine) error {
		e.rules = cloneRules(rs)
		return nil
	}
}

// WithDisabled removes rules by ID. Unknown IDs are an error.
func WithDisabled(ids ...string) Option {
	return func(e *Engine) error {
		return e.disable(ids)
	}
}

// WithOverrides applies severity and probability overrides and disables
// the listed rules.
func WithOverrides(o Overrides) Option {
	return func(e *Engine) error {
		return o.apply(e)
	}
}

// Engine evaluates fields against a validated registry. It is immutable
// after construction and safe for concurrent use.
type Engine struct {
	rules []Rule
	now   func() time.Time
}

// New builds an Engine over the built-in registry. Options run in order;
// the resulting registry must pass ValidateRegistry.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{rules: cloneRules(registry), now: time.Now}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	if err := ValidateRegistry(e.rules); err != nil {
		return nil, err
	}
	return e, nil
}

// Rules returns the active rules in evaluation order.
func (e *Engine) Rules() []Rule {
	return cloneRules(e.rules)
}

// Evaluate runs every active rule against fields and returns one flag per
// rule that fired, in registry order. Rules whose required fields are
// absent abstain.
func (e *Engine) Evaluate(fields model.CreditFields) []model.RuleFlag {
	facts := Facts{Fields: fields, Now: dates.Day(e.now())}
	flags := []model.RuleFlag{}
	for _, r := range e.rules {
		if !requiresMet(facts, r.Requires) {
			continue
		}
		explanation, ok := r.Check(facts)
		if !ok {
			continue
		}
		flags = append(flags, r.flag(explanation))
	}
	return flags
}

// Find returns the active rule with the given ID.
func (e *Engine) Find(id string) (Rule, bool) {
	for _, r := range e.rules {
		if r.ID == id {
			return r, true
		}
	}
	return Rule{}, false
}

// AnchorFor returns the anchor field of rule id in the built-in registry.
func AnchorFor(id string) (model.FieldName, bool) {
	for _, r := range registry {
		if r.ID == id {
			return r.Anchor, r.Anchor != ""
		}
	}
	return "", false
}

// DateFieldsFor returns the date fields rule id compares in the built-in
// registry: its required date fields followed by its anchor.
func DateFieldsFor(id string) []model.FieldName {
	for _, r := range registry {
		if r.ID != id {
			continue
		}
		var out []model.FieldName
		for _, f := range append(append([]model.FieldName{}, r.Requires...), r.Anchor) {
			if f.IsDate() && !slices.Contains(out, f) {
				out = append(out, f)
			}
		}
		return out
	}
	return nil
}

// CategoryFor returns the category of rule id in the built-in registry.
func CategoryFor(id string) (Category, bool) {
	for _, r := range registry {
		if r.ID == id {
			return r.Category, true
		}
	}
	return "", false
}

func requiresMet(x Facts, req []model.FieldName) bool {
	for _, f := range req {
		if !x.Has(f) {
			return false
		}
	}
	return true
}

func (r Rule) flag(explanation string) model.RuleFlag {
	return model.RuleFlag{
		RuleID:             r.ID,
		RuleName:           r.Name,
		Severity:           r.Severity,
		Explanation:        explanation,
		LegalCitations:     append([]string{}, r.Citations...),
		SuggestedEvidence:  append([]string{}, r.Evidence...),
		DiscoveryQuestions: append([]string(nil), r.Questions...),
		SuccessProbability: r.Probability,
	}
}

func (e *Engine) disable(ids []string) error {
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		if _, ok := e.Find(id); !ok {
			return eris.Errorf("rules: cannot disable unknown rule %q", id)
		}
		drop[id] = true
	}
	kept := e.rules[:0]
	for _, r := range e.rules {
		if !drop[r.ID] {
			kept = append(kept, r)
		}
	}
	e.rules = kept
	return nil
}

func cloneRules(rs []Rule) []Rule {
	out := make([]Rule, len(rs))
	copy(out, rs)
	return out
}

// ValidateRegistry checks a rule table for duplicate IDs, unknown field
// names, missing predicates and out-of-range probabilities.
func ValidateRegistry(rs []Rule) error {
	var errs []string
	seen := make(map[string]bool, len(rs))
	for i, r := range rs {
		where := r.ID
		if where == "" {
			where = fmt.Sprintf("#%d", i)
			errs = append(errs, fmt.Sprintf("rule %s has no id", where))
		}
		if seen[r.ID] {
			errs = append(errs, fmt.Sprintf("duplicate rule id %s", r.ID))
		}
		seen[r.ID] = true
		if r.Check == nil {
			errs = append(errs, fmt.Sprintf("rule %s has no predicate", where))
		}
		if r.Severity.Rank() == 0 {
			errs = append(errs, fmt.Sprintf("rule %s has invalid severity %q", where, r.Severity))
		}
		if r.Probability < 0 || r.Probability > 100 {
			errs = append(errs, fmt.Sprintf("rule %s probability %d outside 0-100", where, r.Probability))
		}
		for _, f := range r.Requires {
			if !f.Known() {
				errs = append(errs, fmt.Sprintf("rule %s requires unknown field %q", where, f))
			}
		}
		if r.Anchor != "" && !r.Anchor.IsDate() {
			errs = append(errs, fmt.Sprintf("rule %s anchor %q is not a date field", where, r.Anchor))
		}
	}
	if len(errs) > 0 {
		return eris.Errorf("rules: invalid registry: %s", strings.Join(errs, "; "))
	}
	return nil
}
