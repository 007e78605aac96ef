package model

import (
	"sort"

	"github.com/rotisserie/eris"
)

// FieldName is a key from the closed credit-field vocabulary.
type FieldName string

const (
	FieldOriginalCreditor     FieldName = "originalCreditor"
	FieldFurnisherOrCollector FieldName = "furnisherOrCollector"
	FieldAccountNumber        FieldName = "accountNumber"
	FieldCurrentBalance       FieldName = "currentBalance"
	FieldOriginalAmount       FieldName = "originalAmount"
	FieldDateOpened           FieldName = "dateOpened"
	FieldDOFD                 FieldName = "dofd"
	FieldChargeOffDate        FieldName = "chargeOffDate"
	FieldEstimatedRemoval     FieldName = "estimatedRemovalDate"
	FieldDateLastPayment      FieldName = "dateLastPayment"
	FieldDateReported         FieldName = "dateReportedOrUpdated"
	FieldAccountStatus        FieldName = "accountStatus"
	FieldAccountType          FieldName = "accountType"
	FieldBureau               FieldName = "bureau"
	FieldStateCode            FieldName = "stateCode"
)

// FieldKind classifies how a field's value is stored.
type FieldKind int

const (
	KindText FieldKind = iota
	KindDate
	KindMoney
)

// fieldDef describes one vocabulary entry.
type fieldDef struct {
	name  FieldName
	label string
	kind  FieldKind
}

// vocabulary is the canonical field order used for rendering and export.
var vocabulary = []fieldDef{
	{FieldOriginalCreditor, "Original Creditor", KindText},
	{FieldFurnisherOrCollector, "Furnisher / Collector", KindText},
	{FieldAccountNumber, "Account Number", KindText},
	{FieldCurrentBalance, "Current Balance", KindMoney},
	{FieldOriginalAmount, "Original Amount", KindMoney},
	{FieldDateOpened, "Date Opened", KindDate},
	{FieldDOFD, "Date of First Delinquency", KindDate},
	{FieldChargeOffDate, "Charge-Off Date", KindDate},
	{FieldEstimatedRemoval, "Estimated Removal Date", KindDate},
	{FieldDateLastPayment, "Date of Last Payment", KindDate},
	{FieldDateReported, "Date Reported / Updated", KindDate},
	{FieldAccountStatus, "Account Status", KindText},
	{FieldAccountType, "Account Type", KindText},
	{FieldBureau, "Bureau", KindText},
	{FieldStateCode, "State", KindText},
}

var byName = func() map[FieldName]*fieldDef {
	m := make(map[FieldName]*fieldDef, len(vocabulary))
	for i := range vocabulary {
		m[vocabulary[i].name] = &vocabulary[i]
	}
	return m
}()

// AllFields returns every field name in canonical order.
func AllFields() []FieldName {
	out := make([]FieldName, len(vocabulary))
	for i, d := range vocabulary {
		out[i] = d.name
	}
	return out
}

// ParseFieldName validates s against the vocabulary.
func ParseFieldName(s string) (FieldName, error) {
	if _, ok := byName[FieldName(s)]; !ok {
		return "", eris.Errorf("model: unknown field %q", s)
	}
	return FieldName(s), nil
}

// Known reports whether f belongs to the vocabulary.
func (f FieldName) Known() bool {
	_, ok := byName[f]
	return ok
}

// Label returns the human-readable label, or the raw name for unknown fields.
func (f FieldName) Label() string {
	if d, ok := byName[f]; ok {
		return d.label
	}
	return string(f)
}

// Kind returns the storage kind of the field.
func (f FieldName) Kind() FieldKind {
	if d, ok := byName[f]; ok {
		return d.kind
	}
	return KindText
}

// IsDate reports whether the field holds an ISO date.
func (f FieldName) IsDate() bool { return f.Kind() == KindDate }

// IsMoney reports whether the field holds a decimal amount.
func (f FieldName) IsMoney() bool { return f.Kind() == KindMoney }

// CreditFields is the simplified sparse view of an account: field name to
// raw string value. Absent fields are omitted, never stored empty.
type CreditFields map[FieldName]string

// Get returns the value and whether it is present.
func (c CreditFields) Get(f FieldName) (string, bool) {
	v, ok := c[f]
	return v, ok && v != ""
}

// Has reports whether f is present.
func (c CreditFields) Has(f FieldName) bool {
	_, ok := c.Get(f)
	return ok
}

// Set stores v under f. An empty v removes the field.
func (c CreditFields) Set(f FieldName, v string) {
	if v == "" {
		delete(c, f)
		return
	}
	c[f] = v
}

// Clone returns an independent copy.
func (c CreditFields) Clone() CreditFields {
	out := make(CreditFields, len(c))
	for k, v := range c {
		if v != "" {
			out[k] = v
		}
	}
	return out
}

// Names returns the present field names in canonical order; unknown keys
// sort last alphabetically.
func (c CreditFields) Names() []FieldName {
	names := make([]FieldName, 0, len(c))
	for k, v := range c {
		if v != "" {
			names = append(names, k)
		}
	}
	sortFieldNames(names)
	return names
}

func sortFieldNames(names []FieldName) {
	rank := func(f FieldName) int {
		for i, d := range vocabulary {
			if d.name == f {
				return i
			}
		}
		return len(vocabulary)
	}
	sort.SliceStable(names, func(i, j int) bool {
		ri, rj := rank(names[i]), rank(names[j])
		if ri != rj {
			return ri < rj
		}
		return names[i] < names[j]
	})
}
