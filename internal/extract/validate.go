package extract

import (
	"fmt"
	"regexp"
	"time"

	"github.com/sells-group/reage-cli/internal/dates"
	"github.com/sells-group/reage-cli/internal/model"
)

var paidStatusRe = regexp.MustCompile(`(?i)\b(?:paid|settled)\b`)

// Validate checks fields for logical inconsistencies and returns one
// human-readable warning per problem, in a fixed order. It never modifies
// fields and never fails; an empty result means nothing looked wrong.
func Validate(fields model.CreditFields) []string {
	var warnings []string
	add := func(format string, args ...any) {
		warnings = append(warnings, fmt.Sprintf(format, args...))
	}

	for _, f := range fields.Names() {
		v, _ := fields.Get(f)
		switch {
		case f.IsDate():
			if _, ok := dates.Parse(v); !ok {
				add("%s value %q is not a recognizable date", f.Label(), v)
			}
		case f.IsMoney():
			if _, ok := model.ParseAmount(v); !ok {
				add("%s value %q is not a recognizable amount", f.Label(), v)
			}
		}
	}

	dofd, hasDOFD := fields.Date(model.FieldDOFD)
	opened, hasOpened := fields.Date(model.FieldDateOpened)
	chargeOff, hasChargeOff := fields.Date(model.FieldChargeOffDate)
	removal, hasRemoval := fields.Date(model.FieldEstimatedRemoval)

	if hasDOFD && hasOpened && dofd.Before(opened) {
		add("DOFD is before the account open date (DOFD %s, opened %s)", dates.Format(dofd), dates.Format(opened))
	}
	if hasDOFD && hasChargeOff && dofd.After(chargeOff) {
		add("DOFD is after the charge-off date (DOFD %s, charged off %s)", dates.Format(dofd), dates.Format(chargeOff))
	}
	if hasChargeOff && hasOpened && chargeOff.Before(opened) {
		add("Charge-off date is before the account open date (charged off %s, opened %s)",
			dates.Format(chargeOff), dates.Format(opened))
	}
	if hasRemoval && hasDOFD && removal.Before(dofd) {
		add("Estimated removal date is before the DOFD (removal %s, DOFD %s)", dates.Format(removal), dates.Format(dofd))
	}

	if status, ok := fields.Get(model.FieldAccountStatus); ok && paidStatusRe.MatchString(status) {
		if bal, ok := fields.Amount(model.FieldCurrentBalance); ok && bal > 0 {
			add("Status shows paid but current balance is $%.2f", bal)
		}
	}

	if reported, ok := fields.Date(model.FieldDateReported); ok {
		for _, f := range []model.FieldName{
			model.FieldDateOpened, model.FieldDOFD, model.FieldChargeOffDate, model.FieldDateLastPayment,
		} {
			if d, ok := fields.Date(f); ok && d.After(reported) {
				add("%s (%s) is after the date reported (%s)", f.Label(), dates.Format(d), dates.Format(reported))
			}
		}
	}
	return warnings
}

// ValidateExtracted runs Validate over the simple view of fields and adds a
// note for every field recovered with Low confidence.
func ValidateExtracted(fields model.ExtractedFields) []string {
	warnings := Validate(fields.Simple())
	for _, f := range fields.Names() {
		if ef := fields[f]; ef.Confidence == model.ConfidenceLow {
			warnings = append(warnings, fmt.Sprintf("%s was extracted with low confidence from %q", f.Label(), ef.SourceText))
		}
	}
	return warnings
}

// FutureDates lists date fields that fall after asOf. Removal dates are
// expected to lie in the future and are skipped.
func FutureDates(fields model.CreditFields, asOf time.Time) []model.FieldName {
	var out []model.FieldName
	for _, f := range fields.Names() {
		if !f.IsDate() || f == model.FieldEstimatedRemoval {
			continue
		}
		if d, ok := fields.Date(f); ok && d.After(dates.Day(asOf)) {
			out = append(out, f)
		}
	}
	return out
}
