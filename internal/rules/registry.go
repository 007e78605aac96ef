package rules

import (
	"fmt"
	"regexp"

	"github.com/sells-group/reage-cli/internal/dates"
	"github.com/sells-group/reage-cli/internal/model"
)

// Legal citations shared across rules.
const (
	citeObsolescence   = "15 U.S.C. § 1681c(a)(4)"
	citeDOFDRunning    = "15 U.S.C. § 1681c(c)(1)"
	citeFurnisherDOFD  = "15 U.S.C. § 1681s-2(a)(5)"
	citeFurnisherAccur = "15 U.S.C. § 1681s-2(a)(1)(A)"
	citeFurnisherDisp  = "15 U.S.C. § 1681s-2(b)"
	citeCRAAccuracy    = "15 U.S.C. § 1681e(b)"
	citeReinvestigate  = "15 U.S.C. § 1681i(a)"
	citeFDCPAFalse     = "15 U.S.C. § 1692e(2)(A)"
	citeFDCPACredit    = "15 U.S.C. § 1692e(8)"
	citeFDCPAUnfair    = "15 U.S.C. § 1692f(1)"
	citeRegFTimeBarred = "12 C.F.R. § 1006.26(b)"
	citeDischarge      = "11 U.S.C. § 524(a)(2)"
	citeMetro2DOFD     = "Metro 2 Format, Field 25 (Date of First Delinquency)"
	citeMedicalPolicy  = "Nationwide CRA medical collection reporting policy (2022-2023)"
)

var (
	derogatoryRe = regexp.MustCompile(`charge|collect|delinquen|past due|late|default|repossess|foreclos|bad debt|written off`)
	paidRe       = regexp.MustCompile(`\b(?:paid|settled)\b`)
	closedRe     = regexp.MustCompile(`\b(?:paid|settled|closed)\b`)
	collectionRe = regexp.MustCompile(`collect|charge[- ]?off|charged[- ]off|written off|bad debt`)
	collectorRe  = regexp.MustCompile(`collect|debt buyer|purchased|placed (?:with|for)|transferred to`)
	currentRe    = regexp.MustCompile(`\bcurrent\b|pays as agreed|never late`)
	bankruptRe   = regexp.MustCompile(`bankrupt|chapter (?:7|11|13)|discharged`)
	medicalRe    = regexp.MustCompile(`medical|hospital|clinic|health|physician|ambulance|anesthesi|radiology|emergency|surgical`)
)

// isCollection is true for any defaulted debt still being pursued,
// including an original creditor's own charge-off.
func isCollection(x Facts) bool {
	return collectionRe.MatchString(x.Text(model.FieldAccountStatus)) ||
		collectionRe.MatchString(x.Text(model.FieldAccountType))
}

// isThirdPartyCollection requires evidence that a collector or debt buyer
// holds the account. A charge-off alone is reported by the original creditor.
func isThirdPartyCollection(x Facts) bool {
	return collectorRe.MatchString(x.Text(model.FieldAccountStatus)) ||
		collectorRe.MatchString(x.Text(model.FieldAccountType))
}

func isMedical(x Facts) bool {
	return medicalRe.MatchString(x.Text(model.FieldAccountType)) ||
		medicalRe.MatchString(x.Text(model.FieldOriginalCreditor)) ||
		medicalRe.MatchString(x.Text(model.FieldFurnisherOrCollector))
}

func money(v float64) string { return fmt.Sprintf("$%.2f", v) }

// registry is the built-in rule table, in evaluation and output order.
var registry = []Rule{
	{
		ID:       "DOFD_MISSING",
		Name:     "Missing Date of First Delinquency",
		Category: CategoryProcedural,
		Severity: model.SeverityHigh,
		Requires: []model.FieldName{model.FieldAccountStatus},
		Anchor:   model.FieldDateReported,
		Citations: []string{citeFurnisherDOFD, citeMetro2DOFD},
		Evidence: []string{
			"Credit report page showing the derogatory status",
			"Furnisher's Metro 2 data for the tradeline",
		},
		Questions: []string{
			"What date did the furnisher report in the DOFD field?",
			"What records establish when the account first became delinquent?",
		},
		Probability: 70,
		Check: func(x Facts) (string, bool) {
			status := x.Text(model.FieldAccountStatus)
			if x.Has(model.FieldDOFD) || !derogatoryRe.MatchString(status) {
				return "", false
			}
			return fmt.Sprintf("The account is reported as %q but no date of first delinquency is shown. "+
				"Furnishers must report the DOFD for delinquent accounts so the reporting period can be verified.",
				x.Fields[model.FieldAccountStatus]), true
		},
	},
	{
		ID:        "DOFD_AFTER_CHARGEOFF",
		Name:      "DOFD Later Than Charge-Off",
		Category:  CategoryReaging,
		Severity:  model.SeverityCritical,
		Requires:  []model.FieldName{model.FieldDOFD, model.FieldChargeOffDate},
		Anchor:    model.FieldDOFD,
		Citations: []string{citeDOFDRunning, citeFurnisherDOFD, citeFDCPACredit},
		Evidence: []string{
			"Original creditor's charge-off statement",
			"Payment history showing the first missed payment",
		},
		Questions: []string{
			"Why does the reported DOFD fall after the charge-off date?",
			"Was the DOFD changed when the account was sold or transferred?",
		},
		Probability: 85,
		Check: func(x Facts) (string, bool) {
			dofd, ok1 := x.Date(model.FieldDOFD)
			co, ok2 := x.Date(model.FieldChargeOffDate)
			if !ok1 || !ok2 || !dofd.After(co) {
				return "", false
			}
			return fmt.Sprintf("The DOFD (%s) is %d days after the charge-off date (%s). An account cannot be charged off "+
				"before it became delinquent, which indicates the DOFD was moved forward.",
				dates.Format(dofd), dates.DaysBetween(co, dofd), dates.Format(co)), true
		},
	},
	{
		ID:        "DOFD_BEFORE_OPEN",
		Name:      "DOFD Before Account Opened",
		Category:  CategoryReaging,
		Severity:  model.SeverityHigh,
		Requires:  []model.FieldName{model.FieldDOFD, model.FieldDateOpened},
		Anchor:    model.FieldDOFD,
		Citations: []string{citeFurnisherAccur, citeCRAAccuracy},
		Evidence:  []string{"Account opening agreement", "First monthly statement"},
		Questions: []string{"What documents establish the account open date the furnisher relies on?"},
		Probability: 75,
		Check: func(x Facts) (string, bool) {
			dofd, ok1 := x.Date(model.FieldDOFD)
			opened, ok2 := x.Date(model.FieldDateOpened)
			if !ok1 || !ok2 || !dofd.Before(opened) {
				return "", false
			}
			return fmt.Sprintf("The DOFD (%s) precedes the account open date (%s). At least one of the dates is inaccurate.",
				dates.Format(dofd), dates.Format(opened)), true
		},
	},
	{
		ID:        "DOFD_CHARGEOFF_GAP",
		Name:      "Implausibly Short DOFD to Charge-Off Gap",
		Category:  CategoryReaging,
		Severity:  model.SeverityMedium,
		Requires:  []model.FieldName{model.FieldDOFD, model.FieldChargeOffDate},
		Anchor:    model.FieldChargeOffDate,
		Citations: []string{citeDOFDRunning, citeFurnisherAccur},
		Evidence:  []string{"Monthly statements for the six months before charge-off"},
		Questions: []string{"How many payments were missed before the account was charged off?"},
		Probability: 55,
		Check: func(x Facts) (string, bool) {
			dofd, ok1 := x.Date(model.FieldDOFD)
			co, ok2 := x.Date(model.FieldChargeOffDate)
			if !ok1 || !ok2 {
				return "", false
			}
			gap := dates.DaysBetween(dofd, co)
			if gap < 0 || gap >= 120 {
				return "", false
			}
			return fmt.Sprintf("Only %d days separate the DOFD (%s) from the charge-off (%s). Charge-off normally follows "+
				"the first delinquency by about 180 days, so a later-than-actual DOFD is likely.",
				gap, dates.Format(dofd), dates.Format(co)), true
		},
	},
	{
		ID:        "DOFD_AFTER_LAST_PAYMENT_GAP",
		Name:      "DOFD Long After Last Payment",
		Category:  CategoryReaging,
		Severity:  model.SeverityHigh,
		Requires:  []model.FieldName{model.FieldDOFD, model.FieldDateLastPayment},
		Anchor:    model.FieldDOFD,
		Citations: []string{citeDOFDRunning, citeFurnisherDOFD},
		Evidence:  []string{"Bank records of the last payment", "Payment history grid from the report"},
		Questions: []string{"Which missed payment does the reported DOFD correspond to?"},
		Probability: 65,
		Check: func(x Facts) (string, bool) {
			dofd, ok1 := x.Date(model.FieldDOFD)
			lp, ok2 := x.Date(model.FieldDateLastPayment)
			if !ok1 || !ok2 {
				return "", false
			}
			gap := dates.DaysBetween(lp, dofd)
			if gap <= 365 {
				return "", false
			}
			return fmt.Sprintf("The DOFD (%s) falls %d days after the last payment (%s). Delinquency normally begins "+
				"within a month or two of the last payment.", dates.Format(dofd), gap, dates.Format(lp)), true
		},
	},
	{
		ID:        "REMOVAL_DATE_EXTENDED",
		Name:      "Removal Date Beyond Statutory Limit",
		Category:  CategoryReaging,
		Severity:  model.SeverityCritical,
		Requires:  []model.FieldName{model.FieldDOFD, model.FieldEstimatedRemoval},
		Anchor:    model.FieldEstimatedRemoval,
		Citations: []string{citeObsolescence, citeDOFDRunning, citeCRAAccuracy},
		Evidence:  []string{"Credit report showing the estimated removal date", "Documentation of the original DOFD"},
		Questions: []string{"How did the bureau compute the removal date for this item?"},
		Probability: 85,
		Check: func(x Facts) (string, bool) {
			expected, ok1 := x.ExpectedRemoval()
			removal, ok2 := x.Date(model.FieldEstimatedRemoval)
			if !ok1 || !ok2 {
				return "", false
			}
			delta := dates.DaysBetween(expected, removal)
			if delta <= 30 {
				return "", false
			}
			return fmt.Sprintf("The estimated removal date (%s) is %d days after the statutory limit (%s) computed "+
				"from the DOFD plus 7 years and 180 days.", dates.Format(removal), delta, dates.Format(expected)), true
		},
	},
	{
		ID:        "REMOVAL_BEFORE_DOFD",
		Name:      "Removal Date Before DOFD",
		Category:  CategoryProcedural,
		Severity:  model.SeverityMedium,
		Requires:  []model.FieldName{model.FieldDOFD, model.FieldEstimatedRemoval},
		Anchor:    model.FieldEstimatedRemoval,
		Citations: []string{citeCRAAccuracy},
		Evidence:  []string{"Credit report showing both dates"},
		Probability: 50,
		Check: func(x Facts) (string, bool) {
			dofd, ok1 := x.Date(model.FieldDOFD)
			removal, ok2 := x.Date(model.FieldEstimatedRemoval)
			if !ok1 || !ok2 || !removal.Before(dofd) {
				return "", false
			}
			return fmt.Sprintf("The estimated removal date (%s) is before the DOFD (%s), so the reported dates are internally "+
				"inconsistent.", dates.Format(removal), dates.Format(dofd)), true
		},
	},
	{
		ID:        "OBSOLETE_DEBT_REPORTED",
		Name:      "Zombie Debt: Obsolete Item Still Reported",
		Category:  CategoryZombie,
		Severity:  model.SeverityCritical,
		Requires:  []model.FieldName{model.FieldDOFD},
		Anchor:    model.FieldDOFD,
		Citations: []string{citeObsolescence, citeCRAAccuracy, citeReinvestigate},
		Evidence:  []string{"Current credit report showing the item", "Proof of the original DOFD"},
		Questions: []string{"Why is an item past its reporting period still being furnished?"},
		Probability: 90,
		Check: func(x Facts) (string, bool) {
			expected, ok := x.ExpectedRemoval()
			if !ok || !x.Now.After(expected) {
				return "", false
			}
			return fmt.Sprintf("The reporting period ended on %s (DOFD + 7 years + 180 days) but the account is still "+
				"reported %d days later.", dates.Format(expected), dates.DaysBetween(expected, x.Now)), true
		},
	},
	{
		ID:        "REPORTED_AFTER_EXPIRY",
		Name:      "Updated After Reporting Period Ended",
		Category:  CategoryZombie,
		Severity:  model.SeverityHigh,
		Requires:  []model.FieldName{model.FieldDOFD, model.FieldDateReported},
		Anchor:    model.FieldDateReported,
		Citations: []string{citeObsolescence, citeFurnisherAccur},
		Evidence:  []string{"Report history showing the update date"},
		Questions: []string{"What activity caused the furnisher to update an obsolete account?"},
		Probability: 70,
		Check: func(x Facts) (string, bool) {
			expected, ok1 := x.ExpectedRemoval()
			reported, ok2 := x.Date(model.FieldDateReported)
			if !ok1 || !ok2 || !reported.After(expected) {
				return "", false
			}
			return fmt.Sprintf("The account was reported or updated on %s, after its statutory removal date of %s.",
				dates.Format(reported), dates.Format(expected)), true
		},
	},
	{
		ID:        "PAID_WITH_BALANCE",
		Name:      "Paid Account Reporting a Balance",
		Category:  CategoryProcedural,
		Severity:  model.SeverityHigh,
		Requires:  []model.FieldName{model.FieldAccountStatus, model.FieldCurrentBalance},
		Anchor:    model.FieldDateReported,
		Citations: []string{citeFurnisherAccur, citeFDCPAFalse},
		Evidence:  []string{"Payoff or settlement letter", "Proof of final payment"},
		Questions: []string{"What amount does the furnisher contend remains owed after payment?"},
		Probability: 75,
		Check: func(x Facts) (string, bool) {
			bal, ok := x.Amount(model.FieldCurrentBalance)
			if !ok || bal <= 0 || !paidRe.MatchString(x.Text(model.FieldAccountStatus)) {
				return "", false
			}
			return fmt.Sprintf("The status %q indicates the account was paid, yet a balance of %s is reported.",
				x.Fields[model.FieldAccountStatus], money(bal)), true
		},
	},
	{
		ID:        "STATUS_CONTRADICTION",
		Name:      "Contradictory Account Status",
		Category:  CategoryProcedural,
		Severity:  model.SeverityMedium,
		Requires:  []model.FieldName{model.FieldAccountStatus},
		Anchor:    model.FieldDateReported,
		Citations: []string{citeCRAAccuracy, citeFurnisherAccur},
		Evidence:  []string{"Report pages from each bureau showing the status"},
		Probability: 55,
		Check: func(x Facts) (string, bool) {
			status := x.Text(model.FieldAccountStatus)
			switch {
			case closedRe.MatchString(status) && collectionRe.MatchString(status):
				return fmt.Sprintf("The status %q combines a paid or closed state with a collection or charge-off state.",
					x.Fields[model.FieldAccountStatus]), true
			case currentRe.MatchString(status) && x.Has(model.FieldChargeOffDate):
				return fmt.Sprintf("The account is reported as %q while also carrying a charge-off date (%s).",
					x.Fields[model.FieldAccountStatus], x.Fields[model.FieldChargeOffDate]), true
			}
			return "", false
		},
	},
	{
		ID:        "BALANCE_EXCEEDS_ORIGINAL",
		Name:      "Balance Inflated Above Original Amount",
		Category:  CategoryProcedural,
		Severity:  model.SeverityMedium,
		Requires:  []model.FieldName{model.FieldCurrentBalance, model.FieldOriginalAmount},
		Anchor:    model.FieldDateReported,
		Citations: []string{citeFDCPAUnfair, citeFDCPAFalse},
		Evidence:  []string{"Itemization of interest and fees", "Original cardholder agreement"},
		Questions: []string{"What contract or statute authorizes the amounts added after charge-off?"},
		Probability: 50,
		Check: func(x Facts) (string, bool) {
			bal, ok1 := x.Amount(model.FieldCurrentBalance)
			orig, ok2 := x.Amount(model.FieldOriginalAmount)
			if !ok1 || !ok2 || orig <= 0 || bal <= orig*1.25 {
				return "", false
			}
			pct := (bal - orig) / orig * 100
			return fmt.Sprintf("The current balance (%s) is %.0f%% above the original amount (%s).",
				money(bal), pct, money(orig)), true
		},
	},
	{
		ID:        "COLLECTOR_MISSING_ORIGINAL_CREDITOR",
		Name:      "Collection Without Original Creditor",
		Category:  CategoryProcedural,
		Severity:  model.SeverityLow,
		Requires:  []model.FieldName{model.FieldFurnisherOrCollector},
		Anchor:    model.FieldDateReported,
		Citations: []string{citeFurnisherAccur, citeCRAAccuracy},
		Evidence:  []string{"Debt validation notice"},
		Questions: []string{"Who was the original creditor and when was the debt acquired?"},
		Probability: 35,
		Check: func(x Facts) (string, bool) {
			if x.Has(model.FieldOriginalCreditor) || !isThirdPartyCollection(x) {
				return "", false
			}
			return fmt.Sprintf("%s reports a collection account without naming the original creditor.",
				x.Fields[model.FieldFurnisherOrCollector]), true
		},
	},
	{
		ID:        "MEDICAL_UNDER_THRESHOLD",
		Name:      "Medical Collection Under $500",
		Category:  CategoryMedical,
		Severity:  model.SeverityHigh,
		Requires:  []model.FieldName{model.FieldCurrentBalance},
		Anchor:    model.FieldDateReported,
		Citations: []string{citeMedicalPolicy, citeCRAAccuracy},
		Evidence:  []string{"Itemized medical bill", "Explanation of benefits"},
		Probability: 80,
		Check: func(x Facts) (string, bool) {
			bal, ok := x.Amount(model.FieldCurrentBalance)
			if !ok || bal <= 0 || bal >= 500 || !isMedical(x) {
				return "", false
			}
			return fmt.Sprintf("A medical collection with a balance of %s is reported although medical collections "+
				"under $500 are excluded from consumer reports.", money(bal)), true
		},
	},
	{
		ID:        "MEDICAL_PAID_REPORTED",
		Name:      "Paid Medical Debt Still Reported",
		Category:  CategoryMedical,
		Severity:  model.SeverityHigh,
		Requires:  []model.FieldName{model.FieldAccountStatus},
		Anchor:    model.FieldDateReported,
		Citations: []string{citeMedicalPolicy, citeCRAAccuracy},
		Evidence:  []string{"Proof of payment from the provider or insurer"},
		Probability: 85,
		Check: func(x Facts) (string, bool) {
			if !isMedical(x) || !paidRe.MatchString(x.Text(model.FieldAccountStatus)) {
				return "", false
			}
			return fmt.Sprintf("The medical account is reported with status %q. Paid medical collections must be "+
				"removed from consumer reports.", x.Fields[model.FieldAccountStatus]), true
		},
	},
	{
		ID:        "MEDICAL_WAITING_PERIOD",
		Name:      "Medical Debt Reported Within One Year",
		Category:  CategoryMedical,
		Severity:  model.SeverityMedium,
		Requires:  []model.FieldName{model.FieldDOFD, model.FieldDateReported},
		Anchor:    model.FieldDateReported,
		Citations: []string{citeMedicalPolicy},
		Evidence:  []string{"Insurance claim history for the service date"},
		Questions: []string{"When was the account first placed with the collector?"},
		Probability: 60,
		Check: func(x Facts) (string, bool) {
			dofd, ok1 := x.Date(model.FieldDOFD)
			reported, ok2 := x.Date(model.FieldDateReported)
			if !ok1 || !ok2 || !isMedical(x) {
				return "", false
			}
			gap := dates.DaysBetween(dofd, reported)
			if gap < 0 || gap >= 365 {
				return "", false
			}
			return fmt.Sprintf("The medical debt was reported on %s, only %d days after the DOFD (%s). Medical debt "+
				"may not be reported until one year after delinquency.", dates.Format(reported), gap, dates.Format(dofd)), true
		},
	},
	{
		ID:        "BANKRUPTCY_BALANCE",
		Name:      "Discharged Debt Reporting a Balance",
		Category:  CategoryBankruptcy,
		Severity:  model.SeverityCritical,
		Requires:  []model.FieldName{model.FieldAccountStatus, model.FieldCurrentBalance},
		Anchor:    model.FieldDateReported,
		Citations: []string{citeDischarge, citeFurnisherAccur, citeCRAAccuracy},
		Evidence:  []string{"Bankruptcy discharge order", "Schedule listing the creditor"},
		Questions: []string{"Was the furnisher notified of the bankruptcy discharge?"},
		Probability: 85,
		Check: func(x Facts) (string, bool) {
			bal, ok := x.Amount(model.FieldCurrentBalance)
			if !ok || bal <= 0 || !bankruptRe.MatchString(x.Text(model.FieldAccountStatus)) {
				return "", false
			}
			return fmt.Sprintf("The account is reported as %q yet still shows a balance of %s. Debts discharged in "+
				"bankruptcy must report a zero balance.", x.Fields[model.FieldAccountStatus], money(bal)), true
		},
	},
	{
		ID:        "TIME_BARRED_DEBT",
		Name:      "Collection Past Statute of Limitations",
		Category:  CategoryZombie,
		Severity:  model.SeverityMedium,
		Requires:  []model.FieldName{model.FieldStateCode, model.FieldDOFD},
		Anchor:    model.FieldDOFD,
		Citations: []string{citeRegFTimeBarred, citeFDCPAFalse},
		Evidence:  []string{"Collection letters received", "Any court filings on the debt"},
		Questions: []string{"Has the collector sued or threatened to sue on this debt?"},
		Probability: 45,
		Check: func(x Facts) (string, bool) {
			if !isCollection(x) {
				return "", false
			}
			state := x.Fields[model.FieldStateCode]
			years, ok := LimitationYears(state)
			if !ok {
				return "", false
			}
			start, _ := x.Date(model.FieldDOFD)
			if lp, ok := x.Date(model.FieldDateLastPayment); ok && lp.After(start) {
				start = lp
			}
			if start.IsZero() {
				return "", false
			}
			expires := start.AddDate(years, 0, 0)
			if !x.Now.After(expires) {
				return "", false
			}
			return fmt.Sprintf("The %d-year statute of limitations in %s ran on %s. The debt is time-barred and "+
				"cannot lawfully be the subject of a collection suit.", years, state, dates.Format(expires)), true
		},
	},
}
