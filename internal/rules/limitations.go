package rules

import "strings"

// limitationYears is the statute of limitations for suits on open-ended
// consumer accounts (credit cards and similar), by state. Figures are the
// commonly cited general periods and vary with contract type.
var limitationYears = map[string]int{
	"AL": 3, "AK": 3, "AZ": 6, "AR": 5, "CA": 4, "CO": 6, "CT": 6, "DE": 3,
	"DC": 3, "FL": 4, "GA": 4, "HI": 6, "ID": 4, "IL": 5, "IN": 6, "IA": 5,
	"KS": 3, "KY": 5, "LA": 3, "ME": 6, "MD": 3, "MA": 6, "MI": 6, "MN": 6,
	"MS": 3, "MO": 5, "MT": 5, "NE": 4, "NV": 4, "NH": 3, "NJ": 6, "NM": 4,
	"NY": 3, "NC": 3, "ND": 6, "OH": 6, "OK": 3, "OR": 6, "PA": 4, "RI": 10,
	"SC": 3, "SD": 6, "TN": 6, "TX": 4, "UT": 4, "VT": 6, "VA": 3, "WA": 6,
	"WV": 5, "WI": 6, "WY": 8,
}

// LimitationYears returns the limitation period for a two-letter state
// code. Unknown states report false.
func LimitationYears(state string) (int, bool) {
	y, ok := limitationYears[strings.ToUpper(strings.TrimSpace(state))]
	return y, ok
}
