package extract

import "strings"

// abbrToState maps uppercase postal codes to lowercase full names.
var abbrToState = map[string]string{
	"AL": "alabama", "AK": "alaska", "AZ": "arizona", "AR": "arkansas",
	"CA": "california", "CO": "colorado", "CT": "connecticut", "DE": "delaware",
	"FL": "florida", "GA": "georgia", "HI": "hawaii", "ID": "idaho",
	"IL": "illinois", "IN": "indiana", "IA": "iowa", "KS": "kansas",
	"KY": "kentucky", "LA": "louisiana", "ME": "maine", "MD": "maryland",
	"MA": "massachusetts", "MI": "michigan", "MN": "minnesota", "MS": "mississippi",
	"MO": "missouri", "MT": "montana", "NE": "nebraska", "NV": "nevada",
	"NH": "new hampshire", "NJ": "new jersey", "NM": "new mexico", "NY": "new york",
	"NC": "north carolina", "ND": "north dakota", "OH": "ohio", "OK": "oklahoma",
	"OR": "oregon", "PA": "pennsylvania", "RI": "rhode island", "SC": "south carolina",
	"SD": "south dakota", "TN": "tennessee", "TX": "texas", "UT": "utah",
	"VT": "vermont", "VA": "virginia", "WA": "washington", "WV": "west virginia",
	"WI": "wisconsin", "WY": "wyoming", "DC": "district of columbia",
}

// stateToAbbr maps lowercase full names to postal codes.
var stateToAbbr = func() map[string]string {
	m := make(map[string]string, len(abbrToState))
	for abbr, full := range abbrToState {
		m[full] = abbr
	}
	return m
}()

// stateCode resolves "IL", "il" or "Illinois" to "IL".
func stateCode(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if up := strings.ToUpper(s); len(up) == 2 {
		_, ok := abbrToState[up]
		return up, ok
	}
	abbr, ok := stateToAbbr[strings.ToLower(s)]
	return abbr, ok
}

// IsStateCode reports whether code is a known two-letter postal code.
func IsStateCode(code string) bool {
	_, ok := abbrToState[code]
	return ok
}
