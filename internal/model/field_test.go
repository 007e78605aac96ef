package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFieldName(t *testing.T) {
	t.Parallel()

	f, err := ParseFieldName("dofd")
	require.NoError(t, err)
	assert.Equal(t, FieldDOFD, f)

	_, err = ParseFieldName("favoriteColor")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown field")
}

func TestFieldKinds(t *testing.T) {
	t.Parallel()

	assert.True(t, FieldDOFD.IsDate())
	assert.True(t, FieldEstimatedRemoval.IsDate())
	assert.True(t, FieldCurrentBalance.IsMoney())
	assert.False(t, FieldAccountStatus.IsDate())
	assert.False(t, FieldName("bogus").Known())
	assert.Equal(t, "bogus", FieldName("bogus").Label())
	assert.Equal(t, "Date of First Delinquency", FieldDOFD.Label())
}

func TestAllFieldsCanonicalOrder(t *testing.T) {
	t.Parallel()

	all := AllFields()
	require.Len(t, all, 15)
	assert.Equal(t, FieldOriginalCreditor, all[0])
	assert.Equal(t, FieldStateCode, all[len(all)-1])
}

func TestCreditFields_SetNeverStoresEmpty(t *testing.T) {
	t.Parallel()

	c := CreditFields{}
	c.Set(FieldDOFD, "2020-01-01")
	assert.True(t, c.Has(FieldDOFD))

	c.Set(FieldDOFD, "")
	assert.False(t, c.Has(FieldDOFD))
	_, present := c[FieldDOFD]
	assert.False(t, present)
}

func TestCreditFields_NamesOrdered(t *testing.T) {
	t.Parallel()

	c := CreditFields{
		FieldStateCode:        "TX",
		FieldDOFD:             "2020-01-01",
		FieldOriginalCreditor: "ACME",
	}
	assert.Equal(t, []FieldName{FieldOriginalCreditor, FieldDOFD, FieldStateCode}, c.Names())
}

func TestExtractedFields_Simple(t *testing.T) {
	t.Parallel()

	e := ExtractedFields{
		FieldDOFD:           {Value: "2020-01-01", Confidence: ConfidenceHigh, SourceText: "DOFD: 01/01/2020"},
		FieldAccountStatus:  {Value: "Collection", Confidence: ConfidenceMedium, SourceText: "Status: Collection"},
		FieldCurrentBalance: {Value: "", Confidence: ConfidenceLow, SourceText: "Balance:"},
	}
	simple := e.Simple()
	assert.Equal(t, CreditFields{FieldDOFD: "2020-01-01", FieldAccountStatus: "Collection"}, simple)

	counts := e.CountByConfidence()
	assert.Equal(t, 1, counts[ConfidenceHigh])
	assert.Equal(t, 1, counts[ConfidenceMedium])
}

func TestSeverityAndConfidenceRank(t *testing.T) {
	t.Parallel()

	assert.Greater(t, SeverityCritical.Rank(), SeverityHigh.Rank())
	assert.Greater(t, SeverityMedium.Rank(), SeverityLow.Rank())
	assert.Zero(t, Severity("extreme").Rank())
	assert.Greater(t, ConfidenceHigh.Rank(), ConfidenceLow.Rank())

	_, err := ParseSeverity("extreme")
	require.Error(t, err)
	s, err := ParseSeverity("high")
	require.NoError(t, err)
	assert.Equal(t, SeverityHigh, s)
}

func TestAnalysisRecord_Validate(t *testing.T) {
	t.Parallel()

	ok := AnalysisRecord{ID: "r1", Fields: CreditFields{FieldDOFD: "2020-01-01"}}
	require.NoError(t, ok.Validate())

	tests := []struct {
		name string
		rec  AnalysisRecord
		want string
	}{
		{"missing id", AnalysisRecord{}, "no id"},
		{"unknown field", AnalysisRecord{ID: "r2", Fields: CreditFields{"color": "blue"}}, "unknown field"},
		{"empty value", AnalysisRecord{ID: "r3", Fields: CreditFields{FieldDOFD: ""}}, "empty field"},
		{"flag without id", AnalysisRecord{ID: "r4", Flags: []RuleFlag{{RuleName: "x"}}}, "without rule id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rec.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
