package pipeline

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/reage-cli/internal/config"
	"github.com/sells-group/reage-cli/internal/model"
	"github.com/sells-group/reage-cli/internal/series"
)

var fixedNow = time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC)

const twoAccounts = `Original Creditor: Comenity Bank
Account Status: Collection
Date of First Delinquency: 09/15/2019
Charge-Off Date: 03/01/2019
==========
Original Creditor: Capital One Bank
Account Status: Current
Date Opened: 01/15/2015
Date of First Delinquency: 06/01/2021
`

func newAnalyzer(t *testing.T, rc config.RulesConfig) *Analyzer {
	t.Helper()
	a, err := New(config.AnalysisConfig{MinSegmentLength: 50, DefaultBureau: "unspecified"}, rc,
		func() time.Time { return fixedNow })
	require.NoError(t, err)
	return a
}

func flagIDs(flags []model.RuleFlag) []string {
	out := make([]string, len(flags))
	for i, f := range flags {
		out[i] = f.RuleID
	}
	return out
}

func TestAnalyze_TwoAccounts(t *testing.T) {
	a := newAnalyzer(t, config.RulesConfig{})
	res := a.Analyze(Input{Text: twoAccounts, FileName: "report.txt"})

	assert.Equal(t, "report.txt", res.FileName)
	assert.Equal(t, "unspecified", res.Bureau)
	assert.Equal(t, fixedNow, res.AnalyzedAt)
	require.Len(t, res.Accounts, 2)

	first := res.Accounts[0]
	assert.Equal(t, 0, first.Index)
	assert.Equal(t, "Comenity Bank", first.Fields[model.FieldOriginalCreditor])
	assert.Equal(t, "2019-09-15", first.Fields[model.FieldDOFD])
	assert.Equal(t, "2019-03-01", first.Fields[model.FieldChargeOffDate])
	assert.Equal(t, model.ConfidenceHigh, first.Extracted[model.FieldDOFD].Confidence)
	assert.NotContains(t, first.Fields, model.FieldBureau)

	assert.Contains(t, flagIDs(first.Flags), "DOFD_AFTER_CHARGEOFF")
	assert.Contains(t, first.Warnings, "DOFD is after the charge-off date (DOFD 2019-09-15, charged off 2019-03-01)")
	assert.Greater(t, first.Risk.OverallScore, 0)
	assert.Contains(t, first.Risk.DetectedPatterns, "reaging")

	var violations int
	for _, e := range first.Timeline.Events {
		if e.Type == model.EventViolation {
			violations++
		}
	}
	assert.Positive(t, violations)
	require.NotNil(t, first.Window)
	assert.False(t, first.Window.IsExpired)

	second := res.Accounts[1]
	assert.Equal(t, "Capital One Bank", second.Fields[model.FieldOriginalCreditor])
	assert.Equal(t, "2015-01-15", second.Fields[model.FieldDateOpened])
	assert.NotContains(t, flagIDs(second.Flags), "DOFD_AFTER_CHARGEOFF")
}

func TestAnalyze_InsufficientText(t *testing.T) {
	a := newAnalyzer(t, config.RulesConfig{})
	for _, text := range []string{"", "too short"} {
		res := a.Analyze(Input{Text: text})
		require.Len(t, res.Accounts, 1, "text %q", text)

		acc := res.Accounts[0]
		assert.Empty(t, acc.Fields)
		assert.NotNil(t, acc.Warnings)
		assert.Empty(t, acc.Flags)
		assert.Equal(t, 0, acc.Risk.OverallScore)
		assert.Equal(t, model.RiskLow, acc.Risk.RiskLevel)
		assert.True(t, acc.Timeline.Insufficient)
		assert.Nil(t, acc.Window)
	}
}

func TestAnalyze_BureauHint(t *testing.T) {
	a := newAnalyzer(t, config.RulesConfig{})

	res := a.Analyze(Input{Text: twoAccounts, Bureau: " Experian "})
	assert.Equal(t, "experian", res.Bureau)
	for _, acc := range res.Accounts {
		ef, ok := acc.Extracted[model.FieldBureau]
		require.True(t, ok)
		assert.Equal(t, "experian", ef.Value)
		assert.Equal(t, model.ConfidenceLow, ef.Confidence)
		assert.Equal(t, "caller hint: bureau=experian", ef.SourceText)
		for _, w := range acc.Warnings {
			assert.NotContains(t, w, "Bureau")
		}
	}

	// Text evidence wins over the hint.
	text := "Bureau: Equifax\n" + twoAccounts[:strings.Index(twoAccounts, "==")]
	res = a.Analyze(Input{Text: text, Bureau: "experian"})
	require.Len(t, res.Accounts, 1)
	assert.Equal(t, "equifax", res.Accounts[0].Fields[model.FieldBureau])
	assert.Equal(t, model.ConfidenceHigh, res.Accounts[0].Extracted[model.FieldBureau].Confidence)
}

func TestAnalyze_CreditorChargeOffIsNotCollection(t *testing.T) {
	a := newAnalyzer(t, config.RulesConfig{})
	text := "CAPITAL ONE BANK USA\nAccount Status: Charged off\nAccount Type: Credit Card\nDate of First Delinquency: 06/01/2021\n"
	res := a.Analyze(Input{Text: text})
	require.Len(t, res.Accounts, 1)

	acc := res.Accounts[0]
	assert.Equal(t, "CAPITAL ONE BANK USA", acc.Fields[model.FieldFurnisherOrCollector])
	assert.NotContains(t, flagIDs(acc.Flags), "COLLECTOR_MISSING_ORIGINAL_CREDITOR")
}

func TestAccount_Identifiable(t *testing.T) {
	a := newAnalyzer(t, config.RulesConfig{})
	preamble := "EXPERIAN CREDIT REPORT\nName: John Doe\nReport Date: 10/01/2026\nAddress: 12 Elm Street, Springfield\n"
	res := a.Analyze(Input{Text: preamble})
	require.Len(t, res.Accounts, 1)
	assert.False(t, res.Accounts[0].Identifiable())

	for _, f := range []model.FieldName{model.FieldOriginalCreditor, model.FieldFurnisherOrCollector, model.FieldAccountNumber} {
		acc := Account{Fields: model.CreditFields{f: "x"}}
		assert.True(t, acc.Identifiable(), f)
	}
}

func TestAnalyze_DefaultBureau(t *testing.T) {
	a, err := New(config.AnalysisConfig{DefaultBureau: "transunion"}, config.RulesConfig{}, nil)
	require.NoError(t, err)
	res := a.Analyze(Input{Text: twoAccounts})
	assert.Equal(t, "transunion", res.Bureau)
	assert.Equal(t, "transunion", res.Accounts[0].Fields[model.FieldBureau])
}

func TestAnalyze_Idempotent(t *testing.T) {
	a := newAnalyzer(t, config.RulesConfig{})
	in := Input{Text: twoAccounts, FileName: "r.txt"}

	first := a.Analyze(in)
	second := a.Analyze(in)
	require.Equal(t, first, second)
	assert.Equal(t, FormatReport(first), FormatReport(second))
}

func TestAnalyze_FutureDateWarning(t *testing.T) {
	a := newAnalyzer(t, config.RulesConfig{})
	text := "Original Creditor: Comenity Bank\nAccount Status: Open\nDate Opened: 01/15/2030\n"
	res := a.Analyze(Input{Text: text})
	require.Len(t, res.Accounts, 1)
	assert.Contains(t, res.Accounts[0].Warnings, model.FieldDateOpened.Label()+" is in the future")
}

func TestNew_RulesConfig(t *testing.T) {
	a := newAnalyzer(t, config.RulesConfig{Disabled: []string{"DOFD_AFTER_CHARGEOFF"}})
	_, ok := a.Engine().Find("DOFD_AFTER_CHARGEOFF")
	assert.False(t, ok)
	res := a.Analyze(Input{Text: twoAccounts})
	assert.NotContains(t, flagIDs(res.Accounts[0].Flags), "DOFD_AFTER_CHARGEOFF")

	_, err := New(config.AnalysisConfig{}, config.RulesConfig{Disabled: []string{"NOPE"}}, nil)
	assert.Error(t, err)

	_, err = New(config.AnalysisConfig{}, config.RulesConfig{OverridesFile: filepath.Join(t.TempDir(), "missing.yaml")}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pipeline: load rule overrides")

	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rules:\n  DOFD_AFTER_CHARGEOFF:\n    severity: low\n"), 0o644))
	a, err = New(config.AnalysisConfig{}, config.RulesConfig{OverridesFile: path}, func() time.Time { return fixedNow })
	require.NoError(t, err)
	r, ok := a.Engine().Find("DOFD_AFTER_CHARGEOFF")
	require.True(t, ok)
	assert.Equal(t, model.SeverityLow, r.Severity)
}

func TestCompareSeries(t *testing.T) {
	a := newAnalyzer(t, config.RulesConfig{})
	res := a.Analyze(Input{Text: twoAccounts})

	prior := []model.AnalysisRecord{{
		ID:        "prior-1",
		Timestamp: fixedNow.AddDate(0, -1, 0),
		Fields: model.CreditFields{
			model.FieldOriginalCreditor: "CAPITAL ONE BANK",
			model.FieldDOFD:             "2020-01-01",
		},
	}}
	CompareSeries(&res, prior)

	assert.Empty(t, res.Accounts[0].Series)
	require.Len(t, res.Accounts[1].Series, 1)
	in := res.Accounts[1].Series[0]
	assert.Equal(t, series.TypeReaging, in.Type)
	assert.Equal(t, model.SeverityHigh, in.Severity)
	assert.Contains(t, FormatReport(res), "Changes Since Earlier Reports")
}

func TestAccountRecord(t *testing.T) {
	a := newAnalyzer(t, config.RulesConfig{})
	acc := a.Analyze(Input{Text: twoAccounts}).Accounts[0]

	rec := acc.Record("report.txt", []string{"march"})
	assert.Empty(t, rec.ID)
	assert.True(t, rec.Timestamp.IsZero())
	assert.Equal(t, "report.txt", rec.FileName)
	assert.Equal(t, acc.Fields, rec.Fields)
	assert.Equal(t, acc.Flags, rec.Flags)
	assert.Equal(t, acc.Risk, rec.RiskProfile)
	assert.Equal(t, []string{"march"}, rec.Tags)

	rec.Fields[model.FieldDOFD] = "changed"
	assert.Equal(t, "2019-09-15", acc.Fields[model.FieldDOFD])
}
