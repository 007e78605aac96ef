package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/reage-cli/internal/model"
	"github.com/sells-group/reage-cli/internal/rules"
)

func TestNormalizeTags(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, normalizeTags([]string{" a", "b", "", "a "}))
	assert.Nil(t, normalizeTags(nil))
	assert.Nil(t, normalizeTags([]string{" "}))
}

func TestFilterByTag(t *testing.T) {
	recs := []model.AnalysisRecord{
		{ID: "1", Tags: []string{"x", "y"}},
		{ID: "2"},
		{ID: "3", Tags: []string{"y"}},
	}
	assert.Len(t, filterByTag(recs, ""), 3)

	got := filterByTag(recs, "y")
	require.Len(t, got, 2)
	assert.Equal(t, "1", got[0].ID)
	assert.Equal(t, "3", got[1].ID)

	assert.Empty(t, filterByTag(recs, "z"))
}

func TestFormatHistoryList(t *testing.T) {
	rec := priorCapitalOne()
	rec.RiskProfile = model.RiskProfile{OverallScore: 30, RiskLevel: model.RiskMedium}
	rec.Flags = []model.RuleFlag{{RuleID: "A"}}
	collector := model.AnalysisRecord{
		ID:     "c-1",
		Fields: model.CreditFields{model.FieldFurnisherOrCollector: "MIDLAND CREDIT MANAGEMENT INCORPORATED OF AMERICA"},
	}
	blank := model.AnalysisRecord{ID: "blank"}

	var buf bytes.Buffer
	formatHistoryList(&buf, []model.AnalysisRecord{rec, collector, blank})
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)

	assert.True(t, strings.HasPrefix(lines[0], "ID"))
	assert.Contains(t, lines[1], "prior-1")
	assert.Contains(t, lines[1], "CAPITAL ONE BANK")
	assert.Contains(t, lines[1], "2026-09-14 09:30")
	assert.Contains(t, lines[1], "medium")
	assert.Contains(t, lines[1], "september")
	assert.Contains(t, lines[2], "MIDLAND CREDIT MANAGEMENT INC...")
	assert.Contains(t, lines[3], " - ")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "Crédit Ag...", truncate("Crédit Agricole SA", 12))
}

func TestFormatRules(t *testing.T) {
	e, err := rules.New(rules.WithDisabled("DOFD_MISSING"))
	require.NoError(t, err)

	var buf bytes.Buffer
	formatRules(&buf, e.Rules())
	out := buf.String()
	assert.Contains(t, out, "CATEGORY")
	assert.Contains(t, out, "DOFD_AFTER_CHARGEOFF")
	assert.NotContains(t, out, "DOFD_MISSING")
}
