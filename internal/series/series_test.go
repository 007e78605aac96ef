package series

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/reage-cli/internal/model"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func record(id, at string, fields model.CreditFields) model.AnalysisRecord {
	return model.AnalysisRecord{ID: id, Timestamp: day(at), Fields: fields}
}

func types(in []model.SeriesInsight) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = s.Type
	}
	return out
}

func with(name string, kv ...string) model.CreditFields {
	f := model.CreditFields{model.FieldFurnisherOrCollector: name}
	for i := 0; i+1 < len(kv); i += 2 {
		f[model.FieldName(kv[i])] = kv[i+1]
	}
	return f
}

func TestCompare_ReagingAcrossMonth(t *testing.T) {
	prior := []model.AnalysisRecord{
		record("a", "2024-01-15", with("CAPITAL ONE BANK", "dofd", "2020-01-01")),
	}
	got := Compare(prior, with("CAPITAL ONE BANK", "dofd", "2021-06-01"), day("2024-02-15"))

	require.Len(t, got, 1)
	in := got[0]
	assert.Equal(t, TypeReaging, in.Type)
	assert.Equal(t, model.SeverityHigh, in.Severity)
	assert.Equal(t, "capitalonebank:reaging", in.ID)
	assert.Equal(t, []string{
		"2024-01-15: DOFD 2020-01-01",
		"2024-02-15 (current): DOFD 2021-06-01",
	}, in.Evidence)
	assert.Contains(t, in.Summary, "2020-01-01")
	assert.Contains(t, in.Summary, "2021-06-01")
}

func TestCompare_NoKeyOrNoMatch(t *testing.T) {
	prior := []model.AnalysisRecord{record("a", "2024-01-15", with("CAPITAL ONE BANK", "dofd", "2020-01-01"))}
	now := day("2024-02-15")

	assert.Empty(t, Compare(prior, model.CreditFields{model.FieldDOFD: "2021-06-01"}, now))
	assert.Empty(t, Compare(prior, with("MIDLAND CREDIT", "dofd", "2021-06-01"), now))
	assert.Empty(t, Compare(nil, with("CAPITAL ONE BANK"), now))
	assert.NotNil(t, Compare(nil, with("CAPITAL ONE BANK"), now))
}

func TestCompare_OriginalCreditorTakesPrecedence(t *testing.T) {
	prior := []model.AnalysisRecord{
		record("a", "2024-01-15", model.CreditFields{
			model.FieldOriginalCreditor: "Capital One",
			model.FieldDOFD:             "2020-01-01",
		}),
	}
	current := with("MIDLAND CREDIT", "originalCreditor", "CAPITAL ONE BANK USA", "dofd", "2020-09-01")
	assert.Equal(t, []string{TypeReaging}, types(Compare(prior, current, day("2024-02-15"))))
}

func TestNameKeyAndMatches(t *testing.T) {
	assert.Equal(t, "creditagricolesa", NameKey("Crédit Agricole, S.A."))
	assert.Equal(t, "capitalonebank", NameKey("  CAPITAL ONE   BANK "))
	assert.Empty(t, NameKey("--"))

	assert.True(t, Matches("capitalone", "capitalonebankusa"))
	assert.True(t, Matches("capitalonebankusa", "capitalone"))
	assert.False(t, Matches("capitalone", "midland"))
	assert.False(t, Matches("", "midland"))
}

func TestRelated_SortedWithoutMutating(t *testing.T) {
	prior := []model.AnalysisRecord{
		record("late", "2024-03-01", with("Acme Collections")),
		record("other", "2024-01-01", with("Somebody Else")),
		record("early", "2023-11-01", with("ACME COLLECTIONS LLC")),
	}
	got := Related(prior, with("acme collections"))
	require.Len(t, got, 2)
	assert.Equal(t, "early", got[0].ID)
	assert.Equal(t, "late", got[1].ID)
	assert.Equal(t, "late", prior[0].ID)
}

func TestCompare_Detectors(t *testing.T) {
	now := day("2024-04-01")
	tests := []struct {
		name    string
		prior   []model.CreditFields
		current model.CreditFields
		want    []string
	}{
		{
			name:    "removal pushed 151 days",
			prior:   []model.CreditFields{with("ACME", "estimatedRemovalDate", "2027-01-01")},
			current: with("ACME", "estimatedRemovalDate", "2027-06-01"),
			want:    []string{TypeRemovalExtension},
		},
		{
			name:    "removal pushed 31 days is tolerated",
			prior:   []model.CreditFields{with("ACME", "estimatedRemovalDate", "2027-01-01")},
			current: with("ACME", "estimatedRemovalDate", "2027-02-01"),
			want:    []string{},
		},
		{
			name:    "dofd moves but removal stays",
			prior:   []model.CreditFields{with("ACME", "dofd", "2020-01-01", "estimatedRemovalDate", "2027-07-01")},
			current: with("ACME", "dofd", "2020-05-01", "estimatedRemovalDate", "2027-07-01"),
			want:    []string{TypeReaging, TypeDofdRemovalMismatch},
		},
		{
			name:    "removal beyond statutory limit",
			prior:   []model.CreditFields{with("ACME")},
			current: with("ACME", "dofd", "2020-01-01", "estimatedRemovalDate", "2028-01-01"),
			want:    []string{TypeRemovalBeyondLimit},
		},
		{
			name:    "removal before dofd",
			prior:   []model.CreditFields{with("ACME", "dofd", "2020-01-01", "estimatedRemovalDate", "2019-01-01")},
			current: with("ACME"),
			want:    []string{TypeDataCorruption},
		},
		{
			name:    "balance grows while last payment moves forward",
			prior:   []model.CreditFields{with("ACME", "currentBalance", "$1,000.00", "dateLastPayment", "2021-01-01")},
			current: with("ACME", "currentBalance", "$1,200.00", "dateLastPayment", "2021-08-01"),
			want:    []string{TypeBalanceGrowth, TypePaymentShift},
		},
		{
			name:    "balance growth of 50 is tolerated",
			prior:   []model.CreditFields{with("ACME", "currentBalance", "1000")},
			current: with("ACME", "currentBalance", "1050"),
			want:    []string{},
		},
		{
			name:    "payment after dofd",
			prior:   []model.CreditFields{with("ACME")},
			current: with("ACME", "dofd", "2020-01-01", "dateLastPayment", "2020-06-01"),
			want:    []string{TypePaymentAfterDofd},
		},
		{
			name:    "status flips between paid and collection",
			prior:   []model.CreditFields{with("ACME", "accountStatus", "Paid in full")},
			current: with("ACME", "accountStatus", "Collection account"),
			want:    []string{TypeStatusFlipFlop},
		},
		{
			name:    "reported date moves backward",
			prior:   []model.CreditFields{with("ACME", "dateReportedOrUpdated", "2024-03-01")},
			current: with("ACME", "dateReportedOrUpdated", "2024-01-10"),
			want:    []string{TypeReportingBackdate},
		},
		{
			name:    "reported after its own removal date",
			prior:   []model.CreditFields{with("ACME")},
			current: with("ACME", "estimatedRemovalDate", "2024-01-01", "dateReportedOrUpdated", "2024-03-01"),
			want:    []string{TypeReportingAfterRemoval},
		},
		{
			name:    "status changes within 45 days",
			prior:   []model.CreditFields{with("ACME", "dateReportedOrUpdated", "2024-01-01", "accountStatus", "Open")},
			current: with("ACME", "dateReportedOrUpdated", "2024-01-30", "accountStatus", "Past due 60 days"),
			want:    []string{TypeRapidReporting},
		},
		{
			name:    "same status within 45 days",
			prior:   []model.CreditFields{with("ACME", "dateReportedOrUpdated", "2024-01-01", "accountStatus", "Open")},
			current: with("ACME", "dateReportedOrUpdated", "2024-01-30", "accountStatus", " open "),
			want:    []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var prior []model.AnalysisRecord
			for i, f := range tt.prior {
				prior = append(prior, model.AnalysisRecord{
					ID:        string(rune('a' + i)),
					Timestamp: now.AddDate(0, -(len(tt.prior) - i), 0),
					Fields:    f,
				})
			}
			assert.Equal(t, tt.want, types(Compare(prior, tt.current, now)))
		})
	}
}

func TestCompare_Deterministic(t *testing.T) {
	prior := []model.AnalysisRecord{
		record("a", "2024-01-15", with("ACME", "dofd", "2020-01-01", "currentBalance", "100", "accountStatus", "paid")),
		record("b", "2024-02-15", with("ACME", "dofd", "2020-03-01", "currentBalance", "400", "accountStatus", "collection")),
	}
	current := with("ACME", "dofd", "2020-06-01", "currentBalance", "900")
	now := day("2024-03-15")
	assert.Equal(t, Compare(prior, current, now), Compare(prior, current, now))
}
