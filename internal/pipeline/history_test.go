package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/reage-cli/internal/model"
	"github.com/sells-group/reage-cli/internal/series"
)

func capitalOne(id string, monthsAgo int, dofd string) model.AnalysisRecord {
	return model.AnalysisRecord{
		ID:        id,
		Timestamp: fixedNow.AddDate(0, -monthsAgo, 0),
		Fields: model.CreditFields{
			model.FieldOriginalCreditor: "CAPITAL ONE BANK",
			model.FieldDOFD:             dofd,
		},
	}
}

func TestRecordTimeline(t *testing.T) {
	rec := model.AnalysisRecord{
		ID: "r1",
		Fields: model.CreditFields{
			model.FieldDateOpened:    "2015-01-15",
			model.FieldDOFD:          "2019-09-15",
			model.FieldChargeOffDate: "2019-03-01",
		},
	}
	tl := RecordTimeline(rec)
	assert.False(t, tl.Insufficient)
	assert.NotEmpty(t, tl.Events)
	assert.Equal(t, "2027-03-14", tl.ExpectedRemoval)

	empty := RecordTimeline(model.AnalysisRecord{ID: "r2"})
	assert.True(t, empty.Insufficient)
}

func TestRecordSeries(t *testing.T) {
	history := []model.AnalysisRecord{
		capitalOne("newest", 0, "2022-01-01"),
		capitalOne("target", 1, "2021-06-01"),
		capitalOne("oldest", 2, "2020-01-01"),
	}

	insights := RecordSeries(history[1], history)
	require.Len(t, insights, 1)
	assert.Equal(t, series.TypeReaging, insights[0].Type)
	for _, e := range insights[0].Evidence {
		assert.NotContains(t, e, "2022-01-01", "newer records are excluded")
	}

	assert.Empty(t, RecordSeries(history[2], history), "nothing precedes the oldest record")
}
