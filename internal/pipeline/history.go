package pipeline

import (
	"github.com/sells-group/reage-cli/internal/model"
	"github.com/sells-group/reage-cli/internal/series"
	"github.com/sells-group/reage-cli/internal/timeline"
)

// RecordTimeline rebuilds the timeline of a stored analysis.
func RecordTimeline(rec model.AnalysisRecord) timeline.Timeline {
	return timeline.Analyze(timeline.BuildEvents(rec.Fields, rec.Flags))
}

// RecordSeries compares a stored analysis with the records saved before it.
// The record itself and anything newer are excluded from the history.
func RecordSeries(rec model.AnalysisRecord, history []model.AnalysisRecord) []model.SeriesInsight {
	prior := make([]model.AnalysisRecord, 0, len(history))
	for _, h := range history {
		if h.ID == rec.ID || h.Timestamp.After(rec.Timestamp) {
			continue
		}
		prior = append(prior, h)
	}
	return series.Compare(prior, rec.Fields, rec.Timestamp)
}
