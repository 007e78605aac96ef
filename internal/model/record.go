package model

import (
	"time"

	"github.com/rotisserie/eris"
)

// EventType classifies a timeline point.
type EventType string

const (
	EventAccount     EventType = "account"
	EventDelinquency EventType = "delinquency"
	EventChargeOff   EventType = "chargeoff"
	EventPayment     EventType = "payment"
	EventReported    EventType = "reported"
	EventRemoval     EventType = "removal"
	EventStatutory   EventType = "statutory"
	EventViolation   EventType = "violation"
)

// TimelineEvent is one dated point on an account timeline.
type TimelineEvent struct {
	Date             string    `json:"date"`
	Label            string    `json:"label"`
	Type             EventType `json:"type"`
	Flagged          bool      `json:"flagged"`
	EvidenceSnippets []string  `json:"evidenceSnippets,omitempty"`
}

// Cluster is a maximal run of two or more consecutive violation or flagged
// events in a date-sorted timeline. Indices are inclusive.
type Cluster struct {
	StartIndex int `json:"startIndex"`
	EndIndex   int `json:"endIndex"`
	Size       int `json:"size"`
	SpanMonths int `json:"spanMonths"`
	Score      int `json:"score"`
}

// AnalysisRecord is the unit of persistence: one completed analysis.
type AnalysisRecord struct {
	ID          string       `json:"id"`
	Timestamp   time.Time    `json:"timestamp"`
	FileName    string       `json:"fileName,omitempty"`
	Fields      CreditFields `json:"fields"`
	Flags       []RuleFlag   `json:"flags"`
	RiskProfile RiskProfile  `json:"riskProfile"`
	Tags        []string     `json:"tags,omitempty"`
}

// Validate checks that a record loaded from storage is structurally sound.
func (r *AnalysisRecord) Validate() error {
	if r.ID == "" {
		return eris.New("model: record has no id")
	}
	for k, v := range r.Fields {
		if !k.Known() {
			return eris.Errorf("model: record %s has unknown field %q", r.ID, k)
		}
		if v == "" {
			return eris.Errorf("model: record %s stores empty field %q", r.ID, k)
		}
	}
	for _, f := range r.Flags {
		if f.RuleID == "" {
			return eris.Errorf("model: record %s has a flag without rule id", r.ID)
		}
	}
	return nil
}

// SeriesInsight is a finding from comparing analyses of one account over time.
type SeriesInsight struct {
	ID       string   `json:"id"`
	Type     string   `json:"type"`
	Severity Severity `json:"severity"`
	Title    string   `json:"title"`
	Summary  string   `json:"summary"`
	Evidence []string `json:"evidence"`
}
