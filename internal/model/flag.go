package model

import "github.com/rotisserie/eris"

// Severity grades a rule violation.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank orders severities from 1 (low) to 4 (critical); unknown values are 0.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	}
	return 0
}

// ParseSeverity validates s.
func ParseSeverity(s string) (Severity, error) {
	sev := Severity(s)
	if sev.Rank() == 0 {
		return "", eris.Errorf("model: unknown severity %q", s)
	}
	return sev, nil
}

// RuleFlag is one triggered rule for one evaluation.
type RuleFlag struct {
	RuleID             string   `json:"ruleId"`
	RuleName           string   `json:"ruleName"`
	Severity           Severity `json:"severity"`
	Explanation        string   `json:"explanation"`
	LegalCitations     []string `json:"legalCitations"`
	SuggestedEvidence  []string `json:"suggestedEvidence"`
	DiscoveryQuestions []string `json:"discoveryQuestions,omitempty"`
	SuccessProbability int      `json:"successProbability"`
}

// RiskLevel buckets an overall score.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// ScoreBreakdown holds per-severity flag counts and the raw point total
// before the 100 cap.
type ScoreBreakdown struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
	Points   int `json:"points"`
}

// RiskProfile is the aggregate of a flag set. Higher OverallScore means more
// and more severe violations.
type RiskProfile struct {
	OverallScore        int            `json:"overallScore"`
	RiskLevel           RiskLevel      `json:"riskLevel"`
	DisputeStrength     string         `json:"disputeStrength"`
	Summary             string         `json:"summary"`
	LitigationPotential bool           `json:"litigationPotential"`
	DetectedPatterns    []string       `json:"detectedPatterns"`
	KeyViolations       []string       `json:"keyViolations"`
	RecommendedApproach string         `json:"recommendedApproach"`
	ScoreBreakdown      ScoreBreakdown `json:"scoreBreakdown"`
}
