// Package risk folds rule flags into a single risk profile.
//
// Polarity: a higher OverallScore means more or more severe violations,
// that is higher reporting risk for the furnisher and a stronger dispute
// for the consumer. Zero flags score 0 at level low.
package risk

import (
	"fmt"

	"github.com/sells-group/reage-cli/internal/model"
	"github.com/sells-group/reage-cli/internal/rules"
)

// Points per flag by severity.
const (
	PointsCritical = 30
	PointsHigh     = 18
	PointsMedium   = 9
	PointsLow      = 4
	MaxScore       = 100
)

// Level thresholds on the 0-100 score. A score belongs to the highest level
// whose threshold it reaches.
const (
	ThresholdCritical = 70
	ThresholdHigh     = 45
	ThresholdMedium   = 20
)

// Dispute strength labels.
const (
	StrengthNone     = "none"
	StrengthWeak     = "weak"
	StrengthModerate = "moderate"
	StrengthStrong   = "strong"
	StrengthVery     = "very strong"
)

// Points returns the score contribution of one flag of severity s.
func Points(s model.Severity) int {
	switch s {
	case model.SeverityCritical:
		return PointsCritical
	case model.SeverityHigh:
		return PointsHigh
	case model.SeverityMedium:
		return PointsMedium
	case model.SeverityLow:
		return PointsLow
	}
	return 0
}

// LevelFor buckets a score.
func LevelFor(score int) model.RiskLevel {
	switch {
	case score >= ThresholdCritical:
		return model.RiskCritical
	case score >= ThresholdHigh:
		return model.RiskHigh
	case score >= ThresholdMedium:
		return model.RiskMedium
	default:
		return model.RiskLow
	}
}

// Aggregate derives a profile from flags. It is a pure function of its
// input: equal flag slices always yield equal profiles.
func Aggregate(flags []model.RuleFlag) model.RiskProfile {
	var b model.ScoreBreakdown
	patterns := []string{}
	keys := []string{}
	seen := make(map[string]bool)
	litigation := false

	for _, f := range flags {
		switch f.Severity {
		case model.SeverityCritical:
			b.Critical++
		case model.SeverityHigh:
			b.High++
		case model.SeverityMedium:
			b.Medium++
		case model.SeverityLow:
			b.Low++
		}
		b.Points += Points(f.Severity)

		material := f.Severity.Rank() >= model.SeverityHigh.Rank()
		if material {
			keys = append(keys, f.RuleName)
			if len(f.LegalCitations) > 0 {
				litigation = true
			}
		}
		if cat, ok := rules.CategoryFor(f.RuleID); ok && !seen[string(cat)] {
			seen[string(cat)] = true
			patterns = append(patterns, string(cat))
		}
	}

	score := min(b.Points, MaxScore)
	level := LevelFor(score)
	strength := disputeStrength(len(flags), level)

	return model.RiskProfile{
		OverallScore:        score,
		RiskLevel:           level,
		DisputeStrength:     strength,
		Summary:             summary(len(flags), b, level),
		LitigationPotential: litigation,
		DetectedPatterns:    patterns,
		KeyViolations:       keys,
		RecommendedApproach: approach(len(flags), level, litigation),
		ScoreBreakdown:      b,
	}
}

func disputeStrength(n int, level model.RiskLevel) string {
	if n == 0 {
		return StrengthNone
	}
	switch level {
	case model.RiskCritical:
		return StrengthVery
	case model.RiskHigh:
		return StrengthStrong
	case model.RiskMedium:
		return StrengthModerate
	default:
		return StrengthWeak
	}
}

func summary(n int, b model.ScoreBreakdown, level model.RiskLevel) string {
	if n == 0 {
		return "No reporting violations were detected in the extracted data."
	}
	noun := "violations"
	if n == 1 {
		noun = "violation"
	}
	return fmt.Sprintf("%d potential %s detected (%d critical, %d high, %d medium, %d low); overall risk is %s.",
		n, noun, b.Critical, b.High, b.Medium, b.Low, level)
}

func approach(n int, level model.RiskLevel, litigation bool) string {
	switch {
	case n == 0:
		return "No dispute is indicated. Keep monitoring the account for changes between reports."
	case level == model.RiskCritical && litigation:
		return "Preserve copies of every report, dispute with each bureau and the furnisher in writing, " +
			"and consult a consumer-protection attorney about statutory claims."
	case level == model.RiskCritical || level == model.RiskHigh:
		return "Dispute in writing with each bureau and with the furnisher directly, requesting the " +
			"documents listed as suggested evidence."
	case level == model.RiskMedium:
		return "File written disputes with the bureaus and request the method of verification."
	default:
		return "Send a standard dispute asking the bureaus to verify the flagged items."
	}
}
