package model

// Confidence qualifies how specific the matcher behind an extracted value was.
// It is a rank, not a probability.
type Confidence string

const (
	ConfidenceHigh   Confidence = "High"
	ConfidenceMedium Confidence = "Medium"
	ConfidenceLow    Confidence = "Low"
)

// Rank orders confidences: High=3, Medium=2, Low=1, anything else 0.
func (c Confidence) Rank() int {
	switch c {
	case ConfidenceHigh:
		return 3
	case ConfidenceMedium:
		return 2
	case ConfidenceLow:
		return 1
	}
	return 0
}

// ExtractedField is one value recovered from report text together with the
// exact substring it was read from.
type ExtractedField struct {
	Value      string     `json:"value"`
	Confidence Confidence `json:"confidence"`
	SourceText string     `json:"sourceText"`
}

// ExtractedFields is the confidence-qualified view of an account.
type ExtractedFields map[FieldName]ExtractedField

// Simple drops confidence and source data.
func (e ExtractedFields) Simple() CreditFields {
	out := make(CreditFields, len(e))
	for k, f := range e {
		out.Set(k, f.Value)
	}
	return out
}

// Names returns the present field names in canonical order.
func (e ExtractedFields) Names() []FieldName {
	names := make([]FieldName, 0, len(e))
	for k := range e {
		names = append(names, k)
	}
	sortFieldNames(names)
	return names
}

// CountByConfidence tallies the fields per confidence level.
func (e ExtractedFields) CountByConfidence() map[Confidence]int {
	out := make(map[Confidence]int, 3)
	for _, f := range e {
		out[f.Confidence]++
	}
	return out
}
