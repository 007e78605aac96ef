package rules

import (
	"errors"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/reage-cli/internal/model"
)

// Overrides adjusts the built-in registry without code changes. Loaded
// from YAML:
//
//	disabled: [MEDICAL_WAITING_PERIOD]
//	rules:
//	  TIME_BARRED_DEBT:
//	    severity: high
//	    successProbability: 60
type Overrides struct {
	Disabled []string                `yaml:"disabled"`
	Rules    map[string]RuleOverride `yaml:"rules"`
}

// RuleOverride replaces selected metadata of one rule.
type RuleOverride struct {
	Severity           string `yaml:"severity"`
	SuccessProbability *int   `yaml:"successProbability"`
}

// LoadOverrides reads an override file. Unknown keys are rejected.
func LoadOverrides(path string) (Overrides, error) {
	f, err := os.Open(path)
	if err != nil {
		return Overrides{}, eris.Wrapf(err, "rules: open overrides %s", path)
	}
	defer f.Close()

	var o Overrides
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&o); err != nil && !errors.Is(err, io.EOF) {
		return Overrides{}, eris.Wrapf(err, "rules: decode overrides %s", path)
	}
	return o, nil
}

func (o Overrides) apply(e *Engine) error {
	for id, ov := range o.Rules {
		idx := -1
		for i := range e.rules {
			if e.rules[i].ID == id {
				idx = i
				break
			}
		}
		if idx < 0 {
			return eris.Errorf("rules: override for unknown rule %q", id)
		}
		if ov.Severity != "" {
			sev, err := model.ParseSeverity(ov.Severity)
			if err != nil {
				return eris.Wrapf(err, "rules: override %s", id)
			}
			e.rules[idx].Severity = sev
		}
		if ov.SuccessProbability != nil {
			e.rules[idx].Probability = *ov.SuccessProbability
		}
	}
	return e.disable(o.Disabled)
}
