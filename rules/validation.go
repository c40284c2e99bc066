package rules

import (
	"fmt"
	"regexp"
	"strings"
)

const maxCodeLength = 64

var (
	ruleCodePattern      = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)
	componentCodePattern = regexp.MustCompile(`^[a-z][a-zA-Z0-9]*$`)
)

var knownComponents = map[string]bool{
	ComponentAbdominalObesity:      true,
	ComponentElevatedBloodPressure: true,
	ComponentElevatedGlucose:       true,
	ComponentElevatedTriglyceride:  true,
	ComponentLowHDL:                true,
}

// ValidateCatalogue checks the structure of a catalogue before it is compiled.
// Returns an error describing the first problem found, nil if the catalogue is usable.
func ValidateCatalogue(c Catalogue) error {
	if len(c.Tiers) == 0 {
		return fmt.Errorf("catalogue must contain at least one tier")
	}

	// Rule tiers may only promote to levels above the count-based ones, in severity order.
	prev := -1
	for i, tier := range c.Tiers {
		sev := tier.Level.Severity()
		if sev >= LevelMedium.Severity() {
			return fmt.Errorf("tier %d has level %q, only levels above %q may be rule-based", i, tier.Level, LevelMedium)
		}
		if sev <= prev {
			return fmt.Errorf("tier %d level %q is out of order", i, tier.Level)
		}
		prev = sev

		if len(tier.Rules) == 0 {
			return fmt.Errorf("tier %q must contain at least one rule", tier.Level)
		}
		if err := validateRules(string(tier.Level), tier.Rules, ruleCodePattern); err != nil {
			return err
		}
	}

	if len(c.RiskFactors) == 0 {
		return fmt.Errorf("catalogue must define at least one risk factor")
	}
	if err := validateRules(GroupRiskFactor, c.RiskFactors, ruleCodePattern); err != nil {
		return err
	}

	if err := validateRules(GroupMetabolic, c.Metabolic, componentCodePattern); err != nil {
		return err
	}
	for _, r := range c.Metabolic {
		if !knownComponents[r.Code] {
			return fmt.Errorf("unknown metabolic component %q", r.Code)
		}
	}

	for _, m := range []MatchedRule{c.MultipleRiskFactors, c.SingleRiskFactor} {
		if err := validateCode(m.Code, ruleCodePattern); err != nil {
			return fmt.Errorf("invalid fallback rule code %q: %w", m.Code, err)
		}
		if strings.TrimSpace(m.Label) == "" {
			return fmt.Errorf("fallback rule %q has empty label", m.Code)
		}
	}

	for _, level := range levelOrder {
		if len(c.Recommendations[level]) == 0 {
			return fmt.Errorf("level %q has no recommendations", level)
		}
	}

	return nil
}

// validateRules checks codes, labels and expressions of one rule group
func validateRules(group string, rules []Rule, pattern *regexp.Regexp) error {
	seen := make(map[string]bool, len(rules))
	for _, r := range rules {
		if err := validateCode(r.Code, pattern); err != nil {
			return fmt.Errorf("invalid rule code %q in %s: %w", r.Code, group, err)
		}
		if seen[r.Code] {
			return fmt.Errorf("duplicate rule code %q in %s", r.Code, group)
		}
		seen[r.Code] = true

		if strings.TrimSpace(r.Label) == "" {
			return fmt.Errorf("rule %q in %s has empty label", r.Code, group)
		}
		if strings.TrimSpace(r.Expression) == "" {
			return fmt.Errorf("rule %q in %s has empty expression", r.Code, group)
		}
	}
	return nil
}

func validateCode(code string, pattern *regexp.Regexp) error {
	if len(code) == 0 {
		return fmt.Errorf("code cannot be empty")
	}
	if len(code) > maxCodeLength {
		return fmt.Errorf("code length %d exceeds maximum of %d characters", len(code), maxCodeLength)
	}
	if !pattern.MatchString(code) {
		return fmt.Errorf("must match pattern %s", pattern.String())
	}
	return nil
}
