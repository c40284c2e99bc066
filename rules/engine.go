package rules

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/cel-go/cel"
)

// costLimit bounds a single rule evaluation. Catalogue rules are a handful of comparisons.
const costLimit = 10000

type compiledRule struct {
	Rule
	prog cel.Program
}

type compiledTier struct {
	level LevelCode
	rules []compiledRule
}

// Engine classifies a ClinicalInput against a compiled catalogue.
// All programs are compiled in NewEngine and never modified afterwards,
// so an Engine is safe for concurrent use without locking.
type Engine struct {
	env         *cel.Env
	catalogue   Catalogue
	tiers       []compiledTier
	riskFactors []compiledRule
	metabolic   []compiledRule
	now         func() time.Time
	log         *slog.Logger
}

// Option configures an Engine
type Option func(*Engine)

// WithCatalogue replaces the built-in decision table
func WithCatalogue(c Catalogue) Option {
	return func(en *Engine) {
		en.catalogue = c.clone()
	}
}

// WithClock sets the source of Verdict.EvaluatedAt
func WithClock(now func() time.Time) Option {
	return func(en *Engine) {
		en.now = now
	}
}

// WithLogger sets the logger used to report rule evaluation failures. A nil logger is ignored.
func WithLogger(l *slog.Logger) Option {
	return func(en *Engine) {
		if l != nil {
			en.log = l
		}
	}
}

// NewEnv creates the CEL environment rule expressions are compiled in.
// Facts are exposed as a single map-typed `input` variable.
func NewEnv() (*cel.Env, error) {
	env, err := cel.NewEnv(
		cel.Variable(factInput, cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return env, nil
}

// NewEngine validates and compiles the catalogue.
// The built-in catalogue is used unless WithCatalogue is given.
func NewEngine(opts ...Option) (*Engine, error) {
	env, err := NewEnv()
	if err != nil {
		return nil, err
	}

	en := &Engine{
		env:       env,
		catalogue: DefaultCatalogue(),
		now:       time.Now,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(en)
	}

	if err := ValidateCatalogue(en.catalogue); err != nil {
		return nil, fmt.Errorf("invalid catalogue: %w", err)
	}

	if en.metabolic, err = en.compileAll(en.catalogue.Metabolic); err != nil {
		return nil, err
	}
	if en.riskFactors, err = en.compileAll(en.catalogue.RiskFactors); err != nil {
		return nil, err
	}
	for _, tier := range en.catalogue.Tiers {
		rules, err := en.compileAll(tier.Rules)
		if err != nil {
			return nil, err
		}
		en.tiers = append(en.tiers, compiledTier{level: tier.Level, rules: rules})
	}

	return en, nil
}

func (en *Engine) compileAll(rules []Rule) ([]compiledRule, error) {
	out := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		prog, err := en.compile(r.Expression)
		if err != nil {
			return nil, fmt.Errorf("failed to compile rule %s: %w", r.Code, err)
		}
		out = append(out, compiledRule{Rule: r, prog: prog})
	}
	return out, nil
}

// compile type-checks an expression and builds its program.
// Expressions must produce a bool; dyn is accepted since map selections are dynamic.
func (en *Engine) compile(expression string) (cel.Program, error) {
	ast, issues := en.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile error: %w", issues.Err())
	}

	out := ast.OutputType()
	if !out.IsExactType(cel.BoolType) && !out.IsExactType(cel.DynType) {
		return nil, fmt.Errorf("expression must evaluate to bool, got %s", out)
	}

	prog, err := en.env.Program(ast, cel.CostLimit(costLimit))
	if err != nil {
		return nil, fmt.Errorf("program creation error: %w", err)
	}
	return prog, nil
}

// Catalogue returns a copy of the decision table the engine was built with
func (en *Engine) Catalogue() Catalogue {
	return en.catalogue.clone()
}

// match evaluates one rule. Non-boolean results count as not matched.
func (en *Engine) match(r compiledRule, facts map[string]any) (bool, error) {
	out, _, err := r.prog.Eval(map[string]any{factInput: facts})
	if err != nil {
		return false, err
	}
	matched, ok := out.Value().(bool)
	return ok && matched, nil
}

// matchQuiet is match for the verdict path, where a failing rule is logged and treated as not met
func (en *Engine) matchQuiet(r compiledRule, facts map[string]any) bool {
	matched, err := en.match(r, facts)
	if err != nil {
		en.log.Warn("rule evaluation failed", "rule", r.Code, "error", err)
		return false
	}
	return matched
}

// Evaluate classifies the input. It never fails: rules that cannot be
// evaluated against missing or malformed data are treated as not met.
func (en *Engine) Evaluate(in ClinicalInput) *Verdict {
	facts := in.facts()

	metabolic := en.metabolicSyndrome(facts)
	facts[factMetabolicComponentCount] = int64(metabolic.Count)

	factors := make([]RiskFactor, 0, len(en.riskFactors))
	factorCount := 0
	for _, r := range en.riskFactors {
		present := en.matchQuiet(r, facts)
		if present {
			factorCount++
		}
		factors = append(factors, RiskFactor{Code: r.Code, Label: r.Label, Present: present})
	}

	for _, tier := range en.tiers {
		var matched []MatchedRule
		for _, r := range tier.rules {
			if en.matchQuiet(r, facts) {
				matched = append(matched, MatchedRule{Code: r.Code, Label: r.Label})
			}
		}
		if len(matched) > 0 {
			return en.verdict(tier.level, matched, factors, factorCount, metabolic)
		}
	}

	switch {
	case factorCount >= 2:
		return en.verdict(LevelMedium, []MatchedRule{en.catalogue.MultipleRiskFactors}, factors, factorCount, metabolic)
	case factorCount == 1:
		return en.verdict(LevelLow, []MatchedRule{en.catalogue.SingleRiskFactor}, factors, factorCount, metabolic)
	default:
		return en.verdict(LevelUndefined, []MatchedRule{}, factors, factorCount, metabolic)
	}
}

func (en *Engine) metabolicSyndrome(facts map[string]any) MetabolicSyndrome {
	var c MetabolicComponents
	for _, r := range en.metabolic {
		setComponent(&c, r.Code, en.matchQuiet(r, facts))
	}
	return MetabolicSyndrome{Count: c.Count(), Components: c}
}

func setComponent(c *MetabolicComponents, code string, v bool) {
	switch code {
	case ComponentAbdominalObesity:
		c.AbdominalObesity = v
	case ComponentElevatedBloodPressure:
		c.ElevatedBloodPressure = v
	case ComponentElevatedGlucose:
		c.ElevatedGlucose = v
	case ComponentElevatedTriglyceride:
		c.ElevatedTriglyceride = v
	case ComponentLowHDL:
		c.LowHDL = v
	}
}

func (en *Engine) verdict(level LevelCode, matched []MatchedRule, factors []RiskFactor, factorCount int, metabolic MetabolicSyndrome) *Verdict {
	return &Verdict{
		Level:             level.Label(),
		LevelCode:         level,
		MatchedRules:      matched,
		RiskFactorCount:   factorCount,
		RiskFactors:       factors,
		MetabolicSyndrome: metabolic,
		Recommendations:   append([]string{}, en.catalogue.Recommendations[level]...),
		EvaluatedAt:       en.now(),
	}
}

// Explain evaluates every rule of every group without stopping at the first
// matching tier. Evaluation errors are reported per rule rather than returned.
func (en *Engine) Explain(in ClinicalInput) []EvaluationResult {
	facts := in.facts()
	size := len(en.metabolic) + len(en.riskFactors)
	for _, tier := range en.tiers {
		size += len(tier.rules)
	}
	results := make([]EvaluationResult, 0, size)

	var components MetabolicComponents
	for _, r := range en.metabolic {
		res := en.explain(GroupMetabolic, r, facts)
		setComponent(&components, r.Code, res.Matched)
		results = append(results, res)
	}
	facts[factMetabolicComponentCount] = int64(components.Count())

	for _, r := range en.riskFactors {
		results = append(results, en.explain(GroupRiskFactor, r, facts))
	}

	for _, tier := range en.tiers {
		for _, r := range tier.rules {
			results = append(results, en.explain(string(tier.level), r, facts))
		}
	}

	return results
}

func (en *Engine) explain(group string, r compiledRule, facts map[string]any) EvaluationResult {
	res := EvaluationResult{Group: group, RuleCode: r.Code, RuleLabel: r.Label}
	matched, err := en.match(r, facts)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Matched = matched
	return res
}
