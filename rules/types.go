package rules

import "time"

// LevelCode identifies one of the six ordered risk levels
type LevelCode string

const (
	LevelExtremelyHigh LevelCode = "extremely_high"
	LevelVeryHigh      LevelCode = "very_high"
	LevelHigh          LevelCode = "high"
	LevelMedium        LevelCode = "medium"
	LevelLow           LevelCode = "low"
	LevelUndefined     LevelCode = "undefined"
)

// levelOrder lists level codes from most to least severe
var levelOrder = []LevelCode{
	LevelExtremelyHigh,
	LevelVeryHigh,
	LevelHigh,
	LevelMedium,
	LevelLow,
	LevelUndefined,
}

var levelLabels = map[LevelCode]string{
	LevelExtremelyHigh: "極高",
	LevelVeryHigh:      "非常高",
	LevelHigh:          "高",
	LevelMedium:        "中",
	LevelLow:           "低",
	LevelUndefined:     "未定義",
}

// Label returns the display label for the level
func (c LevelCode) Label() string {
	return levelLabels[c]
}

// Severity returns the position of the level in the ordering, 0 being the most severe.
// Unknown codes sort after undefined.
func (c LevelCode) Severity() int {
	for i, code := range levelOrder {
		if code == c {
			return i
		}
	}
	return len(levelOrder)
}

// Levels returns all level codes ordered from most to least severe
func Levels() []LevelCode {
	out := make([]LevelCode, len(levelOrder))
	copy(out, levelOrder)
	return out
}

// Rule is a single named predicate expressed in CEL over the `input` variable
type Rule struct {
	Code       string `json:"code" yaml:"code"`
	Label      string `json:"label" yaml:"label"`
	Expression string `json:"expression" yaml:"expression"`
}

// Tier groups the rules that promote a verdict to Level
type Tier struct {
	Level LevelCode `json:"level" yaml:"level"`
	Rules []Rule    `json:"rules" yaml:"rules"`
}

// MatchedRule is a rule that triggered the chosen level
type MatchedRule struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}

// RiskFactor reports whether one cardiovascular risk factor is present
type RiskFactor struct {
	Code    string `json:"code"`
	Label   string `json:"label"`
	Present bool   `json:"present"`
}

// MetabolicComponents holds the five metabolic-syndrome criteria
type MetabolicComponents struct {
	AbdominalObesity      bool `json:"abdominalObesity"`
	ElevatedBloodPressure bool `json:"elevatedBloodPressure"`
	ElevatedGlucose       bool `json:"elevatedGlucose"`
	ElevatedTriglyceride  bool `json:"elevatedTriglyceride"`
	LowHDL                bool `json:"lowHdl"`
}

// Count returns the number of satisfied components
func (m MetabolicComponents) Count() int {
	n := 0
	for _, v := range []bool{m.AbdominalObesity, m.ElevatedBloodPressure, m.ElevatedGlucose, m.ElevatedTriglyceride, m.LowHDL} {
		if v {
			n++
		}
	}
	return n
}

// MetabolicSyndrome is the component tally reported with every verdict
type MetabolicSyndrome struct {
	Count      int                 `json:"count"`
	Components MetabolicComponents `json:"components"`
}

// Verdict is the outcome of a single evaluation.
// A Verdict is built fresh for each call and shares no memory with the engine.
type Verdict struct {
	Level             string            `json:"level"`
	LevelCode         LevelCode         `json:"levelCode"`
	MatchedRules      []MatchedRule     `json:"matchedRules"`
	RiskFactorCount   int               `json:"riskFactorCount"`
	RiskFactors       []RiskFactor      `json:"riskFactors"`
	MetabolicSyndrome MetabolicSyndrome `json:"metabolicSyndrome"`
	Recommendations   []string          `json:"recommendations"`
	EvaluatedAt       time.Time         `json:"evaluatedAt"`
}

// Rule groups reported by Explain
const (
	GroupMetabolic  = "metabolic"
	GroupRiskFactor = "risk_factor"
)

// EvaluationResult contains the outcome of evaluating one rule during Explain
type EvaluationResult struct {
	Group     string `json:"group"`
	RuleCode  string `json:"ruleCode"`
	RuleLabel string `json:"ruleLabel"`
	Matched   bool   `json:"matched"`
	Error     string `json:"error,omitempty"`
}
