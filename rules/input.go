package rules

import "math"

// ClinicalInput is the normalized record the engine classifies.
// Nil numerics and absent flags never satisfy a predicate.
// The validate tags describe the accepted ranges at the service boundary; the engine ignores them.
type ClinicalInput struct {
	Age    *float64 `json:"age" validate:"omitempty,gte=0,lte=130"`
	IsMale *bool    `json:"isMale"`

	HasHypertension bool `json:"hasHypertension"`
	HasDiabetes     bool `json:"hasDiabetes"`
	HasCKD          bool `json:"hasCkd"`

	FamilyHistoryEarlyCHD bool `json:"familyHistoryEarlyChd"`
	IsSmoker              bool `json:"isSmoker"`

	HDLC           *float64 `json:"hdlC" validate:"omitempty,gte=0,lte=200"`
	LDLC           *float64 `json:"ldlC" validate:"omitempty,gte=0,lte=400"`
	WaistCm        *float64 `json:"waistCm" validate:"omitempty,gte=0,lte=200"`
	Systolic       *float64 `json:"systolic" validate:"omitempty,gte=0,lte=300"`
	Diastolic      *float64 `json:"diastolic" validate:"omitempty,gte=0,lte=200"`
	FastingGlucose *float64 `json:"fastingGlucose" validate:"omitempty,gte=0,lte=1000"`
	Triglyceride   *float64 `json:"triglyceride" validate:"omitempty,gte=0,lte=2000"`
	EGFR           *float64 `json:"egfr" validate:"omitempty,gte=0,lte=200"`
	CACScore       *int64   `json:"cacScore" validate:"omitempty,gte=0"`

	HypertensionMedication bool `json:"hypertensionMedication"`
	DiabetesMedication     bool `json:"diabetesMedication"`
	LipidMedication        bool `json:"lipidMedication"`

	HasASCVDHistory              bool `json:"hasAscvdHistory"`
	HasSignificantPlaque         bool `json:"hasSignificantPlaque"`
	HasCAD                       bool `json:"hasCad"`
	MIWithin1Year                bool `json:"miWithin1Year"`
	HasMultivesselObstruction    bool `json:"hasMultivesselObstruction"`
	HasACSWithDiabetes           bool `json:"hasAcsWithDiabetes"`
	HasPAD                       bool `json:"hasPad"`
	HasCarotidStenosis           bool `json:"hasCarotidStenosis"`
	HasStrokeWithAtherosclerosis bool `json:"hasStrokeWithAtherosclerosis"`

	MIHistoryCount int64 `json:"miHistoryCount" validate:"gte=0"`

	// MetabolicSyndromeFactors is informational. The engine always recomputes the count.
	MetabolicSyndromeFactors *float64 `json:"metabolicSyndromeFactors" validate:"omitempty,gte=0,lte=5"`
}

// Facts keys shared by the catalogue expressions
const (
	factInput                   = "input"
	factMetabolicComponentCount = "metabolicComponentCount"
)

// facts flattens the input into the map bound to the CEL `input` variable.
// Flags are always present; numerics only when set and finite, so expressions guard them with has().
func (in ClinicalInput) facts() map[string]any {
	f := map[string]any{
		"isMale":                       in.IsMale != nil && *in.IsMale,
		"hasHypertension":              in.HasHypertension,
		"hasDiabetes":                  in.HasDiabetes,
		"hasCkd":                       in.HasCKD,
		"familyHistoryEarlyChd":        in.FamilyHistoryEarlyCHD,
		"isSmoker":                     in.IsSmoker,
		"hypertensionMedication":       in.HypertensionMedication,
		"diabetesMedication":           in.DiabetesMedication,
		"lipidMedication":              in.LipidMedication,
		"hasAscvdHistory":              in.HasASCVDHistory,
		"hasSignificantPlaque":         in.HasSignificantPlaque,
		"hasCad":                       in.HasCAD,
		"miWithin1Year":                in.MIWithin1Year,
		"hasMultivesselObstruction":    in.HasMultivesselObstruction,
		"hasAcsWithDiabetes":           in.HasACSWithDiabetes,
		"hasPad":                       in.HasPAD,
		"hasCarotidStenosis":           in.HasCarotidStenosis,
		"hasStrokeWithAtherosclerosis": in.HasStrokeWithAtherosclerosis,
		"miHistoryCount":               in.MIHistoryCount,
	}

	setFinite(f, "age", in.Age)
	setFinite(f, "hdlC", in.HDLC)
	setFinite(f, "ldlC", in.LDLC)
	setFinite(f, "waistCm", in.WaistCm)
	setFinite(f, "systolic", in.Systolic)
	setFinite(f, "diastolic", in.Diastolic)
	setFinite(f, "fastingGlucose", in.FastingGlucose)
	setFinite(f, "triglyceride", in.Triglyceride)
	setFinite(f, "egfr", in.EGFR)
	if in.CACScore != nil {
		f["cacScore"] = *in.CACScore
	}

	return f
}

func setFinite(f map[string]any, key string, v *float64) {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return
	}
	f[key] = *v
}
