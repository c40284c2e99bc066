// Package mapper turns the wizard's raw form state into the normalized
// rules.ClinicalInput the engine classifies.
package mapper

import (
	"time"

	"github.com/liamcoop/cvrisk/calc"
	"github.com/liamcoop/cvrisk/rules"
)

const yes = "yes"

// FormData mirrors the questionnaire sections. Yes/no answers are the strings "yes" and "no".
type FormData struct {
	BasicInfo   BasicInfo       `json:"basicInfo"`
	Conditions  Conditions      `json:"conditions"`
	RiskFactors RiskFactorsForm `json:"riskFactors"`
}

type BasicInfo struct {
	Gender        string `json:"gender"`
	GenderOther   string `json:"genderOther,omitempty"`
	BirthDate     string `json:"birthDate"`
	Nationality   string `json:"nationality,omitempty"`
	HeightCm      Number `json:"heightCm"`
	WeightKg      Number `json:"weightKg"`
	WaistCm       Number `json:"waistCm"`
	AgeYears      Number `json:"ageYears"`
	BMI           Number `json:"bmi"`
	SmokingStatus string `json:"smokingStatus"`
	FamilyHistory string `json:"familyHistory"`
}

type Conditions struct {
	Hypertension Hypertension `json:"hypertension"`
	Diabetes     Diabetes     `json:"diabetes"`
	Kidney       Kidney       `json:"kidney"`
}

type Hypertension struct {
	Status     string `json:"status"`
	Medication string `json:"medication"`
	Systolic   Number `json:"systolic"`
	Diastolic  Number `json:"diastolic"`
}

type Diabetes struct {
	Status             string `json:"status"`
	Medication         string `json:"medication"`
	FastingGlucoseMgDl Number `json:"fastingGlucoseMgDl"`
	HbA1cPercent       Number `json:"hba1cPercent"`
}

type Kidney struct {
	Status              string `json:"status"`
	SerumCreatinineMgDl Number `json:"serumCreatinineMgDl"`
	EGFR                Number `json:"egfr"`
}

type RiskFactorsForm struct {
	Dyslipidemia          Dyslipidemia          `json:"dyslipidemia"`
	CardiovascularHistory CardiovascularHistory `json:"cardiovascularHistory"`
}

type Dyslipidemia struct {
	Status           string `json:"status"`
	Medication       string `json:"medication"`
	LDLMgDl          Number `json:"ldlMgDl"`
	HDLMgDl          Number `json:"hdlMgDl"`
	TriglycerideMgDl Number `json:"triglycerideMgDl"`
}

type CardiovascularHistory struct {
	HasHistory                   string `json:"hasHistory"`
	HasSignificantPlaque         string `json:"hasSignificantPlaque"`
	HasCAD                       string `json:"hasCad"`
	MIWithin1Year                string `json:"miWithin1Year"`
	MIHistoryCount               Number `json:"miHistoryCount"`
	HasMultivesselObstruction    string `json:"hasMultivesselObstruction"`
	HasACSWithDiabetes           string `json:"hasAcsWithDiabetes"`
	HasPAD                       string `json:"hasPad"`
	HasCarotidStenosis           string `json:"hasCarotidStenosis"`
	HasStrokeWithAtherosclerosis string `json:"hasStrokeWithAtherosclerosis"`
	CACScore                     Number `json:"cacScore"`
	Notes                        string `json:"notes,omitempty"`
}

// Derived holds values computed from the form rather than entered directly
type Derived struct {
	AgeYears    *float64         `json:"ageYears"`
	BMI         *float64         `json:"bmi"`
	BMICategory calc.BMICategory `json:"bmiCategory"`
	EGFR        *calc.EGFRResult `json:"egfr"`
}

// birthDateLayouts are tried in order when reading BasicInfo.BirthDate
var birthDateLayouts = []string{time.DateOnly, time.RFC3339, "2006/01/02"}

// Derive computes age, BMI and eGFR from the form.
// An entered age wins over one computed from the birth date.
func Derive(form FormData, today time.Time) Derived {
	var d Derived
	info := form.BasicInfo

	if age := info.AgeYears.Float(); age != nil {
		d.AgeYears = age
	} else if birth, ok := parseDate(info.BirthDate); ok {
		if years, ok := calc.Age(birth, today); ok {
			v := float64(years)
			d.AgeYears = &v
		}
	}

	height, weight := info.HeightCm.Float(), info.WeightKg.Float()
	if height != nil && weight != nil {
		if bmi, ok := calc.BMI(*height, *weight); ok {
			d.BMI = &bmi
			d.BMICategory = calc.BMICategoryOf(bmi)
		}
	}

	scr := form.Conditions.Kidney.SerumCreatinineMgDl.Float()
	if scr != nil && d.AgeYears != nil && height != nil && weight != nil {
		res, ok := calc.EGFR(calc.EGFRInput{
			SerumCreatinineMgDl: *scr,
			Female:              info.Gender == "female",
			AgeYears:            *d.AgeYears,
			HeightCm:            *height,
			WeightKg:            *weight,
		})
		if ok {
			d.EGFR = &res
		}
	}

	return d
}

func parseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range birthDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// BuildInput normalizes the form into engine input. It never fails:
// unreadable numbers become absent values and unanswered questions count as "no".
func BuildInput(form FormData, today time.Time) rules.ClinicalInput {
	info := form.BasicInfo
	ht := form.Conditions.Hypertension
	dm := form.Conditions.Diabetes
	kidney := form.Conditions.Kidney
	lipid := form.RiskFactors.Dyslipidemia
	cv := form.RiskFactors.CardiovascularHistory

	derived := Derive(form, today)
	isMale := info.Gender == "male"

	in := rules.ClinicalInput{
		Age:    derived.AgeYears,
		IsMale: &isMale,

		FamilyHistoryEarlyCHD: info.FamilyHistory == yes,
		IsSmoker:              info.SmokingStatus == yes,

		HDLC:           lipid.HDLMgDl.Float(),
		LDLC:           lipid.LDLMgDl.Float(),
		WaistCm:        info.WaistCm.Float(),
		Systolic:       ht.Systolic.Float(),
		Diastolic:      ht.Diastolic.Float(),
		FastingGlucose: dm.FastingGlucoseMgDl.Float(),
		Triglyceride:   lipid.TriglycerideMgDl.Float(),
		EGFR:           kidney.EGFR.Float(),
		CACScore:       cv.CACScore.Int(),

		HypertensionMedication: ht.Medication == yes,
		DiabetesMedication:     dm.Medication == yes,
		LipidMedication:        lipid.Medication == yes,

		HasDiabetes: dm.Status == yes,

		HasASCVDHistory:              cv.HasHistory == yes,
		HasSignificantPlaque:         cv.HasSignificantPlaque == yes,
		HasCAD:                       cv.HasCAD == yes,
		MIWithin1Year:                cv.MIWithin1Year == yes,
		HasMultivesselObstruction:    cv.HasMultivesselObstruction == yes,
		HasACSWithDiabetes:           cv.HasACSWithDiabetes == yes,
		HasPAD:                       cv.HasPAD == yes,
		HasCarotidStenosis:           cv.HasCarotidStenosis == yes,
		HasStrokeWithAtherosclerosis: cv.HasStrokeWithAtherosclerosis == yes,
	}

	if in.EGFR == nil && derived.EGFR != nil {
		v := derived.EGFR.BSAAdjusted
		in.EGFR = &v
	}
	if n := cv.MIHistoryCount.Int(); n != nil && *n > 0 {
		in.MIHistoryCount = *n
	}

	in.HasHypertension = ht.Status == yes ||
		in.HypertensionMedication ||
		atLeast(in.Systolic, 130) ||
		atLeast(in.Diastolic, 85)

	in.HasCKD = kidney.Status == yes || below(in.EGFR, 60)

	count := float64(metabolicComponents(in, isMale))
	in.MetabolicSyndromeFactors = &count

	return in
}

// metabolicComponents counts the form's metabolic-syndrome criteria.
// The engine recomputes the same count; this one is reported with the input.
func metabolicComponents(in rules.ClinicalInput, isMale bool) int {
	waistLimit, hdlLimit := 80.0, 50.0
	if isMale {
		waistLimit, hdlLimit = 90, 40
	}

	n := 0
	for _, present := range []bool{
		atLeast(in.WaistCm, waistLimit),
		atLeast(in.Systolic, 130) || atLeast(in.Diastolic, 85) || in.HypertensionMedication,
		atLeast(in.FastingGlucose, 100) || in.DiabetesMedication,
		atLeast(in.Triglyceride, 150) || in.LipidMedication,
		below(in.HDLC, hdlLimit),
	} {
		if present {
			n++
		}
	}
	return n
}

func atLeast(v *float64, limit float64) bool {
	return v != nil && *v >= limit
}

func below(v *float64, limit float64) bool {
	return v != nil && *v < limit
}
