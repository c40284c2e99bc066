// Package calc derives clinical values collected alongside the risk inputs:
// age from a birth date, BMI and its category, and eGFR from serum creatinine.
package calc

import (
	"math"
	"time"
)

// Age returns whole years between birth and today.
// ok is false for a zero or future birth date.
func Age(birth, today time.Time) (years int, ok bool) {
	if birth.IsZero() || birth.After(today) {
		return 0, false
	}

	years = today.Year() - birth.Year()
	if today.Month() < birth.Month() || (today.Month() == birth.Month() && today.Day() < birth.Day()) {
		years--
	}
	if years < 0 {
		return 0, false
	}
	return years, true
}

// BMI returns weight / height² rounded to one decimal
func BMI(heightCm, weightKg float64) (float64, bool) {
	if !positive(heightCm) || !positive(weightKg) {
		return 0, false
	}
	heightM := heightCm / 100
	return math.Round(weightKg/(heightM*heightM)*10) / 10, true
}

// BMICategory is an adult BMI band
type BMICategory string

const (
	BMIUnderweight BMICategory = "underweight"
	BMINormal      BMICategory = "normal"
	BMIOverweight  BMICategory = "overweight"
	BMIObese       BMICategory = "obese"
)

var bmiLabels = map[BMICategory]string{
	BMIUnderweight: "過輕",
	BMINormal:      "標準",
	BMIOverweight:  "過重",
	BMIObese:       "肥胖",
}

// Label returns the display label, empty for an unknown category
func (c BMICategory) Label() string {
	return bmiLabels[c]
}

// BMICategoryOf bands a BMI value. Non-finite or non-positive values have no category.
func BMICategoryOf(bmi float64) BMICategory {
	switch {
	case !positive(bmi):
		return ""
	case bmi < 18.5:
		return BMIUnderweight
	case bmi < 24:
		return BMINormal
	case bmi < 27:
		return BMIOverweight
	default:
		return BMIObese
	}
}

// EGFRInput holds the measurements eGFR is estimated from
type EGFRInput struct {
	SerumCreatinineMgDl float64
	Female              bool
	AgeYears            float64
	HeightCm            float64
	WeightKg            float64
}

// EGFRResult is the CKD-EPI 2021 estimate with its body-surface-area adjustment
type EGFRResult struct {
	GFR         float64 `json:"gfr"`
	BSA         float64 `json:"bsa"`
	BSAAdjusted float64 `json:"egfrBsaAdjusted"`
}

// EGFR estimates glomerular filtration with the race-free CKD-EPI 2021 equation
// and scales it by DuBois body surface area over 1.73 m².
func EGFR(in EGFRInput) (EGFRResult, bool) {
	if !positive(in.SerumCreatinineMgDl) || !positive(in.AgeYears) || !finite(in.HeightCm) || !finite(in.WeightKg) {
		return EGFRResult{}, false
	}

	kappa, alpha, sexFactor := 0.9, -0.302, 1.0
	if in.Female {
		kappa, alpha, sexFactor = 0.7, -0.241, 1.012
	}
	ratio := in.SerumCreatinineMgDl / kappa

	gfr := 142 *
		math.Pow(math.Min(ratio, 1), alpha) *
		math.Pow(math.Max(ratio, 1), -1.2) *
		math.Pow(0.9938, in.AgeYears) *
		sexFactor

	bsa := 0.007184 * math.Pow(in.HeightCm, 0.725) * math.Pow(in.WeightKg, 0.425)

	if !finite(gfr) || !finite(bsa) {
		return EGFRResult{}, false
	}

	return EGFRResult{GFR: gfr, BSA: bsa, BSAAdjusted: gfr * bsa / 1.73}, true
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func positive(v float64) bool {
	return finite(v) && v > 0
}
