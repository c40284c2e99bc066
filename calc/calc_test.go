package calc

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestAge(t *testing.T) {
	today := date(2025, time.January, 15)

	testCases := []struct {
		name   string
		birth  time.Time
		want   int
		wantOK bool
	}{
		{"Birthday later in year", date(1990, time.June, 20), 34, true},
		{"Birthday passed", date(1990, time.January, 10), 35, true},
		{"Birthday today", date(1990, time.January, 15), 35, true},
		{"Day before birthday", date(1990, time.January, 16), 34, true},
		{"Born today", today, 0, true},
		{"Future date", date(3025, time.January, 1), 0, false},
		{"Zero date", time.Time{}, 0, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := Age(tc.birth, today)
			assert.Equal(t, tc.wantOK, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestBMI(t *testing.T) {
	testCases := []struct {
		name   string
		height float64
		weight float64
		want   float64
		wantOK bool
	}{
		{"Typical", 170, 65, 22.5, true},
		{"Rounded", 180, 72, 22.2, true},
		{"Zero height", 0, 60, 0, false},
		{"Zero weight", 170, 0, 0, false},
		{"Negative height", -170, 60, 0, false},
		{"NaN weight", 170, math.NaN(), 0, false},
		{"Infinite height", math.Inf(1), 60, 0, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := BMI(tc.height, tc.weight)
			assert.Equal(t, tc.wantOK, ok)
			assert.InDelta(t, tc.want, got, 1e-9)
		})
	}
}

func TestBMICategoryOf(t *testing.T) {
	testCases := []struct {
		bmi       float64
		want      BMICategory
		wantLabel string
	}{
		{17, BMIUnderweight, "過輕"},
		{18.5, BMINormal, "標準"},
		{22, BMINormal, "標準"},
		{24, BMIOverweight, "過重"},
		{25, BMIOverweight, "過重"},
		{27, BMIObese, "肥胖"},
		{30, BMIObese, "肥胖"},
		{0, "", ""},
		{-5, "", ""},
		{math.NaN(), "", ""},
	}

	for _, tc := range testCases {
		got := BMICategoryOf(tc.bmi)
		assert.Equal(t, tc.want, got, "bmi %v", tc.bmi)
		assert.Equal(t, tc.wantLabel, got.Label(), "bmi %v", tc.bmi)
	}
}

func TestEGFR(t *testing.T) {
	t.Run("Male", func(t *testing.T) {
		got, ok := EGFR(EGFRInput{SerumCreatinineMgDl: 1.1, AgeYears: 45, HeightCm: 175, WeightKg: 72})
		assert.True(t, ok)
		assert.InDelta(t, 84.365, got.GFR, 0.01)
		assert.InDelta(t, 1.870, got.BSA, 0.001)
		assert.InDelta(t, 91.21, got.BSAAdjusted, 0.05)
	})

	t.Run("Female below kappa", func(t *testing.T) {
		got, ok := EGFR(EGFRInput{SerumCreatinineMgDl: 0.6, Female: true, AgeYears: 40, HeightCm: 162, WeightKg: 55})
		assert.True(t, ok)
		assert.InDelta(t, 116.30, got.GFR, 0.01)
		assert.InDelta(t, 106.03, got.BSAAdjusted, 0.05)
	})

	t.Run("Higher creatinine lowers eGFR", func(t *testing.T) {
		low, _ := EGFR(EGFRInput{SerumCreatinineMgDl: 1.0, AgeYears: 60, HeightCm: 170, WeightKg: 70})
		high, _ := EGFR(EGFRInput{SerumCreatinineMgDl: 2.5, AgeYears: 60, HeightCm: 170, WeightKg: 70})
		assert.Less(t, high.GFR, low.GFR)
	})

	invalid := []struct {
		name string
		in   EGFRInput
	}{
		{"Missing creatinine", EGFRInput{AgeYears: 40, HeightCm: 162, WeightKg: 55}},
		{"Negative creatinine", EGFRInput{SerumCreatinineMgDl: -1, AgeYears: 40, HeightCm: 162, WeightKg: 55}},
		{"Missing age", EGFRInput{SerumCreatinineMgDl: 1, HeightCm: 162, WeightKg: 55}},
		{"NaN height", EGFRInput{SerumCreatinineMgDl: 1, AgeYears: 40, HeightCm: math.NaN(), WeightKg: 55}},
		{"Infinite weight", EGFRInput{SerumCreatinineMgDl: 1, AgeYears: 40, HeightCm: 162, WeightKg: math.Inf(1)}},
	}

	for _, tc := range invalid {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := EGFR(tc.in)
			assert.False(t, ok)
			assert.Equal(t, EGFRResult{}, got)
		})
	}
}
