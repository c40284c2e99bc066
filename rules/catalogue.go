package rules

// Metabolic component codes. Each maps onto a MetabolicComponents field.
const (
	ComponentAbdominalObesity      = "abdominalObesity"
	ComponentElevatedBloodPressure = "elevatedBloodPressure"
	ComponentElevatedGlucose       = "elevatedGlucose"
	ComponentElevatedTriglyceride  = "elevatedTriglyceride"
	ComponentLowHDL                = "lowHdl"
)

// Catalogue is the full decision table evaluated by the Engine
type Catalogue struct {
	// Tiers are checked in order; the first tier with a match decides the level.
	Tiers []Tier `json:"tiers" yaml:"tiers"`

	// RiskFactors are always evaluated and reported in declared order.
	RiskFactors []Rule `json:"riskFactors" yaml:"riskFactors"`

	// Metabolic are the metabolic-syndrome components, evaluated before RiskFactors.
	Metabolic []Rule `json:"metabolic" yaml:"metabolic"`

	// MultipleRiskFactors and SingleRiskFactor are reported for medium and low verdicts.
	MultipleRiskFactors MatchedRule `json:"multipleRiskFactors" yaml:"multipleRiskFactors"`
	SingleRiskFactor    MatchedRule `json:"singleRiskFactor" yaml:"singleRiskFactor"`

	Recommendations map[LevelCode][]string `json:"recommendations" yaml:"recommendations"`
}

// DefaultCatalogue returns a fresh copy of the built-in cardiovascular decision table
func DefaultCatalogue() Catalogue {
	return Catalogue{
		Tiers: []Tier{
			{
				Level: LevelExtremelyHigh,
				Rules: []Rule{
					{Code: "cad_recent_mi", Label: "冠狀動脈疾病且過去一年曾發生心肌梗塞",
						Expression: `input.hasCad && input.miWithin1Year`},
					{Code: "cad_multiple_mi", Label: "冠狀動脈疾病且累積兩次以上心肌梗塞",
						Expression: `input.hasCad && input.miHistoryCount >= 2`},
					{Code: "cad_multivessel", Label: "冠狀動脈疾病且存在多支血管阻塞",
						Expression: `input.hasCad && input.hasMultivesselObstruction`},
					{Code: "cad_acs_with_diabetes", Label: "冠狀動脈疾病且曾有急性冠心症合併糖尿病",
						Expression: `input.hasCad && input.hasAcsWithDiabetes`},
					{Code: "cad_with_pad_or_carotid", Label: "冠狀動脈疾病且合併周邊動脈疾病或頸動脈狹窄",
						Expression: `input.hasCad && (input.hasPad || input.hasCarotidStenosis)`},
					{Code: "pad_with_carotid", Label: "周邊動脈疾病且合併頸動脈狹窄",
						Expression: `input.hasPad && input.hasCarotidStenosis`},
					{Code: "stroke_with_atherosclerosis", Label: "缺血性中風 / TIA 並伴隨動脈硬化病史",
						Expression: `input.hasStrokeWithAtherosclerosis`},
				},
			},
			{
				Level: LevelVeryHigh,
				Rules: []Rule{
					{Code: "ascvd_history", Label: "臨床確診動脈硬化心血管疾病 (ASCVD)",
						Expression: `input.hasAscvdHistory`},
					{Code: "significant_plaque", Label: "影像顯示顯著斑塊狹窄（≥50%）",
						Expression: `input.hasSignificantPlaque`},
				},
			},
			{
				Level: LevelHigh,
				Rules: []Rule{
					{Code: "diabetes", Label: "已診斷糖尿病",
						Expression: `input.hasDiabetes`},
					{Code: "ckd", Label: "慢性腎臟病 (含 eGFR < 60 或 UACR ≥ 30)",
						Expression: `input.hasCkd`},
					{Code: "ldl_190", Label: "低密度脂蛋白膽固醇 (LDL-C) ≥ 190 mg/dL",
						Expression: `has(input.ldlC) && input.ldlC >= 190.0`},
					{Code: "cac_400", Label: "冠狀動脈鈣化分數 (CAC) ≥ 400",
						Expression: `has(input.cacScore) && input.cacScore >= 400`},
				},
			},
		},
		RiskFactors: []Rule{
			{Code: "hypertension", Label: "高血壓",
				Expression: `input.hasHypertension`},
			{Code: "age", Label: "年齡達風險閾值",
				Expression: `has(input.age) && input.age >= (input.isMale ? 45.0 : 55.0)`},
			{Code: "family_history", Label: "早發性冠心病家族史",
				Expression: `input.familyHistoryEarlyChd`},
			{Code: "low_hdl", Label: "HDL-C 偏低",
				Expression: `has(input.hdlC) && input.hdlC < (input.isMale ? 40.0 : 50.0)`},
			{Code: "smoking", Label: "抽菸",
				Expression: `input.isSmoker`},
			{Code: "metabolic_syndrome", Label: "代謝症候群 (≥3 項構成條件)",
				Expression: `input.metabolicComponentCount >= 3`},
		},
		Metabolic: []Rule{
			{Code: ComponentAbdominalObesity, Label: "腹部肥胖",
				Expression: `has(input.waistCm) && input.waistCm >= (input.isMale ? 90.0 : 80.0)`},
			{Code: ComponentElevatedBloodPressure, Label: "血壓偏高",
				Expression: `(has(input.systolic) && input.systolic >= 130.0) || (has(input.diastolic) && input.diastolic >= 85.0) || input.hypertensionMedication`},
			{Code: ComponentElevatedGlucose, Label: "空腹血糖偏高",
				Expression: `(has(input.fastingGlucose) && input.fastingGlucose >= 100.0) || input.diabetesMedication`},
			{Code: ComponentElevatedTriglyceride, Label: "三酸甘油酯偏高",
				Expression: `(has(input.triglyceride) && input.triglyceride >= 150.0) || input.lipidMedication`},
			{Code: ComponentLowHDL, Label: "HDL-C 偏低",
				Expression: `has(input.hdlC) && input.hdlC < (input.isMale ? 40.0 : 50.0)`},
		},
		MultipleRiskFactors: MatchedRule{Code: "risk_factor_count", Label: "心血管危險因子達兩項以上"},
		SingleRiskFactor:    MatchedRule{Code: "single_risk_factor", Label: "心血管危險因子 1 項"},
		Recommendations: map[LevelCode][]string{
			LevelExtremelyHigh: {
				"儘速與心血管專科醫師討論侵入性治療與藥物調整策略",
				"確認雙重抗血小板及強效降脂治療是否到位",
				"規劃密集的生活型態與危險因子管理，並安排密集追蹤",
			},
			LevelVeryHigh: {
				"與主治醫師檢視 ASCVD 的二級預防用藥與檢查計畫",
				"評估是否需要進一步影像檢查或血管功能測試",
				"維持每 3-6 個月一次的多危險因子監測 (血壓 / 血脂 / 血糖)",
			},
			LevelHigh: {
				"設定血脂與血糖控制目標，必要時調整藥物劑量或種類",
				"強化生活型態介入：飲食、運動、體重管理",
				"每 6 個月追蹤腎功能、血脂與代謝指標",
			},
			LevelMedium: {
				"持續規律運動與均衡飲食，關注腰圍與體重變化",
				"每年檢查血壓、血脂、血糖，必要時諮詢專業醫療建議",
			},
			LevelLow: {
				"維持健康生活型態，避免菸酒與過度飲食",
				"每 1-2 年追蹤血壓與基本血液檢查以確保穩定",
			},
			LevelUndefined: {
				"資料不足以評估，請補充必要檢測或臨床資訊後再試",
			},
		},
	}
}

// clone returns a deep copy so callers cannot mutate an engine's table
func (c Catalogue) clone() Catalogue {
	out := c
	out.Tiers = make([]Tier, len(c.Tiers))
	for i, t := range c.Tiers {
		out.Tiers[i] = Tier{Level: t.Level, Rules: append([]Rule(nil), t.Rules...)}
	}
	out.RiskFactors = append([]Rule(nil), c.RiskFactors...)
	out.Metabolic = append([]Rule(nil), c.Metabolic...)
	out.Recommendations = make(map[LevelCode][]string, len(c.Recommendations))
	for level, recs := range c.Recommendations {
		out.Recommendations[level] = append([]string(nil), recs...)
	}
	return out
}
