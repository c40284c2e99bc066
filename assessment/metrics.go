package assessment

import (
	"github.com/liamcoop/cvrisk/rules"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	assessmentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cvrisk_assessments_total",
		Help: "Total assessments by risk level",
	}, []string{"level"})

	assessmentDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cvrisk_assessment_duration_seconds",
		Help:    "Rule evaluation duration per assessment",
		Buckets: []float64{0.00001, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
	})

	validationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cvrisk_assessment_validation_failures_total",
		Help: "Inputs rejected before evaluation",
	})

	ruleMatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cvrisk_rule_matches_total",
		Help: "Rules reported as matched in a verdict",
	}, []string{"rule"})
)

func observeVerdict(v *rules.Verdict, seconds float64) {
	assessmentDuration.Observe(seconds)
	assessmentsTotal.WithLabelValues(string(v.LevelCode)).Inc()
	for _, m := range v.MatchedRules {
		ruleMatches.WithLabelValues(m.Code).Inc()
	}
}
