package main

import (
	"github.com/google/uuid"
	"github.com/liamcoop/cvrisk/assessment"
	"github.com/liamcoop/cvrisk/rules"
)

// API Request and Response Models with Swagger annotations

// HealthResponse reports store availability
type HealthResponse struct {
	Status   string `json:"status" example:"healthy"`
	Database bool   `json:"database" example:"false"`
	Error    string `json:"error,omitempty"`
} // @name HealthResponse

// BatchRequest is the body of a batch assessment
type BatchRequest struct {
	Inputs []rules.ClinicalInput `json:"inputs"`
} // @name BatchRequest

// BatchResult pairs a stored assessment ID with its verdict
type BatchResult struct {
	ID      uuid.UUID      `json:"id" example:"123e4567-e89b-12d3-a456-426614174000"`
	Verdict *rules.Verdict `json:"verdict"`
} // @name BatchResult

// BatchResponse lists results in request order
type BatchResponse struct {
	Results []BatchResult `json:"results"`
} // @name BatchResponse

// ExplainResponse is the per-rule evaluation trace
type ExplainResponse struct {
	Results []rules.EvaluationResult `json:"results"`
} // @name ExplainResponse

// RecordsResponse lists stored assessments, newest first
type RecordsResponse struct {
	Assessments []*assessment.Record `json:"assessments"`
} // @name RecordsResponse
