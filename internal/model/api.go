package model

import (
	"fmt"
	"time"
)

// Limits applied to submission requests before a job is started. They bound
// the optimizer's input size, not the layout geometry.
const (
	MaxCompanyNameLen  = 200
	MaxCompaniesPerRun = 2000
)

// ValidateCompanies checks the company list of a submission request.
// Duplicate names are accepted; only the spreadsheet adapter de-duplicates.
func ValidateCompanies(companies []string) error {
	if len(companies) == 0 {
		return fmt.Errorf("company list is empty")
	}
	if len(companies) > MaxCompaniesPerRun {
		return fmt.Errorf("company list exceeds maximum of %d entries", MaxCompaniesPerRun)
	}
	for i, c := range companies {
		if c == "" {
			return fmt.Errorf("companies[%d] is empty", i)
		}
		if len(c) > MaxCompanyNameLen {
			return fmt.Errorf("companies[%d] exceeds maximum length of %d characters", i, MaxCompanyNameLen)
		}
	}
	return nil
}

// APIResponse is the standard response envelope for all HTTP API responses.
type APIResponse struct {
	Data any          `json:"data,omitempty"`
	Meta ResponseMeta `json:"meta"`
}

// APIError is the standard error response envelope.
type APIError struct {
	Error ErrorDetail  `json:"error"`
	Meta  ResponseMeta `json:"meta"`
}

// ResponseMeta contains request metadata included in every response.
type ResponseMeta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorDetail describes an API error.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorCode constants for standard API error codes.
const (
	ErrCodeInvalidInput     = "INVALID_INPUT"
	ErrCodeJobFailed        = "JOB_FAILED"
	ErrCodeJobResultInvalid = "JOB_RESULT_INVALID"
	ErrCodeBusy             = "BUSY"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeInternalError    = "INTERNAL_ERROR"
)

// OptimizeResponse is the response body for POST /v1/optimize.
// Stdout and Stderr carry the job's raw diagnostic streams verbatim for
// troubleshooting display.
type OptimizeResponse struct {
	Run    Run    `json:"run"`
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`
}

// RunsResponse is the response body for GET /v1/runs. Remaining and
// HasComparisonData are derived views recomputed from the current registry.
type RunsResponse struct {
	Runs              []Run    `json:"runs"`
	Remaining         []string `json:"remaining"`
	HasComparisonData bool     `json:"has_comparison_data"`
}

// ComparisonResponse is the response body for GET /v1/comparison.
// Insufficient is true when fewer than two runs exist; Pair is empty then.
type ComparisonResponse struct {
	Insufficient bool  `json:"insufficient"`
	Pair         []Run `json:"pair,omitempty"`
}

// RemainingResponse is the response body for GET /v1/remaining.
type RemainingResponse struct {
	Remaining []string `json:"remaining"`
}

// HealthResponse is the response for GET /health.
type HealthResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	JobInFlight bool   `json:"job_in_flight"`
	RunCount    int    `json:"run_count"`
	Uptime      int64  `json:"uptime_seconds"`
}
