package transport

import "github.com/google/uuid"

// RecordActivityRequest records a manual journey step for a job.
type RecordActivityRequest struct {
	Phase       string         `json:"phase" validate:"required,max=40"`
	Title       string         `json:"title" validate:"omitempty,max=200"`
	Description *string        `json:"description,omitempty" validate:"omitempty,max=2000"`
	ProposalID  *uuid.UUID     `json:"proposalId,omitempty"`
	ProjectID   *uuid.UUID     `json:"projectId,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// RecordActivityResponse returns the id of the appended activity.
type RecordActivityResponse struct {
	ID uuid.UUID `json:"id"`
}

// CaptureJobRequest is sent by the browser extension for a captured job.
type CaptureJobRequest struct {
	Title           string  `json:"title" validate:"required,min=1,max=300"`
	ClientName      *string `json:"clientName,omitempty" validate:"omitempty,max=200"`
	SourceURL       *string `json:"sourceUrl,omitempty" validate:"omitempty,url,max=2000"`
	Budget          *string `json:"budget,omitempty" validate:"omitempty,max=100"`
	MatchPercentage *int    `json:"matchPercentage,omitempty" validate:"omitempty,min=0,max=100"`
}

// CaptureJobResponse returns the id of the stored job.
type CaptureJobResponse struct {
	JobID uuid.UUID `json:"jobId"`
}

// ListResponse wraps list payloads.
type ListResponse[T any] struct {
	Items []T `json:"items"`
}
