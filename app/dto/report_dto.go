package dto

import "time"

// ListJobRunsRequest represents the query of the job run report
type ListJobRunsRequest struct {
	Job      string `query:"job" validate:"omitempty,oneof=nurture lead_nurture signature_reminder sms_follow_up immediate_follow_up"`
	Page     int    `query:"page" validate:"omitempty,min=1"`
	PageSize int    `query:"page_size" validate:"omitempty,min=1,max=100"`
}

// JobRunItem is one row of the job run report
type JobRunItem struct {
	ID           uint           `json:"id"`
	Job          string         `json:"job"`
	Trigger      string         `json:"trigger"`
	RequestID    *string        `json:"request_id,omitempty"`
	Success      bool           `json:"success"`
	Counts       map[string]int `json:"counts,omitempty"`
	ErrorMessage *string        `json:"error_message,omitempty"`
	StartedAt    time.Time      `json:"started_at"`
	FinishedAt   *time.Time     `json:"finished_at,omitempty"`
	DurationMS   int64          `json:"duration_ms"`
}

// PaginationInfo describes the page returned
type PaginationInfo struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

// ListJobRunsResponse is the job run report page
type ListJobRunsResponse struct {
	Items      []JobRunItem   `json:"items"`
	Pagination PaginationInfo `json:"pagination"`
}

// ExportFollowUpHistoryRequest bounds the exported history by send time. Dates are RFC3339.
type ExportFollowUpHistoryRequest struct {
	From string `query:"from" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	To   string `query:"to" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
}
