package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Job names recorded in job_runs
const (
	JobLeadNurture       = "lead_nurture"
	JobSignatureReminder = "signature_reminder"
	JobNurture           = "nurture"
	JobSMSFollowUp       = "sms_follow_up"
	JobImmediateFollowUp = "immediate_follow_up"
)

// Run triggers
const (
	JobTriggerHTTP = "http"
	JobTriggerCron = "cron"
	JobTriggerCLI  = "cli"
)

// JobRun records one invocation of a follow-up runner
type JobRun struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Job          string     `gorm:"size:64;not null;index:idx_job_runs_job" json:"job"`
	Trigger      string     `gorm:"size:16;not null" json:"trigger"`
	RequestID    *string    `gorm:"size:255;index:idx_job_runs_request_id" json:"request_id,omitempty"`
	Success      *bool      `gorm:"default:true;index:idx_job_runs_success" json:"success"`
	Counts       JobCounts  `gorm:"type:jsonb" json:"counts,omitempty"`
	ErrorMessage *string    `gorm:"type:text" json:"error_message,omitempty"`
	StartedAt    time.Time  `gorm:"not null;index:idx_job_runs_started_at" json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}

func (JobRun) TableName() string {
	return "job_runs"
}

// JobRunFilter represents filter criteria for job run queries
type JobRunFilter struct {
	ID            *uint
	Job           *string
	Success       *bool
	RequestID     *string
	StartedAfter  *time.Time
	StartedBefore *time.Time
}

func (r *JobRun) IsFailed() bool {
	return r.Success != nil && !*r.Success
}

// Duration returns how long the run took, zero while it is still running
func (r *JobRun) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// JobCounts holds the named tallies a run reported
type JobCounts map[string]int

// Value implements the driver.Valuer interface for JobCounts
func (c JobCounts) Value() (driver.Value, error) {
	if c == nil {
		return nil, nil
	}
	return json.Marshal(c)
}

// Scan implements the sql.Scanner interface for JobCounts
func (c *JobCounts) Scan(value any) error {
	if value == nil {
		*c = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, c)
	case string:
		return json.Unmarshal([]byte(v), c)
	default:
		return fmt.Errorf("cannot scan %T into JobCounts", value)
	}
}
