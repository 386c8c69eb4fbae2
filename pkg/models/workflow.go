package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// RunStatus is the reported outcome of a workflow execution.
type RunStatus string

const (
	RunStatusSuccess RunStatus = "success"
	RunStatusFailed  RunStatus = "failed"
	RunStatusRunning RunStatus = "running"
)

// RunStatuses lists the accepted statuses in display order.
var RunStatuses = []RunStatus{RunStatusSuccess, RunStatusFailed, RunStatusRunning}

// Valid reports whether s is one of RunStatuses.
func (s RunStatus) Valid() bool {
	for _, v := range RunStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// WorkflowRunPayload is the body n8n posts to report an execution.
type WorkflowRunPayload struct {
	WorkflowName  string     `json:"workflow_name"`
	Status        string     `json:"status"`
	StartedAt     *Timestamp `json:"started_at"`
	EndedAt       *Timestamp `json:"ended_at,omitempty"`
	ErrorMessage  *string    `json:"error_message,omitempty"`
	ExternalRunID *string    `json:"external_run_id,omitempty"`
	Metadata      Document   `json:"metadata,omitempty"`
}

// UnmarshalJSON implements json.Unmarshaler. workflow_name, status and
// started_at must be present and non-null; empty strings are left for the
// recorder to judge.
func (p *WorkflowRunPayload) UnmarshalJSON(data []byte) error {
	type plain WorkflowRunPayload
	var decoded plain
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	if err := requireFields(data, "workflow_name", "status", "started_at"); err != nil {
		return err
	}
	*p = WorkflowRunPayload(decoded)
	return nil
}

// Validate checks the fields that cannot be absent once decoded. The status
// enum is checked by the recorder.
func (p *WorkflowRunPayload) Validate() error {
	if p.StartedAt == nil {
		return fmt.Errorf("%w: started_at is required", ErrInvalidPayload)
	}
	return nil
}

// WorkflowRun is one persisted execution record. It is never updated.
type WorkflowRun struct {
	ID            int64      `json:"id"`
	OrgID         string     `json:"org_id"`
	WorkflowID    string     `json:"workflow_id"`
	StartedAt     time.Time  `json:"started_at"`
	EndedAt       *time.Time `json:"ended_at,omitempty"`
	Status        RunStatus  `json:"status"`
	DurationMs    *int64     `json:"duration_ms,omitempty"`
	ErrorMessage  *string    `json:"error_message,omitempty"`
	ExternalRunID *string    `json:"external_run_id,omitempty"`
	Payload       Document   `json:"payload"`
}

// RunDuration returns ended-started in whole milliseconds, or nil when the
// run has not ended. Sub-millisecond remainders are truncated toward zero,
// not rounded. Negative durations are returned as computed.
func RunDuration(started time.Time, ended *time.Time) *int64 {
	if ended == nil {
		return nil
	}
	ms := ended.Sub(started).Milliseconds()
	return &ms
}
