package scans

import (
	"time"
)

// ID type for ScanLog
type ScanID string

// Status enum
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Aggregate Root: ScanLog
// One row per triggered mailbox scan. At most one log per user may be
// running at a time; a log transitions exactly once to completed or failed.
type ScanLog struct {
	ID                 ScanID     `json:"id"`
	UserID             string     `json:"user_id"`
	Status             Status     `json:"status"`
	StartedAt          time.Time  `json:"started_at"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	EmailsProcessed    int        `json:"emails_processed"`
	SubscriptionsFound int        `json:"subscriptions_found"`
	ErrorMessage       string     `json:"error_message,omitempty"`
	ReportURL          string     `json:"report_url,omitempty"`
}

// Terminal reports whether the log already reached its final state.
func (s *ScanLog) Terminal() bool {
	return s.Status == StatusCompleted || s.Status == StatusFailed
}
