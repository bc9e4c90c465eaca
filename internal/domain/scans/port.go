package scans

import (
	"context"
	"time"
)

// Repository port (interface for persistence)
type Repository interface {
	// Begin inserts a running ScanLog for the user only when no other log
	// for the same user is still running. The insert and the running-check
	// are a single statement so two concurrent triggers cannot both start.
	// When a running log exists it is returned with created=false.
	Begin(ctx context.Context, s *ScanLog) (existing *ScanLog, created bool, err error)

	Get(ctx context.Context, userID string, id ScanID) (*ScanLog, error)
	Latest(ctx context.Context, userID string, limit int) ([]*ScanLog, error)

	// Finish performs the single terminal transition for a scan log.
	Finish(ctx context.Context, userID string, id ScanID, status Status, completedAt time.Time,
		emailsProcessed, subscriptionsFound int, errorMessage, reportURL string) error
}
