package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"

	domain "github.com/subwatch/subwatch/internal/domain/scans"
)

type ScanLogRepository struct{ db *sql.DB }

func NewScanLogRepository(db *sql.DB) *ScanLogRepository { return &ScanLogRepository{db: db} }

// Begin inserts a running scan log unless one is already running for the
// user. The WHERE NOT EXISTS guard plus the partial unique index on
// (user_id) WHERE status='running' make the check-then-create atomic:
// a concurrent insert loses with a unique violation and is treated the
// same as finding an existing running log.
func (r *ScanLogRepository) Begin(ctx context.Context, s *domain.ScanLog) (*domain.ScanLog, bool, error) {
	const q = `
INSERT INTO scan_logs (id, user_id, status, started_at, emails_processed, subscriptions_found)
SELECT $1, $2, $3, $4, 0, 0
WHERE NOT EXISTS (
  SELECT 1 FROM scan_logs WHERE user_id = $2 AND status = $5
);`

	res, err := r.db.ExecContext(ctx, q,
		s.ID, s.UserID, domain.StatusRunning, s.StartedAt, domain.StatusRunning)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return r.running(ctx, s.UserID)
		}
		return nil, false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, err
	}
	if n == 0 {
		return r.running(ctx, s.UserID)
	}
	return s, true, nil
}

func (r *ScanLogRepository) running(ctx context.Context, userID string) (*domain.ScanLog, bool, error) {
	const q = `
SELECT id, user_id, status, started_at, completed_at,
       emails_processed, subscriptions_found, error_message, report_url
FROM scan_logs
WHERE user_id = $1 AND status = $2
ORDER BY started_at DESC
LIMIT 1;`
	s, err := scanRow(r.db.QueryRowContext(ctx, q, userID, domain.StatusRunning))
	if err != nil {
		return nil, false, err
	}
	return s, false, nil
}

func (r *ScanLogRepository) Get(ctx context.Context, userID string, id domain.ScanID) (*domain.ScanLog, error) {
	const q = `
SELECT id, user_id, status, started_at, completed_at,
       emails_processed, subscriptions_found, error_message, report_url
FROM scan_logs
WHERE user_id = $1 AND id = $2
LIMIT 1;`
	return scanRow(r.db.QueryRowContext(ctx, q, userID, id))
}

func (r *ScanLogRepository) Latest(ctx context.Context, userID string, limit int) ([]*domain.ScanLog, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT id, user_id, status, started_at, completed_at,
       emails_processed, subscriptions_found, error_message, report_url
FROM scan_logs
WHERE user_id = $1
ORDER BY started_at DESC
LIMIT $2;`
	rows, err := r.db.QueryContext(ctx, q, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.ScanLog
	for rows.Next() {
		s, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Finish is the single terminal transition: it only touches a row still
// in running state, so a second finalize is a no-op.
func (r *ScanLogRepository) Finish(ctx context.Context, userID string, id domain.ScanID, status domain.Status, completedAt time.Time, emailsProcessed, subscriptionsFound int, errorMessage, reportURL string) error {
	const q = `
UPDATE scan_logs
SET status = $1,
    completed_at = $2,
    emails_processed = $3,
    subscriptions_found = $4,
    error_message = $5,
    report_url = $6
WHERE user_id = $7 AND id = $8 AND status = $9;`
	_, err := r.db.ExecContext(ctx, q,
		status, completedAt, emailsProcessed, subscriptionsFound,
		errorMessage, reportURL,
		userID, id, domain.StatusRunning,
	)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRow(row rowScanner) (*domain.ScanLog, error) {
	var s domain.ScanLog
	var completed sql.NullTime
	var errMsg, reportURL sql.NullString
	if err := row.Scan(
		&s.ID, &s.UserID, &s.Status, &s.StartedAt, &completed,
		&s.EmailsProcessed, &s.SubscriptionsFound, &errMsg, &reportURL,
	); err != nil {
		return nil, err
	}
	if completed.Valid {
		s.CompletedAt = &completed.Time
	}
	s.ErrorMessage = errMsg.String
	s.ReportURL = reportURL.String
	return &s, nil
}
