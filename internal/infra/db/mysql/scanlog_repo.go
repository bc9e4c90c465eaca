package mysql

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-sql-driver/mysql"

	domain "github.com/subwatch/subwatch/internal/domain/scans"
)

type ScanLogRepository struct{ db *sql.DB }

func NewScanLogRepository(db *sql.DB) *ScanLogRepository { return &ScanLogRepository{db: db} }

// Begin inserts a running scan log unless one is already running for the
// user, in a single statement. A concurrent duplicate insert trips the
// uq_scan_logs_user_running unique key and is treated the same as finding
// an existing running log.
func (r *ScanLogRepository) Begin(ctx context.Context, s *domain.ScanLog) (*domain.ScanLog, bool, error) {
	const q = `
INSERT INTO scan_logs (id, user_id, status, started_at, emails_processed, subscriptions_found, running_slot)
SELECT ?, ?, ?, ?, 0, 0, 1
FROM DUAL
WHERE NOT EXISTS (
  SELECT 1 FROM scan_logs WHERE user_id = ? AND status = ?
);`

	res, err := r.db.ExecContext(ctx, q,
		s.ID, s.UserID, domain.StatusRunning, s.StartedAt,
		s.UserID, domain.StatusRunning)
	if err != nil {
		if myErr, ok := err.(*mysql.MySQLError); ok && myErr.Number == 1062 {
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
WHERE user_id = ? AND status = ?
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
WHERE user_id = ? AND id = ?
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
WHERE user_id = ?
ORDER BY started_at DESC
LIMIT ?;`
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

// Finish only touches a row still in running state; the terminal update
// also frees the running slot so the user can scan again.
func (r *ScanLogRepository) Finish(ctx context.Context, userID string, id domain.ScanID, status domain.Status, completedAt time.Time, emailsProcessed, subscriptionsFound int, errorMessage, reportURL string) error {
	const q = `
UPDATE scan_logs
SET status = ?,
    completed_at = ?,
    emails_processed = ?,
    subscriptions_found = ?,
    error_message = ?,
    report_url = ?,
    running_slot = NULL
WHERE user_id = ? AND id = ? AND status = ?;`
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
