package postgres

import (
	"context"
	"database/sql"

	domain "github.com/subwatch/subwatch/internal/domain/subscriptions"
)

type SubscriptionRepository struct{ db *sql.DB }

func NewSubscriptionRepository(db *sql.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

const upsertQuery = `
INSERT INTO subscriptions
  (id, user_id, name, cost, billing_frequency, category, next_billing_date,
   status, is_manual, is_pending_review, email_source, confidence,
   created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
ON CONFLICT (user_id, lower(name)) DO UPDATE SET
  cost = EXCLUDED.cost,
  billing_frequency = EXCLUDED.billing_frequency,
  category = EXCLUDED.category,
  next_billing_date = EXCLUDED.next_billing_date,
  status = EXCLUDED.status,
  is_manual = EXCLUDED.is_manual,
  is_pending_review = EXCLUDED.is_pending_review,
  email_source = EXCLUDED.email_source,
  confidence = EXCLUDED.confidence,
  updated_at = EXCLUDED.updated_at;`

// Upsert writes one row keyed by (user_id, lower(name)).
func (r *SubscriptionRepository) Upsert(ctx context.Context, s *domain.Subscription) error {
	_, err := r.db.ExecContext(ctx, upsertQuery, upsertArgs(s)...)
	return err
}

// UpsertAll writes the batch in one transaction; any failure rolls back
// the whole scan's results.
func (r *SubscriptionRepository) UpsertAll(ctx context.Context, userID string, subs []*domain.Subscription) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, s := range subs {
		s.UserID = userID
		if _, err := tx.ExecContext(ctx, upsertQuery, upsertArgs(s)...); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func upsertArgs(s *domain.Subscription) []any {
	return []any{
		s.ID, s.UserID, s.Name, s.Cost, s.BillingFrequency, s.Category,
		s.NextBillingDate, s.Status, s.IsManual, s.IsPendingReview,
		s.EmailSource, s.Confidence, s.CreatedAt, s.UpdatedAt,
	}
}

const selectColumns = `
SELECT id, user_id, name, cost, billing_frequency, category, next_billing_date,
       status, is_manual, is_pending_review, email_source, confidence,
       created_at, updated_at
FROM subscriptions`

func (r *SubscriptionRepository) Get(ctx context.Context, userID string, id domain.SubscriptionID) (*domain.Subscription, error) {
	q := selectColumns + `
WHERE user_id = $1 AND id = $2
LIMIT 1;`
	return scanSubscription(r.db.QueryRowContext(ctx, q, userID, id))
}

func (r *SubscriptionRepository) List(ctx context.Context, userID string) ([]*domain.Subscription, error) {
	q := selectColumns + `
WHERE user_id = $1
ORDER BY created_at DESC, name ASC;`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *SubscriptionRepository) Delete(ctx context.Context, userID string, id domain.SubscriptionID) error {
	const q = `DELETE FROM subscriptions WHERE user_id = $1 AND id = $2;`
	_, err := r.db.ExecContext(ctx, q, userID, id)
	return err
}

// DeleteScanned clears the previous scan's rows; manual entries stay.
func (r *SubscriptionRepository) DeleteScanned(ctx context.Context, userID string) error {
	const q = `DELETE FROM subscriptions WHERE user_id = $1 AND is_manual = FALSE;`
	_, err := r.db.ExecContext(ctx, q, userID)
	return err
}

// Summary aggregates the dashboard stats. Yearly and weekly costs are
// normalized to a monthly figure.
func (r *SubscriptionRepository) Summary(ctx context.Context, userID string) (*domain.Summary, error) {
	const q = `
SELECT
  COALESCE(SUM(CASE billing_frequency
    WHEN 'yearly' THEN cost / 12.0
    WHEN 'weekly' THEN cost * 52.0 / 12.0
    ELSE cost END) FILTER (WHERE status = 'active'), 0) AS total_monthly,
  COUNT(*) FILTER (WHERE status = 'active')             AS active,
  COUNT(*) FILTER (WHERE is_pending_review)             AS pending_review,
  COUNT(*)                                              AS total
FROM subscriptions
WHERE user_id = $1;`
	var sum domain.Summary
	if err := r.db.QueryRowContext(ctx, q, userID).Scan(
		&sum.TotalMonthly, &sum.Active, &sum.PendingReview, &sum.Total,
	); err != nil {
		return nil, err
	}
	return &sum, nil
}

func scanSubscription(row rowScanner) (*domain.Subscription, error) {
	var s domain.Subscription
	var next sql.NullTime
	var category, emailSource sql.NullString
	if err := row.Scan(
		&s.ID, &s.UserID, &s.Name, &s.Cost, &s.BillingFrequency, &category,
		&next, &s.Status, &s.IsManual, &s.IsPendingReview, &emailSource,
		&s.Confidence, &s.CreatedAt, &s.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if next.Valid {
		s.NextBillingDate = &next.Time
	}
	s.Category = category.String
	s.EmailSource = emailSource.String
	return &s, nil
}
