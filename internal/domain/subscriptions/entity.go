package subscriptions

import "time"

// ID type for Subscription
type SubscriptionID string

// Status enum
type Status string

const (
	StatusActive    Status = "active"
	StatusCancelled Status = "cancelled"
	StatusTrial     Status = "trial"
)

// Billing frequency values accepted by the API and the extractor.
const (
	FrequencyMonthly string = "monthly"
	FrequencyYearly  string = "yearly"
	FrequencyWeekly  string = "weekly"
)

// Aggregate Root: Subscription
// Upserted by (user_id, lower(name)). Manual entries are created by the
// user directly; scan-sourced rows carry the source email subject and a
// confidence score, and may be flagged for review.
type Subscription struct {
	ID               SubscriptionID `json:"id"`
	UserID           string         `json:"user_id"`
	Name             string         `json:"name"`
	Cost             float64        `json:"cost"`
	BillingFrequency string         `json:"billing_frequency"`
	Category         string         `json:"category,omitempty"`
	NextBillingDate  *time.Time     `json:"next_billing_date,omitempty"`
	Status           Status         `json:"status"`
	IsManual         bool           `json:"is_manual"`
	IsPendingReview  bool           `json:"is_pending_review"`
	EmailSource      string         `json:"email_source,omitempty"`
	Confidence       float64        `json:"confidence"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// Summary aggregates the current snapshot for the dashboard.
type Summary struct {
	TotalMonthly  float64 `json:"total_monthly"`
	Active        int     `json:"active"`
	PendingReview int     `json:"pending_review"`
	Total         int     `json:"total"`
}
