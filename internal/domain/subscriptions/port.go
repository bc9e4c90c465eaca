package subscriptions

import "context"

// Repository port (interface for persistence)
type Repository interface {
	// Upsert inserts or updates one row keyed by (user_id, lower(name)).
	Upsert(ctx context.Context, s *Subscription) error

	// UpsertAll writes a batch inside one transaction; any failure rolls
	// the whole batch back.
	UpsertAll(ctx context.Context, userID string, subs []*Subscription) error

	Get(ctx context.Context, userID string, id SubscriptionID) (*Subscription, error)
	List(ctx context.Context, userID string) ([]*Subscription, error)
	Delete(ctx context.Context, userID string, id SubscriptionID) error

	// DeleteScanned removes scan-sourced rows (is_manual=false) for the
	// user. Manual entries are never touched by the scan pipeline.
	DeleteScanned(ctx context.Context, userID string) error

	Summary(ctx context.Context, userID string) (*Summary, error)
}
