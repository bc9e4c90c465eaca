package subscriptions

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/subwatch/subwatch/internal/application"
	domain "github.com/subwatch/subwatch/internal/domain/subscriptions"
)

// Service implements the manual subscription CRUD use-cases. Rows created
// here are flagged is_manual so the scan pipeline leaves them alone.
type Service struct {
	Repo  domain.Repository
	Clock application.Clock
}

// CreateCommand carries the fields a user can set on a manual entry.
type CreateCommand struct {
	Name             string
	Cost             float64
	BillingFrequency string
	Category         string
	Status           string
}

func (c CreateCommand) validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if c.Cost < 0 {
		return fmt.Errorf("cost must not be negative")
	}
	switch c.BillingFrequency {
	case domain.FrequencyMonthly, domain.FrequencyYearly, domain.FrequencyWeekly:
	default:
		return fmt.Errorf("invalid billing_frequency: %s", c.BillingFrequency)
	}
	return nil
}

// Create adds a manual subscription for the user.
func (s *Service) Create(ctx context.Context, userID string, cmd CreateCommand) (*domain.Subscription, error) {
	if err := cmd.validate(); err != nil {
		return nil, err
	}
	status := domain.Status(cmd.Status)
	if status == "" {
		status = domain.StatusActive
	}
	now := s.Clock.Now()
	sub := &domain.Subscription{
		ID:               domain.SubscriptionID(uuid.New().String()),
		UserID:           userID,
		Name:             strings.TrimSpace(cmd.Name),
		Cost:             cmd.Cost,
		BillingFrequency: cmd.BillingFrequency,
		Category:         cmd.Category,
		Status:           status,
		IsManual:         true,
		Confidence:       1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.Repo.Upsert(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// Update overwrites the editable fields of an existing entry. Confirming
// a pending-review row happens here too: the update clears the flag.
func (s *Service) Update(ctx context.Context, userID string, id domain.SubscriptionID, cmd CreateCommand) (*domain.Subscription, error) {
	if err := cmd.validate(); err != nil {
		return nil, err
	}
	sub, err := s.Repo.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	sub.Name = strings.TrimSpace(cmd.Name)
	sub.Cost = cmd.Cost
	sub.BillingFrequency = cmd.BillingFrequency
	sub.Category = cmd.Category
	if cmd.Status != "" {
		sub.Status = domain.Status(cmd.Status)
	}
	sub.IsPendingReview = false
	sub.UpdatedAt = s.Clock.Now()
	if err := s.Repo.Upsert(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *Service) List(ctx context.Context, userID string) ([]*domain.Subscription, error) {
	return s.Repo.List(ctx, userID)
}

func (s *Service) Delete(ctx context.Context, userID string, id domain.SubscriptionID) error {
	return s.Repo.Delete(ctx, userID, id)
}

func (s *Service) Summary(ctx context.Context, userID string) (*domain.Summary, error) {
	return s.Repo.Summary(ctx, userID)
}
