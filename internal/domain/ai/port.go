package ai

import (
	"context"
	"time"
)

// Extraction is the structured result for one email. A zero-value
// Extraction with Empty()==true means the model produced nothing usable;
// that is not an error.
type Extraction struct {
	ProviderName    string     `json:"provider_name"`
	Amount          float64    `json:"amount"`
	NextBillingDate *time.Time `json:"next_billing_date"`
	Status          string     `json:"status"`
}

// Empty reports whether no provider could be extracted.
func (e Extraction) Empty() bool {
	return e.ProviderName == ""
}

// Enhancement describes a subscription service looked up by name.
type Enhancement struct {
	Name         string        `json:"name"`
	PricingPlans []PricingPlan `json:"pricing_plans"`
	Category     string        `json:"category"`
	WebsiteURL   string        `json:"website_url"`
	Description  string        `json:"description"`
}

type PricingPlan struct {
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Frequency string  `json:"frequency"`
}

// Client port for the text-generation service.
type Client interface {
	// ExtractSubscription asks the model for the four subscription fields
	// from raw email text. A malformed model response yields an empty
	// Extraction and a nil error; only transport/API failures error.
	ExtractSubscription(ctx context.Context, emailText string) (Extraction, error)

	// EnhanceSubscription looks up pricing and category for a service name.
	EnhanceSubscription(ctx context.Context, serviceName string) (*Enhancement, error)
}
