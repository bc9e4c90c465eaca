package prompt

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/subwatch/subwatch/internal/domain/ai"
)

// ExtractionSystemPrompt pins the model to one JSON object with exactly
// the four subscription fields.
func ExtractionSystemPrompt() string {
	return `You are a subscription detector for email receipts. You must produce one valid JSON object only (no markdown, no commentary, no code fences) with exactly these four fields:

{
  "provider_name": "<string, the subscription service name, or empty string if none>",
  "amount": <number, the billing amount, 0 if unknown>,
  "next_billing_date": "<YYYY-MM-DD or empty string>",
  "status": "<active|trial|cancelled or empty string>"
}

If the email is not about a subscription, return the object with an empty provider_name.`
}

// ExtractionUserPrompt wraps the raw email text.
func ExtractionUserPrompt(emailText string) string {
	return fmt.Sprintf("Extract the subscription fields from this email:\n\n%s", emailText)
}

// ParseExtraction decodes the model response. Malformed output yields a
// zero Extraction and no error: one unreadable email must never fail the
// scan, so the parser fails open.
func ParseExtraction(content string) ai.Extraction {
	var raw struct {
		ProviderName    string  `json:"provider_name"`
		Amount          float64 `json:"amount"`
		NextBillingDate string  `json:"next_billing_date"`
		Status          string  `json:"status"`
	}
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return ai.Extraction{}
	}
	out := ai.Extraction{
		ProviderName: raw.ProviderName,
		Amount:       raw.Amount,
		Status:       raw.Status,
	}
	if raw.NextBillingDate != "" {
		if d, err := time.Parse("2006-01-02", raw.NextBillingDate); err == nil {
			out.NextBillingDate = &d
		}
	}
	return out
}

// EnhanceSystemPrompt asks for current pricing and categorization of a
// named service, JSON only.
func EnhanceSystemPrompt() string {
	return `You are a subscription service analyzer. Provide accurate, current pricing information and categorization for subscription services. Produce one valid JSON object only (no markdown, no commentary) with this schema:

{
  "name": "<official service name>",
  "pricing_plans": [{"name": "<plan>", "price": <number>, "frequency": "<monthly|yearly>"}],
  "category": "<entertainment|productivity|news|utility|health|finance|education|shopping|other>",
  "website_url": "<https url>",
  "description": "<one sentence>"
}`
}

// EnhanceUserPrompt names the service to analyze.
func EnhanceUserPrompt(serviceName string) string {
	return fmt.Sprintf("Analyze the subscription service %q and respond with the JSON per schema.", serviceName)
}
