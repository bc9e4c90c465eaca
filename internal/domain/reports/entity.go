package reports

import "time"

// ScanReport is the archived summary of one scan, written to object
// storage as JSON when the pipeline finishes. It exists for auditing and
// offline inspection; the authoritative state lives in the scan log row.
type ScanReport struct {
	ScanID             string         `json:"scan_id"`
	UserID             string         `json:"user_id"`
	StartedAt          time.Time      `json:"started_at"`
	CompletedAt        time.Time      `json:"completed_at"`
	Status             string         `json:"status"`
	EmailsProcessed    int            `json:"emails_processed"`
	SubscriptionsFound int            `json:"subscriptions_found"`
	Providers          []ProviderStat `json:"providers"`
}

// ProviderStat is the per-provider breakdown within one scan.
type ProviderStat struct {
	Provider string `json:"provider"`
	Messages int    `json:"messages"`
	Failed   bool   `json:"failed,omitempty"`
}
