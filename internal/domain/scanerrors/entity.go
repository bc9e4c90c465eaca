package scanerrors

import "time"

// ScanError is one absorbed per-item failure recorded during a scan: a
// provider search that kept failing after the credential refresh, a
// message that could not be fetched, or an email the extractor gave up on.
// These never fail the scan; they are kept for inspection.
type ScanError struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	ScanID    string    `json:"scan_id"`
	Provider  string    `json:"provider,omitempty"`
	Phase     string    `json:"phase,omitempty"` // search | fetch | extract
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}
