package mailbox

import (
	"context"
	"time"
)

// Message is one mailbox message after body decoding. Body holds the
// plain-text content; HTML-only messages arrive with the tags stripped.
type Message struct {
	ID      string
	Subject string
	From    string
	Date    time.Time
	Body    string
}

// Client port over the mailbox provider's search API.
type Client interface {
	// Search returns message identifiers matching the provider query,
	// bounded by maxResults.
	Search(ctx context.Context, query string, maxResults int) ([]string, error)

	// Fetch retrieves and decodes one message.
	Fetch(ctx context.Context, id string) (*Message, error)
}
