package reports

import "context"

// Archive port (interface for report storage)
type Archive interface {
	// Put stores the serialized report under key and returns its URL.
	Put(ctx context.Context, key string, data []byte) (string, error)
}
