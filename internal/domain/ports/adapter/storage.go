package adapter

import (
	"context"
	"time"
)

// ObjectStorage is where outputs are mirrored.
type ObjectStorage interface {
	Bucket() string
	Put(ctx context.Context, key string, body []byte, contentType string) error
	// PresignGet returns a time-limited GET URL and its expiry.
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, time.Time, error)
}
