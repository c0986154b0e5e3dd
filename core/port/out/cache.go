package out

import (
	"context"
	"time"
)

// Cache is a small read-through cache port (classification verdicts).
type Cache interface {
	GetJSON(ctx context.Context, key string, dest any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
}
