package cache

import (
	"context"
	"errors"
)

// SessionCache keeps the serialized cart of a browsing session close at hand.
type SessionCache interface {
	Get(ctx context.Context, sessionID string) ([]byte, error)
	Set(ctx context.Context, sessionID string, state []byte) error
	Delete(ctx context.Context, sessionID string) error
}

var ErrCacheMiss = errors.New("cache miss")
