package repository

import (
	"context"
	"errors"
)

var ErrCartNotFound = errors.New("cart not found")

// SessionRepository keeps serialized carts for the lifetime of a browsing
// session. Consumers define this interface, not the MongoDB implementation.
type SessionRepository interface {
	Load(ctx context.Context, sessionID string) ([]byte, error)
	Save(ctx context.Context, sessionID string, state []byte) error
	Delete(ctx context.Context, sessionID string) error
}
