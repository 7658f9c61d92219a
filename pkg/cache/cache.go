// Package cache provides the short-lived credential state store used
// by redirect-based authentication flows to carry CSRF state and PKCE
// verifiers between the redirect and callback legs.
package cache

import (
	"context"
	"time"
)

// StateCache is a key/value store for pending authentication state.
//
// Implementations must honor at-most-once consumption: when multiple
// goroutines Take the same key concurrently, exactly one observes the
// value. Entries expire after their TTL.
type StateCache interface {
	// Set stores value under key for at most ttl. A ttl <= 0 applies
	// the implementation default.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Get returns the value for key without consuming it.
	Get(ctx context.Context, key string) (string, bool, error)

	// Take atomically retrieves and deletes the value for key.
	Take(ctx context.Context, key string) (string, bool, error)

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}
