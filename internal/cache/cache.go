// Package cache memoizes JSON-serializable results across runs.
package cache

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrInvalidURL indicates a Redis address that cannot be parsed.
var ErrInvalidURL = errors.New("invalid redis url")

// Cache stores JSON values by key.
type Cache interface {
	// GetJSON decodes the value stored at key into dst.
	// It reports false, with a nil error, on a miss.
	GetJSON(ctx context.Context, key string, dst any) (bool, error)
	// SetJSON stores val at key. A zero ttl keeps the value until evicted.
	SetJSON(ctx context.Context, key string, val any, ttl time.Duration) error
	// Del removes keys. Missing keys are ignored.
	Del(ctx context.Context, keys ...string) error
}

// keyPrefix namespaces every key written by this program.
const keyPrefix = "meetsync"

// Key joins parts into a namespaced cache key.
func Key(parts ...string) string {
	return keyPrefix + ":" + strings.Join(parts, ":")
}

// Nop is a Cache that never stores anything.
type Nop struct{}

var _ Cache = Nop{}

// GetJSON always misses.
func (Nop) GetJSON(context.Context, string, any) (bool, error) { return false, nil }

// SetJSON discards val.
func (Nop) SetJSON(context.Context, string, any, time.Duration) error { return nil }

// Del does nothing.
func (Nop) Del(context.Context, ...string) error { return nil }
