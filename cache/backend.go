package cache

import (
	"context"
	"errors"
	"strings"
	"time"
)

// NoExpiry is returned by Backend.TTL for missing keys and keys without expiry.
const NoExpiry = time.Duration(-1)

var (
	ErrCacheMiss      = errors.New("cache miss")
	ErrCorruptedEntry = errors.New("corrupted cache entry")
)

// Backend is the key-value primitive the rate caches are built on.
type Backend interface {
	// Get returns ErrCacheMiss when key does not exist.
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	TTL(ctx context.Context, key string) (time.Duration, error)
	// Keys returns keys matching a glob pattern.
	Keys(ctx context.Context, pattern string) ([]string, error)
}

// EscapePattern quotes glob metacharacters so s matches itself literally in
// a Backend.Keys pattern.
func EscapePattern(s string) string {
	var b strings.Builder

	for _, r := range s {
		switch r {
		case '\\', '*', '?', '[', ']', '{', '}', ',':
			b.WriteByte('\\')
		}

		b.WriteRune(r)
	}

	return b.String()
}
