// Package cache provides the key/value cache used for post listings. The
// backend is picked from a URL: redis://, rediss://, memory:// or empty for
// a no-op cache.
package cache

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

var ErrMiss = errors.New("cache miss")

const defaultMemorySize = 1024

type Cache interface {
	// Get returns ErrMiss when the key is absent or expired.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value under key. ttl is a hint: backends that expire all
	// entries on a fixed schedule (Memory) ignore it, so callers must not
	// rely on an entry living exactly ttl.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// DeletePrefix removes every key starting with prefix.
	DeletePrefix(ctx context.Context, prefix string) error
	// Incr atomically adds one to the counter at key, starting from zero, and
	// returns the new value. Counters never expire; Get returns them as
	// decimal text.
	Incr(ctx context.Context, key string) (int64, error)
	Close() error
}

// New builds a cache from rawURL. ttl bounds entry lifetime for backends
// that cannot expire entries individually.
func New(ctx context.Context, rawURL string, ttl time.Duration) (Cache, error) {
	if rawURL == "" {
		return Nop{}, nil
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid cache url: %w", err)
	}

	switch u.Scheme {
	case "redis", "rediss":
		return NewRedis(ctx, rawURL)
	case "memory":
		size := defaultMemorySize
		if s := u.Query().Get("size"); s != "" {
			size, err = strconv.Atoi(s)
			if err != nil || size <= 0 {
				return nil, fmt.Errorf("invalid memory cache size %q", s)
			}
		}
		return NewMemory(size, ttl), nil
	default:
		return nil, fmt.Errorf("unsupported cache scheme %q", u.Scheme)
	}
}

// Nop never stores anything.
type Nop struct{}

func (Nop) Get(context.Context, string) ([]byte, error)              { return nil, ErrMiss }
func (Nop) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (Nop) Delete(context.Context, string) error                     { return nil }
func (Nop) DeletePrefix(context.Context, string) error               { return nil }
func (Nop) Incr(context.Context, string) (int64, error)              { return 0, nil }
func (Nop) Close() error                                             { return nil }
