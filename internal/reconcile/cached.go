package reconcile

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/maypok86/otter"
	"github.com/mvp-joe/splitter/internal/source"
)

// DefaultCacheSize is the number of answers a CachedChecker keeps.
const DefaultCacheSize = 4096

// CachedChecker memoizes successful answers of another Checker, keyed by the
// module content and the query.
type CachedChecker struct {
	inner Checker
	cache otter.Cache[string, string]
}

// NewCachedChecker wraps inner with a cache holding up to size answers.
func NewCachedChecker(inner Checker, size int) (*CachedChecker, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := otter.MustBuilder[string, string](size).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build checker cache: %w", err)
	}
	return &CachedChecker{inner: inner, cache: cache}, nil
}

// TypeOf implements Checker.
func (c *CachedChecker) TypeOf(ctx context.Context, m *source.Module, q Query) (string, error) {
	sum := sha256.Sum256(m.Src)
	key := hex.EncodeToString(sum[:]) + "|" + q.Key()

	if t, ok := c.cache.Get(key); ok {
		return t, nil
	}
	t, err := c.inner.TypeOf(ctx, m, q)
	if err != nil {
		return "", err
	}
	c.cache.Set(key, t)
	return t, nil
}

// Close releases the cache.
func (c *CachedChecker) Close() {
	c.cache.Close()
}
