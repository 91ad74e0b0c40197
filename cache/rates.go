package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/malusev998/currency"
)

const (
	DefaultPrefix   = "exchange_rates"
	DefaultRatesTTL = 3600 * time.Second
)

type (
	Config struct {
		Prefix string
		TTL    time.Duration
	}

	// RatesCache stores one rate map per (provider, base currency) pair.
	RatesCache struct {
		backend Backend
		prefix  string
		ttl     time.Duration
		logger  *slog.Logger
		now     func() time.Time
	}

	entry struct {
		Rates        currency.Rates `json:"rates"`
		Timestamp    int64          `json:"timestamp"`
		BaseCurrency string         `json:"baseCurrency"`
		Provider     string         `json:"provider"`
	}

	Stats struct {
		TotalKeys       int       `json:"totalKeys"`
		Providers       []string  `json:"providers"`
		Currencies      []string  `json:"currencies"`
		OldestTimestamp time.Time `json:"oldestTimestamp"`
		NewestTimestamp time.Time `json:"newestTimestamp"`
	}
)

func NewRatesCache(backend Backend, config Config, logger *slog.Logger) *RatesCache {
	if config.Prefix == "" {
		config.Prefix = DefaultPrefix
	}

	if config.TTL <= 0 {
		config.TTL = DefaultRatesTTL
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &RatesCache{
		backend: backend,
		prefix:  config.Prefix,
		ttl:     config.TTL,
		logger:  logger,
		now:     time.Now,
	}
}

func (c *RatesCache) Key(provider, base string) string {
	return fmt.Sprintf("%s:%s:%s", c.prefix, provider, currency.NormalizeCode(base))
}

func (c *RatesCache) DefaultTTL() time.Duration {
	return c.ttl
}

// SetRates overwrites the entry for provider/base. A zero ttl uses the default.
func (c *RatesCache) SetRates(ctx context.Context, provider, base string, rates currency.Rates, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.ttl
	}

	normalized := currency.NormalizeCode(base)
	data, err := json.Marshal(entry{
		Rates:        rates,
		Timestamp:    c.now().UnixMilli(),
		BaseCurrency: normalized,
		Provider:     provider,
	})

	if err != nil {
		return fmt.Errorf("error while encoding rates for %s: %w", normalized, err)
	}

	key := c.Key(provider, normalized)
	if err := c.backend.Set(ctx, key, string(data), ttl); err != nil {
		return fmt.Errorf("error while caching %s: %w", key, err)
	}

	c.logger.Debug("rates cached", "key", key, "count", len(rates), "ttl", ttl)

	return nil
}

// GetRates returns ErrCacheMiss when nothing is stored and ErrCorruptedEntry
// when the stored entry cannot be served. Corrupted entries are deleted.
func (c *RatesCache) GetRates(ctx context.Context, provider, base string) (currency.Rates, error) {
	normalized := currency.NormalizeCode(base)
	key := c.Key(provider, normalized)

	raw, err := c.backend.Get(ctx, key)
	if errors.Is(err, ErrCacheMiss) {
		return nil, ErrCacheMiss
	}

	if err != nil {
		return nil, fmt.Errorf("error while reading %s: %w", key, err)
	}

	var e entry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return nil, c.discard(ctx, key, fmt.Sprintf("undecodable entry: %v", err))
	}

	if e.Provider != provider || e.BaseCurrency != normalized {
		return nil, c.discard(ctx, key, fmt.Sprintf("entry belongs to %s:%s", e.Provider, e.BaseCurrency))
	}

	if len(e.Rates) == 0 {
		return nil, c.discard(ctx, key, "entry has no rates")
	}

	return e.Rates, nil
}

func (c *RatesCache) discard(ctx context.Context, key, reason string) error {
	c.logger.Warn("discarding corrupted rates entry", "key", key, "reason", reason)

	if err := c.backend.Del(ctx, key); err != nil {
		c.logger.Warn("error while deleting corrupted entry", "key", key, "error", err)
	}

	return fmt.Errorf("%w: %s: %s", ErrCorruptedEntry, key, reason)
}

func (c *RatesCache) HasRates(ctx context.Context, provider, base string) (bool, error) {
	return c.backend.Exists(ctx, c.Key(provider, base))
}

func (c *RatesCache) GetTTL(ctx context.Context, provider, base string) (time.Duration, error) {
	return c.backend.TTL(ctx, c.Key(provider, base))
}

func (c *RatesCache) ClearRates(ctx context.Context, provider, base string) error {
	return c.backend.Del(ctx, c.Key(provider, base))
}

func (c *RatesCache) ClearProviderRates(ctx context.Context, provider string) error {
	return c.clear(ctx, fmt.Sprintf("%s:%s:*", EscapePattern(c.prefix), EscapePattern(provider)))
}

func (c *RatesCache) ClearAll(ctx context.Context) error {
	return c.clear(ctx, EscapePattern(c.prefix)+":*")
}

func (c *RatesCache) clear(ctx context.Context, pattern string) error {
	keys, err := c.backend.Keys(ctx, pattern)
	if err != nil {
		return fmt.Errorf("error while listing %s: %w", pattern, err)
	}

	if err := c.backend.Del(ctx, keys...); err != nil {
		return fmt.Errorf("error while deleting %s: %w", pattern, err)
	}

	c.logger.Debug("rates cleared", "pattern", pattern, "count", len(keys))

	return nil
}

// GetStats is a diagnostic that reads every entry under the prefix.
func (c *RatesCache) GetStats(ctx context.Context) (Stats, error) {
	keys, err := c.backend.Keys(ctx, EscapePattern(c.prefix)+":*")
	if err != nil {
		return Stats{}, fmt.Errorf("error while listing cache keys: %w", err)
	}

	providers := make(map[string]struct{})
	currencies := make(map[string]struct{})
	stats := Stats{TotalKeys: len(keys)}

	for _, key := range keys {
		provider, base, ok := c.parseKey(key)
		if ok {
			providers[provider] = struct{}{}
			currencies[base] = struct{}{}
		}

		raw, err := c.backend.Get(ctx, key)
		if err != nil {
			continue
		}

		var e entry
		if err := json.Unmarshal([]byte(raw), &e); err != nil || e.Timestamp == 0 {
			continue
		}

		ts := time.UnixMilli(e.Timestamp)
		if stats.OldestTimestamp.IsZero() || ts.Before(stats.OldestTimestamp) {
			stats.OldestTimestamp = ts
		}

		if ts.After(stats.NewestTimestamp) {
			stats.NewestTimestamp = ts
		}
	}

	stats.Providers = sortedKeys(providers)
	stats.Currencies = sortedKeys(currencies)

	return stats, nil
}

// parseKey splits prefix:provider:BASE. The provider segment may itself contain ':'.
func (c *RatesCache) parseKey(key string) (string, string, bool) {
	rest := strings.TrimPrefix(key, c.prefix+":")
	if rest == key {
		return "", "", false
	}

	idx := strings.LastIndex(rest, ":")
	if idx <= 0 || idx == len(rest)-1 {
		return "", "", false
	}

	return rest[:idx], rest[idx+1:], true
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for key := range set {
		out = append(out, key)
	}

	sort.Strings(out)

	return out
}
