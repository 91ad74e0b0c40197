package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/malusev998/currency"
)

const (
	DefaultPairPrefix = "exchange_rate"
	DefaultPairTTL    = 86400 * time.Second
)

// PairCache is the older per-pair cache. It stores one rate per
// provider/from/to and is only consulted by the converter when attached.
type PairCache struct {
	backend Backend
	prefix  string
	ttl     time.Duration
	logger  *slog.Logger
}

func NewPairCache(backend Backend, config Config, logger *slog.Logger) *PairCache {
	if config.Prefix == "" {
		config.Prefix = DefaultPairPrefix
	}

	if config.TTL <= 0 {
		config.TTL = DefaultPairTTL
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PairCache{
		backend: backend,
		prefix:  config.Prefix,
		ttl:     config.TTL,
		logger:  logger,
	}
}

func (p *PairCache) Key(provider, from, to string) string {
	return fmt.Sprintf("%s:%s:%s_%s", p.prefix, provider, currency.NormalizeCode(from), currency.NormalizeCode(to))
}

func (p *PairCache) SetRate(ctx context.Context, provider, from, to string, rate float64) error {
	key := p.Key(provider, from, to)

	if err := p.backend.Set(ctx, key, strconv.FormatFloat(rate, 'f', -1, 64), p.ttl); err != nil {
		return fmt.Errorf("error while caching %s: %w", key, err)
	}

	return nil
}

// GetRate returns ErrCacheMiss when the pair is absent.
func (p *PairCache) GetRate(ctx context.Context, provider, from, to string) (float64, error) {
	key := p.Key(provider, from, to)

	raw, err := p.backend.Get(ctx, key)
	if errors.Is(err, ErrCacheMiss) {
		return 0, ErrCacheMiss
	}

	if err != nil {
		return 0, fmt.Errorf("error while reading %s: %w", key, err)
	}

	rate, err := strconv.ParseFloat(raw, 64)
	if err != nil || rate <= 0 {
		p.logger.Warn("discarding corrupted pair entry", "key", key, "value", raw)
		_ = p.backend.Del(ctx, key)

		return 0, fmt.Errorf("%w: %s", ErrCorruptedEntry, key)
	}

	return rate, nil
}

func (p *PairCache) ClearRate(ctx context.Context, provider, from, to string) error {
	return p.backend.Del(ctx, p.Key(provider, from, to))
}

// ClearFrom drops every pair of provider quoted against from.
func (p *PairCache) ClearFrom(ctx context.Context, provider, from string) error {
	return p.clear(ctx, fmt.Sprintf("%s:%s:%s_*", EscapePattern(p.prefix), EscapePattern(provider), EscapePattern(currency.NormalizeCode(from))))
}

func (p *PairCache) ClearProvider(ctx context.Context, provider string) error {
	return p.clear(ctx, fmt.Sprintf("%s:%s:*", EscapePattern(p.prefix), EscapePattern(provider)))
}

func (p *PairCache) Clear(ctx context.Context) error {
	return p.clear(ctx, EscapePattern(p.prefix)+":*")
}

func (p *PairCache) clear(ctx context.Context, pattern string) error {
	keys, err := p.backend.Keys(ctx, pattern)
	if err != nil {
		return fmt.Errorf("error while listing %s: %w", pattern, err)
	}

	if err := p.backend.Del(ctx, keys...); err != nil {
		return fmt.Errorf("error while deleting %s: %w", pattern, err)
	}

	p.logger.Debug("pair rates cleared", "pattern", pattern, "count", len(keys))

	return nil
}
