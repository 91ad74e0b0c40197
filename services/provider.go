package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/malusev998/currency"
	"github.com/malusev998/currency/cache"
	"github.com/malusev998/currency/metrics"
)

var ErrCurrencyListUnsupported = errors.New("provider does not list supported currencies")

type (
	// CacheAttacher is implemented by providers that can take a bulk rate cache after construction.
	CacheAttacher interface {
		SetRatesCache(ratesCache *cache.RatesCache)
	}

	// CachedProvider wraps a vendor Fetcher with the bulk rate cache.
	// A nil cache means every call goes upstream.
	CachedProvider struct {
		fetcher currency.Fetcher
		logger  *slog.Logger
		group   singleflight.Group

		mu         sync.RWMutex
		ratesCache *cache.RatesCache
	}
)

var (
	_ currency.RateProvider   = (*CachedProvider)(nil)
	_ currency.CurrencyLister = (*CachedProvider)(nil)
	_ CacheAttacher           = (*CachedProvider)(nil)
)

func NewCachedProvider(fetcher currency.Fetcher, ratesCache *cache.RatesCache, logger *slog.Logger) *CachedProvider {
	if logger == nil {
		logger = slog.Default()
	}

	return &CachedProvider{
		fetcher:    fetcher,
		ratesCache: ratesCache,
		logger:     logger.With("provider", fetcher.Name()),
	}
}

func (p *CachedProvider) Name() string {
	return p.fetcher.Name()
}

func (p *CachedProvider) IsConfigValid() bool {
	return p.fetcher.IsConfigValid()
}

func (p *CachedProvider) SetRatesCache(ratesCache *cache.RatesCache) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.ratesCache = ratesCache
}

func (p *CachedProvider) cache() *cache.RatesCache {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.ratesCache
}

// GetExchangeRates serves base from the bulk cache, falling back to the vendor.
// A blank base means currency.DefaultBase.
func (p *CachedProvider) GetExchangeRates(ctx context.Context, base string) currency.RatesResponse {
	res, _ := p.exchangeRates(ctx, base)

	return res
}

// exchangeRates also reports whether the response was read from the bulk cache.
func (p *CachedProvider) exchangeRates(ctx context.Context, base string) (currency.RatesResponse, bool) {
	normalized, err := currency.ValidateBase(base)
	if err != nil {
		return currency.Failed(currency.NormalizeCode(base), err), false
	}

	if ratesCache := p.cache(); ratesCache != nil {
		if rates, ok := p.lookup(ctx, ratesCache, normalized); ok {
			return currency.RatesResponse{
				Success: true,
				Base:    normalized,
				Date:    time.Now().UTC().Format(currency.DateFormat),
				Rates:   rates,
			}, true
		}
	}

	return p.fetch(ctx, normalized), false
}

// lookup discards every cache error, the caller falls back to a live fetch.
func (p *CachedProvider) lookup(ctx context.Context, ratesCache *cache.RatesCache, base string) (currency.Rates, bool) {
	rates, err := ratesCache.GetRates(ctx, p.Name(), base)

	switch {
	case err == nil:
		metrics.ObserveCacheLookup(p.Name(), metrics.CacheHit)
		p.logger.Debug("rates cache hit", "base", base)

		return rates, true
	case errors.Is(err, cache.ErrCacheMiss):
		metrics.ObserveCacheLookup(p.Name(), metrics.CacheMiss)
		p.logger.Debug("rates cache miss", "base", base)
	case errors.Is(err, cache.ErrCorruptedEntry):
		metrics.ObserveCacheLookup(p.Name(), metrics.CacheCorrupt)
	default:
		metrics.ObserveCacheLookup(p.Name(), metrics.CacheError)
		p.logger.Warn("rates cache lookup failed", "base", base, "error", err)
	}

	return nil, false
}

// fetch collapses concurrent misses for base into one vendor call. The shared
// call runs detached from every caller's cancellation and is bounded by the
// vendor http client timeout; each caller still stops waiting on its own ctx.
func (p *CachedProvider) fetch(ctx context.Context, base string) currency.RatesResponse {
	if err := ctx.Err(); err != nil {
		return currency.Failed(base, err)
	}

	fetchCtx := context.WithoutCancel(ctx)

	ch := p.group.DoChan(base, func() (interface{}, error) {
		start := time.Now()
		res, err := p.fetcher.Fetch(fetchCtx, base)

		if err == nil && !res.Success {
			err = fmt.Errorf("%w: %s", currency.ErrProviderFailure, res.Error)
		}

		metrics.ObserveFetch(p.Name(), time.Since(start).Seconds(), err)

		if err != nil {
			return nil, err
		}

		if ratesCache := p.cache(); ratesCache != nil {
			if err := ratesCache.SetRates(fetchCtx, p.Name(), base, res.Rates, 0); err != nil {
				p.logger.Warn("error while caching rates", "base", base, "error", err)
			}
		}

		return res, nil
	})

	select {
	case <-ctx.Done():
		p.logger.Warn("stopped waiting for rates", "base", base, "error", ctx.Err())

		return currency.Failed(base, ctx.Err())
	case result := <-ch:
		if result.Err != nil {
			p.logger.Warn("error while fetching rates", "base", base, "error", result.Err)

			return currency.Failed(base, result.Err)
		}

		res := result.Val.(currency.RatesResponse)
		res.Rates = res.Rates.Clone()

		return res
	}
}

// RefreshRates drops the cached entry for base before fetching it again.
func (p *CachedProvider) RefreshRates(ctx context.Context, base string) currency.RatesResponse {
	normalized, err := currency.ValidateBase(base)
	if err != nil {
		return currency.Failed(currency.NormalizeCode(base), err)
	}

	if ratesCache := p.cache(); ratesCache != nil {
		if err := ratesCache.ClearRates(ctx, p.Name(), normalized); err != nil {
			p.logger.Warn("error while clearing cached rates", "base", normalized, "error", err)
		}
	}

	return p.fetch(ctx, normalized)
}

func (p *CachedProvider) IsRatesCached(ctx context.Context, base string) bool {
	ratesCache := p.cache()
	if ratesCache == nil {
		return false
	}

	ok, err := ratesCache.HasRates(ctx, p.Name(), base)
	if err != nil {
		p.logger.Warn("error while probing rates cache", "base", base, "error", err)

		return false
	}

	return ok
}

func (p *CachedProvider) GetRatesCacheTTL(ctx context.Context, base string) time.Duration {
	ratesCache := p.cache()
	if ratesCache == nil {
		return cache.NoExpiry
	}

	ttl, err := ratesCache.GetTTL(ctx, p.Name(), base)
	if err != nil {
		p.logger.Warn("error while reading rates cache ttl", "base", base, "error", err)

		return cache.NoExpiry
	}

	return ttl
}

func (p *CachedProvider) SupportedCurrencies(ctx context.Context) ([]string, error) {
	lister, ok := p.fetcher.(currency.CurrencyLister)
	if !ok {
		return nil, fmt.Errorf("%s: %w", p.Name(), ErrCurrencyListUnsupported)
	}

	return lister.SupportedCurrencies(ctx)
}
