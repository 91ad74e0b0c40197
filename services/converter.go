package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/malusev998/currency"
	"github.com/malusev998/currency/cache"
	"github.com/malusev998/currency/metrics"
)

var ErrNoCache = errors.New("no rate cache configured")

type (
	ConverterOption func(*Converter)

	// cacheHitReporter is implemented by providers that know whether a
	// response was served from their cache.
	cacheHitReporter interface {
		exchangeRates(ctx context.Context, base string) (currency.RatesResponse, bool)
	}

	// Converter computes cross-rate conversions from the bound RateProvider.
	// The provider can be swapped while conversions are running.
	Converter struct {
		mu         sync.RWMutex
		provider   currency.RateProvider
		ratesCache *cache.RatesCache
		pairCache  *cache.PairCache

		logger *slog.Logger
		now    func() time.Time
	}
)

func WithRatesCache(ratesCache *cache.RatesCache) ConverterOption {
	return func(c *Converter) {
		c.ratesCache = ratesCache
	}
}

func WithPairCache(pairCache *cache.PairCache) ConverterOption {
	return func(c *Converter) {
		c.pairCache = pairCache
	}
}

func WithLogger(logger *slog.Logger) ConverterOption {
	return func(c *Converter) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewConverter binds provider, which may be nil until SetProvider is called.
func NewConverter(provider currency.RateProvider, options ...ConverterOption) *Converter {
	c := &Converter{
		logger: slog.Default(),
		now:    time.Now,
	}

	for _, option := range options {
		option(c)
	}

	c.SetProvider(provider)

	return c
}

// SetProvider swaps the active provider and hands it the converter's bulk rate cache.
func (c *Converter) SetProvider(provider currency.RateProvider) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.provider = provider

	if provider == nil || c.ratesCache == nil {
		return
	}

	if attacher, ok := provider.(CacheAttacher); ok {
		attacher.SetRatesCache(c.ratesCache)
	}
}

func (c *Converter) Provider() currency.RateProvider {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.provider
}

func (c *Converter) snapshot() (currency.RateProvider, *cache.PairCache) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.provider, c.pairCache
}

func validatePair(from, to string) (string, string, error) {
	normalizedFrom, err := currency.ValidateCode(from)
	if err != nil {
		return "", "", fmt.Errorf("%s -> %s: %w", from, to, err)
	}

	normalizedTo, err := currency.ValidateCode(to)
	if err != nil {
		return "", "", fmt.Errorf("%s -> %s: %w", from, to, err)
	}

	return normalizedFrom, normalizedTo, nil
}

func (c *Converter) ConvertCurrency(ctx context.Context, amount float64, from, to string) (currency.ConversionResult, error) {
	result, err := c.convert(ctx, amount, from, to)
	metrics.ObserveConversion(err)

	return result, err
}

func (c *Converter) convert(ctx context.Context, amount float64, from, to string) (currency.ConversionResult, error) {
	from, to, err := validatePair(from, to)
	if err != nil {
		return currency.ConversionResult{}, err
	}

	if err := currency.ValidateAmount(amount); err != nil {
		return currency.ConversionResult{}, fmt.Errorf("%s -> %s: %w", from, to, err)
	}

	if from == to {
		return currency.ConversionResult{
			Amount:          amount,
			From:            from,
			To:              to,
			ConvertedAmount: amount,
			Rate:            1,
			Timestamp:       c.now().UTC(),
		}, nil
	}

	rate, cached, err := c.rate(ctx, from, to)
	if err != nil {
		return currency.ConversionResult{}, err
	}

	return currency.ConversionResult{
		Amount:          amount,
		From:            from,
		To:              to,
		ConvertedAmount: currency.Convert(amount, rate),
		Rate:            currency.RoundRate(rate),
		Timestamp:       c.now().UTC(),
		Cached:          cached,
	}, nil
}

// rate derives to/from from the rate map fetched with from as the base.
// cached reports a pair cache hit or a bulk cache entry present before the fetch.
func (c *Converter) rate(ctx context.Context, from, to string) (float64, bool, error) {
	provider, pairCache := c.snapshot()
	if provider == nil {
		return 0, false, fmt.Errorf("%w: %s -> %s", currency.ErrNoProvider, from, to)
	}

	if pairCache != nil {
		rate, err := pairCache.GetRate(ctx, provider.Name(), from, to)
		if err == nil {
			return rate, true, nil
		}

		if !errors.Is(err, cache.ErrCacheMiss) {
			c.logger.Warn("pair cache lookup failed", "from", from, "to", to, "error", err)
		}
	}

	res, cached := exchangeRates(ctx, provider, from)
	if !res.Success {
		return 0, false, fmt.Errorf("%w: %s -> %s: %s", currency.ErrProviderFailure, from, to, res.Error)
	}

	fromRate, okFrom := res.Rates[from]
	toRate, okTo := res.Rates[to]

	if !okFrom || !okTo || fromRate <= 0 {
		return 0, false, fmt.Errorf("%w: %s -> %s", currency.ErrRateNotAvailable, from, to)
	}

	rate := toRate / fromRate
	if !currency.IsFinite(rate) || rate <= 0 {
		return 0, false, fmt.Errorf("%w: %s -> %s: rate %v", currency.ErrRateNotAvailable, from, to, rate)
	}

	if pairCache != nil {
		if err := pairCache.SetRate(ctx, provider.Name(), from, to, rate); err != nil {
			c.logger.Warn("error while caching pair rate", "from", from, "to", to, "error", err)
		}
	}

	return rate, cached, nil
}

// exchangeRates falls back to probing the provider cache before the fetch
// when the provider cannot report a hit itself.
func exchangeRates(ctx context.Context, provider currency.RateProvider, base string) (currency.RatesResponse, bool) {
	if reporter, ok := provider.(cacheHitReporter); ok {
		return reporter.exchangeRates(ctx, base)
	}

	cached := provider.IsRatesCached(ctx, base)

	return provider.GetExchangeRates(ctx, base), cached
}

// GetExchangeRates returns a copy of the rate map for base, currency.DefaultBase when blank.
func (c *Converter) GetExchangeRates(ctx context.Context, base string) (currency.Rates, error) {
	normalized, err := currency.ValidateBase(base)
	if err != nil {
		return nil, err
	}

	provider := c.Provider()
	if provider == nil {
		return nil, fmt.Errorf("%w: %s", currency.ErrNoProvider, normalized)
	}

	res := provider.GetExchangeRates(ctx, normalized)
	if !res.Success {
		return nil, fmt.Errorf("%w: %s: %s", currency.ErrProviderFailure, normalized, res.Error)
	}

	return res.Rates.Clone(), nil
}

// RefreshRates refetches base and drops the pair rates derived from it.
func (c *Converter) RefreshRates(ctx context.Context, base string) currency.RatesResponse {
	normalized, err := currency.ValidateBase(base)
	if err != nil {
		return currency.Failed(currency.NormalizeCode(base), err)
	}

	provider, pairCache := c.snapshot()
	if provider == nil {
		return currency.Failed(normalized, currency.ErrNoProvider)
	}

	res := provider.RefreshRates(ctx, normalized)

	if pairCache != nil {
		if err := pairCache.ClearFrom(ctx, provider.Name(), normalized); err != nil {
			c.logger.Warn("error while clearing pair rates", "base", normalized, "error", err)
		}
	}

	return res
}

// ClearCache drops cached rates of both caches. A blank providerName with a
// blank base clears everything, a blank base every base of providerName. A
// base without providerName targets the active provider.
func (c *Converter) ClearCache(ctx context.Context, providerName, base string) error {
	provider, pairCache := c.snapshot()

	c.mu.RLock()
	ratesCache := c.ratesCache
	c.mu.RUnlock()

	if ratesCache == nil && pairCache == nil {
		return ErrNoCache
	}

	if base != "" {
		normalized, err := currency.ValidateCode(base)
		if err != nil {
			return err
		}

		base = normalized

		if providerName == "" {
			if provider == nil {
				return fmt.Errorf("%w: %s", currency.ErrNoProvider, base)
			}

			providerName = provider.Name()
		}
	}

	var errs []error

	if ratesCache != nil {
		switch {
		case providerName == "":
			errs = append(errs, ratesCache.ClearAll(ctx))
		case base == "":
			errs = append(errs, ratesCache.ClearProviderRates(ctx, providerName))
		default:
			errs = append(errs, ratesCache.ClearRates(ctx, providerName, base))
		}
	}

	if pairCache != nil {
		switch {
		case providerName == "":
			errs = append(errs, pairCache.Clear(ctx))
		case base == "":
			errs = append(errs, pairCache.ClearProvider(ctx, providerName))
		default:
			errs = append(errs, pairCache.ClearFrom(ctx, providerName, base))
		}
	}

	return errors.Join(errs...)
}

// GetExchangeRate returns 1 for identical codes without consulting the provider.
func (c *Converter) GetExchangeRate(ctx context.Context, from, to string) (float64, error) {
	from, to, err := validatePair(from, to)
	if err != nil {
		return 0, err
	}

	if from == to {
		return 1, nil
	}

	rate, _, err := c.rate(ctx, from, to)

	return rate, err
}

// ConvertMultiple keeps the order of requests. A failed request yields a
// zero placeholder with Error set instead of failing the batch.
func (c *Converter) ConvertMultiple(ctx context.Context, requests []currency.ConversionRequest) []currency.ConversionResult {
	results := make([]currency.ConversionResult, 0, len(requests))

	for i, req := range requests {
		result, err := c.ConvertCurrency(ctx, req.Amount, req.From, req.To)
		if err != nil {
			c.logger.Warn("batch conversion failed", "index", i, "from", req.From, "to", req.To, "error", err)

			result = currency.ConversionResult{
				Amount:    req.Amount,
				From:      currency.NormalizeCode(req.From),
				To:        currency.NormalizeCode(req.To),
				Timestamp: c.now().UTC(),
				Error:     err.Error(),
			}
		}

		results = append(results, result)
	}

	return results
}

func (c *Converter) SupportedCurrencies(ctx context.Context) ([]string, error) {
	provider := c.Provider()
	if provider == nil {
		return nil, currency.ErrNoProvider
	}

	lister, ok := provider.(currency.CurrencyLister)
	if !ok {
		return nil, fmt.Errorf("%s: %w", provider.Name(), ErrCurrencyListUnsupported)
	}

	return lister.SupportedCurrencies(ctx)
}
