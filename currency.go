package currency

import (
	"context"
	"time"
)

type (
	// Fetcher is implemented once per rate vendor. Fetch returns the full rate
	// map for base with rates[base] = 1.
	Fetcher interface {
		Name() string
		IsConfigValid() bool
		Fetch(ctx context.Context, base string) (RatesResponse, error)
	}

	// CurrencyLister is an optional capability of a Fetcher or RateProvider.
	CurrencyLister interface {
		SupportedCurrencies(ctx context.Context) ([]string, error)
	}

	// RateProvider is the cache-aware entry point used by the converter.
	// GetExchangeRates and RefreshRates never return an error value, failures
	// are reported with Success set to false.
	RateProvider interface {
		Name() string
		IsConfigValid() bool
		GetExchangeRates(ctx context.Context, base string) RatesResponse
		RefreshRates(ctx context.Context, base string) RatesResponse
		IsRatesCached(ctx context.Context, base string) bool
		GetRatesCacheTTL(ctx context.Context, base string) time.Duration
	}
)
