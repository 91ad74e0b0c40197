package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/malusev998/currency"
)

var _ currency.Service = Service{}

// Service snapshots provider rates into every configured storage.
type Service struct {
	Provider currency.RateProvider
	Storage  []currency.Storage
	Logger   *slog.Logger
}

func (s Service) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}

	return s.Logger
}

// flatten turns each rate map into From/To pairs ordered by code, skipping the base itself.
func flatten(res currency.RatesResponse, provider currency.Provider, createdAt time.Time) []currency.Currency {
	codes := make([]string, 0, len(res.Rates))
	for code := range res.Rates {
		if code != res.Base {
			codes = append(codes, code)
		}
	}

	sort.Strings(codes)

	currencies := make([]currency.Currency, 0, len(codes))
	for _, code := range codes {
		currencies = append(currencies, currency.Currency{
			From:      res.Base,
			To:        code,
			Provider:  provider,
			Rate:      res.Rates[code],
			CreatedAt: createdAt,
		})
	}

	return currencies
}

func (s Service) fetch(ctx context.Context, baseCurrencies []string) ([]currency.Currency, error) {
	provider := currency.Provider(s.Provider.Name())
	createdAt := time.Now().UTC()
	currencies := make([]currency.Currency, 0)

	for _, base := range baseCurrencies {
		base = currency.NormalizeCode(base)

		res := s.Provider.GetExchangeRates(ctx, base)
		if !res.Success {
			return nil, fmt.Errorf("%w: %s: %s", currency.ErrProviderFailure, base, res.Error)
		}

		currencies = append(currencies, flatten(res, provider, createdAt)...)
	}

	return currencies, nil
}

func (s Service) Save(ctx context.Context, baseCurrencies []string) (map[string][]currency.CurrencyWithID, error) {
	if s.Provider == nil {
		return nil, currency.ErrNoProvider
	}

	fetchedCurrencies, err := s.fetch(ctx, baseCurrencies)
	if err != nil {
		return nil, err
	}

	var mutex sync.Mutex
	data := make(map[string][]currency.CurrencyWithID, len(s.Storage))
	group, ctx := errgroup.WithContext(ctx)

	for _, storage := range s.Storage {
		storage := storage

		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			stored, err := storage.Store(fetchedCurrencies)
			if err != nil {
				return fmt.Errorf("%s: %w", storage.GetStorageProviderName(), err)
			}

			mutex.Lock()
			data[storage.GetStorageProviderName()] = stored
			mutex.Unlock()

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	s.logger().Info("rates saved", "provider", s.Provider.Name(), "bases", len(baseCurrencies), "rows", len(fetchedCurrencies), "storages", len(s.Storage))

	return data, nil
}
