package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/malusev998/currency"
)

var (
	ErrCurrencyNotFound  = errors.New("rate for the currency is not found in storage")
	ErrNoStorageProvided = errors.New("no storage provided")
	ErrTimeRanOut        = errors.New("time has run out")
)

var _ currency.Conversion = HistoryConversion{}

type (
	// HistoryConversion converts with the last rate stored on the given day.
	HistoryConversion struct {
		Storages []currency.Storage
	}

	fetchCurrencies struct {
		currencies []currency.CurrencyWithID
		error      error
	}
)

func (c HistoryConversion) Convert(ctx context.Context, from, to string, provider currency.Provider, value float64, date time.Time) (float64, error) {
	from, to, err := validatePair(from, to)
	if err != nil {
		return 0, err
	}

	if err := currency.ValidateAmount(value); err != nil {
		return 0, fmt.Errorf("%s -> %s: %w", from, to, err)
	}

	if len(c.Storages) == 0 {
		return 0, ErrNoStorageProvided
	}

	if from == to {
		return value, nil
	}

	startOfDay := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())

	if len(c.Storages) == 1 {
		currencies, err := c.Storages[0].GetByDateAndProvider(from, to, provider, startOfDay, date, 1, 1)
		if err != nil {
			return 0, err
		}

		if len(currencies) == 0 {
			return 0, ErrCurrencyNotFound
		}

		return convertStored(value, currencies[0])
	}

	// first storage that has the rate wins
	currenciesChannel := make(chan fetchCurrencies, len(c.Storages))

	for _, storage := range c.Storages {
		go func(storage currency.Storage) {
			currencies, err := storage.GetByDateAndProvider(from, to, provider, startOfDay, date, 1, 1)
			currenciesChannel <- fetchCurrencies{
				currencies: currencies,
				error:      err,
			}
		}(storage)
	}

	lastErr := ErrCurrencyNotFound

	for range c.Storages {
		select {
		case <-ctx.Done():
			return 0, ErrTimeRanOut
		case data := <-currenciesChannel:
			if data.error != nil {
				lastErr = data.error
				continue
			}

			if len(data.currencies) == 0 {
				continue
			}

			return convertStored(value, data.currencies[0])
		}
	}

	return 0, lastErr
}

func convertStored(value float64, stored currency.CurrencyWithID) (float64, error) {
	if !currency.IsFinite(stored.Rate) || stored.Rate <= 0 {
		return 0, fmt.Errorf("%w: %s -> %s: stored rate %v", currency.ErrRateNotAvailable, stored.From, stored.To, stored.Rate)
	}

	return currency.Convert(value, stored.Rate), nil
}
