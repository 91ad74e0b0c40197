package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/malusev998/currency"
)

func TestService_Save(t *testing.T) {
	t.Parallel()
	baseCurrencies := []string{"usd", "GBP"}

	t.Run("SaveCorrectly", func(t *testing.T) {
		t.Parallel()
		asserts := require.New(t)
		mysql := &MockStorage{name: "mysql"}
		mongo := &MockStorage{name: "mongodb"}

		service := Service{
			Provider: newStubProvider(scenarioRates()),
			Storage:  []currency.Storage{mysql, mongo},
			Logger:   discardLogger(),
		}

		matcher := mock.MatchedBy(func(currencies []currency.Currency) bool {
			if len(currencies) != 4 {
				return false
			}

			// USD rows first, sorted by target code
			return currencies[0].From == "USD" && currencies[0].To == "EUR" &&
				currencies[1].To == "GBP" && currencies[1].Rate == 0.8 &&
				currencies[2].From == "GBP" && currencies[2].To == "JPY" &&
				currencies[3].To == "USD" && currencies[3].Provider == currency.Provider("Stub")
		})

		stored := []currency.CurrencyWithID{{Currency: currency.Currency{From: "USD", To: "EUR"}, ID: uint64(1)}}
		mysql.On("Store", matcher).Return(stored, nil)
		mongo.On("Store", matcher).Return(stored, nil)

		saved, err := service.Save(context.Background(), baseCurrencies)
		asserts.NoError(err)
		asserts.Contains(saved, "mysql")
		asserts.Contains(saved, "mongodb")

		for _, c := range saved["mysql"] {
			_, ok := c.ID.(uint64)
			asserts.True(ok)
		}

		mysql.AssertExpectations(t)
		mongo.AssertExpectations(t)
	})

	t.Run("ProviderReturnsError", func(t *testing.T) {
		t.Parallel()
		asserts := require.New(t)
		storage := &MockStorage{}

		service := Service{
			Provider: newStubProvider(scenarioRates()),
			Storage:  []currency.Storage{storage},
			Logger:   discardLogger(),
		}

		saved, err := service.Save(context.Background(), []string{"USD", "CHF"})
		asserts.Nil(saved)
		asserts.ErrorIs(err, currency.ErrProviderFailure)
		storage.AssertNotCalled(t, "Store", mock.Anything)
	})

	t.Run("StorageReturnsError", func(t *testing.T) {
		t.Parallel()
		asserts := require.New(t)
		storage := &MockStorage{}

		service := Service{
			Provider: newStubProvider(scenarioRates()),
			Storage:  []currency.Storage{storage},
			Logger:   discardLogger(),
		}

		storage.On("Store", mock.Anything).Return(nil, errors.New("error while inserting into storage"))

		saved, err := service.Save(context.Background(), baseCurrencies)
		asserts.Nil(saved)
		asserts.Error(err)
		asserts.Contains(err.Error(), "MockStorage")
	})

	t.Run("NoProvider", func(t *testing.T) {
		t.Parallel()
		asserts := require.New(t)

		_, err := Service{}.Save(context.Background(), baseCurrencies)
		asserts.ErrorIs(err, currency.ErrNoProvider)
	})
}
