package currency

import (
	"context"
	"time"
)

type (
	// Service fetches rates for the given base currencies and persists them.
	Service interface {
		Save(ctx context.Context, baseCurrencies []string) (map[string][]CurrencyWithID, error)
	}

	// Conversion converts using previously stored rates.
	Conversion interface {
		Convert(ctx context.Context, from, to string, provider Provider, value float64, date time.Time) (float64, error)
	}
)
