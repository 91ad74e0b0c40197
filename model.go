package currency

import (
	"time"
)

const DateFormat = "2006-01-02"

type (
	// Rates maps a currency code to its rate relative to one implicit base.
	Rates map[string]float64

	RatesResponse struct {
		Success bool   `json:"success"`
		Base    string `json:"base"`
		Date    string `json:"date"`
		Rates   Rates  `json:"rates"`
		Error   string `json:"error,omitempty"`
	}

	ConversionRequest struct {
		Amount float64 `json:"amount"`
		From   string  `json:"from"`
		To     string  `json:"to"`
	}

	ConversionResult struct {
		Amount          float64   `json:"amount"`
		From            string    `json:"from"`
		To              string    `json:"to"`
		ConvertedAmount float64   `json:"convertedAmount"`
		Rate            float64   `json:"rate"`
		Timestamp       time.Time `json:"timestamp"`
		Cached          bool      `json:"cached"`
		// Error is only set on placeholders produced by a failed batch entry.
		Error string `json:"error,omitempty"`
	}

	// Currency is a single stored pair rate.
	Currency struct {
		From      string
		To        string
		Provider  Provider
		Rate      float64
		CreatedAt time.Time
	}

	CurrencyWithID struct {
		Currency
		ID interface{}
	}
)

// Clone returns a copy safe to hand out to callers.
func (r Rates) Clone() Rates {
	if r == nil {
		return nil
	}

	out := make(Rates, len(r))
	for code, rate := range r {
		out[code] = rate
	}

	return out
}

// Failed builds an unsuccessful response for base.
func Failed(base string, err error) RatesResponse {
	return RatesResponse{
		Success: false,
		Base:    base,
		Error:   err.Error(),
	}
}

// IsSkipped reports whether r is a placeholder for a failed batch entry.
func (r ConversionResult) IsSkipped() bool {
	return r.ConvertedAmount == 0 && r.Rate == 0
}
