package fetchers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/malusev998/currency"
)

type (
	ExchangeRatesAPIConfig struct {
		BaseConfig
	}

	ExchangeRatesAPIFetcher struct {
		url    string
		apiKey string
		http   *httpClient
	}

	exchangeRatesAPIError struct {
		Code    json.RawMessage `json:"code"`
		Message string          `json:"message"`
	}

	exchangeRatesAPIResponse struct {
		Base  string                 `json:"base"`
		Date  string                 `json:"date"`
		Rates map[string]float64     `json:"rates"`
		Error *exchangeRatesAPIError `json:"error"`
	}
)

func NewExchangeRatesAPIFetcher(config ExchangeRatesAPIConfig) (*ExchangeRatesAPIFetcher, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("%s: %w", currency.ExchangeRatesAPIProvider, ErrMissingAPIKey)
	}

	return &ExchangeRatesAPIFetcher{
		url:    config.url(ExchangeRatesAPIURL),
		apiKey: config.APIKey,
		http:   newHTTPClient(config.BaseConfig),
	}, nil
}

func (e *ExchangeRatesAPIFetcher) Name() string {
	return currency.ExchangeRatesAPIProvider.String()
}

func (e *ExchangeRatesAPIFetcher) IsConfigValid() bool {
	return e.apiKey != ""
}

func (e *ExchangeRatesAPIFetcher) Fetch(ctx context.Context, base string) (currency.RatesResponse, error) {
	base, err := currency.ValidateCode(base)
	if err != nil {
		return currency.RatesResponse{}, err
	}

	q := url.Values{}
	q.Add("access_key", e.apiKey)
	q.Add("base", base)

	res, err := e.http.get(ctx, e.url+"/latest?"+q.Encode())
	if err != nil {
		return currency.RatesResponse{}, fmt.Errorf("%s: %w", currency.ExchangeRatesAPIProvider, err)
	}

	var data exchangeRatesAPIResponse
	if err := json.Unmarshal(res.body, &data); err != nil {
		if !isSuccess(res.status) {
			return currency.RatesResponse{}, fmt.Errorf("%s: %w", currency.ExchangeRatesAPIProvider, statusError(res.status))
		}

		return currency.RatesResponse{}, fmt.Errorf("%s: %w: %v", currency.ExchangeRatesAPIProvider, ErrInvalidResponse, err)
	}

	if data.Error != nil {
		return currency.RatesResponse{}, &currency.APIError{
			Provider: currency.ExchangeRatesAPIProvider.String(),
			Code:     rawCode(data.Error.Code),
			Message:  data.Error.Message,
		}
	}

	if !isSuccess(res.status) {
		return currency.RatesResponse{}, fmt.Errorf("%s: %w", currency.ExchangeRatesAPIProvider, statusError(res.status))
	}

	return normalize(base, data.Base, data.Date, data.Rates)
}

// rawCode accepts both numeric and string error codes.
func rawCode(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return strconv.Itoa(n)
	}

	return string(raw)
}
