package fetchers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/malusev998/currency"
)

const exchangeRateAPISuccess = "success"

type (
	ExchangeRateAPIConfig struct {
		BaseConfig
	}

	// ExchangeRateAPIFetcher talks to exchangerate-api.com, which carries the
	// key in the path instead of the query.
	ExchangeRateAPIFetcher struct {
		url    string
		apiKey string
		http   *httpClient
	}

	exchangeRateAPIResponse struct {
		Result          string             `json:"result"`
		ErrorType       string             `json:"error-type"`
		BaseCode        string             `json:"base_code"`
		TimeLastUpdate  int64              `json:"time_last_update_unix"`
		ConversionRates map[string]float64 `json:"conversion_rates"`
	}
)

func NewExchangeRateAPIFetcher(config ExchangeRateAPIConfig) (*ExchangeRateAPIFetcher, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("%s: %w", currency.ExchangeRateAPIProvider, ErrMissingAPIKey)
	}

	return &ExchangeRateAPIFetcher{
		url:    config.url(ExchangeRateAPIURL),
		apiKey: config.APIKey,
		http:   newHTTPClient(config.BaseConfig),
	}, nil
}

func (e *ExchangeRateAPIFetcher) Name() string {
	return currency.ExchangeRateAPIProvider.String()
}

func (e *ExchangeRateAPIFetcher) IsConfigValid() bool {
	return e.apiKey != ""
}

func (e *ExchangeRateAPIFetcher) Fetch(ctx context.Context, base string) (currency.RatesResponse, error) {
	base, err := currency.ValidateCode(base)
	if err != nil {
		return currency.RatesResponse{}, err
	}

	endpoint := fmt.Sprintf("%s/%s/latest/%s", e.url, url.PathEscape(e.apiKey), base)

	res, err := e.http.get(ctx, endpoint)
	if err != nil {
		return currency.RatesResponse{}, fmt.Errorf("%s: %w", currency.ExchangeRateAPIProvider, err)
	}

	var data exchangeRateAPIResponse
	if err := json.Unmarshal(res.body, &data); err != nil {
		if !isSuccess(res.status) {
			return currency.RatesResponse{}, fmt.Errorf("%s: %w", currency.ExchangeRateAPIProvider, statusError(res.status))
		}

		return currency.RatesResponse{}, fmt.Errorf("%s: %w: %v", currency.ExchangeRateAPIProvider, ErrInvalidResponse, err)
	}

	if data.Result != exchangeRateAPISuccess {
		message := data.ErrorType
		if message == "" {
			message = "request was not successful"
		}

		return currency.RatesResponse{}, &currency.APIError{
			Provider: currency.ExchangeRateAPIProvider.String(),
			Code:     data.ErrorType,
			Message:  message,
		}
	}

	return normalize(base, data.BaseCode, unixDate(data.TimeLastUpdate), data.ConversionRates)
}
