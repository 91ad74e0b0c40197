package fetchers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"

	"github.com/malusev998/currency"
)

type (
	OpenExchangeRatesConfig struct {
		BaseConfig
	}

	OpenExchangeRatesFetcher struct {
		url    string
		apiKey string
		http   *httpClient
	}

	openExchangeRatesResponse struct {
		Error       bool               `json:"error"`
		Status      int                `json:"status"`
		Message     string             `json:"message"`
		Description string             `json:"description"`
		Timestamp   int64              `json:"timestamp"`
		Base        string             `json:"base"`
		Rates       map[string]float64 `json:"rates"`
	}
)

func NewOpenExchangeRatesFetcher(config OpenExchangeRatesConfig) (*OpenExchangeRatesFetcher, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("%s: %w", currency.OpenExchangeRatesProvider, ErrMissingAPIKey)
	}

	return &OpenExchangeRatesFetcher{
		url:    config.url(OpenExchangeRatesURL),
		apiKey: config.APIKey,
		http:   newHTTPClient(config.BaseConfig),
	}, nil
}

func (o *OpenExchangeRatesFetcher) Name() string {
	return currency.OpenExchangeRatesProvider.String()
}

func (o *OpenExchangeRatesFetcher) IsConfigValid() bool {
	return o.apiKey != ""
}

func (o *OpenExchangeRatesFetcher) Fetch(ctx context.Context, base string) (currency.RatesResponse, error) {
	base, err := currency.ValidateCode(base)
	if err != nil {
		return currency.RatesResponse{}, err
	}

	q := url.Values{}
	q.Add("app_id", o.apiKey)
	q.Add("base", base)

	res, err := o.http.get(ctx, o.url+"/latest.json?"+q.Encode())
	if err != nil {
		return currency.RatesResponse{}, fmt.Errorf("%s: %w", currency.OpenExchangeRatesProvider, err)
	}

	var data openExchangeRatesResponse
	if err := json.Unmarshal(res.body, &data); err != nil {
		if !isSuccess(res.status) {
			return currency.RatesResponse{}, fmt.Errorf("%s: %w", currency.OpenExchangeRatesProvider, statusError(res.status))
		}

		return currency.RatesResponse{}, fmt.Errorf("%s: %w: %v", currency.OpenExchangeRatesProvider, ErrInvalidResponse, err)
	}

	if data.Error {
		message := data.Description
		if message == "" {
			message = data.Message
		}

		return currency.RatesResponse{}, &currency.APIError{
			Provider: currency.OpenExchangeRatesProvider.String(),
			Code:     strconv.Itoa(data.Status),
			Message:  message,
		}
	}

	if !isSuccess(res.status) {
		return currency.RatesResponse{}, fmt.Errorf("%s: %w", currency.OpenExchangeRatesProvider, statusError(res.status))
	}

	return normalize(base, data.Base, unixDate(data.Timestamp), data.Rates)
}

// SupportedCurrencies uses the public currencies endpoint, it needs no key.
func (o *OpenExchangeRatesFetcher) SupportedCurrencies(ctx context.Context) ([]string, error) {
	res, err := o.http.get(ctx, o.url+"/currencies.json")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", currency.OpenExchangeRatesProvider, err)
	}

	if !isSuccess(res.status) {
		return nil, fmt.Errorf("%s: %w", currency.OpenExchangeRatesProvider, statusError(res.status))
	}

	var names map[string]string
	if err := json.Unmarshal(res.body, &names); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", currency.OpenExchangeRatesProvider, ErrInvalidResponse, err)
	}

	codes := make([]string, 0, len(names))
	for code := range names {
		codes = append(codes, code)
	}

	sort.Strings(codes)

	return codes, nil
}
