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
	FixerConfig struct {
		BaseConfig
	}

	FixerFetcher struct {
		url    string
		apiKey string
		http   *httpClient
	}

	fixerError struct {
		Code int    `json:"code"`
		Type string `json:"type"`
		Info string `json:"info"`
	}

	fixerResponse struct {
		Success bool               `json:"success"`
		Base    string             `json:"base"`
		Date    string             `json:"date"`
		Rates   map[string]float64 `json:"rates"`
		Symbols map[string]string  `json:"symbols"`
		Error   *fixerError        `json:"error"`
	}
)

func NewFixerFetcher(config FixerConfig) (*FixerFetcher, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("%s: %w", currency.FixerProvider, ErrMissingAPIKey)
	}

	return &FixerFetcher{
		url:    config.url(FixerURL),
		apiKey: config.APIKey,
		http:   newHTTPClient(config.BaseConfig),
	}, nil
}

func (f *FixerFetcher) Name() string {
	return currency.FixerProvider.String()
}

func (f *FixerFetcher) IsConfigValid() bool {
	return f.apiKey != ""
}

func (f *FixerFetcher) Fetch(ctx context.Context, base string) (currency.RatesResponse, error) {
	base, err := currency.ValidateCode(base)
	if err != nil {
		return currency.RatesResponse{}, err
	}

	q := url.Values{}
	q.Add("access_key", f.apiKey)
	q.Add("base", base)

	data, err := f.get(ctx, "/latest", q)
	if err != nil {
		return currency.RatesResponse{}, err
	}

	return normalize(base, data.Base, data.Date, data.Rates)
}

func (f *FixerFetcher) SupportedCurrencies(ctx context.Context) ([]string, error) {
	q := url.Values{}
	q.Add("access_key", f.apiKey)

	data, err := f.get(ctx, "/symbols", q)
	if err != nil {
		return nil, err
	}

	codes := make([]string, 0, len(data.Symbols))
	for code := range data.Symbols {
		codes = append(codes, code)
	}

	sort.Strings(codes)

	return codes, nil
}

func (f *FixerFetcher) get(ctx context.Context, path string, q url.Values) (fixerResponse, error) {
	res, err := f.http.get(ctx, f.url+path+"?"+q.Encode())
	if err != nil {
		return fixerResponse{}, fmt.Errorf("%s: %w", currency.FixerProvider, err)
	}

	var data fixerResponse
	if err := json.Unmarshal(res.body, &data); err != nil {
		if !isSuccess(res.status) {
			return fixerResponse{}, fmt.Errorf("%s: %w", currency.FixerProvider, statusError(res.status))
		}

		return fixerResponse{}, fmt.Errorf("%s: %w: %v", currency.FixerProvider, ErrInvalidResponse, err)
	}

	// fixer answers 200 with success=false for most failures
	if !data.Success {
		apiErr := &currency.APIError{Provider: currency.FixerProvider.String(), Message: "request was not successful"}

		if data.Error != nil {
			apiErr.Code = strconv.Itoa(data.Error.Code)
			apiErr.Message = data.Error.Info

			if apiErr.Message == "" {
				apiErr.Message = data.Error.Type
			}
		}

		return fixerResponse{}, apiErr
	}

	return data, nil
}
