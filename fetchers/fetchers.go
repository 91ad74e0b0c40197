package fetchers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/malusev998/currency"
)

const (
	FixerURL             = "https://data.fixer.io/api"
	ExchangeRatesAPIURL  = "https://api.exchangeratesapi.io/v1"
	ExchangeRateAPIURL   = "https://v6.exchangerate-api.com/v6"
	OpenExchangeRatesURL = "https://openexchangerates.org/api"

	DefaultTimeout = 10 * time.Second
	DefaultRetries = 3

	defaultRetryInterval = 250 * time.Millisecond
	maxBodySize          = 4 << 20
)

var (
	ErrMissingAPIKey   = errors.New("API key is required")
	ErrUnAuthorized    = errors.New("unauthorized, API key is not valid")
	ErrClient          = errors.New("client error")
	ErrServer          = errors.New("server error")
	ErrUnknown         = errors.New("unknown error")
	ErrAPILimitReached = errors.New("API limit reached")
	ErrInvalidResponse = errors.New("invalid response")
)

type (
	BaseConfig struct {
		URL     string
		APIKey  string
		Timeout time.Duration
		Retries int
		// Client replaces the default http.Client, Timeout is ignored when set.
		Client *http.Client
		Logger *slog.Logger
	}

	httpResponse struct {
		status int
		body   []byte
	}

	httpClient struct {
		client        *http.Client
		retries       uint64
		retryInterval time.Duration
		logger        *slog.Logger
	}
)

func (c BaseConfig) url(fallback string) string {
	if c.URL == "" {
		return fallback
	}

	return c.URL
}

func newHTTPClient(config BaseConfig) *httpClient {
	client := config.Client

	if client == nil {
		timeout := config.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}

		client = &http.Client{Timeout: timeout}
	}

	retries := config.Retries
	if retries < 0 {
		retries = 0
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &httpClient{
		client:        client,
		retries:       uint64(retries),
		retryInterval: defaultRetryInterval,
		logger:        logger,
	}
}

// get retries transport errors and 5xx responses with exponential backoff.
// Any other status is handed back for the vendor to interpret.
func (h *httpClient) get(ctx context.Context, url string) (httpResponse, error) {
	var res httpResponse
	attempt := 0

	operation := func() error {
		attempt++

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}

		req.Header.Add("Accept", "application/json")

		response, err := h.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}

			h.logger.Warn("request failed", "attempt", attempt, "error", err)

			return err
		}

		defer response.Body.Close()

		body, err := io.ReadAll(io.LimitReader(response.Body, maxBodySize))
		if err != nil {
			return err
		}

		if response.StatusCode >= http.StatusInternalServerError {
			h.logger.Warn("server error", "attempt", attempt, "status", response.StatusCode)

			return fmt.Errorf("%w: status %d", ErrServer, response.StatusCode)
		}

		res = httpResponse{status: response.StatusCode, body: body}

		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = h.retryInterval

	if err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(b, h.retries), ctx)); err != nil {
		return httpResponse{}, err
	}

	return res, nil
}

// statusError maps a non-2xx status that carried no vendor envelope.
func statusError(status int) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrUnAuthorized
	case status == http.StatusTooManyRequests:
		return ErrAPILimitReached
	case status >= http.StatusBadRequest && status < http.StatusInternalServerError:
		return fmt.Errorf("%w: status %d", ErrClient, status)
	case status >= http.StatusInternalServerError:
		return fmt.Errorf("%w: status %d", ErrServer, status)
	}

	return fmt.Errorf("%w: status %d", ErrUnknown, status)
}

func isSuccess(status int) bool {
	return status >= http.StatusOK && status < http.StatusMultipleChoices
}

// normalize ensures every code is upper case and that the base maps to 1.
// A vendor that reports a base other than the requested one is rejected.
func normalize(base, reported, date string, rates map[string]float64) (currency.RatesResponse, error) {
	if reported != "" && currency.NormalizeCode(reported) != base {
		return currency.RatesResponse{}, fmt.Errorf("%w: rates are based on %s, requested %s", ErrInvalidResponse, currency.NormalizeCode(reported), base)
	}

	if len(rates) == 0 {
		return currency.RatesResponse{}, fmt.Errorf("%w: no rates for %s", ErrInvalidResponse, base)
	}

	out := make(currency.Rates, len(rates)+1)
	for code, rate := range rates {
		if rate <= 0 || !currency.IsFinite(rate) {
			continue
		}

		out[currency.NormalizeCode(code)] = rate
	}

	out[base] = 1

	if date == "" {
		date = time.Now().UTC().Format(currency.DateFormat)
	}

	return currency.RatesResponse{
		Success: true,
		Base:    base,
		Date:    date,
		Rates:   out,
	}, nil
}

func unixDate(ts int64) string {
	if ts == 0 {
		return ""
	}

	return time.Unix(ts, 0).UTC().Format(currency.DateFormat)
}
