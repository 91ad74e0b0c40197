package fetchers_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/malusev998/currency"
	"github.com/malusev998/currency/fetchers"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return server
}

func baseConfig(url string) fetchers.BaseConfig {
	return fetchers.BaseConfig{
		URL:     url,
		APIKey:  "secret",
		Retries: 0,
		Logger:  discardLogger(),
	}
}

func TestFixerFetcher(t *testing.T) {
	t.Parallel()

	t.Run("Success", func(t *testing.T) {
		t.Parallel()
		asserts := require.New(t)

		server := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			asserts.Equal("/latest", r.URL.Path)
			asserts.Equal("secret", r.URL.Query().Get("access_key"))
			asserts.Equal("USD", r.URL.Query().Get("base"))
			_, _ = io.WriteString(w, `{"success":true,"base":"USD","date":"2024-01-02","rates":{"eur":0.9,"GBP":0.8}}`)
		})

		fetcher, err := fetchers.NewFixerFetcher(fetchers.FixerConfig{BaseConfig: baseConfig(server.URL)})
		asserts.NoError(err)
		asserts.True(fetcher.IsConfigValid())
		asserts.Equal("Fixer.io", fetcher.Name())

		res, err := fetcher.Fetch(context.Background(), "usd")
		asserts.NoError(err)
		asserts.True(res.Success)
		asserts.Equal("USD", res.Base)
		asserts.Equal("2024-01-02", res.Date)
		asserts.Equal(1.0, res.Rates["USD"])
		asserts.Equal(0.9, res.Rates["EUR"])
		asserts.Equal(0.8, res.Rates["GBP"])
	})

	t.Run("VendorError", func(t *testing.T) {
		t.Parallel()
		asserts := require.New(t)

		server := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{"success":false,"error":{"code":101,"type":"invalid_access_key","info":"You have not supplied a valid API Access Key."}}`)
		})

		fetcher, err := fetchers.NewFixerFetcher(fetchers.FixerConfig{BaseConfig: baseConfig(server.URL)})
		asserts.NoError(err)

		_, err = fetcher.Fetch(context.Background(), "USD")
		asserts.Error(err)

		var apiErr *currency.APIError
		asserts.True(errors.As(err, &apiErr))
		asserts.Equal("101", apiErr.Code)
		asserts.Equal("Fixer.io", apiErr.Provider)
		asserts.Contains(err.Error(), "valid API Access Key")
	})

	t.Run("SupportedCurrencies", func(t *testing.T) {
		t.Parallel()
		asserts := require.New(t)

		server := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			asserts.Equal("/symbols", r.URL.Path)
			_, _ = io.WriteString(w, `{"success":true,"symbols":{"USD":"United States Dollar","EUR":"Euro"}}`)
		})

		fetcher, err := fetchers.NewFixerFetcher(fetchers.FixerConfig{BaseConfig: baseConfig(server.URL)})
		asserts.NoError(err)

		codes, err := fetcher.SupportedCurrencies(context.Background())
		asserts.NoError(err)
		asserts.Equal([]string{"EUR", "USD"}, codes)
	})

	t.Run("MissingAPIKey", func(t *testing.T) {
		t.Parallel()
		asserts := require.New(t)

		_, err := fetchers.NewFixerFetcher(fetchers.FixerConfig{})
		asserts.ErrorIs(err, fetchers.ErrMissingAPIKey)
	})

	t.Run("InvalidBase", func(t *testing.T) {
		t.Parallel()
		asserts := require.New(t)
		var calls int32

		server := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
		})

		fetcher, err := fetchers.NewFixerFetcher(fetchers.FixerConfig{BaseConfig: baseConfig(server.URL)})
		asserts.NoError(err)

		_, err = fetcher.Fetch(context.Background(), "US")
		asserts.ErrorIs(err, currency.ErrInvalidCurrencyCode)
		asserts.Zero(atomic.LoadInt32(&calls))
	})
}

func TestExchangeRatesAPIFetcher(t *testing.T) {
	t.Parallel()

	t.Run("Success", func(t *testing.T) {
		t.Parallel()
		asserts := require.New(t)

		server := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			asserts.Equal("/latest", r.URL.Path)
			asserts.Equal("secret", r.URL.Query().Get("access_key"))
			_, _ = io.WriteString(w, `{"base":"EUR","date":"2024-03-04","rates":{"USD":1.1,"RSD":117.2}}`)
		})

		fetcher, err := fetchers.NewExchangeRatesAPIFetcher(fetchers.ExchangeRatesAPIConfig{BaseConfig: baseConfig(server.URL)})
		asserts.NoError(err)

		res, err := fetcher.Fetch(context.Background(), "EUR")
		asserts.NoError(err)
		asserts.Equal("EUR", res.Base)
		asserts.Equal(1.0, res.Rates["EUR"])
		asserts.Equal(117.2, res.Rates["RSD"])
	})

	t.Run("VendorError", func(t *testing.T) {
		t.Parallel()
		asserts := require.New(t)

		server := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"error":{"code":"invalid_access_key","message":"You have not supplied a valid API Access Key."}}`)
		})

		fetcher, err := fetchers.NewExchangeRatesAPIFetcher(fetchers.ExchangeRatesAPIConfig{BaseConfig: baseConfig(server.URL)})
		asserts.NoError(err)

		_, err = fetcher.Fetch(context.Background(), "EUR")

		var apiErr *currency.APIError
		asserts.True(errors.As(err, &apiErr))
		asserts.Equal("invalid_access_key", apiErr.Code)
	})

	t.Run("ClientErrorIsNotRetried", func(t *testing.T) {
		t.Parallel()
		asserts := require.New(t)
		var calls int32

		server := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusBadRequest)
		})

		config := baseConfig(server.URL)
		config.Retries = 3

		fetcher, err := fetchers.NewExchangeRatesAPIFetcher(fetchers.ExchangeRatesAPIConfig{BaseConfig: config})
		asserts.NoError(err)

		_, err = fetcher.Fetch(context.Background(), "EUR")
		asserts.ErrorIs(err, fetchers.ErrClient)
		asserts.EqualValues(1, atomic.LoadInt32(&calls))
	})
}

func TestExchangeRateAPIFetcher(t *testing.T) {
	t.Parallel()

	t.Run("Success", func(t *testing.T) {
		t.Parallel()
		asserts := require.New(t)

		server := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			asserts.Equal("/secret/latest/GBP", r.URL.Path)
			_, _ = io.WriteString(w, `{"result":"success","base_code":"GBP","time_last_update_unix":1704153600,"conversion_rates":{"GBP":1,"USD":1.27}}`)
		})

		fetcher, err := fetchers.NewExchangeRateAPIFetcher(fetchers.ExchangeRateAPIConfig{BaseConfig: baseConfig(server.URL)})
		asserts.NoError(err)

		res, err := fetcher.Fetch(context.Background(), "gbp")
		asserts.NoError(err)
		asserts.Equal("GBP", res.Base)
		asserts.Equal("2024-01-02", res.Date)
		asserts.Equal(1.27, res.Rates["USD"])
	})

	t.Run("VendorError", func(t *testing.T) {
		t.Parallel()
		asserts := require.New(t)

		server := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{"result":"error","error-type":"unsupported-code"}`)
		})

		fetcher, err := fetchers.NewExchangeRateAPIFetcher(fetchers.ExchangeRateAPIConfig{BaseConfig: baseConfig(server.URL)})
		asserts.NoError(err)

		_, err = fetcher.Fetch(context.Background(), "XYZ")

		var apiErr *currency.APIError
		asserts.True(errors.As(err, &apiErr))
		asserts.Equal("unsupported-code", apiErr.Code)
	})

	t.Run("EmptyRates", func(t *testing.T) {
		t.Parallel()
		asserts := require.New(t)

		server := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{"result":"success","base_code":"GBP","conversion_rates":{}}`)
		})

		fetcher, err := fetchers.NewExchangeRateAPIFetcher(fetchers.ExchangeRateAPIConfig{BaseConfig: baseConfig(server.URL)})
		asserts.NoError(err)

		_, err = fetcher.Fetch(context.Background(), "GBP")
		asserts.ErrorIs(err, fetchers.ErrInvalidResponse)
	})
}

func TestOpenExchangeRatesFetcher(t *testing.T) {
	t.Parallel()

	t.Run("Success", func(t *testing.T) {
		t.Parallel()
		asserts := require.New(t)

		server := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			asserts.Equal("/latest.json", r.URL.Path)
			asserts.Equal("secret", r.URL.Query().Get("app_id"))
			_, _ = io.WriteString(w, `{"timestamp":1704153600,"base":"USD","rates":{"EUR":0.91,"JPY":141.5}}`)
		})

		fetcher, err := fetchers.NewOpenExchangeRatesFetcher(fetchers.OpenExchangeRatesConfig{BaseConfig: baseConfig(server.URL)})
		asserts.NoError(err)

		res, err := fetcher.Fetch(context.Background(), "USD")
		asserts.NoError(err)
		asserts.Equal(1.0, res.Rates["USD"])
		asserts.Equal(141.5, res.Rates["JPY"])
		asserts.Equal("2024-01-02", res.Date)
	})

	t.Run("VendorError", func(t *testing.T) {
		t.Parallel()
		asserts := require.New(t)

		server := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			_, _ = io.WriteString(w, `{"error":true,"status":403,"message":"not_allowed","description":"Changing the API base currency is available for Developer, Enterprise and Unlimited plan clients."}`)
		})

		fetcher, err := fetchers.NewOpenExchangeRatesFetcher(fetchers.OpenExchangeRatesConfig{BaseConfig: baseConfig(server.URL)})
		asserts.NoError(err)

		_, err = fetcher.Fetch(context.Background(), "EUR")

		var apiErr *currency.APIError
		asserts.True(errors.As(err, &apiErr))
		asserts.Equal("403", apiErr.Code)
		asserts.Contains(apiErr.Message, "base currency")
	})

	t.Run("ServerErrorIsRetried", func(t *testing.T) {
		t.Parallel()
		asserts := require.New(t)
		var calls int32

		server := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&calls, 1) == 1 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}

			_, _ = io.WriteString(w, `{"timestamp":1704153600,"base":"USD","rates":{"EUR":0.91}}`)
		})

		config := baseConfig(server.URL)
		config.Retries = 2

		fetcher, err := fetchers.NewOpenExchangeRatesFetcher(fetchers.OpenExchangeRatesConfig{BaseConfig: config})
		asserts.NoError(err)

		res, err := fetcher.Fetch(context.Background(), "USD")
		asserts.NoError(err)
		asserts.Equal(0.91, res.Rates["EUR"])
		asserts.EqualValues(2, atomic.LoadInt32(&calls))
	})

	t.Run("ServerErrorExhaustsRetries", func(t *testing.T) {
		t.Parallel()
		asserts := require.New(t)
		var calls int32

		server := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusInternalServerError)
		})

		config := baseConfig(server.URL)
		config.Retries = 1

		fetcher, err := fetchers.NewOpenExchangeRatesFetcher(fetchers.OpenExchangeRatesConfig{BaseConfig: config})
		asserts.NoError(err)

		_, err = fetcher.Fetch(context.Background(), "USD")
		asserts.ErrorIs(err, fetchers.ErrServer)
		asserts.EqualValues(2, atomic.LoadInt32(&calls))
	})

	t.Run("SupportedCurrencies", func(t *testing.T) {
		t.Parallel()
		asserts := require.New(t)

		server := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			asserts.Equal("/currencies.json", r.URL.Path)
			_, _ = io.WriteString(w, `{"JPY":"Japanese Yen","AUD":"Australian Dollar"}`)
		})

		fetcher, err := fetchers.NewOpenExchangeRatesFetcher(fetchers.OpenExchangeRatesConfig{BaseConfig: baseConfig(server.URL)})
		asserts.NoError(err)

		codes, err := fetcher.SupportedCurrencies(context.Background())
		asserts.NoError(err)
		asserts.Equal([]string{"AUD", "JPY"}, codes)
	})

	t.Run("CancelledContext", func(t *testing.T) {
		t.Parallel()
		asserts := require.New(t)

		server := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{}`)
		})

		fetcher, err := fetchers.NewOpenExchangeRatesFetcher(fetchers.OpenExchangeRatesConfig{BaseConfig: baseConfig(server.URL)})
		asserts.NoError(err)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err = fetcher.Fetch(ctx, "USD")
		asserts.ErrorIs(err, context.Canceled)
	})
}

func TestFetchersRejectForeignBase(t *testing.T) {
	t.Parallel()

	values := []struct {
		name   string
		body   string
		create func(config fetchers.BaseConfig) (currency.Fetcher, error)
	}{
		{
			name: "Fixer",
			body: `{"success":true,"base":"EUR","date":"2024-01-02","rates":{"USD":1.1}}`,
			create: func(config fetchers.BaseConfig) (currency.Fetcher, error) {
				return fetchers.NewFixerFetcher(fetchers.FixerConfig{BaseConfig: config})
			},
		},
		{
			name: "ExchangeRatesAPI",
			body: `{"base":"EUR","date":"2024-01-02","rates":{"USD":1.1}}`,
			create: func(config fetchers.BaseConfig) (currency.Fetcher, error) {
				return fetchers.NewExchangeRatesAPIFetcher(fetchers.ExchangeRatesAPIConfig{BaseConfig: config})
			},
		},
		{
			name: "ExchangeRateAPI",
			body: `{"result":"success","base_code":"EUR","conversion_rates":{"USD":1.1}}`,
			create: func(config fetchers.BaseConfig) (currency.Fetcher, error) {
				return fetchers.NewExchangeRateAPIFetcher(fetchers.ExchangeRateAPIConfig{BaseConfig: config})
			},
		},
		{
			name: "OpenExchangeRates",
			body: `{"timestamp":1704153600,"base":"EUR","rates":{"USD":1.1}}`,
			create: func(config fetchers.BaseConfig) (currency.Fetcher, error) {
				return fetchers.NewOpenExchangeRatesFetcher(fetchers.OpenExchangeRatesConfig{BaseConfig: config})
			},
		},
	}

	for _, value := range values {
		value := value

		t.Run(value.name, func(t *testing.T) {
			t.Parallel()
			asserts := require.New(t)

			server := newServer(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, value.body)
			})

			fetcher, err := value.create(baseConfig(server.URL))
			asserts.NoError(err)

			_, err = fetcher.Fetch(context.Background(), "USD")
			asserts.ErrorIs(err, fetchers.ErrInvalidResponse)
			asserts.Contains(err.Error(), "based on EUR")

			res, err := fetcher.Fetch(context.Background(), "eur")
			asserts.NoError(err)
			asserts.Equal("EUR", res.Base)
		})
	}
}

func TestNewCurrencyFetcher(t *testing.T) {
	t.Parallel()

	t.Run("AllProviders", func(t *testing.T) {
		t.Parallel()
		asserts := require.New(t)

		providers := []currency.Provider{
			currency.FixerProvider,
			currency.ExchangeRatesAPIProvider,
			currency.ExchangeRateAPIProvider,
			currency.OpenExchangeRatesProvider,
		}

		for _, provider := range providers {
			config, err := fetchers.ConfigFor(provider, fetchers.BaseConfig{APIKey: "key"})
			asserts.NoError(err)

			fetcher, err := fetchers.NewCurrencyFetcher(provider, config)
			asserts.NoError(err)
			asserts.Equal(provider.String(), fetcher.Name())
		}
	})

	t.Run("WrongConfigType", func(t *testing.T) {
		t.Parallel()
		asserts := require.New(t)

		_, err := fetchers.NewCurrencyFetcher(currency.FixerProvider, fetchers.OpenExchangeRatesConfig{})
		asserts.Error(err)
	})

	t.Run("UnknownProvider", func(t *testing.T) {
		t.Parallel()
		asserts := require.New(t)

		_, err := fetchers.NewCurrencyFetcher(currency.Provider("nope"), fetchers.FixerConfig{})
		asserts.Error(err)

		_, err = fetchers.ConfigFor(currency.Provider("nope"), fetchers.BaseConfig{})
		asserts.Error(err)
	})
}
