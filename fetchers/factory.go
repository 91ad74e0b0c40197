package fetchers

import (
	"fmt"

	"github.com/malusev998/currency"
)

// NewCurrencyFetcher builds the fetcher for provider. config must be the
// matching *Config type (FixerConfig for currency.FixerProvider and so on).
func NewCurrencyFetcher(provider currency.Provider, config interface{}) (currency.Fetcher, error) {
	switch provider {
	case currency.FixerProvider:
		c, ok := config.(FixerConfig)
		if !ok {
			return nil, configTypeError(provider, config)
		}

		return NewFixerFetcher(c)
	case currency.ExchangeRatesAPIProvider:
		c, ok := config.(ExchangeRatesAPIConfig)
		if !ok {
			return nil, configTypeError(provider, config)
		}

		return NewExchangeRatesAPIFetcher(c)
	case currency.ExchangeRateAPIProvider:
		c, ok := config.(ExchangeRateAPIConfig)
		if !ok {
			return nil, configTypeError(provider, config)
		}

		return NewExchangeRateAPIFetcher(c)
	case currency.OpenExchangeRatesProvider:
		c, ok := config.(OpenExchangeRatesConfig)
		if !ok {
			return nil, configTypeError(provider, config)
		}

		return NewOpenExchangeRatesFetcher(c)
	}

	return nil, fmt.Errorf("provider %s is not supported", provider)
}

// ConfigFor wraps base in the config type NewCurrencyFetcher expects for provider.
func ConfigFor(provider currency.Provider, base BaseConfig) (interface{}, error) {
	switch provider {
	case currency.FixerProvider:
		return FixerConfig{BaseConfig: base}, nil
	case currency.ExchangeRatesAPIProvider:
		return ExchangeRatesAPIConfig{BaseConfig: base}, nil
	case currency.ExchangeRateAPIProvider:
		return ExchangeRateAPIConfig{BaseConfig: base}, nil
	case currency.OpenExchangeRatesProvider:
		return OpenExchangeRatesConfig{BaseConfig: base}, nil
	}

	return nil, fmt.Errorf("provider %s is not supported", provider)
}

func configTypeError(provider currency.Provider, config interface{}) error {
	return fmt.Errorf("invalid config %T for provider %s", config, provider)
}
