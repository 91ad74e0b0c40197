package currency

import (
	"fmt"
	"strings"
)

type Provider string

const (
	FixerProvider             Provider = "Fixer.io"
	ExchangeRatesAPIProvider  Provider = "ExchangeRatesAPI"
	ExchangeRateAPIProvider   Provider = "ExchangeRate-API"
	OpenExchangeRatesProvider Provider = "Open Exchange Rates"
	EmptyProvider             Provider = ""
)

func ConvertToProvidersFromStringSlice(strings []string) ([]Provider, error) {
	providers := make([]Provider, 0, len(strings))

	for _, str := range strings {
		provider, err := ConvertToProviderFromString(str)
		if err != nil {
			return nil, err
		}

		providers = append(providers, provider)
	}

	return providers, nil
}

// ConvertToProviderFromString accepts the provider name or its config alias,
// case insensitive.
func ConvertToProviderFromString(str string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(str)) {
	case "fixer", "fixer.io":
		return FixerProvider, nil
	case "exchangeratesapi", "exchangeratesapi.io":
		return ExchangeRatesAPIProvider, nil
	case "exchangerate-api", "exchangerateapi":
		return ExchangeRateAPIProvider, nil
	case "openexchangerates", "open exchange rates", "oxr":
		return OpenExchangeRatesProvider, nil
	}

	return "", fmt.Errorf("value %s is not valid Provider", str)
}

func (p Provider) String() string {
	return string(p)
}

func (p *Provider) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var str string
	if err := unmarshal(&str); err != nil {
		return err
	}

	provider, err := ConvertToProviderFromString(str)

	if err != nil {
		return err
	}

	*p = provider

	return nil
}

func (p Provider) MarshalYAML() (interface{}, error) {
	return string(p), nil
}
