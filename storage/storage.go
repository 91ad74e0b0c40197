package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/malusev998/currency"
)

type (
	Provider   string
	BaseConfig struct {
		Ctx     context.Context
		Migrate bool
	}
	MySQLConfig struct {
		BaseConfig
		ConnectionString string
		TableName        string
		IDGenerator      IDGenerator
	}
	MongoDBConfig struct {
		BaseConfig
		ConnectionString string
		Database         string
		Collection       string
	}
)

const (
	MySQL   Provider = "mysql"
	MongoDB Provider = "mongodb"

	defaultPerPage = 10
)

var (
	ErrStorageNotFound = errors.New("storage is not found")
	ErrInvalidConfig   = errors.New("invalid storage config")
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

func ConvertToProviderFromString(str string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(str)) {
	case "mysql":
		return MySQL, nil
	case "mongodb", "mongo":
		return MongoDB, nil
	}

	return "", fmt.Errorf("value %s is not valid Provider", str)
}

func NewStorage(provider Provider, config interface{}) (currency.Storage, error) {
	switch provider {
	case MySQL:
		c, ok := config.(MySQLConfig)
		if !ok {
			return nil, fmt.Errorf("%w: %T for %s", ErrInvalidConfig, config, provider)
		}

		return NewMySQLStorage(c)
	case MongoDB:
		c, ok := config.(MongoDBConfig)
		if !ok {
			return nil, fmt.Errorf("%w: %T for %s", ErrInvalidConfig, config, provider)
		}

		return NewMongoStorage(c)
	}

	return nil, ErrStorageNotFound
}

func (c BaseConfig) context() context.Context {
	if c.Ctx == nil {
		return context.Background()
	}

	return c.Ctx
}

func pagination(page, perPage int64) (int64, int64) {
	if page < 1 {
		page = 1
	}

	if perPage < 1 {
		perPage = defaultPerPage
	}

	return (page - 1) * perPage, perPage
}

func joinPair(from, to string) string {
	return fmt.Sprintf("%s_%s", currency.NormalizeCode(from), currency.NormalizeCode(to))
}

func splitPair(pair string) (string, string, error) {
	parts := strings.Split(pair, "_")
	if len(parts) != 2 {
		return "", "", fmt.Errorf("stored currency pair %q is malformed", pair)
	}

	return parts[0], parts[1], nil
}
