package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/charmbracelet/log"

	"github.com/malusev998/currency"
	"github.com/malusev998/currency/cache"
	"github.com/malusev998/currency/cli/cmd"
	"github.com/malusev998/currency/fetchers"
	"github.com/malusev998/currency/services"
	"github.com/malusev998/currency/storage"
)

func newLogger(w io.Writer, config LogConfig, debug bool) *slog.Logger {
	level, err := log.ParseLevel(config.Level)
	if err != nil {
		level = log.InfoLevel
	}

	if debug {
		level = log.DebugLevel
	}

	formatter := log.TextFormatter
	if config.Format == "json" {
		formatter = log.JSONFormatter
	}

	logger := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		Level:           level,
		Formatter:       formatter,
		Prefix:          "currency",
	})

	return slog.New(logger)
}

func createStorages(ctx context.Context, config *Config) ([]currency.Storage, error) {
	storages := make([]currency.Storage, 0, len(config.Storage))

	for _, s := range config.Storage {
		c, ok := config.StorageConfig[s]
		if !ok {
			return nil, fmt.Errorf("storage %s does not exist", s)
		}

		switch sc := c.(type) {
		case storage.MySQLConfig:
			sc.Ctx = ctx
			c = sc
		case storage.MongoDBConfig:
			sc.Ctx = ctx
			c = sc
		}

		st, err := storage.NewStorage(s, c)
		if err != nil {
			_ = closeAll(storages)
			return nil, err
		}

		storages = append(storages, st)
	}

	return storages, nil
}

func closeAll(storages []currency.Storage) error {
	var errs []error

	for _, st := range storages {
		if err := st.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", st.GetStorageProviderName(), err))
		}
	}

	return errors.Join(errs...)
}

// createBackend returns a nil backend for the none driver.
func createBackend(config CacheConfig) (cache.Backend, io.Closer, error) {
	switch config.Driver {
	case CacheDriverRedis:
		backend, err := cache.NewRedisBackend(config.Redis)
		if err != nil {
			return nil, nil, err
		}

		return backend, backend, nil
	case CacheDriverMemory:
		return cache.NewMemoryBackend(), nil, nil
	}

	return nil, nil, nil
}

func createProvider(config *Config, logger *slog.Logger) (*services.CachedProvider, error) {
	base, ok := config.Fetchers[config.Provider]
	if !ok {
		return nil, fmt.Errorf("fetcher %s does not exist", config.Provider)
	}

	base.Logger = logger

	fetcherConfig, err := fetchers.ConfigFor(config.Provider, base)
	if err != nil {
		return nil, err
	}

	fetcher, err := fetchers.NewCurrencyFetcher(config.Provider, fetcherConfig)
	if err != nil {
		return nil, err
	}

	return services.NewCachedProvider(fetcher, nil, logger), nil
}

func build(ctx context.Context, config *Config, logger *slog.Logger) (*cmd.Config, error) {
	backend, backendCloser, err := createBackend(config.Cache)
	if err != nil {
		return nil, err
	}

	options := []services.ConverterOption{services.WithLogger(logger)}

	var ratesCache *cache.RatesCache
	if backend != nil {
		ratesCache = cache.NewRatesCache(backend, config.Cache.Rates, logger)
		options = append(options, services.WithRatesCache(ratesCache))

		if config.Cache.PairEnabled {
			options = append(options, services.WithPairCache(cache.NewPairCache(backend, config.Cache.Pair, logger)))
		}
	}

	closeBackend := func() error {
		if backendCloser == nil {
			return nil
		}

		return backendCloser.Close()
	}

	provider, err := createProvider(config, logger)
	if err != nil {
		_ = closeBackend()
		return nil, err
	}

	storages, err := createStorages(ctx, config)
	if err != nil {
		_ = closeBackend()
		return nil, err
	}

	app := &cmd.Config{
		Ctx:               ctx,
		Converter:         services.NewConverter(provider, options...),
		RatesCache:        ratesCache,
		CurrenciesToFetch: config.CurrenciesToFetch,
		Logger:            logger,
		Close: func() error {
			return errors.Join(closeAll(storages), closeBackend())
		},
	}

	if len(storages) > 0 {
		app.CurrencyService = []currency.Service{
			services.Service{Provider: provider, Storage: storages, Logger: logger},
		}
		app.History = services.HistoryConversion{Storages: storages}
	}

	return app, nil
}
