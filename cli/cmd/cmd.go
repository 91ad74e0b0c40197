package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/malusev998/currency"
	"github.com/malusev998/currency/cache"
	"github.com/malusev998/currency/services"
)

const EnvPrefix = "CURRENCY_CONVERTER"

var ErrNoRatesCache = errors.New("rates cache is not configured")

type (
	// Config is everything the commands operate on, built once flags and the
	// config file are known.
	Config struct {
		Ctx               context.Context
		Converter         *services.Converter
		RatesCache        *cache.RatesCache
		CurrenciesToFetch []string
		CurrencyService   []currency.Service
		History           currency.Conversion
		Logger            *slog.Logger
		// Close releases storages and cache connections.
		Close func() error
		debug bool
	}

	Options struct {
		ConfigFile string
		Debug      bool
		Provider   string
		LogFormat  string
	}

	Loader func(ctx context.Context, options Options) (*Config, error)

	state struct {
		options Options
		config  *Config
	}
)

func (s *state) logger() *slog.Logger {
	if s.config == nil || s.config.Logger == nil {
		return slog.Default()
	}

	return s.config.Logger
}

func NewRootCommand(ctx context.Context, loader Loader) *cobra.Command {
	s := &state{}

	rootCmd := &cobra.Command{
		Use:           "currency-converter",
		Short:         "Currency conversion with cached provider rates",
		Version:       "v2.0.0",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			absolutePath, err := filepath.Abs(s.options.ConfigFile)
			if err != nil {
				return err
			}

			viper.SetConfigFile(absolutePath)
			viper.SetEnvPrefix(EnvPrefix)
			viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
			viper.AutomaticEnv()

			// a missing file is fine, everything can come from the environment
			if err := viper.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("error while reading config file %s: %w", absolutePath, err)
			}

			config, err := loader(cmdContext(cmd, ctx), s.options)
			if err != nil {
				return err
			}

			config.debug = s.options.Debug
			if config.Ctx == nil {
				config.Ctx = cmdContext(cmd, ctx)
			}

			s.config = config

			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if s.config == nil || s.config.Close == nil {
				return nil
			}

			return s.config.Close()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&s.options.ConfigFile, "config", "./config.yml", "Path to config file")
	flags.BoolVar(&s.options.Debug, "debug", false, "Debug flag")
	flags.StringVar(&s.options.Provider, "provider", "", "Rate provider, overrides the config file")
	flags.StringVar(&s.options.LogFormat, "log-format", "text", "Log format: text or json")

	rootCmd.AddCommand(
		convert(s),
		rates(s),
		refresh(s),
		currencies(s),
		cacheCommand(s),
		fetch(s),
		history(s),
	)

	return rootCmd
}

func Execute(ctx context.Context, loader Loader) error {
	return NewRootCommand(ctx, loader).ExecuteContext(ctx)
}

func cmdContext(cmd *cobra.Command, fallback context.Context) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}

	if fallback != nil {
		return fallback
	}

	return context.Background()
}

func (s *state) ratesCache() (*cache.RatesCache, error) {
	if s.config.RatesCache == nil {
		return nil, ErrNoRatesCache
	}

	return s.config.RatesCache, nil
}

func (s *state) provider() (currency.RateProvider, error) {
	provider := s.config.Converter.Provider()
	if provider == nil {
		return nil, currency.ErrNoProvider
	}

	return provider, nil
}

func printf(cmd *cobra.Command, format string, args ...interface{}) {
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}
