package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

func handleCurrencySave(config *Config, logger *slog.Logger) error {
	for _, service := range config.CurrencyService {
		currenciesMap, err := service.Save(config.Ctx, config.CurrenciesToFetch)
		if err != nil {
			return err
		}

		if !config.debug {
			continue
		}

		for storage, currencies := range currenciesMap {
			for i, c := range currencies {
				logger.Debug("currency saved", "index", i, "pair", fmt.Sprintf("%s_%s", c.From, c.To), "storage", storage, "rate", c.Rate)
			}
		}
	}

	return nil
}

func serveMetrics(ctx context.Context, addr string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_ = server.Shutdown(shutdownCtx)
	}()

	go func() {
		logger.Info("serving metrics", "addr", addr)

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", "error", err)
		}
	}()
}

func fetchCobraCommand(s *state, standalone *bool, after *time.Duration, metricsAddr *string) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		config := s.config
		logger := s.logger().With("command", "fetch")

		if len(config.CurrencyService) == 0 {
			return errors.New("no storage configured for fetch")
		}

		if !*standalone {
			return handleCurrencySave(config, logger)
		}

		if *metricsAddr != "" {
			serveMetrics(config.Ctx, *metricsAddr, logger)
		}

		if err := handleCurrencySave(config, logger); err != nil {
			logger.Error("error while saving currencies", "error", err)
		}

		ticker := time.NewTicker(*after)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := handleCurrencySave(config, logger); err != nil {
					logger.Error("error while saving currencies", "error", err)
				}
			case <-config.Ctx.Done():
				return nil
			}
		}
	}
}

func fetch(s *state) *cobra.Command {
	var (
		standalone  bool
		after       time.Duration
		metricsAddr string
	)

	fetchCmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch rates for the configured currencies and store them",
		Args:  cobra.NoArgs,
	}

	fetchCmd.RunE = fetchCobraCommand(s, &standalone, &after, &metricsAddr)
	fetchCmd.Flags().BoolVar(&standalone, "standalone", false, "Start up a long running fetching service")
	fetchCmd.Flags().DurationVar(&after, "after", time.Hour, "Fetching interval for standalone process")
	fetchCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve prometheus metrics on this address in standalone mode")

	return fetchCmd
}
