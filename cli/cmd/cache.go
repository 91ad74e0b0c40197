package cmd

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/malusev998/currency"
	"github.com/malusev998/currency/services"
)

func cacheCommand(s *state) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the bulk rate cache",
	}

	cacheCmd.AddCommand(cacheStats(s), cacheClear(s))

	return cacheCmd
}

func formatTimestamp(ts time.Time) string {
	if ts.IsZero() {
		return "-"
	}

	return ts.UTC().Format(time.RFC3339)
}

func cacheStats(s *state) *cobra.Command {
	var asJSON bool

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Print cache statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ratesCache, err := s.ratesCache()
			if err != nil {
				return err
			}

			stats, err := ratesCache.GetStats(s.config.Ctx)
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd, stats)
			}

			printf(cmd, "keys:       %d\n", stats.TotalKeys)
			printf(cmd, "providers:  %v\n", stats.Providers)
			printf(cmd, "currencies: %v\n", stats.Currencies)
			printf(cmd, "oldest:     %s\n", formatTimestamp(stats.OldestTimestamp))
			printf(cmd, "newest:     %s\n", formatTimestamp(stats.NewestTimestamp))

			return nil
		},
	}

	statsCmd.Flags().BoolVar(&asJSON, "json", false, "Print statistics as JSON")

	return statsCmd
}

func cacheClear(s *state) *cobra.Command {
	var (
		providerName string
		base         string
	)

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear cached bulk and pair rates, all of them unless narrowed with flags",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := s.config.Converter.ClearCache(s.config.Ctx, resolveProviderName(providerName), base); err != nil {
				if errors.Is(err, services.ErrNoCache) {
					return ErrNoRatesCache
				}

				return err
			}

			printf(cmd, "cache cleared\n")

			return nil
		},
	}

	clearCmd.Flags().StringVar(&providerName, "for", "", "Only clear entries of this provider name")
	clearCmd.Flags().StringVar(&base, "base", "", "Only clear this base currency")

	return clearCmd
}

// resolveProviderName maps a config alias like "fixer" to its cache identity.
func resolveProviderName(name string) string {
	if name == "" {
		return ""
	}

	provider, err := currency.ConvertToProviderFromString(name)
	if err != nil {
		return name
	}

	return provider.String()
}
