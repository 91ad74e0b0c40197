package cmd

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/malusev998/currency"
)

func writeJSON(cmd *cobra.Command, value interface{}) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")

	return encoder.Encode(value)
}

func printResult(cmd *cobra.Command, result currency.ConversionResult) {
	cached := ""
	if result.Cached {
		cached = " (cached)"
	}

	printf(cmd, "%.2f %s = %.2f %s at %.6f%s\n", result.Amount, result.From, result.ConvertedAmount, result.To, result.Rate, cached)
}

func convert(s *state) *cobra.Command {
	var asJSON bool

	convertCmd := &cobra.Command{
		Use:   "convert AMOUNT FROM TO [AMOUNT FROM TO]...",
		Short: "Convert an amount between two currencies",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 || len(args)%3 != 0 {
				return fmt.Errorf("expected AMOUNT FROM TO triples, got %d arguments", len(args))
			}

			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			requests := make([]currency.ConversionRequest, 0, len(args)/3)

			for i := 0; i < len(args); i += 3 {
				amount, err := strconv.ParseFloat(args[i], 64)
				if err != nil {
					return fmt.Errorf("invalid amount %q: %w", args[i], err)
				}

				requests = append(requests, currency.ConversionRequest{Amount: amount, From: args[i+1], To: args[i+2]})
			}

			// a single pair fails loudly, a batch never does
			if len(requests) == 1 {
				result, err := s.config.Converter.ConvertCurrency(s.config.Ctx, requests[0].Amount, requests[0].From, requests[0].To)
				if err != nil {
					return err
				}

				if asJSON {
					return writeJSON(cmd, result)
				}

				printResult(cmd, result)

				return nil
			}

			results := s.config.Converter.ConvertMultiple(s.config.Ctx, requests)
			if asJSON {
				return writeJSON(cmd, results)
			}

			for _, result := range results {
				if result.IsSkipped() {
					printf(cmd, "%.2f %s -> %s skipped: %s\n", result.Amount, result.From, result.To, result.Error)
					continue
				}

				printResult(cmd, result)
			}

			return nil
		},
	}

	convertCmd.Flags().BoolVar(&asJSON, "json", false, "Print results as JSON")

	return convertCmd
}

func rates(s *state) *cobra.Command {
	var asJSON bool

	ratesCmd := &cobra.Command{
		Use:   "rates BASE",
		Short: "Print every rate for a base currency",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rates, err := s.config.Converter.GetExchangeRates(s.config.Ctx, args[0])
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd, rates)
			}

			codes := make([]string, 0, len(rates))
			for code := range rates {
				codes = append(codes, code)
			}

			sort.Strings(codes)

			for _, code := range codes {
				printf(cmd, "%s\t%.6f\n", code, rates[code])
			}

			return nil
		},
	}

	ratesCmd.Flags().BoolVar(&asJSON, "json", false, "Print rates as JSON")

	return ratesCmd
}

func refresh(s *state) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh BASE...",
		Short: "Drop cached rates and pair rates of a base and fetch them again",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := s.provider()
			if err != nil {
				return err
			}

			for _, base := range args {
				res := s.config.Converter.RefreshRates(s.config.Ctx, base)
				if !res.Success {
					return fmt.Errorf("%w: %s: %s", currency.ErrProviderFailure, res.Base, res.Error)
				}

				printf(cmd, "%s: %d rates refreshed from %s, ttl %s\n", res.Base, len(res.Rates), provider.Name(), provider.GetRatesCacheTTL(s.config.Ctx, res.Base))
			}

			return nil
		},
	}
}

func currencies(s *state) *cobra.Command {
	return &cobra.Command{
		Use:   "currencies",
		Short: "List currencies supported by the provider",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			codes, err := s.config.Converter.SupportedCurrencies(s.config.Ctx)
			if err != nil {
				return err
			}

			for _, code := range codes {
				printf(cmd, "%s\n", code)
			}

			return nil
		},
	}
}
