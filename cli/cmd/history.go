package cmd

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/malusev998/currency"
)

func history(s *state) *cobra.Command {
	var (
		date         string
		providerName string
	)

	historyCmd := &cobra.Command{
		Use:   "history AMOUNT FROM TO",
		Short: "Convert with a rate stored by fetch",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if s.config.History == nil {
				return errors.New("no storage configured for history")
			}

			amount, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", args[0], err)
			}

			at := time.Now()
			if date != "" {
				day, err := time.Parse(currency.DateFormat, date)
				if err != nil {
					return fmt.Errorf("invalid date %q: %w", date, err)
				}

				at = day.Add(24*time.Hour - time.Nanosecond)
			}

			var provider currency.Provider
			if providerName != "" {
				provider, err = currency.ConvertToProviderFromString(providerName)
			} else {
				var p currency.RateProvider
				p, err = s.provider()
				if p != nil {
					provider = currency.Provider(p.Name())
				}
			}

			if err != nil {
				return err
			}

			value, err := s.config.History.Convert(s.config.Ctx, args[1], args[2], provider, amount, at)
			if err != nil {
				return err
			}

			printf(cmd, "%.2f %s = %.2f %s on %s (%s)\n", amount, currency.NormalizeCode(args[1]), value, currency.NormalizeCode(args[2]), at.Format(currency.DateFormat), provider)

			return nil
		},
	}

	historyCmd.Flags().StringVar(&date, "date", "", "Day of the stored rate, YYYY-MM-DD, defaults to today")
	historyCmd.Flags().StringVar(&providerName, "for", "", "Provider whose stored rates are used")

	return historyCmd
}
