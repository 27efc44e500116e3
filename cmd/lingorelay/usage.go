package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"lingorelay/internal/quota"
	"lingorelay/internal/store/sqlite"
)

// newUsageCommand reads the persisted monthly usage ledger and prints the
// character spend against the safe limit.
func newUsageCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "usage",
		Short: "Show monthly translation character usage",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := sqlite.Open(viper.GetString("store.path"))
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer func() { _ = db.Close() }()

			store, err := sqlite.NewStore(db)
			if err != nil {
				return fmt.Errorf("new store: %w", err)
			}

			ledger, err := quota.NewLedger(store,
				quota.WithMonthlyLimit(viper.GetInt64("quota.monthly_char_limit")),
				quota.WithSafetyFactor(viper.GetFloat64("quota.safety_factor")),
			)
			if err != nil {
				return fmt.Errorf("new usage ledger: %w", err)
			}

			used, err := ledger.CharsUsed(cmd.Context())
			if err != nil {
				return fmt.Errorf("read usage: %w", err)
			}

			safeLimit := ledger.SafeLimit()
			percent := 0.0
			if safeLimit > 0 {
				percent = float64(used) / float64(safeLimit) * 100
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Month:      %s\n", time.Now().UTC().Format("2006-01"))
			fmt.Fprintf(out, "Characters: %d / %d (%.2f%%)\n", used, safeLimit, percent)

			return nil
		},
	}
}
