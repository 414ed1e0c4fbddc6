package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/NRagunath/vendor-payments-automation-system-sub001/internal/modules/payments"
	"github.com/NRagunath/vendor-payments-automation-system-sub001/internal/modules/reconciliation"
)

var (
	fromStr string
	toStr   string
	asJSON  bool
)

func main() {
	_ = godotenv.Load()

	viper.SetDefault("db_dsn", "")
	viper.SetDefault("statement_driver", "local")
	_ = viper.BindEnv("db_dsn", "DB_DSN")
	_ = viper.BindEnv("statement_driver", "STATEMENT_DRIVER")

	root := &cobra.Command{
		Use:           "reconcile",
		Short:         "Reconcile vendor payments against bank statements",
		RunE:          run,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	yesterday := time.Now().AddDate(0, 0, -1).Format("2006-01-02")
	root.PersistentFlags().StringVar(&fromStr, "from", yesterday, "start of payment date range (2006-01-02)")
	root.PersistentFlags().StringVar(&toStr, "to", yesterday, "end of payment date range (2006-01-02)")
	root.PersistentFlags().BoolVar(&asJSON, "json", false, "emit the full result as JSON")

	root.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run a reconciliation pass for the date range",
		RunE:  run,
	})

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	from, err := time.Parse("2006-01-02", fromStr)
	if err != nil {
		return fmt.Errorf("invalid --from: %w", err)
	}
	to, err := time.Parse("2006-01-02", toStr)
	if err != nil {
		return fmt.Errorf("invalid --to: %w", err)
	}
	if to.Before(from) {
		return fmt.Errorf("--to must not be before --from")
	}
	to = to.Add(24*time.Hour - time.Nanosecond)

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	dsn := viper.GetString("db_dsn")
	if dsn == "" {
		return fmt.Errorf("DB_DSN environment variable is required")
	}
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	stmts, err := reconciliation.NewSource(ctx, viper.GetString("statement_driver"))
	if err != nil {
		return err
	}
	eng := reconciliation.NewEngine(payments.NewGormStore(db), stmts, logger)

	res, err := eng.Reconcile(ctx, from, to)
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	fmt.Printf("Reconciliation %s .. %s\n", fromStr, toStr)
	fmt.Printf("  total:     %d (%s)\n", res.TotalRecords, res.TotalAmount.StringFixed(2))
	fmt.Printf("  matched:   %d (%s)\n", res.MatchedRecords, res.MatchedAmount.StringFixed(2))
	fmt.Printf("  unmatched: %d\n", res.UnmatchedRecords)
	for _, mm := range res.Mismatches {
		fmt.Printf("  mismatch %-18s %-8s expected=%q actual=%q  %s\n",
			mm.PaymentReference, mm.Field, mm.Expected, mm.Actual, mm.Description)
	}
	if res.UnmatchedRecords > 0 {
		os.Exit(2)
	}
	return nil
}
