package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/vietddude/teamsync/internal/control"
	"github.com/vietddude/teamsync/internal/core/domain"
)

var resetAll bool

var failuresCmd = &cobra.Command{
	Use:   "failures [table]",
	Short: "List records that failed to sync",
	Args:  cobra.MaximumNArgs(1),
	Run:   runFailures,
}

var resetFailuresCmd = &cobra.Command{
	Use:   "reset-failures [table]",
	Short: "Re-enable permanently failed records so the next cycle retries them",
	Args:  cobra.MaximumNArgs(1),
	Run:   runResetFailures,
}

func init() {
	resetFailuresCmd.Flags().BoolVar(&resetAll, "all", false, "also clear transient failures and their retry schedule")
	rootCmd.AddCommand(failuresCmd)
	rootCmd.AddCommand(resetFailuresCmd)
}

// tablesFromArgs returns the named table, or every table when none is given.
func tablesFromArgs(args []string) []domain.Table {
	if len(args) == 0 {
		return domain.AllTables
	}
	t := domain.Table(args[0])
	if !t.Valid() {
		fmt.Printf("Unknown table: %s\n", args[0])
		os.Exit(1)
	}
	return []domain.Table{t}
}

func runFailures(cmd *cobra.Command, args []string) {
	selected := tablesFromArgs(args)
	cfg := loadConfig()
	ctx := context.Background()

	stores := openStores(ctx, cfg)
	defer func() { _ = stores.Close() }()
	l := control.NewLedger(cfg, stores.Failures)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "TABLE\tRECORD\tATTEMPTS\tSTATUS\tREASON\tNEXT RETRY\tERROR")

	for _, t := range selected {
		entries, err := l.Entries(ctx, t)
		if err != nil {
			slog.Error("Failed to read ledger", "table", t, "error", err)
			os.Exit(1)
		}
		for _, e := range entries {
			next := e.NextRetryAt.Format(time.RFC3339)
			if e.Permanent {
				next = "never"
			}
			_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\t%s\n",
				t, e.RecordID, e.AttemptCount, e.LastStatus, e.ReasonCode, next, e.LastError)
		}
	}
	_ = w.Flush()
}

func runResetFailures(cmd *cobra.Command, args []string) {
	selected := tablesFromArgs(args)
	cfg := loadConfig()
	ctx := context.Background()

	stores := openStores(ctx, cfg)
	defer func() { _ = stores.Close() }()
	l := control.NewLedger(cfg, stores.Failures)

	total := 0
	for _, t := range selected {
		n, err := l.Reset(ctx, t, !resetAll)
		if err != nil {
			slog.Error("Failed to reset failures", "table", t, "error", err)
			os.Exit(1)
		}
		total += n
	}

	fmt.Printf("Successfully reset %d failure entries\n", total)
}
