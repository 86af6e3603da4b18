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
	"github.com/vietddude/teamsync/internal/core/session"
	"github.com/vietddude/teamsync/internal/syncing/progress"
	"github.com/vietddude/teamsync/internal/syncing/tables"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pending records per table",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	ctx := context.Background()

	stores := openStores(ctx, cfg)
	defer func() { _ = stores.Close() }()

	l := control.NewLedger(cfg, stores.Failures)
	registry := tables.MustDefaultRegistry()
	reporter := progress.NewReporter(
		stores.Records,
		l,
		session.NewStatic(cfg.Identity.OwnerID),
		registry.Tables(),
		cfg.Identity.GuestPrefix,
	)

	snap, err := reporter.PendingCounts(ctx)
	if err != nil {
		slog.Error("Failed to count pending records", "error", err)
		os.Exit(1)
	}
	if !snap.Authenticated {
		fmt.Println("No signed-in owner (identity.owner_id); nothing is eligible to sync.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "TABLE\tPENDING\tELIGIBLE\tBLOCKED")
	for _, t := range registry.Tables() {
		c := snap.Tables[t]
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%d\n", t, c.Count, c.Eligible, c.Blocked)
	}
	_, _ = fmt.Fprintf(w, "TOTAL\t%d\t%d\t%d\n", snap.Total, snap.Eligible, snap.Blocked)
	_ = w.Flush()

	if snap.NextRetryAt != nil {
		fmt.Printf("Next retry: %s\n", snap.NextRetryAt.Format(time.RFC3339))
	}
}
