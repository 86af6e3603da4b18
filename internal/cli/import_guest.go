package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/vietddude/teamsync/internal/control"
	"github.com/vietddude/teamsync/internal/core/session"
	"github.com/vietddude/teamsync/internal/syncing/guest"
)

var (
	guestID       string
	importUnowned bool
)

var importGuestCmd = &cobra.Command{
	Use:   "import-guest",
	Short: "Move records created while signed out to the configured owner",
	Run:   runImportGuest,
}

func init() {
	importGuestCmd.Flags().StringVar(&guestID, "guest", "", "guest identity to import (omit to list guest identities)")
	importGuestCmd.Flags().BoolVar(&importUnowned, "unowned", false, "import records that have no owner")
	rootCmd.AddCommand(importGuestCmd)
}

func runImportGuest(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	ctx := context.Background()

	stores := openStores(ctx, cfg)
	defer func() { _ = stores.Close() }()

	if guestID == "" && !importUnowned {
		owners, err := guest.NewDetector(stores.Records, cfg.Identity.GuestPrefix).Owners(ctx)
		if err != nil {
			slog.Error("Failed to list guest identities", "error", err)
			os.Exit(1)
		}
		if len(owners) == 0 {
			fmt.Println("No guest data to import")
			return
		}
		for _, o := range owners {
			if o == "" {
				o = "(unowned, use --unowned)"
			}
			fmt.Println(o)
		}
		return
	}

	importer := guest.NewImporter(
		stores.Records,
		control.NewLedger(cfg, stores.Failures),
		session.NewStatic(cfg.Identity.OwnerID),
		cfg.Identity.GuestPrefix,
	)
	moved, err := importer.Import(ctx, guestID)
	if err != nil {
		slog.Error("Failed to import guest data", "guest", guestID, "error", err)
		os.Exit(1)
	}

	total := 0
	for t, n := range moved {
		fmt.Printf("%s: %d\n", t, n)
		total += n
	}
	fmt.Printf("Imported %d records from %s to %s\n", total, guestID, cfg.Identity.OwnerID)
}
