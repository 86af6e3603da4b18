package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/vietddude/teamsync/internal/control"
	"github.com/vietddude/teamsync/internal/syncing/engine"
)

var notifyOnly bool

var flushCmd = &cobra.Command{
	Use:   "flush",
	Short: "Run one sync cycle and print its result",
	Run:   runFlush,
}

func init() {
	flushCmd.Flags().BoolVar(&notifyOnly, "notify", false, "ask running daemons to flush over Redis instead of syncing here")
	rootCmd.AddCommand(flushCmd)
}

func runFlush(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	ctx := context.Background()

	if notifyOnly {
		stores := openStores(ctx, cfg)
		defer func() { _ = stores.Close() }()

		rc := stores.Redis()
		if rc == nil {
			slog.Error("Redis is not configured, cannot notify daemons")
			os.Exit(1)
		}
		if err := rc.RequestFlush(ctx, "cli"); err != nil {
			slog.Error("Failed to request flush", "error", err)
			os.Exit(1)
		}
		fmt.Println("Flush requested")
		return
	}

	app, err := control.NewSyncer(ctx, cfg)
	if err != nil {
		slog.Error("Failed to initialize Syncer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = app.Close() }()

	res, err := app.Engine().Flush(ctx)
	if err != nil && !errors.Is(err, engine.ErrGuestImportPending) {
		slog.Error("Flush failed", "error", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(res)

	if errors.Is(err, engine.ErrGuestImportPending) {
		owners, _ := app.Guests().Owners(ctx)
		fmt.Fprintf(os.Stderr, "Guest data must be imported first (teamsync import-guest --guest <id>): %v\n", owners)
		os.Exit(2)
	}
	if res.Aborted {
		os.Exit(3)
	}
}
