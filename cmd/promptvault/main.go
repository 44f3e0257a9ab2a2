// promptvault is a local-first prompt library client. Records live in a
// shared SQLite store; any number of promptvault processes may attach to the
// same store, and the elected leader among them syncs with the remote
// record store.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/dmitrijs2005/promptvault/internal/client/config"
	"github.com/dmitrijs2005/promptvault/internal/client/store"
	"github.com/dmitrijs2005/promptvault/internal/logging"
	"github.com/spf13/cobra"
)

type app struct {
	cfg *config.Config
	log logging.Logger
}

func (a *app) openStore(ctx context.Context) (*store.Store, error) {
	return store.Open(ctx, a.cfg.DatabasePath, a.log)
}

func newRootCmd() *cobra.Command {
	a := &app{
		cfg: config.LoadConfig(),
		log: logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, nil))),
	}

	root := &cobra.Command{
		Use:           "promptvault",
		Short:         "local-first prompt library with multi-process sync",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// The config layer owns these flags (defaults < json < flags); they are
	// declared here so the command parser accepts and documents them.
	root.PersistentFlags().StringP("addr", "a", a.cfg.ServerEndpointAddr, "remote server endpoint")
	root.PersistentFlags().StringP("db", "d", a.cfg.DatabasePath, "local store path")
	root.PersistentFlags().IntP("interval", "i", int(a.cfg.SyncInterval.Seconds()), "sync interval, seconds")

	root.AddCommand(
		newRunCmd(a),
		newLoginCmd(a),
		newLogoutCmd(a),
		newAddCmd(a),
		newListCmd(a),
		newStatusCmd(a),
		newSyncCmd(a),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
