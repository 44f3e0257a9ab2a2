package main

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/promptvault/internal/client/election"
	"github.com/dmitrijs2005/promptvault/internal/client/models"
	"github.com/dmitrijs2005/promptvault/internal/client/remote"
	"github.com/dmitrijs2005/promptvault/internal/client/retryq"
	"github.com/dmitrijs2005/promptvault/internal/client/syncer"
	"github.com/spf13/cobra"
)

func newSyncCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "run one sync cycle now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			sessionFn := func() models.Session {
				s, err := st.Session(context.Background())
				if err != nil {
					return models.Session{}
				}
				return s
			}
			rem := remote.NewHTTPRemote(a.cfg.ServerEndpointAddr, sessionFn, a.log)

			elector := election.New(st,
				a.cfg.LeaseTimeout, a.cfg.HeartbeatInterval,
				a.cfg.ElectionSettleDelay, a.cfg.ElectionJitter, a.log)
			won, err := elector.Elect(ctx)
			if err != nil {
				return err
			}
			if !won {
				return fmt.Errorf("another process is leading sync; nothing to do")
			}
			defer func() { _ = elector.Resign(ctx) }()

			orch := syncer.New(st, rem, elector,
				retryq.New(retryq.DefaultCapacity, retryq.DefaultMaxRetries, a.log),
				a.cfg.ManualSyncTimeout, a.cfg.SyncInterval, a.log)
			stats, err := orch.SyncNow(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("downloaded %d, uploaded %d", stats.Downloaded, stats.Uploaded)
			if stats.Partial {
				fmt.Print(" (partial)")
			}
			fmt.Println()
			return nil
		},
	}
}
