package main

import (
	"context"
	"errors"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/promptvault/internal/client/election"
	"github.com/dmitrijs2005/promptvault/internal/client/models"
	"github.com/dmitrijs2005/promptvault/internal/client/remote"
	"github.com/dmitrijs2005/promptvault/internal/client/retryq"
	"github.com/dmitrijs2005/promptvault/internal/client/router"
	"github.com/dmitrijs2005/promptvault/internal/client/store"
	"github.com/dmitrijs2005/promptvault/internal/client/syncer"
	"github.com/dmitrijs2005/promptvault/internal/common"
	"github.com/spf13/cobra"
)

func newRunCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "attach to the local store and keep it synchronized",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd.Context(), a)
		},
	}
}

func runDaemon(ctx context.Context, a *app) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	// Both transports read the session through the store on every use, so a
	// sign-in or sign-out from another terminal takes effect mid-run.
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
	queue := retryq.New(retryq.DefaultCapacity, retryq.DefaultMaxRetries, a.log)

	notify := func(event any) {
		switch e := event.(type) {
		case models.DataChanged:
			a.log.Info(ctx, "data changed", "at", e.Timestamp)
		case models.SyncCompleted:
			a.log.Info(ctx, "sync completed",
				"downloaded", e.Downloaded, "uploaded", e.Uploaded, "partial", e.Partial)
		}
	}

	orch := syncer.New(st, rem, elector, queue,
		a.cfg.ManualSyncTimeout, a.cfg.SyncInterval, a.log,
		syncer.WithNotify(notify))
	rt := router.New(st, remote.NewWSSubscriber(a.cfg.ServerEndpointAddr, sessionFn, a.log),
		a.cfg.DebounceQuiet, a.log, router.WithNotify(notify))

	// First election runs synchronously; initial sync depends on its verdict.
	if _, err := elector.Elect(ctx); err != nil {
		return err
	}
	switch _, err := orch.InitialSync(ctx); {
	case errors.Is(err, common.ErrNotAuthenticated):
		a.log.Info(ctx, "not signed in, working locally")
	case errors.Is(err, common.ErrNotConnected):
		a.log.Info(ctx, "remote unreachable, initial sync deferred")
	case err != nil:
		a.log.Warn(ctx, "initial sync failed", "error", err)
	}

	watcher, err := store.NewWatcher(store.MarkerPath(a.cfg.DatabasePath))
	if err != nil {
		return err
	}
	defer watcher.Close()

	var wg sync.WaitGroup
	wg.Add(3)
	go func() { defer wg.Done(); elector.Run(ctx) }()
	go func() { defer wg.Done(); orch.Run(ctx) }()
	go func() { defer wg.Done(); rt.Run(ctx) }()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case <-watcher.Events():
				a.log.Debug(ctx, "local store changed by another process")
			}
		}
	}()

	a.log.Info(ctx, "attached", "db", a.cfg.DatabasePath, "token", elector.Token())
	<-ctx.Done()
	wg.Wait()
	a.log.Info(context.Background(), "detached cleanly")
	return nil
}
