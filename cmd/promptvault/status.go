package main

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/promptvault/internal/client/models"
	"github.com/spf13/cobra"
)

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "show session, sync and leadership state of the local store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			sess, err := st.Session(ctx)
			if err != nil {
				return err
			}
			if sess.Attached() {
				fmt.Printf("identity:     %s\n", sess.UserID)
			} else {
				fmt.Println("identity:     (detached)")
			}

			state, err := st.SyncState(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("last action:  %s\n", state.LastAction)
			if !state.LastTimestamp.IsZero() {
				fmt.Printf("last sync:    %s\n", state.LastTimestamp.Format(time.RFC3339))
			} else {
				fmt.Println("last sync:    never")
			}
			fmt.Printf("offline work: %v\n", state.OfflineWorkPending)

			rec, err := st.LeaderRecord(ctx)
			if err != nil {
				return err
			}
			if rec == nil {
				fmt.Println("leader:       none")
			} else {
				fmt.Printf("leader:       %s (lease age %s)\n",
					rec.OwnerToken, rec.Age(time.Now()).Round(time.Millisecond))
			}

			for _, table := range models.SyncTables {
				upserts, deletions, err := st.Pending(ctx, table)
				if err != nil {
					return err
				}
				fmt.Printf("pending %s: %d upserts, %d deletes\n",
					table, len(upserts), len(deletions))
			}
			return nil
		},
	}
}
