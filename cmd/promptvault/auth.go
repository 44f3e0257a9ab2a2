package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/dmitrijs2005/promptvault/internal/client/models"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newLoginCmd(a *app) *cobra.Command {
	var newAccount bool

	cmd := &cobra.Command{
		Use:   "login <user-id>",
		Short: "bind an identity to the local store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			token, err := readToken()
			if err != nil {
				return err
			}

			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.SetSession(ctx, models.Session{UserID: args[0], AccessToken: token}); err != nil {
				return err
			}
			action := models.ActionSignIn
			if newAccount {
				action = models.ActionSignUp
			}
			if err := st.SetLastAction(ctx, action); err != nil {
				return err
			}
			fmt.Printf("signed in as %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().BoolVar(&newAccount, "new-account", false, "this identity was just registered")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "detach the identity from the local store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.ClearSession(ctx); err != nil {
				return err
			}
			if err := st.SetLastAction(ctx, models.ActionSignOut); err != nil {
				return err
			}
			fmt.Println("signed out")
			return nil
		},
	}
}

// readToken prompts for the access token without echo when attached to a
// terminal, falling back to a plain line read otherwise.
func readToken() (string, error) {
	fmt.Fprint(os.Stderr, "access token: ")
	if term.IsTerminal(int(os.Stdin.Fd())) {
		b, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
