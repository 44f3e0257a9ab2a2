package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/promptvault/internal/client/models"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newAddCmd(a *app) *cobra.Command {
	var (
		content  string
		folderID string
		tags     []string
		favorite bool
	)

	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "create a prompt in the local store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			p := &models.Prompt{
				ID:        uuid.NewString(),
				Title:     args[0],
				Content:   content,
				Tags:      tags,
				Favorite:  favorite,
				CreatedAt: time.Now().UTC(),
			}
			if folderID != "" {
				p.FolderID = &folderID
			}
			if err := st.Put(ctx, models.TablePrompts, p, models.OriginLocal); err != nil {
				return err
			}
			fmt.Println(p.ID)
			return nil
		},
	}
	// No -c shorthand: the config layer owns -c for the JSON config path.
	cmd.Flags().StringVar(&content, "content", "", "prompt body")
	cmd.Flags().StringVarP(&folderID, "folder", "f", "", "parent folder id")
	cmd.Flags().StringSliceVarP(&tags, "tag", "t", nil, "tag (repeatable)")
	cmd.Flags().BoolVar(&favorite, "favorite", false, "mark as favorite")
	return cmd
}

func newListCmd(a *app) *cobra.Command {
	var folders bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "list prompts (or folders) in the local store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			table := models.TablePrompts
			if folders {
				table = models.TableFolders
			}
			recs, err := st.GetAll(ctx, table)
			if err != nil {
				return err
			}
			for _, rec := range recs {
				switch r := rec.(type) {
				case *models.Prompt:
					line := fmt.Sprintf("%s  %s", r.ID, r.Title)
					if len(r.Tags) > 0 {
						line += "  [" + strings.Join(r.Tags, ", ") + "]"
					}
					if r.Favorite {
						line += "  *"
					}
					fmt.Println(line)
				case *models.Folder:
					fmt.Printf("%s  %s\n", r.ID, r.Name)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&folders, "folders", false, "list folders instead of prompts")
	return cmd
}
