package main

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/pterm/pterm"
	"github.com/pterm/pterm/putils"
	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/marksync/internal/domain"
	"github.com/MrSnakeDoc/marksync/internal/store"
	"github.com/MrSnakeDoc/marksync/internal/tree"
)

type bookmarkResult struct {
	domain.Bookmark
	Score float64 `json:"score,omitempty"`
}

var bookmarksCmd = &cobra.Command{
	Use:   "bookmarks",
	Short: "List local bookmarks, ranked when --query is set",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		query, _ := cmd.Flags().GetString("query")
		limit, _ := cmd.Flags().GetInt("limit")

		core, err := newCore(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = core.Close() }()

		local, err := core.Engine.LocalBookmarks(cmd.Context())
		if err != nil {
			return err
		}

		var candidates []domain.BookmarkCandidate
		if q := strings.TrimSpace(query); q != "" {
			candidates = domain.RankBookmarkCandidates(q, local)
		} else {
			candidates = make([]domain.BookmarkCandidate, 0, len(local))
			for _, b := range local {
				candidates = append(candidates, domain.BookmarkCandidate{Bookmark: b})
			}
		}
		if limit > 0 && len(candidates) > limit {
			candidates = candidates[:limit]
		}

		if jsonOutput(cmd) {
			results := make([]bookmarkResult, 0, len(candidates))
			for _, c := range candidates {
				results = append(results, bookmarkResult{Bookmark: c.Bookmark, Score: c.Score})
			}
			return printJSON(results)
		}
		if len(candidates) == 0 {
			pterm.Info.Println("No bookmarks found")
			return nil
		}

		data := pterm.TableData{{"Title", "URL", "Folder"}}
		for _, c := range candidates {
			data = append(data, []string{c.Bookmark.Title, c.Bookmark.URL, c.Bookmark.FolderPath.String()})
		}
		return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	},
}

var foldersCmd = &cobra.Command{
	Use:   "folders",
	Short: "List local folders",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		core, err := newCore(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = core.Close() }()

		root, err := core.Store.GetTree(cmd.Context())
		if err != nil {
			return err
		}
		folders := tree.Folders(root)

		if jsonOutput(cmd) {
			if folders == nil {
				folders = []tree.Folder{}
			}
			return printJSON(folders)
		}

		items := make([]pterm.LeveledListItem, 0, len(folders))
		for _, f := range folders {
			items = append(items, pterm.LeveledListItem{
				Level: f.Depth,
				Text:  fmt.Sprintf("%s (%d)", f.Title, f.Bookmarks),
			})
		}
		return pterm.DefaultTree.WithRoot(putils.TreeFromLeveledList(items)).Render()
	},
}

var bookmarksAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a bookmark, or a folder when --url is omitted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		title, _ := cmd.Flags().GetString("title")
		rawURL, _ := cmd.Flags().GetString("url")
		parent, _ := cmd.Flags().GetString("parent")

		title, rawURL = strings.TrimSpace(title), strings.TrimSpace(rawURL)
		if rawURL == "" && title == "" {
			return fmt.Errorf("a folder needs a --title")
		}
		if rawURL != "" {
			if u, err := url.Parse(rawURL); err != nil || u.Scheme == "" {
				return fmt.Errorf("invalid url %q", rawURL)
			}
		}

		return editNode(cmd, "Added", func(ctx context.Context, s store.Store) (*domain.Node, error) {
			return s.Create(ctx, store.CreateParams{ParentID: parent, Title: title, URL: rawURL})
		})
	},
}

var bookmarksRenameCmd = &cobra.Command{
	Use:   "rename <id> <title>",
	Short: "Rename a bookmark or folder",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		title := args[1]
		return editNode(cmd, "Renamed", func(ctx context.Context, s store.Store) (*domain.Node, error) {
			return s.Update(ctx, args[0], store.UpdateParams{Title: &title})
		})
	},
}

var bookmarksMoveCmd = &cobra.Command{
	Use:   "move <id> <parent-id>",
	Short: "Move a bookmark or folder into another folder",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return editNode(cmd, "Moved", func(ctx context.Context, s store.Store) (*domain.Node, error) {
			return s.Move(ctx, args[0], args[1])
		})
	},
}

var bookmarksDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a bookmark, or a folder with everything in it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		yes, _ := cmd.Flags().GetBool("yes")

		core, err := newCore(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = core.Close() }()

		root, err := core.Store.GetTree(cmd.Context())
		if err != nil {
			return err
		}
		n := tree.Find(root, args[0])
		if n == nil {
			return fmt.Errorf("no bookmark or folder with id %s", args[0])
		}
		if !yes && n.IsFolder() && !jsonOutput(cmd) {
			ok, _ := pterm.DefaultInteractiveConfirm.
				WithDefaultText(fmt.Sprintf("Delete folder %q and its %d bookmarks?", n.Title, tree.Count(n))).
				Show()
			if !ok {
				pterm.Info.Println("Cancelled")
				return nil
			}
		}

		if err := core.Store.Remove(cmd.Context(), args[0]); err != nil {
			return err
		}
		if jsonOutput(cmd) {
			return printJSON(map[string]string{"deleted": args[0]})
		}
		pterm.Success.Printf("Deleted %q\n", n.Title)
		return nil
	},
}

// editNode runs one store write and prints the resulting node.
func editNode(cmd *cobra.Command, verb string, fn func(context.Context, store.Store) (*domain.Node, error)) error {
	core, err := newCore(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = core.Close() }()

	n, err := fn(cmd.Context(), core.Store)
	if err != nil {
		return err
	}
	if jsonOutput(cmd) {
		return printJSON(n)
	}
	pterm.Success.Printf("%s %q (id %s, folder %s)\n", verb, n.Title, n.ID, n.ParentID)
	return nil
}

func init() {
	bookmarksCmd.Flags().StringP("query", "q", "", "Rank bookmarks against this query")
	bookmarksCmd.Flags().IntP("limit", "n", 0, "Maximum number of results (0 = all)")

	bookmarksAddCmd.Flags().StringP("title", "t", "", "Title")
	bookmarksAddCmd.Flags().StringP("url", "u", "", "URL; omit to create a folder")
	bookmarksAddCmd.Flags().StringP("parent", "p", domain.DefaultContainerID, "Parent folder id")
	bookmarksDeleteCmd.Flags().BoolP("yes", "y", false, "Do not ask before deleting a folder")

	bookmarksCmd.AddCommand(bookmarksAddCmd, bookmarksRenameCmd, bookmarksMoveCmd, bookmarksDeleteCmd)
	rootCmd.AddCommand(bookmarksCmd, foldersCmd)
}
