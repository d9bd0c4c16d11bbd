package main

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

type syncSummary struct {
	LastSyncAt string `json:"last_sync_at"`
	Canonical  int    `json:"canonical"`
	Added      int    `json:"added"`
	Updated    int    `json:"updated"`
	Deleted    int    `json:"deleted"`
	Created    int    `json:"created"`
	Skipped    int    `json:"skipped"`
	Failed     int    `json:"failed"`
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync the local tree with the server now",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		core, err := newCore(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = core.Close() }()

		var spinner *pterm.SpinnerPrinter
		if !jsonOutput(cmd) {
			spinner, _ = pterm.DefaultSpinner.Start("Syncing bookmarks...")
		}
		resp, err := core.Engine.PerformSync(cmd.Context())
		if err != nil {
			if spinner != nil {
				spinner.Fail("Sync failed")
			}
			return err
		}

		summary := syncSummary{
			LastSyncAt: resp.LastSyncAt,
			Canonical:  len(resp.Bookmarks),
			Added:      resp.Added,
			Updated:    resp.Updated,
			Deleted:    resp.Deleted,
		}
		if out, ok := core.Engine.LastOutcome(); ok {
			summary.Created, summary.Skipped, summary.Failed = out.Created, out.Skipped, out.Failed
		}

		if jsonOutput(cmd) {
			return printJSON(summary)
		}
		if spinner != nil {
			spinner.Success("Sync complete")
		}
		pterm.Info.Printf("Server: %d added, %d updated, %d deleted (%d bookmarks)\n",
			summary.Added, summary.Updated, summary.Deleted, summary.Canonical)
		pterm.Info.Printf("Local: %d created, %d skipped\n", summary.Created, summary.Skipped)
		if summary.Failed > 0 {
			pterm.Warning.Printf("%d bookmarks could not be created locally\n", summary.Failed)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
