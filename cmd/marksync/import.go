package main

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/marksync/internal/scheduler"
)

type importSummary struct {
	Created        int      `json:"created"`
	FoldersCreated int      `json:"folders_created"`
	Failed         []string `json:"failed,omitempty"`
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import bookmarks from other sources",
}

var importHomepageCmd = &cobra.Command{
	Use:   "homepage",
	Short: "Import Homepage bookmarks and services into the local tree",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		core, err := newCore(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = core.Close() }()

		importer := scheduler.NewHomepageImporter(core.Homepage, core.Store, core.Resolver, core.Logger, 0, false, nil)
		report, err := importer.Import(cmd.Context())
		if err != nil {
			return err
		}
		summary := importSummary{Created: report.Created, FoldersCreated: report.FoldersCreated}
		for _, f := range report.Failed {
			summary.Failed = append(summary.Failed, f.Error())
		}
		if jsonOutput(cmd) {
			return printJSON(summary)
		}

		pterm.Success.Printf("Imported %d bookmarks (%d folders created)\n", summary.Created, summary.FoldersCreated)
		for _, f := range summary.Failed {
			pterm.Warning.Println(f)
		}
		return nil
	},
}

func init() {
	importCmd.AddCommand(importHomepageCmd)
	rootCmd.AddCommand(importCmd)
}
