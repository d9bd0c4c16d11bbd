package main

import (
	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/marksync/internal/app"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the sync agent (local API, auto-sync, homepage import, backups)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		core, err := newCore(cmd)
		if err != nil {
			return err
		}
		// Run closes the core on exit
		return app.New(core).Run(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
