package main

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/marksync/internal/utils"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Manage snapshots of the local bookmark tree",
}

var backupCreateCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Snapshot the local tree",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := ""
		if len(args) == 1 {
			name = args[0]
		}
		core, err := newCore(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = core.Close() }()

		b, err := core.Backups.Create(cmd.Context(), name, false)
		if err != nil {
			return err
		}
		if jsonOutput(cmd) {
			return printJSON(b.Summary())
		}
		pterm.Success.Printf("Backup %s created (%d bookmarks)\n", b.ID, b.Count)
		return nil
	},
}

var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List backups, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		core, err := newCore(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = core.Close() }()

		backups, err := core.Backups.List(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput(cmd) {
			return printJSON(backups)
		}
		if len(backups) == 0 {
			pterm.Info.Println("No backups")
			return nil
		}

		data := pterm.TableData{{"ID", "Name", "Created", "Bookmarks", "Kind"}}
		for _, b := range backups {
			kind := "manual"
			if b.Auto {
				kind = "auto"
			}
			data = append(data, []string{
				b.ID, b.Name, b.CreatedAt.Local().Format("2006-01-02 15:04"), fmt.Sprint(b.Count), kind,
			})
		}
		return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	},
}

var backupRestoreCmd = &cobra.Command{
	Use:   "restore <id>",
	Short: "Re-create the bookmarks of a backup missing from the local tree",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if yes, _ := cmd.Flags().GetBool("yes"); !yes {
			ok, _ := pterm.DefaultInteractiveConfirm.
				WithDefaultText(fmt.Sprintf("Restore backup %s into the local tree?", args[0])).
				Show()
			if !ok {
				pterm.Info.Println("Restore cancelled")
				return nil
			}
		}

		core, err := newCore(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = core.Close() }()

		n, err := core.Backups.Restore(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		pterm.Success.Printf("Restored %d bookmarks\n", n)
		return nil
	},
}

var backupDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a backup",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		core, err := newCore(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = core.Close() }()

		if err := core.Backups.Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		pterm.Success.Printf("Backup %s deleted\n", args[0])
		return nil
	},
}

var backupExportCmd = &cobra.Command{
	Use:   "export [id]",
	Short: "Write one backup, or all of them, as JSON",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("file")

		core, err := newCore(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = core.Close() }()

		export := func(w io.Writer) error {
			if len(args) == 1 {
				return core.Backups.Export(cmd.Context(), args[0], w)
			}
			return core.Backups.ExportAll(cmd.Context(), w)
		}

		if path == "" || path == "-" {
			return export(os.Stdout)
		}
		var buf bytes.Buffer
		if err := export(&buf); err != nil {
			return err
		}
		if err := utils.WriteAtomic(path, buf.Bytes(), 0o600); err != nil {
			return err
		}
		pterm.Success.Printf("Exported to %s\n", path)
		return nil
	},
}

var backupImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Load backups from an export file (- for stdin)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var r io.Reader = os.Stdin
		if args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer func() { _ = f.Close() }()
			r = f
		}

		core, err := newCore(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = core.Close() }()

		n, err := core.Backups.Import(cmd.Context(), r)
		if err != nil {
			return err
		}
		pterm.Success.Printf("Imported %d backups\n", n)
		return nil
	},
}

func init() {
	backupRestoreCmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt")
	backupExportCmd.Flags().StringP("file", "f", "", "Output file (default stdout)")
	backupCmd.AddCommand(backupCreateCmd, backupListCmd, backupRestoreCmd, backupDeleteCmd, backupExportCmd, backupImportCmd)
	rootCmd.AddCommand(backupCmd)
}
