package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/marksync/internal/app"
	"github.com/MrSnakeDoc/marksync/internal/config"
	"github.com/MrSnakeDoc/marksync/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		pterm.Error.Println(err)
		stop()
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "marksync",
	Short:         "Bookmark sync agent",
	Long:          "marksync keeps a local bookmark tree in sync with a remote marksync server.",
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// newCore loads the environment configuration and opens the local storage.
// One-shot commands log warnings only unless --verbose is set. The caller
// must defer core.Close().
func newCore(cmd *cobra.Command) (*app.Core, error) {
	cfg := config.Load()
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		cfg.LogLevel = "debug"
	} else if cmd.Name() != "serve" {
		cfg.LogLevel = "warn"
	}

	core, err := app.NewCore(cmd.Context(), cfg, app.NewLogger(cfg))
	if err != nil {
		return nil, fmt.Errorf("initializing: %w", err)
	}
	return core, nil
}

// jsonOutput reports whether -o json was requested.
func jsonOutput(cmd *cobra.Command) bool {
	output, _ := cmd.Flags().GetString("output")
	return output == "json"
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringP("output", "o", "", "Output format (json)")
	rootCmd.SetVersionTemplate("marksync " + version.String() + "\n")
}
