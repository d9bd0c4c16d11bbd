package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/marksync/internal/domain"
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account on the sync server and log in",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return authenticate(cmd, true)
	},
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in to the sync server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return authenticate(cmd, false)
	},
}

func authenticate(cmd *cobra.Command, register bool) error {
	email, _ := cmd.Flags().GetString("email")
	server, _ := cmd.Flags().GetString("server")
	password, err := readPassword(cmd)
	if err != nil {
		return err
	}

	core, err := newCore(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = core.Close() }()

	var cfg domain.SyncConfig
	if register {
		cfg, err = core.Engine.Register(cmd.Context(), server, email, password)
	} else {
		cfg, err = core.Engine.Login(cmd.Context(), server, email, password)
	}
	if err != nil {
		return err
	}

	if jsonOutput(cmd) {
		return printJSON(cfg.Redacted())
	}
	pterm.Success.Printf("Logged in as %s on %s\n", cfg.Email, cfg.ServerURL)
	return nil
}

// readPassword takes --password, then MARKSYNC_PASSWORD, then prompts.
func readPassword(cmd *cobra.Command) (string, error) {
	if p, _ := cmd.Flags().GetString("password"); p != "" {
		return p, nil
	}
	if p := os.Getenv("MARKSYNC_PASSWORD"); p != "" {
		return p, nil
	}
	p, err := pterm.DefaultInteractiveTextInput.WithMask("*").Show("Password")
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	if strings.TrimSpace(p) == "" {
		return "", errors.New("password is required")
	}
	return p, nil
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		core, err := newCore(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = core.Close() }()

		if err := core.Engine.Logout(cmd.Context()); err != nil {
			return err
		}
		pterm.Success.Println("Logged out")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the account and sync state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		core, err := newCore(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = core.Close() }()

		st, err := core.Engine.Status(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput(cmd) {
			return printJSON(st)
		}

		if !st.LoggedIn {
			pterm.Warning.Printf("Not logged in (server %s)\n", st.ServerURL)
			pterm.Info.Printf("Local bookmarks: %d\n", st.LocalCount)
			return nil
		}

		lastSync := st.LastSyncAt
		if lastSync == "" {
			lastSync = "never"
		}
		data := pterm.TableData{
			{"Field", "Value"},
			{"Account", st.Email},
			{"Server", st.ServerURL},
			{"Auto-sync", onOff(st.AutoSync)},
			{"Last sync", lastSync},
			{"Local bookmarks", fmt.Sprint(st.LocalCount)},
			{"Server bookmarks", fmt.Sprint(st.BookmarkCount)},
			{"Server syncs", fmt.Sprint(st.SyncCount)},
		}
		if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
			return err
		}
		if st.Error != "" {
			pterm.Warning.Printf("Server status unavailable: %s\n", st.Error)
		}
		return nil
	},
}

var autoSyncCmd = &cobra.Command{
	Use:       "autosync on|off",
	Short:     "Enable or disable automatic sync",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"on", "off"},
	RunE: func(cmd *cobra.Command, args []string) error {
		var enabled bool
		switch args[0] {
		case "on":
			enabled = true
		case "off":
		default:
			return fmt.Errorf("expected on or off, got %q", args[0])
		}

		core, err := newCore(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = core.Close() }()

		if _, err := core.Engine.SetAutoSync(cmd.Context(), enabled); err != nil {
			return err
		}
		pterm.Success.Printf("Auto-sync %s\n", onOff(enabled))
		return nil
	},
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func init() {
	for _, c := range []*cobra.Command{registerCmd, loginCmd} {
		c.Flags().StringP("email", "e", "", "Account email")
		c.Flags().StringP("password", "p", "", "Account password (or MARKSYNC_PASSWORD, prompted when unset)")
		c.Flags().StringP("server", "s", "", "Sync server URL (defaults to the configured one)")
		_ = c.MarkFlagRequired("email")
	}
	rootCmd.AddCommand(registerCmd, loginCmd, logoutCmd, statusCmd, autoSyncCmd)
}
