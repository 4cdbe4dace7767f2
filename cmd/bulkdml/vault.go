package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/chameleon-db/bulkdml/pkg/engine/mutation"
	"github.com/chameleon-db/bulkdml/pkg/vault"
)

const modePasswordEnvVar = "BULKDML_MODE_PASSWORD"

// projectDir is where the vault lives: next to the config file.
func projectDir() (string, error) {
	if cfgFile != "" {
		return filepath.Dir(cfgFile), nil
	}
	return os.Getwd()
}

func openVault() (*vault.Vault, error) {
	dir, err := projectDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	return vault.NewVault(dir), nil
}

// guard authorizes stmt against the vault mode. Projects without a vault
// are unguarded.
func guard(action, entity string, filtered bool) (*vault.Vault, error) {
	v, err := openVault()
	if err != nil {
		return nil, err
	}
	if !v.Exists() {
		return nil, nil
	}
	if err := v.Authorize(action, entity, filtered); err != nil {
		return nil, err
	}
	return v, nil
}

// recordExecuted journals the statement the builder m ran.
func recordExecuted(v *vault.Vault, action, entity string, m any, affected int) error {
	if v == nil {
		return nil
	}
	b, ok := m.(interface {
		Statement() (mutation.Statement, error)
	})
	if !ok {
		return fmt.Errorf("%T does not expose its statement", m)
	}
	stmt, err := b.Statement()
	if err != nil {
		return err
	}
	return record(v, action, entity, stmt, affected)
}

// record journals an executed statement. A nil vault records nothing.
func record(v *vault.Vault, action, entity string, stmt mutation.Statement, affected int) error {
	if v == nil {
		return nil
	}

	mode, err := v.GetMode()
	if err != nil {
		return err
	}

	params := make(map[string]string, len(stmt.Params))
	for _, p := range stmt.Params {
		params[p.Name] = fmt.Sprintf("%v", p.Value)
	}

	_, err = v.Append(vault.Entry{
		Action:    action,
		Entity:    entity,
		Statement: stmt.Text,
		Params:    params,
		Affected:  affected,
		Mode:      mode,
	})
	return err
}

func newVaultCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vault <subcommand>",
		Short: "Guard and audit bulk statements",
		Long: `The vault stores a mode that decides which bulk statements may run
and an append-only, hash-chained journal of the ones that did.

Modes:
  readonly    refuse every update and delete
  standard    allow statements with at least one --where (default)
  privileged  also allow whole-table statements

Stored in .bulkdml/vault/ next to the config file.`,
		Args: cobra.MinimumNArgs(1),
	}

	cmd.AddCommand(
		newVaultInitCmd(),
		newVaultStatusCmd(),
		newVaultModeCmd(),
		newVaultPasswordCmd(),
		newVaultLogCmd(),
		newVaultVerifyCmd(),
	)
	return cmd
}

func newVaultInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the vault",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := openVault()
			if err != nil {
				return err
			}
			if err := v.Initialize(); err != nil {
				return err
			}
			printSuccess(cmd.OutOrStdout(), "Vault initialized in %s mode", vault.DefaultMode)
			return nil
		},
	}
}

func newVaultStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show vault mode and journal size",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			v, err := openVault()
			if err != nil {
				return err
			}
			status, err := v.GetStatus()
			if err != nil {
				return err
			}
			if !status.Exists {
				printWarning(out, "No vault initialized (run 'bulkdml vault init')")
				return nil
			}

			fmt.Fprintln(out, "Vault:")
			fmt.Fprintf(out, "  Mode:           %s\n", status.Mode)
			fmt.Fprintf(out, "  Password:       %s\n", yesNo(status.HasPassword))
			fmt.Fprintf(out, "  Entries:        %d\n", status.Entries)
			if status.LastEntry != nil {
				fmt.Fprintf(out, "  Last entry:     %s %s (%s)\n",
					status.LastEntry.Action, status.LastEntry.Entity, formatTimeSince(status.LastEntry.Timestamp))
			}
			return nil
		},
	}
}

func newVaultModeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mode [readonly|standard|privileged]",
		Short: "Show or change the vault mode",
		Long: `Without an argument print the current mode. Upgrades need the mode
password once one is set; for non-interactive use set ` + modePasswordEnvVar + `.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			v, err := openVault()
			if err != nil {
				return err
			}

			current, err := v.GetMode()
			if err != nil {
				return err
			}
			if len(args) == 0 {
				fmt.Fprintln(out, current)
				return nil
			}

			target, err := vault.ParseMode(args[0])
			if err != nil {
				return err
			}

			var password string
			if vault.RequiresAuth(current, target) && v.HasModePassword() {
				password, err = readModePassword(out)
				if err != nil {
					return err
				}
			}

			mode, err := v.SetMode(string(target), password)
			if err != nil {
				return err
			}
			printSuccess(out, "Vault mode updated: %s", mode)
			return nil
		},
	}
}

func newVaultPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-password",
		Short: "Set or rotate the password for mode upgrades",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			v, err := openVault()
			if err != nil {
				return err
			}
			password, err := readModePassword(out)
			if err != nil {
				return err
			}
			if err := v.SetModePassword(password); err != nil {
				return err
			}
			printSuccess(out, "Mode password configured")
			return nil
		},
	}
}

func newVaultLogCmd() *cobra.Command {
	var (
		limit  int
		format string
	)

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show the most recent journal entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			if limit <= 0 {
				return fmt.Errorf("limit must be greater than 0")
			}

			v, err := openVault()
			if err != nil {
				return err
			}
			entries, err := v.Last(limit)
			if err != nil {
				return err
			}

			switch format {
			case "json":
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(entries)
			case "table":
				printEntries(out, entries)
				return nil
			default:
				return fmt.Errorf("unknown format %q (expected table or json)", format)
			}
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of entries")
	cmd.Flags().StringVar(&format, "format", "table", "output format: table or json")
	return cmd
}

func newVaultVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check the journal hash chain",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			v, err := openVault()
			if err != nil {
				return err
			}
			result, err := v.VerifyIntegrity()
			if err != nil {
				return err
			}
			if !result.Valid {
				for _, issue := range result.Issues {
					printError(out, "%s", issue)
				}
				return fmt.Errorf("journal integrity check failed")
			}
			printSuccess(out, "Journal intact (%d entries)", result.Checked)
			return nil
		},
	}
}

func printEntries(w io.Writer, entries []vault.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No journal entries")
		return
	}
	for _, e := range entries {
		fmt.Fprintf(w, "%s  %-7s %-10s", e.Timestamp.Local().Format("2006-01-02 15:04:05"), e.Action, e.Mode)
		if e.Entity != "" {
			fmt.Fprintf(w, " %s affected=%d", e.Entity, e.Affected)
		}
		if action := e.Details["action"]; action != "" {
			fmt.Fprintf(w, " %s", action)
		}
		fmt.Fprintln(w)
		if e.Statement != "" {
			fmt.Fprintf(w, "    %s\n", e.Statement)
		}
	}
}

func readModePassword(w io.Writer) (string, error) {
	if value := strings.TrimSpace(os.Getenv(modePasswordEnvVar)); value != "" {
		return value, nil
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("no terminal to read the mode password from (set %s)", modePasswordEnvVar)
	}

	fmt.Fprintf(w, "Enter mode password (or set %s): ", modePasswordEnvVar)
	data, err := term.ReadPassword(fd)
	fmt.Fprintln(w)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// formatTimeSince formats a timestamp as "X ago"
func formatTimeSince(t time.Time) string {
	duration := time.Since(t)

	switch {
	case duration < time.Minute:
		return "just now"
	case duration < time.Hour:
		return fmt.Sprintf("%d minutes ago", int(duration.Minutes()))
	case duration < 24*time.Hour:
		return fmt.Sprintf("%d hours ago", int(duration.Hours()))
	default:
		days := int(duration.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	}
}
