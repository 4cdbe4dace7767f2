package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/chameleon-db/bulkdml/pkg/engine"
)

var (
	cfgFile   string
	verbose   bool
	debugFlag string
	noColor   bool
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "bulkdml",
		Short: "Bulk UPDATE and DELETE for mapped entities",
		Long: `bulkdml runs set-based UPDATE and DELETE statements against the
entities declared in .bulkdml.yml, without loading any rows.

Examples:
  bulkdml update Car --set Year=2001 --where Id=1
  bulkdml delete Car --where Name=Golf
  bulkdml delete Car --all --dry-run`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor {
				color.NoColor = true
			}
			// .env is optional
			_ = godotenv.Load()
		},
	}

	root.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default ./.bulkdml.yml)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	root.PersistentFlags().StringVar(&debugFlag, "debug", "", "statement echo: off, sql or trace")
	root.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	root.AddCommand(
		newUpdateCmd(),
		newDeleteCmd(),
		newSchemaCmd(),
		newIntrospectCmd(),
		newVaultCmd(),
		newInitCmd(),
		newVersionCmd(),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)

	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		printError(os.Stderr, "%s", engine.FormatError(err))
		os.Exit(1)
	}
}

func printSuccess(w io.Writer, format string, args ...any) {
	color.New(color.FgGreen).Fprint(w, "✓ ")
	fmt.Fprintf(w, format+"\n", args...)
}

func printInfo(w io.Writer, format string, args ...any) {
	color.New(color.FgCyan).Fprint(w, "ℹ ")
	fmt.Fprintf(w, format+"\n", args...)
}

func printWarning(w io.Writer, format string, args ...any) {
	color.New(color.FgYellow).Fprint(w, "⚠ ")
	fmt.Fprintf(w, format+"\n", args...)
}

func printError(w io.Writer, format string, args ...any) {
	color.New(color.FgRed).Fprint(w, "✗ ")
	fmt.Fprintf(w, format+"\n", args...)
}
