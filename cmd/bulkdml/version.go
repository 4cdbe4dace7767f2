package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags "-X main.Version=...".
var Version = "0.1.0"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show bulkdml version",
		Long:  "Display the current version of the bulkdml CLI",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()

			fmt.Fprintf(out, "bulkdml v%s\n", Version)

			if verbose {
				fmt.Fprintln(out, "\nComponents:")
				fmt.Fprintf(out, "  Go:      %s\n", runtime.Version())
				fmt.Fprintln(out, "  Drivers: sqlite3, pgx")
			}
		},
	}
}
