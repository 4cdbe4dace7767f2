package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the entity mapping as JSON",
		Long:  `Print the entities, tables and columns declared in the config file.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			cfg, err := loadConfig(out)
			if err != nil {
				return err
			}
			schema := cfg.Schema()
			if len(schema.Entities) == 0 {
				printWarning(out, "No entities declared (run 'bulkdml init' for an example)")
				return nil
			}

			json, err := schema.ToJSON()
			if err != nil {
				return err
			}
			fmt.Fprintln(out, json)
			return nil
		},
	}
}
