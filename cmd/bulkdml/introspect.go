package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/chameleon-db/bulkdml/internal/config"
	"github.com/chameleon-db/bulkdml/pkg/engine/introspect"
	"github.com/chameleon-db/bulkdml/pkg/vault"
)

func newIntrospectCmd() *cobra.Command {
	var write bool

	cmd := &cobra.Command{
		Use:   "introspect",
		Short: "Generate entity declarations from the database",
		Long: `Read every table of the configured database and print one entity
per table, named after the singular of the table.

With --write the entities section of the config file is replaced.

Examples:
  bulkdml introspect
  bulkdml introspect --write`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			ctx := commandContext(cmd)

			cfg, err := loadConfig(out)
			if err != nil {
				return err
			}
			log, err := newLogger(cfg.Logging)
			if err != nil {
				return err
			}
			defer log.Sync()

			if write {
				v, err := openVault()
				if err != nil {
					return err
				}
				if v.Exists() {
					mode, err := v.GetMode()
					if err != nil {
						return fmt.Errorf("failed to read vault mode: %w", err)
					}
					if mode == vault.ModeReadonly {
						return fmt.Errorf("readonly mode: introspect --write is blocked")
					}
				}
			}

			inspector, err := introspect.NewIntrospector(ctx, cfg.Database.Driver, cfg.Database.ConnectionString)
			if err != nil {
				return fmt.Errorf("failed to create introspector: %w", err)
			}
			defer inspector.Close()

			detected, err := inspector.Detect(ctx)
			if err != nil {
				return fmt.Errorf("failed to detect database: %w", err)
			}
			if !detected {
				return fmt.Errorf("failed to connect or detect database type")
			}

			tables, err := inspector.GetAllTables(ctx)
			if err != nil {
				return fmt.Errorf("introspection failed: %w", err)
			}
			log.Debug("tables scanned", zap.Int("tables", len(tables)))

			entities := config.EntitiesFromSchema(introspect.ToSchema(tables))

			if !write {
				data, err := yaml.Marshal(struct {
					Entities []config.EntityConfig `yaml:"entities"`
				}{entities})
				if err != nil {
					return fmt.Errorf("failed to encode entities: %w", err)
				}
				_, err = out.Write(data)
				return err
			}

			var loader *config.Loader
			if cfgFile != "" {
				loader = config.NewFileLoader(cfgFile)
			} else {
				dir, err := projectDir()
				if err != nil {
					return err
				}
				loader = config.NewLoader(dir)
			}
			if err := loader.SaveEntities(entities); err != nil {
				return err
			}

			printSuccess(out, "Found %d table(s)", len(tables))
			printSuccess(out, "Entities written to %s", loader.Path())
			return nil
		},
	}

	cmd.Flags().BoolVarP(&write, "write", "w", false, "replace the entities section of the config file")
	return cmd
}
