package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chameleon-db/bulkdml/internal/config"
	"github.com/chameleon-db/bulkdml/pkg/engine"
	"github.com/chameleon-db/bulkdml/pkg/engine/hql"
	"github.com/chameleon-db/bulkdml/pkg/engine/mutation"
)

func newUpdateCmd() *cobra.Command {
	var (
		set    []string
		where  []string
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "update <entity>",
		Short: "Run a bulk UPDATE",
		Long: `Assign new values to every row of an entity matching the filters.

Values are converted to the declared field type. The literal null
assigns NULL.

Examples:
  bulkdml update Car --set Year=2001 --where Id=1
  bulkdml update Car --set Name="BMW M3" --set Year=1986 --where Name=BMW`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			cfg, err := loadConfig(out)
			if err != nil {
				return err
			}
			entity, err := cfg.Schema().LookupEntity(args[0])
			if err != nil {
				return err
			}
			updates, err := parseClauses(entity, set)
			if err != nil {
				return err
			}
			filters, err := parseClauses(entity, where)
			if err != nil {
				return err
			}

			preview, err := mutation.BuildUpdate(entity.Name, updates, filters)
			if err != nil {
				return err
			}
			if dryRun {
				return printStatement(out, cfg, preview)
			}

			v, err := guard("UPDATE", entity.Name, len(filters) > 0)
			if err != nil {
				return err
			}

			return withSession(commandContext(cmd), cfg, func(eng *engine.Engine, session engine.Session) error {
				m := eng.Update(session, entity.Name)
				for _, c := range updates {
					m.SetProperty(engine.Prop(c.Field), c.Value)
				}
				for _, c := range filters {
					m.Where(engine.Prop(c.Field), c.Value)
				}

				n, err := m.Execute(commandContext(cmd))
				if err != nil {
					return err
				}
				printSuccess(out, "%d %s updated", n, rows(n))
				if err := recordExecuted(v, "UPDATE", entity.Name, m, n); err != nil {
					printWarning(out, "Statement ran but was not journaled: %v", err)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringArrayVar(&set, "set", nil, "assignment Field=value (repeatable)")
	cmd.Flags().StringArrayVar(&where, "where", nil, "equality filter Field=value (repeatable, ANDed)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the statement without running it")
	return cmd
}

func newDeleteCmd() *cobra.Command {
	var (
		where  []string
		all    bool
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "delete <entity>",
		Short: "Run a bulk DELETE",
		Long: `Delete every row of an entity matching the filters.

A delete without --where removes the whole table and needs --all.

Examples:
  bulkdml delete Car --where Name=Golf
  bulkdml delete Car --all`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			cfg, err := loadConfig(out)
			if err != nil {
				return err
			}
			entity, err := cfg.Schema().LookupEntity(args[0])
			if err != nil {
				return err
			}
			filters, err := parseClauses(entity, where)
			if err != nil {
				return err
			}
			if len(filters) == 0 && !all {
				return fmt.Errorf("refusing to delete every %s without --all", entity.Name)
			}
			if len(filters) > 0 && all {
				printWarning(out, "--all ignored, filters given")
			}

			if dryRun {
				return printStatement(out, cfg, mutation.BuildDelete(entity.Name, filters))
			}

			v, err := guard("DELETE", entity.Name, len(filters) > 0)
			if err != nil {
				return err
			}

			return withSession(commandContext(cmd), cfg, func(eng *engine.Engine, session engine.Session) error {
				m := eng.Delete(session, entity.Name)
				for _, c := range filters {
					m.Where(engine.Prop(c.Field), c.Value)
				}

				n, err := m.Execute(commandContext(cmd))
				if err != nil {
					return err
				}
				printSuccess(out, "%d %s deleted", n, rows(n))
				if err := recordExecuted(v, "DELETE", entity.Name, m, n); err != nil {
					printWarning(out, "Statement ran but was not journaled: %v", err)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringArrayVar(&where, "where", nil, "equality filter Field=value (repeatable, ANDed)")
	cmd.Flags().BoolVar(&all, "all", false, "allow deleting every row")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the statement without running it")
	return cmd
}

// parseClauses reads Field=value pairs, converting each value to the type
// declared for the field.
func parseClauses(entity *engine.Entity, pairs []string) (engine.Clauses, error) {
	var clauses engine.Clauses
	for _, pair := range pairs {
		name, raw, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid clause %q (expected Field=value)", pair)
		}

		field, exists := entity.Fields[name]
		if !exists {
			return nil, &engine.UnknownFieldError{Entity: entity.Name, Field: name, Available: entity.FieldNames()}
		}

		if raw == "null" {
			clauses.Add(name, nil)
			continue
		}
		value, err := field.Type.Coerce(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: cannot use %q as %s: %w", name, raw, field.Type, err)
		}
		clauses.Add(name, value)
	}
	return clauses, nil
}

// printStatement shows the bulk statement, its bindings and the SQL it
// compiles to for the configured driver.
func printStatement(w io.Writer, cfg *config.Config, stmt mutation.Statement) error {
	dialect, err := hql.DialectFor(cfg.Database.Driver)
	if err != nil {
		return err
	}
	parsed, err := hql.Parse(stmt.Text)
	if err != nil {
		return err
	}
	compiled, err := hql.Compile(parsed, cfg.Schema(), dialect)
	if err != nil {
		return err
	}
	args, err := compiled.Args(stmt.Values())
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Statement: %s\n", stmt.Text)
	for _, p := range stmt.Params {
		fmt.Fprintf(w, "  :%s = %#v\n", p.Name, p.Value)
	}
	fmt.Fprintf(w, "SQL (%s): %s\n", dialect.Name(), compiled.SQL)
	fmt.Fprintf(w, "Args: %v\n", args)
	return nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func rows(n int) string {
	if n == 1 {
		return "row"
	}
	return "rows"
}
