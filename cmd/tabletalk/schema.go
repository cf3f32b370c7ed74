package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tabletalk-labs/tabletalk/agentcore/config"
	"github.com/tabletalk-labs/tabletalk/agentcore/schema"
)

func newSchemaCommand() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Show the introspected database schema",
		Long: `Introspect the configured database and print its tables, columns,
and row counts. This is the same snapshot the query generator sees.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}

			db, err := openDatabase(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			dialect, err := schema.DialectFromString(cfg.Database.Driver)
			if err != nil {
				return err
			}

			snap, err := schema.NewIntrospector(db, dialect).Snapshot(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch format {
			case "json":
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(snap.Tables())
			case "prompt":
				_, _ = fmt.Fprintln(out, snap.Render())
				return nil
			default:
				renderSnapshotTable(out, snap)
				return nil
			}
		},
	}

	cmd.Flags().StringVar(&format, "format", "table", "output format: table, json, prompt")

	return cmd
}
