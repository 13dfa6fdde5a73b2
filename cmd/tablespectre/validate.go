package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/ppiankov/tablespectre/internal/checks"
	"github.com/ppiankov/tablespectre/internal/warehouse"
	"github.com/ppiankov/tablespectre/pkg/config"
	"github.com/spf13/cobra"
)

// NewValidateCmd creates the validate command. It never connects to a
// database.
func NewValidateCmd() *cobra.Command {
	cfg := config.DefaultConfig()
	var dialectName string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the checks file and print the SQL each check would run",
		RunE: func(cmd *cobra.Command, args []string) error {
			fc, path, err := loadChecksFile(cfg.ChecksPath)
			if err != nil {
				return err
			}
			if fc == nil {
				return &config.ConfigError{Err: fmt.Errorf("no checks file found, pass --config")}
			}

			cfg.Normalize()
			if !config.ValidCategory(cfg.Category) {
				return fmt.Errorf("invalid check category %q, expected one of %s", cfg.Category, strings.Join(config.Categories, ", "))
			}

			dialect, err := resolveDialect(dialectName, cfg.WarehouseDSN, fc.Settings)
			if err != nil {
				return err
			}

			all, err := checks.FromFile(fc)
			if err != nil {
				return err
			}
			return printQueries(cmd.OutOrStdout(), path, dialect, all.Select(cfg))
		},
	}

	cmd.Flags().StringVar(&cfg.ChecksPath, "config", "", "Checks file (default: tablespectre.yaml in the working or home directory)")
	cmd.Flags().StringVar(&cfg.Category, "checks", config.CategoryAll, "Check category to render")
	cmd.Flags().StringVar(&dialectName, "dialect", "", "SQL dialect (clickhouse, postgres, mysql); default from the warehouse DSN")
	cmd.Flags().StringVar(&cfg.WarehouseDSN, "warehouse-dsn", "", "Warehouse DSN, used only to pick the dialect")

	return cmd
}

// resolveDialect prefers an explicit name, then the DSN scheme, then the
// checks file settings, and falls back to ClickHouse.
func resolveDialect(name, dsn string, settings *config.FileSettings) (checks.Dialect, error) {
	if strings.TrimSpace(name) != "" {
		return checks.ParseDialect(name)
	}
	if strings.TrimSpace(dsn) == "" && settings != nil {
		dsn = settings.WarehouseDSN
	}
	if strings.TrimSpace(dsn) != "" {
		return warehouse.DialectFromDSN(dsn)
	}
	return checks.ClickHouse, nil
}

func printQueries(out io.Writer, path string, dialect checks.Dialect, set checks.Set) error {
	for _, def := range set.All() {
		query, err := checks.Render(dialect, def)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(out, "-- %s: %s\n%s;\n\n", def.Kind(), def.Name(), query); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(out, "%s: %d checks OK (%s)\n", path, set.Len(), dialect)
	return err
}
