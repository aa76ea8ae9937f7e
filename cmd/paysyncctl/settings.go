package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"paysync/internal/bootstrap"
	"paysync/internal/config"
	"paysync/internal/repository"
)

func openDatabase() (*gorm.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return config.NewDatabase(&cfg.Database)
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Migrate the schema and seed default provider settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDatabase()
			if err != nil {
				return err
			}
			if err := bootstrap.MigrateAndSeed(db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Schema migration and default seed completed")
			return nil
		},
	}
}

func settingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Inspect or change provider settings",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show [provider]",
		Short: "Print a provider's settings with secrets masked",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDatabase()
			if err != nil {
				return err
			}
			values, err := repository.NewSettingRepository(db).ProviderSettings(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printSettings(cmd.OutOrStdout(), values)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set [provider] [name] [value]",
		Short: "Set one provider setting",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDatabase()
			if err != nil {
				return err
			}
			return repository.NewSettingRepository(db).SetProviderSetting(cmd.Context(), args[0], args[1], args[2])
		},
	})

	return cmd
}

func printSettings(w io.Writer, values map[string]string) {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "%-28s %s\n", name, maskSecret(name, values[name]))
	}
}

// maskSecret hides all but the last four characters of secret keys.
func maskSecret(name, value string) string {
	if !strings.Contains(name, "secret") || len(value) <= 4 {
		return value
	}
	return strings.Repeat("*", len(value)-4) + value[len(value)-4:]
}
