package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/billbox/internal/classify"
	"github.com/cleared-dev/billbox/internal/config"
	"github.com/cleared-dev/billbox/internal/model"
	"github.com/cleared-dev/billbox/internal/store"
)

func newInitCommand(opts *rootOptions) *cobra.Command {
	var role, driver, dsn string

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new billbox project",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := opts.dir
			if len(args) > 0 {
				dir = args[0]
			}

			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			cfg := config.Default(opts.user)
			cfg.User.Role = model.Role(role)
			cfg.Storage.Driver = driver
			cfg.Storage.DSN = dsn
			if driver == store.DriverSQLite && dsn == "" {
				cfg.Storage.DSN = filepath.Join("data", "billbox.db")
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			if err := runInit(absDir, cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Initialized billbox project at %s (user %s, %s)\n", absDir, cfg.User.ID, cfg.User.Role)
			return nil
		},
	}

	cmd.Flags().StringVar(&role, "role", string(model.RoleTenant), "tenant or landlord")
	cmd.Flags().StringVar(&driver, "driver", store.DriverCSV, "storage driver: csv, sqlite or postgres")
	cmd.Flags().StringVar(&dsn, "dsn", "", "database connection string for sqlite or postgres")

	return cmd
}

func runInit(dir string, cfg *config.Config) error {
	configPath := filepath.Join(dir, config.FileName)
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("%s already exists in %s", config.FileName, dir)
	}

	// Create directory structure.
	for _, d := range []string{"rules", cfg.Storage.Dir} {
		if err := os.MkdirAll(filepath.Join(dir, d), 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", d, err)
		}
	}

	if err := config.Save(configPath, cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	// Write the built-in category rules so they can be edited.
	if err := classify.SaveRules(filepath.Join(dir, cfg.Ledger.RulesFile), classify.DefaultRules()); err != nil {
		return fmt.Errorf("writing rules: %w", err)
	}

	// Bill data and secrets stay out of version control.
	gitignore := cfg.Storage.Dir + "/\n.env\n"
	if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte(gitignore), 0o644); err != nil {
		return fmt.Errorf("writing .gitignore: %w", err)
	}

	return nil
}
