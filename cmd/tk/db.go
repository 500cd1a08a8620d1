package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/timekeeper/internal/config"
	"github.com/zulandar/timekeeper/internal/db"
	"github.com/zulandar/timekeeper/internal/ledger"
	"github.com/zulandar/timekeeper/internal/tracker"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
	}

	cmd.AddCommand(newDBInitCmd())
	return cmd
}

func newDBInitCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the Timekeeper database",
		Long:  "Migrates all tables and seeds departments and categories from the config file.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBInit(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Timekeeper config file")
	return cmd
}

func runDBInit(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Connected to %s database\n", cfg.Database.Driver)

	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	fmt.Fprintf(out, "Migrated %d tables\n", len(db.AllModels()))

	if err := db.SeedDepartments(gormDB, cfg.Departments); err != nil {
		return err
	}
	fmt.Fprintf(out, "Seeded %d departments:", len(cfg.Departments))
	for _, d := range cfg.Departments {
		fmt.Fprintf(out, " %s", d.Name)
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "\nTimekeeper database initialized successfully.")
	return nil
}

func connectFromConfig(configPath string) (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to %s database: %w", cfg.Database.Driver, err)
	}

	return cfg, gormDB, nil
}

// trackerFromConfig builds the service layer for one-shot commands. Logging
// is discarded unless the command passes its own logger.
func trackerFromConfig(configPath string, log *zap.Logger) (*config.Config, *tracker.Service, error) {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	return cfg, tracker.New(tracker.Opts{DB: gormDB, Config: cfg, Logger: log}), nil
}

// parseRef resolves a --ref flag; empty means today.
func parseRef(s string) (time.Time, error) {
	if s == "" {
		return time.Now(), nil
	}
	return ledger.ParseDate(s)
}
