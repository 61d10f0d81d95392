package main

import (
	"errors"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MrEthical07/tenantAuth/internal/logging"
	"github.com/MrEthical07/tenantAuth/persistence"
	"github.com/MrEthical07/tenantAuth/tenancy"
)

func newMigrateCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the users table",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Migrations never sign tokens.
			cfg, err := root.loadConfig(func(v *viper.Viper) {
				if v.GetString("token.secret") == "" {
					v.Set("token.secret", "unused-by-migrate")
				}
			})
			if err != nil {
				return err
			}
			if cfg.Database.DSN == "" {
				return errors.New("database.dsn is required")
			}
			logger := root.leveledLogger(cfg)
			enforcer := tenancy.NewEnforcer(cfg.MultiTenant.TenantColumn, cfg.MultiTenant.ExemptTables...)
			db, err := persistence.Open(cfg.Database, enforcer, logger)
			if err != nil {
				return err
			}
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			defer sqlDB.Close()

			if err := persistence.Migrate(cmd.Context(), db); err != nil {
				return err
			}
			logging.WithSubsystem(logger, "cli", "migrate").Info("cli.migrate.done")
			return nil
		},
	}
}
