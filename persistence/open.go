package persistence

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"pkt.systems/pslog"

	tenantAuth "github.com/MrEthical07/tenantAuth"
	"github.com/MrEthical07/tenantAuth/tenancy"
)

// Open connects to Postgres with the pool limits from cfg and installs the
// tenant scope callbacks for enforcer.
func Open(cfg tenantAuth.DatabaseConfig, enforcer *tenancy.Enforcer, logger pslog.Logger) (*gorm.DB, error) {
	if cfg.DSN == "" {
		return nil, errors.New("database dsn is empty")
	}
	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger: NewGormLogger(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if err := RegisterTenantScope(db, enforcer); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// Migrate creates or updates the users table. It runs under [SystemContext].
func Migrate(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(SystemContext(ctx)).AutoMigrate(&User{}); err != nil {
		return fmt.Errorf("migrate users: %w", err)
	}
	return nil
}
