package store

import (
	"fmt"

	"github.com/thisloadme/one-ecommerce/pkg/config"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// PgOpener opens tenant stores as separate PostgreSQL databases on the
// same server as the shared store. It keeps one maintenance connection
// (to the admin database) for CREATE/DROP DATABASE statements.
type PgOpener struct {
	cfg   *config.DBConfig
	admin *gorm.DB
}

func NewPgOpener(cfg *config.DBConfig) (*PgOpener, error) {
	admin, err := openPg(cfg, cfg.AdminDBName)
	if err != nil {
		return nil, fmt.Errorf("connect maintenance database: %w", err)
	}
	return &PgOpener{cfg: cfg, admin: admin}, nil
}

func openPg(cfg *config.DBConfig, dbName string) (*gorm.DB, error) {
	pgConfig := postgres.Config{
		DSN:                  cfg.DSNFor(dbName),
		PreferSimpleProtocol: true, // Disables implicit prepared statement usage
	}

	db, err := gorm.Open(postgres.New(pgConfig), &gorm.Config{
		Logger: logger.Default.LogMode(cfg.LogLevel),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return db, nil
}

func (o *PgOpener) Open(storeID string) (*gorm.DB, error) {
	return openPg(o.cfg, storeID)
}

func (o *PgOpener) Exists(storeID string) (bool, error) {
	var one int
	result := o.admin.Raw("SELECT 1 FROM pg_database WHERE datname = ?", storeID).Scan(&one)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// Provision creates the physical database when it does not already
// exist. Re-provisioning an existing store is a no-op so half-finished
// tenant creation can be retried.
func (o *PgOpener) Provision(storeID string) error {
	exists, err := o.Exists(storeID)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	// CREATE DATABASE cannot be parameterized; store IDs are slugs
	// generated by the registry, quoted here regardless.
	return o.admin.Exec(fmt.Sprintf(`CREATE DATABASE %q`, storeID)).Error
}

// Drop removes the physical database. Dropping an absent store is a
// no-op, not an error.
func (o *PgOpener) Drop(storeID string) error {
	exists, err := o.Exists(storeID)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}
	return o.admin.Exec(fmt.Sprintf(`DROP DATABASE %q`, storeID)).Error
}
