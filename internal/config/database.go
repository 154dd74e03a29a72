package config

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Database describes the store behind the contract backend.
type Database struct {
	Driver   string `envconfig:"DB_DRIVER" default:"sqlite"`
	DSN      string `envconfig:"DB_DSN"`
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     string `envconfig:"DB_PORT" default:"5432"`
	User     string `envconfig:"DB_USER" default:"postgres"`
	Password string `envconfig:"DB_PASSWORD" default:"password"`
	Name     string `envconfig:"DB_NAME" default:"delegations"`
	SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	TimeZone string `envconfig:"DB_TIMEZONE" default:"UTC"`
}

// DataSource returns the DSN for the configured driver. An empty sqlite
// DSN gets a private in-memory database.
func (d Database) DataSource() string {
	if d.DSN != "" {
		return d.DSN
	}
	if d.Driver == "postgres" {
		return fmt.Sprintf(
			"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
			d.Host, d.User, d.Password, d.Name, d.Port, d.SSLMode, d.TimeZone,
		)
	}
	return fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
}

// OpenDB connects and migrates the given models.
func OpenDB(d Database, logger gormlogger.Interface, migrate ...any) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch d.Driver {
	case "postgres":
		dialector = postgres.Open(d.DataSource())
	case "sqlite", "":
		dialector = sqlite.Open(d.DataSource())
	default:
		return nil, fmt.Errorf("unsupported database driver %q", d.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if d.Driver != "postgres" {
		// sqlite serializes writers anyway; one connection keeps the
		// in-memory database alive and avoids SQLITE_BUSY.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	if len(migrate) > 0 {
		if err := db.AutoMigrate(migrate...); err != nil {
			return nil, fmt.Errorf("auto-migration failed: %w", err)
		}
	}
	return db, nil
}
