// Package gormdb opens GORM connections from database URLs.
package gormdb

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	sqliteDialector "github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Driver labels reported by Open.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

var (
	// ErrUnsupportedDialect indicates that no GORM dialector is available for the scheme.
	ErrUnsupportedDialect = errors.New("gormdb.unsupported_dialect")
	// ErrEmptyDatabaseURL indicates a blank database URL.
	ErrEmptyDatabaseURL = errors.New("gormdb.empty_database_url")

	errSQLiteEmptyPath     = errors.New("gormdb.sqlite.empty_path")
	errSQLiteInvalidURL    = errors.New("gormdb.sqlite.invalid_url")
	errUnsupportedNoScheme = errors.New("gormdb.unsupported_no_scheme")
)

// Open connects to databaseURL, migrates models, and returns the handle with its driver label.
// Supported schemes: postgres, postgresql, sqlite, sqlite3.
func Open(ctx context.Context, databaseURL string, models ...any) (*gorm.DB, string, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, "", fmt.Errorf("gormdb.open: %w", ErrEmptyDatabaseURL)
	}
	dialector, driverLabel, err := ResolveDialector(databaseURL)
	if err != nil {
		return nil, "", err
	}
	gormDB, openErr := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if openErr != nil {
		return nil, "", fmt.Errorf("gormdb.open.%s: %w", driverLabel, openErr)
	}
	if len(models) > 0 {
		if migrateErr := gormDB.WithContext(ctx).AutoMigrate(models...); migrateErr != nil {
			return nil, "", fmt.Errorf("gormdb.migrate.%s: %w", driverLabel, migrateErr)
		}
	}
	return gormDB, driverLabel, nil
}

// ResolveDialector maps a database URL onto a GORM dialector.
func ResolveDialector(databaseURL string) (gorm.Dialector, string, error) {
	parsed, err := url.Parse(databaseURL)
	if err != nil {
		return nil, "", fmt.Errorf("gormdb.parse_url: %w", err)
	}
	if parsed.Scheme == "" {
		return nil, "", fmt.Errorf("gormdb.dialect: %w", errUnsupportedNoScheme)
	}
	switch strings.ToLower(parsed.Scheme) {
	case "postgres", "postgresql":
		return postgres.Open(databaseURL), DriverPostgres, nil
	case "sqlite", "sqlite3":
		dsn, dsnErr := buildSQLiteDSN(parsed)
		if dsnErr != nil {
			return nil, "", fmt.Errorf("gormdb.sqlite: %w", dsnErr)
		}
		return sqliteDialector.Open(dsn), DriverSQLite, nil
	default:
		return nil, "", fmt.Errorf("gormdb.dialect.%s: %w", strings.ToLower(parsed.Scheme), ErrUnsupportedDialect)
	}
}

func buildSQLiteDSN(parsed *url.URL) (string, error) {
	if parsed == nil {
		return "", errSQLiteInvalidURL
	}
	var builder strings.Builder
	switch {
	case parsed.Opaque != "":
		builder.WriteString(parsed.Opaque)
	case parsed.Host != "":
		builder.WriteString(parsed.Host)
		if parsed.Path != "" {
			if !strings.HasPrefix(parsed.Path, "/") {
				builder.WriteString("/")
			}
			builder.WriteString(parsed.Path)
		}
	default:
		builder.WriteString(parsed.Path)
	}
	if builder.Len() == 0 {
		return "", errSQLiteEmptyPath
	}
	if parsed.RawQuery != "" {
		builder.WriteString("?")
		builder.WriteString(parsed.RawQuery)
	}
	return builder.String(), nil
}
