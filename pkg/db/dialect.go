package db

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/invoicer/internal/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Dialect picks the gorm dialector for cfg.DBType. Postgres is the production target;
// sqlite serves single-user local installs.
func Dialect(cfg config.Config) (gorm.Dialector, error) {
	dsn, err := DSN(cfg)
	if err != nil {
		return nil, err
	}
	switch cfg.DBType {
	case "postgres":
		return postgres.Open(dsn), nil
	case "sqlite":
		return sqlite.Open(dsn), nil
	case "mysql":
		return mysql.Open(dsn), nil
	}
	return nil, fmt.Errorf("unsupported database type %q", cfg.DBType)
}

// DSN renders the connection string for cfg.DBType.
func DSN(cfg config.Config) (string, error) {
	switch cfg.DBType {
	case "postgres":
		sslMode := cfg.DBSSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
			cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort, sslMode,
		), nil
	case "sqlite":
		return sqliteDSN(cfg.DBName), nil
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName,
		), nil
	}
	return "", fmt.Errorf("unsupported database type %q", cfg.DBType)
}

// sqliteDSN turns a bare name into a file DSN with foreign keys on. Names that already
// look like a DSN are passed through.
func sqliteDSN(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "invoicer"
	}
	if strings.HasPrefix(name, "file:") || name == ":memory:" {
		return name
	}
	if !strings.HasSuffix(name, ".db") {
		name += ".db"
	}
	return "file:" + name + "?" + url.Values{"_pragma": {"foreign_keys(1)"}}.Encode()
}
