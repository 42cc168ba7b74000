package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aq2208/gorder-inventory/configs"
	"github.com/aq2208/gorder-inventory/internal/adapter/repo/migrations"
	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"
)

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}

// Open connects to the configured store, pings it and, when enabled, applies
// the embedded migrations for that driver.
func Open(ctx context.Context, c configs.Config) (*sql.DB, error) {
	driver := c.Database.Driver
	db, err := sql.Open(driver, c.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	switch driver {
	case configs.DriverSQLite:
		// SQLite allows a single writer.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	default:
		if c.Database.MaxOpenConns > 0 {
			db.SetMaxOpenConns(c.Database.MaxOpenConns)
		}
		if c.Database.MaxIdleConns > 0 {
			db.SetMaxIdleConns(c.Database.MaxIdleConns)
		}
	}
	if c.Database.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(c.Database.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	if c.Database.Migrate {
		if err := Migrate(ctx, db, migrations.FS, driver); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}
	return db, nil
}

// SQLiteDSN builds a modernc DSN for a database file with foreign keys on.
func SQLiteDSN(path string) string {
	return path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}
