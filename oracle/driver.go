// Package oracle builds the pool.Dial used to open real Oracle sessions,
// grounded on the teacher's per-vendor database.NewDatabase constructors
// (database/mysql/database.go's DSN building and startup version query),
// adapted from mysql's driver.Config/FormatDSN pair to go-ora's BuildUrl.
package oracle

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"

	go_ora "github.com/sijms/go-ora/v2"
)

// Config is the subset of connection parameters the gateway needs to reach
// one Oracle instance. Credentials are never logged.
type Config struct {
	Host     string
	Port     int
	Service  string
	User     string
	Password string
	SSL      bool

	// FetchChunk bounds how many rows go-ora requests from the server per
	// network round trip, applied once per session at connect time.
	FetchChunk int
}

func (c Config) dsn() string {
	options := map[string]string{}
	if c.SSL {
		options["SSL"] = "true"
	}
	if c.FetchChunk > 0 {
		options["PREFETCH_ROWS"] = strconv.Itoa(c.FetchChunk)
	}
	return go_ora.BuildUrl(c.Host, c.Port, c.Service, c.User, c.Password, options)
}

// Dial returns a pool.Dial that opens one go-ora session against cfg and
// logs the server banner once, matching the teacher's queryMySQLServerInfo
// startup diagnostic.
func Dial(cfg Config, logger *slog.Logger) func(ctx context.Context) (*sql.DB, error) {
	return func(ctx context.Context) (*sql.DB, error) {
		db, err := sql.Open("oracle", cfg.dsn())
		if err != nil {
			return nil, fmt.Errorf("open oracle session: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("ping oracle session: %w", err)
		}
		logServerBanner(ctx, db, logger)
		return db, nil
	}
}

func logServerBanner(ctx context.Context, db *sql.DB, logger *slog.Logger) {
	if logger == nil {
		return
	}
	var banner string
	err := db.QueryRowContext(ctx, "SELECT banner FROM v$version WHERE ROWNUM = 1").Scan(&banner)
	if err != nil {
		logger.Debug("could not read oracle version banner", "error", err)
		return
	}
	logger.Debug("oracle session opened", "banner", banner)
}
