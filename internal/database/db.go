// Package database opens the relational store behind the credential and
// pipeline repositories.  Three drivers are supported: MySQL (the default
// deployment), PostgreSQL and SQLite (local development and tests).
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// DBTX is the subset of database/sql used by the repositories.  *sql.DB,
// *sql.Conn and *sql.Tx all satisfy it.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// DB is a connection pool together with the dialect it speaks.
type DB struct {
	*sql.DB
	Driver Driver
}

// Source describes where the store lives.  URL wins when set; otherwise the
// MySQL parts are used.
type Source struct {
	URL  string
	User string
	Pass string
	Host string
	Port string
	Name string
}

// ParseSource resolves a Source into a driver and a DSN understood by that
// driver.
func ParseSource(src Source) (Driver, string, error) {
	raw := strings.TrimSpace(src.URL)
	if raw == "" {
		if src.Host == "" || src.Name == "" {
			return "", "", errors.New("database: no DATABASE_URL and incomplete DB_* settings")
		}
		return MySQL, mysqlDSN(src.User, src.Pass, net.JoinHostPort(src.Host, src.Port), src.Name, nil), nil
	}

	switch {
	case strings.HasPrefix(raw, "postgres://"), strings.HasPrefix(raw, "postgresql://"):
		return Postgres, raw, nil
	case strings.HasPrefix(raw, "mysql://"):
		u, err := url.Parse(raw)
		if err != nil {
			return "", "", fmt.Errorf("database: parse mysql url: %w", err)
		}
		pass, _ := u.User.Password()
		host := u.Host
		if u.Port() == "" {
			host = net.JoinHostPort(u.Hostname(), "3306")
		}
		return MySQL, mysqlDSN(u.User.Username(), pass, host, strings.TrimPrefix(u.Path, "/"), u.Query()), nil
	case strings.HasPrefix(raw, "sqlite:"):
		return SQLite, sqliteDSN(strings.TrimPrefix(strings.TrimPrefix(raw, "sqlite:"), "//")), nil
	}
	return "", "", fmt.Errorf("database: unsupported url scheme in %q", redact(raw))
}

// mysqlDSN builds a go-sql-driver DSN.  parseTime=true maps DATETIME to
// time.Time, loc=UTC keeps times consistent and clientFoundRows makes
// RowsAffected count matched rather than changed rows.
func mysqlDSN(user, pass, addr, name string, params url.Values) string {
	cfg := mysql.NewConfig()
	cfg.User = user
	cfg.Passwd = pass
	cfg.Net = "tcp"
	cfg.Addr = addr
	cfg.DBName = name
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.ClientFoundRows = true
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	for k, v := range params {
		if len(v) > 0 {
			cfg.Params[k] = v[0]
		}
	}
	return cfg.FormatDSN()
}

// sqlitePragmas apply to every pooled connection.  Each request holds its
// own connection, so writers must wait on the lock instead of failing
// with SQLITE_BUSY, and WAL lets readers proceed during a write.
var sqlitePragmas = []struct{ name, value string }{
	{"foreign_keys", "1"},
	{"busy_timeout", "5000"},
	{"journal_mode", "WAL"},
}

// sqliteDSN appends the pragmas the path does not already set.
func sqliteDSN(path string) string {
	var b strings.Builder
	b.WriteString(path)
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	for _, p := range sqlitePragmas {
		if strings.Contains(path, "_pragma="+p.name) {
			continue
		}
		fmt.Fprintf(&b, "%s_pragma=%s(%s)", sep, p.name, p.value)
		sep = "&"
	}
	return b.String()
}

// Open connects to the store described by src and verifies the connection.
func Open(ctx context.Context, src Source) (*DB, error) {
	driver, dsn, err := ParseSource(src)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver.sqlName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("database: open %s: %w", driver, err)
	}

	// Pool settings
	switch driver {
	case SQLite:
		db.SetMaxOpenConns(4)
		db.SetMaxIdleConns(4)
	default:
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("database: ping %s: %w", driver, err)
	}
	return &DB{DB: db, Driver: driver}, nil
}

// redact hides the password portion of a URL for error messages.
func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	return u.Redacted()
}
