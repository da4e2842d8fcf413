package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/go-sql-driver/mysql"  // mysql driver
	_ "github.com/jackc/pgx/v5/stdlib" // postgres driver registered as "pgx"
	_ "modernc.org/sqlite"             // pure go sqlite driver

	"github.com/iliyamo/hostel-bed-allocation/internal/config"
)

// DB wraps a connection pool together with the SQL dialect it speaks so
// repositories can write one query with ? placeholders for every backend.
type DB struct {
	*sql.DB
	Dialect Dialect
}

// Open connects to the configured database and verifies the connection.
func Open(cfg config.DBConfig) (*DB, error) {
	switch Dialect(cfg.Driver) {
	case MySQL:
		return openMySQL(cfg)
	case Postgres:
		return openPostgres(cfg)
	case SQLite:
		return OpenSQLite(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

func openMySQL(cfg config.DBConfig) (*DB, error) {
	auth := cfg.User
	if cfg.Pass != "" {
		auth = fmt.Sprintf("%s:%s", cfg.User, cfg.Pass)
	}
	port := cfg.Port
	if port == "" {
		port = "3306"
	}
	// parseTime=true -> DATETIME -> time.Time | loc=UTC keeps times consistent
	dsn := fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
		auth, cfg.Host, port, cfg.Name)
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)
	return ping(&DB{DB: db, Dialect: MySQL})
}

func openPostgres(cfg config.DBConfig) (*DB, error) {
	dsn := cfg.DSN
	if dsn == "" {
		port := cfg.Port
		if port == "" {
			port = "5432"
		}
		dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", cfg.User, cfg.Pass, cfg.Host, port, cfg.Name)
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)
	return ping(&DB{DB: db, Dialect: Postgres})
}

// OpenSQLite opens (creating if needed) a sqlite database file.  The pool is
// limited to one connection: sqlite serialises writers anyway and a single
// connection turns lock contention into pool waits instead of SQLITE_BUSY.
func OpenSQLite(path string) (*DB, error) {
	if path == "" {
		path = "hostel.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	return ping(&DB{DB: db, Dialect: SQLite})
}

func ping(db *DB) (*DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
