package database

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
)

// Dialect names a supported SQL backend.
type Dialect string

const (
	MySQL    Dialect = "mysql"
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// Execer is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Rebind rewrites ? placeholders into the dialect's native form.  Only
// postgres needs rewriting ($1, $2, ...).  Queries never contain literal
// question marks so a plain scan is enough.
func (d Dialect) Rebind(q string) string {
	if d != Postgres {
		return q
	}
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for i := 0; i < len(q); i++ {
		if q[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(q[i])
	}
	return b.String()
}

// Rebind is shorthand for db.Dialect.Rebind.
func (db *DB) Rebind(q string) string { return db.Dialect.Rebind(q) }

// Placeholders returns n comma separated ? placeholders.
func Placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// InsertID runs an INSERT and returns the generated id.  Postgres does not
// implement LastInsertId so the statement is extended with RETURNING id.
func (d Dialect) InsertID(ctx context.Context, ex Execer, q string, args ...any) (uint64, error) {
	if d == Postgres {
		var id int64
		if err := ex.QueryRowContext(ctx, d.Rebind(q)+" RETURNING id", args...).Scan(&id); err != nil {
			return 0, err
		}
		return uint64(id), nil
	}
	res, err := ex.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}
