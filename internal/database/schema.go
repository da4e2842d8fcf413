package database

import (
	"context"
	"fmt"
	"strings"
)

// Column types that differ between dialects.  {{id}} is the auto increment
// primary key, {{ts}} a timestamp column.
var typeMap = map[Dialect]map[string]string{
	MySQL:    {"{{id}}": "BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY", "{{ts}}": "DATETIME", "{{bool}}": "TINYINT(1)", "{{text}}": "TEXT"},
	Postgres: {"{{id}}": "BIGSERIAL PRIMARY KEY", "{{ts}}": "TIMESTAMP", "{{bool}}": "BOOLEAN", "{{text}}": "TEXT"},
	SQLite:   {"{{id}}": "INTEGER PRIMARY KEY AUTOINCREMENT", "{{ts}}": "DATETIME", "{{bool}}": "BOOLEAN", "{{text}}": "TEXT"},
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS rooms (
		id {{id}},
		room_number VARCHAR(16) NOT NULL UNIQUE,
		total_beds INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS beds (
		id VARCHAR(24) NOT NULL PRIMARY KEY,
		room_id BIGINT NOT NULL,
		slot VARCHAR(4) NOT NULL,
		status VARCHAR(16) NOT NULL DEFAULT 'free',
		updated_at {{ts}} NOT NULL,
		FOREIGN KEY (room_id) REFERENCES rooms(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS bookings (
		id {{id}},
		student_name VARCHAR(120) NOT NULL,
		father_name VARCHAR(120) NOT NULL DEFAULT '',
		cnic VARCHAR(32) NOT NULL,
		contact VARCHAR(32) NOT NULL,
		email VARCHAR(191) NOT NULL,
		profession VARCHAR(120) NOT NULL DEFAULT '',
		institute_name VARCHAR(191) NOT NULL DEFAULT '',
		emergency_contact_name VARCHAR(120) NOT NULL DEFAULT '',
		emergency_contact VARCHAR(32) NOT NULL DEFAULT '',
		address {{text}},
		check_in_date VARCHAR(10) NOT NULL DEFAULT '',
		has_vehicle {{bool}} NOT NULL DEFAULT FALSE,
		vehicle_type VARCHAR(32) NOT NULL DEFAULT '',
		vehicle_number VARCHAR(32) NOT NULL DEFAULT '',
		room_number VARCHAR(16) NOT NULL,
		bed_id VARCHAR(24) NOT NULL,
		photo_path VARCHAR(255) NOT NULL DEFAULT '',
		cnic_front_path VARCHAR(255) NOT NULL DEFAULT '',
		cnic_back_path VARCHAR(255) NOT NULL DEFAULT '',
		proof_path VARCHAR(255) NOT NULL DEFAULT '',
		voucher_path VARCHAR(255) NOT NULL DEFAULT '',
		signature_path VARCHAR(255) NOT NULL DEFAULT '',
		status VARCHAR(16) NOT NULL DEFAULT 'pending',
		prev_status VARCHAR(16) NOT NULL DEFAULT '',
		deleted_at {{ts}} NULL,
		created_at {{ts}} NOT NULL,
		updated_at {{ts}} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id {{id}},
		email VARCHAR(191) NOT NULL UNIQUE,
		password_hash VARCHAR(255) NOT NULL,
		role VARCHAR(16) NOT NULL,
		created_at {{ts}} NOT NULL
	)`,
}

var indexes = []string{
	`CREATE INDEX idx_beds_room ON beds (room_id)`,
	`CREATE INDEX idx_bookings_email ON bookings (email)`,
	`CREATE INDEX idx_bookings_status ON bookings (status)`,
	`CREATE INDEX idx_bookings_bed ON bookings (bed_id)`,
}

// Migrate creates the tables the service needs.  It is safe to call on every
// start: tables use IF NOT EXISTS and duplicate index errors are ignored.
func Migrate(ctx context.Context, db *DB) error {
	types, ok := typeMap[db.Dialect]
	if !ok {
		return fmt.Errorf("migrate: unsupported dialect %q", db.Dialect)
	}
	for _, stmt := range schema {
		for k, v := range types {
			stmt = strings.ReplaceAll(stmt, k, v)
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	for _, stmt := range indexes {
		if _, err := db.ExecContext(ctx, stmt); err != nil && !isDuplicateIndex(err) {
			return fmt.Errorf("migrate index: %w", err)
		}
	}
	return nil
}

func isDuplicateIndex(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "already exists") || strings.Contains(msg, "duplicate key name")
}
