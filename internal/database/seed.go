package database

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/iliyamo/hostel-bed-allocation/internal/model"
)

// Seed creates rooms numbered 1..rooms with bedsPerRoom free beds each.  It
// does nothing when any room already exists, so the fixed layout is only
// written once.  Returns the number of rooms created.
func Seed(ctx context.Context, db *DB, rooms, bedsPerRoom int) (int, error) {
	if rooms <= 0 || bedsPerRoom <= 0 || bedsPerRoom > 26 {
		return 0, fmt.Errorf("seed: invalid layout %d rooms x %d beds", rooms, bedsPerRoom)
	}
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM rooms`).Scan(&n); err != nil {
		return 0, fmt.Errorf("seed: count rooms: %w", err)
	}
	if n > 0 {
		return 0, nil
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	now := time.Now().UTC()
	for i := 1; i <= rooms; i++ {
		number := strconv.Itoa(i)
		roomID, err := db.Dialect.InsertID(ctx, tx,
			db.Rebind(`INSERT INTO rooms (room_number, total_beds) VALUES (?, ?)`), number, bedsPerRoom)
		if err != nil {
			return 0, fmt.Errorf("seed: room %s: %w", number, err)
		}
		q := db.Rebind(`INSERT INTO beds (id, room_id, slot, status, updated_at) VALUES (?, ?, ?, ?, ?)`)
		for b := 0; b < bedsPerRoom; b++ {
			slot := model.SlotLabel(b)
			if _, err := tx.ExecContext(ctx, q, model.BedID(number, slot), roomID, slot, string(model.BedFree), now); err != nil {
				return 0, fmt.Errorf("seed: bed %s: %w", model.BedID(number, slot), err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	committed = true
	return rooms, nil
}
