package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/iliyamo/hostel-bed-allocation/internal/database"
	"github.com/iliyamo/hostel-bed-allocation/internal/model"
)

// BedRepo provides access to the rooms and beds tables.  Every status change
// is a conditional write executed inside a transaction so two callers can
// never both observe a bed as free and claim it.
type BedRepo struct {
	db *database.DB
}

// NewBedRepo returns a BedRepo bound to db.
func NewBedRepo(db *database.DB) *BedRepo { return &BedRepo{db: db} }

// ListRooms returns every room with its derived free-bed count and status.
func (r *BedRepo) ListRooms(ctx context.Context) ([]model.RoomSummary, error) {
	rows, err := r.db.QueryContext(ctx, r.db.Rebind(`
		SELECT r.id, r.room_number, r.total_beds,
		       COALESCE(SUM(CASE WHEN b.status = ? THEN 1 ELSE 0 END), 0)
		FROM rooms r
		LEFT JOIN beds b ON b.room_id = r.id
		GROUP BY r.id, r.room_number, r.total_beds`), string(model.BedFree))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.RoomSummary{}
	for rows.Next() {
		var s model.RoomSummary
		if err := rows.Scan(&s.RoomID, &s.RoomNumber, &s.TotalBeds, &s.FreeBeds); err != nil {
			return nil, err
		}
		s.Status = model.DeriveRoomStatus(s.FreeBeds, s.TotalBeds)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sortRooms(out)
	return out, nil
}

// ListBeds returns the beds of one room ordered by slot.  ErrNotFound is
// returned when the room does not exist.
func (r *BedRepo) ListBeds(ctx context.Context, roomID uint64) ([]model.Bed, error) {
	var number string
	err := r.db.QueryRowContext(ctx, r.db.Rebind(`SELECT room_number FROM rooms WHERE id = ?`), roomID).Scan(&number)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, r.db.Rebind(
		`SELECT id, room_id, slot, status FROM beds WHERE room_id = ? ORDER BY slot`), roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Bed{}
	for rows.Next() {
		b := model.Bed{RoomNumber: number}
		if err := rows.Scan(&b.ID, &b.RoomID, &b.Slot, &b.Status); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ListRoomsDetailed returns every room with its beds nested, in one query.
func (r *BedRepo) ListRoomsDetailed(ctx context.Context) ([]model.RoomDetail, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT r.id, r.room_number, r.total_beds, b.id, b.slot, b.status
		FROM rooms r
		JOIN beds b ON b.room_id = r.id
		ORDER BY r.id, b.slot`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.RoomDetail
	idx := map[uint64]int{}
	for rows.Next() {
		var (
			roomID uint64
			number string
			total  int
			bed    model.Bed
		)
		if err := rows.Scan(&roomID, &number, &total, &bed.ID, &bed.Slot, &bed.Status); err != nil {
			return nil, err
		}
		i, ok := idx[roomID]
		if !ok {
			out = append(out, model.RoomDetail{RoomSummary: model.RoomSummary{RoomID: roomID, RoomNumber: number, TotalBeds: total}})
			i = len(out) - 1
			idx[roomID] = i
		}
		bed.RoomID, bed.RoomNumber = roomID, number
		if bed.Status == model.BedFree {
			out[i].FreeBeds++
		}
		out[i].Beds = append(out[i].Beds, bed)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Status = model.DeriveRoomStatus(out[i].FreeBeds, out[i].TotalBeds)
	}
	sort.SliceStable(out, func(i, j int) bool { return roomLess(out[i].RoomNumber, out[j].RoomNumber) })
	return out, nil
}

// GetBed fetches one bed by id.
func (r *BedRepo) GetBed(ctx context.Context, bedID string) (model.Bed, error) {
	var b model.Bed
	err := r.db.QueryRowContext(ctx, r.db.Rebind(`
		SELECT b.id, b.room_id, r.room_number, b.slot, b.status
		FROM beds b JOIN rooms r ON r.id = b.room_id
		WHERE b.id = ?`), bedID).Scan(&b.ID, &b.RoomID, &b.RoomNumber, &b.Slot, &b.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Bed{}, ErrNotFound
	}
	return b, err
}

// SetBedStatus writes status unconditionally.
func (r *BedRepo) SetBedStatus(ctx context.Context, bedID string, status model.BedStatus) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE beds SET status = ?, updated_at = ? WHERE id = ?`),
		string(status), time.Now().UTC(), bedID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// MySQL reports zero affected rows when the value is unchanged, so
		// distinguish that from a missing bed.
		if _, err := r.GetBed(ctx, bedID); err != nil {
			return err
		}
	}
	return nil
}

// SwapBedStatus sets the bed to `to` only if its current status is one of
// `from`, and returns the status it held before.  ErrConflict is returned,
// together with the current status, when the precondition fails.
func (r *BedRepo) SwapBedStatus(ctx context.Context, bedID string, from []model.BedStatus, to model.BedStatus) (model.BedStatus, error) {
	var prev model.BedStatus
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		prev, err = r.lockStatusTx(ctx, tx, bedID)
		if err != nil {
			return err
		}
		if !containsStatus(from, prev) {
			return ErrConflict
		}
		if prev == to {
			return nil
		}
		return r.casTx(ctx, tx, bedID, prev, to)
	})
	return prev, err
}

// TransferBed moves the claim held on oldID onto newID and returns the
// status that moved.  oldID must be claimed and newID free, otherwise
// ErrConflict is returned.  Nothing changes when the transaction fails.
func (r *BedRepo) TransferBed(ctx context.Context, oldID, newID string) (model.BedStatus, error) {
	if oldID == newID {
		b, err := r.GetBed(ctx, oldID)
		return b.Status, err
	}
	var claim model.BedStatus
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		// lock rows in id order so opposing transfers cannot deadlock
		first, second := oldID, newID
		if second < first {
			first, second = second, first
		}
		st := map[string]model.BedStatus{}
		for _, id := range []string{first, second} {
			s, err := r.lockStatusTx(ctx, tx, id)
			if err != nil {
				return err
			}
			st[id] = s
		}
		if st[oldID] == model.BedFree || st[newID] != model.BedFree {
			return ErrConflict
		}
		claim = st[oldID]
		if err := r.casTx(ctx, tx, newID, model.BedFree, claim); err != nil {
			return err
		}
		return r.casTx(ctx, tx, oldID, claim, model.BedFree)
	})
	if err != nil {
		return "", err
	}
	return claim, nil
}

func (r *BedRepo) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// lockStatusTx reads the bed status, taking a row lock where the dialect
// supports it.  sqlite runs on a single connection, so the transaction
// itself already serialises writers.
func (r *BedRepo) lockStatusTx(ctx context.Context, tx *sql.Tx, bedID string) (model.BedStatus, error) {
	q := `SELECT status FROM beds WHERE id = ?`
	if r.db.Dialect != database.SQLite {
		q += ` FOR UPDATE`
	}
	var s model.BedStatus
	err := tx.QueryRowContext(ctx, r.db.Rebind(q), bedID).Scan(&s)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("bed %s: %w", bedID, ErrNotFound)
	}
	return s, err
}

// casTx is the check-and-set primitive: the row changes only if it still
// holds `from`.
func (r *BedRepo) casTx(ctx context.Context, tx *sql.Tx, bedID string, from, to model.BedStatus) error {
	res, err := tx.ExecContext(ctx, r.db.Rebind(`UPDATE beds SET status = ?, updated_at = ? WHERE id = ? AND status = ?`),
		string(to), time.Now().UTC(), bedID, string(from))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return ErrConflict
	}
	return nil
}

func containsStatus(set []model.BedStatus, s model.BedStatus) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}
