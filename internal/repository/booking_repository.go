package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/hostel-bed-allocation/internal/database"
	"github.com/iliyamo/hostel-bed-allocation/internal/model"
	"github.com/iliyamo/hostel-bed-allocation/internal/utils"
)

// BookingFilter narrows List results.  Zero values match everything.
type BookingFilter struct {
	Statuses      []model.BookingStatus // any of these statuses
	Email         string                // resident email, case-insensitive
	DeletedBefore time.Time             // soft-deleted before this instant
	BedID         string                // bookings referencing this bed
}

// Expect is the row state a conditional Update requires.  Both the status and
// the bed must still match what the caller read, so two writers that both
// start from the same row cannot both move it.
type Expect struct {
	Status model.BookingStatus
	BedID  string
}

// ExpectOf returns the expectation matching b as it was read.
func ExpectOf(b model.Booking) Expect {
	return Expect{Status: b.Status, BedID: b.BedID}
}

const bookingColumns = `id, student_name, father_name, cnic, contact, email, profession, institute_name,
	emergency_contact_name, emergency_contact, address, check_in_date, has_vehicle, vehicle_type, vehicle_number,
	room_number, bed_id, photo_path, cnic_front_path, cnic_back_path, proof_path, voucher_path, signature_path,
	status, prev_status, deleted_at, created_at, updated_at`

// BookingRepo provides access to the bookings table.
type BookingRepo struct {
	db *database.DB
}

// NewBookingRepo returns a BookingRepo bound to db.
func NewBookingRepo(db *database.DB) *BookingRepo { return &BookingRepo{db: db} }

// Create inserts b and fills in its id, registration number and timestamps.
func (r *BookingRepo) Create(ctx context.Context, b *model.Booking) error {
	now := time.Now().UTC()
	id, err := r.db.Dialect.InsertID(ctx, r.db, r.db.Rebind(`
		INSERT INTO bookings (student_name, father_name, cnic, contact, email, profession, institute_name,
			emergency_contact_name, emergency_contact, address, check_in_date, has_vehicle, vehicle_type, vehicle_number,
			room_number, bed_id, photo_path, cnic_front_path, cnic_back_path, proof_path, voucher_path, signature_path,
			status, prev_status, deleted_at, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`),
		b.StudentName, b.FatherName, b.CNIC, b.Contact, normEmail(b.Email), b.Profession, b.InstituteName,
		b.EmergencyContactName, b.EmergencyContact, b.Address, b.CheckInDate, b.HasVehicle, b.VehicleType, b.VehicleNumber,
		b.RoomNumber, b.BedID, b.PhotoPath, b.CNICFrontPath, b.CNICBackPath, b.ProofPath, b.VoucherPath, b.SignaturePath,
		string(b.Status), string(b.PrevStatus), nullTime(b.DeletedAt), now, now)
	if err != nil {
		return err
	}
	b.ID, b.RegNo, b.CreatedAt, b.UpdatedAt = id, utils.RegNo(id), now, now
	b.Email = normEmail(b.Email)
	return nil
}

// Get fetches one booking by id.
func (r *BookingRepo) Get(ctx context.Context, id uint64) (model.Booking, error) {
	row := r.db.QueryRowContext(ctx, r.db.Rebind(`SELECT `+bookingColumns+` FROM bookings WHERE id = ?`), id)
	b, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Booking{}, ErrNotFound
	}
	return b, err
}

// Update overwrites the mutable columns of b, but only while the stored
// status and bed still equal expect.  ErrConflict means another writer moved
// the booking first; ErrNotFound means it is gone.
func (r *BookingRepo) Update(ctx context.Context, b *model.Booking, expect Expect) error {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE bookings SET student_name = ?, father_name = ?, cnic = ?, contact = ?, email = ?, profession = ?,
			institute_name = ?, emergency_contact_name = ?, emergency_contact = ?, address = ?, check_in_date = ?,
			has_vehicle = ?, vehicle_type = ?, vehicle_number = ?, room_number = ?, bed_id = ?,
			photo_path = ?, cnic_front_path = ?, cnic_back_path = ?, proof_path = ?, voucher_path = ?, signature_path = ?,
			status = ?, prev_status = ?, deleted_at = ?, updated_at = ?
		WHERE id = ? AND status = ? AND bed_id = ?`),
		b.StudentName, b.FatherName, b.CNIC, b.Contact, normEmail(b.Email), b.Profession,
		b.InstituteName, b.EmergencyContactName, b.EmergencyContact, b.Address, b.CheckInDate,
		b.HasVehicle, b.VehicleType, b.VehicleNumber, b.RoomNumber, b.BedID,
		b.PhotoPath, b.CNICFrontPath, b.CNICBackPath, b.ProofPath, b.VoucherPath, b.SignaturePath,
		string(b.Status), string(b.PrevStatus), nullTime(b.DeletedAt), now,
		b.ID, string(expect.Status), expect.BedID)
	if err != nil {
		return err
	}
	if err := r.checkAffected(ctx, res, b.ID); err != nil {
		return err
	}
	b.UpdatedAt = now
	return nil
}

// Delete removes the row permanently, but only while it holds status expect.
func (r *BookingRepo) Delete(ctx context.Context, id uint64, expect model.BookingStatus) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM bookings WHERE id = ? AND status = ?`), id, string(expect))
	if err != nil {
		return err
	}
	return r.checkAffected(ctx, res, id)
}

// List returns bookings matching f, newest first.
func (r *BookingRepo) List(ctx context.Context, f BookingFilter) ([]model.Booking, error) {
	var (
		where []string
		args  []any
	)
	if len(f.Statuses) > 0 {
		where = append(where, `status IN (`+database.Placeholders(len(f.Statuses))+`)`)
		for _, s := range f.Statuses {
			args = append(args, string(s))
		}
	}
	if f.Email != "" {
		where = append(where, `email = ?`)
		args = append(args, normEmail(f.Email))
	}
	if f.BedID != "" {
		where = append(where, `bed_id = ?`)
		args = append(args, f.BedID)
	}
	if !f.DeletedBefore.IsZero() {
		where = append(where, `deleted_at IS NOT NULL AND deleted_at < ?`)
		args = append(args, f.DeletedBefore.UTC())
	}
	q := `SELECT ` + bookingColumns + ` FROM bookings`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, ` AND `)
	}
	q += ` ORDER BY id DESC`
	rows, err := r.db.QueryContext(ctx, r.db.Rebind(q), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *BookingRepo) checkAffected(ctx context.Context, res sql.Result, id uint64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	if _, err := r.Get(ctx, id); err != nil {
		return err
	}
	return ErrConflict
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(s rowScanner) (model.Booking, error) {
	var (
		b       model.Booking
		address sql.NullString
		deleted sql.NullTime
	)
	err := s.Scan(&b.ID, &b.StudentName, &b.FatherName, &b.CNIC, &b.Contact, &b.Email, &b.Profession, &b.InstituteName,
		&b.EmergencyContactName, &b.EmergencyContact, &address, &b.CheckInDate, &b.HasVehicle, &b.VehicleType, &b.VehicleNumber,
		&b.RoomNumber, &b.BedID, &b.PhotoPath, &b.CNICFrontPath, &b.CNICBackPath, &b.ProofPath, &b.VoucherPath, &b.SignaturePath,
		&b.Status, &b.PrevStatus, &deleted, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return model.Booking{}, err
	}
	b.Address = address.String
	if deleted.Valid {
		t := deleted.Time.UTC()
		b.DeletedAt = &t
	}
	b.RegNo = utils.RegNo(b.ID)
	return b, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func normEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
