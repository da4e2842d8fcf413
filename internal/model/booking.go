package model

import "time"

// BookingStatus is the lifecycle state of a booking application.
type BookingStatus string

const (
	BookingPending  BookingStatus = "pending"
	BookingVerified BookingStatus = "verified"
	BookingRejected BookingStatus = "rejected"
	// BookingDeleted marks a booking that sits in the recycle bin.
	BookingDeleted BookingStatus = "deleted"
)

// Active reports whether a booking in this status holds its bed.
func (s BookingStatus) Active() bool {
	return s == BookingPending || s == BookingVerified
}

// Resident groups the personal details captured by the booking form.
type Resident struct {
	StudentName          string `json:"student_name"`
	FatherName           string `json:"father_name"`
	CNIC                 string `json:"cnic"`
	Contact              string `json:"contact"`
	Email                string `json:"email"`
	Profession           string `json:"profession"`
	InstituteName        string `json:"institute_name"`
	EmergencyContactName string `json:"emergency_contact_name"`
	EmergencyContact     string `json:"emergency_contact"`
	Address              string `json:"address"`
	CheckInDate          string `json:"check_in_date"`
	HasVehicle           bool   `json:"has_vehicle"`
	VehicleType          string `json:"vehicle_type"`
	VehicleNumber        string `json:"vehicle_number"`
}

// Documents holds opaque blob keys of the files uploaded with a booking.
// Empty strings mean the document was not provided.
type Documents struct {
	PhotoPath     string `json:"photo_path"`
	CNICFrontPath string `json:"cnic_front_path"`
	CNICBackPath  string `json:"cnic_back_path"`
	ProofPath     string `json:"proof_path"`
	VoucherPath   string `json:"voucher_path"`
	SignaturePath string `json:"signature_path"`
}

// Keys lists the non-empty document keys.
func (d Documents) Keys() []string {
	all := []string{d.PhotoPath, d.CNICFrontPath, d.CNICBackPath, d.ProofPath, d.VoucherPath, d.SignaturePath}
	out := make([]string, 0, len(all))
	for _, k := range all {
		if k != "" {
			out = append(out, k)
		}
	}
	return out
}

// Booking is a bed booking application.  While the booking is pending or
// verified it references the bed it holds; soft-deleted bookings keep the
// reference so they can be restored onto the same bed.
//
// Fields:
//  ID         – primary key.
//  RegNo      – registration number shown to residents (HST-REG-001).
//  Resident   – personal details from the booking form.
//  RoomNumber – room of the assigned bed.
//  BedID      – assigned bed ("<room>-<slot>").
//  Documents  – uploaded document keys.
//  Status     – pending, verified, rejected or deleted.
//  PrevStatus – status held before the booking was moved to the recycle bin.
//  DeletedAt  – when the booking entered the recycle bin (nil otherwise).
type Booking struct {
	ID    uint64 `json:"id"`     // bookings.id
	RegNo string `json:"reg_no"` // rendered from ID, not stored
	Resident
	RoomNumber string        `json:"room_number"` // bookings.room_number
	BedID      string        `json:"bed_id"`      // bookings.bed_id
	Documents
	Status     BookingStatus `json:"status"`                // bookings.status
	PrevStatus BookingStatus `json:"prev_status,omitempty"` // bookings.prev_status
	DeletedAt  *time.Time    `json:"deleted_at,omitempty"`  // bookings.deleted_at (nullable)
	CreatedAt  time.Time     `json:"created_at"`            // bookings.created_at
	UpdatedAt  time.Time     `json:"updated_at"`            // bookings.updated_at
}

// Form field names of the uploadable documents.
const (
	DocPhoto     = "photo"
	DocCNICFront = "cnic_front"
	DocCNICBack  = "cnic_back"
	DocProof     = "proof_profession"
	DocVoucher   = "fee_voucher"
	DocSignature = "signature"
)

// DocumentFields lists the document form fields in display order.
var DocumentFields = []string{DocPhoto, DocCNICFront, DocCNICBack, DocProof, DocVoucher, DocSignature}

func (d *Documents) slot(field string) *string {
	switch field {
	case DocPhoto:
		return &d.PhotoPath
	case DocCNICFront:
		return &d.CNICFrontPath
	case DocCNICBack:
		return &d.CNICBackPath
	case DocProof:
		return &d.ProofPath
	case DocVoucher:
		return &d.VoucherPath
	case DocSignature:
		return &d.SignaturePath
	}
	return nil
}

// Set stores key under the named document field and returns the key it
// replaced.  ok is false for unknown fields.
func (d *Documents) Set(field, key string) (prev string, ok bool) {
	p := d.slot(field)
	if p == nil {
		return "", false
	}
	prev, *p = *p, key
	return prev, true
}
