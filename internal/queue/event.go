// Package queue defines message payloads exchanged over the message broker.
package queue

// BookingEventsQueue is the durable queue booking lifecycle events go to.
const BookingEventsQueue = "booking.events"

// Event types, one per booking transition.
const (
	EventSubmitted = "booking.submitted"
	EventVerified  = "booking.verified"
	EventRejected  = "booking.rejected"
	EventDeleted   = "booking.deleted"
	EventRestored  = "booking.restored"
	EventUpdated   = "booking.updated"
	EventPurged    = "booking.purged"
)

// BookingEvent is published after a booking transition has been stored.  It
// carries enough for the audit log and for notifications without querying
// the primary database.
type BookingEvent struct {
	Type        string `json:"type"`
	BookingID   uint64 `json:"booking_id"`
	RegNo       string `json:"reg_no"`
	StudentName string `json:"student_name"`
	Email       string `json:"email"`
	RoomNumber  string `json:"room_number"`
	BedID       string `json:"bed_id"`
	PrevBedID   string `json:"prev_bed_id,omitempty"`
	Status      string `json:"status"`
	OccurredAt  string `json:"occurred_at"`
}
