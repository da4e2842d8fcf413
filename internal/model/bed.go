package model

import (
	"fmt"
	"strings"
)

// BedStatus is the occupancy state of a single bed.
type BedStatus string

const (
	// BedFree beds can be selected on the floor plan.
	BedFree BedStatus = "free"
	// BedReserved beds are claimed by a pending booking awaiting review.
	BedReserved BedStatus = "reserved"
	// BedOccupied beds are claimed by a verified booking.
	BedOccupied BedStatus = "occupied"
)

// Valid reports whether s is one of the known bed statuses.
func (s BedStatus) Valid() bool {
	switch s {
	case BedFree, BedReserved, BedOccupied:
		return true
	}
	return false
}

// Bed is the smallest allocatable unit of accommodation.  A bed belongs to
// exactly one room and is identified globally by its room number and slot
// letter, e.g. "12-A".
//
// Fields:
//  ID         – bed identifier, "<room number>-<slot>".
//  RoomID     – room that owns the bed.
//  RoomNumber – display number of the owning room.
//  Slot       – slot letter within the room (A, B, C, ...).
//  Status     – free, reserved or occupied.
type Bed struct {
	ID         string    `json:"bed_id"`      // beds.id
	RoomID     uint64    `json:"room_id"`     // beds.room_id
	RoomNumber string    `json:"room_number"` // rooms.room_number
	Slot       string    `json:"bed_number"`  // beds.slot
	Status     BedStatus `json:"status"`      // beds.status
}

// BedID builds the global identifier of the bed in the given slot of a room.
func BedID(roomNumber, slot string) string {
	return fmt.Sprintf("%s-%s", strings.TrimSpace(roomNumber), strings.ToUpper(strings.TrimSpace(slot)))
}

// SlotLabel converts a zero-based slot index into its letter label.  Rooms
// never hold more than 26 beds so a single letter suffices.
func SlotLabel(i int) string {
	if i < 0 || i >= 26 {
		return ""
	}
	return string(rune('A' + i))
}

// SplitBedID returns the room number and slot encoded in a bed identifier.
func SplitBedID(id string) (roomNumber, slot string, ok bool) {
	i := strings.LastIndex(id, "-")
	if i <= 0 || i == len(id)-1 {
		return "", "", false
	}
	return id[:i], id[i+1:], true
}
