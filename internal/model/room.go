package model

// Room is a fixed-capacity container of beds.  Rooms are seeded when the
// hostel is set up and are never deleted during normal operation.
//
// Fields:
//  ID         – primary key identifier.
//  Number     – display number shown on the floor plan (e.g. "12").
//  TotalBeds  – bed capacity, fixed at creation.
type Room struct {
	ID        uint64 // rooms.id
	Number    string // rooms.room_number
	TotalBeds int    // rooms.total_beds
}

// RoomStatus summarises how many beds of a room can still be selected.
type RoomStatus string

const (
	RoomFree    RoomStatus = "free"
	RoomPartial RoomStatus = "partial"
	RoomFull    RoomStatus = "full"
)

// RoomSummary is the floor-plan view of one room.  FreeBeds and Status are
// derived from the statuses of the room's beds at read time.
type RoomSummary struct {
	RoomID     uint64     `json:"room_id"`
	RoomNumber string     `json:"room_number"`
	TotalBeds  int        `json:"total_beds"`
	FreeBeds   int        `json:"free_beds"`
	Status     RoomStatus `json:"status"`
}

// RoomDetail nests the beds of a room under its summary.  It backs the admin
// occupancy map and the floor plan of the booking form.
type RoomDetail struct {
	RoomSummary
	Beds []Bed `json:"beds"`
}

// DeriveRoomStatus maps a free-bed count onto the room status shown to users:
// full when nothing is free, free when every bed is free, partial otherwise.
func DeriveRoomStatus(freeBeds, totalBeds int) RoomStatus {
	switch {
	case freeBeds <= 0:
		return RoomFull
	case freeBeds >= totalBeds:
		return RoomFree
	default:
		return RoomPartial
	}
}
