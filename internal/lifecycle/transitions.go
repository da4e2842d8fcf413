package lifecycle

import "github.com/iliyamo/hostel-bed-allocation/internal/model"

// Event names a request to move a booking along its lifecycle.
type Event string

const (
	EvSubmit  Event = "submit"
	EvVerify  Event = "verify"
	EvReject  Event = "reject"
	EvDelete  Event = "delete"
	EvRestore Event = "restore"
	EvEditBed Event = "edit_bed"
	EvEdit    Event = "edit"
	EvPurge   Event = "purge"
)

// AllocCall is the allocation verb a transition performs.
type AllocCall string

const (
	AllocNone     AllocCall = ""
	AllocReserve  AllocCall = "reserve"
	AllocConfirm  AllocCall = "confirm"
	AllocRelease  AllocCall = "release"
	AllocTransfer AllocCall = "transfer"
)

// Transition is a single allowed edge of the booking state machine.  An
// empty To keeps the current status.
type Transition struct {
	From  model.BookingStatus
	To    model.BookingStatus
	Event Event
	Alloc AllocCall
}

// statusNew is the pseudo status of a booking that does not exist yet.
const statusNew model.BookingStatus = ""

var transitionsTable = []Transition{
	{From: statusNew, To: model.BookingPending, Event: EvSubmit, Alloc: AllocReserve},

	// Review
	{From: model.BookingPending, To: model.BookingVerified, Event: EvVerify, Alloc: AllocConfirm},
	{From: model.BookingPending, To: model.BookingRejected, Event: EvReject, Alloc: AllocRelease},

	// Recycle bin; only active bookings still hold a bed
	{From: model.BookingPending, To: model.BookingDeleted, Event: EvDelete, Alloc: AllocRelease},
	{From: model.BookingVerified, To: model.BookingDeleted, Event: EvDelete, Alloc: AllocRelease},
	{From: model.BookingRejected, To: model.BookingDeleted, Event: EvDelete},
	{From: model.BookingDeleted, To: model.BookingPending, Event: EvRestore, Alloc: AllocReserve},
	{From: model.BookingDeleted, Event: EvPurge},

	// Edits
	{From: model.BookingPending, Event: EvEditBed, Alloc: AllocTransfer},
	{From: model.BookingVerified, Event: EvEditBed, Alloc: AllocTransfer},
	{From: model.BookingPending, Event: EvEdit},
	{From: model.BookingVerified, Event: EvEdit},
	{From: model.BookingRejected, Event: EvEdit},
}

// TransitionFor returns the allowed transition for a given status and event.
func TransitionFor(from model.BookingStatus, ev Event) (Transition, bool) {
	for _, tr := range transitionsTable {
		if tr.From == from && tr.Event == ev {
			return tr, true
		}
	}
	return Transition{}, false
}
