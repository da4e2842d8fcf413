// Package allocation owns the one-occupant-per-bed invariant.  Every verb is
// a single check-and-set against the bed store, so concurrent callers racing
// for the same bed see exactly one winner, while callers working on
// different beds never wait on each other.
package allocation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/iliyamo/hostel-bed-allocation/internal/metrics"
	"github.com/iliyamo/hostel-bed-allocation/internal/model"
	"github.com/iliyamo/hostel-bed-allocation/internal/repository"
)

// BedStore is the persistence contract the service composes its verbs from.
// repository.BedRepo and repository.MemoryBedStore both satisfy it.
type BedStore interface {
	ListRooms(ctx context.Context) ([]model.RoomSummary, error)
	ListBeds(ctx context.Context, roomID uint64) ([]model.Bed, error)
	ListRoomsDetailed(ctx context.Context) ([]model.RoomDetail, error)
	GetBed(ctx context.Context, bedID string) (model.Bed, error)
	SetBedStatus(ctx context.Context, bedID string, status model.BedStatus) error
	SwapBedStatus(ctx context.Context, bedID string, from []model.BedStatus, to model.BedStatus) (model.BedStatus, error)
	TransferBed(ctx context.Context, oldID, newID string) (model.BedStatus, error)
}

// Change describes one bed status transition that was applied.
type Change struct {
	BedID      string          `json:"bed_id"`
	RoomNumber string          `json:"room_number"`
	From       model.BedStatus `json:"from"`
	To         model.BedStatus `json:"to"`
}

// Observer is notified after bed statuses change.  Implementations must not
// block; the floor-plan hub and the response cache purger are the two in
// this repository.
type Observer interface {
	BedsChanged(ctx context.Context, changes []Change)
}

var (
	claimed = []model.BedStatus{model.BedReserved, model.BedOccupied}
	anyBed  = []model.BedStatus{model.BedFree, model.BedReserved, model.BedOccupied}
)

// Service exposes the allocation verbs and floor-plan queries.
type Service struct {
	store   BedStore
	metrics *metrics.Metrics

	mu        sync.RWMutex
	observers []Observer
}

// NewService returns a Service over store.  m may be nil.
func NewService(store BedStore, m *metrics.Metrics, observers ...Observer) *Service {
	return &Service{store: store, metrics: m, observers: observers}
}

// AddObserver registers o for future bed changes.
func (s *Service) AddObserver(o Observer) {
	s.mu.Lock()
	s.observers = append(s.observers, o)
	s.mu.Unlock()
}

// Rooms lists room summaries for the floor plan.
func (s *Service) Rooms(ctx context.Context) ([]model.RoomSummary, error) {
	return s.store.ListRooms(ctx)
}

// Beds lists the beds of one room.
func (s *Service) Beds(ctx context.Context, roomID uint64) ([]model.Bed, error) {
	return s.store.ListBeds(ctx, roomID)
}

// RoomsDetailed lists every room with its beds nested.
func (s *Service) RoomsDetailed(ctx context.Context) ([]model.RoomDetail, error) {
	return s.store.ListRoomsDetailed(ctx)
}

// Bed returns a single bed.
func (s *Service) Bed(ctx context.Context, bedID string) (model.Bed, error) {
	return s.store.GetBed(ctx, bedID)
}

// Reserve claims a free bed for a pending booking.  It returns
// repository.ErrConflict when the bed is already reserved or occupied.
func (s *Service) Reserve(ctx context.Context, bedID string) error {
	prev, err := s.swap(ctx, "reserve", bedID, []model.BedStatus{model.BedFree}, model.BedReserved)
	if err != nil {
		return err
	}
	s.notify(ctx, bedID, prev, model.BedReserved)
	return nil
}

// Confirm turns a reservation into an occupation and returns the status the
// bed held before.  Confirming an occupied bed is a no-op; confirming a free
// bed is a conflict because no booking holds it.
func (s *Service) Confirm(ctx context.Context, bedID string) (model.BedStatus, error) {
	prev, err := s.swap(ctx, "confirm", bedID, claimed, model.BedOccupied)
	if err != nil {
		return prev, err
	}
	s.notify(ctx, bedID, prev, model.BedOccupied)
	return prev, nil
}

// Unconfirm moves an occupied bed back to reserved.  It undoes Confirm when
// the verified status could not be stored.
func (s *Service) Unconfirm(ctx context.Context, bedID string) error {
	prev, err := s.swap(ctx, "unconfirm", bedID, claimed, model.BedReserved)
	if err != nil {
		return err
	}
	s.notify(ctx, bedID, prev, model.BedReserved)
	return nil
}

// Release frees a bed.  Releasing a free bed is a no-op.
func (s *Service) Release(ctx context.Context, bedID string) error {
	prev, err := s.swap(ctx, "release", bedID, anyBed, model.BedFree)
	if err != nil {
		return err
	}
	s.notify(ctx, bedID, prev, model.BedFree)
	return nil
}

// ReleaseMany frees every bed in ids.  All beds are attempted; the ids that
// could not be released are returned along with the joined errors.
func (s *Service) ReleaseMany(ctx context.Context, ids []string) ([]string, error) {
	var (
		failed []string
		errs   []error
	)
	for _, id := range ids {
		if err := s.Release(ctx, id); err != nil {
			failed = append(failed, id)
			errs = append(errs, err)
		}
	}
	return failed, errors.Join(errs...)
}

// Transfer moves the claim on oldID onto newID in one step.  oldID must hold
// a claim and newID must be free; otherwise ErrConflict is returned and
// neither bed changes.
func (s *Service) Transfer(ctx context.Context, oldID, newID string) error {
	moved, err := s.store.TransferBed(ctx, oldID, newID)
	if oldID == newID {
		return err
	}
	s.metrics.Allocation("transfer", outcome(err))
	if err != nil {
		return fmt.Errorf("transfer %s -> %s: %w", oldID, newID, err)
	}
	s.notify(ctx, oldID, moved, model.BedFree)
	s.notify(ctx, newID, model.BedFree, moved)
	return nil
}

func (s *Service) swap(ctx context.Context, op, bedID string, from []model.BedStatus, to model.BedStatus) (model.BedStatus, error) {
	prev, err := s.store.SwapBedStatus(ctx, bedID, from, to)
	s.metrics.Allocation(op, outcome(err))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			log.Printf("allocation: %s on unknown bed %s", op, bedID)
		}
		return prev, fmt.Errorf("%s %s: %w", op, bedID, err)
	}
	return prev, nil
}

func (s *Service) notify(ctx context.Context, bedID string, from, to model.BedStatus) {
	if from == to {
		return
	}
	room, _, _ := model.SplitBedID(bedID)
	changes := []Change{{BedID: bedID, RoomNumber: room, From: from, To: to}}
	s.mu.RLock()
	obs := s.observers
	s.mu.RUnlock()
	for _, o := range obs {
		o.BedsChanged(ctx, changes)
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, repository.ErrConflict):
		return metrics.OutcomeConflict
	case errors.Is(err, repository.ErrNotFound):
		return metrics.OutcomeNotFound
	default:
		return metrics.OutcomeError
	}
}
