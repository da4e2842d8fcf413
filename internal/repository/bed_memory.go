package repository

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/iliyamo/hostel-bed-allocation/internal/model"
)

type memBed struct {
	mu   sync.Mutex
	bed  model.Bed
	room *memRoom
}

type memRoom struct {
	room model.Room
	beds []*memBed
}

// MemoryBedStore is an in-process bed store.  The layout is fixed when the
// store is built, so the maps are read-only afterwards and each bed carries
// its own mutex: writes to different beds never contend.
type MemoryBedStore struct {
	rooms  []*memRoom
	byRoom map[uint64]*memRoom
	beds   map[string]*memBed
}

// NewMemoryBedStore builds a store with rooms numbered 1..rooms, each with
// bedsPerRoom free beds labelled A, B, C and so on.
func NewMemoryBedStore(rooms, bedsPerRoom int) *MemoryBedStore {
	s := &MemoryBedStore{byRoom: map[uint64]*memRoom{}, beds: map[string]*memBed{}}
	for i := 1; i <= rooms; i++ {
		number := strconv.Itoa(i)
		mr := &memRoom{room: model.Room{ID: uint64(i), Number: number, TotalBeds: bedsPerRoom}}
		for b := 0; b < bedsPerRoom && b < 26; b++ {
			slot := model.SlotLabel(b)
			mb := &memBed{room: mr, bed: model.Bed{
				ID: model.BedID(number, slot), RoomID: mr.room.ID, RoomNumber: number, Slot: slot, Status: model.BedFree,
			}}
			mr.beds = append(mr.beds, mb)
			s.beds[mb.bed.ID] = mb
		}
		s.rooms = append(s.rooms, mr)
		s.byRoom[mr.room.ID] = mr
	}
	return s
}

func (s *MemoryBedStore) snapshot(mr *memRoom) model.RoomDetail {
	d := model.RoomDetail{RoomSummary: model.RoomSummary{
		RoomID: mr.room.ID, RoomNumber: mr.room.Number, TotalBeds: mr.room.TotalBeds,
	}}
	d.Beds = make([]model.Bed, 0, len(mr.beds))
	for _, mb := range mr.beds {
		mb.mu.Lock()
		b := mb.bed
		mb.mu.Unlock()
		if b.Status == model.BedFree {
			d.FreeBeds++
		}
		d.Beds = append(d.Beds, b)
	}
	d.Status = model.DeriveRoomStatus(d.FreeBeds, d.TotalBeds)
	return d
}

func (s *MemoryBedStore) ListRooms(ctx context.Context) ([]model.RoomSummary, error) {
	out := make([]model.RoomSummary, 0, len(s.rooms))
	for _, mr := range s.rooms {
		out = append(out, s.snapshot(mr).RoomSummary)
	}
	return out, ctx.Err()
}

func (s *MemoryBedStore) ListBeds(ctx context.Context, roomID uint64) ([]model.Bed, error) {
	mr, ok := s.byRoom[roomID]
	if !ok {
		return nil, ErrNotFound
	}
	return s.snapshot(mr).Beds, ctx.Err()
}

func (s *MemoryBedStore) ListRoomsDetailed(ctx context.Context) ([]model.RoomDetail, error) {
	out := make([]model.RoomDetail, 0, len(s.rooms))
	for _, mr := range s.rooms {
		out = append(out, s.snapshot(mr))
	}
	return out, ctx.Err()
}

func (s *MemoryBedStore) GetBed(_ context.Context, bedID string) (model.Bed, error) {
	mb, ok := s.beds[bedID]
	if !ok {
		return model.Bed{}, ErrNotFound
	}
	mb.mu.Lock()
	defer mb.mu.Unlock()
	return mb.bed, nil
}

func (s *MemoryBedStore) SetBedStatus(_ context.Context, bedID string, status model.BedStatus) error {
	mb, ok := s.beds[bedID]
	if !ok {
		return ErrNotFound
	}
	mb.mu.Lock()
	mb.bed.Status = status
	mb.mu.Unlock()
	return nil
}

func (s *MemoryBedStore) SwapBedStatus(ctx context.Context, bedID string, from []model.BedStatus, to model.BedStatus) (model.BedStatus, error) {
	mb, ok := s.beds[bedID]
	if !ok {
		return "", fmt.Errorf("bed %s: %w", bedID, ErrNotFound)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	mb.mu.Lock()
	defer mb.mu.Unlock()
	prev := mb.bed.Status
	if !containsStatus(from, prev) {
		return prev, ErrConflict
	}
	mb.bed.Status = to
	return prev, nil
}

func (s *MemoryBedStore) TransferBed(ctx context.Context, oldID, newID string) (model.BedStatus, error) {
	ob, ok := s.beds[oldID]
	if !ok {
		return "", fmt.Errorf("bed %s: %w", oldID, ErrNotFound)
	}
	nb, ok := s.beds[newID]
	if !ok {
		return "", fmt.Errorf("bed %s: %w", newID, ErrNotFound)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if oldID == newID {
		ob.mu.Lock()
		defer ob.mu.Unlock()
		return ob.bed.Status, nil
	}
	first, second := ob, nb
	if newID < oldID {
		first, second = nb, ob
	}
	first.mu.Lock()
	defer first.mu.Unlock()
	second.mu.Lock()
	defer second.mu.Unlock()

	claim := ob.bed.Status
	if claim == model.BedFree || nb.bed.Status != model.BedFree {
		return "", ErrConflict
	}
	nb.bed.Status = claim
	ob.bed.Status = model.BedFree
	return claim, nil
}

// sortRooms orders summaries by room number, numerically when possible.
func sortRooms(rs []model.RoomSummary) {
	sort.SliceStable(rs, func(i, j int) bool { return roomLess(rs[i].RoomNumber, rs[j].RoomNumber) })
}

func roomLess(a, b string) bool {
	ai, aerr := strconv.Atoi(a)
	bi, berr := strconv.Atoi(b)
	if aerr == nil && berr == nil {
		return ai < bi
	}
	return a < b
}
