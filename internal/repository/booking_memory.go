package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/hostel-bed-allocation/internal/model"
	"github.com/iliyamo/hostel-bed-allocation/internal/utils"
)

// MemoryBookingStore keeps bookings in a map guarded by one mutex.  Booking
// writes are not on the contended path; the bed store is.
type MemoryBookingStore struct {
	mu     sync.Mutex
	nextID uint64
	rows   map[uint64]model.Booking
}

// NewMemoryBookingStore returns an empty store.
func NewMemoryBookingStore() *MemoryBookingStore {
	return &MemoryBookingStore{rows: map[uint64]model.Booking{}}
}

func (s *MemoryBookingStore) Create(_ context.Context, b *model.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	now := time.Now().UTC()
	b.ID, b.RegNo, b.CreatedAt, b.UpdatedAt = s.nextID, utils.RegNo(s.nextID), now, now
	b.Email = normEmail(b.Email)
	s.rows[b.ID] = *b
	return nil
}

func (s *MemoryBookingStore) Get(_ context.Context, id uint64) (model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.rows[id]
	if !ok {
		return model.Booking{}, ErrNotFound
	}
	return b, nil
}

func (s *MemoryBookingStore) Update(_ context.Context, b *model.Booking, expect Expect) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.rows[b.ID]
	if !ok {
		return ErrNotFound
	}
	if cur.Status != expect.Status || cur.BedID != expect.BedID {
		return ErrConflict
	}
	b.CreatedAt, b.RegNo = cur.CreatedAt, cur.RegNo
	b.UpdatedAt = time.Now().UTC()
	b.Email = normEmail(b.Email)
	s.rows[b.ID] = *b
	return nil
}

func (s *MemoryBookingStore) Delete(_ context.Context, id uint64, expect model.BookingStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.rows[id]
	if !ok {
		return ErrNotFound
	}
	if cur.Status != expect {
		return ErrConflict
	}
	delete(s.rows, id)
	return nil
}

func (s *MemoryBookingStore) List(_ context.Context, f BookingFilter) ([]model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Booking{}
	for _, b := range s.rows {
		if len(f.Statuses) > 0 && !containsBookingStatus(f.Statuses, b.Status) {
			continue
		}
		if f.Email != "" && b.Email != normEmail(f.Email) {
			continue
		}
		if f.BedID != "" && b.BedID != f.BedID {
			continue
		}
		if !f.DeletedBefore.IsZero() && (b.DeletedAt == nil || !b.DeletedAt.Before(f.DeletedBefore)) {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func containsBookingStatus(set []model.BookingStatus, s model.BookingStatus) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}
