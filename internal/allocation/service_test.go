package allocation

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/hostel-bed-allocation/internal/metrics"
	"github.com/iliyamo/hostel-bed-allocation/internal/model"
	"github.com/iliyamo/hostel-bed-allocation/internal/repository"
)

type recordingObserver struct {
	mu      sync.Mutex
	changes []Change
}

func (o *recordingObserver) BedsChanged(_ context.Context, cs []Change) {
	o.mu.Lock()
	o.changes = append(o.changes, cs...)
	o.mu.Unlock()
}

func newTestService(t *testing.T) (*Service, *repository.MemoryBedStore, *recordingObserver) {
	t.Helper()
	store := repository.NewMemoryBedStore(6, 4)
	obs := &recordingObserver{}
	return NewService(store, metrics.New(), obs), store, obs
}

func status(t *testing.T, s *Service, id string) model.BedStatus {
	t.Helper()
	b, err := s.Bed(context.Background(), id)
	require.NoError(t, err)
	return b.Status
}

func TestConcurrentReserveHasOneWinner(t *testing.T) {
	s, _, _ := newTestService(t)
	const n = 50
	var (
		wg       sync.WaitGroup
		ok       atomic.Int32
		conflict atomic.Int32
	)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			err := s.Reserve(context.Background(), "5-A")
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, repository.ErrConflict):
				conflict.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()
	assert.EqualValues(t, 1, ok.Load())
	assert.EqualValues(t, n-1, conflict.Load())
	assert.Equal(t, model.BedReserved, status(t, s, "5-A"))
}

func TestReserveDifferentBedsInParallel(t *testing.T) {
	s, _, _ := newTestService(t)
	var wg sync.WaitGroup
	errs := make(chan error, 24)
	for room := 1; room <= 6; room++ {
		for slot := 0; slot < 4; slot++ {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				errs <- s.Reserve(context.Background(), id)
			}(model.BedID(string(rune('0'+room)), model.SlotLabel(slot)))
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
	rooms, err := s.Rooms(context.Background())
	require.NoError(t, err)
	for _, r := range rooms {
		assert.Equal(t, model.RoomFull, r.Status)
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	s, _, obs := newTestService(t)
	ctx := context.Background()
	require.NoError(t, s.Reserve(ctx, "1-A"))
	require.NoError(t, s.Release(ctx, "1-A"))
	require.NoError(t, s.Release(ctx, "1-A"))
	assert.Equal(t, model.BedFree, status(t, s, "1-A"))
	assert.Len(t, obs.changes, 2, "a no-op release is not announced")
}

func TestReserveReleaseRoundTrip(t *testing.T) {
	s, _, _ := newTestService(t)
	ctx := context.Background()
	before, err := s.Bed(ctx, "2-B")
	require.NoError(t, err)
	require.NoError(t, s.Reserve(ctx, "2-B"))
	require.NoError(t, s.Release(ctx, "2-B"))
	after, err := s.Bed(ctx, "2-B")
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestConfirm(t *testing.T) {
	s, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := s.Confirm(ctx, "3-A")
	assert.ErrorIs(t, err, repository.ErrConflict, "free bed has no reservation to confirm")
	assert.Equal(t, model.BedFree, status(t, s, "3-A"))

	require.NoError(t, s.Reserve(ctx, "3-A"))
	prev, err := s.Confirm(ctx, "3-A")
	require.NoError(t, err)
	assert.Equal(t, model.BedReserved, prev)
	prev, err = s.Confirm(ctx, "3-A")
	require.NoError(t, err)
	assert.Equal(t, model.BedOccupied, prev, "a repeated confirm reports it moved nothing")
	assert.Equal(t, model.BedOccupied, status(t, s, "3-A"))

	require.NoError(t, s.Unconfirm(ctx, "3-A"))
	assert.Equal(t, model.BedReserved, status(t, s, "3-A"))

	_, err = s.Confirm(ctx, "77-A")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestTransferAtomicity(t *testing.T) {
	s, _, obs := newTestService(t)
	ctx := context.Background()
	require.NoError(t, s.Reserve(ctx, "2-A"))
	_, err := s.Confirm(ctx, "2-A")
	require.NoError(t, err)
	require.NoError(t, s.Reserve(ctx, "2-B"))

	err = s.Transfer(ctx, "2-A", "2-B")
	assert.ErrorIs(t, err, repository.ErrConflict)
	assert.Equal(t, model.BedOccupied, status(t, s, "2-A"))
	assert.Equal(t, model.BedReserved, status(t, s, "2-B"))

	obs.changes = nil
	require.NoError(t, s.Transfer(ctx, "2-A", "2-C"))
	assert.Equal(t, model.BedFree, status(t, s, "2-A"))
	assert.Equal(t, model.BedOccupied, status(t, s, "2-C"))
	assert.ElementsMatch(t, []Change{
		{BedID: "2-A", RoomNumber: "2", From: model.BedOccupied, To: model.BedFree},
		{BedID: "2-C", RoomNumber: "2", From: model.BedFree, To: model.BedOccupied},
	}, obs.changes)

	require.NoError(t, s.Transfer(ctx, "2-C", "2-C"))
	assert.ErrorIs(t, s.Transfer(ctx, "2-C", "9-Z"), repository.ErrNotFound)

	obs.changes = nil
	assert.ErrorIs(t, s.Transfer(ctx, "2-A", "2-D"), repository.ErrConflict, "2-A is free and has no claim to move")
	assert.Equal(t, model.BedFree, status(t, s, "2-D"))
	assert.Empty(t, obs.changes)
}

func TestReleaseMany(t *testing.T) {
	s, _, _ := newTestService(t)
	ctx := context.Background()
	require.NoError(t, s.Reserve(ctx, "4-A"))
	require.NoError(t, s.Reserve(ctx, "4-B"))

	failed, err := s.ReleaseMany(ctx, []string{"4-A", "missing", "4-B"})
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.Equal(t, []string{"missing"}, failed)
	assert.Equal(t, model.BedFree, status(t, s, "4-A"))
	assert.Equal(t, model.BedFree, status(t, s, "4-B"))
}

func TestCancelledContextDoesNotClaim(t *testing.T) {
	s, _, _ := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.Reserve(ctx, "6-A")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, model.BedFree, status(t, s, "6-A"))
}
