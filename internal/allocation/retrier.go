package allocation

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/iliyamo/hostel-bed-allocation/internal/metrics"
	"github.com/iliyamo/hostel-bed-allocation/internal/model"
	"github.com/iliyamo/hostel-bed-allocation/internal/repository"
)

// Releaser is the slice of Service the retrier needs.
type Releaser interface {
	Release(ctx context.Context, bedID string) error
}

// BookingLister finds the bookings that reference a bed.
// repository.BookingRepo satisfies it.
type BookingLister interface {
	List(ctx context.Context, f repository.BookingFilter) ([]model.Booking, error)
}

// RetrierConfig tunes the background release retrier.
type RetrierConfig struct {
	QueueSize   int           // buffered jobs; further enqueues are dropped and logged
	MaxAttempts int           // attempts per bed before giving up
	BaseDelay   time.Duration // first backoff, doubled per attempt
	MaxDelay    time.Duration // backoff ceiling
	Timeout     time.Duration // per attempt
}

func (c *RetrierConfig) defaults() {
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 8
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = 500 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = time.Minute
	}
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
}

type retryJob struct {
	bedID   string
	attempt int
}

// Retrier keeps retrying bed releases that failed after a booking was already
// marked rejected or deleted, so the bed is eventually freed.  NotFound is a
// data-integrity fault and is logged once, never retried.  A release whose
// bed has meanwhile been claimed by a live booking is dropped: the earlier
// attempt may have committed before reporting its error.
type Retrier struct {
	rel      Releaser
	bookings BookingLister
	cfg     RetrierConfig
	metrics *metrics.Metrics

	queue   chan retryJob
	pending atomic.Int64
	wg      sync.WaitGroup

	mu      sync.Mutex
	stopped bool
}

// NewRetrier returns a retrier over rel.  bookings is consulted before every
// attempt; nil skips that check.  Call Run to start processing.
func NewRetrier(rel Releaser, bookings BookingLister, cfg RetrierConfig, m *metrics.Metrics) *Retrier {
	cfg.defaults()
	return &Retrier{rel: rel, bookings: bookings, cfg: cfg, metrics: m, queue: make(chan retryJob, cfg.QueueSize)}
}

// Enqueue schedules a release of bedID.  It never blocks and reports whether
// the job was accepted.
func (r *Retrier) Enqueue(bedID string) bool {
	return r.push(retryJob{bedID: bedID})
}

// Pending reports how many releases are queued or waiting on a backoff.
func (r *Retrier) Pending() int { return int(r.pending.Load()) }

func (r *Retrier) push(j retryJob) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		log.Printf("allocation: retrier stopped, dropping release of %s", j.bedID)
		return false
	}
	select {
	case r.queue <- j:
		if j.attempt == 0 {
			r.metrics.RetryQueue(int(r.pending.Add(1)))
		}
		return true
	default:
		log.Printf("allocation: retry queue full, dropping release of %s", j.bedID)
		return false
	}
}

// Run processes jobs until ctx is cancelled.  Backoff timers that fire after
// cancellation are discarded.
func (r *Retrier) Run(ctx context.Context) {
	defer func() {
		r.mu.Lock()
		r.stopped = true
		r.mu.Unlock()
		r.wg.Wait()
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-r.queue:
			r.attempt(ctx, j)
		}
	}
}

func (r *Retrier) attempt(ctx context.Context, j retryJob) {
	j.attempt++
	actx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	holder, err := r.holder(actx, j.bedID)
	if err == nil && holder == nil {
		err = r.rel.Release(actx, j.bedID)
	}
	cancel()
	switch {
	case holder != nil:
		r.metrics.Retry(metrics.OutcomeConflict)
		r.done()
		log.Printf("allocation: bed %s is held by booking %d, dropping release", j.bedID, holder.ID)
		return
	case err == nil:
		r.metrics.Retry(metrics.OutcomeOK)
		r.done()
		log.Printf("allocation: released bed %s after %d attempt(s)", j.bedID, j.attempt)
		return
	case errors.Is(err, repository.ErrNotFound):
		r.metrics.Retry(metrics.OutcomeNotFound)
		r.done()
		log.Printf("allocation: integrity fault, bed %s no longer exists: %v", j.bedID, err)
		return
	case j.attempt >= r.cfg.MaxAttempts:
		r.metrics.Retry(metrics.OutcomeError)
		r.done()
		log.Printf("allocation: giving up on release of bed %s after %d attempts: %v", j.bedID, j.attempt, err)
		return
	}
	r.metrics.Retry(metrics.OutcomeError)
	delay := r.backoff(j.attempt)
	log.Printf("allocation: release of bed %s failed (attempt %d), retrying in %s: %v", j.bedID, j.attempt, delay, err)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			r.done()
		case <-t.C:
			if !r.push(j) {
				r.done()
			}
		}
	}()
}

// holder returns the live booking on bedID, if any.
func (r *Retrier) holder(ctx context.Context, bedID string) (*model.Booking, error) {
	if r.bookings == nil {
		return nil, nil
	}
	bs, err := r.bookings.List(ctx, repository.BookingFilter{
		BedID:    bedID,
		Statuses: []model.BookingStatus{model.BookingPending, model.BookingVerified},
	})
	if err != nil || len(bs) == 0 {
		return nil, err
	}
	return &bs[0], nil
}

func (r *Retrier) done() {
	r.metrics.RetryQueue(int(r.pending.Add(-1)))
}

func (r *Retrier) backoff(attempt int) time.Duration {
	d := r.cfg.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= r.cfg.MaxDelay {
			return r.cfg.MaxDelay
		}
	}
	return d
}
