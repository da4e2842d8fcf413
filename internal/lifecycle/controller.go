// Package lifecycle drives a booking through submit, review, recycle bin and
// edits, and issues the matching allocation call at every step that changes
// bed occupancy.  The ordering rule is always claim-then-persist: the bed
// change happens first and is compensated if the booking cannot be stored,
// so the inventory never shows a claim without a durable booking behind it.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/iliyamo/hostel-bed-allocation/internal/blob"
	"github.com/iliyamo/hostel-bed-allocation/internal/metrics"
	"github.com/iliyamo/hostel-bed-allocation/internal/model"
	"github.com/iliyamo/hostel-bed-allocation/internal/queue"
	"github.com/iliyamo/hostel-bed-allocation/internal/repository"
)

// Allocator is the allocation surface the controller drives.
// allocation.Service satisfies it.
type Allocator interface {
	Bed(ctx context.Context, bedID string) (model.Bed, error)
	Reserve(ctx context.Context, bedID string) error
	Confirm(ctx context.Context, bedID string) (model.BedStatus, error)
	Unconfirm(ctx context.Context, bedID string) error
	Release(ctx context.Context, bedID string) error
	Transfer(ctx context.Context, oldID, newID string) error
}

// BookingStore persists booking records.  Update is conditional on the status
// and bed the caller last saw, Delete on the status.
type BookingStore interface {
	Create(ctx context.Context, b *model.Booking) error
	Get(ctx context.Context, id uint64) (model.Booking, error)
	Update(ctx context.Context, b *model.Booking, expect repository.Expect) error
	Delete(ctx context.Context, id uint64, expect model.BookingStatus) error
	List(ctx context.Context, f repository.BookingFilter) ([]model.Booking, error)
}

// ReleaseQueue accepts bed releases to retry in the background.
type ReleaseQueue interface {
	Enqueue(bedID string) bool
}

// Publisher emits booking events.  Failures are logged and never fail the
// transition that produced them.
type Publisher interface {
	Publish(ctx context.Context, ev queue.BookingEvent) error
}

// Upload is one document file attached to a submission or an edit.
type Upload struct {
	Field       string // one of model.DocumentFields
	Filename    string
	ContentType string
	Body        io.Reader
}

// Deps wires a Controller.  Retry, Events and Metrics are optional.
type Deps struct {
	Beds     Allocator
	Bookings BookingStore
	Blobs    blob.Store
	Retry    ReleaseQueue
	Events   Publisher
	Metrics  *metrics.Metrics
}

// Controller implements the booking state machine.
type Controller struct {
	beds     Allocator
	bookings BookingStore
	blobs    blob.Store
	retry    ReleaseQueue
	events   Publisher
	metrics  *metrics.Metrics
	now      func() time.Time
}

// New returns a Controller.
func New(d Deps) *Controller {
	return &Controller{
		beds:     d.Beds,
		bookings: d.Bookings,
		blobs:    d.Blobs,
		retry:    d.Retry,
		events:   d.Events,
		metrics:  d.Metrics,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Get returns one booking.
func (c *Controller) Get(ctx context.Context, id uint64) (model.Booking, error) {
	return c.bookings.Get(ctx, id)
}

// List returns bookings matching f.
func (c *Controller) List(ctx context.Context, f repository.BookingFilter) ([]model.Booking, error) {
	return c.bookings.List(ctx, f)
}

// ListRecycleBin returns the soft-deleted bookings.
func (c *Controller) ListRecycleBin(ctx context.Context) ([]model.Booking, error) {
	return c.bookings.List(ctx, repository.BookingFilter{Statuses: []model.BookingStatus{model.BookingDeleted}})
}

// Submit reserves the chosen bed, stores the documents and persists a pending
// booking.  A taken bed yields repository.ErrConflict and nothing is stored.
func (c *Controller) Submit(ctx context.Context, b model.Booking, uploads []Upload) (out model.Booking, err error) {
	defer func() { c.record(EvSubmit, err) }()
	tr, _ := TransitionFor(statusNew, EvSubmit)
	if err := validateResident(b.Resident); err != nil {
		return model.Booking{}, err
	}
	if err := validateUploads(uploads); err != nil {
		return model.Booking{}, err
	}
	bed, err := c.beds.Bed(ctx, strings.TrimSpace(b.BedID))
	if err != nil {
		return model.Booking{}, fmt.Errorf("bed %q: %w", b.BedID, err)
	}
	if err := c.beds.Reserve(ctx, bed.ID); err != nil {
		return model.Booking{}, err
	}

	b.ID, b.BedID, b.RoomNumber = 0, bed.ID, bed.RoomNumber
	b.Status, b.PrevStatus, b.DeletedAt = tr.To, "", nil
	b.Documents = model.Documents{}
	stored, err := c.storeUploads(ctx, &b.Documents, uploads)
	if err != nil {
		c.releaseNow(ctx, bed.ID)
		return model.Booking{}, fmt.Errorf("%w: upload documents: %v", ErrPersistence, err)
	}
	if err := c.bookings.Create(ctx, &b); err != nil {
		c.discard(ctx, stored)
		c.releaseNow(ctx, bed.ID)
		return model.Booking{}, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	c.publish(ctx, queue.EventSubmitted, b, "")
	return b, nil
}

// Verify confirms the reservation of a pending booking.  When the bed is no
// longer held the booking stays pending and ErrConflict is returned.
func (c *Controller) Verify(ctx context.Context, id uint64) (out model.Booking, err error) {
	defer func() { c.record(EvVerify, err) }()
	b, tr, err := c.load(ctx, id, EvVerify)
	if err != nil {
		return model.Booking{}, err
	}
	was := repository.ExpectOf(b)
	prev, err := c.beds.Confirm(ctx, b.BedID)
	if err != nil {
		return model.Booking{}, err
	}
	b.Status = tr.To
	if err := c.bookings.Update(ctx, &b, was); err != nil {
		// Undo only a move this call made.  A conflict or a missing row means
		// another writer now owns the bed's state.
		if prev == model.BedReserved && !lostRace(err) {
			if uerr := c.beds.Unconfirm(context.WithoutCancel(ctx), b.BedID); uerr != nil {
				log.Printf("lifecycle: booking %d: undo confirm of bed %s: %v", id, b.BedID, uerr)
			}
		}
		return model.Booking{}, persistErr(err)
	}
	c.publish(ctx, queue.EventVerified, b, "")
	return b, nil
}

// Reject marks a pending booking rejected and frees its bed.  The status is
// stored first; a failed release is retried in the background.
func (c *Controller) Reject(ctx context.Context, id uint64) (out model.Booking, err error) {
	defer func() { c.record(EvReject, err) }()
	b, tr, err := c.load(ctx, id, EvReject)
	if err != nil {
		return model.Booking{}, err
	}
	was := repository.ExpectOf(b)
	b.Status = tr.To
	if err := c.bookings.Update(ctx, &b, was); err != nil {
		return model.Booking{}, persistErr(err)
	}
	c.releaseEventually(ctx, b.ID, b.BedID)
	c.publish(ctx, queue.EventRejected, b, "")
	return b, nil
}

// Delete moves a booking to the recycle bin, remembering its status, and
// frees the bed if the booking was holding one.
func (c *Controller) Delete(ctx context.Context, id uint64) (out model.Booking, err error) {
	defer func() { c.record(EvDelete, err) }()
	b, tr, err := c.load(ctx, id, EvDelete)
	if err != nil {
		return model.Booking{}, err
	}
	was := repository.ExpectOf(b)
	now := c.now()
	b.PrevStatus, b.Status, b.DeletedAt = b.Status, tr.To, &now
	if err := c.bookings.Update(ctx, &b, was); err != nil {
		return model.Booking{}, persistErr(err)
	}
	if tr.Alloc == AllocRelease {
		c.releaseEventually(ctx, b.ID, b.BedID)
	}
	c.publish(ctx, queue.EventDeleted, b, "")
	return b, nil
}

// Restore takes a booking out of the recycle bin as pending, re-reserving its
// original bed.  If that bed has been claimed meanwhile, ErrConflict is
// returned and the booking stays deleted.
func (c *Controller) Restore(ctx context.Context, id uint64) (out model.Booking, err error) {
	defer func() { c.record(EvRestore, err) }()
	b, tr, err := c.load(ctx, id, EvRestore)
	if err != nil {
		return model.Booking{}, err
	}
	was := repository.ExpectOf(b)
	if err := c.beds.Reserve(ctx, b.BedID); err != nil {
		return model.Booking{}, err
	}
	b.Status, b.PrevStatus, b.DeletedAt = tr.To, "", nil
	if err := c.bookings.Update(ctx, &b, was); err != nil {
		c.releaseNow(ctx, b.BedID)
		return model.Booking{}, persistErr(err)
	}
	c.publish(ctx, queue.EventRestored, b, "")
	return b, nil
}

// EditRequest carries an admin edit.  Nil Resident keeps the resident
// details; empty BedID keeps the bed.
type EditRequest struct {
	Resident *model.Resident
	BedID    string
	Uploads  []Upload
}

// Edit updates resident details and documents, and moves the booking to
// another bed when BedID differs.  A bed change is only allowed for pending
// and verified bookings; the new bed must be free or the edit is rejected
// with ErrConflict and the booking keeps its bed.
func (c *Controller) Edit(ctx context.Context, id uint64, req EditRequest) (out model.Booking, err error) {
	ev := EvEdit
	defer func() { c.record(ev, err) }()

	if req.Resident != nil {
		if err := validateResident(*req.Resident); err != nil {
			return model.Booking{}, err
		}
	}
	if err := validateUploads(req.Uploads); err != nil {
		return model.Booking{}, err
	}
	cur, err := c.bookings.Get(ctx, id)
	if err != nil {
		return model.Booking{}, err
	}
	newBed := strings.TrimSpace(req.BedID)
	if newBed != "" && newBed != cur.BedID {
		ev = EvEditBed
	}
	tr, ok := TransitionFor(cur.Status, ev)
	if !ok {
		return model.Booking{}, fmt.Errorf("%w: cannot %s a %s booking", ErrInvalidTransition, ev, cur.Status)
	}

	b := cur
	oldBed := cur.BedID
	if req.Resident != nil {
		b.Resident = *req.Resident
	}
	if tr.Alloc == AllocTransfer {
		bed, err := c.beds.Bed(ctx, newBed)
		if err != nil {
			return model.Booking{}, fmt.Errorf("bed %q: %w", newBed, err)
		}
		if err := c.beds.Transfer(ctx, oldBed, bed.ID); err != nil {
			return model.Booking{}, err
		}
		b.BedID, b.RoomNumber = bed.ID, bed.RoomNumber
	}
	undoTransfer := func(cause error) {
		if tr.Alloc != AllocTransfer {
			return
		}
		if lostRace(cause) && !c.stillHolds(ctx, id, oldBed) {
			// the booking left oldBed meanwhile, so neither bed is ours
			// to keep
			c.releaseNow(ctx, b.BedID)
			return
		}
		if terr := c.beds.Transfer(context.WithoutCancel(ctx), b.BedID, oldBed); terr != nil {
			log.Printf("lifecycle: booking %d: undo transfer %s -> %s: %v", id, oldBed, b.BedID, terr)
		}
	}

	var replaced []string
	for _, u := range req.Uploads {
		docs := cur.Documents
		if old, _ := docs.Set(u.Field, ""); old != "" {
			replaced = append(replaced, old)
		}
	}
	stored, err := c.storeUploads(ctx, &b.Documents, req.Uploads)
	if err != nil {
		undoTransfer(err)
		return model.Booking{}, fmt.Errorf("%w: upload documents: %v", ErrPersistence, err)
	}
	if err := c.bookings.Update(ctx, &b, repository.ExpectOf(cur)); err != nil {
		c.discard(ctx, stored)
		undoTransfer(err)
		return model.Booking{}, persistErr(err)
	}
	c.discard(ctx, replaced)
	c.publish(ctx, queue.EventUpdated, b, oldBed)
	return b, nil
}

// PermanentDelete removes a soft-deleted booking and its documents.  The bed
// was already released when the booking entered the recycle bin.
func (c *Controller) PermanentDelete(ctx context.Context, id uint64) (err error) {
	defer func() { c.record(EvPurge, err) }()
	b, tr, err := c.load(ctx, id, EvPurge)
	if err != nil {
		return err
	}
	if err := c.bookings.Delete(ctx, b.ID, tr.From); err != nil {
		return persistErr(err)
	}
	c.discard(ctx, b.Documents.Keys())
	c.publish(ctx, queue.EventPurged, b, "")
	return nil
}

// PurgeExpired permanently deletes recycle-bin entries older than retention
// and returns how many were removed.
func (c *Controller) PurgeExpired(ctx context.Context, retention time.Duration) (int, error) {
	cutoff := c.now().Add(-retention)
	expired, err := c.bookings.List(ctx, repository.BookingFilter{
		Statuses:      []model.BookingStatus{model.BookingDeleted},
		DeletedBefore: cutoff,
	})
	if err != nil {
		return 0, err
	}
	var (
		n    int
		errs []error
	)
	for _, b := range expired {
		if err := c.PermanentDelete(ctx, b.ID); err != nil {
			if errors.Is(err, repository.ErrNotFound) || errors.Is(err, ErrInvalidTransition) {
				continue // restored or purged concurrently
			}
			errs = append(errs, fmt.Errorf("booking %d: %w", b.ID, err))
			continue
		}
		n++
	}
	return n, errors.Join(errs...)
}

// stillHolds reports whether booking id is live and still on bedID.  When the
// booking cannot be read it is assumed to hold the bed, since giving a claim
// back to a live booking is safer than freeing a bed it may still use.
func (c *Controller) stillHolds(ctx context.Context, id uint64, bedID string) bool {
	b, err := c.bookings.Get(context.WithoutCancel(ctx), id)
	if errors.Is(err, repository.ErrNotFound) {
		return false
	}
	if err != nil {
		log.Printf("lifecycle: booking %d: reread after conflict: %v", id, err)
		return true
	}
	return b.Status.Active() && b.BedID == bedID
}

// load fetches a booking and resolves the transition ev from its status.
func (c *Controller) load(ctx context.Context, id uint64, ev Event) (model.Booking, Transition, error) {
	b, err := c.bookings.Get(ctx, id)
	if err != nil {
		return model.Booking{}, Transition{}, err
	}
	tr, ok := TransitionFor(b.Status, ev)
	if !ok {
		return model.Booking{}, Transition{}, fmt.Errorf("%w: cannot %s a %s booking", ErrInvalidTransition, ev, b.Status)
	}
	return b, tr, nil
}

func (c *Controller) storeUploads(ctx context.Context, docs *model.Documents, uploads []Upload) ([]string, error) {
	var stored []string
	for _, u := range uploads {
		key := blob.NewKey(u.Filename)
		if _, err := c.blobs.Put(ctx, key, u.Body, u.ContentType); err != nil {
			c.discard(ctx, stored)
			return nil, err
		}
		stored = append(stored, key)
		docs.Set(u.Field, key)
	}
	return stored, nil
}

func (c *Controller) discard(ctx context.Context, keys []string) {
	if len(keys) == 0 {
		return
	}
	if err := blob.DeleteAll(context.WithoutCancel(ctx), c.blobs, keys); err != nil {
		log.Printf("lifecycle: delete documents: %v", err)
	}
}

// releaseNow compensates a claim made earlier in the same request.
func (c *Controller) releaseNow(ctx context.Context, bedID string) {
	if err := c.beds.Release(context.WithoutCancel(ctx), bedID); err != nil {
		log.Printf("lifecycle: compensating release of bed %s failed: %v", bedID, err)
		c.enqueue(bedID, err)
	}
}

// releaseEventually frees the bed of a booking whose new status is already
// stored.  Failures go to the retry queue rather than back to the caller.
func (c *Controller) releaseEventually(ctx context.Context, bookingID uint64, bedID string) {
	if err := c.beds.Release(ctx, bedID); err != nil {
		log.Printf("lifecycle: booking %d: release bed %s failed: %v", bookingID, bedID, err)
		c.enqueue(bedID, err)
	}
}

func (c *Controller) enqueue(bedID string, cause error) {
	if errors.Is(cause, repository.ErrNotFound) {
		log.Printf("lifecycle: integrity fault, bed %s does not exist", bedID)
		return
	}
	if c.retry == nil || !c.retry.Enqueue(bedID) {
		log.Printf("lifecycle: bed %s left claimed, run hostelctl release %s", bedID, bedID)
	}
}

func (c *Controller) publish(ctx context.Context, typ string, b model.Booking, prevBed string) {
	if c.events == nil {
		return
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
	defer cancel()
	ev := queue.BookingEvent{
		Type:        typ,
		BookingID:   b.ID,
		RegNo:       b.RegNo,
		StudentName: b.StudentName,
		Email:       b.Email,
		RoomNumber:  b.RoomNumber,
		BedID:       b.BedID,
		PrevBedID:   prevBed,
		Status:      string(b.Status),
		OccurredAt:  c.now().Format(time.RFC3339),
	}
	if err := c.events.Publish(pctx, ev); err != nil {
		log.Printf("lifecycle: publish %s for booking %d: %v", typ, b.ID, err)
	}
}

func (c *Controller) record(ev Event, err error) {
	c.metrics.Transition(string(ev), outcome(err))
}

func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, repository.ErrConflict), errors.Is(err, ErrInvalidTransition):
		return metrics.OutcomeConflict
	case errors.Is(err, repository.ErrNotFound):
		return metrics.OutcomeNotFound
	default:
		return metrics.OutcomeError
	}
}

// lostRace reports whether a conditional write failed because another writer
// changed or removed the booking first.
func lostRace(err error) bool {
	return errors.Is(err, repository.ErrConflict) || errors.Is(err, repository.ErrNotFound)
}

// persistErr keeps conflicts and missing rows distinguishable and folds
// everything else into ErrPersistence.
func persistErr(err error) error {
	if errors.Is(err, repository.ErrConflict) || errors.Is(err, repository.ErrNotFound) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrPersistence, err)
}

func validateResident(r model.Resident) error {
	var missing []string
	for _, f := range [...]struct{ name, value string }{
		{"student_name", r.StudentName},
		{"cnic", r.CNIC},
		{"contact", r.Contact},
		{"email", r.Email},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrValidation, strings.Join(missing, ", "))
	}
	return nil
}

// uploadTypes lists the accepted document extensions and the media types a
// client may declare for each.
var uploadTypes = map[string][]string{
	".png":  {"image/png"},
	".jpg":  {"image/jpeg", "image/pjpeg"},
	".jpeg": {"image/jpeg", "image/pjpeg"},
	".pdf":  {"application/pdf"},
}

func validateUploads(uploads []Upload) error {
	var docs model.Documents
	for _, u := range uploads {
		if _, ok := docs.Set(u.Field, "x"); !ok {
			return fmt.Errorf("%w: unknown document %q", ErrValidation, u.Field)
		}
		if u.Body == nil {
			return fmt.Errorf("%w: empty document %q", ErrValidation, u.Field)
		}
		if err := checkFileType(u); err != nil {
			return err
		}
	}
	return nil
}

// checkFileType accepts png, jpeg and pdf files.  A generic declared type
// such as application/octet-stream defers to the extension.
func checkFileType(u Upload) error {
	ext := strings.ToLower(filepath.Ext(strings.TrimSpace(u.Filename)))
	allowed, ok := uploadTypes[ext]
	if !ok {
		return fmt.Errorf("%w: %s must be a png, jpg, jpeg or pdf file", ErrValidation, u.Field)
	}
	declared, _, err := mime.ParseMediaType(u.ContentType)
	if err != nil || declared == "application/octet-stream" {
		return nil
	}
	for _, t := range allowed {
		if declared == t {
			return nil
		}
	}
	return fmt.Errorf("%w: %s is declared as %s, which does not match %s", ErrValidation, u.Field, declared, ext)
}
