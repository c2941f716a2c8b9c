package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/event-reservation/internal/model"
	"github.com/iliyamo/event-reservation/internal/queue"
	"github.com/iliyamo/event-reservation/internal/repository"
)

// fakeEvents is an in-memory EventRegistry.  A single mutex makes
// TryIncrement atomic, mirroring the conditional UPDATE of the SQL store.
type fakeEvents struct {
	mu     sync.Mutex
	events map[uint64]*model.Event
	// beforeIncrement runs inside TryIncrement before the guard is
	// evaluated; tests use it to simulate a competing booking.
	beforeIncrement func(e *model.Event)
	// failDecrement, when set, is returned by Decrement.
	failDecrement error
}

func newFakeEvents() *fakeEvents { return &fakeEvents{events: map[uint64]*model.Event{}} }

func (f *fakeEvents) add(e model.Event) *model.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	if e.ID == 0 {
		e.ID = uint64(len(f.events) + 1)
	}
	cp := e
	f.events[e.ID] = &cp
	return &e
}

func (f *fakeEvents) get(id uint64) model.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.events[id]
}

func (f *fakeEvents) setPrice(id uint64, cents int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events[id].PriceCents = cents
}

func (f *fakeEvents) GetByID(_ context.Context, id uint64) (*model.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.events[id]
	if !ok {
		return nil, repository.ErrEventNotFound
	}
	cp := *e
	return &cp, nil
}

func (f *fakeEvents) TryIncrement(_ context.Context, id uint64, n int) (*model.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.events[id]
	if !ok {
		return nil, repository.ErrEventNotFound
	}
	if f.beforeIncrement != nil {
		f.beforeIncrement(e)
	}
	if e.Status != model.EventPublished {
		cp := *e
		return &cp, repository.ErrEventNotPublished
	}
	if e.RegisteredCount+n > e.Capacity {
		cp := *e
		return &cp, repository.ErrEventFull
	}
	e.RegisteredCount += n
	cp := *e
	return &cp, nil
}

// Decrement honours ctx the way a database call does.
func (f *fakeEvents) Decrement(ctx context.Context, id uint64, n int) (*model.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDecrement != nil {
		return nil, f.failDecrement
	}
	e, ok := f.events[id]
	if !ok {
		return nil, repository.ErrEventNotFound
	}
	e.RegisteredCount -= n
	if e.RegisteredCount < 0 {
		e.RegisteredCount = 0
	}
	cp := *e
	return &cp, nil
}

// fakeReservations is an in-memory ReservationStore with the same
// uniqueness and compare-and-swap rules as the SQL store.
type fakeReservations struct {
	mu     sync.Mutex
	rows   map[uint64]*model.Reservation
	nextID uint64
	// failUpdate, when set, is consulted before every status update.
	failUpdate func(id uint64, ch repository.StatusChange) error
	// organizers maps event id to organizer id for ListForOrganizer.
	organizers map[uint64]uint64
}

func newFakeReservations() *fakeReservations {
	return &fakeReservations{rows: map[uint64]*model.Reservation{}, organizers: map[uint64]uint64{}}
}

func clone(r *model.Reservation) *model.Reservation {
	cp := *r
	return &cp
}

func (f *fakeReservations) Create(_ context.Context, r *model.Reservation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.rows {
		if row.ReservationNumber == r.ReservationNumber || row.QRCode == r.QRCode {
			return repository.ErrConflict
		}
		if r.Status.IsActive() && row.Status.IsActive() && row.UserID == r.UserID && row.EventID == r.EventID {
			return repository.ErrDuplicateActive
		}
	}
	f.nextID++
	r.ID = f.nextID
	f.rows[r.ID] = clone(r)
	return nil
}

func (f *fakeReservations) find(match func(*model.Reservation) bool) (*model.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.rows {
		if match(row) {
			return clone(row), nil
		}
	}
	return nil, repository.ErrReservationNotFound
}

func (f *fakeReservations) GetByID(_ context.Context, id uint64) (*model.Reservation, error) {
	return f.find(func(r *model.Reservation) bool { return r.ID == id })
}

func (f *fakeReservations) GetByNumber(_ context.Context, number string) (*model.Reservation, error) {
	return f.find(func(r *model.Reservation) bool { return r.ReservationNumber == number })
}

func (f *fakeReservations) GetByQRCode(_ context.Context, code string) (*model.Reservation, error) {
	return f.find(func(r *model.Reservation) bool { return r.QRCode == code })
}

func (f *fakeReservations) FindActive(_ context.Context, userID, eventID uint64) (*model.Reservation, error) {
	return f.find(func(r *model.Reservation) bool {
		return r.UserID == userID && r.EventID == eventID && r.Status.IsActive()
	})
}

func (f *fakeReservations) UpdateStatus(_ context.Context, id uint64, ch repository.StatusChange) error {
	if f.failUpdate != nil {
		if err := f.failUpdate(id, ch); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[id]
	if !ok {
		return repository.ErrReservationNotFound
	}
	if r.Status != ch.From {
		return repository.ErrStaleReservation
	}
	at := ch.At
	r.Status = ch.To
	r.UpdatedAt = at
	switch ch.To {
	case model.ReservationConfirmed:
		r.ConfirmedAt = &at
	case model.ReservationCanceled:
		r.CanceledAt = &at
	case model.ReservationCheckedIn:
		r.CheckedInAt = &at
	}
	if ch.CancelReason != nil {
		reason := *ch.CancelReason
		r.CancelReason = &reason
	}
	return nil
}

func (f *fakeReservations) list(match func(*model.Reservation) bool, flt repository.ReservationFilter) ([]model.Reservation, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Reservation{}
	for _, r := range f.rows {
		if !match(r) {
			continue
		}
		if flt.EventID != 0 && r.EventID != flt.EventID {
			continue
		}
		if flt.Status != "" && r.Status != flt.Status {
			continue
		}
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, int64(len(out)), nil
}

func (f *fakeReservations) ListByUser(_ context.Context, userID uint64, flt repository.ReservationFilter) ([]model.Reservation, int64, error) {
	return f.list(func(r *model.Reservation) bool { return r.UserID == userID }, flt)
}

func (f *fakeReservations) ListForOrganizer(_ context.Context, organizerID uint64, flt repository.ReservationFilter) ([]model.Reservation, int64, error) {
	return f.list(func(r *model.Reservation) bool { return f.organizers[r.EventID] == organizerID }, flt)
}

func (f *fakeReservations) all() []model.Reservation {
	out, _, _ := f.list(func(*model.Reservation) bool { return true }, repository.ReservationFilter{})
	return out
}

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.ReservationEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev queue.ReservationEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) statuses() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.ToStatus)
	}
	return out
}

// clock is a settable time source.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

var errBoom = errors.New("boom")

var (
	admin = model.Actor{UserID: 1, Email: "admin@example.com", Name: "Admin", Role: model.RoleAdmin}
)

func user(id uint64) model.Actor {
	return model.Actor{UserID: id, Email: "user@example.com", Name: "User", Role: model.RoleUser}
}

// fixture bundles an engine with its fakes and a fixed clock.
type fixture struct {
	events *fakeEvents
	store  *fakeReservations
	pub    *recordingPublisher
	clock  *clock
	svc    *ReservationService
}

var baseTime = time.Date(2030, 6, 1, 12, 0, 0, 0, time.UTC)

func newFixture() *fixture {
	f := &fixture{
		events: newFakeEvents(),
		store:  newFakeReservations(),
		pub:    &recordingPublisher{},
		clock:  &clock{t: baseTime},
	}
	f.svc = NewReservationService(f.events, f.store, nil, NewLocalLocker(), f.pub, nil, DefaultPolicy())
	f.svc.Now = f.clock.Now
	return f
}

// publishedEvent adds a published event starting `in` after the fixture
// clock and lasting three hours.
func (f *fixture) publishedEvent(capacity, registered int, in time.Duration) *model.Event {
	start := f.clock.Now().Add(in)
	return f.events.add(model.Event{
		OrganizerID:     admin.UserID,
		Title:           "Gophercon",
		Location:        "Hall 1",
		Capacity:        capacity,
		RegisteredCount: registered,
		Status:          model.EventPublished,
		StartDate:       start,
		EndDate:         start.Add(3 * time.Hour),
		PriceCents:      2500,
	})
}
