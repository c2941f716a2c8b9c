package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/event-reservation/internal/model"
	"github.com/iliyamo/event-reservation/internal/repository"
)

// EventStore is the persistence needed by the event catalog.
type EventStore interface {
	Create(ctx context.Context, e *model.Event) error
	GetByID(ctx context.Context, id uint64) (*model.Event, error)
	UpdateDetails(ctx context.Context, e *model.Event) error
	SetStatus(ctx context.Context, id uint64, from, to model.EventStatus) error
	ListByOrganizer(ctx context.Context, organizerID uint64, page, pageSize int) ([]model.Event, int64, error)
	SearchPublished(ctx context.Context, q repository.EventSearchQuery) ([]repository.PublicEventRow, int64, error)
}

// EventService manages events on behalf of their organizers and serves
// the public catalog.
type EventService struct {
	store EventStore
	log   *zap.Logger
	Now   func() time.Time
}

// NewEventService returns an EventService.
func NewEventService(store EventStore, log *zap.Logger) *EventService {
	if log == nil {
		log = zap.NewNop()
	}
	return &EventService{store: store, log: log, Now: func() time.Time { return time.Now().UTC() }}
}

// EventInput carries the editable fields of an event.
type EventInput struct {
	Title       string
	Description string
	Location    string
	Capacity    int
	StartDate   time.Time
	EndDate     time.Time
	PriceCents  int64
}

func (in *EventInput) normalize() error {
	in.Title = strings.TrimSpace(in.Title)
	in.Location = strings.TrimSpace(in.Location)
	in.Description = strings.TrimSpace(in.Description)
	switch {
	case in.Title == "":
		return invalidInput("title is required")
	case in.Capacity <= 0:
		return invalidInput("capacity must be positive")
	case in.PriceCents < 0:
		return invalidInput("price cannot be negative")
	case in.StartDate.IsZero() || in.EndDate.IsZero():
		return invalidInput("start_date and end_date are required")
	case !in.EndDate.After(in.StartDate):
		return invalidInput("end_date must be after start_date")
	}
	in.StartDate = in.StartDate.UTC()
	in.EndDate = in.EndDate.UTC()
	return nil
}

// Create stores a new draft event organized by the acting admin.
func (s *EventService) Create(ctx context.Context, actor model.Actor, in EventInput) (*model.Event, error) {
	if !actor.IsAdmin() {
		return nil, forbidden("only administrators can create events")
	}
	if err := in.normalize(); err != nil {
		return nil, err
	}
	if !in.StartDate.After(s.Now()) {
		return nil, invalidInput("start_date must be in the future")
	}
	e := &model.Event{
		OrganizerID: actor.UserID,
		Title:       in.Title,
		Description: in.Description,
		Location:    in.Location,
		Capacity:    in.Capacity,
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		PriceCents:  in.PriceCents,
	}
	if err := s.store.Create(ctx, e); err != nil {
		return nil, err
	}
	s.log.Info("event created", zap.Uint64("event_id", e.ID), zap.Uint64("organizer_id", e.OrganizerID))
	return e, nil
}

// Get returns an event to its organizer.
func (s *EventService) Get(ctx context.Context, actor model.Actor, id uint64) (*model.Event, error) {
	e, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrEventNotFound) {
			return nil, notFound("event not found")
		}
		return nil, err
	}
	if !actor.IsAdmin() || e.OrganizerID != actor.UserID {
		return nil, forbidden("you do not organize this event")
	}
	return e, nil
}

// GetPublic returns a published event.  Drafts and canceled events are
// reported as not found.
func (s *EventService) GetPublic(ctx context.Context, id uint64) (*model.Event, error) {
	e, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrEventNotFound) {
			return nil, notFound("event not found")
		}
		return nil, err
	}
	if e.Status != model.EventPublished {
		return nil, notFound("event not found")
	}
	return e, nil
}

// Update overwrites the editable fields of a draft or published event.
// Reservations keep the title, date, location and price they were
// booked with.
func (s *EventService) Update(ctx context.Context, actor model.Actor, id uint64, in EventInput) (*model.Event, error) {
	e, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := in.normalize(); err != nil {
		return nil, err
	}
	if e.Status == model.EventCanceled {
		return nil, invalidState("canceled events cannot be edited")
	}
	if in.Capacity < e.RegisteredCount {
		return nil, conflict("capacity cannot be lower than the %d ticket(s) already registered", e.RegisteredCount)
	}
	e.Title, e.Description, e.Location = in.Title, in.Description, in.Location
	e.Capacity, e.PriceCents = in.Capacity, in.PriceCents
	e.StartDate, e.EndDate = in.StartDate, in.EndDate
	if err := s.store.UpdateDetails(ctx, e); err != nil {
		switch {
		case errors.Is(err, repository.ErrEventClosed):
			return nil, invalidState("canceled events cannot be edited")
		case errors.Is(err, repository.ErrConflict):
			return nil, conflict("capacity cannot be lower than the tickets already registered")
		case errors.Is(err, repository.ErrEventNotFound):
			return nil, notFound("event not found")
		}
		return nil, err
	}
	return s.store.GetByID(ctx, id)
}

// Publish opens a draft event for reservations.
func (s *EventService) Publish(ctx context.Context, actor model.Actor, id uint64) (*model.Event, error) {
	return s.setStatus(ctx, actor, id, model.EventPublished)
}

// Cancel closes a published event.  Existing reservations are left as
// they are; admins cancel or refund them individually.
func (s *EventService) Cancel(ctx context.Context, actor model.Actor, id uint64) (*model.Event, error) {
	return s.setStatus(ctx, actor, id, model.EventCanceled)
}

func (s *EventService) setStatus(ctx context.Context, actor model.Actor, id uint64, to model.EventStatus) (*model.Event, error) {
	e, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !e.Status.CanTransitionTo(to) {
		return nil, invalidState("a %s event cannot be moved to %s", e.Status, to)
	}
	if err := s.store.SetStatus(ctx, id, e.Status, to); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, invalidState("event was modified by another request, please retry")
		}
		return nil, err
	}
	s.log.Info("event status changed", zap.Uint64("event_id", id),
		zap.String("from", string(e.Status)), zap.String("to", string(to)))
	return s.store.GetByID(ctx, id)
}

// ListMine lists the events organized by the acting admin.
func (s *EventService) ListMine(ctx context.Context, actor model.Actor, page, pageSize int) ([]model.Event, int64, error) {
	if !actor.IsAdmin() {
		return nil, 0, forbidden("only administrators organize events")
	}
	return s.store.ListByOrganizer(ctx, actor.UserID, page, pageSize)
}

// Search lists published events for the public catalog.
func (s *EventService) Search(ctx context.Context, q repository.EventSearchQuery) ([]repository.PublicEventRow, int64, error) {
	if q.Now.IsZero() {
		q.Now = s.Now()
	}
	return s.store.SearchPublished(ctx, q)
}
