package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/event-reservation/internal/model"
	"github.com/iliyamo/event-reservation/internal/queue"
	"github.com/iliyamo/event-reservation/internal/repository"
)

// EventRegistry is the part of the event store the lifecycle engine
// depends on.  TryIncrement and Decrement must be atomic at the storage
// layer; the engine only reaches them through a CapacityLedger.
type EventRegistry interface {
	GetByID(ctx context.Context, id uint64) (*model.Event, error)
	TryIncrement(ctx context.Context, id uint64, n int) (*model.Event, error)
	Decrement(ctx context.Context, id uint64, n int) (*model.Event, error)
}

// ReservationStore persists reservations.  UpdateStatus must be a
// compare-and-swap on the current status.
type ReservationStore interface {
	Create(ctx context.Context, r *model.Reservation) error
	GetByID(ctx context.Context, id uint64) (*model.Reservation, error)
	GetByNumber(ctx context.Context, number string) (*model.Reservation, error)
	GetByQRCode(ctx context.Context, code string) (*model.Reservation, error)
	FindActive(ctx context.Context, userID, eventID uint64) (*model.Reservation, error)
	UpdateStatus(ctx context.Context, id uint64, ch repository.StatusChange) error
	ListByUser(ctx context.Context, userID uint64, f repository.ReservationFilter) ([]model.Reservation, int64, error)
	ListForOrganizer(ctx context.Context, organizerID uint64, f repository.ReservationFilter) ([]model.Reservation, int64, error)
}

// LifecyclePublisher receives an event after every successful status change.
type LifecyclePublisher interface {
	Publish(ctx context.Context, ev queue.ReservationEvent) error
}

// NopPublisher discards lifecycle events.
type NopPublisher struct{}

// Publish implements LifecyclePublisher.
func (NopPublisher) Publish(context.Context, queue.ReservationEvent) error { return nil }

// Policy holds the business time windows and limits.
type Policy struct {
	// CancelWindow is how long before the event start a non-admin may
	// still cancel.
	CancelWindow time.Duration
	// CheckInLead is how long before the event start check-in opens.
	CheckInLead time.Duration
	// MaxTickets caps numberOfTickets per reservation.
	MaxTickets int
}

// DefaultPolicy returns the standard policy: 24h cancel window, check-in
// opening 2h before start and at most 10 tickets per reservation.
func DefaultPolicy() Policy {
	return Policy{CancelWindow: 24 * time.Hour, CheckInLead: 2 * time.Hour, MaxTickets: 10}
}

// autoConfirmFailedReason is recorded on a pending reservation whose
// automatic confirmation failed inside Create.
const autoConfirmFailedReason = "auto-confirmation failed"

// ReservationService is the reservation lifecycle engine.  It creates
// reservations and moves them through pending, confirmed, canceled,
// checked_in, no_show and refunded while keeping the event's registered
// count equal to the tickets held by confirmed and checked-in
// reservations (no-shows keep their tickets).
type ReservationService struct {
	events       EventRegistry
	reservations ReservationStore
	ledger       CapacityLedger
	locker       Locker
	publisher    LifecyclePublisher
	log          *zap.Logger
	policy       Policy

	// Now is the clock used for every business time check.
	Now func() time.Time
}

// NewReservationService wires the engine.  SQL deployments pass a
// repository.Ledger; a nil ledger composes the two stores with
// compensating writes.  A nil locker becomes an in-process LocalLocker,
// a nil publisher a NopPublisher and a nil logger a no-op logger.
func NewReservationService(events EventRegistry, reservations ReservationStore, ledger CapacityLedger, locker Locker, pub LifecyclePublisher, log *zap.Logger, policy Policy) *ReservationService {
	if events == nil || reservations == nil {
		panic("nil store passed to NewReservationService")
	}
	if locker == nil {
		locker = NewLocalLocker()
	}
	if pub == nil {
		pub = NopPublisher{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	if ledger == nil {
		ledger = storeLedger{events: events, reservations: reservations, log: log}
	}
	def := DefaultPolicy()
	if policy.CancelWindow <= 0 {
		policy.CancelWindow = def.CancelWindow
	}
	if policy.CheckInLead < 0 {
		policy.CheckInLead = def.CheckInLead
	}
	if policy.MaxTickets <= 0 {
		policy.MaxTickets = def.MaxTickets
	}
	return &ReservationService{
		events:       events,
		reservations: reservations,
		ledger:       ledger,
		locker:       locker,
		publisher:    pub,
		log:          log,
		policy:       policy,
		Now:          func() time.Time { return time.Now().UTC() },
	}
}

// Policy returns the active policy.
func (s *ReservationService) Policy() Policy { return s.policy }

func (s *ReservationService) now() time.Time { return s.Now().UTC() }

// CreateInput is the request to book tickets for an event.
// NumberOfTickets defaults to 1 when zero.
type CreateInput struct {
	EventID         uint64
	NumberOfTickets int
}

// Create books tickets for the acting user.  The new reservation is
// stored as pending and immediately confirmed; the caller only sees the
// confirmed reservation or the error that prevented confirmation.
func (s *ReservationService) Create(ctx context.Context, actor model.Actor, in CreateInput) (*model.Reservation, error) {
	tickets := in.NumberOfTickets
	if tickets == 0 {
		tickets = 1
	}
	if tickets < 1 || tickets > s.policy.MaxTickets {
		return nil, invalidInput("number of tickets must be between 1 and %d", s.policy.MaxTickets)
	}
	if in.EventID == 0 {
		return nil, invalidInput("event id is required")
	}

	// Serialize create requests of one user for one event.  The unique
	// active key in the store still rejects duplicates if the lock is lost.
	unlock, err := s.locker.Lock(ctx, fmt.Sprintf("reservation:%d:%d", actor.UserID, in.EventID))
	switch {
	case errors.Is(err, ErrLocked):
		return nil, conflict("another reservation request for this event is already in progress")
	case err != nil:
		s.log.Warn("reservation lock unavailable, relying on database constraint",
			zap.Uint64("user_id", actor.UserID), zap.Uint64("event_id", in.EventID), zap.Error(err))
	default:
		defer unlock()
	}

	event, err := s.events.GetByID(ctx, in.EventID)
	if err != nil {
		return nil, s.eventErr(err)
	}
	now := s.now()
	if event.Status != model.EventPublished {
		return nil, invalidState("event is not open for reservations")
	}
	if event.HasStarted(now) {
		return nil, invalidState("event has already started")
	}
	if err := capacityErr(event.AvailableSpots(), tickets); err != nil {
		return nil, err
	}

	if _, err := s.reservations.FindActive(ctx, actor.UserID, event.ID); err == nil {
		return nil, conflict("you already have an active reservation for this event")
	} else if !errors.Is(err, repository.ErrReservationNotFound) {
		return nil, err
	}

	number, err := NewReservationNumber(now)
	if err != nil {
		return nil, err
	}
	res := &model.Reservation{
		ReservationNumber: number,
		EventID:           event.ID,
		EventTitle:        event.Title,
		EventDate:         event.StartDate,
		EventLocation:     event.Location,
		UserID:            actor.UserID,
		UserEmail:         actor.Email,
		UserName:          actor.Name,
		NumberOfTickets:   tickets,
		TotalPriceCents:   event.PriceCents * int64(tickets),
		Status:            model.ReservationPending,
		QRCode:            NewQRCodeToken(number),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.reservations.Create(ctx, res); err != nil {
		if errors.Is(err, repository.ErrDuplicateActive) {
			return nil, conflict("you already have an active reservation for this event")
		}
		return nil, err
	}
	s.publish(ctx, actor, res, "", "")

	if err := s.confirm(ctx, actor, res); err != nil {
		reason := autoConfirmFailedReason
		if cerr := s.reservations.UpdateStatus(context.WithoutCancel(ctx), res.ID, repository.StatusChange{
			From: model.ReservationPending, To: model.ReservationCanceled, At: s.now(), CancelReason: &reason,
		}); cerr != nil {
			s.log.Error("failed to release pending reservation after confirmation failure",
				zap.String("reservation_number", res.ReservationNumber), zap.Error(cerr))
		}
		return nil, err
	}
	s.log.Info("reservation created",
		zap.String("reservation_number", res.ReservationNumber),
		zap.Uint64("event_id", res.EventID),
		zap.Uint64("user_id", res.UserID),
		zap.Int("tickets", res.NumberOfTickets))
	return res, nil
}

// Confirm claims capacity for a pending reservation.  It is normally run
// by Create; admins may call it for reservations left pending.
func (s *ReservationService) Confirm(ctx context.Context, actor model.Actor, id uint64) (*model.Reservation, error) {
	if !actor.IsAdmin() {
		return nil, forbidden("only administrators can confirm reservations")
	}
	res, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.confirm(ctx, actor, res); err != nil {
		return nil, err
	}
	return res, nil
}

// confirm claims the whole ticket count on the event and flips the
// reservation to confirmed as one ledger operation.
func (s *ReservationService) confirm(ctx context.Context, actor model.Actor, res *model.Reservation) error {
	if res.Status != model.ReservationPending {
		return invalidState("only pending reservations can be confirmed (status: %s)", res.Status)
	}
	now := s.now()
	event, err := s.ledger.Claim(ctx, res, repository.StatusChange{
		From: model.ReservationPending, To: model.ReservationConfirmed, At: now,
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrEventFull) && event != nil:
			if cerr := capacityErr(event.AvailableSpots(), res.NumberOfTickets); cerr != nil {
				return cerr
			}
			return conflict("this event is fully booked")
		case errors.Is(err, repository.ErrEventFull):
			return conflict("this event is fully booked")
		case errors.Is(err, repository.ErrEventNotPublished):
			return invalidState("event is not open for reservations")
		case errors.Is(err, repository.ErrEventNotFound):
			return s.eventErr(err)
		default:
			return s.reservationErr(err)
		}
	}
	res.Status = model.ReservationConfirmed
	res.ConfirmedAt = &now
	res.UpdatedAt = now
	s.publish(ctx, actor, res, model.ReservationPending, "")
	return nil
}

// Cancel cancels a reservation on behalf of its owner or an admin.
// Non-admins must cancel at least Policy.CancelWindow before the event
// starts.  Canceling a confirmed reservation releases its tickets.
func (s *ReservationService) Cancel(ctx context.Context, actor model.Actor, id uint64, reason string) (*model.Reservation, error) {
	res, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanManage(res) {
		return nil, forbidden("you are not allowed to cancel this reservation")
	}
	switch res.Status {
	case model.ReservationCanceled:
		return nil, invalidState("reservation is already canceled")
	case model.ReservationRefunded:
		return nil, invalidState("reservation has already been refunded")
	case model.ReservationCheckedIn:
		return nil, invalidState("reservation cannot be canceled after check-in")
	}
	if !res.Status.CanTransitionTo(model.ReservationCanceled) {
		return nil, invalidState("a %s reservation cannot be canceled", res.Status)
	}

	event, err := s.events.GetByID(ctx, res.EventID)
	if err != nil {
		return nil, s.eventErr(err)
	}
	now := s.now()
	if !actor.IsAdmin() && event.StartDate.Sub(now) < s.policy.CancelWindow {
		return nil, invalidState("cancellation window closed: reservations can only be canceled at least %s before the event",
			humanDuration(s.policy.CancelWindow))
	}

	reason = strings.TrimSpace(reason)
	if reason == "" {
		if actor.IsAdmin() && !actor.Owns(res) {
			reason = "canceled by administrator"
		} else {
			reason = "canceled by user"
		}
	}
	prior := res.Status
	ch := repository.StatusChange{From: prior, To: model.ReservationCanceled, At: now, CancelReason: &reason}
	if prior == model.ReservationConfirmed {
		err = s.ledger.Release(ctx, res, ch)
	} else {
		err = s.reservations.UpdateStatus(ctx, res.ID, ch)
	}
	if err != nil {
		return nil, s.eventErr(s.reservationErr(err))
	}
	res.Status = model.ReservationCanceled
	res.CancelReason = &reason
	res.CanceledAt = &now
	res.UpdatedAt = now
	s.publish(ctx, actor, res, prior, reason)
	return res, nil
}

// CheckIn marks a confirmed reservation as redeemed at the door.  The
// check-in window runs from Policy.CheckInLead before the event start
// until the event end.
func (s *ReservationService) CheckIn(ctx context.Context, actor model.Actor, id uint64) (*model.Reservation, error) {
	if !actor.IsAdmin() {
		return nil, forbidden("only administrators can check in reservations")
	}
	res, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.checkIn(ctx, actor, res)
}

func (s *ReservationService) checkIn(ctx context.Context, actor model.Actor, res *model.Reservation) (*model.Reservation, error) {
	if res.Status == model.ReservationCheckedIn {
		return nil, invalidState("reservation is already checked in")
	}
	if res.Status != model.ReservationConfirmed {
		return nil, invalidState("only confirmed reservations can be checked in (status: %s)", res.Status)
	}
	event, err := s.events.GetByID(ctx, res.EventID)
	if err != nil {
		return nil, s.eventErr(err)
	}
	now := s.now()
	opens := event.StartDate.Add(-s.policy.CheckInLead)
	if now.Before(opens) {
		return nil, invalidState("too early: check-in opens at %s", opens.Format(time.RFC3339))
	}
	if now.After(event.EndDate) {
		return nil, invalidState("check-in closed: the event ended at %s", event.EndDate.Format(time.RFC3339))
	}
	return s.transition(ctx, actor, res, model.ReservationCheckedIn, now)
}

// MarkNoShow records that a confirmed reservation's holder did not
// attend.  The tickets stay counted against the event.
func (s *ReservationService) MarkNoShow(ctx context.Context, actor model.Actor, id uint64) (*model.Reservation, error) {
	if !actor.IsAdmin() {
		return nil, forbidden("only administrators can mark no-shows")
	}
	res, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.Status != model.ReservationConfirmed {
		return nil, invalidState("only confirmed reservations can be marked as no-show (status: %s)", res.Status)
	}
	return s.transition(ctx, actor, res, model.ReservationNoShow, s.now())
}

// Refund marks a canceled or no-show reservation as refunded.  Capacity
// is not touched.
func (s *ReservationService) Refund(ctx context.Context, actor model.Actor, id uint64) (*model.Reservation, error) {
	if !actor.IsAdmin() {
		return nil, forbidden("only administrators can refund reservations")
	}
	res, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !res.Status.CanTransitionTo(model.ReservationRefunded) {
		return nil, invalidState("only canceled or no-show reservations can be refunded (status: %s)", res.Status)
	}
	return s.transition(ctx, actor, res, model.ReservationRefunded, s.now())
}

// transition performs a status change that does not affect capacity.
func (s *ReservationService) transition(ctx context.Context, actor model.Actor, res *model.Reservation, to model.ReservationStatus, now time.Time) (*model.Reservation, error) {
	if !res.Status.CanTransitionTo(to) {
		return nil, invalidState("cannot move a %s reservation to %s", res.Status, to)
	}
	prior := res.Status
	if err := s.reservations.UpdateStatus(ctx, res.ID, repository.StatusChange{From: prior, To: to, At: now}); err != nil {
		return nil, s.reservationErr(err)
	}
	res.Status = to
	res.UpdatedAt = now
	if to == model.ReservationCheckedIn {
		res.CheckedInAt = &now
	}
	s.publish(ctx, actor, res, prior, "")
	return res, nil
}

// Get returns one reservation visible to the actor.
func (s *ReservationService) Get(ctx context.Context, actor model.Actor, id uint64) (*model.Reservation, error) {
	res, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanManage(res) {
		return nil, forbidden("you are not allowed to view this reservation")
	}
	return res, nil
}

// GetByNumber looks a reservation up by its reservation number.  It is
// an admin support tool.
func (s *ReservationService) GetByNumber(ctx context.Context, actor model.Actor, number string) (*model.Reservation, error) {
	if !actor.IsAdmin() {
		return nil, forbidden("only administrators can look up reservations by number")
	}
	res, err := s.reservations.GetByNumber(ctx, number)
	if err != nil {
		return nil, s.reservationErr(err)
	}
	return res, nil
}

// ListMine lists the actor's own reservations.
func (s *ReservationService) ListMine(ctx context.Context, actor model.Actor, f repository.ReservationFilter) ([]model.Reservation, int64, error) {
	return s.reservations.ListByUser(ctx, actor.UserID, f)
}

// ListForAdmin lists reservations for the events the admin organizes.
func (s *ReservationService) ListForAdmin(ctx context.Context, actor model.Actor, f repository.ReservationFilter) ([]model.Reservation, int64, error) {
	if !actor.IsAdmin() {
		return nil, 0, forbidden("only administrators can list event reservations")
	}
	return s.reservations.ListForOrganizer(ctx, actor.UserID, f)
}

func (s *ReservationService) load(ctx context.Context, id uint64) (*model.Reservation, error) {
	res, err := s.reservations.GetByID(ctx, id)
	if err != nil {
		return nil, s.reservationErr(err)
	}
	return res, nil
}

func (s *ReservationService) eventErr(err error) error {
	if errors.Is(err, repository.ErrEventNotFound) {
		return notFound("event not found")
	}
	return err
}

func (s *ReservationService) reservationErr(err error) error {
	switch {
	case errors.Is(err, repository.ErrReservationNotFound):
		return notFound("reservation not found")
	case errors.Is(err, repository.ErrStaleReservation):
		return invalidState("reservation was modified by another request, please retry")
	}
	return err
}

// publish emits a lifecycle event.  Failures are logged, never returned.
func (s *ReservationService) publish(ctx context.Context, actor model.Actor, res *model.Reservation, from model.ReservationStatus, reason string) {
	ev := queue.ReservationEvent{
		ReservationID:     res.ID,
		ReservationNumber: res.ReservationNumber,
		EventID:           res.EventID,
		UserID:            res.UserID,
		ActorID:           actor.UserID,
		Tickets:           res.NumberOfTickets,
		TotalPriceCents:   res.TotalPriceCents,
		FromStatus:        string(from),
		ToStatus:          string(res.Status),
		Reason:            reason,
		OccurredAt:        res.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.log.Warn("failed to publish reservation lifecycle event",
			zap.String("reservation_number", res.ReservationNumber),
			zap.String("to_status", ev.ToStatus), zap.Error(err))
	}
}

// capacityErr returns the Conflict error for a request of want tickets
// against available spots, or nil when it fits.
func capacityErr(available, want int) error {
	if available >= want {
		return nil
	}
	if available <= 0 {
		return conflict("this event is fully booked")
	}
	return conflict("only %d spot(s) remaining, %d requested", available, want)
}

func humanDuration(d time.Duration) string {
	if d%time.Hour == 0 {
		return fmt.Sprintf("%d hours", int(d/time.Hour))
	}
	return d.String()
}
