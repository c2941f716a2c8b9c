package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/iliyamo/event-reservation/internal/model"
	"github.com/iliyamo/event-reservation/internal/repository"
)

// CapacityLedger changes a reservation's status together with its
// event's registered count.  Claim is used for pending to confirmed and
// Release for confirmed to canceled.  Either both writes happen or
// neither does.
type CapacityLedger interface {
	Claim(ctx context.Context, res *model.Reservation, ch repository.StatusChange) (*model.Event, error)
	Release(ctx context.Context, res *model.Reservation, ch repository.StatusChange) error
}

// storeLedger builds a CapacityLedger from stores that have no shared
// transaction.  A failed second step is undone with a compensating write.
// Both follow-up writes ignore the caller's cancellation.
type storeLedger struct {
	events       EventRegistry
	reservations ReservationStore
	log          *zap.Logger
}

func (l storeLedger) Claim(ctx context.Context, res *model.Reservation, ch repository.StatusChange) (*model.Event, error) {
	event, err := l.events.TryIncrement(ctx, res.EventID, res.NumberOfTickets)
	if err != nil {
		return event, err
	}
	if err := l.reservations.UpdateStatus(ctx, res.ID, ch); err != nil {
		if _, derr := l.events.Decrement(context.WithoutCancel(ctx), res.EventID, res.NumberOfTickets); derr != nil {
			l.log.Error("failed to release capacity after lost confirmation",
				zap.String("reservation_number", res.ReservationNumber), zap.Error(derr))
			return nil, errors.Join(err, derr)
		}
		return nil, err
	}
	return event, nil
}

func (l storeLedger) Release(ctx context.Context, res *model.Reservation, ch repository.StatusChange) error {
	if err := l.reservations.UpdateStatus(ctx, res.ID, ch); err != nil {
		return err
	}
	bg := context.WithoutCancel(ctx)
	if _, err := l.events.Decrement(bg, res.EventID, res.NumberOfTickets); err != nil {
		undo := repository.StatusChange{From: ch.To, To: ch.From, At: ch.At}
		if uerr := l.reservations.UpdateStatus(bg, res.ID, undo); uerr != nil {
			l.log.Error("capacity not released and status not restored",
				zap.String("reservation_number", res.ReservationNumber),
				zap.Int("tickets", res.NumberOfTickets), zap.Error(err), zap.NamedError("restore_error", uerr))
			return errors.Join(err, uerr)
		}
		return err
	}
	return nil
}
