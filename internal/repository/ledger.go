package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/event-reservation/internal/model"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// ledgerTimeout bounds one capacity transaction.
const ledgerTimeout = 10 * time.Second

// Ledger moves tickets between an event's registered_count and a
// reservation's status inside one transaction, so the counter always
// equals the tickets of confirmed and checked-in reservations.
//
// A started transaction runs to completion even when the caller's
// context is canceled; ledgerTimeout bounds it instead.
type Ledger struct {
	db           *sql.DB
	events       *EventRepo
	reservations *ReservationRepo

	// afterStatus runs between the status update and the counter update
	// of Release.
	afterStatus func()
}

// NewLedger binds a Ledger to db.
func NewLedger(db *sql.DB) *Ledger {
	return &Ledger{db: db, events: NewEventRepo(db), reservations: NewReservationRepo(db)}
}

func (l *Ledger) inTx(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) error) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ledgerTimeout)
	defer cancel()

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// Claim adds the reservation's tickets to its event and applies ch.  On
// ErrEventFull or ErrEventNotPublished the current event is returned
// with the error.  Nothing is written unless both steps succeed.
func (l *Ledger) Claim(ctx context.Context, res *model.Reservation, ch StatusChange) (*model.Event, error) {
	var event *model.Event
	err := l.inTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		e, err := l.events.TryIncrementTx(ctx, tx, res.EventID, res.NumberOfTickets)
		event = e
		if err != nil {
			return err
		}
		return l.reservations.UpdateStatusTx(ctx, tx, res.ID, ch)
	})
	return event, err
}

// Release applies ch and gives the reservation's tickets back to its
// event.  Nothing is written unless both steps succeed.
func (l *Ledger) Release(ctx context.Context, res *model.Reservation, ch StatusChange) error {
	return l.inTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := l.reservations.UpdateStatusTx(ctx, tx, res.ID, ch); err != nil {
			return err
		}
		if l.afterStatus != nil {
			l.afterStatus()
		}
		_, err := l.events.DecrementTx(ctx, tx, res.EventID, res.NumberOfTickets)
		return err
	})
}
