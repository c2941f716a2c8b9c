// Package repository contains data access logic for events.  The events
// table owns the authoritative registered_count of every event; it is
// only ever changed through TryIncrement and Decrement, both of which are
// single conditional UPDATE statements so that concurrent reservations
// can never push the counter past capacity.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/event-reservation/internal/model"
)

// EventRepo manages persistence for events.
type EventRepo struct {
	db *sql.DB
}

// NewEventRepo constructs an EventRepo with the given DB handle.
func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

// DB exposes the underlying sql.DB.
func (r *EventRepo) DB() *sql.DB { return r.db }

const eventColumns = `id, organizer_id, title, description, location, capacity, registered_count,
	status, start_date, end_date, price_cents, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*model.Event, error) {
	var e model.Event
	var status string
	if err := row.Scan(
		&e.ID, &e.OrganizerID, &e.Title, &e.Description, &e.Location, &e.Capacity, &e.RegisteredCount,
		&status, &e.StartDate, &e.EndDate, &e.PriceCents, &e.CreatedAt, &e.UpdatedAt,
	); err != nil {
		return nil, err
	}
	e.Status = model.EventStatus(status)
	e.StartDate = e.StartDate.UTC()
	e.EndDate = e.EndDate.UTC()
	return &e, nil
}

// Create inserts a new draft event and assigns the generated ID,
// status and timestamps back to e.  RegisteredCount always starts at 0.
func (r *EventRepo) Create(ctx context.Context, e *model.Event) error {
	now := time.Now().UTC()
	const q = `INSERT INTO events (organizer_id, title, description, location, capacity, registered_count,
		status, start_date, end_date, price_cents, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 0, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q,
		e.OrganizerID, e.Title, e.Description, e.Location, e.Capacity,
		string(model.EventDraft), e.StartDate.UTC(), e.EndDate.UTC(), e.PriceCents, now, now)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = uint64(id)
	e.RegisteredCount = 0
	e.Status = model.EventDraft
	e.CreatedAt = now
	e.UpdatedAt = now
	return nil
}

// GetByID retrieves an event by its ID.  It returns ErrEventNotFound if
// there is no matching row.
func (r *EventRepo) GetByID(ctx context.Context, id uint64) (*model.Event, error) {
	return getEvent(ctx, r.db, id)
}

func getEvent(ctx context.Context, q dbtx, id uint64) (*model.Event, error) {
	e, err := scanEvent(q.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEventNotFound
	}
	return e, err
}

// UpdateDetails overwrites the editable fields of an event.  Canceled
// events cannot be edited (ErrEventClosed) and the capacity may never
// drop below the number of tickets already registered (ErrConflict).
// The guard is part of the UPDATE so a concurrent reservation cannot
// slip in between the check and the write.
func (r *EventRepo) UpdateDetails(ctx context.Context, e *model.Event) error {
	now := time.Now().UTC()
	const q = `UPDATE events
		SET title = ?, description = ?, location = ?, capacity = ?, start_date = ?, end_date = ?,
		    price_cents = ?, updated_at = ?
		WHERE id = ? AND status <> ? AND registered_count <= ?`
	res, err := r.db.ExecContext(ctx, q,
		e.Title, e.Description, e.Location, e.Capacity, e.StartDate.UTC(), e.EndDate.UTC(),
		e.PriceCents, now, e.ID, string(model.EventCanceled), e.Capacity)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		e.UpdatedAt = now
		return nil
	}
	cur, err := r.GetByID(ctx, e.ID)
	if err != nil {
		return err
	}
	if cur.Status == model.EventCanceled {
		return ErrEventClosed
	}
	return ErrConflict
}

// SetStatus moves an event from one status to another.  The update is
// conditional on the current status so two concurrent publish or cancel
// requests cannot both succeed; the loser receives ErrConflict.
func (r *EventRepo) SetStatus(ctx context.Context, id uint64, from, to model.EventStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE events SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(to), time.Now().UTC(), id, string(from))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return ErrConflict
	}
	return nil
}

// TryIncrement atomically adds n tickets to the event's registered
// count.  The capacity and status guards are evaluated by the database
// in the same statement that performs the increment, so no other
// request can observe or act on an intermediate value.  When the update
// does not apply the current row is re-read to report the reason:
// ErrEventNotFound, ErrEventNotPublished or ErrEventFull.  The returned
// event reflects the state after the increment.
func (r *EventRepo) TryIncrement(ctx context.Context, id uint64, n int) (*model.Event, error) {
	return tryIncrement(ctx, r.db, id, n)
}

// TryIncrementTx is TryIncrement inside tx.
func (r *EventRepo) TryIncrementTx(ctx context.Context, tx *sql.Tx, id uint64, n int) (*model.Event, error) {
	return tryIncrement(ctx, tx, id, n)
}

func tryIncrement(ctx context.Context, db dbtx, id uint64, n int) (*model.Event, error) {
	const q = `UPDATE events
		SET registered_count = registered_count + ?, updated_at = ?
		WHERE id = ? AND status = ? AND registered_count + ? <= capacity`
	res, err := db.ExecContext(ctx, q, n, time.Now().UTC(), id, string(model.EventPublished), n)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	e, err := getEvent(ctx, db, id)
	if err != nil {
		return nil, err
	}
	if affected == 1 {
		return e, nil
	}
	if e.Status != model.EventPublished {
		return e, ErrEventNotPublished
	}
	return e, ErrEventFull
}

// Decrement releases n tickets from the event's registered count.  The
// counter never drops below zero; when it is already zero the call is a
// no-op and the unchanged event is returned.
func (r *EventRepo) Decrement(ctx context.Context, id uint64, n int) (*model.Event, error) {
	return decrement(ctx, r.db, id, n)
}

// DecrementTx is Decrement inside tx.
func (r *EventRepo) DecrementTx(ctx context.Context, tx *sql.Tx, id uint64, n int) (*model.Event, error) {
	return decrement(ctx, tx, id, n)
}

func decrement(ctx context.Context, db dbtx, id uint64, n int) (*model.Event, error) {
	const q = `UPDATE events
		SET registered_count = CASE WHEN registered_count >= ? THEN registered_count - ? ELSE 0 END,
		    updated_at = ?
		WHERE id = ? AND registered_count > 0`
	if _, err := db.ExecContext(ctx, q, n, n, time.Now().UTC(), id); err != nil {
		return nil, err
	}
	return getEvent(ctx, db, id)
}

// ListByOrganizer returns the events organized by the given user, newest
// start date first, together with the total number of such events.
func (r *EventRepo) ListByOrganizer(ctx context.Context, organizerID uint64, page, pageSize int) ([]model.Event, int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM events WHERE organizer_id = ?`, organizerID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE organizer_id = ? ORDER BY start_date DESC, id DESC LIMIT ? OFFSET ?`,
		organizerID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := make([]model.Event, 0, pageSize)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// OrganizerOf returns the organizer ID of an event.
func (r *EventRepo) OrganizerOf(ctx context.Context, id uint64) (uint64, error) {
	var organizerID uint64
	err := r.db.QueryRowContext(ctx, `SELECT organizer_id FROM events WHERE id = ?`, id).Scan(&organizerID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrEventNotFound
	}
	return organizerID, err
}
