package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/event-reservation/internal/model"
)

// ReservationRepo provides persistence for reservations.  Each row keeps
// a snapshot of the event it was booked for, so reads never join the
// events table except for organizer scoping.  All timestamp fields are
// stored in UTC.
//
// The active_key column holds "<user_id>:<event_id>" while a reservation
// is pending or confirmed and NULL otherwise.  A unique index on it lets
// the database reject a second active reservation for the same user and
// event even if two requests race past the service level check.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

// ReservationFilter narrows list queries.  Zero values disable a filter.
type ReservationFilter struct {
	EventID  uint64
	Status   model.ReservationStatus
	Page     int
	PageSize int
}

// StatusChange describes a compare-and-swap status update.  The update
// only applies when the stored status still equals From.  At becomes
// updated_at and, depending on To, confirmed_at, canceled_at or
// checked_in_at.  CancelReason is written when non-nil.
type StatusChange struct {
	From         model.ReservationStatus
	To           model.ReservationStatus
	At           time.Time
	CancelReason *string
}

const reservationColumns = `r.id, r.reservation_number, r.event_id, r.event_title, r.event_date, r.event_location,
	r.user_id, r.user_email, r.user_name, r.number_of_tickets, r.total_price_cents, r.status,
	r.cancel_reason, r.qr_code, r.confirmed_at, r.canceled_at, r.checked_in_at, r.created_at, r.updated_at`

func activeKey(userID, eventID uint64) string {
	return fmt.Sprintf("%d:%d", userID, eventID)
}

func scanReservation(row rowScanner) (*model.Reservation, error) {
	var (
		res                                model.Reservation
		status                             string
		reason                             sql.NullString
		confirmedAt, canceledAt, checkedIn sql.NullTime
	)
	if err := row.Scan(
		&res.ID, &res.ReservationNumber, &res.EventID, &res.EventTitle, &res.EventDate, &res.EventLocation,
		&res.UserID, &res.UserEmail, &res.UserName, &res.NumberOfTickets, &res.TotalPriceCents, &status,
		&reason, &res.QRCode, &confirmedAt, &canceledAt, &checkedIn, &res.CreatedAt, &res.UpdatedAt,
	); err != nil {
		return nil, err
	}
	res.Status = model.ReservationStatus(status)
	res.EventDate = res.EventDate.UTC()
	if reason.Valid {
		s := reason.String
		res.CancelReason = &s
	}
	res.ConfirmedAt = nullTimePtr(confirmedAt)
	res.CanceledAt = nullTimePtr(canceledAt)
	res.CheckedInAt = nullTimePtr(checkedIn)
	return &res, nil
}

func nullTimePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

// Create inserts a new reservation and populates its generated ID.  The
// caller supplies every field including the reservation number, QR token
// and timestamps.  It returns ErrDuplicateActive when the user already
// holds an active reservation for the event.
func (r *ReservationRepo) Create(ctx context.Context, res *model.Reservation) error {
	var key any
	if res.Status.IsActive() {
		key = activeKey(res.UserID, res.EventID)
	}
	const q = `INSERT INTO reservations (reservation_number, event_id, event_title, event_date, event_location,
		user_id, user_email, user_name, number_of_tickets, total_price_cents, status, cancel_reason, qr_code,
		active_key, confirmed_at, canceled_at, checked_in_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := r.db.ExecContext(ctx, q,
		res.ReservationNumber, res.EventID, res.EventTitle, res.EventDate.UTC(), res.EventLocation,
		res.UserID, res.UserEmail, res.UserName, res.NumberOfTickets, res.TotalPriceCents, string(res.Status),
		res.CancelReason, res.QRCode, key, res.ConfirmedAt, res.CanceledAt, res.CheckedInAt,
		res.CreatedAt.UTC(), res.UpdatedAt.UTC())
	if err != nil {
		if isDuplicate(err) {
			if strings.Contains(strings.ToLower(err.Error()), "active") {
				return ErrDuplicateActive
			}
			return ErrConflict
		}
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	res.ID = uint64(id)
	return nil
}

func getReservation(ctx context.Context, db dbtx, where string, arg any) (*model.Reservation, error) {
	res, err := scanReservation(db.QueryRowContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations r WHERE `+where+` LIMIT 1`, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrReservationNotFound
	}
	return res, err
}

func (r *ReservationRepo) getOne(ctx context.Context, where string, arg any) (*model.Reservation, error) {
	return getReservation(ctx, r.db, where, arg)
}

// GetByID returns the reservation with the given ID or ErrReservationNotFound.
func (r *ReservationRepo) GetByID(ctx context.Context, id uint64) (*model.Reservation, error) {
	return r.getOne(ctx, "r.id = ?", id)
}

// GetByNumber looks up a reservation by its human-readable number.
func (r *ReservationRepo) GetByNumber(ctx context.Context, number string) (*model.Reservation, error) {
	return r.getOne(ctx, "r.reservation_number = ?", strings.TrimSpace(number))
}

// GetByQRCode looks up a reservation by its stored QR token.
func (r *ReservationRepo) GetByQRCode(ctx context.Context, code string) (*model.Reservation, error) {
	return r.getOne(ctx, "r.qr_code = ?", strings.TrimSpace(code))
}

// FindActive returns the user's pending or confirmed reservation for the
// event, or ErrReservationNotFound when there is none.
func (r *ReservationRepo) FindActive(ctx context.Context, userID, eventID uint64) (*model.Reservation, error) {
	return r.getOne(ctx, "r.active_key = ?", activeKey(userID, eventID))
}

// UpdateStatus applies a StatusChange.  The WHERE clause pins the
// expected current status, so of two concurrent updates only one can
// win; the other receives ErrStaleReservation and must re-read.
// Leaving an active status clears active_key, which frees the user to
// book the event again.
func (r *ReservationRepo) UpdateStatus(ctx context.Context, id uint64, ch StatusChange) error {
	return updateStatus(ctx, r.db, id, ch)
}

// UpdateStatusTx is UpdateStatus inside tx.
func (r *ReservationRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uint64, ch StatusChange) error {
	return updateStatus(ctx, tx, id, ch)
}

func updateStatus(ctx context.Context, db dbtx, id uint64, ch StatusChange) error {
	at := ch.At.UTC()
	sets := []string{"status = ?", "updated_at = ?"}
	args := []any{string(ch.To), at}
	switch ch.To {
	case model.ReservationConfirmed:
		sets = append(sets, "confirmed_at = ?")
		args = append(args, at)
	case model.ReservationCanceled:
		sets = append(sets, "canceled_at = ?")
		args = append(args, at)
	case model.ReservationCheckedIn:
		sets = append(sets, "checked_in_at = ?")
		args = append(args, at)
	}
	if ch.CancelReason != nil {
		sets = append(sets, "cancel_reason = ?")
		args = append(args, *ch.CancelReason)
	}
	if !ch.To.IsActive() {
		sets = append(sets, "active_key = NULL")
	}
	args = append(args, id, string(ch.From))

	res, err := db.ExecContext(ctx,
		`UPDATE reservations SET `+strings.Join(sets, ", ")+` WHERE id = ? AND status = ?`, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := getReservation(ctx, db, "r.id = ?", id); err != nil {
			return err
		}
		return ErrStaleReservation
	}
	return nil
}

func (r *ReservationRepo) list(ctx context.Context, from string, where []string, args []any, f ReservationFilter) ([]model.Reservation, int64, error) {
	if f.EventID != 0 {
		where = append(where, "r.event_id = ?")
		args = append(args, f.EventID)
	}
	if f.Status != "" {
		where = append(where, "r.status = ?")
		args = append(args, string(f.Status))
	}
	cond := strings.Join(where, " AND ")

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+from+` WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	page, size := f.Page, f.PageSize
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 20
	}
	q := `SELECT ` + reservationColumns + ` FROM ` + from + ` WHERE ` + cond +
		` ORDER BY r.created_at DESC, r.id DESC LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, q, append(args, size, (page-1)*size)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := make([]model.Reservation, 0, size)
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *res)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// ListByUser returns the user's reservations, newest first.
func (r *ReservationRepo) ListByUser(ctx context.Context, userID uint64, f ReservationFilter) ([]model.Reservation, int64, error) {
	return r.list(ctx, "reservations r", []string{"r.user_id = ?"}, []any{userID}, f)
}

// ListForOrganizer returns reservations made for any event organized by
// organizerID.  Reservations on other organizers' events are never
// included, even when f.EventID points at one.
func (r *ReservationRepo) ListForOrganizer(ctx context.Context, organizerID uint64, f ReservationFilter) ([]model.Reservation, int64, error) {
	return r.list(ctx, "reservations r JOIN events e ON e.id = r.event_id",
		[]string{"e.organizer_id = ?"}, []any{organizerID}, f)
}

// TicketsByStatus sums number_of_tickets per status for one event.  It is
// used by the organizer event view and to audit the registered counter.
func (r *ReservationRepo) TicketsByStatus(ctx context.Context, eventID uint64) (map[model.ReservationStatus]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT status, COALESCE(SUM(number_of_tickets), 0) FROM reservations WHERE event_id = ? GROUP BY status`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[model.ReservationStatus]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[model.ReservationStatus(status)] = n
	}
	return out, rows.Err()
}
