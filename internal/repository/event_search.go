package repository

import (
	"context"
	"strings"
	"time"

	"github.com/iliyamo/event-reservation/internal/model"
)

// EventSearchQuery defines filters & pagination for browsing published events.
type EventSearchQuery struct {
	Title      string
	Location   string
	TimeFilter string
	Now        time.Time
	Page       int
	PageSize   int
}

// PublicEventRow is the sanitized view of an event returned to
// unauthenticated clients.  Organizer and bookkeeping columns are omitted.
type PublicEventRow struct {
	ID             uint64    `json:"id"`
	Title          string    `json:"title"`
	Description    string    `json:"description,omitempty"`
	Location       string    `json:"location"`
	StartDate      time.Time `json:"start_date"`
	EndDate        time.Time `json:"end_date"`
	Capacity       int       `json:"capacity"`
	AvailableSpots int       `json:"available_spots"`
	PriceCents     int64     `json:"price_cents"`
	Price          float64   `json:"price"`
}

// SearchPublished lists published events matching q.  TimeFilter is
// "upcoming" (default, start_date after Now), "active" (end_date not yet
// passed) or "any".
func (r *EventRepo) SearchPublished(ctx context.Context, q EventSearchQuery) ([]PublicEventRow, int64, error) {
	where := []string{"status = ?"}
	args := []any{string(model.EventPublished)}

	now := q.Now.UTC()
	if q.Now.IsZero() {
		now = time.Now().UTC()
	}
	switch strings.ToLower(q.TimeFilter) {
	case "any":
	case "active":
		where = append(where, "end_date >= ?")
		args = append(args, now)
	default:
		where = append(where, "start_date > ?")
		args = append(args, now)
	}

	if q.Title != "" {
		where = append(where, "LOWER(title) LIKE ?")
		args = append(args, "%"+strings.ToLower(q.Title)+"%")
	}
	if q.Location != "" {
		where = append(where, "LOWER(location) LIKE ?")
		args = append(args, "%"+strings.ToLower(q.Location)+"%")
	}
	cond := strings.Join(where, " AND ")

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := q.PageSize
	offset := (q.Page - 1) * q.PageSize
	dataSQL := `SELECT id, title, description, location, start_date, end_date, capacity, registered_count, price_cents
		FROM events
		WHERE ` + cond + `
		ORDER BY start_date ASC, id ASC
		LIMIT ? OFFSET ?`
	argsData := append(append([]any{}, args...), limit, offset)

	rows, err := r.db.QueryContext(ctx, dataSQL, argsData...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]PublicEventRow, 0, limit)
	for rows.Next() {
		var d PublicEventRow
		var registered int
		if err := rows.Scan(
			&d.ID,
			&d.Title,
			&d.Description,
			&d.Location,
			&d.StartDate,
			&d.EndDate,
			&d.Capacity,
			&registered,
			&d.PriceCents,
		); err != nil {
			return nil, 0, err
		}
		if d.AvailableSpots = d.Capacity - registered; d.AvailableSpots < 0 {
			d.AvailableSpots = 0
		}
		d.StartDate = d.StartDate.UTC()
		d.EndDate = d.EndDate.UTC()
		d.Price = float64(d.PriceCents) / 100.0
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}
