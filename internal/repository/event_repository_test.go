package repository

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/iliyamo/event-reservation/internal/database"
	"github.com/iliyamo/event-reservation/internal/model"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func seedEvent(t *testing.T, repo *EventRepo, capacity int, publish bool) *model.Event {
	t.Helper()
	ctx := context.Background()
	start := time.Now().UTC().Add(72 * time.Hour).Truncate(time.Second)
	e := &model.Event{
		OrganizerID: 1,
		Title:       "Go Meetup",
		Location:    "Hall A",
		Capacity:    capacity,
		StartDate:   start,
		EndDate:     start.Add(3 * time.Hour),
		PriceCents:  2500,
	}
	if err := repo.Create(ctx, e); err != nil {
		t.Fatalf("create event: %v", err)
	}
	if publish {
		if err := repo.SetStatus(ctx, e.ID, model.EventDraft, model.EventPublished); err != nil {
			t.Fatalf("publish: %v", err)
		}
		e.Status = model.EventPublished
	}
	return e
}

func TestEventRepo_CreateAndGet(t *testing.T) {
	repo := NewEventRepo(newTestDB(t))
	e := seedEvent(t, repo, 50, false)

	got, err := repo.GetByID(context.Background(), e.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != model.EventDraft || got.RegisteredCount != 0 || got.Capacity != 50 {
		t.Fatalf("unexpected event: %+v", got)
	}
	if !got.StartDate.Equal(e.StartDate) {
		t.Fatalf("start date: got %v want %v", got.StartDate, e.StartDate)
	}
	if _, err := repo.GetByID(context.Background(), 999); !errors.Is(err, ErrEventNotFound) {
		t.Fatalf("expected ErrEventNotFound, got %v", err)
	}
}

func TestEventRepo_TryIncrement(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		capacity int
		publish  bool
		pre      int
		n        int
		wantErr  error
		wantLeft int
	}{
		{name: "fits", capacity: 5, publish: true, n: 3, wantLeft: 2},
		{name: "fills exactly", capacity: 3, publish: true, n: 3, wantLeft: 0},
		{name: "too many", capacity: 100, publish: true, pre: 99, n: 3, wantErr: ErrEventFull, wantLeft: 1},
		{name: "draft", capacity: 5, publish: false, n: 1, wantErr: ErrEventNotPublished, wantLeft: 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := NewEventRepo(newTestDB(t))
			e := seedEvent(t, repo, tt.capacity, tt.publish)
			if tt.pre > 0 {
				if _, err := repo.TryIncrement(ctx, e.ID, tt.pre); err != nil {
					t.Fatalf("pre increment: %v", err)
				}
			}
			got, err := repo.TryIncrement(ctx, e.ID, tt.n)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if got.AvailableSpots() != tt.wantLeft {
				t.Fatalf("available = %d, want %d", got.AvailableSpots(), tt.wantLeft)
			}
		})
	}

	t.Run("missing event", func(t *testing.T) {
		repo := NewEventRepo(newTestDB(t))
		if _, err := repo.TryIncrement(ctx, 42, 1); !errors.Is(err, ErrEventNotFound) {
			t.Fatalf("expected ErrEventNotFound, got %v", err)
		}
	})
}

func TestEventRepo_TryIncrementConcurrent(t *testing.T) {
	ctx := context.Background()
	repo := NewEventRepo(newTestDB(t))
	e := seedEvent(t, repo, 10, true)

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ok  int
		err = map[error]int{}
	)
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, e2 := repo.TryIncrement(ctx, e.ID, 1)
			mu.Lock()
			defer mu.Unlock()
			if e2 == nil {
				ok++
				return
			}
			err[e2]++
		}()
	}
	wg.Wait()

	if ok != 10 || err[ErrEventFull] != 15 {
		t.Fatalf("ok=%d full=%d, want 10/15 (errors: %v)", ok, err[ErrEventFull], err)
	}
	got, _ := repo.GetByID(ctx, e.ID)
	if got.RegisteredCount != got.Capacity {
		t.Fatalf("registered = %d, want %d", got.RegisteredCount, got.Capacity)
	}
}

func TestEventRepo_DecrementFloorsAtZero(t *testing.T) {
	ctx := context.Background()
	repo := NewEventRepo(newTestDB(t))
	e := seedEvent(t, repo, 10, true)

	got, err := repo.Decrement(ctx, e.ID, 2)
	if err != nil || got.RegisteredCount != 0 {
		t.Fatalf("decrement on empty: count=%d err=%v", got.RegisteredCount, err)
	}
	if _, err := repo.TryIncrement(ctx, e.ID, 3); err != nil {
		t.Fatal(err)
	}
	if got, _ = repo.Decrement(ctx, e.ID, 2); got.RegisteredCount != 1 {
		t.Fatalf("count = %d, want 1", got.RegisteredCount)
	}
	if got, _ = repo.Decrement(ctx, e.ID, 5); got.RegisteredCount != 0 {
		t.Fatalf("count = %d, want 0", got.RegisteredCount)
	}
}

func TestEventRepo_SetStatus(t *testing.T) {
	ctx := context.Background()
	repo := NewEventRepo(newTestDB(t))
	e := seedEvent(t, repo, 10, true)

	if err := repo.SetStatus(ctx, e.ID, model.EventDraft, model.EventPublished); !errors.Is(err, ErrConflict) {
		t.Fatalf("stale publish: got %v, want ErrConflict", err)
	}
	if err := repo.SetStatus(ctx, e.ID, model.EventPublished, model.EventCanceled); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := repo.TryIncrement(ctx, e.ID, 1); !errors.Is(err, ErrEventNotPublished) {
		t.Fatalf("increment canceled event: got %v", err)
	}
	if err := repo.SetStatus(ctx, 999, model.EventDraft, model.EventPublished); !errors.Is(err, ErrEventNotFound) {
		t.Fatalf("missing: got %v", err)
	}
}

func TestEventRepo_UpdateDetails(t *testing.T) {
	ctx := context.Background()
	repo := NewEventRepo(newTestDB(t))
	e := seedEvent(t, repo, 10, true)
	if _, err := repo.TryIncrement(ctx, e.ID, 4); err != nil {
		t.Fatal(err)
	}

	e.Capacity = 3
	if err := repo.UpdateDetails(ctx, e); !errors.Is(err, ErrConflict) {
		t.Fatalf("shrink below registered: got %v", err)
	}
	e.Capacity = 4
	e.PriceCents = 9900
	e.Title = "Go Meetup (moved)"
	if err := repo.UpdateDetails(ctx, e); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ := repo.GetByID(ctx, e.ID)
	if got.Capacity != 4 || got.PriceCents != 9900 || got.Title != "Go Meetup (moved)" {
		t.Fatalf("not updated: %+v", got)
	}

	if err := repo.SetStatus(ctx, e.ID, model.EventPublished, model.EventCanceled); err != nil {
		t.Fatal(err)
	}
	if err := repo.UpdateDetails(ctx, e); !errors.Is(err, ErrEventClosed) {
		t.Fatalf("update canceled: got %v", err)
	}
}

func TestEventRepo_SearchPublishedAndOrganizer(t *testing.T) {
	ctx := context.Background()
	repo := NewEventRepo(newTestDB(t))
	seedEvent(t, repo, 10, true)
	seedEvent(t, repo, 10, true)
	seedEvent(t, repo, 10, false)

	rows, total, err := repo.SearchPublished(ctx, EventSearchQuery{Page: 1, PageSize: 1})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if total != 2 || len(rows) != 1 {
		t.Fatalf("total=%d rows=%d, want 2/1", total, len(rows))
	}
	if rows[0].AvailableSpots != 10 || rows[0].Price != 25 {
		t.Fatalf("unexpected row: %+v", rows[0])
	}

	rows, total, err = repo.SearchPublished(ctx, EventSearchQuery{Now: time.Now().Add(96 * time.Hour), Page: 1, PageSize: 10})
	if err != nil || total != 0 || len(rows) != 0 {
		t.Fatalf("future search: total=%d rows=%d err=%v", total, len(rows), err)
	}

	events, total, err := repo.ListByOrganizer(ctx, 1, 1, 10)
	if err != nil || total != 3 || len(events) != 3 {
		t.Fatalf("organizer list: total=%d len=%d err=%v", total, len(events), err)
	}
	if org, err := repo.OrganizerOf(ctx, events[0].ID); err != nil || org != 1 {
		t.Fatalf("organizer of: %d %v", org, err)
	}
}
