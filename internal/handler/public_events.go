// Package handler exposes HTTP handlers for both authenticated and public endpoints.
// This file defines handlers for the public browsing API.  These routes allow
// unauthenticated users to browse published events.  Organizer IDs and
// bookkeeping columns are filtered from responses.

package handler

import (
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "go.uber.org/zap"

    "github.com/iliyamo/event-reservation/internal/model"
    "github.com/iliyamo/event-reservation/internal/repository"
    "github.com/iliyamo/event-reservation/internal/service"
)

// PublicHandler serves the public event catalog.
type PublicHandler struct {
    Events *service.EventService
    Log    *zap.Logger
}

// NewPublicHandler constructs a PublicHandler.
func NewPublicHandler(events *service.EventService, log *zap.Logger) *PublicHandler {
    if events == nil {
        panic("nil event service passed to NewPublicHandler")
    }
    return &PublicHandler{Events: events, Log: log}
}

// PublicEventDetail is a published event as shown to guests.
type PublicEventDetail struct {
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

func publicDetail(e *model.Event) PublicEventDetail {
    return PublicEventDetail{
        ID:             e.ID,
        Title:          e.Title,
        Description:    e.Description,
        Location:       e.Location,
        StartDate:      e.StartDate,
        EndDate:        e.EndDate,
        Capacity:       e.Capacity,
        AvailableSpots: e.AvailableSpots(),
        PriceCents:     e.PriceCents,
        Price:          float64(e.PriceCents) / 100.0,
    }
}

// SearchEvents handles GET /v1/events and GET /v1/events/search.
// time: "upcoming" (default), "active" (end_date not yet passed), "any".
func (h *PublicHandler) SearchEvents(c echo.Context) error {
    timeFilter := strings.ToLower(strings.TrimSpace(c.QueryParam("time")))
    if timeFilter == "" {
        timeFilter = "upcoming"
    }
    switch timeFilter {
    case "upcoming", "active", "any":
    default:
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "time must be upcoming, active or any"})
    }
    page, ps := pageParams(c)

    q := repository.EventSearchQuery{
        Title:      strings.TrimSpace(c.QueryParam("title")),
        Location:   strings.TrimSpace(c.QueryParam("location")),
        TimeFilter: timeFilter,
        Page:       page,
        PageSize:   ps,
    }
    items, total, err := h.Events.Search(c.Request().Context(), q)
    if err != nil {
        return writeError(c, h.Log, err)
    }
    return paged(c, items, total, page, ps)
}

// GetEvent handles GET /v1/events/:id.  Drafts and canceled events are 404.
func (h *PublicHandler) GetEvent(c echo.Context) error {
    id, ok := pathID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
    }
    e, err := h.Events.GetPublic(c.Request().Context(), id)
    if err != nil {
        return writeError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, publicDetail(e))
}
