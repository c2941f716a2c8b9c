package handler // handler defines http handlers

import (
    "errors"   // errors.Is matches service error kinds
    "net/http" // HTTP status codes
    "strconv"  // strconv converts path and query parameters
    "strings"  // strings trims query values

    "github.com/labstack/echo/v4" // echo defines request context types
    "go.uber.org/zap"             // structured logging of unexpected failures

    "github.com/iliyamo/event-reservation/internal/middleware" // identity extracted by JWTAuth
    "github.com/iliyamo/event-reservation/internal/model"      // Actor
    "github.com/iliyamo/event-reservation/internal/service"    // error kinds
)

// errUnauthorized is returned by currentActor when the context carries no identity.
var errUnauthorized = errors.New("invalid user_id in context")

// currentActor extracts the authenticated principal from echo.Context.
func currentActor(c echo.Context) (model.Actor, error) {
    a, ok := middleware.ActorFrom(c)
    if !ok {
        return model.Actor{}, errUnauthorized
    }
    return a, nil
}

// pathID parses a positive numeric path parameter.
func pathID(c echo.Context, name string) (uint64, bool) {
    id, err := strconv.ParseUint(c.Param(name), 10, 64)
    if err != nil || id == 0 {
        return 0, false
    }
    return id, true
}

// pageParams reads page and page_size (limit is accepted as an alias).
// Defaults are page 1 and 20 items; page_size is capped at 100.
func pageParams(c echo.Context) (int, int) {
    page, _ := strconv.Atoi(c.QueryParam("page"))
    if page < 1 {
        page = 1
    }
    raw := strings.TrimSpace(c.QueryParam("page_size"))
    if raw == "" {
        raw = strings.TrimSpace(c.QueryParam("limit"))
    }
    ps, _ := strconv.Atoi(raw)
    if ps < 1 {
        ps = 20
    }
    if ps > 100 {
        ps = 100
    }
    return page, ps
}

// paged writes the list envelope shared by every collection endpoint.
func paged(c echo.Context, data interface{}, total int64, page, pageSize int) error {
    return c.JSON(http.StatusOK, echo.Map{
        "data":      data,
        "total":     total,
        "page":      page,
        "page_size": pageSize,
    })
}

// statusFor maps a service error kind to an HTTP status.
func statusFor(err error) int {
    switch {
    case errors.Is(err, service.ErrNotFound):
        return http.StatusNotFound
    case errors.Is(err, service.ErrInvalidState):
        return http.StatusUnprocessableEntity
    case errors.Is(err, service.ErrConflict):
        return http.StatusConflict
    case errors.Is(err, service.ErrForbidden):
        return http.StatusForbidden
    case errors.Is(err, service.ErrInvalidInput):
        return http.StatusBadRequest
    }
    return http.StatusInternalServerError
}

// writeError renders err as {"error": message}.  Business errors carry
// their own message; anything else is logged and reported generically.
func writeError(c echo.Context, log *zap.Logger, err error) error {
    status := statusFor(err)
    if status == http.StatusInternalServerError {
        if log != nil {
            log.Error("request failed",
                zap.String("method", c.Request().Method),
                zap.String("path", c.Path()),
                zap.Error(err))
        }
        return c.JSON(status, echo.Map{"error": "internal server error"})
    }
    return c.JSON(status, echo.Map{"error": err.Error()})
}

func unauthorized(c echo.Context) error {
    return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
}
