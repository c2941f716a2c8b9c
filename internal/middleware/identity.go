package middleware

// identity.go turns the claims stored by JWTAuth into the identity used by
// the rest of the application.  The rate limiter keys on userID(); handlers
// build a model.Actor through ActorFrom.

import (
    "strconv"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/event-reservation/internal/model"
)

// claimID converts a "sub" claim to a user ID.  JSON numbers arrive as
// float64 after parsing; older tokens may carry the ID as a string.
func claimID(v interface{}) (uint64, bool) {
    switch t := v.(type) {
    case float64:
        if t <= 0 {
            return 0, false
        }
        return uint64(t), true
    case int:
        return uint64(t), t > 0
    case int64:
        return uint64(t), t > 0
    case uint64:
        return t, t > 0
    case string:
        n, err := strconv.ParseUint(t, 10, 64)
        return n, err == nil && n > 0
    }
    return 0, false
}

// userID extracts a user identifier from the request context.  It
// returns "guest" when no user is authenticated.
func userID(c echo.Context) string {
    if id, ok := claimID(c.Get("user_id")); ok {
        return strconv.FormatUint(id, 10)
    }
    return "guest"
}

// ActorFrom returns the authenticated principal stored by JWTAuth.  ok is
// false when the request carries no valid identity.
func ActorFrom(c echo.Context) (model.Actor, bool) {
    id, ok := claimID(c.Get("user_id"))
    if !ok {
        return model.Actor{}, false
    }
    role, _ := c.Get("role").(string)
    email, _ := c.Get("email").(string)
    name, _ := c.Get("name").(string)
    if role == "" {
        role = model.RoleUser
    }
    return model.Actor{UserID: id, Email: email, Name: name, Role: role}, true
}
