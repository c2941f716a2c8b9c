package model

import "time"

// Role names stored in users.role and carried in the JWT "role" claim.
const (
    RoleUser  = "USER"
    RoleAdmin = "ADMIN"
)

// User is a row of the users table.  Admins organize events and manage
// the reservations on them; users browse events and book tickets.
type User struct {
    ID           uint64
    Email        string // unique, stored lower-cased
    Name         string // copied into reservations at booking time
    PasswordHash string // bcrypt
    Role         string // RoleUser or RoleAdmin
    IsActive     bool
    CreatedAt    time.Time
    UpdatedAt    time.Time
}

// Actor is the authenticated principal performing an operation, as
// supplied by the identity layer.  The lifecycle engine never looks at
// credentials; it only asks the actor what it is allowed to do.
type Actor struct {
    UserID uint64
    Email  string
    Name   string
    Role   string
}

// IsAdmin reports whether the actor holds the ADMIN role.
func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

// Owns reports whether the reservation belongs to the actor.
func (a Actor) Owns(r *Reservation) bool { return r != nil && r.UserID == a.UserID }

// CanManage is the owner-or-admin capability used by cancel, ticket
// download and detail views.
func (a Actor) CanManage(r *Reservation) bool { return a.IsAdmin() || a.Owns(r) }
