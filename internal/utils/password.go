package utils

import (
    "errors"

    "golang.org/x/crypto/bcrypt"
)

// Password length limits.  bcrypt ignores everything after 72 bytes, so
// longer passwords are rejected instead of silently truncated.
const (
    MinPasswordLength = 8
    MaxPasswordBytes  = 72
)

var (
    ErrPasswordTooShort = errors.New("password must be at least 8 characters")
    ErrPasswordTooLong  = errors.New("password must be at most 72 bytes")
)

// ValidatePassword checks a new password against the length limits.
func ValidatePassword(plain string) error {
    switch {
    case len([]rune(plain)) < MinPasswordLength:
        return ErrPasswordTooShort
    case len(plain) > MaxPasswordBytes:
        return ErrPasswordTooLong
    }
    return nil
}

// HashPassword returns the bcrypt hash of plain.  Costs outside bcrypt's
// range fall back to bcrypt.DefaultCost.
func HashPassword(plain string, cost int) (string, error) {
    if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
        cost = bcrypt.DefaultCost
    }
    b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
    if err != nil {
        return "", err
    }
    return string(b), nil
}

// VerifyPassword reports whether plain matches the stored bcrypt hash.
func VerifyPassword(hash, plain string) bool {
    return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
