package utils

import (
    "crypto/rand"
    "crypto/sha256"
    "encoding/hex"
    "time"

    "github.com/golang-jwt/jwt/v5"
)

// refreshBytes is the entropy of a refresh token before hex encoding.
const refreshBytes = 48

// AccessToken is a signed HS256 JWT and its expiry.
type AccessToken struct {
    Token string
    Exp   time.Time
}

// RefreshToken is an opaque session token.  Only HashRefreshRaw(Raw) is
// ever persisted.
type RefreshToken struct {
    Raw string
    Exp time.Time
}

// NewAccessToken signs a token carrying sub, role, email and name.  The
// email and name let reservations snapshot the booker without a user
// lookup.
func NewAccessToken(secret string, userID uint64, email, name, role string, ttlMin int) (AccessToken, error) {
    now := time.Now().UTC()
    exp := now.Add(time.Duration(ttlMin) * time.Minute)
    signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
        "sub":   userID,
        "role":  role,
        "email": email,
        "name":  name,
        "iat":   now.Unix(),
        "exp":   exp.Unix(),
    }).SignedString([]byte(secret))
    if err != nil {
        return AccessToken{}, err
    }
    return AccessToken{Token: signed, Exp: exp}, nil
}

// ParseAccessToken verifies an HS256 access token signed with secret and
// returns its claims.  Expired tokens and other signing methods are
// rejected.
func ParseAccessToken(secret, raw string) (jwt.MapClaims, error) {
    claims := jwt.MapClaims{}
    tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
        return []byte(secret), nil
    }, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
    if err != nil {
        return nil, err
    }
    if !tok.Valid {
        return nil, jwt.ErrTokenSignatureInvalid
    }
    return claims, nil
}

// NewRefreshToken returns a random token valid for ttlDays.
func NewRefreshToken(ttlDays int) (RefreshToken, error) {
    buf := make([]byte, refreshBytes)
    if _, err := rand.Read(buf); err != nil {
        return RefreshToken{}, err
    }
    return RefreshToken{
        Raw: hex.EncodeToString(buf),
        Exp: time.Now().UTC().AddDate(0, 0, ttlDays),
    }, nil
}

// HashRefreshRaw is the hex SHA-256 of a raw refresh token, the form
// stored in refresh_tokens.token_hash.
func HashRefreshRaw(raw string) string {
    sum := sha256.Sum256([]byte(raw))
    return hex.EncodeToString(sum[:])
}
