package utils

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
)

func TestNewAccessTokenClaims(t *testing.T) {
	tok, err := NewAccessToken("secret", 42, "ada@example.com", "Ada", "ADMIN", 15)
	if err != nil {
		t.Fatalf("NewAccessToken: %v", err)
	}
	parsed, err := jwt.Parse(tok.Token, func(*jwt.Token) (interface{}, error) { return []byte("secret"), nil })
	if err != nil || !parsed.Valid {
		t.Fatalf("parse: %v", err)
	}
	claims := parsed.Claims.(jwt.MapClaims)
	if claims["sub"].(float64) != 42 || claims["role"] != "ADMIN" || claims["email"] != "ada@example.com" || claims["name"] != "Ada" {
		t.Errorf("unexpected claims: %v", claims)
	}
}

func TestRefreshTokenHash(t *testing.T) {
	a, err := NewRefreshToken(7)
	if err != nil {
		t.Fatalf("NewRefreshToken: %v", err)
	}
	b, _ := NewRefreshToken(7)
	if a.Raw == b.Raw || len(a.Raw) != 96 {
		t.Errorf("unexpected refresh tokens %q / %q", a.Raw, b.Raw)
	}
	if HashRefreshRaw(a.Raw) != HashRefreshRaw(a.Raw) || HashRefreshRaw(a.Raw) == HashRefreshRaw(b.Raw) {
		t.Errorf("hash is not a stable function of the raw token")
	}
}

func TestPasswordHash(t *testing.T) {
	h, err := HashPassword("s3cret", 4)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !VerifyPassword(h, "s3cret") || VerifyPassword(h, "wrong") {
		t.Errorf("VerifyPassword mismatch")
	}
}

func TestParseAccessToken(t *testing.T) {
	tok, err := NewAccessToken("secret", 7, "u@example.com", "U", "USER", 15)
	if err != nil {
		t.Fatal(err)
	}
	claims, err := ParseAccessToken("secret", tok.Token)
	if err != nil {
		t.Fatalf("ParseAccessToken: %v", err)
	}
	if claims["sub"].(float64) != 7 || claims["role"] != "USER" {
		t.Errorf("claims = %v", claims)
	}

	if _, err := ParseAccessToken("other", tok.Token); err == nil {
		t.Error("wrong secret accepted")
	}
	expired, _ := NewAccessToken("secret", 7, "", "", "USER", -1)
	if _, err := ParseAccessToken("secret", expired.Token); err == nil {
		t.Error("expired token accepted")
	}
	none := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{"sub": 7, "exp": 4102444800})
	raw, _ := none.SignedString([]byte("secret"))
	if _, err := ParseAccessToken("secret", raw); err == nil {
		t.Error("HS512 token accepted")
	}
}

func TestValidatePassword(t *testing.T) {
	cases := map[string]error{
		"short":                  ErrPasswordTooShort,
		"long enough":            nil,
		"ünïcödé!":               nil,
		string(make([]byte, 73)): ErrPasswordTooLong,
	}
	for in, want := range cases {
		if got := ValidatePassword(in); got != want {
			t.Errorf("ValidatePassword(%q) = %v, want %v", in, got, want)
		}
	}
}
