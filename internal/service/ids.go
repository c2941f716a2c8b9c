package service

import (
	"crypto/rand"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ReservationNumberPrefix starts every reservation number.
const ReservationNumberPrefix = "RSV-"

const numberAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// NewReservationNumber returns "RSV-<base36 millis>-<8 random chars>".
// The time part keeps numbers roughly sortable; the random part drawn
// from crypto/rand makes collisions within one millisecond negligible.
func NewReservationNumber(now time.Time) (string, error) {
	var b strings.Builder
	b.WriteString(ReservationNumberPrefix)
	b.WriteString(strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36)))
	b.WriteByte('-')
	max := big.NewInt(int64(len(numberAlphabet)))
	for i := 0; i < 8; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(numberAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// NewQRCodeToken derives the stored door-scan token from a reservation
// number plus a random suffix.
func NewQRCodeToken(reservationNumber string) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
	return reservationNumber + "-" + suffix
}
