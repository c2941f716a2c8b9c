package ticket

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

func TestSigner_RoundTrip(t *testing.T) {
	s := NewSigner("qr-secret")
	in := Payload{ReservationNumber: "RSV-ABC-123", EventID: 4, UserID: 9, Tickets: 3, Status: "confirmed"}

	tok, err := s.Sign(in)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	again, _ := s.Sign(in)
	if tok != again {
		t.Fatalf("signing is not deterministic: %q vs %q", tok, again)
	}
	out, err := s.Parse(tok)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if out != in {
		t.Fatalf("payload mismatch: got %+v want %+v", out, in)
	}
}

func TestSigner_Rejects(t *testing.T) {
	s := NewSigner("qr-secret")
	tok, _ := s.Sign(Payload{ReservationNumber: "RSV-1", EventID: 1, UserID: 1, Tickets: 1, Status: "confirmed"})
	other, _ := NewSigner("another-secret").Sign(Payload{ReservationNumber: "RSV-1"})
	parts := strings.Split(tok, ".")
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]

	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"garbage", "not-a-token"},
		{"wrong secret", other},
		{"tampered", tampered},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.Parse(tt.raw); !errors.Is(err, ErrInvalidPayload) {
				t.Fatalf("expected ErrInvalidPayload, got %v", err)
			}
		})
	}
}

var pngMagic = []byte{0x89, 'P', 'N', 'G'}

func TestPNG(t *testing.T) {
	img, err := PNG("RSV-123", QRSizeSmall)
	if err != nil {
		t.Fatalf("png: %v", err)
	}
	if !bytes.HasPrefix(img, pngMagic) {
		t.Fatalf("not a PNG")
	}
}

func TestRenderPDF(t *testing.T) {
	qr, err := PNG("payload", QRSizeStandard)
	if err != nil {
		t.Fatal(err)
	}
	out, err := RenderPDF(Data{
		ReservationNumber: "RSV-TEST-1",
		EventTitle:        "Café Conférence 🎉",
		EventDate:         time.Date(2030, 5, 1, 18, 0, 0, 0, time.UTC),
		EventLocation:     "Main Hall",
		HolderName:        "Ada",
		HolderEmail:       "ada@example.com",
		Tickets:           2,
		TotalPriceCents:   5050,
		Status:            "confirmed",
		QRPNG:             qr,
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF")) {
		t.Fatalf("output is not a PDF")
	}
}

func TestFormatCents(t *testing.T) {
	tests := map[int64]string{0: "0.00", 5: "0.05", 1250: "12.50", -99: "-0.99"}
	for in, want := range tests {
		if got := FormatCents(in); got != want {
			t.Errorf("FormatCents(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestTruncate(t *testing.T) {
	cases := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"abcdefghij", 10, "abcdefghij"},
		{"abcdefghijk", 10, "abcdefg..."},
		{"Café Müller Straße", 10, "Café Mü..."},
		{"日本語のイベント名です", 8, "日本語のイ..."},
	}
	for _, c := range cases {
		got := truncate(c.in, c.max)
		if got != c.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", c.in, c.max, got, c.want)
		}
		if !utf8.ValidString(got) {
			t.Errorf("truncate(%q, %d) produced invalid UTF-8", c.in, c.max)
		}
	}
}

func TestLatin1Only(t *testing.T) {
	cases := map[string]string{
		"Plain ASCII":  "Plain ASCII",
		"Café Zürich":  "Café Zürich",
		"Ticket €5":    "Ticket ?5",
		"東京 concert": "?? concert",
	}
	for in, want := range cases {
		if got := latin1Only(in); got != want {
			t.Errorf("latin1Only(%q) = %q, want %q", in, got, want)
		}
	}
}
