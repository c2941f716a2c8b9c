package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/iliyamo/event-reservation/internal/model"
	"github.com/iliyamo/event-reservation/internal/ticket"
)

type fakeArchive struct {
	mu      sync.Mutex
	numbers []string
	err     error
}

func (a *fakeArchive) PutTicket(_ context.Context, number string, pdf []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !bytes.HasPrefix(pdf, []byte("%PDF")) {
		return errors.New("not a pdf")
	}
	a.numbers = append(a.numbers, number)
	return a.err
}

func newTicketFixture() (*fixture, *TicketService, *fakeArchive) {
	f := newFixture()
	archive := &fakeArchive{}
	return f, NewTicketService(f.store, f.svc, ticket.NewSigner("test-secret"), archive, nil), archive
}

func TestVerifyByQRToken(t *testing.T) {
	f, ts, _ := newTicketFixture()
	e := f.publishedEvent(10, 0, time.Hour)
	ctx := context.Background()

	confirmed, err := f.svc.Create(ctx, user(7), CreateInput{EventID: e.ID, NumberOfTickets: 1})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	canceled, err := f.svc.Create(ctx, user(8), CreateInput{EventID: e.ID, NumberOfTickets: 1})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := f.svc.Cancel(ctx, admin, canceled.ID, ""); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	used, err := f.svc.Create(ctx, user(9), CreateInput{EventID: e.ID, NumberOfTickets: 1})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := f.svc.CheckIn(ctx, admin, used.ID); err != nil {
		t.Fatalf("CheckIn: %v", err)
	}
	pending := f.pending(t, e, 10, 1)

	tests := []struct {
		name      string
		token     string
		wantValid bool
		wantMsg   string
		wantRes   bool
	}{
		{"confirmed", confirmed.QRCode, true, VerifyValid, true},
		{"canceled", canceled.QRCode, false, VerifyCanceled, true},
		{"checked in", used.QRCode, false, VerifyAlreadyUsed, true},
		{"pending", pending.QRCode, false, VerifyNotValid, true},
		{"unknown", "RSV-NOPE-000000000000", false, VerifyInvalidCode, false},
		{"empty", "   ", false, VerifyInvalidCode, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ts.VerifyByQRToken(ctx, admin, tt.token)
			if err != nil {
				t.Fatalf("VerifyByQRToken: %v", err)
			}
			if got.Valid != tt.wantValid || got.Message != tt.wantMsg {
				t.Errorf("got (%v, %q), want (%v, %q)", got.Valid, got.Message, tt.wantValid, tt.wantMsg)
			}
			if (got.Reservation != nil) != tt.wantRes {
				t.Errorf("reservation present = %v, want %v", got.Reservation != nil, tt.wantRes)
			}
		})
	}

	if _, err := ts.VerifyByQRToken(ctx, user(7), confirmed.QRCode); !errors.Is(err, ErrForbidden) {
		t.Errorf("user verify err = %v, want forbidden", err)
	}
	// verification never changes state
	got, _ := f.store.GetByID(ctx, confirmed.ID)
	if got.Status != model.ReservationConfirmed {
		t.Errorf("verify changed status to %s", got.Status)
	}
}

func TestSignedPayloadOnlyChecksIn(t *testing.T) {
	f, ts, _ := newTicketFixture()
	e := f.publishedEvent(10, 0, time.Hour)
	ctx := context.Background()

	res, err := f.svc.Create(ctx, user(7), CreateInput{EventID: e.ID, NumberOfTickets: 2})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	payload, err := ts.DeriveQRPayload(res)
	if err != nil {
		t.Fatalf("DeriveQRPayload: %v", err)
	}
	again, _ := ts.DeriveQRPayload(res)
	if payload != again {
		t.Errorf("payload is not deterministic")
	}

	// verification looks up the stored token only
	got, err := ts.VerifyByQRToken(ctx, admin, payload)
	if err != nil {
		t.Fatalf("VerifyByQRToken: %v", err)
	}
	if got.Valid || got.Message != VerifyInvalidCode || got.Reservation != nil {
		t.Errorf("payload verified: %+v", got)
	}

	forged, err := ticket.NewSigner("other-secret").Sign(ticket.Payload{ReservationNumber: res.ReservationNumber})
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if _, err := ts.CheckInByQRToken(ctx, admin, forged); !errors.Is(err, ErrNotFound) {
		t.Errorf("forged payload err = %v, want not found", err)
	}

	checked, err := ts.CheckInByQRToken(ctx, admin, payload)
	if err != nil {
		t.Fatalf("CheckInByQRToken: %v", err)
	}
	if checked.ID != res.ID || checked.Status != model.ReservationCheckedIn {
		t.Errorf("checked in %+v", checked)
	}
}

// A reservation that was already checked in is reported as used and
// cannot be checked in a second time by scanning.
func TestCheckInByQRToken(t *testing.T) {
	f, ts, _ := newTicketFixture()
	e := f.publishedEvent(10, 0, time.Hour)
	ctx := context.Background()

	res, err := f.svc.Create(ctx, user(7), CreateInput{EventID: e.ID, NumberOfTickets: 1})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err := ts.CheckInByQRToken(ctx, admin, res.QRCode)
	if err != nil {
		t.Fatalf("CheckInByQRToken: %v", err)
	}
	if got.Status != model.ReservationCheckedIn {
		t.Fatalf("status = %s, want checked_in", got.Status)
	}

	v, err := ts.VerifyByQRToken(ctx, admin, res.QRCode)
	if err != nil {
		t.Fatalf("VerifyByQRToken: %v", err)
	}
	if v.Valid || v.Message != VerifyAlreadyUsed {
		t.Errorf("verify after check-in = %+v", v)
	}
	_, err = ts.CheckInByQRToken(ctx, admin, res.QRCode)
	if !errors.Is(err, ErrInvalidState) || err.Error() != VerifyAlreadyUsed {
		t.Errorf("second scan err = %v", err)
	}
	if _, err := ts.CheckInByQRToken(ctx, admin, "RSV-UNKNOWN"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown scan err = %v, want not found", err)
	}
	if _, err := ts.CheckInByQRToken(ctx, user(7), res.QRCode); !errors.Is(err, ErrForbidden) {
		t.Errorf("user scan err = %v, want forbidden", err)
	}
}

func TestRenderTicket(t *testing.T) {
	f, ts, archive := newTicketFixture()
	e := f.publishedEvent(10, 0, 72*time.Hour)
	ctx := context.Background()

	res, err := f.svc.Create(ctx, user(7), CreateInput{EventID: e.ID, NumberOfTickets: 2})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	pdf, got, err := ts.RenderTicket(ctx, user(7), res.ID)
	if err != nil {
		t.Fatalf("RenderTicket: %v", err)
	}
	if !bytes.HasPrefix(pdf, []byte("%PDF")) {
		t.Errorf("output is not a PDF")
	}
	if got.ReservationNumber != res.ReservationNumber {
		t.Errorf("rendered %s, want %s", got.ReservationNumber, res.ReservationNumber)
	}
	if len(archive.numbers) != 1 || archive.numbers[0] != res.ReservationNumber {
		t.Errorf("archived %v", archive.numbers)
	}

	if _, _, err := ts.RenderTicket(ctx, user(8), res.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("foreign download err = %v, want forbidden", err)
	}
	if _, _, err := ts.RenderTicket(ctx, user(7), 999); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing download err = %v, want not found", err)
	}

	// archive failures do not fail the download
	archive.err = errBoom
	if _, _, err := ts.RenderTicket(ctx, admin, res.ID); err != nil {
		t.Errorf("RenderTicket with failing archive: %v", err)
	}

	if _, err := f.svc.Cancel(ctx, user(7), res.ID, ""); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	_, _, err = ts.RenderTicket(ctx, user(7), res.ID)
	if !errors.Is(err, ErrInvalidState) || !strings.Contains(err.Error(), "confirmed") {
		t.Errorf("canceled download err = %v, want invalid state", err)
	}
}

func TestQRImage(t *testing.T) {
	f, ts, _ := newTicketFixture()
	e := f.publishedEvent(10, 0, 72*time.Hour)
	ctx := context.Background()

	res, err := f.svc.Create(ctx, user(7), CreateInput{EventID: e.ID, NumberOfTickets: 1})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	pngMagic := []byte("\x89PNG")
	for _, size := range []int{ticket.QRSizeSmall, ticket.QRSizeLarge, 10000} {
		img, err := ts.QRImage(ctx, user(7), res.ID, size)
		if err != nil {
			t.Fatalf("QRImage(%d): %v", size, err)
		}
		if !bytes.HasPrefix(img, pngMagic) {
			t.Errorf("QRImage(%d) is not a PNG", size)
		}
	}
	if _, err := ts.QRImage(ctx, user(8), res.ID, 0); !errors.Is(err, ErrForbidden) {
		t.Errorf("foreign QRImage err = %v, want forbidden", err)
	}
}
