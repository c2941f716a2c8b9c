package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/event-reservation/internal/model"
	"github.com/iliyamo/event-reservation/internal/repository"
	"github.com/iliyamo/event-reservation/internal/ticket"
)

// TicketArchive stores rendered tickets outside the database.
type TicketArchive interface {
	PutTicket(ctx context.Context, reservationNumber string, pdf []byte) error
}

// Verification messages shown to door staff.
const (
	VerifyInvalidCode = "invalid code"
	VerifyCanceled    = "reservation was canceled"
	VerifyAlreadyUsed = "already used"
	VerifyNotValid    = "not valid"
	VerifyValid       = "valid reservation"
)

// VerifyResult is the outcome of scanning a ticket.
type VerifyResult struct {
	Valid       bool               `json:"valid"`
	Message     string             `json:"message"`
	Reservation *model.Reservation `json:"reservation,omitempty"`
}

// TicketService derives QR payloads, renders tickets and verifies
// scanned codes at the door.
type TicketService struct {
	reservations ReservationStore
	engine       *ReservationService
	signer       *ticket.Signer
	archive      TicketArchive
	log          *zap.Logger
}

// NewTicketService returns a TicketService.  archive may be nil.
func NewTicketService(reservations ReservationStore, engine *ReservationService, signer *ticket.Signer, archive TicketArchive, log *zap.Logger) *TicketService {
	if log == nil {
		log = zap.NewNop()
	}
	return &TicketService{reservations: reservations, engine: engine, signer: signer, archive: archive, log: log}
}

// DeriveQRPayload returns the signed content embedded in the ticket's QR
// image.  It is rebuilt from the reservation on demand and never stored.
func (s *TicketService) DeriveQRPayload(r *model.Reservation) (string, error) {
	return s.signer.Sign(ticket.Payload{
		ReservationNumber: r.ReservationNumber,
		EventID:           r.EventID,
		UserID:            r.UserID,
		Tickets:           r.NumberOfTickets,
		Status:            string(r.Status),
	})
}

// VerifyByQRToken checks whether a stored qr_code token admits its
// holder.  Only the stored token is looked up; a signed payload is
// reported as an invalid code.  The check is read-only.
func (s *TicketService) VerifyByQRToken(ctx context.Context, actor model.Actor, token string) (VerifyResult, error) {
	if !actor.IsAdmin() {
		return VerifyResult{}, forbidden("only administrators can verify tickets")
	}
	return s.verify(ctx, token, false)
}

func (s *TicketService) verify(ctx context.Context, token string, scanned bool) (VerifyResult, error) {
	res, err := s.lookup(ctx, token, scanned)
	if errors.Is(err, repository.ErrReservationNotFound) {
		return VerifyResult{Valid: false, Message: VerifyInvalidCode}, nil
	}
	if err != nil {
		return VerifyResult{}, err
	}
	return verdict(res), nil
}

// lookup finds the reservation of a stored qr_code token.  With scanned
// set, a signed payload read from the ticket image is resolved through
// its reservation number as well.
func (s *TicketService) lookup(ctx context.Context, token string, scanned bool) (*model.Reservation, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, repository.ErrReservationNotFound
	}
	res, err := s.reservations.GetByQRCode(ctx, token)
	if !scanned || !errors.Is(err, repository.ErrReservationNotFound) {
		return res, err
	}
	p, perr := s.signer.Parse(token)
	if perr != nil {
		return nil, repository.ErrReservationNotFound
	}
	return s.reservations.GetByNumber(ctx, p.ReservationNumber)
}

func verdict(res *model.Reservation) VerifyResult {
	switch res.Status {
	case model.ReservationCanceled:
		return VerifyResult{Valid: false, Message: VerifyCanceled, Reservation: res}
	case model.ReservationCheckedIn:
		return VerifyResult{Valid: false, Message: VerifyAlreadyUsed, Reservation: res}
	case model.ReservationConfirmed:
		return VerifyResult{Valid: true, Message: VerifyValid, Reservation: res}
	}
	return VerifyResult{Valid: false, Message: VerifyNotValid, Reservation: res}
}

// CheckInByQRToken checks a reservation in from a door scan.  The code
// may be the stored qr_code token or the signed payload of the ticket
// image.  An invalid code yields an error carrying the verification
// message.
func (s *TicketService) CheckInByQRToken(ctx context.Context, actor model.Actor, token string) (*model.Reservation, error) {
	if !actor.IsAdmin() {
		return nil, forbidden("only administrators can check in reservations")
	}
	v, err := s.verify(ctx, token, true)
	if err != nil {
		return nil, err
	}
	if !v.Valid {
		if v.Reservation == nil {
			return nil, notFound("%s", v.Message)
		}
		return nil, invalidState("%s", v.Message)
	}
	return s.engine.checkIn(ctx, actor, v.Reservation)
}

// ticketFor loads a reservation the actor may hold a ticket for.
func (s *TicketService) ticketFor(ctx context.Context, actor model.Actor, id uint64) (*model.Reservation, error) {
	res, err := s.reservations.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrReservationNotFound) {
			return nil, notFound("reservation not found")
		}
		return nil, err
	}
	if !actor.CanManage(res) {
		return nil, forbidden("you are not allowed to access this ticket")
	}
	if res.Status != model.ReservationConfirmed && res.Status != model.ReservationCheckedIn {
		return nil, invalidState("tickets are only available for confirmed reservations (status: %s)", res.Status)
	}
	return res, nil
}

// QRImage returns the PNG of the reservation's QR payload.
func (s *TicketService) QRImage(ctx context.Context, actor model.Actor, id uint64, size int) ([]byte, error) {
	res, err := s.ticketFor(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	payload, err := s.DeriveQRPayload(res)
	if err != nil {
		return nil, err
	}
	if size < ticket.QRSizeSmall || size > ticket.QRSizeLarge {
		size = ticket.QRSizeStandard
	}
	return ticket.PNG(payload, size)
}

// RenderTicket produces the PDF ticket for a confirmed or checked-in
// reservation.  When an archive is configured a copy is uploaded; upload
// failures are logged and do not fail the download.
func (s *TicketService) RenderTicket(ctx context.Context, actor model.Actor, id uint64) ([]byte, *model.Reservation, error) {
	res, err := s.ticketFor(ctx, actor, id)
	if err != nil {
		return nil, nil, err
	}
	payload, err := s.DeriveQRPayload(res)
	if err != nil {
		return nil, nil, err
	}
	png, err := ticket.PNG(payload, ticket.QRSizeStandard)
	if err != nil {
		return nil, nil, err
	}
	pdf, err := ticket.RenderPDF(ticket.Data{
		ReservationNumber: res.ReservationNumber,
		EventTitle:        res.EventTitle,
		EventDate:         res.EventDate,
		EventLocation:     res.EventLocation,
		HolderName:        res.UserName,
		HolderEmail:       res.UserEmail,
		Tickets:           res.NumberOfTickets,
		TotalPriceCents:   res.TotalPriceCents,
		Status:            string(res.Status),
		QRPNG:             png,
	})
	if err != nil {
		return nil, nil, err
	}
	if s.archive != nil {
		actx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if err := s.archive.PutTicket(actx, res.ReservationNumber, pdf); err != nil {
			s.log.Warn("ticket archive upload failed",
				zap.String("reservation_number", res.ReservationNumber), zap.Error(err))
		}
		cancel()
	}
	return pdf, res, nil
}
