package ticket

import (
	"bytes"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/jung-kurt/gofpdf"
)

// Data is everything printed on a ticket.  Times are rendered in UTC.
type Data struct {
	ReservationNumber string
	EventTitle        string
	EventDate         time.Time
	EventLocation     string
	HolderName        string
	HolderEmail       string
	Tickets           int
	TotalPriceCents   int64
	Status            string
	QRPNG             []byte
}

// latin1Only replaces characters outside Latin-1 with '?'.  The core PDF
// fonts only cover cp1252, anything else would render as garbage.
func latin1Only(s string) string {
	return strings.Map(func(r rune) rune {
		if r > unicode.MaxLatin1 {
			return '?'
		}
		return r
	}, s)
}

// truncate shortens s to at most max runes.
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}

// FormatCents renders an amount in cents as "12.50".
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign, cents = "-", -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

// RenderPDF produces a single page A4 ticket with the QR code on top and
// the reservation details below it.
func RenderPDF(d Data) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(latin1Only("Ticket "+d.ReservationNumber), false)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	if len(d.QRPNG) > 0 {
		opts := gofpdf.ImageOptions{ImageType: "PNG"}
		name := "qr_" + d.ReservationNumber
		pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(d.QRPNG))
		pdf.ImageOptions(name, (210.0-90.0)/2, pdf.GetY(), 90, 90, false, opts, 0, "")
		pdf.Ln(95)
	}

	pdf.SetDrawColor(200, 200, 200)
	pdf.SetLineWidth(0.5)
	pdf.Line(20, pdf.GetY(), 190, pdf.GetY())
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 20)
	pdf.SetX(20)
	pdf.MultiCell(170, 9, tr(latin1Only(truncate(d.EventTitle, 80))), "", "L", false)
	pdf.Ln(2)

	row := func(label, value string) {
		pdf.SetX(20)
		pdf.SetFont("Arial", "", 13)
		pdf.CellFormat(50, 9, label, "", 0, "L", false, 0, "")
		pdf.SetFont("Arial", "B", 13)
		pdf.CellFormat(120, 9, tr(latin1Only(truncate(value, 60))), "", 1, "L", false, 0, "")
	}
	row("Date:", d.EventDate.UTC().Format("Monday, January 2, 2006 15:04 MST"))
	row("Location:", d.EventLocation)
	row("Guest:", d.HolderName)
	row("Email:", d.HolderEmail)
	row("Tickets:", fmt.Sprintf("%d", d.Tickets))
	row("Total:", FormatCents(d.TotalPriceCents))
	row("Status:", strings.ToUpper(strings.ReplaceAll(d.Status, "_", " ")))
	pdf.Ln(6)

	pdf.SetFont("Arial", "I", 12)
	pdf.SetTextColor(100, 100, 100)
	pdf.CellFormat(0, 9, fmt.Sprintf("Reservation: %s", d.ReservationNumber), "0", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 11)
	pdf.MultiCell(0, 6, "Please bring this ticket (PDF or image) to the event.\nScan the QR code to check in at the entrance.", "0", "C", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}
	return buf.Bytes(), nil
}
