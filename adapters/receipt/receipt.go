// Package receipt renders a quote as a printable PDF.
package receipt

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode"

	"github.com/jung-kurt/gofpdf"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"nexx-gsm/core/quote"
	"nexx-gsm/internal/errors"
)

// Options carries what the quote itself does not know
type Options struct {
	Shop     string
	Phone    string
	Customer string
	IssuedAt time.Time
}

// DefaultOptions returns the shop header
func DefaultOptions() Options {
	return Options{
		Shop:  "NEXX GSM",
		Phone: "info@nexx.ro",
	}
}

// Disclaimer is printed under the totals
const Disclaimer = "Pretul final se stabileste dupa diagnostic. Diagnosticul este gratuit pentru comenzile online."

// Render writes the PDF for q to w
func Render(w io.Writer, q *quote.Quote, opts Options) error {
	if q == nil || len(q.Items) == 0 {
		return errors.Validation("nothing to print")
	}
	if opts.IssuedAt.IsZero() {
		opts.IssuedAt = time.Now()
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetCreationDate(opts.IssuedAt)
	pdf.SetTitle(latin(opts.Shop+" - estimare"), false)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(0, 10, latin(opts.Shop))
	pdf.Ln(9)
	pdf.SetFont("Arial", "", 10)
	if opts.Phone != "" {
		pdf.Cell(0, 6, latin(opts.Phone))
		pdf.Ln(8)
	}

	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(0, 8, "Estimare reparatie")
	pdf.Ln(9)
	pdf.SetFont("Arial", "", 10)
	device := q.Device
	if device == "" {
		device = "Nespecificat"
	}
	rows := [][2]string{
		{"Dispozitiv", device},
		{"Tip", string(q.DeviceType)},
		{"Data", opts.IssuedAt.Format("02.01.2006 15:04")},
		{"Referinta", string(q.Fingerprint)},
	}
	if opts.Customer != "" {
		rows = append(rows, [2]string{"Client", opts.Customer})
	}
	for _, r := range rows {
		pdf.Cell(35, 6, latin(r[0])+":")
		pdf.Cell(0, 6, latin(r[1]))
		pdf.Ln(5)
	}
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(70, 7, "Reparatie", "1", 0, "L", false, 0, "")
	pdf.CellFormat(30, 7, "Minim", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 7, "Maxim", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 7, "Estimat", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 10)
	for _, item := range q.Items {
		name := item.Name
		if item.Discounted {
			name += " *"
		}
		pdf.CellFormat(70, 6, latin(name), "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 6, amount(item.Min, q.Currency), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, amount(item.Max, q.Currency), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, amount(item.Avg, q.Currency), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(70, 7, "Total", "1", 0, "L", false, 0, "")
	pdf.CellFormat(30, 7, amount(q.Total.Min, q.Currency), "1", 0, "R", false, 0, "")
	pdf.CellFormat(30, 7, amount(q.Total.Max, q.Currency), "1", 0, "R", false, 0, "")
	pdf.CellFormat(30, 7, amount(q.Total.Avg, q.Currency), "1", 0, "R", false, 0, "")
	pdf.Ln(10)

	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, "Timp estimat: "+latin(q.RepairTime))
	pdf.Ln(6)
	if len(q.Items) > 1 {
		pdf.Cell(0, 6, "* reducere pentru reparatii multiple")
		pdf.Ln(6)
	}
	pdf.Ln(2)
	pdf.SetFont("Arial", "I", 9)
	pdf.MultiCell(0, 5, Disclaimer, "", "L", false)

	if err := pdf.Output(w); err != nil {
		return errors.Internal("failed to render receipt", err)
	}
	return nil
}

// Bytes renders into memory
func Bytes(q *quote.Quote, opts Options) ([]byte, error) {
	var buf bytes.Buffer
	if err := Render(&buf, q, opts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Filename suggests a download name for q
func Filename(q *quote.Quote) string {
	return fmt.Sprintf("nexx-estimare-%s.pdf", q.Fingerprint)
}

func amount(v int64, currency string) string {
	return strings.TrimSpace(fmt.Sprintf("%d %s", v, currency))
}

// latin drops diacritics; the core PDF fonts only cover Latin-1.
func latin(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
