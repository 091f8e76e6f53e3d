// Package certificate renders the digital land record certificate.
package certificate

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"landledger/internal/land/models"
)

// Owner is the display data of the current owner printed on the certificate.
type Owner struct {
	Name  string
	Email string
}

// VerificationURL is the payload encoded in the certificate's QR code. It
// resolves to the public asset lookup.
func VerificationURL(baseURL, assetID string) string {
	return strings.TrimRight(baseURL, "/") + "/verify/" + assetID
}

// Render produces an A4 PDF for land. issuedAt is printed and also pinned as
// the document creation date so the output is reproducible.
func Render(land *models.Land, owner *Owner, verifyURL string, issuedAt time.Time) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetCreationDate(issuedAt)
	pdf.SetModificationDate(issuedAt)
	pdf.SetTitle("Land Record Certificate "+land.AssetID, true)
	pdf.SetMargins(20, 20, 20)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 18)
	pdf.SetTextColor(33, 64, 120)
	pdf.CellFormat(0, 12, "Digital Land Record Certificate", "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 11)
	pdf.SetTextColor(0, 0, 0)
	pdf.CellFormat(0, 8, "Asset ID: "+land.AssetID, "", 1, "C", false, 0, "")
	pdf.Ln(6)

	section(pdf, "Location")
	loc := land.Location
	row(pdf, "State", loc.State)
	row(pdf, "District", loc.District)
	row(pdf, "Taluka", loc.Taluka)
	row(pdf, "Village", loc.Village)
	row(pdf, "Survey number", surveyNumber(loc))
	row(pdf, "Pincode", loc.Pincode)

	section(pdf, "Parcel")
	row(pdf, "Area", fmt.Sprintf("%.2f acres, %.2f guntas (%.0f sq ft)", land.Area.Acres, land.Area.Guntas, land.Area.TotalSqft()))
	row(pdf, "Land type", string(land.LandType))
	if land.Classification != "" {
		row(pdf, "Classification", string(land.Classification))
	}
	b := land.Boundaries
	if b != (models.Boundaries{}) {
		row(pdf, "Boundaries", fmt.Sprintf("N: %s, S: %s, E: %s, W: %s", b.North, b.South, b.East, b.West))
	}
	row(pdf, "Verification", string(land.VerificationStatus))

	section(pdf, "Ownership")
	if owner != nil {
		row(pdf, "Current owner", owner.Name)
		row(pdf, "Contact", owner.Email)
	} else {
		row(pdf, "Current owner", "Unclaimed")
	}
	for _, rec := range land.OwnershipHistory {
		to := "present"
		if rec.ToDate != nil {
			to = rec.ToDate.Format("2006-01-02")
		}
		row(pdf, rec.FromDate.Format("2006-01-02")+" to "+to, rec.OwnerName)
	}

	section(pdf, "Verification link")
	pdf.SetFont("Courier", "", 10)
	pdf.MultiCell(0, 6, verifyURL, "1", "L", false)
	pdf.Ln(4)

	pdf.SetFont("Arial", "I", 9)
	pdf.CellFormat(0, 6, "Issued "+issuedAt.UTC().Format(time.RFC1123), "", 1, "R", false, 0, "")

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("render certificate: %w", err)
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write certificate: %w", err)
	}
	return buf.Bytes(), nil
}

func section(pdf *gofpdf.Fpdf, title string) {
	pdf.Ln(2)
	pdf.SetFont("Arial", "B", 12)
	pdf.SetFillColor(235, 240, 248)
	pdf.CellFormat(0, 8, title, "", 1, "L", true, 0, "")
	pdf.SetFont("Arial", "", 10)
}

func row(pdf *gofpdf.Fpdf, label, value string) {
	pdf.CellFormat(50, 7, label, "", 0, "L", false, 0, "")
	pdf.MultiCell(0, 7, value, "", "L", false)
}

func surveyNumber(loc models.Location) string {
	if loc.SubDivision == "" {
		return loc.SurveyNumber
	}
	return loc.SurveyNumber + "/" + loc.SubDivision
}
