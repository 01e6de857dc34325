// Package report renders deposit receipts and custody handover records as PDF.
package report

import (
	"bytes"
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strconv"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/erazemk/najdeno/internal/model"
	"github.com/erazemk/najdeno/internal/store"
)

// MimeType is the content type of every rendered document.
const MimeType = "application/pdf"

const dateLayout = "02.01.2006 15:04"

// Reports carry Slovenian and Hungarian names and addresses, which the
// cp1252 core fonts cannot encode.
const fontFamily = "DejaVu"

var (
	//go:embed fonts/DejaVuSans.ttf
	fontRegular []byte
	//go:embed fonts/DejaVuSans-Bold.ttf
	fontBold []byte
)

// Generator renders documents from stored records.
type Generator struct {
	DB *sql.DB
	// Now stamps documents; defaults to time.Now.
	Now func() time.Time
}

// DepositFileName names a deposit report: {DepositNumber}_{yyyyMMdd}.pdf.
func DepositFileName(depositNumber string, at time.Time) string {
	return depositNumber + "_" + at.Format("20060102") + ".pdf"
}

// Deposit renders the receipt handed to the finder at intake.
func (g *Generator) Deposit(ctx context.Context, depositID string) ([]byte, error) {
	dep, err := store.GetDeposit(ctx, g.DB, depositID)
	if err != nil {
		return nil, err
	}
	if dep == nil {
		return nil, fmt.Errorf("deposit %s: %w", depositID, store.ErrNotFound)
	}

	d := g.newDoc("Deposit " + dep.DepositNumber)
	d.field("Deposit number", dep.DepositNumber)
	d.field("Received", dep.CreatedAt.Local().Format(dateLayout))
	d.field("Finder", dep.FinderName)
	d.field("Finder address", dep.FinderAddress)
	d.field("Finder contact", joinNonEmpty(dep.FinderEmail, dep.FinderPhone))
	d.field("Found at", dep.FoundLocation)
	if dep.FoundAt != nil {
		d.field("Found on", dep.FoundAt.Local().Format(dateLayout))
	}
	d.field("Vehicle", joinNonEmpty(dep.LicensePlate, dep.BusLine, dep.Driver))

	d.heading("Items")
	d.row(true, "#", "Category", "Details")
	for _, it := range dep.Items {
		category := it.Category
		if it.OtherCategoryText != "" {
			category += " (" + it.OtherCategoryText + ")"
		}
		d.row(false, strconv.Itoa(it.SubIndex), category, it.Details)
	}

	d.signatures("Finder", "Received by")
	return d.bytes()
}

// OwnerHandover renders the record of an item released to its owner.
func (g *Generator) OwnerHandover(ctx context.Context, itemID string) ([]byte, error) {
	item, err := g.item(ctx, itemID)
	if err != nil {
		return nil, err
	}
	claims, err := store.ListOwnerClaims(ctx, g.DB, itemID)
	if err != nil {
		return nil, err
	}
	if len(claims) == 0 {
		return nil, fmt.Errorf("owner claim for item %s: %w", itemID, store.ErrNotFound)
	}
	claim := claims[len(claims)-1]

	d := g.newDoc("Handover to owner")
	d.itemFields(item)
	d.heading("Owner")
	d.field("Name", claim.OwnerName)
	d.field("Address", claim.OwnerAddress)
	d.field("Contact", joinNonEmpty(claim.OwnerEmail, claim.OwnerPhone))
	d.field("ID document", claim.OwnerIDNumber)
	d.field("Released", claim.ReleasedAt.Local().Format(dateLayout))

	d.signatures("Owner", "Released by")
	return d.bytes()
}

// OfficeHandover renders the record of an item handed over to the office.
func (g *Generator) OfficeHandover(ctx context.Context, itemID string) ([]byte, error) {
	item, err := g.item(ctx, itemID)
	if err != nil {
		return nil, err
	}

	d := g.newDoc("Handover to lost and found office")
	d.itemFields(item)
	d.signatures("Handed over by", "Received by")
	return d.bytes()
}

// Disposal renders the disposal record of an item.
func (g *Generator) Disposal(ctx context.Context, itemID string) ([]byte, error) {
	item, err := g.item(ctx, itemID)
	if err != nil {
		return nil, err
	}
	logs, err := store.ListCustodyLogs(ctx, g.DB, itemID)
	if err != nil {
		return nil, err
	}

	d := g.newDoc("Disposal record")
	d.itemFields(item)
	d.heading("Custody history")
	d.row(true, "When", "Action", "By")
	for _, l := range logs {
		d.row(false, l.Timestamp.Local().Format(dateLayout), string(l.Action), l.ActorUserID)
	}
	d.signatures("Disposed by", "Witness")
	return d.bytes()
}

// SaveDeposit renders the deposit report and stores it with the deposit.
func (g *Generator) SaveDeposit(ctx context.Context, depositID string) (*model.DepositDocument, error) {
	dep, err := store.GetDeposit(ctx, g.DB, depositID)
	if err != nil {
		return nil, err
	}
	if dep == nil {
		return nil, fmt.Errorf("deposit %s: %w", depositID, store.ErrNotFound)
	}

	pdf, err := g.Deposit(ctx, depositID)
	if err != nil {
		return nil, err
	}

	return store.SaveDepositDocument(ctx, g.DB, model.DepositDocument{
		DepositID: dep.ID,
		FileName:  DepositFileName(dep.DepositNumber, g.now()),
		MimeType:  MimeType,
		Type:      model.DocumentTypeDepositReport,
		Bytes:     pdf,
	})
}

func (g *Generator) item(ctx context.Context, id string) (*model.FoundItem, error) {
	item, err := store.GetItem(ctx, g.DB, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("item %s: %w", id, store.ErrNotFound)
	}
	return item, nil
}

func (g *Generator) now() time.Time {
	if g.Now != nil {
		return g.Now()
	}
	return time.Now()
}

// doc wraps an fpdf document with the layout shared by all reports.
type doc struct {
	pdf *fpdf.Fpdf
}

func (g *Generator) newDoc(title string) *doc {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(title, true)
	pdf.SetCreator("najdeno", true)
	pdf.SetCreationDate(g.now())
	pdf.SetMargins(20, 20, 20)
	pdf.AddUTF8FontFromBytes(fontFamily, "", fontRegular)
	pdf.AddUTF8FontFromBytes(fontFamily, "B", fontBold)
	pdf.AddPage()

	d := &doc{pdf: pdf}

	pdf.SetFont(fontFamily, "B", 16)
	pdf.CellFormat(0, 10, title, "", 1, "L", false, 0, "")
	pdf.SetFont(fontFamily, "", 9)
	pdf.CellFormat(0, 5, "Printed "+g.now().Local().Format(dateLayout), "", 1, "L", false, 0, "")
	pdf.Ln(4)
	return d
}

func (d *doc) heading(text string) {
	d.pdf.Ln(3)
	d.pdf.SetFont(fontFamily, "B", 12)
	d.pdf.CellFormat(0, 8, text, "B", 1, "L", false, 0, "")
	d.pdf.Ln(1)
}

// field writes a label/value line; empty values are skipped.
func (d *doc) field(label, value string) {
	if value == "" {
		return
	}
	d.pdf.SetFont(fontFamily, "B", 10)
	d.pdf.CellFormat(45, 6, label+":", "", 0, "L", false, 0, "")
	d.pdf.SetFont(fontFamily, "", 10)
	d.pdf.MultiCell(0, 6, value, "", "L", false)
}

func (d *doc) itemFields(item *model.FoundItem) {
	d.heading("Item")
	d.field("Deposit", item.DepositNumber)
	category := item.Category
	if item.OtherCategoryText != "" {
		category += " (" + item.OtherCategoryText + ")"
	}
	d.field("Category", category)
	d.field("Details", item.Details)
	d.field("Status", string(item.Status))
	d.field("Found at", item.FoundLocation)
	d.field("Storage", item.StorageLocation)
	if item.Cash != nil {
		d.field("Cash", fmt.Sprintf("%.2f %s", float64(item.Cash.Total())/100, item.Cash.Currency))
	}
}

var columnWidths = []float64{40, 50, 80}

func (d *doc) row(header bool, cells ...string) {
	style := ""
	if header {
		style = "B"
	}
	d.pdf.SetFont(fontFamily, style, 10)
	for i, c := range cells {
		d.pdf.CellFormat(columnWidths[i], 7, c, "1", 0, "L", false, 0, "")
	}
	d.pdf.Ln(-1)
}

func (d *doc) signatures(left, right string) {
	d.pdf.Ln(20)
	d.pdf.SetFont(fontFamily, "", 10)
	d.pdf.CellFormat(85, 6, "______________________________", "", 0, "L", false, 0, "")
	d.pdf.CellFormat(85, 6, "______________________________", "", 1, "L", false, 0, "")
	d.pdf.CellFormat(85, 6, left, "", 0, "L", false, 0, "")
	d.pdf.CellFormat(85, 6, right, "", 1, "L", false, 0, "")
}

func (d *doc) bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := d.pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("rendering pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func joinNonEmpty(parts ...string) string {
	var out string
	for _, p := range parts {
		if p == "" {
			continue
		}
		if out != "" {
			out += ", "
		}
		out += p
	}
	return out
}
