// internal/core/services/reports.go
package services

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tealeg/xlsx/v3"

	"github.com/ammerola/inventory-bot/internal/core/domain"
	"github.com/ammerola/inventory-bot/internal/core/ports"
)

// Report file names as delivered to the requester
const (
	TextReportFilename = "inventory_report.txt"
	BackupFilename     = "inventory_data_backup.json"

	contentTypeText = "text/plain; charset=utf-8"
	contentTypeJSON = "application/json"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// InventorySummary holds the aggregate figures of the inventory
type InventorySummary struct {
	Products      int             `json:"products"`
	TotalQuantity int             `json:"total_quantity"`
	LowStock      int             `json:"low_stock"`
	Threshold     int             `json:"threshold"`
	TotalValue    decimal.Decimal `json:"total_value"`
}

// ReportService renders read-only views of the inventory document
type ReportService struct {
	store  ports.InventoryStore
	now    func() time.Time
	logger *slog.Logger
}

// NewReportService creates a report service
func NewReportService(store ports.InventoryStore, logger *slog.Logger) *ReportService {
	return &ReportService{
		store:  store,
		now:    time.Now,
		logger: logger.With(slog.String("service", "reports")),
	}
}

// Summary computes counts and the total stock value
func (s *ReportService) Summary(ctx context.Context) (*InventorySummary, error) {
	doc, err := s.store.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return Summarize(doc), nil
}

// Summarize computes the summary of a document
func Summarize(doc *domain.Document) *InventorySummary {
	sum := &InventorySummary{
		Products:   len(doc.Products),
		Threshold:  doc.Settings.LowStockThreshold,
		TotalValue: decimal.Zero,
	}
	for i := range doc.Products {
		p := &doc.Products[i]
		sum.TotalQuantity += p.Quantity
		sum.TotalValue = sum.TotalValue.Add(p.StockValue())
		if p.IsLowStock(doc.Settings.LowStockThreshold) {
			sum.LowStock++
		}
	}
	return sum
}

// TextReport renders the full plain-text report attachment
func (s *ReportService) TextReport(ctx context.Context) (*domain.Attachment, error) {
	doc, err := s.store.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	b.WriteString("--- Inventory Report ---\n")
	fmt.Fprintf(&b, "Generated: %s\n\n", s.now().UTC().Format("2006-01-02 15:04 MST"))

	if len(doc.Products) == 0 {
		b.WriteString("There is no data to build a report from.\n")
	} else {
		sum := Summarize(doc)
		fmt.Fprintf(&b, "Total products: %d\n", sum.Products)
		fmt.Fprintf(&b, "Total quantity in stock: %d\n", sum.TotalQuantity)
		fmt.Fprintf(&b, "Total stock value: %s\n", sum.TotalValue.StringFixed(2))
		fmt.Fprintf(&b, "Low stock (at or below %d): %d\n\n", sum.Threshold, sum.LowStock)
		b.WriteString("Product details:\n")
		for _, p := range doc.Products {
			b.WriteString("\n")
			b.WriteString(ProductDetails(p))
			b.WriteString("\n")
		}
	}
	b.WriteString("\n--- End of report ---\n")

	s.logger.DebugContext(ctx, "text report rendered", slog.Int("products", len(doc.Products)))
	return &domain.Attachment{
		Filename:    TextReportFilename,
		ContentType: contentTypeText,
		Data:        []byte(b.String()),
	}, nil
}

// Backup renders the persisted form of the current document
func (s *ReportService) Backup(ctx context.Context) (*domain.Attachment, error) {
	doc, err := s.store.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	data, err := doc.Encode()
	if err != nil {
		return nil, err
	}
	return &domain.Attachment{
		Filename:    BackupFilename,
		ContentType: contentTypeJSON,
		Data:        data,
	}, nil
}

// Spreadsheet renders the inventory as an xlsx workbook
func (s *ReportService) Spreadsheet(ctx context.Context) (*domain.Attachment, error) {
	doc, err := s.store.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	data, err := BuildSpreadsheet(doc)
	if err != nil {
		return nil, err
	}
	return &domain.Attachment{
		Filename:    fmt.Sprintf("inventory_report_%s.xlsx", s.now().UTC().Format("20060102_150405")),
		ContentType: contentTypeXLSX,
		Data:        data,
	}, nil
}

// SpreadsheetHeaders are the column titles of the xlsx report
var SpreadsheetHeaders = []string{"Company", "Product ID", "Category", "Quantity", "Price", "Value", "Low Stock"}

// BuildSpreadsheet creates an xlsx workbook in memory from the document
func BuildSpreadsheet(doc *domain.Document) ([]byte, error) {
	file := xlsx.NewFile()

	sheet, err := file.AddSheet("Inventory")
	if err != nil {
		return nil, fmt.Errorf("failed to add worksheet: %w", err)
	}

	headerRow := sheet.AddRow()
	for _, header := range SpreadsheetHeaders {
		cell := headerRow.AddCell()
		cell.Value = header
		cell.GetStyle().Font.Bold = true
		cell.GetStyle().Fill.PatternType = "solid"
		cell.GetStyle().Fill.FgColor = "CCCCCC"
	}

	threshold := doc.Settings.LowStockThreshold
	for i := range doc.Products {
		p := &doc.Products[i]
		row := sheet.AddRow()
		row.AddCell().Value = p.CompanyName
		row.AddCell().Value = p.ProductID
		row.AddCell().Value = p.Category
		row.AddCell().SetInt(p.Quantity)
		row.AddCell().Value = domain.FormatPrice(p.Price)
		row.AddCell().Value = p.StockValue().StringFixed(2)
		low := "no"
		if p.IsLowStock(threshold) {
			low = "yes"
		}
		row.AddCell().Value = low
	}

	totals := sheet.AddRow()
	sum := Summarize(doc)
	totals.AddCell().Value = "Total"
	totals.AddCell()
	totals.AddCell()
	totals.AddCell().SetInt(sum.TotalQuantity)
	totals.AddCell()
	totals.AddCell().Value = sum.TotalValue.StringFixed(2)
	totals.AddCell().SetInt(sum.LowStock)

	for i := range SpreadsheetHeaders {
		sheet.SetColWidth(i+1, i+1, 15)
	}

	var buffer bytes.Buffer
	if err := file.Write(&buffer); err != nil {
		return nil, fmt.Errorf("failed to write Excel file to buffer: %w", err)
	}
	return buffer.Bytes(), nil
}
