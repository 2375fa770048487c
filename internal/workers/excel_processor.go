// internal/workers/excel_processor.go
package workers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"github.com/tealeg/xlsx/v3"

	"github.com/ammerola/inventory-bot/internal/core/domain"
	"github.com/ammerola/inventory-bot/internal/core/ports"
)

// Sheet columns read by the importer, header row first
const (
	colCompany = iota
	colProductID
	colQuantity
	colPrice
	colCategory
	colImageURL
)

// ImportResult counts what an import did
type ImportResult struct {
	Added   int      `json:"added"`
	Skipped int      `json:"skipped"`
	Invalid int      `json:"invalid"`
	Errors  []string `json:"errors,omitempty"`
}

// ExcelImporter adds the products of a spreadsheet to the inventory.
// Ids that already exist are skipped, never overwritten.
type ExcelImporter struct {
	store  ports.InventoryStore
	logger *slog.Logger
}

// NewExcelImporter creates an importer writing through store
func NewExcelImporter(store ports.InventoryStore, logger *slog.Logger) *ExcelImporter {
	return &ExcelImporter{
		store:  store,
		logger: logger.With(slog.String("component", "excel_importer")),
	}
}

// ImportFile imports the workbook at path
func (i *ExcelImporter) ImportFile(ctx context.Context, path string) (*ImportResult, error) {
	file, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	return i.Import(ctx, file)
}

// ImportBytes imports an in-memory workbook
func (i *ExcelImporter) ImportBytes(ctx context.Context, data []byte) (*ImportResult, error) {
	file, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel data: %w", err)
	}
	return i.Import(ctx, file)
}

// Import reads the first sheet of file
func (i *ExcelImporter) Import(ctx context.Context, file *xlsx.File) (*ImportResult, error) {
	result := &ImportResult{}
	if len(file.Sheets) == 0 {
		return result, nil
	}

	var products []domain.Product
	rowIdx := 0
	err := file.Sheets[0].ForEachRow(func(r *xlsx.Row) error {
		rowIdx++
		if rowIdx == 1 {
			return nil
		}

		p, ok, err := parseProductRow(r)
		switch {
		case err != nil:
			result.Invalid++
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", rowIdx, err))
		case ok:
			products = append(products, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to process Excel rows: %w", err)
	}

	for _, p := range products {
		err := i.store.AddProduct(ctx, p)
		switch {
		case err == nil:
			result.Added++
		case errors.Is(err, domain.ErrConflict):
			result.Skipped++
			i.logger.InfoContext(ctx, "skipping existing product", slog.String("product_id", p.ProductID))
		case domain.IsValidation(err):
			result.Invalid++
			result.Errors = append(result.Errors, fmt.Sprintf("product %s: %v", p.ProductID, err))
		default:
			return result, err
		}
	}

	i.logger.InfoContext(ctx, "spreadsheet imported",
		slog.Int("added", result.Added),
		slog.Int("skipped", result.Skipped),
		slog.Int("invalid", result.Invalid))
	return result, nil
}

// parseProductRow reports ok=false for a blank row
func parseProductRow(r *xlsx.Row) (domain.Product, bool, error) {
	get := func(i int) string {
		c := r.GetCell(i)
		if c == nil {
			return ""
		}
		return strings.TrimSpace(c.String())
	}

	p := domain.Product{
		CompanyName: get(colCompany),
		ProductID:   get(colProductID),
		Category:    get(colCategory),
		ImageURL:    get(colImageURL),
	}
	if p.CompanyName == "" && p.ProductID == "" {
		return p, false, nil
	}

	qty, err := parseWholeCell(get(colQuantity))
	if err != nil {
		return p, false, err
	}
	p.Quantity = qty

	if raw := strings.TrimPrefix(get(colPrice), "$"); raw != "" {
		price, err := domain.ParsePrice(raw)
		if err != nil {
			return p, false, err
		}
		p.Price = price
	}

	if err := p.Validate(); err != nil {
		return p, false, err
	}
	return p, true, nil
}

// parseWholeCell accepts "12" and the "12.0" form spreadsheets store numbers in
func parseWholeCell(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	if n, err := domain.ParseQuantity(s); err == nil {
		return n, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil || !d.Equal(d.Truncate(0)) {
		return 0, domain.NewValidationError("quantity", "must be a whole number")
	}
	return domain.ParseQuantity(d.String())
}

// ExcelProcessor runs spreadsheet imports queued as excel:import
type ExcelProcessor struct {
	importer *ExcelImporter
	storage  ports.BackupStorage
	logger   *slog.Logger
}

// NewExcelProcessor creates a new Excel processor
func NewExcelProcessor(importer *ExcelImporter, storage ports.BackupStorage, logger *slog.Logger) *ExcelProcessor {
	return &ExcelProcessor{
		importer: importer,
		storage:  storage,
		logger:   logger.With(slog.String("processor", "excel")),
	}
}

// ProcessImport handles excel:import
func (p *ExcelProcessor) ProcessImport(ctx context.Context, t *asynq.Task) error {
	var payload ImportPayload
	if err := decodePayload(t, &payload); err != nil {
		return err
	}

	var (
		result *ImportResult
		err    error
	)
	switch {
	case payload.Key != "":
		var data []byte
		data, err = p.storage.Download(ctx, payload.Key)
		if err != nil {
			return fmt.Errorf("failed to fetch sheet: %w", err)
		}
		result, err = p.importer.ImportBytes(ctx, data)
	case payload.FilePath != "":
		result, err = p.importer.ImportFile(ctx, payload.FilePath)
	default:
		return fmt.Errorf("import payload names no sheet: %w", asynq.SkipRetry)
	}
	if err != nil {
		return err
	}

	writeResult(t, result)
	p.logger.InfoContext(ctx, "Excel import completed",
		slog.String("key", payload.Key),
		slog.Int("added", result.Added),
		slog.Int("skipped", result.Skipped))
	return nil
}
