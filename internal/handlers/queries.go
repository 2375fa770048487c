// internal/handlers/queries.go
package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/ammerola/inventory-bot/internal/core/domain"
	"github.com/ammerola/inventory-bot/internal/core/ports"
	"github.com/ammerola/inventory-bot/internal/core/services"
)

const (
	msgInventoryEmpty = "The inventory is empty."
	msgProductsHeader = "Products in stock:"
	msgNoLowStock     = "No products are at or below the low stock threshold of %d."
	msgLowStockHeader = "Products at or below the low stock threshold of %d:"
	msgLowStockLine   = "- %s (%s): %d left"
	msgSummary        = "Inventory summary:\nProducts: %d\nTotal quantity: %d\nLow stock (at or below %d): %d\nTotal stock value: %s"
	msgNoAdmins       = "No admins are registered."
	msgAdminsHeader   = "Current admins:"
)

// QueryHandler answers the read-only commands. None of them touch sessions.
type QueryHandler struct {
	store   ports.InventoryStore
	reports *services.ReportService
	logger  *slog.Logger
}

// NewQueryHandler creates a new query handler
func NewQueryHandler(store ports.InventoryStore, reports *services.ReportService, logger *slog.Logger) *QueryHandler {
	return &QueryHandler{
		store:   store,
		reports: reports,
		logger:  logger.With(slog.String("handler", "queries")),
	}
}

// ViewProducts lists every product with all of its attributes
func (h *QueryHandler) ViewProducts(ctx context.Context) domain.Response {
	products, err := h.store.ListProducts(ctx)
	if err != nil {
		return h.failed(ctx, "view_products", err)
	}
	if len(products) == 0 {
		return domain.Reply(domain.Text(msgInventoryEmpty))
	}

	blocks := make([]string, 0, len(products)+1)
	blocks = append(blocks, msgProductsHeader)
	for _, p := range products {
		blocks = append(blocks, services.ProductDetails(p))
	}
	return domain.Reply(domain.Text(strings.Join(blocks, "\n\n")))
}

// ViewLowStock lists products whose quantity is at or below the threshold
func (h *QueryHandler) ViewLowStock(ctx context.Context) domain.Response {
	doc, err := h.store.Snapshot(ctx)
	if err != nil {
		return h.failed(ctx, "view_low_stock", err)
	}
	threshold := doc.Settings.LowStockThreshold

	low := doc.LowStock()
	if len(low) == 0 {
		return domain.Reply(domain.Text(fmt.Sprintf(msgNoLowStock, threshold)))
	}

	lines := make([]string, 0, len(low)+1)
	lines = append(lines, fmt.Sprintf(msgLowStockHeader, threshold))
	for _, p := range low {
		lines = append(lines, fmt.Sprintf(msgLowStockLine, p.CompanyName, p.ProductID, p.Quantity))
	}
	return domain.Reply(domain.Text(strings.Join(lines, "\n")))
}

// Summary reports counts and the total stock value
func (h *QueryHandler) Summary(ctx context.Context) domain.Response {
	sum, err := h.reports.Summary(ctx)
	if err != nil {
		return h.failed(ctx, "inventory_summary", err)
	}
	return domain.Reply(domain.Text(fmt.Sprintf(msgSummary,
		sum.Products, sum.TotalQuantity, sum.Threshold, sum.LowStock, sum.TotalValue.StringFixed(2))))
}

// ViewAdmins lists the admin registry
func (h *QueryHandler) ViewAdmins(ctx context.Context) domain.Response {
	admins, err := h.store.ListAdmins(ctx)
	if err != nil {
		return h.failed(ctx, "view_admins", err)
	}
	if len(admins) == 0 {
		return domain.Reply(domain.Text(msgNoAdmins))
	}

	lines := make([]string, 0, len(admins)+1)
	lines = append(lines, msgAdminsHeader)
	for _, id := range admins {
		lines = append(lines, strconv.FormatInt(id, 10))
	}
	return domain.Reply(domain.Text(strings.Join(lines, "\n")))
}

func (h *QueryHandler) failed(ctx context.Context, query string, err error) domain.Response {
	h.logger.ErrorContext(ctx, "query failed",
		slog.String("query", query),
		slog.String("error", err.Error()))
	return domain.Failure(services.MsgActionFailed)
}
