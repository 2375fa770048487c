// test/benchmarks/helpers.go
package benchmarks

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/ammerola/inventory-bot/internal/core/domain"
	"github.com/ammerola/inventory-bot/internal/core/services"
	"github.com/ammerola/inventory-bot/test/helpers"
)

const benchAdmin int64 = 1

// buildLargeDocument returns a document with n products, every fifth one low on stock
func buildLargeDocument(n int) *domain.Document {
	doc := helpers.NewTestDocument(benchAdmin)
	doc.Products = make([]domain.Product, 0, n)
	for i := 0; i < n; i++ {
		qty := 100 + i
		if i%5 == 0 {
			qty = i % 50
		}
		doc.Products = append(doc.Products, domain.Product{
			CompanyName: fmt.Sprintf("Company %d", i%40),
			ProductID:   fmt.Sprintf("B%05d", i),
			Quantity:    qty,
			Price:       float64(i%300) + 0.99,
			Category:    "warehouse",
			ImageURL:    fmt.Sprintf("https://img.example.com/%d.png", i),
		})
	}
	return doc
}

type benchStack struct {
	repo    *helpers.MemoryRepository
	store   *services.InventoryService
	reports *services.ReportService
	engine  *services.Engine
}

func newBenchStack(products int) *benchStack {
	logger := slog.New(slog.DiscardHandler)
	repo := helpers.NewMemoryRepository(buildLargeDocument(products))
	store := services.NewInventoryService(repo, logger)
	gate := services.NewAdminGate(store, logger)
	return &benchStack{
		repo:    repo,
		store:   store,
		reports: services.NewReportService(store, logger),
		engine:  services.NewEngine(store, gate, services.NewMemorySessionStore(time.Hour, logger), logger),
	}
}
