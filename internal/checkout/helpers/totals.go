package helpers

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hasanarpat/memento-mori/pkg/db/models"
)

// PricedLine is a checkout line priced from the product record.
type PricedLine struct {
	ProductID uuid.UUID
	Name      string
	Slug      string
	Quantity  int
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
}

// PriceLine captures the current server price for qty units of product.
func PriceLine(product models.Product, qty int) PricedLine {
	return PricedLine{
		ProductID: product.ID,
		Name:      product.Name,
		Slug:      product.Slug,
		Quantity:  qty,
		UnitPrice: product.Price,
		LineTotal: product.Price.Mul(decimal.NewFromInt(int64(qty))).Round(2),
	}
}

// Subtotal sums the line totals.
func Subtotal(lines []PricedLine) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.LineTotal)
	}
	return total
}

// OrderItems converts priced lines into order item rows.
func OrderItems(lines []PricedLine) []models.OrderItem {
	items := make([]models.OrderItem, 0, len(lines))
	for _, line := range lines {
		items = append(items, models.OrderItem{
			ProductID:   line.ProductID,
			ProductName: line.Name,
			ProductSlug: line.Slug,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			LineTotal:   line.LineTotal,
		})
	}
	return items
}
