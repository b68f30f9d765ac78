package checkout

import (
	"fmt"

	"github.com/google/uuid"

	pkgerrors "github.com/hasanarpat/memento-mori/pkg/errors"
)

// Line is a requested quantity of one product.
type Line struct {
	ProductID uuid.UUID
	Quantity  int
}

// MergeLines folds lines that share a product ID by summing quantities. The
// first occurrence fixes the position.
func MergeLines(lines []Line) []Line {
	out := make([]Line, 0, len(lines))
	index := make(map[uuid.UUID]int, len(lines))
	for _, line := range lines {
		if i, ok := index[line.ProductID]; ok {
			out[i].Quantity += line.Quantity
			continue
		}
		index[line.ProductID] = len(out)
		out = append(out, line)
	}
	return out
}

// StockCheckInput describes the data required to verify a line against stock.
type StockCheckInput struct {
	ProductID   uuid.UUID
	ProductName string
	Stock       int
	Quantity    int
}

// StockViolationDetail exposes the data returned to callers when a check fails.
type StockViolationDetail struct {
	ProductID    uuid.UUID `json:"productId"`
	ProductName  string    `json:"productName,omitempty"`
	Available    int       `json:"available"`
	RequestedQty int       `json:"requested"`
}

// ValidateStock ensures every line fits in the product's current stock. The
// message names the first short product; details list all of them.
func ValidateStock(items []StockCheckInput) error {
	var violations []StockViolationDetail
	for _, item := range items {
		if item.Quantity <= item.Stock {
			continue
		}
		violations = append(violations, StockViolationDetail{
			ProductID:    item.ProductID,
			ProductName:  item.ProductName,
			Available:    max(item.Stock, 0),
			RequestedQty: item.Quantity,
		})
	}
	if len(violations) == 0 {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("insufficient stock for %s", violations[0].ProductName)).WithDetails(map[string]any{
		"violations": violations,
	})
}
