package helpers

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/hasanarpat/memento-mori/pkg/checkout"
	"github.com/hasanarpat/memento-mori/pkg/db/models"
	pkgerrors "github.com/hasanarpat/memento-mori/pkg/errors"
)

// ResolveLines matches requested lines against the catalog. A missing product
// is a 404 naming it, an inactive one a 400, and any line above stock fails
// the whole set.
func ResolveLines(lines []checkout.Line, catalog map[uuid.UUID]models.Product) ([]PricedLine, error) {
	priced := make([]PricedLine, 0, len(lines))
	stock := make([]checkout.StockCheckInput, 0, len(lines))
	for _, line := range lines {
		product, ok := catalog[line.ProductID]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("product %s not found", line.ProductID)).
				WithDetails(map[string]string{"productId": line.ProductID.String()})
		}
		if !product.IsActive {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%s is no longer available", product.Name)).
				WithDetails(map[string]string{"productId": line.ProductID.String()})
		}
		stock = append(stock, checkout.StockCheckInput{
			ProductID:   product.ID,
			ProductName: product.Name,
			Stock:       product.Stock,
			Quantity:    line.Quantity,
		})
		priced = append(priced, PriceLine(product, line.Quantity))
	}
	if err := checkout.ValidateStock(stock); err != nil {
		return nil, err
	}
	return priced, nil
}
