package cart

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hasanarpat/memento-mori/pkg/cartstate"
)

// lineRequest is one client cart line. unitPrice is what the client last
// saw and is replaced with the catalog price on write.
type lineRequest struct {
	ProductID uuid.UUID        `json:"productId" validate:"required"`
	Quantity  int              `json:"quantity" validate:"min=1,max=999"`
	UnitPrice *decimal.Decimal `json:"unitPrice,omitempty"`
}

type cartRequest struct {
	Items []lineRequest `json:"items" validate:"max=100,dive"`
}

func (c cartRequest) toItems() []cartstate.Item {
	items := make([]cartstate.Item, 0, len(c.Items))
	for _, line := range c.Items {
		item := cartstate.Item{ProductID: line.ProductID, Quantity: line.Quantity}
		if line.UnitPrice != nil {
			item.UnitPrice = *line.UnitPrice
		}
		items = append(items, item)
	}
	return items
}
