package enums

// ProductSort is the catalog ordering requested by the storefront.
type ProductSort string

const (
	ProductSortNewest    ProductSort = "newest"
	ProductSortPriceAsc  ProductSort = "price_asc"
	ProductSortPriceDesc ProductSort = "price_desc"
)

var productSorts = set[ProductSort]{ProductSortNewest, ProductSortPriceAsc, ProductSortPriceDesc}

func (s ProductSort) String() string { return string(s) }

func (s ProductSort) IsValid() bool { return productSorts.has(s) }

// ParseProductSort treats an empty value as newest first.
func ParseProductSort(value string) (ProductSort, error) {
	if value == "" {
		return ProductSortNewest, nil
	}
	return productSorts.parse(value, "sort")
}
