package enums

// DiscountType determines how a coupon value is applied: a percentage of the
// subtotal or a fixed amount off.
type DiscountType string

const (
	DiscountTypePercentage DiscountType = "percentage"
	DiscountTypeFixed      DiscountType = "fixed"
)

var discountTypes = set[DiscountType]{DiscountTypePercentage, DiscountTypeFixed}

func (d DiscountType) String() string { return string(d) }

func (d DiscountType) IsValid() bool { return discountTypes.has(d) }

func ParseDiscountType(value string) (DiscountType, error) {
	return discountTypes.parse(value, "discount type")
}
