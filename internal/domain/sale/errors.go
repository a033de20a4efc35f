package sale

import (
	"github.com/go-faster/errors"

	"github.com/xenking/pos-settlement/internal/domain/cart"
	"github.com/xenking/pos-settlement/internal/domain/credit"
	"github.com/xenking/pos-settlement/internal/domain/inventory"
	"github.com/xenking/pos-settlement/internal/domain/promotion"
	"github.com/xenking/pos-settlement/internal/domain/tax"
)

// ErrNegativeAmount is returned when amount paid or manual discount is
// negative.
var ErrNegativeAmount = errors.New("amounts must not be negative")

// IsInvalid reports whether err is a request validation failure.
func IsInvalid(err error) bool {
	var item *cart.InvalidItemError
	return errors.Is(err, cart.ErrEmptyCart) ||
		errors.Is(err, ErrNegativeAmount) ||
		errors.As(err, &item)
}

// IsRejection reports whether err is a business-rule failure, as opposed
// to an infrastructure error.
func IsRejection(err error) bool {
	return Reason(err) != ""
}

// Reason returns a short machine-readable name for a business-rule
// failure, or an empty string when err is not one.
func Reason(err error) string {
	var (
		notFound *cart.ProductNotFoundError
		stock    *inventory.InsufficientStockError
		limit    *credit.CreditLimitExceededError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &notFound):
		return "product_not_found"
	case errors.As(err, &stock):
		return "insufficient_stock"
	case errors.As(err, &limit):
		return "credit_limit_exceeded"
	case errors.Is(err, tax.ErrInvalidConfiguration):
		return "invalid_tax_configuration"
	case errors.Is(err, credit.ErrCreditDisabled):
		return "credit_disabled"
	case errors.Is(err, credit.ErrCustomerRequired):
		return "customer_required"
	case errors.Is(err, credit.ErrConfirmationRequired):
		return "confirmation_required"
	case errors.Is(err, credit.ErrCustomerNotFound):
		return "customer_not_found"
	case errors.Is(err, promotion.ErrUsageLimitReached):
		return "promotion_usage_limit"
	default:
		return ""
	}
}
