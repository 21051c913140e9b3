package checkout

import "errors"

var (
	ErrInsufficientStock        = errors.New("insufficient stock")
	ErrOutOfStock               = errors.New("out of stock")
	ErrNotFound                 = errors.New("not found")
	ErrAlreadyExists            = errors.New("already exists")
	ErrDuplicateIdempotencyKey  = errors.New("idempotency key already used")
	ErrEmptyCart                = errors.New("cart is empty")
	ErrInvalidQuantity          = errors.New("quantity must be at least 1")
	ErrInvalidIdentity          = errors.New("exactly one of user id or session token must be set")
	ErrPaymentFailed            = errors.New("payment failed")
	ErrInvalidRefundTarget      = errors.New("payment is not refundable")
	ErrUnsupportedPaymentMethod = errors.New("unsupported payment method")
	ErrWebhookVerification      = errors.New("webhook verification failed")

	// ErrTransientStockConflict marks a reconciliation failure worth retrying.
	ErrTransientStockConflict = errors.New("transient stock conflict")
)

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
