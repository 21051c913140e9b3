package checkout

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID        string
	SKU       string
	Name      string
	Price     decimal.Decimal
	Stock     int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Identity is the cart/order owner: an authenticated user id or an anonymous
// session token, exactly one of the two.
type Identity struct {
	UserID       string
	SessionToken string
}

func (id Identity) Valid() bool {
	return (id.UserID == "") != (id.SessionToken == "")
}

type Cart struct {
	ID           string
	UserID       string
	SessionToken string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (c Cart) Owner() Identity {
	return Identity{UserID: c.UserID, SessionToken: c.SessionToken}
}

type CartItem struct {
	CartID    string
	ProductID string
	Quantity  int
}

type Order struct {
	ID              string
	UserID          string
	SessionToken    string
	Status          OrderStatus
	TotalAmount     decimal.Decimal
	Currency        string
	IdempotencyKey  string
	ShippingAddress string
	BillingAddress  string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (o Order) Owner() Identity {
	return Identity{UserID: o.UserID, SessionToken: o.SessionToken}
}

// OrderItem freezes the unit price at order creation time.
type OrderItem struct {
	OrderID         string
	ProductID       string
	Quantity        int
	PriceAtPurchase decimal.Decimal
}

type Payment struct {
	ID            string
	OrderID       string
	TransactionID string
	Amount        decimal.Decimal
	Currency      string
	Method        PaymentMethod
	Status        PaymentStatus
	Meta          map[string]any
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// StockMovement records one committed decrement, keyed (order_id, product_id)
// so a retry never decrements the same line twice.
type StockMovement struct {
	OrderID   string
	ProductID string
	Quantity  int
	CreatedAt time.Time
}
