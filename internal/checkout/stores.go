package checkout

import "context"

// TxManager runs fn inside one database transaction. Store calls made with the
// ctx passed to fn join that transaction; a non-nil error rolls everything back.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type ProductStore interface {
	Get(ctx context.Context, id string) (Product, error)
	// GetForUpdate takes the exclusive row lock; must run inside a transaction.
	GetForUpdate(ctx context.Context, id string) (Product, error)
	DecrementStock(ctx context.Context, id string, qty int) error
	List(ctx context.Context) ([]Product, error)
}

type CartStore interface {
	GetOrCreate(ctx context.Context, owner Identity) (Cart, error)
	Items(ctx context.Context, cartID string) ([]CartItem, error)
	GetItem(ctx context.Context, cartID, productID string) (CartItem, error)
	// UpsertItem inserts the line or overwrites its quantity.
	UpsertItem(ctx context.Context, item CartItem) error
	DeleteItem(ctx context.Context, cartID, productID string) error
	ClearItems(ctx context.Context, cartID string) error
}

type OrderStore interface {
	// Insert writes the order and its items; a duplicate idempotency key maps
	// to ErrDuplicateIdempotencyKey.
	Insert(ctx context.Context, o Order, items []OrderItem) error
	IdempotencyKeyUsed(ctx context.Context, key string) (bool, error)
	Get(ctx context.Context, id string) (Order, error)
	ListByOwner(ctx context.Context, owner Identity) ([]Order, error)
	Items(ctx context.Context, orderID string) ([]OrderItem, error)
	// UpdateStatus applies the transition only when the order is currently in
	// from; reports whether a row changed.
	UpdateStatus(ctx context.Context, id string, from, to OrderStatus) (bool, error)
}

type PaymentStore interface {
	// Insert maps a duplicate transaction id to ErrAlreadyExists.
	Insert(ctx context.Context, p Payment) error
	Get(ctx context.Context, id string) (Payment, error)
	GetByTransactionID(ctx context.Context, transactionID string) (Payment, error)
	UpdateStatus(ctx context.Context, id string, from, to PaymentStatus) (bool, error)
	// MergeMeta merges fields into the metadata blob; later values win per key.
	MergeMeta(ctx context.Context, id string, meta map[string]any) error
	ListByOrder(ctx context.Context, orderID string) ([]Payment, error)
}

type MovementStore interface {
	// Record inserts the movement; reports false when the (order, product)
	// pair was already recorded.
	Record(ctx context.Context, m StockMovement) (bool, error)
	ByOrder(ctx context.Context, orderID string) ([]StockMovement, error)
}

// StockReserver is the single write path for product stock.
type StockReserver interface {
	Reserve(ctx context.Context, orderID, productID string, qty int) error
}
