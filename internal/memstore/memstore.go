// Package memstore implements the checkout store interfaces in memory. It
// backs the service tests and the local dev mode: WithinTx serializes callers
// on one mutex and restores a snapshot on error, which models the row-lock
// plus rollback semantics the postgres stores get from the database.
package memstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ariefcatur/go-checkout.git/internal/checkout"
	"github.com/google/uuid"
)

type txKey struct{}

type state struct {
	products     map[string]checkout.Product
	carts        map[string]checkout.Cart
	cartByUser   map[string]string
	cartBySess   map[string]string
	cartItems    map[string]map[string]checkout.CartItem
	orders       map[string]checkout.Order
	orderByKey   map[string]string
	orderItems   map[string][]checkout.OrderItem
	payments     map[string]checkout.Payment
	paymentByTxn map[string]string
	movements    map[string]map[string]checkout.StockMovement
}

type Store struct {
	mu sync.Mutex
	st state
}

func New() *Store {
	return &Store{st: state{
		products:     map[string]checkout.Product{},
		carts:        map[string]checkout.Cart{},
		cartByUser:   map[string]string{},
		cartBySess:   map[string]string{},
		cartItems:    map[string]map[string]checkout.CartItem{},
		orders:       map[string]checkout.Order{},
		orderByKey:   map[string]string{},
		orderItems:   map[string][]checkout.OrderItem{},
		payments:     map[string]checkout.Payment{},
		paymentByTxn: map[string]string{},
		movements:    map[string]map[string]checkout.StockMovement{},
	}}
}

// WithinTx serializes transactions on the store mutex and rolls the whole
// state back when fn fails, giving tests all-or-nothing semantics.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.st.clone()
	if err := fn(context.WithValue(ctx, txKey{}, struct{}{})); err != nil {
		s.st = snap
		return err
	}
	return nil
}

// enter takes the mutex unless the caller already holds it through WithinTx.
func (s *Store) enter(ctx context.Context) func() {
	if ctx.Value(txKey{}) != nil {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) SeedProduct(p checkout.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.products[p.ID] = p
}

// ---- ProductStore ----

func (s *Store) Get(ctx context.Context, id string) (checkout.Product, error) {
	defer s.enter(ctx)()
	p, ok := s.st.products[id]
	if !ok {
		return checkout.Product{}, fmt.Errorf("%w: product %s", checkout.ErrNotFound, id)
	}
	return p, nil
}

func (s *Store) GetForUpdate(ctx context.Context, id string) (checkout.Product, error) {
	return s.Get(ctx, id)
}

func (s *Store) DecrementStock(ctx context.Context, id string, qty int) error {
	defer s.enter(ctx)()
	p, ok := s.st.products[id]
	if !ok {
		return fmt.Errorf("%w: product %s", checkout.ErrNotFound, id)
	}
	if p.Stock < qty {
		return fmt.Errorf("%w: product %s", checkout.ErrInsufficientStock, id)
	}
	p.Stock -= qty
	s.st.products[id] = p
	return nil
}

func (s *Store) List(ctx context.Context) ([]checkout.Product, error) {
	defer s.enter(ctx)()
	out := make([]checkout.Product, 0, len(s.st.products))
	for _, p := range s.st.products {
		out = append(out, p)
	}
	return out, nil
}

// ---- CartStore ----

func (s *Store) GetOrCreate(ctx context.Context, owner checkout.Identity) (checkout.Cart, error) {
	defer s.enter(ctx)()
	if !owner.Valid() {
		return checkout.Cart{}, checkout.ErrInvalidIdentity
	}
	idx, key := s.st.cartByUser, owner.UserID
	if owner.UserID == "" {
		idx, key = s.st.cartBySess, owner.SessionToken
	}
	if id, ok := idx[key]; ok {
		return s.st.carts[id], nil
	}
	c := checkout.Cart{
		ID:           uuid.NewString(),
		UserID:       owner.UserID,
		SessionToken: owner.SessionToken,
		CreatedAt:    time.Now().UTC(),
	}
	s.st.carts[c.ID] = c
	idx[key] = c.ID
	return c, nil
}

func (s *Store) Items(ctx context.Context, cartID string) ([]checkout.CartItem, error) {
	defer s.enter(ctx)()
	var out []checkout.CartItem
	for _, it := range s.st.cartItems[cartID] {
		out = append(out, it)
	}
	return out, nil
}

func (s *Store) GetItem(ctx context.Context, cartID, productID string) (checkout.CartItem, error) {
	defer s.enter(ctx)()
	it, ok := s.st.cartItems[cartID][productID]
	if !ok {
		return checkout.CartItem{}, fmt.Errorf("%w: cart line", checkout.ErrNotFound)
	}
	return it, nil
}

func (s *Store) UpsertItem(ctx context.Context, item checkout.CartItem) error {
	defer s.enter(ctx)()
	if s.st.cartItems[item.CartID] == nil {
		s.st.cartItems[item.CartID] = map[string]checkout.CartItem{}
	}
	s.st.cartItems[item.CartID][item.ProductID] = item
	return nil
}

func (s *Store) DeleteItem(ctx context.Context, cartID, productID string) error {
	defer s.enter(ctx)()
	if _, ok := s.st.cartItems[cartID][productID]; !ok {
		return fmt.Errorf("%w: cart line", checkout.ErrNotFound)
	}
	delete(s.st.cartItems[cartID], productID)
	return nil
}

func (s *Store) ClearItems(ctx context.Context, cartID string) error {
	defer s.enter(ctx)()
	delete(s.st.cartItems, cartID)
	return nil
}

// ---- OrderStore ----

func (s *Store) Insert(ctx context.Context, o checkout.Order, items []checkout.OrderItem) error {
	defer s.enter(ctx)()
	if _, ok := s.st.orderByKey[o.IdempotencyKey]; ok {
		return fmt.Errorf("%w: %s", checkout.ErrDuplicateIdempotencyKey, o.IdempotencyKey)
	}
	o.CreatedAt = time.Now().UTC()
	s.st.orders[o.ID] = o
	s.st.orderByKey[o.IdempotencyKey] = o.ID
	s.st.orderItems[o.ID] = append([]checkout.OrderItem(nil), items...)
	return nil
}

func (s *Store) IdempotencyKeyUsed(ctx context.Context, key string) (bool, error) {
	defer s.enter(ctx)()
	_, ok := s.st.orderByKey[key]
	return ok, nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (checkout.Order, error) {
	defer s.enter(ctx)()
	o, ok := s.st.orders[id]
	if !ok {
		return checkout.Order{}, fmt.Errorf("%w: order %s", checkout.ErrNotFound, id)
	}
	return o, nil
}

func (s *Store) ListByOwner(ctx context.Context, owner checkout.Identity) ([]checkout.Order, error) {
	defer s.enter(ctx)()
	var out []checkout.Order
	for _, o := range s.st.orders {
		if o.Owner() == owner {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *Store) OrderItems(ctx context.Context, orderID string) ([]checkout.OrderItem, error) {
	defer s.enter(ctx)()
	return append([]checkout.OrderItem(nil), s.st.orderItems[orderID]...), nil
}

func (s *Store) UpdateOrderStatus(ctx context.Context, id string, from, to checkout.OrderStatus) (bool, error) {
	defer s.enter(ctx)()
	if !from.CanTransition(to) {
		return false, fmt.Errorf("order transition %s -> %s not allowed", from, to)
	}
	o, ok := s.st.orders[id]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	o.UpdatedAt = time.Now().UTC()
	s.st.orders[id] = o
	return true, nil
}

// ---- PaymentStore ----

func (s *Store) InsertPayment(ctx context.Context, p checkout.Payment) error {
	defer s.enter(ctx)()
	if _, ok := s.st.paymentByTxn[p.TransactionID]; ok {
		return fmt.Errorf("%w: transaction %s", checkout.ErrAlreadyExists, p.TransactionID)
	}
	p.CreatedAt = time.Now().UTC()
	s.st.payments[p.ID] = p
	s.st.paymentByTxn[p.TransactionID] = p.ID
	return nil
}

func (s *Store) GetPayment(ctx context.Context, id string) (checkout.Payment, error) {
	defer s.enter(ctx)()
	p, ok := s.st.payments[id]
	if !ok {
		return checkout.Payment{}, fmt.Errorf("%w: payment %s", checkout.ErrNotFound, id)
	}
	return p, nil
}

func (s *Store) GetByTransactionID(ctx context.Context, transactionID string) (checkout.Payment, error) {
	defer s.enter(ctx)()
	id, ok := s.st.paymentByTxn[transactionID]
	if !ok {
		return checkout.Payment{}, fmt.Errorf("%w: transaction %s", checkout.ErrNotFound, transactionID)
	}
	return s.st.payments[id], nil
}

func (s *Store) UpdatePaymentStatus(ctx context.Context, id string, from, to checkout.PaymentStatus) (bool, error) {
	defer s.enter(ctx)()
	if !from.CanTransition(to) {
		return false, fmt.Errorf("payment transition %s -> %s not allowed", from, to)
	}
	p, ok := s.st.payments[id]
	if !ok || p.Status != from {
		return false, nil
	}
	p.Status = to
	p.UpdatedAt = time.Now().UTC()
	s.st.payments[id] = p
	return true, nil
}

func (s *Store) MergeMeta(ctx context.Context, id string, meta map[string]any) error {
	defer s.enter(ctx)()
	p, ok := s.st.payments[id]
	if !ok {
		return fmt.Errorf("%w: payment %s", checkout.ErrNotFound, id)
	}
	merged := make(map[string]any, len(p.Meta)+len(meta))
	for k, v := range p.Meta {
		merged[k] = v
	}
	for k, v := range meta {
		merged[k] = v
	}
	p.Meta = merged
	s.st.payments[id] = p
	return nil
}

func (s *Store) ListByOrder(ctx context.Context, orderID string) ([]checkout.Payment, error) {
	defer s.enter(ctx)()
	var out []checkout.Payment
	for _, p := range s.st.payments {
		if p.OrderID == orderID {
			out = append(out, p)
		}
	}
	return out, nil
}

// ---- MovementStore ----

func (s *Store) Record(ctx context.Context, m checkout.StockMovement) (bool, error) {
	defer s.enter(ctx)()
	if _, ok := s.st.movements[m.OrderID][m.ProductID]; ok {
		return false, nil
	}
	if s.st.movements[m.OrderID] == nil {
		s.st.movements[m.OrderID] = map[string]checkout.StockMovement{}
	}
	m.CreatedAt = time.Now().UTC()
	s.st.movements[m.OrderID][m.ProductID] = m
	return true, nil
}

func (s *Store) ByOrder(ctx context.Context, orderID string) ([]checkout.StockMovement, error) {
	defer s.enter(ctx)()
	var out []checkout.StockMovement
	for _, m := range s.st.movements[orderID] {
		out = append(out, m)
	}
	return out, nil
}

// Orders and Payments are narrow views over the one Store; the shared method
// set would otherwise collide (both interfaces name Get, Insert, UpdateStatus).

type Orders struct{ *Store }

func (o Orders) Get(ctx context.Context, id string) (checkout.Order, error) {
	return o.GetOrder(ctx, id)
}

func (o Orders) Items(ctx context.Context, orderID string) ([]checkout.OrderItem, error) {
	return o.OrderItems(ctx, orderID)
}

func (o Orders) UpdateStatus(ctx context.Context, id string, from, to checkout.OrderStatus) (bool, error) {
	return o.UpdateOrderStatus(ctx, id, from, to)
}

type Payments struct{ *Store }

func (p Payments) Insert(ctx context.Context, pay checkout.Payment) error {
	return p.InsertPayment(ctx, pay)
}

func (p Payments) Get(ctx context.Context, id string) (checkout.Payment, error) {
	return p.GetPayment(ctx, id)
}

func (p Payments) UpdateStatus(ctx context.Context, id string, from, to checkout.PaymentStatus) (bool, error) {
	return p.UpdatePaymentStatus(ctx, id, from, to)
}

func (st state) clone() state {
	out := state{
		products:     map[string]checkout.Product{},
		carts:        map[string]checkout.Cart{},
		cartByUser:   map[string]string{},
		cartBySess:   map[string]string{},
		cartItems:    map[string]map[string]checkout.CartItem{},
		orders:       map[string]checkout.Order{},
		orderByKey:   map[string]string{},
		orderItems:   map[string][]checkout.OrderItem{},
		payments:     map[string]checkout.Payment{},
		paymentByTxn: map[string]string{},
		movements:    map[string]map[string]checkout.StockMovement{},
	}
	for k, v := range st.products {
		out.products[k] = v
	}
	for k, v := range st.carts {
		out.carts[k] = v
	}
	for k, v := range st.cartByUser {
		out.cartByUser[k] = v
	}
	for k, v := range st.cartBySess {
		out.cartBySess[k] = v
	}
	for k, v := range st.cartItems {
		inner := map[string]checkout.CartItem{}
		for k2, v2 := range v {
			inner[k2] = v2
		}
		out.cartItems[k] = inner
	}
	for k, v := range st.orders {
		out.orders[k] = v
	}
	for k, v := range st.orderByKey {
		out.orderByKey[k] = v
	}
	for k, v := range st.orderItems {
		out.orderItems[k] = append([]checkout.OrderItem(nil), v...)
	}
	for k, v := range st.payments {
		out.payments[k] = v
	}
	for k, v := range st.paymentByTxn {
		out.paymentByTxn[k] = v
	}
	for k, v := range st.movements {
		inner := map[string]checkout.StockMovement{}
		for k2, v2 := range v {
			inner[k2] = v2
		}
		out.movements[k] = inner
	}
	return out
}
