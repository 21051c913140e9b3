package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-checkout.git/internal/checkout"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Service drives the order/payment state machine from both entry paths: the
// synchronous submission and the asynchronous webhook reconciliation. All
// status-plus-status updates run as single transactions.
type Service struct {
	Tx       checkout.TxManager
	Orders   checkout.OrderStore
	Payments checkout.PaymentStore
	Gateways map[checkout.PaymentMethod]Gateway
	Log      *zap.Logger
}

func NewService(tx checkout.TxManager, orders checkout.OrderStore, payments checkout.PaymentStore, log *zap.Logger, gws ...Gateway) *Service {
	byMethod := make(map[checkout.PaymentMethod]Gateway, len(gws))
	for _, gw := range gws {
		byMethod[gw.Method()] = gw
	}
	return &Service{Tx: tx, Orders: orders, Payments: payments, Gateways: byMethod, Log: log}
}

func (s *Service) Gateway(method checkout.PaymentMethod) (Gateway, error) {
	gw, ok := s.Gateways[method]
	if !ok {
		return nil, fmt.Errorf("%w: %s", checkout.ErrUnsupportedPaymentMethod, method)
	}
	return gw, nil
}

// Submit charges a pending order synchronously. A declined charge fails with
// ErrPaymentFailed and writes nothing; the order stays pending.
func (s *Service) Submit(ctx context.Context, orderID string, owner checkout.Identity, method checkout.PaymentMethod, card Card) (checkout.Payment, error) {
	order, err := s.ownedOrder(ctx, orderID, owner)
	if err != nil {
		return checkout.Payment{}, err
	}
	if order.Status != checkout.OrderPending {
		return checkout.Payment{}, fmt.Errorf("%w: order %s is %s, not pending", checkout.ErrNotFound, orderID, order.Status)
	}
	gw, err := s.Gateway(method)
	if err != nil {
		return checkout.Payment{}, err
	}

	res, err := gw.Submit(ctx, order, card)
	if err != nil {
		return checkout.Payment{}, err
	}
	if !res.Succeeded {
		return checkout.Payment{}, fmt.Errorf("%w: transaction %s declined", checkout.ErrPaymentFailed, res.TransactionID)
	}

	p := checkout.Payment{
		ID:            uuid.NewString(),
		OrderID:       order.ID,
		TransactionID: res.TransactionID,
		Amount:        order.TotalAmount,
		Currency:      order.Currency,
		Method:        method,
		Status:        checkout.PaymentCompleted,
		Meta:          res.Meta,
	}
	err = s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.Payments.Insert(ctx, p); err != nil {
			return err
		}
		applied, err := s.Orders.UpdateStatus(ctx, order.ID, checkout.OrderPending, checkout.OrderCompleted)
		if err != nil {
			return err
		}
		if !applied {
			return fmt.Errorf("order %s settled concurrently", order.ID)
		}
		return nil
	})
	if err != nil {
		return checkout.Payment{}, err
	}
	s.Log.Info("payment completed",
		zap.String("order_id", order.ID),
		zap.String("transaction_id", p.TransactionID),
		zap.String("method", string(method)))
	return p, nil
}

// HandleEvent reconciles one verified gateway event. Safe under at-least-once
// delivery: the pending-only (and completed-only for refunds) guards make a
// replay a no-op, and a Payment missing its synchronous write is synthesized
// from the order the payload references.
func (s *Service) HandleEvent(ctx context.Context, ev Event) error {
	p, err := s.Payments.GetByTransactionID(ctx, ev.TransactionID)
	if checkout.IsNotFound(err) {
		p, err = s.synthesize(ctx, ev)
		if checkout.IsNotFound(err) {
			s.Log.Warn("webhook references unknown order, dropping",
				zap.String("transaction_id", ev.TransactionID),
				zap.String("order_id", ev.OrderID))
			return nil
		}
	}
	if err != nil {
		return err
	}

	if len(ev.Raw) > 0 {
		if err := s.Payments.MergeMeta(ctx, p.ID, ev.Raw); err != nil {
			return err
		}
	}

	switch ev.Type {
	case EventSucceeded:
		return s.settle(ctx, p, checkout.OrderCompleted, checkout.PaymentCompleted)
	case EventFailed:
		return s.settle(ctx, p, checkout.OrderFailed, checkout.PaymentFailed)
	case EventRefunded:
		return s.applyRefund(ctx, p)
	default:
		s.Log.Warn("ignoring unknown gateway event type", zap.String("type", string(ev.Type)))
		return nil
	}
}

// settle moves a pending order to its outcome. If the order already left
// pending, the event is stale and ignored rather than clobbering a terminal
// state.
func (s *Service) settle(ctx context.Context, p checkout.Payment, orderTo checkout.OrderStatus, paymentTo checkout.PaymentStatus) error {
	return s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		applied, err := s.Orders.UpdateStatus(ctx, p.OrderID, checkout.OrderPending, orderTo)
		if err != nil {
			return err
		}
		if !applied {
			s.Log.Info("order no longer pending, ignoring stale event",
				zap.String("order_id", p.OrderID),
				zap.String("transaction_id", p.TransactionID))
			return nil
		}
		if _, err := s.Payments.UpdateStatus(ctx, p.ID, checkout.PaymentPending, paymentTo); err != nil {
			return err
		}
		return nil
	})
}

func (s *Service) applyRefund(ctx context.Context, p checkout.Payment) error {
	return s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		applied, err := s.Orders.UpdateStatus(ctx, p.OrderID, checkout.OrderCompleted, checkout.OrderRefunded)
		if err != nil {
			return err
		}
		if !applied {
			s.Log.Info("order not completed, ignoring refund event",
				zap.String("order_id", p.OrderID))
			return nil
		}
		if _, err := s.Payments.UpdateStatus(ctx, p.ID, checkout.PaymentCompleted, checkout.PaymentRefunded); err != nil {
			return err
		}
		return nil
	})
}

// synthesize heals a missed synchronous write: the webhook arrived before (or
// instead of) the Payment row, so create it pending from the referenced order.
func (s *Service) synthesize(ctx context.Context, ev Event) (checkout.Payment, error) {
	order, err := s.Orders.Get(ctx, ev.OrderID)
	if err != nil {
		return checkout.Payment{}, err
	}
	amount := ev.Amount
	if amount.IsZero() {
		amount = order.TotalAmount
	}
	currency := ev.Currency
	if currency == "" {
		currency = order.Currency
	}
	p := checkout.Payment{
		ID:            uuid.NewString(),
		OrderID:       order.ID,
		TransactionID: ev.TransactionID,
		Amount:        amount,
		Currency:      currency,
		Method:        ev.Gateway,
		Status:        checkout.PaymentPending,
		Meta:          ev.Raw,
	}
	err = s.Payments.Insert(ctx, p)
	if errors.Is(err, checkout.ErrAlreadyExists) {
		// Lost the race against the synchronous path; use its row.
		return s.Payments.GetByTransactionID(ctx, ev.TransactionID)
	}
	if err != nil {
		return checkout.Payment{}, err
	}
	s.Log.Info("synthesized payment from webhook",
		zap.String("order_id", order.ID),
		zap.String("transaction_id", ev.TransactionID))
	return p, nil
}

// Refund marks the full payment and order refunded regardless of a partial
// amount request; the requested amount is kept in the metadata blob.
func (s *Service) Refund(ctx context.Context, paymentID string, owner checkout.Identity, amount *decimal.Decimal) (checkout.Payment, error) {
	p, err := s.Payments.Get(ctx, paymentID)
	if err != nil {
		return checkout.Payment{}, err
	}
	if _, err := s.ownedOrder(ctx, p.OrderID, owner); err != nil {
		return checkout.Payment{}, err
	}
	if p.Status != checkout.PaymentCompleted {
		return checkout.Payment{}, fmt.Errorf("%w: payment %s is %s", checkout.ErrInvalidRefundTarget, p.ID, p.Status)
	}
	gw, err := s.Gateway(p.Method)
	if err != nil {
		return checkout.Payment{}, err
	}

	amt := p.Amount
	partial := false
	if amount != nil && amount.IsPositive() && amount.LessThan(p.Amount) {
		amt = *amount
		partial = true
	}
	if err := gw.Refund(ctx, p.TransactionID, amt); err != nil {
		return checkout.Payment{}, err
	}

	err = s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.Payments.MergeMeta(ctx, p.ID, map[string]any{
			"refunded_amount": amt.String(),
			"partial_request": partial,
		}); err != nil {
			return err
		}
		if _, err := s.Payments.UpdateStatus(ctx, p.ID, checkout.PaymentCompleted, checkout.PaymentRefunded); err != nil {
			return err
		}
		if _, err := s.Orders.UpdateStatus(ctx, p.OrderID, checkout.OrderCompleted, checkout.OrderRefunded); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return checkout.Payment{}, err
	}
	s.Log.Info("payment refunded",
		zap.String("payment_id", p.ID),
		zap.String("order_id", p.OrderID),
		zap.String("amount", amt.String()),
		zap.Bool("partial_request", partial))
	return s.Payments.Get(ctx, paymentID)
}

func (s *Service) ownedOrder(ctx context.Context, orderID string, owner checkout.Identity) (checkout.Order, error) {
	order, err := s.Orders.Get(ctx, orderID)
	if err != nil {
		return checkout.Order{}, err
	}
	if order.Owner() != owner {
		return checkout.Order{}, fmt.Errorf("%w: order %s", checkout.ErrNotFound, orderID)
	}
	return order, nil
}
