package usecase

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"

	"github.com/phenrril/ordercore/internal/domain"
)

type OrderWorkflow struct {
	Store  domain.Store
	Events domain.EventPublisher
	Now    Clock
}

// CreateFromCart turns the user's active cart into a pending order, snapshots
// prices and reserves stock for every line. Either all of it happens or none.
func (uc *OrderWorkflow) CreateFromCart(ctx context.Context, userID, cartID, addressID uuid.UUID) (order *domain.Order, err error) {
	ctx, span := startSpan(ctx, "OrderWorkflow.CreateFromCart", attribute.String("user_id", userID.String()), attribute.String("cart_id", cartID.String()))
	defer func() { endSpan(span, err) }()

	err = uc.Store.WithinTx(ctx, func(tx domain.Store) error {
		cart, err := tx.Carts().FindByIDForUpdate(ctx, cartID)
		if isNotFound(err) {
			return domain.ErrCartNotFound
		}
		if err != nil {
			return err
		}
		if cart.UserID != userID || cart.Status != domain.CartActive {
			return domain.ErrCartNotFound
		}
		if len(cart.Items) == 0 {
			return domain.ErrEmptyCart
		}

		addr, err := tx.Addresses().FindByID(ctx, addressID)
		if isNotFound(err) {
			return domain.ErrInvalidAddress
		}
		if err != nil {
			return err
		}
		if addr.UserID != userID {
			return domain.ErrInvalidAddress
		}

		// Lock in a fixed order so two checkouts sharing variants cannot deadlock.
		items := byVariant(cart.Items, func(it domain.CartItem) uuid.UUID { return it.VariantSizeID })

		var shortages []domain.StockShortage
		for _, it := range items {
			s, err := tx.Stock().GetForUpdate(ctx, it.VariantSizeID)
			avail := 0
			switch {
			case err == nil:
				avail = s.Available()
			case !isNotFound(err):
				return err
			}
			if avail < it.Qty {
				shortages = append(shortages, domain.StockShortage{VariantSizeID: it.VariantSizeID, Requested: it.Qty, Available: avail})
			}
		}
		if len(shortages) > 0 {
			return &domain.InsufficientStockError{Shortages: shortages}
		}

		now := uc.Now.now()
		o := &domain.Order{
			ID:        uuid.New(),
			UserID:    userID,
			AddressID: addressID,
			CartID:    cart.ID,
			Status:    domain.OrderPending,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.Orders().Create(ctx, o); err != nil {
			return err
		}
		for _, it := range items {
			vs, err := tx.Catalog().FindVariantSize(ctx, it.VariantSizeID)
			if err != nil {
				return fmt.Errorf("variant size %s: %w", it.VariantSizeID, err)
			}
			oi := domain.OrderItem{
				ID:            uuid.New(),
				OrderID:       o.ID,
				VariantSizeID: it.VariantSizeID,
				Qty:           it.Qty,
				UnitPrice:     vs.UnitPrice(),
				CreatedAt:     now,
			}
			if err := tx.Orders().CreateItem(ctx, &oi); err != nil {
				return err
			}
			if err := reserveStock(ctx, tx, it.VariantSizeID, it.Qty); err != nil {
				return err
			}
			o.Items = append(o.Items, oi)
		}

		cart.Status = domain.CartCheckedOut
		cart.UpdatedAt = now
		if err := tx.Carts().Save(ctx, cart); err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("order_id", order.ID.String()).Str("user_id", userID.String()).Int("items", len(order.Items)).Msg("order created")
	publish(ctx, uc.Events, domain.Event{Type: domain.EventOrderCreated, OrderID: order.ID, Status: order.Status.String(), Amount: order.Subtotal(), OccurredAt: order.CreatedAt})
	return order, nil
}

func (uc *OrderWorkflow) Get(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	o, err := uc.Store.Orders().FindByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("order %s: %w", orderID, err)
	}
	return o, nil
}

func (uc *OrderWorkflow) ListForUser(ctx context.Context, userID uuid.UUID) ([]domain.Order, error) {
	return uc.Store.Orders().ListByUser(ctx, userID)
}

// UpdateStatus is the administrative status change. Confirming needs a
// settled advance and dispatch the final (or a full) payment; cancelling
// goes through Cancel so stock is released.
func (uc *OrderWorkflow) UpdateStatus(ctx context.Context, orderID uuid.UUID, next domain.OrderStatus, actor domain.Actor, notes string) (order *domain.Order, err error) {
	ctx, span := startSpan(ctx, "OrderWorkflow.UpdateStatus", attribute.String("order_id", orderID.String()), attribute.String("status", next.String()))
	defer func() { endSpan(span, err) }()

	if !actor.IsAdmin() {
		log.Warn().Str("user_id", actor.UserID.String()).Str("order_id", orderID.String()).Msg("non-admin status update rejected")
		return nil, domain.ErrForbidden
	}
	if next == domain.OrderCancelled {
		return uc.Cancel(ctx, orderID, actor, notes)
	}

	var prev domain.OrderStatus
	err = uc.Store.WithinTx(ctx, func(tx domain.Store) error {
		o, err := tx.Orders().FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return fmt.Errorf("order %s: %w", orderID, err)
		}
		if !o.Status.CanTransitionTo(next) {
			return fmt.Errorf("%s -> %s: %w", o.Status, next, domain.ErrInvalidTransition)
		}
		switch next {
		case domain.OrderConfirmed, domain.OrderDispatched:
			payments, err := tx.Payments().ListByOrder(ctx, orderID)
			if err != nil {
				return err
			}
			c := completionOf(payments)
			if next == domain.OrderConfirmed && !c.AdvancePaid {
				return fmt.Errorf("confirm without advance payment: %w", domain.ErrAdvanceNotCompleted)
			}
			if next == domain.OrderDispatched && !c.FinalPaid {
				return domain.ErrPaymentIncomplete
			}
		}
		prev = o.Status
		o.Status = next
		o.AppendNote(notes)
		o.UpdatedAt = uc.Now.now()
		if err := tx.Orders().Save(ctx, o); err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("order_id", orderID.String()).Str("from", prev.String()).Str("to", next.String()).Msg("order status updated")
	publish(ctx, uc.Events, domain.Event{Type: domain.EventOrderStatus, OrderID: orderID, Status: next.String(), OccurredAt: order.UpdatedAt})
	return order, nil
}

// Cancel releases every reservation of the order and marks it cancelled.
// Only the owner or an admin may cancel, and only before dispatch.
func (uc *OrderWorkflow) Cancel(ctx context.Context, orderID uuid.UUID, actor domain.Actor, reason string) (order *domain.Order, err error) {
	ctx, span := startSpan(ctx, "OrderWorkflow.Cancel", attribute.String("order_id", orderID.String()))
	defer func() { endSpan(span, err) }()

	err = uc.Store.WithinTx(ctx, func(tx domain.Store) error {
		o, err := tx.Orders().FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return fmt.Errorf("order %s: %w", orderID, err)
		}
		if !actor.Owns(o.UserID) && !actor.IsAdmin() {
			return domain.ErrForbidden
		}
		if !o.Status.Cancellable() {
			return fmt.Errorf("cannot cancel order in status %s: %w", o.Status, domain.ErrInvalidTransition)
		}
		if !o.StockCommitted {
			for _, it := range orderItemsByVariant(o.Items) {
				if err := releaseStock(ctx, tx, it.VariantSizeID, it.Qty); err != nil {
					return err
				}
			}
		}
		o.Status = domain.OrderCancelled
		o.AppendNote(reason)
		o.UpdatedAt = uc.Now.now()
		if err := tx.Orders().Save(ctx, o); err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("order_id", orderID.String()).Str("by", actor.UserID.String()).Msg("order cancelled")
	publish(ctx, uc.Events, domain.Event{Type: domain.EventOrderCancelled, OrderID: orderID, Status: order.Status.String(), Reference: reason, OccurredAt: order.UpdatedAt})
	return order, nil
}

// Total prices the order from its snapshots at the tax rate in force on
// the day it was created. Without a configuration the rate is zero.
func (uc *OrderWorkflow) Total(ctx context.Context, orderID uuid.UUID) (domain.OrderTotal, error) {
	o, err := uc.Store.Orders().FindByID(ctx, orderID)
	if err != nil {
		return domain.OrderTotal{}, fmt.Errorf("order %s: %w", orderID, err)
	}
	return orderTotal(ctx, uc.Store, o)
}

func orderTotal(ctx context.Context, s domain.Store, o *domain.Order) (domain.OrderTotal, error) {
	t := domain.OrderTotal{Subtotal: o.Subtotal()}
	cfg, ok, err := activeTaxConfig(ctx, s, o.CreatedAt)
	if err != nil {
		return domain.OrderTotal{}, err
	}
	if ok {
		t.TaxPct = cfg.Percentage
	} else {
		t.TaxMissing = true
		log.Warn().Str("order_id", o.ID.String()).Time("created_at", o.CreatedAt).Msg("no tax configuration for order date, using 0%")
	}
	t.Tax, t.Total = computeTax(t.Subtotal, t.TaxPct)
	return t, nil
}

// byVariant returns a copy of items sorted by variant size id, the order in
// which every workflow locks stock rows.
func byVariant[T any](items []T, key func(T) uuid.UUID) []T {
	out := slices.Clone(items)
	slices.SortFunc(out, func(a, b T) int {
		return strings.Compare(key(a).String(), key(b).String())
	})
	return out
}

func orderItemsByVariant(items []domain.OrderItem) []domain.OrderItem {
	return byVariant(items, func(it domain.OrderItem) uuid.UUID { return it.VariantSizeID })
}
