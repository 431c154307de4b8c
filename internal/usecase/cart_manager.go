package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"github.com/phenrril/ordercore/internal/domain"
)

// CartManager edits a user's single active cart. Stock checks here are
// advisory; reservations happen when the order is created.
type CartManager struct {
	Store domain.Store
	Now   Clock
}

// GetActive returns the user's active cart, creating an empty one if needed.
func (uc *CartManager) GetActive(ctx context.Context, userID uuid.UUID) (*domain.Cart, error) {
	var cart *domain.Cart
	err := retryOnConflict(ctx, func() error {
		return uc.Store.WithinTx(ctx, func(tx domain.Store) error {
			c, err := activeCart(ctx, tx, userID, uc.Now.now())
			cart = c
			return err
		})
	})
	return cart, err
}

// AddItem merges qty into the cart line for the variant. created reports
// whether a new line was inserted.
func (uc *CartManager) AddItem(ctx context.Context, userID, variantSizeID uuid.UUID, qty int) (item *domain.CartItem, created bool, err error) {
	ctx, span := startSpan(ctx, "CartManager.AddItem", attribute.String("user_id", userID.String()), attribute.Int("qty", qty))
	defer func() { endSpan(span, err) }()
	if qty <= 0 {
		return nil, false, domain.ErrInvalidQuantity
	}
	err = retryOnConflict(ctx, func() error {
		return uc.Store.WithinTx(ctx, func(tx domain.Store) error {
			if _, err := tx.Catalog().FindVariantSize(ctx, variantSizeID); err != nil {
				return fmt.Errorf("variant size %s: %w", variantSizeID, err)
			}
			now := uc.Now.now()
			cart, err := activeCart(ctx, tx, userID, now)
			if err != nil {
				return err
			}
			existing, err := tx.Carts().FindItemByVariant(ctx, cart.ID, variantSizeID)
			if err != nil && !isNotFound(err) {
				return err
			}
			want := qty
			if existing != nil {
				want += existing.Qty
			}
			avail, err := availableStock(ctx, tx, variantSizeID)
			if err != nil {
				return err
			}
			if avail < want {
				return domain.NewInsufficientStock(variantSizeID, want, avail)
			}
			if existing != nil {
				existing.Qty = want
				existing.UpdatedAt = now
				if err := tx.Carts().SaveItem(ctx, existing); err != nil {
					return err
				}
				item, created = existing, false
			} else {
				it := &domain.CartItem{ID: uuid.New(), CartID: cart.ID, VariantSizeID: variantSizeID, Qty: qty, CreatedAt: now, UpdatedAt: now}
				if err := tx.Carts().CreateItem(ctx, it); err != nil {
					return err
				}
				item, created = it, true
			}
			return touchCart(ctx, tx, cart, now)
		})
	})
	if err != nil {
		return nil, false, err
	}
	log.Info().Str("user_id", userID.String()).Str("cart_item_id", item.ID.String()).Int("qty", item.Qty).Bool("created", created).Msg("cart item added")
	return item, created, nil
}

// UpdateItem sets the quantity of a line in the user's active cart.
func (uc *CartManager) UpdateItem(ctx context.Context, itemID uuid.UUID, qty int, userID uuid.UUID) (*domain.CartItem, error) {
	if qty <= 0 {
		return nil, domain.ErrInvalidQuantity
	}
	var item *domain.CartItem
	err := uc.Store.WithinTx(ctx, func(tx domain.Store) error {
		it, cart, err := ownedItem(ctx, tx, itemID, userID)
		if err != nil {
			return err
		}
		avail, err := availableStock(ctx, tx, it.VariantSizeID)
		if err != nil {
			return err
		}
		if avail < qty {
			return domain.NewInsufficientStock(it.VariantSizeID, qty, avail)
		}
		now := uc.Now.now()
		it.Qty = qty
		it.UpdatedAt = now
		if err := tx.Carts().SaveItem(ctx, it); err != nil {
			return err
		}
		item = it
		return touchCart(ctx, tx, cart, now)
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (uc *CartManager) RemoveItem(ctx context.Context, itemID, userID uuid.UUID) error {
	return uc.Store.WithinTx(ctx, func(tx domain.Store) error {
		it, cart, err := ownedItem(ctx, tx, itemID, userID)
		if err != nil {
			return err
		}
		if err := tx.Carts().DeleteItem(ctx, it.ID); err != nil {
			return err
		}
		return touchCart(ctx, tx, cart, uc.Now.now())
	})
}

// Clear empties the user's active cart. A user without one is a no-op.
func (uc *CartManager) Clear(ctx context.Context, userID uuid.UUID) error {
	return uc.Store.WithinTx(ctx, func(tx domain.Store) error {
		cart, err := tx.Carts().FindActiveForUpdate(ctx, userID)
		if isNotFound(err) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := tx.Carts().DeleteItems(ctx, cart.ID); err != nil {
			return err
		}
		return touchCart(ctx, tx, cart, uc.Now.now())
	})
}

// Summary prices the active cart at current catalog prices and today's tax.
func (uc *CartManager) Summary(ctx context.Context, userID uuid.UUID) (*domain.CartSummary, error) {
	cart, err := uc.GetActive(ctx, userID)
	if err != nil {
		return nil, err
	}
	sum := &domain.CartSummary{CartID: cart.ID, Lines: []domain.CartLine{}, Subtotal: decimal.Zero, TaxPct: decimal.Zero}
	for _, it := range cart.Items {
		vs, err := uc.Store.Catalog().FindVariantSize(ctx, it.VariantSizeID)
		if err != nil {
			return nil, fmt.Errorf("variant size %s: %w", it.VariantSizeID, err)
		}
		avail, err := availableStock(ctx, uc.Store, it.VariantSizeID)
		if err != nil {
			return nil, err
		}
		unit := vs.UnitPrice()
		line := domain.CartLine{Item: it, UnitPrice: unit, LineTotal: domain.LineTotal(unit, it.Qty), Available: avail}
		sum.Lines = append(sum.Lines, line)
		sum.Subtotal = sum.Subtotal.Add(line.LineTotal)
	}
	cfg, ok, err := activeTaxConfig(ctx, uc.Store, uc.Now.now())
	if err != nil {
		return nil, err
	}
	if ok {
		sum.TaxPct = cfg.Percentage
	}
	sum.Tax, sum.Total = computeTax(sum.Subtotal, sum.TaxPct)
	return sum, nil
}

// AbandonStale marks active carts untouched since the cutoff as abandoned.
func (uc *CartManager) AbandonStale(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := uc.Now.now().Add(-olderThan)
	n := 0
	err := uc.Store.WithinTx(ctx, func(tx domain.Store) error {
		stale, err := tx.Carts().ListStale(ctx, cutoff)
		if err != nil {
			return err
		}
		for _, c := range stale {
			locked, err := tx.Carts().FindByIDForUpdate(ctx, c.ID)
			if err != nil {
				return err
			}
			// Touched or checked out since the listing.
			if locked.Status != domain.CartActive || !locked.UpdatedAt.Before(cutoff) {
				continue
			}
			locked.Status = domain.CartAbandoned
			locked.UpdatedAt = uc.Now.now()
			if err := tx.Carts().Save(ctx, locked); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if n > 0 {
		log.Info().Int("carts", n).Time("cutoff", cutoff).Msg("stale carts abandoned")
	}
	return n, nil
}

// activeCart locks the user's active cart, creating it when missing.
func activeCart(ctx context.Context, tx domain.Store, userID uuid.UUID, now time.Time) (*domain.Cart, error) {
	cart, err := tx.Carts().FindActiveForUpdate(ctx, userID)
	if err == nil {
		return cart, nil
	}
	if !isNotFound(err) {
		return nil, err
	}
	cart = &domain.Cart{ID: uuid.New(), UserID: userID, Status: domain.CartActive, Items: []domain.CartItem{}, CreatedAt: now, UpdatedAt: now}
	if err := tx.Carts().Create(ctx, cart); err != nil {
		return nil, err
	}
	log.Debug().Str("user_id", userID.String()).Str("cart_id", cart.ID.String()).Msg("cart created")
	return cart, nil
}

// ownedItem loads a line of the user's active cart. Lines of other users
// or of closed carts are reported as not found.
func ownedItem(ctx context.Context, tx domain.Store, itemID, userID uuid.UUID) (*domain.CartItem, *domain.Cart, error) {
	it, err := tx.Carts().FindItem(ctx, itemID)
	if err != nil {
		return nil, nil, fmt.Errorf("cart item %s: %w", itemID, err)
	}
	cart, err := tx.Carts().FindByIDForUpdate(ctx, it.CartID)
	if err != nil {
		return nil, nil, err
	}
	if cart.UserID != userID || cart.Status != domain.CartActive {
		return nil, nil, fmt.Errorf("cart item %s: %w", itemID, domain.ErrNotFound)
	}
	return it, cart, nil
}

// touchCart writes only updated_at, so a stale copy of the cart cannot
// overwrite a status change made by checkout.
func touchCart(ctx context.Context, tx domain.Store, cart *domain.Cart, now time.Time) error {
	cart.UpdatedAt = now
	return tx.Carts().Touch(ctx, cart.ID, now)
}
