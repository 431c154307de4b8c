package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"

	"github.com/phenrril/ordercore/internal/domain"
)

// StockLedger holds reservations against physical stock. The package-level
// helpers run inside a caller's transaction so order and payment workflows
// can reserve, release and commit alongside their own writes.
type StockLedger struct {
	Store domain.Store
}

func (uc *StockLedger) Reserve(ctx context.Context, variantSizeID uuid.UUID, qty int) (err error) {
	ctx, span := startSpan(ctx, "StockLedger.Reserve", attribute.String("variant_size_id", variantSizeID.String()), attribute.Int("qty", qty))
	defer func() { endSpan(span, err) }()
	if qty <= 0 {
		return domain.ErrInvalidQuantity
	}
	return uc.Store.WithinTx(ctx, func(tx domain.Store) error {
		return reserveStock(ctx, tx, variantSizeID, qty)
	})
}

func (uc *StockLedger) Release(ctx context.Context, variantSizeID uuid.UUID, qty int) error {
	if qty <= 0 {
		return domain.ErrInvalidQuantity
	}
	return uc.Store.WithinTx(ctx, func(tx domain.Store) error {
		return releaseStock(ctx, tx, variantSizeID, qty)
	})
}

func (uc *StockLedger) Commit(ctx context.Context, variantSizeID uuid.UUID, qty int) error {
	if qty <= 0 {
		return domain.ErrInvalidQuantity
	}
	return uc.Store.WithinTx(ctx, func(tx domain.Store) error {
		return commitStock(ctx, tx, variantSizeID, qty)
	})
}

func (uc *StockLedger) Available(ctx context.Context, variantSizeID uuid.UUID) (int, error) {
	return availableStock(ctx, uc.Store, variantSizeID)
}

// Restock records goods received for a sellable variant.
func (uc *StockLedger) Restock(ctx context.Context, variantSizeID uuid.UUID, qty int) (*domain.Stock, error) {
	if qty <= 0 {
		return nil, domain.ErrInvalidQuantity
	}
	var out *domain.Stock
	err := uc.Store.WithinTx(ctx, func(tx domain.Store) error {
		if _, err := tx.Catalog().FindVariantSize(ctx, variantSizeID); err != nil {
			return fmt.Errorf("variant size %s: %w", variantSizeID, err)
		}
		s, err := tx.Stock().GetForUpdate(ctx, variantSizeID)
		if isNotFound(err) {
			s, err = &domain.Stock{VariantSizeID: variantSizeID}, nil
		}
		if err != nil {
			return err
		}
		s.QuantityInStock += qty
		s.UpdatedAt = time.Now().UTC()
		out = s
		return tx.Stock().Save(ctx, s)
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("variant_size_id", variantSizeID.String()).Int("qty", qty).Int("in_stock", out.QuantityInStock).Msg("stock received")
	return out, nil
}

func availableStock(ctx context.Context, s domain.Store, variantSizeID uuid.UUID) (int, error) {
	st, err := s.Stock().Get(ctx, variantSizeID)
	if isNotFound(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return st.Available(), nil
}

func reserveStock(ctx context.Context, tx domain.Store, variantSizeID uuid.UUID, qty int) error {
	s, err := tx.Stock().GetForUpdate(ctx, variantSizeID)
	if isNotFound(err) {
		return domain.NewInsufficientStock(variantSizeID, qty, 0)
	}
	if err != nil {
		return err
	}
	if avail := s.Available(); avail < qty {
		return domain.NewInsufficientStock(variantSizeID, qty, avail)
	}
	s.QuantityReserved += qty
	s.UpdatedAt = time.Now().UTC()
	return tx.Stock().Save(ctx, s)
}

// releaseStock floors the reservation at zero so a repeated release is harmless.
func releaseStock(ctx context.Context, tx domain.Store, variantSizeID uuid.UUID, qty int) error {
	s, err := tx.Stock().GetForUpdate(ctx, variantSizeID)
	if isNotFound(err) {
		log.Warn().Str("variant_size_id", variantSizeID.String()).Msg("release without stock record")
		return nil
	}
	if err != nil {
		return err
	}
	s.QuantityReserved = max(0, s.QuantityReserved-qty)
	s.UpdatedAt = time.Now().UTC()
	return tx.Stock().Save(ctx, s)
}

// commitStock turns a reservation into a permanent deduction.
func commitStock(ctx context.Context, tx domain.Store, variantSizeID uuid.UUID, qty int) error {
	s, err := tx.Stock().GetForUpdate(ctx, variantSizeID)
	if err != nil {
		return fmt.Errorf("commit stock %s: %w", variantSizeID, err)
	}
	s.QuantityInStock = max(0, s.QuantityInStock-qty)
	s.QuantityReserved = min(max(0, s.QuantityReserved-qty), s.QuantityInStock)
	s.UpdatedAt = time.Now().UTC()
	return tx.Stock().Save(ctx, s)
}
