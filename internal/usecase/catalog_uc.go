package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/phenrril/ordercore/internal/domain"
)

// CatalogUC registers the sellable catalog the order core prices against.
// Browsing and search live elsewhere.
type CatalogUC struct {
	Store domain.Store
	Now   Clock
}

func (uc *CatalogUC) CreateProduct(ctx context.Context, p *domain.Product) error {
	if strings.TrimSpace(p.Name) == "" {
		return errors.New("product name required")
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := uc.Now.now()
	p.CreatedAt, p.UpdatedAt = now, now
	return uc.Store.WithinTx(ctx, func(tx domain.Store) error {
		return tx.Catalog().SaveProduct(ctx, p)
	})
}

func (uc *CatalogUC) CreateVariant(ctx context.Context, v *domain.Variant) error {
	if v == nil || v.ProductID == uuid.Nil {
		return errors.New("variant needs a product")
	}
	if v.BasePrice.IsNegative() {
		return domain.ErrInvalidAmount
	}
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	v.SKU = strings.ToUpper(strings.TrimSpace(v.SKU))
	now := uc.Now.now()
	v.CreatedAt, v.UpdatedAt = now, now
	return uc.Store.WithinTx(ctx, func(tx domain.Store) error {
		return tx.Catalog().SaveVariant(ctx, v)
	})
}

// UpdatePrice changes the base price of a variant. Orders already placed
// keep their snapshot.
func (uc *CatalogUC) UpdatePrice(ctx context.Context, variantSizeID uuid.UUID, base decimal.Decimal) (*domain.Variant, error) {
	if base.IsNegative() {
		return nil, domain.ErrInvalidAmount
	}
	var out *domain.Variant
	err := uc.Store.WithinTx(ctx, func(tx domain.Store) error {
		vs, err := tx.Catalog().FindVariantSize(ctx, variantSizeID)
		if err != nil {
			return fmt.Errorf("variant size %s: %w", variantSizeID, err)
		}
		if vs.Variant == nil {
			return fmt.Errorf("variant %s: %w", vs.VariantID, domain.ErrNotFound)
		}
		v := vs.Variant
		v.BasePrice = domain.RoundMoney(base)
		v.UpdatedAt = uc.Now.now()
		out = v
		return tx.Catalog().SaveVariant(ctx, v)
	})
	return out, err
}

func (uc *CatalogUC) CreateSize(ctx context.Context, s *domain.Size) error {
	if s.MarkupPct.IsNegative() {
		return domain.ErrInvalidAmount
	}
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	s.Code = strings.ToUpper(strings.TrimSpace(s.Code))
	s.CreatedAt = uc.Now.now()
	return uc.Store.WithinTx(ctx, func(tx domain.Store) error {
		return tx.Catalog().SaveSize(ctx, s)
	})
}

// AddVariantSize makes a variant sellable in a size and opens its stock
// record with initialStock units.
func (uc *CatalogUC) AddVariantSize(ctx context.Context, variantID, sizeID uuid.UUID, initialStock int) (*domain.VariantSize, error) {
	if initialStock < 0 {
		return nil, domain.ErrInvalidQuantity
	}
	now := uc.Now.now()
	vs := &domain.VariantSize{ID: uuid.New(), VariantID: variantID, SizeID: sizeID, CreatedAt: now}
	err := uc.Store.WithinTx(ctx, func(tx domain.Store) error {
		if err := tx.Catalog().SaveVariantSize(ctx, vs); err != nil {
			return err
		}
		return tx.Stock().Save(ctx, &domain.Stock{VariantSizeID: vs.ID, QuantityInStock: initialStock, UpdatedAt: now})
	})
	if err != nil {
		return nil, err
	}
	return vs, nil
}

func (uc *CatalogUC) VariantSize(ctx context.Context, id uuid.UUID) (*domain.VariantSize, error) {
	return uc.Store.Catalog().FindVariantSize(ctx, id)
}
