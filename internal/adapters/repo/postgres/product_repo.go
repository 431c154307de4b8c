package postgres

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/phenrril/ordercore/internal/domain"
)

type CatalogRepo struct{ db *gorm.DB }

func NewCatalogRepo(db *gorm.DB) *CatalogRepo { return &CatalogRepo{db: db} }

func (r *CatalogRepo) FindVariantSize(ctx context.Context, id uuid.UUID) (*domain.VariantSize, error) {
	var vs domain.VariantSize
	if err := r.db.WithContext(ctx).Preload("Variant").Preload("Size").First(&vs, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &vs, nil
}

func (r *CatalogRepo) SaveProduct(ctx context.Context, p *domain.Product) error {
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Save(p).Error)
}

func (r *CatalogRepo) SaveVariant(ctx context.Context, v *domain.Variant) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return translate(r.db.WithContext(ctx).Save(v).Error)
}

func (r *CatalogRepo) SaveSize(ctx context.Context, s *domain.Size) error {
	return translate(r.db.WithContext(ctx).Save(s).Error)
}

func (r *CatalogRepo) SaveVariantSize(ctx context.Context, vs *domain.VariantSize) error {
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Save(vs).Error)
}

type StockRepo struct{ db *gorm.DB }

func NewStockRepo(db *gorm.DB) *StockRepo { return &StockRepo{db: db} }

func (r *StockRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Stock, error) {
	var s domain.Stock
	if err := r.db.WithContext(ctx).First(&s, "variant_size_id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &s, nil
}

func (r *StockRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Stock, error) {
	var s domain.Stock
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&s, "variant_size_id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &s, nil
}

func (r *StockRepo) Save(ctx context.Context, s *domain.Stock) error {
	return translate(r.db.WithContext(ctx).Save(s).Error)
}
