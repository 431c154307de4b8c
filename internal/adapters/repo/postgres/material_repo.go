package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/phenrril/ordercore/internal/domain"
)

type TaxRepo struct{ db *gorm.DB }

func NewTaxRepo(db *gorm.DB) *TaxRepo { return &TaxRepo{db: db} }

func (r *TaxRepo) ListEffective(ctx context.Context, day time.Time) ([]domain.TaxConfiguration, error) {
	var list []domain.TaxConfiguration
	d := domain.Day(day)
	err := r.db.WithContext(ctx).
		Where("is_active AND effective_from <= ? AND (effective_to IS NULL OR effective_to >= ?)", d, d).
		Order("effective_from desc").Find(&list).Error
	if err != nil {
		return nil, translate(err)
	}
	return list, nil
}

func (r *TaxRepo) Save(ctx context.Context, c *domain.TaxConfiguration) error {
	return translate(r.db.WithContext(ctx).Save(c).Error)
}

type MaterialRepo struct{ db *gorm.DB }

func NewMaterialRepo(db *gorm.DB) *MaterialRepo { return &MaterialRepo{db: db} }

func (r *MaterialRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.RawMaterial, error) {
	var m domain.RawMaterial
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &m, nil
}

// LockByIDs takes the row locks in primary key order so concurrent
// consumers cannot deadlock on each other.
func (r *MaterialRepo) LockByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.RawMaterial, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var list []domain.RawMaterial
	err := r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).Order("id asc").Find(&list).Error
	if err != nil {
		return nil, translate(err)
	}
	if len(list) != len(ids) {
		return nil, fmt.Errorf("materials: found %d of %d: %w", len(list), len(ids), domain.ErrNotFound)
	}
	return list, nil
}

func (r *MaterialRepo) List(ctx context.Context) ([]domain.RawMaterial, error) {
	var list []domain.RawMaterial
	if err := r.db.WithContext(ctx).Order("name asc").Find(&list).Error; err != nil {
		return nil, translate(err)
	}
	return list, nil
}

func (r *MaterialRepo) Save(ctx context.Context, m *domain.RawMaterial) error {
	return translate(r.db.WithContext(ctx).Save(m).Error)
}

func (r *MaterialRepo) SpecsFor(ctx context.Context, variantSizeIDs []uuid.UUID) ([]domain.ManufacturingSpec, error) {
	if len(variantSizeIDs) == 0 {
		return nil, nil
	}
	var list []domain.ManufacturingSpec
	err := r.db.WithContext(ctx).Where("variant_size_id IN ?", variantSizeIDs).
		Order("created_at asc, id asc").Find(&list).Error
	if err != nil {
		return nil, translate(err)
	}
	return list, nil
}

func (r *MaterialRepo) SaveSpec(ctx context.Context, s *domain.ManufacturingSpec) error {
	return translate(r.db.WithContext(ctx).Save(s).Error)
}

func (r *MaterialRepo) SaveType(ctx context.Context, t *domain.MaterialType) error {
	return translate(r.db.WithContext(ctx).Save(t).Error)
}

func (r *MaterialRepo) SaveSupplier(ctx context.Context, s *domain.Supplier) error {
	return translate(r.db.WithContext(ctx).Save(s).Error)
}

func (r *MaterialRepo) SaveMaterialSupplier(ctx context.Context, ms *domain.MaterialSupplier) error {
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Save(ms).Error)
}

func (r *MaterialRepo) ListMaterialSuppliers(ctx context.Context) ([]domain.MaterialSupplier, error) {
	var list []domain.MaterialSupplier
	if err := r.db.WithContext(ctx).Preload("Supplier").Order("created_at asc").Find(&list).Error; err != nil {
		return nil, translate(err)
	}
	return list, nil
}

type InvoiceRepo struct{ db *gorm.DB }

func NewInvoiceRepo(db *gorm.DB) *InvoiceRepo { return &InvoiceRepo{db: db} }

func (r *InvoiceRepo) FindByOrder(ctx context.Context, orderID uuid.UUID) (*domain.Invoice, error) {
	var inv domain.Invoice
	if err := r.db.WithContext(ctx).First(&inv, "order_id = ?", orderID).Error; err != nil {
		return nil, translate(err)
	}
	return &inv, nil
}

// MaxNumberWithPrefix orders by length first so 10000 sorts after 9999.
func (r *InvoiceRepo) MaxNumberWithPrefix(ctx context.Context, prefix string) (string, error) {
	var nums []string
	err := r.db.WithContext(ctx).Model(&domain.Invoice{}).
		Where("number LIKE ?", prefix+"%").
		Order("length(number) desc, number desc").Limit(1).
		Pluck("number", &nums).Error
	if err != nil {
		return "", translate(err)
	}
	if len(nums) == 0 {
		return "", nil
	}
	return nums[0], nil
}

func (r *InvoiceRepo) Create(ctx context.Context, inv *domain.Invoice) error {
	return translate(r.db.WithContext(ctx).Create(inv).Error)
}

type WebhookRepo struct{ db *gorm.DB }

func NewWebhookRepo(db *gorm.DB) *WebhookRepo { return &WebhookRepo{db: db} }

func (r *WebhookRepo) Record(ctx context.Context, ev *domain.WebhookEvent) (bool, error) {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(ev)
	if res.Error != nil {
		return false, translate(res.Error)
	}
	return res.RowsAffected == 1, nil
}
