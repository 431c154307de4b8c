package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/phenrril/ordercore/internal/domain"
)

type CartRepo struct{ db *gorm.DB }

func NewCartRepo(db *gorm.DB) *CartRepo { return &CartRepo{db: db} }

func itemsByAge(db *gorm.DB) *gorm.DB { return db.Order("created_at asc, id asc") }

func (r *CartRepo) FindActive(ctx context.Context, userID uuid.UUID) (*domain.Cart, error) {
	var c domain.Cart
	err := r.db.WithContext(ctx).Preload("Items", itemsByAge).
		First(&c, "user_id = ? AND status = ?", userID, domain.CartActive).Error
	if err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (r *CartRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Cart, error) {
	var c domain.Cart
	if err := r.db.WithContext(ctx).Preload("Items", itemsByAge).First(&c, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

// FindActiveForUpdate locks the cart row, then loads its items. A cart
// checked out while we waited no longer matches and reads as not found.
func (r *CartRepo) FindActiveForUpdate(ctx context.Context, userID uuid.UUID) (*domain.Cart, error) {
	var c domain.Cart
	db := r.db.WithContext(ctx)
	err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&c, "user_id = ? AND status = ?", userID, domain.CartActive).Error
	if err != nil {
		return nil, translate(err)
	}
	return r.withItems(db, &c)
}

func (r *CartRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Cart, error) {
	var c domain.Cart
	db := r.db.WithContext(ctx)
	if err := db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&c, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return r.withItems(db, &c)
}

func (r *CartRepo) withItems(db *gorm.DB, c *domain.Cart) (*domain.Cart, error) {
	if err := itemsByAge(db).Where("cart_id = ?", c.ID).Find(&c.Items).Error; err != nil {
		return nil, translate(err)
	}
	return c, nil
}

// Create relies on the partial unique index carts(user_id) WHERE status = 'active'.
func (r *CartRepo) Create(ctx context.Context, c *domain.Cart) error {
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Create(c).Error)
}

func (r *CartRepo) Save(ctx context.Context, c *domain.Cart) error {
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Save(c).Error)
}

func (r *CartRepo) Touch(ctx context.Context, id uuid.UUID, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&domain.Cart{}).Where("id = ?", id).Update("updated_at", at)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *CartRepo) ListStale(ctx context.Context, before time.Time) ([]domain.Cart, error) {
	var list []domain.Cart
	err := r.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", domain.CartActive, before).
		Order("updated_at asc").Find(&list).Error
	if err != nil {
		return nil, translate(err)
	}
	return list, nil
}

func (r *CartRepo) FindItem(ctx context.Context, id uuid.UUID) (*domain.CartItem, error) {
	var it domain.CartItem
	if err := r.db.WithContext(ctx).First(&it, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &it, nil
}

func (r *CartRepo) FindItemByVariant(ctx context.Context, cartID, variantSizeID uuid.UUID) (*domain.CartItem, error) {
	var it domain.CartItem
	err := r.db.WithContext(ctx).
		First(&it, "cart_id = ? AND variant_size_id = ?", cartID, variantSizeID).Error
	if err != nil {
		return nil, translate(err)
	}
	return &it, nil
}

func (r *CartRepo) CreateItem(ctx context.Context, it *domain.CartItem) error {
	return translate(r.db.WithContext(ctx).Create(it).Error)
}

func (r *CartRepo) SaveItem(ctx context.Context, it *domain.CartItem) error {
	return translate(r.db.WithContext(ctx).Save(it).Error)
}

func (r *CartRepo) DeleteItem(ctx context.Context, id uuid.UUID) error {
	return translate(r.db.WithContext(ctx).Delete(&domain.CartItem{}, "id = ?", id).Error)
}

func (r *CartRepo) DeleteItems(ctx context.Context, cartID uuid.UUID) error {
	return translate(r.db.WithContext(ctx).Where("cart_id = ?", cartID).Delete(&domain.CartItem{}).Error)
}

func (r *CartRepo) ListItems(ctx context.Context, cartID uuid.UUID) ([]domain.CartItem, error) {
	var list []domain.CartItem
	if err := itemsByAge(r.db.WithContext(ctx)).Where("cart_id = ?", cartID).Find(&list).Error; err != nil {
		return nil, translate(err)
	}
	return list, nil
}
