package postgres

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/phenrril/ordercore/internal/domain"
)

type OrderRepo struct{ db *gorm.DB }

func NewOrderRepo(db *gorm.DB) *OrderRepo { return &OrderRepo{db: db} }

func (r *OrderRepo) Create(ctx context.Context, o *domain.Order) error {
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Create(o).Error)
}

func (r *OrderRepo) CreateItem(ctx context.Context, it *domain.OrderItem) error {
	return translate(r.db.WithContext(ctx).Create(it).Error)
}

func (r *OrderRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	var o domain.Order
	if err := r.db.WithContext(ctx).Preload("Items", itemsByAge).First(&o, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &o, nil
}

// FindByIDForUpdate locks the order row; items are read without a lock.
func (r *OrderRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	var o domain.Order
	db := r.db.WithContext(ctx)
	if err := db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&o, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	if err := itemsByAge(db).Where("order_id = ?", id).Find(&o.Items).Error; err != nil {
		return nil, translate(err)
	}
	return &o, nil
}

func (r *OrderRepo) Save(ctx context.Context, o *domain.Order) error {
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Save(o).Error)
}

func (r *OrderRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Order, error) {
	var list []domain.Order
	err := r.db.WithContext(ctx).Preload("Items", itemsByAge).
		Where("user_id = ?", userID).Order("created_at desc").Find(&list).Error
	if err != nil {
		return nil, translate(err)
	}
	return list, nil
}

type PaymentRepo struct{ db *gorm.DB }

func NewPaymentRepo(db *gorm.DB) *PaymentRepo { return &PaymentRepo{db: db} }

func (r *PaymentRepo) Create(ctx context.Context, p *domain.Payment) error {
	return translate(r.db.WithContext(ctx).Create(p).Error)
}

func (r *PaymentRepo) Save(ctx context.Context, p *domain.Payment) error {
	return translate(r.db.WithContext(ctx).Save(p).Error)
}

func (r *PaymentRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	var p domain.Payment
	if err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (r *PaymentRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	var p domain.Payment
	err := r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).First(&p, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (r *PaymentRepo) FindByGatewayOrderID(ctx context.Context, gid string) (*domain.Payment, error) {
	var p domain.Payment
	err := r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&p, "gateway_order_id = ?", gid).Error
	if err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (r *PaymentRepo) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]domain.Payment, error) {
	var list []domain.Payment
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Order("created_at asc").Find(&list).Error; err != nil {
		return nil, translate(err)
	}
	return list, nil
}
