package postgres

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/phenrril/ordercore/internal/domain"
)

type UserRepo struct{ db *gorm.DB }

func NewUserRepo(db *gorm.DB) *UserRepo { return &UserRepo{db: db} }

func (r *UserRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	var u domain.User
	if err := r.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (r *UserRepo) Save(ctx context.Context, u *domain.User) error {
	if u.Email != "" {
		u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	}
	return translate(r.db.WithContext(ctx).Save(u).Error)
}

type AddressRepo struct{ db *gorm.DB }

func NewAddressRepo(db *gorm.DB) *AddressRepo { return &AddressRepo{db: db} }

func (r *AddressRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Address, error) {
	var a domain.Address
	if err := r.db.WithContext(ctx).First(&a, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &a, nil
}

func (r *AddressRepo) Save(ctx context.Context, a *domain.Address) error {
	return translate(r.db.WithContext(ctx).Save(a).Error)
}
