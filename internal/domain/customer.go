package domain

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Email     string    `gorm:"size:140;uniqueIndex" json:"email"`
	Name      string    `gorm:"size:140" json:"name"`
	Phone     string    `gorm:"size:60" json:"phone,omitempty"`
	Role      Role      `gorm:"type:varchar(20);not null" json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func (u *User) IsAdmin() bool { return u != nil && u.Role == RoleAdmin }

type Address struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     uuid.UUID `gorm:"type:uuid;index;not null" json:"user_id"`
	Line1      string    `gorm:"size:255" json:"line1"`
	Line2      string    `gorm:"size:255" json:"line2,omitempty"`
	City       string    `gorm:"size:100" json:"city"`
	State      string    `gorm:"size:100" json:"state"`
	PostalCode string    `gorm:"size:20" json:"postal_code"`
	IsDefault  bool      `gorm:"default:false" json:"is_default"`
	CreatedAt  time.Time `json:"created_at"`
}

// Actor is the authenticated caller of a workflow operation.
type Actor struct {
	UserID uuid.UUID
	Role   Role
}

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

func (a Actor) Owns(userID uuid.UUID) bool { return a.UserID == userID }
