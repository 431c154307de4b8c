package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Payment struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	OrderID          uuid.UUID       `gorm:"type:uuid;index;not null" json:"order_id"`
	Type             PaymentType     `gorm:"type:varchar(20);not null" json:"type"`
	Method           PaymentMethod   `gorm:"type:varchar(20);not null" json:"method"`
	Status           PaymentStatus   `gorm:"type:varchar(20);index;not null" json:"status"`
	Amount           decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Currency         string          `gorm:"size:3;not null" json:"currency"`
	GatewayOrderID   string          `gorm:"size:100;uniqueIndex" json:"gateway_order_id"`
	GatewayPaymentID string          `gorm:"size:100;index" json:"gateway_payment_id,omitempty"`
	GatewaySignature string          `gorm:"size:255" json:"-"`
	FailureReason    string          `gorm:"type:text" json:"failure_reason,omitempty"`
	PaidAt           *time.Time      `json:"paid_at,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

func (p *Payment) Succeeded() bool { return p.Status == PaymentSuccess }

// GatewayIntent is what the gateway hands back for a create-order call.
type GatewayIntent struct {
	ID          string
	AmountMinor int64
	Currency    string
}

type GatewayOrderRequest struct {
	OrderID     uuid.UUID
	Type        PaymentType
	AmountMinor int64
	Currency    string
	Receipt     string
}

// PaymentIntent is returned to the client to open the gateway checkout.
type PaymentIntent struct {
	PaymentID      uuid.UUID       `json:"payment_id"`
	OrderID        uuid.UUID       `json:"order_id"`
	Type           PaymentType     `json:"type"`
	Amount         decimal.Decimal `json:"amount"`
	AmountMinor    int64           `json:"amount_minor"`
	Currency       string          `json:"currency"`
	GatewayOrderID string          `json:"gateway_order_id"`
	GatewayKeyID   string          `json:"gateway_key_id,omitempty"`
}

type PaymentCompletion struct {
	OrderID           uuid.UUID       `json:"order_id"`
	AdvancePaid       bool            `json:"advance_paid"`
	FinalPaid         bool            `json:"final_paid"`
	FullyPaid         bool            `json:"fully_paid"`
	Total             decimal.Decimal `json:"total"`
	AdvanceDue        decimal.Decimal `json:"advance_due"`
	AmountPaid        decimal.Decimal `json:"amount_paid"`
	AmountOutstanding decimal.Decimal `json:"amount_outstanding"`
}

type WebhookEvent struct {
	ID         string    `gorm:"size:120;primaryKey" json:"id"`
	Event      string    `gorm:"size:60;not null" json:"event"`
	ReceivedAt time.Time `json:"received_at"`
}

// GatewayWebhook is the decoded notification body.
type GatewayWebhook struct {
	EventID string `json:"-"`
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID               string `json:"id"`
				OrderID          string `json:"order_id"`
				ErrorDescription string `json:"error_description,omitempty"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

const (
	WebhookPaymentCaptured = "payment.captured"
	WebhookPaymentFailed   = "payment.failed"
)

type WebhookResult string

const (
	WebhookApplied   WebhookResult = "applied"
	WebhookDuplicate WebhookResult = "duplicate"
	WebhookIgnored   WebhookResult = "ignored"
)
