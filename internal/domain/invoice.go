package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Invoice struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	OrderID     uuid.UUID       `gorm:"type:uuid;uniqueIndex;not null" json:"order_id"`
	Number      string          `gorm:"size:20;uniqueIndex;not null" json:"invoice_number"`
	Subtotal    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"subtotal"`
	TaxPct      decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"tax_pct"`
	TaxAmount   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"tax_amount"`
	TotalAmount decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_amount"`
	IssueDate   time.Time       `gorm:"type:date;not null" json:"issue_date"`
	CreatedAt   time.Time       `json:"created_at"`
}

const invoicePrefix = "INV-"

// InvoiceDayPrefix is the shared prefix of every number issued on day.
func InvoiceDayPrefix(day time.Time) string {
	return invoicePrefix + day.UTC().Format("20060102") + "-"
}

func FormatInvoiceNumber(day time.Time, seq int) string {
	return fmt.Sprintf("%s%04d", InvoiceDayPrefix(day), seq)
}

// InvoiceSequence extracts NNNN from INV-YYYYMMDD-NNNN.
func InvoiceSequence(number string) (int, bool) {
	i := strings.LastIndexByte(number, '-')
	if !strings.HasPrefix(number, invoicePrefix) || i < 0 {
		return 0, false
	}
	n, err := strconv.Atoi(number[i+1:])
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
