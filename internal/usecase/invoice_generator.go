package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"

	"github.com/phenrril/ordercore/internal/domain"
)

const maxInvoiceNumberAttempts = 5

type InvoiceGenerator struct {
	Store  domain.Store
	Events domain.EventPublisher
	Now    Clock
}

// GenerateNumber proposes the next INV-YYYYMMDD-NNNN number for day, one
// past the highest already issued that day. Uniqueness is settled by the
// insert, see Generate.
func (uc *InvoiceGenerator) GenerateNumber(ctx context.Context, tx domain.Store, day time.Time) (string, error) {
	highest, err := tx.Invoices().MaxNumberWithPrefix(ctx, domain.InvoiceDayPrefix(day))
	if err != nil {
		return "", err
	}
	seq := 0
	if highest != "" {
		if n, ok := domain.InvoiceSequence(highest); ok {
			seq = n
		}
	}
	return domain.FormatInvoiceNumber(day, seq+1), nil
}

// Generate issues the invoice for an order, or returns the one it already has.
func (uc *InvoiceGenerator) Generate(ctx context.Context, orderID uuid.UUID) (inv *domain.Invoice, err error) {
	ctx, span := startSpan(ctx, "InvoiceGenerator.Generate", attribute.String("order_id", orderID.String()))
	defer func() { endSpan(span, err) }()

	created := false
	err = uc.Store.WithinTx(ctx, func(tx domain.Store) error {
		o, err := tx.Orders().FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return fmt.Errorf("order %s: %w", orderID, err)
		}
		existing, err := tx.Invoices().FindByOrder(ctx, orderID)
		if err == nil {
			inv = existing
			return nil
		}
		if !isNotFound(err) {
			return err
		}
		if o.Status == domain.OrderCancelled {
			return fmt.Errorf("order is cancelled: %w", domain.ErrInvalidTransition)
		}

		totals, err := invoiceTotals(ctx, tx, o)
		if err != nil {
			return err
		}
		now := uc.Now.now()
		day := domain.Day(now)
		number, err := uc.GenerateNumber(ctx, tx, day)
		if err != nil {
			return err
		}
		for attempt := 0; attempt < maxInvoiceNumberAttempts; attempt++ {
			candidate := &domain.Invoice{
				ID:          uuid.New(),
				OrderID:     orderID,
				Number:      number,
				Subtotal:    totals.Subtotal,
				TaxPct:      totals.TaxPct,
				TaxAmount:   totals.Tax,
				TotalAmount: totals.Total,
				IssueDate:   day,
				CreatedAt:   now,
			}
			// The savepoint keeps the outer transaction usable after a
			// unique violation.
			err = tx.WithinTx(ctx, func(sp domain.Store) error {
				return sp.Invoices().Create(ctx, candidate)
			})
			if err == nil {
				inv, created = candidate, true
				return nil
			}
			if !errors.Is(err, domain.ErrConflict) {
				return err
			}
			if existing, ferr := tx.Invoices().FindByOrder(ctx, orderID); ferr == nil {
				inv = existing
				return nil
			}
			seq, _ := domain.InvoiceSequence(number)
			log.Debug().Str("number", number).Int("attempt", attempt+1).Msg("invoice number taken, retrying")
			number = domain.FormatInvoiceNumber(day, seq+1)
		}
		return fmt.Errorf("invoice number for %s: %w", day.Format("2006-01-02"), domain.ErrConflict)
	})
	if err != nil {
		return nil, err
	}
	if created {
		log.Info().Str("order_id", orderID.String()).Str("invoice", inv.Number).Str("total", inv.TotalAmount.StringFixed(2)).Msg("invoice issued")
		publish(ctx, uc.Events, domain.Event{Type: domain.EventInvoiceIssued, OrderID: orderID, Amount: inv.TotalAmount, Reference: inv.Number, OccurredAt: inv.CreatedAt})
	}
	return inv, nil
}

func (uc *InvoiceGenerator) Get(ctx context.Context, orderID uuid.UUID) (*domain.Invoice, error) {
	inv, err := uc.Store.Invoices().FindByOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("invoice for order %s: %w", orderID, err)
	}
	return inv, nil
}

// Totals returns the figures printed on the invoice: the stored ones once
// issued, otherwise what Generate would compute now.
func (uc *InvoiceGenerator) Totals(ctx context.Context, orderID uuid.UUID) (domain.OrderTotal, error) {
	if inv, err := uc.Store.Invoices().FindByOrder(ctx, orderID); err == nil {
		return domain.OrderTotal{Subtotal: inv.Subtotal, TaxPct: inv.TaxPct, Tax: inv.TaxAmount, Total: inv.TotalAmount}, nil
	} else if !isNotFound(err) {
		return domain.OrderTotal{}, err
	}
	o, err := uc.Store.Orders().FindByID(ctx, orderID)
	if err != nil {
		return domain.OrderTotal{}, fmt.Errorf("order %s: %w", orderID, err)
	}
	return invoiceTotals(ctx, uc.Store, o)
}

// invoiceTotals uses the tax configuration of the order's creation date, the
// same one the customer was charged against. Unlike order totals a missing
// configuration is an error here.
func invoiceTotals(ctx context.Context, s domain.Store, o *domain.Order) (domain.OrderTotal, error) {
	cfg, ok, err := activeTaxConfig(ctx, s, o.CreatedAt)
	if err != nil {
		return domain.OrderTotal{}, err
	}
	if !ok {
		return domain.OrderTotal{}, domain.ErrNoActiveTaxConfig
	}
	t := domain.OrderTotal{Subtotal: o.Subtotal(), TaxPct: cfg.Percentage}
	t.Tax, t.Total = computeTax(t.Subtotal, t.TaxPct)
	return t, nil
}
