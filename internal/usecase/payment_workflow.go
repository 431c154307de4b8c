package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"github.com/phenrril/ordercore/internal/domain"
)

// PaymentWorkflow drives the advance/final split against the gateway.
// The database is the record of progress: a gateway intent only becomes a
// Payment row after the gateway accepted it, and outcomes are applied to
// payment and order in one transaction.
type PaymentWorkflow struct {
	Store    domain.Store
	Gateway  domain.PaymentGateway
	Events   domain.EventPublisher
	Currency string
	Now      Clock
}

func (uc *PaymentWorkflow) currency() string {
	if uc.Currency == "" {
		return "INR"
	}
	return uc.Currency
}

func (uc *PaymentWorkflow) CreatePaymentOrder(ctx context.Context, orderID uuid.UUID, ptype domain.PaymentType, method domain.PaymentMethod) (intent *domain.PaymentIntent, err error) {
	ctx, span := startSpan(ctx, "PaymentWorkflow.CreatePaymentOrder", attribute.String("order_id", orderID.String()), attribute.String("type", ptype.String()))
	defer func() { endSpan(span, err) }()

	if _, err := ptype.MarshalText(); err != nil {
		return nil, err
	}
	if _, err := method.MarshalText(); err != nil {
		return nil, err
	}
	order, err := uc.Store.Orders().FindByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("order %s: %w", orderID, err)
	}
	if order.Status == domain.OrderCancelled {
		return nil, fmt.Errorf("order is cancelled: %w", domain.ErrInvalidTransition)
	}
	payments, err := uc.Store.Payments().ListByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if conflictingSuccess(payments, ptype, uuid.Nil) != nil {
		return nil, domain.ErrPaymentAlreadyCompleted
	}
	total, err := orderTotal(ctx, uc.Store, order)
	if err != nil {
		return nil, err
	}

	var amount decimal.Decimal
	switch ptype {
	case domain.PaymentAdvance:
		amount = domain.AdvanceAmount(total.Total)
	case domain.PaymentFinal:
		adv := successfulOfType(payments, domain.PaymentAdvance)
		if adv == nil {
			return nil, domain.ErrAdvanceNotCompleted
		}
		amount = domain.RoundMoney(total.Total.Sub(adv.Amount))
	case domain.PaymentFull:
		amount = total.Total
	}
	if !amount.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}

	req := domain.GatewayOrderRequest{
		OrderID:     orderID,
		Type:        ptype,
		AmountMinor: domain.MinorUnits(amount),
		Currency:    uc.currency(),
		Receipt:     Receipt(orderID, ptype),
	}
	gi, err := uc.Gateway.CreateOrder(ctx, req)
	if err != nil {
		var gwErr *domain.GatewayError
		if !errors.As(err, &gwErr) {
			err = &domain.GatewayError{Err: err}
		}
		log.Error().Err(err).Str("order_id", orderID.String()).Str("type", ptype.String()).Msg("gateway order creation failed")
		return nil, err
	}

	now := uc.Now.now()
	p := &domain.Payment{
		ID:             uuid.New(),
		OrderID:        orderID,
		Type:           ptype,
		Method:         method,
		Status:         domain.PaymentInitiated,
		Amount:         amount,
		Currency:       req.Currency,
		GatewayOrderID: gi.ID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := uc.Store.WithinTx(ctx, func(tx domain.Store) error {
		return tx.Payments().Create(ctx, p)
	}); err != nil {
		return nil, err
	}
	log.Info().Str("order_id", orderID.String()).Str("payment_id", p.ID.String()).Str("type", ptype.String()).
		Str("amount", amount.StringFixed(2)).Str("gateway_order_id", gi.ID).Msg("payment initiated")

	return &domain.PaymentIntent{
		PaymentID:      p.ID,
		OrderID:        orderID,
		Type:           ptype,
		Amount:         amount,
		AmountMinor:    req.AmountMinor,
		Currency:       req.Currency,
		GatewayOrderID: gi.ID,
		GatewayKeyID:   uc.Gateway.KeyID(),
	}, nil
}

// Receipt is the idempotency key sent to the gateway. It stays under the
// gateway's 40 character limit.
func Receipt(orderID uuid.UUID, ptype domain.PaymentType) string {
	code := ptype.String()
	if len(code) > 3 {
		code = code[:3]
	}
	return strings.ReplaceAll(orderID.String(), "-", "") + "_" + code
}

func (uc *PaymentWorkflow) VerifySignature(gatewayOrderID, gatewayPaymentID, signature string) bool {
	return uc.Gateway.VerifyPaymentSignature(gatewayOrderID, gatewayPaymentID, signature)
}

// ProcessSuccess applies a client-reported capture. The signature is
// checked before anything is written.
func (uc *PaymentWorkflow) ProcessSuccess(ctx context.Context, paymentID uuid.UUID, gatewayPaymentID, signature string) (payment *domain.Payment, err error) {
	ctx, span := startSpan(ctx, "PaymentWorkflow.ProcessSuccess", attribute.String("payment_id", paymentID.String()))
	defer func() { endSpan(span, err) }()

	var events []domain.Event
	err = uc.Store.WithinTx(ctx, func(tx domain.Store) error {
		p, err := tx.Payments().FindByIDForUpdate(ctx, paymentID)
		if isNotFound(err) {
			return domain.ErrPaymentNotFound
		}
		if err != nil {
			return err
		}
		if !uc.Gateway.VerifyPaymentSignature(p.GatewayOrderID, gatewayPaymentID, signature) {
			log.Warn().Str("payment_id", paymentID.String()).Msg("payment signature mismatch")
			return domain.ErrSignatureInvalid
		}
		events, err = uc.applySuccess(ctx, tx, p, gatewayPaymentID, signature)
		payment = p
		return err
	})
	if err != nil {
		return nil, err
	}
	publish(ctx, uc.Events, events...)
	return payment, nil
}

// applySuccess marks p successful and moves the order along. A payment that
// already succeeded is left as is.
func (uc *PaymentWorkflow) applySuccess(ctx context.Context, tx domain.Store, p *domain.Payment, gatewayPaymentID, signature string) ([]domain.Event, error) {
	if p.Succeeded() {
		if gatewayPaymentID != "" && p.GatewayPaymentID != gatewayPaymentID {
			log.Warn().Str("payment_id", p.ID.String()).Str("gateway_payment_id", gatewayPaymentID).Msg("second capture reported for settled payment")
		}
		return nil, nil
	}
	if !p.Status.CanTransitionTo(domain.PaymentSuccess) {
		return nil, fmt.Errorf("payment %s -> success: %w", p.Status, domain.ErrInvalidTransition)
	}
	// The order row lock queues concurrent successes for the same order, so
	// the conflict check below sees every settled payment.
	o, err := tx.Orders().FindByIDForUpdate(ctx, p.OrderID)
	if err != nil {
		return nil, fmt.Errorf("order %s: %w", p.OrderID, err)
	}
	others, err := tx.Payments().ListByOrder(ctx, p.OrderID)
	if err != nil {
		return nil, err
	}
	if conflictingSuccess(others, p.Type, p.ID) != nil {
		return nil, domain.ErrPaymentAlreadyCompleted
	}

	now := uc.Now.now()
	p.Status = domain.PaymentSuccess
	p.PaidAt = &now
	p.GatewayPaymentID = gatewayPaymentID
	if signature != "" {
		p.GatewaySignature = signature
	}
	p.FailureReason = ""
	p.UpdatedAt = now
	if err := tx.Payments().Save(ctx, p); err != nil {
		return nil, err
	}
	pid := p.ID
	events := []domain.Event{{Type: domain.EventPaymentSucceeded, OrderID: p.OrderID, PaymentID: &pid, Status: p.Type.String(), Amount: p.Amount, OccurredAt: now}}

	if o.Status == domain.OrderCancelled {
		log.Warn().Str("order_id", o.ID.String()).Str("payment_id", p.ID.String()).Msg("payment captured for cancelled order")
		return events, nil
	}

	changed := false
	if (p.Type == domain.PaymentAdvance || p.Type == domain.PaymentFull) && o.Status == domain.OrderPending {
		o.Status = domain.OrderConfirmed
		changed = true
		events = append(events, domain.Event{Type: domain.EventOrderStatus, OrderID: o.ID, Status: o.Status.String(), OccurredAt: now})
	}
	if (p.Type == domain.PaymentFinal || p.Type == domain.PaymentFull) && !o.StockCommitted {
		for _, it := range orderItemsByVariant(o.Items) {
			if err := commitStock(ctx, tx, it.VariantSizeID, it.Qty); err != nil {
				return nil, err
			}
		}
		o.StockCommitted = true
		changed = true
	}
	if changed {
		o.UpdatedAt = now
		if err := tx.Orders().Save(ctx, o); err != nil {
			return nil, err
		}
	}
	log.Info().Str("payment_id", p.ID.String()).Str("order_id", o.ID.String()).Str("type", p.Type.String()).
		Str("order_status", o.Status.String()).Msg("payment succeeded")
	return events, nil
}

func (uc *PaymentWorkflow) HandleFailure(ctx context.Context, paymentID uuid.UUID, reason string) (payment *domain.Payment, err error) {
	ctx, span := startSpan(ctx, "PaymentWorkflow.HandleFailure", attribute.String("payment_id", paymentID.String()))
	defer func() { endSpan(span, err) }()

	var events []domain.Event
	err = uc.Store.WithinTx(ctx, func(tx domain.Store) error {
		p, err := tx.Payments().FindByIDForUpdate(ctx, paymentID)
		if isNotFound(err) {
			return domain.ErrPaymentNotFound
		}
		if err != nil {
			return err
		}
		events, err = uc.applyFailure(ctx, tx, p, reason)
		payment = p
		return err
	})
	if err != nil {
		return nil, err
	}
	publish(ctx, uc.Events, events...)
	return payment, nil
}

// applyFailure never touches the order and never downgrades a success.
func (uc *PaymentWorkflow) applyFailure(ctx context.Context, tx domain.Store, p *domain.Payment, reason string) ([]domain.Event, error) {
	if p.Status == domain.PaymentFailed {
		if p.FailureReason == "" && reason != "" {
			p.FailureReason = reason
			return nil, tx.Payments().Save(ctx, p)
		}
		return nil, nil
	}
	if !p.Status.CanTransitionTo(domain.PaymentFailed) {
		return nil, fmt.Errorf("payment %s -> failed: %w", p.Status, domain.ErrInvalidTransition)
	}
	now := uc.Now.now()
	p.Status = domain.PaymentFailed
	p.FailureReason = reason
	p.UpdatedAt = now
	if err := tx.Payments().Save(ctx, p); err != nil {
		return nil, err
	}
	log.Info().Str("payment_id", p.ID.String()).Str("order_id", p.OrderID.String()).Str("reason", reason).Msg("payment failed")
	pid := p.ID
	return []domain.Event{{Type: domain.EventPaymentFailed, OrderID: p.OrderID, PaymentID: &pid, Status: p.Type.String(), Reference: reason, OccurredAt: now}}, nil
}

// Retry opens a fresh gateway intent. Earlier payment rows are not touched.
func (uc *PaymentWorkflow) Retry(ctx context.Context, orderID uuid.UUID, ptype domain.PaymentType, method domain.PaymentMethod) (*domain.PaymentIntent, error) {
	log.Info().Str("order_id", orderID.String()).Str("type", ptype.String()).Msg("payment retry requested")
	return uc.CreatePaymentOrder(ctx, orderID, ptype, method)
}

// HandleWebhook applies a gateway notification at most once per event id.
// The event id is recorded in the same transaction as its effect. Events
// that cannot be applied are acknowledged so the gateway stops redelivering.
func (uc *PaymentWorkflow) HandleWebhook(ctx context.Context, ev domain.GatewayWebhook) (result domain.WebhookResult, err error) {
	ctx, span := startSpan(ctx, "PaymentWorkflow.HandleWebhook", attribute.String("event", ev.Event))
	defer func() { endSpan(span, err) }()

	entity := ev.Payload.Payment.Entity
	if ev.Event != domain.WebhookPaymentCaptured && ev.Event != domain.WebhookPaymentFailed {
		log.Info().Str("event", ev.Event).Msg("webhook event ignored")
		return domain.WebhookIgnored, nil
	}
	key := ev.EventID
	if key == "" {
		key = ev.Event + ":" + entity.ID
		if entity.ID == "" {
			key = ev.Event + ":" + entity.OrderID
		}
	}

	var events []domain.Event
	err = uc.Store.WithinTx(ctx, func(tx domain.Store) error {
		fresh, err := tx.Webhooks().Record(ctx, &domain.WebhookEvent{ID: key, Event: ev.Event, ReceivedAt: uc.Now.now()})
		if err != nil {
			return err
		}
		if !fresh {
			result = domain.WebhookDuplicate
			return nil
		}
		p, err := tx.Payments().FindByGatewayOrderID(ctx, entity.OrderID)
		if isNotFound(err) {
			log.Warn().Str("event", ev.Event).Str("gateway_order_id", entity.OrderID).Msg("webhook for unknown payment")
			result = domain.WebhookIgnored
			return nil
		}
		if err != nil {
			return err
		}
		if p, err = tx.Payments().FindByIDForUpdate(ctx, p.ID); err != nil {
			return err
		}
		if ev.Event == domain.WebhookPaymentCaptured {
			events, err = uc.applySuccess(ctx, tx, p, entity.ID, "")
		} else {
			events, err = uc.applyFailure(ctx, tx, p, entity.ErrorDescription)
		}
		if errors.Is(err, domain.ErrPaymentAlreadyCompleted) || errors.Is(err, domain.ErrInvalidTransition) {
			log.Warn().Err(err).Str("event", ev.Event).Str("payment_id", p.ID.String()).Msg("webhook not applicable")
			result = domain.WebhookIgnored
			return nil
		}
		if err != nil {
			return err
		}
		result = domain.WebhookApplied
		return nil
	})
	if err != nil {
		return "", err
	}
	publish(ctx, uc.Events, events...)
	return result, nil
}

func (uc *PaymentWorkflow) CheckCompletion(ctx context.Context, orderID uuid.UUID) (*domain.PaymentCompletion, error) {
	o, err := uc.Store.Orders().FindByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("order %s: %w", orderID, err)
	}
	total, err := orderTotal(ctx, uc.Store, o)
	if err != nil {
		return nil, err
	}
	payments, err := uc.Store.Payments().ListByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	c := completionOf(payments)
	c.OrderID = orderID
	c.Total = total.Total
	c.AdvanceDue = domain.AdvanceAmount(total.Total)
	c.AmountOutstanding = decimal.Max(decimal.Zero, total.Total.Sub(c.AmountPaid))
	return &c, nil
}

func (uc *PaymentWorkflow) Get(ctx context.Context, paymentID uuid.UUID) (*domain.Payment, error) {
	p, err := uc.Store.Payments().FindByID(ctx, paymentID)
	if isNotFound(err) {
		return nil, domain.ErrPaymentNotFound
	}
	return p, err
}

func (uc *PaymentWorkflow) ListForOrder(ctx context.Context, orderID uuid.UUID) ([]domain.Payment, error) {
	if _, err := uc.Store.Orders().FindByID(ctx, orderID); err != nil {
		return nil, fmt.Errorf("order %s: %w", orderID, err)
	}
	return uc.Store.Payments().ListByOrder(ctx, orderID)
}

func completionOf(payments []domain.Payment) domain.PaymentCompletion {
	c := domain.PaymentCompletion{AmountPaid: decimal.Zero}
	for _, p := range payments {
		if !p.Succeeded() {
			continue
		}
		c.AmountPaid = c.AmountPaid.Add(p.Amount)
		switch p.Type {
		case domain.PaymentAdvance:
			c.AdvancePaid = true
		case domain.PaymentFinal:
			c.FinalPaid = true
		case domain.PaymentFull:
			c.AdvancePaid, c.FinalPaid = true, true
		}
	}
	c.FullyPaid = c.AdvancePaid && c.FinalPaid
	return c
}

func successfulOfType(payments []domain.Payment, t domain.PaymentType) *domain.Payment {
	for i := range payments {
		if payments[i].Succeeded() && payments[i].Type == t {
			return &payments[i]
		}
	}
	return nil
}

// conflictingSuccess finds a settled payment, other than self, that rules
// out another payment of type t. A full payment excludes the split and the
// other way around.
func conflictingSuccess(payments []domain.Payment, t domain.PaymentType, self uuid.UUID) *domain.Payment {
	for i := range payments {
		p := &payments[i]
		if p.ID == self || !p.Succeeded() {
			continue
		}
		if p.Type == t || p.Type == domain.PaymentFull || t == domain.PaymentFull {
			return p
		}
	}
	return nil
}
