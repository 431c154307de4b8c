package usecase

import (
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phenrril/ordercore/internal/domain"
)

func TestPaymentWorkflow_AdvanceThenFinal(t *testing.T) {
	f := newFixture(t)
	vs := f.addVariant("500", "10", 10)
	o := f.checkout(line{vs, 2})

	_, err := f.payments.CreatePaymentOrder(f.ctx, o.ID, domain.PaymentFinal, domain.MethodCard)
	assert.ErrorIs(t, err, domain.ErrAdvanceNotCompleted)

	intent, err := f.payments.CreatePaymentOrder(f.ctx, o.ID, domain.PaymentAdvance, domain.MethodUPI)
	require.NoError(t, err)
	assert.True(t, dec("649").Equal(intent.Amount))
	assert.Equal(t, int64(64900), intent.AmountMinor)
	assert.Equal(t, "INR", intent.Currency)
	assert.Equal(t, "rzp_test_key", intent.GatewayKeyID)
	assert.Equal(t, Receipt(o.ID, domain.PaymentAdvance), f.gateway.last.Receipt)
	assert.LessOrEqual(t, len(f.gateway.last.Receipt), 40)

	sig := f.gateway.sign(intent.GatewayOrderID, "pay_A")
	p, err := f.payments.ProcessSuccess(f.ctx, intent.PaymentID, "pay_A", sig)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentSuccess, p.Status)
	require.NotNil(t, p.PaidAt)
	assert.Equal(t, domain.OrderConfirmed, f.order(o.ID).Status)
	assert.Equal(t, 2, f.stockOf(vs).QuantityReserved)

	// replaying the same capture changes nothing
	_, err = f.payments.ProcessSuccess(f.ctx, intent.PaymentID, "pay_A", sig)
	require.NoError(t, err)

	_, err = f.payments.CreatePaymentOrder(f.ctx, o.ID, domain.PaymentAdvance, domain.MethodUPI)
	assert.ErrorIs(t, err, domain.ErrPaymentAlreadyCompleted)
	_, err = f.payments.CreatePaymentOrder(f.ctx, o.ID, domain.PaymentFull, domain.MethodUPI)
	assert.ErrorIs(t, err, domain.ErrPaymentAlreadyCompleted)

	c, err := f.payments.CheckCompletion(f.ctx, o.ID)
	require.NoError(t, err)
	assert.True(t, c.AdvancePaid)
	assert.False(t, c.FinalPaid)
	assert.True(t, dec("649").Equal(c.AmountOutstanding))

	final, err := f.payments.CreatePaymentOrder(f.ctx, o.ID, domain.PaymentFinal, domain.MethodCard)
	require.NoError(t, err)
	assert.True(t, dec("649").Equal(final.Amount))
	_, err = f.payments.ProcessSuccess(f.ctx, final.PaymentID, "pay_B", f.gateway.sign(final.GatewayOrderID, "pay_B"))
	require.NoError(t, err)

	got := f.order(o.ID)
	assert.Equal(t, domain.OrderConfirmed, got.Status)
	assert.True(t, got.StockCommitted)
	assert.Equal(t, domain.Stock{VariantSizeID: vs, QuantityInStock: 8}, withoutTime(f.stockOf(vs)))

	c, err = f.payments.CheckCompletion(f.ctx, o.ID)
	require.NoError(t, err)
	assert.True(t, c.FullyPaid)
	assert.True(t, dec("1298").Equal(c.AmountPaid))
	assert.True(t, c.AmountOutstanding.IsZero())

	assert.Len(t, f.events.ofType(domain.EventPaymentSucceeded), 2)

	list, err := f.payments.ListForOrder(f.ctx, o.ID)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestPaymentWorkflow_OneSuccessPerType(t *testing.T) {
	f := newFixture(t)
	vs := f.addVariant("500", "10", 10)
	o := f.checkout(line{vs, 2})

	intents := make([]*domain.PaymentIntent, 2)
	for i := range intents {
		in, err := f.payments.CreatePaymentOrder(f.ctx, o.ID, domain.PaymentAdvance, domain.MethodUPI)
		require.NoError(t, err)
		intents[i] = in
	}

	errs := make([]error, len(intents))
	var wg sync.WaitGroup
	for i, in := range intents {
		i, in := i, in
		wg.Add(1)
		go func() {
			defer wg.Done()
			pid := "pay_" + in.GatewayOrderID
			_, errs[i] = f.payments.ProcessSuccess(f.ctx, in.PaymentID, pid, f.gateway.sign(in.GatewayOrderID, pid))
		}()
	}
	wg.Wait()

	settled := 0
	for _, err := range errs {
		if err == nil {
			settled++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrPaymentAlreadyCompleted)
	}
	assert.Equal(t, 1, settled)

	list, err := f.payments.ListForOrder(f.ctx, o.ID)
	require.NoError(t, err)
	successes := 0
	var loser domain.Payment
	for _, p := range list {
		if p.Succeeded() {
			successes++
		} else {
			loser = p
		}
	}
	assert.Equal(t, 1, successes)
	c, err := f.payments.CheckCompletion(f.ctx, o.ID)
	require.NoError(t, err)
	assert.True(t, dec("649").Equal(c.AmountPaid))

	// the store refuses a second settled advance even if a caller skips the check
	loser.Status = domain.PaymentSuccess
	err = f.store.WithinTx(f.ctx, func(tx domain.Store) error { return tx.Payments().Save(f.ctx, &loser) })
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestPaymentWorkflow_SignatureMismatch(t *testing.T) {
	f := newFixture(t)
	vs := f.addVariant("500", "10", 10)
	o := f.checkout(line{vs, 2})
	intent, err := f.payments.CreatePaymentOrder(f.ctx, o.ID, domain.PaymentAdvance, domain.MethodUPI)
	require.NoError(t, err)

	sig := []byte(f.gateway.sign(intent.GatewayOrderID, "pay_A"))
	assert.True(t, f.payments.VerifySignature(intent.GatewayOrderID, "pay_A", string(sig)))
	if sig[0] == 'a' {
		sig[0] = 'b'
	} else {
		sig[0] = 'a'
	}
	assert.False(t, f.payments.VerifySignature(intent.GatewayOrderID, "pay_A", string(sig)))

	_, err = f.payments.ProcessSuccess(f.ctx, intent.PaymentID, "pay_A", string(sig))
	assert.ErrorIs(t, err, domain.ErrSignatureInvalid)

	p, err := f.store.Payments().FindByID(f.ctx, intent.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentInitiated, p.Status)
	assert.Equal(t, domain.OrderPending, f.order(o.ID).Status)

	_, err = f.payments.ProcessSuccess(f.ctx, uuid.New(), "pay_A", string(sig))
	assert.ErrorIs(t, err, domain.ErrPaymentNotFound)
}

func TestPaymentWorkflow_SuccessIsAtomic(t *testing.T) {
	f := newFixture(t)
	vs := f.addVariant("500", "10", 10)
	o := f.checkout(line{vs, 2})
	intent, err := f.payments.CreatePaymentOrder(f.ctx, o.ID, domain.PaymentAdvance, domain.MethodUPI)
	require.NoError(t, err)

	f.wire(&faultStore{Store: f.store, f: &faults{failOrderSave: true}})
	_, err = f.payments.ProcessSuccess(f.ctx, intent.PaymentID, "pay_A", f.gateway.sign(intent.GatewayOrderID, "pay_A"))
	require.ErrorIs(t, err, errInjected)

	p, err := f.store.Payments().FindByID(f.ctx, intent.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentInitiated, p.Status)
	assert.Nil(t, p.PaidAt)
	assert.Equal(t, domain.OrderPending, f.order(o.ID).Status)
	assert.Empty(t, f.events.ofType(domain.EventPaymentSucceeded))
}

func TestPaymentWorkflow_GatewayFailureLeavesNoRow(t *testing.T) {
	f := newFixture(t)
	vs := f.addVariant("100", "0", 10)
	o := f.checkout(line{vs, 1})

	f.gateway.err = errors.New("connection reset")
	_, err := f.payments.CreatePaymentOrder(f.ctx, o.ID, domain.PaymentFull, domain.MethodUPI)
	assert.ErrorIs(t, err, domain.ErrGateway)

	list, err := f.payments.ListForOrder(f.ctx, o.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestPaymentWorkflow_Validation(t *testing.T) {
	f := newFixture(t)
	vs := f.addVariant("100", "0", 10)
	o := f.checkout(line{vs, 1})

	_, err := f.payments.CreatePaymentOrder(f.ctx, o.ID, domain.PaymentType(9), domain.MethodUPI)
	assert.ErrorIs(t, err, domain.ErrUnknownEnum)
	_, err = f.payments.CreatePaymentOrder(f.ctx, o.ID, domain.PaymentAdvance, domain.PaymentMethod(0))
	assert.ErrorIs(t, err, domain.ErrUnknownEnum)
	_, err = f.payments.CreatePaymentOrder(f.ctx, uuid.New(), domain.PaymentAdvance, domain.MethodUPI)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.orders.Cancel(f.ctx, o.ID, f.customer, "")
	require.NoError(t, err)
	_, err = f.payments.CreatePaymentOrder(f.ctx, o.ID, domain.PaymentAdvance, domain.MethodUPI)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestPaymentWorkflow_FailureAndRetry(t *testing.T) {
	f := newFixture(t)
	vs := f.addVariant("100", "0", 10)
	o := f.checkout(line{vs, 1})

	first, err := f.payments.CreatePaymentOrder(f.ctx, o.ID, domain.PaymentAdvance, domain.MethodUPI)
	require.NoError(t, err)
	p, err := f.payments.HandleFailure(f.ctx, first.PaymentID, "insufficient funds")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentFailed, p.Status)
	assert.Equal(t, "insufficient funds", p.FailureReason)
	assert.Equal(t, domain.OrderPending, f.order(o.ID).Status)

	second, err := f.payments.Retry(f.ctx, o.ID, domain.PaymentAdvance, domain.MethodCard)
	require.NoError(t, err)
	assert.NotEqual(t, first.GatewayOrderID, second.GatewayOrderID)
	_, err = f.payments.ProcessSuccess(f.ctx, second.PaymentID, "pay_2", f.gateway.sign(second.GatewayOrderID, "pay_2"))
	require.NoError(t, err)

	_, err = f.payments.HandleFailure(f.ctx, second.PaymentID, "late decline")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	got, err := f.store.Payments().FindByID(f.ctx, second.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentSuccess, got.Status)
}

func TestPaymentWorkflow_Webhook(t *testing.T) {
	f := newFixture(t)
	vs := f.addVariant("100", "0", 10)
	o := f.checkout(line{vs, 1})
	intent, err := f.payments.CreatePaymentOrder(f.ctx, o.ID, domain.PaymentFull, domain.MethodUPI)
	require.NoError(t, err)

	captured := webhook("evt_1", domain.WebhookPaymentCaptured, "pay_W", intent.GatewayOrderID)
	res, err := f.payments.HandleWebhook(f.ctx, captured)
	require.NoError(t, err)
	assert.Equal(t, domain.WebhookApplied, res)

	got := f.order(o.ID)
	assert.Equal(t, domain.OrderConfirmed, got.Status)
	assert.True(t, got.StockCommitted)

	res, err = f.payments.HandleWebhook(f.ctx, captured)
	require.NoError(t, err)
	assert.Equal(t, domain.WebhookDuplicate, res)
	assert.Equal(t, 9, f.stockOf(vs).QuantityInStock)

	failed := webhook("evt_2", domain.WebhookPaymentFailed, "pay_W", intent.GatewayOrderID)
	res, err = f.payments.HandleWebhook(f.ctx, failed)
	require.NoError(t, err)
	assert.Equal(t, domain.WebhookIgnored, res)
	p, err := f.store.Payments().FindByID(f.ctx, intent.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentSuccess, p.Status)

	res, err = f.payments.HandleWebhook(f.ctx, webhook("evt_3", "order.paid", "pay_W", intent.GatewayOrderID))
	require.NoError(t, err)
	assert.Equal(t, domain.WebhookIgnored, res)

	res, err = f.payments.HandleWebhook(f.ctx, webhook("evt_4", domain.WebhookPaymentCaptured, "pay_X", "order_unknown"))
	require.NoError(t, err)
	assert.Equal(t, domain.WebhookIgnored, res)
}

func TestPaymentWorkflow_WebhookFailureWithoutEventID(t *testing.T) {
	f := newFixture(t)
	vs := f.addVariant("100", "0", 10)
	o := f.checkout(line{vs, 1})
	intent, err := f.payments.CreatePaymentOrder(f.ctx, o.ID, domain.PaymentAdvance, domain.MethodUPI)
	require.NoError(t, err)

	ev := webhook("", domain.WebhookPaymentFailed, "pay_F", intent.GatewayOrderID)
	ev.Payload.Payment.Entity.ErrorDescription = "card declined"
	res, err := f.payments.HandleWebhook(f.ctx, ev)
	require.NoError(t, err)
	assert.Equal(t, domain.WebhookApplied, res)

	res, err = f.payments.HandleWebhook(f.ctx, ev)
	require.NoError(t, err)
	assert.Equal(t, domain.WebhookDuplicate, res)

	p, err := f.store.Payments().FindByID(f.ctx, intent.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentFailed, p.Status)
	assert.Equal(t, "card declined", p.FailureReason)
	assert.Len(t, f.events.ofType(domain.EventPaymentFailed), 1)
}

func TestReceipt(t *testing.T) {
	id := uuid.MustParse("3f2504e0-4f89-11d3-9a0c-0305e82c3301")
	assert.Equal(t, "3f2504e04f8911d39a0c0305e82c3301_adv", Receipt(id, domain.PaymentAdvance))
	assert.Equal(t, "3f2504e04f8911d39a0c0305e82c3301_ful", Receipt(id, domain.PaymentFull))
}

func webhook(eventID, event, paymentID, gatewayOrderID string) domain.GatewayWebhook {
	var ev domain.GatewayWebhook
	ev.EventID = eventID
	ev.Event = event
	ev.Payload.Payment.Entity.ID = paymentID
	ev.Payload.Payment.Entity.OrderID = gatewayOrderID
	return ev
}
