package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/phenrril/ordercore/internal/domain"
	"github.com/phenrril/ordercore/internal/usecase"
)

const maxBodyBytes = 1 << 20

// WebhookVerifier authenticates raw gateway notifications.
type WebhookVerifier interface {
	VerifyWebhook(body []byte, signature string) bool
}

type Deps struct {
	Carts     *usecase.CartManager
	Orders    *usecase.OrderWorkflow
	Payments  *usecase.PaymentWorkflow
	Materials *usecase.MaterialPlanner
	Invoices  *usecase.InvoiceGenerator
	Webhooks  WebhookVerifier

	TokenSecret []byte
	Now         func() time.Time
}

type Server struct {
	router      chi.Router
	carts       *usecase.CartManager
	orders      *usecase.OrderWorkflow
	payments    *usecase.PaymentWorkflow
	materials   *usecase.MaterialPlanner
	invoices    *usecase.InvoiceGenerator
	webhooks    WebhookVerifier
	tokenSecret []byte
	clock       func() time.Time
}

func New(d Deps) http.Handler {
	s := &Server{
		router:      chi.NewRouter(),
		carts:       d.Carts,
		orders:      d.Orders,
		payments:    d.Payments,
		materials:   d.Materials,
		invoices:    d.Invoices,
		webhooks:    d.Webhooks,
		tokenSecret: d.TokenSecret,
		clock:       d.Now,
	}
	s.routes()
	return Chain(s.router,
		Tracing,
		Recovery,
		Logging,
		RequestID,
	)
}

func (s *Server) now() time.Time {
	if s.clock == nil {
		return time.Now()
	}
	return s.clock()
}

func (s *Server) routes() {
	r := s.router
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Post("/webhooks/razorpay", s.webhookRazorpay)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.authenticate)

		r.Get("/cart", s.getCart)
		r.Delete("/cart", s.clearCart)
		r.Post("/cart/items", s.addCartItem)
		r.Patch("/cart/items/{id}", s.updateCartItem)
		r.Delete("/cart/items/{id}", s.removeCartItem)

		r.Get("/orders", s.listOrders)
		r.Post("/orders", s.createOrder)
		r.Route("/orders/{id}", func(r chi.Router) {
			r.Get("/", s.getOrder)
			r.Get("/total", s.orderTotal)
			r.Post("/cancel", s.cancelOrder)
			r.With(s.requireAdmin).Patch("/status", s.updateOrderStatus)
			r.Get("/payments", s.listPayments)
			r.Get("/payments/completion", s.paymentCompletion)
			r.Get("/materials", s.orderMaterials)
			r.With(s.requireAdmin).Post("/materials/consume", s.consumeMaterials)
			r.Post("/invoice", s.generateInvoice)
			r.Get("/invoice", s.getInvoice)
			r.Get("/invoice.xlsx", s.exportInvoice)
		})

		r.Post("/payments", s.createPayment)
		r.Post("/payments/verify", s.verifyPayment)
		r.Post("/payments/retry", s.retryPayment)
		r.Post("/payments/{id}/failure", s.paymentFailure)

		r.With(s.requireAdmin).Get("/materials/alerts", s.reorderAlerts)
	})
}

func actorOf(r *http.Request) domain.Actor {
	a, _ := ActorFrom(r.Context())
	return a
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		badRequest(w, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		badRequest(w, fmt.Sprintf("invalid %s", name))
		return uuid.Nil, false
	}
	return id, true
}

// loadOrder resolves {id} to an order the actor may see. Other users'
// orders answer 404 so their ids cannot be probed.
func (s *Server) loadOrder(w http.ResponseWriter, r *http.Request) (*domain.Order, bool) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return nil, false
	}
	return s.authorizeOrder(w, r, id)
}

func (s *Server) authorizeOrder(w http.ResponseWriter, r *http.Request, id uuid.UUID) (*domain.Order, bool) {
	o, err := s.orders.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return nil, false
	}
	if a := actorOf(r); !a.Owns(o.UserID) && !a.IsAdmin() {
		writeError(w, r, fmt.Errorf("order %s: %w", id, domain.ErrNotFound))
		return nil, false
	}
	return o, true
}

// cart

type cartItemRequest struct {
	VariantSizeID uuid.UUID `json:"variant_size_id"`
	Quantity      int       `json:"quantity"`
}

func (s *Server) getCart(w http.ResponseWriter, r *http.Request) {
	sum, err := s.carts.Summary(r.Context(), actorOf(r).UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) clearCart(w http.ResponseWriter, r *http.Request) {
	if err := s.carts.Clear(r.Context(), actorOf(r).UserID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) addCartItem(w http.ResponseWriter, r *http.Request) {
	var req cartItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.VariantSizeID == uuid.Nil {
		badRequest(w, "variant_size_id is required")
		return
	}
	item, created, err := s.carts.AddItem(r.Context(), actorOf(r).UserID, req.VariantSizeID, req.Quantity)
	if err != nil {
		writeError(w, r, err)
		return
	}
	code := http.StatusOK
	if created {
		code = http.StatusCreated
	}
	writeJSON(w, code, item)
}

func (s *Server) updateCartItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Quantity int `json:"quantity"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	item, err := s.carts.UpdateItem(r.Context(), id, req.Quantity, actorOf(r).UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) removeCartItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	if err := s.carts.RemoveItem(r.Context(), id, actorOf(r).UserID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// orders

type createOrderRequest struct {
	CartID    uuid.UUID `json:"cart_id"`
	AddressID uuid.UUID `json:"address_id"`
}

func (s *Server) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.AddressID == uuid.Nil {
		badRequest(w, "address_id is required")
		return
	}
	userID := actorOf(r).UserID
	if req.CartID == uuid.Nil {
		cart, err := s.carts.GetActive(r.Context(), userID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		req.CartID = cart.ID
	}
	o, err := s.orders.CreateFromCart(r.Context(), userID, req.CartID, req.AddressID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

func (s *Server) listOrders(w http.ResponseWriter, r *http.Request) {
	list, err := s.orders.ListForUser(r.Context(), actorOf(r).UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if list == nil {
		list = []domain.Order{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) getOrder(w http.ResponseWriter, r *http.Request) {
	o, ok := s.loadOrder(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) orderTotal(w http.ResponseWriter, r *http.Request) {
	o, ok := s.loadOrder(w, r)
	if !ok {
		return
	}
	t, err := s.orders.Total(r.Context(), o.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) cancelOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}
	o, err := s.orders.Cancel(r.Context(), id, actorOf(r), req.Reason)
	if errors.Is(err, domain.ErrForbidden) {
		err = fmt.Errorf("order %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Status domain.OrderStatus `json:"status"`
		Notes  string             `json:"notes"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	o, err := s.orders.UpdateStatus(r.Context(), id, req.Status, actorOf(r), req.Notes)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// payments

type paymentRequest struct {
	OrderID uuid.UUID            `json:"order_id"`
	Type    domain.PaymentType   `json:"type"`
	Method  domain.PaymentMethod `json:"method"`
}

func (s *Server) decodePaymentRequest(w http.ResponseWriter, r *http.Request) (paymentRequest, bool) {
	var req paymentRequest
	if !decodeJSON(w, r, &req) {
		return req, false
	}
	if req.OrderID == uuid.Nil {
		badRequest(w, "order_id is required")
		return req, false
	}
	if _, ok := s.authorizeOrder(w, r, req.OrderID); !ok {
		return req, false
	}
	return req, true
}

func (s *Server) createPayment(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodePaymentRequest(w, r)
	if !ok {
		return
	}
	intent, err := s.payments.CreatePaymentOrder(r.Context(), req.OrderID, req.Type, req.Method)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, intent)
}

func (s *Server) retryPayment(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodePaymentRequest(w, r)
	if !ok {
		return
	}
	intent, err := s.payments.Retry(r.Context(), req.OrderID, req.Type, req.Method)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, intent)
}

// loadPayment resolves a payment the actor may act on.
func (s *Server) loadPayment(w http.ResponseWriter, r *http.Request, id uuid.UUID) (*domain.Payment, bool) {
	p, err := s.payments.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return nil, false
	}
	if _, ok := s.authorizeOrder(w, r, p.OrderID); !ok {
		return nil, false
	}
	return p, true
}

type verifyRequest struct {
	PaymentID         uuid.UUID `json:"payment_id"`
	RazorpayOrderID   string    `json:"razorpay_order_id,omitempty"`
	RazorpayPaymentID string    `json:"razorpay_payment_id"`
	RazorpaySignature string    `json:"razorpay_signature"`
}

func (s *Server) verifyPayment(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.PaymentID == uuid.Nil || req.RazorpayPaymentID == "" || req.RazorpaySignature == "" {
		badRequest(w, "payment_id, razorpay_payment_id and razorpay_signature are required")
		return
	}
	if _, ok := s.loadPayment(w, r, req.PaymentID); !ok {
		return
	}
	p, err := s.payments.ProcessSuccess(r.Context(), req.PaymentID, req.RazorpayPaymentID, req.RazorpaySignature)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) paymentFailure(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if _, ok := s.loadPayment(w, r, id); !ok {
		return
	}
	p, err := s.payments.HandleFailure(r.Context(), id, req.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) listPayments(w http.ResponseWriter, r *http.Request) {
	o, ok := s.loadOrder(w, r)
	if !ok {
		return
	}
	list, err := s.payments.ListForOrder(r.Context(), o.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if list == nil {
		list = []domain.Payment{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) paymentCompletion(w http.ResponseWriter, r *http.Request) {
	o, ok := s.loadOrder(w, r)
	if !ok {
		return
	}
	c, err := s.payments.CheckCompletion(r.Context(), o.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// webhookRazorpay authenticates the raw body before decoding it. Any event
// that was processed, or deliberately skipped, is acknowledged with 200.
func (s *Server) webhookRazorpay(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		badRequest(w, "unreadable body")
		return
	}
	if s.webhooks == nil || !s.webhooks.VerifyWebhook(body, r.Header.Get("X-Razorpay-Signature")) {
		log.Warn().Str("request_id", requestIDFrom(r.Context())).Msg("webhook signature rejected")
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "invalid webhook signature", Code: "signature_invalid"})
		return
	}
	var ev domain.GatewayWebhook
	if err := json.Unmarshal(body, &ev); err != nil {
		badRequest(w, "invalid webhook payload")
		return
	}
	ev.EventID = r.Header.Get("X-Razorpay-Event-Id")
	res, err := s.payments.HandleWebhook(r.Context(), ev)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(res)})
}

// materials

type materialsResponse struct {
	OrderID      uuid.UUID                    `json:"order_id"`
	Feasible     bool                         `json:"feasible"`
	Requirements []domain.MaterialRequirement `json:"requirements"`
}

func (s *Server) orderMaterials(w http.ResponseWriter, r *http.Request) {
	o, ok := s.loadOrder(w, r)
	if !ok {
		return
	}
	reqs, err := s.materials.CalculateRequirements(r.Context(), o.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	feasible := true
	for _, req := range reqs {
		if req.Required.GreaterThan(req.Available) {
			feasible = false
			break
		}
	}
	writeJSON(w, http.StatusOK, materialsResponse{OrderID: o.ID, Feasible: feasible, Requirements: reqs})
}

func (s *Server) consumeMaterials(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	reqs, err := s.materials.ConsumeMaterials(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, materialsResponse{OrderID: id, Feasible: true, Requirements: reqs})
}

func (s *Server) reorderAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := s.materials.ReorderAlerts(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(alerts), "alerts": alerts})
}

// invoices

func (s *Server) generateInvoice(w http.ResponseWriter, r *http.Request) {
	o, ok := s.loadOrder(w, r)
	if !ok {
		return
	}
	inv, err := s.invoices.Generate(r.Context(), o.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (s *Server) getInvoice(w http.ResponseWriter, r *http.Request) {
	o, ok := s.loadOrder(w, r)
	if !ok {
		return
	}
	inv, err := s.invoices.Get(r.Context(), o.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (s *Server) exportInvoice(w http.ResponseWriter, r *http.Request) {
	o, ok := s.loadOrder(w, r)
	if !ok {
		return
	}
	inv, err := s.invoices.Get(r.Context(), o.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	data, err := renderInvoiceXLSX(inv, o)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.xlsx", inv.Number))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
