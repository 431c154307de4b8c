package razorpay

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/phenrril/ordercore/internal/domain"
)

const DefaultBaseURL = "https://api.razorpay.com"

type Config struct {
	KeyID         string
	KeySecret     string
	WebhookSecret string
	BaseURL       string
	Timeout       time.Duration
}

type Gateway struct {
	cfg        Config
	httpClient *http.Client
}

func NewGateway(cfg Config) *Gateway {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Gateway{cfg: cfg, httpClient: &http.Client{Timeout: cfg.Timeout}}
}

type orderReq struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

type orderResp struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type errorResp struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// CreateOrder opens a gateway order for the amount in minor units.
// Failures come back as *domain.GatewayError.
func (g *Gateway) CreateOrder(ctx context.Context, req domain.GatewayOrderRequest) (*domain.GatewayIntent, error) {
	if g.cfg.KeyID == "" || g.cfg.KeySecret == "" {
		return nil, &domain.GatewayError{Err: errors.New("razorpay credentials missing (RAZORPAY_KEY_ID, RAZORPAY_KEY_SECRET)")}
	}
	buf, err := json.Marshal(orderReq{
		Amount:   req.AmountMinor,
		Currency: req.Currency,
		Receipt:  req.Receipt,
		Notes:    map[string]string{"order_id": req.OrderID.String(), "payment_type": req.Type.String()},
	})
	if err != nil {
		return nil, &domain.GatewayError{Err: fmt.Errorf("encode order: %w", err)}
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL+"/v1/orders", bytes.NewReader(buf))
	if err != nil {
		return nil, &domain.GatewayError{Err: err}
	}
	httpReq.SetBasicAuth(g.cfg.KeyID, g.cfg.KeySecret)
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := g.httpClient.Do(httpReq)
	if err != nil {
		return nil, &domain.GatewayError{Err: fmt.Errorf("razorpay unreachable: %w", err)}
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		var er errorResp
		if json.Unmarshal(body, &er) == nil && er.Error.Description != "" {
			return nil, &domain.GatewayError{Status: res.StatusCode, Err: fmt.Errorf("%s: %s", er.Error.Code, er.Error.Description)}
		}
		return nil, &domain.GatewayError{Status: res.StatusCode, Err: fmt.Errorf("razorpay order status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))}
	}
	var or orderResp
	if err := json.NewDecoder(res.Body).Decode(&or); err != nil {
		return nil, &domain.GatewayError{Status: res.StatusCode, Err: fmt.Errorf("decode order: %w", err)}
	}
	if or.ID == "" {
		return nil, &domain.GatewayError{Status: res.StatusCode, Err: errors.New("razorpay response without order id")}
	}
	return &domain.GatewayIntent{ID: or.ID, AmountMinor: or.Amount, Currency: or.Currency}, nil
}

func (g *Gateway) KeyID() string { return g.cfg.KeyID }

func sign(secret string, payload []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

// SignPayment is the signature the checkout hands back for a capture.
func (g *Gateway) SignPayment(gatewayOrderID, gatewayPaymentID string) string {
	return sign(g.cfg.KeySecret, []byte(gatewayOrderID+"|"+gatewayPaymentID))
}

func (g *Gateway) VerifyPaymentSignature(gatewayOrderID, gatewayPaymentID, signature string) bool {
	if g.cfg.KeySecret == "" || signature == "" {
		return false
	}
	return hmac.Equal([]byte(g.SignPayment(gatewayOrderID, gatewayPaymentID)), []byte(signature))
}

// SignWebhook signs a raw webhook body with the webhook secret.
func (g *Gateway) SignWebhook(body []byte) string {
	return sign(g.cfg.WebhookSecret, body)
}

// VerifyWebhook checks the X-Razorpay-Signature of a raw webhook body.
func (g *Gateway) VerifyWebhook(body []byte, signature string) bool {
	if g.cfg.WebhookSecret == "" || signature == "" {
		return false
	}
	return hmac.Equal([]byte(g.SignWebhook(body)), []byte(signature))
}
