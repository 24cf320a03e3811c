package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/OshadiJayananda/lms-backend/internal/platform/apperr"
	"github.com/OshadiJayananda/lms-backend/internal/platform/db"
)

// CheckoutParams describes the hosted payment page to create.
type CheckoutParams struct {
	UserID      int64
	BorrowID    int64
	Amount      decimal.Decimal
	Currency    string
	Description string
}

// CheckoutSession is the gateway's hosted page the member is redirected to.
type CheckoutSession struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	Reference string `json:"client_reference_id"`
}

// WebhookEvent is the gateway's settlement callback after the member pays.
type WebhookEvent struct {
	TransactionID string          `json:"transaction_id"`
	UserID        int64           `json:"user_id,string"`
	BorrowID      int64           `json:"borrow_id,string"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Status        string          `json:"status"`
}

type Gateway interface {
	CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*CheckoutSession, error)
	VerifyWebhook(payload []byte, signatureHeader string) (*WebhookEvent, error)
}

// HTTPGateway talks to the payment provider's REST API and verifies its
// signed webhooks.
type HTTPGateway struct {
	cfg     db.GatewayConfig
	baseURL string
	client  *http.Client
	now     func() time.Time
}

const defaultGatewayURL = "https://api.payment-gateway.example/v1"

// Webhook signatures older than this are replays.
const signatureTolerance = 5 * time.Minute

func NewHTTPGateway(cfg db.GatewayConfig) *HTTPGateway {
	return &HTTPGateway{
		cfg:     cfg,
		baseURL: defaultGatewayURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		now:     time.Now,
	}
}

// CreateCheckoutSession asks the provider for a hosted checkout page. The
// borrow and user ids travel in the session metadata so the webhook can be
// matched back to the loan.
func (g *HTTPGateway) CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*CheckoutSession, error) {
	body := map[string]any{
		"client_reference_id": uuid.NewString(),
		"amount":              params.Amount.StringFixed(2),
		"currency":            params.Currency,
		"description":         params.Description,
		"success_url":         g.cfg.SuccessURL,
		"cancel_url":          g.cfg.CancelURL,
		"metadata": map[string]string{
			"user_id":   strconv.FormatInt(params.UserID, 10),
			"borrow_id": strconv.FormatInt(params.BorrowID, 10),
		},
	}
	buf, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/checkout/sessions", bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+g.cfg.SecretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, apperr.ErrInternal(fmt.Sprintf("gateway returned %d: %s", resp.StatusCode, raw))
	}

	var session CheckoutSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// VerifyWebhook authenticates a webhook delivery. The header carries
// "t=<unix>,v1=<hex hmac>"; the hmac covers "<t>.<payload>" keyed with the
// webhook secret.
func (g *HTTPGateway) VerifyWebhook(payload []byte, signatureHeader string) (*WebhookEvent, error) {
	ts, sig, err := parseSignatureHeader(signatureHeader)
	if err != nil {
		return nil, err
	}

	sent := time.Unix(ts, 0)
	if g.now().Sub(sent) > signatureTolerance {
		return nil, apperr.ErrUnauthorized("webhook signature expired")
	}

	mac := hmac.New(sha256.New, []byte(g.cfg.WebhookSecret))
	mac.Write([]byte(strconv.FormatInt(ts, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := mac.Sum(nil)

	got, err := hex.DecodeString(sig)
	if err != nil || !hmac.Equal(expected, got) {
		return nil, apperr.ErrUnauthorized("invalid webhook signature")
	}

	var event WebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, apperr.ErrInvalid("malformed webhook payload")
	}
	if event.TransactionID == "" {
		return nil, apperr.ErrInvalid("webhook payload missing transaction_id")
	}
	return &event, nil
}

func parseSignatureHeader(header string) (ts int64, sig string, err error) {
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			ts, err = strconv.ParseInt(v, 10, 64)
			if err != nil {
				return 0, "", apperr.ErrUnauthorized("malformed signature timestamp")
			}
		case "v1":
			sig = v
		}
	}
	if ts == 0 || sig == "" {
		return 0, "", apperr.ErrUnauthorized("malformed signature header")
	}
	return ts, sig, nil
}
