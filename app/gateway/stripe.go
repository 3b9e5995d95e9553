package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/weed35937/tele-bot-digital/app/entity"
)

type StripeConfig struct {
	SecretKey                 string
	WebhookSecret             string
	SuccessURL                string
	CancelURL                 string
	SignatureToleranceSeconds int64
	HTTPTimeout               time.Duration
}

// StripeGateway implements the CARD method using Stripe Checkout sessions.
// The session id is the external reference.
type StripeGateway struct {
	cfg    StripeConfig
	client *http.Client
}

func NewStripeGateway(cfg StripeConfig) *StripeGateway {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if cfg.SignatureToleranceSeconds <= 0 {
		cfg.SignatureToleranceSeconds = 300
	}

	return &StripeGateway{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

func (g *StripeGateway) Method() entity.PaymentMethod {
	return entity.MethodCard
}

func (g *StripeGateway) CreateCharge(ctx context.Context, input *ChargeInput) (*ChargeOutput, error) {
	if strings.TrimSpace(g.cfg.SecretKey) == "" {
		return nil, errors.New("stripe secret key is not configured")
	}

	values := url.Values{}
	values.Set("mode", "payment")
	values.Set("line_items[0][quantity]", "1")
	values.Set("line_items[0][price_data][currency]", strings.ToLower(input.Currency))
	values.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(input.AmountCents, 10))
	values.Set("line_items[0][price_data][product_data][name]", input.ProductName)
	if strings.TrimSpace(input.Description) != "" {
		values.Set("line_items[0][price_data][product_data][description]", input.Description)
	}
	values.Set("success_url", g.cfg.SuccessURL)
	values.Set("cancel_url", g.cfg.CancelURL)
	values.Set("client_reference_id", input.Reference)
	values.Set("metadata[reference]", input.Reference)
	values.Set("metadata[customer_ref]", input.CustomerRef)

	body, err := g.postForm(ctx, "/v1/checkout/sessions", values)
	if err != nil {
		return nil, err
	}

	var payload struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}

	sessionID := strings.TrimSpace(payload.ID)
	payerURL := strings.TrimSpace(payload.URL)
	if sessionID == "" || payerURL == "" {
		return nil, errors.New("stripe checkout session response is incomplete")
	}

	return &ChargeOutput{TransactionID: sessionID, PayerURL: payerURL}, nil
}

func (g *StripeGateway) GetChargeStatus(ctx context.Context, transactionID string) (entity.PaymentStatus, error) {
	if strings.TrimSpace(transactionID) == "" {
		return entity.StatusUnspecified, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://api.stripe.com/v1/checkout/sessions/"+url.PathEscape(transactionID), nil)
	if err != nil {
		return entity.StatusUnspecified, err
	}
	req.Header.Set("Authorization", "Bearer "+g.cfg.SecretKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return entity.StatusUnspecified, classifyTransportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return entity.StatusUnspecified, err
	}
	if resp.StatusCode >= 400 {
		return entity.StatusUnspecified, fmt.Errorf("stripe get checkout session failed: status=%d body=%s", resp.StatusCode, string(body))
	}

	var payload struct {
		Status        string `json:"status"`
		PaymentStatus string `json:"payment_status"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return entity.StatusUnspecified, err
	}

	if payload.Status == "expired" {
		return entity.StatusFailed, nil
	}
	switch payload.PaymentStatus {
	case "paid", "no_payment_required":
		return entity.StatusCompleted, nil
	case "unpaid":
		return entity.StatusPending, nil
	default:
		return entity.StatusUnspecified, nil
	}
}

func (g *StripeGateway) VerifyAndParseEvent(_ context.Context, payload []byte, signature string) (*CompletionEvent, error) {
	if strings.TrimSpace(g.cfg.WebhookSecret) == "" {
		return nil, errors.New("stripe webhook secret is not configured")
	}
	if !verifyStripeSignature(payload, signature, g.cfg.WebhookSecret, g.cfg.SignatureToleranceSeconds) {
		return nil, errors.New("invalid stripe signature")
	}

	var event struct {
		ID   string `json:"id"`
		Type string `json:"type"`
		Data struct {
			Object struct {
				ID string `json:"id"`
			} `json:"object"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, err
	}

	result := &CompletionEvent{
		TransactionID: strings.TrimSpace(event.Data.Object.ID),
	}
	if eventID := strings.TrimSpace(event.ID); eventID != "" {
		result.ProviderEventID = &eventID
	}

	switch event.Type {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
		result.Status = entity.StatusCompleted
	case "checkout.session.async_payment_failed", "checkout.session.expired":
		result.Status = entity.StatusFailed
	default:
		result.Status = entity.StatusUnspecified
	}

	return result, nil
}

func (g *StripeGateway) postForm(ctx context.Context, path string, values url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.stripe.com"+path, strings.NewReader(values.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+g.cfg.SecretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Idempotency-Key", "charge-"+values.Get("client_reference_id"))

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("stripe request failed: path=%s status=%d body=%s", path, resp.StatusCode, string(body))
	}

	return body, nil
}

// verifyStripeSignature checks the Stripe-Signature header format
// "t=<unix>,v1=<hex hmac>" against an HMAC-SHA256 of "<t>.<payload>".
func verifyStripeSignature(payload []byte, signatureHeader string, webhookSecret string, toleranceSeconds int64) bool {
	signatureHeader = strings.TrimSpace(signatureHeader)
	if signatureHeader == "" || strings.TrimSpace(webhookSecret) == "" {
		return false
	}

	var ts string
	v1 := make([]string, 0, 1)
	for _, part := range strings.Split(signatureHeader, ",") {
		part = strings.TrimSpace(part)
		if strings.HasPrefix(part, "t=") {
			ts = strings.TrimPrefix(part, "t=")
		}
		if strings.HasPrefix(part, "v1=") {
			v1 = append(v1, strings.TrimPrefix(part, "v1="))
		}
	}
	if ts == "" || len(v1) == 0 {
		return false
	}

	tsUnix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return false
	}
	now := time.Now().Unix()
	if now-tsUnix > toleranceSeconds || tsUnix-now > toleranceSeconds {
		return false
	}

	mac := hmac.New(sha256.New, []byte(webhookSecret))
	_, _ = mac.Write([]byte(ts + "." + string(payload)))
	expected := mac.Sum(nil)

	for _, sig := range v1 {
		candidate, err := hex.DecodeString(sig)
		if err != nil {
			continue
		}
		if hmac.Equal(candidate, expected) {
			return true
		}
	}

	return false
}
