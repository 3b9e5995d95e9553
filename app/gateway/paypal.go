package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/weed35937/tele-bot-digital/app/entity"
)

type PayPalConfig struct {
	BaseAPIURL   string
	ClientID     string
	ClientSecret string
	WebhookID    string
	ReturnURL    string
	CancelURL    string
	HTTPTimeout  time.Duration
}

// PayPalGateway implements the PAYPAL method using the v2 checkout orders
// API. The PayPal order id is the external reference.
type PayPalGateway struct {
	cfg    PayPalConfig
	client *http.Client
}

func NewPayPalGateway(cfg PayPalConfig) *PayPalGateway {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if strings.TrimSpace(cfg.BaseAPIURL) == "" {
		cfg.BaseAPIURL = "https://api-m.sandbox.paypal.com"
	}
	cfg.BaseAPIURL = strings.TrimRight(cfg.BaseAPIURL, "/")

	return &PayPalGateway{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

func (g *PayPalGateway) Method() entity.PaymentMethod {
	return entity.MethodPayPal
}

func (g *PayPalGateway) CreateCharge(ctx context.Context, input *ChargeInput) (*ChargeOutput, error) {
	accessToken, err := g.getAccessToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("get paypal access token: %w", err)
	}

	payload := map[string]interface{}{
		"intent": "CAPTURE",
		"purchase_units": []map[string]interface{}{
			{
				"reference_id": input.Reference,
				"description":  input.ProductName,
				"custom_id":    input.CustomerRef,
				"amount": map[string]string{
					"currency_code": strings.ToUpper(input.Currency),
					"value":         formatMinorUnits(input.AmountCents),
				},
			},
		},
		"application_context": map[string]string{
			"return_url": g.cfg.ReturnURL,
			"cancel_url": g.cfg.CancelURL,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	respBody, err := g.doJSON(ctx, http.MethodPost, "/v2/checkout/orders", accessToken, body)
	if err != nil {
		return nil, err
	}

	var result struct {
		ID    string `json:"id"`
		Links []struct {
			Rel  string `json:"rel"`
			Href string `json:"href"`
		} `json:"links"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("decode paypal response: %w", err)
	}

	orderID := strings.TrimSpace(result.ID)
	if orderID == "" {
		return nil, errors.New("paypal order id missing")
	}

	approveURL := ""
	for _, link := range result.Links {
		if link.Rel == "approve" || link.Rel == "approval_url" {
			approveURL = link.Href
			break
		}
	}
	if approveURL == "" {
		return nil, errors.New("paypal approve link missing")
	}

	return &ChargeOutput{TransactionID: orderID, PayerURL: approveURL}, nil
}

func (g *PayPalGateway) GetChargeStatus(ctx context.Context, transactionID string) (entity.PaymentStatus, error) {
	accessToken, err := g.getAccessToken(ctx)
	if err != nil {
		return entity.StatusUnspecified, fmt.Errorf("get paypal access token: %w", err)
	}

	respBody, err := g.doJSON(ctx, http.MethodGet, "/v2/checkout/orders/"+url.PathEscape(transactionID), accessToken, nil)
	if err != nil {
		return entity.StatusUnspecified, err
	}

	var result struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return entity.StatusUnspecified, err
	}

	switch result.Status {
	case "COMPLETED":
		return entity.StatusCompleted, nil
	case "APPROVED":
		// The payer approved but the CAPTURE-intent order is not captured
		// yet; that step is ours.
		return g.captureOrder(ctx, accessToken, transactionID)
	case "VOIDED":
		return entity.StatusFailed, nil
	case "CREATED", "SAVED", "PAYER_ACTION_REQUIRED":
		return entity.StatusPending, nil
	default:
		return entity.StatusUnspecified, nil
	}
}

// captureOrder settles an approved checkout order. A retry against an order
// that was captured in the meantime reports COMPLETED rather than an error.
func (g *PayPalGateway) captureOrder(ctx context.Context, accessToken, orderID string) (entity.PaymentStatus, error) {
	respBody, err := g.doJSON(ctx, http.MethodPost, "/v2/checkout/orders/"+url.PathEscape(orderID)+"/capture", accessToken, []byte(`{}`))
	if err != nil {
		if strings.Contains(err.Error(), "ORDER_ALREADY_CAPTURED") {
			return entity.StatusCompleted, nil
		}
		return entity.StatusUnspecified, fmt.Errorf("capture paypal order: %w", err)
	}

	var result struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return entity.StatusUnspecified, err
	}

	switch result.Status {
	case "COMPLETED":
		return entity.StatusCompleted, nil
	case "DECLINED", "VOIDED":
		return entity.StatusFailed, nil
	default:
		return entity.StatusPending, nil
	}
}

// paypalTransmission carries the webhook transmission headers the intake
// endpoint receives; they travel as a JSON blob in the signature argument.
type paypalTransmission struct {
	TransmissionID   string `json:"transmission_id"`
	TransmissionTime string `json:"transmission_time"`
	TransmissionSig  string `json:"transmission_sig"`
	CertURL          string `json:"cert_url"`
	AuthAlgo         string `json:"auth_algo"`
}

func (g *PayPalGateway) VerifyAndParseEvent(ctx context.Context, payload []byte, signature string) (*CompletionEvent, error) {
	if strings.TrimSpace(g.cfg.WebhookID) == "" {
		return nil, errors.New("paypal webhook id is not configured")
	}

	var transmission paypalTransmission
	if err := json.Unmarshal([]byte(signature), &transmission); err != nil {
		return nil, fmt.Errorf("decode paypal transmission headers: %w", err)
	}

	ok, err := g.verifyWebhookSignature(ctx, payload, transmission)
	if err != nil {
		return nil, fmt.Errorf("verify webhook signature: %w", err)
	}
	if !ok {
		return nil, errors.New("paypal webhook verification failed")
	}

	var event struct {
		ID        string `json:"id"`
		EventType string `json:"event_type"`
		Resource  struct {
			ID                string `json:"id"`
			SupplementaryData struct {
				RelatedIDs struct {
					OrderID string `json:"order_id"`
				} `json:"related_ids"`
			} `json:"supplementary_data"`
		} `json:"resource"`
	}
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("decode webhook payload: %w", err)
	}

	// Capture events reference the checkout order through related ids;
	// approval and order events carry it directly.
	transactionID := strings.TrimSpace(event.Resource.SupplementaryData.RelatedIDs.OrderID)
	if transactionID == "" {
		transactionID = strings.TrimSpace(event.Resource.ID)
	}

	result := &CompletionEvent{TransactionID: transactionID}
	if eventID := strings.TrimSpace(event.ID); eventID != "" {
		result.ProviderEventID = &eventID
	}

	switch event.EventType {
	case "PAYMENT.CAPTURE.COMPLETED", "CHECKOUT.ORDER.COMPLETED":
		result.Status = entity.StatusCompleted
	case "CHECKOUT.ORDER.APPROVED":
		// Approval is not settlement: capture now so the order can reach a
		// terminal status. On failure the provider retries the webhook and
		// the retry re-attempts the capture.
		accessToken, err := g.getAccessToken(ctx)
		if err != nil {
			return nil, fmt.Errorf("get paypal access token: %w", err)
		}
		status, err := g.captureOrder(ctx, accessToken, transactionID)
		if err != nil {
			return nil, err
		}
		result.Status = status
	case "PAYMENT.CAPTURE.DENIED", "PAYMENT.CAPTURE.DECLINED":
		result.Status = entity.StatusFailed
	default:
		result.Status = entity.StatusUnspecified
	}

	return result, nil
}

func (g *PayPalGateway) verifyWebhookSignature(ctx context.Context, payload []byte, transmission paypalTransmission) (bool, error) {
	accessToken, err := g.getAccessToken(ctx)
	if err != nil {
		return false, err
	}

	body, err := json.Marshal(map[string]interface{}{
		"transmission_id":   transmission.TransmissionID,
		"transmission_time": transmission.TransmissionTime,
		"transmission_sig":  transmission.TransmissionSig,
		"cert_url":          transmission.CertURL,
		"auth_algo":         transmission.AuthAlgo,
		"webhook_id":        g.cfg.WebhookID,
		"webhook_event":     json.RawMessage(payload),
	})
	if err != nil {
		return false, err
	}

	respBody, err := g.doJSON(ctx, http.MethodPost, "/v1/notifications/verify-webhook-signature", accessToken, body)
	if err != nil {
		return false, err
	}

	var result struct {
		VerificationStatus string `json:"verification_status"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return false, err
	}

	return result.VerificationStatus == "SUCCESS", nil
}

func (g *PayPalGateway) getAccessToken(ctx context.Context) (string, error) {
	auth := base64.StdEncoding.EncodeToString([]byte(g.cfg.ClientID + ":" + g.cfg.ClientSecret))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseAPIURL+"/v1/oauth2/token",
		strings.NewReader("grant_type=client_credentials"))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Basic "+auth)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", classifyTransportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("paypal token request failed: status=%d body=%s", resp.StatusCode, string(body))
	}

	var result struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", err
	}
	if result.AccessToken == "" {
		return "", errors.New("paypal access token missing")
	}

	return result.AccessToken, nil
}

func (g *PayPalGateway) doJSON(ctx context.Context, method, path, accessToken string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.cfg.BaseAPIURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("paypal request failed: path=%s status=%d body=%s", path, resp.StatusCode, string(respBody))
	}

	return respBody, nil
}

// formatMinorUnits renders cents as the "12.34" decimal string PayPal expects.
func formatMinorUnits(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
