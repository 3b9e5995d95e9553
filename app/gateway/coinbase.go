package gateway

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
	"net/url"
	"strings"
	"time"

	"github.com/weed35937/tele-bot-digital/app/entity"
)

type CoinbaseConfig struct {
	APIKey        string
	WebhookSecret string
	HTTPTimeout   time.Duration
}

// CoinbaseGateway implements the CRYPTO method using Coinbase Commerce
// charges. The charge code is the external reference.
type CoinbaseGateway struct {
	cfg    CoinbaseConfig
	client *http.Client
}

func NewCoinbaseGateway(cfg CoinbaseConfig) *CoinbaseGateway {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &CoinbaseGateway{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

func (g *CoinbaseGateway) Method() entity.PaymentMethod {
	return entity.MethodCrypto
}

func (g *CoinbaseGateway) CreateCharge(ctx context.Context, input *ChargeInput) (*ChargeOutput, error) {
	if strings.TrimSpace(g.cfg.APIKey) == "" {
		return nil, errors.New("coinbase api key is not configured")
	}

	payload := map[string]interface{}{
		"name":         input.ProductName,
		"description":  input.Description,
		"pricing_type": "fixed_price",
		"local_price": map[string]string{
			"amount":   formatMinorUnits(input.AmountCents),
			"currency": strings.ToUpper(input.Currency),
		},
		"metadata": map[string]string{
			"reference":    input.Reference,
			"customer_ref": input.CustomerRef,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	respBody, err := g.doJSON(ctx, http.MethodPost, "/charges", body)
	if err != nil {
		return nil, err
	}

	var result struct {
		Data struct {
			Code      string `json:"code"`
			HostedURL string `json:"hosted_url"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, err
	}

	code := strings.TrimSpace(result.Data.Code)
	hostedURL := strings.TrimSpace(result.Data.HostedURL)
	if code == "" || hostedURL == "" {
		return nil, errors.New("coinbase charge response is incomplete")
	}

	return &ChargeOutput{TransactionID: code, PayerURL: hostedURL}, nil
}

func (g *CoinbaseGateway) GetChargeStatus(ctx context.Context, transactionID string) (entity.PaymentStatus, error) {
	respBody, err := g.doJSON(ctx, http.MethodGet, "/charges/"+url.PathEscape(transactionID), nil)
	if err != nil {
		return entity.StatusUnspecified, err
	}

	var result struct {
		Data struct {
			Timeline []struct {
				Status string `json:"status"`
			} `json:"timeline"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return entity.StatusUnspecified, err
	}
	if len(result.Data.Timeline) == 0 {
		return entity.StatusUnspecified, nil
	}

	switch result.Data.Timeline[len(result.Data.Timeline)-1].Status {
	case "COMPLETED", "CONFIRMED", "RESOLVED":
		return entity.StatusCompleted, nil
	case "EXPIRED", "CANCELED":
		return entity.StatusFailed, nil
	case "NEW", "PENDING", "UNRESOLVED":
		return entity.StatusPending, nil
	default:
		return entity.StatusUnspecified, nil
	}
}

func (g *CoinbaseGateway) VerifyAndParseEvent(_ context.Context, payload []byte, signature string) (*CompletionEvent, error) {
	if strings.TrimSpace(g.cfg.WebhookSecret) == "" {
		return nil, errors.New("coinbase webhook secret is not configured")
	}
	if !verifyCoinbaseSignature(payload, signature, g.cfg.WebhookSecret) {
		return nil, errors.New("invalid coinbase signature")
	}

	var event struct {
		Event struct {
			ID   string `json:"id"`
			Type string `json:"type"`
			Data struct {
				Code string `json:"code"`
			} `json:"data"`
		} `json:"event"`
	}
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, err
	}

	result := &CompletionEvent{
		TransactionID: strings.TrimSpace(event.Event.Data.Code),
	}
	if eventID := strings.TrimSpace(event.Event.ID); eventID != "" {
		result.ProviderEventID = &eventID
	}

	switch event.Event.Type {
	case "charge:confirmed", "charge:resolved":
		result.Status = entity.StatusCompleted
	case "charge:failed":
		result.Status = entity.StatusFailed
	default:
		result.Status = entity.StatusUnspecified
	}

	return result, nil
}

func (g *CoinbaseGateway) doJSON(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, "https://api.commerce.coinbase.com"+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-CC-Api-Key", g.cfg.APIKey)
	req.Header.Set("X-CC-Version", "2018-03-22")
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
		return nil, fmt.Errorf("coinbase request failed: path=%s status=%d body=%s", path, resp.StatusCode, string(respBody))
	}

	return respBody, nil
}

// verifyCoinbaseSignature checks X-CC-Webhook-Signature, a hex HMAC-SHA256 of
// the raw body.
func verifyCoinbaseSignature(payload []byte, signature string, webhookSecret string) bool {
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return false
	}

	candidate, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(webhookSecret))
	_, _ = mac.Write(payload)

	return hmac.Equal(candidate, mac.Sum(nil))
}
