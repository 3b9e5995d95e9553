package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/weed35937/tele-bot-digital/app/entity"
)

func signCoinbasePayload(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestCoinbaseVerifyAndParseEvent(t *testing.T) {
	gw := NewCoinbaseGateway(CoinbaseConfig{APIKey: "api_test", WebhookSecret: "shared_secret"})

	payload := []byte(`{"event":{"id":"evt_9","type":"charge:confirmed","data":{"code":"CHRG123"}}}`)
	signature := signCoinbasePayload(payload, "shared_secret")

	event, err := gw.VerifyAndParseEvent(context.Background(), payload, signature)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if event.TransactionID != "CHRG123" {
		t.Fatalf("unexpected transaction id: %q", event.TransactionID)
	}
	if event.Status != entity.StatusCompleted {
		t.Fatalf("expected completed status, got %s", event.Status)
	}
}

func TestCoinbaseVerifyAndParseEventBadSignature(t *testing.T) {
	gw := NewCoinbaseGateway(CoinbaseConfig{APIKey: "api_test", WebhookSecret: "shared_secret"})

	payload := []byte(`{"event":{"id":"evt_9","type":"charge:confirmed","data":{"code":"CHRG123"}}}`)
	if _, err := gw.VerifyAndParseEvent(context.Background(), payload, signCoinbasePayload(payload, "other_secret")); err == nil {
		t.Fatal("expected bad signature to be rejected")
	}
}

func TestCoinbaseVerifyAndParseEventFailedCharge(t *testing.T) {
	gw := NewCoinbaseGateway(CoinbaseConfig{APIKey: "api_test", WebhookSecret: "shared_secret"})

	payload := []byte(`{"event":{"id":"evt_10","type":"charge:failed","data":{"code":"CHRG123"}}}`)
	event, err := gw.VerifyAndParseEvent(context.Background(), payload, signCoinbasePayload(payload, "shared_secret"))
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if event.Status != entity.StatusFailed {
		t.Fatalf("expected failed status, got %s", event.Status)
	}
}
