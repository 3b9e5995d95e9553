package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/weed35937/tele-bot-digital/app/entity"
)

func signStripePayload(payload []byte, secret string, ts int64) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(fmt.Sprintf("%d.%s", ts, string(payload))))
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func TestVerifyStripeSignature(t *testing.T) {
	payload := []byte(`{"id":"evt_1"}`)
	secret := "whsec_test"
	header := signStripePayload(payload, secret, time.Now().Unix())

	if !verifyStripeSignature(payload, header, secret, 300) {
		t.Fatal("expected signature to validate")
	}
	if verifyStripeSignature(payload, header, "wrong-secret", 300) {
		t.Fatal("expected signature with wrong secret to fail")
	}
	if verifyStripeSignature([]byte(`{"id":"evt_tampered"}`), header, secret, 300) {
		t.Fatal("expected tampered payload to fail")
	}
}

func TestVerifyStripeSignatureRejectsStaleTimestamp(t *testing.T) {
	payload := []byte(`{"id":"evt_1"}`)
	secret := "whsec_test"
	header := signStripePayload(payload, secret, time.Now().Add(-time.Hour).Unix())

	if verifyStripeSignature(payload, header, secret, 300) {
		t.Fatal("expected stale timestamp to fail")
	}
}

func TestStripeVerifyAndParseEvent(t *testing.T) {
	gw := NewStripeGateway(StripeConfig{SecretKey: "sk_test", WebhookSecret: "whsec_test"})

	payload := []byte(`{"id":"evt_1","type":"checkout.session.completed","data":{"object":{"id":"cs_test_123"}}}`)
	header := signStripePayload(payload, "whsec_test", time.Now().Unix())

	event, err := gw.VerifyAndParseEvent(context.Background(), payload, header)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if event.TransactionID != "cs_test_123" {
		t.Fatalf("unexpected transaction id: %q", event.TransactionID)
	}
	if event.Status != entity.StatusCompleted {
		t.Fatalf("expected completed status, got %s", event.Status)
	}
	if event.ProviderEventID == nil || *event.ProviderEventID != "evt_1" {
		t.Fatal("expected provider event id evt_1")
	}
}

func TestStripeVerifyAndParseEventExpiredSession(t *testing.T) {
	gw := NewStripeGateway(StripeConfig{SecretKey: "sk_test", WebhookSecret: "whsec_test"})

	payload := []byte(`{"id":"evt_2","type":"checkout.session.expired","data":{"object":{"id":"cs_test_123"}}}`)
	header := signStripePayload(payload, "whsec_test", time.Now().Unix())

	event, err := gw.VerifyAndParseEvent(context.Background(), payload, header)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if event.Status != entity.StatusFailed {
		t.Fatalf("expected failed status, got %s", event.Status)
	}
}

func TestStripeVerifyAndParseEventUnknownTypeIsNonTerminal(t *testing.T) {
	gw := NewStripeGateway(StripeConfig{SecretKey: "sk_test", WebhookSecret: "whsec_test"})

	payload := []byte(`{"id":"evt_3","type":"payment_intent.created","data":{"object":{"id":"pi_1"}}}`)
	header := signStripePayload(payload, "whsec_test", time.Now().Unix())

	event, err := gw.VerifyAndParseEvent(context.Background(), payload, header)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if event.Status.Terminal() {
		t.Fatalf("unknown event types must not be terminal, got %s", event.Status)
	}
}

func TestStripeVerifyAndParseEventBadSignature(t *testing.T) {
	gw := NewStripeGateway(StripeConfig{SecretKey: "sk_test", WebhookSecret: "whsec_test"})

	payload := []byte(`{"id":"evt_1","type":"checkout.session.completed","data":{"object":{"id":"cs_test_123"}}}`)
	if _, err := gw.VerifyAndParseEvent(context.Background(), payload, "t=1,v1=deadbeef"); err == nil {
		t.Fatal("expected bad signature to be rejected")
	}
}
