package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/weed35937/tele-bot-digital/app/entity"
)

func TestFormatMinorUnits(t *testing.T) {
	cases := map[int64]string{
		1999:  "19.99",
		500:   "5.00",
		5:     "0.05",
		0:     "0.00",
		10000: "100.00",
	}
	for cents, want := range cases {
		if got := formatMinorUnits(cents); got != want {
			t.Fatalf("formatMinorUnits(%d) = %q, want %q", cents, got, want)
		}
	}
}

func TestPayPalVerifyAndParseEventRejectsMalformedTransmission(t *testing.T) {
	gw := NewPayPalGateway(PayPalConfig{
		BaseAPIURL: "https://api-m.sandbox.paypal.com",
		ClientID:   "client",
		WebhookID:  "wh_test",
	})

	if _, err := gw.VerifyAndParseEvent(context.Background(), []byte(`{}`), "not-json"); err == nil {
		t.Fatal("expected malformed transmission headers to be rejected")
	}
}

func TestClassifyTransportError(t *testing.T) {
	if err := classifyTransportError(nil); err != nil {
		t.Fatalf("nil must stay nil, got %v", err)
	}

	if err := classifyTransportError(context.DeadlineExceeded); !errors.Is(err, ErrAmbiguous) {
		t.Fatalf("deadline must be ambiguous, got %v", err)
	}
	if err := classifyTransportError(fmt.Errorf("do request: %w", context.Canceled)); !errors.Is(err, ErrAmbiguous) {
		t.Fatalf("cancellation must be ambiguous, got %v", err)
	}
	if err := classifyTransportError(timeoutError{}); !errors.Is(err, ErrAmbiguous) {
		t.Fatalf("network timeout must be ambiguous, got %v", err)
	}

	plain := errors.New("connection refused")
	if err := classifyTransportError(plain); !errors.Is(err, plain) {
		t.Fatalf("definite failures must pass through, got %v", err)
	}
}

type paypalStub struct {
	orderStatus        string
	captureStatus      string
	captureHits        int
	captureHTTPStatus  int
	captureBody        string
	verificationStatus string
}

func newPayPalStubServer(t *testing.T, stub *paypalStub) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"access_token":"test-token"}`)
	})
	mux.HandleFunc("/v2/checkout/orders/ORD1", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, `{"id":"ORD1","status":%q}`, stub.orderStatus)
	})
	mux.HandleFunc("/v2/checkout/orders/ORD1/capture", func(w http.ResponseWriter, _ *http.Request) {
		stub.captureHits++
		if stub.captureHTTPStatus != 0 {
			w.WriteHeader(stub.captureHTTPStatus)
			fmt.Fprint(w, stub.captureBody)
			return
		}
		fmt.Fprintf(w, `{"id":"ORD1","status":%q}`, stub.captureStatus)
	})
	mux.HandleFunc("/v1/notifications/verify-webhook-signature", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, `{"verification_status":%q}`, stub.verificationStatus)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newPayPalGatewayForStub(server *httptest.Server) *PayPalGateway {
	return NewPayPalGateway(PayPalConfig{
		BaseAPIURL:   server.URL,
		ClientID:     "client",
		ClientSecret: "secret",
		WebhookID:    "wh_test",
	})
}

func TestPayPalGetChargeStatusCapturesApprovedOrder(t *testing.T) {
	stub := &paypalStub{orderStatus: "APPROVED", captureStatus: "COMPLETED"}
	gw := newPayPalGatewayForStub(newPayPalStubServer(t, stub))

	status, err := gw.GetChargeStatus(context.Background(), "ORD1")
	if err != nil {
		t.Fatalf("get charge status failed: %v", err)
	}
	if status != entity.StatusCompleted {
		t.Fatalf("expected approved order to be captured and completed, got %s", status)
	}
	if stub.captureHits != 1 {
		t.Fatalf("expected one capture call, got %d", stub.captureHits)
	}
}

func TestPayPalGetChargeStatusCompletedOrderSkipsCapture(t *testing.T) {
	stub := &paypalStub{orderStatus: "COMPLETED"}
	gw := newPayPalGatewayForStub(newPayPalStubServer(t, stub))

	status, err := gw.GetChargeStatus(context.Background(), "ORD1")
	if err != nil {
		t.Fatalf("get charge status failed: %v", err)
	}
	if status != entity.StatusCompleted {
		t.Fatalf("expected completed, got %s", status)
	}
	if stub.captureHits != 0 {
		t.Fatalf("completed order must not be captured again, got %d calls", stub.captureHits)
	}
}

func TestPayPalCaptureAlreadyCapturedIsCompleted(t *testing.T) {
	stub := &paypalStub{
		orderStatus:       "APPROVED",
		captureHTTPStatus: http.StatusUnprocessableEntity,
		captureBody:       `{"name":"UNPROCESSABLE_ENTITY","details":[{"issue":"ORDER_ALREADY_CAPTURED"}]}`,
	}
	gw := newPayPalGatewayForStub(newPayPalStubServer(t, stub))

	status, err := gw.GetChargeStatus(context.Background(), "ORD1")
	if err != nil {
		t.Fatalf("get charge status failed: %v", err)
	}
	if status != entity.StatusCompleted {
		t.Fatalf("expected already-captured order to report completed, got %s", status)
	}
}

func TestPayPalVerifyAndParseEventApprovedOrderIsCaptured(t *testing.T) {
	stub := &paypalStub{captureStatus: "COMPLETED", verificationStatus: "SUCCESS"}
	gw := newPayPalGatewayForStub(newPayPalStubServer(t, stub))

	payload := []byte(`{"id":"WH-1","event_type":"CHECKOUT.ORDER.APPROVED","resource":{"id":"ORD1"}}`)
	signature := `{"transmission_id":"tid","transmission_time":"2026-01-01T00:00:00Z","transmission_sig":"sig","cert_url":"https://api.paypal.com/cert.pem","auth_algo":"SHA256withRSA"}`

	event, err := gw.VerifyAndParseEvent(context.Background(), payload, signature)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if event.TransactionID != "ORD1" {
		t.Fatalf("unexpected transaction id: %q", event.TransactionID)
	}
	if event.Status != entity.StatusCompleted {
		t.Fatalf("expected approval to settle the order, got %s", event.Status)
	}
	if stub.captureHits != 1 {
		t.Fatalf("expected one capture call, got %d", stub.captureHits)
	}
}

func TestPayPalVerifyAndParseEventCaptureCompleted(t *testing.T) {
	stub := &paypalStub{verificationStatus: "SUCCESS"}
	gw := newPayPalGatewayForStub(newPayPalStubServer(t, stub))

	payload := []byte(`{"id":"WH-2","event_type":"PAYMENT.CAPTURE.COMPLETED","resource":{"id":"CAP1","supplementary_data":{"related_ids":{"order_id":"ORD1"}}}}`)
	signature := `{"transmission_id":"tid","transmission_time":"2026-01-01T00:00:00Z","transmission_sig":"sig","cert_url":"https://api.paypal.com/cert.pem","auth_algo":"SHA256withRSA"}`

	event, err := gw.VerifyAndParseEvent(context.Background(), payload, signature)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if event.TransactionID != "ORD1" {
		t.Fatalf("expected related order id, got %q", event.TransactionID)
	}
	if event.Status != entity.StatusCompleted {
		t.Fatalf("expected completed, got %s", event.Status)
	}
	if stub.captureHits != 0 {
		t.Fatalf("capture event must not trigger another capture, got %d calls", stub.captureHits)
	}
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }
