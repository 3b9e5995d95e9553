package controller

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/weed35937/tele-bot-digital/app/entity"
	"github.com/weed35937/tele-bot-digital/app/factory"
	"github.com/weed35937/tele-bot-digital/app/service"
)

type HealthResponse struct {
	Status string `json:"status"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type completionEventHandler interface {
	HandleCompletionEvent(ctx context.Context, method entity.PaymentMethod, payload []byte, signature string) error
}

// WebhookController is the transport binding for Reconciliation Intake: it
// receives provider completion events over HTTP and hands them to the intake
// service.
type WebhookController struct {
	intake completionEventHandler
	logger logrus.FieldLogger
}

func NewWebhookController(intake completionEventHandler) *WebhookController {
	return &WebhookController{
		intake: intake,
		logger: factory.NewModuleLogger("webhook-controller"),
	}
}

func (c *WebhookController) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, &HealthResponse{Status: "ok"})
}

func (c *WebhookController) HandleProviderEvent(ctx echo.Context) error {
	method, ok := parseProviderParam(ctx.Param("provider"))
	if !ok {
		return ctx.JSON(http.StatusNotFound, &ErrorResponse{Error: "unknown provider"})
	}

	payload, err := io.ReadAll(ctx.Request().Body)
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, &ErrorResponse{Error: "unreadable request body"})
	}
	if len(payload) == 0 {
		return ctx.JSON(http.StatusBadRequest, &ErrorResponse{Error: "payload is required"})
	}

	signature := extractSignature(ctx, method)

	err = c.intake.HandleCompletionEvent(ctx.Request().Context(), method, payload, signature)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEventRejected):
			return ctx.JSON(http.StatusBadRequest, &ErrorResponse{Error: "event rejected"})
		case errors.Is(err, service.ErrUnknownReference):
			// The provider retries on non-2xx, which is what we want if the
			// order write is racing the event.
			return ctx.JSON(http.StatusNotFound, &ErrorResponse{Error: "unknown reference"})
		case errors.Is(err, service.ErrMethodUnsupported):
			return ctx.JSON(http.StatusNotFound, &ErrorResponse{Error: "unknown provider"})
		default:
			factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Handle provider event failed")
			return ctx.JSON(http.StatusInternalServerError, &ErrorResponse{Error: "internal server error"})
		}
	}

	return ctx.JSON(http.StatusOK, &MessageResponse{Message: "event processed"})
}

func parseProviderParam(raw string) (entity.PaymentMethod, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "card", "stripe":
		return entity.MethodCard, true
	case "paypal":
		return entity.MethodPayPal, true
	case "crypto", "coinbase":
		return entity.MethodCrypto, true
	default:
		return entity.MethodUnspecified, false
	}
}

// extractSignature pulls the provider-specific authenticity material out of
// the request headers. PayPal spreads it across several transmission headers,
// so those are folded into one JSON blob.
func extractSignature(ctx echo.Context, method entity.PaymentMethod) string {
	headers := ctx.Request().Header

	switch method {
	case entity.MethodCard:
		return strings.TrimSpace(headers.Get("Stripe-Signature"))
	case entity.MethodCrypto:
		return strings.TrimSpace(headers.Get("X-CC-Webhook-Signature"))
	case entity.MethodPayPal:
		blob, _ := json.Marshal(map[string]string{
			"transmission_id":   strings.TrimSpace(headers.Get("Paypal-Transmission-Id")),
			"transmission_time": strings.TrimSpace(headers.Get("Paypal-Transmission-Time")),
			"transmission_sig":  strings.TrimSpace(headers.Get("Paypal-Transmission-Sig")),
			"cert_url":          strings.TrimSpace(headers.Get("Paypal-Cert-Url")),
			"auth_algo":         strings.TrimSpace(headers.Get("Paypal-Auth-Algo")),
		})
		return string(blob)
	default:
		return ""
	}
}
