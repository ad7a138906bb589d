package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/engmostafamohamed/flash-sale-task/internal/app"
	"github.com/engmostafamohamed/flash-sale-task/internal/domain"
	"github.com/gin-gonic/gin"
)

// PaymentSettler is the minimal interface needed by the payment webhook.
type PaymentSettler interface {
	ApplyNotification(ctx context.Context, n app.Notification) (app.SettlementResult, error)
}

// HandlePaymentWebhook applies a payment outcome at most once per
// idempotency key. A notification that arrives before its order exists is
// answered with 503 so the notifier redelivers it later.
func HandlePaymentWebhook(svc PaymentSettler) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req paymentWebhookRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			writeBindError(c, err)
			return
		}

		res, err := svc.ApplyNotification(c.Request.Context(), app.Notification{
			IdempotencyKey: req.IdempotencyKey,
			OrderID:        req.OrderID,
			Outcome:        domain.Outcome(req.Status),
			Payload:        req.Payload,
		})
		if err != nil {
			if errors.Is(err, domain.ErrOrderNotFound) {
				_ = c.Error(err)
				c.Header("Retry-After", retryAfterSeconds)
				writeError(c, http.StatusServiceUnavailable, codeOrderNotReady, "order not found yet, retry later")
				return
			}
			writeDomainError(c, err)
			return
		}

		msg := "Webhook processed successfully"
		switch {
		case res.Duplicate:
			msg = "Webhook already processed"
		case !res.Applied:
			msg = "Order already settled"
		}
		c.JSON(http.StatusOK, paymentWebhookResponse{
			Success:     true,
			Duplicate:   res.Duplicate,
			OrderID:     res.OrderID,
			OrderStatus: string(res.OrderStatus),
			Message:     msg,
		})
	}
}

type paymentWebhookRequest struct {
	IdempotencyKey string          `json:"idempotency_key" binding:"required"`
	OrderID        string          `json:"order_id" binding:"required,uuid"`
	Status         string          `json:"status" binding:"required,oneof=success failed"`
	Payload        json.RawMessage `json:"payload"`
}

type paymentWebhookResponse struct {
	Success     bool   `json:"success"`
	Duplicate   bool   `json:"duplicate"`
	OrderID     string `json:"order_id"`
	OrderStatus string `json:"order_status"`
	Message     string `json:"message"`
}
