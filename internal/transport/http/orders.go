package http

import (
	"context"
	"net/http"
	"time"

	"github.com/engmostafamohamed/flash-sale-task/internal/domain"
	"github.com/gin-gonic/gin"
)

// OrderWorkflow is the minimal interface needed by the order endpoints.
type OrderWorkflow interface {
	CreateOrder(ctx context.Context, holdID string) (domain.Order, error)
	GetOrder(ctx context.Context, orderID string) (domain.Order, error)
}

// HandleCreateOrder converts a valid hold into a pending order.
func HandleCreateOrder(svc OrderWorkflow) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			writeBindError(c, err)
			return
		}

		order, err := svc.CreateOrder(c.Request.Context(), req.HoldID)
		if err != nil {
			writeDomainError(c, err)
			return
		}
		c.JSON(http.StatusCreated, newOrderResponse(order))
	}
}

func HandleGetOrder(svc OrderWorkflow) gin.HandlerFunc {
	return func(c *gin.Context) {
		order, err := svc.GetOrder(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, newOrderResponse(order))
	}
}

type createOrderRequest struct {
	HoldID string `json:"hold_id" binding:"required,uuid"`
}

type orderResponse struct {
	ID        string    `json:"order_id"`
	ProductID string    `json:"product_id"`
	HoldID    string    `json:"hold_id"`
	Quantity  int       `json:"qty"`
	Total     string    `json:"total"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

func newOrderResponse(o domain.Order) orderResponse {
	return orderResponse{
		ID:        o.ID,
		ProductID: o.ProductID,
		HoldID:    o.HoldID,
		Quantity:  o.Quantity,
		Total:     o.Total.StringFixed(2),
		Status:    string(o.Status),
		CreatedAt: o.CreatedAt,
	}
}
