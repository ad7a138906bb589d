package http

import (
	"context"
	"net/http"
	"time"

	"github.com/engmostafamohamed/flash-sale-task/internal/app"
	"github.com/engmostafamohamed/flash-sale-task/internal/domain"
	"github.com/gin-gonic/gin"
)

// HoldManager is the minimal interface needed by the hold endpoints.
type HoldManager interface {
	CreateHold(ctx context.Context, in app.CreateHoldInput) (domain.Hold, error)
	GetHold(ctx context.Context, holdID string) (domain.Hold, error)
	ReleaseHold(ctx context.Context, holdID string) (domain.Hold, error)
}

// HandleCreateHold reserves stock for a short-lived hold.
func HandleCreateHold(svc HoldManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createHoldRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			writeBindError(c, err)
			return
		}

		hold, err := svc.CreateHold(c.Request.Context(), app.CreateHoldInput{
			ProductID: req.ProductID,
			Quantity:  req.Quantity,
		})
		if err != nil {
			writeDomainError(c, err)
			return
		}
		c.JSON(http.StatusCreated, newHoldResponse(hold))
	}
}

func HandleGetHold(svc HoldManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		hold, err := svc.GetHold(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, newHoldResponse(hold))
	}
}

// HandleReleaseHold cancels an unconverted hold and returns its units to stock.
func HandleReleaseHold(svc HoldManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		hold, err := svc.ReleaseHold(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, newHoldResponse(hold))
	}
}

type createHoldRequest struct {
	ProductID string `json:"product_id" binding:"required,uuid"`
	Quantity  int    `json:"qty" binding:"required,min=1,max=100"`
}

type holdResponse struct {
	ID        string    `json:"hold_id"`
	ProductID string    `json:"product_id"`
	Quantity  int       `json:"qty"`
	ExpiresAt time.Time `json:"expires_at"`
	Used      bool      `json:"used"`
	Released  bool      `json:"released"`
}

func newHoldResponse(h domain.Hold) holdResponse {
	return holdResponse{
		ID:        h.ID,
		ProductID: h.ProductID,
		Quantity:  h.Quantity,
		ExpiresAt: h.ExpiresAt,
		Used:      h.Used,
		Released:  h.Released,
	}
}
