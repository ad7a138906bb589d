package http

import (
	"context"
	"net/http"

	"github.com/engmostafamohamed/flash-sale-task/internal/app"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// ExpirySweeper is the minimal interface needed to trigger an expiry sweep.
type ExpirySweeper interface {
	RunExpirySweep(ctx context.Context) (int, error)
}

// HandleAdminCreateProduct adds a product to the catalog.
func HandleAdminCreateProduct(svc ProductCatalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createProductRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			writeBindError(c, err)
			return
		}

		product, err := svc.CreateProduct(c.Request.Context(), app.CreateProductInput{
			Name:        req.Name,
			Description: req.Description,
			Price:       req.Price,
			Stock:       req.Stock,
		})
		if err != nil {
			writeDomainError(c, err)
			return
		}
		c.JSON(http.StatusCreated, newProductResponse(app.NewProductView(product)))
	}
}

func HandleAdminListProducts(svc ProductCatalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		views, err := svc.ListProducts(c.Request.Context())
		if err != nil {
			writeDomainError(c, err)
			return
		}
		resp := make([]productResponse, 0, len(views))
		for _, v := range views {
			resp = append(resp, newProductResponse(v))
		}
		c.JSON(http.StatusOK, resp)
	}
}

// HandleAdminSweep runs one expiry sweep on demand.
func HandleAdminSweep(svc ExpirySweeper) gin.HandlerFunc {
	return func(c *gin.Context) {
		released, err := svc.RunExpirySweep(c.Request.Context())
		if err != nil {
			writeDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, sweepResponse{Released: released})
	}
}

type createProductRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
}

type sweepResponse struct {
	Released int `json:"released"`
}
