package http

import (
	"context"
	"net/http"

	"github.com/engmostafamohamed/flash-sale-task/internal/app"
	"github.com/engmostafamohamed/flash-sale-task/internal/domain"
	"github.com/gin-gonic/gin"
)

// ProductCatalog is the minimal interface needed by the product endpoints.
type ProductCatalog interface {
	CreateProduct(ctx context.Context, in app.CreateProductInput) (domain.Product, error)
	ListProducts(ctx context.Context) ([]app.ProductView, error)
	GetProduct(ctx context.Context, productID string) (app.ProductView, error)
}

// HandleGetProduct returns a product with its live availability.
func HandleGetProduct(svc ProductCatalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		view, err := svc.GetProduct(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, newProductResponse(view))
	}
}

type productResponse struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	Price          string `json:"price"`
	AvailableStock int    `json:"available_stock"`
	TotalStock     int    `json:"total_stock"`
}

func newProductResponse(v app.ProductView) productResponse {
	return productResponse{
		ID:             v.ID,
		Name:           v.Name,
		Description:    v.Description,
		Price:          v.Price.StringFixed(2),
		AvailableStock: v.AvailableStock,
		TotalStock:     v.TotalStock,
	}
}
