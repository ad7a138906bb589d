package app

import (
	"context"
	"strings"

	"github.com/engmostafamohamed/flash-sale-task/internal/clock"
	"github.com/engmostafamohamed/flash-sale-task/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type CatalogRepository interface {
	CreateProduct(ctx context.Context, p domain.Product) error
	GetProduct(ctx context.Context, productID string) (domain.Product, error)
	ListProducts(ctx context.Context) ([]domain.Product, error)
}

// ProductView is the public shape of a product with its live availability.
type ProductView struct {
	ID             string
	Name           string
	Description    string
	Price          decimal.Decimal
	AvailableStock int
	TotalStock     int
}

func NewProductView(p domain.Product) ProductView {
	return ProductView{
		ID:             p.ID,
		Name:           p.Name,
		Description:    p.Description,
		Price:          p.Price,
		AvailableStock: p.Available(),
		TotalStock:     p.Stock,
	}
}

type CatalogService struct {
	repo  CatalogRepository
	clock clock.Clock
	opts  options
}

func NewCatalogService(repo CatalogRepository, clk clock.Clock, opts ...Option) *CatalogService {
	return &CatalogService{
		repo:  repo,
		clock: clk,
		opts:  newOptions(opts),
	}
}

type CreateProductInput struct {
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       int
}

func (s *CatalogService) CreateProduct(ctx context.Context, in CreateProductInput) (domain.Product, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return domain.Product{}, domain.ErrProductNameRequired
	}
	if in.Price.IsNegative() {
		return domain.Product{}, domain.ErrInvalidPrice
	}
	if in.Stock < 0 {
		return domain.Product{}, domain.ErrInvalidQuantity
	}

	now := s.clock.Now()
	p := domain.Product{
		ID:          uuid.NewString(),
		Name:        name,
		Description: in.Description,
		Price:       in.Price.Round(2),
		Stock:       in.Stock,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.CreateProduct(ctx, p); err != nil {
		return domain.Product{}, err
	}
	s.opts.logger.Info("product created",
		zap.String("product_id", p.ID),
		zap.Int("stock", p.Stock),
	)
	return p, nil
}

func (s *CatalogService) ListProducts(ctx context.Context) ([]ProductView, error) {
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]ProductView, 0, len(products))
	for _, p := range products {
		views = append(views, NewProductView(p))
	}
	return views, nil
}

// GetProduct reads through the product cache. Cache failures degrade to a
// store read.
func (s *CatalogService) GetProduct(ctx context.Context, productID string) (ProductView, error) {
	if productID == "" {
		return ProductView{}, domain.ErrInvalidID
	}
	p, ok, err := s.opts.cache.Get(ctx, productID)
	if err != nil {
		s.opts.logger.Warn("product cache read failed", zap.String("product_id", productID), zap.Error(err))
	}
	if ok {
		return NewProductView(p), nil
	}

	p, err = s.repo.GetProduct(ctx, productID)
	if err != nil {
		return ProductView{}, err
	}
	if err := s.opts.cache.Set(ctx, p); err != nil {
		s.opts.logger.Warn("product cache write failed", zap.String("product_id", productID), zap.Error(err))
	}
	return NewProductView(p), nil
}
