package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/engmostafamohamed/flash-sale-task/internal/app"
	"github.com/engmostafamohamed/flash-sale-task/internal/clock"
	"github.com/engmostafamohamed/flash-sale-task/internal/storage/memory"
	"github.com/engmostafamohamed/flash-sale-task/internal/storage/postgres"
	"github.com/engmostafamohamed/flash-sale-task/internal/testutil"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type engineStore interface {
	app.LedgerRepository
	app.HoldRepository
	app.OrderRepository
	app.SettlementRepository
	app.CatalogRepository
}

func newEngineRouter(store engineStore, clk clock.Clock) *gin.Engine {
	ledger := app.NewStockLedger(store)
	holds := app.NewHoldService(store, ledger, clk)
	return NewRouter(Services{
		Catalog:     app.NewCatalogService(store, clk),
		Holds:       holds,
		Orders:      app.NewOrderService(store, holds, clk),
		Settlements: app.NewSettlementService(store, ledger, clk, app.WithRetryWait(0)),
		Sweeper:     app.NewReaper(holds, clk, nil),
	}, RouterConfig{})
}

func TestFlashSaleFlow_Memory(t *testing.T) {
	clk := clock.NewManual(time.Date(2025, 1, 4, 10, 0, 0, 0, time.UTC))
	runFlashSaleFlow(t, newEngineRouter(memory.NewStore(), clk), clk)
}

func TestFlashSaleFlow_Postgres(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.ApplyMigrations(t, ctx, pool)
	testutil.TruncateAll(t, ctx, pool)

	clk := clock.NewManual(time.Date(2025, 1, 4, 10, 0, 0, 0, time.UTC))
	runFlashSaleFlow(t, newEngineRouter(postgres.NewStore(pool), clk), clk)
}

func decodeInto(t *testing.T, body []byte, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(body, v), "body: %s", body)
}

func runFlashSaleFlow(t *testing.T, router *gin.Engine, clk *clock.Manual) {
	t.Helper()

	rec := do(t, router, http.MethodPost, "/admin/products", `{"name":"Flash item","price":"33.335","stock":3}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var product productResponse
	decodeInto(t, rec.Body.Bytes(), &product)
	assert.Equal(t, "33.34", product.Price)

	rec = do(t, router, http.MethodPost, "/holds", fmt.Sprintf(`{"product_id":%q,"qty":2}`, product.ID))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var hold holdResponse
	decodeInto(t, rec.Body.Bytes(), &hold)

	rec = do(t, router, http.MethodPost, "/holds", fmt.Sprintf(`{"product_id":%q,"qty":2}`, product.ID))
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, codeInsufficientStock, decodeError(t, rec).Code)

	rec = do(t, router, http.MethodGet, "/products/"+product.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	decodeInto(t, rec.Body.Bytes(), &product)
	assert.Equal(t, 1, product.AvailableStock)

	rec = do(t, router, http.MethodPost, "/orders", fmt.Sprintf(`{"hold_id":%q}`, hold.ID))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var order orderResponse
	decodeInto(t, rec.Body.Bytes(), &order)
	assert.Equal(t, "66.68", order.Total)
	assert.Equal(t, "pending", order.Status)

	rec = do(t, router, http.MethodPost, "/orders", fmt.Sprintf(`{"hold_id":%q}`, hold.ID))
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, codeHoldAlreadyUsed, decodeError(t, rec).Code)

	webhook := fmt.Sprintf(`{"idempotency_key":"pay-1","order_id":%q,"status":"success"}`, order.ID)
	rec = do(t, router, http.MethodPost, "/payments/webhook", webhook)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var settled paymentWebhookResponse
	decodeInto(t, rec.Body.Bytes(), &settled)
	assert.False(t, settled.Duplicate)
	assert.Equal(t, "paid", settled.OrderStatus)

	rec = do(t, router, http.MethodPost, "/payments/webhook", webhook)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeInto(t, rec.Body.Bytes(), &settled)
	assert.True(t, settled.Duplicate)
	assert.Equal(t, "paid", settled.OrderStatus)

	rec = do(t, router, http.MethodGet, "/products/"+product.ID, "")
	decodeInto(t, rec.Body.Bytes(), &product)
	assert.Equal(t, 1, product.TotalStock)
	assert.Equal(t, 1, product.AvailableStock)

	rec = do(t, router, http.MethodPost, "/holds", fmt.Sprintf(`{"product_id":%q,"qty":1}`, product.ID))
	require.Equal(t, http.StatusCreated, rec.Code)
	clk.Advance(3 * time.Minute)

	rec = do(t, router, http.MethodPost, "/admin/sweeps", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var sweep sweepResponse
	decodeInto(t, rec.Body.Bytes(), &sweep)
	assert.Equal(t, 1, sweep.Released)

	rec = do(t, router, http.MethodGet, "/products/"+product.ID, "")
	decodeInto(t, rec.Body.Bytes(), &product)
	assert.Equal(t, 1, product.AvailableStock)

	early := `{"idempotency_key":"pay-early","order_id":"00000000-0000-4000-8000-000000000001","status":"success"}`
	rec = do(t, router, http.MethodPost, "/payments/webhook", early)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "5", rec.Header().Get("Retry-After"))
	assert.Equal(t, codeOrderNotReady, decodeError(t, rec).Code)
}
