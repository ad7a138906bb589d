package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/engmostafamohamed/flash-sale-task/internal/clock"
	"github.com/engmostafamohamed/flash-sale-task/internal/domain"
	"github.com/engmostafamohamed/flash-sale-task/internal/storage/memory"
	"github.com/shopspring/decimal"
)

var testNow = time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC)

type testEngine struct {
	store       *memory.Store
	clock       *clock.Manual
	events      *recordingPublisher
	ledger      *StockLedger
	holds       *HoldService
	orders      *OrderService
	settlements *SettlementService
	reaper      *Reaper
	catalog     *CatalogService
}

func newTestEngine(t *testing.T, opts ...Option) *testEngine {
	t.Helper()
	store := memory.NewStore()
	clk := clock.NewManual(testNow)
	events := &recordingPublisher{}
	opts = append([]Option{WithPublisher(events), WithRetryWait(0)}, opts...)

	ledger := NewStockLedger(store, opts...)
	holds := NewHoldService(store, ledger, clk, opts...)
	return &testEngine{
		store:       store,
		clock:       clk,
		events:      events,
		ledger:      ledger,
		holds:       holds,
		orders:      NewOrderService(store, holds, clk, opts...),
		settlements: NewSettlementService(store, ledger, clk, opts...),
		reaper:      NewReaper(holds, clk, nil, opts...),
		catalog:     NewCatalogService(store, clk, opts...),
	}
}

func (e *testEngine) seedProduct(t *testing.T, stock int, price string) domain.Product {
	t.Helper()
	p, err := e.catalog.CreateProduct(context.Background(), CreateProductInput{
		Name:  "Flash item",
		Price: decimal.RequireFromString(price),
		Stock: stock,
	})
	if err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return p
}

func (e *testEngine) product(t *testing.T, id string) domain.Product {
	t.Helper()
	p, err := e.store.GetProduct(context.Background(), id)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	return p
}

func (e *testEngine) hold(t *testing.T, productID string, qty int) domain.Hold {
	t.Helper()
	h, err := e.holds.CreateHold(context.Background(), CreateHoldInput{ProductID: productID, Quantity: qty})
	if err != nil {
		t.Fatalf("create hold: %v", err)
	}
	return h
}

func (e *testEngine) order(t *testing.T, productID string, qty int) domain.Order {
	t.Helper()
	h := e.hold(t, productID, qty)
	o, err := e.orders.CreateOrder(context.Background(), h.ID)
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	return o
}

func assertCounters(t *testing.T, p domain.Product, stock, reserved int) {
	t.Helper()
	if p.Stock != stock || p.Reserved != reserved {
		t.Fatalf("expected stock=%d reserved=%d, got stock=%d reserved=%d", stock, reserved, p.Stock, p.Reserved)
	}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev domain.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) count(typ domain.EventType) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, ev := range p.events {
		if ev.Type == typ {
			n++
		}
	}
	return n
}
