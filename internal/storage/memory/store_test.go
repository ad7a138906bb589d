package memory

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/engmostafamohamed/flash-sale-task/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedProduct(t *testing.T, s *Store, id string, stock int) domain.Product {
	t.Helper()
	p := domain.Product{
		ID:        id,
		Name:      "Widget",
		Price:     decimal.RequireFromString("9.99"),
		Stock:     stock,
		CreatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.CreateProduct(context.Background(), p))
	return p
}

func TestWithTx_RollbackRestoresState(t *testing.T) {
	s := NewStore()
	seedProduct(t, s, "p1", 10)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(txCtx context.Context) error {
		require.NoError(t, s.UpdateProductCounters(txCtx, "p1", 10, 4))
		require.NoError(t, s.CreateHold(txCtx, domain.Hold{ID: "h1", ProductID: "p1", Quantity: 4}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	p, err := s.GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 0, p.Reserved)
	_, err = s.GetHold(ctx, "h1")
	assert.ErrorIs(t, err, domain.ErrHoldNotFound)
}

func TestWithTx_CommitKeepsState(t *testing.T) {
	s := NewStore()
	seedProduct(t, s, "p1", 10)
	ctx := context.Background()

	err := s.WithTx(ctx, func(txCtx context.Context) error {
		return s.UpdateProductCounters(txCtx, "p1", 10, 3)
	})
	require.NoError(t, err)

	p, err := s.GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 3, p.Reserved)
}

func TestWithTx_RowLockSerializesTransactions(t *testing.T) {
	s := NewStore()
	seedProduct(t, s, "p1", 10)
	ctx := context.Background()

	locked := make(chan struct{})
	proceed := make(chan struct{})
	var secondAcquired atomic.Bool
	done := make(chan error, 2)

	go func() {
		done <- s.WithTx(ctx, func(txCtx context.Context) error {
			if _, err := s.GetProductForUpdate(txCtx, "p1"); err != nil {
				return err
			}
			close(locked)
			<-proceed
			return nil
		})
	}()
	<-locked

	go func() {
		done <- s.WithTx(ctx, func(txCtx context.Context) error {
			_, err := s.GetProductForUpdate(txCtx, "p1")
			secondAcquired.Store(true)
			return err
		})
	}()

	time.Sleep(20 * time.Millisecond)
	assert.False(t, secondAcquired.Load(), "second transaction must wait for the row lock")
	close(proceed)
	require.NoError(t, <-done)
	require.NoError(t, <-done)
	assert.True(t, secondAcquired.Load())
}

func TestWithTx_NestedJoinsOuter(t *testing.T) {
	s := NewStore()
	seedProduct(t, s, "p1", 10)
	ctx := context.Background()

	err := s.WithTx(ctx, func(txCtx context.Context) error {
		if _, err := s.GetProductForUpdate(txCtx, "p1"); err != nil {
			return err
		}
		return s.WithTx(txCtx, func(inner context.Context) error {
			_, err := s.GetProductForUpdate(inner, "p1")
			return err
		})
	})
	require.NoError(t, err)
}

func TestLock_ContextCancelledIsTransient(t *testing.T) {
	s := NewStore()
	seedProduct(t, s, "p1", 10)

	release := make(chan struct{})
	held := make(chan struct{})
	go func() {
		_ = s.WithTx(context.Background(), func(txCtx context.Context) error {
			_, _ = s.GetProductForUpdate(txCtx, "p1")
			close(held)
			<-release
			return nil
		})
	}()
	<-held
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := s.WithTx(ctx, func(txCtx context.Context) error {
		_, err := s.GetProductForUpdate(txCtx, "p1")
		return err
	})
	assert.ErrorIs(t, err, domain.ErrTransientStore)
}

func TestUpdateProductCounters_RejectsInvariantViolation(t *testing.T) {
	s := NewStore()
	seedProduct(t, s, "p1", 5)

	err := s.UpdateProductCounters(context.Background(), "p1", 5, 6)
	require.Error(t, err)
	err = s.UpdateProductCounters(context.Background(), "p1", 5, -1)
	require.Error(t, err)
}

func TestCreateOrder_HoldIsUnique(t *testing.T) {
	s := NewStore()
	seedProduct(t, s, "p1", 5)
	ctx := context.Background()
	require.NoError(t, s.CreateHold(ctx, domain.Hold{ID: "h1", ProductID: "p1", Quantity: 1}))

	require.NoError(t, s.CreateOrder(ctx, domain.Order{ID: "o1", ProductID: "p1", HoldID: "h1", Quantity: 1}))
	err := s.CreateOrder(ctx, domain.Order{ID: "o2", ProductID: "p1", HoldID: "h1", Quantity: 1})
	assert.ErrorIs(t, err, domain.ErrHoldAlreadyUsed)
}

func TestMarkHold_OnlyUnresolved(t *testing.T) {
	s := NewStore()
	seedProduct(t, s, "p1", 5)
	ctx := context.Background()
	require.NoError(t, s.CreateHold(ctx, domain.Hold{ID: "h1", ProductID: "p1", Quantity: 1}))

	ok, err := s.MarkHoldUsed(ctx, "h1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.MarkHoldReleased(ctx, "h1")
	require.NoError(t, err)
	assert.False(t, ok)

	h, err := s.GetHold(ctx, "h1")
	require.NoError(t, err)
	assert.True(t, h.Used)
	assert.False(t, h.Released)
}

func TestListExpiredHolds(t *testing.T) {
	s := NewStore()
	seedProduct(t, s, "p1", 10)
	ctx := context.Background()
	now := time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC)

	holds := []domain.Hold{
		{ID: "late", ProductID: "p1", Quantity: 1, ExpiresAt: now.Add(-time.Minute)},
		{ID: "early", ProductID: "p1", Quantity: 1, ExpiresAt: now.Add(-time.Hour)},
		{ID: "boundary", ProductID: "p1", Quantity: 1, ExpiresAt: now},
		{ID: "future", ProductID: "p1", Quantity: 1, ExpiresAt: now.Add(time.Second)},
		{ID: "used", ProductID: "p1", Quantity: 1, ExpiresAt: now.Add(-time.Hour), Used: true},
		{ID: "released", ProductID: "p1", Quantity: 1, ExpiresAt: now.Add(-time.Hour), Released: true},
	}
	for _, h := range holds {
		require.NoError(t, s.CreateHold(ctx, h))
	}

	got, err := s.ListExpiredHolds(ctx, now, 0)
	require.NoError(t, err)
	ids := make([]string, 0, len(got))
	for _, h := range got {
		ids = append(ids, h.ID)
	}
	assert.Equal(t, []string{"early", "late", "boundary"}, ids)

	got, err = s.ListExpiredHolds(ctx, now, 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestClaimSettlement(t *testing.T) {
	s := NewStore()
	seedProduct(t, s, "p1", 5)
	ctx := context.Background()
	require.NoError(t, s.CreateHold(ctx, domain.Hold{ID: "h1", ProductID: "p1", Quantity: 1}))
	require.NoError(t, s.CreateOrder(ctx, domain.Order{ID: "o1", ProductID: "p1", HoldID: "h1", Quantity: 1}))

	claimed, err := s.ClaimSettlement(ctx, domain.Settlement{IdempotencyKey: "k1", OrderID: "o1", Outcome: domain.OutcomeSuccess})
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = s.ClaimSettlement(ctx, domain.Settlement{IdempotencyKey: "k1", OrderID: "o1", Outcome: domain.OutcomeFailed})
	require.NoError(t, err)
	assert.False(t, claimed)

	_, err = s.ClaimSettlement(ctx, domain.Settlement{IdempotencyKey: "k2", OrderID: "missing", Outcome: domain.OutcomeFailed})
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)

	require.NoError(t, s.MarkSettlementProcessed(ctx, "k1", domain.OrderStatusPaid))
	st, err := s.FindSettlement(ctx, "k1")
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.True(t, st.Processed)
	assert.Equal(t, domain.OutcomeSuccess, st.Outcome)
	assert.Equal(t, domain.OrderStatusPaid, st.OrderStatus)
}

func TestInjectFault(t *testing.T) {
	s := NewStore()
	seedProduct(t, s, "p1", 5)
	ctx := context.Background()
	s.InjectFault("GetProduct", domain.ErrTransientStore)

	_, err := s.GetProduct(ctx, "p1")
	assert.ErrorIs(t, err, domain.ErrTransientStore)
	_, err = s.GetProduct(ctx, "p1")
	assert.NoError(t, err)
}
