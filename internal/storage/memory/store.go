// Package memory is an in-process store with the same transactional
// behaviour the engine relies on from Postgres: row locks held until the
// transaction ends and all writes undone on rollback. It backs the STORE=memory
// mode and the concurrency tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/engmostafamohamed/flash-sale-task/internal/domain"
)

type txKey struct{}

type tx struct {
	held map[string]*rowLock
	undo []func()
}

type rowLock struct {
	ch chan struct{}
}

// Store holds every table in maps guarded by mu. Row locks are separate from
// mu and are only taken inside transactions.
type Store struct {
	mu          sync.Mutex
	products    map[string]domain.Product
	holds       map[string]domain.Hold
	orders      map[string]domain.Order
	orderByHold map[string]string
	settlements map[string]domain.Settlement
	locks       map[string]*rowLock
	faults      map[string][]error
}

func NewStore() *Store {
	return &Store{
		products:    make(map[string]domain.Product),
		holds:       make(map[string]domain.Hold),
		orders:      make(map[string]domain.Order),
		orderByHold: make(map[string]string),
		settlements: make(map[string]domain.Settlement),
		locks:       make(map[string]*rowLock),
		faults:      make(map[string][]error),
	}
}

// WithTx runs fn in a transaction. A nested call joins the outer transaction.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := ctx.Value(txKey{}).(*tx); ok {
		return fn(ctx)
	}

	t := &tx{held: make(map[string]*rowLock)}
	defer func() {
		if p := recover(); p != nil {
			s.rollback(t)
			panic(p)
		}
		if err != nil {
			s.rollback(t)
			return
		}
		s.unlockAll(t)
	}()

	return fn(context.WithValue(ctx, txKey{}, t))
}

func (s *Store) rollback(t *tx) {
	s.mu.Lock()
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	s.mu.Unlock()
	s.unlockAll(t)
}

func (s *Store) unlockAll(t *tx) {
	for _, l := range t.held {
		<-l.ch
	}
	t.held = nil
}

// lock takes the row lock named key for the transaction in ctx. Outside a
// transaction it is a no-op, matching a single autocommit statement.
func (s *Store) lock(ctx context.Context, key string) error {
	t, ok := ctx.Value(txKey{}).(*tx)
	if !ok {
		return nil
	}
	if _, held := t.held[key]; held {
		return nil
	}

	s.mu.Lock()
	l, exists := s.locks[key]
	if !exists {
		l = &rowLock{ch: make(chan struct{}, 1)}
		s.locks[key] = l
	}
	s.mu.Unlock()

	select {
	case l.ch <- struct{}{}:
		t.held[key] = l
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: lock %s: %v", domain.ErrTransientStore, key, ctx.Err())
	}
}

// record registers how to revert a write made under mu. Callers hold mu.
func (s *Store) record(ctx context.Context, undo func()) {
	if t, ok := ctx.Value(txKey{}).(*tx); ok {
		t.undo = append(t.undo, undo)
	}
}

// InjectFault makes the next calls of op fail with the given errors, one per
// call, in order.
func (s *Store) InjectFault(op string, errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[op] = append(s.faults[op], errs...)
}

func (s *Store) fault(op string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	queued := s.faults[op]
	if len(queued) == 0 {
		return nil
	}
	err := queued[0]
	s.faults[op] = queued[1:]
	return err
}

func productKey(id string) string { return "product:" + id }
func holdKey(id string) string { return "hold:" + id }
func orderKey(id string) string { return "order:" + id }
func orderHoldKey(id string) string { return "order-hold:" + id }
func settlementKey(k string) string { return "settlement:" + k }
