package memory

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/engmostafamohamed/flash-sale-task/internal/domain"
)

// FindSettlement waits for a concurrent transaction that claimed key, so it
// never reports a claim that may still roll back.
func (s *Store) FindSettlement(ctx context.Context, key string) (*domain.Settlement, error) {
	if err := s.fault("FindSettlement"); err != nil {
		return nil, err
	}
	if err := s.lock(ctx, settlementKey(key)); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.settlements[key]
	if !ok {
		return nil, nil
	}
	st.Payload = cloneRaw(st.Payload)
	return &st, nil
}

func (s *Store) ClaimSettlement(ctx context.Context, st domain.Settlement) (bool, error) {
	if err := s.fault("ClaimSettlement"); err != nil {
		return false, err
	}
	if err := s.lock(ctx, settlementKey(st.IdempotencyKey)); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.settlements[st.IdempotencyKey]; exists {
		return false, nil
	}
	if _, ok := s.orders[st.OrderID]; !ok {
		return false, domain.ErrOrderNotFound
	}
	st.Payload = cloneRaw(st.Payload)
	s.settlements[st.IdempotencyKey] = st
	s.record(ctx, func() { delete(s.settlements, st.IdempotencyKey) })
	return true, nil
}

func (s *Store) MarkSettlementProcessed(ctx context.Context, key string, status domain.OrderStatus) error {
	if err := s.fault("MarkSettlementProcessed"); err != nil {
		return err
	}
	if err := s.lock(ctx, settlementKey(key)); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.settlements[key]
	if !ok {
		return fmt.Errorf("mark settlement %s processed: not found", key)
	}
	next := prev
	next.Processed = true
	next.OrderStatus = status
	s.settlements[key] = next
	s.record(ctx, func() { s.settlements[key] = prev })
	return nil
}

// SettlementCount reports how many settlement records exist.
func (s *Store) SettlementCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.settlements)
}

func cloneRaw(b json.RawMessage) json.RawMessage {
	if b == nil {
		return nil
	}
	return append(json.RawMessage(nil), b...)
}
