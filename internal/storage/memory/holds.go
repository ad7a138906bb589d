package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/engmostafamohamed/flash-sale-task/internal/domain"
)

func (s *Store) CreateHold(ctx context.Context, hold domain.Hold) error {
	if err := s.fault("CreateHold"); err != nil {
		return err
	}
	if hold.Quantity <= 0 {
		return domain.ErrInvalidQuantity
	}
	if hold.Used && hold.Released {
		return fmt.Errorf("create hold %s: used and released are exclusive", hold.ID)
	}
	if err := s.lock(ctx, holdKey(hold.ID)); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[hold.ProductID]; !ok {
		return domain.ErrProductNotFound
	}
	if _, exists := s.holds[hold.ID]; exists {
		return fmt.Errorf("create hold %s: already exists", hold.ID)
	}
	s.holds[hold.ID] = hold
	s.record(ctx, func() { delete(s.holds, hold.ID) })
	return nil
}

func (s *Store) GetHold(ctx context.Context, holdID string) (domain.Hold, error) {
	if err := s.fault("GetHold"); err != nil {
		return domain.Hold{}, err
	}
	return s.hold(holdID)
}

func (s *Store) GetHoldForUpdate(ctx context.Context, holdID string) (domain.Hold, error) {
	if err := s.fault("GetHoldForUpdate"); err != nil {
		return domain.Hold{}, err
	}
	if err := s.lock(ctx, holdKey(holdID)); err != nil {
		return domain.Hold{}, err
	}
	return s.hold(holdID)
}

func (s *Store) hold(holdID string) (domain.Hold, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.holds[holdID]
	if !ok {
		return domain.Hold{}, domain.ErrHoldNotFound
	}
	return h, nil
}

func (s *Store) MarkHoldUsed(ctx context.Context, holdID string) (bool, error) {
	if err := s.fault("MarkHoldUsed"); err != nil {
		return false, err
	}
	return s.resolveHold(ctx, holdID, func(h *domain.Hold) { h.Used = true })
}

func (s *Store) MarkHoldReleased(ctx context.Context, holdID string) (bool, error) {
	if err := s.fault("MarkHoldReleased"); err != nil {
		return false, err
	}
	return s.resolveHold(ctx, holdID, func(h *domain.Hold) { h.Released = true })
}

func (s *Store) resolveHold(ctx context.Context, holdID string, mark func(*domain.Hold)) (bool, error) {
	if err := s.lock(ctx, holdKey(holdID)); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.holds[holdID]
	if !ok {
		return false, domain.ErrHoldNotFound
	}
	if prev.IsResolved() {
		return false, nil
	}
	next := prev
	mark(&next)
	s.holds[holdID] = next
	s.record(ctx, func() { s.holds[holdID] = prev })
	return true, nil
}

// ListExpiredHolds returns unresolved holds with expires_at <= now, oldest
// first. A non-positive limit returns all of them.
func (s *Store) ListExpiredHolds(ctx context.Context, now time.Time, limit int) ([]domain.Hold, error) {
	if err := s.fault("ListExpiredHolds"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	var out []domain.Hold
	for _, h := range s.holds {
		if !h.IsResolved() && h.IsExpired(now) {
			out = append(out, h)
		}
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].ExpiresAt.Equal(out[j].ExpiresAt) {
			return out[i].ExpiresAt.Before(out[j].ExpiresAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
