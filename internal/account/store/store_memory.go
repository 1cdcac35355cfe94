// Package store persists account rows. Both backends return sentinel errors
// (ErrNotFound, ErrInvalidState, ErrConflict) and join the caller's transaction.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"erasure/internal/account/models"
	id "erasure/pkg/domain"
	"erasure/pkg/platform/sentinel"
	"erasure/pkg/platform/tx"
)

// InMemory is a map-backed account store registered with a memory transaction
// coordinator.
type InMemory struct {
	coord    *tx.Memory
	accounts map[id.AccountID]*models.Account
}

func NewInMemory(coord *tx.Memory) *InMemory {
	s := &InMemory{
		coord:    coord,
		accounts: make(map[id.AccountID]*models.Account),
	}
	coord.Register(s)
	return s
}

func (s *InMemory) Snapshot() any {
	cp := make(map[id.AccountID]*models.Account, len(s.accounts))
	for k, v := range s.accounts {
		cp[k] = v.Clone()
	}
	return cp
}

func (s *InMemory) Restore(snapshot any) {
	s.accounts = snapshot.(map[id.AccountID]*models.Account)
}

func (s *InMemory) Create(ctx context.Context, account *models.Account) error {
	unlock := s.coord.Guard(ctx)
	defer unlock()

	if _, exists := s.accounts[account.ID]; exists {
		return fmt.Errorf("account %s: %w", account.ID, sentinel.ErrConflict)
	}
	for _, existing := range s.accounts {
		if sameValue(existing.Email, account.Email) || sameValue(existing.Phone, account.Phone) {
			return fmt.Errorf("account contact already registered: %w", sentinel.ErrConflict)
		}
	}
	s.accounts[account.ID] = account.Clone()
	return nil
}

func (s *InMemory) FindByID(ctx context.Context, accountID id.AccountID) (*models.Account, error) {
	unlock := s.coord.Guard(ctx)
	defer unlock()

	account, ok := s.accounts[accountID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return account.Clone(), nil
}

// FindByIDForUpdate is FindByID; the coordinator lock already excludes
// concurrent writers for the life of the transaction.
func (s *InMemory) FindByIDForUpdate(ctx context.Context, accountID id.AccountID) (*models.Account, error) {
	return s.FindByID(ctx, accountID)
}

func (s *InMemory) GetStatus(ctx context.Context, accountID id.AccountID) (models.Status, error) {
	account, err := s.FindByID(ctx, accountID)
	if err != nil {
		return "", err
	}
	return account.Status, nil
}

func (s *InMemory) GetTokenVersion(ctx context.Context, accountID id.AccountID) (int64, error) {
	account, err := s.FindByID(ctx, accountID)
	if err != nil {
		return 0, err
	}
	return account.TokenVersion, nil
}

func (s *InMemory) MarkPendingDelete(ctx context.Context, accountID id.AccountID, requestedAt, scheduledAt time.Time) (*models.Account, error) {
	return s.update(ctx, accountID, func(a *models.Account) error {
		return a.MarkPendingDelete(requestedAt, scheduledAt.Sub(requestedAt))
	})
}

func (s *InMemory) CancelPendingDelete(ctx context.Context, accountID id.AccountID, now time.Time) (*models.Account, error) {
	return s.update(ctx, accountID, func(a *models.Account) error {
		return a.CancelPendingDelete(now)
	})
}

func (s *InMemory) Tombstone(ctx context.Context, accountID id.AccountID, now time.Time) error {
	_, err := s.update(ctx, accountID, func(a *models.Account) error {
		if !a.IsDue(now) {
			return sentinel.ErrInvalidState
		}
		return a.Tombstone(now)
	})
	return err
}

// update applies mutate to a copy and stores it only on success, so a refused
// transition leaves the row untouched.
func (s *InMemory) update(ctx context.Context, accountID id.AccountID, mutate func(*models.Account) error) (*models.Account, error) {
	unlock := s.coord.Guard(ctx)
	defer unlock()

	current, ok := s.accounts[accountID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	next := current.Clone()
	if err := mutate(next); err != nil {
		if errors.Is(err, sentinel.ErrInvalidState) {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w", err.Error(), sentinel.ErrInvalidState)
	}
	s.accounts[accountID] = next
	return next.Clone(), nil
}

func (s *InMemory) ListDue(ctx context.Context, now time.Time, limit int) ([]id.AccountID, error) {
	unlock := s.coord.Guard(ctx)
	defer unlock()

	var due []*models.Account
	for _, a := range s.accounts {
		if a.IsDue(now) {
			due = append(due, a)
		}
	}
	sortBySchedule(due)
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	ids := make([]id.AccountID, len(due))
	for i, a := range due {
		ids[i] = a.ID
	}
	return ids, nil
}

func (s *InMemory) ListPending(ctx context.Context, limit int) ([]*models.Account, error) {
	unlock := s.coord.Guard(ctx)
	defer unlock()

	var pending []*models.Account
	for _, a := range s.accounts {
		if a.Status == models.StatusPendingDelete {
			pending = append(pending, a.Clone())
		}
	}
	sortBySchedule(pending)
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

func (s *InMemory) CountByStatus(ctx context.Context) (map[models.Status]int64, error) {
	unlock := s.coord.Guard(ctx)
	defer unlock()

	counts := make(map[models.Status]int64, 3)
	for _, status := range models.AllStatuses() {
		counts[status] = 0
	}
	for _, a := range s.accounts {
		counts[a.Status]++
	}
	return counts, nil
}

func sortBySchedule(accounts []*models.Account) {
	sort.Slice(accounts, func(i, j int) bool {
		ai, aj := accounts[i].DeleteScheduledAt, accounts[j].DeleteScheduledAt
		if !ai.Equal(*aj) {
			return ai.Before(*aj)
		}
		return accounts[i].ID.String() < accounts[j].ID.String()
	})
}

func sameValue(a, b *string) bool {
	return a != nil && b != nil && *a == *b
}
