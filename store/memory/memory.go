// Package memory provides an in-memory Adapter implementation (for
// testing/dev). Mirrors the semantics of the durable stores: upsert by
// id, insert-only transactions, newest-first transaction ordering.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/oakline/invest-engine/domain"
)

type Store struct {
	mu           sync.RWMutex
	users        map[string]domain.User
	investments  map[string][]domain.Investment // keyed by user id
	transactions map[string][]domain.Transaction
	plans        []domain.InvestmentPlan
	txIDs        map[string]bool
}

func New() *Store {
	return &Store{
		users:        make(map[string]domain.User),
		investments:  make(map[string][]domain.Investment),
		transactions: make(map[string][]domain.Transaction),
		txIDs:        make(map[string]bool),
	}
}

func (s *Store) LoadUser(_ context.Context, userID string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (s *Store) SaveUser(_ context.Context, u domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
	return nil
}

func (s *Store) LoadInvestments(_ context.Context, userID string) ([]domain.Investment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Investment(nil), s.investments[userID]...), nil
}

func (s *Store) SaveInvestment(_ context.Context, inv domain.Investment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.investments[inv.UserID]
	for i := range list {
		if list[i].ID == inv.ID {
			list[i] = inv
			return nil
		}
	}
	s.investments[inv.UserID] = append(list, inv)
	return nil
}

func (s *Store) LoadTransactions(_ context.Context, userID string) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := append([]domain.Transaction(nil), s.transactions[userID]...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) SaveTransaction(_ context.Context, tx domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.txIDs[tx.ID] {
		return fmt.Errorf("transaction %s already exists", tx.ID)
	}
	s.txIDs[tx.ID] = true
	s.transactions[tx.UserID] = append(s.transactions[tx.UserID], tx)
	return nil
}

// ListUsers returns every user sorted by id.
func (s *Store) ListUsers(_ context.Context) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) LoadPlans(_ context.Context) ([]domain.InvestmentPlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.InvestmentPlan(nil), s.plans...), nil
}

func (s *Store) SeedPlans(_ context.Context, plans []domain.InvestmentPlan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.plans) > 0 {
		return nil
	}
	s.plans = append([]domain.InvestmentPlan(nil), plans...)
	return nil
}

var _ domain.Adapter = (*Store)(nil)
