/*
store.go - Persistence adapter contract

PURPOSE:
  The interface between the state machine and durable storage. The core
  consumes this; implementations live under store/ (memory, sqlite,
  postgres, filecache, failover).

CONTRACT:
  - Loads return the zero value / empty slice when nothing is stored;
    absence is not an error. Load paths run records through the
    validation layer and silently drop rejected ones.
  - Saves are upserts keyed by entity id, except SaveTransaction which is
    insert-only (the audit log is append-only).
  - Save failures never abort an in-memory transition; callers log and
    fall back (see store/failover).
*/
package domain

import "context"

// Adapter persists ledger entities. Implementations must be safe for
// concurrent use: the accrual engine and HTTP handlers share one adapter.
type Adapter interface {
	// LoadUser returns (nil, nil) when the user does not exist.
	LoadUser(ctx context.Context, userID string) (*User, error)
	SaveUser(ctx context.Context, u User) error

	LoadInvestments(ctx context.Context, userID string) ([]Investment, error)
	// SaveInvestment upserts by id.
	SaveInvestment(ctx context.Context, inv Investment) error

	// LoadTransactions returns records ordered newest-first.
	LoadTransactions(ctx context.Context, userID string) ([]Transaction, error)
	// SaveTransaction is insert-only.
	SaveTransaction(ctx context.Context, tx Transaction) error

	LoadPlans(ctx context.Context) ([]InvestmentPlan, error)
	// SeedPlans stores the given plans only if the store holds none.
	SeedPlans(ctx context.Context, plans []InvestmentPlan) error
}
