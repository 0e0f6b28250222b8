/*
Package failover composes a durable Adapter with a local cache Adapter.

FALLBACK CONTRACT:
  - Reads try the durable store first; on error the cache answers with
    the same return shapes, so callers never see the degradation.
  - Writes go to both. A durable-store failure is logged and absorbed
    (the in-memory snapshot already committed); the cache write keeps the
    session recoverable. A cache failure with a healthy durable store is
    only logged.
  - Successful durable reads are mirrored into the cache so the cache is
    warm when the store goes away mid-session.

There is no health probe or circuit breaker: every call pays the durable
attempt. Acceptable for a single-session workload, and it means recovery
is automatic the moment the store is reachable again.
*/
package failover

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/oakline/invest-engine/domain"
)

type Store struct {
	durable domain.Adapter
	cache   domain.Adapter
	log     *logrus.Logger
}

func New(durable, cache domain.Adapter, log *logrus.Logger) *Store {
	return &Store{durable: durable, cache: cache, log: log}
}

func (s *Store) degraded(op string, err error) {
	s.log.WithError(err).WithField("op", op).Warn("durable store unavailable, using local cache")
}

// =============================================================================
// READS - durable first, cache on failure, mirror on success
// =============================================================================

func (s *Store) LoadUser(ctx context.Context, userID string) (*domain.User, error) {
	u, err := s.durable.LoadUser(ctx, userID)
	if err != nil {
		s.degraded("load_user", err)
		return s.cache.LoadUser(ctx, userID)
	}
	if u != nil {
		if cerr := s.cache.SaveUser(ctx, *u); cerr != nil {
			s.log.WithError(cerr).Warn("cache mirror failed")
		}
	}
	return u, nil
}

func (s *Store) LoadInvestments(ctx context.Context, userID string) ([]domain.Investment, error) {
	invs, err := s.durable.LoadInvestments(ctx, userID)
	if err != nil {
		s.degraded("load_investments", err)
		return s.cache.LoadInvestments(ctx, userID)
	}
	for _, inv := range invs {
		if cerr := s.cache.SaveInvestment(ctx, inv); cerr != nil {
			s.log.WithError(cerr).Warn("cache mirror failed")
			break
		}
	}
	return invs, nil
}

func (s *Store) LoadTransactions(ctx context.Context, userID string) ([]domain.Transaction, error) {
	txs, err := s.durable.LoadTransactions(ctx, userID)
	if err != nil {
		s.degraded("load_transactions", err)
		return s.cache.LoadTransactions(ctx, userID)
	}
	for _, tx := range txs {
		// Insert-only target: an already-mirrored transaction errors, which
		// is fine to stop on since older entries were mirrored earlier.
		if cerr := s.cache.SaveTransaction(ctx, tx); cerr != nil {
			break
		}
	}
	return txs, nil
}

func (s *Store) LoadPlans(ctx context.Context) ([]domain.InvestmentPlan, error) {
	plans, err := s.durable.LoadPlans(ctx)
	if err != nil {
		s.degraded("load_plans", err)
		return s.cache.LoadPlans(ctx)
	}
	if mp, ok := s.cache.(interface {
		MirrorPlans([]domain.InvestmentPlan) error
	}); ok && len(plans) > 0 {
		if cerr := mp.MirrorPlans(plans); cerr != nil {
			s.log.WithError(cerr).Warn("cache mirror failed")
		}
	}
	return plans, nil
}

// ListUsers serves the admin read model straight from the durable store.
// The cache only holds the local user, so there is no fallback.
func (s *Store) ListUsers(ctx context.Context) ([]domain.User, error) {
	lister, ok := s.durable.(interface {
		ListUsers(ctx context.Context) ([]domain.User, error)
	})
	if !ok {
		return nil, domain.ErrPersistenceUnavailable
	}
	return lister.ListUsers(ctx)
}

// =============================================================================
// WRITES - both stores, durable failures absorbed
// =============================================================================

func (s *Store) SaveUser(ctx context.Context, u domain.User) error {
	if err := s.durable.SaveUser(ctx, u); err != nil {
		s.degraded("save_user", err)
	}
	return s.cache.SaveUser(ctx, u)
}

func (s *Store) SaveInvestment(ctx context.Context, inv domain.Investment) error {
	if err := s.durable.SaveInvestment(ctx, inv); err != nil {
		s.degraded("save_investment", err)
	}
	return s.cache.SaveInvestment(ctx, inv)
}

func (s *Store) SaveTransaction(ctx context.Context, tx domain.Transaction) error {
	if err := s.durable.SaveTransaction(ctx, tx); err != nil {
		s.degraded("save_transaction", err)
	}
	return s.cache.SaveTransaction(ctx, tx)
}

func (s *Store) SeedPlans(ctx context.Context, plans []domain.InvestmentPlan) error {
	if err := s.durable.SeedPlans(ctx, plans); err != nil {
		s.degraded("seed_plans", err)
	}
	return s.cache.SeedPlans(ctx, plans)
}

var _ domain.Adapter = (*Store)(nil)
