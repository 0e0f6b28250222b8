/*
Package wallet owns the in-memory snapshot for the signed-in session and
exposes the ledger-affecting operations (deposit, withdraw, invest,
sweep profit).

ARCHITECTURE:
  The domain reducer is pure; this package is where its side effects
  live. Dispatch applies actions to the snapshot under a mutex, then
  mirrors each mutation to the persistence adapter. The mirror is
  fire-and-forget relative to the snapshot: a persistence failure is
  logged (and absorbed by the failover adapter), never rolled back,
  because the in-memory transition has already committed. The worst
  failure mode is losing the most recent unsynced tick, not a crash and
  not a half-applied snapshot.

ORDERING:
  Every mutation, user-triggered or engine-triggered, goes through
  Update, which computes its actions against the snapshot and applies
  them under one lock. The accrual engine's tick and a concurrent
  dispatcher therefore serialize as whole read-modify-write units;
  neither can clobber the other's write with a stale absolute user.
*/
package wallet

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/oakline/invest-engine/domain"
)

// Session holds the canonical snapshot for one signed-in user.
type Session struct {
	mu    sync.RWMutex
	snap  domain.Snapshot
	store domain.Adapter
	log   *logrus.Logger

	now   func() time.Time
	newID func() string
}

type Option func(*Session)

// WithClock injects a deterministic clock (tests).
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithIDGenerator injects a deterministic id source (tests).
func WithIDGenerator(gen func() string) Option {
	return func(s *Session) { s.newID = gen }
}

func NewSession(store domain.Adapter, log *logrus.Logger, opts ...Option) *Session {
	s := &Session{
		store: store,
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot returns the current state. The returned value is safe to keep:
// transitions are copy-on-write.
func (s *Session) Snapshot() domain.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// CurrentUser returns the signed-in user, or nil.
func (s *Session) CurrentUser() *domain.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.CurrentUser
}

// Update runs fn against the current snapshot and applies the returned
// actions while still holding the lock, making the compute-then-apply
// pair atomic. Anything that derives new state from existing state (a
// dispatcher's balance math, the accrual engine's tick) must go through
// here; a bare read-then-Dispatch can lose a concurrent write.
// Mirroring to the persistence adapter happens after the lock drops.
func (s *Session) Update(ctx context.Context, fn func(domain.Snapshot) []domain.Action) {
	s.mu.Lock()
	actions := fn(s.snap)
	for _, a := range actions {
		s.snap = domain.Reduce(s.snap, a)
	}
	s.mu.Unlock()

	for _, a := range actions {
		s.mirror(ctx, a)
	}
}

// Dispatch applies fixed actions in order. For actions computed from a
// snapshot read, use Update instead.
func (s *Session) Dispatch(ctx context.Context, actions ...domain.Action) {
	s.Update(ctx, func(domain.Snapshot) []domain.Action { return actions })
}

// mirror persists the entity carried by a mutating action. Wholesale SetX
// actions come FROM the store and are not written back.
func (s *Session) mirror(ctx context.Context, action domain.Action) {
	var err error
	switch a := action.(type) {
	case domain.UpsertUser:
		err = s.store.SaveUser(ctx, a.User)
	case domain.AddInvestment:
		err = s.store.SaveInvestment(ctx, a.Investment)
	case domain.UpdateInvestment:
		err = s.store.SaveInvestment(ctx, a.Investment)
	case domain.AddTransaction:
		err = s.store.SaveTransaction(ctx, a.Transaction)
	}
	if err != nil {
		s.log.WithError(err).Warn("persistence mirror failed, snapshot remains authoritative")
	}
}

// =============================================================================
// SESSION LIFECYCLE
// =============================================================================

// SignIn loads (or creates, with the starting bonus) the user identified
// by the external identity provider and hydrates the snapshot with the
// user's investments, transactions, and the process-wide plan table.
func (s *Session) SignIn(ctx context.Context, userID, email, name string) (*domain.User, error) {
	u, err := s.store.LoadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		created := domain.User{
			ID:        userID,
			Email:     email,
			Name:      name,
			Balance:   domain.StartingBonus,
			CreatedAt: s.now(),
		}
		normalized, nerr := domain.NormalizeUser(created)
		if nerr != nil {
			return nil, nerr
		}
		if serr := s.store.SaveUser(ctx, normalized); serr != nil {
			s.log.WithError(serr).Warn("persistence mirror failed, snapshot remains authoritative")
		}
		u = &normalized
		s.log.WithFields(logrus.Fields{"user_id": userID, "bonus": domain.StartingBonus.String()}).
			Info("created user with starting bonus")
	}

	plans, err := s.loadPlans(ctx)
	if err != nil {
		return nil, err
	}
	investments, err := s.store.LoadInvestments(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	transactions, err := s.store.LoadTransactions(ctx, u.ID)
	if err != nil {
		return nil, err
	}

	s.Dispatch(ctx,
		domain.SetInvestmentPlans{Plans: plans},
		domain.UpsertUser{User: *u},
		domain.SetCurrentUser{User: u},
		domain.SetInvestments{Investments: investments},
		domain.SetTransactions{Transactions: transactions},
	)
	return u, nil
}

// loadPlans returns the stored plan table, seeding the defaults first if
// the store holds none.
func (s *Session) loadPlans(ctx context.Context) ([]domain.InvestmentPlan, error) {
	plans, err := s.store.LoadPlans(ctx)
	if err != nil {
		return nil, err
	}
	if len(plans) == 0 {
		if err := s.store.SeedPlans(ctx, domain.DefaultPlans()); err != nil {
			return nil, err
		}
		return s.store.LoadPlans(ctx)
	}
	return plans, nil
}

// SignOut clears the session pointer. Collections stay: plans are
// process-wide and a later sign-in reloads per-user data anyway.
func (s *Session) SignOut(ctx context.Context) {
	s.Dispatch(ctx, domain.Logout{})
}
