package sqlite_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oakline/invest-engine/domain"
	"github.com/oakline/invest-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	s, err := sqlite.New(":memory:", log)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func storedUser() domain.User {
	return domain.User{
		ID: "u1", Email: "u1@example.com", Name: "User One",
		Balance:       domain.Dollars(100.5),
		ProfitBalance: domain.Dollars(0.25),
		TotalInvested: domain.Dollars(50),
		TotalEarned:   domain.Dollars(0),
		CreatedAt:     time.Date(2026, time.January, 15, 10, 0, 0, 0, time.UTC),
	}
}

// =============================================================================
// USERS
// =============================================================================

func TestSQLite_UserRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	missing, err := s.LoadUser(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, missing)

	u := storedUser()
	require.NoError(t, s.SaveUser(ctx, u))

	got, err := s.LoadUser(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, u.Email, got.Email)
	assert.Equal(t, u.Name, got.Name)
	assert.True(t, got.Balance.Equal(u.Balance))
	assert.True(t, got.ProfitBalance.Equal(u.ProfitBalance))
	assert.True(t, got.TotalInvested.Equal(u.TotalInvested))
	assert.True(t, got.CreatedAt.Equal(u.CreatedAt))
}

func TestSQLite_SaveUserUpserts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := storedUser()
	require.NoError(t, s.SaveUser(ctx, u))
	u.Balance = domain.Dollars(42)
	u.IsAdmin = true
	require.NoError(t, s.SaveUser(ctx, u))

	got, err := s.LoadUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "42", got.Balance.String())
	assert.True(t, got.IsAdmin)

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1, "upsert must not duplicate the row")
}

// =============================================================================
// INVESTMENTS
// =============================================================================

func TestSQLite_InvestmentAccrualUpdates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	start := time.Date(2026, time.January, 15, 10, 0, 0, 0, time.UTC)

	inv := domain.Investment{
		ID: "i1", UserID: "u1", PlanID: "starter",
		Amount:      domain.Dollars(50),
		StartDate:   start,
		EndDate:     start.Add(336 * time.Hour),
		HourlyRate:  domain.DeriveHourlyRate(domain.Dollars(30), 336),
		TotalReturn: domain.Dollars(30),
		IsActive:    true,
		LastPayout:  start,
	}
	require.NoError(t, s.SaveInvestment(ctx, inv))

	// Simulate an accrual tick touching only the mutable columns.
	inv.CurrentProfit = domain.Dollars(0.05)
	inv.TotalEarned = domain.Dollars(0.05)
	inv.LastPayout = start.Add(time.Hour)
	require.NoError(t, s.SaveInvestment(ctx, inv))

	list, err := s.LoadInvestments(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "0.05", list[0].CurrentProfit.String())
	assert.Equal(t, start.Add(time.Hour), list[0].LastPayout)
	assert.True(t, list[0].IsActive)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestSQLite_TransactionsInsertOnlyNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"t1", "t2", "t3"} {
		require.NoError(t, s.SaveTransaction(ctx, domain.Transaction{
			ID: id, UserID: "u1", Type: domain.TxDeposit,
			Amount: domain.Dollars(float64(i + 1)), Status: domain.StatusCompleted,
			Description: "Deposit via card",
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		}))
	}

	list, err := s.LoadTransactions(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "t3", list[0].ID)

	dup := domain.Transaction{ID: "t1", UserID: "u1", Type: domain.TxDeposit,
		Amount: domain.Dollars(1), Status: domain.StatusCompleted, CreatedAt: base}
	assert.Error(t, s.SaveTransaction(ctx, dup))
}

// =============================================================================
// PLANS
// =============================================================================

func TestSQLite_SeedPlansOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SeedPlans(ctx, domain.DefaultPlans()))
	require.NoError(t, s.SeedPlans(ctx, domain.DefaultPlans()[:1]))

	plans, err := s.LoadPlans(ctx)
	require.NoError(t, err)
	require.Len(t, plans, 3)

	// Ordered by minimum amount; rates re-derived on load.
	assert.Equal(t, "starter", plans[0].ID)
	assert.Equal(t, "professional", plans[2].ID)
	want := domain.DeriveHourlyRate(plans[0].TotalReturn, plans[0].Duration)
	assert.True(t, plans[0].HourlyRate.Equal(want))
}
