package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oakline/invest-engine/domain"
	"github.com/oakline/invest-engine/store/memory"
)

func TestMemory_UserRoundTrip(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	missing, err := s.LoadUser(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, missing, "unknown user loads as nil, nil")

	u := domain.User{ID: "u1", Email: "u1@example.com", Balance: domain.Dollars(100),
		CreatedAt: time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, s.SaveUser(ctx, u))

	got, err := s.LoadUser(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, u, *got)

	u.Balance = domain.Dollars(50)
	require.NoError(t, s.SaveUser(ctx, u))
	got, _ = s.LoadUser(ctx, "u1")
	assert.Equal(t, "50", got.Balance.String())
}

func TestMemory_InvestmentUpsert(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	inv := domain.Investment{ID: "i1", UserID: "u1", Amount: domain.Dollars(50), IsActive: true}
	require.NoError(t, s.SaveInvestment(ctx, inv))

	inv.IsActive = false
	inv.CanWithdraw = true
	require.NoError(t, s.SaveInvestment(ctx, inv))

	list, err := s.LoadInvestments(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].CanWithdraw)
}

func TestMemory_TransactionsNewestFirstAndInsertOnly(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	base := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"t1", "t2", "t3"} {
		tx := domain.Transaction{
			ID: id, UserID: "u1", Type: domain.TxDeposit,
			Amount: domain.Dollars(1), Status: domain.StatusCompleted,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, s.SaveTransaction(ctx, tx))
	}

	list, err := s.LoadTransactions(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "t3", list[0].ID)
	assert.Equal(t, "t1", list[2].ID)

	dup := domain.Transaction{ID: "t2", UserID: "u1", Type: domain.TxDeposit,
		Amount: domain.Dollars(1), Status: domain.StatusCompleted, CreatedAt: base}
	assert.Error(t, s.SaveTransaction(ctx, dup), "audit log is insert-only")
}

func TestMemory_SeedPlansOnlyWhenEmpty(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	require.NoError(t, s.SeedPlans(ctx, domain.DefaultPlans()))
	require.NoError(t, s.SeedPlans(ctx, []domain.InvestmentPlan{{ID: "other"}}))

	plans, err := s.LoadPlans(ctx)
	require.NoError(t, err)
	assert.Len(t, plans, 3, "second seed must not replace the table")
}

func TestMemory_ListUsersSorted(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	for _, id := range []string{"c", "a", "b"} {
		require.NoError(t, s.SaveUser(ctx, domain.User{ID: id}))
	}

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 3)
	assert.Equal(t, "a", users[0].ID)
	assert.Equal(t, "c", users[2].ID)
}
