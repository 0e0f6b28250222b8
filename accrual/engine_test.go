package accrual_test

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oakline/invest-engine/accrual"
	"github.com/oakline/invest-engine/domain"
	"github.com/oakline/invest-engine/store/memory"
	"github.com/oakline/invest-engine/wallet"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var engineStart = time.Date(2026, time.April, 1, 8, 0, 0, 0, time.UTC)

// fakeLedger applies emitted actions straight through the reducer,
// holding its lock across compute and apply like wallet.Session does.
type fakeLedger struct {
	mu   sync.Mutex
	snap domain.Snapshot
}

func (f *fakeLedger) Snapshot() domain.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func (f *fakeLedger) Update(_ context.Context, fn func(domain.Snapshot) []domain.Action) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range fn(f.snap) {
		f.snap = domain.Reduce(f.snap, a)
	}
}

func (f *fakeLedger) apply(actions ...domain.Action) {
	f.Update(context.Background(), func(domain.Snapshot) []domain.Action { return actions })
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func ledgerWith(user domain.User, invs ...domain.Investment) *fakeLedger {
	f := &fakeLedger{}
	f.apply(domain.UpsertUser{User: user})
	f.apply(domain.SetCurrentUser{User: &user})
	for _, inv := range invs {
		f.apply(domain.AddInvestment{Investment: inv})
	}
	return f
}

func engineUser() domain.User {
	return domain.User{
		ID: "u1", Email: "u1@example.com", Name: "User One",
		Balance:   domain.Dollars(100),
		CreatedAt: engineStart,
	}
}

func activeInvestment(id string, amount float64) domain.Investment {
	return domain.Investment{
		ID:          id,
		UserID:      "u1",
		PlanID:      "custom",
		Amount:      domain.Dollars(amount),
		StartDate:   engineStart,
		EndDate:     engineStart.Add(200 * time.Hour),
		HourlyRate:  domain.Dollars(0.1),
		TotalReturn: domain.Dollars(20),
		IsActive:    true,
		LastPayout:  engineStart,
	}
}

// =============================================================================
// SINGLE PASS
// =============================================================================

func TestRunOnce_CreditsSummedDeltaOnce(t *testing.T) {
	// GIVEN: two active investments, one hour behind
	// WHEN: a single pass runs
	// THEN: both advance and the user's profit balance gets ONE credit
	//       equal to the summed deltas
	ledger := ledgerWith(engineUser(),
		activeInvestment("a", 3600), // 3.6/hour
		activeInvestment("b", 7200), // 7.2/hour
	)

	e := accrual.NewEngine(ledger, quietLogger()).
		WithClock(func() time.Time { return engineStart.Add(time.Hour) })
	e.MinTick = 10 * time.Second

	e.RunOnce(context.Background())

	snap := ledger.Snapshot()
	a := snap.InvestmentByID("a")
	b := snap.InvestmentByID("b")
	require.NotNil(t, a)
	require.NotNil(t, b)
	assert.Equal(t, "3.6", a.CurrentProfit.String())
	assert.Equal(t, "7.2", b.CurrentProfit.String())
	assert.Equal(t, engineStart.Add(time.Hour), a.LastPayout)

	require.NotNil(t, snap.CurrentUser)
	assert.Equal(t, "10.8", snap.CurrentUser.ProfitBalance.String())
	assert.Equal(t, "100", snap.CurrentUser.Balance.String(), "spendable balance untouched")
}

func TestRunOnce_NoSessionIsNoOp(t *testing.T) {
	ledger := &fakeLedger{}
	ledger.apply(domain.AddInvestment{Investment: activeInvestment("a", 3600)})

	e := accrual.NewEngine(ledger, quietLogger()).
		WithClock(func() time.Time { return engineStart.Add(time.Hour) })
	e.RunOnce(context.Background())

	inv := ledger.Snapshot().InvestmentByID("a")
	require.NotNil(t, inv)
	assert.True(t, inv.CurrentProfit.IsZero())
}

func TestRunOnce_UnderMinTickIsNoOp(t *testing.T) {
	ledger := ledgerWith(engineUser(), activeInvestment("a", 3600))

	e := accrual.NewEngine(ledger, quietLogger()).
		WithClock(func() time.Time { return engineStart.Add(3 * time.Second) })
	e.MinTick = 10 * time.Second

	e.RunOnce(context.Background())

	assert.True(t, ledger.Snapshot().InvestmentByID("a").CurrentProfit.IsZero())
	assert.True(t, ledger.Snapshot().CurrentUser.ProfitBalance.IsZero())
}

func TestRunOnce_MaturedInvestmentLeavesAccrual(t *testing.T) {
	// Cap for 50 at 20% is 10; profit sits at 9.99 so this pass caps out.
	inv := activeInvestment("a", 50)
	inv.CurrentProfit = domain.Dollars(9.99)
	ledger := ledgerWith(engineUser(), inv)

	e := accrual.NewEngine(ledger, quietLogger()).
		WithClock(func() time.Time { return engineStart.Add(time.Hour) })
	e.MinTick = 10 * time.Second

	e.RunOnce(context.Background())

	got := ledger.Snapshot().InvestmentByID("a")
	assert.False(t, got.IsActive)
	assert.True(t, got.CanWithdraw)
	assert.Equal(t, "10", got.CurrentProfit.String())
	assert.Equal(t, "0.01", ledger.Snapshot().CurrentUser.ProfitBalance.String())

	// Next pass: nothing active, state frozen.
	e.WithClock(func() time.Time { return engineStart.Add(2 * time.Hour) })
	e.RunOnce(context.Background())
	assert.Equal(t, "10", ledger.Snapshot().InvestmentByID("a").CurrentProfit.String())
	assert.Equal(t, "0.01", ledger.Snapshot().CurrentUser.ProfitBalance.String())
}

// =============================================================================
// LIFECYCLE
// =============================================================================

func TestEngine_StartStopIdempotent(t *testing.T) {
	ledger := ledgerWith(engineUser())
	e := accrual.NewEngine(ledger, quietLogger())
	e.Interval = 50 * time.Millisecond

	e.Start()
	e.Start() // second start is a no-op
	e.Stop()
	e.Stop() // second stop is a no-op
}

func TestEngine_TicksWhileRunning(t *testing.T) {
	ledger := ledgerWith(engineUser(), activeInvestment("a", 3600))

	clock := engineStart
	var mu sync.Mutex
	e := accrual.NewEngine(ledger, quietLogger()).WithClock(func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		clock = clock.Add(time.Hour)
		return clock
	})
	e.Interval = 20 * time.Millisecond
	e.MinTick = time.Second

	e.Start()
	assert.Eventually(t, func() bool {
		return ledger.Snapshot().CurrentUser.ProfitBalance.IsPositive()
	}, 2*time.Second, 10*time.Millisecond)
	e.Stop()
}

// =============================================================================
// INTERLEAVING WITH DISPATCHERS
// =============================================================================

func TestRunOnce_ConcurrentDepositsSurviveTick(t *testing.T) {
	// GIVEN: a real session with one active investment and an engine pass
	//        racing a burst of deposits
	// WHEN: the pass and the deposits run concurrently
	// THEN: every deposit lands (none is clobbered by the tick's user
	//       write) and the tick's profit credit lands exactly once
	session := wallet.NewSession(memory.New(), quietLogger(),
		wallet.WithClock(func() time.Time { return engineStart }))
	_, err := session.SignIn(context.Background(), "u1", "u1@example.com", "User One")
	require.NoError(t, err)
	session.Dispatch(context.Background(), domain.AddInvestment{Investment: activeInvestment("a", 3600)})

	e := accrual.NewEngine(session, quietLogger()).
		WithClock(func() time.Time { return engineStart.Add(time.Hour) })
	e.MinTick = 10 * time.Second

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		e.RunOnce(context.Background())
	}()
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, derr := session.Deposit(context.Background(), domain.Dollars(10), "card")
			assert.NoError(t, derr)
		}()
	}
	wg.Wait()

	user := session.CurrentUser()
	require.NotNil(t, user)
	assert.Equal(t, "200", user.Balance.String(), "100 bonus + 10 deposits of 10")
	assert.Equal(t, "3.6", user.ProfitBalance.String(), "one hour on 3600 at 0.1%/h")
}
