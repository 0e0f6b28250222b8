package failover_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oakline/invest-engine/domain"
	"github.com/oakline/invest-engine/store/failover"
	"github.com/oakline/invest-engine/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var errDown = errors.New("connection refused")

// flakyStore wraps a working adapter and fails every call while down.
type flakyStore struct {
	domain.Adapter
	down bool
}

func (f *flakyStore) LoadUser(ctx context.Context, id string) (*domain.User, error) {
	if f.down {
		return nil, errDown
	}
	return f.Adapter.LoadUser(ctx, id)
}

func (f *flakyStore) SaveUser(ctx context.Context, u domain.User) error {
	if f.down {
		return errDown
	}
	return f.Adapter.SaveUser(ctx, u)
}

func (f *flakyStore) LoadInvestments(ctx context.Context, id string) ([]domain.Investment, error) {
	if f.down {
		return nil, errDown
	}
	return f.Adapter.LoadInvestments(ctx, id)
}

func (f *flakyStore) LoadPlans(ctx context.Context) ([]domain.InvestmentPlan, error) {
	if f.down {
		return nil, errDown
	}
	return f.Adapter.LoadPlans(ctx)
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func testUser(balance float64) domain.User {
	return domain.User{
		ID: "u1", Email: "u1@example.com", Name: "User One",
		Balance:   domain.Dollars(balance),
		CreatedAt: time.Date(2026, time.January, 15, 10, 0, 0, 0, time.UTC),
	}
}

// =============================================================================
// READ FALLBACK
// =============================================================================

func TestFailover_ReadFallsBackToCache(t *testing.T) {
	// GIVEN: a user saved while the durable store was healthy
	durable := &flakyStore{Adapter: memory.New()}
	cache := memory.New()
	s := failover.New(durable, cache, quietLogger())
	ctx := context.Background()

	require.NoError(t, s.SaveUser(ctx, testUser(100)))

	// WHEN: the durable store goes away
	durable.down = true

	// THEN: reads answer from the cache with the same shape
	got, err := s.LoadUser(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "100", got.Balance.String())
}

func TestFailover_SuccessfulReadWarmsCache(t *testing.T) {
	// GIVEN: data that only the durable store holds
	inner := memory.New()
	durable := &flakyStore{Adapter: inner}
	cache := memory.New()
	s := failover.New(durable, cache, quietLogger())
	ctx := context.Background()

	require.NoError(t, inner.SaveUser(ctx, testUser(42)))

	// WHEN: one healthy read goes through the wrapper
	_, err := s.LoadUser(ctx, "u1")
	require.NoError(t, err)

	// THEN: the cache can answer alone afterwards
	durable.down = true
	got, err := s.LoadUser(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "42", got.Balance.String())
}

func TestFailover_PlansFallBack(t *testing.T) {
	durable := &flakyStore{Adapter: memory.New()}
	cache := memory.New()
	s := failover.New(durable, cache, quietLogger())
	ctx := context.Background()

	require.NoError(t, s.SeedPlans(ctx, domain.DefaultPlans()))
	durable.down = true

	plans, err := s.LoadPlans(ctx)
	require.NoError(t, err)
	assert.Len(t, plans, 3)
}

// =============================================================================
// WRITE ABSORPTION
// =============================================================================

func TestFailover_WriteAbsorbsDurableFailure(t *testing.T) {
	// GIVEN: the durable store is already down
	inner := memory.New()
	durable := &flakyStore{Adapter: inner, down: true}
	cache := memory.New()
	s := failover.New(durable, cache, quietLogger())
	ctx := context.Background()

	// WHEN: a write happens
	err := s.SaveUser(ctx, testUser(75))

	// THEN: no error surfaces and the cache holds the value
	require.NoError(t, err)
	got, err := cache.LoadUser(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "75", got.Balance.String())

	// The durable store never saw it.
	missing, err := inner.LoadUser(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestFailover_RecoversWhenStoreReturns(t *testing.T) {
	durable := &flakyStore{Adapter: memory.New(), down: true}
	cache := memory.New()
	s := failover.New(durable, cache, quietLogger())
	ctx := context.Background()

	require.NoError(t, s.SaveUser(ctx, testUser(75)))

	// No circuit breaker: the moment the store answers again, writes land.
	durable.down = false
	require.NoError(t, s.SaveUser(ctx, testUser(80)))

	got, err := durable.Adapter.LoadUser(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "80", got.Balance.String())
}
