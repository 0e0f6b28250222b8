package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oakline/invest-engine/config"
	"github.com/oakline/invest-engine/domain"
)

func TestLoad_DefaultsAndValidation(t *testing.T) {
	t.Setenv("AUTH_SECRET", "s3cret")
	t.Setenv("PORT", "")
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("TICK_INTERVAL", "")
	t.Setenv("MIN_TICK", "")
	t.Setenv("POSTGRES_DSN", "")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "sqlite", cfg.StoreDriver)
	assert.Equal(t, 10*time.Second, cfg.TickInterval)
	assert.Equal(t, cfg.TickInterval, cfg.MinTick, "min tick defaults to the interval")
}

func TestLoad_Rejections(t *testing.T) {
	t.Run("missing auth secret", func(t *testing.T) {
		t.Setenv("AUTH_SECRET", "")
		_, err := config.Load()
		assert.Error(t, err)
	})
	t.Run("postgres without dsn", func(t *testing.T) {
		t.Setenv("AUTH_SECRET", "s3cret")
		t.Setenv("STORE_DRIVER", "postgres")
		t.Setenv("POSTGRES_DSN", "")
		_, err := config.Load()
		assert.Error(t, err)
	})
	t.Run("unknown driver", func(t *testing.T) {
		t.Setenv("AUTH_SECRET", "s3cret")
		t.Setenv("STORE_DRIVER", "cassandra")
		_, err := config.Load()
		assert.Error(t, err)
	})
	t.Run("bad tick interval", func(t *testing.T) {
		t.Setenv("AUTH_SECRET", "s3cret")
		t.Setenv("STORE_DRIVER", "")
		t.Setenv("TICK_INTERVAL", "fast")
		_, err := config.Load()
		assert.Error(t, err)
	})
}

// =============================================================================
// PLAN FILE
// =============================================================================

func writePlanFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plans.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadPlans_ValidTable(t *testing.T) {
	path := writePlanFile(t, `
[[plans]]
id = "weekly"
name = "Weekly Plan"
min_amount = 5.0
max_amount = 500.0
duration_hours = 168
total_return = 10.0
featured = true
`)

	plans, err := config.LoadPlans(path)
	require.NoError(t, err)
	require.Len(t, plans, 1)

	p := plans[0]
	assert.Equal(t, "weekly", p.ID)
	assert.Equal(t, 168, p.Duration)
	assert.True(t, p.Featured)
	// Rate derived from the table values, never declared in the file.
	want := domain.DeriveHourlyRate(p.TotalReturn, p.Duration)
	assert.True(t, p.HourlyRate.Equal(want))
}

func TestLoadPlans_FailsLoudly(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := config.LoadPlans(filepath.Join(t.TempDir(), "absent.toml"))
		assert.Error(t, err)
	})
	t.Run("empty table", func(t *testing.T) {
		_, err := config.LoadPlans(writePlanFile(t, "# no plans here\n"))
		assert.Error(t, err)
	})
	t.Run("invalid entry", func(t *testing.T) {
		path := writePlanFile(t, `
[[plans]]
id = "broken"
name = "Broken"
min_amount = 100.0
max_amount = 5.0
duration_hours = 24
total_return = 10.0
`)
		_, err := config.LoadPlans(path)
		assert.Error(t, err)
	})
	t.Run("malformed toml", func(t *testing.T) {
		_, err := config.LoadPlans(writePlanFile(t, "plans = [[["))
		assert.Error(t, err)
	})
}
