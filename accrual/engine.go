/*
Package accrual runs the recurring profit tick for the signed-in user's
active investments.

DESIGN:
  - A background goroutine wakes on a fixed interval (default 10s; the
    source of record for each investment is its own lastPayout, so the
    interval only bounds staleness, not correctness).
  - Each wake selects the current user's active investments, advances
    each one via domain.ComputeTick, and emits one UpdateInvestment per
    changed investment plus a single UpsertUser crediting the summed
    (capped) profit delta to the user's profit balance. The whole pass
    runs inside the ledger's atomic Update, so a deposit or sweep can
    never land between the tick's read and its write and be clobbered.
  - Malformed investments are already excluded upstream (validation on
    load and on every reducer action); a tick that fails its sanity
    bounds is skipped silently. The loop never stops on its own.
  - Stop tears the ticker down; running it past sign-out would tick
    against a stale or absent user.

CONFIGURATION:
  Interval: how often to wake (default 10s)
  MinTick:  minimum elapsed time before an investment is advanced
            (default = Interval)
*/
package accrual

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oakline/invest-engine/domain"
)

const DefaultInterval = 10 * time.Second

// Ledger is the slice of wallet.Session the engine needs: one atomic
// compute-and-apply pass over the snapshot.
type Ledger interface {
	Update(ctx context.Context, fn func(domain.Snapshot) []domain.Action)
}

type Engine struct {
	Ledger   Ledger
	Interval time.Duration
	MinTick  time.Duration
	Log      *logrus.Logger

	now    func() time.Time
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

func NewEngine(ledger Ledger, log *logrus.Logger) *Engine {
	return &Engine{
		Ledger:   ledger,
		Interval: DefaultInterval,
		MinTick:  DefaultInterval,
		Log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock injects a deterministic clock (tests).
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Start begins ticking. Idempotent: a second Start while running is a no-op.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.ticker != nil {
		return
	}
	e.ticker = time.NewTicker(e.Interval)
	e.stop = make(chan struct{})
	e.wg.Add(1)
	go e.run()

	e.Log.WithField("interval", e.Interval).Info("accrual engine started")
}

// Stop cancels the timer and waits for an in-flight tick to finish.
// Must be called on sign-out and on shutdown.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.ticker == nil {
		return
	}
	e.ticker.Stop()
	close(e.stop)
	e.wg.Wait()
	e.ticker = nil

	e.Log.Info("accrual engine stopped")
}

func (e *Engine) run() {
	defer e.wg.Done()
	for {
		select {
		case <-e.ticker.C:
			e.RunOnce(context.Background())
		case <-e.stop:
			return
		}
	}
}

// RunOnce performs a single accrual pass. Exported for tests and for an
// immediate pass right after sign-in. The pass reads and writes through
// one Ledger.Update call: the user credit is computed against the same
// snapshot the actions apply to, under the session lock.
func (e *Engine) RunOnce(ctx context.Context) {
	now := e.now()
	totalDelta := domain.Dollars(0)
	advanced := 0
	matured := 0

	e.Ledger.Update(ctx, func(snap domain.Snapshot) []domain.Action {
		if snap.CurrentUser == nil {
			return nil
		}
		user := *snap.CurrentUser

		var actions []domain.Action
		for _, inv := range snap.ActiveInvestments(user.ID) {
			result, ok := domain.ComputeTick(inv, now, e.MinTick)
			if !ok {
				continue
			}
			actions = append(actions, domain.UpdateInvestment{Investment: result.Investment})
			totalDelta = totalDelta.Add(result.ProfitDelta)
			advanced++
			if result.Matured {
				matured++
			}
		}
		if advanced == 0 {
			return nil
		}

		// One user credit per tick, covering every advanced investment.
		if totalDelta.IsPositive() {
			user.ProfitBalance = user.ProfitBalance.Add(totalDelta)
			actions = append(actions, domain.UpsertUser{User: user})
		}
		return actions
	})

	if advanced == 0 {
		return
	}

	e.Log.WithFields(logrus.Fields{
		"investments": advanced,
		"profit":      totalDelta.String(),
		"matured":     matured,
	}).Debug("accrual tick applied")
}
