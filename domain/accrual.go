/*
accrual.go - Per-investment profit tick computation

The accrual engine's loop lives in the accrual package; the math lives
here so it can be tested against a fixed clock. One tick advances one
investment's profit proportionally to wall-clock time since its last
payout:

  hourlyProfit    = amount * hourlyRate / 100
  profitPerSecond = hourlyProfit / 3600
  increment       = profitPerSecond * secondsElapsed

capped so that CurrentProfit never exceeds amount * totalReturn / 100,
and flipping the investment to matured exactly once when the end date
passes or the cap is reached.
*/
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TickResult is the outcome of advancing one investment by one tick.
type TickResult struct {
	Investment  Investment      // updated copy
	ProfitDelta decimal.Decimal // capped credit to the user's profit balance
	Matured     bool
}

// ComputeTick advances inv to now. The second return is false when the
// tick is a no-op: the investment is inactive, the elapsed time is under
// minTick, or the raw increment fails the sanity bound (increment <= 0 or
// increment >= principal, which only happens under clock manipulation or
// corrupted rates). An investment found past its end date matures
// regardless of the bound: accrual is clamped at the end date, so a long
// engine outage pays out at most the remaining pre-maturity time and the
// investment still flips to withdrawable.
func ComputeTick(inv Investment, now time.Time, minTick time.Duration) (TickResult, bool) {
	if !inv.IsActive {
		return TickResult{}, false
	}

	elapsed := now.Sub(inv.LastPayout)
	if elapsed < minTick {
		return TickResult{}, false
	}

	calendarMatured := !now.Before(inv.EndDate)
	if calendarMatured {
		// No accrual for time past the end date.
		if cutoff := inv.EndDate.Sub(inv.LastPayout); cutoff < elapsed {
			elapsed = cutoff
		}
		if elapsed < 0 {
			elapsed = 0
		}
	}

	seconds := decimal.NewFromInt(int64(elapsed / time.Second))
	hourlyProfit := inv.Amount.Mul(inv.HourlyRate).Div(hundred)
	increment := hourlyProfit.Div(secondsPerHour).Mul(seconds)

	if !increment.IsPositive() || increment.GreaterThanOrEqual(inv.Amount) {
		if !calendarMatured {
			return TickResult{}, false
		}
		increment = decimal.Zero
	}

	maxProfit := inv.MaxProfit()
	newProfit := inv.CurrentProfit.Add(increment)
	capped := decimal.Min(newProfit, maxProfit)
	delta := capped.Sub(inv.CurrentProfit)
	if delta.IsNegative() {
		delta = decimal.Zero
	}

	matured := calendarMatured || newProfit.GreaterThanOrEqual(maxProfit)

	next := inv
	next.CurrentProfit = capped
	next.TotalEarned = capped
	next.LastPayout = now
	next.CanWithdraw = matured
	next.IsActive = !matured

	return TickResult{Investment: next, ProfitDelta: delta, Matured: matured}, true
}
