/*
Package domain contains the ledger entities and the state machine that
drives the investment platform: users, plans, investments, transactions,
the validation layer, the pure reducer, and the accrual tick math.

KEY CONCEPTS IN THIS FILE (types.go):
  - User: identity plus ledger balances (spendable, accrued profit, lifetime totals)
  - InvestmentPlan: a rate-table entry (bounds, duration, total return)
  - Investment: one purchase of a plan, accruing profit until maturity
  - Transaction: append-only audit record of every ledger-affecting action

DESIGN PRINCIPLES:
  1. Precision: all money and rates use decimal.Decimal, never float64
  2. Immutability: entities are values; the reducer replaces, never mutates
  3. Single authority: plan duration + total return are authoritative,
     the hourly rate is derived from them

SEE ALSO:
  - validate.go: Parse-or-reject normalization of untrusted records
  - reducer.go: The only place state changes
  - accrual.go: Per-investment profit tick computation
*/
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY HELPERS
// =============================================================================

// Dollars builds a decimal amount from a float literal. Test and seed
// convenience; runtime amounts arrive as decimals already.
func Dollars(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

var (
	hundred        = decimal.NewFromInt(100)
	secondsPerHour = decimal.NewFromInt(3600)
)

// =============================================================================
// USER - Identity plus ledger balances
// =============================================================================

// User is created on first sign-in with a fixed starting bonus and is
// never deleted. Invariants: Balance >= 0, ProfitBalance >= 0,
// TotalInvested and TotalEarned are monotonically non-decreasing.
type User struct {
	ID            string // externally issued, stable
	Email         string
	Name          string
	Balance       decimal.Decimal // spendable
	ProfitBalance decimal.Decimal // accrued but unswept
	TotalInvested decimal.Decimal
	TotalEarned   decimal.Decimal // swept profit only
	IsAdmin       bool
	CreatedAt     time.Time
}

// StartingBonus is credited to every user on first sign-in.
var StartingBonus = Dollars(100)

// =============================================================================
// INVESTMENT PLAN - Rate-table entry, static after seeding
// =============================================================================

type InvestmentPlan struct {
	ID          string
	Name        string
	MinAmount   decimal.Decimal
	MaxAmount   decimal.Decimal
	HourlyRate  decimal.Decimal // percent of principal per hour, derived
	Duration    int             // hours until maturity
	TotalReturn decimal.Decimal // percent of principal at maturity
	Featured    bool
}

// DeriveHourlyRate returns totalReturn/duration. Duration and total return
// are the authoritative pair; stored hourly rates are recomputed from them
// on load so inconsistent seed data cannot skew accrual.
func DeriveHourlyRate(totalReturn decimal.Decimal, durationHours int) decimal.Decimal {
	if durationHours <= 0 {
		return decimal.Zero
	}
	return totalReturn.Div(decimal.NewFromInt(int64(durationHours)))
}

// =============================================================================
// INVESTMENT - One purchase of a plan
// =============================================================================

// Investment transitions active -> matured exactly once: when CanWithdraw
// flips to true, IsActive must be false and never flips back.
type Investment struct {
	ID            string
	UserID        string
	PlanID        string
	Amount        decimal.Decimal // principal
	StartDate     time.Time
	EndDate       time.Time       // StartDate + plan duration
	HourlyRate    decimal.Decimal // copied from plan at purchase
	TotalReturn   decimal.Decimal // copied from plan at purchase
	CurrentProfit decimal.Decimal // accrued, capped at MaxProfit
	TotalEarned   decimal.Decimal // mirrors CurrentProfit until sweep
	IsActive      bool
	CanWithdraw   bool
	LastPayout    time.Time // last accrual tick
}

// MaxProfit is the hard cap on accrued profit: amount * totalReturn / 100.
func (inv Investment) MaxProfit() decimal.Decimal {
	return inv.Amount.Mul(inv.TotalReturn).Div(hundred)
}

// Matured reports whether the investment has reached its end date or its
// profit cap as of now.
func (inv Investment) Matured(now time.Time) bool {
	return !now.Before(inv.EndDate) || inv.CurrentProfit.GreaterThanOrEqual(inv.MaxProfit())
}

// =============================================================================
// TRANSACTION - Append-only audit record
// =============================================================================

type TransactionType string

const (
	TxDeposit    TransactionType = "deposit"
	TxWithdrawal TransactionType = "withdrawal"
	TxInvestment TransactionType = "investment"
	TxProfit     TransactionType = "profit"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TxDeposit, TxWithdrawal, TxInvestment, TxProfit:
		return true
	}
	return false
}

type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusCompleted TransactionStatus = "completed"
	StatusFailed    TransactionStatus = "failed"
)

func (s TransactionStatus) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Transaction records are never mutated after append, except an external
// reconciler moving a withdrawal from pending to completed/failed.
type Transaction struct {
	ID          string
	UserID      string
	Type        TransactionType
	Amount      decimal.Decimal
	Status      TransactionStatus
	Description string
	CreatedAt   time.Time
}
