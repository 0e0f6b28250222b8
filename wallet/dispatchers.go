/*
dispatchers.go - The four ledger-affecting operations

Each operation is a request/validate/emit triple: check preconditions
against the current snapshot, then emit reducer actions plus the
matching audit transaction. The triple runs inside Session.Update, so
the precondition read and the apply are one atomic unit with respect to
the accrual engine and other callers. Preconditions are re-checked on
every call, so re-invoking with exhausted preconditions (insufficient
balance, wrong investment state) is rejected rather than double-applied.
*/
package wallet

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/oakline/invest-engine/domain"
)

var (
	// MinDeposit is plan-independent.
	MinDeposit = domain.Dollars(1)
	// MinWithdrawal matches the externally advertised floor.
	MinWithdrawal = domain.Dollars(10)
)

// Deposit credits the spendable balance and records a completed
// transaction.
func (s *Session) Deposit(ctx context.Context, amount decimal.Decimal, method string) (domain.Transaction, error) {
	var (
		tx    domain.Transaction
		opErr error
	)
	s.Update(ctx, func(snap domain.Snapshot) []domain.Action {
		user := snap.CurrentUser
		if user == nil {
			opErr = domain.ErrNoSession
			return nil
		}
		if !amount.IsPositive() || amount.LessThan(MinDeposit) {
			opErr = &domain.OutOfRangeError{Requested: amount, Min: MinDeposit}
			return nil
		}

		updated := *user
		updated.Balance = updated.Balance.Add(amount)

		tx = domain.Transaction{
			ID:          s.newID(),
			UserID:      user.ID,
			Type:        domain.TxDeposit,
			Amount:      amount,
			Status:      domain.StatusCompleted,
			Description: fmt.Sprintf("Deposit via %s", method),
			CreatedAt:   s.now(),
		}
		return []domain.Action{domain.UpsertUser{User: updated}, domain.AddTransaction{Transaction: tx}}
	})
	if opErr != nil {
		return domain.Transaction{}, opErr
	}
	return tx, nil
}

// Withdraw debits the spendable balance and records a pending
// transaction; completion is reconciled externally.
func (s *Session) Withdraw(ctx context.Context, amount decimal.Decimal, method string) (domain.Transaction, error) {
	var (
		tx    domain.Transaction
		opErr error
	)
	s.Update(ctx, func(snap domain.Snapshot) []domain.Action {
		user := snap.CurrentUser
		if user == nil {
			opErr = domain.ErrNoSession
			return nil
		}
		if !amount.IsPositive() || amount.LessThan(MinWithdrawal) {
			opErr = &domain.OutOfRangeError{Requested: amount, Min: MinWithdrawal}
			return nil
		}
		if amount.GreaterThan(user.Balance) {
			opErr = &domain.InsufficientFundsError{Available: user.Balance, Requested: amount}
			return nil
		}

		updated := *user
		updated.Balance = updated.Balance.Sub(amount)

		tx = domain.Transaction{
			ID:          s.newID(),
			UserID:      user.ID,
			Type:        domain.TxWithdrawal,
			Amount:      amount,
			Status:      domain.StatusPending,
			Description: fmt.Sprintf("Withdrawal via %s", method),
			CreatedAt:   s.now(),
		}
		return []domain.Action{domain.UpsertUser{User: updated}, domain.AddTransaction{Transaction: tx}}
	})
	if opErr != nil {
		return domain.Transaction{}, opErr
	}
	return tx, nil
}

// Invest purchases a plan: debits the balance, credits the lifetime
// invested total, and opens a new active investment with the plan's rate
// copied at purchase time.
func (s *Session) Invest(ctx context.Context, planID string, amount decimal.Decimal) (domain.Investment, error) {
	var (
		inv   domain.Investment
		opErr error
	)
	s.Update(ctx, func(snap domain.Snapshot) []domain.Action {
		user := snap.CurrentUser
		if user == nil {
			opErr = domain.ErrNoSession
			return nil
		}
		plan := snap.PlanByID(planID)
		if plan == nil {
			opErr = domain.ErrPlanNotFound
			return nil
		}
		if amount.LessThan(plan.MinAmount) || amount.GreaterThan(plan.MaxAmount) {
			opErr = &domain.OutOfRangeError{
				Requested: amount, Min: plan.MinAmount, Max: plan.MaxAmount,
			}
			return nil
		}
		if amount.GreaterThan(user.Balance) {
			opErr = &domain.InsufficientFundsError{Available: user.Balance, Requested: amount}
			return nil
		}

		now := s.now()
		inv = domain.Investment{
			ID:          s.newID(),
			UserID:      user.ID,
			PlanID:      plan.ID,
			Amount:      amount,
			StartDate:   now,
			EndDate:     now.Add(time.Duration(plan.Duration) * time.Hour),
			HourlyRate:  plan.HourlyRate,
			TotalReturn: plan.TotalReturn,
			IsActive:    true,
			LastPayout:  now,
		}

		updated := *user
		updated.Balance = updated.Balance.Sub(amount)
		updated.TotalInvested = updated.TotalInvested.Add(amount)

		tx := domain.Transaction{
			ID:          s.newID(),
			UserID:      user.ID,
			Type:        domain.TxInvestment,
			Amount:      amount,
			Status:      domain.StatusCompleted,
			Description: fmt.Sprintf("Investment in %s", plan.Name),
			CreatedAt:   now,
		}
		return []domain.Action{
			domain.AddInvestment{Investment: inv},
			domain.UpsertUser{User: updated},
			domain.AddTransaction{Transaction: tx},
		}
	})
	if opErr != nil {
		return domain.Investment{}, opErr
	}
	return inv, nil
}

// SweepProfit moves a matured investment's accrued profit into the
// spendable balance and the lifetime earned total. A second sweep without
// an intervening accrual is a no-op rejection: CanWithdraw was cleared.
func (s *Session) SweepProfit(ctx context.Context, investmentID string) (domain.Transaction, error) {
	var (
		tx    domain.Transaction
		opErr error
	)
	s.Update(ctx, func(snap domain.Snapshot) []domain.Action {
		user := snap.CurrentUser
		if user == nil {
			opErr = domain.ErrNoSession
			return nil
		}
		inv := snap.InvestmentByID(investmentID)
		if inv == nil || inv.UserID != user.ID || !inv.CanWithdraw {
			opErr = domain.ErrNotWithdrawable
			return nil
		}

		profit := inv.CurrentProfit
		if !profit.IsPositive() {
			opErr = domain.ErrNotWithdrawable
			return nil
		}

		updated := *user
		updated.Balance = updated.Balance.Add(profit)
		updated.ProfitBalance = decimal.Max(decimal.Zero, updated.ProfitBalance.Sub(profit))
		updated.TotalEarned = updated.TotalEarned.Add(profit)

		swept := *inv
		swept.CurrentProfit = decimal.Zero
		swept.CanWithdraw = false
		swept.IsActive = false

		tx = domain.Transaction{
			ID:          s.newID(),
			UserID:      user.ID,
			Type:        domain.TxProfit,
			Amount:      profit,
			Status:      domain.StatusCompleted,
			Description: "Profit from investment",
			CreatedAt:   s.now(),
		}
		return []domain.Action{
			domain.UpdateInvestment{Investment: swept},
			domain.UpsertUser{User: updated},
			domain.AddTransaction{Transaction: tx},
		}
	})
	if opErr != nil {
		return domain.Transaction{}, opErr
	}
	return tx, nil
}
