/*
dto.go - Data Transfer Objects for API requests and responses

Decouples the domain model from the API contract. Money fields are
decimal.Decimal and marshal as quoted decimal strings, so clients never
touch binary floats; dates are RFC3339 strings. Validation happens in
handlers and dispatchers, not in DTOs.
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/oakline/invest-engine/domain"
)

// =============================================================================
// RESPONSE TYPES
// =============================================================================

type UserDTO struct {
	ID            string          `json:"id"`
	Email         string          `json:"email"`
	Name          string          `json:"name"`
	Balance       decimal.Decimal `json:"balance"`
	ProfitBalance decimal.Decimal `json:"profit_balance"`
	TotalInvested decimal.Decimal `json:"total_invested"`
	TotalEarned   decimal.Decimal `json:"total_earned"`
	IsAdmin       bool            `json:"is_admin"`
	CreatedAt     string          `json:"created_at"`
}

type PlanDTO struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	MinAmount   decimal.Decimal `json:"min_amount"`
	MaxAmount   decimal.Decimal `json:"max_amount"`
	HourlyRate  decimal.Decimal `json:"hourly_rate"`
	Duration    int             `json:"duration_hours"`
	TotalReturn decimal.Decimal `json:"total_return"`
	Featured    bool            `json:"featured"`
}

type InvestmentDTO struct {
	ID            string          `json:"id"`
	PlanID        string          `json:"plan_id"`
	Amount        decimal.Decimal `json:"amount"`
	StartDate     string          `json:"start_date"`
	EndDate       string          `json:"end_date"`
	HourlyRate    decimal.Decimal `json:"hourly_rate"`
	TotalReturn   decimal.Decimal `json:"total_return"`
	CurrentProfit decimal.Decimal `json:"current_profit"`
	MaxProfit     decimal.Decimal `json:"max_profit"`
	IsActive      bool            `json:"is_active"`
	CanWithdraw   bool            `json:"can_withdraw"`
	LastPayout    string          `json:"last_payout"`
}

type TransactionDTO struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Status      string          `json:"status"`
	Description string          `json:"description"`
	CreatedAt   string          `json:"created_at"`
}

// PortfolioDTO aggregates the dashboard numbers.
type PortfolioDTO struct {
	ActiveInvestments int             `json:"active_investments"`
	TotalPrincipal    decimal.Decimal `json:"total_principal"`
	AccruedProfit     decimal.Decimal `json:"accrued_profit"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// REQUEST TYPES
// =============================================================================

type AmountRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Method string          `json:"method"`
}

type InvestRequest struct {
	PlanID string          `json:"plan_id"`
	Amount decimal.Decimal `json:"amount"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toUserDTO(u domain.User) UserDTO {
	return UserDTO{
		ID:            u.ID,
		Email:         u.Email,
		Name:          u.Name,
		Balance:       u.Balance,
		ProfitBalance: u.ProfitBalance,
		TotalInvested: u.TotalInvested,
		TotalEarned:   u.TotalEarned,
		IsAdmin:       u.IsAdmin,
		CreatedAt:     u.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func toPlanDTO(p domain.InvestmentPlan) PlanDTO {
	return PlanDTO{
		ID:          p.ID,
		Name:        p.Name,
		MinAmount:   p.MinAmount,
		MaxAmount:   p.MaxAmount,
		HourlyRate:  p.HourlyRate,
		Duration:    p.Duration,
		TotalReturn: p.TotalReturn,
		Featured:    p.Featured,
	}
}

func toInvestmentDTO(inv domain.Investment) InvestmentDTO {
	return InvestmentDTO{
		ID:            inv.ID,
		PlanID:        inv.PlanID,
		Amount:        inv.Amount,
		StartDate:     inv.StartDate.UTC().Format(time.RFC3339),
		EndDate:       inv.EndDate.UTC().Format(time.RFC3339),
		HourlyRate:    inv.HourlyRate,
		TotalReturn:   inv.TotalReturn,
		CurrentProfit: inv.CurrentProfit,
		MaxProfit:     inv.MaxProfit(),
		IsActive:      inv.IsActive,
		CanWithdraw:   inv.CanWithdraw,
		LastPayout:    inv.LastPayout.UTC().Format(time.RFC3339),
	}
}

func toTransactionDTO(tx domain.Transaction) TransactionDTO {
	return TransactionDTO{
		ID:          tx.ID,
		Type:        string(tx.Type),
		Amount:      tx.Amount,
		Status:      string(tx.Status),
		Description: tx.Description,
		CreatedAt:   tx.CreatedAt.UTC().Format(time.RFC3339),
	}
}
