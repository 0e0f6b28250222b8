/*
validate.go - Parse-or-reject normalization of untrusted records

PURPOSE:
  Every record that crosses a trust boundary (durable store, local cache,
  API payloads) passes through here before it can reach the reducer. The
  reducer's invariants hold only because this layer runs on every read
  path, not just on write.

RULES:
  - Numeric fields parse as decimals; empty means zero, unparseable
    rejects, negatives are floored at zero (corrupted storage cannot
    smuggle in a negative balance).
  - String fields are trimmed; emails are lower-cased.
  - Date fields that fail to parse reject the WHOLE record. Downstream
    code does date arithmetic and must never see an invalid time.
  - Enum fields (transaction type/status) reject unknown values.

Rejection is an error return, never a panic. Callers drop rejected
records from loaded collections and treat rejected actions as no-ops.
*/
package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// RAW RECORDS - Loose wire/storage shapes before normalization
// =============================================================================

type UserRecord struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	Name          string `json:"name"`
	Balance       string `json:"balance"`
	ProfitBalance string `json:"profit_balance"`
	TotalInvested string `json:"total_invested"`
	TotalEarned   string `json:"total_earned"`
	IsAdmin       bool   `json:"is_admin"`
	CreatedAt     string `json:"created_at"`
}

type InvestmentRecord struct {
	ID            string `json:"id"`
	UserID        string `json:"user_id"`
	PlanID        string `json:"plan_id"`
	Amount        string `json:"amount"`
	StartDate     string `json:"start_date"`
	EndDate       string `json:"end_date"`
	HourlyRate    string `json:"hourly_rate"`
	TotalReturn   string `json:"total_return"`
	CurrentProfit string `json:"current_profit"`
	TotalEarned   string `json:"total_earned"`
	IsActive      bool   `json:"is_active"`
	CanWithdraw   bool   `json:"can_withdraw"`
	LastPayout    string `json:"last_payout"`
}

type PlanRecord struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	MinAmount   string `json:"min_amount"`
	MaxAmount   string `json:"max_amount"`
	Duration    int    `json:"duration"`
	TotalReturn string `json:"total_return"`
	Featured    bool   `json:"featured"`
}

type TransactionRecord struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	Type        string `json:"type"`
	Amount      string `json:"amount"`
	Status      string `json:"status"`
	Description string `json:"description"`
	CreatedAt   string `json:"created_at"`
}

// =============================================================================
// FIELD COERCION
// =============================================================================

// parseMoney normalizes a numeric field. Empty means zero (absent field),
// unparseable rejects, negatives floor at zero.
func parseMoney(entity, field, raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, &FieldError{Entity: entity, Field: field, Reason: "not a number"}
	}
	if d.IsNegative() {
		return decimal.Zero, nil
	}
	return d, nil
}

// parseDate rejects on any unparseable value. requireValue controls
// whether an empty field is also a rejection.
func parseDate(entity, field, raw string, requireValue bool) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		if requireValue {
			return time.Time{}, &FieldError{Entity: entity, Field: field, Reason: "missing date"}
		}
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		if t2, err2 := time.Parse(time.RFC3339, raw); err2 == nil {
			return t2.UTC(), nil
		}
		return time.Time{}, &FieldError{Entity: entity, Field: field, Reason: "unparseable date"}
	}
	return t.UTC(), nil
}

// =============================================================================
// ENTITY PARSERS
// =============================================================================

// ParseUser normalizes a user record or rejects it.
func ParseUser(r UserRecord) (User, error) {
	id := strings.TrimSpace(r.ID)
	if id == "" {
		return User{}, &FieldError{Entity: "user", Field: "id", Reason: "missing id"}
	}

	createdAt, err := parseDate("user", "created_at", r.CreatedAt, false)
	if err != nil {
		return User{}, err
	}
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	u := User{
		ID:        id,
		Email:     strings.ToLower(strings.TrimSpace(r.Email)),
		Name:      strings.TrimSpace(r.Name),
		IsAdmin:   r.IsAdmin,
		CreatedAt: createdAt,
	}
	if u.Balance, err = parseMoney("user", "balance", r.Balance); err != nil {
		return User{}, err
	}
	if u.ProfitBalance, err = parseMoney("user", "profit_balance", r.ProfitBalance); err != nil {
		return User{}, err
	}
	if u.TotalInvested, err = parseMoney("user", "total_invested", r.TotalInvested); err != nil {
		return User{}, err
	}
	if u.TotalEarned, err = parseMoney("user", "total_earned", r.TotalEarned); err != nil {
		return User{}, err
	}
	return u, nil
}

// ParseInvestment normalizes an investment record or rejects it. All three
// date fields are required: the accrual engine subtracts them.
func ParseInvestment(r InvestmentRecord) (Investment, error) {
	id := strings.TrimSpace(r.ID)
	userID := strings.TrimSpace(r.UserID)
	if id == "" || userID == "" {
		return Investment{}, &FieldError{Entity: "investment", Field: "id", Reason: "missing id"}
	}

	inv := Investment{
		ID:          id,
		UserID:      userID,
		PlanID:      strings.TrimSpace(r.PlanID),
		IsActive:    r.IsActive,
		CanWithdraw: r.CanWithdraw,
	}

	var err error
	if inv.StartDate, err = parseDate("investment", "start_date", r.StartDate, true); err != nil {
		return Investment{}, err
	}
	if inv.EndDate, err = parseDate("investment", "end_date", r.EndDate, true); err != nil {
		return Investment{}, err
	}
	if inv.LastPayout, err = parseDate("investment", "last_payout", r.LastPayout, true); err != nil {
		return Investment{}, err
	}
	if inv.Amount, err = parseMoney("investment", "amount", r.Amount); err != nil {
		return Investment{}, err
	}
	if inv.HourlyRate, err = parseMoney("investment", "hourly_rate", r.HourlyRate); err != nil {
		return Investment{}, err
	}
	if inv.TotalReturn, err = parseMoney("investment", "total_return", r.TotalReturn); err != nil {
		return Investment{}, err
	}
	if inv.CurrentProfit, err = parseMoney("investment", "current_profit", r.CurrentProfit); err != nil {
		return Investment{}, err
	}
	if inv.TotalEarned, err = parseMoney("investment", "total_earned", r.TotalEarned); err != nil {
		return Investment{}, err
	}

	// Matured and active are mutually exclusive; a corrupted record never
	// re-enters accrual.
	if inv.CanWithdraw {
		inv.IsActive = false
	}
	return inv, nil
}

// ParsePlan normalizes a plan record. The hourly rate is always derived
// from duration + total return, never trusted from storage.
func ParsePlan(r PlanRecord) (InvestmentPlan, error) {
	id := strings.TrimSpace(r.ID)
	if id == "" {
		return InvestmentPlan{}, &FieldError{Entity: "plan", Field: "id", Reason: "missing id"}
	}
	if r.Duration <= 0 {
		return InvestmentPlan{}, &FieldError{Entity: "plan", Field: "duration", Reason: "must be positive"}
	}

	p := InvestmentPlan{
		ID:       id,
		Name:     strings.TrimSpace(r.Name),
		Duration: r.Duration,
		Featured: r.Featured,
	}
	var err error
	if p.MinAmount, err = parseMoney("plan", "min_amount", r.MinAmount); err != nil {
		return InvestmentPlan{}, err
	}
	if p.MaxAmount, err = parseMoney("plan", "max_amount", r.MaxAmount); err != nil {
		return InvestmentPlan{}, err
	}
	if p.TotalReturn, err = parseMoney("plan", "total_return", r.TotalReturn); err != nil {
		return InvestmentPlan{}, err
	}
	if p.MaxAmount.LessThan(p.MinAmount) {
		return InvestmentPlan{}, &FieldError{Entity: "plan", Field: "max_amount", Reason: "below min_amount"}
	}
	p.HourlyRate = DeriveHourlyRate(p.TotalReturn, p.Duration)
	return p, nil
}

// ParseTransaction normalizes a transaction record. Type and status are
// restricted to the enumerated values.
func ParseTransaction(r TransactionRecord) (Transaction, error) {
	id := strings.TrimSpace(r.ID)
	userID := strings.TrimSpace(r.UserID)
	if id == "" || userID == "" {
		return Transaction{}, &FieldError{Entity: "transaction", Field: "id", Reason: "missing id"}
	}

	txType := TransactionType(strings.TrimSpace(r.Type))
	if !txType.Valid() {
		return Transaction{}, &FieldError{Entity: "transaction", Field: "type", Reason: "unknown type"}
	}
	status := TransactionStatus(strings.TrimSpace(r.Status))
	if !status.Valid() {
		return Transaction{}, &FieldError{Entity: "transaction", Field: "status", Reason: "unknown status"}
	}

	createdAt, err := parseDate("transaction", "created_at", r.CreatedAt, true)
	if err != nil {
		return Transaction{}, err
	}
	amount, err := parseMoney("transaction", "amount", r.Amount)
	if err != nil {
		return Transaction{}, err
	}

	return Transaction{
		ID:          id,
		UserID:      userID,
		Type:        txType,
		Amount:      amount,
		Status:      status,
		Description: strings.TrimSpace(r.Description),
		CreatedAt:   createdAt,
	}, nil
}

// =============================================================================
// RECORD FORMATTING - Entity back to wire shape
// =============================================================================
// Formatting then re-parsing is stable: Parse(Format(Parse(r))) == Parse(r).

func FormatUser(u User) UserRecord {
	return UserRecord{
		ID:            u.ID,
		Email:         u.Email,
		Name:          u.Name,
		Balance:       u.Balance.String(),
		ProfitBalance: u.ProfitBalance.String(),
		TotalInvested: u.TotalInvested.String(),
		TotalEarned:   u.TotalEarned.String(),
		IsAdmin:       u.IsAdmin,
		CreatedAt:     u.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func FormatInvestment(inv Investment) InvestmentRecord {
	return InvestmentRecord{
		ID:            inv.ID,
		UserID:        inv.UserID,
		PlanID:        inv.PlanID,
		Amount:        inv.Amount.String(),
		StartDate:     inv.StartDate.UTC().Format(time.RFC3339Nano),
		EndDate:       inv.EndDate.UTC().Format(time.RFC3339Nano),
		HourlyRate:    inv.HourlyRate.String(),
		TotalReturn:   inv.TotalReturn.String(),
		CurrentProfit: inv.CurrentProfit.String(),
		TotalEarned:   inv.TotalEarned.String(),
		IsActive:      inv.IsActive,
		CanWithdraw:   inv.CanWithdraw,
		LastPayout:    inv.LastPayout.UTC().Format(time.RFC3339Nano),
	}
}

func FormatPlan(p InvestmentPlan) PlanRecord {
	return PlanRecord{
		ID:          p.ID,
		Name:        p.Name,
		MinAmount:   p.MinAmount.String(),
		MaxAmount:   p.MaxAmount.String(),
		Duration:    p.Duration,
		TotalReturn: p.TotalReturn.String(),
		Featured:    p.Featured,
	}
}

func FormatTransaction(tx Transaction) TransactionRecord {
	return TransactionRecord{
		ID:          tx.ID,
		UserID:      tx.UserID,
		Type:        string(tx.Type),
		Amount:      tx.Amount.String(),
		Status:      string(tx.Status),
		Description: tx.Description,
		CreatedAt:   tx.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}
