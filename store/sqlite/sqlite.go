/*
Package sqlite provides a SQLite-backed Adapter implementation.

PURPOSE:
  Durable storage for local/dev deployments. The hosted backend uses the
  postgres package; the SQL is intentionally kept close so the two stay
  in lockstep.

KEY TABLES:
  users:        One row per user, upserted on every ledger mutation
  investments:  Upserted by id on purchase and every accrual tick
  transactions: Insert-only audit log
  plans:        Seeded once, then read-only

VALIDATION ON LOAD:
  Rows are scanned into raw records and pushed through the domain
  validation layer. A row that fails to parse is dropped from the result,
  never returned half-formed and never fatal to the load.

WAL MODE:
  SQLite is opened with WAL so the accrual engine's writes do not block
  HTTP reads.

MONEY AS TEXT:
  Decimal columns are TEXT holding decimal strings. SQLite REAL would
  reintroduce the float drift the domain types exist to avoid.
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"github.com/oakline/invest-engine/domain"
)

type Store struct {
	db  *sql.DB
	log *logrus.Logger
}

// New opens (or creates) the database at dbPath. Use ":memory:" for an
// in-memory database.
func New(dbPath string, log *logrus.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db, log: log}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL,
		name TEXT NOT NULL,
		balance TEXT NOT NULL,
		profit_balance TEXT NOT NULL,
		total_invested TEXT NOT NULL,
		total_earned TEXT NOT NULL,
		is_admin INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS investments (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		plan_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		hourly_rate TEXT NOT NULL,
		total_return TEXT NOT NULL,
		current_profit TEXT NOT NULL,
		total_earned TEXT NOT NULL,
		is_active INTEGER NOT NULL,
		can_withdraw INTEGER NOT NULL,
		last_payout TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_investments_user ON investments(user_id);
	CREATE INDEX IF NOT EXISTS idx_investments_user_active ON investments(user_id, is_active);

	-- Insert-only audit log
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		tx_type TEXT NOT NULL,
		amount TEXT NOT NULL,
		status TEXT NOT NULL,
		description TEXT,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_transactions_user_created
		ON transactions(user_id, created_at DESC);

	CREATE TABLE IF NOT EXISTS plans (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		min_amount TEXT NOT NULL,
		max_amount TEXT NOT NULL,
		duration INTEGER NOT NULL,
		total_return TEXT NOT NULL,
		featured INTEGER NOT NULL DEFAULT 0
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// USERS
// =============================================================================

func (s *Store) LoadUser(ctx context.Context, userID string) (*domain.User, error) {
	var r domain.UserRecord
	var isAdmin int
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, name, balance, profit_balance, total_invested, total_earned, is_admin, created_at
		FROM users WHERE id = ?`, userID).
		Scan(&r.ID, &r.Email, &r.Name, &r.Balance, &r.ProfitBalance,
			&r.TotalInvested, &r.TotalEarned, &isAdmin, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	r.IsAdmin = isAdmin != 0

	u, err := domain.ParseUser(r)
	if err != nil {
		s.log.WithError(err).WithField("user_id", userID).Warn("dropping malformed user row")
		return nil, nil
	}
	return &u, nil
}

func (s *Store) SaveUser(ctx context.Context, u domain.User) error {
	r := domain.FormatUser(u)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, name, balance, profit_balance, total_invested, total_earned, is_admin, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			email = excluded.email,
			name = excluded.name,
			balance = excluded.balance,
			profit_balance = excluded.profit_balance,
			total_invested = excluded.total_invested,
			total_earned = excluded.total_earned,
			is_admin = excluded.is_admin`,
		r.ID, r.Email, r.Name, r.Balance, r.ProfitBalance,
		r.TotalInvested, r.TotalEarned, boolInt(r.IsAdmin), r.CreatedAt)
	if err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

// ListUsers returns every user, newest first. Admin read model.
func (s *Store) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, email, name, balance, profit_balance, total_invested, total_earned, is_admin, created_at
		FROM users ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var out []domain.User
	for rows.Next() {
		var r domain.UserRecord
		var isAdmin int
		if err := rows.Scan(&r.ID, &r.Email, &r.Name, &r.Balance, &r.ProfitBalance,
			&r.TotalInvested, &r.TotalEarned, &isAdmin, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.IsAdmin = isAdmin != 0
		u, err := domain.ParseUser(r)
		if err != nil {
			s.log.WithError(err).Warn("dropping malformed user row")
			continue
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// =============================================================================
// INVESTMENTS
// =============================================================================

func (s *Store) LoadInvestments(ctx context.Context, userID string) ([]domain.Investment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, plan_id, amount, start_date, end_date, hourly_rate,
		       total_return, current_profit, total_earned, is_active, can_withdraw, last_payout
		FROM investments WHERE user_id = ? ORDER BY start_date DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("load investments: %w", err)
	}
	defer rows.Close()

	var out []domain.Investment
	for rows.Next() {
		var r domain.InvestmentRecord
		var active, withdraw int
		if err := rows.Scan(&r.ID, &r.UserID, &r.PlanID, &r.Amount, &r.StartDate, &r.EndDate,
			&r.HourlyRate, &r.TotalReturn, &r.CurrentProfit, &r.TotalEarned,
			&active, &withdraw, &r.LastPayout); err != nil {
			return nil, err
		}
		r.IsActive = active != 0
		r.CanWithdraw = withdraw != 0
		inv, err := domain.ParseInvestment(r)
		if err != nil {
			s.log.WithError(err).WithField("investment_id", r.ID).Warn("dropping malformed investment row")
			continue
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func (s *Store) SaveInvestment(ctx context.Context, inv domain.Investment) error {
	r := domain.FormatInvestment(inv)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO investments (id, user_id, plan_id, amount, start_date, end_date, hourly_rate,
			total_return, current_profit, total_earned, is_active, can_withdraw, last_payout)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			current_profit = excluded.current_profit,
			total_earned = excluded.total_earned,
			is_active = excluded.is_active,
			can_withdraw = excluded.can_withdraw,
			last_payout = excluded.last_payout`,
		r.ID, r.UserID, r.PlanID, r.Amount, r.StartDate, r.EndDate, r.HourlyRate,
		r.TotalReturn, r.CurrentProfit, r.TotalEarned,
		boolInt(r.IsActive), boolInt(r.CanWithdraw), r.LastPayout)
	if err != nil {
		return fmt.Errorf("save investment: %w", err)
	}
	return nil
}

// =============================================================================
// TRANSACTIONS - Insert-only
// =============================================================================

func (s *Store) LoadTransactions(ctx context.Context, userID string) ([]domain.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, tx_type, amount, status, description, created_at
		FROM transactions WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		var r domain.TransactionRecord
		if err := rows.Scan(&r.ID, &r.UserID, &r.Type, &r.Amount, &r.Status, &r.Description, &r.CreatedAt); err != nil {
			return nil, err
		}
		tx, err := domain.ParseTransaction(r)
		if err != nil {
			s.log.WithError(err).WithField("transaction_id", r.ID).Warn("dropping malformed transaction row")
			continue
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

func (s *Store) SaveTransaction(ctx context.Context, tx domain.Transaction) error {
	r := domain.FormatTransaction(tx)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transactions (id, user_id, tx_type, amount, status, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.UserID, r.Type, r.Amount, r.Status, r.Description, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("save transaction: %w", err)
	}
	return nil
}

// =============================================================================
// PLANS
// =============================================================================

func (s *Store) LoadPlans(ctx context.Context) ([]domain.InvestmentPlan, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, min_amount, max_amount, duration, total_return, featured
		FROM plans ORDER BY CAST(min_amount AS REAL) ASC`)
	if err != nil {
		return nil, fmt.Errorf("load plans: %w", err)
	}
	defer rows.Close()

	var out []domain.InvestmentPlan
	for rows.Next() {
		var r domain.PlanRecord
		var featured int
		if err := rows.Scan(&r.ID, &r.Name, &r.MinAmount, &r.MaxAmount, &r.Duration, &r.TotalReturn, &featured); err != nil {
			return nil, err
		}
		r.Featured = featured != 0
		p, err := domain.ParsePlan(r)
		if err != nil {
			s.log.WithError(err).WithField("plan_id", r.ID).Warn("dropping malformed plan row")
			continue
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// SeedPlans inserts the given plans only when the table is empty, so
// restarts never duplicate or clobber the rate table.
func (s *Store) SeedPlans(ctx context.Context, plans []domain.InvestmentPlan) error {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM plans`).Scan(&count); err != nil {
		return fmt.Errorf("count plans: %w", err)
	}
	if count > 0 {
		return nil
	}

	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer dbTx.Rollback()

	for _, p := range plans {
		r := domain.FormatPlan(p)
		if _, err := dbTx.ExecContext(ctx, `
			INSERT INTO plans (id, name, min_amount, max_amount, duration, total_return, featured)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			r.ID, r.Name, r.MinAmount, r.MaxAmount, r.Duration, r.TotalReturn, boolInt(r.Featured)); err != nil {
			return fmt.Errorf("seed plan %s: %w", r.ID, err)
		}
	}
	if err := dbTx.Commit(); err != nil {
		return err
	}
	s.log.WithField("count", len(plans)).Info("seeded default plans")
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ domain.Adapter = (*Store)(nil)
