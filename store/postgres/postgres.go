/*
Package postgres provides the Adapter implementation for the hosted
relational backend.

Same contract and near-identical SQL as the sqlite package; differences
are placeholders ($n), native BOOLEAN/TIMESTAMPTZ columns, and NUMERIC
for money. Connection failures here are expected operating conditions:
the failover wrapper degrades reads and writes to the local cache.
*/
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/oakline/invest-engine/domain"
)

type Store struct {
	db  *sql.DB
	log *logrus.Logger
}

// New connects with the given DSN and runs the idempotent migration.
func New(dsn string, log *logrus.Logger) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}

	s := &Store{db: db, log: log}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL,
		name TEXT NOT NULL,
		balance NUMERIC(18,8) NOT NULL,
		profit_balance NUMERIC(18,8) NOT NULL,
		total_invested NUMERIC(18,8) NOT NULL,
		total_earned NUMERIC(18,8) NOT NULL,
		is_admin BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS investments (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		plan_id TEXT NOT NULL,
		amount NUMERIC(18,8) NOT NULL,
		start_date TIMESTAMPTZ NOT NULL,
		end_date TIMESTAMPTZ NOT NULL,
		hourly_rate NUMERIC(18,8) NOT NULL,
		total_return NUMERIC(18,8) NOT NULL,
		current_profit NUMERIC(18,8) NOT NULL,
		total_earned NUMERIC(18,8) NOT NULL,
		is_active BOOLEAN NOT NULL,
		can_withdraw BOOLEAN NOT NULL,
		last_payout TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_investments_user_active ON investments(user_id, is_active);

	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		tx_type TEXT NOT NULL,
		amount NUMERIC(18,8) NOT NULL,
		status TEXT NOT NULL,
		description TEXT,
		created_at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_transactions_user_created
		ON transactions(user_id, created_at DESC);

	CREATE TABLE IF NOT EXISTS plans (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		min_amount NUMERIC(18,8) NOT NULL,
		max_amount NUMERIC(18,8) NOT NULL,
		duration INTEGER NOT NULL,
		total_return NUMERIC(18,8) NOT NULL,
		featured BOOLEAN NOT NULL DEFAULT FALSE
	);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *Store) LoadUser(ctx context.Context, userID string) (*domain.User, error) {
	var r domain.UserRecord
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, name, balance::TEXT, profit_balance::TEXT, total_invested::TEXT,
		       total_earned::TEXT, is_admin, to_char(created_at AT TIME ZONE 'UTC', 'YYYY-MM-DD"T"HH24:MI:SS.US"Z"')
		FROM users WHERE id = $1`, userID).
		Scan(&r.ID, &r.Email, &r.Name, &r.Balance, &r.ProfitBalance,
			&r.TotalInvested, &r.TotalEarned, &r.IsAdmin, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}

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
		VALUES ($1, $2, $3, $4::NUMERIC, $5::NUMERIC, $6::NUMERIC, $7::NUMERIC, $8, $9::TIMESTAMPTZ)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			name = EXCLUDED.name,
			balance = EXCLUDED.balance,
			profit_balance = EXCLUDED.profit_balance,
			total_invested = EXCLUDED.total_invested,
			total_earned = EXCLUDED.total_earned,
			is_admin = EXCLUDED.is_admin`,
		r.ID, r.Email, r.Name, r.Balance, r.ProfitBalance,
		r.TotalInvested, r.TotalEarned, r.IsAdmin, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

// ListUsers returns every user, newest first.
func (s *Store) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, email, name, balance::TEXT, profit_balance::TEXT, total_invested::TEXT,
		       total_earned::TEXT, is_admin, to_char(created_at AT TIME ZONE 'UTC', 'YYYY-MM-DD"T"HH24:MI:SS.US"Z"')
		FROM users ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var out []domain.User
	for rows.Next() {
		var r domain.UserRecord
		if err := rows.Scan(&r.ID, &r.Email, &r.Name, &r.Balance, &r.ProfitBalance,
			&r.TotalInvested, &r.TotalEarned, &r.IsAdmin, &r.CreatedAt); err != nil {
			return nil, err
		}
		u, err := domain.ParseUser(r)
		if err != nil {
			s.log.WithError(err).Warn("dropping malformed user row")
			continue
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *Store) LoadInvestments(ctx context.Context, userID string) ([]domain.Investment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, plan_id, amount::TEXT,
		       to_char(start_date AT TIME ZONE 'UTC', 'YYYY-MM-DD"T"HH24:MI:SS.US"Z"'),
		       to_char(end_date AT TIME ZONE 'UTC', 'YYYY-MM-DD"T"HH24:MI:SS.US"Z"'),
		       hourly_rate::TEXT, total_return::TEXT, current_profit::TEXT, total_earned::TEXT,
		       is_active, can_withdraw,
		       to_char(last_payout AT TIME ZONE 'UTC', 'YYYY-MM-DD"T"HH24:MI:SS.US"Z"')
		FROM investments WHERE user_id = $1 ORDER BY start_date DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("load investments: %w", err)
	}
	defer rows.Close()

	var out []domain.Investment
	for rows.Next() {
		var r domain.InvestmentRecord
		if err := rows.Scan(&r.ID, &r.UserID, &r.PlanID, &r.Amount, &r.StartDate, &r.EndDate,
			&r.HourlyRate, &r.TotalReturn, &r.CurrentProfit, &r.TotalEarned,
			&r.IsActive, &r.CanWithdraw, &r.LastPayout); err != nil {
			return nil, err
		}
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
		VALUES ($1, $2, $3, $4::NUMERIC, $5::TIMESTAMPTZ, $6::TIMESTAMPTZ, $7::NUMERIC,
			$8::NUMERIC, $9::NUMERIC, $10::NUMERIC, $11, $12, $13::TIMESTAMPTZ)
		ON CONFLICT (id) DO UPDATE SET
			current_profit = EXCLUDED.current_profit,
			total_earned = EXCLUDED.total_earned,
			is_active = EXCLUDED.is_active,
			can_withdraw = EXCLUDED.can_withdraw,
			last_payout = EXCLUDED.last_payout`,
		r.ID, r.UserID, r.PlanID, r.Amount, r.StartDate, r.EndDate, r.HourlyRate,
		r.TotalReturn, r.CurrentProfit, r.TotalEarned, r.IsActive, r.CanWithdraw, r.LastPayout)
	if err != nil {
		return fmt.Errorf("save investment: %w", err)
	}
	return nil
}

func (s *Store) LoadTransactions(ctx context.Context, userID string) ([]domain.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, tx_type, amount::TEXT, status, COALESCE(description, ''),
		       to_char(created_at AT TIME ZONE 'UTC', 'YYYY-MM-DD"T"HH24:MI:SS.US"Z"')
		FROM transactions WHERE user_id = $1 ORDER BY created_at DESC`, userID)
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
		VALUES ($1, $2, $3, $4::NUMERIC, $5, $6, $7::TIMESTAMPTZ)`,
		r.ID, r.UserID, r.Type, r.Amount, r.Status, r.Description, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("save transaction: %w", err)
	}
	return nil
}

func (s *Store) LoadPlans(ctx context.Context) ([]domain.InvestmentPlan, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, min_amount::TEXT, max_amount::TEXT, duration, total_return::TEXT, featured
		FROM plans ORDER BY min_amount ASC`)
	if err != nil {
		return nil, fmt.Errorf("load plans: %w", err)
	}
	defer rows.Close()

	var out []domain.InvestmentPlan
	for rows.Next() {
		var r domain.PlanRecord
		if err := rows.Scan(&r.ID, &r.Name, &r.MinAmount, &r.MaxAmount, &r.Duration, &r.TotalReturn, &r.Featured); err != nil {
			return nil, err
		}
		p, err := domain.ParsePlan(r)
		if err != nil {
			s.log.WithError(err).WithField("plan_id", r.ID).Warn("dropping malformed plan row")
			continue
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

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
			VALUES ($1, $2, $3::NUMERIC, $4::NUMERIC, $5, $6::NUMERIC, $7)`,
			r.ID, r.Name, r.MinAmount, r.MaxAmount, r.Duration, r.TotalReturn, r.Featured); err != nil {
			return fmt.Errorf("seed plan %s: %w", r.ID, err)
		}
	}
	if err := dbTx.Commit(); err != nil {
		return err
	}
	s.log.WithField("count", len(plans)).Info("seeded default plans")
	return nil
}

var _ domain.Adapter = (*Store)(nil)
