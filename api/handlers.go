/*
handlers.go - HTTP handlers for the investment ledger engine

ENDPOINTS:
  Session:
    POST   /api/session                Sign in (creates the user on first visit)
    DELETE /api/session                Sign out (stops the accrual engine)

  Read models:
    GET    /api/me                     Current user with live balances
    GET    /api/plans                  Rate table
    GET    /api/investments            The user's investments
    GET    /api/portfolio              Dashboard aggregates
    GET    /api/transactions           Audit log, newest first

  Operations:
    POST   /api/deposits               Deposit(amount, method)
    POST   /api/withdrawals            Withdraw(amount, method)
    POST   /api/investments            Invest(planId, amount)
    POST   /api/investments/{id}/sweep SweepProfit(investmentId)

  Admin:
    GET    /api/admin/users            All users (is_admin required)

ERROR HANDLING:
  Dispatcher precondition failures (insufficient funds, out of range,
  not withdrawable) map to 400/409 with the human-readable reason.
  Persistence degradation never surfaces here: by the time a handler
  returns, the snapshot has committed and the failover adapter has
  absorbed any durable-store failure.

SESSIONS:
  One wallet.Session plus one accrual engine per signed-in user, created
  on POST /api/session and torn down on DELETE. The registry enforces
  the single-active-session-per-user model the ledger assumes.
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/oakline/invest-engine/accrual"
	"github.com/oakline/invest-engine/domain"
	"github.com/oakline/invest-engine/identity"
	"github.com/oakline/invest-engine/wallet"
)

// UserLister is the optional admin read model; the SQL stores implement it.
type UserLister interface {
	ListUsers(ctx context.Context) ([]domain.User, error)
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store        domain.Adapter
	Verifier     *identity.Verifier
	Log          *logrus.Logger
	TickInterval time.Duration
	MinTick      time.Duration

	mu       sync.Mutex
	sessions map[string]*liveSession
}

type liveSession struct {
	session *wallet.Session
	engine  *accrual.Engine
}

func NewHandler(store domain.Adapter, verifier *identity.Verifier, log *logrus.Logger) *Handler {
	return &Handler{
		Store:        store,
		Verifier:     verifier,
		Log:          log,
		TickInterval: accrual.DefaultInterval,
		MinTick:      accrual.DefaultInterval,
		sessions:     make(map[string]*liveSession),
	}
}

// Shutdown stops every running accrual engine.
func (h *Handler) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ls := range h.sessions {
		ls.engine.Stop()
		delete(h.sessions, id)
	}
}

func (h *Handler) live(userID string) *liveSession {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sessions[userID]
}

// =============================================================================
// SESSION LIFECYCLE
// =============================================================================

// SignIn establishes the session for the authenticated profile.
// POST /api/session
func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	profile := profileFrom(r.Context())

	h.mu.Lock()
	ls, ok := h.sessions[profile.ID]
	if !ok {
		session := wallet.NewSession(h.Store, h.Log)
		engine := accrual.NewEngine(session, h.Log)
		engine.Interval = h.TickInterval
		engine.MinTick = h.MinTick
		ls = &liveSession{session: session, engine: engine}
		h.sessions[profile.ID] = ls
	}
	h.mu.Unlock()

	user, err := ls.session.SignIn(r.Context(), profile.ID, profile.Email, profile.Name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "sign-in failed", err)
		return
	}
	ls.engine.Start()

	writeJSON(w, http.StatusOK, toUserDTO(*user))
}

// SignOut tears the session down. The accrual engine must not keep
// ticking against a signed-out user.
// DELETE /api/session
func (h *Handler) SignOut(w http.ResponseWriter, r *http.Request) {
	profile := profileFrom(r.Context())

	h.mu.Lock()
	ls, ok := h.sessions[profile.ID]
	delete(h.sessions, profile.ID)
	h.mu.Unlock()

	if ok {
		ls.engine.Stop()
		ls.session.SignOut(r.Context())
	}
	w.WriteHeader(http.StatusNoContent)
}

// requireSession resolves the caller's live session or writes a 401.
// The returned snapshot is the one the check ran against; read handlers
// must use it rather than re-reading, because a concurrent sign-out can
// nil the session pointer between two reads.
func (h *Handler) requireSession(w http.ResponseWriter, r *http.Request) (*liveSession, domain.Snapshot, bool) {
	profile := profileFrom(r.Context())
	ls := h.live(profile.ID)
	if ls == nil {
		writeError(w, http.StatusUnauthorized, "no active session", nil)
		return nil, domain.Snapshot{}, false
	}
	snap := ls.session.Snapshot()
	if snap.CurrentUser == nil {
		writeError(w, http.StatusUnauthorized, "no active session", nil)
		return nil, domain.Snapshot{}, false
	}
	return ls, snap, true
}

// =============================================================================
// READ MODELS
// =============================================================================

// GetMe returns the signed-in user.
// GET /api/me
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	_, snap, ok := h.requireSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(*snap.CurrentUser))
}

// ListPlans returns the rate table.
// GET /api/plans
func (h *Handler) ListPlans(w http.ResponseWriter, r *http.Request) {
	_, snap, ok := h.requireSession(w, r)
	if !ok {
		return
	}
	dtos := make([]PlanDTO, 0, len(snap.Plans))
	for _, p := range snap.Plans {
		dtos = append(dtos, toPlanDTO(p))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListInvestments returns the user's investments.
// GET /api/investments
func (h *Handler) ListInvestments(w http.ResponseWriter, r *http.Request) {
	_, snap, ok := h.requireSession(w, r)
	if !ok {
		return
	}
	userID := snap.CurrentUser.ID
	dtos := []InvestmentDTO{}
	for _, inv := range snap.Investments {
		if inv.UserID == userID {
			dtos = append(dtos, toInvestmentDTO(inv))
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetPortfolio returns the dashboard aggregates.
// GET /api/portfolio
func (h *Handler) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	_, snap, ok := h.requireSession(w, r)
	if !ok {
		return
	}
	userID := snap.CurrentUser.ID

	out := PortfolioDTO{TotalPrincipal: domain.Dollars(0), AccruedProfit: domain.Dollars(0)}
	for _, inv := range snap.Investments {
		if inv.UserID != userID {
			continue
		}
		out.AccruedProfit = out.AccruedProfit.Add(inv.CurrentProfit)
		if inv.IsActive {
			out.ActiveInvestments++
			out.TotalPrincipal = out.TotalPrincipal.Add(inv.Amount)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// ListTransactions returns the audit log, newest first.
// GET /api/transactions
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	_, snap, ok := h.requireSession(w, r)
	if !ok {
		return
	}
	userID := snap.CurrentUser.ID
	dtos := []TransactionDTO{}
	// Snapshot appends chronologically; the API contract is newest-first.
	for i := len(snap.Transactions) - 1; i >= 0; i-- {
		if snap.Transactions[i].UserID == userID {
			dtos = append(dtos, toTransactionDTO(snap.Transactions[i]))
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// OPERATIONS
// =============================================================================

// Deposit credits the spendable balance.
// POST /api/deposits
func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	ls, _, ok := h.requireSession(w, r)
	if !ok {
		return
	}
	var req AmountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	tx, err := ls.session.Deposit(r.Context(), req.Amount, req.Method)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionDTO(tx))
}

// Withdraw debits the spendable balance; the transaction stays pending
// until reconciled externally.
// POST /api/withdrawals
func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	ls, _, ok := h.requireSession(w, r)
	if !ok {
		return
	}
	var req AmountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	tx, err := ls.session.Withdraw(r.Context(), req.Amount, req.Method)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionDTO(tx))
}

// Invest purchases a plan.
// POST /api/investments
func (h *Handler) Invest(w http.ResponseWriter, r *http.Request) {
	ls, _, ok := h.requireSession(w, r)
	if !ok {
		return
	}
	var req InvestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	inv, err := ls.session.Invest(r.Context(), req.PlanID, req.Amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toInvestmentDTO(inv))
}

// SweepProfit moves matured profit into the spendable balance.
// POST /api/investments/{id}/sweep
func (h *Handler) SweepProfit(w http.ResponseWriter, r *http.Request) {
	ls, _, ok := h.requireSession(w, r)
	if !ok {
		return
	}
	tx, err := ls.session.SweepProfit(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionDTO(tx))
}

// =============================================================================
// ADMIN
// =============================================================================

// ListUsers returns every user. Requires the admin flag.
// GET /api/admin/users
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	_, snap, ok := h.requireSession(w, r)
	if !ok {
		return
	}
	if !snap.CurrentUser.IsAdmin {
		writeError(w, http.StatusForbidden, "admin access required", nil)
		return
	}
	lister, ok := h.Store.(UserLister)
	if !ok {
		writeError(w, http.StatusNotImplemented, "user listing not supported by this store", nil)
		return
	}
	users, err := lister.ListUsers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list users", err)
		return
	}
	dtos := make([]UserDTO, 0, len(users))
	for _, u := range users {
		dtos = append(dtos, toUserDTO(u))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNoSession):
		writeError(w, http.StatusUnauthorized, "no active session", nil)
	case errors.Is(err, domain.ErrNotWithdrawable):
		writeError(w, http.StatusConflict, "investment profit not withdrawable", nil)
	case domain.IsClientError(err):
		writeError(w, http.StatusBadRequest, err.Error(), nil)
	default:
		writeError(w, http.StatusInternalServerError, "internal error", err)
	}
}
