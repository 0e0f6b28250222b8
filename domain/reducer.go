/*
reducer.go - The pure state-transition function

PURPOSE:
  Reduce(snapshot, action) -> snapshot is the ONLY place the in-memory
  state changes. It is pure and synchronous: no I/O, no clocks, no
  persistence. Mirroring a mutation into the store is the caller's job
  (see wallet.Session), which keeps this function trivially testable.

SEMANTICS:
  - Copy-on-write: every transition returns a fresh snapshot; holders of
    the old value never observe a half-applied update.
  - Last-write-wins by entity id. There is no merge logic; a single
    session owns a given user's data.
  - Actions carrying entities re-run the validation layer. An invalid
    entity makes the action a no-op, so the reducer's invariants survive
    tampered or corrupted inputs.
  - Logout clears only the session pointer. Plans are process-wide and
    survive for the next sign-in.
*/
package domain

// Snapshot is the complete in-memory state at a point in time.
type Snapshot struct {
	CurrentUser  *User
	Users        []User
	Investments  []Investment
	Plans        []InvestmentPlan
	Transactions []Transaction
}

// =============================================================================
// ACTIONS
// =============================================================================

type Action interface{ isAction() }

type SetCurrentUser struct{ User *User }
type UpsertUser struct{ User User }
type SetUsers struct{ Users []User }
type AddInvestment struct{ Investment Investment }
type UpdateInvestment struct{ Investment Investment }
type SetInvestments struct{ Investments []Investment }
type AddTransaction struct{ Transaction Transaction }
type SetTransactions struct{ Transactions []Transaction }
type SetInvestmentPlans struct{ Plans []InvestmentPlan }
type Logout struct{}

func (SetCurrentUser) isAction()     {}
func (UpsertUser) isAction()         {}
func (SetUsers) isAction()           {}
func (AddInvestment) isAction()      {}
func (UpdateInvestment) isAction()   {}
func (SetInvestments) isAction()     {}
func (AddTransaction) isAction()     {}
func (SetTransactions) isAction()    {}
func (SetInvestmentPlans) isAction() {}
func (Logout) isAction()             {}

// =============================================================================
// NORMALIZATION - Re-run the validation layer on typed entities
// =============================================================================
// Round-tripping through the record shape applies exactly the same coercion
// rules as a storage load, so an entity is valid iff its record is.

func NormalizeUser(u User) (User, error) { return ParseUser(FormatUser(u)) }

func NormalizeInvestment(i Investment) (Investment, error) {
	return ParseInvestment(FormatInvestment(i))
}

func NormalizeTransaction(t Transaction) (Transaction, error) {
	return ParseTransaction(FormatTransaction(t))
}

// =============================================================================
// REDUCE
// =============================================================================

// Reduce applies one action and returns the next snapshot. Unknown or
// invalid actions return the snapshot unchanged.
func Reduce(s Snapshot, action Action) Snapshot {
	switch a := action.(type) {

	case SetCurrentUser:
		s.CurrentUser = a.User

	case UpsertUser:
		u, err := NormalizeUser(a.User)
		if err != nil {
			return s
		}
		s.Users = upsertUser(s.Users, u)
		if s.CurrentUser != nil && s.CurrentUser.ID == u.ID {
			cu := u
			s.CurrentUser = &cu
		}

	case SetUsers:
		s.Users = append([]User(nil), a.Users...)

	case AddInvestment:
		inv, err := NormalizeInvestment(a.Investment)
		if err != nil {
			return s
		}
		next := make([]Investment, 0, len(s.Investments)+1)
		next = append(next, s.Investments...)
		s.Investments = append(next, inv)

	case UpdateInvestment:
		inv, err := NormalizeInvestment(a.Investment)
		if err != nil {
			return s
		}
		next := append([]Investment(nil), s.Investments...)
		for i := range next {
			if next[i].ID == inv.ID {
				next[i] = inv
			}
		}
		s.Investments = next

	case SetInvestments:
		s.Investments = append([]Investment(nil), a.Investments...)

	case AddTransaction:
		tx, err := NormalizeTransaction(a.Transaction)
		if err != nil {
			return s
		}
		next := make([]Transaction, 0, len(s.Transactions)+1)
		next = append(next, s.Transactions...)
		s.Transactions = append(next, tx)

	case SetTransactions:
		s.Transactions = append([]Transaction(nil), a.Transactions...)

	case SetInvestmentPlans:
		s.Plans = append([]InvestmentPlan(nil), a.Plans...)

	case Logout:
		s.CurrentUser = nil
	}

	return s
}

func upsertUser(users []User, u User) []User {
	next := append([]User(nil), users...)
	for i := range next {
		if next[i].ID == u.ID {
			next[i] = u
			return next
		}
	}
	return append(next, u)
}

// =============================================================================
// SNAPSHOT QUERIES
// =============================================================================

// UserByID returns the user with the given id, or nil.
func (s Snapshot) UserByID(id string) *User {
	for i := range s.Users {
		if s.Users[i].ID == id {
			u := s.Users[i]
			return &u
		}
	}
	return nil
}

// PlanByID returns the plan with the given id, or nil.
func (s Snapshot) PlanByID(id string) *InvestmentPlan {
	for i := range s.Plans {
		if s.Plans[i].ID == id {
			p := s.Plans[i]
			return &p
		}
	}
	return nil
}

// InvestmentByID returns the investment with the given id, or nil.
func (s Snapshot) InvestmentByID(id string) *Investment {
	for i := range s.Investments {
		if s.Investments[i].ID == id {
			inv := s.Investments[i]
			return &inv
		}
	}
	return nil
}

// ActiveInvestments returns the active investments owned by userID.
func (s Snapshot) ActiveInvestments(userID string) []Investment {
	var out []Investment
	for _, inv := range s.Investments {
		if inv.UserID == userID && inv.IsActive {
			out = append(out, inv)
		}
	}
	return out
}
