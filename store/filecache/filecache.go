/*
Package filecache provides the local-cache Adapter: a single JSON file
holding raw records, used when the durable store is unreachable.

The file stores wire-shape records, not parsed entities, so a tampered
or corrupted entry is caught by the validation layer on the next load
and dropped instead of crashing the process. Writes rewrite the whole
file under a mutex (seek, encode, truncate, sync); the data volume is
one user's session, so this stays cheap.
*/
package filecache

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oakline/invest-engine/domain"
)

type payload struct {
	Version      int                                 `json:"version"`
	Users        map[string]domain.UserRecord        `json:"users"`
	Investments  map[string]domain.InvestmentRecord  `json:"investments"`
	Transactions map[string]domain.TransactionRecord `json:"transactions"`
	Plans        map[string]domain.PlanRecord        `json:"plans"`
	UpdatedAt    time.Time                           `json:"updated_at"`
}

type Cache struct {
	mu   sync.RWMutex
	file *os.File
	data *payload
	log  *logrus.Logger
}

// Open loads (or initializes) the cache file at path.
func Open(path string, log *logrus.Logger) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, err
	}
	c := &Cache{file: f, log: log}
	if err := c.load(); err != nil {
		f.Close()
		return nil, err
	}
	return c, nil
}

func (c *Cache) Close() error { return c.file.Close() }

func (c *Cache) load() error {
	info, err := c.file.Stat()
	if err != nil {
		return err
	}
	fresh := &payload{
		Version:      1,
		Users:        map[string]domain.UserRecord{},
		Investments:  map[string]domain.InvestmentRecord{},
		Transactions: map[string]domain.TransactionRecord{},
		Plans:        map[string]domain.PlanRecord{},
	}
	if info.Size() == 0 {
		c.data = fresh
		return c.flushLocked()
	}

	var p payload
	if err := json.NewDecoder(c.file).Decode(&p); err != nil {
		// Corrupted cache file: start over rather than refuse to boot.
		c.log.WithError(err).Warn("cache file unreadable, reinitializing")
		c.data = fresh
		return c.flushLocked()
	}
	if p.Users == nil {
		p.Users = map[string]domain.UserRecord{}
	}
	if p.Investments == nil {
		p.Investments = map[string]domain.InvestmentRecord{}
	}
	if p.Transactions == nil {
		p.Transactions = map[string]domain.TransactionRecord{}
	}
	if p.Plans == nil {
		p.Plans = map[string]domain.PlanRecord{}
	}
	c.data = &p
	return nil
}

func (c *Cache) flushLocked() error {
	if _, err := c.file.Seek(0, io.SeekStart); err != nil {
		return err
	}
	enc := json.NewEncoder(c.file)
	enc.SetIndent("", "  ")
	c.data.UpdatedAt = time.Now().UTC()
	if err := enc.Encode(c.data); err != nil {
		return err
	}
	// A failed position read must not reach Truncate: pos 0 would wipe
	// the payload just written.
	pos, err := c.file.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	if err := c.file.Truncate(pos); err != nil {
		return err
	}
	return c.file.Sync()
}

func (c *Cache) write(fn func(*payload)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c.data)
	return c.flushLocked()
}

// =============================================================================
// ADAPTER IMPLEMENTATION
// =============================================================================

func (c *Cache) LoadUser(_ context.Context, userID string) (*domain.User, error) {
	c.mu.RLock()
	r, ok := c.data.Users[userID]
	c.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	u, err := domain.ParseUser(r)
	if err != nil {
		c.log.WithError(err).WithField("user_id", userID).Warn("dropping malformed cached user")
		return nil, nil
	}
	return &u, nil
}

func (c *Cache) SaveUser(_ context.Context, u domain.User) error {
	return c.write(func(p *payload) { p.Users[u.ID] = domain.FormatUser(u) })
}

func (c *Cache) LoadInvestments(_ context.Context, userID string) ([]domain.Investment, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []domain.Investment
	for _, r := range c.data.Investments {
		if r.UserID != userID {
			continue
		}
		inv, err := domain.ParseInvestment(r)
		if err != nil {
			c.log.WithError(err).WithField("investment_id", r.ID).Warn("dropping malformed cached investment")
			continue
		}
		out = append(out, inv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.After(out[j].StartDate) })
	return out, nil
}

func (c *Cache) SaveInvestment(_ context.Context, inv domain.Investment) error {
	return c.write(func(p *payload) { p.Investments[inv.ID] = domain.FormatInvestment(inv) })
}

func (c *Cache) LoadTransactions(_ context.Context, userID string) ([]domain.Transaction, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []domain.Transaction
	for _, r := range c.data.Transactions {
		if r.UserID != userID {
			continue
		}
		tx, err := domain.ParseTransaction(r)
		if err != nil {
			c.log.WithError(err).WithField("transaction_id", r.ID).Warn("dropping malformed cached transaction")
			continue
		}
		out = append(out, tx)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (c *Cache) SaveTransaction(_ context.Context, tx domain.Transaction) error {
	return c.write(func(p *payload) { p.Transactions[tx.ID] = domain.FormatTransaction(tx) })
}

func (c *Cache) LoadPlans(_ context.Context) ([]domain.InvestmentPlan, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []domain.InvestmentPlan
	for _, r := range c.data.Plans {
		p, err := domain.ParsePlan(r)
		if err != nil {
			c.log.WithError(err).WithField("plan_id", r.ID).Warn("dropping malformed cached plan")
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MinAmount.LessThan(out[j].MinAmount) })
	return out, nil
}

func (c *Cache) SeedPlans(_ context.Context, plans []domain.InvestmentPlan) error {
	return c.write(func(p *payload) {
		if len(p.Plans) > 0 {
			return
		}
		for _, plan := range plans {
			p.Plans[plan.ID] = domain.FormatPlan(plan)
		}
	})
}

// MirrorPlans overwrites the cached plan table. Used by the failover
// wrapper to keep the cache aligned with the durable store.
func (c *Cache) MirrorPlans(plans []domain.InvestmentPlan) error {
	return c.write(func(p *payload) {
		p.Plans = map[string]domain.PlanRecord{}
		for _, plan := range plans {
			p.Plans[plan.ID] = domain.FormatPlan(plan)
		}
	})
}

var _ domain.Adapter = (*Cache)(nil)
