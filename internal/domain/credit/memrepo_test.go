package credit

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// memRepo is an in-memory Repository with the same conditional semantics as the SQL one.
type memRepo struct {
	mu       sync.Mutex
	balances map[string]*UserCredits
	entries  []LedgerEntry
}

func newMemRepo() *memRepo {
	return &memRepo{balances: map[string]*UserCredits{}}
}

func (m *memRepo) GetBalance(_ context.Context, userID string) (*UserCredits, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if uc, ok := m.balances[userID]; ok {
		cp := *uc
		return &cp, nil
	}
	return &UserCredits{UserID: userID}, nil
}

func (m *memRepo) Add(ctx context.Context, userID string, amount int, reason Reason, description string, meta Metadata) (int, error) {
	return m.AddTx(ctx, nil, userID, amount, reason, description, meta)
}

func (m *memRepo) AddTx(_ context.Context, _ *sqlx.Tx, userID string, amount int, reason Reason, description string, meta Metadata) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if reason == ReasonBonus && meta.PackageID != "" {
		for _, e := range m.entries {
			if e.UserID == userID && e.Reason == ReasonBonus && e.Metadata.PackageID == meta.PackageID {
				return 0, ErrAlreadyClaimed
			}
		}
	}

	uc, ok := m.balances[userID]
	if !ok {
		uc = &UserCredits{UserID: userID}
		m.balances[userID] = uc
	}
	uc.Balance += amount
	uc.TotalPurchased += amount
	m.append(userID, amount, reason, description, meta)
	return uc.Balance, nil
}

func (m *memRepo) Deduct(_ context.Context, userID string, amount int, description string, meta Metadata) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	uc, ok := m.balances[userID]
	if !ok || uc.Balance < amount {
		balance := 0
		if ok {
			balance = uc.Balance
		}
		return 0, &InsufficientCreditsError{Required: amount, Balance: balance}
	}
	uc.Balance -= amount
	uc.TotalUsed += amount
	m.append(userID, -amount, ReasonUsage, description, meta)
	return uc.Balance, nil
}

func (m *memRepo) ListEntries(_ context.Context, userID string, limit, offset int) ([]LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]LedgerEntry, 0)
	for _, e := range m.entries {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return []LedgerEntry{}, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memRepo) LedgerTotals(_ context.Context, userID string) (*LedgerTotals, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var t LedgerTotals
	for _, e := range m.entries {
		if e.UserID != userID {
			continue
		}
		t.EntryCount++
		if e.Delta > 0 {
			t.Credited += e.Delta
		} else {
			t.Debited -= e.Delta
		}
	}
	return &t, nil
}

func (m *memRepo) append(userID string, delta int, reason Reason, description string, meta Metadata) {
	m.entries = append(m.entries, LedgerEntry{
		ID:          uuid.New(),
		UserID:      userID,
		Delta:       delta,
		Reason:      reason,
		Description: description,
		Metadata:    meta,
		CreatedAt:   time.Now().Add(time.Duration(len(m.entries)) * time.Microsecond),
	})
}
