// Package store provides in-process ledger, roster and expense stores.
package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/warp/commission-engine/expense"
	"github.com/warp/commission-engine/ledger"
	"github.com/warp/commission-engine/roster"
)

// =============================================================================
// MEMORY STORE - In-memory roster + ledger + expenses (for testing/dev)
// =============================================================================

type Memory struct {
	mu        sync.RWMutex
	employees []roster.Employee
	lines     []ledger.PayoutLine
	lineIndex map[string]int
	expenses  []expense.Expense
	feed      *ledger.Broadcaster

	// Now stamps CreatedAt. Defaults to time.Now.
	Now func() time.Time
}

func NewMemory() *Memory {
	m := &Memory{
		lineIndex: make(map[string]int),
		feed:      ledger.NewBroadcaster(),
		Now:       time.Now,
	}
	m.feed.Publish(nil)
	return m
}

// =============================================================================
// ROSTER
// =============================================================================

func (m *Memory) ListEmployees(_ context.Context) ([]roster.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]roster.Employee(nil), m.employees...), nil
}

// SaveEmployee inserts e, or replaces the record with the same id. An empty
// id gets a new one.
func (m *Memory) SaveEmployee(_ context.Context, e roster.Employee) (roster.Employee, error) {
	if e.Name == "" {
		return roster.Employee{}, fmt.Errorf("save employee: name is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	for i := range m.employees {
		if m.employees[i].ID == e.ID {
			m.employees[i] = e
			return e, nil
		}
	}
	m.employees = append(m.employees, e)
	return e, nil
}

// =============================================================================
// LEDGER
// =============================================================================

// Append stores one line. Append-only.
func (m *Memory) Append(_ context.Context, line ledger.PayoutLine) (ledger.PayoutLine, error) {
	if err := line.Validate(); err != nil {
		return ledger.PayoutLine{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	line.ID = uuid.NewString()
	line.CreatedAt = m.Now().UTC()
	m.lineIndex[line.ID] = len(m.lines)
	m.lines = append(m.lines, line)

	// Publish under the lock so watchers never see snapshots out of order
	m.feed.Publish(m.lines)
	return line, nil
}

func (m *Memory) List(_ context.Context) ([]ledger.PayoutLine, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]ledger.PayoutLine(nil), m.lines...), nil
}

func (m *Memory) Get(_ context.Context, id string) (ledger.PayoutLine, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i, ok := m.lineIndex[id]
	if !ok {
		return ledger.PayoutLine{}, fmt.Errorf("%w: %s", ledger.ErrLineNotFound, id)
	}
	return m.lines[i], nil
}

func (m *Memory) Watch(ctx context.Context) (<-chan []ledger.PayoutLine, error) {
	return m.feed.Subscribe(ctx)
}

// =============================================================================
// EXPENSES
// =============================================================================

func (m *Memory) AddExpense(_ context.Context, e expense.Expense) (expense.Expense, error) {
	if err := e.Validate(); err != nil {
		return expense.Expense{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	e.ID = uuid.NewString()
	e.CreatedAt = m.Now().UTC()
	m.expenses = append(m.expenses, e)
	return e, nil
}

func (m *Memory) ListExpenses(_ context.Context) ([]expense.Expense, error) {
	m.mu.RLock()
	list := append([]expense.Expense(nil), m.expenses...)
	m.mu.RUnlock()

	expense.Sort(list)
	return list, nil
}

func (m *Memory) DeleteExpense(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.expenses {
		if m.expenses[i].ID == id {
			m.expenses = append(m.expenses[:i], m.expenses[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", expense.ErrExpenseNotFound, id)
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo) and notifies watchers.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.employees = nil
	m.expenses = nil
	m.lines = nil
	m.lineIndex = make(map[string]int)
	m.feed.Publish(nil)
	return nil
}

// Close ends every watch.
func (m *Memory) Close() error {
	m.feed.Close()
	return nil
}
