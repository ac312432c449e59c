/*
Package sqlite provides a SQLite-backed roster, payout ledger and expense
log.

PURPOSE:
  Implements roster.Source, roster.Writer, ledger.Store and expense.Store
  on a single SQLite database. Used as the default backend for local runs and tests;
  the hosted deployment uses store/firestore with the same interfaces.

APPEND-ONLY ENFORCEMENT:
  - No UPDATE statements on the cards table
  - No DELETE statements on the cards table (Reset aside, dev only)

KEY TABLES:
  employees:  Roster records, directory order = insertion order (rowid)
  cards:      Payout lines, one row per beneficiary per event
  expenses:   Company spending; rows are added and deleted, never updated

MONEY:
  amount, revenue and take_home (and expense amount) are stored as TEXT
  decimal strings so
  cents survive the round trip exactly.

CHANGE FEED:
  Every append reloads the full card set and publishes it through a
  ledger.Broadcaster. Watchers get the current set on subscribe.

CONCURRENCY:
  Uses sync.RWMutex plus a single connection. SQLite serializes writers
  anyway; one connection also keeps ":memory:" databases shared.

USAGE:
  store, err := sqlite.New("./data/commission.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine := commission.NewEngine(store, nil, logger)

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - ledger/line.go: Interface definitions
  - ledger/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/commission-engine/calendar"
	"github.com/warp/commission-engine/expense"
	"github.com/warp/commission-engine/ledger"
	"github.com/warp/commission-engine/roster"
)

// Store implements the roster and ledger interfaces using SQLite.
type Store struct {
	db   *sql.DB
	mu   sync.RWMutex
	feed *ledger.Broadcaster

	// Now stamps created_at. Defaults to time.Now.
	Now func() time.Time
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db, feed: ledger.NewBroadcaster(), Now: time.Now}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	if err := store.publish(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load cards: %w", err)
	}

	return store, nil
}

// Close ends every watch and closes the database connection.
func (s *Store) Close() error {
	s.feed.Close()
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Roster
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		job_title TEXT NOT NULL DEFAULT '',
		team TEXT NOT NULL,
		role TEXT,
		created_at TEXT NOT NULL
	);

	-- Payout lines (append-only)
	CREATE TABLE IF NOT EXISTS cards (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		employee_id TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		job_title TEXT NOT NULL DEFAULT '',
		team TEXT NOT NULL DEFAULT '',
		for_team TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		amount TEXT NOT NULL,
		revenue TEXT NOT NULL,
		take_home TEXT NOT NULL,
		created_at TEXT NOT NULL,
		bi_week_start TEXT,
		bi_week_end TEXT,
		bi_week_key TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_cards_bi_week_key
		ON cards(bi_week_key) WHERE bi_week_key IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_cards_employee
		ON cards(employee_id);

	-- Expenses
	CREATE TABLE IF NOT EXISTS expenses (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		category TEXT NOT NULL,
		vendor TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		amount TEXT NOT NULL,
		expense_date TEXT,
		created_at TEXT NOT NULL,
		created_by TEXT NOT NULL DEFAULT '',
		created_by_email TEXT NOT NULL DEFAULT ''
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// ROSTER (roster.Source / roster.Writer)
// =============================================================================

// SaveEmployee inserts or updates an employee. An empty id gets a new one.
// Updating keeps the record's directory position.
func (s *Store) SaveEmployee(ctx context.Context, e roster.Employee) (roster.Employee, error) {
	if e.Name == "" {
		return roster.Employee{}, errors.New("save employee: name is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.ID == "" {
		e.ID = uuid.NewString()
	}

	query := `
		INSERT INTO employees (id, name, job_title, team, role, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			job_title = excluded.job_title,
			team = excluded.team,
			role = excluded.role
	`
	_, err := s.db.ExecContext(ctx, query,
		e.ID, e.Name, e.JobTitle, string(e.Team), nullString(string(e.Role)),
		s.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return roster.Employee{}, fmt.Errorf("failed to save employee: %w", err)
	}
	return e, nil
}

// ListEmployees returns the roster in insertion order.
func (s *Store) ListEmployees(ctx context.Context) ([]roster.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, job_title, team, role FROM employees ORDER BY rowid",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query employees: %w", err)
	}
	defer rows.Close()

	var employees []roster.Employee
	for rows.Next() {
		var (
			e    roster.Employee
			team string
			role sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.Name, &e.JobTitle, &team, &role); err != nil {
			return nil, fmt.Errorf("failed to scan employee: %w", err)
		}
		e.Team = roster.Team(team)
		// Unknown tags are treated as untagged so alias matching still applies
		e.Role, _ = roster.ParseRole(role.String)
		employees = append(employees, e)
	}
	return employees, rows.Err()
}

// =============================================================================
// LEDGER (ledger.Store)
// =============================================================================

const cardColumns = `id, employee_id, name, job_title, team, for_team, description,
	amount, revenue, take_home, created_at, bi_week_start, bi_week_end, bi_week_key`

// Append adds a payout line. The store assigns id and created_at.
func (s *Store) Append(ctx context.Context, line ledger.PayoutLine) (ledger.PayoutLine, error) {
	if err := line.Validate(); err != nil {
		return ledger.PayoutLine{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	line.ID = uuid.NewString()
	line.CreatedAt = s.Now().UTC()

	query := `INSERT INTO cards (` + cardColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		line.ID,
		line.EmployeeID,
		line.Name,
		line.JobTitle,
		string(line.Team),
		string(line.ForTeam),
		line.Description,
		line.Amount.String(),
		line.Revenue.String(),
		line.TakeHome.String(),
		line.CreatedAt.Format(time.RFC3339Nano),
		nullString(line.BiWeekStart),
		nullString(line.BiWeekEnd),
		nullString(line.BiWeekKey),
	)
	if err != nil {
		return ledger.PayoutLine{}, fmt.Errorf("failed to append card: %w", err)
	}

	// Publish under the lock so watchers never see snapshots out of order
	if err := s.publishLocked(ctx); err != nil {
		return line, fmt.Errorf("card %s stored, feed refresh failed: %w", line.ID, err)
	}
	return line, nil
}

// List returns every payout line, oldest first.
func (s *Store) List(ctx context.Context) ([]ledger.PayoutLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryCards(ctx, "SELECT "+cardColumns+" FROM cards ORDER BY seq")
}

// Get returns one payout line by id.
func (s *Store) Get(ctx context.Context, id string) (ledger.PayoutLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lines, err := s.queryCards(ctx, "SELECT "+cardColumns+" FROM cards WHERE id = ?", id)
	if err != nil {
		return ledger.PayoutLine{}, err
	}
	if len(lines) == 0 {
		return ledger.PayoutLine{}, fmt.Errorf("%w: %s", ledger.ErrLineNotFound, id)
	}
	return lines[0], nil
}

// ListByPeriodKey returns lines tagged with key. Legacy rows without a key
// are not included; use ledger.InPeriod over List for those.
func (s *Store) ListByPeriodKey(ctx context.Context, key string) ([]ledger.PayoutLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryCards(ctx, "SELECT "+cardColumns+" FROM cards WHERE bi_week_key = ? ORDER BY seq", key)
}

// Watch subscribes to the full card set.
func (s *Store) Watch(ctx context.Context) (<-chan []ledger.PayoutLine, error) {
	return s.feed.Subscribe(ctx)
}

func (s *Store) publish(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.publishLocked(ctx)
}

func (s *Store) publishLocked(ctx context.Context) error {
	lines, err := s.queryCards(ctx, "SELECT "+cardColumns+" FROM cards ORDER BY seq")
	if err != nil {
		return err
	}
	s.feed.Publish(lines)
	return nil
}

func (s *Store) queryCards(ctx context.Context, query string, args ...any) ([]ledger.PayoutLine, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query cards: %w", err)
	}
	defer rows.Close()

	var lines []ledger.PayoutLine
	for rows.Next() {
		line, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func scanCard(rows *sql.Rows) (ledger.PayoutLine, error) {
	var (
		line                      ledger.PayoutLine
		team, forTeam             string
		amount, revenue, takeHome string
		createdAt                 string
		start, end, key           sql.NullString
	)

	err := rows.Scan(
		&line.ID, &line.EmployeeID, &line.Name, &line.JobTitle, &team, &forTeam,
		&line.Description, &amount, &revenue, &takeHome, &createdAt,
		&start, &end, &key,
	)
	if err != nil {
		return line, fmt.Errorf("failed to scan card: %w", err)
	}

	line.Team = roster.Team(team)
	line.ForTeam = roster.Team(forTeam)
	line.Amount = parseMoney(amount)
	line.Revenue = parseMoney(revenue)
	line.TakeHome = parseMoney(takeHome)
	line.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	line.BiWeekStart = start.String
	line.BiWeekEnd = end.String
	line.BiWeekKey = key.String
	return line, nil
}

// =============================================================================
// EXPENSES (expense.Store)
// =============================================================================

// AddExpense stores a validated expense. The store assigns id and created_at.
func (s *Store) AddExpense(ctx context.Context, e expense.Expense) (expense.Expense, error) {
	if err := e.Validate(); err != nil {
		return expense.Expense{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e.ID = uuid.NewString()
	e.CreatedAt = s.Now().UTC()

	query := `
		INSERT INTO expenses (id, category, vendor, description, amount, expense_date, created_at, created_by, created_by_email)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		e.ID, string(e.Category), e.Vendor, e.Description, e.Amount.String(),
		e.Date.String(), e.CreatedAt.Format(time.RFC3339Nano), e.CreatedBy, e.CreatedByEmail,
	)
	if err != nil {
		return expense.Expense{}, fmt.Errorf("failed to add expense: %w", err)
	}
	return e, nil
}

// ListExpenses returns every expense, newest first.
func (s *Store) ListExpenses(ctx context.Context) ([]expense.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, category, vendor, description, amount, expense_date, created_at, created_by, created_by_email
		FROM expenses ORDER BY seq
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query expenses: %w", err)
	}
	defer rows.Close()

	var list []expense.Expense
	for rows.Next() {
		var (
			e                expense.Expense
			category, amount string
			day              sql.NullString
			createdAt        string
		)
		if err := rows.Scan(&e.ID, &category, &e.Vendor, &e.Description, &amount, &day, &createdAt, &e.CreatedBy, &e.CreatedByEmail); err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		e.Category = expense.Category(category)
		e.Amount = parseMoney(amount)
		e.Date, _ = calendar.ParseDate(day.String)
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		list = append(list, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	expense.Sort(list)
	return list, nil
}

// DeleteExpense removes one expense.
func (s *Store) DeleteExpense(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM expenses WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", expense.ErrExpenseNotFound, id)
	}
	return nil
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo) and notifies watchers.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"cards", "employees", "expenses"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return s.publishLocked(ctx)
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// parseMoney reads a stored decimal; unreadable values count as zero the
// way the dashboard treats non-numeric fields.
func parseMoney(s string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero
	}
	return d
}
