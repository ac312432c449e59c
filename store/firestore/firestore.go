/*
Package firestore provides a Cloud Firestore-backed roster, payout ledger and
expense log for the hosted dashboard.

COLLECTIONS:
  employees:  Roster records
  cards:      Payout lines, one document per beneficiary per event
  expenses:   Company spending

DOCUMENT SHAPE:
  Field names are the dashboard's camelCase names (employeeId, jobTitle,
  forTeam, takeHome, biWeekStart, biWeekEnd, biWeekKey, createdAt,
  expenseDate, createdByEmail). Money is a number. createdAt is a server
  timestamp. Documents are read field by field so older records decode
  too: whole-dollar amounts that Firestore keeps as integers, amounts
  saved as strings, cards without biWeekKey, and employees without
  createdAt or role.

ORDER:
  Queries never order by a field, since Firestore drops documents that
  lack it. Results are sorted here by createdAt; documents without one
  come first in document order.

CHANGE FEED:
  Watch opens a snapshot listener on cards and forwards every full result
  set through a ledger.Broadcaster, so it has the same latest-snapshot-wins
  behavior as the in-process stores. A listener error ends the watch; the
  caller subscribes again (see ledger.View.Follow).

TESTING:
  The tests run against the Firestore emulator and are skipped unless
  FIRESTORE_EMULATOR_HOST is set.
*/
package firestore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"github.com/shopspring/decimal"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/warp/commission-engine/calendar"
	"github.com/warp/commission-engine/expense"
	"github.com/warp/commission-engine/ledger"
	"github.com/warp/commission-engine/roster"
)

const (
	employeesCollection = "employees"
	cardsCollection     = "cards"
	expensesCollection  = "expenses"
)

// Store implements the roster, ledger and expense interfaces on Firestore.
type Store struct {
	client *firestore.Client
}

// New wraps an existing client. The store takes ownership of it.
func New(client *firestore.Client) *Store {
	return &Store{client: client}
}

// NewFromApp opens the Firestore client of a Firebase app.
func NewFromApp(ctx context.Context, app *firebase.App) (*Store, error) {
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("open firestore client: %w", err)
	}
	return New(client), nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) employees() *firestore.CollectionRef { return s.client.Collection(employeesCollection) }
func (s *Store) cards() *firestore.CollectionRef     { return s.client.Collection(cardsCollection) }
func (s *Store) expenses() *firestore.CollectionRef  { return s.client.Collection(expensesCollection) }

// =============================================================================
// DOCUMENTS
// =============================================================================

func cardData(l ledger.PayoutLine) map[string]interface{} {
	return map[string]interface{}{
		"name":        l.Name,
		"employeeId":  l.EmployeeID,
		"jobTitle":    l.JobTitle,
		"team":        string(l.Team),
		"forTeam":     string(l.ForTeam),
		"description": l.Description,
		"amount":      l.Amount.InexactFloat64(),
		"revenue":     l.Revenue.InexactFloat64(),
		"takeHome":    l.TakeHome.InexactFloat64(),
		"createdAt":   firestore.ServerTimestamp,
		"biWeekStart": l.BiWeekStart,
		"biWeekEnd":   l.BiWeekEnd,
		"biWeekKey":   l.BiWeekKey,
	}
}

func cardFrom(doc *firestore.DocumentSnapshot) ledger.PayoutLine {
	f := fields(doc.Data())
	return ledger.PayoutLine{
		ID:          doc.Ref.ID,
		EmployeeID:  f.str("employeeId"),
		Name:        f.str("name"),
		JobTitle:    f.str("jobTitle"),
		Team:        roster.Team(f.str("team")),
		ForTeam:     roster.Team(f.str("forTeam")),
		Description: f.str("description"),
		Amount:      f.money("amount"),
		Revenue:     f.money("revenue"),
		TakeHome:    f.money("takeHome"),
		CreatedAt:   f.time("createdAt"),
		BiWeekStart: f.stamp("biWeekStart"),
		BiWeekEnd:   f.stamp("biWeekEnd"),
		BiWeekKey:   f.str("biWeekKey"),
	}
}

func employeeFrom(doc *firestore.DocumentSnapshot) (roster.Employee, time.Time) {
	f := fields(doc.Data())
	// Unknown tags are treated as untagged so alias matching still applies
	role, _ := roster.ParseRole(f.str("role"))
	return roster.Employee{
		ID:       doc.Ref.ID,
		Name:     f.str("name"),
		JobTitle: f.str("jobTitle"),
		Team:     roster.Team(f.str("team")),
		Role:     role,
	}, f.time("createdAt")
}

func expenseData(e expense.Expense) map[string]interface{} {
	return map[string]interface{}{
		"category":       string(e.Category),
		"vendor":         e.Vendor,
		"description":    e.Description,
		"amount":         e.Amount.InexactFloat64(),
		"expenseDate":    e.Date.Time,
		"createdAt":      firestore.ServerTimestamp,
		"createdBy":      e.CreatedBy,
		"createdByEmail": e.CreatedByEmail,
	}
}

func expenseFrom(doc *firestore.DocumentSnapshot) expense.Expense {
	f := fields(doc.Data())
	e := expense.Expense{
		ID:             doc.Ref.ID,
		Category:       expense.Category(f.str("category")),
		Vendor:         f.str("vendor"),
		Description:    f.str("description"),
		Amount:         f.money("amount"),
		CreatedAt:      f.time("createdAt"),
		CreatedBy:      f.str("createdBy"),
		CreatedByEmail: f.str("createdByEmail"),
	}
	if day := f.time("expenseDate"); !day.IsZero() {
		e.Date = calendar.DateOf(day, time.UTC)
	}
	return e
}

// =============================================================================
// ROSTER (roster.Source / roster.Writer)
// =============================================================================

// SaveEmployee creates the employee document, or updates the fields of an
// existing one. An empty id gets a generated document id. Updates keep
// createdAt and with it the directory position.
func (s *Store) SaveEmployee(ctx context.Context, e roster.Employee) (roster.Employee, error) {
	if e.Name == "" {
		return roster.Employee{}, errors.New("save employee: name is required")
	}

	ref := s.employees().NewDoc()
	if e.ID != "" {
		ref = s.employees().Doc(e.ID)
	}
	e.ID = ref.ID

	data := map[string]interface{}{
		"name":     e.Name,
		"jobTitle": e.JobTitle,
		"team":     string(e.Team),
		"role":     string(e.Role),
	}
	create := map[string]interface{}{"createdAt": firestore.ServerTimestamp}
	for k, v := range data {
		create[k] = v
	}

	_, err := ref.Create(ctx, create)
	if status.Code(err) == codes.AlreadyExists {
		_, err = ref.Set(ctx, data, firestore.MergeAll)
	}
	if err != nil {
		return roster.Employee{}, fmt.Errorf("failed to save employee: %w", err)
	}
	return e, nil
}

// ListEmployees returns the roster in creation order. Employees without
// createdAt (seeded by hand) come first.
func (s *Store) ListEmployees(ctx context.Context) ([]roster.Employee, error) {
	docs, err := s.employees().Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to query employees: %w", err)
	}

	type entry struct {
		e       roster.Employee
		created time.Time
	}
	entries := make([]entry, len(docs))
	for i, doc := range docs {
		entries[i].e, entries[i].created = employeeFrom(doc)
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].created.Before(entries[j].created) })

	employees := make([]roster.Employee, len(entries))
	for i, en := range entries {
		employees[i] = en.e
	}
	return employees, nil
}

// =============================================================================
// LEDGER (ledger.Store)
// =============================================================================

// Append creates one card document. Its id is the generated document id and
// CreatedAt is the commit time.
func (s *Store) Append(ctx context.Context, line ledger.PayoutLine) (ledger.PayoutLine, error) {
	if err := line.Validate(); err != nil {
		return ledger.PayoutLine{}, err
	}

	ref := s.cards().NewDoc()
	wr, err := ref.Create(ctx, cardData(line))
	if err != nil {
		return ledger.PayoutLine{}, fmt.Errorf("failed to append card: %w", err)
	}
	line.ID = ref.ID
	line.CreatedAt = wr.UpdateTime.UTC()
	return line, nil
}

// List returns every payout line, oldest first.
func (s *Store) List(ctx context.Context) ([]ledger.PayoutLine, error) {
	docs, err := s.cards().Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to query cards: %w", err)
	}
	return decodeCards(docs), nil
}

func (s *Store) Get(ctx context.Context, id string) (ledger.PayoutLine, error) {
	doc, err := s.cards().Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return ledger.PayoutLine{}, fmt.Errorf("%w: %s", ledger.ErrLineNotFound, id)
	}
	if err != nil {
		return ledger.PayoutLine{}, fmt.Errorf("failed to get card: %w", err)
	}
	return cardFrom(doc), nil
}

// ListByPeriodKey returns the lines tagged with key, oldest first. Legacy
// lines without a key are not returned.
func (s *Store) ListByPeriodKey(ctx context.Context, key string) ([]ledger.PayoutLine, error) {
	docs, err := s.cards().Where("biWeekKey", "==", key).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to query cards: %w", err)
	}
	return decodeCards(docs), nil
}

// Watch streams the full card set on every change until ctx is done or the
// listener fails.
func (s *Store) Watch(ctx context.Context) (<-chan []ledger.PayoutLine, error) {
	feed := ledger.NewBroadcaster()
	ch, err := feed.Subscribe(ctx)
	if err != nil {
		return nil, err
	}

	snapshots := s.cards().Snapshots(ctx)
	go func() {
		defer feed.Close()
		defer snapshots.Stop()
		for {
			snap, err := snapshots.Next()
			if err != nil {
				return
			}
			docs, err := snap.Documents.GetAll()
			if err != nil {
				return
			}
			feed.Publish(decodeCards(docs))
		}
	}()
	return ch, nil
}

// =============================================================================
// EXPENSES (expense.Store)
// =============================================================================

// AddExpense creates one expense document.
func (s *Store) AddExpense(ctx context.Context, e expense.Expense) (expense.Expense, error) {
	if err := e.Validate(); err != nil {
		return expense.Expense{}, err
	}

	ref := s.expenses().NewDoc()
	wr, err := ref.Create(ctx, expenseData(e))
	if err != nil {
		return expense.Expense{}, fmt.Errorf("failed to add expense: %w", err)
	}
	e.ID = ref.ID
	e.CreatedAt = wr.UpdateTime.UTC()
	return e, nil
}

// ListExpenses returns every expense, newest first.
func (s *Store) ListExpenses(ctx context.Context) ([]expense.Expense, error) {
	docs, err := s.expenses().Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to query expenses: %w", err)
	}
	list := make([]expense.Expense, len(docs))
	for i, doc := range docs {
		list[i] = expenseFrom(doc)
	}
	expense.Sort(list)
	return list, nil
}

// DeleteExpense removes one expense document.
func (s *Store) DeleteExpense(ctx context.Context, id string) error {
	ref := s.expenses().Doc(id)
	if _, err := ref.Get(ctx); status.Code(err) == codes.NotFound {
		return fmt.Errorf("%w: %s", expense.ErrExpenseNotFound, id)
	} else if err != nil {
		return fmt.Errorf("failed to get expense: %w", err)
	}
	if _, err := ref.Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}
	return nil
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset deletes every card, employee and expense document (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	bw := s.client.BulkWriter(ctx)
	for _, col := range []*firestore.CollectionRef{s.cards(), s.employees(), s.expenses()} {
		iter := col.Documents(ctx)
		for {
			doc, err := iter.Next()
			if errors.Is(err, iterator.Done) {
				break
			}
			if err != nil {
				iter.Stop()
				bw.End()
				return fmt.Errorf("failed to list %s: %w", col.ID, err)
			}
			if _, err := bw.Delete(doc.Ref); err != nil {
				iter.Stop()
				bw.End()
				return fmt.Errorf("failed to delete %s/%s: %w", col.ID, doc.Ref.ID, err)
			}
		}
		iter.Stop()
	}
	bw.End()
	return nil
}

// decodeCards converts docs to lines sorted oldest first.
func decodeCards(docs []*firestore.DocumentSnapshot) []ledger.PayoutLine {
	lines := make([]ledger.PayoutLine, len(docs))
	for i, doc := range docs {
		lines[i] = cardFrom(doc)
	}
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].CreatedAt.Before(lines[j].CreatedAt) })
	return lines
}

// fields reads document values of whatever type older clients wrote.
type fields map[string]interface{}

func (f fields) str(key string) string {
	switch v := f[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// money reads a number, or a numeric string. Anything else counts as zero
// the way the dashboard treats non-numeric fields.
func (f fields) money(key string) decimal.Decimal {
	switch v := f[key].(type) {
	case int64:
		return decimal.NewFromInt(v)
	case float64:
		return decimal.NewFromFloat(v)
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(v))
		if err != nil {
			return decimal.Zero
		}
		return d
	default:
		return decimal.Zero
	}
}

func (f fields) time(key string) time.Time {
	if t, ok := f[key].(time.Time); ok {
		return t.UTC()
	}
	return time.Time{}
}

// stamp reads a period boundary stored as an ISO string or as a timestamp.
func (f fields) stamp(key string) string {
	if t, ok := f[key].(time.Time); ok {
		return t.UTC().Format(calendar.TimestampLayout)
	}
	return f.str(key)
}
