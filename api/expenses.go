/*
expenses.go - Company expense endpoints

ENDPOINTS:
  GET    /api/expenses[?category=]     List expenses, newest first
  POST   /api/expenses                 Record an expense
  DELETE /api/expenses/{id}            Remove an expense
  GET    /api/expenses/summary         Company revenue against spending
  GET    /api/expenses/categories      Category names in form order
  GET    /api/expenses/export          CSV download of every expense

CREATOR:
  The verified principal (uid, email) is stamped on new expenses. Under
  anonymous auth both are empty.

SUMMARY:
  Revenue is the company's take-home over the whole ledger, the same figure
  as /api/metrics/revenue. Net is revenue minus total spending.
*/
package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/commission-engine/calendar"
	"github.com/warp/commission-engine/expense"
	"github.com/warp/commission-engine/identity"
	"github.com/warp/commission-engine/ledger"
)

// =============================================================================
// DTOS
// =============================================================================

type ExpenseDTO struct {
	ID             string `json:"id"`
	Category       string `json:"category"`
	Vendor         string `json:"vendor"`
	Description    string `json:"description"`
	Amount         string `json:"amount"`
	Date           string `json:"date"`
	CreatedAt      string `json:"created_at,omitempty"`
	CreatedBy      string `json:"created_by,omitempty"`
	CreatedByEmail string `json:"created_by_email,omitempty"`
}

// CreateExpenseRequest records one purchase. Date is an ISO day and
// defaults to today.
type CreateExpenseRequest struct {
	Category    string          `json:"category"`
	Vendor      string          `json:"vendor"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Date        string          `json:"date"`
}

type CategoryTotalDTO struct {
	Category string `json:"category"`
	Total    string `json:"total"`
	Count    int    `json:"count"`
}

type ExpenseSummaryDTO struct {
	Revenue    string             `json:"revenue"`
	Expenses   string             `json:"expenses"`
	Net        string             `json:"net"`
	Profitable bool               `json:"profitable"`
	Categories []CategoryTotalDTO `json:"categories"`
}

func toExpenseDTO(e expense.Expense) ExpenseDTO {
	dto := ExpenseDTO{
		ID:             e.ID,
		Category:       string(e.Category),
		Vendor:         e.Vendor,
		Description:    e.Description,
		Amount:         money(e.Amount),
		CreatedBy:      e.CreatedBy,
		CreatedByEmail: e.CreatedByEmail,
	}
	if !e.Date.IsZero() {
		dto.Date = e.Date.String()
	}
	if !e.CreatedAt.IsZero() {
		dto.CreatedAt = e.CreatedAt.UTC().Format(time.RFC3339)
	}
	return dto
}

func toExpenseDTOs(list []expense.Expense) []ExpenseDTO {
	out := make([]ExpenseDTO, len(list))
	for i, e := range list {
		out[i] = toExpenseDTO(e)
	}
	return out
}

// =============================================================================
// HANDLERS
// =============================================================================

// ListExpenses returns every expense, optionally limited to one category.
func (h *Handler) ListExpenses(w http.ResponseWriter, r *http.Request) {
	list, err := h.Store.ListExpenses(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list expenses", err)
		return
	}

	if q := r.URL.Query().Get("category"); q != "" {
		c, err := expense.ParseCategory(q)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid category", err)
			return
		}
		list = expense.InCategory(list, c)
	}

	writeJSON(w, http.StatusOK, toExpenseDTOs(list))
}

// CreateExpense records an expense for the calling principal.
func (h *Handler) CreateExpense(w http.ResponseWriter, r *http.Request) {
	var req CreateExpenseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON", err)
		return
	}

	c, err := expense.ParseCategory(req.Category)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid category", err)
		return
	}
	day := h.Calendar.Today()
	if req.Date != "" {
		if day, err = calendar.ParseDate(req.Date); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date", err)
			return
		}
	}

	e := expense.Expense{
		Category:    c,
		Vendor:      strings.TrimSpace(req.Vendor),
		Description: strings.TrimSpace(req.Description),
		Amount:      req.Amount,
		Date:        day,
	}
	if p, ok := identity.PrincipalFrom(r.Context()); ok {
		e.CreatedBy = p.UID
		e.CreatedByEmail = p.Email
	}

	saved, err := h.Store.AddExpense(r.Context(), e)
	if errors.Is(err, expense.ErrInvalidExpense) {
		writeError(w, http.StatusBadRequest, "Invalid expense", err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save expense", err)
		return
	}

	h.logger.Info("expense recorded",
		zap.String("id", saved.ID),
		zap.String("category", string(saved.Category)),
		zap.String("amount", money(saved.Amount)))
	writeJSON(w, http.StatusCreated, toExpenseDTO(saved))
}

func (h *Handler) DeleteExpense(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := h.Store.DeleteExpense(r.Context(), id)
	if errors.Is(err, expense.ErrExpenseNotFound) {
		writeError(w, http.StatusNotFound, "Expense not found", err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete expense", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ExpenseSummary compares company revenue with total spending.
func (h *Handler) ExpenseSummary(w http.ResponseWriter, r *http.Request) {
	lines, err := h.lines(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load cards", err)
		return
	}
	list, err := h.Store.ListExpenses(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list expenses", err)
		return
	}

	s := expense.Summarize(ledger.CompanyRevenue(lines), list)
	dto := ExpenseSummaryDTO{
		Revenue:    money(s.Revenue),
		Expenses:   money(s.Expenses),
		Net:        money(s.Net),
		Profitable: s.Profitable,
		Categories: make([]CategoryTotalDTO, len(s.Categories)),
	}
	for i, c := range s.Categories {
		dto.Categories[i] = CategoryTotalDTO{Category: string(c.Category), Total: money(c.Total), Count: c.Count}
	}
	writeJSON(w, http.StatusOK, dto)
}

func (h *Handler) ExpenseCategories(w http.ResponseWriter, r *http.Request) {
	cats := expense.Categories()
	out := make([]string, len(cats))
	for i, c := range cats {
		out[i] = string(c)
	}
	writeJSON(w, http.StatusOK, out)
}

// ExportExpenses streams every expense as CSV, newest first.
func (h *Handler) ExportExpenses(w http.ResponseWriter, r *http.Request) {
	list, err := h.Store.ListExpenses(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list expenses", err)
		return
	}

	w.Header().Set("Content-Type", "text/csv;charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, expense.ExportFilename(h.Calendar.Today())))
	w.WriteHeader(http.StatusOK)
	if err := expense.WriteCSV(w, list); err != nil {
		h.logger.Warn("expense export interrupted", zap.Error(err))
	}
}
