package expense

import "errors"

var (
	// ErrInvalidExpense is returned when an expense fails Validate.
	ErrInvalidExpense = errors.New("invalid expense")

	// ErrExpenseNotFound is returned when an expense id does not exist.
	ErrExpenseNotFound = errors.New("expense not found")
)
