// Package sheets defines the export sink that mirrors expenses into a
// spreadsheet.
package sheets

import (
	"context"

	"spendly/internal/core"
)

// Ports for outbound adapters.
type (
	// ExpenseExporter keeps one spreadsheet row per expense.
	ExpenseExporter interface {
		// Upsert writes e, replacing an existing row with the same ID.
		Upsert(ctx context.Context, e core.Expense) error
		// Remove deletes the row of expenseID. Missing rows are not an error.
		Remove(ctx context.Context, expenseID string) error
	}
)

// Header is the first row of the export sheet.
var Header = []string{"ID", "User", "Date", "Description", "Category", "Amount"}
