package ledger

import "saldo/internal/core"

// DefaultCategories are seeded into an empty ledger and cannot be deleted.
func DefaultCategories() []core.Category {
	return []core.Category{
		{ID: "salary", Name: "Salary", Icon: "briefcase", Color: "#2e7d32", Type: core.Income, IsDefault: true},
		{ID: "gifts", Name: "Gifts", Icon: "gift", Color: "#6a1b9a", Type: core.Income, IsDefault: true},
		{ID: "other-income", Name: "Other income", Icon: "plus", Color: "#00838f", Type: core.Income, IsDefault: true},
		{ID: "food", Name: "Food", Icon: "utensils", Color: "#ef6c00", Type: core.Expense, IsDefault: true},
		{ID: "housing", Name: "Housing", Icon: "home", Color: "#5d4037", Type: core.Expense, IsDefault: true},
		{ID: "transport", Name: "Transport", Icon: "car", Color: "#1565c0", Type: core.Expense, IsDefault: true},
		{ID: "utilities", Name: "Utilities", Icon: "bolt", Color: "#f9a825", Type: core.Expense, IsDefault: true},
		{ID: "health", Name: "Health", Icon: "heart", Color: "#c62828", Type: core.Expense, IsDefault: true},
		{ID: "entertainment", Name: "Entertainment", Icon: "film", Color: "#ad1457", Type: core.Expense, IsDefault: true},
		{ID: "shopping", Name: "Shopping", Icon: "bag", Color: "#4527a0", Type: core.Expense, IsDefault: true},
		{ID: "other-expense", Name: "Other", Icon: "dots", Color: "#546e7a", Type: core.Expense, IsDefault: true},
	}
}
