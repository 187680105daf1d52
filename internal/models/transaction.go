package models

import "time"

// TransactionType represents the type of transaction
type TransactionType string

const (
	TransactionTypeIncome  TransactionType = "income"
	TransactionTypeExpense TransactionType = "expense"
)

// Transaction represents a financial transaction in the system.
// RecurringExpenseID is set on transactions materialized from a recurring
// expense; together with Date it is unique, so one due date yields at most
// one transaction.
type Transaction struct {
	Base
	UserID             string          `gorm:"type:uuid;not null;index" json:"user_id"`
	CategoryID         *string         `gorm:"type:uuid" json:"category_id,omitempty"`
	Type               TransactionType `gorm:"not null" json:"type"`
	Amount             int64           `gorm:"type:bigint;not null" json:"amount"`
	Description        string          `json:"description"`
	Date               time.Time       `gorm:"not null;uniqueIndex:uq_transactions_recurring_date,priority:2" json:"date"`
	RecurringExpenseID *string         `gorm:"type:uuid;uniqueIndex:uq_transactions_recurring_date,priority:1" json:"recurring_expense_id,omitempty"`
}
