package models

import (
	"time"

	"gorm.io/gorm"
)

// Expense is one fixed operating expense entry. The sum of a month's
// expenses feeds the overhead allocation of every batch simulated against
// that month.
type Expense struct {
	gorm.Model
	Category    string     `gorm:"not null;index" json:"category"`
	Beneficiary string     `json:"beneficiary"`
	Reference   string     `gorm:"uniqueIndex" json:"reference"`
	Amount      float64    `gorm:"not null" json:"amount"`
	InvoiceDate time.Time  `gorm:"not null;index" json:"invoice_date"`
	PaymentDate *time.Time `json:"payment_date,omitempty"`
	Notes       string     `gorm:"type:text" json:"notes"`
}
