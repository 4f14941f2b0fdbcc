package models

import (
	"time"

	"gorm.io/gorm"
)

// Expense is a shared expense within a group. A settlement (one user paying
// off debt to another) is stored as a special expense so the balance engine
// can consume both uniformly: the payer fronted the money, the shares owe it.
type Expense struct {
	ID             uint           `json:"id" gorm:"primaryKey"`
	GroupID        string         `json:"groupId" gorm:"size:64;index;not null"`
	PayerID        string         `json:"payerId" gorm:"size:64;index;not null"`
	Description    string         `json:"description" gorm:"size:255;not null"`
	Category       string         `json:"category" gorm:"size:20;not null"`
	SplitType      string         `json:"splitType" gorm:"size:20;not null;default:EQUAL"`
	TotalAmount    float64        `json:"totalAmount" gorm:"type:decimal(12,2);not null"`
	OriginalAmount float64        `json:"originalAmount" gorm:"type:decimal(12,2)"`
	Currency       string         `json:"currency" gorm:"size:3;not null;default:EUR"`
	ExchangeRate   float64        `json:"exchangeRate" gorm:"default:1"`
	Date           time.Time      `json:"date"`
	IsSettlement   bool           `json:"isSettlement" gorm:"index"`
	Shares         []ExpenseShare `json:"shares" gorm:"foreignKey:ExpenseID;constraint:OnDelete:CASCADE"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
	DeletedAt      gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName sets the table name.
func (Expense) TableName() string {
	return "expenses"
}

// ExpenseShare is one participant's part of an expense, in the settlement
// currency. Share order is preserved through the autoincrement key.
type ExpenseShare struct {
	ID        uint    `json:"-" gorm:"primaryKey"`
	ExpenseID uint    `json:"-" gorm:"index;not null"`
	UserID    string  `json:"userId" gorm:"size:64;not null"`
	Amount    float64 `json:"amount" gorm:"type:decimal(12,2);not null"`
}

// TableName sets the table name.
func (ExpenseShare) TableName() string {
	return "expense_shares"
}

// Expense categories.
const (
	CategoryFood          = "FOOD"
	CategoryTransport     = "TRANSPORT"
	CategoryAccommodation = "ACCOMMODATION"
	CategoryEntertainment = "ENTERTAINMENT"
	CategoryOther         = "OTHER"
)

// Split types. The engine does not interpret them: shares always arrive
// precomputed, the type only records how the client derived them.
const (
	SplitEqual      = "EQUAL"
	SplitExact      = "EXACT"
	SplitPercentage = "PERCENTAGE"
)

// User plans, carried on the X-User-Plan header.
const (
	PlanFree       = "FREE"
	PlanPro        = "PRO"
	PlanEnterprise = "ENTERPRISE"
)

// Categories returns all valid expense categories.
func Categories() []string {
	return []string{
		CategoryFood,
		CategoryTransport,
		CategoryAccommodation,
		CategoryEntertainment,
		CategoryOther,
	}
}

// ValidCategory reports whether c is a known category.
func ValidCategory(c string) bool {
	switch c {
	case CategoryFood, CategoryTransport, CategoryAccommodation, CategoryEntertainment, CategoryOther:
		return true
	}
	return false
}

// ValidSplitType reports whether s is a known split type.
func ValidSplitType(s string) bool {
	switch s {
	case SplitEqual, SplitExact, SplitPercentage:
		return true
	}
	return false
}

// ValidPlan reports whether p is a known user plan.
func ValidPlan(p string) bool {
	switch p {
	case PlanFree, PlanPro, PlanEnterprise:
		return true
	}
	return false
}

// NewSettlement builds the expense row that records fromUserID paying amount
// to toUserID. The payer is credited and the single share debits the
// receiver, which cancels an equivalent prior imbalance in the balance
// engine. Settlements are always in the settlement currency, rate 1.
func NewSettlement(groupID, fromUserID, toUserID string, amount float64, currency string) Expense {
	return Expense{
		GroupID:        groupID,
		PayerID:        fromUserID,
		Description:    "Settlement payment",
		Category:       CategoryOther,
		SplitType:      SplitExact,
		TotalAmount:    amount,
		OriginalAmount: amount,
		Currency:       currency,
		ExchangeRate:   1,
		Date:           time.Now(),
		IsSettlement:   true,
		Shares: []ExpenseShare{
			{UserID: toUserID, Amount: amount},
		},
	}
}

// EntryPayerID implements service.Entry.
func (e Expense) EntryPayerID() string { return e.PayerID }

// EntryTotalAmount implements service.Entry.
func (e Expense) EntryTotalAmount() float64 { return e.TotalAmount }

// EntryShares implements service.Entry.
func (e Expense) EntryShares() []ExpenseShare { return e.Shares }
