package models

import "time"

// GroupStats is the per-group materialized aggregate, maintained with atomic
// increments on every expense mutation and never recomputed on read. It is an
// optimization, not a source of truth: a failed adjustment after a successful
// expense write leaves it stale until a rebuild.
type GroupStats struct {
	ID           uint      `json:"-" gorm:"primaryKey"`
	GroupID      string    `json:"groupId" gorm:"size:64;uniqueIndex;not null"`
	TotalSpent   float64   `json:"totalSpent" gorm:"type:decimal(14,2);not null;default:0"`
	ExpenseCount int64     `json:"expenseCount" gorm:"not null;default:0"`
	LastUpdated  time.Time `json:"lastUpdated"`
}

// TableName sets the table name.
func (GroupStats) TableName() string {
	return "group_stats"
}

// GroupStatCategory is one categoryBreakdown bucket. One row per
// (group, category) keeps every bucket independently and atomically
// incrementable, which a serialized map column cannot offer.
type GroupStatCategory struct {
	ID       uint    `json:"-" gorm:"primaryKey"`
	GroupID  string  `json:"groupId" gorm:"size:64;uniqueIndex:idx_group_category;not null"`
	Category string  `json:"category" gorm:"size:20;uniqueIndex:idx_group_category;not null"`
	Amount   float64 `json:"amount" gorm:"type:decimal(14,2);not null;default:0"`
}

// TableName sets the table name.
func (GroupStatCategory) TableName() string {
	return "group_stat_categories"
}
