package service

import (
	"fmt"
	"log"
	"time"

	"github.com/0debt/expenses-service/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StatsService maintains the per-group materialized aggregate with signed
// atomic increments, never by rescanning on the write path. Adjustments are
// best-effort relative to the primary expense write: a failure here is logged
// as a consistency warning with enough detail to reconcile, and the view
// stays stale until Rebuild is run out of band.
type StatsService struct {
	db *gorm.DB
}

// NewStatsService creates a StatsService on the given database handle.
func NewStatsService(db *gorm.DB) *StatsService {
	return &StatsService{db: db}
}

// GroupStatsView is the assembled read model served to callers.
type GroupStatsView struct {
	TotalSpent  float64            `json:"totalSpent"`
	Count       int64              `json:"count"`
	LastUpdated time.Time          `json:"lastUpdated"`
	ByCategory  map[string]float64 `json:"byCategory"`
}

// increment applies one signed adjustment to the group row and the category
// bucket. Both statements are single atomic increments at the storage layer;
// rows are upserted on first touch.
func (s *StatsService) increment(groupID, category string, amountDelta float64, countDelta int64) error {
	now := time.Now()

	err := s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "group_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"total_spent":   gorm.Expr("total_spent + ?", amountDelta),
			"expense_count": gorm.Expr("expense_count + ?", countDelta),
			"last_updated":  now,
		}),
	}).Create(&models.GroupStats{
		GroupID:      groupID,
		TotalSpent:   amountDelta,
		ExpenseCount: countDelta,
		LastUpdated:  now,
	}).Error
	if err != nil {
		return fmt.Errorf("group stats increment: %w", err)
	}

	err = s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "group_id"}, {Name: "category"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"amount": gorm.Expr("amount + ?", amountDelta),
		}),
	}).Create(&models.GroupStatCategory{
		GroupID:  groupID,
		Category: category,
		Amount:   amountDelta,
	}).Error
	if err != nil {
		return fmt.Errorf("category stats increment: %w", err)
	}

	return nil
}

// ApplyCreate adds a new expense's contribution to the view.
func (s *StatsService) ApplyCreate(groupID, category string, amount float64) error {
	if err := s.increment(groupID, category, amount, 1); err != nil {
		log.Printf("consistency warning: stats create adjustment failed for group %s (category=%s amount=%.2f): %v",
			groupID, category, amount, err)
		return err
	}
	return nil
}

// ApplyDelete reverses a deleted expense's contribution using the exact
// values that were stored on the record, not recomputed ones.
func (s *StatsService) ApplyDelete(groupID, category string, amount float64) error {
	if err := s.increment(groupID, category, -amount, -1); err != nil {
		log.Printf("consistency warning: stats delete adjustment failed for group %s (category=%s amount=%.2f): %v",
			groupID, category, amount, err)
		return err
	}
	return nil
}

// ApplyUpdate moves an expense's contribution from its old (category, amount)
// to the new one. This is two sequential increments, not a single delta: a
// category change moves the contribution between buckets, which one combined
// delta cannot express. The window between the two steps can be observed by
// a concurrent read and self-corrects once both land.
func (s *StatsService) ApplyUpdate(groupID, oldCategory string, oldAmount float64, newCategory string, newAmount float64) error {
	if oldCategory == newCategory && oldAmount == newAmount {
		return nil
	}
	if err := s.increment(groupID, oldCategory, -oldAmount, 0); err != nil {
		log.Printf("consistency warning: stats update revert failed for group %s (old category=%s amount=%.2f, new category=%s amount=%.2f): %v",
			groupID, oldCategory, oldAmount, newCategory, newAmount, err)
		return err
	}
	if err := s.increment(groupID, newCategory, newAmount, 0); err != nil {
		log.Printf("consistency warning: stats update apply failed for group %s (old category=%s amount=%.2f, new category=%s amount=%.2f): %v",
			groupID, oldCategory, oldAmount, newCategory, newAmount, err)
		return err
	}
	return nil
}

// Get assembles the materialized view for a group. A group with no stats row
// yields zeroes and an empty breakdown.
func (s *StatsService) Get(groupID string) (*GroupStatsView, error) {
	view := &GroupStatsView{ByCategory: make(map[string]float64)}

	var stats models.GroupStats
	err := s.db.Where("group_id = ?", groupID).First(&stats).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return view, nil
		}
		return nil, fmt.Errorf("load group stats: %w", err)
	}
	view.TotalSpent = Round2(stats.TotalSpent)
	view.Count = stats.ExpenseCount
	view.LastUpdated = stats.LastUpdated

	var buckets []models.GroupStatCategory
	if err := s.db.Where("group_id = ?", groupID).Find(&buckets).Error; err != nil {
		return nil, fmt.Errorf("load category breakdown: %w", err)
	}
	for _, b := range buckets {
		view.ByCategory[b.Category] = Round2(b.Amount)
	}

	return view, nil
}

// Rebuild recomputes the view for a group from a full scan of its expenses.
// Settlements are excluded, matching the incremental path: the view tracks
// consumption, not repayment. Disaster recovery only; the write path never
// calls it.
func (s *StatsService) Rebuild(groupID string) error {
	type bucket struct {
		Category string
		Total    float64
		Count    int64
	}
	var buckets []bucket
	err := s.db.Model(&models.Expense{}).
		Select("category, SUM(total_amount) AS total, COUNT(*) AS count").
		Where("group_id = ?", groupID).
		Where("is_settlement = ?", false).
		Group("category").
		Scan(&buckets).Error
	if err != nil {
		return fmt.Errorf("aggregate expenses: %w", err)
	}

	var totalSpent float64
	var count int64
	for _, b := range buckets {
		totalSpent += b.Total
		count += b.Count
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "group_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"total_spent":   totalSpent,
				"expense_count": count,
				"last_updated":  now,
			}),
		}).Create(&models.GroupStats{
			GroupID:      groupID,
			TotalSpent:   totalSpent,
			ExpenseCount: count,
			LastUpdated:  now,
		}).Error
		if err != nil {
			return err
		}

		if err := tx.Where("group_id = ?", groupID).Delete(&models.GroupStatCategory{}).Error; err != nil {
			return err
		}
		for _, b := range buckets {
			row := models.GroupStatCategory{GroupID: groupID, Category: b.Category, Amount: b.Total}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
