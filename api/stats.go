package api

import (
	"github.com/0debt/expenses-service/models"
	"github.com/0debt/expenses-service/service"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// StatsHandler serves the internal service-to-service surface: the
// materialized group aggregates and the user debt probe other services use
// before deleting an account.
type StatsHandler struct {
	db    *gorm.DB
	stats *service.StatsService
}

// NewStatsHandler creates a stats handler.
func NewStatsHandler(db *gorm.DB, stats *service.StatsService) *StatsHandler {
	return &StatsHandler{db: db, stats: stats}
}

// GetGroupStats returns the materialized aggregate for a group. Unknown
// groups yield zeroes rather than 404 so callers need no existence check.
func (h *StatsHandler) GetGroupStats(c *gin.Context) {
	view, err := h.stats.Get(c.Param("groupId"))
	if err != nil {
		InternalError(c, SafeErrorMessage(err, "failed to load group stats"))
		return
	}
	Success(c, view)
}

// RebuildGroupStats recomputes the aggregate from the expense table. This is
// the recovery path for a view that drifted after adjustment failures.
func (h *StatsHandler) RebuildGroupStats(c *gin.Context) {
	groupID := c.Param("groupId")
	if err := h.stats.Rebuild(groupID); err != nil {
		InternalError(c, SafeErrorMessage(err, "failed to rebuild group stats"))
		return
	}
	view, err := h.stats.Get(groupID)
	if err != nil {
		InternalError(c, SafeErrorMessage(err, "failed to load group stats"))
		return
	}
	SuccessWithMessage(c, "stats rebuilt", view)
}

// GetUserDebtStatus reports whether a user still appears in any live expense,
// as payer or share participant. The users service calls this before account
// deletion.
func (h *StatsHandler) GetUserDebtStatus(c *gin.Context) {
	userID := c.Param("userId")

	var asPayer int64
	err := h.db.Model(&models.Expense{}).Where("payer_id = ?", userID).Count(&asPayer).Error
	if err != nil {
		InternalError(c, SafeErrorMessage(err, "failed to check user expenses"))
		return
	}

	var asParticipant int64
	err = h.db.Model(&models.ExpenseShare{}).
		Joins("JOIN expenses ON expenses.id = expense_shares.expense_id").
		Where("expense_shares.user_id = ? AND expenses.deleted_at IS NULL", userID).
		Count(&asParticipant).Error
	if err != nil {
		InternalError(c, SafeErrorMessage(err, "failed to check user shares"))
		return
	}

	involved := asPayer > 0 || asParticipant > 0
	Success(c, gin.H{
		"userId":    userID,
		"hasDebts":  involved,
		"canDelete": !involved,
	})
}
