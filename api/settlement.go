package api

import (
	"context"
	"log"

	"github.com/0debt/expenses-service/cache"
	"github.com/0debt/expenses-service/config"
	"github.com/0debt/expenses-service/models"
	"github.com/0debt/expenses-service/service"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// SettlementHandler records debt repayments between group members. A
// settlement is stored as a special expense so the balance engine cancels
// the debt without a second code path; it never touches group stats, which
// track consumption, not repayment.
type SettlementHandler struct {
	db        *gorm.DB
	cache     cache.Cache
	publisher service.EventPublisher
	cfg       *config.Config
}

// NewSettlementHandler creates a settlement handler.
func NewSettlementHandler(db *gorm.DB, c cache.Cache, publisher service.EventPublisher, cfg *config.Config) *SettlementHandler {
	return &SettlementHandler{db: db, cache: c, publisher: publisher, cfg: cfg}
}

// CreateSettlementRequest records one user paying another.
type CreateSettlementRequest struct {
	GroupID    string  `json:"groupId" binding:"required"`
	FromUserID string  `json:"fromUserId" binding:"required"`
	ToUserID   string  `json:"toUserId" binding:"required"`
	Amount     float64 `json:"amount" binding:"required,gt=0"`
}

// Create records a settlement payment within a group.
func (h *SettlementHandler) Create(c *gin.Context) {
	var req CreateSettlementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "invalid request body"))
		return
	}
	if req.FromUserID == req.ToUserID {
		BadRequest(c, "payer and receiver must differ")
		return
	}

	settlement := models.NewSettlement(req.GroupID, req.FromUserID, req.ToUserID,
		service.Round2(req.Amount), h.cfg.Server.BaseCurrency)

	if err := h.db.Create(&settlement).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "failed to record settlement"))
		return
	}

	ctx := context.Background()
	if err := h.cache.Del(ctx, cache.BalanceKey(req.GroupID)); err != nil {
		log.Printf("balance cache invalidation failed for group %s: %v", req.GroupID, err)
	}
	h.publisher.Publish(ctx, service.EventSettlementCreated, gin.H{
		"settlementId": settlement.ID,
		"groupId":      req.GroupID,
		"fromUserId":   req.FromUserID,
		"toUserId":     req.ToUserID,
		"amount":       settlement.TotalAmount,
	})

	SuccessWithMessage(c, "settlement recorded", settlement)
}
