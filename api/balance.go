package api

import (
	"encoding/json"
	"log"

	"github.com/0debt/expenses-service/cache"
	"github.com/0debt/expenses-service/config"
	"github.com/0debt/expenses-service/models"
	"github.com/0debt/expenses-service/service"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// BalanceHandler serves net balances and the settlement plan for a group,
// with a short-TTL cache in front of the computation.
type BalanceHandler struct {
	db    *gorm.DB
	cache cache.Cache
	cfg   *config.Config
}

// NewBalanceHandler creates a balance handler.
func NewBalanceHandler(db *gorm.DB, c cache.Cache, cfg *config.Config) *BalanceHandler {
	return &BalanceHandler{db: db, cache: c, cfg: cfg}
}

// balanceResponse tags the engine output with where it came from.
type balanceResponse struct {
	service.BalanceResult
	Source string `json:"source"`
}

// GetGroupBalances returns each member's net balance and the payment plan
// that settles the group. Cache errors degrade to a database read.
func (h *BalanceHandler) GetGroupBalances(c *gin.Context) {
	groupID := c.Param("groupId")
	key := cache.BalanceKey(groupID)
	ctx := c.Request.Context()

	cached, hit, err := h.cache.Get(ctx, key)
	if err != nil {
		log.Printf("balance cache read failed for group %s: %v", groupID, err)
	}
	if hit {
		var result service.BalanceResult
		if err := json.Unmarshal([]byte(cached), &result); err == nil {
			Success(c, balanceResponse{BalanceResult: result, Source: "cache"})
			return
		}
		log.Printf("discarding corrupt balance cache entry for group %s", groupID)
	}

	var expenses []models.Expense
	err = h.db.Preload("Shares").Where("group_id = ?", groupID).Find(&expenses).Error
	if err != nil {
		InternalError(c, SafeErrorMessage(err, "failed to load group expenses"))
		return
	}

	result := service.BalanceResult{
		Balances: service.ComputeBalances(expenses),
	}
	result.Payments = service.PlanPayments(result.Balances)

	if payload, err := json.Marshal(result); err == nil {
		if err := h.cache.Set(ctx, key, string(payload), h.cfg.Cache.BalanceTTL); err != nil {
			log.Printf("balance cache write failed for group %s: %v", groupID, err)
		}
	}

	Success(c, balanceResponse{BalanceResult: result, Source: "database"})
}
