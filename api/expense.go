package api

import (
	"context"
	"log"
	"math"
	"strconv"
	"time"

	"github.com/0debt/expenses-service/cache"
	"github.com/0debt/expenses-service/config"
	"github.com/0debt/expenses-service/middleware"
	"github.com/0debt/expenses-service/models"
	"github.com/0debt/expenses-service/service"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// shareTolerance bounds how far the share sum may drift from the total
// before a request is rejected as inconsistent.
const shareTolerance = 0.01

// ExpenseHandler handles the expense CRUD surface. Side effects that follow
// the primary write (stats adjustment, cache invalidation, events) run on a
// background context so a client disconnect cannot leave them half-done.
type ExpenseHandler struct {
	db        *gorm.DB
	cache     cache.Cache
	stats     *service.StatsService
	currency  *service.CurrencyService
	groups    *service.GroupsService
	publisher service.EventPublisher
	cfg       *config.Config
}

// NewExpenseHandler creates an expense handler with its dependencies.
func NewExpenseHandler(
	db *gorm.DB,
	c cache.Cache,
	stats *service.StatsService,
	currency *service.CurrencyService,
	groups *service.GroupsService,
	publisher service.EventPublisher,
	cfg *config.Config,
) *ExpenseHandler {
	return &ExpenseHandler{
		db:        db,
		cache:     c,
		stats:     stats,
		currency:  currency,
		groups:    groups,
		publisher: publisher,
		cfg:       cfg,
	}
}

// ShareRequest is one participant's part of an expense.
type ShareRequest struct {
	UserID string  `json:"userId" binding:"required"`
	Amount float64 `json:"amount" binding:"gte=0"`
}

// CreateExpenseRequest creates a new expense.
type CreateExpenseRequest struct {
	GroupID     string         `json:"groupId" binding:"required"`
	PayerID     string         `json:"payerId" binding:"required"`
	Description string         `json:"description" binding:"required"`
	Category    string         `json:"category" binding:"required"`
	SplitType   string         `json:"splitType"`
	Amount      float64        `json:"amount" binding:"required,gt=0"`
	Currency    string         `json:"currency"`
	Date        string         `json:"date"`
	Shares      []ShareRequest `json:"shares" binding:"required,min=1,dive"`
}

// UpdateExpenseRequest updates an expense. Zero-valued fields are left
// untouched.
type UpdateExpenseRequest struct {
	Description string         `json:"description"`
	Category    string         `json:"category"`
	SplitType   string         `json:"splitType"`
	Amount      float64        `json:"amount" binding:"omitempty,gt=0"`
	Currency    string         `json:"currency"`
	Date        string         `json:"date"`
	Shares      []ShareRequest `json:"shares" binding:"omitempty,min=1,dive"`
}

func validateShares(total float64, shares []ShareRequest) bool {
	var sum float64
	for _, s := range shares {
		sum += s.Amount
	}
	return math.Abs(sum-total) <= shareTolerance
}

func parseDate(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Now(), true
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Create records a new shared expense. Amounts arrive in the request
// currency and are converted to the settlement currency before storage, so
// every stored figure is directly comparable.
func (h *ExpenseHandler) Create(c *gin.Context) {
	var req CreateExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "invalid request body"))
		return
	}

	if !models.ValidCategory(req.Category) {
		BadRequest(c, "unknown category: "+req.Category)
		return
	}
	if req.SplitType == "" {
		req.SplitType = models.SplitEqual
	}
	if !models.ValidSplitType(req.SplitType) {
		BadRequest(c, "unknown split type: "+req.SplitType)
		return
	}
	if !validateShares(req.Amount, req.Shares) {
		BadRequest(c, "share amounts do not add up to the total")
		return
	}
	date, ok := parseDate(req.Date)
	if !ok {
		BadRequest(c, "invalid date, expected RFC3339 or 2006-01-02")
		return
	}

	if middleware.GetUserPlan(c) == models.PlanFree {
		var count int64
		if err := h.db.Model(&models.Expense{}).Where("group_id = ?", req.GroupID).Count(&count).Error; err != nil {
			InternalError(c, SafeErrorMessage(err, "failed to check group quota"))
			return
		}
		if count >= int64(h.cfg.Limits.FreeMaxExpensesPerGroup) {
			Forbidden(c, "free plan expense limit reached for this group")
			return
		}
	}

	if !h.groups.IsMember(req.GroupID, req.PayerID) {
		Forbidden(c, "payer is not a member of this group")
		return
	}

	baseCurrency := h.cfg.Server.BaseCurrency
	if req.Currency == "" {
		req.Currency = baseCurrency
	}
	conv := h.currency.Convert(req.Amount, req.Currency, baseCurrency)

	shares := make([]models.ExpenseShare, 0, len(req.Shares))
	for _, s := range req.Shares {
		shares = append(shares, models.ExpenseShare{
			UserID: s.UserID,
			Amount: service.Round2(s.Amount * conv.Rate),
		})
	}

	expense := models.Expense{
		GroupID:        req.GroupID,
		PayerID:        req.PayerID,
		Description:    req.Description,
		Category:       req.Category,
		SplitType:      req.SplitType,
		TotalAmount:    conv.Amount,
		OriginalAmount: req.Amount,
		Currency:       req.Currency,
		ExchangeRate:   conv.Rate,
		Date:           date,
		Shares:         shares,
	}

	if err := h.db.Create(&expense).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "failed to create expense"))
		return
	}

	ctx := context.Background()
	h.stats.ApplyCreate(expense.GroupID, expense.Category, expense.TotalAmount)
	h.invalidateBalances(ctx, expense.GroupID)
	h.publisher.Publish(ctx, service.EventExpenseCreated, gin.H{
		"expenseId":   expense.ID,
		"groupId":     expense.GroupID,
		"amount":      expense.TotalAmount,
		"payerId":     expense.PayerID,
		"description": expense.Description,
	})

	SuccessWithMessage(c, "expense created", expense)
}

// Get returns a single expense with its shares.
func (h *ExpenseHandler) Get(c *gin.Context) {
	var expense models.Expense
	err := h.db.Preload("Shares").Where("id = ?", c.Param("id")).First(&expense).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			NotFound(c, "expense not found")
			return
		}
		InternalError(c, SafeErrorMessage(err, "failed to load expense"))
		return
	}
	Success(c, expense)
}

// ListByGroup returns a group's expenses newest first.
func (h *ExpenseHandler) ListByGroup(c *gin.Context) {
	groupID := c.Param("groupId")

	page := 1
	pageSize := 20
	if v, err := parsePositiveInt(c.Query("page")); err == nil && v > 0 {
		page = v
	}
	if v, err := parsePositiveInt(c.Query("pageSize")); err == nil && v > 0 && v <= 100 {
		pageSize = v
	}

	var total int64
	if err := h.db.Model(&models.Expense{}).Where("group_id = ?", groupID).Count(&total).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "failed to count expenses"))
		return
	}

	var expenses []models.Expense
	err := h.db.Preload("Shares").
		Where("group_id = ?", groupID).
		Order("date DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&expenses).Error
	if err != nil {
		InternalError(c, SafeErrorMessage(err, "failed to load expenses"))
		return
	}

	Success(c, PageResponse{
		Total:    total,
		Page:     page,
		PageSize: pageSize,
		List:     expenses,
	})
}

// Update modifies an expense. Amount or currency changes redo the conversion
// from the original amount; category or amount changes move the group stats
// contribution accordingly.
func (h *ExpenseHandler) Update(c *gin.Context) {
	var req UpdateExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "invalid request body"))
		return
	}

	var expense models.Expense
	err := h.db.Preload("Shares").Where("id = ?", c.Param("id")).First(&expense).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			NotFound(c, "expense not found")
			return
		}
		InternalError(c, SafeErrorMessage(err, "failed to load expense"))
		return
	}
	if expense.IsSettlement {
		BadRequest(c, "settlements cannot be modified")
		return
	}

	oldCategory := expense.Category
	oldAmount := expense.TotalAmount

	if req.Description != "" {
		expense.Description = req.Description
	}
	if req.Category != "" {
		if !models.ValidCategory(req.Category) {
			BadRequest(c, "unknown category: "+req.Category)
			return
		}
		expense.Category = req.Category
	}
	if req.SplitType != "" {
		if !models.ValidSplitType(req.SplitType) {
			BadRequest(c, "unknown split type: "+req.SplitType)
			return
		}
		expense.SplitType = req.SplitType
	}
	if req.Date != "" {
		date, ok := parseDate(req.Date)
		if !ok {
			BadRequest(c, "invalid date, expected RFC3339 or 2006-01-02")
			return
		}
		expense.Date = date
	}

	newShares := expense.Shares
	sharesChanged := false

	if req.Amount > 0 || req.Currency != "" {
		originalAmount := expense.OriginalAmount
		if req.Amount > 0 {
			originalAmount = req.Amount
		}
		currency := expense.Currency
		if req.Currency != "" {
			currency = req.Currency
		}
		if req.Shares != nil && !validateShares(originalAmount, req.Shares) {
			BadRequest(c, "share amounts do not add up to the total")
			return
		}

		conv := h.currency.Convert(originalAmount, currency, h.cfg.Server.BaseCurrency)

		if req.Shares != nil {
			newShares = make([]models.ExpenseShare, 0, len(req.Shares))
			for _, s := range req.Shares {
				newShares = append(newShares, models.ExpenseShare{
					ExpenseID: expense.ID,
					UserID:    s.UserID,
					Amount:    service.Round2(s.Amount * conv.Rate),
				})
			}
		} else if expense.TotalAmount > 0 {
			// same participants, rescaled to the new total
			factor := conv.Amount / expense.TotalAmount
			newShares = make([]models.ExpenseShare, 0, len(expense.Shares))
			for _, s := range expense.Shares {
				newShares = append(newShares, models.ExpenseShare{
					ExpenseID: expense.ID,
					UserID:    s.UserID,
					Amount:    service.Round2(s.Amount * factor),
				})
			}
		}
		sharesChanged = true

		expense.OriginalAmount = originalAmount
		expense.Currency = currency
		expense.TotalAmount = conv.Amount
		expense.ExchangeRate = conv.Rate
	} else if req.Shares != nil {
		if !validateShares(expense.OriginalAmount, req.Shares) {
			BadRequest(c, "share amounts do not add up to the total")
			return
		}
		newShares = make([]models.ExpenseShare, 0, len(req.Shares))
		for _, s := range req.Shares {
			newShares = append(newShares, models.ExpenseShare{
				ExpenseID: expense.ID,
				UserID:    s.UserID,
				Amount:    service.Round2(s.Amount * expense.ExchangeRate),
			})
		}
		sharesChanged = true
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		if sharesChanged {
			if err := tx.Where("expense_id = ?", expense.ID).Delete(&models.ExpenseShare{}).Error; err != nil {
				return err
			}
			for i := range newShares {
				newShares[i].ID = 0
				if err := tx.Create(&newShares[i]).Error; err != nil {
					return err
				}
			}
		}
		return tx.Omit("Shares").Save(&expense).Error
	})
	if err != nil {
		InternalError(c, SafeErrorMessage(err, "failed to update expense"))
		return
	}
	expense.Shares = newShares

	ctx := context.Background()
	h.stats.ApplyUpdate(expense.GroupID, oldCategory, oldAmount, expense.Category, expense.TotalAmount)
	h.invalidateBalances(ctx, expense.GroupID)

	SuccessWithMessage(c, "expense updated", expense)
}

// Delete removes an expense and reverses its stats contribution using the
// stored values, not recomputed ones.
func (h *ExpenseHandler) Delete(c *gin.Context) {
	var expense models.Expense
	err := h.db.Where("id = ?", c.Param("id")).First(&expense).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			NotFound(c, "expense not found")
			return
		}
		InternalError(c, SafeErrorMessage(err, "failed to load expense"))
		return
	}

	if err := h.db.Delete(&expense).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "failed to delete expense"))
		return
	}

	ctx := context.Background()
	if !expense.IsSettlement {
		h.stats.ApplyDelete(expense.GroupID, expense.Category, expense.TotalAmount)
	}
	h.invalidateBalances(ctx, expense.GroupID)
	h.publisher.Publish(ctx, service.EventExpenseDeleted, gin.H{
		"expenseId": expense.ID,
		"groupId":   expense.GroupID,
	})

	SuccessWithMessage(c, "expense deleted", nil)
}

func (h *ExpenseHandler) invalidateBalances(ctx context.Context, groupID string) {
	if err := h.cache.Del(ctx, cache.BalanceKey(groupID)); err != nil {
		// stale entry expires with its TTL, readers meanwhile see old balances
		log.Printf("balance cache invalidation failed for group %s: %v", groupID, err)
	}
}

func parsePositiveInt(raw string) (int, error) {
	if raw == "" {
		return 0, strconv.ErrSyntax
	}
	return strconv.Atoi(raw)
}
