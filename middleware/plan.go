package middleware

import (
	"net/http"
	"strings"

	"github.com/0debt/expenses-service/models"

	"github.com/gin-gonic/gin"
)

const planContextKey = "userPlan"

// UserPlan reads the X-User-Plan header set by the API gateway. A missing
// header means FREE; an unknown value is rejected rather than silently
// downgraded.
func UserPlan() gin.HandlerFunc {
	return func(c *gin.Context) {
		plan := strings.ToUpper(strings.TrimSpace(c.GetHeader("X-User-Plan")))
		if plan == "" {
			plan = models.PlanFree
		}
		if !models.ValidPlan(plan) {
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid X-User-Plan header"})
			c.Abort()
			return
		}
		c.Set(planContextKey, plan)
		c.Next()
	}
}

// GetUserPlan returns the plan resolved by UserPlan, defaulting to FREE.
func GetUserPlan(c *gin.Context) string {
	if v, ok := c.Get(planContextKey); ok {
		if plan, ok := v.(string); ok {
			return plan
		}
	}
	return models.PlanFree
}
