package router

import (
	"time"

	"github.com/0debt/expenses-service/api"
	"github.com/0debt/expenses-service/cache"
	"github.com/0debt/expenses-service/config"
	"github.com/0debt/expenses-service/middleware"
	"github.com/0debt/expenses-service/service"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Deps carries everything the handlers need, wired once in main.
type Deps struct {
	DB        *gorm.DB
	Cache     cache.Cache
	Publisher service.EventPublisher
}

// SetupRouter builds the gin engine with all routes and middleware.
func SetupRouter(cfg *config.Config, deps Deps) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.Default()
	r.Use(CORSMiddleware())

	statsService := service.NewStatsService(deps.DB)
	currencyService := service.NewCurrencyService(cfg.Services.RatesBaseURL, cfg.Services.Timeout)
	breaker := service.NewCircuitBreaker(service.BreakerSettings{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		WindowSize:       cfg.Breaker.WindowSize,
		MinSamples:       cfg.Breaker.MinSamples,
		Cooldown:         time.Duration(cfg.Breaker.CooldownSeconds) * time.Second,
	})
	groupsService := service.NewGroupsService(cfg.Services.GroupsBaseURL, cfg.Services.Timeout, breaker)

	expenseHandler := api.NewExpenseHandler(deps.DB, deps.Cache, statsService,
		currencyService, groupsService, deps.Publisher, cfg)
	balanceHandler := api.NewBalanceHandler(deps.DB, deps.Cache, cfg)
	settlementHandler := api.NewSettlementHandler(deps.DB, deps.Cache, deps.Publisher, cfg)
	statsHandler := api.NewStatsHandler(deps.DB, statsService)
	exportHandler := api.NewExportHandler(deps.DB)

	v1 := r.Group("/api/v1")
	v1.Use(middleware.UserPlan())
	{
		writeLimit := middleware.WriteRateLimit(60, time.Minute)

		expenses := v1.Group("/expenses")
		{
			expenses.POST("", writeLimit, expenseHandler.Create)
			expenses.GET("/:id", expenseHandler.Get)
			expenses.PUT("/:id", writeLimit, expenseHandler.Update)
			expenses.DELETE("/:id", writeLimit, expenseHandler.Delete)
			expenses.GET("/groups/:groupId", expenseHandler.ListByGroup)
			expenses.GET("/groups/:groupId/export", exportHandler.ExportGroupExpenses)
		}

		v1.GET("/balances/:groupId", balanceHandler.GetGroupBalances)
		v1.POST("/settlements", writeLimit, settlementHandler.Create)
	}

	// service-to-service surface
	internal := r.Group("/internal")
	internal.Use(middleware.InternalAuth())
	{
		internal.GET("/stats/:groupId", statsHandler.GetGroupStats)
		internal.POST("/stats/:groupId/rebuild", statsHandler.RebuildGroupStats)
		internal.GET("/users/:userId/debt-status", statsHandler.GetUserDebtStatus)
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})

	return r
}

// CORSMiddleware handles cross-origin requests.
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-User-Plan")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
