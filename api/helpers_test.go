package api

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/0debt/expenses-service/cache"
	"github.com/0debt/expenses-service/config"
	"github.com/0debt/expenses-service/service"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	gormDB, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{})
	require.NoError(t, err)
	return gormDB, mock
}

func newTestConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Server.Mode = gin.TestMode
	cfg.Server.BaseCurrency = "EUR"
	cfg.Limits.FreeMaxExpensesPerGroup = 50
	cfg.Cache.BalanceTTL = time.Minute
	cfg.Services.Timeout = time.Second
	return cfg
}

// memberStub serves the membership endpoint with a fixed answer.
func memberStub(t *testing.T, isMember bool) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"isMember":%t}`, isMember)
	}))
	t.Cleanup(srv.Close)
	return srv
}

type expenseFixture struct {
	handler   *ExpenseHandler
	mock      sqlmock.Sqlmock
	cache     *cache.Memory
	publisher *service.RecordingPublisher
	cfg       *config.Config
}

func newExpenseFixture(t *testing.T, isMember bool) *expenseFixture {
	t.Helper()
	db, mock := setupMockDB(t)
	cfg := newTestConfig()

	mem := cache.NewMemory()
	publisher := service.NewRecordingPublisher()
	stats := service.NewStatsService(db)
	currency := service.NewCurrencyService("http://rates.invalid", cfg.Services.Timeout)
	groups := service.NewGroupsService(memberStub(t, isMember).URL, cfg.Services.Timeout,
		service.NewCircuitBreaker(service.BreakerSettings{}))

	return &expenseFixture{
		handler:   NewExpenseHandler(db, mem, stats, currency, groups, publisher, cfg),
		mock:      mock,
		cache:     mem,
		publisher: publisher,
		cfg:       cfg,
	}
}
