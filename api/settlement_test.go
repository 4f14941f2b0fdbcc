package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/0debt/expenses-service/cache"
	"github.com/0debt/expenses-service/service"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettlementHandler_Create(t *testing.T) {
	db, mock := setupMockDB(t)
	mem := cache.NewMemory()
	publisher := service.NewRecordingPublisher()
	handler := NewSettlementHandler(db, mem, publisher, newTestConfig())

	ctx := context.Background()
	require.NoError(t, mem.Set(ctx, cache.BalanceKey("g1"), "{}", time.Minute))

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `expenses`").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO `expense_shares`").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	r := gin.New()
	r.POST("/settlements", handler.Create)

	body := `{"groupId":"g1","fromUserId":"pepe","toUserId":"paco","amount":50}`
	req := httptest.NewRequest("POST", "/settlements", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, 200, w.Code)
	require.NoError(t, mock.ExpectationsWereMet())

	var resp struct {
		Data struct {
			PayerID      string `json:"payerId"`
			IsSettlement bool   `json:"isSettlement"`
			Shares       []struct {
				UserID string  `json:"userId"`
				Amount float64 `json:"amount"`
			} `json:"shares"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "pepe", resp.Data.PayerID)
	assert.True(t, resp.Data.IsSettlement)
	require.Len(t, resp.Data.Shares, 1)
	assert.Equal(t, "paco", resp.Data.Shares[0].UserID)
	assert.Equal(t, 50.0, resp.Data.Shares[0].Amount)

	_, hit, err := mem.Get(ctx, cache.BalanceKey("g1"))
	require.NoError(t, err)
	assert.False(t, hit, "balance cache should be invalidated")

	events := publisher.Events()
	require.Len(t, events, 1)
	assert.Equal(t, service.EventSettlementCreated, events[0].Type)
}

func TestSettlementHandler_Create_SamePayerAndReceiver(t *testing.T) {
	db, mock := setupMockDB(t)
	handler := NewSettlementHandler(db, cache.NewMemory(), service.NewRecordingPublisher(), newTestConfig())

	r := gin.New()
	r.POST("/settlements", handler.Create)

	body := `{"groupId":"g1","fromUserId":"paco","toUserId":"paco","amount":50}`
	req := httptest.NewRequest("POST", "/settlements", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, 400, w.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSettlementHandler_Create_RejectsNonPositiveAmount(t *testing.T) {
	db, mock := setupMockDB(t)
	handler := NewSettlementHandler(db, cache.NewMemory(), service.NewRecordingPublisher(), newTestConfig())

	r := gin.New()
	r.POST("/settlements", handler.Create)

	body := `{"groupId":"g1","fromUserId":"pepe","toUserId":"paco","amount":-5}`
	req := httptest.NewRequest("POST", "/settlements", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, 400, w.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}
