package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestWriteRateLimit(t *testing.T) {
	r := gin.New()
	r.Use(WriteRateLimit(2, time.Minute))
	r.POST("/write", func(c *gin.Context) {
		c.Status(200)
	})

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest("POST", "/write", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, 200, w.Code)
	}

	req := httptest.NewRequest("POST", "/write", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, 429, w.Code)
}

func TestWriteRateLimit_SeparateClients(t *testing.T) {
	r := gin.New()
	r.Use(WriteRateLimit(1, time.Minute))
	r.POST("/write", func(c *gin.Context) {
		c.Status(200)
	})

	first := httptest.NewRequest("POST", "/write", nil)
	first.RemoteAddr = "10.0.0.1:1234"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, first)
	assert.Equal(t, 200, w.Code)

	second := httptest.NewRequest("POST", "/write", nil)
	second.RemoteAddr = "10.0.0.2:1234"
	w = httptest.NewRecorder()
	r.ServeHTTP(w, second)
	assert.Equal(t, 200, w.Code)

	third := httptest.NewRequest("POST", "/write", nil)
	third.RemoteAddr = "10.0.0.1:5678"
	w = httptest.NewRecorder()
	r.ServeHTTP(w, third)
	assert.Equal(t, 429, w.Code)
}
