package service

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConvertSameCurrencyNoCall(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	svc := NewCurrencyService(srv.URL, time.Second)
	result := svc.Convert(123.45, "EUR", "EUR")

	assert.Equal(t, ConversionResult{Amount: 123.45, Rate: 1}, result)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestConvertUsesRateService(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/latest", r.URL.Path)
		assert.Equal(t, "USD", r.URL.Query().Get("from"))
		assert.Equal(t, "EUR", r.URL.Query().Get("to"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"amount":100,"base":"USD","rates":{"EUR":92.5}}`))
	}))
	defer srv.Close()

	svc := NewCurrencyService(srv.URL, time.Second)
	result := svc.Convert(100, "USD", "EUR")

	assert.Equal(t, 92.5, result.Amount)
	assert.InDelta(t, 0.925, result.Rate, 0.0001)
}

func TestConvertFallbackOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	svc := NewCurrencyService(srv.URL, time.Second)
	result := svc.Convert(100, "USD", "EUR")

	assert.Equal(t, ConversionResult{Amount: 100, Rate: 1}, result)
}

func TestConvertFallbackOnGarbageResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json at all`))
	}))
	defer srv.Close()

	svc := NewCurrencyService(srv.URL, time.Second)
	result := svc.Convert(50, "GBP", "EUR")

	assert.Equal(t, ConversionResult{Amount: 50, Rate: 1}, result)
}

func TestConvertFallbackOnConnectionRefused(t *testing.T) {
	// a server that is already closed refuses connections
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	svc := NewCurrencyService(srv.URL, time.Second)
	result := svc.Convert(75.5, "USD", "EUR")

	assert.Equal(t, ConversionResult{Amount: 75.5, Rate: 1}, result)
}

func TestConvertFallbackOnMissingRate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"amount":100,"rates":{"CHF":95.0}}`))
	}))
	defer srv.Close()

	svc := NewCurrencyService(srv.URL, time.Second)
	result := svc.Convert(100, "USD", "EUR")

	assert.Equal(t, ConversionResult{Amount: 100, Rate: 1}, result)
}
