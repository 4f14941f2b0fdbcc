package service

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"
)

// ConversionResult is a converted amount plus the rate that produced it.
type ConversionResult struct {
	Amount float64
	Rate   float64
}

// CurrencyService converts amounts into the settlement currency through a
// Frankfurter-style rate API. Any failure falls back to a 1:1 conversion:
// a write must never be blocked by a pricing outage, so this deliberately
// trades currency accuracy for availability.
type CurrencyService struct {
	baseURL string
	client  *http.Client
}

// NewCurrencyService creates a converter against the given rate API base URL.
func NewCurrencyService(baseURL string, timeout time.Duration) *CurrencyService {
	return &CurrencyService{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// Convert converts amount from one currency to another. Same-currency
// conversions short-circuit to (amount, 1) with no external call.
func (s *CurrencyService) Convert(amount float64, from, to string) ConversionResult {
	if from == to {
		return ConversionResult{Amount: amount, Rate: 1}
	}

	converted, err := s.fetchRate(amount, from, to)
	if err != nil {
		log.Printf("rate service unavailable, falling back to 1:1 for %s->%s: %v", from, to, err)
		return ConversionResult{Amount: amount, Rate: 1}
	}
	return converted
}

func (s *CurrencyService) fetchRate(amount float64, from, to string) (ConversionResult, error) {
	q := url.Values{}
	q.Set("amount", fmt.Sprintf("%.2f", amount))
	q.Set("from", from)
	q.Set("to", to)

	resp, err := s.client.Get(s.baseURL + "/latest?" + q.Encode())
	if err != nil {
		return ConversionResult{}, fmt.Errorf("request rates: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ConversionResult{}, fmt.Errorf("rate service returned %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return ConversionResult{}, fmt.Errorf("read rates response: %w", err)
	}

	// Frankfurter shape: { "amount": 100, "rates": { "EUR": 92.5 } }
	var payload struct {
		Rates map[string]float64 `json:"rates"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ConversionResult{}, fmt.Errorf("decode rates response: %w", err)
	}

	converted, ok := payload.Rates[to]
	if !ok || amount == 0 {
		return ConversionResult{}, fmt.Errorf("rate for %s missing in response", to)
	}

	return ConversionResult{
		Amount: Round2(converted),
		Rate:   converted / amount,
	}, nil
}
