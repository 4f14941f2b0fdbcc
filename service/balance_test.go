package service

import (
	"math"
	"testing"

	"github.com/0debt/expenses-service/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func expense(payer string, total float64, shares map[string]float64) models.Expense {
	e := models.Expense{PayerID: payer, TotalAmount: total}
	for user, amount := range shares {
		e.Shares = append(e.Shares, models.ExpenseShare{UserID: user, Amount: amount})
	}
	return e
}

func TestComputeBalancesEmpty(t *testing.T) {
	balances := ComputeBalances([]models.Expense{})
	assert.Empty(t, balances)
}

func TestComputeBalancesSimpleSplit(t *testing.T) {
	// 100 EUR paid by paco, split 50/50 between paco and pepe
	entries := []models.Expense{
		expense("paco", 100, map[string]float64{"paco": 50, "pepe": 50}),
	}

	balances := ComputeBalances(entries)
	assert.Equal(t, 50.0, balances["paco"])
	assert.Equal(t, -50.0, balances["pepe"])
}

func TestComputeBalancesSettlementCancelsDebt(t *testing.T) {
	entries := []models.Expense{
		expense("paco", 100, map[string]float64{"paco": 50, "pepe": 50}),
		models.NewSettlement("g1", "pepe", "paco", 50, "EUR"),
	}

	balances := ComputeBalances(entries)
	assert.InDelta(t, 0, balances["paco"], 0.01)
	assert.InDelta(t, 0, balances["pepe"], 0.01)
}

func TestComputeBalancesConservation(t *testing.T) {
	entries := []models.Expense{
		expense("ana", 33.33, map[string]float64{"ana": 11.11, "luis": 11.11, "carlos": 11.11}),
		expense("luis", 74.99, map[string]float64{"ana": 25, "luis": 24.99, "carlos": 25}),
		expense("carlos", 10.01, map[string]float64{"ana": 5.005, "carlos": 5.005}),
		models.NewSettlement("g1", "carlos", "luis", 12.5, "EUR"),
	}

	balances := ComputeBalances(entries)
	var sum float64
	for _, v := range balances {
		sum += v
	}
	assert.InDelta(t, 0, sum, 0.02)
}

func TestPlanPaymentsTwoUsers(t *testing.T) {
	payments := PlanPayments(BalanceMap{"Paco": 50, "Paloma": -50})

	require.Len(t, payments, 1)
	assert.Equal(t, PaymentInstruction{From: "Paloma", To: "Paco", Amount: 50}, payments[0])
}

func TestPlanPaymentsExcludesDust(t *testing.T) {
	payments := PlanPayments(BalanceMap{"A": -10, "B": 0, "C": 10})

	require.Len(t, payments, 1)
	assert.Equal(t, PaymentInstruction{From: "A", To: "C", Amount: 10}, payments[0])
}

func TestPlanPaymentsOneCreditorTwoDebtors(t *testing.T) {
	payments := PlanPayments(BalanceMap{"Carlos": 100, "Ana": -60, "Luis": -40})

	require.Len(t, payments, 2)
	var total float64
	for _, p := range payments {
		assert.Equal(t, "Carlos", p.To)
		total += p.Amount
	}
	assert.InDelta(t, 100, total, 0.01)
}

func TestPlanPaymentsEmptyAndBalanced(t *testing.T) {
	assert.Empty(t, PlanPayments(BalanceMap{}))
	assert.Empty(t, PlanPayments(BalanceMap{"solo": 0.005}))
}

func TestPlanPaymentsMinimalityBound(t *testing.T) {
	balances := BalanceMap{
		"a": -12.34, "b": -7.66, "c": -30,
		"d": 20, "e": 25, "f": 5,
	}
	payments := PlanPayments(balances)

	debtors, creditors := 0, 0
	for _, v := range balances {
		if v < -0.01 {
			debtors++
		} else if v > 0.01 {
			creditors++
		}
	}
	assert.LessOrEqual(t, len(payments), debtors+creditors-1)
}

// Applying every instruction must drive all balances to ~0.
func TestPlanPaymentsSettlesBalances(t *testing.T) {
	balances := BalanceMap{
		"ana": -60.25, "luis": -39.75, "carlos": 87.5, "marta": 12.5,
	}
	payments := PlanPayments(balances)

	remaining := make(BalanceMap, len(balances))
	for user, v := range balances {
		remaining[user] = v
	}
	for _, p := range payments {
		assert.Greater(t, p.Amount, 0.0)
		remaining[p.From] += p.Amount
		remaining[p.To] -= p.Amount
	}
	for user, v := range remaining {
		assert.LessOrEqual(t, math.Abs(v), 0.01, "user %s not settled: %f", user, v)
	}
}
