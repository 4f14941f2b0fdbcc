package service

import (
	"math"
	"sort"

	"github.com/0debt/expenses-service/models"
)

// Entry is the minimal ledger view of an expense or settlement. Both are
// processed identically: the payer fronted the money, every share owes its
// part. For a settlement the single share debits the receiver, cancelling an
// equivalent prior imbalance.
type Entry interface {
	EntryPayerID() string
	EntryTotalAmount() float64
	EntryShares() []models.ExpenseShare
}

// BalanceMap maps userId to a signed net amount: positive means the group
// owes the user, negative means the user owes the group.
type BalanceMap map[string]float64

// PaymentInstruction is one pairwise transfer of the settlement plan.
type PaymentInstruction struct {
	From   string  `json:"from"`
	To     string  `json:"to"`
	Amount float64 `json:"amount"`
}

// dust is the tolerance below which a balance counts as settled. It also
// guards the planner loop against floating-point residue.
const dust = 0.01

// Round2 rounds to currency-minor-unit precision, avoiding drift like
// 0.0000004 from repeated float arithmetic. Every amount the service stores
// or serves goes through it.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// ComputeBalances folds a group's full expense set into net balances per
// user. Every payer is credited the total they fronted and every share
// participant is debited their part; a user on both sides is adjusted
// independently. Values are rounded once at the end. An empty input yields
// an empty map, and the result sums to zero within rounding tolerance.
func ComputeBalances[E Entry](entries []E) BalanceMap {
	balances := make(BalanceMap)

	for _, entry := range entries {
		balances[entry.EntryPayerID()] += entry.EntryTotalAmount()
		for _, share := range entry.EntryShares() {
			balances[share.UserID] -= share.Amount
		}
	}

	for user, amount := range balances {
		balances[user] = Round2(amount)
	}
	return balances
}

// PlanPayments reduces net balances to a short list of pairwise transfers
// that zero every balance. Balances within the dust tolerance are ignored.
// Debtors are sorted ascending (most negative first) and creditors
// descending, then matched greedily extreme-against-extreme; this yields at
// most len(debtors)+len(creditors)-1 instructions. True minimum-count
// netting is NP-hard, the greedy pass is optimal for the usual star and
// chain shapes.
func PlanPayments(balances BalanceMap) []PaymentInstruction {
	type stake struct {
		user   string
		amount float64
	}

	var debtors, creditors []stake
	for user, amount := range balances {
		if amount < -dust {
			debtors = append(debtors, stake{user, amount})
		} else if amount > dust {
			creditors = append(creditors, stake{user, amount})
		}
	}

	sort.Slice(debtors, func(i, j int) bool {
		if debtors[i].amount != debtors[j].amount {
			return debtors[i].amount < debtors[j].amount
		}
		return debtors[i].user < debtors[j].user
	})
	sort.Slice(creditors, func(i, j int) bool {
		if creditors[i].amount != creditors[j].amount {
			return creditors[i].amount > creditors[j].amount
		}
		return creditors[i].user < creditors[j].user
	})

	payments := []PaymentInstruction{}
	i, j := 0, 0

	for i < len(debtors) && j < len(creditors) {
		debtor := &debtors[i]
		creditor := &creditors[j]

		amount := Round2(math.Min(math.Abs(debtor.amount), creditor.amount))

		payments = append(payments, PaymentInstruction{
			From:   debtor.user,
			To:     creditor.user,
			Amount: amount,
		})

		debtor.amount = Round2(debtor.amount + amount)
		creditor.amount = Round2(creditor.amount - amount)

		if math.Abs(debtor.amount) < dust {
			i++
		}
		if creditor.amount < dust {
			j++
		}
	}

	return payments
}

// BalanceResult is the combined engine output, what gets cached and served.
type BalanceResult struct {
	Balances BalanceMap           `json:"balances"`
	Payments []PaymentInstruction `json:"payments"`
}
