package calculator

import (
	"sort"

	"github.com/mmynk/spendwise/internal/models"
	"github.com/mmynk/spendwise/internal/money"
)

// MemberBalance represents the balance information for one group member.
type MemberBalance struct {
	UserID string       `json:"userId"`
	Owed   money.Amount `json:"owed"` // Unpaid shares other members owe this member
	Owes   money.Amount `json:"owes"` // Unpaid shares this member owes others
	Net    money.Amount `json:"net"`  // Positive = owed money, Negative = owes money
}

// DebtEdge represents a debt from one member to another.
type DebtEdge struct {
	From   string       `json:"from"` // Member who owes
	To     string       `json:"to"`   // Member who is owed
	Amount money.Amount `json:"amount"`
}

// CalculateGroupBalances computes balances across a group's ledger.
//
// Algorithm:
//   - For each unpaid split detail: the detail's member owes the initiator the share
//   - Aggregate: net = owed - owes
//   - Debt list: simplified by greedily matching the largest debtor with the
//     largest creditor until every net balance is zero
//
// Balances are returned in member order. Members that appear only in the
// ledger (none in practice) are appended after the member list.
func CalculateGroupBalances(members []string, transactions []models.GroupTransaction) ([]MemberBalance, []DebtEdge) {
	balances := make(map[string]*MemberBalance, len(members))
	order := make([]string, 0, len(members))
	track := func(userID string) *MemberBalance {
		if b, ok := balances[userID]; ok {
			return b
		}
		b := &MemberBalance{UserID: userID}
		balances[userID] = b
		order = append(order, userID)
		return b
	}
	for _, m := range members {
		track(m)
	}

	for _, tx := range transactions {
		for _, d := range tx.SplitDetails {
			if d.Paid || d.Member == tx.InitiatedBy {
				continue
			}
			track(tx.InitiatedBy).Owed += d.Share
			track(d.Member).Owes += d.Share
		}
	}

	result := make([]MemberBalance, 0, len(order))
	for _, id := range order {
		b := balances[id]
		b.Net = b.Owed - b.Owes
		result = append(result, *b)
	}

	return result, simplifyDebts(result)
}

// simplifyDebts matches debtors with creditors to minimize the number of payments.
func simplifyDebts(balances []MemberBalance) []DebtEdge {
	type party struct {
		id     string
		amount money.Amount
	}
	var creditors, debtors []party
	for _, b := range balances {
		switch {
		case b.Net > 0:
			creditors = append(creditors, party{id: b.UserID, amount: b.Net})
		case b.Net < 0:
			debtors = append(debtors, party{id: b.UserID, amount: -b.Net})
		}
	}
	sort.SliceStable(creditors, func(i, j int) bool { return creditors[i].amount > creditors[j].amount })
	sort.SliceStable(debtors, func(i, j int) bool { return debtors[i].amount > debtors[j].amount })

	var edges []DebtEdge
	i, j := 0, 0
	for i < len(debtors) && j < len(creditors) {
		amount := min(debtors[i].amount, creditors[j].amount)
		edges = append(edges, DebtEdge{From: debtors[i].id, To: creditors[j].id, Amount: amount})

		debtors[i].amount -= amount
		creditors[j].amount -= amount
		if debtors[i].amount == 0 {
			i++
		}
		if creditors[j].amount == 0 {
			j++
		}
	}
	return edges
}
