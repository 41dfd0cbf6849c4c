// Package settlement computes net balances and minimal-transfer settlements
// for an event's expense ledger. All computation is pure and deterministic:
// the same participants and expenses always produce the same transfer list in
// the same order.
//
// Amounts are whole currency units (e.g. yen). Integer division remainders
// are distributed one unit each to the first members of a split group in
// stable first-appearance order, so shares always sum exactly to the expense
// amount.
package settlement

import (
	"errors"
	"fmt"
	"sort"

	"github.com/atsumaru-app/warikan/internal/model"
)

// ErrInvariant signals a defect rather than bad user input: a zero-size split
// group reached the engine, or the conservation check failed. Callers must
// surface it, never swallow it.
var ErrInvariant = errors.New("settlement invariant violated")

// Settle computes per-participant balances and the transfers that settle
// them, using greedy largest-first matching of debtors against creditors.
//
// participants is the event's resolved participant list in first-appearance
// order. The participant universe is that list plus every payer and explicit
// member found in the expenses; SharedWithAll expenses split across the full
// universe, re-derived here rather than trusting any stored snapshot.
//
// An empty ledger settles to no balances and no transfers; that is not an
// error. Expenses are assumed validated (amount > 0, non-empty payer).
func Settle(participants []string, expenses []model.Expense) ([]model.BalanceEntry, []model.Transfer, error) {
	if len(expenses) == 0 {
		return nil, nil, nil
	}

	universe := Universe(participants, expenses)

	paid := make(map[string]int64, len(universe))
	shouldPay := make(map[string]int64, len(universe))

	for _, x := range expenses {
		group := splitGroup(&x, universe)
		if len(group) == 0 {
			return nil, nil, fmt.Errorf("%w: expense %q has an empty split group", ErrInvariant, x.ID)
		}

		paid[x.PayerName] += x.Amount

		n := int64(len(group))
		share := x.Amount / n
		remainder := x.Amount - share*n
		for i, member := range group {
			personShare := share
			if int64(i) < remainder {
				personShare++ // first `remainder` members absorb the leftover units
			}
			shouldPay[member] += personShare
		}
	}

	balances := make([]model.BalanceEntry, 0, len(universe))
	for _, name := range universe {
		balances = append(balances, model.BalanceEntry{
			Name:      name,
			Paid:      paid[name],
			ShouldPay: shouldPay[name],
			Net:       paid[name] - shouldPay[name],
		})
	}

	transfers, err := match(balances)
	if err != nil {
		return nil, nil, err
	}
	return balances, transfers, nil
}

// Universe returns the deduplicated participant universe in stable
// first-appearance order: the resolved participant list first, then any payer
// or explicit member the expenses reference that the list does not yet carry.
func Universe(participants []string, expenses []model.Expense) []string {
	seen := make(map[string]bool, len(participants))
	var universe []string
	add := func(name string) {
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		universe = append(universe, name)
	}

	for _, name := range participants {
		add(name)
	}
	for _, x := range expenses {
		add(x.PayerName)
		if !x.SharedWithAll {
			for _, m := range x.Members {
				add(m)
			}
		}
	}
	return universe
}

// splitGroup returns the effective member list for one expense. The stored
// member snapshot of a SharedWithAll expense is a cache and is ignored here;
// membership is re-derived from the live universe so a participant added
// after the expense was recorded still shares its cost. Legacy rows with no
// flag and no members mean the same thing.
func splitGroup(x *model.Expense, universe []string) []string {
	if x.SharedWithAll || len(x.Members) == 0 {
		return universe
	}
	seen := make(map[string]bool, len(x.Members))
	group := x.Members[:0:0]
	for _, m := range x.Members {
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		group = append(group, m)
	}
	return group
}

// match pairs the largest remaining debtor with the largest remaining
// creditor until both sides are exhausted. Greedy largest-first matching is
// not guaranteed globally transaction-minimal, but it is deterministic and
// always settles every balance exactly.
func match(balances []model.BalanceEntry) ([]model.Transfer, error) {
	type side struct {
		name      string
		remaining int64
	}

	var creditors, debtors []side
	var totalCredit, totalDebit int64
	for _, b := range balances { // balances are in first-appearance order
		switch {
		case b.Net > 0:
			creditors = append(creditors, side{b.Name, b.Net})
			totalCredit += b.Net
		case b.Net < 0:
			debtors = append(debtors, side{b.Name, -b.Net})
			totalDebit += -b.Net
		}
	}
	if totalCredit != totalDebit {
		return nil, fmt.Errorf("%w: credit %d != debit %d", ErrInvariant, totalCredit, totalDebit)
	}

	// Largest first; SliceStable keeps first-appearance order for ties.
	sort.SliceStable(creditors, func(i, j int) bool { return creditors[i].remaining > creditors[j].remaining })
	sort.SliceStable(debtors, func(i, j int) bool { return debtors[i].remaining > debtors[j].remaining })

	var transfers []model.Transfer
	var transferred int64
	i, j := 0, 0
	for i < len(debtors) && j < len(creditors) {
		amount := min(debtors[i].remaining, creditors[j].remaining)
		transfers = append(transfers, model.Transfer{
			From:   debtors[i].name,
			To:     creditors[j].name,
			Amount: amount,
		})
		transferred += amount
		debtors[i].remaining -= amount
		creditors[j].remaining -= amount
		if debtors[i].remaining == 0 {
			i++
		}
		if creditors[j].remaining == 0 {
			j++
		}
	}

	if transferred != totalCredit {
		return nil, fmt.Errorf("%w: transferred %d, expected %d", ErrInvariant, transferred, totalCredit)
	}
	return transfers, nil
}
