package settlement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atsumaru-app/warikan/internal/model"
)

func shared(payer string, amount int64) model.Expense {
	return model.Expense{PayerName: payer, Amount: amount, SharedWithAll: true}
}

func explicit(payer string, amount int64, members ...string) model.Expense {
	return model.Expense{PayerName: payer, Amount: amount, Members: members}
}

func netOf(t *testing.T, balances []model.BalanceEntry, name string) int64 {
	t.Helper()
	for _, b := range balances {
		if b.Name == name {
			return b.Net
		}
	}
	t.Fatalf("no balance entry for %q", name)
	return 0
}

func TestSettleEmptyLedger(t *testing.T) {
	balances, transfers, err := Settle([]string{"Alice", "Bob"}, nil)
	require.NoError(t, err)
	assert.Empty(t, balances)
	assert.Empty(t, transfers)
}

func TestSettleSinglePayerSoleMember(t *testing.T) {
	balances, transfers, err := Settle(
		[]string{"Alice"},
		[]model.Expense{explicit("Alice", 1200, "Alice")},
	)
	require.NoError(t, err)
	assert.Empty(t, transfers, "paying only for yourself settles to nothing")
	assert.Equal(t, int64(0), netOf(t, balances, "Alice"))
}

func TestSettleRemainderDistribution(t *testing.T) {
	// 100 split three ways must come out {34, 33, 33} in first-appearance
	// order, never {34, 34, 32} and never at random.
	balances, transfers, err := Settle(
		[]string{"Alice", "Bob", "Carol"},
		[]model.Expense{shared("Alice", 100)},
	)
	require.NoError(t, err)

	assert.Equal(t, int64(34), balances[0].ShouldPay)
	assert.Equal(t, int64(33), balances[1].ShouldPay)
	assert.Equal(t, int64(33), balances[2].ShouldPay)

	require.Len(t, transfers, 2)
	assert.Equal(t, model.Transfer{From: "Bob", To: "Alice", Amount: 33}, transfers[0])
	assert.Equal(t, model.Transfer{From: "Carol", To: "Alice", Amount: 33}, transfers[1])
}

func TestSettleDynamicGrowth(t *testing.T) {
	expenses := []model.Expense{shared("Alice", 100)}

	// Before Carol joins the 100 is split two ways.
	_, transfers, err := Settle([]string{"Alice", "Bob"}, expenses)
	require.NoError(t, err)
	require.Len(t, transfers, 1)
	assert.Equal(t, model.Transfer{From: "Bob", To: "Alice", Amount: 50}, transfers[0])

	// After Carol joins the same expense splits three ways; the snapshot
	// taken at recording time must not freeze her out.
	balances, transfers, err := Settle([]string{"Alice", "Bob", "Carol"}, expenses)
	require.NoError(t, err)
	assert.Equal(t, int64(100-34), netOf(t, balances, "Alice"))
	assert.Equal(t, int64(-33), netOf(t, balances, "Carol"))
	require.Len(t, transfers, 2)
}

func TestSettleStaleSnapshotIgnored(t *testing.T) {
	// A SharedWithAll expense carrying a stale two-person snapshot still
	// splits across the full current universe.
	stale := shared("Alice", 90)
	stale.Members = []string{"Alice", "Bob"}

	balances, _, err := Settle([]string{"Alice", "Bob", "Carol"}, []model.Expense{stale})
	require.NoError(t, err)
	assert.Equal(t, int64(-30), netOf(t, balances, "Carol"))
}

func TestSettleLegacyExpenseIsSharedWithAll(t *testing.T) {
	// No flag, no members: a legacy row meaning "shared with all".
	legacy := model.Expense{PayerName: "Alice", Amount: 90}

	balances, _, err := Settle([]string{"Alice", "Bob", "Carol"}, []model.Expense{legacy})
	require.NoError(t, err)
	assert.Equal(t, int64(60), netOf(t, balances, "Alice"))
	assert.Equal(t, int64(-30), netOf(t, balances, "Bob"))
}

func TestSettleExplicitAndSharedIndependent(t *testing.T) {
	// Each expense splits by its own group size, not a merged one.
	balances, transfers, err := Settle(
		[]string{"Alice", "Bob", "Carol"},
		[]model.Expense{
			explicit("Alice", 60, "Alice", "Bob"), // 30 each, Carol excluded
			shared("Carol", 90),                   // 30 each across all three
		},
	)
	require.NoError(t, err)

	assert.Equal(t, int64(0), netOf(t, balances, "Alice"))
	assert.Equal(t, int64(-60), netOf(t, balances, "Bob"))
	assert.Equal(t, int64(60), netOf(t, balances, "Carol"))

	require.Len(t, transfers, 1)
	assert.Equal(t, model.Transfer{From: "Bob", To: "Carol", Amount: 60}, transfers[0])
}

func TestSettleConservationAndZeroSum(t *testing.T) {
	tests := []struct {
		name         string
		participants []string
		expenses     []model.Expense
	}{
		{
			name:         "uneven shared amounts",
			participants: []string{"Alice", "Bob", "Carol", "Dave"},
			expenses: []model.Expense{
				shared("Alice", 10007),
				shared("Bob", 333),
				explicit("Carol", 101, "Carol", "Dave"),
			},
		},
		{
			name:         "payer outside the participant list",
			participants: []string{"Alice", "Bob"},
			expenses: []model.Expense{
				explicit("Eve", 999, "Alice", "Bob"),
				shared("Alice", 450),
			},
		},
		{
			name:         "many one-unit expenses",
			participants: []string{"Alice", "Bob", "Carol"},
			expenses: []model.Expense{
				shared("Alice", 1),
				shared("Bob", 1),
				shared("Carol", 1),
				shared("Alice", 2),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			balances, transfers, err := Settle(tt.participants, tt.expenses)
			require.NoError(t, err)

			// Conservation: money owed equals money transferred.
			var totalCredit, transferred int64
			for _, b := range balances {
				if b.Net > 0 {
					totalCredit += b.Net
				}
			}
			for _, tr := range transfers {
				assert.Greater(t, tr.Amount, int64(0))
				transferred += tr.Amount
			}
			assert.Equal(t, totalCredit, transferred)

			// Zero-sum closure: applying every transfer zeroes every balance.
			adjusted := make(map[string]int64, len(balances))
			for _, b := range balances {
				adjusted[b.Name] = b.Net
			}
			for _, tr := range transfers {
				adjusted[tr.From] += tr.Amount
				adjusted[tr.To] -= tr.Amount
			}
			for name, net := range adjusted {
				assert.Zerof(t, net, "%s not settled", name)
			}
		})
	}
}

func TestSettleDeterministic(t *testing.T) {
	participants := []string{"Alice", "Bob", "Carol", "Dave"}
	expenses := []model.Expense{
		shared("Alice", 100),
		explicit("Bob", 70, "Bob", "Carol", "Dave"),
		shared("Dave", 31),
	}

	_, first, err := Settle(participants, expenses)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		_, again, err := Settle(participants, expenses)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestSettleEmptySplitGroupIsInvariantViolation(t *testing.T) {
	// Blank-only member lists dedupe to nothing; that can only come from a
	// validation defect upstream and must fail loudly.
	_, _, err := Settle([]string{"Alice"}, []model.Expense{explicit("Alice", 100, "")})
	require.ErrorIs(t, err, ErrInvariant)
}

func TestUniverseOrdering(t *testing.T) {
	universe := Universe(
		[]string{"Alice", "Bob"},
		[]model.Expense{
			explicit("Carol", 10, "Bob", "Dave"),
			shared("Eve", 10),
		},
	)
	assert.Equal(t, []string{"Alice", "Bob", "Carol", "Dave", "Eve"}, universe)
}

func TestResolveNames(t *testing.T) {
	names := ResolveNames(
		[]string{"Alice"},                 // creator
		[]string{"Bob", "Alice"},          // persisted list
		[]string{"Carol", ""},             // respondents
		[]string{"Bob", "Dave", "Carol"},  // expense references
	)
	assert.Equal(t, []string{"Alice", "Bob", "Carol", "Dave"}, names)
}
