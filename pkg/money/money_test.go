package money

import (
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMinorUnits(t *testing.T) {
	cases := []struct {
		amount string
		want   int64
	}{
		{"0", 0},
		{"0.01", 1},
		{"1", 100},
		{"3.50", 350},
		{"13.50", 1350},
		{"19.99", 1999},
		{"10.005", 1001},
		{"10.004", 1000},
		{"1234567.89", 123456789},
	}
	for _, tc := range cases {
		t.Run(tc.amount, func(t *testing.T) {
			amount, err := decimal.NewFromString(tc.amount)
			require.NoError(t, err)
			assert.Equal(t, tc.want, MinorUnits(amount))
		})
	}
}

func TestMinorUnitsStable(t *testing.T) {
	// Repeated conversion of the same input never drifts.
	for cents := int64(0); cents < 2500; cents += 7 {
		amount := FromMinorUnits(cents)
		first := MinorUnits(amount)
		require.Equal(t, cents, first, "round trip for %d cents", cents)
		for i := 0; i < 3; i++ {
			assert.Equal(t, first, MinorUnits(amount))
		}
	}
}

func TestMinorUnitsSumMatchesLineMath(t *testing.T) {
	// Converting a summed total equals summing converted subtotals for
	// two-decimal inputs, so the order total and the gateway line items
	// cannot disagree.
	prices := []string{"5.00", "3.50", "0.99", "12.25"}
	qtys := []int64{2, 1, 3, 4}

	total := decimal.Zero
	var minorSum int64
	for i, p := range prices {
		price, err := decimal.NewFromString(p)
		require.NoError(t, err)
		sub := price.Mul(decimal.NewFromInt(qtys[i]))
		total = total.Add(sub)
		minorSum += MinorUnits(price) * qtys[i]
	}
	assert.Equal(t, minorSum, MinorUnits(total), fmt.Sprintf("total %s", total))
}
