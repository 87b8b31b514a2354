// Package calculator implements the split-amount arithmetic for bills.
package calculator

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// centTolerance is the maximum accepted difference between a bill total and
// the sum of its requested splits: one cent of rounding slack.
var centTolerance = decimal.New(1, -2)

var oneHundred = decimal.NewFromInt(100)

// ValidateSplitSum checks that the requested split amounts add up to the
// bill total within one cent.
func ValidateSplitSum(total decimal.Decimal, amounts []decimal.Decimal) error {
	sum := decimal.Zero
	for _, a := range amounts {
		sum = sum.Add(a)
	}
	if total.Sub(sum).Abs().GreaterThan(centTolerance) {
		return fmt.Errorf("split amounts sum to %s, bill total is %s", sum.StringFixed(2), total.StringFixed(2))
	}
	return nil
}

// EqualAmounts reports whether all requested amounts are the same, which
// marks the request as an equal split to be recomputed by DistributeEvenly.
func EqualAmounts(amounts []decimal.Decimal) bool {
	for _, a := range amounts[1:] {
		if !a.Equal(amounts[0]) {
			return false
		}
	}
	return true
}

// DistributeEvenly splits total into n shares that sum exactly to total.
// Each share is floor(total/n) in whole cents; the leftover cents go one
// each to the first shares in order.
func DistributeEvenly(total decimal.Decimal, n int) ([]decimal.Decimal, error) {
	if n <= 0 {
		return nil, fmt.Errorf("must have at least one participant")
	}
	totalCents := total.Mul(oneHundred)
	if !totalCents.IsInteger() {
		return nil, fmt.Errorf("total %s has sub-cent precision", total.String())
	}

	cents := totalCents.IntPart()
	base := cents / int64(n)
	leftover := cents - base*int64(n)

	amounts := make([]decimal.Decimal, n)
	for i := range amounts {
		share := base
		if int64(i) < leftover {
			share++
		}
		amounts[i] = decimal.New(share, -2)
	}
	return amounts, nil
}
