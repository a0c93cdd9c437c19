package handlers

import (
	"math"

	"fnotrader/internal/types"

	"github.com/shopspring/decimal"
)

var (
	decOne      = decimal.NewFromInt(1)
	decHundred  = decimal.NewFromInt(100)
	decimalZero = decimal.Zero
)

func decFromFloat(val float64) decimal.Decimal {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return decimalZero
	}
	return decimal.NewFromFloat(val)
}

func decimalCompare(a, b decimal.Decimal) int {
	return a.Cmp(b)
}

func decimalLTE(a, b decimal.Decimal) bool { return decimalCompare(a, b) <= 0 }
func decimalGTE(a, b decimal.Decimal) bool { return decimalCompare(a, b) >= 0 }
func decimalLT(a, b decimal.Decimal) bool  { return decimalCompare(a, b) < 0 }
func decimalGT(a, b decimal.Decimal) bool  { return decimalCompare(a, b) > 0 }

// pctFactor turns a percent value into a decimal fraction.
func pctFactor(pct float64) decimal.Decimal {
	return decFromFloat(pct).Div(decHundred)
}

// relativeTarget is anchor moved pct percent in the side's favour.
func relativeTarget(anchor, pct float64, side types.Side) decimal.Decimal {
	base := decFromFloat(anchor)
	switch side {
	case types.SideShort:
		return base.Mul(decOne.Sub(pctFactor(pct)))
	default:
		return base.Mul(decOne.Add(pctFactor(pct)))
	}
}

// adverseTarget is anchor moved pct percent against the side.
func adverseTarget(anchor, pct float64, side types.Side) decimal.Decimal {
	base := decFromFloat(anchor)
	switch side {
	case types.SideShort:
		return base.Mul(decOne.Add(pctFactor(pct)))
	default:
		return base.Mul(decOne.Sub(pctFactor(pct)))
	}
}

// beyondTarget reports a strict favourable break of target.
func beyondTarget(side types.Side, price float64, target decimal.Decimal) bool {
	p := decFromFloat(price)
	switch side {
	case types.SideShort:
		return decimalLT(p, target)
	default:
		return decimalGT(p, target)
	}
}

// crossedBack reports that price has returned through the anchor.
func crossedBack(side types.Side, price, anchor float64) bool {
	p, a := decFromFloat(price), decFromFloat(anchor)
	switch side {
	case types.SideShort:
		return decimalGT(p, a)
	default:
		return decimalLT(p, a)
	}
}

// hitStopLoss is a strict adverse break of the stop.
func hitStopLoss(side types.Side, price float64, stop decimal.Decimal) bool {
	if price <= 0 || !stop.IsPositive() {
		return false
	}
	p := decFromFloat(price)
	switch side {
	case types.SideShort:
		return decimalGT(p, stop)
	default:
		return decimalLT(p, stop)
	}
}

// priceBreachedStop also fires when price sits exactly on the stop.
func priceBreachedStop(side types.Side, price float64, stop decimal.Decimal) bool {
	if price <= 0 || !stop.IsPositive() {
		return false
	}
	p := decFromFloat(price)
	switch side {
	case types.SideShort:
		return decimalGTE(p, stop)
	default:
		return decimalLTE(p, stop)
	}
}
