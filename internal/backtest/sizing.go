package backtest

import (
	"github.com/shopspring/decimal"
)

var decHundred = decimal.NewFromInt(100)

// sizeQty is floor(capital / price); non-positive inputs size to zero.
func sizeQty(capital, price float64) int64 {
	if capital <= 0 || price <= 0 || missing(capital) || missing(price) {
		return 0
	}
	return decimal.NewFromFloat(capital).Div(decimal.NewFromFloat(price)).Floor().IntPart()
}

// entryGate decides whether a buy or sell may execute at close given VWAP.
// A trade is allowed inside the band around VWAP or when price already sits
// on the favourable side. Without VWAP both sides are allowed.
func entryGate(close, vwap, bandPct float64) (allowBuy, allowSell bool) {
	if vwap <= 0 {
		return true, true
	}
	c := decimal.NewFromFloat(close)
	v := decimal.NewFromFloat(vwap)
	// |c - v| / v * 100 <= band, without the division.
	inBand := c.Sub(v).Abs().Mul(decHundred).LessThanOrEqual(decimal.NewFromFloat(bandPct).Mul(v))
	allowBuy = inBand || c.GreaterThan(v)
	allowSell = inBand || c.LessThan(v)
	return allowBuy, allowSell
}
