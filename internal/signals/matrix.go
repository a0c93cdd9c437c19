package signals

import "fnotrader/internal/logger"

// Bias is the coarse trade stance attached to a scenario.
type Bias string

const (
	BiasBuy      Bias = "BUY"
	BiasWeakBuy  Bias = "WEAK_BUY"
	BiasSell     Bias = "SELL"
	BiasWeakSell Bias = "WEAK_SELL"
	BiasNoTrade  Bias = "NO_TRADE"
)

// Conclusion names the market reading of a (price, delivery, OI) triple.
type Conclusion struct {
	Label string `json:"label"`
	Bias  Bias   `json:"bias"`
}

// Scenario is the (price, delivery, OI) direction triple.
type Scenario struct {
	Price    Direction
	Delivery Direction
	OI       Direction
}

var unknownConclusion = Conclusion{Label: "Unknown", Bias: BiasNoTrade}

var scenarioMatrix = map[Scenario]Conclusion{
	{1, 1, 1}:   {"StrongLong", BiasBuy},
	{1, 1, 0}:   {"LastLegOfLong", BiasWeakBuy},
	{1, 1, -1}:  {"ShortCovering", BiasBuy},
	{1, 0, 1}:   {"NewLongs", BiasBuy},
	{1, 0, 0}:   {"NoInterest", BiasNoTrade},
	{1, 0, -1}:  {"WeakShortCovering", BiasWeakBuy},
	{1, -1, 1}:  {"WeakerLongs", BiasNoTrade},
	{1, -1, 0}:  {"NoLongPosition", BiasNoTrade},
	{1, -1, -1}: {"ShortCoveringOnLowDelivery", BiasNoTrade},

	{0, 1, 1}:   {"DeliveryBuildUp", BiasNoTrade},
	{0, 1, 0}:   {"DeliveryAccumulation", BiasNoTrade},
	{0, 1, -1}:  {"DeliveryUnwinding", BiasNoTrade},
	{0, 0, 1}:   {"SidewaysBuildUp", BiasNoTrade},
	{0, 0, 0}:   {"NoInterest", BiasNoTrade},
	{0, 0, -1}:  {"SidewaysUnwinding", BiasNoTrade},
	{0, -1, 1}:  {"LowDeliveryBuildUp", BiasNoTrade},
	{0, -1, 0}:  {"LowDeliveryDrift", BiasNoTrade},
	{0, -1, -1}: {"LowDeliveryUnwinding", BiasNoTrade},

	{-1, 1, 1}:   {"StrongShort", BiasSell},
	{-1, 1, 0}:   {"LastLegOfShort", BiasWeakSell},
	{-1, 1, -1}:  {"LongCovering", BiasSell},
	{-1, 0, 1}:   {"NewShort", BiasSell},
	{-1, 0, 0}:   {"NoInterest", BiasNoTrade},
	{-1, 0, -1}:  {"WeakLongCovering", BiasWeakSell},
	{-1, -1, 1}:  {"WeakerShort", BiasWeakSell},
	{-1, -1, 0}:  {"NoShortPosition", BiasNoTrade},
	{-1, -1, -1}: {"LongCoveringOnLowDelivery", BiasWeakSell},
}

// Lookup resolves a triple without logging; ok is false for out-of-domain input.
func Lookup(price, delivery, oi Direction) (Conclusion, bool) {
	c, ok := scenarioMatrix[Scenario{Price: price, Delivery: delivery, OI: oi}]
	if !ok {
		return unknownConclusion, false
	}
	return c, true
}

// Conclude resolves a triple, warning when it falls outside the matrix.
func Conclude(price, delivery, oi Direction) Conclusion {
	c, ok := Lookup(price, delivery, oi)
	if !ok {
		logger.Warnf("scenario (%d,%d,%d) outside matrix, using %s/%s", price, delivery, oi, c.Label, c.Bias)
	}
	return c
}
