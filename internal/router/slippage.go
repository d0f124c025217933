package router

import (
	"math"
	"time"

	"github.com/dexsniper/sniperd/internal/domain"
)

// Gas and timing constants used when building route steps. Estimates are
// static per step; live gas prices only enter when a quote is costed.
const (
	swapGasEstimate     uint64 = 120_000
	approvalGasEstimate uint64 = 46_000

	routeTimeBase    = 2 * time.Second
	routeTimePerStep = 3 * time.Second

	directStepConfidence = 0.95
)

// slippageTier maps one trade-size-to-liquidity band onto an expected
// slippage. Upper bounds are exclusive.
type slippageTier struct {
	maxRatio float64
	slippage float64
}

var slippageTiers = []slippageTier{
	{maxRatio: 0.01, slippage: 0.001},
	{maxRatio: 0.05, slippage: 0.005},
	{maxRatio: 0.10, slippage: 0.01},
	{maxRatio: 0.20, slippage: 0.03},
}

// slippageBeyondTiers applies to trades at or above 20% of pool liquidity.
const slippageBeyondTiers = 0.05

// priceImpactCap bounds the square-root impact model at 10%.
const priceImpactCap = 0.1

// EstimateSlippage returns the expected slippage for a trade of the given
// USD value against a pool of the given depth.
func EstimateSlippage(tradeUSD, liquidityUSD float64) float64 {
	if liquidityUSD <= 0 {
		return slippageBeyondTiers
	}
	ratio := tradeUSD / liquidityUSD
	for _, tier := range slippageTiers {
		if ratio < tier.maxRatio {
			return tier.slippage
		}
	}
	return slippageBeyondTiers
}

// EstimatePriceImpact models the trade's own price move as sqrt of its share
// of pool liquidity, capped.
func EstimatePriceImpact(tradeUSD, liquidityUSD float64) float64 {
	if liquidityUSD <= 0 {
		return priceImpactCap
	}
	return math.Min(priceImpactCap, math.Sqrt(tradeUSD/liquidityUSD)*0.1)
}

// liquidityBand classifies pool depth for a route's liquidity risk figure.
func liquidityBand(liquidityUSD float64) domain.RiskBand {
	switch {
	case liquidityUSD < 10_000:
		return domain.RiskBandHigh
	case liquidityUSD < 50_000:
		return domain.RiskBandMedium
	default:
		return domain.RiskBandLow
	}
}

// routeTime estimates wall-clock execution time from step count.
func routeTime(steps int) time.Duration {
	return routeTimeBase + time.Duration(steps)*routeTimePerStep
}
