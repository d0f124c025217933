package domain

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// RouteType classifies how a route moves value between the input and output
// token.
type RouteType string

const (
	RouteDirect    RouteType = "direct"
	RouteMultiHop  RouteType = "multi_hop"
	RouteArbitrage RouteType = "arbitrage"
)

// RouteStrategy names the quality-weight profile used to rank candidate
// routes against each other.
type RouteStrategy string

const (
	StrategyBalanced   RouteStrategy = "balanced"
	StrategyBestOutput RouteStrategy = "best_output"
	StrategyLowGas     RouteStrategy = "low_gas"
	StrategyLowRisk    RouteStrategy = "low_risk"
)

// ParseRouteStrategy validates a caller-supplied strategy name. The empty
// string selects the balanced profile.
func ParseRouteStrategy(s string) (RouteStrategy, error) {
	if s == "" {
		return StrategyBalanced, nil
	}
	switch RouteStrategy(s) {
	case StrategyBalanced, StrategyBestOutput, StrategyLowGas, StrategyLowRisk:
		return RouteStrategy(s), nil
	}
	return "", fmt.Errorf("domain: unknown route strategy %q", s)
}

// RiskBand is a coarse low/medium/high classification attached to routes.
type RiskBand string

const (
	RiskBandLow    RiskBand = "low"
	RiskBandMedium RiskBand = "medium"
	RiskBandHigh   RiskBand = "high"
)

var riskBandRank = map[RiskBand]int{
	RiskBandLow:    0,
	RiskBandMedium: 1,
	RiskBandHigh:   2,
}

// MaxRiskBand returns the more severe of two bands.
func MaxRiskBand(a, b RiskBand) RiskBand {
	if riskBandRank[b] > riskBandRank[a] {
		return b
	}
	return a
}

// RouteStep is a single swap on one venue. Amounts are in display units of
// the respective token.
type RouteStep struct {
	Exchange    ExchangeID
	PoolAddress common.Address
	TokenIn     TokenRef
	TokenOut    TokenRef
	AmountIn    float64
	AmountOut   float64
	FeeRate     float64
	Slippage    float64 // expected slippage as a fraction
	GasEstimate uint64
	Confidence  float64
}

// TradingRoute is an ordered chain of swap steps with aggregate quality and
// risk figures. Steps are contiguous: each step's output token is the next
// step's input token.
type TradingRoute struct {
	ID            string
	Type          RouteType
	Steps         []RouteStep
	AmountIn      float64
	AmountOut     float64
	TotalFees     float64 // fee value in input token units
	TotalSlippage float64
	TotalGas      uint64
	PriceImpact   float64
	EstimatedTime time.Duration
	QualityScore  float64
	ExecutionProb float64
	Efficiency    float64
	Complexity    int
	LiquidityRisk RiskBand
	MEVExposure   RiskBand
	CreatedAt     time.Time
}

// TokenIn returns the route's input token. Routes always carry at least one
// step.
func (r TradingRoute) TokenIn() TokenRef { return r.Steps[0].TokenIn }

// TokenOut returns the route's final output token.
func (r TradingRoute) TokenOut() TokenRef { return r.Steps[len(r.Steps)-1].TokenOut }

// Hops returns the number of swap steps in the route.
func (r TradingRoute) Hops() int { return len(r.Steps) }
