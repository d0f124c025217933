package router

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/dexsniper/sniperd/internal/domain"
)

// Defaults applied by NewEvaluator.
const (
	defaultMaxPriceImpact   = 0.05
	defaultMinExecutionProb = 0.7
	defaultQuoteTTL         = 15 * time.Minute
	defaultOutputNormUSD    = 1_000.0
	defaultGasNorm          = 500_000.0
	defaultTimeNorm         = 30 * time.Second
)

// qualityWeights blends the six sub-scores into one quality score. Each
// profile must sum to 1 so a route scoring v on every sub-score scores v
// overall.
type qualityWeights struct {
	Output    float64
	Gas       float64
	Impact    float64
	Time      float64
	Liquidity float64
	MEV       float64
}

var strategyWeights = map[domain.RouteStrategy]qualityWeights{
	domain.StrategyBalanced:   {Output: 0.40, Gas: 0.20, Impact: 0.15, Time: 0.10, Liquidity: 0.10, MEV: 0.05},
	domain.StrategyBestOutput: {Output: 0.60, Gas: 0.10, Impact: 0.10, Time: 0.05, Liquidity: 0.10, MEV: 0.05},
	domain.StrategyLowGas:     {Output: 0.25, Gas: 0.45, Impact: 0.10, Time: 0.10, Liquidity: 0.05, MEV: 0.05},
	domain.StrategyLowRisk:    {Output: 0.20, Gas: 0.10, Impact: 0.20, Time: 0.10, Liquidity: 0.20, MEV: 0.20},
}

// EvaluatorConfig tunes route filtering and quote construction.
type EvaluatorConfig struct {
	MaxPriceImpact   float64
	MinExecutionProb float64
	QuoteTTL         time.Duration
	OutputNormUSD    float64
	GasNorm          float64
	TimeNorm         time.Duration
}

// Evaluator filters candidate routes, scores the survivors, and turns the
// winner into a quote.
type Evaluator struct {
	cfg EvaluatorConfig
}

// NewEvaluator creates an evaluator, filling zero config fields with
// defaults.
func NewEvaluator(cfg EvaluatorConfig) *Evaluator {
	if cfg.MaxPriceImpact <= 0 {
		cfg.MaxPriceImpact = defaultMaxPriceImpact
	}
	if cfg.MinExecutionProb <= 0 {
		cfg.MinExecutionProb = defaultMinExecutionProb
	}
	if cfg.QuoteTTL <= 0 {
		cfg.QuoteTTL = defaultQuoteTTL
	}
	if cfg.OutputNormUSD <= 0 {
		cfg.OutputNormUSD = defaultOutputNormUSD
	}
	if cfg.GasNorm <= 0 {
		cfg.GasNorm = defaultGasNorm
	}
	if cfg.TimeNorm <= 0 {
		cfg.TimeNorm = defaultTimeNorm
	}
	return &Evaluator{cfg: cfg}
}

// Evaluate drops routes that violate the caller's slippage bound or the
// configured impact and probability floors, scores the rest under the given
// strategy, and returns them best-first. Ties keep insertion order.
func (e *Evaluator) Evaluate(routes []domain.TradingRoute, maxSlippage float64, strategy domain.RouteStrategy) []domain.TradingRoute {
	weights, ok := strategyWeights[strategy]
	if !ok {
		weights = strategyWeights[domain.StrategyBalanced]
	}

	kept := make([]domain.TradingRoute, 0, len(routes))
	for _, route := range routes {
		if route.TotalSlippage > maxSlippage {
			continue
		}
		if route.PriceImpact > e.cfg.MaxPriceImpact {
			continue
		}
		if route.ExecutionProb < e.cfg.MinExecutionProb {
			continue
		}
		route.QualityScore = e.score(route, weights)
		kept = append(kept, route)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].QualityScore > kept[j].QualityScore
	})
	return kept
}

// Select picks the highest-scored route. The earliest candidate wins a tie.
func (e *Evaluator) Select(routes []domain.TradingRoute) (domain.TradingRoute, error) {
	if len(routes) == 0 {
		return domain.TradingRoute{}, fmt.Errorf("router: select: %w", domain.ErrNoCandidates)
	}
	best := routes[0]
	for _, route := range routes[1:] {
		if route.QualityScore > best.QualityScore {
			best = route
		}
	}
	return best, nil
}

// BuildQuote wraps the selected route in the guarantees the engine stands
// behind until the deadline. Freshness starts at 1.0 and decays only through
// revalidation by the caller.
func (e *Evaluator) BuildQuote(route domain.TradingRoute, tokenIn, tokenOut domain.TokenRef, maxSlippage, gasCostUSD float64, now time.Time) domain.RouteQuote {
	feePct := 0.0
	if route.AmountIn > 0 {
		feePct = route.TotalFees / route.AmountIn * 100
	}
	return domain.RouteQuote{
		ID:             uuid.NewString(),
		Route:          route,
		InputToken:     tokenIn,
		OutputToken:    tokenOut,
		InputAmount:    route.AmountIn,
		OutputAmount:   route.AmountOut,
		MinimumOutput:  route.AmountOut * (1 - maxSlippage),
		ExchangeRate:   route.AmountOut / route.AmountIn,
		PriceImpactPct: route.PriceImpact * 100,
		TotalFeePct:    feePct,
		GasCostUSD:     gasCostUSD,
		Deadline:       now.Add(e.cfg.QuoteTTL),
		MaxSlippage:    maxSlippage,
		Confidence:     route.ExecutionProb,
		FreshnessScore: 1.0,
		CreatedAt:      now,
	}
}

// score is the weighted sum of the six normalized sub-scores.
func (e *Evaluator) score(route domain.TradingRoute, w qualityWeights) float64 {
	output := route.AmountOut / e.cfg.OutputNormUSD
	if output > 1 {
		output = 1
	}
	gas := 1 - float64(route.TotalGas)/e.cfg.GasNorm
	if gas < 0 {
		gas = 0
	}
	impact := 1 - route.PriceImpact
	elapsed := 1 - float64(route.EstimatedTime)/float64(e.cfg.TimeNorm)
	if elapsed < 0 {
		elapsed = 0
	}
	liquidity := 0.5
	if route.LiquidityRisk == domain.RiskBandLow {
		liquidity = 1.0
	}
	mev := mevScore(route.MEVExposure)

	return w.Output*output + w.Gas*gas + w.Impact*impact +
		w.Time*elapsed + w.Liquidity*liquidity + w.MEV*mev
}

func mevScore(band domain.RiskBand) float64 {
	switch band {
	case domain.RiskBandLow:
		return 1.0
	case domain.RiskBandMedium:
		return 0.7
	default:
		return 0.3
	}
}
