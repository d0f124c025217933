package router

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dexsniper/sniperd/internal/domain"
	"github.com/dexsniper/sniperd/internal/exchange"
	"github.com/dexsniper/sniperd/internal/metrics"
)

// DiscoveryConfig tunes candidate generation.
type DiscoveryConfig struct {
	MinLiquidityUSD float64 // pools below this are skipped entirely
	LargeTradeUSD   float64 // trades above this also try multi-hop
	ArbMinSpread    float64 // strictly-greater venue spread for arbitrage
	MaxCandidates   int
	Intermediates   []common.Address // hop tokens for multi-hop
	CacheTTL        time.Duration
}

// Discovery generates candidate routes between two tokens. It never returns
// an error: any lookup failure shrinks the candidate set instead of aborting
// the request.
type Discovery struct {
	cfg      DiscoveryConfig
	port     domain.ChainDataPort
	registry *exchange.Registry
	cache    domain.QuoteCache
	rec      *metrics.Recorder
	logger   *slog.Logger
}

// NewDiscovery creates a route discovery over the given data port.
func NewDiscovery(cfg DiscoveryConfig, port domain.ChainDataPort, registry *exchange.Registry, cache domain.QuoteCache, rec *metrics.Recorder, logger *slog.Logger) *Discovery {
	if cfg.MinLiquidityUSD <= 0 {
		cfg.MinLiquidityUSD = 1_000
	}
	if cfg.LargeTradeUSD <= 0 {
		cfg.LargeTradeUSD = 10_000
	}
	if cfg.ArbMinSpread <= 0 {
		cfg.ArbMinSpread = 0.01
	}
	if cfg.MaxCandidates <= 0 {
		cfg.MaxCandidates = 10
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 30 * time.Second
	}
	return &Discovery{
		cfg:      cfg,
		port:     port,
		registry: registry,
		cache:    cache,
		rec:      rec,
		logger:   logger.With(slog.String("component", "route_discovery")),
	}
}

// FindRoutes runs the three discovery strategies and returns up to
// MaxCandidates routes sorted by efficiency. An empty result means no viable
// route; failures along the way only thin the result.
func (d *Discovery) FindRoutes(ctx context.Context, tokenIn, tokenOut domain.TokenRef, amountIn float64) []domain.TradingRoute {
	if tokenIn.Address == tokenOut.Address || amountIn <= 0 {
		return nil
	}

	cacheKey := fmt.Sprintf("%s:%s:%.8f", tokenIn.Address.Hex(), tokenOut.Address.Hex(), amountIn)
	var cached []domain.TradingRoute
	if d.cacheGet(ctx, cacheKey, &cached) {
		return cached
	}

	tradeUSD := d.tradeValueUSD(ctx, tokenIn, amountIn)

	var direct, multiHop, arb []domain.TradingRoute

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		direct = d.directRoutes(gctx, tokenIn, tokenOut, amountIn, tradeUSD)
		return nil
	})
	g.Go(func() error {
		arb = d.arbitrageRoutes(gctx, tokenIn, tokenOut, amountIn, tradeUSD)
		return nil
	})
	_ = g.Wait()

	// multi-hop needs the direct outcome to decide whether to run at all
	if len(direct) == 0 || tradeUSD > d.cfg.LargeTradeUSD {
		multiHop = d.multiHopRoutes(ctx, tokenIn, tokenOut, amountIn, tradeUSD)
	}

	routes := make([]domain.TradingRoute, 0, len(direct)+len(multiHop)+len(arb))
	routes = append(routes, direct...)
	routes = append(routes, multiHop...)
	routes = append(routes, arb...)

	sort.SliceStable(routes, func(i, j int) bool {
		return routes[i].Efficiency > routes[j].Efficiency
	})
	if len(routes) > d.cfg.MaxCandidates {
		routes = routes[:d.cfg.MaxCandidates]
	}

	d.cacheSet(ctx, cacheKey, routes)
	return routes
}

// directRoutes probes every venue for a pool holding the pair and emits one
// single-step route per pool that clears the liquidity floor.
func (d *Discovery) directRoutes(ctx context.Context, tokenIn, tokenOut domain.TokenRef, amountIn, tradeUSD float64) []domain.TradingRoute {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.registry.Len())

	found := make(chan domain.TradingRoute, d.registry.Len())

	for _, desc := range d.registry.All() {
		desc := desc // pin iteration value for the goroutine under pre-1.22 loop scoping
		g.Go(func() error {
			pool, err := d.port.GetPoolInfo(gctx, tokenIn.Address, tokenOut.Address, desc.ID)
			if err != nil {
				d.logger.Debug("direct pool lookup failed",
					slog.String("exchange", string(desc.ID)),
					slog.String("error", err.Error()))
				return nil
			}
			if pool == nil || pool.LiquidityUSD < d.cfg.MinLiquidityUSD {
				return nil
			}
			if route, ok := d.directRoute(tokenIn, tokenOut, amountIn, tradeUSD, *pool); ok {
				found <- route
			}
			return nil
		})
	}
	_ = g.Wait()
	close(found)

	routes := make([]domain.TradingRoute, 0, len(found))
	for route := range found {
		routes = append(routes, route)
	}
	// venue order for determinism: fan-out completion order is not stable
	sort.SliceStable(routes, func(i, j int) bool {
		return venueRank(d.registry, routes[i].Steps[0].Exchange) < venueRank(d.registry, routes[j].Steps[0].Exchange)
	})
	return routes
}

// directRoute prices one swap against one pool.
func (d *Discovery) directRoute(tokenIn, tokenOut domain.TokenRef, amountIn, tradeUSD float64, pool domain.LiquidityPool) (domain.TradingRoute, bool) {
	reserveIn, reserveOut, ok := pool.ReservesFor(tokenIn.Address)
	if !ok {
		return domain.TradingRoute{}, false
	}
	amountOut := exchange.AmountOut(amountIn, reserveIn, reserveOut, pool.FeeRate)
	if amountOut <= 0 {
		return domain.TradingRoute{}, false
	}

	step := domain.RouteStep{
		Exchange:    pool.Exchange,
		PoolAddress: pool.Address,
		TokenIn:     tokenIn,
		TokenOut:    tokenOut,
		AmountIn:    amountIn,
		AmountOut:   amountOut,
		FeeRate:     pool.FeeRate,
		Slippage:    EstimateSlippage(tradeUSD, pool.LiquidityUSD),
		GasEstimate: swapGasEstimate,
		Confidence:  directStepConfidence,
	}
	return domain.TradingRoute{
		ID:            uuid.NewString(),
		Type:          domain.RouteDirect,
		Steps:         []domain.RouteStep{step},
		AmountIn:      amountIn,
		AmountOut:     amountOut,
		TotalFees:     amountIn * pool.FeeRate,
		TotalSlippage: step.Slippage,
		TotalGas:      swapGasEstimate,
		PriceImpact:   EstimatePriceImpact(tradeUSD, pool.LiquidityUSD),
		EstimatedTime: routeTime(1),
		ExecutionProb: directStepConfidence,
		Efficiency:    efficiencyScore(1),
		Complexity:    1,
		LiquidityRisk: liquidityBand(pool.LiquidityUSD),
		MEVExposure:   domain.RiskBandLow,
		CreatedAt:     time.Now().UTC(),
	}, true
}

// multiHopRoutes chains two direct lookups through each configured
// intermediate token.
func (d *Discovery) multiHopRoutes(ctx context.Context, tokenIn, tokenOut domain.TokenRef, amountIn, tradeUSD float64) []domain.TradingRoute {
	var routes []domain.TradingRoute
	for _, mid := range d.cfg.Intermediates {
		if mid == tokenIn.Address || mid == tokenOut.Address {
			continue
		}
		midInfo, err := d.port.GetTokenInfo(ctx, mid)
		if err != nil || midInfo == nil {
			continue
		}
		midRef := midInfo.Ref()

		firstLegs := d.directRoutes(ctx, tokenIn, midRef, amountIn, tradeUSD)
		firstLeg, ok := bestByOutput(firstLegs)
		if !ok {
			continue
		}
		secondLegs := d.directRoutes(ctx, midRef, tokenOut, firstLeg.AmountOut, tradeUSD)
		secondLeg, ok := bestByOutput(secondLegs)
		if !ok {
			continue
		}
		routes = append(routes, combineRoutes(domain.RouteMultiHop, firstLeg, secondLeg))
	}
	return routes
}

// arbitrageRoutes compares the pair's marginal price across venue pairs and
// emits a buy-low sell-high round trip when the spread strictly exceeds the
// threshold.
func (d *Discovery) arbitrageRoutes(ctx context.Context, tokenIn, tokenOut domain.TokenRef, amountIn, tradeUSD float64) []domain.TradingRoute {
	type venuePool struct {
		pool domain.LiquidityPool
		rate float64 // tokenOut per tokenIn at marginal size
	}

	var quotes []venuePool
	for _, desc := range d.registry.All() {
		pool, err := d.port.GetPoolInfo(ctx, tokenIn.Address, tokenOut.Address, desc.ID)
		if err != nil {
			d.logger.Debug("arbitrage pool lookup failed",
				slog.String("exchange", string(desc.ID)),
				slog.String("error", err.Error()))
			continue
		}
		if pool == nil || pool.LiquidityUSD < d.cfg.MinLiquidityUSD {
			continue
		}
		reserveIn, reserveOut, ok := pool.ReservesFor(tokenIn.Address)
		if !ok || reserveIn <= 0 {
			continue
		}
		quotes = append(quotes, venuePool{pool: *pool, rate: exchange.MidPrice(reserveIn, reserveOut)})
	}
	if len(quotes) < 2 {
		return nil
	}

	var routes []domain.TradingRoute
	for i := 0; i < len(quotes); i++ {
		for j := i + 1; j < len(quotes); j++ {
			cheap, rich := quotes[i], quotes[j]
			if rich.rate > cheap.rate {
				cheap, rich = rich, cheap
			}
			// cheap has the higher rate: more tokenOut per tokenIn
			if rich.rate <= 0 {
				continue
			}
			spread := (cheap.rate - rich.rate) / rich.rate
			if spread <= d.cfg.ArbMinSpread {
				continue
			}

			buyLeg, ok := d.directRoute(tokenIn, tokenOut, amountIn, tradeUSD, cheap.pool)
			if !ok {
				continue
			}
			sellLeg, ok := d.directRoute(tokenOut, tokenIn, buyLeg.AmountOut, tradeUSD, rich.pool)
			if !ok {
				continue
			}
			routes = append(routes, combineRoutes(domain.RouteArbitrage, buyLeg, sellLeg))
		}
	}
	return routes
}

// combineRoutes concatenates two legs into one multi-step route. Fees,
// slippage, gas, and price impact sum across legs; execution probability is
// the weakest leg; impact summing is a deliberately conservative
// approximation.
func combineRoutes(routeType domain.RouteType, first, second domain.TradingRoute) domain.TradingRoute {
	steps := make([]domain.RouteStep, 0, len(first.Steps)+len(second.Steps))
	steps = append(steps, first.Steps...)
	steps = append(steps, second.Steps...)

	mev := domain.RiskBandMedium
	if routeType == domain.RouteArbitrage {
		mev = domain.RiskBandHigh
	}

	return domain.TradingRoute{
		ID:            uuid.NewString(),
		Type:          routeType,
		Steps:         steps,
		AmountIn:      first.AmountIn,
		AmountOut:     second.AmountOut,
		TotalFees:     first.TotalFees + second.TotalFees,
		TotalSlippage: first.TotalSlippage + second.TotalSlippage,
		TotalGas:      first.TotalGas + second.TotalGas,
		PriceImpact:   first.PriceImpact + second.PriceImpact,
		EstimatedTime: routeTime(len(steps)),
		ExecutionProb: min(first.ExecutionProb, second.ExecutionProb),
		Efficiency:    efficiencyScore(len(steps)),
		Complexity:    len(steps),
		LiquidityRisk: domain.MaxRiskBand(first.LiquidityRisk, second.LiquidityRisk),
		MEVExposure:   mev,
		CreatedAt:     time.Now().UTC(),
	}
}

// efficiencyScore penalizes longer routes, floored at 0.1.
func efficiencyScore(steps int) float64 {
	score := 1 - 0.1*float64(steps)
	if score < 0.1 {
		return 0.1
	}
	return score
}

// bestByOutput picks the leg with the highest output amount.
func bestByOutput(routes []domain.TradingRoute) (domain.TradingRoute, bool) {
	if len(routes) == 0 {
		return domain.TradingRoute{}, false
	}
	best := routes[0]
	for _, r := range routes[1:] {
		if r.AmountOut > best.AmountOut {
			best = r
		}
	}
	return best, true
}

// tradeValueUSD prices the input leg for slippage tiering. When no USD price
// exists the raw amount stands in, which keeps ratios meaningful for
// stable-denominated trades.
func (d *Discovery) tradeValueUSD(ctx context.Context, tokenIn domain.TokenRef, amountIn float64) float64 {
	sample, err := d.port.GetPrice(ctx, tokenIn.Address, common.Address{})
	if err != nil || sample == nil || sample.Price <= 0 {
		return amountIn
	}
	return amountIn * sample.Price
}

func venueRank(reg *exchange.Registry, id domain.ExchangeID) int {
	for i, desc := range reg.All() {
		if desc.ID == id {
			return i
		}
	}
	return len(reg.All())
}

func (d *Discovery) cacheGet(ctx context.Context, key string, dest *[]domain.TradingRoute) bool {
	if d.cache == nil {
		return false
	}
	hit, err := d.cache.Get(ctx, domain.CacheNSRoutes, key, dest)
	if err != nil {
		return false
	}
	d.rec.RecordCache(domain.CacheNSRoutes, hit)
	return hit
}

func (d *Discovery) cacheSet(ctx context.Context, key string, routes []domain.TradingRoute) {
	if d.cache == nil || d.cfg.CacheTTL <= 0 {
		return
	}
	if err := d.cache.Set(ctx, domain.CacheNSRoutes, key, routes, d.cfg.CacheTTL); err != nil {
		d.logger.Debug("route cache set failed", slog.String("error", err.Error()))
	}
}
