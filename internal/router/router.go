// Package router finds, ranks, and plans trading routes between token pairs
// across the configured venues. Discovery fans out over venues, the evaluator
// filters and scores candidates, and the planner turns the winning quote into
// an ordered operation list for an external executor.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/dexsniper/sniperd/internal/domain"
	"github.com/dexsniper/sniperd/internal/metrics"
)

const defaultMaxSlippage = 0.05

// Config binds the router to one network and sets request fallbacks.
type Config struct {
	Network       string
	WrappedNative common.Address
	MaxSlippage   float64 // applied when a request leaves it unset
}

// QuoteRequest is one routing request. Network may be empty to mean the
// bound network; MaxSlippage zero selects the configured fallback.
type QuoteRequest struct {
	TokenIn     common.Address
	TokenOut    common.Address
	AmountIn    float64
	Network     string
	MaxSlippage float64
	Strategy    domain.RouteStrategy
}

// Router is the routing facade: request validation, discovery, evaluation,
// quote construction, and execution planning behind two calls.
type Router struct {
	cfg       Config
	discovery *Discovery
	evaluator *Evaluator
	planner   *Planner
	port      domain.ChainDataPort
	journal   domain.QuoteJournal
	rec       *metrics.Recorder
	logger    *slog.Logger
}

// New creates the routing facade. The journal may be nil; quotes are then
// not persisted.
func New(cfg Config, discovery *Discovery, evaluator *Evaluator, planner *Planner, port domain.ChainDataPort, journal domain.QuoteJournal, rec *metrics.Recorder, logger *slog.Logger) *Router {
	if cfg.MaxSlippage <= 0 {
		cfg.MaxSlippage = defaultMaxSlippage
	}
	return &Router{
		cfg:       cfg,
		discovery: discovery,
		evaluator: evaluator,
		planner:   planner,
		port:      port,
		journal:   journal,
		rec:       rec,
		logger:    logger.With(slog.String("component", "router")),
	}
}

// FindOptimalRoute resolves the request into the best available quote. A nil
// quote with a nil error means no viable route survived filtering; errors
// are reserved for invalid requests and total data loss.
func (r *Router) FindOptimalRoute(ctx context.Context, req QuoteRequest) (*domain.RouteQuote, error) {
	started := time.Now()
	defer func() { r.rec.RecordLatency("find_optimal_route", time.Since(started).Seconds()) }()

	if err := r.validate(req); err != nil {
		r.rec.RecordQuote("invalid")
		return nil, err
	}
	maxSlippage := req.MaxSlippage
	if maxSlippage <= 0 {
		maxSlippage = r.cfg.MaxSlippage
	}
	strategy := req.Strategy
	if strategy == "" {
		strategy = domain.StrategyBalanced
	}

	tokenIn, err := r.resolveToken(ctx, req.TokenIn)
	if err != nil {
		r.rec.RecordQuote("error")
		return nil, err
	}
	tokenOut, err := r.resolveToken(ctx, req.TokenOut)
	if err != nil {
		r.rec.RecordQuote("error")
		return nil, err
	}

	routes := r.discovery.FindRoutes(ctx, tokenIn, tokenOut, req.AmountIn)
	candidates := r.evaluator.Evaluate(routes, maxSlippage, strategy)
	if len(candidates) == 0 {
		r.logger.Info("no viable route",
			slog.String("token_in", req.TokenIn.Hex()),
			slog.String("token_out", req.TokenOut.Hex()),
			slog.Int("discovered", len(routes)))
		r.rec.RecordQuote("no_route")
		return nil, nil
	}

	best, err := r.evaluator.Select(candidates)
	if err != nil {
		r.rec.RecordQuote("error")
		return nil, err
	}

	quote := r.evaluator.BuildQuote(best, tokenIn, tokenOut, maxSlippage, r.gasCostUSD(ctx, best.TotalGas), time.Now().UTC())

	if r.journal != nil {
		if err := r.journal.Insert(ctx, quote); err != nil {
			r.logger.Warn("quote journal insert failed",
				slog.String("quote_id", quote.ID),
				slog.String("error", err.Error()))
		}
	}

	r.logger.Info("quote issued",
		slog.String("quote_id", quote.ID),
		slog.String("route_type", string(best.Type)),
		slog.Int("steps", best.Hops()),
		slog.Float64("amount_out", quote.OutputAmount),
		slog.Float64("quality", best.QualityScore))
	r.rec.RecordQuote("ok")
	return &quote, nil
}

// PlanExecution turns a quote into an execution plan for the given wallet.
func (r *Router) PlanExecution(ctx context.Context, quote domain.RouteQuote, wallet common.Address) (*domain.ExecutionPlan, error) {
	started := time.Now()
	defer func() { r.rec.RecordLatency("plan_execution", time.Since(started).Seconds()) }()

	plan, err := r.planner.Plan(ctx, quote, wallet)
	if err != nil {
		return nil, err
	}
	r.logger.Info("execution plan built",
		slog.String("plan_id", plan.PlanID),
		slog.String("quote_id", plan.QuoteID),
		slog.Int("ops", len(plan.Ops)),
		slog.Uint64("total_gas", plan.TotalGas))
	return plan, nil
}

func (r *Router) validate(req QuoteRequest) error {
	if req.TokenIn == req.TokenOut {
		return fmt.Errorf("router: token in equals token out: %w", domain.ErrInvalidPair)
	}
	if req.AmountIn <= 0 {
		return fmt.Errorf("router: amount %f: %w", req.AmountIn, domain.ErrInvalidAmount)
	}
	if req.Network != "" && req.Network != r.cfg.Network {
		return fmt.Errorf("router: network %q, engine bound to %q: %w", req.Network, r.cfg.Network, domain.ErrUnsupportedNetwork)
	}
	return nil
}

// resolveToken loads the metadata routing needs for a token leg. Routing
// cannot proceed without it, so failures propagate.
func (r *Router) resolveToken(ctx context.Context, token common.Address) (domain.TokenRef, error) {
	info, err := r.port.GetTokenInfo(ctx, token)
	if err != nil {
		return domain.TokenRef{}, fmt.Errorf("router: resolve token %s: %w", token.Hex(), err)
	}
	if info == nil {
		return domain.TokenRef{}, fmt.Errorf("router: resolve token %s: %w", token.Hex(), domain.ErrDataUnavailable)
	}
	return info.Ref(), nil
}

// gasCostUSD converts a gas amount to USD via the current gas price and the
// wrapped-native USD price. Both lookups are best effort; the cost degrades
// to zero rather than failing the quote.
func (r *Router) gasCostUSD(ctx context.Context, gas uint64) float64 {
	gasPrice, err := r.port.GetGasPrice(ctx)
	if err != nil || gasPrice == nil {
		return 0
	}
	sample, err := r.port.GetPrice(ctx, r.cfg.WrappedNative, common.Address{})
	if err != nil || sample == nil || sample.Price <= 0 {
		return 0
	}

	costWei := new(big.Int).Mul(gasPrice, new(big.Int).SetUint64(gas))
	costNative, _ := new(big.Float).Quo(new(big.Float).SetInt(costWei), big.NewFloat(1e18)).Float64()
	return costNative * sample.Price
}
