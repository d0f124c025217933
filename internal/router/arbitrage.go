package router

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/dexsniper/sniperd/internal/domain"
)

// FindArbitrage sweeps the registered venues for round trips through token
// that return more wrapped native than they consume. Hits come back as
// journaled quotes, best first; an empty slice with a nil error means no
// spread cleared the threshold.
func (r *Router) FindArbitrage(ctx context.Context, token common.Address, amountIn float64) ([]domain.RouteQuote, error) {
	started := time.Now()
	defer func() { r.rec.RecordLatency("find_arbitrage", time.Since(started).Seconds()) }()

	if token == r.cfg.WrappedNative {
		return nil, fmt.Errorf("router: arbitrage target equals wrapped native: %w", domain.ErrInvalidPair)
	}
	if amountIn <= 0 {
		return nil, fmt.Errorf("router: amount %f: %w", amountIn, domain.ErrInvalidAmount)
	}

	base, err := r.resolveToken(ctx, r.cfg.WrappedNative)
	if err != nil {
		return nil, err
	}
	target, err := r.resolveToken(ctx, token)
	if err != nil {
		return nil, err
	}

	var cycles []domain.TradingRoute
	for _, route := range r.discovery.FindRoutes(ctx, base, target, amountIn) {
		if route.Type == domain.RouteArbitrage {
			cycles = append(cycles, route)
		}
	}

	// A cycle is two swaps, so it gets two slippage budgets.
	maxSlippage := 2 * r.cfg.MaxSlippage
	candidates := r.evaluator.Evaluate(cycles, maxSlippage, domain.StrategyBestOutput)

	var quotes []domain.RouteQuote
	now := time.Now().UTC()
	for _, route := range candidates {
		if route.AmountOut <= route.AmountIn {
			continue
		}
		quote := r.evaluator.BuildQuote(route, base, base, maxSlippage, r.gasCostUSD(ctx, route.TotalGas), now)

		if r.journal != nil {
			if err := r.journal.Insert(ctx, quote); err != nil {
				r.logger.Warn("quote journal insert failed",
					slog.String("quote_id", quote.ID),
					slog.String("error", err.Error()))
			}
		}

		r.logger.Info("arbitrage hit",
			slog.String("quote_id", quote.ID),
			slog.String("token", token.Hex()),
			slog.Int("steps", route.Hops()),
			slog.Float64("amount_in", route.AmountIn),
			slog.Float64("amount_out", route.AmountOut),
			slog.Float64("gas_cost_usd", quote.GasCostUSD))
		r.rec.RecordQuote("arb")
		quotes = append(quotes, quote)
	}

	return quotes, nil
}
