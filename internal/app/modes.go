package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/dexsniper/sniperd/internal/domain"
	"github.com/dexsniper/sniperd/internal/metrics"
	"github.com/dexsniper/sniperd/internal/notify"
	"github.com/dexsniper/sniperd/internal/risk"
	"github.com/dexsniper/sniperd/internal/router"
	"github.com/dexsniper/sniperd/internal/sniper"
	"github.com/dexsniper/sniperd/internal/watch"
)

// QuoteMode resolves the single quote requested in configuration, prints it
// as JSON on stdout, and exits.
func (a *App) QuoteMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting quote mode")

	strategy, err := domain.ParseRouteStrategy(a.cfg.Router.Quote.Strategy)
	if err != nil {
		return fmt.Errorf("quote mode: %w", err)
	}
	req := router.QuoteRequest{
		TokenIn:  common.HexToAddress(a.cfg.Router.Quote.TokenIn),
		TokenOut: common.HexToAddress(a.cfg.Router.Quote.TokenOut),
		AmountIn: a.cfg.Router.Quote.AmountIn,
		Strategy: strategy,
	}

	quote, err := a.buildRouter(deps).FindOptimalRoute(ctx, req)
	if err != nil {
		return fmt.Errorf("quote mode: %w", err)
	}
	if quote == nil {
		return fmt.Errorf("quote mode: %s -> %s: %w",
			req.TokenIn.Hex(), req.TokenOut.Hex(), domain.ErrNoCandidates)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(quote); err != nil {
		return fmt.Errorf("quote mode: encode result: %w", err)
	}
	return nil
}

// AssessMode runs one risk assessment for the configured token, prints it as
// JSON on stdout, and exits.
func (a *App) AssessMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting assess mode")

	token := common.HexToAddress(a.cfg.Risk.Assess.Token)
	assessment, err := a.buildRiskEngine(deps).Assess(ctx, token, a.cfg.Chain.Network, false)
	if err != nil {
		return fmt.Errorf("assess mode: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(assessment); err != nil {
		return fmt.Errorf("assess mode: encode result: %w", err)
	}
	return nil
}

// ScanMode sweeps the configured token universe for cross-venue arbitrage on
// an interval, journaling and alerting every hit.
func (a *App) ScanMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting scan mode")

	g, ctx := errgroup.WithContext(ctx)

	rtr := a.buildRouter(deps)
	g.Go(func() error {
		return a.scanLoop(ctx, rtr, deps.Notifier)
	})

	a.startMetricsListener(ctx, g, deps)

	return g.Wait()
}

// WatchMode follows factory PairCreated logs, publishes each discovery on the
// signal bus, risk-assesses the listed side, and forwards discoveries and
// dangerous tokens to the configured alert channels. No trading happens here.
func (a *App) WatchMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting watch mode")

	g, ctx := errgroup.WithContext(ctx)

	watcher, err := a.buildWatcher(deps)
	if err != nil {
		return fmt.Errorf("watch mode: %w", err)
	}
	g.Go(func() error {
		return watcher.Run(ctx)
	})
	eng := a.buildRiskEngine(deps)
	g.Go(func() error {
		return a.pairAlertLoop(ctx, deps, eng)
	})

	a.startMetricsListener(ctx, g, deps)

	return g.Wait()
}

// SnipeMode runs the watcher and the snipe pipeline together: discoveries go
// onto the bus, the sniper takes each one through risk gating, routing, and
// planning to a journaled outcome.
func (a *App) SnipeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting snipe mode")

	g, ctx := errgroup.WithContext(ctx)

	watcher, err := a.buildWatcher(deps)
	if err != nil {
		return fmt.Errorf("snipe mode: %w", err)
	}
	snp, err := a.buildSniper(deps)
	if err != nil {
		return fmt.Errorf("snipe mode: %w", err)
	}

	g.Go(func() error {
		return watcher.Run(ctx)
	})
	g.Go(func() error {
		return snp.Run(ctx)
	})

	a.startMetricsListener(ctx, g, deps)

	return g.Wait()
}

// ArchiveMode moves journal rows older than the retention window to object
// storage and exits.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting archive mode")

	if deps.Archiver == nil {
		return fmt.Errorf("archive mode: archiver not wired")
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -a.cfg.S3.RetentionDays)

	quotes, err := deps.Archiver.ArchiveQuotes(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("archive mode: quotes: %w", err)
	}
	assessments, err := deps.Archiver.ArchiveAssessments(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("archive mode: assessments: %w", err)
	}
	snipes, err := deps.Archiver.ArchiveSnipes(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("archive mode: snipes: %w", err)
	}

	a.logger.InfoContext(ctx, "archive sweep complete",
		slog.Time("cutoff", cutoff),
		slog.Int64("quotes", quotes),
		slog.Int64("assessments", assessments),
		slog.Int64("snipes", snipes),
	)
	message := fmt.Sprintf("Archived %d quotes, %d assessments, %d snipes older than %s.",
		quotes, assessments, snipes, cutoff.Format(time.RFC3339))
	if err := deps.Notifier.Notify(ctx, notify.EventArchiveDone, "Archive complete", message); err != nil {
		a.logger.WarnContext(ctx, "archive notification failed", slog.String("error", err.Error()))
	}
	return nil
}

// FullMode runs every long-lived subsystem at once: the pair watcher, the
// snipe pipeline, the arbitrage sweep, and pair alerts.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)

	watcher, err := a.buildWatcher(deps)
	if err != nil {
		return fmt.Errorf("full mode: %w", err)
	}
	snp, err := a.buildSniper(deps)
	if err != nil {
		return fmt.Errorf("full mode: %w", err)
	}
	rtr := a.buildRouter(deps)

	g.Go(func() error {
		return watcher.Run(ctx)
	})
	g.Go(func() error {
		return snp.Run(ctx)
	})
	g.Go(func() error {
		return a.pairAlertLoop(ctx, deps, nil)
	})
	if len(a.cfg.Scan.Tokens) > 0 {
		g.Go(func() error {
			return a.scanLoop(ctx, rtr, deps.Notifier)
		})
	} else {
		a.logger.InfoContext(ctx, "full mode: no scan tokens configured, arbitrage sweep disabled")
	}

	a.startMetricsListener(ctx, g, deps)

	return g.Wait()
}

// buildRouter assembles the routing facade from wired dependencies. The
// discovery layer routes through the wrapped native and the configured
// stables.
func (a *App) buildRouter(deps *Dependencies) *router.Router {
	wrapped := common.HexToAddress(a.cfg.Chain.WrappedNative)
	intermediates := []common.Address{wrapped}
	for _, s := range a.cfg.Chain.Stables {
		intermediates = append(intermediates, common.HexToAddress(s))
	}

	discovery := router.NewDiscovery(router.DiscoveryConfig{
		Intermediates: intermediates,
	}, deps.Chain, deps.Registry, deps.Cache, deps.Recorder, a.logger)
	evaluator := router.NewEvaluator(router.EvaluatorConfig{})
	planner := router.NewPlanner(deps.Chain, deps.Registry, a.logger)

	return router.New(router.Config{
		Network:       a.cfg.Chain.Network,
		WrappedNative: wrapped,
		MaxSlippage:   a.cfg.Router.MaxSlippage,
	}, discovery, evaluator, planner, deps.Chain, deps.Quotes, deps.Recorder, a.logger)
}

// buildRiskEngine assembles the token risk engine from wired dependencies.
func (a *App) buildRiskEngine(deps *Dependencies) *risk.Engine {
	return risk.New(risk.Config{
		Network:  a.cfg.Chain.Network,
		CacheTTL: a.cfg.Risk.CacheTTL.Duration,
	}, deps.Chain, deps.Cache, deps.Assessments, deps.Recorder, a.logger)
}

// buildWatcher assembles the pair watcher publishing onto the signal bus.
func (a *App) buildWatcher(deps *Dependencies) (*watch.Watcher, error) {
	return watch.NewWatcher(watch.Config{
		Network:      a.cfg.Chain.Network,
		WSURL:        a.cfg.Watcher.WSURL,
		ReconnectMin: a.cfg.Watcher.ReconnectMin.Duration,
		ReconnectMax: a.cfg.Watcher.ReconnectMax.Duration,
	}, deps.Registry, deps.PairSink, deps.Recorder, a.logger)
}

// buildSniper assembles the snipe pipeline around a fresh router and risk
// engine. Plans stay on the dry-run submitter; broadcasting real transactions
// is a deliberate gap.
func (a *App) buildSniper(deps *Dependencies) (*sniper.Sniper, error) {
	base := make([]common.Address, 0, len(a.cfg.Sniper.BaseTokens))
	for _, t := range a.cfg.Sniper.BaseTokens {
		base = append(base, common.HexToAddress(t))
	}
	return sniper.NewSniper(sniper.Config{
		Network:       a.cfg.Chain.Network,
		Wallet:        common.HexToAddress(a.cfg.Sniper.Wallet),
		WrappedNative: common.HexToAddress(a.cfg.Chain.WrappedNative),
		BudgetNative:  a.cfg.Sniper.BudgetNative,
		BaseTokens:    base,
		MaxRiskLevel:  domain.RiskLevel(a.cfg.Sniper.MaxRiskLevel),
		Strategy:      domain.RouteStrategy(a.cfg.Sniper.Strategy),
		DedupTTL:      a.cfg.Sniper.DedupTTL.Duration,
		LockTTL:       a.cfg.Sniper.LockTTL.Duration,
	},
		deps.Bus,
		a.buildRiskEngine(deps),
		a.buildRouter(deps),
		sniper.NewDryRunSubmitter(a.logger),
		deps.Locks,
		deps.Snipes,
		deps.Notifier,
		deps.Recorder,
		a.logger,
	)
}

// scanLoop runs one arbitrage sweep immediately and then one per interval
// until the context ends. Per-token failures are logged and skipped; the
// sweep never aborts the mode.
func (a *App) scanLoop(ctx context.Context, rtr *router.Router, notifier *notify.Notifier) error {
	tokens := make([]common.Address, 0, len(a.cfg.Scan.Tokens))
	for _, raw := range a.cfg.Scan.Tokens {
		tokens = append(tokens, common.HexToAddress(raw))
	}

	a.logger.InfoContext(ctx, "arbitrage sweep started",
		slog.Int("tokens", len(tokens)),
		slog.Duration("interval", a.cfg.Scan.Interval.Duration),
		slog.Float64("amount_in", a.cfg.Scan.AmountIn),
	)

	sweep := func() {
		for _, token := range tokens {
			hits, err := rtr.FindArbitrage(ctx, token, a.cfg.Scan.AmountIn)
			if err != nil {
				a.logger.WarnContext(ctx, "arbitrage sweep: token skipped",
					slog.String("token", token.Hex()),
					slog.String("error", err.Error()),
				)
				continue
			}
			for _, hit := range hits {
				message := fmt.Sprintf("%s: %.6f -> %.6f wrapped native over %d steps (gas $%.2f)",
					token.Hex(), hit.InputAmount, hit.OutputAmount, hit.Route.Hops(), hit.GasCostUSD)
				if err := notifier.Notify(ctx, notify.EventArbOpportunity, "Arbitrage opportunity", message); err != nil {
					a.logger.WarnContext(ctx, "arbitrage sweep: notify failed",
						slog.String("quote_id", hit.ID),
						slog.String("error", err.Error()),
					)
				}
			}
		}
	}

	sweep()
	ticker := time.NewTicker(a.cfg.Scan.Interval.Duration)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			sweep()
		}
	}
}

// pairAlertLoop mirrors bus discoveries to the alert channels. When eng is
// non-nil the newly listed side of each pair is risk-assessed and dangerous
// tokens raise a high-risk alert; modes running the sniper pass nil since the
// pipeline assesses every pair itself.
func (a *App) pairAlertLoop(ctx context.Context, deps *Dependencies, eng *risk.Engine) error {
	base := make(map[common.Address]struct{}, len(a.cfg.Chain.Stables)+1)
	base[common.HexToAddress(a.cfg.Chain.WrappedNative)] = struct{}{}
	for _, s := range a.cfg.Chain.Stables {
		base[common.HexToAddress(s)] = struct{}{}
	}

	events, err := deps.Bus.Subscribe(ctx, domain.BusChannelPairs)
	if err != nil {
		return fmt.Errorf("pair alerts: subscribe: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-events:
			if !ok {
				return nil
			}
			var ev domain.PairEvent
			if err := json.Unmarshal(raw, &ev); err != nil {
				a.logger.WarnContext(ctx, "pair alerts: bad event payload",
					slog.String("error", err.Error()))
				continue
			}
			message := fmt.Sprintf("%s / %s on %s (%s), block %d",
				ev.Token0.Hex(), ev.Token1.Hex(), ev.Exchange, ev.Network, ev.BlockNumber)
			if err := deps.Notifier.Notify(ctx, notify.EventPairDiscovered, "New pair discovered", message); err != nil {
				a.logger.WarnContext(ctx, "pair alerts: notify failed",
					slog.String("pair", ev.PairAddress.Hex()),
					slog.String("error", err.Error()))
			}

			if eng == nil {
				continue
			}
			token, ok := listedSide(ev, base)
			if !ok {
				continue
			}
			assessment, err := eng.Assess(ctx, token, ev.Network, true)
			if err != nil {
				a.logger.WarnContext(ctx, "pair alerts: assessment failed",
					slog.String("token", token.Hex()),
					slog.String("error", err.Error()))
				continue
			}
			a.logger.InfoContext(ctx, "new listing assessed",
				slog.String("token", token.Hex()),
				slog.Float64("score", assessment.Score),
				slog.String("level", string(assessment.Level)))
			if assessment.Level.Rank() >= domain.RiskHigh.Rank() {
				alert := fmt.Sprintf("token %s on %s scored %.1f (%s)",
					token.Hex(), ev.Exchange, assessment.Score, assessment.Level)
				if err := deps.Notifier.Notify(ctx, notify.EventHighRisk, "High risk token", alert); err != nil {
					a.logger.WarnContext(ctx, "pair alerts: notify failed",
						slog.String("token", token.Hex()),
						slog.String("error", err.Error()))
				}
			}
		}
	}
}

// listedSide returns the newly listed token of a pair: the side that is not
// the wrapped native or a configured stable. Pairs between two known tokens
// or two unknowns return false.
func listedSide(ev domain.PairEvent, base map[common.Address]struct{}) (common.Address, bool) {
	_, base0 := base[ev.Token0]
	_, base1 := base[ev.Token1]
	switch {
	case base0 && !base1:
		return ev.Token1, true
	case base1 && !base0:
		return ev.Token0, true
	default:
		return common.Address{}, false
	}
}

// startMetricsListener adds the metrics listener and its shutdown watcher to
// the given errgroup. No-op when metrics are disabled.
func (a *App) startMetricsListener(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if !a.cfg.Metrics.Enabled {
		return
	}

	listener := metrics.NewListener(a.cfg.Metrics.Addr, deps.Gatherer, a.logger)

	g.Go(func() error {
		a.logger.InfoContext(ctx, "metrics listener starting",
			slog.String("addr", a.cfg.Metrics.Addr))
		return listener.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return listener.Shutdown(shutCtx)
	})
}
