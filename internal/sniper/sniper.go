// Package sniper turns pair discoveries into vetted, ready-to-submit
// execution plans. Every event runs the same gate chain: dedup, target
// selection, distributed lock, risk gate, quote, plan, hand-off. Pairs that
// reach the risk gate always leave a journal record, whatever the outcome.
package sniper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/dexsniper/sniperd/internal/domain"
	"github.com/dexsniper/sniperd/internal/metrics"
	"github.com/dexsniper/sniperd/internal/notify"
	"github.com/dexsniper/sniperd/internal/router"
)

const (
	defaultDedupTTL        = 10 * time.Minute
	defaultLockTTL         = time.Minute
	defaultCleanupInterval = 30 * time.Second
	defaultMaxRiskLevel    = domain.RiskMedium
)

// RouteFinder quotes and plans trades. The router facade satisfies it.
type RouteFinder interface {
	FindOptimalRoute(ctx context.Context, req router.QuoteRequest) (*domain.RouteQuote, error)
	PlanExecution(ctx context.Context, quote domain.RouteQuote, wallet common.Address) (*domain.ExecutionPlan, error)
}

// RiskGate scores freshly discovered tokens. The risk engine satisfies it.
type RiskGate interface {
	Assess(ctx context.Context, token common.Address, network string, fresh bool) (*domain.RiskAssessment, error)
}

// Notifier pushes operator alerts by event type.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Config carries the sniper settings.
type Config struct {
	// Network names the chain the sniper trades on.
	Network string

	// Wallet is the address plans are built for.
	Wallet common.Address

	// WrappedNative funds every snipe; BudgetNative is the amount spent
	// per attempt, in display units.
	WrappedNative common.Address
	BudgetNative  float64

	// BaseTokens are the quote-side tokens a new pair must contain before
	// it is worth sniping. The wrapped native is always included.
	BaseTokens []common.Address

	// MaxRiskLevel is the highest assessment level still allowed to trade.
	MaxRiskLevel domain.RiskLevel

	// Strategy selects the route scoring profile. Empty means balanced.
	Strategy domain.RouteStrategy

	DedupTTL        time.Duration
	LockTTL         time.Duration
	CleanupInterval time.Duration
}

// Sniper consumes pair events off the signal bus and drives each one through
// the gate chain to a journaled outcome.
type Sniper struct {
	cfg       Config
	bus       domain.SignalBus
	dedup     *Dedup
	locks     domain.LockManager
	risk      RiskGate
	routes    RouteFinder
	submitter domain.PlanSubmitter
	journal   domain.SnipeJournal
	notifier  Notifier
	rec       *metrics.Recorder
	logger    *slog.Logger
	base      map[common.Address]struct{}
}

// NewSniper wires the pipeline. locks, journal, and notifier may be nil;
// distributed locking, journaling, and alerts are then disabled.
func NewSniper(cfg Config, bus domain.SignalBus, risk RiskGate, routes RouteFinder, submitter domain.PlanSubmitter, locks domain.LockManager, journal domain.SnipeJournal, notifier Notifier, rec *metrics.Recorder, logger *slog.Logger) (*Sniper, error) {
	if cfg.BudgetNative <= 0 {
		return nil, fmt.Errorf("sniper: positive budget required")
	}
	if cfg.WrappedNative == (common.Address{}) {
		return nil, fmt.Errorf("sniper: wrapped native token required")
	}
	switch cfg.MaxRiskLevel {
	case "":
		cfg.MaxRiskLevel = defaultMaxRiskLevel
	case domain.RiskLow, domain.RiskMedium, domain.RiskHigh, domain.RiskCritical:
	default:
		return nil, fmt.Errorf("sniper: unknown risk level %q", cfg.MaxRiskLevel)
	}
	if cfg.DedupTTL <= 0 {
		cfg.DedupTTL = defaultDedupTTL
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = defaultLockTTL
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = defaultCleanupInterval
	}

	base := make(map[common.Address]struct{}, len(cfg.BaseTokens)+1)
	base[cfg.WrappedNative] = struct{}{}
	for _, t := range cfg.BaseTokens {
		base[t] = struct{}{}
	}

	return &Sniper{
		cfg:       cfg,
		bus:       bus,
		dedup:     NewDedup(cfg.DedupTTL),
		locks:     locks,
		risk:      risk,
		routes:    routes,
		submitter: submitter,
		journal:   journal,
		notifier:  notifier,
		rec:       rec,
		logger:    logger.With(slog.String("component", "sniper")),
		base:      base,
	}, nil
}

// Run consumes pair discoveries until ctx is cancelled or the bus closes.
func (s *Sniper) Run(ctx context.Context) error {
	events, err := s.bus.Subscribe(ctx, domain.BusChannelPairs)
	if err != nil {
		return fmt.Errorf("sniper: subscribe pairs: %w", err)
	}

	s.logger.Info("sniper started",
		slog.String("network", s.cfg.Network),
		slog.Float64("budget", s.cfg.BudgetNative),
		slog.String("max_risk", string(s.cfg.MaxRiskLevel)))
	defer s.logger.Info("sniper stopped")

	cleanup := time.NewTicker(s.cfg.CleanupInterval)
	defer cleanup.Stop()

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
				s.logger.Debug("dropping undecodable pair event", slog.String("error", err.Error()))
				continue
			}
			s.process(ctx, ev)

		case <-cleanup.C:
			s.dedup.Cleanup()
		}
	}
}

// process runs one discovered pair through the full gate chain.
func (s *Sniper) process(ctx context.Context, ev domain.PairEvent) {
	log := s.logger.With(
		slog.String("pair", ev.PairAddress.Hex()),
		slog.String("exchange", string(ev.Exchange)),
	)

	// 1. Deduplication.
	if s.dedup.IsDuplicate(ev.Key()) {
		log.Debug("pair already handled, skipping")
		return
	}

	// 2. Target selection: exactly one side must be a base token.
	target, ok := s.targetToken(ev)
	if !ok {
		log.Debug("no snipeable side in pair, skipping")
		return
	}
	log = log.With(slog.String("token", target.Hex()))

	// 3. One worker per pair across instances.
	if s.locks != nil {
		unlock, err := s.locks.Acquire(ctx, "snipe:"+ev.Key(), s.cfg.LockTTL)
		if err != nil {
			if errors.Is(err, domain.ErrLockHeld) {
				log.Debug("pair locked by another instance, skipping")
				return
			}
			log.Warn("pair lock failed, continuing unlocked", slog.String("error", err.Error()))
		} else {
			defer unlock()
		}
	}

	rec := domain.SnipeRecord{
		ID:          uuid.New().String(),
		Network:     ev.Network,
		Exchange:    ev.Exchange,
		PairAddress: ev.PairAddress,
		TargetToken: target,
		CreatedAt:   time.Now().UTC(),
	}

	// 4. Risk gate. Always a fresh assessment; the pair did not exist a
	// block ago.
	assessment, err := s.risk.Assess(ctx, target, ev.Network, true)
	if err != nil {
		s.finish(ctx, log, failed(rec, "risk assessment: "+err.Error()))
		return
	}
	rec.RiskScore = assessment.Score
	rec.RiskLevel = assessment.Level
	if assessment.Level.Rank() > s.cfg.MaxRiskLevel.Rank() {
		s.alert(ctx, notify.EventHighRisk, "High risk token",
			fmt.Sprintf("token %s on %s scored %.1f (%s)", target.Hex(), ev.Exchange, assessment.Score, assessment.Level))
		s.finish(ctx, log, skipped(rec, fmt.Sprintf("risk level %s above gate %s", assessment.Level, s.cfg.MaxRiskLevel)))
		return
	}

	// 5. Quote the buy.
	quote, err := s.quote(ctx, ev, target)
	if err != nil {
		s.finish(ctx, log, failed(rec, "quoting: "+err.Error()))
		return
	}
	if quote == nil {
		s.finish(ctx, log, skipped(rec, "no viable route"))
		return
	}
	rec.QuoteID = quote.ID

	// 6. Plan, requoting once when the quote aged out in between.
	plan, err := s.routes.PlanExecution(ctx, *quote, s.cfg.Wallet)
	if errors.Is(err, domain.ErrQuoteExpired) {
		log.Debug("quote expired before planning, requoting once")
		quote, err = s.quote(ctx, ev, target)
		if err == nil && quote == nil {
			s.finish(ctx, log, skipped(rec, "no viable route on requote"))
			return
		}
		if err == nil {
			rec.QuoteID = quote.ID
			plan, err = s.routes.PlanExecution(ctx, *quote, s.cfg.Wallet)
		}
	}
	if err != nil {
		s.finish(ctx, log, failed(rec, "planning: "+err.Error()))
		return
	}
	rec.PlanID = plan.PlanID

	// 7. Hand the plan downstream.
	txRef, err := s.submitter.Submit(ctx, *plan)
	if err != nil {
		s.finish(ctx, log, failed(rec, "submit: "+err.Error()))
		return
	}
	rec.Status = domain.SnipePlanned
	rec.TxRef = txRef
	s.finish(ctx, log, rec)
}

// targetToken picks the snipeable side of the pair: the one that is not a
// configured base token. Pairs between two base tokens or two unknowns are
// not snipes.
func (s *Sniper) targetToken(ev domain.PairEvent) (common.Address, bool) {
	_, base0 := s.base[ev.Token0]
	_, base1 := s.base[ev.Token1]
	switch {
	case base0 && !base1:
		return ev.Token1, true
	case base1 && !base0:
		return ev.Token0, true
	default:
		return common.Address{}, false
	}
}

func (s *Sniper) quote(ctx context.Context, ev domain.PairEvent, target common.Address) (*domain.RouteQuote, error) {
	return s.routes.FindOptimalRoute(ctx, router.QuoteRequest{
		TokenIn:  s.cfg.WrappedNative,
		TokenOut: target,
		AmountIn: s.cfg.BudgetNative,
		Network:  ev.Network,
		Strategy: s.cfg.Strategy,
	})
}

// finish journals the outcome and emits metrics and alerts.
func (s *Sniper) finish(ctx context.Context, log *slog.Logger, rec domain.SnipeRecord) {
	if s.journal != nil {
		if err := s.journal.Insert(ctx, rec); err != nil {
			log.Warn("snipe journal write failed", slog.String("error", err.Error()))
		}
	}
	s.rec.RecordSnipe(string(rec.Status))

	switch rec.Status {
	case domain.SnipePlanned:
		log.Info("snipe planned",
			slog.String("quote_id", rec.QuoteID),
			slog.String("plan_id", rec.PlanID),
			slog.String("tx_ref", rec.TxRef))
		s.alert(ctx, notify.EventSnipePlanned, "Snipe planned",
			fmt.Sprintf("pair %s on %s: plan %s for token %s", rec.PairAddress.Hex(), rec.Exchange, rec.PlanID, rec.TargetToken.Hex()))
	case domain.SnipeSkipped:
		log.Info("snipe skipped", slog.String("reason", rec.Reason))
	case domain.SnipeFailed:
		log.Warn("snipe failed", slog.String("reason", rec.Reason))
	}
}

func (s *Sniper) alert(ctx context.Context, event, title, message string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, event, title, message); err != nil {
		s.logger.Warn("notification failed", slog.String("event", event), slog.String("error", err.Error()))
	}
}

func failed(rec domain.SnipeRecord, reason string) domain.SnipeRecord {
	rec.Status = domain.SnipeFailed
	rec.Reason = reason
	return rec
}

func skipped(rec domain.SnipeRecord, reason string) domain.SnipeRecord {
	rec.Status = domain.SnipeSkipped
	rec.Reason = reason
	return rec
}
