// Package risk scores tokens across five weighted dimensions before the
// engine will route a trade into them. Assessments fail soft: losing a data
// source degrades the affected sub-scores to conservative defaults and cuts
// confidence instead of aborting.
package risk

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/dexsniper/sniperd/internal/domain"
	"github.com/dexsniper/sniperd/internal/metrics"
)

const (
	defaultCacheTTL = time.Hour

	// stand-in sub-scores when the backing lookup fails outright
	degradedLiquidity = 9.0
	degradedContract  = 8.0
	degradedMarket    = 7.0
	degradedSocial    = 5.0
	degradedTechnical = 8.0

	confidencePenalty = 0.8 // per failed sub-analysis
	confidenceFloor   = 0.1

	warningThreshold = 7.0
)

// overallWeights combines the five sub-scores. They sum to 1 so a token
// scoring v everywhere scores v overall.
var overallWeights = domain.RiskFactors{
	Liquidity: 0.25,
	Contract:  0.30,
	Market:    0.20,
	Social:    0.15,
	Technical: 0.10,
}

// Config tunes the risk engine.
type Config struct {
	Network  string
	CacheTTL time.Duration
}

// Engine runs token risk assessments against one chain.
type Engine struct {
	cfg     Config
	port    domain.ChainDataPort
	cache   domain.QuoteCache
	journal domain.AssessmentJournal
	rec     *metrics.Recorder
	logger  *slog.Logger
}

// New creates a risk engine. Cache and journal may be nil.
func New(cfg Config, port domain.ChainDataPort, cache domain.QuoteCache, journal domain.AssessmentJournal, rec *metrics.Recorder, logger *slog.Logger) *Engine {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultCacheTTL
	}
	return &Engine{
		cfg:     cfg,
		port:    port,
		cache:   cache,
		journal: journal,
		rec:     rec,
		logger:  logger.With(slog.String("component", "risk_engine")),
	}
}

// Assess scores one token. It errors only on an invalid request; data
// failures surface as degraded sub-scores and reduced confidence, never as a
// missing assessment. fresh bypasses the cache read and reassesses from live
// data.
func (e *Engine) Assess(ctx context.Context, token common.Address, network string, fresh bool) (*domain.RiskAssessment, error) {
	started := time.Now()
	defer func() { e.rec.RecordLatency("assess_token_risk", time.Since(started).Seconds()) }()

	if network != "" && network != e.cfg.Network {
		return nil, fmt.Errorf("risk: network %q, engine bound to %q: %w", network, e.cfg.Network, domain.ErrUnsupportedNetwork)
	}

	cacheKey := e.cfg.Network + ":" + token.Hex()
	if !fresh {
		if cached, ok := e.cacheGet(ctx, cacheKey); ok {
			return cached, nil
		}
	}

	var (
		pools    []domain.LiquidityPool
		poolsErr error
		sec      *domain.SecurityInfo
		secErr   error
		info     *domain.TokenInfo
		infoErr  error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		pools, poolsErr = e.port.GetTokenPools(gctx, token)
		return nil
	})
	g.Go(func() error {
		sec, secErr = e.port.CheckContractSecurity(gctx, token)
		return nil
	})
	g.Go(func() error {
		info, infoErr = e.port.GetTokenInfo(gctx, token)
		return nil
	})
	_ = g.Wait()

	now := time.Now().UTC()
	var (
		factors  domain.RiskFactors
		warnings []string
		failed   int
	)

	switch {
	case poolsErr != nil:
		factors.Liquidity = degradedLiquidity
		warnings = append(warnings, "liquidity analysis degraded: "+poolsErr.Error())
		failed++
	case len(pools) == 0:
		factors.Liquidity = noLiquidityScore
		warnings = append(warnings, "no liquidity pools found")
	default:
		factors.Liquidity = analyzeLiquidity(pools)
	}

	if secErr != nil || sec == nil {
		factors.Contract = degradedContract
		warnings = append(warnings, "contract analysis degraded: "+errText(secErr))
		failed++
	} else {
		factors.Contract = analyzeContract(*sec, now)
	}

	if infoErr != nil || info == nil {
		factors.Market = degradedMarket
		factors.Social = degradedSocial
		factors.Technical = degradedTechnical
		warnings = append(warnings, "token metadata unavailable: "+errText(infoErr))
		failed += 3
	} else {
		factors.Market = analyzeMarket(*info)
		factors.Social = analyzeSocial(*info)
		factors.Technical = analyzeTechnical(*info)
	}

	score := weightedScore(factors)
	level := domain.RiskLevelFor(score)
	warnings = append(warnings, factorWarnings(factors)...)

	confidence := math.Pow(confidencePenalty, float64(failed))
	if confidence < confidenceFloor {
		confidence = confidenceFloor
	}

	assessment := domain.RiskAssessment{
		Token:           token,
		Network:         e.cfg.Network,
		Factors:         factors,
		Score:           score,
		Level:           level,
		Warnings:        warnings,
		Recommendations: recommendationsFor(score),
		Confidence:      confidence,
		AssessedAt:      now,
	}

	e.cacheSet(ctx, cacheKey, assessment)
	if e.journal != nil {
		if err := e.journal.Insert(ctx, assessment); err != nil {
			e.logger.Warn("assessment journal insert failed",
				slog.String("token", token.Hex()),
				slog.String("error", err.Error()))
		}
	}

	e.logger.Info("token assessed",
		slog.String("token", token.Hex()),
		slog.Float64("score", score),
		slog.String("level", string(level)),
		slog.Float64("confidence", confidence),
		slog.Int("warnings", len(warnings)))
	e.rec.RecordAssessment(string(level))
	return &assessment, nil
}

// weightedScore is the fixed linear combination of the sub-scores, clamped
// to the 0..10 scale.
func weightedScore(f domain.RiskFactors) float64 {
	score := f.Liquidity*overallWeights.Liquidity +
		f.Contract*overallWeights.Contract +
		f.Market*overallWeights.Market +
		f.Social*overallWeights.Social +
		f.Technical*overallWeights.Technical
	return capScore(score)
}

// factorWarnings flags every sub-score at or past the warning threshold.
func factorWarnings(f domain.RiskFactors) []string {
	var warnings []string
	for _, factor := range []struct {
		name  string
		score float64
	}{
		{"liquidity", f.Liquidity},
		{"contract", f.Contract},
		{"market", f.Market},
		{"social", f.Social},
		{"technical", f.Technical},
	} {
		if factor.score >= warningThreshold {
			warnings = append(warnings, fmt.Sprintf("high %s risk: %.1f", factor.name, factor.score))
		}
	}
	return warnings
}

func recommendationsFor(score float64) []string {
	switch {
	case score >= 8:
		return []string{"AVOID: risk too high to trade"}
	case score >= 6:
		return []string{"CAUTION: trade only with strict position limits"}
	case score >= 4:
		return []string{"MODERATE: size positions carefully"}
	default:
		return []string{"ACCEPTABLE: risk within normal bounds"}
	}
}

func errText(err error) string {
	if err == nil {
		return "no data"
	}
	return err.Error()
}

func (e *Engine) cacheGet(ctx context.Context, key string) (*domain.RiskAssessment, bool) {
	if e.cache == nil {
		return nil, false
	}
	var cached domain.RiskAssessment
	hit, err := e.cache.Get(ctx, domain.CacheNSRisk, key, &cached)
	if err != nil {
		e.logger.Debug("assessment cache get failed", slog.String("error", err.Error()))
		return nil, false
	}
	e.rec.RecordCache(domain.CacheNSRisk, hit)
	if !hit {
		return nil, false
	}
	return &cached, true
}

func (e *Engine) cacheSet(ctx context.Context, key string, assessment domain.RiskAssessment) {
	if e.cache == nil {
		return
	}
	if err := e.cache.Set(ctx, domain.CacheNSRisk, key, assessment, e.cfg.CacheTTL); err != nil {
		e.logger.Debug("assessment cache set failed", slog.String("error", err.Error()))
	}
}
