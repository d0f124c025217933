package sniper

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dexsniper/sniperd/internal/domain"
	"github.com/dexsniper/sniperd/internal/notify"
	"github.com/dexsniper/sniperd/internal/router"
)

var (
	snipeWNT    = common.HexToAddress("0x00000000000000000000000000000000000000e1")
	snipeToken  = common.HexToAddress("0x00000000000000000000000000000000000000e2")
	snipePairAt = common.HexToAddress("0x00000000000000000000000000000000000000e3")
	snipeWallet = common.HexToAddress("0x00000000000000000000000000000000000000e4")
	snipeStable = common.HexToAddress("0x00000000000000000000000000000000000000e5")
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeBus struct {
	ch     chan []byte
	subErr error
}

func (b *fakeBus) Publish(context.Context, string, []byte) error { return nil }

func (b *fakeBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	if b.subErr != nil {
		return nil, b.subErr
	}
	return b.ch, nil
}

func (b *fakeBus) StreamAppend(context.Context, string, []byte) error { return nil }

func (b *fakeBus) StreamRead(context.Context, string, string, int) ([]domain.StreamMessage, error) {
	return nil, nil
}

var _ domain.SignalBus = (*fakeBus)(nil)

type fakeRisk struct {
	mu         sync.Mutex
	assessment *domain.RiskAssessment
	err        error
	calls      int
	lastFresh  bool
}

func (r *fakeRisk) Assess(_ context.Context, _ common.Address, _ string, fresh bool) (*domain.RiskAssessment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.lastFresh = fresh
	if r.err != nil {
		return nil, r.err
	}
	return r.assessment, nil
}

func (r *fakeRisk) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type fakeRoutes struct {
	mu         sync.Mutex
	quote      *domain.RouteQuote
	quoteErr   error
	plan       *domain.ExecutionPlan
	planErrs   []error
	quoteCalls int
	planCalls  int
	lastReq    router.QuoteRequest
}

func (r *fakeRoutes) FindOptimalRoute(_ context.Context, req router.QuoteRequest) (*domain.RouteQuote, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.quoteCalls++
	r.lastReq = req
	if r.quoteErr != nil {
		return nil, r.quoteErr
	}
	return r.quote, nil
}

func (r *fakeRoutes) PlanExecution(context.Context, domain.RouteQuote, common.Address) (*domain.ExecutionPlan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.planCalls++
	if len(r.planErrs) > 0 {
		err := r.planErrs[0]
		r.planErrs = r.planErrs[1:]
		return nil, err
	}
	return r.plan, nil
}

func (r *fakeRoutes) last() router.QuoteRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastReq
}

func (r *fakeRoutes) quoteCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.quoteCalls
}

type fakeSubmitter struct {
	mu    sync.Mutex
	ref   string
	err   error
	plans []domain.ExecutionPlan
}

func (s *fakeSubmitter) Submit(_ context.Context, plan domain.ExecutionPlan) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.plans = append(s.plans, plan)
	return s.ref, nil
}

type fakeSnipeJournal struct {
	mu      sync.Mutex
	records []domain.SnipeRecord
}

func (j *fakeSnipeJournal) Insert(_ context.Context, rec domain.SnipeRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.records = append(j.records, rec)
	return nil
}

func (j *fakeSnipeJournal) ListRecent(context.Context, int) ([]domain.SnipeRecord, error) {
	return nil, nil
}

func (j *fakeSnipeJournal) ListBefore(context.Context, time.Time, domain.ListOpts) ([]domain.SnipeRecord, error) {
	return nil, nil
}

func (j *fakeSnipeJournal) DeleteBefore(context.Context, time.Time) (int64, error) { return 0, nil }

func (j *fakeSnipeJournal) all() []domain.SnipeRecord {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]domain.SnipeRecord(nil), j.records...)
}

var _ domain.SnipeJournal = (*fakeSnipeJournal)(nil)

type fakeNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *fakeNotifier) Notify(_ context.Context, event, _, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}

func (n *fakeNotifier) all() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.events...)
}

type fakeLocks struct {
	mu       sync.Mutex
	err      error
	acquired []string
	releases int
}

func (l *fakeLocks) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	l.acquired = append(l.acquired, key)
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.releases++
	}, nil
}

var _ domain.LockManager = (*fakeLocks)(nil)

func assessmentAt(score float64) *domain.RiskAssessment {
	return &domain.RiskAssessment{
		Token:      snipeToken,
		Network:    "ethereum",
		Score:      score,
		Level:      domain.RiskLevelFor(score),
		Confidence: 1.0,
		AssessedAt: time.Now().UTC(),
	}
}

func viableQuote() *domain.RouteQuote {
	return &domain.RouteQuote{
		ID:             "quote-1",
		OutputAmount:   1000,
		Deadline:       time.Now().Add(15 * time.Minute),
		FreshnessScore: 1.0,
	}
}

func viablePlan() *domain.ExecutionPlan {
	return &domain.ExecutionPlan{
		PlanID:   "plan-1",
		QuoteID:  "quote-1",
		TotalGas: 120_000,
	}
}

func pairEvent(token0, token1 common.Address) domain.PairEvent {
	return domain.PairEvent{
		Network:      "ethereum",
		Exchange:     domain.ExchangeUniswapV2,
		PairAddress:  snipePairAt,
		Token0:       token0,
		Token1:       token1,
		BlockNumber:  100,
		DiscoveredAt: time.Now().UTC(),
	}
}

type sniperFakes struct {
	bus       *fakeBus
	risk      *fakeRisk
	routes    *fakeRoutes
	submitter *fakeSubmitter
	journal   *fakeSnipeJournal
	notifier  *fakeNotifier
}

func newTestSniper(t *testing.T, mutate func(*Config, *sniperFakes)) (*Sniper, *sniperFakes) {
	t.Helper()
	f := &sniperFakes{
		bus:       &fakeBus{ch: make(chan []byte, 8)},
		risk:      &fakeRisk{assessment: assessmentAt(2.0)},
		routes:    &fakeRoutes{quote: viableQuote(), plan: viablePlan()},
		submitter: &fakeSubmitter{ref: "0xsubmitted"},
		journal:   &fakeSnipeJournal{},
		notifier:  &fakeNotifier{},
	}
	cfg := Config{
		Network:       "ethereum",
		Wallet:        snipeWallet,
		WrappedNative: snipeWNT,
		BudgetNative:  0.5,
	}
	if mutate != nil {
		mutate(&cfg, f)
	}
	s, err := NewSniper(cfg, f.bus, f.risk, f.routes, f.submitter, nil, f.journal, f.notifier, nil, testLogger())
	require.NoError(t, err)
	return s, f
}

func TestNewSniperValidation(t *testing.T) {
	base := Config{Network: "ethereum", WrappedNative: snipeWNT, BudgetNative: 0.5}

	t.Run("Missing Budget", func(t *testing.T) {
		cfg := base
		cfg.BudgetNative = 0
		_, err := NewSniper(cfg, &fakeBus{}, &fakeRisk{}, &fakeRoutes{}, &fakeSubmitter{}, nil, nil, nil, nil, testLogger())
		require.Error(t, err)
	})

	t.Run("Missing Wrapped Native", func(t *testing.T) {
		cfg := base
		cfg.WrappedNative = common.Address{}
		_, err := NewSniper(cfg, &fakeBus{}, &fakeRisk{}, &fakeRoutes{}, &fakeSubmitter{}, nil, nil, nil, nil, testLogger())
		require.Error(t, err)
	})

	t.Run("Unknown Risk Level", func(t *testing.T) {
		cfg := base
		cfg.MaxRiskLevel = "EXTREME"
		_, err := NewSniper(cfg, &fakeBus{}, &fakeRisk{}, &fakeRoutes{}, &fakeSubmitter{}, nil, nil, nil, nil, testLogger())
		require.Error(t, err)
	})
}

func TestProcessPlansViablePair(t *testing.T) {
	s, f := newTestSniper(t, nil)

	s.process(context.Background(), pairEvent(snipeWNT, snipeToken))

	require.Len(t, f.journal.all(), 1)
	rec := f.journal.all()[0]
	assert.Equal(t, domain.SnipePlanned, rec.Status)
	assert.Equal(t, snipeToken, rec.TargetToken)
	assert.Equal(t, snipePairAt, rec.PairAddress)
	assert.Equal(t, "quote-1", rec.QuoteID)
	assert.Equal(t, "plan-1", rec.PlanID)
	assert.Equal(t, "0xsubmitted", rec.TxRef)
	assert.Equal(t, domain.RiskLow, rec.RiskLevel)
	assert.InDelta(t, 2.0, rec.RiskScore, 1e-9)

	req := f.routes.last()
	assert.Equal(t, snipeWNT, req.TokenIn)
	assert.Equal(t, snipeToken, req.TokenOut)
	assert.InDelta(t, 0.5, req.AmountIn, 1e-12)

	require.Len(t, f.submitter.plans, 1)
	assert.Equal(t, []string{notify.EventSnipePlanned}, f.notifier.all())
	assert.True(t, f.risk.lastFresh, "new pairs are always assessed fresh")
}

func TestProcessTargetsEitherSide(t *testing.T) {
	s, f := newTestSniper(t, nil)

	s.process(context.Background(), pairEvent(snipeToken, snipeWNT))

	require.Len(t, f.journal.all(), 1)
	assert.Equal(t, snipeToken, f.journal.all()[0].TargetToken)
}

func TestProcessSkipsHighRisk(t *testing.T) {
	s, f := newTestSniper(t, func(_ *Config, f *sniperFakes) {
		f.risk.assessment = assessmentAt(8.5)
	})

	s.process(context.Background(), pairEvent(snipeWNT, snipeToken))

	require.Len(t, f.journal.all(), 1)
	rec := f.journal.all()[0]
	assert.Equal(t, domain.SnipeSkipped, rec.Status)
	assert.Contains(t, rec.Reason, "CRITICAL")
	assert.Zero(t, f.routes.quoteCount(), "the risk gate stops the pipeline before discovery")
	assert.Equal(t, []string{notify.EventHighRisk}, f.notifier.all())
}

func TestProcessGateIsConfigurable(t *testing.T) {
	s, f := newTestSniper(t, func(cfg *Config, f *sniperFakes) {
		cfg.MaxRiskLevel = domain.RiskHigh
		f.risk.assessment = assessmentAt(6.5)
	})

	s.process(context.Background(), pairEvent(snipeWNT, snipeToken))

	require.Len(t, f.journal.all(), 1)
	assert.Equal(t, domain.SnipePlanned, f.journal.all()[0].Status)
}

func TestProcessDeduplicates(t *testing.T) {
	s, f := newTestSniper(t, nil)
	ev := pairEvent(snipeWNT, snipeToken)

	s.process(context.Background(), ev)
	s.process(context.Background(), ev)

	assert.Len(t, f.journal.all(), 1)
	assert.Equal(t, 1, f.risk.count())
}

func TestProcessIgnoresUnsnipeablePairs(t *testing.T) {
	t.Run("No Base Side", func(t *testing.T) {
		s, f := newTestSniper(t, nil)
		other := common.HexToAddress("0x00000000000000000000000000000000000000e9")

		s.process(context.Background(), pairEvent(other, snipeToken))

		assert.Empty(t, f.journal.all())
		assert.Zero(t, f.risk.count())
	})

	t.Run("Both Sides Base", func(t *testing.T) {
		s, f := newTestSniper(t, func(cfg *Config, _ *sniperFakes) {
			cfg.BaseTokens = []common.Address{snipeStable}
		})

		s.process(context.Background(), pairEvent(snipeWNT, snipeStable))

		assert.Empty(t, f.journal.all())
		assert.Zero(t, f.risk.count())
	})
}

func TestProcessSkipsWhenNoRouteSurvives(t *testing.T) {
	s, f := newTestSniper(t, func(_ *Config, f *sniperFakes) {
		f.routes.quote = nil
	})

	s.process(context.Background(), pairEvent(snipeWNT, snipeToken))

	require.Len(t, f.journal.all(), 1)
	rec := f.journal.all()[0]
	assert.Equal(t, domain.SnipeSkipped, rec.Status)
	assert.Equal(t, "no viable route", rec.Reason)
	assert.Empty(t, f.submitter.plans)
}

func TestProcessRequotesExpiredQuote(t *testing.T) {
	s, f := newTestSniper(t, func(_ *Config, f *sniperFakes) {
		f.routes.planErrs = []error{domain.ErrQuoteExpired}
	})

	s.process(context.Background(), pairEvent(snipeWNT, snipeToken))

	require.Len(t, f.journal.all(), 1)
	assert.Equal(t, domain.SnipePlanned, f.journal.all()[0].Status)
	assert.Equal(t, 2, f.routes.quoteCount())
	assert.Equal(t, 2, f.routes.planCalls)
}

func TestProcessDropsTwiceExpiredQuote(t *testing.T) {
	s, f := newTestSniper(t, func(_ *Config, f *sniperFakes) {
		f.routes.planErrs = []error{domain.ErrQuoteExpired, domain.ErrQuoteExpired}
	})

	s.process(context.Background(), pairEvent(snipeWNT, snipeToken))

	require.Len(t, f.journal.all(), 1)
	rec := f.journal.all()[0]
	assert.Equal(t, domain.SnipeFailed, rec.Status)
	assert.Contains(t, rec.Reason, "planning")
	assert.Equal(t, 2, f.routes.quoteCount(), "one requote, no more")
}

func TestProcessRecordsFailures(t *testing.T) {
	t.Run("Risk Unavailable", func(t *testing.T) {
		s, f := newTestSniper(t, func(_ *Config, f *sniperFakes) {
			f.risk.err = errors.New("explorer down")
		})
		s.process(context.Background(), pairEvent(snipeWNT, snipeToken))

		require.Len(t, f.journal.all(), 1)
		rec := f.journal.all()[0]
		assert.Equal(t, domain.SnipeFailed, rec.Status)
		assert.Contains(t, rec.Reason, "risk assessment")
	})

	t.Run("Quote Error", func(t *testing.T) {
		s, f := newTestSniper(t, func(_ *Config, f *sniperFakes) {
			f.routes.quoteErr = errors.New("rpc down")
		})
		s.process(context.Background(), pairEvent(snipeWNT, snipeToken))

		require.Len(t, f.journal.all(), 1)
		assert.Contains(t, f.journal.all()[0].Reason, "quoting")
	})

	t.Run("Submit Error", func(t *testing.T) {
		s, f := newTestSniper(t, func(_ *Config, f *sniperFakes) {
			f.submitter.err = errors.New("downstream refused")
		})
		s.process(context.Background(), pairEvent(snipeWNT, snipeToken))

		require.Len(t, f.journal.all(), 1)
		rec := f.journal.all()[0]
		assert.Equal(t, domain.SnipeFailed, rec.Status)
		assert.Contains(t, rec.Reason, "submit")
	})
}

func TestProcessHonorsDistributedLock(t *testing.T) {
	cfg := Config{Network: "ethereum", Wallet: snipeWallet, WrappedNative: snipeWNT, BudgetNative: 0.5}

	t.Run("Held Elsewhere", func(t *testing.T) {
		locks := &fakeLocks{err: domain.ErrLockHeld}
		risk := &fakeRisk{assessment: assessmentAt(2.0)}
		journal := &fakeSnipeJournal{}
		s, err := NewSniper(cfg, &fakeBus{}, risk, &fakeRoutes{quote: viableQuote(), plan: viablePlan()}, &fakeSubmitter{ref: "x"}, locks, journal, nil, nil, testLogger())
		require.NoError(t, err)

		s.process(context.Background(), pairEvent(snipeWNT, snipeToken))

		assert.Empty(t, journal.all())
		assert.Zero(t, risk.count())
	})

	t.Run("Acquired And Released", func(t *testing.T) {
		locks := &fakeLocks{}
		journal := &fakeSnipeJournal{}
		s, err := NewSniper(cfg, &fakeBus{}, &fakeRisk{assessment: assessmentAt(2.0)}, &fakeRoutes{quote: viableQuote(), plan: viablePlan()}, &fakeSubmitter{ref: "x"}, locks, journal, nil, nil, testLogger())
		require.NoError(t, err)

		ev := pairEvent(snipeWNT, snipeToken)
		s.process(context.Background(), ev)

		require.Len(t, locks.acquired, 1)
		assert.Equal(t, "snipe:"+ev.Key(), locks.acquired[0])
		assert.Equal(t, 1, locks.releases)
		assert.Len(t, journal.all(), 1)
	})
}

func TestRunConsumesBus(t *testing.T) {
	s, f := newTestSniper(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	payload, err := json.Marshal(pairEvent(snipeWNT, snipeToken))
	require.NoError(t, err)
	f.bus.ch <- []byte("junk that is not json")
	f.bus.ch <- payload

	require.Eventually(t, func() bool { return len(f.journal.all()) == 1 }, 3*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(3 * time.Second):
		t.Fatal("sniper did not stop on cancel")
	}
}

func TestRunStopsWhenBusCloses(t *testing.T) {
	s, f := newTestSniper(t, nil)
	close(f.bus.ch)

	err := s.Run(context.Background())
	assert.NoError(t, err)
}

func TestDryRunSubmitter(t *testing.T) {
	sub := NewDryRunSubmitter(testLogger())

	ref, err := sub.Submit(context.Background(), domain.ExecutionPlan{
		PlanID: "p-9",
		Ops:    []domain.PlannedOp{{Type: domain.OpSwap, Priority: 0}},
	})
	require.NoError(t, err)
	assert.Equal(t, "dryrun:p-9", ref)
}
