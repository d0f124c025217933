package router

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dexsniper/sniperd/internal/domain"
)

var testWallet = common.HexToAddress("0x00000000000000000000000000000000000000e5")

type fakeOracle struct {
	needed bool
	err    error
	calls  int
}

func (o *fakeOracle) NeedsApproval(_ context.Context, _, _, _ common.Address, _ float64) (bool, error) {
	o.calls++
	return o.needed, o.err
}

// usdx has six decimals so raw minimum-output amounts stay readable.
var tokenUSDX = domain.TokenRef{Address: common.HexToAddress("0x00000000000000000000000000000000000000d4"), Symbol: "USDX", Decimals: 6}

func plannableQuote(deadline time.Time) domain.RouteQuote {
	step := domain.RouteStep{
		Exchange:    domain.ExchangeUniswapV2,
		TokenIn:     tokenAAA,
		TokenOut:    tokenUSDX,
		AmountIn:    1,
		AmountOut:   100,
		GasEstimate: 120_000,
	}
	route := domain.TradingRoute{
		ID:            "route-1",
		Type:          domain.RouteDirect,
		Steps:         []domain.RouteStep{step},
		AmountIn:      1,
		AmountOut:     100,
		TotalGas:      120_000,
		ExecutionProb: 0.95,
	}
	return domain.RouteQuote{
		ID:             "quote-1",
		Route:          route,
		InputToken:     tokenAAA,
		OutputToken:    tokenUSDX,
		InputAmount:    1,
		OutputAmount:   100,
		GasCostUSD:     10,
		Deadline:       deadline,
		MaxSlippage:    0.01,
		FreshnessScore: 1.0,
	}
}

func TestPlanRejectsExpiredQuote(t *testing.T) {
	p := NewPlanner(&fakeOracle{}, testRegistry(t), testLogger())

	expired := plannableQuote(time.Now().UTC().Add(-time.Minute))
	_, err := p.Plan(context.Background(), expired, testWallet)
	require.ErrorIs(t, err, domain.ErrQuoteExpired)

	stale := plannableQuote(time.Now().UTC().Add(time.Hour))
	stale.FreshnessScore = 0.5
	_, err = p.Plan(context.Background(), stale, testWallet)
	require.ErrorIs(t, err, domain.ErrQuoteExpired)
}

func TestPlanAcceptsQuoteNearDeadline(t *testing.T) {
	p := NewPlanner(&fakeOracle{}, testRegistry(t), testLogger())

	quote := plannableQuote(time.Now().UTC().Add(time.Second))
	plan, err := p.Plan(context.Background(), quote, testWallet)
	require.NoError(t, err)
	assert.NotNil(t, plan)
}

func TestPlanBuildsSwapOps(t *testing.T) {
	reg := testRegistry(t)
	uni, err := reg.Get(domain.ExchangeUniswapV2)
	require.NoError(t, err)

	oracle := &fakeOracle{needed: false}
	p := NewPlanner(oracle, reg, testLogger())

	quote := plannableQuote(time.Now().UTC().Add(time.Hour))
	plan, err := p.Plan(context.Background(), quote, testWallet)
	require.NoError(t, err)

	assert.NotEmpty(t, plan.PlanID)
	assert.Equal(t, "quote-1", plan.QuoteID)
	assert.Equal(t, testWallet, plan.Wallet)
	assert.Equal(t, quote.Deadline, plan.Deadline)
	assert.Equal(t, 1, oracle.calls)

	require.Len(t, plan.Ops, 1)
	op := plan.Ops[0]
	assert.Equal(t, domain.OpSwap, op.Type)
	assert.Equal(t, uni.Router, op.Target)
	assert.Equal(t, 0, op.Priority)
	assert.Equal(t, uint64(120_000), op.GasEstimate)
	require.NotNil(t, op.AmountOutMinWei)
	assert.Equal(t, "99000000", op.AmountOutMinWei.String())

	assert.Equal(t, uint64(120_000), plan.TotalGas)
	assert.InDelta(t, 10, plan.EstimatedCost, 1e-12)
}

func TestPlanPrependsApproval(t *testing.T) {
	p := NewPlanner(&fakeOracle{needed: true}, testRegistry(t), testLogger())

	quote := plannableQuote(time.Now().UTC().Add(time.Hour))
	plan, err := p.Plan(context.Background(), quote, testWallet)
	require.NoError(t, err)
	require.Len(t, plan.Ops, 2)

	approve := plan.Ops[0]
	assert.Equal(t, domain.OpApprove, approve.Type)
	assert.Equal(t, tokenAAA.Address, approve.Target)
	assert.Equal(t, 0, approve.Priority)
	assert.Equal(t, uint64(46_000), approve.GasEstimate)
	assert.Nil(t, approve.AmountOutMinWei)

	swap := plan.Ops[1]
	assert.Equal(t, domain.OpSwap, swap.Type)
	assert.Equal(t, 1, swap.Priority)

	assert.Equal(t, uint64(166_000), plan.TotalGas)
	// gas estimate in USD stretches over the extra op
	assert.InDelta(t, 10*166_000.0/120_000.0, plan.EstimatedCost, 1e-9)
}

func TestPlanApprovesWhenOracleFails(t *testing.T) {
	p := NewPlanner(&fakeOracle{err: errors.New("rpc down")}, testRegistry(t), testLogger())

	quote := plannableQuote(time.Now().UTC().Add(time.Hour))
	plan, err := p.Plan(context.Background(), quote, testWallet)
	require.NoError(t, err)
	require.Len(t, plan.Ops, 2)
	assert.Equal(t, domain.OpApprove, plan.Ops[0].Type)
}

func TestPlanApprovesWithoutOracle(t *testing.T) {
	p := NewPlanner(nil, testRegistry(t), testLogger())

	quote := plannableQuote(time.Now().UTC().Add(time.Hour))
	plan, err := p.Plan(context.Background(), quote, testWallet)
	require.NoError(t, err)
	require.Len(t, plan.Ops, 2)
	assert.Equal(t, domain.OpApprove, plan.Ops[0].Type)
}

func TestPlanMultiStepTargets(t *testing.T) {
	reg := testRegistry(t)
	uni, err := reg.Get(domain.ExchangeUniswapV2)
	require.NoError(t, err)
	sushi, err := reg.Get(domain.ExchangeSushiswap)
	require.NoError(t, err)

	quote := plannableQuote(time.Now().UTC().Add(time.Hour))
	quote.Route.Steps = append(quote.Route.Steps, domain.RouteStep{
		Exchange:    domain.ExchangeSushiswap,
		TokenIn:     tokenUSDX,
		TokenOut:    tokenBBB,
		AmountIn:    100,
		AmountOut:   50,
		GasEstimate: 120_000,
	})

	p := NewPlanner(&fakeOracle{needed: false}, reg, testLogger())
	plan, err := p.Plan(context.Background(), quote, testWallet)
	require.NoError(t, err)
	require.Len(t, plan.Ops, 2)

	assert.Equal(t, uni.Router, plan.Ops[0].Target)
	assert.Equal(t, sushi.Router, plan.Ops[1].Target)
	assert.Equal(t, 0, plan.Ops[0].Priority)
	assert.Equal(t, 1, plan.Ops[1].Priority)
}
