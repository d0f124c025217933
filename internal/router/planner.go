package router

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/dexsniper/sniperd/internal/domain"
	"github.com/dexsniper/sniperd/internal/exchange"
)

// Planner turns a still-valid quote into an ordered operation list. It is
// pure data transformation: nothing here signs or broadcasts.
type Planner struct {
	allowance domain.AllowanceOracle
	registry  *exchange.Registry
	logger    *slog.Logger
}

// NewPlanner creates a planner. The allowance oracle may be nil, in which
// case every plan starts with an approval.
func NewPlanner(allowance domain.AllowanceOracle, registry *exchange.Registry, logger *slog.Logger) *Planner {
	return &Planner{
		allowance: allowance,
		registry:  registry,
		logger:    logger.With(slog.String("component", "execution_planner")),
	}
}

// Plan builds the operation list for the quote's route. It fails when the
// quote no longer passes the freshness check; allowance lookup failures do
// not fail the plan, they conservatively force an approval op instead.
func (p *Planner) Plan(ctx context.Context, quote domain.RouteQuote, wallet common.Address) (*domain.ExecutionPlan, error) {
	now := time.Now().UTC()
	if !quote.Valid(now) {
		return nil, fmt.Errorf("router: plan quote %s: %w", quote.ID, domain.ErrQuoteExpired)
	}
	if len(quote.Route.Steps) == 0 {
		return nil, fmt.Errorf("router: plan quote %s: route has no steps", quote.ID)
	}

	ops := make([]domain.PlannedOp, 0, len(quote.Route.Steps)+1)

	first := quote.Route.Steps[0]
	firstVenue, err := p.registry.Get(first.Exchange)
	if err != nil {
		return nil, fmt.Errorf("router: plan quote %s: %w", quote.ID, err)
	}
	if p.needsApproval(ctx, first, wallet, firstVenue.Router) {
		ops = append(ops, domain.PlannedOp{
			Type:        domain.OpApprove,
			Exchange:    first.Exchange,
			Target:      first.TokenIn.Address,
			Description: fmt.Sprintf("approve %s router to spend %s", first.Exchange, tokenLabel(first.TokenIn)),
			GasEstimate: approvalGasEstimate,
		})
	}

	for _, step := range quote.Route.Steps {
		venue, err := p.registry.Get(step.Exchange)
		if err != nil {
			return nil, fmt.Errorf("router: plan quote %s: %w", quote.ID, err)
		}
		minOut := step.AmountOut * (1 - quote.MaxSlippage)
		ops = append(ops, domain.PlannedOp{
			Type:            domain.OpSwap,
			Exchange:        step.Exchange,
			Target:          venue.Router,
			Description:     fmt.Sprintf("swap %s for %s on %s", tokenLabel(step.TokenIn), tokenLabel(step.TokenOut), step.Exchange),
			GasEstimate:     step.GasEstimate,
			AmountOutMinWei: exchange.ToRaw(minOut, step.TokenOut.Decimals),
		})
	}

	var totalGas uint64
	for i := range ops {
		ops[i].Priority = i
		totalGas += ops[i].GasEstimate
	}

	return &domain.ExecutionPlan{
		PlanID:        uuid.NewString(),
		QuoteID:       quote.ID,
		Wallet:        wallet,
		Ops:           ops,
		TotalGas:      totalGas,
		Deadline:      quote.Deadline,
		EstimatedCost: scaleGasCost(quote, totalGas),
		CreatedAt:     now,
	}, nil
}

// needsApproval asks the oracle about the first step's input token. Any
// failure, including a missing oracle, means planning the approval anyway.
func (p *Planner) needsApproval(ctx context.Context, step domain.RouteStep, wallet, spender common.Address) bool {
	if p.allowance == nil {
		return true
	}
	needed, err := p.allowance.NeedsApproval(ctx, step.TokenIn.Address, wallet, spender, step.AmountIn)
	if err != nil {
		p.logger.Warn("allowance lookup failed, planning approval",
			slog.String("token", step.TokenIn.Address.Hex()),
			slog.String("error", err.Error()))
		return true
	}
	return needed
}

// scaleGasCost stretches the quote's USD gas estimate over any extra ops the
// plan added on top of the route's own gas.
func scaleGasCost(quote domain.RouteQuote, planGas uint64) float64 {
	routeGas := quote.Route.TotalGas
	if routeGas == 0 || planGas == routeGas {
		return quote.GasCostUSD
	}
	return quote.GasCostUSD * float64(planGas) / float64(routeGas)
}

func tokenLabel(ref domain.TokenRef) string {
	if ref.Symbol != "" {
		return ref.Symbol
	}
	return ref.Address.Hex()
}
