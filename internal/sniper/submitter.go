package sniper

import (
	"context"
	"log/slog"

	"github.com/dexsniper/sniperd/internal/domain"
)

// DryRunSubmitter implements domain.PlanSubmitter without touching the
// chain. It logs every op and returns a synthetic submission reference;
// broadcasting belongs to whatever replaces it in production wiring.
type DryRunSubmitter struct {
	logger *slog.Logger
}

// NewDryRunSubmitter creates the default submitter.
func NewDryRunSubmitter(logger *slog.Logger) *DryRunSubmitter {
	return &DryRunSubmitter{logger: logger.With(slog.String("component", "dry_run_submitter"))}
}

// Submit logs the plan op by op and accepts it.
func (d *DryRunSubmitter) Submit(ctx context.Context, plan domain.ExecutionPlan) (string, error) {
	for _, op := range plan.Ops {
		d.logger.InfoContext(ctx, "dry-run op",
			slog.String("plan_id", plan.PlanID),
			slog.Int("priority", op.Priority),
			slog.String("type", string(op.Type)),
			slog.String("target", op.Target.Hex()),
			slog.String("description", op.Description))
	}
	d.logger.InfoContext(ctx, "dry-run plan accepted",
		slog.String("plan_id", plan.PlanID),
		slog.String("quote_id", plan.QuoteID),
		slog.Uint64("total_gas", plan.TotalGas),
		slog.Float64("cost_usd", plan.EstimatedCost))
	return "dryrun:" + plan.PlanID, nil
}

var _ domain.PlanSubmitter = (*DryRunSubmitter)(nil)
