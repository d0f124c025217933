package domain

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// RouteQuote is the caller-facing result of a routing request: the selected
// route plus the guarantees the engine is willing to stand behind until the
// deadline passes.
type RouteQuote struct {
	ID             string
	Route          TradingRoute
	InputToken     TokenRef
	OutputToken    TokenRef
	InputAmount    float64
	OutputAmount   float64
	MinimumOutput  float64 // OutputAmount reduced by MaxSlippage
	ExchangeRate   float64
	PriceImpactPct float64
	TotalFeePct    float64
	GasCostUSD     float64
	Deadline       time.Time
	MaxSlippage    float64
	Confidence     float64
	FreshnessScore float64
	CreatedAt      time.Time
}

// Valid reports whether the quote is still actionable at the given time: the
// deadline has not passed and the price data behind it is fresh enough.
func (q RouteQuote) Valid(now time.Time) bool {
	return now.Before(q.Deadline) && q.FreshnessScore >= 0.7
}

// OpType is the kind of chain operation a plan step performs.
type OpType string

const (
	OpApprove OpType = "approve"
	OpSwap    OpType = "swap"
)

// PlannedOp is one operation of an execution plan. Ops run in ascending
// Priority order. AmountOutMinWei is set for swap ops only and carries the
// minimum acceptable output in raw token units.
type PlannedOp struct {
	Type            OpType
	Exchange        ExchangeID
	Target          common.Address
	Description     string
	GasEstimate     uint64
	Priority        int
	AmountOutMinWei *big.Int
}

// ExecutionPlan is an ordered operation list derived from a valid quote. The
// plan is advisory: nothing in the engine signs or broadcasts it.
type ExecutionPlan struct {
	PlanID        string
	QuoteID       string
	Wallet        common.Address
	Ops           []PlannedOp
	TotalGas      uint64
	Deadline      time.Time
	EstimatedCost float64 // gas cost in USD
	CreatedAt     time.Time
}

// PlanSubmitter hands finished plans to whatever sits downstream of the
// engine: a dry-run printer, a journal, or a real execution service. Submit
// returns the transaction hash reported by that downstream.
type PlanSubmitter interface {
	Submit(ctx context.Context, plan ExecutionPlan) (string, error)
}
