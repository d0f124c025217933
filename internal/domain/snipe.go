package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// SnipeStatus is the terminal outcome of one snipe pipeline run.
type SnipeStatus string

const (
	SnipeSkipped SnipeStatus = "skipped"
	SnipePlanned SnipeStatus = "planned"
	SnipeFailed  SnipeStatus = "failed"
)

// SnipeRecord documents what the snipe pipeline did with one discovered
// pair: skipped with a reason, failed during quoting, or planned through to
// the submitter.
type SnipeRecord struct {
	ID          string
	Network     string
	Exchange    ExchangeID
	PairAddress common.Address
	TargetToken common.Address
	Status      SnipeStatus
	Reason      string
	RiskScore   float64
	RiskLevel   RiskLevel
	QuoteID     string
	PlanID      string
	TxRef       string
	CreatedAt   time.Time
}
