package domain

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// SecurityInfo is what the contract security check knows about a token
// contract. A zero CreatedAt means the deploy time is unknown.
type SecurityInfo struct {
	IsSafe     bool
	IsVerified bool
	CreatedAt  time.Time
}

// Age returns the contract age at now, and false when the deploy time is
// unknown.
func (s SecurityInfo) Age(now time.Time) (time.Duration, bool) {
	if s.CreatedAt.IsZero() {
		return 0, false
	}
	return now.Sub(s.CreatedAt), true
}

// ChainDataPort is the read-only view of one chain that routing and risk
// analysis consume. Lookups return (nil, nil) when the chain simply has no
// answer, e.g. no pool exists for a pair; errors mean the lookup itself
// failed.
type ChainDataPort interface {
	// GetTokenInfo resolves ERC-20 metadata for a token contract.
	GetTokenInfo(ctx context.Context, token common.Address) (*TokenInfo, error)

	// GetPoolInfo fetches the pool snapshot for a pair on one venue.
	GetPoolInfo(ctx context.Context, tokenA, tokenB common.Address, exchange ExchangeID) (*LiquidityPool, error)

	// GetTokenPools fetches every known pool the token trades in, across
	// all configured venues.
	GetTokenPools(ctx context.Context, token common.Address) ([]LiquidityPool, error)

	// GetPrice aggregates a price for token in units of quote. The zero
	// quote address selects the chain's configured stablecoin.
	GetPrice(ctx context.Context, token common.Address, quote common.Address) (*PriceSample, error)

	// GetGasPrice returns the current gas price in wei.
	GetGasPrice(ctx context.Context) (*big.Int, error)

	// CheckContractSecurity queries the verification status and deploy
	// time of a token contract.
	CheckContractSecurity(ctx context.Context, token common.Address) (*SecurityInfo, error)
}

// AllowanceOracle answers whether a spender needs a fresh ERC-20 approval
// before a swap can move amount units of token out of owner.
type AllowanceOracle interface {
	NeedsApproval(ctx context.Context, token, owner, spender common.Address, amount float64) (bool, error)
}
