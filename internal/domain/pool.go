package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// LiquidityPool is a snapshot of one constant-product pair at a block height.
// Reserves are in display units of the respective token.
type LiquidityPool struct {
	Address      common.Address
	Exchange     ExchangeID
	Token0       TokenRef
	Token1       TokenRef
	Reserve0     float64
	Reserve1     float64
	FeeRate      float64 // taker fee as a fraction, e.g. 0.003
	LiquidityUSD float64
	BlockNumber  uint64
	SampledAt    time.Time
}

// OtherToken returns the pool token paired against addr, and false when addr
// is not part of the pool.
func (p LiquidityPool) OtherToken(addr common.Address) (TokenRef, bool) {
	switch addr {
	case p.Token0.Address:
		return p.Token1, true
	case p.Token1.Address:
		return p.Token0, true
	}
	return TokenRef{}, false
}

// ReservesFor orients the pool reserves so the first value is the reserve of
// tokenIn. ok is false when tokenIn is not in the pool.
func (p LiquidityPool) ReservesFor(tokenIn common.Address) (reserveIn, reserveOut float64, ok bool) {
	switch tokenIn {
	case p.Token0.Address:
		return p.Reserve0, p.Reserve1, true
	case p.Token1.Address:
		return p.Reserve1, p.Reserve0, true
	}
	return 0, 0, false
}

// Contains reports whether both tokens trade in this pool.
func (p LiquidityPool) Contains(a, b common.Address) bool {
	return (p.Token0.Address == a && p.Token1.Address == b) ||
		(p.Token0.Address == b && p.Token1.Address == a)
}

// PriceSample is a point-in-time price observation for one token, aggregated
// over the pools that quote it. Quote is the pricing token; the zero address
// means USD via the chain's configured stablecoin. Confidence scales with the
// number and depth of contributing pools.
type PriceSample struct {
	Token        common.Address
	Quote        common.Address
	Price        float64
	LiquidityUSD float64
	PoolCount    int
	Confidence   float64
	SampledAt    time.Time
}
