// Package exchange holds the closed set of supported DEX venues and the
// pure math shared by everything that prices swaps against them.
package exchange

import (
	"bytes"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/dexsniper/sniperd/internal/domain"
)

// Descriptor is the static on-chain identity of one venue: where its factory
// and router live and how pair addresses derive from token pairs.
type Descriptor struct {
	ID           domain.ExchangeID
	Name         string
	Network      string
	Factory      common.Address
	Router       common.Address
	InitCodeHash common.Hash
	FeeRate      float64
}

// builtin is the full descriptor table. The set is closed: adding a venue
// means adding a row here and a constant in domain.
var builtin = []Descriptor{
	{
		ID:           domain.ExchangeUniswapV2,
		Name:         "Uniswap V2",
		Network:      "ethereum",
		Factory:      common.HexToAddress("0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f"),
		Router:       common.HexToAddress("0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D"),
		InitCodeHash: common.HexToHash("0x96e8ac4277198ff8b6f785478aa9a39f403cb768dd02cbe574a85ca97227c353"),
		FeeRate:      0.003,
	},
	{
		ID:           domain.ExchangeSushiswap,
		Name:         "SushiSwap",
		Network:      "ethereum",
		Factory:      common.HexToAddress("0xC0AEe478e3658e2610c5F7A4A2E1777cE9e4f2Ac"),
		Router:       common.HexToAddress("0xd9e1cE17f2641f24aE83637ab66a2cca9C378B9F"),
		InitCodeHash: common.HexToHash("0xe18a34eb0e04b04f7a0ac29a6e80748dca96319b42c54d679cb821dca90c6303"),
		FeeRate:      0.003,
	},
	{
		ID:           domain.ExchangePancakeV2,
		Name:         "PancakeSwap V2",
		Network:      "bsc",
		Factory:      common.HexToAddress("0xcA143Ce32Fe78f1f7019d7d551a6402fC5350c73"),
		Router:       common.HexToAddress("0x10ED43C718714eb63d5aA57B78B54704E256024E"),
		InitCodeHash: common.HexToHash("0x00fb7f630766e6a796048ea87d01acd3068e8ff67d078148a3fa3f4a84f69bd5"),
		FeeRate:      0.0025,
	},
}

// SortTokens orders a pair the way v2 factories do before hashing.
func SortTokens(a, b common.Address) (common.Address, common.Address) {
	if bytes.Compare(a.Bytes(), b.Bytes()) < 0 {
		return a, b
	}
	return b, a
}

// PairAddress derives the CREATE2 pool address for a token pair on this
// venue without touching the chain.
func (d Descriptor) PairAddress(tokenA, tokenB common.Address) common.Address {
	token0, token1 := SortTokens(tokenA, tokenB)
	salt := crypto.Keccak256(append(token0.Bytes(), token1.Bytes()...))

	packed := make([]byte, 0, 1+common.AddressLength+2*common.HashLength)
	packed = append(packed, 0xff)
	packed = append(packed, d.Factory.Bytes()...)
	packed = append(packed, salt...)
	packed = append(packed, d.InitCodeHash.Bytes()...)
	return common.BytesToAddress(crypto.Keccak256(packed)[12:])
}
