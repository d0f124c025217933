package domain

import (
	"github.com/ethereum/go-ethereum/common"
)

// TokenRef identifies a fungible token on one chain. It is immutable once
// resolved from chain data.
type TokenRef struct {
	Address  common.Address
	Symbol   string
	Decimals uint8
}

// TokenInfo is the full ERC-20 metadata set used by risk analysis. A zero
// TotalSupply means the supply could not be read. TotalSupply is expressed in
// display units (raw supply divided by 10^decimals).
type TokenInfo struct {
	Address     common.Address
	Symbol      string
	Name        string
	Decimals    uint8
	TotalSupply float64

	// HasSymbol/HasName/HasDecimals record whether the corresponding
	// metadata call succeeded; missing metadata is itself a risk signal.
	HasSymbol   bool
	HasName     bool
	HasDecimals bool
}

// Ref returns the TokenRef identity of this token.
func (t TokenInfo) Ref() TokenRef {
	return TokenRef{Address: t.Address, Symbol: t.Symbol, Decimals: t.Decimals}
}
