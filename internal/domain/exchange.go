package domain

import "fmt"

// ExchangeID names a supported constant-product DEX. The set is closed:
// adding a venue means adding a constant here and a descriptor in the
// exchange registry, not editing call sites.
type ExchangeID string

const (
	ExchangeUniswapV2 ExchangeID = "uniswap_v2"
	ExchangeSushiswap ExchangeID = "sushiswap"
	ExchangePancakeV2 ExchangeID = "pancakeswap_v2"
)

// AllExchanges lists every supported venue in registry order.
func AllExchanges() []ExchangeID {
	return []ExchangeID{ExchangeUniswapV2, ExchangeSushiswap, ExchangePancakeV2}
}

// ParseExchangeID validates a config or API supplied venue name.
func ParseExchangeID(s string) (ExchangeID, error) {
	switch ExchangeID(s) {
	case ExchangeUniswapV2, ExchangeSushiswap, ExchangePancakeV2:
		return ExchangeID(s), nil
	}
	return "", fmt.Errorf("domain: %w: unknown exchange %q", ErrUnsupportedExchange, s)
}

func (e ExchangeID) String() string { return string(e) }
