package exchange

// AmountOut prices a swap against one constant-product pool. Reserves and
// amounts are in display units; feeRate is the taker fee as a fraction.
// Returns 0 when the pool cannot price the trade.
func AmountOut(amountIn, reserveIn, reserveOut, feeRate float64) float64 {
	if amountIn <= 0 || reserveIn <= 0 || reserveOut <= 0 {
		return 0
	}
	inWithFee := amountIn * (1 - feeRate)
	return reserveOut * inWithFee / (reserveIn + inWithFee)
}

// MidPrice is the marginal exchange rate of a pool: output token units per
// one input token unit before fees and impact.
func MidPrice(reserveIn, reserveOut float64) float64 {
	if reserveIn <= 0 {
		return 0
	}
	return reserveOut / reserveIn
}

// ExecutionPrice is the effective rate of a priced swap. Returns 0 for a
// non-positive input.
func ExecutionPrice(amountIn, amountOut float64) float64 {
	if amountIn <= 0 {
		return 0
	}
	return amountOut / amountIn
}
