package exchange

import "math/big"

// ToUnits converts a raw token amount to display units using the token's
// decimals. Precision loss past float64 is acceptable here: display-unit
// math feeds scoring and ranking, not settlement.
func ToUnits(raw *big.Int, decimals uint8) float64 {
	if raw == nil || raw.Sign() == 0 {
		return 0
	}
	f := new(big.Float).SetInt(raw)
	f.Quo(f, new(big.Float).SetInt(pow10(decimals)))
	out, _ := f.Float64()
	return out
}

// ToRaw converts a display-unit amount back to raw token units, truncating
// toward zero. Used at the plan boundary where minimum outputs must be
// expressed exactly.
func ToRaw(amount float64, decimals uint8) *big.Int {
	if amount <= 0 {
		return new(big.Int)
	}
	f := new(big.Float).SetFloat64(amount)
	f.Mul(f, new(big.Float).SetInt(pow10(decimals)))
	out, _ := f.Int(nil)
	return out
}

func pow10(decimals uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
}
