package exchange

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAmountOut(t *testing.T) {
	testCases := []struct {
		name       string
		amountIn   float64
		reserveIn  float64
		reserveOut float64
		feeRate    float64
		expected   float64
	}{
		{
			name:       "No Fee Swap",
			amountIn:   10,
			reserveIn:  100,
			reserveOut: 100,
			feeRate:    0,
			expected:   100 * 10 / 110.0,
		},
		{
			name:       "Standard Fee Swap",
			amountIn:   1,
			reserveIn:  100,
			reserveOut: 50,
			feeRate:    0.003,
			expected:   50 * 0.997 / (100 + 0.997),
		},
		{
			name:       "Zero ReserveIn",
			amountIn:   10,
			reserveIn:  0,
			reserveOut: 100,
			feeRate:    0.003,
			expected:   0,
		},
		{
			name:       "Zero AmountIn",
			amountIn:   0,
			reserveIn:  100,
			reserveOut: 100,
			feeRate:    0.003,
			expected:   0,
		},
		{
			name:       "Negative AmountIn",
			amountIn:   -5,
			reserveIn:  100,
			reserveOut: 100,
			feeRate:    0.003,
			expected:   0,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := AmountOut(tc.amountIn, tc.reserveIn, tc.reserveOut, tc.feeRate)
			assert.InDelta(t, tc.expected, got, 1e-12)
		})
	}
}

func TestAmountOutFeeReducesOutput(t *testing.T) {
	withFee := AmountOut(10, 1000, 1000, 0.003)
	noFee := AmountOut(10, 1000, 1000, 0)
	assert.Less(t, withFee, noFee)
	assert.Greater(t, withFee, 0.0)
}

func TestMidPrice(t *testing.T) {
	assert.InDelta(t, 0.5, MidPrice(100, 50), 1e-12)
	assert.Equal(t, 0.0, MidPrice(0, 50))
}

func TestExecutionPrice(t *testing.T) {
	assert.InDelta(t, 2.0, ExecutionPrice(5, 10), 1e-12)
	assert.Equal(t, 0.0, ExecutionPrice(0, 10))
}
