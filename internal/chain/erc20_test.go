package chain

import (
	"encoding/hex"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

func TestDecodeUint(t *testing.T) {
	word := common.LeftPadBytes(big.NewInt(18).Bytes(), 32)
	v, err := decodeUint(word)
	require.NoError(t, err)
	assert.Equal(t, int64(18), v.Int64())

	_, err = decodeUint([]byte{0x01})
	require.Error(t, err)
}

func TestDecodeReserves(t *testing.T) {
	ret := append(
		common.LeftPadBytes(big.NewInt(1_000_000).Bytes(), 32),
		common.LeftPadBytes(big.NewInt(2_000_000).Bytes(), 32)...,
	)
	// pairs append a third word (blockTimestampLast)
	ret = append(ret, common.LeftPadBytes(big.NewInt(1_700_000_000).Bytes(), 32)...)

	r0, r1, err := decodeReserves(ret)
	require.NoError(t, err)
	assert.Equal(t, int64(1_000_000), r0.Int64())
	assert.Equal(t, int64(2_000_000), r1.Int64())

	_, _, err = decodeReserves(ret[:40])
	require.Error(t, err)
}

func TestDecodeString(t *testing.T) {
	testCases := []struct {
		name        string
		ret         []byte
		expected    string
		expectError bool
	}{
		{
			name: "Dynamic String",
			// offset 0x20, length 4, "USDC"
			ret: mustHex(t, "0000000000000000000000000000000000000000000000000000000000000020"+
				"0000000000000000000000000000000000000000000000000000000000000004"+
				"5553444300000000000000000000000000000000000000000000000000000000"),
			expected: "USDC",
		},
		{
			name:     "Legacy Bytes32",
			ret:      common.RightPadBytes([]byte("MKR"), 32),
			expected: "MKR",
		},
		{
			name:        "Empty Return",
			ret:         nil,
			expectError: true,
		},
		{
			name: "Offset Out Of Range",
			ret: mustHex(t, "00000000000000000000000000000000000000000000000000000000000fffff"+
				"0000000000000000000000000000000000000000000000000000000000000004"),
			expectError: true,
		},
		{
			name: "Length Out Of Range",
			ret: mustHex(t, "0000000000000000000000000000000000000000000000000000000000000020"+
				"00000000000000000000000000000000000000000000000000000000000000ff"),
			expectError: true,
		},
		{
			name:     "Control Bytes Stripped",
			ret:      common.RightPadBytes([]byte("AB\x01C"), 32),
			expected: "ABC",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := decodeString(tc.ret)
			if tc.expectError {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestPackAllowance(t *testing.T) {
	owner := common.HexToAddress("0x1111111111111111111111111111111111111111")
	spender := common.HexToAddress("0x2222222222222222222222222222222222222222")

	data := packAllowance(owner, spender)
	require.Len(t, data, 4+64)
	assert.Equal(t, selAllowance, data[:4])
	assert.Equal(t, owner.Bytes(), data[4+12:4+32])
	assert.Equal(t, spender.Bytes(), data[4+32+12:])
}
