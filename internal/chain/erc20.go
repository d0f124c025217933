package chain

import (
	"fmt"
	"math/big"
	"strings"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/common"
)

// 4-byte selectors for the handful of view functions the engine calls. The
// surface is small enough that hand-packed calldata beats carrying ABI JSON.
var (
	selGetReserves = []byte{0x09, 0x02, 0xf1, 0xac} // getReserves()
	selDecimals    = []byte{0x31, 0x3c, 0xe5, 0x67} // decimals()
	selSymbol      = []byte{0x95, 0xd8, 0x9b, 0x41} // symbol()
	selName        = []byte{0x06, 0xfd, 0xde, 0x03} // name()
	selTotalSupply = []byte{0x18, 0x16, 0x0d, 0xdd} // totalSupply()
	selAllowance   = []byte{0xdd, 0x62, 0xed, 0x3e} // allowance(address,address)
)

const wordSize = 32

func packAllowance(owner, spender common.Address) []byte {
	data := make([]byte, 0, 4+2*wordSize)
	data = append(data, selAllowance...)
	data = append(data, common.LeftPadBytes(owner.Bytes(), wordSize)...)
	data = append(data, common.LeftPadBytes(spender.Bytes(), wordSize)...)
	return data
}

// decodeUint reads the first return word as an unsigned integer.
func decodeUint(ret []byte) (*big.Int, error) {
	if len(ret) < wordSize {
		return nil, fmt.Errorf("return data too short: %d bytes", len(ret))
	}
	return new(big.Int).SetBytes(ret[:wordSize]), nil
}

// decodeReserves reads the (reserve0, reserve1, blockTimestampLast) tuple
// returned by a v2 pair's getReserves.
func decodeReserves(ret []byte) (reserve0, reserve1 *big.Int, err error) {
	if len(ret) < 2*wordSize {
		return nil, nil, fmt.Errorf("reserves return too short: %d bytes", len(ret))
	}
	reserve0 = new(big.Int).SetBytes(ret[:wordSize])
	reserve1 = new(big.Int).SetBytes(ret[wordSize : 2*wordSize])
	return reserve0, reserve1, nil
}

// decodeString handles both ABI encodings seen in the wild for symbol() and
// name(): the standard dynamic string and the legacy fixed bytes32 (MKR,
// SAI and friends).
func decodeString(ret []byte) (string, error) {
	switch {
	case len(ret) == 0:
		return "", fmt.Errorf("empty return data")
	case len(ret) == wordSize:
		// legacy bytes32
		return sanitizeString(strings.TrimRight(string(ret), "\x00")), nil
	case len(ret) >= 2*wordSize:
		offset := new(big.Int).SetBytes(ret[:wordSize])
		if !offset.IsUint64() || offset.Uint64()+wordSize > uint64(len(ret)) {
			return "", fmt.Errorf("string offset out of range")
		}
		start := offset.Uint64()
		strLen := new(big.Int).SetBytes(ret[start : start+wordSize])
		if !strLen.IsUint64() || start+wordSize+strLen.Uint64() > uint64(len(ret)) {
			return "", fmt.Errorf("string length out of range")
		}
		data := ret[start+wordSize : start+wordSize+strLen.Uint64()]
		return sanitizeString(string(data)), nil
	}
	return "", fmt.Errorf("unrecognized string encoding: %d bytes", len(ret))
}

// sanitizeString strips non-printable bytes from on-chain token metadata.
func sanitizeString(s string) string {
	if !utf8.ValidString(s) {
		return ""
	}
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
}
