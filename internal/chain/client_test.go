package chain

import (
	"encoding/hex"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUSDCUnitConversion(t *testing.T) {
	amt := decimal.RequireFromString("12.345678")
	units := ToBaseUnits(amt)
	assert.Equal(t, int64(12_345_678), units.Int64())
	assert.True(t, FromBaseUnits(units).Equal(amt))

	// Sub-unit dust truncates rather than rounding up.
	dusty := decimal.RequireFromString("1.0000009")
	assert.Equal(t, int64(1_000_000), ToBaseUnits(dusty).Int64())
}

func TestPackTransfer(t *testing.T) {
	to := common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913")
	data := PackTransfer(to, big.NewInt(1_000_000))
	require.Len(t, data, 4+32+32)

	assert.Equal(t, "a9059cbb", hex.EncodeToString(data[:4]))
	assert.Equal(t, to.Bytes(), data[4+12:4+32])
	assert.Equal(t, int64(1_000_000), new(big.Int).SetBytes(data[36:]).Int64())
}

func TestPackBalanceOf(t *testing.T) {
	owner := common.HexToAddress("0x96216849c49358B10257cb55b28eA603c874b05E")
	data := PackBalanceOf(owner)
	require.Len(t, data, 4+32)
	assert.Equal(t, "70a08231", hex.EncodeToString(data[:4]))
}

func TestPackApprove(t *testing.T) {
	spender := common.HexToAddress("0x9daF8c91AEFAE50b9c0E69629D3F6Ca40cA3B3FE")
	data := PackApprove(spender, big.NewInt(42))
	require.Len(t, data, 4+32+32)
	assert.Equal(t, "095ea7b3", hex.EncodeToString(data[:4]))
}
