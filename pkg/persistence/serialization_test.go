package persistence

import (
	"math/big"
	"testing"

	"github.com/Layr-Labs/eigenx-bridge-go/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMarshalUnmarshalEvent_LargeAmount checks uint256-sized amounts survive JSON without precision loss
func TestMarshalUnmarshalEvent_LargeAmount(t *testing.T) {
	amount, ok := new(big.Int).SetString("115792089237316195423570985008687907853269984665640564039457584007913129639935", 10)
	require.True(t, ok)

	original := &types.Event{
		Chain:       types.ChainName_MainChain,
		Sequence:    42,
		Kind:        types.EventKind_Locked,
		Account:     common.HexToAddress("0x00000000000000000000000000000000000000A1"),
		Amount:      amount,
		Destination: common.HexToAddress("0x00000000000000000000000000000000000000A2"),
		Timestamp:   1700000000,
	}

	data, err := MarshalEvent(original)
	require.NoError(t, err)

	restored, err := UnmarshalEvent(data)
	require.NoError(t, err)
	assert.Equal(t, 0, original.Amount.Cmp(restored.Amount))
	assert.Equal(t, original.ID(), restored.ID())
	assert.Equal(t, original.Destination, restored.Destination)
}

func TestMarshalEvent_InvalidInput(t *testing.T) {
	_, err := MarshalEvent(nil)
	require.Error(t, err)

	_, err = UnmarshalEvent(nil)
	require.Error(t, err)

	_, err = UnmarshalEvent([]byte("{not json"))
	require.Error(t, err)
}

func TestMarshalNodeState_InvalidInput(t *testing.T) {
	_, err := MarshalNodeState(nil)
	require.Error(t, err)

	_, err = UnmarshalNodeState([]byte{})
	require.Error(t, err)
}

func TestValidateEvent(t *testing.T) {
	require.Error(t, ValidateEvent(nil))
	require.Error(t, ValidateEvent(&types.Event{Sequence: 1}))
	require.Error(t, ValidateEvent(&types.Event{Chain: types.ChainName_SideChain}))
	require.NoError(t, ValidateEvent(&types.Event{Chain: types.ChainName_SideChain, Sequence: 1}))
}
