package utils

import (
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrivateKeyFromHex(t *testing.T) {
	const key = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

	for _, in := range []string{key, "0x" + key, " 0x" + key + "\n"} {
		priv, err := PrivateKeyFromHex(in)
		require.NoError(t, err)
		assert.Equal(t, "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266", AddressFromPrivateKey(priv).Hex())
	}

	_, err := PrivateKeyFromHex("0x1234")
	assert.Error(t, err)
}

func TestRandomNonce(t *testing.T) {
	a, err := RandomNonce()
	require.NoError(t, err)
	b, err := RandomNonce()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(a, "0x"))
	assert.Len(t, a, 66)
	assert.NotEqual(t, a, b)
}

func TestNormalizeAddress(t *testing.T) {
	assert.Equal(t,
		"0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
		NormalizeAddress("0x833589fcd6edb6e08f4c7c32d4f71b54bda02913"),
	)
	assert.Empty(t, NormalizeAddress("0x1234"))
	assert.True(t, ValidateAddress("0x833589fcd6edb6e08f4c7c32d4f71b54bda02913"))
	assert.False(t, ValidateAddress("alice.eth"))
}

func TestRecoverTypedDataSignerRejectsShortSignature(t *testing.T) {
	_, err := RecoverTypedDataSigner(apitypes.TypedData{}, "0x1234")
	assert.Error(t, err)
}
