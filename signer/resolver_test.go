package signer

import (
	"context"
	"crypto/ecdsa"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/primsh/x402fetch/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingKeystore struct {
	key   *ecdsa.PrivateKey
	err   error
	loads int
	refs  []types.KeystoreRef
}

func (k *countingKeystore) Load(_ context.Context, ref types.KeystoreRef) (Identity, error) {
	k.loads++
	k.refs = append(k.refs, ref)
	if k.err != nil {
		return nil, k.err
	}
	return NewIdentityFromKey(k.key), nil
}

func env(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func TestResolvePrecedence(t *testing.T) {
	explicitKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	storeKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	envKey, err := crypto.GenerateKey()
	require.NoError(t, err)

	explicit := NewIdentityFromKey(explicitKey)
	rawAddr := mustIdentity(t, testKey).Address()
	getenv := env(map[string]string{EnvPrivateKey: hexKey(envKey)})

	tests := []struct {
		name     string
		sources  Sources
		kind     SourceKind
		deferred bool
		address  string
	}{
		{
			name: "explicit identity wins over everything",
			sources: Sources{
				Identity:   explicit,
				PrivateKey: testKey,
				Keystore:   &types.KeystoreRef{Default: true},
				Getenv:     getenv,
			},
			kind:    SourceIdentity,
			address: explicit.Address().Hex(),
		},
		{
			name: "private key before keystore",
			sources: Sources{
				PrivateKey: testKey,
				Keystore:   &types.KeystoreRef{Default: true},
				Getenv:     getenv,
			},
			kind:    SourcePrivateKey,
			address: rawAddr.Hex(),
		},
		{
			name: "keystore before environment",
			sources: Sources{
				Keystore: &types.KeystoreRef{Default: true},
				Getenv:   getenv,
			},
			kind:     SourceKeystore,
			deferred: true,
			address:  crypto.PubkeyToAddress(storeKey.PublicKey).Hex(),
		},
		{
			name:    "environment last",
			sources: Sources{Getenv: getenv},
			kind:    SourceEnv,
			address: crypto.PubkeyToAddress(envKey.PublicKey).Hex(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &countingKeystore{key: storeKey}
			tt.sources.Store = store

			src, err := Resolve(tt.sources)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, src.Kind())
			assert.Equal(t, tt.deferred, src.Deferred())
			assert.Zero(t, store.loads, "resolution must not load the keystore")

			id, err := src.Identity(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.address, id.Address().Hex())
		})
	}
}

func TestResolveKeystoreSkipsEnvironment(t *testing.T) {
	storeErr := &types.X402Error{Code: types.ErrKeystore, Message: "keystore: locked"}
	store := &countingKeystore{err: storeErr}

	src, err := Resolve(Sources{
		Keystore: &types.KeystoreRef{Address: "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266", Passphrase: "pw"},
		Store:    store,
		Getenv:   env(map[string]string{EnvPrivateKey: testKey}),
	})
	require.NoError(t, err)

	_, err = src.Identity(context.Background())
	assert.ErrorIs(t, err, storeErr)
	require.Len(t, store.refs, 1)
	assert.Equal(t, "pw", store.refs[0].Passphrase)
}

func TestResolveDisabledKeystoreFallsThrough(t *testing.T) {
	src, err := Resolve(Sources{
		Keystore: &types.KeystoreRef{},
		Getenv:   env(map[string]string{EnvPrivateKey: testKey}),
	})
	require.NoError(t, err)
	assert.Equal(t, SourceEnv, src.Kind())
}

func TestResolveNoSource(t *testing.T) {
	_, err := Resolve(Sources{Getenv: env(nil)})

	var xe *types.X402Error
	require.ErrorAs(t, err, &xe)
	assert.Equal(t, types.ErrConfigError, xe.Code)
	for _, checked := range []string{"explicit identity", "private key", "keystore", EnvPrivateKey} {
		assert.Contains(t, xe.Message, checked)
	}
}

func TestResolveInvalidEnvKey(t *testing.T) {
	_, err := Resolve(Sources{Getenv: env(map[string]string{EnvPrivateKey: "zz"})})
	require.Error(t, err)
	assert.Contains(t, err.Error(), EnvPrivateKey)
}

func mustIdentity(t *testing.T, hex string) Identity {
	t.Helper()
	id, err := NewPrivateKeyIdentity(hex)
	require.NoError(t, err)
	return id
}

func hexKey(k *ecdsa.PrivateKey) string {
	return hexutil.Encode(crypto.FromECDSA(k))
}
