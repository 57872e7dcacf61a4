package signer

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/primsh/x402fetch/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newKeyDir writes n encrypted key files with passphrase into a temp directory.
func newKeyDir(t *testing.T, passphrase string, n int) (string, []common.Address) {
	t.Helper()

	dir := t.TempDir()
	ks := keystore.NewKeyStore(dir, keystore.LightScryptN, keystore.LightScryptP)

	addrs := make([]common.Address, 0, n)
	for i := 0; i < n; i++ {
		key, err := crypto.GenerateKey()
		require.NoError(t, err)
		acct, err := ks.ImportECDSA(key, passphrase)
		require.NoError(t, err)
		addrs = append(addrs, acct.Address)
	}
	return dir, addrs
}

func TestFileKeystoreLoadByAddress(t *testing.T) {
	dir, addrs := newKeyDir(t, "hunter2", 2)

	id, err := NewFileKeystore(dir).Load(context.Background(), types.KeystoreRef{
		Address:    addrs[1].Hex(),
		Passphrase: "hunter2",
	})
	require.NoError(t, err)
	assert.Equal(t, addrs[1], id.Address())
}

func TestFileKeystoreLoadDefault(t *testing.T) {
	dir, addrs := newKeyDir(t, "hunter2", 1)
	t.Setenv(EnvKeystorePassphrase, "hunter2")

	id, err := NewFileKeystore(dir).Load(context.Background(), types.KeystoreRef{Default: true})
	require.NoError(t, err)
	assert.Equal(t, addrs[0], id.Address())
}

func TestFileKeystoreErrors(t *testing.T) {
	dir, _ := newKeyDir(t, "hunter2", 1)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README"), []byte("not a key"), 0o600))

	tests := []struct {
		name string
		dir  string
		ref  types.KeystoreRef
	}{
		{"wrong passphrase", dir, types.KeystoreRef{Default: true, Passphrase: "wrong"}},
		{"unknown address", dir, types.KeystoreRef{Address: "0x0000000000000000000000000000000000000001", Passphrase: "hunter2"}},
		{"invalid address", dir, types.KeystoreRef{Address: "alice", Passphrase: "hunter2"}},
		{"missing directory", filepath.Join(dir, "nope"), types.KeystoreRef{Default: true}},
		{"empty directory", t.TempDir(), types.KeystoreRef{Default: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFileKeystore(tt.dir).Load(context.Background(), tt.ref)
			var xe *types.X402Error
			require.ErrorAs(t, err, &xe)
			assert.Equal(t, types.ErrKeystore, xe.Code)
			assert.Contains(t, xe.Message, "keystore: ")
		})
	}
}

func TestDefaultKeystoreDir(t *testing.T) {
	t.Setenv(EnvKeystoreDir, "/var/lib/x402/keys")
	assert.Equal(t, "/var/lib/x402/keys", DefaultKeystoreDir())

	t.Setenv(EnvKeystoreDir, "")
	assert.True(t, strings.HasSuffix(DefaultKeystoreDir(), filepath.Join(".x402", "keystore")))
}
