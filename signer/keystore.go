package signer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/primsh/x402fetch/types"
)

// Environment variables consulted by the file keystore.
const (
	EnvKeystoreDir        = "X402_KEYSTORE_DIR"
	EnvKeystorePassphrase = "X402_KEYSTORE_PASSPHRASE"
)

// Keystore is a credential store that can unlock a signing identity.
type Keystore interface {
	Load(ctx context.Context, ref types.KeystoreRef) (Identity, error)
}

var _ Keystore = (*FileKeystore)(nil)

// FileKeystore reads go-ethereum encrypted JSON key files from a directory.
type FileKeystore struct {
	Dir string
}

func NewFileKeystore(dir string) *FileKeystore {
	return &FileKeystore{Dir: dir}
}

// DefaultKeystoreDir is X402_KEYSTORE_DIR, else ~/.x402/keystore.
func DefaultKeystoreDir() string {
	if dir := os.Getenv(EnvKeystoreDir); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".x402", "keystore")
	}
	return filepath.Join(home, ".x402", "keystore")
}

// keyFileHeader is the unencrypted part of a key file.
type keyFileHeader struct {
	Address string `json:"address"`
}

// Load decrypts the key for ref.Address, or the first key file in name order
// when no address is given.
func (f *FileKeystore) Load(ctx context.Context, ref types.KeystoreRef) (Identity, error) {
	path, err := f.find(ref.Address)
	if err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, keystoreError(fmt.Sprintf("reading key file %s", filepath.Base(path)), err)
	}

	passphrase := ref.Passphrase
	if passphrase == "" {
		passphrase = os.Getenv(EnvKeystorePassphrase)
	}

	// scrypt is slow; give up early if the caller already has
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key, err := keystore.DecryptKey(raw, passphrase)
	if err != nil {
		return nil, keystoreError(fmt.Sprintf("unlocking key file %s", filepath.Base(path)), err)
	}

	return NewIdentityFromKey(key.PrivateKey), nil
}

func (f *FileKeystore) find(address string) (string, error) {
	entries, err := os.ReadDir(f.Dir)
	if err != nil {
		return "", keystoreError(fmt.Sprintf("reading keystore directory %s", f.Dir), err)
	}

	var want common.Address
	if address != "" {
		if !common.IsHexAddress(address) {
			return "", keystoreError(fmt.Sprintf("invalid keystore address %q", address), nil)
		}
		want = common.HexToAddress(address)
	}

	// os.ReadDir returns entries sorted by filename
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(f.Dir, entry.Name())
		raw, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var hdr keyFileHeader
		if err := json.Unmarshal(raw, &hdr); err != nil || !common.IsHexAddress(hdr.Address) {
			continue
		}
		if address == "" || common.HexToAddress(hdr.Address) == want {
			return path, nil
		}
	}

	if address != "" {
		return "", keystoreError(fmt.Sprintf("no key for %s in %s", want.Hex(), f.Dir), nil)
	}
	return "", keystoreError(fmt.Sprintf("no keys in %s", f.Dir), nil)
}

func keystoreError(msg string, cause error) error {
	if cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, cause)
	}
	return &types.X402Error{
		Code:    types.ErrKeystore,
		Message: "keystore: " + msg,
	}
}
