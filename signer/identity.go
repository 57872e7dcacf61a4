// Package signer resolves the identity that signs payment authorizations.
package signer

import (
	"context"
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/primsh/x402fetch/types"
	"github.com/primsh/x402fetch/utils"
)

// Identity is an address plus the ability to sign EIP-712 typed data for it.
type Identity interface {
	Address() common.Address
	SignTypedData(ctx context.Context, typedData apitypes.TypedData) ([]byte, error)
}

var _ Identity = (*PrivateKeyIdentity)(nil)

// PrivateKeyIdentity signs with an in-memory secp256k1 key.
type PrivateKeyIdentity struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewPrivateKeyIdentity derives an identity from a hex private key (0x prefix optional).
func NewPrivateKeyIdentity(hexKey string) (*PrivateKeyIdentity, error) {
	key, err := utils.PrivateKeyFromHex(hexKey)
	if err != nil {
		// the key itself must never reach an error message
		return nil, &types.X402Error{
			Code:    types.ErrConfigError,
			Message: "invalid private key: expected 32-byte hex secp256k1 key",
		}
	}
	return NewIdentityFromKey(key), nil
}

func NewIdentityFromKey(key *ecdsa.PrivateKey) *PrivateKeyIdentity {
	return &PrivateKeyIdentity{
		key:     key,
		address: utils.AddressFromPrivateKey(key),
	}
}

func (p *PrivateKeyIdentity) Address() common.Address {
	return p.address
}

func (p *PrivateKeyIdentity) SignTypedData(ctx context.Context, typedData apitypes.TypedData) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sig, err := utils.SignTypedData(typedData, p.key)
	if err != nil {
		return nil, fmt.Errorf("sign %s: %w", typedData.PrimaryType, err)
	}
	return sig, nil
}
