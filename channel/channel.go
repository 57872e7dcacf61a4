// Package channel turns a signing identity into payment authorizations and the
// request headers that carry them.
package channel

import (
	"context"
	"fmt"

	"github.com/primsh/x402fetch/clients"
	"github.com/primsh/x402fetch/signer"
	"github.com/primsh/x402fetch/types"
	"github.com/primsh/x402fetch/utils"
)

// Signer is what a Scheme signs with: the identity plus read-only chain access.
type Signer interface {
	signer.Identity
	clients.ContractCaller
}

// Scheme produces a signed payload for one payment scheme.
type Scheme interface {
	Scheme() types.PaymentScheme
	CreatePaymentPayload(
		ctx context.Context,
		s Signer,
		chainID int64,
		x402Version int,
		requirements types.PaymentRequirements,
	) (*types.PaymentPayload, error)
}

type evmSigner struct {
	signer.Identity
	clients.ContractCaller
}

// Channel is a reusable handle bound to one identity and one network.
type Channel struct {
	signer  evmSigner
	network types.NetworkConfig
	scheme  Scheme
	closer  func()
}

// Build binds identity to network. A nil scheme selects ExactEVM; a nil caller dials
// the network's RPC endpoint.
func Build(
	ctx context.Context,
	identity signer.Identity,
	network types.NetworkConfig,
	scheme Scheme,
	caller clients.ContractCaller,
) (*Channel, error) {
	if identity == nil {
		return nil, &types.X402Error{
			Code:    types.ErrConfigError,
			Message: "payment channel requires a signing identity",
		}
	}

	if scheme == nil {
		scheme = ExactEVM{}
	}

	closer := func() {}
	if caller == nil {
		reader, err := clients.NewEVMReader(ctx, network)
		if err != nil {
			return nil, fmt.Errorf("failed to create EVM reader for %s: %w", network.Network, err)
		}
		caller = reader
		closer = reader.Close
	}

	return &Channel{
		signer:  evmSigner{Identity: identity, ContractCaller: caller},
		network: network,
		scheme:  scheme,
		closer:  closer,
	}, nil
}

// Address is the payer address of the bound identity.
func (c *Channel) Address() string {
	return c.signer.Address().Hex()
}

func (c *Channel) Network() types.NetworkConfig {
	return c.network
}

// CreateAuthorization signs a fresh authorization for requirements. Every call produces
// a new nonce; authorizations are single use.
func (c *Channel) CreateAuthorization(
	ctx context.Context,
	x402Version int,
	requirements types.PaymentRequirements,
) (*types.PaymentPayload, error) {
	chainID, err := clients.ChainIDFor(requirements.Network)
	if err != nil {
		return nil, err
	}
	if chainID != c.network.ChainID {
		return nil, &types.X402Error{
			Code: types.ErrUnsupportedNetwork,
			Message: fmt.Sprintf(
				"payment requested on %s but client is configured for %s",
				requirements.Network, c.network.Network,
			),
		}
	}

	return c.scheme.CreatePaymentPayload(ctx, c.signer, chainID, x402Version, requirements)
}

// EncodeHeaders returns the request headers carrying payload.
func (c *Channel) EncodeHeaders(payload *types.PaymentPayload) (map[string]string, error) {
	encoded, err := utils.EncodePaymentPayload(payload)
	if err != nil {
		return nil, err
	}

	name := types.HeaderPaymentSignature
	if payload.X402Version == int(types.X402Version1) {
		name = types.HeaderLegacyPayment
	}
	return map[string]string{name: encoded}, nil
}

// Close releases the RPC connection opened by Build, if any.
func (c *Channel) Close() {
	c.closer()
}
