package channel

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/primsh/x402fetch/clients"
	"github.com/primsh/x402fetch/types"
	"github.com/primsh/x402fetch/utils"
)

const (
	// validAfterSkew backdates authorizations to tolerate clock drift.
	validAfterSkew = 600 * time.Second

	defaultMaxTimeoutSeconds = 60
)

// TransferWithAuthorizationTypes are the EIP-712 types of an EIP-3009 transfer.
var TransferWithAuthorizationTypes = apitypes.Types{
	"EIP712Domain": {
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	},
	"TransferWithAuthorization": {
		{Name: "from", Type: "address"},
		{Name: "to", Type: "address"},
		{Name: "value", Type: "uint256"},
		{Name: "validAfter", Type: "uint256"},
		{Name: "validBefore", Type: "uint256"},
		{Name: "nonce", Type: "bytes32"},
	},
}

var _ Scheme = ExactEVM{}

// ExactEVM is the `exact` scheme on EVM chains: an EIP-3009 transferWithAuthorization
// for exactly the requested amount.
type ExactEVM struct {
	// Now defaults to time.Now.
	Now func() time.Time
	// Nonce defaults to utils.RandomNonce.
	Nonce func() (string, error)
}

func (ExactEVM) Scheme() types.PaymentScheme {
	return types.SchemeExact
}

func (e ExactEVM) CreatePaymentPayload(
	ctx context.Context,
	s Signer,
	chainID int64,
	x402Version int,
	req types.PaymentRequirements,
) (*types.PaymentPayload, error) {
	if types.PaymentScheme(req.Scheme) != types.SchemeExact {
		return nil, &types.X402Error{
			Code:    types.ErrUnsupportedScheme,
			Message: fmt.Sprintf("unsupported payment scheme: %s", req.Scheme),
		}
	}

	value, err := utils.ParseAtomic(req.AtomicAmount())
	if err != nil {
		return nil, invalidRequirements(err.Error())
	}
	payTo := utils.NormalizeAddress(req.PayTo)
	if payTo == "" {
		return nil, invalidRequirements(fmt.Sprintf("payTo %q is not an EVM address", req.PayTo))
	}
	if !utils.ValidateAddress(req.Asset) {
		return nil, invalidRequirements(fmt.Sprintf("asset %q is not an EVM address", req.Asset))
	}

	name, version, err := tokenDomain(ctx, s, req)
	if err != nil {
		return nil, err
	}

	now := time.Now
	if e.Now != nil {
		now = e.Now
	}
	nonceFn := utils.RandomNonce
	if e.Nonce != nil {
		nonceFn = e.Nonce
	}

	nonce, err := nonceFn()
	if err != nil {
		return nil, err
	}

	timeout := req.MaxTimeoutSeconds
	if timeout <= 0 {
		timeout = defaultMaxTimeoutSeconds
	}
	timeout = min(timeout, types.MaxTimeoutSecondsLimit)
	t := now()

	auth := types.EIP3009Authorization{
		From:        s.Address().Hex(),
		To:          payTo,
		Value:       value.String(),
		ValidAfter:  strconv.FormatInt(t.Add(-validAfterSkew).Unix(), 10),
		ValidBefore: strconv.FormatInt(t.Add(time.Duration(timeout)*time.Second).Unix(), 10),
		Nonce:       nonce,
	}

	typedData := TransferWithAuthorizationTypedData(chainID, name, version, req.Asset, auth)

	sig, err := s.SignTypedData(ctx, typedData)
	if err != nil {
		return nil, err
	}

	payload := &types.PaymentPayload{
		X402Version: x402Version,
		Payload: types.EIP3009Payload{
			Signature:     hexutil.Encode(sig),
			Authorization: auth,
		},
	}
	if x402Version == int(types.X402Version1) {
		payload.Scheme = req.Scheme
		payload.Network = req.Network
	} else {
		accepted := req
		payload.Accepted = &accepted
	}

	return payload, nil
}

// TransferWithAuthorizationTypedData builds the EIP-712 message signed for auth.
func TransferWithAuthorizationTypedData(
	chainID int64,
	name, version, asset string,
	auth types.EIP3009Authorization,
) apitypes.TypedData {
	return apitypes.TypedData{
		Types:       TransferWithAuthorizationTypes,
		PrimaryType: "TransferWithAuthorization",
		Domain: apitypes.TypedDataDomain{
			Name:              name,
			Version:           version,
			ChainId:           (*math.HexOrDecimal256)(big.NewInt(chainID)),
			VerifyingContract: utils.NormalizeAddress(asset),
		},
		Message: apitypes.TypedDataMessage{
			"from":        auth.From,
			"to":          auth.To,
			"value":       auth.Value,
			"validAfter":  auth.ValidAfter,
			"validBefore": auth.ValidBefore,
			"nonce":       auth.Nonce,
		},
	}
}

// tokenDomain takes the EIP-712 domain name and version from the requirement's extra
// fields, reading whichever is missing from the token contract.
func tokenDomain(ctx context.Context, s Signer, req types.PaymentRequirements) (string, string, error) {
	name := req.ExtraString("name")
	version := req.ExtraString("version")
	if name != "" && version != "" {
		return name, version, nil
	}

	token := clients.NewERC20(req.Asset, s)
	var err error
	if name == "" {
		if name, err = token.Name(ctx); err != nil {
			return "", "", fmt.Errorf("reading token name: %w", err)
		}
	}
	if version == "" {
		if version, err = token.Version(ctx); err != nil {
			return "", "", fmt.Errorf("reading token version: %w", err)
		}
	}
	return name, version, nil
}

func invalidRequirements(msg string) error {
	return &types.X402Error{
		Code:    types.ErrInvalidRequirements,
		Message: msg,
	}
}
