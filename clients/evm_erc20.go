package clients

import (
	"context"
	"fmt"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// ERC20MetadataABI covers the reads needed to build an EIP-3009 domain.
const ERC20MetadataABI = `[
  {"name":"name","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
  {"name":"version","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]}
]`

var erc20ABI = mustParseABI(ERC20MetadataABI)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}

// ERC20 reads token metadata through any ContractCaller
type ERC20 struct {
	caller ContractCaller
	token  common.Address
}

func NewERC20(token string, caller ContractCaller) *ERC20 {
	return &ERC20{caller: caller, token: common.HexToAddress(token)}
}

// Name returns the token's EIP-712 domain name.
func (e *ERC20) Name(ctx context.Context) (string, error) {
	return e.callString(ctx, "name")
}

// Version returns the token's EIP-712 domain version.
func (e *ERC20) Version(ctx context.Context) (string, error) {
	return e.callString(ctx, "version")
}

func (e *ERC20) callString(ctx context.Context, method string) (string, error) {
	out, err := e.call(ctx, method)
	if err != nil {
		return "", err
	}
	s, ok := out[0].(string)
	if !ok {
		return "", fmt.Errorf("%s: unexpected return type %T", method, out[0])
	}
	return s, nil
}

func (e *ERC20) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	data, err := erc20ABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: pack: %w", method, err)
	}

	res, err := e.caller.CallContract(ctx, ethereum.CallMsg{To: &e.token, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: call %s: %w", method, e.token.Hex(), err)
	}

	out, err := erc20ABI.Unpack(method, res)
	if err != nil {
		return nil, fmt.Errorf("%s: unpack: %w", method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s: empty result", method)
	}
	return out, nil
}
