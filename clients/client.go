package clients

import (
	"context"
	"math/big"

	ethereum "github.com/ethereum/go-ethereum"
)

// ContractCaller is the read-only chain access a signing scheme may use
// to inspect on-chain state before producing an authorization.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}
