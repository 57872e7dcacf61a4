package clients

import (
	"context"
	"fmt"
	"math/big"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/primsh/x402fetch/types"
)

var _ ContractCaller = (*EVMReader)(nil)

// EVMReader provides read-only Ethereum RPC access bound to one network
type EVMReader struct {
	client *ethclient.Client
}

// NewEVMReader dials the network's RPC endpoint. HTTP endpoints connect lazily,
// so no request is made until the first call.
func NewEVMReader(ctx context.Context, network types.NetworkConfig) (*EVMReader, error) {
	client, err := ethclient.DialContext(ctx, network.RPCUrl)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Ethereum RPC: %w", err)
	}

	return &EVMReader{client: client}, nil
}

// CallContract implements ContractCaller.
func (e *EVMReader) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return e.client.CallContract(ctx, msg, blockNumber)
}

// Close releases the RPC connection.
func (e *EVMReader) Close() {
	e.client.Close()
}
