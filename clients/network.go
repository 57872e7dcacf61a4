package clients

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/primsh/x402fetch/types"
)

// Environment variables consulted by ResolveNetwork.
const (
	EnvNetwork = "X402_NETWORK"
	EnvRPCUrl  = "X402_RPC_URL"
)

// EVMChainRPC maps chain ids to their default public RPC endpoints.
var EVMChainRPC = map[int64]string{
	8453:  "https://mainnet.base.org",
	84532: "https://sepolia.base.org",
	137:   "https://polygon-rpc.com",
	80002: "https://rpc-amoy.polygon.technology",
}

// legacyNetworks maps v1 network names to CAIP-2 identifiers.
var legacyNetworks = map[string]types.Network{
	"base":         types.NetworkBase,
	"base-sepolia": types.NetworkBaseSepolia,
	"polygon":      types.NetworkPolygon,
	"polygon-amoy": types.NetworkPolygonAmoy,
}

// ResolveNetwork picks the network from override, then X402_NETWORK, then the
// built-in default, and attaches an RPC endpoint. X402_RPC_URL replaces the
// default endpoint for whichever chain was chosen.
func ResolveNetwork(override string) (types.NetworkConfig, error) {
	name := strings.TrimSpace(override)
	if name == "" {
		name = strings.TrimSpace(os.Getenv(EnvNetwork))
	}
	if name == "" {
		name = types.DefaultNetwork.String()
	}

	network, chainID, err := NormalizeNetwork(name)
	if err != nil {
		return types.NetworkConfig{}, err
	}

	rpcURL := strings.TrimSpace(os.Getenv(EnvRPCUrl))
	if rpcURL == "" {
		rpcURL = EVMChainRPC[chainID]
	}
	if rpcURL == "" {
		return types.NetworkConfig{}, &types.X402Error{
			Code:    types.ErrUnsupportedNetwork,
			Message: fmt.Sprintf("no RPC endpoint known for %s; set %s", network, EnvRPCUrl),
		}
	}

	return types.NetworkConfig{
		Network: network,
		ChainID: chainID,
		RPCUrl:  rpcURL,
	}, nil
}

// NormalizeNetwork converts a CAIP-2 or legacy network name to its CAIP-2 form and chain id.
func NormalizeNetwork(name string) (types.Network, int64, error) {
	if n, ok := legacyNetworks[strings.ToLower(name)]; ok {
		name = n.String()
	}

	ref, ok := strings.CutPrefix(name, "eip155:")
	if !ok {
		return "", 0, &types.X402Error{
			Code:    types.ErrUnsupportedNetwork,
			Message: fmt.Sprintf("unsupported network: %s", name),
		}
	}

	chainID, err := strconv.ParseInt(ref, 10, 64)
	if err != nil || chainID <= 0 {
		return "", 0, &types.X402Error{
			Code:    types.ErrUnsupportedNetwork,
			Message: fmt.Sprintf("invalid chain id in network %s", name),
		}
	}

	return types.Network(name), chainID, nil
}

// ChainIDFor returns the EVM chain id of a network name.
func ChainIDFor(network string) (int64, error) {
	_, chainID, err := NormalizeNetwork(network)
	return chainID, err
}
