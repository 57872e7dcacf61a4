package types

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Network represents a blockchain network identifier.
// CAIP-2 form ("eip155:8453") is canonical; legacy names are accepted on input.
type Network string

const (
	NetworkBase        Network = "eip155:8453"
	NetworkBaseSepolia Network = "eip155:84532"
	NetworkPolygon     Network = "eip155:137"
	NetworkPolygonAmoy Network = "eip155:80002"

	// DefaultNetwork is used when neither an override nor X402_NETWORK is set.
	DefaultNetwork = NetworkBase
)

func (n Network) String() string {
	return string(n)
}

// NetworkConfig is the resolved chain a client pays on.
type NetworkConfig struct {
	Network Network `json:"network"`
	ChainID int64   `json:"chainId"`
	RPCUrl  string  `json:"rpcUrl"`
}

// KeystoreRef points at an identity held in a credential store.
// In JSON and YAML it is either `true` (use the default key) or
// an object `{address, passphrase}`.
type KeystoreRef struct {
	Default    bool   `json:"-" yaml:"-"`
	Address    string `json:"address,omitempty" yaml:"address"`
	Passphrase string `json:"passphrase,omitempty" yaml:"passphrase"`
}

// Enabled reports whether the reference selects any keystore identity.
func (k *KeystoreRef) Enabled() bool {
	return k != nil && (k.Default || k.Address != "" || k.Passphrase != "")
}

type keystoreRefFields struct {
	Address    string `json:"address,omitempty" yaml:"address"`
	Passphrase string `json:"passphrase,omitempty" yaml:"passphrase"`
}

func (k *KeystoreRef) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	switch {
	case bytes.Equal(trimmed, []byte("true")):
		*k = KeystoreRef{Default: true}
		return nil
	case bytes.Equal(trimmed, []byte("false")), bytes.Equal(trimmed, []byte("null")):
		*k = KeystoreRef{}
		return nil
	}

	var f keystoreRefFields
	if err := json.Unmarshal(trimmed, &f); err != nil {
		return fmt.Errorf("keystore must be true or {address, passphrase}: %w", err)
	}
	*k = KeystoreRef{Default: true, Address: f.Address, Passphrase: f.Passphrase}
	return nil
}

func (k KeystoreRef) MarshalJSON() ([]byte, error) {
	if k.Address == "" && k.Passphrase == "" {
		return json.Marshal(k.Default)
	}
	return json.Marshal(keystoreRefFields{Address: k.Address, Passphrase: k.Passphrase})
}

func (k *KeystoreRef) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		var b bool
		if err := value.Decode(&b); err != nil {
			return fmt.Errorf("keystore must be true or {address, passphrase}: %w", err)
		}
		*k = KeystoreRef{Default: b}
		return nil
	}

	var f keystoreRefFields
	if err := value.Decode(&f); err != nil {
		return fmt.Errorf("keystore must be true or {address, passphrase}: %w", err)
	}
	*k = KeystoreRef{Default: true, Address: f.Address, Passphrase: f.Passphrase}
	return nil
}
