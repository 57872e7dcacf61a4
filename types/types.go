package types

import (
	"fmt"
	"time"
)

// X402Version represents the version of the x402 protocol
type X402Version int

const (
	X402Version1 X402Version = 1
	X402Version2 X402Version = 2
)

// PaymentScheme represents different payment schemes
type PaymentScheme string

const (
	SchemeExact PaymentScheme = "exact"
)

// Header names used on the wire.
const (
	// Challenge headers returned with a 402, first present wins.
	HeaderPaymentRequired       = "PAYMENT-REQUIRED"
	HeaderLegacyPaymentRequired = "X-PAYMENT-REQUIRED"

	// Authorization headers sent on the paid retry.
	HeaderPaymentSignature = "PAYMENT-SIGNATURE"
	HeaderLegacyPayment    = "X-PAYMENT"
)

// MaxTimeoutSecondsLimit bounds the authorization validity window a server may request.
const MaxTimeoutSecondsLimit = 365 * 24 * 60 * 60

// SettlementFailedMarker is the `error` value a server puts in a 402 body when it accepted
// the authorization but could not settle it.
const SettlementFailedMarker = "Settlement failed"

// PaymentRequirements defines the requirements a resource server accepts for payment.
type PaymentRequirements struct {
	// Scheme of the payment protocol to use (e.g., "exact").
	Scheme string `json:"scheme" validate:"required"`

	// Network of the blockchain to send payment on, CAIP-2 ("eip155:8453") or legacy name.
	Network string `json:"network" validate:"required"`

	// Amount in atomic units of the asset (protocol v2).
	Amount string `json:"amount,omitempty" validate:"omitempty,atomic"`

	// Maximum amount required in atomic units (protocol v1).
	// Represented as a string because Go does not support uint256.
	MaxAmountRequired string `json:"maxAmountRequired,omitempty" validate:"omitempty,atomic"`

	// URL of the resource to pay for.
	Resource string `json:"resource,omitempty"`

	// Description of the resource being purchased.
	Description string `json:"description,omitempty"`

	// MIME type of the resource response (e.g., "application/json").
	MimeType string `json:"mimeType,omitempty"`

	// Address to which the payment must be sent.
	PayTo string `json:"payTo" validate:"required"`

	// Maximum time in seconds for the resource server to respond.
	MaxTimeoutSeconds int `json:"maxTimeoutSeconds,omitempty" validate:"gte=0,lte=31536000"`

	// Address of the EIP-3009 compliant ERC20 contract.
	Asset string `json:"asset" validate:"required"`

	// Extra information about payment details specific to the scheme.
	// For the `exact` scheme on EVM, this may include fields like `name` and `version`.
	Extra map[string]interface{} `json:"extra,omitempty"`
}

// AtomicAmount returns the amount in atomic units, whichever protocol version carried it.
func (pr *PaymentRequirements) AtomicAmount() string {
	if pr.Amount != "" {
		return pr.Amount
	}
	return pr.MaxAmountRequired
}

// ExtraString returns a string field of Extra, or "" when absent or not a string.
func (pr *PaymentRequirements) ExtraString(key string) string {
	if pr.Extra == nil {
		return ""
	}
	s, _ := pr.Extra[key].(string)
	return s
}

// PaymentRequiredResponse is the decoded challenge: the options a server accepts.
type PaymentRequiredResponse struct {
	// Version of the x402 payment protocol.
	X402Version int `json:"x402Version"`

	// List of payment requirements that the resource server accepts.
	Accepts []PaymentRequirements `json:"accepts" validate:"required,min=1,dive"`

	// Message from the resource server indicating any processing error.
	Error string `json:"error,omitempty"`

	Resource string `json:"resource,omitempty"`
}

// PaymentPayload is the signed authorization sent back to the server.
// Version 2 carries the accepted requirements; version 1 carries scheme and network.
type PaymentPayload struct {
	X402Version int `json:"x402Version"`

	Scheme  string `json:"scheme,omitempty"`
	Network string `json:"network,omitempty"`

	Accepted *PaymentRequirements `json:"accepted,omitempty"`

	Payload EIP3009Payload `json:"payload"`
}

type EIP3009Payload struct {
	Signature     string               `json:"signature"` // The 65-byte ECDSA signature (v,r,s)
	Authorization EIP3009Authorization `json:"authorization"`
}

type EIP3009Authorization struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"`       // uint256
	ValidAfter  string `json:"validAfter"`  // uint256 timestamp
	ValidBefore string `json:"validBefore"` // uint256 timestamp
	Nonce       string `json:"nonce"`       // bytes32
}

// SettlementError is the JSON body shape checked on a 402 after a paid retry.
type SettlementError struct {
	Error string `json:"error"`
}

// FetchConfig contains the serialisable configuration of a payment-aware client.
type FetchConfig struct {
	// PrivateKey is a hex secp256k1 key used to derive the signing identity.
	PrivateKey string `json:"privateKey,omitempty" yaml:"private_key"`

	// Keystore selects a credential-store identity, loaded on first payment.
	Keystore *KeystoreRef `json:"keystore,omitempty" yaml:"keystore"`

	// MaxPayment is the inclusive per-request ceiling in decimal currency units.
	MaxPayment string `json:"maxPayment,omitempty" yaml:"max_payment" validate:"omitempty,decimal_amount"`

	// Network overrides the process-wide default network.
	Network string `json:"network,omitempty" yaml:"network"`

	// RetryOnSettlementFailure enables the single re-signed retry. Defaults to true.
	RetryOnSettlementFailure *bool `json:"retryOnSettlementFailure,omitempty" yaml:"retry_on_settlement_failure"`

	Timeout       time.Duration `json:"timeout,omitempty" yaml:"timeout" validate:"gte=0"`
	LogLevel      string        `json:"logLevel,omitempty" yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`
	EnableMetrics bool          `json:"enableMetrics,omitempty" yaml:"enable_metrics"`
}

// SettlementRecovery reports whether the settlement-failure retry is enabled.
func (c *FetchConfig) SettlementRecovery() bool {
	return c.RetryOnSettlementFailure == nil || *c.RetryOnSettlementFailure
}

// Error types
type X402Error struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e X402Error) Error() string {
	return e.Message
}

// Common error codes
const (
	ErrInvalidPayload      = "INVALID_PAYLOAD"
	ErrInvalidRequirements = "INVALID_REQUIREMENTS"
	ErrUnsupportedNetwork  = "UNSUPPORTED_NETWORK"
	ErrUnsupportedScheme   = "UNSUPPORTED_SCHEME"
	ErrSpendCapExceeded    = "SPEND_CAP_EXCEEDED"
	ErrKeystore            = "KEYSTORE_ERROR"
	ErrConfigError         = "CONFIG_ERROR"
)

// SpendCapDetail is attached to SPEND_CAP_EXCEEDED errors.
type SpendCapDetail struct {
	Requested string `json:"requested"`
	Ceiling   string `json:"ceiling"`
}

func (pr *PaymentRequirements) Validate() error {
	if pr.Scheme == "" {
		return fmt.Errorf("paymentRequirements.scheme is required")
	}

	if pr.Network == "" {
		return fmt.Errorf("paymentRequirements.network is required")
	}

	if pr.AtomicAmount() == "" {
		return fmt.Errorf("paymentRequirements.amount is required")
	}

	if pr.PayTo == "" {
		return fmt.Errorf("paymentRequirements.payTo is required")
	}

	if pr.Asset == "" {
		return fmt.Errorf("paymentRequirements.asset is required")
	}

	if pr.MaxTimeoutSeconds < 0 {
		return fmt.Errorf("paymentRequirements.maxTimeoutSeconds must not be negative")
	}

	if pr.MaxTimeoutSeconds > MaxTimeoutSecondsLimit {
		return fmt.Errorf("paymentRequirements.maxTimeoutSeconds must not exceed %d", MaxTimeoutSecondsLimit)
	}

	return nil
}
