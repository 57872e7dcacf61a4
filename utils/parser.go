package utils

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/primsh/x402fetch/types"
	"gopkg.in/yaml.v3"
)

var validate *validator.Validate

func init() {
	validate = validator.New()

	// Register custom validators
	if err := validate.RegisterValidation("atomic", validateAtomicTag); err != nil {
		panic(err)
	}
	if err := validate.RegisterValidation("decimal_amount", validateDecimalAmountTag); err != nil {
		panic(err)
	}
}

func validateAtomicTag(fl validator.FieldLevel) bool {
	_, err := ParseAtomic(fl.Field().String())
	return err == nil
}

func validateDecimalAmountTag(fl validator.FieldLevel) bool {
	_, err := ValidateAmount(fl.Field().String())
	return err == nil
}

// challengeHeaders lists the accepted challenge header names in precedence order.
var challengeHeaders = []string{
	types.HeaderPaymentRequired,
	types.HeaderLegacyPaymentRequired,
}

// ChallengeHeader returns the first non-empty challenge header value, or "".
func ChallengeHeader(h http.Header) string {
	for _, name := range challengeHeaders {
		if v := strings.TrimSpace(h.Get(name)); v != "" {
			return v
		}
	}
	return ""
}

// DecodePaymentRequired parses a challenge header into the offered payment options.
// The value is base64 (standard or URL alphabet) encoded JSON; raw JSON is also accepted.
func DecodePaymentRequired(value string) (*types.PaymentRequiredResponse, error) {
	raw, err := decodeHeaderValue(value)
	if err != nil {
		return nil, err
	}

	var resp types.PaymentRequiredResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, &types.X402Error{
			Code:    types.ErrInvalidRequirements,
			Message: fmt.Sprintf("failed to parse payment requirements: %v", err),
		}
	}

	// Validate using struct tags
	if err := validate.Struct(&resp); err != nil {
		return nil, &types.X402Error{
			Code:    types.ErrInvalidRequirements,
			Message: fmt.Sprintf("validation failed: %v", err),
		}
	}

	for i := range resp.Accepts {
		if err := resp.Accepts[i].Validate(); err != nil {
			return nil, &types.X402Error{
				Code:    types.ErrInvalidRequirements,
				Message: fmt.Sprintf("accepts[%d]: %v", i, err),
			}
		}
	}

	if resp.X402Version == 0 {
		// v1 servers price with maxAmountRequired
		resp.X402Version = int(types.X402Version2)
		if resp.Accepts[0].Amount == "" {
			resp.X402Version = int(types.X402Version1)
		}
	}

	return &resp, nil
}

func decodeHeaderValue(value string) ([]byte, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, &types.X402Error{
			Code:    types.ErrInvalidRequirements,
			Message: "empty payment requirements header",
		}
	}

	if strings.HasPrefix(value, "{") {
		return []byte(value), nil
	}

	for _, enc := range []*base64.Encoding{
		base64.StdEncoding,
		base64.URLEncoding,
		base64.RawStdEncoding,
		base64.RawURLEncoding,
	} {
		if b, err := enc.DecodeString(value); err == nil {
			return b, nil
		}
	}

	return nil, &types.X402Error{
		Code:    types.ErrInvalidRequirements,
		Message: "payment requirements header is not base64 or JSON",
	}
}

// SelectRequirement picks the option to pay. Servers order options by preference,
// so this is always the first one.
func SelectRequirement(resp *types.PaymentRequiredResponse) (types.PaymentRequirements, error) {
	if resp == nil || len(resp.Accepts) == 0 {
		return types.PaymentRequirements{}, &types.X402Error{
			Code:    types.ErrInvalidRequirements,
			Message: "no payment options offered",
		}
	}
	return resp.Accepts[0], nil
}

// IsSettlementFailure reports whether a 402 body carries the settlement-failure marker.
// Anything that is not a JSON object with that exact error string is not a settlement failure.
func IsSettlementFailure(body []byte) bool {
	var se types.SettlementError
	if err := json.Unmarshal(body, &se); err != nil {
		return false
	}
	return se.Error == types.SettlementFailedMarker
}

// EncodePaymentPayload converts a signed payload to the base64 JSON header value
func EncodePaymentPayload(payload *types.PaymentPayload) (string, error) {
	bz, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payment payload: %w", err)
	}
	return base64.StdEncoding.EncodeToString(bz), nil
}

// DecodePaymentPayload is the inverse of EncodePaymentPayload
func DecodePaymentPayload(header string) (*types.PaymentPayload, error) {
	bz, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		return nil, &types.X402Error{
			Code:    types.ErrInvalidPayload,
			Message: fmt.Sprintf("failed to decode base64: %v", err),
		}
	}

	var payload types.PaymentPayload
	if err := json.Unmarshal(bz, &payload); err != nil {
		return nil, &types.X402Error{
			Code:    types.ErrInvalidPayload,
			Message: fmt.Sprintf("failed to parse JSON: %v", err),
		}
	}
	return &payload, nil
}

// ParseFetchConfig parses FetchConfig from JSON
func ParseFetchConfig(data []byte) (*types.FetchConfig, error) {
	var config types.FetchConfig

	if err := json.Unmarshal(data, &config); err != nil {
		return nil, &types.X402Error{
			Code:    types.ErrConfigError,
			Message: fmt.Sprintf("failed to parse fetch config: %v", err),
		}
	}

	if err := ValidateFetchConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// LoadFetchConfig reads a YAML or JSON config file. ${VAR_NAME} references are
// expanded from the environment before parsing.
func LoadFetchConfig(path string) (*types.FetchConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := []byte(expandEnvVars(string(data)))

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return ParseFetchConfig(expanded)
	}

	var config types.FetchConfig
	dec := yaml.NewDecoder(bytes.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(&config); err != nil {
		return nil, &types.X402Error{
			Code:    types.ErrConfigError,
			Message: fmt.Sprintf("failed to parse fetch config: %v", err),
		}
	}

	if err := ValidateFetchConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// ValidateFetchConfig checks struct tags on a FetchConfig.
func ValidateFetchConfig(config *types.FetchConfig) error {
	if err := validate.Struct(config); err != nil {
		return &types.X402Error{
			Code:    types.ErrConfigError,
			Message: fmt.Sprintf("validation failed: %v", err),
		}
	}
	return nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} with the variable's value, or "" when unset.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
}
