package payment

import (
	"fmt"
	"strconv"
	"strings"
)

// Setting keys understood by the Stripe providers.
const (
	SettingFormURL              = "form_url"
	SettingContinueURL          = "continue_url"
	SettingCancelURL            = "cancel_url"
	SettingCapture              = "capture"
	SettingMode                 = "mode"
	SettingValidateCVC          = "validate_cvc"
	SettingValidateAddress      = "validate_address"
	SettingAddressPropertyAlias = "address_property_alias"
	SettingValidateZipCode      = "validate_zipcode"
	SettingZipCodePropertyAlias = "zipcode_property_alias"
	SettingValidateCountry      = "validate_country"
	SettingPlanPropertyAlias    = "plan_property_alias"
	SettingEmailPropertyAlias   = "email_property_alias"
)

const (
	ModeTest = "test"
	ModeLive = "live"
)

// ConfigurationError reports a required setting that is missing or invalid.
type ConfigurationError struct {
	Key    string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("payment: setting %q is required", e.Key)
	}
	return fmt.Sprintf("payment: setting %q: %s", e.Key, e.Reason)
}

// Settings is the string-keyed configuration of one payment provider.
type Settings map[string]string

// Get returns a trimmed value, empty when absent.
func (s Settings) Get(key string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(s[key])
}

// Require returns the value of key or a ConfigurationError when it is empty.
func (s Settings) Require(key string) (string, error) {
	v := s.Get(key)
	if v == "" {
		return "", &ConfigurationError{Key: key}
	}
	return v, nil
}

// Bool parses a toggle; anything unparsable counts as off.
func (s Settings) Bool(key string) bool {
	v, err := strconv.ParseBool(s.Get(key))
	return err == nil && v
}

// Mode returns "test" or "live". It defaults to test when unset.
func (s Settings) Mode() (string, error) {
	mode := strings.ToLower(s.Get(SettingMode))
	switch mode {
	case "":
		return ModeTest, nil
	case ModeTest, ModeLive:
		return mode, nil
	default:
		return "", &ConfigurationError{Key: SettingMode, Reason: "must be test or live"}
	}
}

func (s Settings) modeKey(suffix string) (string, error) {
	mode, err := s.Mode()
	if err != nil {
		return "", err
	}
	return s.Require(mode + "_" + suffix)
}

// SecretKey returns the secret API key for the configured mode.
func (s Settings) SecretKey() (string, error) {
	return s.modeKey("secret_key")
}

// PublicKey returns the publishable key for the configured mode.
func (s Settings) PublicKey() (string, error) {
	return s.modeKey("public_key")
}

// WebhookSecret returns the signing secret for the configured mode, if any.
func (s Settings) WebhookSecret() string {
	mode, err := s.Mode()
	if err != nil {
		return ""
	}
	return s.Get("webhook_secret_" + mode)
}

// ValidationOptions are the merchant-toggled checks applied to a new charge.
type ValidationOptions struct {
	CVC                  bool
	Address              bool
	AddressPropertyAlias string
	ZipCode              bool
	ZipCodePropertyAlias string
	Country              bool
	Capture              bool
}

// ValidationOptions reads the check toggles.
func (s Settings) ValidationOptions() ValidationOptions {
	return ValidationOptions{
		CVC:                  s.Bool(SettingValidateCVC),
		Address:              s.Bool(SettingValidateAddress),
		AddressPropertyAlias: s.Get(SettingAddressPropertyAlias),
		ZipCode:              s.Bool(SettingValidateZipCode),
		ZipCodePropertyAlias: s.Get(SettingZipCodePropertyAlias),
		Country:              s.Bool(SettingValidateCountry),
		Capture:              s.Bool(SettingCapture),
	}
}
