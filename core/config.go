package core

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultBaseURL        = "https://api.alitrip.alibaba.com"
	DefaultSandboxBaseURL = "https://pre-api.alitrip.alibaba.com"
	DefaultCustomAPIBase  = "https://api.alitrip.alibaba.com/api/v1/hotelticket"

	// OpenPlatformPath is the fixed gateway path for dot-named methods.
	OpenPlatformPath = "/router/rest"

	defaultTimeout = 30 * time.Second
)

// Config is the immutable partner credential and endpoint surface. It is
// loaded once at construction; the client never mutates it afterwards.
type Config struct {
	// DistributorID is the partner-assigned distributor/tenant identifier.
	DistributorID string `koanf:"distributor_id" mapstructure:"distributor_id"`
	// AppKey identifies the application on the open-platform gateway. Only
	// required for dot-named (open platform) methods.
	AppKey string `koanf:"app_key" mapstructure:"app_key"`
	// PrivateKey is the RSA signing key, PEM encoded or bare base64 DER.
	PrivateKey string `koanf:"private_key" mapstructure:"private_key"`
	// PublicKey verifies inbound push signatures. Optional: without it the
	// webhook verifier fails closed.
	PublicKey string `koanf:"public_key" mapstructure:"public_key"`

	BaseURL        string `koanf:"base_url" mapstructure:"base_url"`
	SandboxBaseURL string `koanf:"sandbox_base_url" mapstructure:"sandbox_base_url"`
	UseSandbox     bool   `koanf:"use_sandbox" mapstructure:"use_sandbox"`
	CustomAPIBase  string `koanf:"custom_api_base" mapstructure:"custom_api_base"`

	// Format is the response format requested from the gateway.
	Format  string        `koanf:"format" mapstructure:"format"`
	Timeout time.Duration `koanf:"timeout" mapstructure:"timeout"`
}

func DefaultConfig() Config {
	return Config{
		BaseURL:        DefaultBaseURL,
		SandboxBaseURL: DefaultSandboxBaseURL,
		CustomAPIBase:  DefaultCustomAPIBase,
		Format:         "json",
		Timeout:        defaultTimeout,
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.DistributorID) == "" {
		return fmt.Errorf("core: distributor_id is required")
	}
	if strings.TrimSpace(c.PrivateKey) == "" {
		return fmt.Errorf("core: private_key is required")
	}
	if err := validateBaseURL(c.BaseURL, "base_url"); err != nil {
		return err
	}
	if c.UseSandbox {
		if err := validateBaseURL(c.SandboxBaseURL, "sandbox_base_url"); err != nil {
			return err
		}
	}
	if err := validateBaseURL(c.CustomAPIBase, "custom_api_base"); err != nil {
		return err
	}
	return nil
}

// ResolveBaseURL picks the open-platform gateway root honoring the sandbox
// switch. The trailing slash is stripped so OpenPlatformPath can be appended.
func (c Config) ResolveBaseURL() string {
	base := c.BaseURL
	if c.UseSandbox && strings.TrimSpace(c.SandboxBaseURL) != "" {
		base = c.SandboxBaseURL
	}
	return strings.TrimRight(strings.TrimSpace(base), "/")
}

func (c Config) ResolveCustomAPIBase() string {
	return strings.TrimRight(strings.TrimSpace(c.CustomAPIBase), "/")
}

func (c Config) ResolveTimeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return defaultTimeout
}

func validateBaseURL(value string, field string) error {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fmt.Errorf("core: %s is required", field)
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return fmt.Errorf("core: parse %s: %w", field, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("core: %s must include an http(s) scheme", field)
	}
	if parsed.Host == "" {
		return fmt.Errorf("core: %s must include a host", field)
	}
	return nil
}
