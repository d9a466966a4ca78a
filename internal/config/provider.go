package config

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"
)

// DefaultProviderConfigPath is used when neither a flag nor DNS_PROVIDER_PATH
// names a provider config file.
const DefaultProviderConfigPath = "configs/dns-provider.yaml"

// ProviderConfig holds the DNS provider type and provider-specific
// connection settings.
type ProviderConfig struct {
	Provider string            `yaml:"provider"`
	Settings map[string]string `yaml:"settings"`
}

// ProviderConfigPath resolves the provider config location: an explicit path
// wins, then the DNS_PROVIDER_PATH environment variable, then the default.
func ProviderConfigPath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if path := os.Getenv("DNS_PROVIDER_PATH"); path != "" {
		return path
	}
	return DefaultProviderConfigPath
}

// LoadProviderConfig reads the DNS provider configuration from the path
// specified by the DNS_PROVIDER_PATH environment variable, defaulting to
// "configs/dns-provider.yaml".
func LoadProviderConfig() (*ProviderConfig, error) {
	return LoadProviderConfigFromPath(ProviderConfigPath(""))
}

// LoadProviderConfigFromPath reads the DNS provider configuration from the
// given file path.
func LoadProviderConfigFromPath(path string) (*ProviderConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading provider config file: %w", err)
	}

	var cfg ProviderConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing provider config file: %w", err)
	}

	if cfg.Provider == "" {
		return nil, fmt.Errorf("provider config: missing required field 'provider'")
	}
	if cfg.Settings == nil {
		cfg.Settings = map[string]string{}
	}

	// Expand ${ENV_VAR} references in setting values.
	for k, v := range cfg.Settings {
		cfg.Settings[k] = os.ExpandEnv(v)
	}

	return &cfg, nil
}
