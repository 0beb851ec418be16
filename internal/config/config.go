// Package config loads per-instance configuration and scaffolds new
// instances. Each instance is a directory with a config.toml carrying one
// [modules.<id>] block per platform module; credential values may reference
// environment variables with ${VAR} syntax.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/gocortexio/gcgit/internal/logger"
)

// ConfigFileName is the per-instance configuration file.
const ConfigFileName = "config.toml"

// Environment fallbacks consulted when a config field resolves empty. These
// match the variables the Demisto/Cortex tooling ecosystem already uses, so
// gcgit can run in CI without a populated config file.
const (
	EnvFallbackFQDN     = "DEMISTO_BASE_URL"
	EnvFallbackAPIKey   = "DEMISTO_API_KEY"
	EnvFallbackAPIKeyID = "XSIAM_AUTH_ID"
)

// ModuleConfig holds the resolved credentials for one module of an instance.
type ModuleConfig struct {
	Enabled  bool
	FQDN     string
	APIKey   string
	APIKeyID string
}

// Manager loads instance configuration files.
type Manager struct{}

// NewManager creates a config manager.
func NewManager() *Manager {
	return &Manager{}
}

// LoadModuleConfig resolves the configuration for one module of an instance.
// The multi-module [modules.<id>] format is tried first; a legacy top-level
// [xsiam] block is honored for the xsiam module only.
func (m *Manager) LoadModuleConfig(instanceName, moduleID string) (ModuleConfig, error) {
	configPath := filepath.Join(instanceName, ConfigFileName)
	if _, err := os.Stat(configPath); err != nil {
		return ModuleConfig{}, fmt.Errorf("instance %q not found. Run 'gcgit init --instance %s' first", instanceName, instanceName)
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return ModuleConfig{}, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	prefix := "modules." + moduleID
	if !v.IsSet(prefix) {
		// Legacy single-module layout predates the [modules] table.
		if moduleID == "xsiam" && v.IsSet("xsiam") {
			prefix = "xsiam"
		} else {
			return ModuleConfig{}, fmt.Errorf("module %q not configured in instance %q", moduleID, instanceName)
		}
	}

	cfg := ModuleConfig{Enabled: true}
	if v.IsSet(prefix + ".enabled") {
		cfg.Enabled = v.GetBool(prefix + ".enabled")
	}

	var err error
	cfg.FQDN, err = resolveWithFallback(v.GetString(prefix+".fqdn"), EnvFallbackFQDN, "fqdn", moduleID)
	if err != nil {
		return ModuleConfig{}, err
	}
	cfg.APIKey, err = resolveWithFallback(v.GetString(prefix+".api_key"), EnvFallbackAPIKey, "api_key", moduleID)
	if err != nil {
		return ModuleConfig{}, err
	}
	cfg.APIKeyID, err = resolveWithFallback(v.GetString(prefix+".api_key_id"), EnvFallbackAPIKeyID, "api_key_id", moduleID)
	if err != nil {
		return ModuleConfig{}, err
	}

	return cfg, nil
}

// expandEnvVars resolves a whole-value ${VAR} reference. Unset or empty
// variables expand to the empty string so the fallback chain can run.
func expandEnvVars(input string) string {
	if strings.HasPrefix(input, "${") && strings.HasSuffix(input, "}") {
		return os.Getenv(input[2 : len(input)-1])
	}
	return input
}

// resolveWithFallback expands the configured value and, when it comes up
// empty, consults the ecosystem fallback variable. FQDN values are
// normalized to a bare host: scheme prefix and trailing slash stripped.
func resolveWithFallback(value, fallbackVar, fieldLabel, moduleID string) (string, error) {
	if expanded := expandEnvVars(value); expanded != "" {
		if fieldLabel == "fqdn" {
			return normalizeFQDN(expanded), nil
		}
		return expanded, nil
	}

	if fallback := os.Getenv(fallbackVar); fallback != "" {
		logger.Infof("Using %s as fallback for %s (module: %s)", fallbackVar, fieldLabel, moduleID)
		if fieldLabel == "fqdn" {
			return normalizeFQDN(fallback), nil
		}
		return fallback, nil
	}

	return "", fmt.Errorf("configuration field %q is empty and fallback variable %s is not set (module: %s)", fieldLabel, fallbackVar, moduleID)
}

func normalizeFQDN(fqdn string) string {
	fqdn = strings.TrimPrefix(fqdn, "https://")
	fqdn = strings.TrimPrefix(fqdn, "http://")
	return strings.TrimSuffix(fqdn, "/")
}

// ListInstances returns the names of directories under the working directory
// that contain a config.toml.
func ListInstances() ([]string, error) {
	entries, err := os.ReadDir(".")
	if err != nil {
		return nil, fmt.Errorf("failed to read working directory: %w", err)
	}

	var instances []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(entry.Name(), ConfigFileName)); err == nil {
			instances = append(instances, entry.Name())
		}
	}
	return instances, nil
}
