package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gocortexio/gcgit/internal/config"
	"github.com/gocortexio/gcgit/internal/modules"
)

func writeInstanceConfig(t *testing.T, dir, content string) string {
	t.Helper()

	instanceDir := filepath.Join(dir, "default")
	require.NoError(t, os.MkdirAll(instanceDir, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(instanceDir, config.ConfigFileName), []byte(content), 0o600))
	return instanceDir
}

func TestLoadModuleConfig_MultiModuleFormat(t *testing.T) {
	instanceDir := writeInstanceConfig(t, t.TempDir(), `
instance_name = "default"

[modules.xsiam]
enabled = true
fqdn = "tenant.xdr.us.paloaltonetworks.com"
api_key = "secret"
api_key_id = "42"

[modules.appsec]
enabled = false
fqdn = "tenant.xdr.us.paloaltonetworks.com"
api_key = "secret"
api_key_id = "42"
`)

	manager := config.NewManager()

	xsiam, err := manager.LoadModuleConfig(instanceDir, "xsiam")
	require.NoError(t, err)
	assert.True(t, xsiam.Enabled)
	assert.Equal(t, "tenant.xdr.us.paloaltonetworks.com", xsiam.FQDN)
	assert.Equal(t, "secret", xsiam.APIKey)
	assert.Equal(t, "42", xsiam.APIKeyID)

	appsec, err := manager.LoadModuleConfig(instanceDir, "appsec")
	require.NoError(t, err)
	assert.False(t, appsec.Enabled)
}

func TestLoadModuleConfig_LegacyXsiamBlock(t *testing.T) {
	instanceDir := writeInstanceConfig(t, t.TempDir(), `
instance_name = "default"

[xsiam]
fqdn = "legacy.example.com"
api_key = "legacy-key"
api_key_id = "7"
`)

	manager := config.NewManager()

	cfg, err := manager.LoadModuleConfig(instanceDir, "xsiam")
	require.NoError(t, err)
	assert.True(t, cfg.Enabled)
	assert.Equal(t, "legacy.example.com", cfg.FQDN)

	_, err = manager.LoadModuleConfig(instanceDir, "appsec")
	require.Error(t, err, "legacy format only covers xsiam")
}

func TestLoadModuleConfig_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_GCGIT_FQDN", "https://env.example.com/")
	t.Setenv("TEST_GCGIT_KEY", "env-key")
	t.Setenv("TEST_GCGIT_KEY_ID", "9")

	instanceDir := writeInstanceConfig(t, t.TempDir(), `
instance_name = "default"

[modules.xsiam]
fqdn = "${TEST_GCGIT_FQDN}"
api_key = "${TEST_GCGIT_KEY}"
api_key_id = "${TEST_GCGIT_KEY_ID}"
`)

	cfg, err := config.NewManager().LoadModuleConfig(instanceDir, "xsiam")
	require.NoError(t, err)
	assert.Equal(t, "env.example.com", cfg.FQDN, "scheme and trailing slash are stripped")
	assert.Equal(t, "env-key", cfg.APIKey)
	assert.Equal(t, "9", cfg.APIKeyID)
}

func TestLoadModuleConfig_EcosystemFallbacks(t *testing.T) {
	t.Setenv("TEST_GCGIT_UNSET", "")
	t.Setenv(config.EnvFallbackFQDN, "https://fallback.example.com")
	t.Setenv(config.EnvFallbackAPIKey, "fallback-key")
	t.Setenv(config.EnvFallbackAPIKeyID, "11")

	instanceDir := writeInstanceConfig(t, t.TempDir(), `
instance_name = "default"

[modules.xsiam]
fqdn = "${TEST_GCGIT_UNSET}"
api_key = ""
api_key_id = ""
`)

	cfg, err := config.NewManager().LoadModuleConfig(instanceDir, "xsiam")
	require.NoError(t, err)
	assert.Equal(t, "fallback.example.com", cfg.FQDN)
	assert.Equal(t, "fallback-key", cfg.APIKey)
	assert.Equal(t, "11", cfg.APIKeyID)
}

func TestLoadModuleConfig_MissingCredentialFails(t *testing.T) {
	t.Setenv(config.EnvFallbackAPIKey, "")

	instanceDir := writeInstanceConfig(t, t.TempDir(), `
instance_name = "default"

[modules.xsiam]
fqdn = "tenant.example.com"
api_key = ""
api_key_id = "1"
`)

	_, err := config.NewManager().LoadModuleConfig(instanceDir, "xsiam")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api_key")
	assert.Contains(t, err.Error(), config.EnvFallbackAPIKey)
}

func TestLoadModuleConfig_MissingInstance(t *testing.T) {
	t.Parallel()

	_, err := config.NewManager().LoadModuleConfig(filepath.Join(t.TempDir(), "ghost"), "xsiam")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestInitInstance(t *testing.T) {
	t.Chdir(t.TempDir())

	registry := modules.NewRegistry()
	manager := config.NewManager()
	require.NoError(t, manager.InitInstance("prod", registry))

	// Config template, Git repository and .gitignore exist.
	assert.FileExists(t, filepath.Join("prod", config.ConfigFileName))
	assert.DirExists(t, filepath.Join("prod", ".git"))
	gitignore, err := os.ReadFile(filepath.Join("prod", ".gitignore"))
	require.NoError(t, err)
	assert.Equal(t, "*.toml\n", string(gitignore))

	// Every module and content type gets its directory.
	for _, mod := range registry.All() {
		for _, ct := range mod.ContentTypes() {
			assert.DirExists(t, filepath.Join("prod", mod.ID(), ct.Name))
		}
	}

	// Re-initializing must not clobber an existing config.
	err = manager.InitInstance("prod", registry)
	require.Error(t, err)

	instances, err := config.ListInstances()
	require.NoError(t, err)
	assert.Equal(t, []string{"prod"}, instances)
}
