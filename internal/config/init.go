package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocortexio/gcgit/internal/gitrepo"
	"github.com/gocortexio/gcgit/internal/modules"
)

// configTemplate is written to new instances. Credentials stay in the
// environment; the file only carries ${VAR} references.
const configTemplate = `instance_name = %q

[modules.xsiam]
enabled = true
fqdn = "${XSIAM_FQDN}"
api_key = "${XSIAM_API_KEY}"
api_key_id = "${XSIAM_API_KEY_ID}"

[modules.appsec]
enabled = true
fqdn = "${XSIAM_FQDN}"
api_key = "${XSIAM_API_KEY}"
api_key_id = "${XSIAM_API_KEY_ID}"
`

// gitignoreContent keeps config files (and the credentials they may carry)
// out of version control.
const gitignoreContent = "*.toml\n"

// InitInstance scaffolds a new instance: the directory tree for every module
// and content type, a config.toml template, a Git repository and a
// .gitignore excluding TOML files.
func (m *Manager) InitInstance(instanceName string, registry *modules.Registry) error {
	if err := os.MkdirAll(instanceName, 0o750); err != nil {
		return fmt.Errorf("failed to create instance directory %s: %w", instanceName, err)
	}

	for _, mod := range registry.All() {
		for _, ct := range mod.ContentTypes() {
			dir := filepath.Join(instanceName, mod.ID(), ct.Name)
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return fmt.Errorf("failed to create content type directory %s: %w", dir, err)
			}
		}
	}

	configPath := filepath.Join(instanceName, ConfigFileName)
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("instance %q already has a %s", instanceName, ConfigFileName)
	}
	content := fmt.Sprintf(configTemplate, instanceName)
	if err := os.WriteFile(configPath, []byte(content), 0o600); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", configPath, err)
	}

	if err := gitrepo.Init(instanceName); err != nil {
		return err
	}

	gitignorePath := filepath.Join(instanceName, ".gitignore")
	if err := os.WriteFile(gitignorePath, []byte(gitignoreContent), 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", gitignorePath, err)
	}

	return nil
}
