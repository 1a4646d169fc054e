package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenFileAbsent(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 2, cfg.Storage.DirectoryLevels)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	contents := `
[server]
port = 9000
admin_port = 9001
base_url = "https://cdn.example"

[storage]
directory_levels = 0

[rexpump]
enabled = true

[rexpump.networks.ethereum]
chain_id = 1
rpc_url = "https://rpc.example/eth"
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 0, cfg.Storage.DirectoryLevels)
	assert.True(t, cfg.RexPump.Enabled)
	assert.Equal(t, int64(1), cfg.RexPump.Networks["ethereum"].ChainID)
}

func TestValidateRejectsBadDirectoryLevels(t *testing.T) {
	cfg := Default()
	cfg.Storage.DirectoryLevels = 9
	err := validate(&cfg)
	assert.Error(t, err)
}

func TestValidateRejectsTrailingSlashBaseURL(t *testing.T) {
	cfg := Default()
	cfg.Server.BaseURL = "https://cdn.example/"
	err := validate(&cfg)
	assert.Error(t, err)
}

func TestEnvOverridesAPIKeys(t *testing.T) {
	t.Setenv("MEDIAVAULT_API_KEYS", "key-a,key-b")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	assert.Equal(t, []string{"key-a", "key-b"}, cfg.Auth.APIKeys)
}
