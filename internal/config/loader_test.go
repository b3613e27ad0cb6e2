package config

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockFileSystem implements FileSystem for testing.
type MockFileSystem struct {
	HomeDir     string
	HomeDirErr  error
	Files       map[string][]byte
	ReadFileErr error
}

func (m *MockFileSystem) UserHomeDir() (string, error) {
	return m.HomeDir, m.HomeDirErr
}

func (m *MockFileSystem) ReadFile(path string) ([]byte, error) {
	if m.ReadFileErr != nil {
		return nil, m.ReadFileErr
	}
	data, ok := m.Files[path]
	if !ok {
		return nil, os.ErrNotExist
	}
	return data, nil
}

func TestLoad_NoConfigFile_ReturnsDefaults(t *testing.T) {
	fs := &MockFileSystem{
		HomeDir: "/home/user",
		Files:   map[string][]byte{},
	}
	loader := NewLoaderWithFS(fs)

	cfg, err := loader.Load()

	require.NoError(t, err)
	assert.Equal(t, "ollama", cfg.Backend.Kind)
	assert.Equal(t, "http://localhost:11434", cfg.Backend.Endpoint)
	assert.Equal(t, 300, cfg.Backend.HardTimeoutSeconds)
	assert.Equal(t, 10, cfg.Security.MaxRollbackOperations)
	assert.False(t, cfg.Permissions.AllowSystemCommands)
	assert.True(t, cfg.Permissions.RequireConfirmation.FileDeletion)
}

func TestLoad_PartialOverride_MergesWithDefaults(t *testing.T) {
	configJSON := `{"backend": {"model": "qwen2.5:7b"}, "security": {"max_rollback_operations": 25}}`
	fs := &MockFileSystem{
		HomeDir: "/home/user",
		Files: map[string][]byte{
			"/home/user/.config/nlshell/config.json": []byte(configJSON),
		},
	}
	loader := NewLoaderWithFS(fs)

	cfg, err := loader.Load()

	require.NoError(t, err)
	assert.Equal(t, "qwen2.5:7b", cfg.Backend.Model)
	assert.Equal(t, 25, cfg.Security.MaxRollbackOperations)
	// Untouched sections keep their defaults.
	assert.Equal(t, "ollama", cfg.Backend.Kind)
	assert.True(t, cfg.Permissions.AllowFileOperations)
}

func TestLoad_ExplicitZeroValueOverridesDefault(t *testing.T) {
	configJSON := `{"permissions": {"allow_file_operations": false, "allow_app_control": true, "allow_browser_control": true}}`
	fs := &MockFileSystem{
		HomeDir: "/home/user",
		Files: map[string][]byte{
			"/home/user/.config/nlshell/config.json": []byte(configJSON),
		},
	}
	loader := NewLoaderWithFS(fs)

	cfg, err := loader.Load()

	require.NoError(t, err)
	assert.False(t, cfg.Permissions.AllowFileOperations)
}

func TestLoad_MalformedJSON_ReturnsError(t *testing.T) {
	fs := &MockFileSystem{
		HomeDir: "/home/user",
		Files: map[string][]byte{
			"/home/user/.config/nlshell/config.json": []byte("{not json"),
		},
	}
	loader := NewLoaderWithFS(fs)

	_, err := loader.Load()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config")
}

func TestLoad_PermissionError_ReturnsError(t *testing.T) {
	fs := &MockFileSystem{
		HomeDir:     "/home/user",
		ReadFileErr: errors.New("permission denied"),
	}
	loader := NewLoaderWithFS(fs)

	_, err := loader.Load()

	require.Error(t, err)
}

func TestLoad_HomeDirError_FallsBackToDefaults(t *testing.T) {
	fs := &MockFileSystem{HomeDirErr: errors.New("no home")}
	loader := NewLoaderWithFS(fs)

	cfg, err := loader.Load()

	require.NoError(t, err)
	assert.Equal(t, "ollama", cfg.Backend.Kind)
}

func TestValidate_RejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown backend kind", func(c *Config) { c.Backend.Kind = "claude" }},
		{"unknown fallback kind", func(c *Config) { c.Backend.Fallback = &FallbackConfig{Kind: "x", Model: "m"} }},
		{"zero hard timeout", func(c *Config) { c.Backend.HardTimeoutSeconds = 0 }},
		{"stall exceeds hard timeout", func(c *Config) { c.Backend.StallTimeoutSeconds = 1000 }},
		{"zero rollback capacity", func(c *Config) { c.Security.MaxRollbackOperations = 0 }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"route without keywords", func(c *Config) { c.Routing.Routes = []Route{{Model: "m"}} }},
		{"route without model", func(c *Config) { c.Routing.Routes = []Route{{Keywords: []string{"k"}}} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidate_DefaultsAreValid(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
}
