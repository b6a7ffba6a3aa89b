package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCeilingsAreIndependent(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 100000, cfg.Context.TokenLimit)
	assert.Equal(t, 6000, cfg.Context.MaxTokens)
	assert.Equal(t, 10, cfg.Compaction.PreserveRecent)
	require.NoError(t, cfg.Validate())
}

func TestListenAddr(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "127.0.0.1:37778", cfg.ListenAddr())
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Context, cfg.Context)
}

func TestLoadYAMLWithEnvExpansion(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ML_TEST_PORT", "40001")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: ${ML_TEST_PORT}
context:
  token_limit: 50000
  max_tokens: ${ML_TEST_MAX:-3000}
compaction:
  schedule: ""
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 40001, cfg.Server.Port)
	assert.Equal(t, 50000, cfg.Context.TokenLimit)
	assert.Equal(t, 3000, cfg.Context.MaxTokens)
	assert.Equal(t, "", cfg.Compaction.Schedule)
	// untouched sections keep defaults
	assert.Equal(t, "127.0.0.1", cfg.Server.Bind)
}

func TestLoadUnresolvedVariable(t *testing.T) {
	t.Chdir(t.TempDir())
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm:\n  openai_key: ${ML_TEST_DEFINITELY_UNSET}\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ML_TEST_DEFINITELY_UNSET")
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("MEMORYLAYER_MAX_TOKENS=1234\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("MEMORYLAYER_MAX_TOKENS") })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 1234, cfg.Context.MaxTokens)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("MEMORYLAYER_DB", "/tmp/ml.db")
	t.Setenv("MEMORYLAYER_TOKEN_LIMIT", "2000")
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")
	t.Setenv("OPENAI_API_KEY", "sk-openai")

	cfg := Default()
	cfg.ApplyEnv()
	assert.Equal(t, "/tmp/ml.db", cfg.Database.Path)
	assert.Equal(t, 2000, cfg.Context.TokenLimit)
	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.Equal(t, "sk-test", cfg.LLM.AnthropicKey)
	assert.Equal(t, "sk-openai", cfg.Embedding.OpenAIKey)
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg := Default()
	cfg.Server.Port = 0
	cfg.Context.MaxTokens = -1
	cfg.Embedding.Provider = "word2vec"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")
	assert.Contains(t, err.Error(), "context.max_tokens")
	assert.Contains(t, err.Error(), "embedding.provider")
}
