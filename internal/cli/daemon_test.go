package cli

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/cloo-solutions/ownership-validator/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServeCmd_Flags(t *testing.T) {
	cmd := ServeCmd()

	port := cmd.Flags().Lookup("port")
	require.NotNil(t, port)
	assert.Equal(t, "p", port.Shorthand)
	assert.Empty(t, port.DefValue)
	assert.Equal(t, "LLM_PORT", GenerateSchema(cmd).Flags[0].Env)
}

func TestDaemonSetup_BadPromptFile(t *testing.T) {
	clearLLMEnv(t)
	t.Setenv("LLM_PROMPT_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	_, _, _, _, err := daemonSetup()

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConfiguration))
}

func TestDaemonSetup_NoAPIKeyNeeded(t *testing.T) {
	clearLLMEnv(t)

	cfg, log, factory, shutdown, err := daemonSetup()

	require.NoError(t, err)
	defer shutdown()
	assert.NotNil(t, log)
	assert.NotNil(t, factory)
	assert.Equal(t, "8080", cfg.Port)
}

func TestDaemonSetup_BadLogFormat(t *testing.T) {
	clearLLMEnv(t)
	t.Setenv("LLM_LOG_FORMAT", "xml")

	_, _, _, _, err := daemonSetup()

	require.Error(t, err)
}
