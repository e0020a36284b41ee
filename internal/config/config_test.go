package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agentoven/purview-router/internal/config"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("AZURE_AI_AGENT_ENDPOINT", "https://example.services.ai.azure.com/api/projects/p")
	t.Setenv("MODEL_DEPLOYMENT_NAME", "gpt-4o")
	t.Setenv("BING_CONNECTION_ID", "bing-conn")
	t.Setenv("PURVIEW_ENDPOINT", "https://purview.example.com")
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ROUTER_PORT", "")
	t.Setenv("ENABLE_FABRIC_AGENT", "")

	cfg := config.Load()
	assert.Equal(t, 5000, cfg.Port)
	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.False(t, cfg.Agents.EnableFabric)
	assert.Equal(t, config.DefaultRAGDocumentURL, cfg.Agents.RAGDocumentURL)
}

func TestLoad_APIKeys(t *testing.T) {
	t.Setenv("ROUTER_API_KEYS", " k1, ,k2 ")
	cfg := config.Load()
	assert.Equal(t, []string{"k1", "k2"}, cfg.Auth.APIKeys)
}

func TestValidate_AllPresent(t *testing.T) {
	setRequired(t)
	t.Setenv("ENABLE_FABRIC_AGENT", "false")

	v := config.Load().Validate()
	assert.True(t, v.Valid)
	assert.Empty(t, v.MissingVariables)
	assert.False(t, v.FabricEnabled)
}

func TestValidate_FabricRequiresConnection(t *testing.T) {
	setRequired(t)
	t.Setenv("ENABLE_FABRIC_AGENT", "true")
	t.Setenv("FABRIC_CONNECTION_ID", "")

	v := config.Load().Validate()
	assert.False(t, v.Valid)
	assert.Equal(t, []string{"FABRIC_CONNECTION_ID"}, v.MissingVariables)
	assert.True(t, v.FabricEnabled)
}

func TestValidate_GenieConfigured(t *testing.T) {
	t.Setenv("DATABRICKS_INSTANCE", "adb.example.net")
	t.Setenv("GENIE_SPACE_ID", "space")
	t.Setenv("DATABRICKS_AUTH_TOKEN", "")
	assert.False(t, config.Load().Validate().GenieConfigured)

	t.Setenv("DATABRICKS_AUTH_TOKEN", "tok")
	assert.True(t, config.Load().Validate().GenieConfigured)
}
