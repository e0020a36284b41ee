package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// DefaultRAGDocumentURL is the reference document indexed by the
// document-search agent when RAG_DOCUMENT_URL is not set.
const DefaultRAGDocumentURL = "https://download.microsoft.com/documents/uk/athome/SM_Learn_5MinEncarta_F.pdf"

// Config holds all configuration for the Purview router.
type Config struct {
	Host      string
	Port      int
	Version   string
	Agents    AgentsConfig
	Purview   PurviewConfig
	Genie     GenieConfig
	Telemetry TelemetryConfig
	Auth      AuthConfig
	UIDir     string
}

// AgentsConfig configures the hosting platform and the provisioned agents.
type AgentsConfig struct {
	Endpoint           string
	Model              string
	BingConnectionID   string
	FabricConnectionID string
	EnableFabric       bool
	DataDir            string
	RAGDocumentURL     string
}

type PurviewConfig struct {
	Endpoint     string
	ContactsFile string
}

// GenieConfig configures the Databricks Genie conversation backend.
type GenieConfig struct {
	Instance  string
	SpaceID   string
	AuthToken string
}

// Configured reports whether all three Genie settings are present.
func (g GenieConfig) Configured() bool {
	return g.Instance != "" && g.SpaceID != "" && g.AuthToken != ""
}

type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
	ServiceName  string
}

type AuthConfig struct {
	// Comma-separated API keys; empty disables API key auth.
	APIKeys []string
}

// Validation summarizes missing settings for the health endpoint.
type Validation struct {
	Valid            bool     `json:"valid"`
	MissingVariables []string `json:"missing_variables"`
	FabricEnabled    bool     `json:"fabric_enabled"`
	GenieConfigured  bool     `json:"genie_configured"`
}

// LoadEnvFiles loads .env.local and .env into the process environment.
// Missing files are ignored; variables already set are not overridden.
func LoadEnvFiles() error {
	for _, file := range []string{".env.local", ".env"} {
		if err := godotenv.Load(file); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to load %s: %w", file, err)
		}
	}
	return nil
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		Host:    envStr("ROUTER_HOST", "0.0.0.0"),
		Port:    envInt("ROUTER_PORT", 5000),
		Version: envStr("ROUTER_VERSION", "0.1.0"),
		Agents: AgentsConfig{
			Endpoint:           os.Getenv("AZURE_AI_AGENT_ENDPOINT"),
			Model:              os.Getenv("MODEL_DEPLOYMENT_NAME"),
			BingConnectionID:   os.Getenv("BING_CONNECTION_ID"),
			FabricConnectionID: os.Getenv("FABRIC_CONNECTION_ID"),
			EnableFabric:       envBool("ENABLE_FABRIC_AGENT", false),
			DataDir:            envStr("ROUTER_DATA_DIR", "./data"),
			RAGDocumentURL:     envStr("RAG_DOCUMENT_URL", DefaultRAGDocumentURL),
		},
		Purview: PurviewConfig{
			Endpoint:     os.Getenv("PURVIEW_ENDPOINT"),
			ContactsFile: os.Getenv("CATALOG_CONTACTS_FILE"),
		},
		Genie: GenieConfig{
			Instance:  os.Getenv("DATABRICKS_INSTANCE"),
			SpaceID:   os.Getenv("GENIE_SPACE_ID"),
			AuthToken: os.Getenv("DATABRICKS_AUTH_TOKEN"),
		},
		Telemetry: TelemetryConfig{
			Enabled:      envBool("OTEL_ENABLED", false),
			OTLPEndpoint: envStr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			ServiceName:  envStr("OTEL_SERVICE_NAME", "purview-router"),
		},
		Auth: AuthConfig{
			APIKeys: envList("ROUTER_API_KEYS"),
		},
		UIDir: os.Getenv("ROUTER_UI_DIR"),
	}
}

// RequiredVars lists the environment variables that must be set for the
// current feature selection.
func (c *Config) RequiredVars() []string {
	required := []string{"AZURE_AI_AGENT_ENDPOINT", "MODEL_DEPLOYMENT_NAME", "BING_CONNECTION_ID", "PURVIEW_ENDPOINT"}
	if c.Agents.EnableFabric {
		required = append(required, "FABRIC_CONNECTION_ID")
	}
	return required
}

// Validate reports which required settings are missing.
func (c *Config) Validate() Validation {
	values := map[string]string{
		"AZURE_AI_AGENT_ENDPOINT": c.Agents.Endpoint,
		"MODEL_DEPLOYMENT_NAME":   c.Agents.Model,
		"BING_CONNECTION_ID":      c.Agents.BingConnectionID,
		"PURVIEW_ENDPOINT":        c.Purview.Endpoint,
		"FABRIC_CONNECTION_ID":    c.Agents.FabricConnectionID,
	}

	missing := []string{}
	for _, name := range c.RequiredVars() {
		if values[name] == "" {
			missing = append(missing, name)
		}
	}

	return Validation{
		Valid:            len(missing) == 0,
		MissingVariables: missing,
		FabricEnabled:    c.Agents.EnableFabric,
		GenieConfigured:  c.Genie.Configured(),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
