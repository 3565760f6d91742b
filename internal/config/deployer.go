package config

import "time"

// DeployerConfig holds runtime configuration for the Conway deployer.
type DeployerConfig struct {
	Environment   string
	DatabaseURL   string
	MigrationsDir string

	ConwayAPIURL      string
	ConwayAPIKey      string
	ConwayHTTPTimeout time.Duration

	// WaitForRunning tunables for sandbox creation.
	SandboxMaxWait      time.Duration
	SandboxPollInterval time.Duration

	// Model endpoint credentials injected into every agent config.
	ForgeAPIURL string
	ForgeAPIKey string
}

// LoadDeployerConfig constructs a DeployerConfig from environment variables.
func LoadDeployerConfig() DeployerConfig {
	return DeployerConfig{
		Environment:         GetString("APP_ENV", "development"),
		DatabaseURL:         GetString("DATABASE_URL", "postgres://openclaw:openclaw@db:5432/openclaw?sslmode=disable"),
		MigrationsDir:       GetString("DB_MIGRATIONS_DIR", "db/migrations"),
		ConwayAPIURL:        GetString("CONWAY_API_URL", "https://api.conway.tech/v1"),
		ConwayAPIKey:        GetString("CONWAY_API_KEY", ""),
		ConwayHTTPTimeout:   GetSeconds("CONWAY_HTTP_TIMEOUT_SECONDS", 120*time.Second),
		SandboxMaxWait:      GetSeconds("CONWAY_SANDBOX_MAX_WAIT_SECONDS", 90*time.Second),
		SandboxPollInterval: GetSeconds("CONWAY_SANDBOX_POLL_SECONDS", 3*time.Second),
		ForgeAPIURL:         GetString("BUILT_IN_FORGE_API_URL", ""),
		ForgeAPIKey:         GetString("BUILT_IN_FORGE_API_KEY", ""),
	}
}

// ModelEndpoint derives the chat completion endpoint injected into agent
// configs, or empty when no Forge API is configured.
func (c DeployerConfig) ModelEndpoint() string {
	if c.ForgeAPIURL == "" {
		return ""
	}
	return c.ForgeAPIURL + "/llm/chat"
}
