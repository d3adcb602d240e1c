// Package config loads the CareerPulse configuration object.
package config

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Provider identifies a generative-content backend.
type Provider string

const (
	ProviderOllama    Provider = "ollama"
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderBedrock   Provider = "bedrock"
)

// DefaultProgressSteps are the stage descriptions emitted before the upstream call.
var DefaultProgressSteps = []string{
	"Connecting to labor market sources",
	"Reviewing regional employment trends",
	"Identifying local employers and openings",
	"Collecting salary and skill demand data",
	"Cross-checking education and training context",
}

// Config holds all configuration values.
type Config struct {
	// HTTP server
	ServerPort string

	// Client side
	ServerURL     string
	ClientTimeout time.Duration

	// Generative-content collaborator
	LLMProvider     Provider
	LLMModel        string
	OllamaHost      string
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	AnthropicAPIKey string
	AWSRegion       string

	// Stream pacing; zero disables the corresponding delay
	StepDelay         time.Duration
	InsightDelay      time.Duration
	HeartbeatInterval time.Duration
	UpstreamTimeout   time.Duration
	ProgressSteps     []string

	// SurrealDB connection
	SurrealDBURL       string
	SurrealDBNamespace string
	SurrealDBDatabase  string
	SurrealDBUser      string
	SurrealDBPass      string
	SurrealDBAuthLevel string

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// fileConfig is the optional YAML overlay pointed to by CAREERPULSE_CONFIG.
type fileConfig struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	LLM struct {
		Provider string `yaml:"provider"`
		Model    string `yaml:"model"`
		Host     string `yaml:"host"`
		Region   string `yaml:"region"`
	} `yaml:"llm"`
	Stream struct {
		StepDelay       *time.Duration `yaml:"step_delay"`
		InsightDelay    *time.Duration `yaml:"insight_delay"`
		Heartbeat       *time.Duration `yaml:"heartbeat"`
		UpstreamTimeout *time.Duration `yaml:"upstream_timeout"`
		ProgressSteps   []string       `yaml:"progress_steps"`
	} `yaml:"stream"`
	SurrealDB struct {
		URL       string `yaml:"url"`
		Namespace string `yaml:"namespace"`
		Database  string `yaml:"database"`
	} `yaml:"surrealdb"`
}

// Load builds the configuration from defaults, the optional YAML file and
// environment variables, in increasing order of precedence.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv("CAREERPULSE_CONFIG"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			slog.Warn("cannot read config file, using defaults", "file", path, "error", err)
		} else if err := cfg.applyFile(raw); err != nil {
			slog.Warn("cannot parse config file, using defaults", "file", path, "error", err)
		}
	}

	cfg.applyEnv()
	return cfg
}

func defaultConfig() Config {
	return Config{
		ServerPort:    "8585",
		ServerURL:     "http://localhost:8585",
		ClientTimeout: 10 * time.Minute,

		LLMProvider: ProviderOllama,
		LLMModel:    "llama3.1",
		OllamaHost:  "http://localhost:11434",
		AWSRegion:   "us-east-1",

		StepDelay:         800 * time.Millisecond,
		InsightDelay:      300 * time.Millisecond,
		HeartbeatInterval: 15 * time.Second,
		UpstreamTimeout:   120 * time.Second,
		ProgressSteps:     append([]string(nil), DefaultProgressSteps...),

		SurrealDBURL:       "ws://localhost:8000/rpc",
		SurrealDBNamespace: "careerpulse",
		SurrealDBDatabase:  "guidance",
		SurrealDBUser:      "root",
		SurrealDBPass:      "root",
		SurrealDBAuthLevel: "root",

		LogFile:  "/tmp/careerpulse.log",
		LogLevel: slog.LevelInfo,
	}
}

func (c *Config) applyFile(raw []byte) error {
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return err
	}

	if fc.Server.Port != "" {
		c.ServerPort = fc.Server.Port
	}
	if fc.LLM.Provider != "" {
		c.LLMProvider = Provider(strings.ToLower(fc.LLM.Provider))
	}
	if fc.LLM.Model != "" {
		c.LLMModel = fc.LLM.Model
	}
	if fc.LLM.Host != "" {
		c.OllamaHost = fc.LLM.Host
	}
	if fc.LLM.Region != "" {
		c.AWSRegion = fc.LLM.Region
	}
	if fc.Stream.StepDelay != nil {
		c.StepDelay = *fc.Stream.StepDelay
	}
	if fc.Stream.InsightDelay != nil {
		c.InsightDelay = *fc.Stream.InsightDelay
	}
	if fc.Stream.Heartbeat != nil {
		c.HeartbeatInterval = *fc.Stream.Heartbeat
	}
	if fc.Stream.UpstreamTimeout != nil {
		c.UpstreamTimeout = *fc.Stream.UpstreamTimeout
	}
	if len(fc.Stream.ProgressSteps) > 0 {
		c.ProgressSteps = fc.Stream.ProgressSteps
	}
	if fc.SurrealDB.URL != "" {
		c.SurrealDBURL = fc.SurrealDB.URL
	}
	if fc.SurrealDB.Namespace != "" {
		c.SurrealDBNamespace = fc.SurrealDB.Namespace
	}
	if fc.SurrealDB.Database != "" {
		c.SurrealDBDatabase = fc.SurrealDB.Database
	}
	return nil
}

func (c *Config) applyEnv() {
	c.ServerPort = getEnv("CAREERPULSE_SERVER_PORT", c.ServerPort)
	c.ServerURL = getEnv("CAREERPULSE_SERVER_URL", c.ServerURL)
	c.ClientTimeout = getDuration("CAREERPULSE_CLIENT_TIMEOUT", c.ClientTimeout)

	c.LLMProvider = Provider(strings.ToLower(getEnv("LLM_PROVIDER", string(c.LLMProvider))))
	c.LLMModel = getEnv("LLM_MODEL", c.LLMModel)
	c.OllamaHost = getEnv("OLLAMA_HOST", c.OllamaHost)
	c.OpenAIAPIKey = getEnv("OPENAI_API_KEY", c.OpenAIAPIKey)
	c.OpenAIBaseURL = getEnv("OPENAI_BASE_URL", c.OpenAIBaseURL)
	c.AnthropicAPIKey = getEnv("ANTHROPIC_API_KEY", c.AnthropicAPIKey)
	c.AWSRegion = getEnv("AWS_REGION", c.AWSRegion)

	c.StepDelay = getDuration("CAREERPULSE_STEP_DELAY", c.StepDelay)
	c.InsightDelay = getDuration("CAREERPULSE_INSIGHT_DELAY", c.InsightDelay)
	c.HeartbeatInterval = getDuration("CAREERPULSE_HEARTBEAT", c.HeartbeatInterval)
	c.UpstreamTimeout = getDuration("CAREERPULSE_UPSTREAM_TIMEOUT", c.UpstreamTimeout)

	c.SurrealDBURL = getEnv("SURREALDB_URL", c.SurrealDBURL)
	c.SurrealDBNamespace = getEnv("SURREALDB_NAMESPACE", c.SurrealDBNamespace)
	c.SurrealDBDatabase = getEnv("SURREALDB_DATABASE", c.SurrealDBDatabase)
	c.SurrealDBUser = getEnv("SURREALDB_USER", c.SurrealDBUser)
	c.SurrealDBPass = getEnv("SURREALDB_PASS", c.SurrealDBPass)
	c.SurrealDBAuthLevel = getEnv("SURREALDB_AUTH_LEVEL", c.SurrealDBAuthLevel)

	c.LogFile = getEnv("CAREERPULSE_LOG_FILE", c.LogFile)
	if lvl := os.Getenv("CAREERPULSE_LOG_LEVEL"); lvl != "" {
		c.LogLevel = parseLogLevel(lvl)
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// getDuration parses a duration env var, keeping the default on bad input.
func getDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil || d < 0 {
		slog.Warn("invalid duration, using default", "key", key, "value", val, "default", defaultVal)
		return defaultVal
	}
	return d
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
