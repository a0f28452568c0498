package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	maxLLMConns      = 32
	maxDatastorePool = 64
)

type Config struct {
	Server    ServerConfig
	LLM       LLMConfig
	Firebase  FirebaseConfig
	CORS      CORSConfig
	Log       LogConfig
	Telemetry TelemetryConfig
}

// Port and Host come from command-line flags.
type ServerConfig struct {
	Port           int           `ignored:"true"`
	Host           string        `ignored:"true"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s"`
	AdviceTimeout  time.Duration `envconfig:"ADVICE_TIMEOUT" default:"45s"`

	// HSTS is for deployments where TLS terminates in front of the server.
	HSTS bool `envconfig:"HSTS_ENABLED" default:"false"`
}

type LLMConfig struct {
	APIKey   string `envconfig:"GEMINI_API_KEY"`
	Model    string `envconfig:"GEMINI_MODEL" default:"gemini-1.5-flash-latest"`
	MaxConns int    `envconfig:"LLM_MAX_CONNS" default:"32"`
}

type FirebaseConfig struct {
	CredentialsFile string `envconfig:"GOOGLE_APPLICATION_CREDENTIALS"`
	ProjectID       string `envconfig:"FIREBASE_PROJECT_ID"`
	GRPCPoolSize    int    `envconfig:"DATASTORE_GRPC_POOL" default:"4"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS"`
}

type LogConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Format string `envconfig:"LOG_FORMAT" default:"text"`
}

type TelemetryConfig struct {
	Enabled      bool   `envconfig:"OTEL_ENABLED" default:"false"`
	ServiceName  string `envconfig:"OTEL_SERVICE_NAME" default:"moneymind-api"`
	OTLPEndpoint string `envconfig:"OTEL_EXPORTER_ENDPOINT" default:"localhost:4317"`
	MetricsPort  int    `envconfig:"METRICS_PORT" default:"9464"`
	Environment  string `envconfig:"DEPLOY_ENV" default:"development"`
}

// Load reads an optional .env file, decodes the environment and validates
// the result. The returned Config is never mutated afterwards.
func Load() (*Config, error) {
	// A missing .env is the normal case in production.
	_ = godotenv.Load()

	var cfg Config
	sections := []struct {
		name string
		dst  any
	}{
		{"server", &cfg.Server},
		{"llm", &cfg.LLM},
		{"firebase", &cfg.Firebase},
		{"cors", &cfg.CORS},
		{"log", &cfg.Log},
		{"telemetry", &cfg.Telemetry},
	}
	for _, s := range sections {
		if err := envconfig.Process("", s.dst); err != nil {
			return nil, fmt.Errorf("invalid %s configuration: %w", s.name, err)
		}
	}
	cfg.CORS.AllowedOrigins = trimOrigins(cfg.CORS.AllowedOrigins)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Firebase.ProjectID == "" {
		projectID, err := projectIDFromCredentials(cfg.Firebase.CredentialsFile)
		if err != nil {
			return nil, err
		}
		cfg.Firebase.ProjectID = projectID
	}

	return &cfg, nil
}

// Validate checks every required key. Each error names the offending key.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.LLM.APIKey) == "" {
		return fmt.Errorf("GEMINI_API_KEY is required")
	}

	if c.Firebase.CredentialsFile == "" {
		return fmt.Errorf("GOOGLE_APPLICATION_CREDENTIALS is required")
	}
	if err := checkCredentialsFile(c.Firebase.CredentialsFile); err != nil {
		return fmt.Errorf("GOOGLE_APPLICATION_CREDENTIALS: %w", err)
	}

	if len(c.CORS.AllowedOrigins) == 0 {
		return fmt.Errorf("CORS_ALLOWED_ORIGINS is required")
	}
	for _, origin := range c.CORS.AllowedOrigins {
		if err := validateOrigin(origin); err != nil {
			return fmt.Errorf("CORS_ALLOWED_ORIGINS: %w", err)
		}
	}

	if c.LLM.MaxConns < 1 || c.LLM.MaxConns > maxLLMConns {
		return fmt.Errorf("LLM_MAX_CONNS must be between 1 and %d", maxLLMConns)
	}
	if c.Firebase.GRPCPoolSize < 1 || c.Firebase.GRPCPoolSize > maxDatastorePool {
		return fmt.Errorf("DATASTORE_GRPC_POOL must be between 1 and %d", maxDatastorePool)
	}
	if c.Server.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}
	if c.Server.AdviceTimeout <= 0 {
		return fmt.Errorf("ADVICE_TIMEOUT must be positive")
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be text or json")
	}

	return nil
}

// Addr returns the listen address built from the server flags.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func trimOrigins(in []string) []string {
	var out []string
	for _, origin := range in {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			out = append(out, origin)
		}
	}
	return out
}

func validateOrigin(origin string) error {
	u, err := url.Parse(origin)
	if err != nil {
		return fmt.Errorf("invalid origin %q: %w", origin, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid origin %q: scheme must be http or https", origin)
	}
	if u.Hostname() == "" {
		return fmt.Errorf("invalid origin %q: missing host", origin)
	}
	if (u.Path != "" && u.Path != "/") || u.RawQuery != "" || u.Fragment != "" || u.User != nil {
		return fmt.Errorf("invalid origin %q: must be scheme://host[:port]", origin)
	}
	return nil
}

func checkCredentialsFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("cannot stat %q: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%q is not a regular file", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("cannot read %q: %w", path, err)
	}
	if !json.Valid(data) {
		return fmt.Errorf("%q is not a JSON document", path)
	}
	return nil
}

func projectIDFromCredentials(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("GOOGLE_APPLICATION_CREDENTIALS: cannot read %q: %w", path, err)
	}
	var doc struct {
		ProjectID string `json:"project_id"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return "", fmt.Errorf("GOOGLE_APPLICATION_CREDENTIALS: %w", err)
	}
	if doc.ProjectID == "" {
		return "", errors.New("FIREBASE_PROJECT_ID is required when the credential document has no project_id")
	}
	return doc.ProjectID, nil
}
