package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// ErrMissingAPIKey is returned by Load when no completion API key is configured.
var ErrMissingAPIKey = errors.New("missing required config: completion API key")

type Config struct {
	Server      ServerConfig
	Log         LogConfig
	Storage     StorageConfig
	Completion  CompletionConfig
	ObjectStore ObjectStoreConfig
	Auth        AuthConfig
}

type ServerConfig struct {
	Port int
}

type LogConfig struct {
	Level string
	Mode  string
}

type StorageConfig struct {
	DataDir string
}

type CompletionConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout string
}

// TimeoutDuration parses Timeout, falling back to 60s when it is empty or invalid.
func (c CompletionConfig) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil || d <= 0 {
		return 60 * time.Second
	}
	return d
}

type ObjectStoreConfig struct {
	Backend           string // "local" or "s3"
	Bucket            string
	PublicBaseURL     string
	LocalDir          string
	S3Endpoint        string
	S3Region          string
	S3AccessKeyID     string
	S3SecretAccessKey string
}

type AuthConfig struct {
	JWTSecret string
}

func defaults() Config {
	dataDir := defaultDataDir()
	return Config{
		Server: ServerConfig{
			Port: 4000,
		},
		Log: LogConfig{
			Level: "info",
			Mode:  "development",
		},
		Storage: StorageConfig{
			DataDir: dataDir,
		},
		Completion: CompletionConfig{
			BaseURL: "https://api.groq.com/openai/v1",
			Model:   "llama-3.1-8b-instant",
			Timeout: "60s",
		},
		ObjectStore: ObjectStoreConfig{
			Backend:       "local",
			Bucket:        "study-materials",
			PublicBaseURL: "http://127.0.0.1:4000",
			LocalDir:      dataDir + "/objects",
			S3Region:      "us-east-1",
		},
	}
}

// Load reads configuration from the JSON config file, then applies
// environment variable overrides (ATLAS_*). Secrets are only accepted from
// the environment.
//
// The completion API key is required; Load fails immediately without it so
// that no request handler ever runs against an unconfigured model endpoint.
func Load() (Config, error) {
	return loadWith(newFileBackend(configFilePath()))
}

// LoadLocal is Load for commands that never call the model, such as "atlas
// stats" and "atlas token". The API key is read if present but not required.
func LoadLocal() (Config, error) {
	cfg, err := readWith(newFileBackend(configFilePath()))
	if err != nil {
		return Config{}, err
	}
	if err := cfg.validateLocal(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg, err := readWith(b)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func readWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	// Accept the provider's conventional variable as a fallback.
	if cfg.Completion.APIKey == "" {
		cfg.Completion.APIKey = strings.TrimSpace(os.Getenv("GROQ_API_KEY"))
	}
	return cfg, nil
}

// Validate checks the invariants Load relies on.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Completion.APIKey) == "" {
		return fmt.Errorf("%w. Set it via environment variable ATLAS_COMPLETION_API_KEY or GROQ_API_KEY", ErrMissingAPIKey)
	}
	return c.validateLocal()
}

func (c Config) validateLocal() error {
	switch c.ObjectStore.Backend {
	case "local", "s3":
	default:
		return fmt.Errorf("invalid objectstore.backend %q: want local or s3", c.ObjectStore.Backend)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	}
	return nil
}
