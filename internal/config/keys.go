package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	choices []string
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "ATLAS_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "log.level", typ: kString, env: "ATLAS_LOG_LEVEL",
		choices: []string{"debug", "info", "warn", "error"},
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "log.mode", typ: kString, env: "ATLAS_LOG_MODE",
		choices: []string{"development", "production"},
		apply:   func(cfg *Config, v any) { cfg.Log.Mode = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Mode },
	},
	{
		key: "storage.data_dir", typ: kString, env: "ATLAS_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "completion.api_key", typ: kString, env: "ATLAS_COMPLETION_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Completion.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Completion.APIKey },
	},
	{
		key: "completion.base_url", typ: kString, env: "ATLAS_COMPLETION_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Completion.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Completion.BaseURL },
	},
	{
		key: "completion.model", typ: kString, env: "ATLAS_COMPLETION_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Completion.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.Completion.Model },
	},
	{
		key: "completion.timeout", typ: kString, env: "ATLAS_COMPLETION_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Completion.Timeout = v.(string) },
		extract: func(cfg Config) any { return cfg.Completion.Timeout },
	},
	{
		key: "objectstore.backend", typ: kString, env: "ATLAS_OBJECTSTORE_BACKEND",
		choices: []string{"local", "s3"},
		apply:   func(cfg *Config, v any) { cfg.ObjectStore.Backend = v.(string) },
		extract: func(cfg Config) any { return cfg.ObjectStore.Backend },
	},
	{
		key: "objectstore.bucket", typ: kString, env: "ATLAS_OBJECTSTORE_BUCKET",
		apply:   func(cfg *Config, v any) { cfg.ObjectStore.Bucket = v.(string) },
		extract: func(cfg Config) any { return cfg.ObjectStore.Bucket },
	},
	{
		key: "objectstore.public_base_url", typ: kString, env: "ATLAS_OBJECTSTORE_PUBLIC_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.ObjectStore.PublicBaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.ObjectStore.PublicBaseURL },
	},
	{
		key: "objectstore.local_dir", typ: kString, env: "ATLAS_OBJECTSTORE_LOCAL_DIR",
		apply:   func(cfg *Config, v any) { cfg.ObjectStore.LocalDir = v.(string) },
		extract: func(cfg Config) any { return cfg.ObjectStore.LocalDir },
	},
	{
		key: "objectstore.s3_endpoint", typ: kString, env: "ATLAS_OBJECTSTORE_S3_ENDPOINT",
		apply:   func(cfg *Config, v any) { cfg.ObjectStore.S3Endpoint = v.(string) },
		extract: func(cfg Config) any { return cfg.ObjectStore.S3Endpoint },
	},
	{
		key: "objectstore.s3_region", typ: kString, env: "ATLAS_OBJECTSTORE_S3_REGION",
		apply:   func(cfg *Config, v any) { cfg.ObjectStore.S3Region = v.(string) },
		extract: func(cfg Config) any { return cfg.ObjectStore.S3Region },
	},
	{
		key: "objectstore.s3_access_key_id", typ: kString, env: "ATLAS_OBJECTSTORE_S3_ACCESS_KEY_ID",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.ObjectStore.S3AccessKeyID = v.(string) },
		extract: func(cfg Config) any { return cfg.ObjectStore.S3AccessKeyID },
	},
	{
		key: "objectstore.s3_secret_access_key", typ: kString, env: "ATLAS_OBJECTSTORE_S3_SECRET_ACCESS_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.ObjectStore.S3SecretAccessKey = v.(string) },
		extract: func(cfg Config) any { return cfg.ObjectStore.S3SecretAccessKey },
	},
	{
		key: "auth.jwt_secret", typ: kString, env: "ATLAS_AUTH_JWT_SECRET",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Auth.JWTSecret = v.(string) },
		extract: func(cfg Config) any { return cfg.Auth.JWTSecret },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
