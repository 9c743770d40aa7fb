package config

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// KeyInfo is one row of "atlas config show". Secret values are never
// included; Value reports only whether they are set.
type KeyInfo struct {
	Key    string
	EnvVar string
	Value  string
	Secret bool
}

// ShowAll lists every config key with its effective value in cfg.
func ShowAll(cfg Config) []KeyInfo {
	result := make([]KeyInfo, 0, len(specs))
	for _, s := range specs {
		ki := KeyInfo{Key: s.key, EnvVar: s.env, Secret: s.secret}
		switch {
		case !s.secret:
			ki.Value = fmt.Sprintf("%v", s.extract(cfg))
		case s.extract(cfg) != "":
			ki.Value = "(set)"
		default:
			ki.Value = "(not set)"
		}
		result = append(result, ki)
	}
	return result
}

// SetKey validates value and writes it to the config file.
func SetKey(key, value string) error {
	return setKey(newFileBackend(configFilePath()), key, value)
}

// UnsetKey removes key from the config file so the default applies again.
func UnsetKey(key string) error {
	return unsetKey(newFileBackend(configFilePath()), key)
}

func setKey(b ConfigBackend, key, value string) error {
	s, err := lookupWritable(key)
	if err != nil {
		return err
	}

	switch s.typ {
	case kInt:
		i, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer value for %s: %w", key, err)
		}
		if key == "server.port" && (i <= 0 || i > 65535) {
			return fmt.Errorf("invalid server.port %d", i)
		}
		return b.SetInt(key, i)
	default:
		if len(s.choices) > 0 && !slices.Contains(s.choices, value) {
			return fmt.Errorf("invalid value %q for %s: want one of %s", value, key, strings.Join(s.choices, ", "))
		}
		return b.SetString(key, value)
	}
}

func unsetKey(b ConfigBackend, key string) error {
	if _, err := lookupWritable(key); err != nil {
		return err
	}
	return b.Delete(key)
}

func lookupWritable(key string) (keySpec, error) {
	for _, s := range specs {
		if s.key != key {
			continue
		}
		if s.secret {
			return keySpec{}, fmt.Errorf("cannot set secret %q via config; use environment variable %s", key, s.env)
		}
		return s, nil
	}
	return keySpec{}, fmt.Errorf("unknown config key: %q", key)
}

// ValidKeys returns the names accepted by SetKey and UnsetKey.
func ValidKeys() []string {
	var keys []string
	for _, s := range specs {
		if !s.secret {
			keys = append(keys, s.key)
		}
	}
	return keys
}
