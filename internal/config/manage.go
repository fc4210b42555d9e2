package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
)

// Where a displayed value came from.
const (
	SourceDefault = "default"
	SourceBackend = "saved"
	SourceEnv     = "env"
)

// KeyInfo describes one non-secret key for `jobboard config show`.
type KeyInfo struct {
	Key    string
	EnvVar string
	Value  string
	Source string
}

// ShowAll lists every non-secret key of cfg with the layer that set it.
func ShowAll(cfg Config) []KeyInfo {
	return describeWith(cfg, newPlatformBackend())
}

func describeWith(cfg Config, b ConfigBackend) []KeyInfo {
	var result []KeyInfo
	for _, s := range specs {
		if s.secret {
			continue
		}
		result = append(result, KeyInfo{
			Key:    s.key,
			EnvVar: s.env,
			Value:  fmt.Sprintf("%v", s.extract(cfg)),
			Source: sourceOf(s, b),
		})
	}
	return result
}

func sourceOf(s keySpec, b ConfigBackend) string {
	if os.Getenv(s.env) != "" {
		return SourceEnv
	}
	var ok bool
	switch s.typ {
	case kString:
		_, ok, _ = b.GetString(s.key)
	case kInt:
		_, ok, _ = b.GetInt(s.key)
	}
	if ok {
		return SourceBackend
	}
	return SourceDefault
}

// SetKey checks value and saves it to the platform backend.
func SetKey(key, value string) error {
	return setWith(newPlatformBackend(), key, value)
}

func setWith(b ConfigBackend, key, value string) error {
	s, err := lookupSpec(key)
	if err != nil {
		return err
	}
	if s.secret {
		return fmt.Errorf("cannot set secret %q via config; use environment variable %s", key, s.env)
	}

	var v any = value
	if s.typ == kInt {
		i, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer value for %s: %w", key, err)
		}
		v = i
	}
	if s.check != nil {
		if err := s.check(v); err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
	}

	if i, ok := v.(int); ok {
		return b.SetInt(key, i)
	}
	return b.SetString(key, value)
}

// UnsetKey removes a saved value so the default applies again.
func UnsetKey(key string) error {
	return unsetWith(newPlatformBackend(), key)
}

func unsetWith(b ConfigBackend, key string) error {
	s, err := lookupSpec(key)
	if err != nil {
		return err
	}
	if s.secret {
		return fmt.Errorf("secret %q is not stored in config", key)
	}
	return b.Delete(key)
}

// ValidKeys returns the non-secret key names, sorted.
func ValidKeys() []string {
	var keys []string
	for _, s := range specs {
		if !s.secret {
			keys = append(keys, s.key)
		}
	}
	sort.Strings(keys)
	return keys
}
