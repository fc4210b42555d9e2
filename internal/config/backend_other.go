//go:build !darwin

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"strconv"
)

func defaultDataDir() string {
	return xdgPath("XDG_DATA_HOME", ".local/share", "")
}

func configFilePath() string {
	return xdgPath("XDG_CONFIG_HOME", ".config", "config.json")
}

// fileBackend keeps saved keys in a flat JSON object at configFilePath.
type fileBackend struct {
	path string
	data map[string]any
}

func newPlatformBackend() ConfigBackend {
	return openFileBackend(configFilePath())
}

// openFileBackend never fails: an unreadable file is logged and treated as
// empty, so defaults and env still apply.
func openFileBackend(path string) *fileBackend {
	b := &fileBackend{path: path, data: map[string]any{}}
	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		slog.Warn("config file unreadable, using defaults", "path", path, "error", err)
	default:
		if err := json.Unmarshal(raw, &b.data); err != nil {
			slog.Warn("config file is not valid JSON, using defaults", "path", path, "error", err)
			b.data = map[string]any{}
		}
	}
	return b
}

func (b *fileBackend) flush() error {
	raw, err := json.MarshalIndent(b.data, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(b.path, raw)
}

func (b *fileBackend) GetString(key string) (string, bool, error) {
	v, ok := b.data[key]
	if !ok {
		return "", false, nil
	}
	if s, isString := v.(string); isString {
		return s, true, nil
	}
	return fmt.Sprint(v), true, nil
}

// GetInt accepts JSON numbers and numeric strings.
func (b *fileBackend) GetInt(key string) (int, bool, error) {
	v, ok := b.data[key]
	if !ok {
		return 0, false, nil
	}
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) || n < math.MinInt || n > math.MaxInt {
			return 0, true, fmt.Errorf("%s: %v is not an integer", key, n)
		}
		return int(n), true, nil
	case string:
		i, err := strconv.Atoi(n)
		if err != nil {
			return 0, true, fmt.Errorf("%s: %w", key, err)
		}
		return i, true, nil
	}
	return 0, true, fmt.Errorf("%s: unexpected %T", key, v)
}

func (b *fileBackend) SetString(key, val string) error {
	b.data[key] = val
	return b.flush()
}

func (b *fileBackend) SetInt(key string, val int) error {
	b.data[key] = val
	return b.flush()
}

func (b *fileBackend) Delete(key string) error {
	if _, ok := b.data[key]; !ok {
		return nil
	}
	delete(b.data, key)
	return b.flush()
}
