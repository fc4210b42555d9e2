//go:build darwin

package config

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// defaultsDomain is the UserDefaults domain holding saved keys.
const defaultsDomain = "com.jobboard.app"

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "jobboard-data"
	}
	return filepath.Join(home, "Library", "Application Support", "jobboard")
}

// defaultsBackend stores keys with the `defaults` command.
type defaultsBackend struct{}

func newPlatformBackend() ConfigBackend { return defaultsBackend{} }

// run executes `defaults <verb> <domain> args...`. A missing key makes
// read and delete exit with status 1, reported as found == false.
func (defaultsBackend) run(verb string, args ...string) (out string, found bool, err error) {
	argv := append([]string{verb, defaultsDomain}, args...)
	raw, err := exec.Command("defaults", argv...).CombinedOutput()
	out = strings.TrimSpace(string(raw))
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return out, true, nil
	case errors.As(err, &exitErr) && exitErr.ExitCode() == 1 && verb != "write":
		return "", false, nil
	default:
		return "", false, fmt.Errorf("defaults %s %s: %w: %s", verb, strings.Join(args, " "), err, out)
	}
}

func (b defaultsBackend) GetString(key string) (string, bool, error) {
	return b.run("read", key)
}

func (b defaultsBackend) GetInt(key string) (int, bool, error) {
	s, ok, err := b.run("read", key)
	if !ok || err != nil {
		return 0, ok, err
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, true, fmt.Errorf("%s: %w", key, err)
	}
	return i, true, nil
}

func (b defaultsBackend) SetString(key, val string) error {
	_, _, err := b.run("write", key, "-string", val)
	return err
}

func (b defaultsBackend) SetInt(key string, val int) error {
	_, _, err := b.run("write", key, "-int", strconv.Itoa(val))
	return err
}

func (b defaultsBackend) Delete(key string) error {
	_, _, err := b.run("delete", key)
	return err
}
