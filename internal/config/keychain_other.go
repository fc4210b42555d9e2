//go:build !darwin

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// Without a system keychain, secrets live in a 0600 JSON file keyed by
// service then account.
type secretsFile map[string]map[string]string

func secretsFilePath() string {
	return xdgPath("XDG_DATA_HOME", ".local/share", "secrets.json")
}

func readSecrets() (secretsFile, error) {
	raw, err := os.ReadFile(secretsFilePath())
	if errors.Is(err, fs.ErrNotExist) {
		return secretsFile{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading secrets: %w", err)
	}
	var f secretsFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parsing secrets: %w", err)
	}
	if f == nil {
		f = secretsFile{}
	}
	return f, nil
}

func keychainGet(service, account string) ([]byte, error) {
	f, err := readSecrets()
	if err != nil {
		return nil, err
	}
	val, ok := f[service][account]
	if !ok {
		return nil, fmt.Errorf("no secret %s/%s", service, account)
	}
	return []byte(val), nil
}

func keychainSet(service, account, value string) error {
	f, err := readSecrets()
	if err != nil {
		return err
	}
	if f[service] == nil {
		f[service] = map[string]string{}
	}
	f[service][account] = value

	raw, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(secretsFilePath(), raw)
}
