package common

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// DefaultSecretFiles are read when SECRETS_FILE is not set. Missing files are skipped.
var DefaultSecretFiles = []string{".streamlit/secrets.env", ".env"}

// SecretStore resolves credentials and settings by key.
// The process environment wins; then each dotenv file in load order.
type SecretStore struct {
	lookupEnv func(string) (string, bool)
	files     []map[string]string
}

// NewSecretStore builds a store over the process environment and the given key/value sets.
func NewSecretStore(files ...map[string]string) *SecretStore {
	return &SecretStore{lookupEnv: os.LookupEnv, files: files}
}

// LoadSecretStore reads dotenv files. With no paths it uses SECRETS_FILE
// (comma separated) or DefaultSecretFiles.
func LoadSecretStore(paths ...string) (*SecretStore, error) {
	if len(paths) == 0 {
		paths = secretPathsFromEnv()
	}
	store := NewSecretStore()
	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		values, err := godotenv.Read(p)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, NewAppError(CodeConfigError, fmt.Sprintf("read secrets file %s", p), err)
		}
		store.files = append(store.files, values)
	}
	return store, nil
}

func secretPathsFromEnv() []string {
	if v := os.Getenv("SECRETS_FILE"); v != "" {
		return strings.Split(v, ",")
	}
	return DefaultSecretFiles
}

// Lookup returns the first non-empty value for key.
func (s *SecretStore) Lookup(key string) (string, bool) {
	if s == nil {
		return "", false
	}
	if s.lookupEnv != nil {
		if v, ok := s.lookupEnv(key); ok && v != "" {
			return v, true
		}
	}
	for _, f := range s.files {
		if v, ok := f[key]; ok && v != "" {
			return v, true
		}
	}
	return "", false
}

// Get returns the value for key or def.
func (s *SecretStore) Get(key, def string) string {
	if v, ok := s.Lookup(key); ok {
		return v
	}
	return def
}
