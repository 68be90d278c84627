// internal/hub/token.go
package hub

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	// KeyringService is the service name for keyring storage
	KeyringService = "wlprep"
	// keyringUser is the keyring entry holding the hub token
	keyringUser = "hub-token"
	// EnvToken is read when no token is stored, for CI environments
	EnvToken = "WLPREP_HUB_TOKEN"
	// FallbackDir is the directory for file-based token storage (when keyring fails)
	FallbackDir = ".wlprep"
)

// useFileBasedStorage checks if we should use file-based storage
// This is a fallback for environments where keyring isn't available (Codespaces, CI)
var fileBasedStorageCache *bool

func useFileBasedStorage() bool {
	// Cache the result to avoid repeated tests
	if fileBasedStorageCache != nil {
		return *fileBasedStorageCache
	}

	// Check environment hints
	if os.Getenv("CODESPACES") != "" || os.Getenv("CI") != "" {
		result := true
		fileBasedStorageCache = &result
		return true
	}

	// Try to use keyring, but if it fails, use file-based storage
	testKey := "_test_keyring_access_"
	err := keyring.Set(KeyringService, testKey, "test")
	result := (err != nil)
	fileBasedStorageCache = &result

	if !result {
		keyring.Delete(KeyringService, testKey)
	}

	return result
}

func tokenPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, FallbackDir)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", err
	}
	return filepath.Join(dir, "token"), nil
}

// SaveToken stores the dataset-hub token in the OS keyring, or in a
// mode-0600 file when no keyring is available.
func SaveToken(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("token cannot be empty")
	}

	if useFileBasedStorage() {
		path, err := tokenPath()
		if err != nil {
			return fmt.Errorf("failed to get token path: %w", err)
		}
		if err := os.WriteFile(path, []byte(token), 0600); err != nil {
			return fmt.Errorf("failed to save token file: %w", err)
		}
		return nil
	}

	if err := keyring.Set(KeyringService, keyringUser, token); err != nil {
		return fmt.Errorf("failed to save to keyring: %w", err)
	}
	return nil
}

// Token returns the stored hub token, falling back to the environment when
// nothing is stored. An empty string means downloads go unauthenticated.
func Token() string {
	if useFileBasedStorage() {
		if path, err := tokenPath(); err == nil {
			if data, err := os.ReadFile(path); err == nil {
				if token := strings.TrimSpace(string(data)); token != "" {
					return token
				}
			}
		}
	} else {
		if token, err := keyring.Get(KeyringService, keyringUser); err == nil && token != "" {
			return token
		}
	}
	return strings.TrimSpace(os.Getenv(EnvToken))
}

// ClearToken removes the stored hub token. Clearing when nothing is stored
// is not an error.
func ClearToken() error {
	if useFileBasedStorage() {
		path, err := tokenPath()
		if err != nil {
			return fmt.Errorf("failed to get token path: %w", err)
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete token file: %w", err)
		}
		return nil
	}

	err := keyring.Delete(KeyringService, keyringUser)
	if err != nil && err != keyring.ErrNotFound {
		return fmt.Errorf("failed to delete from keyring: %w", err)
	}
	return nil
}
