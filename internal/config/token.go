package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
)

const (
	keychainService = "larder"
	keychainAccount = "api_token"
)

// Keychain reads and writes secrets in the platform store: macOS Keychain
// via the security CLI, a permission-restricted JSON file elsewhere.
type Keychain interface {
	Get(service, account string) (string, error)
	Set(service, account, value string) error
}

type platformKeychain struct{}

// NewKeychain returns the platform secret store.
func NewKeychain() Keychain {
	return platformKeychain{}
}

func (platformKeychain) Get(service, account string) (string, error) {
	out, err := keychainGet(service, account)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

func (platformKeychain) Set(service, account, value string) error {
	return keychainSet(service, account, value)
}

// GetAPIToken returns the bearer token for the local API, generating and
// persisting one on first use. The LARDER_API_TOKEN environment variable
// takes precedence and is never persisted.
func GetAPIToken(kc Keychain) (string, error) {
	if token := os.Getenv("LARDER_API_TOKEN"); token != "" {
		return token, nil
	}
	if token, err := kc.Get(keychainService, keychainAccount); err == nil && token != "" {
		return token, nil
	}
	token := uuid.New().String()
	if err := kc.Set(keychainService, keychainAccount, token); err != nil {
		return "", fmt.Errorf("storing generated api token: %w", err)
	}
	return token, nil
}
