// Package keychain retrieves the API secret from the operating system's
// credential store. The lookup happens once at session start; the secret is
// held only in memory and never written to disk. A missing secret is a
// configuration error, not a crash.
package keychain

import (
	"os"
	"strings"

	"github.com/zalando/go-keyring"

	"github.com/nexteleven/eleven/errors"
)

const (
	// Service is the credential-store service name the secret lives under.
	Service = "eleven-terminal"
	// Account is the account name within the service entry.
	Account = "xai-api-key"
	// EnvOverride, when set and non-empty, bypasses the store entirely.
	EnvOverride = "ELEVEN_API_KEY"
)

// ErrNotFound reports that no secret is stored for the service/account pair.
var ErrNotFound = errors.NewKind(errors.KindConfig,
	"API key not found in credential store (service %q, account %q); set it with 'eleven -set-key' or export %s",
	Service, Account, EnvOverride)

// APIKey returns the API secret. The environment override is consulted first;
// otherwise the OS store is queried exactly once. No retries: the provider
// fails closed.
func APIKey() (string, error) {
	if key := strings.TrimSpace(os.Getenv(EnvOverride)); key != "" {
		return key, nil
	}
	secret, err := keyring.Get(Service, Account)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", errors.WrapKind(errors.KindConfig, err, "credential store lookup failed")
	}
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return "", ErrNotFound
	}
	return secret, nil
}

// SetAPIKey stores the secret under the service/account pair.
func SetAPIKey(secret string) error {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return errors.NewKind(errors.KindConfig, "refusing to store an empty API key")
	}
	if err := keyring.Set(Service, Account, secret); err != nil {
		return errors.WrapKind(errors.KindConfig, err, "credential store write failed")
	}
	return nil
}

// DeleteAPIKey removes the stored secret. Deleting a secret that does not
// exist is not an error.
func DeleteAPIKey() error {
	err := keyring.Delete(Service, Account)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return errors.WrapKind(errors.KindConfig, err, "credential store delete failed")
	}
	return nil
}
