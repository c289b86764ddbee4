package config

import (
	"errors"
	"strings"

	"github.com/zalando/go-keyring"

	"github.com/custodia-labs/sercha-kb/internal/errs"
)

// KeyringScheme marks a value stored in the OS keyring.
const KeyringScheme = "keyring://"

// IsKeyringRef reports whether value refers to a keyring entry.
func IsKeyringRef(value string) bool {
	return strings.HasPrefix(value, KeyringScheme)
}

// ResolveSecret returns value unchanged unless it has the form
// keyring://service/key, in which case the secret is read from the OS
// keyring (Keychain, secret-service or Credential Manager).
func ResolveSecret(value string) (string, error) {
	if !IsKeyringRef(value) {
		return value, nil
	}
	service, key, ok := strings.Cut(strings.TrimPrefix(value, KeyringScheme), "/")
	if !ok || service == "" || key == "" {
		return "", errs.Errorf(errs.CodeConfigurationValueInvalid,
			"keyring reference %q must be keyring://service/key", value)
	}

	secret, err := keyring.Get(service, key)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", errs.Errorf(errs.CodeConfigurationCredentialMissing,
				"secret %s/%s not found in keyring", service, key)
		}
		return "", errs.Wrapf(err, errs.CodeConfigurationCredentialMissing,
			"reading secret %s/%s from keyring", service, key)
	}
	return secret, nil
}

// StoreSecret writes value to the keyring and returns the reference to
// put in config.toml in its place.
func StoreSecret(service, key, value string) (string, error) {
	if service == "" || key == "" {
		return "", errs.New(errs.CodeConfigurationValueInvalid, "keyring service and key must not be empty")
	}
	if err := keyring.Set(service, key, value); err != nil {
		return "", errs.Wrapf(err, errs.CodeConfigurationValueInvalid, "storing secret %s/%s", service, key)
	}
	return KeyringScheme + service + "/" + key, nil
}
