package client

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// KeyringService is the OS keyring service name tokens are stored under.
const KeyringService = "odm"

// ErrNoToken is returned by LoadToken when nothing is stored for the server.
var ErrNoToken = errors.New("no token stored")

// SaveToken stores the bearer token for server in the OS keyring.
func SaveToken(server, token string) error {
	if err := keyring.Set(KeyringService, server, token); err != nil {
		return fmt.Errorf("store token for %s: %w", server, err)
	}
	return nil
}

// LoadToken returns the stored token for server.
func LoadToken(server string) (string, error) {
	tok, err := keyring.Get(KeyringService, server)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNoToken
	}
	if err != nil {
		return "", fmt.Errorf("load token for %s: %w", server, err)
	}
	return tok, nil
}

// DeleteToken forgets the token for server. Deleting a missing token is not
// an error.
func DeleteToken(server string) error {
	if err := keyring.Delete(KeyringService, server); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("delete token for %s: %w", server, err)
	}
	return nil
}

// ResolveToken prefers an explicit token and falls back to the keyring.
// A keyring that is missing or unavailable yields "".
func ResolveToken(explicit, server string) string {
	if explicit != "" {
		return explicit
	}
	tok, err := LoadToken(server)
	if err != nil {
		return ""
	}
	return tok
}
