package keyring

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"

	"github.com/julianstephens/ididit/internal/constants"
)

var (
	// ErrNotFound is returned when no credentials are found in the keyring
	ErrNotFound = errors.New("credentials not found in keyring")
	// ErrKeyringUnavailable is returned when the OS keyring is not available
	ErrKeyringUnavailable = errors.New("OS keyring is not available")
)

// Entries stored under the ididit service.
const (
	connectionEntry = constants.DefaultKeyringUser
	sessionEntry    = constants.SessionKeyringUser
)

func get(entry string) (string, error) {
	v, err := keyring.Get(constants.AppName, entry)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrKeyringUnavailable, err)
	}
	return v, nil
}

func set(entry, what, value string) error {
	if value == "" {
		return fmt.Errorf("%s cannot be empty", what)
	}
	if err := keyring.Set(constants.AppName, entry, value); err != nil {
		return fmt.Errorf("failed to store %s in keyring: %w", what, err)
	}
	return nil
}

func del(entry, what string) error {
	if err := keyring.Delete(constants.AppName, entry); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete %s from keyring: %w", what, err)
	}
	return nil
}

// GetConnectionString retrieves the database connection string from the OS keyring.
// Returns ErrNotFound if no credentials are stored.
func GetConnectionString() (string, error) {
	return get(connectionEntry)
}

// SetConnectionString stores the database connection string in the OS keyring.
func SetConnectionString(connStr string) error {
	return set(connectionEntry, "connection string", connStr)
}

// DeleteConnectionString removes the database connection string from the OS keyring.
func DeleteConnectionString() error {
	return del(connectionEntry, "connection string")
}

// IsAvailable checks if the OS keyring is available on the current system.
// This is a best-effort check and may not catch all failure scenarios.
func IsAvailable() bool {
	_, err := keyring.Get(constants.AppName, "test-availability")
	return err == nil || errors.Is(err, keyring.ErrNotFound)
}

// SessionStore keeps the signed-in session token in the OS keyring.
type SessionStore struct{}

// LoadToken returns the stored token, or "" when none is stored.
func (SessionStore) LoadToken() (string, error) {
	token, err := get(sessionEntry)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	return token, err
}

func (SessionStore) SaveToken(token string) error {
	return set(sessionEntry, "session token", token)
}

// ClearToken removes the token; clearing an empty store is not an error.
func (SessionStore) ClearToken() error {
	if err := del(sessionEntry, "session token"); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return nil
}
