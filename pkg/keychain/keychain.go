// Package keychain stores connection passwords in the OS credential store.
package keychain

import (
	"errors"
	"fmt"
	"sync"

	"github.com/99designs/keyring"

	"github.com/ekaya-inc/snowflake-catalog/pkg/apperrors"
)

// ServiceName namespaces every item this tool writes.
const ServiceName = "snowflake-catalog"

// Manager is a thread-safe wrapper around a keyring.
type Manager struct {
	mu   sync.RWMutex
	ring keyring.Keyring
}

// Open opens the platform keyring. Only native backends are allowed; there
// is no encrypted-file fallback.
func Open() (*Manager, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: ServiceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.WinCredBackend,
			keyring.SecretServiceBackend,
			keyring.KWalletBackend,
			keyring.PassBackend,
		},
		KeychainTrustApplication: true,
		PassPrefix:               ServiceName,
		WinCredPrefix:            ServiceName,
	})
	if err != nil {
		return nil, fmt.Errorf("open keychain: %w", err)
	}
	return NewManager(ring), nil
}

// NewManager wraps an already opened keyring.
func NewManager(ring keyring.Keyring) *Manager {
	return &Manager{ring: ring}
}

func passwordKey(connection string) string {
	return "password/" + connection
}

// Set stores the password for a named connection.
func (m *Manager) Set(connection, password string) error {
	if connection == "" {
		return &apperrors.MissingParameterError{Field: "connection"}
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.ring.Set(keyring.Item{
		Key:         passwordKey(connection),
		Data:        []byte(password),
		Label:       ServiceName + " " + connection,
		Description: "Snowflake password",
	})
}

// Get returns the stored password. A missing entry is apperrors.ErrNotFound.
func (m *Manager) Get(connection string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	item, err := m.ring.Get(passwordKey(connection))
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", fmt.Errorf("password for %q: %w", connection, apperrors.ErrNotFound)
	}
	if err != nil {
		return "", err
	}
	return string(item.Data), nil
}

// Delete removes the stored password. Deleting a missing entry is not an error.
func (m *Manager) Delete(connection string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	err := m.ring.Remove(passwordKey(connection))
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return nil
	}
	return err
}
