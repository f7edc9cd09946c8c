package wallet

import (
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/99designs/keyring"
)

const keychainService = "w3probe"

// ErrKeyNotFound is returned when no key is stored for a role.
var ErrKeyNotFound = errors.New("key not found")

// KeystoreBackend is the storage the CLI uses for role keys.
type KeystoreBackend interface {
	Store(role, hexKey string) (string, error)
	Retrieve(role string) (string, error)
	Delete(role string) error
}

// Keystore wraps OS keychain access.
type Keystore struct {
	ring keyring.Keyring
}

// DefaultKeystore returns a keystore backed by the OS keychain.
func DefaultKeystore() *Keystore {
	cfg := keyring.Config{
		ServiceName:              keychainService,
		KeychainTrustApplication: true,
	}

	// On Linux without a GUI, fall back to file-based storage.
	if runtime.GOOS == "linux" {
		cfg.AllowedBackends = []keyring.BackendType{
			keyring.SecretServiceBackend,
			keyring.KWalletBackend,
			keyring.FileBackend,
		}
	}

	ring, err := keyring.Open(cfg)
	if err != nil {
		ring, _ = keyring.Open(keyring.Config{
			ServiceName:     keychainService,
			AllowedBackends: []keyring.BackendType{keyring.FileBackend},
		})
	}

	return &Keystore{ring: ring}
}

// KeyRef is the keychain item name for a role, e.g. "w3probe.alice".
func KeyRef(role string) string {
	return keychainService + "." + role
}

// Store saves a private key for role and returns its reference.
func (k *Keystore) Store(role, hexKey string) (string, error) {
	if k.ring == nil {
		return "", fmt.Errorf("keystore not available")
	}
	ref := KeyRef(role)
	err := k.ring.Set(keyring.Item{
		Key:   ref,
		Data:  []byte(normaliseHexKey(hexKey)),
		Label: "w3probe " + role + " key",
	})
	if err != nil {
		return "", fmt.Errorf("keychain store: %w", err)
	}
	return ref, nil
}

// Retrieve fetches the private key stored for role.
func (k *Keystore) Retrieve(role string) (string, error) {
	if k.ring == nil {
		return "", fmt.Errorf("keystore not available")
	}
	item, err := k.ring.Get(KeyRef(role))
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", fmt.Errorf("%w: %s", ErrKeyNotFound, role)
	}
	if err != nil {
		return "", fmt.Errorf("keychain retrieve: %w", err)
	}
	return normaliseHexKey(string(item.Data)), nil
}

// Delete removes the key stored for role.
func (k *Keystore) Delete(role string) error {
	if k.ring == nil {
		return nil
	}
	err := k.ring.Remove(KeyRef(role))
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("%w: %s", ErrKeyNotFound, role)
	}
	return err
}

// InMemoryKeystore stores keys in memory (for tests).
type InMemoryKeystore struct {
	data map[string]string
}

// NewInMemoryKeystore creates an in-memory keystore.
func NewInMemoryKeystore() *InMemoryKeystore {
	return &InMemoryKeystore{data: make(map[string]string)}
}

func (k *InMemoryKeystore) Store(role, hexKey string) (string, error) {
	ref := KeyRef(role)
	k.data[ref] = normaliseHexKey(hexKey)
	return ref, nil
}

func (k *InMemoryKeystore) Retrieve(role string) (string, error) {
	v, ok := k.data[KeyRef(role)]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrKeyNotFound, role)
	}
	return v, nil
}

func (k *InMemoryKeystore) Delete(role string) error {
	if _, ok := k.data[KeyRef(role)]; !ok {
		return fmt.Errorf("%w: %s", ErrKeyNotFound, role)
	}
	delete(k.data, KeyRef(role))
	return nil
}

func normaliseHexKey(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && (s[:2] == "0x" || s[:2] == "0X") {
		return s[2:]
	}
	return s
}
