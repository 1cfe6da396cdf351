// Package credential keeps the CLI's single mailbox credential in the OS
// keyring. The HTTP service never stores credentials.
package credential

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/99designs/keyring"

	"github.com/nhle/otpmail/internal/model"
)

const (
	serviceName   = "otpmail"
	credentialKey = "mailbox"
)

// ErrNotFound is returned when no credential has been saved.
var ErrNotFound = errors.New("no saved credential; run `otpmail login`")

// Vault reads and writes the saved credential.
type Vault struct {
	ring keyring.Keyring
}

// Open returns a Vault backed by the system keyring, with an encrypted
// file under configDir as the last resort.
func Open(configDir string) (*Vault, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  filepath.Join(configDir, "credentials"),
		FilePasswordFunc:         keyring.FixedStringPrompt("otpmail-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return NewVault(ring), nil
}

// NewVault wraps an already opened keyring.
func NewVault(ring keyring.Keyring) *Vault {
	return &Vault{ring: ring}
}

// Load returns the saved credential, or ErrNotFound.
func (v *Vault) Load() (model.Credential, error) {
	item, err := v.ring.Get(credentialKey)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return model.Credential{}, ErrNotFound
	}
	if err != nil {
		return model.Credential{}, fmt.Errorf("getting credential: %w", err)
	}

	var cred model.Credential
	if err := json.Unmarshal(item.Data, &cred); err != nil {
		return model.Credential{}, fmt.Errorf("decoding credential: %w", err)
	}
	return cred, nil
}

// Save replaces the saved credential.
func (v *Vault) Save(cred model.Credential) error {
	data, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("encoding credential: %w", err)
	}

	err = v.ring.Set(keyring.Item{
		Key:         credentialKey,
		Data:        data,
		Label:       "otpmail mailbox credential",
		Description: cred.Email,
	})
	if err != nil {
		return fmt.Errorf("setting credential: %w", err)
	}

	return nil
}

// Delete removes the saved credential. Deleting a missing credential is
// not an error.
func (v *Vault) Delete() error {
	err := v.ring.Remove(credentialKey)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting credential: %w", err)
	}
	return nil
}
