package crypto

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Keystore item names. Versioned so a future key rotation can live alongside
// the old material; these names match the mobile client's secure-store keys.
const (
	keystorePublicKeyName  = "cotask.publicKey.box.v1"
	keystorePrivateKeyName = "cotask.privateKey.box.v1"
)

// Keystore persists the device-local keypair in a file readable only by the
// owning user (0600). The store survives process restarts; the private key
// never leaves it except through LoadKeyPair, and the file must never be
// synced off the host.
type Keystore struct {
	path string
}

// NewKeystore creates a keystore rooted at the given file path.
// The parent directory is created on first save.
func NewKeystore(path string) *Keystore {
	return &Keystore{path: path}
}

// DefaultKeystorePath returns COTASK_KEYSTORE if set, otherwise a dotfile in
// the user's home directory.
func DefaultKeystorePath() string {
	if p := os.Getenv("COTASK_KEYSTORE"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".cotask-keystore.json"
	}
	return filepath.Join(home, ".cotask", "keystore.json")
}

// LoadKeyPair reads the persisted keypair.
// Returns found=false when no keypair has been stored yet.
func (k *Keystore) LoadKeyPair() (pair KeyPair, found bool, err error) {
	raw, err := os.ReadFile(k.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return KeyPair{}, false, nil
		}
		return KeyPair{}, false, fmt.Errorf("failed to read keystore: %w", err)
	}

	items := map[string]string{}
	if err := json.Unmarshal(raw, &items); err != nil {
		return KeyPair{}, false, fmt.Errorf("keystore is corrupt: %w", err)
	}

	pub, pubOK := items[keystorePublicKeyName]
	priv, privOK := items[keystorePrivateKeyName]
	if !pubOK || !privOK {
		return KeyPair{}, false, nil
	}
	return KeyPair{PublicKey: pub, PrivateKey: priv}, true, nil
}

// SaveKeyPair persists the keypair with owner-only permissions.
func (k *Keystore) SaveKeyPair(pair KeyPair) error {
	if err := os.MkdirAll(filepath.Dir(k.path), 0o700); err != nil {
		return fmt.Errorf("failed to create keystore directory: %w", err)
	}

	items := map[string]string{
		keystorePublicKeyName:  pair.PublicKey,
		keystorePrivateKeyName: pair.PrivateKey,
	}
	raw, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode keystore: %w", err)
	}

	if err := os.WriteFile(k.path, raw, 0o600); err != nil {
		return fmt.Errorf("failed to write keystore: %w", err)
	}
	return nil
}

// EnsureKeyPair returns the stored keypair, generating and persisting a new
// one on first use. Wrap/unwrap operations must not be attempted before a
// keypair exists, so callers run this during startup.
func (k *Keystore) EnsureKeyPair(p Provider) (KeyPair, error) {
	pair, found, err := k.LoadKeyPair()
	if err != nil {
		return KeyPair{}, err
	}
	if found {
		return pair, nil
	}

	pair, err = p.GenerateKeyPair()
	if err != nil {
		return KeyPair{}, err
	}
	if err := k.SaveKeyPair(pair); err != nil {
		return KeyPair{}, err
	}
	return pair, nil
}

// Delete removes the persisted keypair. Missing files are not an error.
func (k *Keystore) Delete() error {
	if err := os.Remove(k.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete keystore: %w", err)
	}
	return nil
}
