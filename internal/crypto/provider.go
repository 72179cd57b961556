// Package crypto implements the end-to-end encryption primitives for CoTask.
//
// Content (task/group titles, descriptions, notification bodies) is encrypted
// once with a random symmetric key; that key is then wrapped once per
// authorized member's public key. Granting or revoking access to a task or
// group therefore means adding or removing a wrapped-key record, never
// re-encrypting the content itself.
//
// The Provider is an explicit capability selected by the host at startup.
// There is no silent fallback: hosts either construct the real NaCl provider
// or deliberately opt into the clearly-labeled insecure one for tests.
package crypto

import (
	"github.com/flvvius/cotask/internal/apperr"
)

// KeyPair is an asymmetric keypair, base64-encoded. The private half is
// persisted only in the local keystore and never transmitted.
type KeyPair struct {
	PublicKey  string `json:"publicKey"`
	PrivateKey string `json:"privateKey"`
}

// SealedBox is an authenticated ciphertext with the nonce it was sealed
// under. Both halves are required to decrypt; neither is secret.
type SealedBox struct {
	Ciphertext string `json:"cipherText"`
	Nonce      string `json:"nonce"`
}

// WrappedKey is a symmetric key sealed for a single recipient.
type WrappedKey struct {
	RecipientPublicKey string    `json:"recipientPublicKey"`
	Sealed             SealedBox `json:"sealed"`
}

// Provider is the cryptographic capability interface.
//
// Implementations must draw fresh randomness for every nonce: nonce reuse
// under the same key is a correctness violation, not a style issue.
type Provider interface {
	// GenerateKeyPair creates a new asymmetric keypair.
	GenerateKeyPair() (KeyPair, error)

	// GenerateSymmetricKey creates a new random symmetric content key.
	GenerateSymmetricKey() (string, error)

	// WrapKey seals a symmetric key for one recipient using
	// sender-authenticated public-key encryption: only the recipient's
	// private key can open it, and the sender's identity is bound to the
	// box itself, not just the plaintext.
	WrapKey(symmetricKey, recipientPublicKey, senderPrivateKey string) (SealedBox, error)

	// UnwrapKey opens a wrapped symmetric key. Fails with a
	// DecryptionFailed error on tamper or wrong key.
	UnwrapKey(sealed SealedBox, senderPublicKey, recipientPrivateKey string) (string, error)

	// Encrypt seals plaintext with authenticated symmetric encryption.
	Encrypt(plaintext []byte, symmetricKey string) (SealedBox, error)

	// Decrypt opens a symmetric box. Fails with a DecryptionFailed error
	// on tamper or wrong key.
	Decrypt(sealed SealedBox, symmetricKey string) ([]byte, error)
}

// WrapKeyForRecipients seals the same symmetric key independently for each
// recipient. Each seal draws its own nonce. The per-recipient computations
// share no mutable state, so callers may fan this out if the recipient list
// ever grows large; at CoTask's group sizes a loop is enough.
func WrapKeyForRecipients(p Provider, symmetricKey string, recipientPublicKeys []string, senderPrivateKey string) ([]WrappedKey, error) {
	wrapped := make([]WrappedKey, 0, len(recipientPublicKeys))
	for _, pub := range recipientPublicKeys {
		sealed, err := p.WrapKey(symmetricKey, pub, senderPrivateKey)
		if err != nil {
			return nil, err
		}
		wrapped = append(wrapped, WrappedKey{RecipientPublicKey: pub, Sealed: sealed})
	}
	return wrapped, nil
}

// errDecryptionFailed builds the stable decryption failure returned on any
// authentication or integrity failure. The message is deliberately uniform:
// it must not reveal whether the key was wrong or the ciphertext tampered.
func errDecryptionFailed() error {
	return apperr.New(apperr.KindDecryptionFailed, "decryption failed")
}
