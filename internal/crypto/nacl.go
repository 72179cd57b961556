package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/box"
	"golang.org/x/crypto/nacl/secretbox"

	"github.com/flvvius/cotask/internal/apperr"
)

// Key and nonce sizes, matching libsodium's crypto_box / crypto_secretbox.
const (
	keySize   = 32
	nonceSize = 24
)

// b64 is the encoding used for all key and ciphertext material, matching the
// libsodium URL-safe-no-padding variant the mobile client produces.
var b64 = base64.RawURLEncoding

// NaClProvider is the production Provider backed by NaCl box and secretbox
// (the Go counterparts of crypto_box_easy / crypto_secretbox_easy used by
// the mobile client). All nonces come from crypto/rand.
type NaClProvider struct{}

// NewNaClProvider returns the real cryptographic provider.
func NewNaClProvider() *NaClProvider {
	return &NaClProvider{}
}

// GenerateKeyPair creates a Curve25519 box keypair.
func (p *NaClProvider) GenerateKeyPair() (KeyPair, error) {
	pub, priv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return KeyPair{}, fmt.Errorf("failed to generate keypair: %w", err)
	}
	return KeyPair{
		PublicKey:  b64.EncodeToString(pub[:]),
		PrivateKey: b64.EncodeToString(priv[:]),
	}, nil
}

// GenerateSymmetricKey creates a random 32-byte secretbox key.
func (p *NaClProvider) GenerateSymmetricKey() (string, error) {
	var key [keySize]byte
	if _, err := io.ReadFull(rand.Reader, key[:]); err != nil {
		return "", fmt.Errorf("failed to generate symmetric key: %w", err)
	}
	return b64.EncodeToString(key[:]), nil
}

// WrapKey seals the symmetric key with box.Seal. The resulting ciphertext is
// opened only by the recipient's private key, and authenticates the sender.
func (p *NaClProvider) WrapKey(symmetricKey, recipientPublicKey, senderPrivateKey string) (SealedBox, error) {
	payload, err := b64.DecodeString(symmetricKey)
	if err != nil {
		return SealedBox{}, apperr.New(apperr.KindInvalid, "symmetric key is not valid base64")
	}
	recipientPub, err := decodeKey(recipientPublicKey)
	if err != nil {
		return SealedBox{}, apperr.New(apperr.KindInvalid, "recipient public key is malformed")
	}
	senderPriv, err := decodeKey(senderPrivateKey)
	if err != nil {
		return SealedBox{}, apperr.New(apperr.KindInvalid, "sender private key is malformed")
	}

	nonce, err := freshNonce()
	if err != nil {
		return SealedBox{}, err
	}

	sealed := box.Seal(nil, payload, nonce, recipientPub, senderPriv)
	return SealedBox{
		Ciphertext: b64.EncodeToString(sealed),
		Nonce:      b64.EncodeToString(nonce[:]),
	}, nil
}

// UnwrapKey opens a wrapped symmetric key with box.Open.
func (p *NaClProvider) UnwrapKey(sealed SealedBox, senderPublicKey, recipientPrivateKey string) (string, error) {
	ciphertext, nonce, err := decodeSealed(sealed)
	if err != nil {
		return "", err
	}
	senderPub, err := decodeKey(senderPublicKey)
	if err != nil {
		return "", apperr.New(apperr.KindInvalid, "sender public key is malformed")
	}
	recipientPriv, err := decodeKey(recipientPrivateKey)
	if err != nil {
		return "", apperr.New(apperr.KindInvalid, "recipient private key is malformed")
	}

	plain, ok := box.Open(nil, ciphertext, nonce, senderPub, recipientPriv)
	if !ok {
		return "", errDecryptionFailed()
	}
	return b64.EncodeToString(plain), nil
}

// Encrypt seals plaintext with secretbox under a fresh random nonce.
func (p *NaClProvider) Encrypt(plaintext []byte, symmetricKey string) (SealedBox, error) {
	key, err := decodeKey(symmetricKey)
	if err != nil {
		return SealedBox{}, apperr.New(apperr.KindInvalid, "symmetric key is malformed")
	}

	nonce, err := freshNonce()
	if err != nil {
		return SealedBox{}, err
	}

	sealed := secretbox.Seal(nil, plaintext, nonce, key)
	return SealedBox{
		Ciphertext: b64.EncodeToString(sealed),
		Nonce:      b64.EncodeToString(nonce[:]),
	}, nil
}

// Decrypt opens a secretbox.
func (p *NaClProvider) Decrypt(sealed SealedBox, symmetricKey string) ([]byte, error) {
	ciphertext, nonce, err := decodeSealed(sealed)
	if err != nil {
		return nil, err
	}
	key, err := decodeKey(symmetricKey)
	if err != nil {
		return nil, apperr.New(apperr.KindInvalid, "symmetric key is malformed")
	}

	plain, ok := secretbox.Open(nil, ciphertext, nonce, key)
	if !ok {
		return nil, errDecryptionFailed()
	}
	return plain, nil
}

// freshNonce draws a new random 24-byte nonce. Every seal operation calls
// this; nonces are never derived or reused.
func freshNonce() (*[nonceSize]byte, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return &nonce, nil
}

// decodeKey decodes a base64 key and checks its length.
func decodeKey(encoded string) (*[keySize]byte, error) {
	raw, err := b64.DecodeString(encoded)
	if err != nil {
		return nil, err
	}
	if len(raw) != keySize {
		return nil, fmt.Errorf("key must be %d bytes, got %d", keySize, len(raw))
	}
	var key [keySize]byte
	copy(key[:], raw)
	return &key, nil
}

// decodeSealed decodes a SealedBox's ciphertext and nonce. Malformed
// encodings are reported as decryption failures: from the caller's point of
// view the box could not be opened.
func decodeSealed(sealed SealedBox) ([]byte, *[nonceSize]byte, error) {
	ciphertext, err := b64.DecodeString(sealed.Ciphertext)
	if err != nil {
		return nil, nil, errDecryptionFailed()
	}
	rawNonce, err := b64.DecodeString(sealed.Nonce)
	if err != nil || len(rawNonce) != nonceSize {
		return nil, nil, errDecryptionFailed()
	}
	var nonce [nonceSize]byte
	copy(nonce[:], rawNonce)
	return ciphertext, &nonce, nil
}
