package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
)

// InsecureProvider is a TEST-ONLY Provider that base64-encodes instead of
// encrypting. It provides NO confidentiality and NO integrity beyond a
// marker check.
//
// It exists so fixtures and handler tests can run without key material, and
// it must be selected explicitly at startup; production wiring never falls
// back to it. An earlier iteration of the mobile client silently substituted
// base64 when the native crypto backend was missing; this type is the
// explicit, opt-in replacement for that behavior.
type InsecureProvider struct{}

// insecureMarker prefixes every "ciphertext" so that a misconfigured host
// leaking InsecureProvider output is at least detectable on sight.
const insecureMarker = "INSECURE:"

// NewInsecureProvider returns the test-only provider. Callers are expected
// to gate construction behind an explicit, non-default configuration flag.
func NewInsecureProvider() *InsecureProvider {
	return &InsecureProvider{}
}

// GenerateKeyPair returns random bytes shaped like a keypair.
func (p *InsecureProvider) GenerateKeyPair() (KeyPair, error) {
	pub, err := randomString(keySize)
	if err != nil {
		return KeyPair{}, err
	}
	priv, err := randomString(keySize)
	if err != nil {
		return KeyPair{}, err
	}
	return KeyPair{PublicKey: pub, PrivateKey: priv}, nil
}

// GenerateSymmetricKey returns random bytes shaped like a key.
func (p *InsecureProvider) GenerateSymmetricKey() (string, error) {
	return randomString(keySize)
}

// WrapKey stores the key material under the insecure marker.
func (p *InsecureProvider) WrapKey(symmetricKey, recipientPublicKey, senderPrivateKey string) (SealedBox, error) {
	return p.Encrypt([]byte(symmetricKey), "")
}

// UnwrapKey reverses WrapKey.
func (p *InsecureProvider) UnwrapKey(sealed SealedBox, senderPublicKey, recipientPrivateKey string) (string, error) {
	plain, err := p.Decrypt(sealed, "")
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

// Encrypt base64-encodes the plaintext under the insecure marker.
func (p *InsecureProvider) Encrypt(plaintext []byte, symmetricKey string) (SealedBox, error) {
	nonce, err := randomString(nonceSize)
	if err != nil {
		return SealedBox{}, err
	}
	return SealedBox{
		Ciphertext: insecureMarker + base64.RawURLEncoding.EncodeToString(plaintext),
		Nonce:      nonce,
	}, nil
}

// Decrypt reverses Encrypt, rejecting input that lacks the marker so real
// ciphertext is never mistaken for insecure output.
func (p *InsecureProvider) Decrypt(sealed SealedBox, symmetricKey string) ([]byte, error) {
	encoded, ok := strings.CutPrefix(sealed.Ciphertext, insecureMarker)
	if !ok {
		return nil, errDecryptionFailed()
	}
	plain, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, errDecryptionFailed()
	}
	return plain, nil
}

func randomString(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", fmt.Errorf("failed to read randomness: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
