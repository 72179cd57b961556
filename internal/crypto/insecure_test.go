package crypto_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flvvius/cotask/internal/apperr"
	"github.com/flvvius/cotask/internal/crypto"
)

// TestInsecureProvider_RoundTrip verifies the test-only provider round-trips
// and brands its output so leaked ciphertext is recognizable.
func TestInsecureProvider_RoundTrip(t *testing.T) {
	p := crypto.NewInsecureProvider()

	sealed, err := p.Encrypt([]byte("fixture content"), "")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sealed.Ciphertext, "INSECURE:"),
		"insecure output must carry the marker")

	opened, err := p.Decrypt(sealed, "")
	require.NoError(t, err)
	assert.Equal(t, []byte("fixture content"), opened)
}

// TestInsecureProvider_RejectsUnmarkedInput verifies real ciphertext is never
// mistaken for insecure output.
func TestInsecureProvider_RejectsUnmarkedInput(t *testing.T) {
	p := crypto.NewInsecureProvider()

	real := crypto.NewNaClProvider()
	key, err := real.GenerateSymmetricKey()
	require.NoError(t, err)
	sealed, err := real.Encrypt([]byte("secret"), key)
	require.NoError(t, err)

	_, err = p.Decrypt(sealed, "")
	assert.True(t, apperr.IsKind(err, apperr.KindDecryptionFailed))
}

// TestInsecureProvider_WrapUnwrap verifies key wrapping works without any
// real key material, which is what fixtures rely on.
func TestInsecureProvider_WrapUnwrap(t *testing.T) {
	p := crypto.NewInsecureProvider()

	contentKey, err := p.GenerateSymmetricKey()
	require.NoError(t, err)

	wrapped, err := p.WrapKey(contentKey, "ignored", "ignored")
	require.NoError(t, err)

	unwrapped, err := p.UnwrapKey(wrapped, "ignored", "ignored")
	require.NoError(t, err)
	assert.Equal(t, contentKey, unwrapped)
}
