package codec

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "txt1XPdoxL4YVMgnJiFkY6xxGE"

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	c, err := New(NewConfig(testSecret))
	require.NoError(t, err)
	return c
}

func TestNewConfig_KeyDerivation(t *testing.T) {
	short := NewConfig("abc")
	assert.Equal(t, []byte("abc"), short.Key[:3])
	assert.Equal(t, make([]byte, KeySize-3), short.Key[3:], "short secrets are zero padded")
	assert.Equal(t, DefaultIV, short.IV)

	long := NewConfig(strings.Repeat("k", 40) + "tail")
	assert.Equal(t, []byte(strings.Repeat("k", KeySize)), long.Key[:], "long secrets are truncated")

	exact := NewConfig(testSecret)
	assert.Equal(t, []byte(testSecret), exact.Key[:len(testSecret)])
}

func TestEncryptDecrypt_Scenario(t *testing.T) {
	c := newTestCodec(t)

	token, err := c.Encrypt("ABC123|secretXYZ")
	require.NoError(t, err)

	plaintext, err := c.Decrypt(token)
	require.NoError(t, err)
	assert.Equal(t, "ABC123|secretXYZ", string(plaintext))
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	c := newTestCodec(t)

	inputs := []string{
		"",
		"a",
		"ab",
		"abc",
		"request-token|secret-id",
		"ünïcødé|₹ 1,23,456",
		strings.Repeat("x", 1000),
		"line\nbreak|tab\t",
	}

	for _, in := range inputs {
		token, err := c.Encrypt(in)
		require.NoError(t, err)

		out, err := c.Decrypt(token)
		require.NoError(t, err, "input %q", in)
		assert.Equal(t, in, string(out))
	}
}

func TestEncrypt_OutputLayout(t *testing.T) {
	c := newTestCodec(t)

	for _, in := range []string{"", "x", "ABC123|secretXYZ", strings.Repeat("y", 257)} {
		token, err := c.Encrypt(in)
		require.NoError(t, err)

		assert.NotContains(t, token, "+")
		assert.NotContains(t, token, "/")
		assert.NotContains(t, token, "=")

		raw, err := base64.RawURLEncoding.DecodeString(token)
		require.NoError(t, err)
		assert.Len(t, raw, len(in)+TagSize, "ciphertext is plaintext length plus tag")
	}
}

// The fixed nonce makes encryption deterministic. This is a known weakness
// kept for broker compatibility.
func TestEncrypt_DeterministicUnderStaticNonce(t *testing.T) {
	c := newTestCodec(t)
	other := newTestCodec(t)

	first, err := c.Encrypt("ABC123|secretXYZ")
	require.NoError(t, err)
	second, err := c.Encrypt("ABC123|secretXYZ")
	require.NoError(t, err)
	third, err := other.Encrypt("ABC123|secretXYZ")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, first, third)

	different, err := c.Encrypt("ABC123|secretXYY")
	require.NoError(t, err)
	assert.NotEqual(t, first, different)
}

func TestDecrypt_TamperedBitsFail(t *testing.T) {
	c := newTestCodec(t)

	token, err := c.Encrypt("ABC123|secretXYZ")
	require.NoError(t, err)
	raw, err := base64.RawURLEncoding.DecodeString(token)
	require.NoError(t, err)

	for i := 0; i < len(raw); i++ {
		for bit := 0; bit < 8; bit++ {
			tampered := append([]byte(nil), raw...)
			tampered[i] ^= 1 << bit

			_, err := c.Decrypt(base64.RawURLEncoding.EncodeToString(tampered))
			require.ErrorIs(t, err, ErrAuthentication, "byte %d bit %d", i, bit)
		}
	}
}

func TestDecrypt_WrongKeyFails(t *testing.T) {
	c := newTestCodec(t)
	token, err := c.Encrypt("ABC123|secretXYZ")
	require.NoError(t, err)

	other, err := New(NewConfig("a-different-secret"))
	require.NoError(t, err)

	_, err = other.Decrypt(token)
	assert.ErrorIs(t, err, ErrAuthentication)
}

func TestDecrypt_AcceptsPaddedTokens(t *testing.T) {
	c := newTestCodec(t)

	token, err := c.Encrypt("a")
	require.NoError(t, err)
	padded := base64.URLEncoding.EncodeToString(mustDecode(t, token))
	require.True(t, strings.HasSuffix(padded, "="))

	out, err := c.Decrypt(padded)
	require.NoError(t, err)
	assert.Equal(t, "a", string(out))
}

func TestDecrypt_Malformed(t *testing.T) {
	c := newTestCodec(t)

	tests := []struct {
		name  string
		token string
	}{
		{"invalid alphabet", "not*base64!"},
		{"impossible length", "abcde"},
		{"shorter than tag", base64.RawURLEncoding.EncodeToString([]byte("short"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Decrypt(tt.token)
			assert.ErrorIs(t, err, ErrMalformedToken)
		})
	}
}

func mustDecode(t *testing.T, token string) []byte {
	t.Helper()
	raw, err := base64.RawURLEncoding.DecodeString(token)
	require.NoError(t, err)
	return raw
}
