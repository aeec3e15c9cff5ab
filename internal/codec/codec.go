// Package codec encrypts the credential message expected by the Sharekhan
// token endpoint.
//
// The broker requires AES-256-GCM under a fixed key and a fixed all-zero
// 96-bit nonce. Reusing a nonce with GCM under one key leaks the XOR of
// plaintexts and allows tag forgery, so tokens produced here must not be
// treated as confidential beyond what the broker demands. The scheme is kept
// bit-for-bit because any change breaks interoperability with the broker.
package codec

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

const (
	// KeySize is the AES-256 key length in bytes.
	KeySize = 32
	// NonceSize is the GCM nonce length in bytes.
	NonceSize = 12
	// TagSize is the GCM authentication tag length in bytes.
	TagSize = 16
)

var (
	// ErrAuthentication is returned when the GCM tag does not verify.
	ErrAuthentication = errors.New("codec: message authentication failed")
	// ErrMalformedToken is returned for tokens that are not valid base64url or are too short.
	ErrMalformedToken = errors.New("codec: malformed token")
)

// DefaultIV is the all-zero nonce the broker expects.
var DefaultIV = [NonceSize]byte{}

// Config is the immutable key material for a Codec.
type Config struct {
	Key [KeySize]byte
	IV  [NonceSize]byte
}

// NewConfig derives a Config from secret: its UTF-8 bytes truncated or
// zero-padded to 32 bytes, with DefaultIV.
func NewConfig(secret string) Config {
	var cfg Config
	copy(cfg.Key[:], secret)
	cfg.IV = DefaultIV
	return cfg
}

// Codec encrypts and decrypts broker tokens. It is safe for concurrent use.
type Codec struct {
	aead cipher.AEAD
	iv   [NonceSize]byte
}

// New creates a Codec for cfg.
func New(cfg Config) (*Codec, error) {
	block, err := aes.NewCipher(cfg.Key[:])
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	aead, err := cipher.NewGCMWithTagSize(block, TagSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &Codec{aead: aead, iv: cfg.IV}, nil
}

// Encrypt returns base64url(ciphertext || tag) without padding.
func (c *Codec) Encrypt(plaintext string) (string, error) {
	sealed := c.aead.Seal(nil, c.iv[:], []byte(plaintext), nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt and verifies the tag.
func (c *Codec) Decrypt(token string) ([]byte, error) {
	sealed, err := decodeBase64URL(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	if len(sealed) < TagSize {
		return nil, fmt.Errorf("%w: %d bytes is shorter than the tag", ErrMalformedToken, len(sealed))
	}

	plaintext, err := c.aead.Open(nil, c.iv[:], sealed, nil)
	if err != nil {
		return nil, ErrAuthentication
	}
	if plaintext == nil {
		plaintext = []byte{}
	}

	return plaintext, nil
}

// decodeBase64URL accepts tokens with or without '=' padding.
func decodeBase64URL(s string) ([]byte, error) {
	s = strings.TrimRight(s, "=")
	if rem := len(s) % 4; rem != 0 {
		s += strings.Repeat("=", 4-rem)
	}
	return base64.URLEncoding.DecodeString(s)
}
