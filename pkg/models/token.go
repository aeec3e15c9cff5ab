package models

import "time"

// CredentialToken is the pair combined into the encrypted exchange message.
// It is never persisted.
type CredentialToken struct {
	AuthorizationCode string
	SecretID          string
}

// Message returns the pipe-delimited plaintext sent through the codec
func (c CredentialToken) Message() string {
	return c.AuthorizationCode + "|" + c.SecretID
}

// PayloadShape names the JSON body that the token endpoint accepted
type PayloadShape string

const (
	PayloadEncrypted PayloadShape = "encrypted"
	PayloadPlaintext PayloadShape = "plaintext"
)

// AccessTokenResponse is the broker's token endpoint response body. Data is
// kept as whatever JSON value the broker sent.
type AccessTokenResponse struct {
	Status    string      `json:"status"`
	Message   string      `json:"message"`
	Timestamp interface{} `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// TokenResult is what a completed exchange surfaces to callers
type TokenResult struct {
	AccessTokenResponse
	APIKey           string       `json:"api_key"`
	PayloadShape     PayloadShape `json:"payload_shape"`
	EncryptedPayload string       `json:"encrypted_payload"`
	IssuedAt         time.Time    `json:"issued_at"`
}

// EncryptionUsed reports whether the encrypted payload was accepted
func (r *TokenResult) EncryptionUsed() bool {
	return r.PayloadShape == PayloadEncrypted
}

// Record returns the credential-free view of r that may be cached or served
func (r *TokenResult) Record() TokenRecord {
	return TokenRecord{
		APIKey:       r.APIKey,
		Status:       r.Status,
		Message:      r.Message,
		PayloadShape: r.PayloadShape,
		IssuedAt:     r.IssuedAt,
	}
}

// TokenRecord is what the token cache keeps about an issued token. It never
// holds the access token or the encrypted credentials.
type TokenRecord struct {
	APIKey       string       `json:"api_key"`
	Status       string       `json:"status"`
	Message      string       `json:"message"`
	PayloadShape PayloadShape `json:"payload_shape"`
	IssuedAt     time.Time    `json:"issued_at"`
}
